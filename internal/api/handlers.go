package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/validation"
	"docgen-workers/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

var namedRanges = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// bind validates the raw body against schema before decoding it into out.
func bind(c *gin.Context, schema *validation.Schema, out interface{}) error {
	raw, err := c.GetRawData()
	if err != nil {
		return apperrors.NewInvalidRequestError("could not read request body")
	}
	if vr := schema.ValidateBytes(raw); !vr.Valid {
		return apperrors.NewInvalidRequestError(strings.Join(vr.GetErrorMessages(), "; "))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewInvalidRequestError(err.Error())
	}
	return nil
}

func (h *handler) generate(c *gin.Context) {
	var req models.DocumentRequest
	if err := bind(c, generateSchema, &req); err != nil {
		h.writeError(c, err)
		return
	}
	resp, err := h.deps.Generator.Generate(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type batchRequest struct {
	Requests []models.DocumentRequest `json:"requests"`
}

type batchResponse struct {
	Results   []models.BatchResult `json:"results"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}

func (h *handler) generateMultiple(c *gin.Context) {
	var req batchRequest
	if err := bind(c, generateMultipleSchema, &req); err != nil {
		h.writeError(c, err)
		return
	}
	results := h.deps.Generator.GenerateMultiple(c.Request.Context(), req.Requests)

	out := batchResponse{Results: results}
	for _, r := range results {
		if r.Response != nil {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) classify(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := bind(c, classifySchema, &req); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Generator.ClassifyOnly(req.Message))
}

func (h *handler) searchTemplates(c *gin.Context) {
	filter := models.TemplateFilter{
		Text:     strings.TrimSpace(c.Query("q")),
		Category: models.Category(c.Query("category")),
		Limit:    defaultSearchLimit,
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(c, apperrors.NewInvalidRequestError("limit must be a positive integer"))
			return
		}
		filter.Limit = min(n, maxSearchLimit)
	}
	if filter.Category != "" && !filter.Category.Valid() {
		h.writeError(c, apperrors.NewInvalidRequestError("unknown category "+string(filter.Category)))
		return
	}

	found, err := h.deps.Templates.Search(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": found, "count": len(found)})
}

func (h *handler) cacheMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Templates.Metrics())
}

// timeRange reads from/to (RFC 3339) or a named range. The default is the
// last 24 hours.
func (h *handler) timeRange(c *gin.Context) (models.TimeRange, error) {
	now := h.now().UTC()
	from, to := c.Query("from"), c.Query("to")
	if from == "" && to == "" {
		name := c.DefaultQuery("range", "24h")
		d, ok := namedRanges[name]
		if !ok {
			return models.TimeRange{}, apperrors.NewInvalidTimeRangeError("range must be one of 24h, 7d, 30d")
		}
		return models.TimeRange{From: now.Add(-d), To: now}, nil
	}

	tr := models.TimeRange{To: now}
	var err error
	if from != "" {
		if tr.From, err = time.Parse(time.RFC3339, from); err != nil {
			return models.TimeRange{}, apperrors.NewInvalidTimeRangeError("from must be an RFC 3339 timestamp")
		}
	} else {
		tr.From = now.Add(-24 * time.Hour)
	}
	if to != "" {
		if tr.To, err = time.Parse(time.RFC3339, to); err != nil {
			return models.TimeRange{}, apperrors.NewInvalidTimeRangeError("to must be an RFC 3339 timestamp")
		}
	}
	return tr, nil
}

func (h *handler) dashboard(c *gin.Context) {
	tr, err := h.timeRange(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	d, err := h.deps.Analytics.Dashboard(c.Request.Context(), tr)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) insights(c *gin.Context) {
	in, err := h.deps.Analytics.Insights(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *handler) realtime(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Analytics.RealtimeSnapshot())
}
