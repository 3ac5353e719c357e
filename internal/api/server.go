// Package api serves the document pipeline over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Generator interface {
	Generate(ctx context.Context, req models.DocumentRequest) (*models.DocumentResponse, error)
	GenerateMultiple(ctx context.Context, reqs []models.DocumentRequest) []models.BatchResult
	ClassifyOnly(message string) models.IntentClassification
}

type Templates interface {
	Search(ctx context.Context, query models.TemplateFilter) ([]models.Template, error)
	Metrics() models.CacheMetrics
}

type Analytics interface {
	Dashboard(ctx context.Context, tr models.TimeRange) (*models.AnalyticsDashboard, error)
	Insights(ctx context.Context) (*models.Insights, error)
	RealtimeSnapshot() models.RealtimeSnapshot
}

// Check reports whether a backing dependency is usable.
type Check func(ctx context.Context) error

type Deps struct {
	Generator Generator
	Templates Templates
	Analytics Analytics
	// Checks are run by /ready, keyed by dependency name.
	Checks map[string]Check
}

type handler struct {
	deps Deps
	log  logger.Logger
	now  func() time.Time
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps, log logger.Logger) *gin.Engine {
	h := &handler{deps: deps, log: log, now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/health", h.health)
	r.GET("/ready", h.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	docs := r.Group("/api/documents")
	docs.POST("/generate", h.generate)
	docs.POST("/generate-multiple", h.generateMultiple)
	docs.POST("/classify", h.classify)

	r.GET("/api/templates/search", h.searchTemplates)
	r.GET("/api/cache/metrics", h.cacheMetrics)

	stats := r.Group("/api/analytics")
	stats.GET("/dashboard", h.dashboard)
	stats.GET("/insights", h.insights)
	stats.GET("/realtime", h.realtime)

	return r
}

// NewHTTPServer wraps the router with the configured timeouts.
func NewHTTPServer(cfg config.ServerConfig, router http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("HTTP request failed", fields)
		case c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics":
		default:
			log.Debug("HTTP request", fields)
		}
	}
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *handler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.deps.Checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
