// Package e2e drives the assembled service over HTTP: real classifier,
// selector, cache, orchestrator and collector, with the file store and a
// stub of the generation gateway.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"docgen-workers/internal/app"
	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	viewingRequest       = "confirm the viewing appointment tomorrow at 5pm for client Maria, property Sea View 4"
	registrationRequest  = "seller registration, standard, buyer John Smith, property Reg 0/123 Tala, viewing tomorrow 5pm"
	clarificationRequest = "I need a seller registration standard"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// gateway mimics the generation gateway's /api/ai/generate endpoint.
type gateway struct {
	server *httptest.Server
	calls  atomic.Int32
	auth   atomic.Value
	status int
}

func newGateway(t testing.TB, status int) *gateway {
	g := &gateway{status: status}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.calls.Add(1)
		g.auth.Store(r.Header.Get("Authorization"))
		if r.URL.Path != "/api/ai/generate" {
			http.NotFound(w, r)
			return
		}
		if g.status != http.StatusOK {
			w.WriteHeader(g.status)
			return
		}
		var body struct {
			System string `json:"system"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Prompt == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text":  "Dear {{buyer_name}}",
			"model": "stub",
			"usage": map[string]int{"input_tokens": 120, "output_tokens": 30, "total_tokens": 150},
		})
	}))
	t.Cleanup(g.server.Close)
	return g
}

func loadConfig(t testing.TB, gatewayURL string) *config.Config {
	t.Helper()
	registry, err := filepath.Abs("../../configs/templates.json")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf(`
store:
  driver: file
template:
  registry_path: %s
completion:
  provider: genai
apis:
  genai:
    base_url: %s
    api_key: e2e-key
    timeout: 5000
    max_retries: 0
analytics:
  flush_interval: 3600000
`, registry, gatewayURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	return cfg
}

type service struct {
	app     *app.App
	server  *httptest.Server
	gateway *gateway
}

func startService(t testing.TB, gatewayStatus int) *service {
	t.Helper()
	gw := newGateway(t, gatewayStatus)
	cfg := loadConfig(t, gw.server.URL)

	a, err := app.Build(context.Background(), cfg, logger.NewTestLogger(t), app.WithoutTelemetry())
	require.NoError(t, err)
	a.Start(context.Background())

	srv := httptest.NewServer(a.Router)
	s := &service{app: a, server: srv, gateway: gw}
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(ctx)
	})
	return s
}

func (s *service) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

func TestDocumentLifecycle(t *testing.T) {
	s := startService(t, http.StatusOK)

	var doc models.DocumentResponse
	status := s.do(t, http.MethodPost, "/api/documents/generate", models.DocumentRequest{Message: viewingRequest, AgentID: "agent-1"}, &doc)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "viewing_confirmation", doc.TemplateID)
	assert.Equal(t, "Dear Maria", doc.Content)
	assert.Equal(t, 150, doc.TokensUsed)
	assert.Equal(t, models.CategoryViewing, doc.Metadata.Category)
	assert.NotEmpty(t, doc.Metadata.RequestID)
	assert.EqualValues(t, 1, s.gateway.calls.Load())
	assert.Equal(t, "Bearer e2e-key", s.gateway.auth.Load())

	var clarify models.DocumentResponse
	status = s.do(t, http.MethodPost, "/api/documents/generate", models.DocumentRequest{Message: clarificationRequest}, &clarify)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, clarify.Metadata.NeedsClarification)
	assert.NotEmpty(t, clarify.Metadata.Questions)
	assert.EqualValues(t, 1, s.gateway.calls.Load())

	var batch struct {
		Results   []models.BatchResult `json:"results"`
		Succeeded int                  `json:"succeeded"`
		Failed    int                  `json:"failed"`
	}
	status = s.do(t, http.MethodPost, "/api/documents/generate-multiple", map[string]interface{}{
		"requests": []models.DocumentRequest{
			{Message: registrationRequest},
			{Message: ""},
			{Message: viewingRequest},
		},
	}, &batch)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Results, 3)
	assert.Equal(t, "seller_registration_standard", batch.Results[0].Response.TemplateID)
	assert.Equal(t, "INVALID_REQUEST", batch.Results[1].Code)

	var cm models.CacheMetrics
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/cache/metrics", nil, &cm))
	assert.GreaterOrEqual(t, cm.Size, 12)
	assert.Equal(t, 100, cm.Capacity)
	assert.GreaterOrEqual(t, cm.Hits+cm.Misses, int64(3))

	var dash models.AnalyticsDashboard
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/analytics/dashboard?range=24h", nil, &dash))
	assert.GreaterOrEqual(t, dash.TotalRequests, 4)
	assert.Greater(t, dash.BufferedIncluded, 0)

	var rt models.RealtimeSnapshot
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/analytics/realtime", nil, &rt))
	assert.Greater(t, rt.RequestsPerMinute, 0.0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.app.Close(ctx))

	viewing, err := s.app.Stores.Templates.GetByTemplateID(context.Background(), "viewing_confirmation")
	require.NoError(t, err)
	assert.Equal(t, int64(2), viewing.Metadata.UsageCount)

	stored, err := s.app.Stores.Metrics.Range(context.Background(), time.Now().Add(-time.Hour), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}

func TestClassifyAndSearch(t *testing.T) {
	s := startService(t, http.StatusOK)

	var c models.IntentClassification
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/documents/classify", map[string]string{"message": registrationRequest}, &c))
	assert.Equal(t, models.CategoryRegistration, c.Category)
	assert.Equal(t, "seller", c.Subcategory)

	var found struct {
		Templates []models.Template `json:"templates"`
		Count     int               `json:"count"`
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/templates/search?category=viewing", nil, &found))
	assert.Equal(t, 2, found.Count)
	for _, tpl := range found.Templates {
		assert.Equal(t, models.CategoryViewing, tpl.Category)
	}
	assert.Zero(t, s.gateway.calls.Load())
}

func TestRequestErrors(t *testing.T) {
	s := startService(t, http.StatusOK)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"empty message", http.MethodPost, "/api/documents/generate", map[string]string{"message": ""}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"oversized batch", http.MethodPost, "/api/documents/generate-multiple", map[string]interface{}{"requests": make([]models.DocumentRequest, 11)}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad range", http.MethodGet, "/api/analytics/dashboard?range=1y", nil, http.StatusBadRequest, "INVALID_TIME_RANGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env errorEnvelope
			assert.Equal(t, tt.status, s.do(t, tt.method, tt.path, tt.body, &env))
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestGatewayFailure(t *testing.T) {
	s := startService(t, http.StatusInternalServerError)

	var env errorEnvelope
	status := s.do(t, http.MethodPost, "/api/documents/generate", models.DocumentRequest{Message: viewingRequest}, &env)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "GENERATION_FAILED", env.Error.Code)
	assert.True(t, env.Error.Retryable)

	var dash models.AnalyticsDashboard
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/analytics/dashboard", nil, &dash))
	assert.Equal(t, 1, dash.FailedRequests)
}

func TestHealthAndReadiness(t *testing.T) {
	s := startService(t, http.StatusOK)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil, nil))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", nil, nil))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/metrics", nil, nil))
}

func BenchmarkGenerate(b *testing.B) {
	s := startService(b, http.StatusOK)
	payload, _ := json.Marshal(models.DocumentRequest{Message: viewingRequest})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := http.Post(s.server.URL+"/api/documents/generate", "application/json", bytes.NewReader(payload))
		if err != nil {
			b.Fatal(err)
		}
		resp.Body.Close()
	}
}
