package performanceinsights

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/models"
	"docgen-workers/internal/pipeline/analytics"
	"docgen-workers/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newCollector(t *testing.T) *analytics.Collector {
	t.Helper()
	return analytics.NewCollector(store.NewMemoryMetricsStore(), analytics.Config{}, logger.NewTestLogger(t),
		analytics.WithClock(func() time.Time { return now }))
}

func newTestHandler(t *testing.T, a Analytics) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{Analytics: a, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	h.now = func() time.Time { return now }
	return h
}

func record(c *analytics.Collector, ago time.Duration, durationMs int64, success bool) {
	m := models.PerformanceMetric{
		Timestamp:  now.Add(-ago),
		Operation:  models.OperationGenerate,
		DurationMs: durationMs,
		Success:    success,
		TemplateID: "viewing_confirmation",
		Category:   "viewing",
	}
	if !success {
		m.Error = "GENERATION_FAILED: Could not generate document, please retry"
	}
	c.Record(m)
}

func TestHandler_Execute_SlowAndFailing(t *testing.T) {
	c := newCollector(t)
	for i := 0; i < 8; i++ {
		record(c, time.Duration(i)*time.Minute, 6000, i%4 != 0)
	}

	out, err := newTestHandler(t, c).Execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, 8, out.TotalRequests)
	assert.InDelta(t, 0.75, out.SuccessRate, 1e-9)
	assert.Equal(t, 6000.0, out.AverageResponseTime)
	assert.True(t, out.HasWarnings)
	assert.Len(t, out.Warnings, 3)
	assert.Contains(t, out.Recommendations, "Pre-load frequently used templates and instruction bundles at start-up.")
	assert.NotEmpty(t, out.Optimizations)
}

func TestHandler_Execute_Window(t *testing.T) {
	c := newCollector(t)
	record(c, 30*time.Minute, 900, true)
	record(c, 3*time.Hour, 900, true)

	h := newTestHandler(t, c)

	out, err := h.Execute(context.Background(), &Input{WindowHours: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out.TotalRequests)

	out, err = h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.TotalRequests)
	assert.False(t, out.HasWarnings)
}

func TestHandler_Execute_InvalidWindow(t *testing.T) {
	h := newTestHandler(t, newCollector(t))
	for _, hours := range []int{-1, 24*30 + 1} {
		_, err := h.Execute(context.Background(), &Input{WindowHours: hours})
		assert.Equal(t, apperrors.ErrCodeInvalidTimeRange, apperrors.CodeOf(err))
	}
}

type failingStore struct{ store.MetricsStore }

func (failingStore) Range(context.Context, time.Time, time.Time) ([]models.PerformanceMetric, error) {
	return nil, errors.New("connection reset")
}

func TestHandler_Execute_StoreFailure(t *testing.T) {
	c := analytics.NewCollector(failingStore{store.NewMemoryMetricsStore()}, analytics.Config{}, logger.NewNoOpLogger())
	_, err := newTestHandler(t, c).Execute(context.Background(), &Input{})
	assert.Equal(t, apperrors.ErrCodeAnalyticsQueryFailed, apperrors.CodeOf(err))
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(HandlerOptions{Logger: logger.NewNoOpLogger()})
	assert.ErrorContains(t, err, "analytics collector is required")

	_, err = NewHandler(HandlerOptions{
		Analytics:    newCollector(t),
		CustomConfig: &Config{MaxJobsActive: 1, Timeout: time.Second},
		Logger:       logger.NewNoOpLogger(),
	})
	assert.ErrorContains(t, err, "default window")
}
