// Package analytics buffers per-stage performance metrics, writes them in
// batches and derives dashboards and rule-based insights from them.
package analytics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"docgen-workers/internal/common/config"
	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/metrics"
	"docgen-workers/internal/models"
	"docgen-workers/internal/store"

	"github.com/google/uuid"
)

type Config struct {
	Service        string
	BatchSize      int
	FlushInterval  time.Duration
	MaxWindow      time.Duration
	RealtimeWindow time.Duration
	InsightsWindow time.Duration
}

func ConfigFrom(c config.AnalyticsConfig, service string) Config {
	return Config{
		Service:        service,
		BatchSize:      c.BatchSize,
		FlushInterval:  config.GetDuration(c.FlushInterval),
		MaxWindow:      time.Duration(c.MaxWindowDays) * 24 * time.Hour,
		RealtimeWindow: config.GetDuration(c.RealtimeWindow),
		InsightsWindow: config.GetDuration(c.InsightsWindow),
	}
}

func (c Config) withDefaults() Config {
	if c.Service == "" {
		c.Service = "document-generation"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Minute
	}
	if c.MaxWindow <= 0 {
		c.MaxWindow = 30 * 24 * time.Hour
	}
	if c.RealtimeWindow <= 0 {
		c.RealtimeWindow = time.Minute
	}
	if c.InsightsWindow <= 0 {
		c.InsightsWindow = 24 * time.Hour
	}
	return c
}

// CacheStats is the view of the template cache used by the insight rules.
type CacheStats interface {
	Metrics() models.CacheMetrics
}

type Collector struct {
	mu     sync.Mutex
	buffer []models.PerformanceMetric
	recent []models.PerformanceMetric
	// inflight is the detached part of a flush the store has not accepted yet.
	inflight []models.PerformanceMetric

	// flushMu serialises drains; producers only take mu.
	flushMu sync.Mutex

	signal  chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool

	store store.MetricsStore
	cache CacheStats
	cfg   Config
	now   func() time.Time
	log   logger.Logger
}

type Option func(*Collector)

func WithCacheStats(cs CacheStats) Option {
	return func(c *Collector) { c.cache = cs }
}

func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

func NewCollector(ms store.MetricsStore, cfg Config, log logger.Logger, opts ...Option) *Collector {
	c := &Collector{
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		store:  ms,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record buffers one metric. Missing id, timestamp and service are filled
// in. Reaching the batch size wakes the flush loop.
func (c *Collector) Record(m models.PerformanceMetric) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = c.now()
	}
	if m.Service == "" {
		m.Service = c.cfg.Service
	}

	c.mu.Lock()
	c.buffer = append(c.buffer, m)
	if m.Operation == models.OperationGenerate {
		c.recent = append(c.recent, m)
		c.pruneRecentLocked(c.now())
	}
	full := len(c.buffer) >= c.cfg.BatchSize
	size := len(c.buffer)
	c.mu.Unlock()

	metrics.MetricsBuffered.Set(float64(size))
	if full {
		select {
		case c.signal <- struct{}{}:
		default:
		}
	}
}

// Buffered returns the number of metrics not yet written.
func (c *Collector) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// Flush drains the buffer in batch-sized chunks. Chunks that could not be
// written go back to the front of the buffer.
func (c *Collector) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	pending := c.buffer
	c.buffer = nil
	c.inflight = pending
	c.mu.Unlock()

	for start := 0; start < len(pending); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := c.store.InsertBatch(ctx, pending[start:end]); err != nil {
			c.requeue(pending[start:])
			metrics.MetricsFlushFailures.Inc()
			flushErr := apperrors.NewMetricsFlushFailedError(len(pending)-start, err)
			c.log.Error("Failed to flush performance metrics", map[string]interface{}{
				"error":    err.Error(),
				"requeued": len(pending) - start,
				"code":     flushErr.Code,
			})
			return flushErr
		}
		c.mu.Lock()
		c.inflight = pending[end:]
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.inflight = nil
	metrics.MetricsBuffered.Set(float64(len(c.buffer)))
	c.mu.Unlock()
	if len(pending) > 0 {
		c.log.Debug("Flushed performance metrics", map[string]interface{}{"count": len(pending)})
	}
	return nil
}

func (c *Collector) requeue(unwritten []models.PerformanceMetric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	merged := make([]models.PerformanceMetric, 0, len(unwritten)+len(c.buffer))
	merged = append(merged, unwritten...)
	merged = append(merged, c.buffer...)
	c.buffer = merged
	c.inflight = nil
	metrics.MetricsBuffered.Set(float64(len(c.buffer)))
}

// Start runs the flush loop until Stop is called or ctx ends.
func (c *Collector) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.cfg.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
			case <-c.signal:
			}
			_ = c.Flush(ctx)
		}
	}()
}

// Stop ends the flush loop and writes whatever is still buffered.
func (c *Collector) Stop(ctx context.Context) error {
	c.once.Do(func() { close(c.stop) })
	if c.started.Load() {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.Flush(ctx)
}

// pruneRecentLocked drops every entry older than the realtime window.
// Callers may supply their own timestamps, so recent is not assumed sorted.
func (c *Collector) pruneRecentLocked(now time.Time) {
	cutoff := now.Add(-c.cfg.RealtimeWindow)
	kept := c.recent[:0]
	for _, m := range c.recent {
		if !m.Timestamp.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	for i := len(kept); i < len(c.recent); i++ {
		c.recent[i] = models.PerformanceMetric{}
	}
	c.recent = kept
}

// RealtimeSnapshot summarises the aggregate metrics recorded within the
// realtime window.
func (c *Collector) RealtimeSnapshot() models.RealtimeSnapshot {
	c.mu.Lock()
	c.pruneRecentLocked(c.now())
	window := append([]models.PerformanceMetric(nil), c.recent...)
	buffered := len(c.buffer)
	c.mu.Unlock()

	snap := models.RealtimeSnapshot{BufferedMetrics: buffered}
	if len(window) == 0 {
		return snap
	}

	var total int64
	ok := 0
	templates := map[string]struct{}{}
	for _, m := range window {
		total += m.DurationMs
		if m.Success {
			ok++
		}
		if m.TemplateID != "" {
			templates[m.TemplateID] = struct{}{}
		}
	}
	snap.RequestsPerMinute = float64(len(window)) / c.cfg.RealtimeWindow.Minutes()
	snap.AverageResponseTime = float64(total) / float64(len(window))
	snap.SuccessRate = float64(ok) / float64(len(window))
	snap.ActiveTemplates = len(templates)
	return snap
}

// bufferedIn returns unwritten metrics, in flight or buffered, with
// timestamps inside [from, to].
func (c *Collector) bufferedIn(from, to time.Time) []models.PerformanceMetric {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.PerformanceMetric
	for _, set := range [][]models.PerformanceMetric{c.inflight, c.buffer} {
		for _, m := range set {
			if !m.Timestamp.Before(from) && !m.Timestamp.After(to) {
				out = append(out, m)
			}
		}
	}
	return out
}
