// Package cache keeps recently used templates in memory in front of the
// template store.
package cache

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"docgen-workers/internal/common/config"
	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/metrics"
	"docgen-workers/internal/models"
	"docgen-workers/internal/store"
)

const (
	DefaultCapacity        = 100
	DefaultTTL             = 30 * time.Minute
	DefaultRecencyWeight   = 1.0
	DefaultFrequencyWeight = time.Minute
)

type Config struct {
	Capacity        int
	TTL             time.Duration
	RecencyWeight   float64
	FrequencyWeight time.Duration
}

// ConfigFrom converts the millisecond based config section.
func ConfigFrom(c config.CacheConfig) Config {
	return Config{
		Capacity:        c.Capacity,
		TTL:             config.GetDuration(c.TTL),
		RecencyWeight:   c.RecencyWeight,
		FrequencyWeight: config.GetDuration(c.FrequencyWeight),
	}
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.RecencyWeight <= 0 {
		c.RecencyWeight = DefaultRecencyWeight
	}
	if c.FrequencyWeight <= 0 {
		c.FrequencyWeight = DefaultFrequencyWeight
	}
	return c
}

// TemplateCache is a TTL cache keyed by category/subcategory/id. When it
// grows past capacity the entries with the lowest recency+frequency score
// are evicted. Store I/O happens outside the lock, so concurrent misses for
// one key may each reach the store.
type TemplateCache struct {
	mu      sync.Mutex
	entries map[string]*models.CacheEntry
	stats   models.CacheMetrics

	cfg       Config
	store     store.TemplateStore
	secondary store.TemplateSource
	searcher  store.TemplateSearcher
	indexer   store.TemplateIndexer
	now       func() time.Time
	log       logger.Logger
}

type Option func(*TemplateCache)

// WithSecondary sets the source consulted when the store misses or fails.
func WithSecondary(src store.TemplateSource) Option {
	return func(c *TemplateCache) { c.secondary = src }
}

func WithSearcher(s store.TemplateSearcher) Option {
	return func(c *TemplateCache) { c.searcher = s }
}

// WithIndexer keeps a search index in step with Put.
func WithIndexer(ix store.TemplateIndexer) Option {
	return func(c *TemplateCache) { c.indexer = ix }
}

func WithClock(now func() time.Time) Option {
	return func(c *TemplateCache) { c.now = now }
}

func WithLogger(log logger.Logger) Option {
	return func(c *TemplateCache) { c.log = log }
}

func New(st store.TemplateStore, cfg Config, opts ...Option) *TemplateCache {
	c := &TemplateCache{
		entries: make(map[string]*models.CacheEntry),
		cfg:     cfg.withDefaults(),
		store:   st,
		now:     time.Now,
		log:     logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.searcher == nil {
		c.searcher = store.ListSearcher{Store: st}
	}
	return c
}

// Get returns a copy of the template, loading it on a miss or after expiry.
func (c *TemplateCache) Get(ctx context.Context, id string, category models.Category, subcategory string) (*models.Template, error) {
	key := models.CacheKey(category, subcategory, id)
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if now.Sub(e.CachedAt) < c.cfg.TTL {
			e.AccessCount++
			e.LastAccessed = now
			c.stats.Hits++
			t := e.Template.Clone()
			c.mu.Unlock()
			metrics.CacheEvents.WithLabelValues("hit").Inc()
			return t, nil
		}
		delete(c.entries, key)
		c.stats.Expirations++
		metrics.CacheEvents.WithLabelValues("expired").Inc()
	}
	c.stats.Misses++
	c.mu.Unlock()
	metrics.CacheEvents.WithLabelValues("miss").Inc()

	t, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.insert(key, t)
	return t.Clone(), nil
}

func (c *TemplateCache) load(ctx context.Context, id string) (*models.Template, error) {
	t, err := c.store.GetByTemplateID(ctx, id)
	if err == nil {
		c.count(func(s *models.CacheMetrics) { s.StoreLoads++ })
		return t, nil
	}

	notFound := stderrors.Is(err, store.ErrNotFound)
	if !notFound {
		c.log.Warn("Template store read failed, trying secondary source", map[string]interface{}{
			"templateId": id,
			"error":      err.Error(),
		})
	}

	if c.secondary != nil {
		if t, serr := c.secondary.Get(ctx, id); serr == nil {
			c.count(func(s *models.CacheMetrics) { s.FallbackLoads++ })
			return t, nil
		}
	}

	if notFound {
		return nil, apperrors.NewTemplateNotFoundError(id)
	}
	c.count(func(s *models.CacheMetrics) { s.LoadErrors++ })
	return nil, apperrors.NewTemplateUnavailableError(id, err)
}

// Put writes the template to the store and replaces any cached copy.
func (c *TemplateCache) Put(ctx context.Context, t *models.Template) error {
	if err := t.Validate(); err != nil {
		return apperrors.NewTemplateValidationFailedError(err.Error())
	}
	if err := c.store.Upsert(ctx, t); err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	if c.indexer != nil {
		if err := c.indexer.Index(ctx, t); err != nil {
			c.log.Warn("Template index update failed", map[string]interface{}{
				"templateId": t.ID,
				"error":      err.Error(),
			})
		}
	}

	c.mu.Lock()
	for key, e := range c.entries {
		if e.Template.ID == t.ID {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	c.insert(t.CacheKey(), t)
	return nil
}

// Search queries the configured searcher. Results not yet cached are added.
func (c *TemplateCache) Search(ctx context.Context, query models.TemplateFilter) ([]models.Template, error) {
	found, err := c.searcher.Search(ctx, query)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError("template_search", err)
	}
	for i := range found {
		c.warm(&found[i])
	}
	return found, nil
}

// Preload lists templates from the store and caches them. It returns how
// many were loaded.
func (c *TemplateCache) Preload(ctx context.Context, filter models.TemplateFilter) (int, error) {
	list, err := c.store.List(ctx, filter)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("template_preload", err)
	}
	for i := range list {
		c.insert(list[i].CacheKey(), &list[i])
	}
	return len(list), nil
}

// Invalidate drops one entry and reports whether it existed.
func (c *TemplateCache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Snapshot returns a copy of the entry stored under key.
func (c *TemplateCache) Snapshot(key string) (models.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return models.CacheEntry{}, false
	}
	out := *e
	out.Template = e.Template.Clone()
	return out, true
}

func (c *TemplateCache) Metrics() models.CacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.stats
	m.Size = len(c.entries)
	m.Capacity = c.cfg.Capacity
	if total := m.Hits + m.Misses; total > 0 {
		m.HitRate = float64(m.Hits) / float64(total)
	}
	return m
}

func (c *TemplateCache) count(fn func(*models.CacheMetrics)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

func (c *TemplateCache) warm(t *models.Template) {
	key := t.CacheKey()
	c.mu.Lock()
	_, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		c.insert(key, t)
	}
}

func (c *TemplateCache) insert(key string, t *models.Template) {
	now := c.now()
	c.mu.Lock()
	c.entries[key] = &models.CacheEntry{
		Template:     t.Clone(),
		CachedAt:     now,
		AccessCount:  1,
		LastAccessed: now,
	}
	evicted := c.evictLocked()
	c.mu.Unlock()

	if evicted > 0 {
		metrics.CacheEvents.WithLabelValues("evicted").Add(float64(evicted))
	}
}

// evictLocked removes the lowest scoring entries until size <= capacity.
// Equal scores are broken by key so eviction is deterministic.
func (c *TemplateCache) evictLocked() int {
	over := len(c.entries) - c.cfg.Capacity
	if over <= 0 {
		return 0
	}

	type scored struct {
		key   string
		score float64
	}
	all := make([]scored, 0, len(c.entries))
	for key, e := range c.entries {
		all = append(all, scored{key: key, score: c.score(e)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score < all[j].score
		}
		return all[i].key < all[j].key
	})
	for _, s := range all[:over] {
		delete(c.entries, s.key)
	}
	c.stats.Evictions += int64(over)
	return over
}

func (c *TemplateCache) score(e *models.CacheEntry) float64 {
	return c.cfg.RecencyWeight*float64(e.LastAccessed.UnixMilli()) +
		float64(e.AccessCount)*float64(c.cfg.FrequencyWeight.Milliseconds())
}
