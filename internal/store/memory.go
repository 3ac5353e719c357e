package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"docgen-workers/internal/models"
)

// MemoryTemplateStore keeps templates in a map. It backs the file driver and
// the tests.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*models.Template
	now       func() time.Time
}

func NewMemoryTemplateStore(templates ...*models.Template) *MemoryTemplateStore {
	s := &MemoryTemplateStore{templates: make(map[string]*models.Template), now: time.Now}
	for _, t := range templates {
		s.templates[t.ID] = t.Clone()
	}
	return s
}

func (s *MemoryTemplateStore) GetByTemplateID(_ context.Context, id string) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryTemplateStore) List(_ context.Context, filter models.TemplateFilter) ([]models.Template, error) {
	s.mu.RLock()
	out := make([]models.Template, 0, len(s.templates))
	text := strings.ToLower(filter.Text)
	for _, t := range s.templates {
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(t.Name), text) &&
			!strings.Contains(strings.ToLower(t.Content), text) {
			continue
		}
		out = append(out, *t.Clone())
	}
	s.mu.RUnlock()

	sortTemplates(out, filter.OrderByUsage)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func sortTemplates(ts []models.Template, byUsage bool) {
	sort.SliceStable(ts, func(i, j int) bool {
		if byUsage && ts[i].Metadata.UsageCount != ts[j].Metadata.UsageCount {
			return ts[i].Metadata.UsageCount > ts[j].Metadata.UsageCount
		}
		return ts[i].ID < ts[j].ID
	})
}

func (s *MemoryTemplateStore) Upsert(_ context.Context, t *models.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := t.Clone()
	if prev, ok := s.templates[t.ID]; ok {
		next.Metadata = prev.Metadata
	}
	next.UpdatedAt = s.now()
	s.templates[t.ID] = next
	return nil
}

func (s *MemoryTemplateStore) UpdateMetadata(_ context.Context, id string, u models.MetadataUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return ErrNotFound
	}
	t.Metadata = ApplyUpdate(t.Metadata, u)
	return nil
}

type MemoryMetricsStore struct {
	mu      sync.Mutex
	metrics map[string]models.PerformanceMetric
	order   []string
}

func NewMemoryMetricsStore() *MemoryMetricsStore {
	return &MemoryMetricsStore{metrics: make(map[string]models.PerformanceMetric)}
}

// InsertBatch ignores metrics whose id was already written.
func (s *MemoryMetricsStore) InsertBatch(_ context.Context, metrics []models.PerformanceMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range metrics {
		if _, dup := s.metrics[m.ID]; dup {
			continue
		}
		s.metrics[m.ID] = m
		s.order = append(s.order, m.ID)
	}
	return nil
}

func (s *MemoryMetricsStore) Range(_ context.Context, from, to time.Time) ([]models.PerformanceMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PerformanceMetric
	for _, id := range s.order {
		m := s.metrics[id]
		if m.Timestamp.Before(from) || m.Timestamp.After(to) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryMetricsStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.metrics)
}
