// Package store holds the persistence drivers behind the template cache and
// the analytics collector.
package store

import (
	"context"
	"errors"
	"time"

	"docgen-workers/internal/models"
)

// ErrNotFound is returned by template lookups when no row matches.
var ErrNotFound = errors.New("TEMPLATE_NOT_FOUND")

type TemplateStore interface {
	GetByTemplateID(ctx context.Context, id string) (*models.Template, error)
	List(ctx context.Context, filter models.TemplateFilter) ([]models.Template, error)
	Upsert(ctx context.Context, t *models.Template) error
	UpdateMetadata(ctx context.Context, id string, update models.MetadataUpdate) error
}

type MetricsStore interface {
	InsertBatch(ctx context.Context, metrics []models.PerformanceMetric) error
	Range(ctx context.Context, from, to time.Time) ([]models.PerformanceMetric, error)
}

// TemplateSource is the secondary, read-only lookup consulted when the
// store misses or fails.
type TemplateSource interface {
	Get(ctx context.Context, id string) (*models.Template, error)
}

type TemplateSearcher interface {
	Search(ctx context.Context, filter models.TemplateFilter) ([]models.Template, error)
}

// TemplateIndexer is implemented by searchers that keep their own copy of
// the catalogue.
type TemplateIndexer interface {
	Index(ctx context.Context, t *models.Template) error
}

// ListSearcher answers searches with the store's own List filter.
type ListSearcher struct {
	Store TemplateStore
}

func (s ListSearcher) Search(ctx context.Context, filter models.TemplateFilter) ([]models.Template, error) {
	return s.Store.List(ctx, filter)
}
