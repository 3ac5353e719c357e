package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docgen-workers/internal/common/database"
	"docgen-workers/internal/models"

	"github.com/supabase-community/postgrest-go"
)

type templateRow struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Subcategory     string          `json:"subcategory"`
	Content         string          `json:"content"`
	Variables       []string        `json:"variables"`
	RequiredFields  []string        `json:"required_fields"`
	OptionalFields  []string        `json:"optional_fields"`
	Instructions    string          `json:"instructions"`
	EstimatedTokens int             `json:"estimated_tokens"`
	Version         string          `json:"version"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

func (r templateRow) toModel() (*models.Template, error) {
	t := &models.Template{
		ID:              r.ID,
		Name:            r.Name,
		Category:        models.Category(r.Category),
		Subcategory:     r.Subcategory,
		Content:         r.Content,
		Variables:       r.Variables,
		RequiredFields:  r.RequiredFields,
		OptionalFields:  r.OptionalFields,
		Instructions:    r.Instructions,
		EstimatedTokens: r.EstimatedTokens,
		Version:         r.Version,
	}
	if r.UpdatedAt != nil {
		t.UpdatedAt = *r.UpdatedAt
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode template %s metadata: %w", r.ID, err)
		}
	}
	return t, nil
}

func rowFromModel(t *models.Template) templateRow {
	return templateRow{
		ID:              t.ID,
		Name:            t.Name,
		Category:        string(t.Category),
		Subcategory:     t.Subcategory,
		Content:         t.Content,
		Variables:       nonNil(t.Variables),
		RequiredFields:  nonNil(t.RequiredFields),
		OptionalFields:  nonNil(t.OptionalFields),
		Instructions:    t.Instructions,
		EstimatedTokens: t.EstimatedTokens,
		Version:         t.Version,
	}
}

// SupabaseTemplateStore talks to the templates table through PostgREST.
type SupabaseTemplateStore struct {
	sb *database.SupabaseClient
}

func NewSupabaseTemplateStore(sb *database.SupabaseClient) *SupabaseTemplateStore {
	return &SupabaseTemplateStore{sb: sb}
}

func (s *SupabaseTemplateStore) GetByTemplateID(_ context.Context, id string) (*models.Template, error) {
	var rows []templateRow
	_, err := s.sb.Client.From("templates").
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].toModel()
}

func (s *SupabaseTemplateStore) List(_ context.Context, filter models.TemplateFilter) ([]models.Template, error) {
	q := s.sb.Client.From("templates").Select("*", "", false)
	if filter.Category != "" {
		q = q.Eq("category", string(filter.Category))
	}
	if filter.Text != "" {
		q = q.Ilike("name", "%"+filter.Text+"%")
	}
	if filter.OrderByUsage {
		q = q.Order("metadata->usageCount", &postgrest.OrderOpts{Ascending: false})
	} else {
		q = q.Order("id", &postgrest.OrderOpts{Ascending: true})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit, "")
	}

	var rows []templateRow
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]models.Template, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// Upsert writes the definition columns only; usage metadata is owned by
// UpdateMetadata and preserved across imports.
func (s *SupabaseTemplateStore) Upsert(_ context.Context, t *models.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	row := rowFromModel(t)
	now := time.Now().UTC()
	row.UpdatedAt = &now

	_, _, err := s.sb.Client.From("templates").
		Upsert(row, "id", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("upsert template %s: %w", t.ID, err)
	}
	return nil
}

// UpdateMetadata reads, patches and writes back the metadata document.
// PostgREST offers no row lock, so concurrent writers are last-wins.
func (s *SupabaseTemplateStore) UpdateMetadata(_ context.Context, id string, u models.MetadataUpdate) error {
	var rows []struct {
		Metadata json.RawMessage `json:"metadata"`
	}
	_, err := s.sb.Client.From("templates").
		Select("metadata", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("read template %s metadata: %w", id, err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}

	patched, err := PatchMetadata(rows[0].Metadata, u)
	if err != nil {
		return err
	}
	_, _, err = s.sb.Client.From("templates").
		Update(map[string]interface{}{"metadata": json.RawMessage(patched)}, "minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("update template %s metadata: %w", id, err)
	}
	return nil
}

type metricRow struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Service    string    `json:"service"`
	Operation  string    `json:"operation"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Tokens     *int      `json:"tokens"`
	TemplateID *string   `json:"template_id"`
	Category   *string   `json:"category"`
	Confidence *float64  `json:"confidence"`
	Error      *string   `json:"error"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

type SupabaseMetricsStore struct {
	sb *database.SupabaseClient
}

func NewSupabaseMetricsStore(sb *database.SupabaseClient) *SupabaseMetricsStore {
	return &SupabaseMetricsStore{sb: sb}
}

func (s *SupabaseMetricsStore) InsertBatch(_ context.Context, metrics []models.PerformanceMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	rows := make([]metricRow, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, metricRow{
			ID:         m.ID,
			Timestamp:  m.Timestamp.UTC(),
			Service:    m.Service,
			Operation:  m.Operation,
			DurationMs: m.DurationMs,
			Success:    m.Success,
			Tokens:     m.Tokens,
			TemplateID: optString(m.TemplateID),
			Category:   optString(m.Category),
			Confidence: m.Confidence,
			Error:      optString(m.Error),
		})
	}
	// Upsert on id so a re-sent chunk is idempotent.
	_, _, err := s.sb.Client.From("performance_metrics").
		Upsert(rows, "id", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert %d metrics: %w", len(rows), err)
	}
	return nil
}

func (s *SupabaseMetricsStore) Range(_ context.Context, from, to time.Time) ([]models.PerformanceMetric, error) {
	var rows []metricRow
	_, err := s.sb.Client.From("performance_metrics").
		Select("*", "", false).
		Gte("timestamp", from.UTC().Format(time.RFC3339Nano)).
		Lte("timestamp", to.UTC().Format(time.RFC3339Nano)).
		Order("timestamp", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("range metrics: %w", err)
	}

	out := make([]models.PerformanceMetric, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.PerformanceMetric{
			ID:         r.ID,
			Timestamp:  r.Timestamp,
			Service:    r.Service,
			Operation:  r.Operation,
			DurationMs: r.DurationMs,
			Success:    r.Success,
			Tokens:     r.Tokens,
			TemplateID: derefString(r.TemplateID),
			Category:   derefString(r.Category),
			Confidence: r.Confidence,
			Error:      derefString(r.Error),
		})
	}
	return out, nil
}
