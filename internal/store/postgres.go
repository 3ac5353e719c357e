package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docgen-workers/internal/common/database"
	"docgen-workers/internal/models"

	"github.com/lib/pq"
)

const templateColumns = `id, name, category, subcategory, content, variables, required_fields,
	optional_fields, instructions, estimated_tokens, version, metadata, updated_at`

type PostgresTemplateStore struct {
	pg *database.PostgresClient
}

func NewPostgresTemplateStore(pg *database.PostgresClient) *PostgresTemplateStore {
	return &PostgresTemplateStore{pg: pg}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var (
		t                        models.Template
		category                 string
		variables, required, opt []byte
		metadata                 []byte
	)
	if err := row.Scan(&t.ID, &t.Name, &category, &t.Subcategory, &t.Content,
		&variables, &required, &opt, &t.Instructions, &t.EstimatedTokens,
		&t.Version, &metadata, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Category = models.Category(category)

	for _, col := range []struct {
		raw  []byte
		dest interface{}
	}{
		{variables, &t.Variables},
		{required, &t.RequiredFields},
		{opt, &t.OptionalFields},
		{metadata, &t.Metadata},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("decode template %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

func (s *PostgresTemplateStore) GetByTemplateID(ctx context.Context, id string) (*models.Template, error) {
	row := s.pg.DB.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *PostgresTemplateStore) List(ctx context.Context, filter models.TemplateFilter) ([]models.Template, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Text != "" {
		args = append(args, "%"+filter.Text+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR content ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + templateColumns + ` FROM templates`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.OrderByUsage {
		query += " ORDER BY COALESCE((metadata->>'usageCount')::bigint, 0) DESC, id"
	} else {
		query += " ORDER BY id"
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pg.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Upsert writes the template definition. Stored usage metadata survives a
// re-import; only the tags are replaced.
func (s *PostgresTemplateStore) Upsert(ctx context.Context, t *models.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	variables, _ := json.Marshal(nonNil(t.Variables))
	required, _ := json.Marshal(nonNil(t.RequiredFields))
	optional, _ := json.Marshal(nonNil(t.OptionalFields))
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return err
	}
	tags, _ := json.Marshal(nonNil(t.Metadata.Tags))

	_, err = s.pg.DB.ExecContext(ctx, `
		INSERT INTO templates (id, name, category, subcategory, content, variables, required_fields,
			optional_fields, instructions, estimated_tokens, version, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			subcategory = EXCLUDED.subcategory,
			content = EXCLUDED.content,
			variables = EXCLUDED.variables,
			required_fields = EXCLUDED.required_fields,
			optional_fields = EXCLUDED.optional_fields,
			instructions = EXCLUDED.instructions,
			estimated_tokens = EXCLUDED.estimated_tokens,
			version = EXCLUDED.version,
			metadata = jsonb_set(templates.metadata, '{tags}', $13::jsonb),
			updated_at = now()`,
		t.ID, t.Name, string(t.Category), t.Subcategory, t.Content, variables, required,
		optional, t.Instructions, t.EstimatedTokens, t.Version, metadata, tags)
	return err
}

// UpdateMetadata performs a locked read-modify-write of the metadata column.
func (s *PostgresTemplateStore) UpdateMetadata(ctx context.Context, id string, u models.MetadataUpdate) error {
	return s.pg.WithTx(ctx, func(tx *sql.Tx) error {
		var raw []byte
		err := tx.QueryRowContext(ctx, `SELECT metadata FROM templates WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		patched, err := PatchMetadata(raw, u)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE templates SET metadata = $2 WHERE id = $1`, id, patched)
		return err
	})
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

type PostgresMetricsStore struct {
	pg *database.PostgresClient
}

func NewPostgresMetricsStore(pg *database.PostgresClient) *PostgresMetricsStore {
	return &PostgresMetricsStore{pg: pg}
}

// InsertBatch writes all metrics in one transaction. Rows whose id already
// exists are skipped so a retried chunk does not duplicate history.
func (s *PostgresMetricsStore) InsertBatch(ctx context.Context, metrics []models.PerformanceMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return s.pg.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO performance_metrics (id, timestamp, service, operation, duration_ms, success,
				tokens, template_id, category, confidence, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range metrics {
			if _, err := stmt.ExecContext(ctx, m.ID, m.Timestamp, m.Service, m.Operation, m.DurationMs,
				m.Success, nullInt(m.Tokens), nullString(m.TemplateID), nullString(m.Category),
				nullFloat(m.Confidence), nullString(m.Error)); err != nil {
				return fmt.Errorf("insert metric %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

func (s *PostgresMetricsStore) Range(ctx context.Context, from, to time.Time) ([]models.PerformanceMetric, error) {
	rows, err := s.pg.DB.QueryContext(ctx, `
		SELECT id, timestamp, service, operation, duration_ms, success, tokens, template_id,
			category, confidence, error
		FROM performance_metrics
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PerformanceMetric
	for rows.Next() {
		var (
			m                         models.PerformanceMetric
			tokens                    sql.NullInt64
			templateID, category, msg sql.NullString
			confidence                sql.NullFloat64
		)
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Service, &m.Operation, &m.DurationMs, &m.Success,
			&tokens, &templateID, &category, &confidence, &msg); err != nil {
			return nil, err
		}
		if tokens.Valid {
			n := int(tokens.Int64)
			m.Tokens = &n
		}
		if confidence.Valid {
			c := confidence.Float64
			m.Confidence = &c
		}
		m.TemplateID = templateID.String
		m.Category = category.String
		m.Error = msg.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// IsConnectionError reports whether err looks like a lost connection rather
// than a rejected statement.
func IsConnectionError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08"
	}
	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
