package store

import (
	"context"
	"fmt"

	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/database"
	"docgen-workers/internal/common/logger"
)

// Stores bundles the drivers selected by configuration.
type Stores struct {
	Templates TemplateStore
	Metrics   MetricsStore
	Source    TemplateSource
	Searcher  TemplateSearcher
	// Indexer is nil when Elasticsearch is disabled.
	Indexer TemplateIndexer
	// Postgres is set only for the postgres driver; migrate uses it.
	Postgres *database.PostgresClient

	closers []func() error
}

func (s *Stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open connects the configured template and metrics drivers, wraps the
// template store in the Redis read-through when enabled, and picks the
// searcher.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Stores, error) {
	source, err := NewFileSource(cfg.Template.RegistryPath)
	if err != nil {
		return nil, err
	}
	s := &Stores{Source: source}

	switch cfg.Store.Driver {
	case "postgres":
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		s.closers = append(s.closers, pg.Close)
		s.Postgres = pg
		s.Templates = NewPostgresTemplateStore(pg)
		s.Metrics = NewPostgresMetricsStore(pg)
	case "supabase":
		sb, err := database.NewSupabase(cfg.Database.Supabase)
		if err != nil {
			return nil, err
		}
		s.Templates = NewSupabaseTemplateStore(sb)
		s.Metrics = NewSupabaseMetricsStore(sb)
	case "file":
		s.Templates = NewMemoryTemplateStore(source.All()...)
		s.Metrics = NewMemoryMetricsStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.RedisCacheTTL > 0 {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := rc.Ping(ctx); err != nil {
			log.Warn("redis unreachable, read-through will fall back to the store", map[string]interface{}{"error": err})
		}
		s.closers = append(s.closers, rc.Close)
		s.Templates = NewRedisTemplateStore(s.Templates, rc.Client,
			config.GetDuration(cfg.Store.RedisCacheTTL), cfg.Store.RedisKeyPrefix, log)
	}

	s.Searcher = ListSearcher{Store: s.Templates}
	if cfg.Database.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			s.Close()
			return nil, err
		}
		idx := NewElasticsearchIndex(es.Client, es.Index)
		s.Searcher = idx
		s.Indexer = idx
	}

	log.Info("stores opened", map[string]interface{}{
		"driver":        cfg.Store.Driver,
		"redis":         cfg.Store.RedisCacheTTL > 0,
		"elasticsearch": cfg.Database.Elasticsearch.Enabled,
	})
	return s, nil
}
