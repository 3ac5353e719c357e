// Package app wires the document pipeline from configuration. The serve
// command and the end-to-end tests both build the process through Build.
package app

import (
	"context"
	"fmt"
	"net/http"

	"docgen-workers/internal/api"
	"docgen-workers/internal/common/camunda"
	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/observability"
	"docgen-workers/internal/completion"
	"docgen-workers/internal/models"
	"docgen-workers/internal/pipeline/analytics"
	"docgen-workers/internal/pipeline/cache"
	"docgen-workers/internal/pipeline/classifier"
	"docgen-workers/internal/pipeline/instructions"
	"docgen-workers/internal/pipeline/orchestrator"
	"docgen-workers/internal/store"
	performanceinsights "docgen-workers/internal/workers/analytics/performance-insights"
	classifyintent "docgen-workers/internal/workers/documents/classify-intent"
	generatedocument "docgen-workers/internal/workers/documents/generate-document"

	"go.uber.org/zap"
)

// App holds every long-lived component of one process.
type App struct {
	Config       *config.Config
	Stores       *store.Stores
	Cache        *cache.TemplateCache
	Classifier   *classifier.Classifier
	Orchestrator *orchestrator.Orchestrator
	Collector    *analytics.Collector
	Updater      *orchestrator.MetadataUpdater
	Router       http.Handler

	obs     *observability.Observability
	log     logger.Logger
	ready   map[string]api.Check
	started bool
}

type Option func(*options)

type options struct {
	stores      *store.Stores
	completion  completion.Client
	noTelemetry bool
}

// WithStores skips store.Open and uses the given drivers.
func WithStores(s *store.Stores) Option {
	return func(o *options) { o.stores = s }
}

// WithCompletion replaces the configured completion provider.
func WithCompletion(c completion.Client) Option {
	return func(o *options) { o.completion = c }
}

// WithoutTelemetry leaves the global OTel providers untouched.
func WithoutTelemetry() Option {
	return func(o *options) { o.noTelemetry = true }
}

func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	stores := o.stores
	if stores == nil {
		var err error
		stores, err = store.Open(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("open stores: %w", err)
		}
	}

	a := &App{Config: cfg, Stores: stores, log: log}
	if err := a.build(o); err != nil {
		stores.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(o options) error {
	cfg := a.Config

	a.Cache = cache.New(a.Stores.Templates, cache.ConfigFrom(cfg.Cache),
		cache.WithSecondary(a.Stores.Source),
		cache.WithSearcher(a.Stores.Searcher),
		cache.WithIndexer(a.Stores.Indexer),
		cache.WithLogger(a.log.WithFields(map[string]interface{}{"component": "template-cache"})),
	)

	cls, err := classifier.New()
	if err != nil {
		return fmt.Errorf("load classifier patterns: %w", err)
	}
	a.Classifier = cls

	sel, err := instructions.New(a.log.WithFields(map[string]interface{}{"component": "instructions"}))
	if err != nil {
		return fmt.Errorf("load instruction bundles: %w", err)
	}

	llm := o.completion
	if llm == nil {
		llm, err = completion.New(cfg)
		if err != nil {
			return err
		}
	}

	service := cfg.Generation.ServiceName
	if service == "" {
		service = cfg.Observability.ServiceName
	}

	a.Collector = analytics.NewCollector(a.Stores.Metrics, analytics.ConfigFrom(cfg.Analytics, service),
		a.log.WithFields(map[string]interface{}{"component": "analytics"}),
		analytics.WithCacheStats(a.Cache))
	a.Updater = orchestrator.NewMetadataUpdater(a.Stores.Templates,
		cfg.Generation.MetadataWorkers, cfg.Generation.MetadataQueueSize,
		a.log.WithFields(map[string]interface{}{"component": "metadata"}))

	var orchOpts []orchestrator.Option
	if !o.noTelemetry {
		a.obs, err = observability.New(cfg.Observability.ServiceName, cfg.Observability.TraceSampleRatio)
		if err != nil {
			return fmt.Errorf("init observability: %w", err)
		}
		orchOpts = append(orchOpts, orchestrator.WithObservability(a.obs))
	}

	a.Orchestrator = orchestrator.New(orchestrator.Dependencies{
		Classifier: cls,
		Selector:   sel,
		Templates:  a.Cache,
		Completion: llm,
		Metrics:    a.Collector,
		Metadata:   a.Updater,
	}, orchestrator.ConfigFrom(cfg.Generation), a.log, orchOpts...)

	a.ready = a.checks()
	a.Router = api.NewRouter(api.Deps{
		Generator: a.Orchestrator,
		Templates: a.Cache,
		Analytics: a.Collector,
		Checks:    a.ready,
	}, a.log)
	return nil
}

func (a *App) checks() map[string]api.Check {
	checks := map[string]api.Check{
		"templates": func(ctx context.Context) error {
			_, err := a.Stores.Templates.List(ctx, models.TemplateFilter{Limit: 1})
			return err
		},
	}
	if pg := a.Stores.Postgres; pg != nil {
		checks["postgres"] = pg.Ping
	}
	return checks
}

// Start launches the background flush and metadata workers and warms the
// cache. A failed warm-up is logged, not returned.
func (a *App) Start(ctx context.Context) {
	if a.started {
		return
	}
	a.started = true
	a.Collector.Start(ctx)
	a.Updater.Start(ctx)

	n, err := a.Cache.Preload(ctx, models.TemplateFilter{Limit: a.Config.Cache.Capacity})
	if err != nil {
		a.log.Warn("template cache warm-up failed", map[string]interface{}{"error": err.Error()})
		return
	}
	a.log.Info("template cache warmed", map[string]interface{}{"templates": n})
}

// StartWorkers registers the enabled Zeebe workers on zeebe and adds the
// gateway to the /ready checks. Call it before the HTTP server starts.
func (a *App) StartWorkers(zeebe *camunda.Client, zapLog *zap.Logger) ([]*camunda.CamundaWorker, error) {
	gen, err := generatedocument.NewHandler(generatedocument.HandlerOptions{
		AppConfig: a.Config, Generator: a.Orchestrator, Logger: a.log, Retrier: zeebe.Retrier,
	})
	if err != nil {
		return nil, err
	}
	cls, err := classifyintent.NewHandler(classifyintent.HandlerOptions{
		AppConfig: a.Config, Classifier: a.Classifier, Logger: a.log, Retrier: zeebe.Retrier,
	})
	if err != nil {
		return nil, err
	}
	perf, err := performanceinsights.NewHandler(performanceinsights.HandlerOptions{
		AppConfig: a.Config, Analytics: a.Collector, Logger: a.log, Retrier: zeebe.Retrier,
	})
	if err != nil {
		return nil, err
	}

	client := zeebe.GetClient()
	var workers []*camunda.CamundaWorker
	for _, w := range []*camunda.CamundaWorker{
		gen.Register(client, zapLog),
		cls.Register(client, zapLog),
		perf.Register(client, zapLog),
	} {
		if w != nil {
			workers = append(workers, w)
		}
	}
	if len(workers) > 0 {
		a.ready["zeebe"] = zeebe.HealthCheck
	}
	return workers, nil
}

// Close stops the background workers, flushes buffered metrics and releases
// the stores. It returns the first error seen.
func (a *App) Close(ctx context.Context) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if a.started {
		a.Updater.Stop()
		keep(a.Collector.Stop(ctx))
	} else {
		keep(a.Collector.Flush(ctx))
	}
	if a.obs != nil {
		keep(a.obs.Shutdown(ctx))
	}
	keep(a.Stores.Close())
	return first
}
