package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	DocumentRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_requests_total",
			Help: "Document generation requests by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgen_stage_duration_seconds",
			Help:    "Duration of each generation stage",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	CacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_template_cache_events_total",
			Help: "Template cache hits, misses, expirations and evictions",
		},
		[]string{"event"},
	)

	CompletionTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_completion_tokens_total",
			Help: "Tokens consumed by the completion service",
		},
		[]string{"provider"},
	)

	MetricsBuffered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docgen_analytics_buffered_metrics",
			Help: "Performance metrics waiting to be flushed",
		},
	)

	MetricsFlushFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docgen_analytics_flush_failures_total",
			Help: "Failed metric batch writes",
		},
	)
)
