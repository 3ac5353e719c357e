package performanceinsights

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docgen-workers/internal/common/camunda"
	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/metrics"
	"docgen-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

const (
	TaskType = "performance-insights"

	maxWindowHours = 30 * 24
)

type Analytics interface {
	Dashboard(ctx context.Context, tr models.TimeRange) (*models.AnalyticsDashboard, error)
	Insights(ctx context.Context) (*models.Insights, error)
}

type Handler struct {
	config    *Config
	logger    logger.Logger
	analytics Analytics
	errors    *errors.ErrorHandler
	retrier   *camunda.Retrier
	now       func() time.Time
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Analytics    Analytics
	Logger       logger.Logger
	// Retrier resends complete commands; nil uses camunda.DefaultRetryConfig.
	Retrier      *camunda.Retrier
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Analytics == nil {
		return nil, fmt.Errorf("%s: analytics collector is required", TaskType)
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	retrier := opts.Retrier
	if retrier == nil {
		retrier = camunda.NewRetrier(nil)
	}
	return &Handler{
		config:    cfg,
		logger:    log,
		analytics: opts.Analytics,
		errors:    errors.NewErrorHandler(log),
		retrier:   retrier,
		now:       time.Now,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	err := json.Unmarshal([]byte(job.GetVariables()), &input)
	if err != nil {
		err = errors.NewInvalidRequestError(err.Error())
	}
	var output *Output
	if err == nil {
		output, err = h.Execute(ctx, &input)
	}
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return nil
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("build complete command: %w", err)
	}
	if _, err := h.retrier.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return cmd.Send(ctx)
	}, "complete "+TaskType); err != nil {
		return fmt.Errorf("complete job %d: %w", job.GetKey(), err)
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	return nil
}

// Execute combines the insight rules with a dashboard summary of the
// requested window.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	window := h.config.DefaultWindow
	switch {
	case input.WindowHours < 0 || input.WindowHours > maxWindowHours:
		return nil, errors.NewInvalidTimeRangeError(fmt.Sprintf("windowHours must be between 1 and %d", maxWindowHours))
	case input.WindowHours > 0:
		window = time.Duration(input.WindowHours) * time.Hour
	}

	in, err := h.analytics.Insights(ctx)
	if err != nil {
		return nil, err
	}
	now := h.now()
	d, err := h.analytics.Dashboard(ctx, models.TimeRange{From: now.Add(-window), To: now})
	if err != nil {
		return nil, err
	}

	out := &Output{
		Recommendations:     in.Recommendations,
		Warnings:            in.Warnings,
		Optimizations:       in.Optimizations,
		TotalRequests:       d.TotalRequests,
		SuccessRate:         d.SuccessRate,
		AverageResponseTime: d.AverageResponseTime,
		P95ResponseTime:     d.P95ResponseTime,
		HasWarnings:         len(in.Warnings) > 0,
	}
	h.logger.Info("Performance insights generated", map[string]interface{}{
		"windowHours":   int(window.Hours()),
		"totalRequests": out.TotalRequests,
		"warnings":      len(out.Warnings),
	})
	return out, nil
}

func (h *Handler) Register(client zbc.Client, zapLog *zap.Logger) *camunda.CamundaWorker {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	return camunda.NewWorker(client, TaskType, h.config.MaxJobsActive, h.config.Timeout, h, zapLog)
}
