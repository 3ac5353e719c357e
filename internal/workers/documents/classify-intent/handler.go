package classifyintent

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

const TaskType = "classify-intent"

type Classifier interface {
	Classify(message string) models.IntentClassification
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	classifier Classifier
	errors     *errors.ErrorHandler
	retrier    *camunda.Retrier
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Classifier   Classifier
	Logger       logger.Logger
	// Retrier resends complete commands; nil uses camunda.DefaultRetryConfig.
	Retrier      *camunda.Retrier
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Classifier == nil {
		return nil, fmt.Errorf("%s: classifier is required", TaskType)
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
	return &Handler{config: cfg, logger: log, classifier: opts.Classifier, errors: errors.NewErrorHandler(log), retrier: retrier}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		err = errors.NewInvalidRequestError(err.Error())
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return nil
	}

	output := h.Execute(&input)

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

// Execute never fails: an unclear or empty message classifies to the
// fallback category.
func (h *Handler) Execute(input *Input) *Output {
	c := h.classifier.Classify(input.Message)
	h.logger.Debug("Message classified", map[string]interface{}{
		"category":   c.Category,
		"confidence": c.Confidence,
		"fallback":   c.Fallback,
	})
	return &Output{
		Category:           string(c.Category),
		Subcategory:        c.Subcategory,
		Confidence:         c.Confidence,
		LikelyTemplates:    c.LikelyTemplates,
		NeedsClarification: c.NeedsClarification,
		Questions:          c.SuggestedQuestions,
		ExtractedFields:    c.ExtractedFields,
		FallbackUsed:       c.Fallback,
	}
}

func (h *Handler) Register(client zbc.Client, zapLog *zap.Logger) *camunda.CamundaWorker {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	return camunda.NewWorker(client, TaskType, h.config.MaxJobsActive, h.config.Timeout, h, zapLog)
}
