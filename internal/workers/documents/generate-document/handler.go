package generatedocument

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
	"docgen-workers/internal/common/validation"
	"docgen-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

const TaskType = "generate-document"

var schema = validation.MustCompile(TaskType+" input", inputSchema)

type Generator interface {
	Generate(ctx context.Context, req models.DocumentRequest) (*models.DocumentResponse, error)
}

type Handler struct {
	config    *Config
	logger    logger.Logger
	generator Generator
	errors    *errors.ErrorHandler
	retrier   *camunda.Retrier
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Generator    Generator
	Logger       logger.Logger
	// Retrier resends complete commands; nil uses camunda.DefaultRetryConfig.
	Retrier      *camunda.Retrier
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("%s: generator is required", TaskType)
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
		generator: opts.Generator,
		errors:    errors.NewErrorHandler(log),
		retrier:   retrier,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing document generation job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := parseInput(job.GetVariables())
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
			return h.completeJob(ctx, client, job, output)
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
	return nil
}

func parseInput(variables string) (*Input, error) {
	if vr := schema.ValidateBytes([]byte(variables)); !vr.Valid {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("%v", vr.GetErrorMessages()))
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidRequestError(err.Error())
	}
	return &input, nil
}

// Execute runs one request through the generation pipeline.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	resp, err := h.generator.Generate(ctx, models.DocumentRequest{
		Message: input.Message,
		AgentID: input.AgentID,
		Context: input.Context,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		DocumentGenerated:  !resp.Metadata.NeedsClarification,
		TemplateID:         resp.TemplateID,
		Category:           string(resp.Metadata.Category),
		Confidence:         resp.Confidence,
		NeedsClarification: resp.Metadata.NeedsClarification,
		Questions:          resp.Metadata.Questions,
		MissingFields:      resp.Metadata.MissingFields,
		TokensUsed:         resp.TokensUsed,
		RequestID:          resp.Metadata.RequestID,
		FallbackTemplate:   resp.Metadata.FallbackTemplate,
	}
	if out.DocumentGenerated {
		out.Content = resp.Content
	}
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
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
	h.logger.Info("Document generation job completed", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"templateId":         output.TemplateID,
		"needsClarification": output.NeedsClarification,
	})
	return nil
}

// Register opens the job worker when the worker is enabled. It returns nil
// for a disabled worker.
func (h *Handler) Register(client zbc.Client, zapLog *zap.Logger) *camunda.CamundaWorker {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	return camunda.NewWorker(client, TaskType, h.config.MaxJobsActive, h.config.Timeout, h, zapLog)
}
