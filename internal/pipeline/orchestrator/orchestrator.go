// Package orchestrator runs a document request through classification,
// instruction selection, template resolution and a single completion call.
package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/metrics"
	"docgen-workers/internal/common/observability"
	"docgen-workers/internal/common/tokens"
	"docgen-workers/internal/common/validation"
	"docgen-workers/internal/completion"
	"docgen-workers/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Classifier interface {
	Classify(message string) models.IntentClassification
}

type InstructionSelector interface {
	SelectForClassification(c models.IntentClassification) (models.InstructionSelection, error)
}

type TemplateResolver interface {
	Get(ctx context.Context, id string, category models.Category, subcategory string) (*models.Template, error)
}

type MetricsRecorder interface {
	Record(m models.PerformanceMetric)
}

type MetadataQueue interface {
	Enqueue(templateID string, update models.MetadataUpdate) bool
}

type Dependencies struct {
	Classifier Classifier
	Selector   InstructionSelector
	Templates  TemplateResolver
	Completion completion.Client
	Metrics    MetricsRecorder
	Metadata   MetadataQueue
}

type Orchestrator struct {
	deps      Dependencies
	cfg       Config
	tracer    trace.Tracer
	obs       *observability.Observability
	estimator tokens.Estimator
	now       func() time.Time
	log       logger.Logger
}

type Option func(*Orchestrator)

// WithObservability records document counters and uses its tracer.
func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) {
		o.obs = obs
		o.tracer = obs.Tracer()
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithEstimator(est tokens.Estimator) Option {
	return func(o *Orchestrator) { o.estimator = est }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(deps Dependencies, cfg Config, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:      deps,
		cfg:       cfg.withDefaults(),
		tracer:    otel.Tracer("docgen/orchestrator"),
		estimator: tokens.Default(),
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ClassifyOnly runs the classifier without generating anything.
func (o *Orchestrator) ClassifyOnly(message string) models.IntentClassification {
	return o.deps.Classifier.Classify(message)
}

// request carries the per-call state shared by the stages.
type request struct {
	started time.Time
	intent  models.IntentClassification
	meta    models.ResponseMetadata
	log     logger.Logger
}

// Generate produces one document. A request that still needs details is
// answered with the clarifying question and no completion call.
func (o *Orchestrator) Generate(ctx context.Context, req models.DocumentRequest) (*models.DocumentResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apperrors.NewInvalidRequestError("message must not be empty")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "document.generate")
	defer span.End()

	r := &request{
		started: o.now(),
		meta: models.ResponseMetadata{
			RequestID:    uuid.NewString(),
			StageTimings: map[string]int64{},
		},
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		r.meta.TraceID = sc.TraceID().String()
	}
	r.log = o.log.With(map[string]interface{}{
		"requestId": r.meta.RequestID,
		"traceId":   r.meta.TraceID,
		"agentId":   req.AgentID,
	})

	// classify
	elapsed, _ := o.stage(ctx, models.OperationClassify, func(context.Context) error {
		r.intent = o.deps.Classifier.Classify(req.Message)
		return nil
	})
	r.meta.Category = r.intent.Category
	r.meta.Subcategory = r.intent.Subcategory
	span.SetAttributes(
		attribute.String("docgen.category", string(r.intent.Category)),
		attribute.Float64("docgen.confidence", r.intent.Confidence),
	)
	o.recordStage(r, models.OperationClassify, elapsed, "", nil)

	if r.intent.NeedsClarification {
		return o.clarify(ctx, r), nil
	}

	// select instructions
	var selection models.InstructionSelection
	elapsed, err := o.stage(ctx, models.OperationSelect, func(context.Context) error {
		var err error
		selection, err = o.deps.Selector.SelectForClassification(r.intent)
		return err
	})
	o.recordStage(r, models.OperationSelect, elapsed, "", err)
	if err != nil {
		return nil, o.fail(ctx, r, models.OperationSelect, "", false, err)
	}
	r.meta.InstructionTokens = selection.EstimatedTokens

	// resolve templates
	var resolved []*models.Template
	elapsed, _ = o.stage(ctx, models.OperationResolve, func(ctx context.Context) error {
		resolved = o.resolve(ctx, r)
		return nil
	})
	var primary *models.Template
	if len(resolved) > 0 {
		primary = resolved[0]
		for _, alt := range resolved[1:] {
			r.meta.Alternatives = append(r.meta.Alternatives, alt.ID)
		}
		o.recordStage(r, models.OperationResolve, elapsed, primary.ID, nil)
	} else {
		primary = genericTemplate(r.intent)
		r.meta.FallbackTemplate = true
		o.recordStage(r, models.OperationResolve, elapsed, primary.ID, fmt.Errorf("no candidate template resolved"))
		r.log.Warn("No candidate template resolved, using generic template", map[string]interface{}{
			"category":   r.intent.Category,
			"candidates": r.intent.LikelyTemplates,
		})
	}
	span.SetAttributes(attribute.String("docgen.template", primary.ID))

	// complete
	bundle := bundleFor(selection, primary.ID)
	values := knownValues(r.intent.ExtractedFields, req.Context)
	if rejected := dropInvalid(values, bundle.ValidationRules); len(rejected) > 0 {
		r.meta.InvalidFields = rejected
		r.log.Warn("Dropped values that break field rules", map[string]interface{}{
			"templateId": primary.ID,
			"fields":     rejected,
		})
	}
	prompt := tokens.Truncate(o.estimator, userPrompt(req.Message, primary, values), o.cfg.MaxPromptTokens)

	var result *completion.Response
	elapsed, err = o.stage(ctx, models.OperationComplete, func(ctx context.Context) error {
		var err error
		result, err = o.deps.Completion.Complete(ctx, completion.Request{
			System:      selection.Instructions,
			User:        prompt,
			MaxTokens:   o.cfg.MaxTokens,
			Temperature: o.cfg.Temperature,
		})
		return err
	})
	if err != nil {
		o.recordStage(r, models.OperationComplete, elapsed, primary.ID, err)
		return nil, o.fail(ctx, r, models.OperationComplete, primary.ID, r.meta.FallbackTemplate, err)
	}
	o.recordStage(r, models.OperationComplete, elapsed, primary.ID, nil, result.TotalTokens)
	metrics.CompletionTokens.WithLabelValues(o.deps.Completion.Provider()).Add(float64(result.TotalTokens))

	// finalize
	content, missing := finalize(result.Text, values)
	if bundle.OutputFormat.MaskPhoneNumbers {
		content = validation.MaskPhoneNumbers(content)
	}
	r.meta.MissingFields = missing

	total := o.now().Sub(r.started)
	o.recordAggregate(r, total, primary.ID, nil, result.TotalTokens)
	o.finish(ctx, r, primary.ID, total, true, r.meta.FallbackTemplate)

	r.log.Info("Document generated", map[string]interface{}{
		"templateId": primary.ID,
		"category":   r.intent.Category,
		"tokens":     result.TotalTokens,
		"durationMs": total.Milliseconds(),
		"missing":    len(missing),
	})

	return &models.DocumentResponse{
		Content:          content,
		TemplateID:       primary.ID,
		TemplateName:     primary.Name,
		ProcessingTimeMs: total.Milliseconds(),
		TokensUsed:       result.TotalTokens,
		Confidence:       r.intent.Confidence,
		Metadata:         r.meta,
	}, nil
}

func (o *Orchestrator) clarify(ctx context.Context, r *request) *models.DocumentResponse {
	total := o.now().Sub(r.started)
	r.meta.NeedsClarification = true
	r.meta.Questions = r.intent.SuggestedQuestions
	r.meta.Alternatives = r.intent.LikelyTemplates

	o.recordAggregate(r, total, "", nil, 0)
	metrics.DocumentRequests.WithLabelValues(string(r.intent.Category), "clarification").Inc()
	if o.obs != nil {
		o.obs.RecordDocument(ctx, string(r.intent.Category), total, true)
	}
	r.log.Info("Request needs clarification", map[string]interface{}{
		"category":   r.intent.Category,
		"confidence": r.intent.Confidence,
	})

	return &models.DocumentResponse{
		Content:          strings.Join(r.intent.SuggestedQuestions, "\n"),
		ProcessingTimeMs: total.Milliseconds(),
		Confidence:       r.intent.Confidence,
		Metadata:         r.meta,
	}
}

// resolve looks up the top candidates concurrently and returns the ones
// that resolved, in ranking order.
func (o *Orchestrator) resolve(ctx context.Context, r *request) []*models.Template {
	cands := r.intent.Candidates
	if len(cands) == 0 {
		for _, id := range r.intent.LikelyTemplates {
			cands = append(cands, models.Candidate{TemplateID: id, Subcategory: r.intent.Subcategory})
		}
	}
	if len(cands) > o.cfg.MaxCandidates {
		cands = cands[:o.cfg.MaxCandidates]
	}

	found := make([]*models.Template, len(cands))
	var wg sync.WaitGroup
	for i, c := range cands {
		wg.Add(1)
		go func(i int, c models.Candidate) {
			defer wg.Done()
			t, err := o.deps.Templates.Get(ctx, c.TemplateID, r.intent.Category, c.Subcategory)
			if err != nil {
				r.log.Warn("Template lookup failed", map[string]interface{}{
					"templateId": c.TemplateID,
					"code":       apperrors.CodeOf(err),
					"error":      err.Error(),
				})
				return
			}
			found[i] = t
		}(i, c)
	}
	wg.Wait()

	out := make([]*models.Template, 0, len(found))
	for _, t := range found {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// stage runs fn inside a child span and reports its duration.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) (time.Duration, error) {
	ctx, span := o.tracer.Start(ctx, "document."+name)
	defer span.End()

	start := o.now()
	err := fn(ctx)
	elapsed := o.now().Sub(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	return elapsed, err
}

func (o *Orchestrator) recordStage(r *request, op string, elapsed time.Duration, templateID string, err error, tokensUsed ...int) {
	r.meta.StageTimings[op] = elapsed.Milliseconds()
	o.record(r, op, elapsed, templateID, err, tokensUsed...)
}

func (o *Orchestrator) recordAggregate(r *request, total time.Duration, templateID string, err error, tokensUsed int) {
	if tokensUsed > 0 {
		o.record(r, models.OperationGenerate, total, templateID, err, tokensUsed)
		return
	}
	o.record(r, models.OperationGenerate, total, templateID, err)
}

func (o *Orchestrator) record(r *request, op string, elapsed time.Duration, templateID string, err error, tokensUsed ...int) {
	if o.deps.Metrics == nil {
		return
	}
	conf := r.intent.Confidence
	m := models.PerformanceMetric{
		Timestamp:  o.now(),
		Service:    o.cfg.ServiceName,
		Operation:  op,
		DurationMs: elapsed.Milliseconds(),
		Success:    err == nil,
		TemplateID: templateID,
		Category:   string(r.intent.Category),
		Confidence: &conf,
	}
	if len(tokensUsed) > 0 {
		n := tokensUsed[0]
		m.Tokens = &n
	}
	if err != nil {
		m.Error = errorLabel(err)
	}
	o.deps.Metrics.Record(m)
}

// errorLabel keeps error messages groupable in the dashboard.
func errorLabel(err error) string {
	if stdErr, ok := apperrors.As(err); ok {
		return fmt.Sprintf("%s: %s", stdErr.Code, stdErr.Message)
	}
	return err.Error()
}

func (o *Orchestrator) fail(ctx context.Context, r *request, stage, templateID string, generic bool, cause error) error {
	var out *apperrors.StandardError
	if stage == models.OperationComplete && isTimeout(ctx, cause) {
		out = apperrors.NewCompletionTimeoutError(cause).
			WithMetadata("stage", stage).
			WithMetadata("templateId", templateID)
	} else {
		if stage == models.OperationComplete {
			cause = apperrors.NewCompletionFailedError(o.deps.Completion.Provider(), cause)
		}
		out = apperrors.NewGenerationFailedError(stage, templateID, cause)
	}
	out.WithMetadata("requestId", r.meta.RequestID)

	total := o.now().Sub(r.started)
	o.recordAggregate(r, total, templateID, out, 0)
	o.finish(ctx, r, templateID, total, false, generic)

	r.log.Error("Document generation failed", map[string]interface{}{
		"stage":      stage,
		"templateId": templateID,
		"code":       out.Code,
		"error":      cause.Error(),
	})
	trace.SpanFromContext(ctx).SetStatus(codes.Error, string(out.Code))
	return out
}

// finish updates counters and queues the template usage update. Generic
// templates have no stored metadata.
func (o *Orchestrator) finish(ctx context.Context, r *request, templateID string, total time.Duration, success, generic bool) {
	outcome := "success"
	if !success {
		outcome = "failed"
	}
	metrics.DocumentRequests.WithLabelValues(string(r.intent.Category), outcome).Inc()
	if o.obs != nil {
		o.obs.RecordDocument(ctx, string(r.intent.Category), total, success)
	}
	if templateID == "" || generic || o.deps.Metadata == nil {
		return
	}
	o.deps.Metadata.Enqueue(templateID, models.MetadataUpdate{
		DurationMs: total.Milliseconds(),
		Success:    success,
		UsedAt:     o.now(),
	})
}

func isTimeout(ctx context.Context, err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded)
}
