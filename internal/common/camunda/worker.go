package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// JobHandler is implemented by every task worker package.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

type HandlerFunc func(client worker.JobClient, job entities.Job) error

func (f HandlerFunc) Handle(client worker.JobClient, job entities.Job) error {
	return f(client, job)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. The handler is responsible for
// completing or failing the job; a returned error is only logged.
func NewWorker(
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	timeout time.Duration,
	handler JobHandler,
	logger *zap.Logger,
) *CamundaWorker {
	if maxJobsActive <= 0 {
		maxJobsActive = 5
	}
	step := client.NewJobWorker().
		JobType(taskType).
		Handler(func(jc worker.JobClient, job entities.Job) {
			if err := handler.Handle(jc, job); err != nil {
				logger.Error("handler returned error",
					zap.String("taskType", taskType),
					zap.Int64("jobKey", job.Key),
					zap.Error(err))
			}
		}).
		MaxJobsActive(maxJobsActive)
	if timeout > 0 {
		step = step.Timeout(timeout)
	}

	logger.Info("worker started", zap.String("taskType", taskType), zap.Int("maxJobsActive", maxJobsActive))
	return &CamundaWorker{
		worker:   step.Open(),
		logger:   logger,
		taskType: taskType,
	}
}

func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
	w.worker.AwaitClose()
}
