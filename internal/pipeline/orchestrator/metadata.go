package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/models"
)

// MetadataWriter is the part of the template store the updater needs.
type MetadataWriter interface {
	UpdateMetadata(ctx context.Context, id string, update models.MetadataUpdate) error
}

type metadataJob struct {
	templateID string
	update     models.MetadataUpdate
}

// MetadataUpdater applies template usage statistics off the request path.
// Enqueue never blocks: when the queue is full the update is dropped.
type MetadataUpdater struct {
	store   MetadataWriter
	queue   chan metadataJob
	workers int
	timeout time.Duration
	log     logger.Logger

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
	applied atomic.Int64
}

func NewMetadataUpdater(st MetadataWriter, workers, queueSize int, log logger.Logger) *MetadataUpdater {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &MetadataUpdater{
		store:   st,
		queue:   make(chan metadataJob, queueSize),
		workers: workers,
		timeout: 5 * time.Second,
		log:     log,
	}
}

func (u *MetadataUpdater) Start(ctx context.Context) {
	for i := 0; i < u.workers; i++ {
		u.wg.Add(1)
		go u.run(ctx)
	}
}

func (u *MetadataUpdater) run(ctx context.Context) {
	defer u.wg.Done()
	for job := range u.queue {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.timeout)
		err := u.store.UpdateMetadata(callCtx, job.templateID, job.update)
		cancel()
		if err != nil {
			u.log.Warn("Template metadata update failed", map[string]interface{}{
				"templateId": job.templateID,
				"error":      err.Error(),
			})
			continue
		}
		u.applied.Add(1)
	}
}

// Enqueue reports whether the update was accepted.
func (u *MetadataUpdater) Enqueue(templateID string, update models.MetadataUpdate) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.closed {
		return false
	}
	select {
	case u.queue <- metadataJob{templateID: templateID, update: update}:
		return true
	default:
		u.dropped.Add(1)
		u.log.Warn("Metadata queue full, dropping update", map[string]interface{}{
			"templateId": templateID,
			"queueSize":  cap(u.queue),
		})
		return false
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (u *MetadataUpdater) Stop() {
	u.mu.Lock()
	if !u.closed {
		u.closed = true
		close(u.queue)
	}
	u.mu.Unlock()
	u.wg.Wait()
}

func (u *MetadataUpdater) Dropped() int64 { return u.dropped.Load() }
func (u *MetadataUpdater) Applied() int64 { return u.applied.Load() }
