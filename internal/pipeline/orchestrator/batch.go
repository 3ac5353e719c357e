package orchestrator

import (
	"context"
	"sync"

	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/models"

	"golang.org/x/sync/semaphore"
)

// GenerateMultiple runs the requests with at most BatchConcurrency in
// flight. Results are returned in input order.
func (o *Orchestrator) GenerateMultiple(ctx context.Context, reqs []models.DocumentRequest) []models.BatchResult {
	results := make([]models.BatchResult, len(reqs))
	sem := semaphore.NewWeighted(int64(o.cfg.BatchConcurrency))

	var wg sync.WaitGroup
	for i, req := range reqs {
		results[i].Index = i
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Error = err.Error()
			results[i].Code = string(apperrors.CodeOf(err))
			continue
		}
		wg.Add(1)
		go func(i int, req models.DocumentRequest) {
			defer wg.Done()
			defer sem.Release(1)

			resp, err := o.Generate(ctx, req)
			if err != nil {
				results[i].Code = string(apperrors.CodeOf(err))
				if stdErr, ok := apperrors.As(err); ok {
					results[i].Error = stdErr.Message
				} else {
					results[i].Error = err.Error()
				}
				return
			}
			results[i].Response = resp
		}(i, req)
	}
	wg.Wait()
	return results
}
