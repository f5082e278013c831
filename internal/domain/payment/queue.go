package payment

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LocalQueue is an in-process Queue drained by a fixed pool of workers. It is
// used when no message broker is configured.
type LocalQueue struct {
	jobs    chan Job
	workers int
}

// NewLocalQueue creates a LocalQueue buffering up to size jobs.
func NewLocalQueue(size, workers int) *LocalQueue {
	if workers < 1 {
		workers = 1
	}
	return &LocalQueue{jobs: make(chan Job, size), workers: workers}
}

// Enqueue implements Queue. It blocks while the buffer is full.
func (q *LocalQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run feeds queued jobs to handle until ctx is cancelled. Handler errors are
// logged and do not stop the workers.
func (q *LocalQueue) Run(ctx context.Context, handle Handler) error {
	g, ctx := errgroup.WithContext(ctx)
	for range q.workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-q.jobs:
					if err := handle(ctx, job); err != nil {
						zctx.From(ctx).Error("Payment job failed",
							zap.String("transaction_id", job.TransactionID),
							zap.Error(err),
						)
					}
				}
			}
		})
	}
	return g.Wait()
}
