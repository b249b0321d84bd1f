package jobservice

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fairlie/keel/internal/apperr"
)

// Runner executes queued jobs on a fixed pool of workers.
type Runner struct {
	svc     *Service
	queue   chan string
	workers int
	logger  *slog.Logger
}

// NewRunner creates a runner with the given pool size and queue depth.
func NewRunner(svc *Service, workers, queueSize int, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		svc:     svc,
		queue:   make(chan string, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// Enqueue hands a job to the pool without blocking. A full queue
// reports ErrConflict so callers can surface backpressure.
func (r *Runner) Enqueue(jobID string) error {
	select {
	case r.queue <- jobID:
		return nil
	default:
		return fmt.Errorf("jobservice: job queue full: %w", apperr.ErrConflict)
	}
}

// Pending returns the number of queued jobs not yet picked up.
func (r *Runner) Pending() int {
	return len(r.queue)
}

// Run consumes the queue until ctx is cancelled. It blocks; callers
// usually hold it in an errgroup next to the HTTP server.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner started", slog.Int("workers", r.workers), slog.Int("queue_size", cap(r.queue)))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id := <-r.queue:
					// RunJob records failures on the job itself; the
					// error here only feeds the log.
					if err := r.svc.RunJob(ctx, id); err != nil {
						r.logger.Warn("job run failed",
							slog.String("job_id", id),
							slog.String("error", err.Error()))
					}
				}
			}
		})
	}
	err := g.Wait()
	r.logger.Info("runner stopped")
	return err
}
