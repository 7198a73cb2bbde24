package recompute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fieldcomply/internal/compliance/metrics"
	dErrors "fieldcomply/pkg/domain-errors"
	"fieldcomply/pkg/platform/sentinel"
)

const (
	defaultConcurrency = 4
	defaultMaxAttempts    = 3
	defaultRequeueTimeout = 5 * time.Second
	dequeueBackoff        = time.Second
)

// Handler performs one job.
type Handler interface {
	HandleJob(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) HandleJob(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Pool pulls jobs from a Queue and runs them on a fixed number of workers.
// Failed jobs go back on the queue until MaxAttempts is reached. Jobs whose
// entity no longer exists, or that are malformed, are dropped immediately.
//
// Workers are the queue's only consumers, so a requeue never waits longer than
// the requeue timeout or past shutdown. A retry that cannot be placed in time
// is dropped.
type Pool struct {
	queue          Queue
	handler        Handler
	concurrency    int
	maxAttempts    int
	requeueTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type PoolOption func(*Pool)

func WithConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithMaxAttempts(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithRequeueTimeout bounds how long a worker waits to put a failed job back.
func WithRequeueTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.requeueTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) PoolOption {
	return func(p *Pool) {
		p.metrics = m
	}
}

func NewPool(queue Queue, handler Handler, opts ...PoolOption) (*Pool, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	p := &Pool{
		queue:          queue,
		handler:        handler,
		concurrency:    defaultConcurrency,
		maxAttempts:    defaultMaxAttempts,
		requeueTimeout: defaultRequeueTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Enqueue forwards jobs to the queue.
func (p *Pool) Enqueue(ctx context.Context, jobs ...Job) error {
	if len(jobs) == 0 {
		return nil
	}
	if err := p.queue.Enqueue(ctx, jobs...); err != nil {
		return err
	}
	for range jobs {
		p.metrics.IncJob("enqueued")
	}
	return nil
}

// Run dispatches jobs until ctx is cancelled or the queue is closed, then waits
// for in-flight jobs to finish.
func (p *Pool) Run(ctx context.Context) error {
	jobsCh := make(chan Job, p.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobsCh)
		for {
			job, err := p.queue.Dequeue(gctx)
			switch {
			case err == nil:
			case errors.Is(err, sentinel.ErrClosed), gctx.Err() != nil:
				return nil
			default:
				p.logger.ErrorContext(gctx, "recompute dequeue failed", "error", err)
				select {
				case <-gctx.Done():
					return nil
				case <-time.After(dequeueBackoff):
				}
				continue
			}
			select {
			case <-gctx.Done():
				return nil
			case jobsCh <- job:
			}
		}
	})

	for i := 0; i < p.concurrency; i++ {
		g.Go(func() error {
			for job := range jobsCh {
				p.process(gctx, job)
			}
			return nil
		})
	}

	return g.Wait()
}

// process runs one job. The handler runs to completion even after shutdown
// starts; the requeue of a failed job is bounded by runCtx and the requeue
// timeout.
func (p *Pool) process(runCtx context.Context, job Job) {
	ctx := context.WithoutCancel(runCtx)
	err := p.handler.HandleJob(ctx, job)
	if err == nil {
		p.metrics.IncJob("succeeded")
		return
	}

	if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		p.metrics.IncJob("dropped")
		p.logger.WarnContext(ctx, "dropping unprocessable recompute job",
			"job_id", job.ID,
			"kind", job.Kind,
			"entity_id", job.EntityID,
			"error", err,
		)
		return
	}

	next := job.Retry()
	if next.Attempt >= p.maxAttempts {
		p.metrics.IncJob("dropped")
		p.logger.ErrorContext(ctx, "recompute job exhausted retries",
			"job_id", job.ID,
			"kind", job.Kind,
			"entity_id", job.EntityID,
			"attempts", next.Attempt,
			"error", err,
		)
		return
	}

	requeueCtx, cancel := context.WithTimeout(runCtx, p.requeueTimeout)
	defer cancel()
	if qerr := p.queue.Enqueue(requeueCtx, next); qerr != nil {
		p.metrics.IncJob("dropped")
		p.logger.ErrorContext(ctx, "failed to requeue recompute job",
			"job_id", job.ID,
			"kind", job.Kind,
			"entity_id", job.EntityID,
			"attempt", next.Attempt,
			"error", errors.Join(err, qerr),
		)
		return
	}
	p.metrics.IncJob("retried")
	p.logger.WarnContext(ctx, "recompute job failed, requeued",
		"job_id", job.ID,
		"kind", job.Kind,
		"entity_id", job.EntityID,
		"attempt", next.Attempt,
		"error", err,
	)
}
