package recompute

import (
	"context"
	"sync"

	"fieldcomply/pkg/platform/sentinel"
)

// Queue is a job transport. Dequeue blocks until a job arrives, ctx ends or the
// queue is closed, in which case it returns sentinel.ErrClosed.
type Queue interface {
	Enqueue(ctx context.Context, jobs ...Job) error
	Dequeue(ctx context.Context) (Job, error)
	Close() error
}

// MemoryQueue is a bounded in-process queue.
type MemoryQueue struct {
	jobs      chan Job
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryQueue{
		jobs: make(chan Job, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue blocks while the queue is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, jobs ...Job) error {
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return err
		}
		if q.isClosed() {
			return sentinel.ErrClosed
		}
		select {
		case <-q.done:
			return sentinel.ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		case q.jobs <- j:
		}
	}
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	if q.isClosed() {
		return Job{}, sentinel.ErrClosed
	}
	select {
	case <-q.done:
		return Job{}, sentinel.ErrClosed
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case j := <-q.jobs:
		return j, nil
	}
}

// Len reports buffered jobs.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	return nil
}

func (q *MemoryQueue) isClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}
