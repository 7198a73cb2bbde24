package recompute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"fieldcomply/pkg/platform/sentinel"
)

const (
	defaultRedisKey = "fieldcomply:recompute"
	redisPollWait   = time.Second
)

// RedisQueue stores jobs in a Redis list: LPUSH to enqueue, BRPOP to dequeue.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *slog.Logger

	closed    chan struct{}
	closeOnce sync.Once
}

func NewRedisQueue(client *redis.Client, key string, logger *slog.Logger) *RedisQueue {
	if key == "" {
		key = defaultRedisKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisQueue{client: client, key: key, logger: logger, closed: make(chan struct{})}
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobs ...Job) error {
	if len(jobs) == 0 {
		return nil
	}
	values := make([]any, 0, len(jobs))
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return err
		}
		b, err := encode(j)
		if err != nil {
			return err
		}
		values = append(values, b)
	}
	if err := q.client.LPush(ctx, q.key, values...).Err(); err != nil {
		return fmt.Errorf("enqueue recompute jobs: %w", err)
	}
	return nil
}

// Dequeue polls with a short BRPOP timeout so closing the queue is noticed.
// Undecodable payloads are logged and skipped.
func (q *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		select {
		case <-q.closed:
			return Job{}, sentinel.ErrClosed
		case <-ctx.Done():
			return Job{}, ctx.Err()
		default:
		}

		res, err := q.client.BRPop(ctx, redisPollWait, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("dequeue recompute job: %w", err)
		}
		// BRPOP replies with [key, value].
		j, err := decode([]byte(res[1]))
		if err != nil {
			q.logger.ErrorContext(ctx, "dropping malformed recompute job",
				"key", q.key,
				"error", err,
			)
			continue
		}
		return j, nil
	}
}

// Len reports queued jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close stops Dequeue. The client belongs to the caller and stays open.
func (q *RedisQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
	return nil
}
