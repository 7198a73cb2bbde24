package recompute

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"fieldcomply/pkg/platform/sentinel"
)

// KafkaQueue publishes jobs to a topic keyed by entity ID, so jobs for one
// entity land on one partition in order, and consumes them in a consumer group.
type KafkaQueue struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger

	mu      sync.Mutex
	pending []Job
}

// NewKafkaQueue wraps a client created with kgo.ConsumeTopics(topic) and
// kgo.ConsumerGroup. The queue owns the client and closes it.
func NewKafkaQueue(client *kgo.Client, topic string, logger *slog.Logger) *KafkaQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaQueue{client: client, topic: topic, logger: logger}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, jobs ...Job) error {
	if len(jobs) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(jobs))
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return err
		}
		b, err := encode(j)
		if err != nil {
			return err
		}
		records = append(records, &kgo.Record{
			Topic: q.topic,
			Key:   []byte(j.EntityID.String()),
			Value: b,
		})
	}
	if err := q.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce recompute jobs: %w", err)
	}
	return nil
}

// Dequeue returns buffered jobs first and polls the broker when the buffer is
// empty. Offsets are committed by the client's autocommit.
func (q *KafkaQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		if j, ok := q.pop(); ok {
			return j, nil
		}

		fetches := q.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return Job{}, sentinel.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			q.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var batch []Job
		fetches.EachRecord(func(r *kgo.Record) {
			j, err := decode(r.Value)
			if err != nil {
				q.logger.ErrorContext(ctx, "dropping malformed recompute job",
					"topic", r.Topic,
					"partition", r.Partition,
					"offset", r.Offset,
					"error", err,
				)
				return
			}
			batch = append(batch, j)
		})
		q.push(batch)
	}
}

func (q *KafkaQueue) Close() error {
	q.client.Close()
	return nil
}

func (q *KafkaQueue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Job{}, false
	}
	j := q.pending[0]
	q.pending = q.pending[1:]
	return j, true
}

func (q *KafkaQueue) push(jobs []Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, jobs...)
}
