package recompute_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"fieldcomply/internal/compliance/recompute"
	"fieldcomply/pkg/platform/sentinel"
)

func TestRedisQueueClose(t *testing.T) {
	// Close and Dequeue after close never touch the client.
	q := recompute.NewRedisQueue(nil, "", nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, q.Close())
		}()
	}
	wg.Wait()

	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, sentinel.ErrClosed)
}
