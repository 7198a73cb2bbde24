package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fieldcomply/pkg/domain"
)

func (m *Manager) trackedKeys() (gens, inflight int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.gens), len(m.inflight)
}

func TestInvalidationDoesNotRetainGenerations(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("evicting idle keys leaves nothing behind", func(t *testing.T) {
		for range 3 {
			m.Set(TechnicianKey(id.NewTechnicianID()), 1, Realtime)
		}
		require.Len(t, m.Invalidate(CategoryTechnician), 3)

		gens, inflight := m.trackedKeys()
		assert.Zero(t, gens)
		assert.Zero(t, inflight)
	})

	t.Run("generation is dropped once the invalidated fetch finishes", func(t *testing.T) {
		key := TechnicianKey(id.NewTechnicianID())
		started, release := make(chan struct{}), make(chan struct{})
		done := make(chan error, 1)
		go func() {
			_, err := GetOrFetch(ctx, m, key, Realtime, func(context.Context) (int, error) {
				close(started)
				<-release
				return 1, nil
			})
			done <- err
		}()

		<-started
		m.Invalidate(CategoryTechnician)
		gens, _ := m.trackedKeys()
		assert.Equal(t, 1, gens)

		close(release)
		require.NoError(t, <-done)

		_, ok := m.Get(key)
		assert.False(t, ok)
		gens, inflight := m.trackedKeys()
		assert.Zero(t, gens)
		assert.Zero(t, inflight)
	})
}
