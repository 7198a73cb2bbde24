// Package cache is a process-local keyed store with tiered freshness,
// stale-while-revalidate refresh and category-driven invalidation.
//
// A live entry is served as is. Inside the last part of its TTL window (20% by
// default) a lookup also starts a background refetch that overwrites the entry
// when it completes. Concurrent lookups may each start a refetch for the same
// key; the last one to finish wins. Background refetches are detached from the
// caller's cancellation and run to completion or failure. A failed refetch is
// logged and the stale entry stays in place.
//
// Expired entries are dropped lazily on lookup. Invalidation bumps a per-key
// generation so that a fetch started before the invalidation cannot store its
// result afterwards.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const defaultRefreshFraction = 0.2

type entry struct {
	value     any
	storedAt  time.Time
	expiresAt time.Time
}

type lookupState int

const (
	stateMiss lookupState = iota
	stateHit
	stateStale
)

// Manager holds cached values. Construct one per process with New; tests build
// isolated instances.
type Manager struct {
	mu       sync.RWMutex
	entries  map[string]entry
	gens     map[string]uint64
	inflight map[string]int

	ttls            map[TTLClass]time.Duration
	refreshFraction float64
	graph           Graph
	clock           func() time.Time
	logger          *slog.Logger
	metrics         *Metrics

	refreshes sync.WaitGroup
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithClock overrides time.Now for expiry decisions.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithTTLs overrides the duration of individual TTL classes.
func WithTTLs(ttls map[TTLClass]time.Duration) Option {
	return func(m *Manager) {
		for class, d := range ttls {
			if d > 0 {
				m.ttls[class] = d
			}
		}
	}
}

// WithRefreshFraction sets the trailing share of a TTL window in which lookups
// trigger a background refresh. Values outside (0, 1) are ignored.
func WithRefreshFraction(f float64) Option {
	return func(m *Manager) {
		if f > 0 && f < 1 {
			m.refreshFraction = f
		}
	}
}

// WithGraph replaces the invalidation graph. New rejects incomplete graphs.
func WithGraph(g Graph) Option {
	return func(m *Manager) {
		m.graph = g
	}
}

func New(opts ...Option) (*Manager, error) {
	m := &Manager{
		entries:         make(map[string]entry),
		gens:            make(map[string]uint64),
		inflight:        make(map[string]int),
		ttls:            make(map[TTLClass]time.Duration, len(DefaultTTLs)),
		refreshFraction: defaultRefreshFraction,
		graph:           DefaultGraph,
		clock:           time.Now,
		logger:          slog.Default(),
	}
	for class, d := range DefaultTTLs {
		m.ttls[class] = d
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.graph.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// TTL returns the configured duration of class.
func (m *Manager) TTL(class TTLClass) time.Duration {
	if d, ok := m.ttls[class]; ok {
		return d
	}
	return m.ttls[Realtime]
}

// GetOrFetch returns the live value for key, fetching and storing it on a miss.
// Synchronous fetch errors are returned and nothing is stored.
func GetOrFetch[T any](ctx context.Context, m *Manager, key string, class TTLClass, fetch func(context.Context) (T, error)) (T, error) {
	if v, state := m.lookup(key); state != stateMiss {
		if typed, ok := v.(T); ok {
			if state == stateStale {
				m.refreshAsync(ctx, key, class, func(ctx context.Context) (any, error) {
					return fetch(ctx)
				})
			}
			return typed, nil
		}
		m.logger.WarnContext(ctx, "cache entry has unexpected type, refetching",
			"key", key,
			"type", fmt.Sprintf("%T", v),
		)
	}

	gen := m.beginFetch(key)
	start := time.Now()
	v, err := fetch(ctx)
	m.metrics.fetched("sync", start)
	if err != nil {
		m.endFetch(key)
		var zero T
		return zero, err
	}
	m.commit(key, class, v, gen)
	return v, nil
}

// Get returns the live value stored under key without fetching.
func (m *Manager) Get(key string) (any, bool) {
	v, state := m.lookup(key)
	return v, state != stateMiss
}

// Set stores value under key for the duration of class.
func (m *Manager) Set(key string, value any, class TTLClass) {
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, storedAt: now, expiresAt: now.Add(m.TTL(class))}
}

// Invalidate evicts every key the category depends on and returns the evicted
// keys in sorted order.
func (m *Manager) Invalidate(category Category) []string {
	patterns, ok := m.graph[category]
	if !ok {
		m.logger.Warn("invalidation requested for unknown category", "category", category)
		return nil
	}
	evicted := m.evict(patterns)
	m.metrics.evicted("invalidated", len(evicted))
	m.logger.Debug("cache invalidated",
		"category", category,
		"evicted", len(evicted),
	)
	return evicted
}

// Delete evicts exact keys or prefix patterns without consulting the graph.
func (m *Manager) Delete(patterns ...string) []string {
	evicted := m.evict(patterns)
	m.metrics.evicted("invalidated", len(evicted))
	return evicted
}

// Len counts stored entries, including expired ones not yet looked up.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Wait blocks until every background refresh started so far has finished.
func (m *Manager) Wait() {
	m.refreshes.Wait()
}

func (m *Manager) lookup(key string) (any, lookupState) {
	now := m.clock()

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		m.metrics.lookup("miss")
		return nil, stateMiss
	}
	if !now.Before(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && !now.Before(cur.expiresAt) {
			delete(m.entries, key)
			m.metrics.evicted("expired", 1)
		}
		m.mu.Unlock()
		m.metrics.lookup("miss")
		return nil, stateMiss
	}

	window := e.expiresAt.Sub(e.storedAt)
	remaining := e.expiresAt.Sub(now)
	if float64(remaining) <= float64(window)*m.refreshFraction {
		m.metrics.lookup("stale")
		return e.value, stateStale
	}
	m.metrics.lookup("hit")
	return e.value, stateHit
}

func (m *Manager) refreshAsync(ctx context.Context, key string, class TTLClass, fetch func(context.Context) (any, error)) {
	ctx = context.WithoutCancel(ctx)
	gen := m.beginFetch(key)
	m.refreshes.Add(1)
	go func() {
		defer m.refreshes.Done()
		start := time.Now()
		v, err := fetch(ctx)
		m.metrics.fetched("background", start)
		if err != nil {
			m.endFetch(key)
			m.metrics.refreshError()
			m.logger.WarnContext(ctx, "background cache refresh failed, keeping stale entry",
				"key", key,
				"error", err,
			)
			return
		}
		m.commit(key, class, v, gen)
	}()
}

// beginFetch registers an in-flight fetch for key and returns the generation it
// must still match when it stores.
func (m *Manager) beginFetch(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight[key]++
	return m.gens[key]
}

func (m *Manager) endFetch(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release(key)
}

func (m *Manager) commit(key string, class TTLClass, value any, gen uint64) {
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	invalidated := m.gens[key] != gen
	m.release(key)
	if invalidated {
		m.logger.Debug("discarding fetch result for invalidated key", "key", key)
		return
	}
	m.entries[key] = entry{value: value, storedAt: now, expiresAt: now.Add(m.TTL(class))}
}

// release must be called with mu held. Generations only guard in-flight
// fetches, so the counter goes with the last one.
func (m *Manager) release(key string) {
	if m.inflight[key] <= 1 {
		delete(m.inflight, key)
		delete(m.gens, key)
		return
	}
	m.inflight[key]--
}

func (m *Manager) evict(patterns []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []string
	for key := range m.entries {
		if matchesAny(patterns, key) {
			delete(m.entries, key)
			evicted = append(evicted, key)
		}
	}
	for key := range m.inflight {
		if matchesAny(patterns, key) {
			m.gens[key]++
		}
	}
	slices.Sort(evicted)
	return evicted
}

func matchesAny(patterns []string, key string) bool {
	for _, p := range patterns {
		if matches(p, key) {
			return true
		}
	}
	return false
}
