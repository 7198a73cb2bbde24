// Package service orchestrates compliance reads and mutations.
//
// Reads go through the cache. Every mutation writes the store, recomputes the
// directly affected entity inline, evicts the cache categories it touches and
// queues recompute jobs for entities affected indirectly.
package service

import (
	"errors"
	"fmt"
	"log/slog"

	"fieldcomply/internal/cache"
	"fieldcomply/internal/compliance/score"
	dErrors "fieldcomply/pkg/domain-errors"
	"fieldcomply/pkg/platform/sentinel"
)

type Service struct {
	store  Store
	scorer *score.Service
	cache  *cache.Manager
	jobs   Enqueuer
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, scorer *score.Service, cacheManager *cache.Manager, jobs Enqueuer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if cacheManager == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if jobs == nil {
		return nil, fmt.Errorf("job queue is required")
	}
	svc := &Service{
		store:  store,
		scorer: scorer,
		cache:  cacheManager,
		jobs:   jobs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// translate maps store sentinels to coded errors. Errors that already carry a
// code pass through.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" conflict")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+what)
	}
}
