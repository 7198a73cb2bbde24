package alerts

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"fieldcomply/internal/compliance/metrics"
	"fieldcomply/internal/compliance/models"
	"fieldcomply/pkg/requestcontext"
)

// Source supplies the resolved state alerts are derived from. Implementations
// read through the cache, so a snapshot may lag the store by up to one TTL.
type Source interface {
	Technicians(ctx context.Context) ([]*models.Technician, error)
	Companies(ctx context.Context) ([]*models.Company, error)
}

type Service struct {
	source     Source
	thresholds Thresholds
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithThresholds(th Thresholds) Option {
	return func(s *Service) {
		s.thresholds = th
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(source Source, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	svc := &Service{
		source:     source,
		thresholds: DefaultThresholds,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Alerts loads technicians and companies concurrently and derives alerts from
// the combined snapshot.
func (s *Service) Alerts(ctx context.Context) ([]models.Alert, error) {
	var (
		technicians []*models.Technician
		companies   []*models.Company
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		technicians, err = s.source.Technicians(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		companies, err = s.source.Companies(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "failed to load alert inputs", "error", err)
		return nil, err
	}

	out := Derive(technicians, companies, requestcontext.Now(ctx), s.thresholds)
	for _, a := range out {
		s.metrics.IncAlert(a.Severity.String())
	}
	return out, nil
}
