// Package score recomputes and persists entity compliance.
//
// Recompute updates the in-memory entity before the durable write so callers that
// chain further reads see the fresh result. A failed write is returned to the
// caller but is not rolled back in memory; the next fetch from the store
// reconciles the two. Concurrent recomputes of the same entity race on the store
// with last-write-wins semantics.
package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fieldcomply/internal/compliance/metrics"
	"fieldcomply/internal/compliance/models"
	"fieldcomply/internal/compliance/requirements"
	id "fieldcomply/pkg/domain"
	dErrors "fieldcomply/pkg/domain-errors"
	"fieldcomply/pkg/platform/sentinel"
	"fieldcomply/pkg/requestcontext"
)

const (
	entityTechnician = "technician"
	entityCompany    = "company"
)

// Service recomputes technician and company compliance.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

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

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	svc := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("fieldcomply/score"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RecomputeTechnician resolves the technician's requirements, evaluates its
// credentials, applies the result to tech and persists it.
func (s *Service) RecomputeTechnician(ctx context.Context, tech *models.Technician) (models.Result, error) {
	if tech == nil {
		return models.Result{}, dErrors.New(dErrors.CodeInvalidInput, "technician is required")
	}
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "score.RecomputeTechnician",
		trace.WithAttributes(attribute.String("technician_id", tech.ID.String())))
	defer span.End()

	required, err := s.RequiredForTechnician(ctx, tech)
	if err != nil {
		return s.fail(span, entityTechnician, start, models.Result{}, err)
	}

	result := Evaluate(required, tech.Credentials, requestcontext.Now(ctx))
	tech.ApplyResult(result)

	if err := s.store.SaveTechnicianResult(ctx, tech.ID, result); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist technician compliance",
			"technician_id", tech.ID,
			"score", result.Score,
			"status", result.Status,
			"error", err,
		)
		return s.fail(span, entityTechnician, start, result,
			persistError(err, "technician"))
	}

	span.SetAttributes(attribute.Int("score", result.Score), attribute.String("status", result.Status.String()))
	s.metrics.ObserveRecompute(entityTechnician, start, nil)
	return result, nil
}

// RecomputeCompany does the same for a company's own accreditation.
func (s *Service) RecomputeCompany(ctx context.Context, company *models.Company) (models.Result, error) {
	if company == nil {
		return models.Result{}, dErrors.New(dErrors.CodeInvalidInput, "company is required")
	}
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "score.RecomputeCompany",
		trace.WithAttributes(attribute.String("company_id", company.ID.String())))
	defer span.End()

	required, err := s.RequiredForCompany(ctx, company)
	if err != nil {
		return s.fail(span, entityCompany, start, models.Result{}, err)
	}

	result := Evaluate(required, company.Credentials, requestcontext.Now(ctx))
	company.ApplyResult(result)

	if err := s.store.SaveCompanyResult(ctx, company.ID, result); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist company compliance",
			"company_id", company.ID,
			"score", result.Score,
			"status", result.Status,
			"error", err,
		)
		return s.fail(span, entityCompany, start, result,
			persistError(err, "company"))
	}

	s.metrics.ObserveRecompute(entityCompany, start, nil)
	return result, nil
}

// RequiredForTechnician loads the catalog and linked companies and resolves the
// technician's requirement set.
func (s *Service) RequiredForTechnician(ctx context.Context, tech *models.Technician) (models.Set[id.DocumentTypeID], error) {
	catalog, err := s.store.ListDocumentTypes(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document catalog")
	}
	companies, err := s.store.FindCompanies(ctx, tech.CompanyIDs.Slice())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load linked companies")
	}
	return requirements.NewResolver(catalog, companies).Technician(tech), nil
}

// RequiredForCompany resolves the company's own requirement set.
func (s *Service) RequiredForCompany(ctx context.Context, company *models.Company) (models.Set[id.DocumentTypeID], error) {
	catalog, err := s.store.ListDocumentTypes(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document catalog")
	}
	return requirements.ForCompany(company, catalog), nil
}

// SyncTechnicianPending inserts a PENDING credential for every required document
// the technician has no record for. It returns the document types inserted.
func (s *Service) SyncTechnicianPending(ctx context.Context, tech *models.Technician) ([]id.DocumentTypeID, error) {
	required, err := s.RequiredForTechnician(ctx, tech)
	if err != nil {
		return nil, err
	}
	creds := pendingFor(required, tech.Credentials, requestcontext.Now(ctx))
	if len(creds) == 0 {
		return nil, nil
	}
	if err := s.store.InsertTechnicianCredentials(ctx, tech.ID, creds); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert pending credentials")
	}
	tech.Credentials = append(tech.Credentials, creds...)
	s.metrics.AddPendingInserted(len(creds))
	s.logger.InfoContext(ctx, "inserted pending technician credentials",
		"technician_id", tech.ID,
		"count", len(creds),
	)
	return documentIDs(creds), nil
}

// SyncCompanyPending is SyncTechnicianPending for a company's own accreditation.
func (s *Service) SyncCompanyPending(ctx context.Context, company *models.Company) ([]id.DocumentTypeID, error) {
	required, err := s.RequiredForCompany(ctx, company)
	if err != nil {
		return nil, err
	}
	creds := pendingFor(required, company.Credentials, requestcontext.Now(ctx))
	if len(creds) == 0 {
		return nil, nil
	}
	if err := s.store.InsertCompanyCredentials(ctx, company.ID, creds); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert pending credentials")
	}
	company.Credentials = append(company.Credentials, creds...)
	s.metrics.AddPendingInserted(len(creds))
	return documentIDs(creds), nil
}

func (s *Service) fail(span trace.Span, entity string, start time.Time, result models.Result, err error) (models.Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.metrics.ObserveRecompute(entity, start, err)
	return result, err
}

// persistError codes a failed result write. An entity deleted since it was
// loaded is CodeNotFound so queued recomputes for it are dropped.
func persistError(err error, what string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist "+what+" compliance")
	}
}

func pendingFor(required models.Set[id.DocumentTypeID], held []models.Credential, now time.Time) []models.Credential {
	var out []models.Credential
	for _, docID := range required.Slice() {
		if _, ok := models.CredentialFor(held, docID); ok {
			continue
		}
		out = append(out, models.Credential{
			ID:             id.NewCredentialID(),
			DocumentTypeID: docID,
			Status:         models.StatusPending,
			UpdatedAt:      now,
		})
	}
	return out
}

func documentIDs(creds []models.Credential) []id.DocumentTypeID {
	out := make([]id.DocumentTypeID, len(creds))
	for i, c := range creds {
		out[i] = c.DocumentTypeID
	}
	return out
}
