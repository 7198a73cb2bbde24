package service

import (
	"context"

	"fieldcomply/internal/cache"
	"fieldcomply/internal/compliance/recompute"
	id "fieldcomply/pkg/domain"
	dErrors "fieldcomply/pkg/domain-errors"
)

// HandleJob runs a queued recompute. A missing entity yields a CodeNotFound
// error, which the pool treats as final.
func (s *Service) HandleJob(ctx context.Context, job recompute.Job) error {
	switch job.Kind {
	case recompute.KindTechnician:
		tech, err := s.store.FindTechnician(ctx, id.TechnicianID(job.EntityID))
		if err != nil {
			return translate(err, "technician")
		}
		defer s.cache.Invalidate(cache.CategoryTechnician)
		if job.SyncPending {
			if _, err := s.scorer.SyncTechnicianPending(ctx, tech); err != nil {
				return err
			}
		}
		_, err = s.scorer.RecomputeTechnician(ctx, tech)
		return err

	case recompute.KindCompany:
		company, err := s.store.FindCompany(ctx, id.CompanyID(job.EntityID))
		if err != nil {
			return translate(err, "company")
		}
		defer s.cache.Invalidate(cache.CategoryCompany)
		if job.SyncPending {
			if _, err := s.scorer.SyncCompanyPending(ctx, company); err != nil {
				return err
			}
		}
		_, err = s.scorer.RecomputeCompany(ctx, company)
		return err

	default:
		return dErrors.New(dErrors.CodeInvalidInput, "unknown job kind "+string(job.Kind))
	}
}
