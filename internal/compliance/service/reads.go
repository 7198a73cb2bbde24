package service

import (
	"context"
	"math"
	"slices"
	"strings"

	"fieldcomply/internal/cache"
	"fieldcomply/internal/compliance/models"
	"fieldcomply/internal/compliance/status"
	id "fieldcomply/pkg/domain"
	"fieldcomply/pkg/requestcontext"
)

// Requirement is one required document with the holder's current standing.
type Requirement struct {
	DocumentType models.DocumentType `json:"document_type"`
	Status       models.Status       `json:"status"`
	Credential   *models.Credential  `json:"credential,omitempty"`
	DaysLeft     *int                `json:"days_left,omitempty"`
}

// Technicians returns every technician. The slice is shared with other readers
// and must not be modified.
func (s *Service) Technicians(ctx context.Context) ([]*models.Technician, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.KeyTechnicians, cache.Realtime,
		func(ctx context.Context) ([]*models.Technician, error) {
			techs, err := s.store.ListTechnicians(ctx)
			return techs, translate(err, "technicians")
		})
}

// Companies returns every company. The slice is shared and must not be modified.
func (s *Service) Companies(ctx context.Context) ([]*models.Company, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.KeyCompanies, cache.Short,
		func(ctx context.Context) ([]*models.Company, error) {
			companies, err := s.store.ListCompanies(ctx)
			return companies, translate(err, "companies")
		})
}

func (s *Service) DocumentTypes(ctx context.Context) ([]models.DocumentType, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.KeyDocumentTypes, cache.Long,
		func(ctx context.Context) ([]models.DocumentType, error) {
			docs, err := s.store.ListDocumentTypes(ctx)
			return docs, translate(err, "document types")
		})
}

func (s *Service) Technician(ctx context.Context, technicianID id.TechnicianID) (*models.Technician, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.TechnicianKey(technicianID), cache.Realtime,
		func(ctx context.Context) (*models.Technician, error) {
			tech, err := s.store.FindTechnician(ctx, technicianID)
			return tech, translate(err, "technician")
		})
}

func (s *Service) Company(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.CompanyKey(companyID), cache.Short,
		func(ctx context.Context) (*models.Company, error) {
			company, err := s.store.FindCompany(ctx, companyID)
			return company, translate(err, "company")
		})
}

// RequiredDocuments lists the technician's resolved requirements with the
// standing of each. The requirement set is cached; standings are evaluated at
// the request time so they never lag the calendar.
func (s *Service) RequiredDocuments(ctx context.Context, technicianID id.TechnicianID) ([]Requirement, error) {
	tech, err := s.Technician(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	required, err := cache.GetOrFetch(ctx, s.cache, cache.TechnicianRequirementsKey(technicianID), cache.Standard,
		func(ctx context.Context) (models.Set[id.DocumentTypeID], error) {
			return s.scorer.RequiredForTechnician(ctx, tech)
		})
	if err != nil {
		return nil, err
	}
	catalog, err := s.DocumentTypes(ctx)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	out := make([]Requirement, 0, required.Len())
	for _, dt := range catalog {
		if !required.Has(dt.ID) {
			continue
		}
		req := Requirement{DocumentType: dt, Status: models.StatusMissing}
		if cred, ok := models.CredentialFor(tech.Credentials, dt.ID); ok {
			req.Credential = &cred
			req.Status = status.Effective(cred, now)
			if cred.ExpiryDate != nil {
				days := status.DaysUntil(*cred.ExpiryDate, now)
				req.DaysLeft = &days
			}
		}
		out = append(out, req)
	}
	// Most urgent first, then by name.
	slices.SortStableFunc(out, func(a, b Requirement) int {
		if d := b.Status.Severity() - a.Status.Severity(); d != 0 {
			return d
		}
		return strings.Compare(a.DocumentType.Name, b.DocumentType.Name)
	})
	return out, nil
}

// BranchStats aggregates technician compliance per branch, ordered by branch ID.
func (s *Service) BranchStats(ctx context.Context) ([]models.BranchStats, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.KeyBranchStats, cache.Short,
		func(ctx context.Context) ([]models.BranchStats, error) {
			techs, err := s.Technicians(ctx)
			if err != nil {
				return nil, err
			}
			return aggregateBranches(techs), nil
		})
}

func aggregateBranches(techs []*models.Technician) []models.BranchStats {
	byBranch := make(map[id.BranchID]*models.BranchStats)
	totals := make(map[id.BranchID]int)
	for _, t := range techs {
		if t == nil {
			continue
		}
		b, ok := byBranch[t.BranchID]
		if !ok {
			b = &models.BranchStats{BranchID: t.BranchID}
			byBranch[t.BranchID] = b
		}
		b.Technicians++
		b.Count(t.OverallStatus)
		totals[t.BranchID] += t.ComplianceScore
	}

	out := make([]models.BranchStats, 0, len(byBranch))
	for branchID, b := range byBranch {
		b.AverageScore = math.Round(float64(totals[branchID])/float64(b.Technicians)*10) / 10
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b models.BranchStats) int {
		return strings.Compare(a.BranchID.String(), b.BranchID.String())
	})
	return out
}
