package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldcomply/internal/cache"
	"fieldcomply/internal/compliance/models"
	"fieldcomply/internal/compliance/recompute"
	"fieldcomply/internal/compliance/status"
	id "fieldcomply/pkg/domain"
	dErrors "fieldcomply/pkg/domain-errors"
	"fieldcomply/pkg/requestcontext"
)

// UpsertTechnicianCredential records a document for a technician. The status is
// assigned from the expiry at write time and the technician is recomputed.
func (s *Service) UpsertTechnicianCredential(ctx context.Context, technicianID id.TechnicianID, docID id.DocumentTypeID, expiry *time.Time) (models.Credential, error) {
	if _, err := s.documentType(ctx, docID, models.ScopeTechnician); err != nil {
		return models.Credential{}, err
	}
	tech, err := s.store.FindTechnician(ctx, technicianID)
	if err != nil {
		return models.Credential{}, translate(err, "technician")
	}

	cred := newCredential(tech.Credentials, docID, expiry, requestcontext.Now(ctx))
	if err := s.store.UpsertTechnicianCredential(ctx, technicianID, cred); err != nil {
		return models.Credential{}, translate(err, "technician credential")
	}
	defer s.cache.Invalidate(cache.CategoryCredential)

	tech.Credentials = models.UpsertCredential(tech.Credentials, cred)
	if _, err := s.scorer.RecomputeTechnician(ctx, tech); err != nil {
		return cred, err
	}
	s.logger.InfoContext(ctx, "technician credential recorded",
		"technician_id", technicianID,
		"document_type_id", docID,
		"status", cred.Status,
		"score", tech.ComplianceScore,
	)
	return cred, nil
}

// UpsertCompanyCredential records a document for a company's own accreditation.
func (s *Service) UpsertCompanyCredential(ctx context.Context, companyID id.CompanyID, docID id.DocumentTypeID, expiry *time.Time) (models.Credential, error) {
	if _, err := s.documentType(ctx, docID, models.ScopeCompany); err != nil {
		return models.Credential{}, err
	}
	company, err := s.store.FindCompany(ctx, companyID)
	if err != nil {
		return models.Credential{}, translate(err, "company")
	}

	cred := newCredential(company.Credentials, docID, expiry, requestcontext.Now(ctx))
	if err := s.store.UpsertCompanyCredential(ctx, companyID, cred); err != nil {
		return models.Credential{}, translate(err, "company credential")
	}
	defer s.cache.Invalidate(cache.CategoryCredential)

	company.Credentials = models.UpsertCredential(company.Credentials, cred)
	if _, err := s.scorer.RecomputeCompany(ctx, company); err != nil {
		return cred, err
	}
	return cred, nil
}

// LinkTechnician attaches a technician to a company. The technician inherits the
// company's requirements, so placeholders are inserted for new ones.
func (s *Service) LinkTechnician(ctx context.Context, technicianID id.TechnicianID, companyID id.CompanyID) (models.Result, error) {
	if err := s.store.LinkTechnician(ctx, technicianID, companyID); err != nil {
		return models.Result{}, translate(err, "technician or company")
	}
	defer s.cache.Invalidate(cache.CategoryTechnician)

	tech, err := s.store.FindTechnician(ctx, technicianID)
	if err != nil {
		return models.Result{}, translate(err, "technician")
	}
	if _, err := s.scorer.SyncTechnicianPending(ctx, tech); err != nil {
		return models.Result{}, err
	}
	return s.scorer.RecomputeTechnician(ctx, tech)
}

// UnlinkTechnician detaches a technician from a company. Credentials held for
// the company's requirements are kept.
func (s *Service) UnlinkTechnician(ctx context.Context, technicianID id.TechnicianID, companyID id.CompanyID) (models.Result, error) {
	if err := s.store.UnlinkTechnician(ctx, technicianID, companyID); err != nil {
		return models.Result{}, translate(err, "technician link")
	}
	defer s.cache.Invalidate(cache.CategoryTechnician)

	tech, err := s.store.FindTechnician(ctx, technicianID)
	if err != nil {
		return models.Result{}, translate(err, "technician")
	}
	return s.scorer.RecomputeTechnician(ctx, tech)
}

// UpdateCompanyRequirements replaces both requirement lists of a company. The
// company is recomputed inline; every linked technician is queued for
// recomputation. It returns the number of queued jobs.
func (s *Service) UpdateCompanyRequirements(ctx context.Context, companyID id.CompanyID, forTechnicians, forCompany models.Set[id.DocumentTypeID]) (int, error) {
	if err := s.checkDocuments(ctx, forTechnicians, models.ScopeTechnician); err != nil {
		return 0, err
	}
	if err := s.checkDocuments(ctx, forCompany, models.ScopeCompany); err != nil {
		return 0, err
	}
	if err := s.store.SetCompanyRequirements(ctx, companyID, forTechnicians, forCompany); err != nil {
		return 0, translate(err, "company")
	}
	defer s.cache.Invalidate(cache.CategoryCompany)

	company, err := s.store.FindCompany(ctx, companyID)
	if err != nil {
		return 0, translate(err, "company")
	}
	if _, err := s.scorer.SyncCompanyPending(ctx, company); err != nil {
		return 0, err
	}
	if _, err := s.scorer.RecomputeCompany(ctx, company); err != nil {
		return 0, err
	}

	techIDs, err := s.store.TechniciansForCompany(ctx, companyID)
	if err != nil {
		return 0, translate(err, "company technicians")
	}
	now := requestcontext.Now(ctx)
	jobs := make([]recompute.Job, 0, len(techIDs))
	for _, techID := range techIDs {
		jobs = append(jobs, recompute.NewJob(recompute.KindTechnician, uuid.UUID(techID), "company requirements changed", now).WithSyncPending())
	}
	if err := s.enqueue(ctx, jobs); err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "company requirements updated",
		"company_id", companyID,
		"technician_requirements", forTechnicians.Len(),
		"company_requirements", forCompany.Len(),
		"queued", len(jobs),
	)
	return len(jobs), nil
}

// UpsertDocumentType creates or updates a catalog entry. Changes to global
// entries queue every entity of that scope for recomputation. It returns the
// stored document type and the number of queued jobs.
func (s *Service) UpsertDocumentType(ctx context.Context, docType models.DocumentType) (models.DocumentType, int, error) {
	docType.Name = strings.TrimSpace(docType.Name)
	if docType.Name == "" {
		return models.DocumentType{}, 0, dErrors.New(dErrors.CodeValidation, "document type name is required")
	}
	if !docType.Scope.IsValid() {
		return models.DocumentType{}, 0, dErrors.New(dErrors.CodeValidation, "document type scope must be TECHNICIAN or COMPANY")
	}
	if docType.ID.IsNil() {
		docType.ID = id.NewDocumentTypeID()
	}

	catalog, err := s.store.ListDocumentTypes(ctx)
	if err != nil {
		return models.DocumentType{}, 0, translate(err, "document types")
	}
	affected := map[models.Scope]bool{}
	if docType.IsGlobal {
		affected[docType.Scope] = true
	}
	for _, prev := range catalog {
		if prev.ID == docType.ID && prev.IsGlobal {
			affected[prev.Scope] = true
		}
	}

	if err := s.store.UpsertDocumentType(ctx, docType); err != nil {
		return models.DocumentType{}, 0, translate(err, "document type")
	}
	defer s.cache.Invalidate(cache.CategoryDocumentType)

	now := requestcontext.Now(ctx)
	var jobs []recompute.Job
	if affected[models.ScopeTechnician] {
		techs, err := s.store.ListTechnicians(ctx)
		if err != nil {
			return docType, 0, translate(err, "technicians")
		}
		for _, t := range techs {
			jobs = append(jobs, recompute.NewJob(recompute.KindTechnician, uuid.UUID(t.ID), "catalog changed", now).WithSyncPending())
		}
	}
	if affected[models.ScopeCompany] {
		companies, err := s.store.ListCompanies(ctx)
		if err != nil {
			return docType, 0, translate(err, "companies")
		}
		for _, c := range companies {
			jobs = append(jobs, recompute.NewJob(recompute.KindCompany, uuid.UUID(c.ID), "catalog changed", now).WithSyncPending())
		}
	}
	if err := s.enqueue(ctx, jobs); err != nil {
		return docType, 0, err
	}
	return docType, len(jobs), nil
}

// MoveTechnicianBranch reassigns a technician's branch. Compliance does not
// depend on the branch, so nothing is recomputed.
func (s *Service) MoveTechnicianBranch(ctx context.Context, technicianID id.TechnicianID, branchID id.BranchID) error {
	if err := s.store.SetTechnicianBranch(ctx, technicianID, branchID); err != nil {
		return translate(err, "technician")
	}
	s.cache.Invalidate(cache.CategoryBranch)
	s.cache.Delete(cache.TechnicianKey(technicianID))
	return nil
}

// RecomputeTechnician recomputes one technician from the store.
func (s *Service) RecomputeTechnician(ctx context.Context, technicianID id.TechnicianID) (models.Result, error) {
	tech, err := s.store.FindTechnician(ctx, technicianID)
	if err != nil {
		return models.Result{}, translate(err, "technician")
	}
	defer s.cache.Invalidate(cache.CategoryTechnician)
	return s.scorer.RecomputeTechnician(ctx, tech)
}

// RecomputeCompany recomputes one company's own accreditation from the store.
func (s *Service) RecomputeCompany(ctx context.Context, companyID id.CompanyID) (models.Result, error) {
	company, err := s.store.FindCompany(ctx, companyID)
	if err != nil {
		return models.Result{}, translate(err, "company")
	}
	defer s.cache.Invalidate(cache.CategoryCompany)
	return s.scorer.RecomputeCompany(ctx, company)
}

// RecomputeAll queues every technician and company. It returns the number of
// queued jobs.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	techs, err := s.store.ListTechnicians(ctx)
	if err != nil {
		return 0, translate(err, "technicians")
	}
	companies, err := s.store.ListCompanies(ctx)
	if err != nil {
		return 0, translate(err, "companies")
	}
	now := requestcontext.Now(ctx)
	jobs := make([]recompute.Job, 0, len(techs)+len(companies))
	for _, t := range techs {
		jobs = append(jobs, recompute.NewJob(recompute.KindTechnician, uuid.UUID(t.ID), "full recompute", now))
	}
	for _, c := range companies {
		jobs = append(jobs, recompute.NewJob(recompute.KindCompany, uuid.UUID(c.ID), "full recompute", now))
	}
	if err := s.enqueue(ctx, jobs); err != nil {
		return 0, err
	}
	return len(jobs), nil
}

// InvalidateCache evicts a category on request and returns the evicted keys.
func (s *Service) InvalidateCache(category cache.Category) []string {
	return s.cache.Invalidate(category)
}

func (s *Service) enqueue(ctx context.Context, jobs []recompute.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	if err := s.jobs.Enqueue(ctx, jobs...); err != nil {
		s.logger.ErrorContext(ctx, "failed to queue recompute jobs",
			"count", len(jobs),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to queue recomputation")
	}
	return nil
}

// documentType loads a catalog entry and checks its scope.
func (s *Service) documentType(ctx context.Context, docID id.DocumentTypeID, scope models.Scope) (models.DocumentType, error) {
	catalog, err := s.store.ListDocumentTypes(ctx)
	if err != nil {
		return models.DocumentType{}, translate(err, "document types")
	}
	return lookupDocument(catalog, docID, scope)
}

func (s *Service) checkDocuments(ctx context.Context, docIDs models.Set[id.DocumentTypeID], scope models.Scope) error {
	if docIDs.Len() == 0 {
		return nil
	}
	catalog, err := s.store.ListDocumentTypes(ctx)
	if err != nil {
		return translate(err, "document types")
	}
	for _, docID := range docIDs.Slice() {
		if _, err := lookupDocument(catalog, docID, scope); err != nil {
			return err
		}
	}
	return nil
}

func lookupDocument(catalog []models.DocumentType, docID id.DocumentTypeID, scope models.Scope) (models.DocumentType, error) {
	for _, dt := range catalog {
		if dt.ID != docID {
			continue
		}
		if dt.Scope != scope {
			return models.DocumentType{}, dErrors.New(dErrors.CodeValidation,
				"document type "+dt.Name+" does not apply to "+strings.ToLower(string(scope))+"s")
		}
		return dt, nil
	}
	return models.DocumentType{}, dErrors.New(dErrors.CodeNotFound, "document type not found")
}

// newCredential keeps the ID of an existing record for the same document type.
func newCredential(held []models.Credential, docID id.DocumentTypeID, expiry *time.Time, now time.Time) models.Credential {
	cred := models.Credential{
		ID:             id.NewCredentialID(),
		DocumentTypeID: docID,
		ExpiryDate:     expiry,
		Status:         status.Calculate(expiry, now),
		UpdatedAt:      now,
	}
	if prev, ok := models.CredentialFor(held, docID); ok {
		cred.ID = prev.ID
	}
	return cred
}
