// Package store persists technicians, companies, credentials and the document
// catalog, in memory or in PostgreSQL.
package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"fieldcomply/internal/compliance/models"
	id "fieldcomply/pkg/domain"
	"fieldcomply/pkg/platform/sentinel"
)

// InMemoryStore keeps every record in process memory. Entities handed out are
// deep copies.
type InMemoryStore struct {
	mu          sync.RWMutex
	docTypes    map[id.DocumentTypeID]models.DocumentType
	technicians map[id.TechnicianID]*models.Technician
	companies   map[id.CompanyID]*models.Company
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		docTypes:    make(map[id.DocumentTypeID]models.DocumentType),
		technicians: make(map[id.TechnicianID]*models.Technician),
		companies:   make(map[id.CompanyID]*models.Company),
	}
}

// CreateTechnician stores a copy of tech, replacing any technician with the same ID.
func (s *InMemoryStore) CreateTechnician(_ context.Context, tech *models.Technician) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.technicians[tech.ID] = tech.Clone()
	return nil
}

// CreateCompany stores a copy of company, replacing any company with the same ID.
func (s *InMemoryStore) CreateCompany(_ context.Context, company *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[company.ID] = company.Clone()
	return nil
}

func (s *InMemoryStore) ListDocumentTypes(_ context.Context) ([]models.DocumentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DocumentType, 0, len(s.docTypes))
	for _, dt := range s.docTypes {
		out = append(out, dt)
	}
	slices.SortFunc(out, func(a, b models.DocumentType) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *InMemoryStore) UpsertDocumentType(_ context.Context, docType models.DocumentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docTypes[docType.ID] = docType
	return nil
}

func (s *InMemoryStore) ListTechnicians(_ context.Context) ([]*models.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Technician, 0, len(s.technicians))
	for _, t := range s.technicians {
		out = append(out, t.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Technician) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *InMemoryStore) FindTechnician(_ context.Context, technicianID id.TechnicianID) (*models.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.technicians[technicianID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *InMemoryStore) TechniciansForCompany(_ context.Context, companyID id.CompanyID) ([]id.TechnicianID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []id.TechnicianID
	for _, t := range s.technicians {
		if t.LinkedTo(companyID) {
			out = append(out, t.ID)
		}
	}
	slices.SortFunc(out, func(a, b id.TechnicianID) int {
		return strings.Compare(a.String(), b.String())
	})
	return out, nil
}

func (s *InMemoryStore) SetTechnicianBranch(_ context.Context, technicianID id.TechnicianID, branchID id.BranchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.technicians[technicianID]
	if !ok {
		return sentinel.ErrNotFound
	}
	t.BranchID = branchID
	return nil
}

func (s *InMemoryStore) LinkTechnician(_ context.Context, technicianID id.TechnicianID, companyID id.CompanyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.technicians[technicianID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := s.companies[companyID]; !ok {
		return sentinel.ErrNotFound
	}
	if t.CompanyIDs == nil {
		t.CompanyIDs = models.NewSet[id.CompanyID]()
	}
	t.CompanyIDs.Add(companyID)
	return nil
}

func (s *InMemoryStore) UnlinkTechnician(_ context.Context, technicianID id.TechnicianID, companyID id.CompanyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.technicians[technicianID]
	if !ok {
		return sentinel.ErrNotFound
	}
	t.CompanyIDs.Remove(companyID)
	return nil
}

func (s *InMemoryStore) ListCompanies(_ context.Context) ([]*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Company, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, c.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Company) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *InMemoryStore) FindCompany(_ context.Context, companyID id.CompanyID) (*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[companyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// FindCompanies returns the companies that exist; unknown IDs are skipped.
func (s *InMemoryStore) FindCompanies(_ context.Context, ids []id.CompanyID) ([]*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Company, 0, len(ids))
	for _, companyID := range ids {
		if c, ok := s.companies[companyID]; ok {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (s *InMemoryStore) SetCompanyRequirements(_ context.Context, companyID id.CompanyID, forTechnicians, forCompany models.Set[id.DocumentTypeID]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[companyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.RequiredDocTypes = forTechnicians.Clone()
	c.RequiredDocTypesForCompany = forCompany.Clone()
	return nil
}

func (s *InMemoryStore) UpsertTechnicianCredential(_ context.Context, technicianID id.TechnicianID, cred models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.technicians[technicianID]
	if !ok {
		return sentinel.ErrNotFound
	}
	t.Credentials = models.UpsertCredential(t.Credentials, cred)
	return nil
}

func (s *InMemoryStore) UpsertCompanyCredential(_ context.Context, companyID id.CompanyID, cred models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[companyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Credentials = models.UpsertCredential(c.Credentials, cred)
	return nil
}

// InsertTechnicianCredentials adds credentials for document types the technician
// holds nothing for. Existing records are left untouched.
func (s *InMemoryStore) InsertTechnicianCredentials(_ context.Context, technicianID id.TechnicianID, creds []models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.technicians[technicianID]
	if !ok {
		return sentinel.ErrNotFound
	}
	t.Credentials = insertMissing(t.Credentials, creds)
	return nil
}

func (s *InMemoryStore) InsertCompanyCredentials(_ context.Context, companyID id.CompanyID, creds []models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[companyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Credentials = insertMissing(c.Credentials, creds)
	return nil
}

func (s *InMemoryStore) SaveTechnicianResult(_ context.Context, technicianID id.TechnicianID, result models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.technicians[technicianID]
	if !ok {
		return sentinel.ErrNotFound
	}
	t.ApplyResult(result)
	return nil
}

func (s *InMemoryStore) SaveCompanyResult(_ context.Context, companyID id.CompanyID, result models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[companyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.ApplyResult(result)
	return nil
}

func insertMissing(held, creds []models.Credential) []models.Credential {
	for _, c := range creds {
		if _, ok := models.CredentialFor(held, c.DocumentTypeID); !ok {
			held = append(held, c)
		}
	}
	return held
}
