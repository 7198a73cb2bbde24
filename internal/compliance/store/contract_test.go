package store_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"fieldcomply/internal/compliance/models"
	"fieldcomply/internal/compliance/service"
	id "fieldcomply/pkg/domain"
	"fieldcomply/pkg/platform/sentinel"
)

// seedingStore is the service port plus the seeding helpers both stores expose.
type seedingStore interface {
	service.Store
	CreateTechnician(ctx context.Context, tech *models.Technician) error
	CreateCompany(ctx context.Context, company *models.Company) error
}

// contractSuite holds behavior every store implementation must share. Embedding
// suites set store in SetupTest.
type contractSuite struct {
	suite.Suite
	store seedingStore
	ctx   context.Context

	license   models.DocumentType
	insurance models.DocumentType
	permit    models.DocumentType
}

func (s *contractSuite) seedCatalog() {
	s.ctx = context.Background()
	s.license = models.DocumentType{ID: id.NewDocumentTypeID(), Name: "Driving licence", Scope: models.ScopeTechnician, IsGlobal: true, IsActive: true}
	s.insurance = models.DocumentType{ID: id.NewDocumentTypeID(), Name: "Liability insurance", Scope: models.ScopeCompany, IsGlobal: true, IsActive: true}
	s.permit = models.DocumentType{ID: id.NewDocumentTypeID(), Name: "Site permit", Scope: models.ScopeTechnician, IsActive: true}
	for _, dt := range []models.DocumentType{s.license, s.insurance, s.permit} {
		s.Require().NoError(s.store.UpsertDocumentType(s.ctx, dt))
	}
}

func (s *contractSuite) newCompany(name string) *models.Company {
	c := &models.Company{
		ID:                         id.NewCompanyID(),
		Name:                       name,
		RequiredDocTypes:           models.NewSet(s.permit.ID),
		RequiredDocTypesForCompany: models.NewSet(s.insurance.ID),
	}
	s.Require().NoError(s.store.CreateCompany(s.ctx, c))
	return c
}

func (s *contractSuite) newTechnician(name string, companies ...id.CompanyID) *models.Technician {
	expiry := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
	t := &models.Technician{
		ID:         id.NewTechnicianID(),
		Name:       name,
		BranchID:   id.NewBranchID(),
		CompanyIDs: models.NewSet(companies...),
		Credentials: []models.Credential{{
			ID:             id.NewCredentialID(),
			DocumentTypeID: s.license.ID,
			ExpiryDate:     &expiry,
			Status:         models.StatusValid,
			UpdatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}},
	}
	s.Require().NoError(s.store.CreateTechnician(s.ctx, t))
	return t
}

func (s *contractSuite) TestCatalog() {
	docs, err := s.store.ListDocumentTypes(s.ctx)
	s.Require().NoError(err)
	s.Len(docs, 3)

	renamed := s.permit
	renamed.IsActive = false
	s.Require().NoError(s.store.UpsertDocumentType(s.ctx, renamed))

	docs, err = s.store.ListDocumentTypes(s.ctx)
	s.Require().NoError(err)
	s.Len(docs, 3)
	for _, d := range docs {
		if d.ID == s.permit.ID {
			s.False(d.IsActive)
		}
	}
}

func (s *contractSuite) TestTechnicianRoundTrip() {
	acme := s.newCompany("Acme")
	tech := s.newTechnician("Ada", acme.ID)

	got, err := s.store.FindTechnician(s.ctx, tech.ID)
	s.Require().NoError(err)
	s.Equal(tech.Name, got.Name)
	s.Equal(tech.BranchID, got.BranchID)
	s.True(got.LinkedTo(acme.ID))
	s.Require().Len(got.Credentials, 1)
	s.Equal(s.license.ID, got.Credentials[0].DocumentTypeID)
	s.Require().NotNil(got.Credentials[0].ExpiryDate)
	s.Equal("2027-01-15", got.Credentials[0].ExpiryDate.Format(time.DateOnly))
	s.Equal(models.StatusValid, got.Credentials[0].Status)

	_, err = s.store.FindTechnician(s.ctx, id.NewTechnicianID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestReturnedEntitiesAreCopies() {
	tech := s.newTechnician("Ada")

	got, err := s.store.FindTechnician(s.ctx, tech.ID)
	s.Require().NoError(err)
	got.Name = "changed"
	got.Credentials[0].Status = models.StatusExpired

	again, err := s.store.FindTechnician(s.ctx, tech.ID)
	s.Require().NoError(err)
	s.Equal("Ada", again.Name)
	s.Equal(models.StatusValid, again.Credentials[0].Status)
}

func (s *contractSuite) TestLinks() {
	acme := s.newCompany("Acme")
	globex := s.newCompany("Globex")
	ada := s.newTechnician("Ada", acme.ID)
	bob := s.newTechnician("Bob")

	s.Require().NoError(s.store.LinkTechnician(s.ctx, bob.ID, acme.ID))
	s.Require().NoError(s.store.LinkTechnician(s.ctx, bob.ID, acme.ID))

	ids, err := s.store.TechniciansForCompany(s.ctx, acme.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]id.TechnicianID{ada.ID, bob.ID}, ids)

	s.Require().NoError(s.store.UnlinkTechnician(s.ctx, ada.ID, acme.ID))
	ids, err = s.store.TechniciansForCompany(s.ctx, acme.ID)
	s.Require().NoError(err)
	s.Equal([]id.TechnicianID{bob.ID}, ids)

	ids, err = s.store.TechniciansForCompany(s.ctx, globex.ID)
	s.Require().NoError(err)
	s.Empty(ids)

	err = s.store.LinkTechnician(s.ctx, bob.ID, id.NewCompanyID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestCompanies() {
	acme := s.newCompany("Acme")
	s.newCompany("Globex")

	found, err := s.store.FindCompanies(s.ctx, []id.CompanyID{acme.ID, id.NewCompanyID()})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.True(found[0].RequiredDocTypes.Has(s.permit.ID))
	s.True(found[0].RequiredDocTypesForCompany.Has(s.insurance.ID))

	s.Require().NoError(s.store.SetCompanyRequirements(s.ctx, acme.ID,
		models.NewSet(s.permit.ID, s.license.ID), models.NewSet[id.DocumentTypeID]()))
	got, err := s.store.FindCompany(s.ctx, acme.ID)
	s.Require().NoError(err)
	s.Equal(2, got.RequiredDocTypes.Len())
	s.Equal(0, got.RequiredDocTypesForCompany.Len())

	all, err := s.store.ListCompanies(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)

	err = s.store.SetCompanyRequirements(s.ctx, id.NewCompanyID(), nil, nil)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestCredentials() {
	tech := s.newTechnician("Ada")
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	s.Run("upsert replaces the record for the same document type", func() {
		expiry := time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)
		s.Require().NoError(s.store.UpsertTechnicianCredential(s.ctx, tech.ID, models.Credential{
			ID:             id.NewCredentialID(),
			DocumentTypeID: s.license.ID,
			ExpiryDate:     &expiry,
			Status:         models.StatusExpiringSoon,
			UpdatedAt:      now,
		}))
		got, err := s.store.FindTechnician(s.ctx, tech.ID)
		s.Require().NoError(err)
		s.Require().Len(got.Credentials, 1)
		s.Equal(models.StatusExpiringSoon, got.Credentials[0].Status)
	})

	s.Run("bulk insert skips held document types", func() {
		s.Require().NoError(s.store.InsertTechnicianCredentials(s.ctx, tech.ID, []models.Credential{
			{ID: id.NewCredentialID(), DocumentTypeID: s.license.ID, Status: models.StatusPending, UpdatedAt: now},
			{ID: id.NewCredentialID(), DocumentTypeID: s.permit.ID, Status: models.StatusPending, UpdatedAt: now},
		}))
		got, err := s.store.FindTechnician(s.ctx, tech.ID)
		s.Require().NoError(err)
		s.Require().Len(got.Credentials, 2)
		lic, _ := models.CredentialFor(got.Credentials, s.license.ID)
		s.Equal(models.StatusExpiringSoon, lic.Status)
		permit, ok := models.CredentialFor(got.Credentials, s.permit.ID)
		s.Require().True(ok)
		s.Equal(models.StatusPending, permit.Status)
		s.Nil(permit.ExpiryDate)
	})

	s.Run("unknown owner", func() {
		err := s.store.UpsertTechnicianCredential(s.ctx, id.NewTechnicianID(), models.Credential{
			ID: id.NewCredentialID(), DocumentTypeID: s.license.ID, Status: models.StatusPending, UpdatedAt: now,
		})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *contractSuite) TestResults() {
	acme := s.newCompany("Acme")
	tech := s.newTechnician("Ada", acme.ID)

	s.Require().NoError(s.store.SaveTechnicianResult(s.ctx, tech.ID, models.Result{Score: 50, Status: models.StatusMissing}))
	s.Require().NoError(s.store.SaveCompanyResult(s.ctx, acme.ID, models.Result{Score: 0, Status: models.StatusMissing}))
	s.Require().NoError(s.store.SetTechnicianBranch(s.ctx, tech.ID, id.NewBranchID()))

	got, err := s.store.FindTechnician(s.ctx, tech.ID)
	s.Require().NoError(err)
	s.Equal(50, got.ComplianceScore)
	s.Equal(models.StatusMissing, got.OverallStatus)
	s.NotEqual(tech.BranchID, got.BranchID)

	err = s.store.SaveTechnicianResult(s.ctx, id.NewTechnicianID(), models.Result{Score: 1, Status: models.StatusValid})
	s.ErrorIs(err, sentinel.ErrNotFound)
}
