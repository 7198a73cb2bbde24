package score_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"fieldcomply/internal/compliance/models"
	"fieldcomply/internal/compliance/score"
	"fieldcomply/internal/compliance/score/mocks"
	id "fieldcomply/pkg/domain"
	dErrors "fieldcomply/pkg/domain-errors"
	"fieldcomply/pkg/platform/sentinel"
	"fieldcomply/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	service   *score.Service
	ctx       context.Context
	now       time.Time
	globalDoc models.DocumentType
	companyA  *models.Company
	docA      id.DocumentTypeID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	svc, err := score.New(s.store)
	s.Require().NoError(err)
	s.service = svc

	s.now = time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.globalDoc = models.DocumentType{ID: id.NewDocumentTypeID(), Scope: models.ScopeTechnician, IsGlobal: true, IsActive: true}
	s.docA = id.NewDocumentTypeID()
	s.companyA = &models.Company{
		ID:               id.NewCompanyID(),
		RequiredDocTypes: models.NewSet(s.docA),
	}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) expiry(days int) *time.Time {
	d := s.now.AddDate(0, 0, days)
	return &d
}

func (s *ServiceSuite) TestNewRequiresStore() {
	_, err := score.New(nil)
	s.Require().Error(err)
}

func (s *ServiceSuite) TestRecomputeTechnician() {
	s.Run("persists result and updates the in-memory technician", func() {
		tech := &models.Technician{
			ID:         id.NewTechnicianID(),
			CompanyIDs: models.NewSet(s.companyA.ID),
			Credentials: []models.Credential{
				{DocumentTypeID: s.globalDoc.ID, ExpiryDate: s.expiry(120)},
			},
		}
		want := models.Result{Score: 50, Status: models.StatusMissing, Required: 2, Compliant: 1}

		s.store.EXPECT().ListDocumentTypes(gomock.Any()).Return([]models.DocumentType{s.globalDoc}, nil)
		s.store.EXPECT().FindCompanies(gomock.Any(), []id.CompanyID{s.companyA.ID}).Return([]*models.Company{s.companyA}, nil)
		s.store.EXPECT().SaveTechnicianResult(gomock.Any(), tech.ID, want).Return(nil)

		got, err := s.service.RecomputeTechnician(s.ctx, tech)
		s.Require().NoError(err)
		s.Equal(want, got)
		s.Equal(50, tech.ComplianceScore)
		s.Equal(models.StatusMissing, tech.OverallStatus)
	})

	s.Run("unresolvable company contributes nothing", func() {
		tech := &models.Technician{
			ID:         id.NewTechnicianID(),
			CompanyIDs: models.NewSet(id.NewCompanyID()),
		}
		s.store.EXPECT().ListDocumentTypes(gomock.Any()).Return(nil, nil)
		s.store.EXPECT().FindCompanies(gomock.Any(), gomock.Any()).Return(nil, nil)
		s.store.EXPECT().SaveTechnicianResult(gomock.Any(), tech.ID, models.Result{Score: 100, Status: models.StatusValid}).Return(nil)

		got, err := s.service.RecomputeTechnician(s.ctx, tech)
		s.Require().NoError(err)
		s.Equal(100, got.Score)
	})

	s.Run("persistence failure propagates without rolling back memory", func() {
		tech := &models.Technician{ID: id.NewTechnicianID(), ComplianceScore: 12, OverallStatus: models.StatusExpired}
		s.store.EXPECT().ListDocumentTypes(gomock.Any()).Return(nil, nil)
		s.store.EXPECT().FindCompanies(gomock.Any(), gomock.Any()).Return(nil, nil)
		s.store.EXPECT().SaveTechnicianResult(gomock.Any(), tech.ID, gomock.Any()).Return(errors.New("connection reset"))

		_, err := s.service.RecomputeTechnician(s.ctx, tech)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Equal(100, tech.ComplianceScore)
		s.Equal(models.StatusValid, tech.OverallStatus)
	})

	s.Run("technician deleted before the write is not found", func() {
		tech := &models.Technician{ID: id.NewTechnicianID()}
		s.store.EXPECT().ListDocumentTypes(gomock.Any()).Return(nil, nil)
		s.store.EXPECT().FindCompanies(gomock.Any(), gomock.Any()).Return(nil, nil)
		s.store.EXPECT().SaveTechnicianResult(gomock.Any(), tech.ID, gomock.Any()).
			Return(fmt.Errorf("save technician result: %w", sentinel.ErrNotFound))

		_, err := s.service.RecomputeTechnician(s.ctx, tech)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unreachable store is unavailable", func() {
		tech := &models.Technician{ID: id.NewTechnicianID()}
		s.store.EXPECT().ListDocumentTypes(gomock.Any()).Return(nil, nil)
		s.store.EXPECT().FindCompanies(gomock.Any(), gomock.Any()).Return(nil, nil)
		s.store.EXPECT().SaveTechnicianResult(gomock.Any(), tech.ID, gomock.Any()).Return(sentinel.ErrUnavailable)

		_, err := s.service.RecomputeTechnician(s.ctx, tech)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("catalog failure skips the write", func() {
		tech := &models.Technician{ID: id.NewTechnicianID()}
		s.store.EXPECT().ListDocumentTypes(gomock.Any()).Return(nil, errors.New("timeout"))

		_, err := s.service.RecomputeTechnician(s.ctx, tech)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("nil technician is rejected", func() {
		_, err := s.service.RecomputeTechnician(s.ctx, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("repeated recompute is idempotent", func() {
		tech := &models.Technician{
			ID:          id.NewTechnicianID(),
			Credentials: []models.Credential{{DocumentTypeID: s.globalDoc.ID, ExpiryDate: s.expiry(5)}},
		}
		want := models.Result{Score: 100, Status: models.StatusExpiringSoon, Required: 1, Compliant: 1}
		s.store.EXPECT().ListDocumentTypes(gomock.Any()).Return([]models.DocumentType{s.globalDoc}, nil).Times(2)
		s.store.EXPECT().FindCompanies(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
		s.store.EXPECT().SaveTechnicianResult(gomock.Any(), tech.ID, want).Return(nil).Times(2)

		first, err := s.service.RecomputeTechnician(s.ctx, tech)
		s.Require().NoError(err)
		second, err := s.service.RecomputeTechnician(s.ctx, tech)
		s.Require().NoError(err)
		s.Equal(first, second)
	})
}

func (s *ServiceSuite) TestRecomputeCompany() {
	globalCompanyDoc := models.DocumentType{ID: id.NewDocumentTypeID(), Scope: models.ScopeCompany, IsGlobal: true, IsActive: true}
	ownDoc := id.NewDocumentTypeID()
	company := &models.Company{
		ID:                         id.NewCompanyID(),
		RequiredDocTypesForCompany: models.NewSet(ownDoc),
		Credentials: []models.Credential{
			{DocumentTypeID: ownDoc, ExpiryDate: s.expiry(-3)},
			{DocumentTypeID: globalCompanyDoc.ID, ExpiryDate: s.expiry(200)},
		},
	}
	want := models.Result{Score: 50, Status: models.StatusExpired, Required: 2, Compliant: 1}

	s.store.EXPECT().ListDocumentTypes(gomock.Any()).Return([]models.DocumentType{s.globalDoc, globalCompanyDoc}, nil)
	s.store.EXPECT().SaveCompanyResult(gomock.Any(), company.ID, want).Return(nil)

	got, err := s.service.RecomputeCompany(s.ctx, company)
	s.Require().NoError(err)
	s.Equal(want, got)
	s.Equal(models.StatusExpired, company.OverallStatus)
}

func (s *ServiceSuite) TestRecomputeCompanyDeletedBeforeWrite() {
	company := &models.Company{ID: id.NewCompanyID()}
	s.store.EXPECT().ListDocumentTypes(gomock.Any()).Return(nil, nil)
	s.store.EXPECT().SaveCompanyResult(gomock.Any(), company.ID, gomock.Any()).Return(sentinel.ErrNotFound)

	_, err := s.service.RecomputeCompany(s.ctx, company)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal(models.StatusValid, company.OverallStatus)
}

func (s *ServiceSuite) TestSyncTechnicianPending() {
	s.Run("inserts placeholders for missing required documents", func() {
		tech := &models.Technician{
			ID:          id.NewTechnicianID(),
			CompanyIDs:  models.NewSet(s.companyA.ID),
			Credentials: []models.Credential{{DocumentTypeID: s.globalDoc.ID, ExpiryDate: s.expiry(40)}},
		}
		s.store.EXPECT().ListDocumentTypes(gomock.Any()).Return([]models.DocumentType{s.globalDoc}, nil)
		s.store.EXPECT().FindCompanies(gomock.Any(), gomock.Any()).Return([]*models.Company{s.companyA}, nil)
		s.store.EXPECT().InsertTechnicianCredentials(gomock.Any(), tech.ID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.TechnicianID, creds []models.Credential) error {
				s.Require().Len(creds, 1)
				s.Equal(s.docA, creds[0].DocumentTypeID)
				s.Equal(models.StatusPending, creds[0].Status)
				s.Nil(creds[0].ExpiryDate)
				return nil
			})

		inserted, err := s.service.SyncTechnicianPending(s.ctx, tech)
		s.Require().NoError(err)
		s.Equal([]id.DocumentTypeID{s.docA}, inserted)
		s.Len(tech.Credentials, 2)
	})

	s.Run("no write when nothing is missing", func() {
		tech := &models.Technician{
			ID:          id.NewTechnicianID(),
			Credentials: []models.Credential{{DocumentTypeID: s.globalDoc.ID}},
		}
		s.store.EXPECT().ListDocumentTypes(gomock.Any()).Return([]models.DocumentType{s.globalDoc}, nil)
		s.store.EXPECT().FindCompanies(gomock.Any(), gomock.Any()).Return(nil, nil)

		inserted, err := s.service.SyncTechnicianPending(s.ctx, tech)
		s.Require().NoError(err)
		s.Empty(inserted)
	})
}
