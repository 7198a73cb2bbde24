package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"fieldcomply/internal/cache"
	"fieldcomply/internal/compliance/alerts"
	"fieldcomply/internal/compliance/models"
	"fieldcomply/internal/compliance/recompute"
	"fieldcomply/internal/compliance/score"
	"fieldcomply/internal/compliance/service"
	"fieldcomply/internal/compliance/store"
	id "fieldcomply/pkg/domain"
	dErrors "fieldcomply/pkg/domain-errors"
	"fieldcomply/pkg/requestcontext"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []recompute.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, jobs ...recompute.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, jobs...)
	return nil
}

func (q *recordingQueue) drain() []recompute.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.jobs
	q.jobs = nil
	return out
}

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	store *store.InMemoryStore
	cache *cache.Manager
	queue *recordingQueue
	svc   *service.Service

	license models.DocumentType
	permit  models.DocumentType
	ppe     models.DocumentType
	insure  models.DocumentType

	acme   *models.Company
	ada    *models.Technician
	bob    *models.Technician
	branch id.BranchID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = store.NewInMemoryStore()
	s.queue = &recordingQueue{}

	var err error
	s.cache, err = cache.New()
	s.Require().NoError(err)
	scorer, err := score.New(s.store)
	s.Require().NoError(err)
	s.svc, err = service.New(s.store, scorer, s.cache, s.queue)
	s.Require().NoError(err)

	s.license = models.DocumentType{ID: id.NewDocumentTypeID(), Name: "Driving licence", Scope: models.ScopeTechnician, IsGlobal: true, IsActive: true}
	s.permit = models.DocumentType{ID: id.NewDocumentTypeID(), Name: "Site permit", Scope: models.ScopeTechnician, IsActive: true}
	s.ppe = models.DocumentType{ID: id.NewDocumentTypeID(), Name: "PPE training", Scope: models.ScopeTechnician, IsActive: true}
	s.insure = models.DocumentType{ID: id.NewDocumentTypeID(), Name: "Liability insurance", Scope: models.ScopeCompany, IsGlobal: true, IsActive: true}
	for _, dt := range []models.DocumentType{s.license, s.permit, s.ppe, s.insure} {
		s.Require().NoError(s.store.UpsertDocumentType(s.ctx, dt))
	}

	s.acme = &models.Company{
		ID:                         id.NewCompanyID(),
		Name:                       "Acme",
		RequiredDocTypes:           models.NewSet(s.permit.ID),
		RequiredDocTypesForCompany: models.NewSet[id.DocumentTypeID](),
	}
	s.Require().NoError(s.store.CreateCompany(s.ctx, s.acme))

	s.branch = id.NewBranchID()
	s.ada = &models.Technician{ID: id.NewTechnicianID(), Name: "Ada", BranchID: s.branch, CompanyIDs: models.NewSet(s.acme.ID)}
	s.bob = &models.Technician{ID: id.NewTechnicianID(), Name: "Bob", BranchID: s.branch, CompanyIDs: models.NewSet(s.acme.ID)}
	s.Require().NoError(s.store.CreateTechnician(s.ctx, s.ada))
	s.Require().NoError(s.store.CreateTechnician(s.ctx, s.bob))
}

func (s *ServiceSuite) date(days int) *time.Time {
	d := time.Date(2026, 4, 1+days, 0, 0, 0, 0, time.UTC)
	return &d
}

func (s *ServiceSuite) TestUpsertTechnicianCredential() {
	s.Run("assigns status at write time and recomputes", func() {
		cred, err := s.svc.UpsertTechnicianCredential(s.ctx, s.ada.ID, s.license.ID, s.date(200))
		s.Require().NoError(err)
		s.Equal(models.StatusValid, cred.Status)

		stored, err := s.store.FindTechnician(s.ctx, s.ada.ID)
		s.Require().NoError(err)
		s.Equal(50, stored.ComplianceScore)
		s.Equal(models.StatusMissing, stored.OverallStatus)
	})

	s.Run("replacing keeps the credential id", func() {
		first, err := s.svc.UpsertTechnicianCredential(s.ctx, s.bob.ID, s.permit.ID, s.date(-1))
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, first.Status)

		second, err := s.svc.UpsertTechnicianCredential(s.ctx, s.bob.ID, s.permit.ID, s.date(10))
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)
		s.Equal(models.StatusExpiringSoon, second.Status)
	})

	s.Run("nil expiry records a pending credential", func() {
		cred, err := s.svc.UpsertTechnicianCredential(s.ctx, s.bob.ID, s.license.ID, nil)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, cred.Status)
	})

	s.Run("rejects company-scoped documents", func() {
		_, err := s.svc.UpsertTechnicianCredential(s.ctx, s.ada.ID, s.insure.ID, s.date(5))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown technician and document", func() {
		_, err := s.svc.UpsertTechnicianCredential(s.ctx, id.NewTechnicianID(), s.license.ID, s.date(5))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = s.svc.UpsertTechnicianCredential(s.ctx, s.ada.ID, id.NewDocumentTypeID(), s.date(5))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestReadsAreFreshAfterMutation() {
	techs, err := s.svc.Technicians(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(techs, 2)
	s.Equal(0, techs[0].ComplianceScore)
	_, err = s.svc.Companies(s.ctx)
	s.Require().NoError(err)

	_, err = s.svc.UpsertTechnicianCredential(s.ctx, s.ada.ID, s.license.ID, s.date(200))
	s.Require().NoError(err)

	techs, err = s.svc.Technicians(s.ctx)
	s.Require().NoError(err)
	s.Equal("Ada", techs[0].Name)
	s.Equal(50, techs[0].ComplianceScore)

	detail, err := s.svc.Technician(s.ctx, s.ada.ID)
	s.Require().NoError(err)
	s.Len(detail.Credentials, 1)
}

func (s *ServiceSuite) TestLinkKeepsCompanyCollectionCached() {
	globex := &models.Company{ID: id.NewCompanyID(), Name: "Globex", RequiredDocTypes: models.NewSet(s.ppe.ID)}
	s.Require().NoError(s.store.CreateCompany(s.ctx, globex))
	_, err := s.svc.Companies(s.ctx)
	s.Require().NoError(err)
	_, err = s.svc.BranchStats(s.ctx)
	s.Require().NoError(err)

	result, err := s.svc.LinkTechnician(s.ctx, s.ada.ID, globex.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, result.Status)

	_, cached := s.cache.Get(cache.KeyCompanies)
	s.True(cached)
	_, cached = s.cache.Get(cache.KeyBranchStats)
	s.False(cached)

	tech, err := s.store.FindTechnician(s.ctx, s.ada.ID)
	s.Require().NoError(err)
	s.True(tech.LinkedTo(globex.ID))
	s.Len(tech.Credentials, 3)
	for _, c := range tech.Credentials {
		s.Equal(models.StatusPending, c.Status)
	}
}

func (s *ServiceSuite) TestUnlinkTechnician() {
	_, err := s.svc.UpsertTechnicianCredential(s.ctx, s.ada.ID, s.license.ID, s.date(200))
	s.Require().NoError(err)

	result, err := s.svc.UnlinkTechnician(s.ctx, s.ada.ID, s.acme.ID)
	s.Require().NoError(err)
	s.Equal(100, result.Score)
	s.Equal(models.StatusValid, result.Status)
}

func (s *ServiceSuite) TestUpdateCompanyRequirementsFansOut() {
	queued, err := s.svc.UpdateCompanyRequirements(s.ctx, s.acme.ID,
		models.NewSet(s.permit.ID, s.ppe.ID), models.NewSet[id.DocumentTypeID]())
	s.Require().NoError(err)
	s.Equal(2, queued)

	jobs := s.queue.drain()
	s.Require().Len(jobs, 2)
	for _, j := range jobs {
		s.Equal(recompute.KindTechnician, j.Kind)
		s.True(j.SyncPending)
		s.Require().NoError(s.svc.HandleJob(s.ctx, j))
	}

	ada, err := s.store.FindTechnician(s.ctx, s.ada.ID)
	s.Require().NoError(err)
	s.Len(ada.Credentials, 3)
	s.Equal(models.StatusPending, ada.OverallStatus)
	s.Equal(0, ada.ComplianceScore)

	company, err := s.store.FindCompany(s.ctx, s.acme.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, company.OverallStatus)
}

func (s *ServiceSuite) TestUpdateCompanyRequirementsValidates() {
	_, err := s.svc.UpdateCompanyRequirements(s.ctx, s.acme.ID,
		models.NewSet(s.insure.ID), models.NewSet[id.DocumentTypeID]())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.UpdateCompanyRequirements(s.ctx, id.NewCompanyID(),
		models.NewSet(s.permit.ID), models.NewSet[id.DocumentTypeID]())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.queue.drain())
}

func (s *ServiceSuite) TestUpsertDocumentType() {
	s.Run("global entry queues every entity of its scope", func() {
		dt, queued, err := s.svc.UpsertDocumentType(s.ctx, models.DocumentType{
			Name: "  First aid  ", Scope: models.ScopeTechnician, IsGlobal: true, IsActive: true,
		})
		s.Require().NoError(err)
		s.False(dt.ID.IsNil())
		s.Equal("First aid", dt.Name)
		s.Equal(2, queued)
		s.Len(s.queue.drain(), 2)
	})

	s.Run("non-global entry queues nothing", func() {
		_, queued, err := s.svc.UpsertDocumentType(s.ctx, models.DocumentType{
			Name: "Crane ticket", Scope: models.ScopeTechnician, IsActive: true,
		})
		s.Require().NoError(err)
		s.Zero(queued)
	})

	s.Run("demoting a global entry still fans out", func() {
		demoted := s.license
		demoted.IsGlobal = false
		_, queued, err := s.svc.UpsertDocumentType(s.ctx, demoted)
		s.Require().NoError(err)
		s.Equal(2, queued)
		s.queue.drain()
	})

	s.Run("validates name and scope", func() {
		_, _, err := s.svc.UpsertDocumentType(s.ctx, models.DocumentType{Scope: models.ScopeCompany})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, _, err = s.svc.UpsertDocumentType(s.ctx, models.DocumentType{Name: "x", Scope: "BRANCH"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestRequiredDocuments() {
	_, err := s.svc.UpsertTechnicianCredential(s.ctx, s.ada.ID, s.license.ID, s.date(12))
	s.Require().NoError(err)

	reqs, err := s.svc.RequiredDocuments(s.ctx, s.ada.ID)
	s.Require().NoError(err)
	s.Require().Len(reqs, 2)

	s.Equal(s.permit.ID, reqs[0].DocumentType.ID)
	s.Equal(models.StatusMissing, reqs[0].Status)
	s.Nil(reqs[0].Credential)

	s.Equal(s.license.ID, reqs[1].DocumentType.ID)
	s.Equal(models.StatusExpiringSoon, reqs[1].Status)
	s.Require().NotNil(reqs[1].DaysLeft)
	s.Equal(12, *reqs[1].DaysLeft)

	_, err = s.svc.RequiredDocuments(s.ctx, id.NewTechnicianID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestBranchStats() {
	_, err := s.svc.UpsertTechnicianCredential(s.ctx, s.ada.ID, s.license.ID, s.date(200))
	s.Require().NoError(err)
	_, err = s.svc.UpsertTechnicianCredential(s.ctx, s.ada.ID, s.permit.ID, s.date(200))
	s.Require().NoError(err)

	stats, err := s.svc.BranchStats(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stats, 1)
	s.Equal(2, stats[0].Technicians)
	s.Equal(1, stats[0].Valid)
	s.Equal(50.0, stats[0].AverageScore)

	other := id.NewBranchID()
	s.Require().NoError(s.svc.MoveTechnicianBranch(s.ctx, s.bob.ID, other))
	stats, err = s.svc.BranchStats(s.ctx)
	s.Require().NoError(err)
	s.Len(stats, 2)
}

func (s *ServiceSuite) TestCompanyAccreditation() {
	cred, err := s.svc.UpsertCompanyCredential(s.ctx, s.acme.ID, s.insure.ID, s.date(400))
	s.Require().NoError(err)
	s.Equal(models.StatusValid, cred.Status)

	company, err := s.store.FindCompany(s.ctx, s.acme.ID)
	s.Require().NoError(err)
	s.Equal(100, company.ComplianceScore)

	_, err = s.svc.UpsertCompanyCredential(s.ctx, s.acme.ID, s.permit.ID, s.date(400))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestRecompute() {
	s.Run("single technician", func() {
		result, err := s.svc.RecomputeTechnician(s.ctx, s.bob.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusMissing, result.Status)
	})

	s.Run("all entities are queued", func() {
		queued, err := s.svc.RecomputeAll(s.ctx)
		s.Require().NoError(err)
		s.Equal(3, queued)
		jobs := s.queue.drain()
		s.Len(jobs, 3)
		for _, j := range jobs {
			s.False(j.SyncPending)
			s.Require().NoError(s.svc.HandleJob(s.ctx, j))
		}
	})

	s.Run("jobs for deleted entities are not found", func() {
		err := s.svc.HandleJob(s.ctx, recompute.NewJob(recompute.KindTechnician, uuid.New(), "", s.now))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		err = s.svc.HandleJob(s.ctx, recompute.Job{Kind: "branch", EntityID: uuid.New()})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestAlertsThroughCache() {
	_, err := s.svc.UpsertTechnicianCredential(s.ctx, s.ada.ID, s.permit.ID, s.date(-3))
	s.Require().NoError(err)

	deriver, err := alerts.NewService(s.svc)
	s.Require().NoError(err)
	out, err := deriver.Alerts(s.ctx)
	s.Require().NoError(err)
	s.Require().NotEmpty(out)
	s.Equal(alerts.IDTechsExpired, out[0].ID)
	s.Contains([]string{out[0].ID, out[1].ID}, alerts.NoCompliantID(s.acme.ID))
}

func (s *ServiceSuite) TestInvalidateCache() {
	_, err := s.svc.DocumentTypes(s.ctx)
	s.Require().NoError(err)
	evicted := s.svc.InvalidateCache(cache.CategoryDocumentType)
	s.Contains(evicted, cache.KeyDocumentTypes)
}

func (s *ServiceSuite) TestConstructorValidation() {
	scorer, err := score.New(s.store)
	s.Require().NoError(err)
	_, err = service.New(nil, scorer, s.cache, s.queue)
	s.Error(err)
	_, err = service.New(s.store, nil, s.cache, s.queue)
	s.Error(err)
	_, err = service.New(s.store, scorer, nil, s.queue)
	s.Error(err)
	_, err = service.New(s.store, scorer, s.cache, nil)
	s.Error(err)
}
