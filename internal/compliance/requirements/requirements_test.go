package requirements_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"fieldcomply/internal/compliance/models"
	"fieldcomply/internal/compliance/requirements"
	id "fieldcomply/pkg/domain"
)

type RequirementsSuite struct {
	suite.Suite
	globalTech     models.DocumentType
	globalCompany  models.DocumentType
	inactiveGlobal models.DocumentType
	localTech      models.DocumentType
	catalog        []models.DocumentType
	docA, docB     id.DocumentTypeID
	companyA       *models.Company
	companyB       *models.Company
}

func TestRequirementsSuite(t *testing.T) {
	suite.Run(t, new(RequirementsSuite))
}

func (s *RequirementsSuite) SetupTest() {
	s.globalTech = models.DocumentType{ID: id.NewDocumentTypeID(), Scope: models.ScopeTechnician, IsGlobal: true, IsActive: true}
	s.globalCompany = models.DocumentType{ID: id.NewDocumentTypeID(), Scope: models.ScopeCompany, IsGlobal: true, IsActive: true}
	s.inactiveGlobal = models.DocumentType{ID: id.NewDocumentTypeID(), Scope: models.ScopeTechnician, IsGlobal: true, IsActive: false}
	s.localTech = models.DocumentType{ID: id.NewDocumentTypeID(), Scope: models.ScopeTechnician, IsActive: true}
	s.catalog = []models.DocumentType{s.globalTech, s.globalCompany, s.inactiveGlobal, s.localTech}

	s.docA = id.NewDocumentTypeID()
	s.docB = id.NewDocumentTypeID()
	s.companyA = &models.Company{
		ID:                         id.NewCompanyID(),
		RequiredDocTypes:           models.NewSet(s.docA, s.localTech.ID),
		RequiredDocTypesForCompany: models.NewSet(s.docB),
	}
	s.companyB = &models.Company{
		ID:               id.NewCompanyID(),
		RequiredDocTypes: models.NewSet(s.docB, s.localTech.ID),
	}
}

func (s *RequirementsSuite) companies() map[id.CompanyID]*models.Company {
	return map[id.CompanyID]*models.Company{
		s.companyA.ID: s.companyA,
		s.companyB.ID: s.companyB,
	}
}

func (s *RequirementsSuite) TestForTechnician() {
	s.Run("unlinked technician gets active global technician docs only", func() {
		tech := &models.Technician{ID: id.NewTechnicianID()}
		got := requirements.ForTechnician(tech, s.catalog, s.companies())
		s.True(got.Equal(models.NewSet(s.globalTech.ID)))
	})

	s.Run("unions every linked company's requirements", func() {
		tech := &models.Technician{CompanyIDs: models.NewSet(s.companyA.ID, s.companyB.ID)}
		got := requirements.ForTechnician(tech, s.catalog, s.companies())
		s.True(got.Equal(models.NewSet(s.globalTech.ID, s.docA, s.docB, s.localTech.ID)))
	})

	s.Run("shared document from two companies counts once", func() {
		tech := &models.Technician{CompanyIDs: models.NewSet(s.companyA.ID, s.companyB.ID)}
		got := requirements.ForTechnician(tech, s.catalog, s.companies())
		s.Equal(4, got.Len())
	})

	s.Run("company accreditation docs are not imposed on technicians", func() {
		tech := &models.Technician{CompanyIDs: models.NewSet(s.companyA.ID)}
		got := requirements.ForTechnician(tech, s.catalog, s.companies())
		s.False(got.Has(s.docB))
	})

	s.Run("unknown company contributes nothing", func() {
		tech := &models.Technician{CompanyIDs: models.NewSet(id.NewCompanyID(), s.companyA.ID)}
		got := requirements.ForTechnician(tech, s.catalog, s.companies())
		s.True(got.Equal(models.NewSet(s.globalTech.ID, s.docA, s.localTech.ID)))
	})

	s.Run("nil technician resolves globals", func() {
		got := requirements.ForTechnician(nil, s.catalog, nil)
		s.True(got.Equal(models.NewSet(s.globalTech.ID)))
	})
}

func (s *RequirementsSuite) TestForTechnician_OrderIndependent() {
	ab := &models.Technician{CompanyIDs: models.NewSet(s.companyA.ID, s.companyB.ID)}
	ba := &models.Technician{CompanyIDs: models.NewSet(s.companyB.ID, s.companyA.ID)}

	s.True(requirements.ForTechnician(ab, s.catalog, s.companies()).
		Equal(requirements.ForTechnician(ba, s.catalog, s.companies())))
}

func (s *RequirementsSuite) TestForCompany() {
	s.Run("global company docs plus own list", func() {
		got := requirements.ForCompany(s.companyA, s.catalog)
		s.True(got.Equal(models.NewSet(s.globalCompany.ID, s.docB)))
	})

	s.Run("company without own list gets globals", func() {
		got := requirements.ForCompany(s.companyB, s.catalog)
		s.True(got.Equal(models.NewSet(s.globalCompany.ID)))
	})
}

func (s *RequirementsSuite) TestResolver() {
	r := requirements.NewResolver(s.catalog, []*models.Company{s.companyA, nil})
	tech := &models.Technician{CompanyIDs: models.NewSet(s.companyA.ID, s.companyB.ID)}

	got := r.Technician(tech)
	s.True(got.Equal(models.NewSet(s.globalTech.ID, s.docA, s.localTech.ID)))
	s.True(r.Company(s.companyA).Equal(models.NewSet(s.globalCompany.ID, s.docB)))

	_, ok := r.LookupCompany(s.companyB.ID)
	s.False(ok)
}
