// Package requirements resolves the set of document types an entity must hold.
//
// Resolution is total: a company or document type that no longer exists
// contributes nothing instead of failing, so derivation keeps working over
// partially inconsistent relational data (a company unlinked before a cache
// refresh, a catalog entry deleted mid-flight).
package requirements

import (
	"fieldcomply/internal/compliance/models"
	id "fieldcomply/pkg/domain"
)

// Global returns the active global catalog entries of scope.
func Global(catalog []models.DocumentType, scope models.Scope) models.Set[id.DocumentTypeID] {
	out := make(models.Set[id.DocumentTypeID])
	for _, dt := range catalog {
		if dt.IsGlobal && dt.IsActive && dt.Scope == scope {
			out.Add(dt.ID)
		}
	}
	return out
}

// ForTechnician unions the global technician requirements with the
// RequiredDocTypes of every company the technician is linked to.
func ForTechnician(
	tech *models.Technician,
	catalog []models.DocumentType,
	companies map[id.CompanyID]*models.Company,
) models.Set[id.DocumentTypeID] {
	required := Global(catalog, models.ScopeTechnician)
	if tech == nil {
		return required
	}
	for companyID := range tech.CompanyIDs {
		company, ok := companies[companyID]
		if !ok || company == nil {
			continue
		}
		required.Add(company.RequiredDocTypes.Slice()...)
	}
	return required
}

// ForCompany unions the global company requirements with the company's own
// accreditation list.
func ForCompany(company *models.Company, catalog []models.DocumentType) models.Set[id.DocumentTypeID] {
	required := Global(catalog, models.ScopeCompany)
	if company == nil {
		return required
	}
	required.Add(company.RequiredDocTypesForCompany.Slice()...)
	return required
}

// Resolver binds a catalog and company index so callers can resolve by entity alone.
type Resolver struct {
	catalog   []models.DocumentType
	companies map[id.CompanyID]*models.Company
}

// NewResolver indexes companies by ID. Nil entries are skipped.
func NewResolver(catalog []models.DocumentType, companies []*models.Company) *Resolver {
	index := make(map[id.CompanyID]*models.Company, len(companies))
	for _, c := range companies {
		if c != nil {
			index[c.ID] = c
		}
	}
	return &Resolver{catalog: catalog, companies: index}
}

// Technician returns the technician's required document set.
func (r *Resolver) Technician(tech *models.Technician) models.Set[id.DocumentTypeID] {
	return ForTechnician(tech, r.catalog, r.companies)
}

// Company returns the company's own required document set.
func (r *Resolver) Company(company *models.Company) models.Set[id.DocumentTypeID] {
	return ForCompany(company, r.catalog)
}

// LookupCompany returns an indexed company.
func (r *Resolver) LookupCompany(companyID id.CompanyID) (*models.Company, bool) {
	c, ok := r.companies[companyID]
	return c, ok
}
