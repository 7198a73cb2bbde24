// Package models defines the compliance domain types shared by the resolver,
// aggregator, cache and alert packages.
package models

import (
	"time"

	id "fieldcomply/pkg/domain"
	dErrors "fieldcomply/pkg/domain-errors"
)

// Scope says which kind of entity a document type is required of.
type Scope string

const (
	ScopeTechnician Scope = "TECHNICIAN"
	ScopeCompany    Scope = "COMPANY"
)

// IsValid checks if the scope is one of the supported values.
func (s Scope) IsValid() bool {
	return s == ScopeTechnician || s == ScopeCompany
}

// ParseScope validates a stored or user-supplied scope.
func ParseScope(v string) (Scope, error) {
	s := Scope(v)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid scope: must be TECHNICIAN or COMPANY")
	}
	return s, nil
}

// DocumentType is a catalog entry. Global types apply to every entity of their
// scope regardless of company linkage.
type DocumentType struct {
	ID       id.DocumentTypeID `json:"id"`
	Name     string            `json:"name"`
	Scope    Scope             `json:"scope"`
	IsGlobal bool              `json:"is_global"`
	IsActive bool              `json:"is_active"`
}

// Credential is the record held for one (entity, document type) pair.
// A nil ExpiryDate means the document has no expiry on file yet.
type Credential struct {
	ID             id.CredentialID   `json:"id"`
	DocumentTypeID id.DocumentTypeID `json:"document_type_id"`
	ExpiryDate     *time.Time        `json:"expiry_date,omitempty"`
	Status         Status            `json:"status"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Technician is a field worker linked to any number of companies.
type Technician struct {
	ID              id.TechnicianID   `json:"id"`
	Name            string            `json:"name"`
	BranchID        id.BranchID       `json:"branch_id"`
	CompanyIDs      Set[id.CompanyID] `json:"company_ids"`
	Credentials     []Credential      `json:"credentials"`
	ComplianceScore int               `json:"compliance_score"`
	OverallStatus   Status            `json:"overall_status"`
}

// Company imposes RequiredDocTypes on every linked technician and
// RequiredDocTypesForCompany on itself.
type Company struct {
	ID                         id.CompanyID           `json:"id"`
	Name                       string                 `json:"name"`
	RequiredDocTypes           Set[id.DocumentTypeID] `json:"required_doc_types"`
	RequiredDocTypesForCompany Set[id.DocumentTypeID] `json:"required_doc_types_for_company"`
	Credentials                []Credential           `json:"credentials"`
	ComplianceScore            int                    `json:"compliance_score"`
	OverallStatus              Status                 `json:"overall_status"`
}

// Result is the derived compliance of one entity.
type Result struct {
	Score     int    `json:"score"`
	Status    Status `json:"status"`
	Required  int    `json:"required"`
	Compliant int    `json:"compliant"`
}

// CredentialFor returns the credential held for docID, if any.
func CredentialFor(creds []Credential, docID id.DocumentTypeID) (Credential, bool) {
	for _, c := range creds {
		if c.DocumentTypeID == docID {
			return c, true
		}
	}
	return Credential{}, false
}

// ApplyResult copies a recomputed result onto the in-memory technician.
func (t *Technician) ApplyResult(r Result) {
	t.ComplianceScore = r.Score
	t.OverallStatus = r.Status
}

// ApplyResult copies a recomputed result onto the in-memory company.
func (c *Company) ApplyResult(r Result) {
	c.ComplianceScore = r.Score
	c.OverallStatus = r.Status
}

// LinkedTo reports whether the technician works for companyID.
func (t *Technician) LinkedTo(companyID id.CompanyID) bool {
	return t.CompanyIDs.Has(companyID)
}

// BranchStats aggregates technician compliance for one branch.
type BranchStats struct {
	BranchID     id.BranchID `json:"branch_id"`
	Technicians  int         `json:"technicians"`
	Valid        int         `json:"valid"`
	ExpiringSoon int         `json:"expiring_soon"`
	Pending      int         `json:"pending"`
	Missing      int         `json:"missing"`
	Expired      int         `json:"expired"`
	AverageScore float64     `json:"average_score"`
}

// Count increments the counter matching s.
func (b *BranchStats) Count(s Status) {
	switch s {
	case StatusValid:
		b.Valid++
	case StatusExpiringSoon:
		b.ExpiringSoon++
	case StatusPending:
		b.Pending++
	case StatusMissing:
		b.Missing++
	case StatusExpired:
		b.Expired++
	}
}

// Clone deep-copies the technician so callers can mutate it without touching
// the original.
func (t *Technician) Clone() *Technician {
	if t == nil {
		return nil
	}
	out := *t
	out.CompanyIDs = t.CompanyIDs.Clone()
	out.Credentials = cloneCredentials(t.Credentials)
	return &out
}

// Clone deep-copies the company.
func (c *Company) Clone() *Company {
	if c == nil {
		return nil
	}
	out := *c
	out.RequiredDocTypes = c.RequiredDocTypes.Clone()
	out.RequiredDocTypesForCompany = c.RequiredDocTypesForCompany.Clone()
	out.Credentials = cloneCredentials(c.Credentials)
	return &out
}

// UpsertCredential replaces the credential held for cred's document type or
// appends it.
func UpsertCredential(creds []Credential, cred Credential) []Credential {
	for i := range creds {
		if creds[i].DocumentTypeID == cred.DocumentTypeID {
			creds[i] = cred
			return creds
		}
	}
	return append(creds, cred)
}

func cloneCredentials(creds []Credential) []Credential {
	if creds == nil {
		return nil
	}
	out := make([]Credential, len(creds))
	for i, c := range creds {
		if c.ExpiryDate != nil {
			d := *c.ExpiryDate
			c.ExpiryDate = &d
		}
		out[i] = c
	}
	return out
}
