package httptransport

import (
	"net/http"
	"strings"
	"time"

	"fieldcomply/internal/compliance/models"
	id "fieldcomply/pkg/domain"
	dErrors "fieldcomply/pkg/domain-errors"
	"fieldcomply/pkg/platform/httputil"
)

// dateLayout is the wire format of expiry dates. Expiries are calendar dates.
const dateLayout = "2006-01-02"

type validatable interface {
	Validate() error
}

// decode reads and validates a request body, writing the error response itself
// when it fails.
func decode[T any, PT interface {
	*T
	validatable
}](w http.ResponseWriter, r *http.Request) (T, bool) {
	req, err := httputil.DecodeJSON[T](r)
	if err != nil {
		httputil.WriteError(w, err)
		return req, false
	}
	if err := PT(&req).Validate(); err != nil {
		httputil.WriteError(w, err)
		return req, false
	}
	return req, true
}

// CredentialRequest is the body of PUT .../credentials/{documentTypeID}.
// A null or missing expiry_date records a pending credential.
type CredentialRequest struct {
	ExpiryDate *string `json:"expiry_date"`

	expiry *time.Time
}

func (r *CredentialRequest) Validate() error {
	if r.ExpiryDate == nil || strings.TrimSpace(*r.ExpiryDate) == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*r.ExpiryDate))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "expiry_date must be a YYYY-MM-DD date")
	}
	r.expiry = &t
	return nil
}

// MoveBranchRequest is the body of PUT /api/technicians/{id}/branch.
type MoveBranchRequest struct {
	BranchID string `json:"branch_id"`

	branchID id.BranchID
}

func (r *MoveBranchRequest) Validate() error {
	branchID, err := id.ParseBranchID(r.BranchID)
	if err != nil {
		return err
	}
	r.branchID = branchID
	return nil
}

// RequirementsRequest replaces both requirement lists of a company.
type RequirementsRequest struct {
	TechnicianDocuments []string `json:"technician_documents"`
	CompanyDocuments    []string `json:"company_documents"`

	forTechnicians models.Set[id.DocumentTypeID]
	forCompany     models.Set[id.DocumentTypeID]
}

func (r *RequirementsRequest) Validate() error {
	var err error
	if r.forTechnicians, err = parseDocumentIDs(r.TechnicianDocuments); err != nil {
		return err
	}
	if r.forCompany, err = parseDocumentIDs(r.CompanyDocuments); err != nil {
		return err
	}
	return nil
}

// DocumentTypeRequest creates a catalog entry, or updates one when ID is set.
type DocumentTypeRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Scope    string `json:"scope"`
	IsGlobal bool   `json:"is_global"`
	IsActive *bool  `json:"is_active"`

	docType models.DocumentType
}

func (r *DocumentTypeRequest) Validate() error {
	scope, err := models.ParseScope(strings.ToUpper(strings.TrimSpace(r.Scope)))
	if err != nil {
		return err
	}
	r.docType = models.DocumentType{
		Name:     strings.TrimSpace(r.Name),
		Scope:    scope,
		IsGlobal: r.IsGlobal,
		IsActive: r.IsActive == nil || *r.IsActive,
	}
	if r.ID != "" {
		if r.docType.ID, err = id.ParseDocumentTypeID(r.ID); err != nil {
			return err
		}
	}
	if r.docType.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

func parseDocumentIDs(raw []string) (models.Set[id.DocumentTypeID], error) {
	out := models.NewSet[id.DocumentTypeID]()
	for _, v := range raw {
		docID, err := id.ParseDocumentTypeID(v)
		if err != nil {
			return nil, err
		}
		out.Add(docID)
	}
	return out, nil
}
