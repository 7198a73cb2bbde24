// Package domain holds identifier types shared by every compliance package.
//
// Each entity gets its own UUID-backed type so a CompanyID can never be passed where
// a TechnicianID is expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "fieldcomply/pkg/domain-errors"
)

type (
	TechnicianID   uuid.UUID
	CompanyID      uuid.UUID
	DocumentTypeID uuid.UUID
	BranchID       uuid.UUID
	CredentialID   uuid.UUID
)

func (id TechnicianID) String() string   { return uuid.UUID(id).String() }
func (id CompanyID) String() string      { return uuid.UUID(id).String() }
func (id DocumentTypeID) String() string { return uuid.UUID(id).String() }
func (id BranchID) String() string       { return uuid.UUID(id).String() }
func (id CredentialID) String() string   { return uuid.UUID(id).String() }

func (id TechnicianID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id DocumentTypeID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BranchID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func (id TechnicianID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id CompanyID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id DocumentTypeID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id BranchID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id CredentialID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *TechnicianID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CompanyID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DocumentTypeID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *BranchID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CredentialID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }

// NewTechnicianID and friends mint random identifiers for seeding and tests.
func NewTechnicianID() TechnicianID     { return TechnicianID(uuid.New()) }
func NewCompanyID() CompanyID           { return CompanyID(uuid.New()) }
func NewDocumentTypeID() DocumentTypeID { return DocumentTypeID(uuid.New()) }
func NewBranchID() BranchID             { return BranchID(uuid.New()) }
func NewCredentialID() CredentialID     { return CredentialID(uuid.New()) }

func ParseTechnicianID(s string) (TechnicianID, error) {
	u, err := parseUUID(s, "technician_id")
	return TechnicianID(u), err
}

func ParseCompanyID(s string) (CompanyID, error) {
	u, err := parseUUID(s, "company_id")
	return CompanyID(u), err
}

func ParseDocumentTypeID(s string) (DocumentTypeID, error) {
	u, err := parseUUID(s, "document_type_id")
	return DocumentTypeID(u), err
}

func ParseBranchID(s string) (BranchID, error) {
	u, err := parseUUID(s, "branch_id")
	return BranchID(u), err
}

// parseUUID rejects empty input, malformed UUIDs and the nil UUID.
func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}
