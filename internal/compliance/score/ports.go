package score

//go:generate mockgen -source=ports.go -destination=mocks/store_mock.go -package=mocks

import (
	"context"

	"fieldcomply/internal/compliance/models"
	id "fieldcomply/pkg/domain"
)

// Store is the slice of the durable record store the aggregator needs.
type Store interface {
	ListDocumentTypes(ctx context.Context) ([]models.DocumentType, error)
	// FindCompanies returns the companies that exist; unknown IDs are omitted.
	FindCompanies(ctx context.Context, ids []id.CompanyID) ([]*models.Company, error)
	SaveTechnicianResult(ctx context.Context, technicianID id.TechnicianID, result models.Result) error
	SaveCompanyResult(ctx context.Context, companyID id.CompanyID, result models.Result) error
	InsertTechnicianCredentials(ctx context.Context, technicianID id.TechnicianID, creds []models.Credential) error
	InsertCompanyCredentials(ctx context.Context, companyID id.CompanyID, creds []models.Credential) error
}
