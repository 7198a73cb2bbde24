package service

import (
	"context"

	"fieldcomply/internal/compliance/models"
	"fieldcomply/internal/compliance/recompute"
	id "fieldcomply/pkg/domain"
)

// Store is the durable record store. Lookups of a single entity return
// sentinel.ErrNotFound when it does not exist. Returned entities are copies the
// caller owns.
type Store interface {
	ListDocumentTypes(ctx context.Context) ([]models.DocumentType, error)
	UpsertDocumentType(ctx context.Context, docType models.DocumentType) error

	ListTechnicians(ctx context.Context) ([]*models.Technician, error)
	FindTechnician(ctx context.Context, technicianID id.TechnicianID) (*models.Technician, error)
	TechniciansForCompany(ctx context.Context, companyID id.CompanyID) ([]id.TechnicianID, error)
	SetTechnicianBranch(ctx context.Context, technicianID id.TechnicianID, branchID id.BranchID) error
	LinkTechnician(ctx context.Context, technicianID id.TechnicianID, companyID id.CompanyID) error
	UnlinkTechnician(ctx context.Context, technicianID id.TechnicianID, companyID id.CompanyID) error

	ListCompanies(ctx context.Context) ([]*models.Company, error)
	FindCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error)
	FindCompanies(ctx context.Context, ids []id.CompanyID) ([]*models.Company, error)
	SetCompanyRequirements(ctx context.Context, companyID id.CompanyID, forTechnicians, forCompany models.Set[id.DocumentTypeID]) error

	UpsertTechnicianCredential(ctx context.Context, technicianID id.TechnicianID, cred models.Credential) error
	UpsertCompanyCredential(ctx context.Context, companyID id.CompanyID, cred models.Credential) error
	InsertTechnicianCredentials(ctx context.Context, technicianID id.TechnicianID, creds []models.Credential) error
	InsertCompanyCredentials(ctx context.Context, companyID id.CompanyID, creds []models.Credential) error

	SaveTechnicianResult(ctx context.Context, technicianID id.TechnicianID, result models.Result) error
	SaveCompanyResult(ctx context.Context, companyID id.CompanyID, result models.Result) error
}

// Enqueuer hands recompute jobs to the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobs ...recompute.Job) error
}
