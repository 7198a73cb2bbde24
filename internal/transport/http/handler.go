// Package httptransport exposes compliance reads, mutations and cache
// operations over HTTP.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fieldcomply/internal/cache"
	"fieldcomply/internal/compliance/models"
	"fieldcomply/internal/compliance/service"
	id "fieldcomply/pkg/domain"
	dErrors "fieldcomply/pkg/domain-errors"
	"fieldcomply/pkg/platform/httputil"
	"fieldcomply/pkg/requestcontext"
)

// ComplianceService is the subset of the compliance service the handlers call.
type ComplianceService interface {
	Technicians(ctx context.Context) ([]*models.Technician, error)
	Technician(ctx context.Context, technicianID id.TechnicianID) (*models.Technician, error)
	RequiredDocuments(ctx context.Context, technicianID id.TechnicianID) ([]service.Requirement, error)
	Companies(ctx context.Context) ([]*models.Company, error)
	Company(ctx context.Context, companyID id.CompanyID) (*models.Company, error)
	DocumentTypes(ctx context.Context) ([]models.DocumentType, error)
	BranchStats(ctx context.Context) ([]models.BranchStats, error)

	UpsertTechnicianCredential(ctx context.Context, technicianID id.TechnicianID, docID id.DocumentTypeID, expiry *time.Time) (models.Credential, error)
	UpsertCompanyCredential(ctx context.Context, companyID id.CompanyID, docID id.DocumentTypeID, expiry *time.Time) (models.Credential, error)
	LinkTechnician(ctx context.Context, technicianID id.TechnicianID, companyID id.CompanyID) (models.Result, error)
	UnlinkTechnician(ctx context.Context, technicianID id.TechnicianID, companyID id.CompanyID) (models.Result, error)
	MoveTechnicianBranch(ctx context.Context, technicianID id.TechnicianID, branchID id.BranchID) error
	UpdateCompanyRequirements(ctx context.Context, companyID id.CompanyID, forTechnicians, forCompany models.Set[id.DocumentTypeID]) (int, error)
	UpsertDocumentType(ctx context.Context, docType models.DocumentType) (models.DocumentType, int, error)
	RecomputeTechnician(ctx context.Context, technicianID id.TechnicianID) (models.Result, error)
	RecomputeCompany(ctx context.Context, companyID id.CompanyID) (models.Result, error)
	RecomputeAll(ctx context.Context) (int, error)
	InvalidateCache(category cache.Category) []string
}

type AlertService interface {
	Alerts(ctx context.Context) ([]models.Alert, error)
}

// Handler wires compliance endpoints to the services.
type Handler struct {
	compliance ComplianceService
	alerts     AlertService
	logger     *slog.Logger
}

func New(compliance ComplianceService, alerts AlertService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		compliance: compliance,
		alerts:     alerts,
		logger:     logger,
	}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/technicians", h.handleListTechnicians)
		r.Route("/technicians/{technicianID}", func(r chi.Router) {
			r.Get("/", h.handleGetTechnician)
			r.Get("/requirements", h.handleRequiredDocuments)
			r.Post("/recompute", h.handleRecomputeTechnician)
			r.Put("/branch", h.handleMoveBranch)
			r.Put("/credentials/{documentTypeID}", h.handleUpsertTechnicianCredential)
			r.Put("/companies/{companyID}", h.handleLink)
			r.Delete("/companies/{companyID}", h.handleUnlink)
		})

		r.Get("/companies", h.handleListCompanies)
		r.Route("/companies/{companyID}", func(r chi.Router) {
			r.Get("/", h.handleGetCompany)
			r.Post("/recompute", h.handleRecomputeCompany)
			r.Put("/requirements", h.handleUpdateRequirements)
			r.Put("/credentials/{documentTypeID}", h.handleUpsertCompanyCredential)
		})

		r.Get("/document-types", h.handleListDocumentTypes)
		r.Put("/document-types", h.handleUpsertDocumentType)

		r.Get("/branches/stats", h.handleBranchStats)
		r.Get("/alerts", h.handleAlerts)

		r.Post("/recompute", h.handleRecomputeAll)
		r.Post("/cache/invalidate/{category}", h.handleInvalidate)
	})
}

func (h *Handler) handleListTechnicians(w http.ResponseWriter, r *http.Request) {
	techs, err := h.compliance.Technicians(r.Context())
	if err != nil {
		h.fail(w, r, "list technicians", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse[*models.Technician]{Items: techs, Count: len(techs)})
}

func (h *Handler) handleGetTechnician(w http.ResponseWriter, r *http.Request) {
	technicianID, err := id.ParseTechnicianID(chi.URLParam(r, "technicianID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tech, err := h.compliance.Technician(r.Context(), technicianID)
	if err != nil {
		h.fail(w, r, "get technician", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tech)
}

func (h *Handler) handleRequiredDocuments(w http.ResponseWriter, r *http.Request) {
	technicianID, err := id.ParseTechnicianID(chi.URLParam(r, "technicianID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqs, err := h.compliance.RequiredDocuments(r.Context(), technicianID)
	if err != nil {
		h.fail(w, r, "list required documents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse[service.Requirement]{Items: reqs, Count: len(reqs)})
}

func (h *Handler) handleRecomputeTechnician(w http.ResponseWriter, r *http.Request) {
	technicianID, err := id.ParseTechnicianID(chi.URLParam(r, "technicianID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.compliance.RecomputeTechnician(r.Context(), technicianID)
	if err != nil {
		h.fail(w, r, "recompute technician", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleMoveBranch(w http.ResponseWriter, r *http.Request) {
	technicianID, err := id.ParseTechnicianID(chi.URLParam(r, "technicianID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := decode[MoveBranchRequest](w, r)
	if !ok {
		return
	}
	if err := h.compliance.MoveTechnicianBranch(r.Context(), technicianID, req.branchID); err != nil {
		h.fail(w, r, "move technician branch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpsertTechnicianCredential(w http.ResponseWriter, r *http.Request) {
	technicianID, err := id.ParseTechnicianID(chi.URLParam(r, "technicianID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	docID, err := id.ParseDocumentTypeID(chi.URLParam(r, "documentTypeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := decode[CredentialRequest](w, r)
	if !ok {
		return
	}
	cred, err := h.compliance.UpsertTechnicianCredential(r.Context(), technicianID, docID, req.expiry)
	if err != nil {
		h.fail(w, r, "record technician credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cred)
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	technicianID, companyID, ok := linkParams(w, r)
	if !ok {
		return
	}
	result, err := h.compliance.LinkTechnician(r.Context(), technicianID, companyID)
	if err != nil {
		h.fail(w, r, "link technician", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUnlink(w http.ResponseWriter, r *http.Request) {
	technicianID, companyID, ok := linkParams(w, r)
	if !ok {
		return
	}
	result, err := h.compliance.UnlinkTechnician(r.Context(), technicianID, companyID)
	if err != nil {
		h.fail(w, r, "unlink technician", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.compliance.Companies(r.Context())
	if err != nil {
		h.fail(w, r, "list companies", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse[*models.Company]{Items: companies, Count: len(companies)})
}

func (h *Handler) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	company, err := h.compliance.Company(r.Context(), companyID)
	if err != nil {
		h.fail(w, r, "get company", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, company)
}

func (h *Handler) handleRecomputeCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.compliance.RecomputeCompany(r.Context(), companyID)
	if err != nil {
		h.fail(w, r, "recompute company", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUpdateRequirements(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := decode[RequirementsRequest](w, r)
	if !ok {
		return
	}
	queued, err := h.compliance.UpdateCompanyRequirements(r.Context(), companyID, req.forTechnicians, req.forCompany)
	if err != nil {
		h.fail(w, r, "update company requirements", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, QueuedResponse{Queued: queued})
}

func (h *Handler) handleUpsertCompanyCredential(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	docID, err := id.ParseDocumentTypeID(chi.URLParam(r, "documentTypeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := decode[CredentialRequest](w, r)
	if !ok {
		return
	}
	cred, err := h.compliance.UpsertCompanyCredential(r.Context(), companyID, docID, req.expiry)
	if err != nil {
		h.fail(w, r, "record company credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cred)
}

func (h *Handler) handleListDocumentTypes(w http.ResponseWriter, r *http.Request) {
	docs, err := h.compliance.DocumentTypes(r.Context())
	if err != nil {
		h.fail(w, r, "list document types", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse[models.DocumentType]{Items: docs, Count: len(docs)})
}

func (h *Handler) handleUpsertDocumentType(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[DocumentTypeRequest](w, r)
	if !ok {
		return
	}
	docType, queued, err := h.compliance.UpsertDocumentType(r.Context(), req.docType)
	if err != nil {
		h.fail(w, r, "upsert document type", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DocumentTypeResponse{DocumentType: docType, Queued: queued})
}

func (h *Handler) handleBranchStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.compliance.BranchStats(r.Context())
	if err != nil {
		h.fail(w, r, "branch stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse[models.BranchStats]{Items: stats, Count: len(stats)})
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.Alerts(r.Context())
	if err != nil {
		h.fail(w, r, "derive alerts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse[models.Alert]{Items: alerts, Count: len(alerts)})
}

func (h *Handler) handleRecomputeAll(w http.ResponseWriter, r *http.Request) {
	queued, err := h.compliance.RecomputeAll(r.Context())
	if err != nil {
		h.fail(w, r, "recompute all", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, QueuedResponse{Queued: queued})
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	category, err := cache.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown cache category"))
		return
	}
	evicted := h.compliance.InvalidateCache(category)
	if evicted == nil {
		evicted = []string{}
	}
	h.logger.InfoContext(r.Context(), "cache invalidated on request",
		"request_id", requestcontext.RequestID(r.Context()),
		"category", category,
		"evicted", len(evicted),
	)
	httputil.WriteJSON(w, http.StatusOK, InvalidateResponse{Category: string(category), Evicted: evicted})
}

// fail logs server-side failures and writes the error envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httputil.StatusFor(dErrors.GetCode(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func linkParams(w http.ResponseWriter, r *http.Request) (id.TechnicianID, id.CompanyID, bool) {
	technicianID, err := id.ParseTechnicianID(chi.URLParam(r, "technicianID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.TechnicianID{}, id.CompanyID{}, false
	}
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "companyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.TechnicianID{}, id.CompanyID{}, false
	}
	return technicianID, companyID, true
}
