package dataset

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/httpserver"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/tenant"
)

// Handler provides HTTP handlers for the dataset version manager
// (spec.md 4.10): registering candidate schema versions, promoting or
// failing them, and rolling an active version back.
type Handler struct {
	Manager *Manager
	Logger  *slog.Logger
}

func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{Manager: manager, Logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{datasetName}/active", h.handleGetActive)
	r.Post("/{datasetName}/versions", h.handleCreatePending)
	r.Post("/{datasetName}/versions/{versionID}/activate", h.handleActivate)
	r.Post("/{datasetName}/versions/{versionID}/fail", h.handleFail)
	r.Post("/{datasetName}/rollback", h.handleRollback)
	return r
}

func (h *Handler) handleGetActive(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	v, found, err := h.Manager.Active(r.Context(), tc.Tenant.ID, chi.URLParam(r, "datasetName"))
	if err != nil {
		h.Logger.Error("loading active dataset version", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to load active version")
		return
	}
	if !found {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "no active version for this dataset")
		return
	}
	httpserver.Respond(w, http.StatusOK, v)
}

type createPendingRequest struct {
	VersionNumber int      `json:"version_number" validate:"required"`
	Columns       []Column `json:"columns" validate:"required,min=1"`
}

func (h *Handler) handleCreatePending(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	var req createPendingRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	v, err := h.Manager.CreatePending(r.Context(), tc.Tenant.ID, chi.URLParam(r, "datasetName"), req.VersionNumber, req.Columns)
	if err != nil {
		if de, ok := err.(*cperr.Error); ok {
			httpserver.RespondDomainError(w, de)
			return
		}
		h.Logger.Error("creating pending dataset version", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create pending version")
		return
	}
	httpserver.Respond(w, http.StatusCreated, v)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "versionID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_version_id", "versionID must be a uuid")
		return
	}

	datasetName := chi.URLParam(r, "datasetName")

	// The store has no get-by-id lookup (only FindPending, keyed by version
	// number): the caller already holds the full Version from CreatePending,
	// so activation takes it in the body rather than refetching it.
	var body struct {
		Version Version `json:"version" validate:"required"`
	}
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}
	if body.Version.ID != versionID {
		httpserver.RespondError(w, http.StatusBadRequest, "version_id_mismatch", "body version id must match the path")
		return
	}

	if err := h.Manager.Activate(r.Context(), tc.Tenant.ID, datasetName, body.Version); err != nil {
		if de, ok := err.(*cperr.Error); ok {
			httpserver.RespondDomainError(w, de)
			return
		}
		h.Logger.Error("activating dataset version", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to activate version")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "activated"})
}

func (h *Handler) handleFail(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuid.Parse(chi.URLParam(r, "versionID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_version_id", "versionID must be a uuid")
		return
	}
	if err := h.Manager.Fail(r.Context(), versionID); err != nil {
		h.Logger.Error("failing dataset version", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to mark version failed")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "failed"})
}

func (h *Handler) handleRollback(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	if err := h.Manager.Rollback(r.Context(), tc.Tenant.ID, chi.URLParam(r, "datasetName")); err != nil {
		if de, ok := err.(*cperr.Error); ok {
			httpserver.RespondDomainError(w, de)
			return
		}
		h.Logger.Error("rolling back dataset version", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to roll back dataset")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "rolled_back"})
}
