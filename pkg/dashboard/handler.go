package dashboard

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/httpserver"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/tenant"
)

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Handler provides HTTP handlers for the dashboards API.
type Handler struct {
	Manager *Manager
	Logger  *slog.Logger
}

func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{Manager: manager, Logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Put("/", h.handleUpdate)
		r.Post("/restore/{version}", h.handleRestore)
	})
	return r
}

type createRequest struct {
	Name    string   `json:"name" validate:"required"`
	Reports []Report `json:"reports"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	d, err := h.Manager.Create(r.Context(), tc.Tenant.ID, tc.User.ID, CreateInput{Name: req.Name, Reports: req.Reports})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, d)
}

type updateRequest struct {
	Name              *string  `json:"name,omitempty"`
	Reports           []Report `json:"reports,omitempty"`
	ExpectedUpdatedAt string   `json:"expected_updated_at" validate:"required"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid dashboard id")
		return
	}

	var req updateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	expected, parseErr := parseRFC3339(req.ExpectedUpdatedAt)
	if parseErr != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "expected_updated_at must be RFC3339")
		return
	}

	d, err := h.Manager.Update(r.Context(), tc.Tenant.ID, id, tc.User.ID, UpdateInput{
		Name:              req.Name,
		Reports:           req.Reports,
		ExpectedUpdatedAt: expected,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, d)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid dashboard id")
		return
	}

	versionNumber, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid version number")
		return
	}

	d, err := h.Manager.Restore(r.Context(), tc.Tenant.ID, id, tc.User.ID, versionNumber)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, d)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	if de, ok := err.(*cperr.Error); ok {
		httpserver.RespondDomainError(w, de)
		return
	}
	h.Logger.Error("dashboard handler error", "error", err)
	httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
}
