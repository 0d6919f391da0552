package entitlement

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/httpserver"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/tenant"
)

// Handler provides HTTP handlers for the entitlements API.
type Handler struct {
	Engine *Engine
	Logger *slog.Logger
}

func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{Engine: engine, Logger: logger}
}

// Routes returns a chi.Router with all entitlement routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleGet)
	r.Get("/features/{key}", h.handleCheckFeature)
	r.Route("/overrides", func(r chi.Router) {
		r.Put("/{key}", h.handleUpsertOverride)
		r.Delete("/{key}", h.handleDeleteOverride)
	})
	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	resolved, err := h.Engine.GetEntitlements(r.Context(), tc.Tenant.ID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, resolved)
}

func (h *Handler) handleCheckFeature(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	grant, err := h.Engine.CheckFeature(r.Context(), tc.Tenant.ID, chi.URLParam(r, "key"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, grant)
}

type upsertOverrideRequest struct {
	Enabled   bool      `json:"enabled"`
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
	Reason    string    `json:"reason" validate:"required"`
}

func (h *Handler) handleUpsertOverride(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	var req upsertOverrideRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	o := Override{
		TenantID:   tc.Tenant.ID,
		FeatureKey: chi.URLParam(r, "key"),
		Enabled:    req.Enabled,
		ExpiresAt:  req.ExpiresAt,
		Reason:     req.Reason,
		CreatedBy:  tc.User.ExternalUserID,
	}

	if err := h.Engine.UpsertOverride(r.Context(), o, time.Now().UTC()); err != nil {
		if err == ErrOverrideExpiresAtRequired {
			httpserver.RespondError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		h.Logger.Error("upserting override", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to save override")
		return
	}
	httpserver.Respond(w, http.StatusOK, nil)
}

func (h *Handler) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	if err := h.Engine.DeleteOverride(r.Context(), tc.Tenant.ID, chi.URLParam(r, "key")); err != nil {
		h.Logger.Error("deleting override", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete override")
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	if de, ok := err.(*cperr.Error); ok {
		httpserver.RespondDomainError(w, de)
		return
	}
	h.Logger.Error("entitlement handler error", "error", err)
	httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
}
