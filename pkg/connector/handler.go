package connector

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/httpserver"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/tenant"
)

// Handler provides HTTP handlers for the connector-registration API.
type Handler struct {
	Registrar *Registrar
	Logger    *slog.Logger
}

func NewHandler(registrar *Registrar, logger *slog.Logger) *Handler {
	return &Handler{Registrar: registrar, Logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleRegister)
	return r
}

type registerRequest struct {
	ExternalConnectionID string         `json:"external_connection_id" validate:"required"`
	SourceType           string         `json:"source_type" validate:"required"`
	ConnectionName       string         `json:"connection_name" validate:"required"`
	Configuration        map[string]any `json:"configuration"`
	SyncFrequencyMinutes int            `json:"sync_frequency_minutes" validate:"required,gte=1"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	var req registerRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	conn, err := h.Registrar.Register(r.Context(), tc.Tenant.ID, RegisterInput{
		ExternalConnectionID: req.ExternalConnectionID,
		SourceType:           req.SourceType,
		ConnectionName:       req.ConnectionName,
		Configuration:        req.Configuration,
		SyncFrequencyMinutes: req.SyncFrequencyMinutes,
	})
	if err != nil {
		if de, ok := err.(*cperr.Error); ok {
			httpserver.RespondDomainError(w, de)
			return
		}
		h.Logger.Error("registering connector", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to register connection")
		return
	}
	httpserver.Respond(w, http.StatusCreated, conn)
}
