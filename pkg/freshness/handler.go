package freshness

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/httpserver"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/tenant"
)

// Handler exposes the sync-status reporting entry point that drives the
// freshness state machine (spec.md 4.4). The actual ETL/sync execution is
// out of this control plane's scope; whatever system runs a sync calls
// this once per attempt.
type Handler struct {
	Monitor *Monitor
	Logger  *slog.Logger
}

func NewHandler(monitor *Monitor, logger *slog.Logger) *Handler {
	return &Handler{Monitor: monitor, Logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{connectorId}/sync-status", h.handleReportSyncStatus)
	return r
}

type reportSyncStatusRequest struct {
	SourceType         string     `json:"source_type" validate:"required"`
	LastSyncAt         *time.Time `json:"last_sync_at"`
	LastSyncFailed     bool       `json:"last_sync_failed"`
	BackfillInProgress bool       `json:"backfill_in_progress"`
	IsCriticalSource   bool       `json:"is_critical_source"`
}

func (h *Handler) handleReportSyncStatus(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		httpserver.RespondDomainError(w, cperr.New(cperr.CodeTenantRequired, "no active tenant"))
		return
	}

	connectorID, err := uuid.Parse(chi.URLParam(r, "connectorId"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_connector_id", "connectorId must be a uuid")
		return
	}

	var req reportSyncStatusRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	availability, err := h.Monitor.Observe(r.Context(), tc.Tenant.ID, connectorID, req.SourceType, SyncStatus{
		LastSyncAt:         req.LastSyncAt,
		LastSyncFailed:     req.LastSyncFailed,
		BackfillInProgress: req.BackfillInProgress,
	}, req.IsCriticalSource)
	if err != nil {
		if de, ok := err.(*cperr.Error); ok {
			httpserver.RespondDomainError(w, de)
			return
		}
		h.Logger.Error("observing sync status", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to process sync status")
		return
	}
	httpserver.Respond(w, http.StatusOK, availability)
}
