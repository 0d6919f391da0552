package billing

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/httpserver"
)

// Handler provides the billing webhook ingestion endpoint. It is mounted
// on the server's unauthenticated router — the payment provider carries no
// tenant bearer token, only an HMAC signature over the raw body.
type Handler struct {
	Pipeline *Pipeline
	Secret   string
	Logger   *slog.Logger
}

func NewHandler(pipeline *Pipeline, secret string, logger *slog.Logger) *Handler {
	return &Handler{Pipeline: pipeline, Secret: secret, Logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{shopDomain}", h.handleWebhook)
	return r
}

type webhookPayload struct {
	ExternalEventID     string `json:"external_event_id"`
	ExternalSubID       string `json:"external_subscription_id"`
	Type                string `json:"type"`
	GracePeriodSeconds  int    `json:"grace_period_seconds"`
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBody = 1 << 20
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "could not read request body")
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")
	if !VerifySignature(body, h.Secret, signature) {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_required", "invalid webhook signature")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}

	ev := Event{
		ExternalEventID: payload.ExternalEventID,
		ExternalSubID:   payload.ExternalSubID,
		Type:            EventType(payload.Type),
	}
	if payload.GracePeriodSeconds > 0 {
		ev.GracePeriodDuration = secondsToDuration(payload.GracePeriodSeconds)
	}

	shopDomain := chi.URLParam(r, "shopDomain")
	result, err := h.Pipeline.Ingest(r.Context(), shopDomain, ev)
	if err != nil {
		h.Logger.Error("ingesting billing webhook", "error", err, "shop_domain", shopDomain)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to process webhook")
		return
	}

	httpserver.Respond(w, http.StatusOK, result)
}

func secondsToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}
