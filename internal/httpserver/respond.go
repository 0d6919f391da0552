package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope from spec.md section 6:
// {error_code, message, context}.
type ErrorResponse struct {
	Error   string         `json:"error_code"`
	Message string         `json:"message,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, errCode string, message string) {
	Respond(w, status, ErrorResponse{Error: errCode, Message: message})
}

// statusForCode maps a control-plane error code to the protocol-appropriate
// HTTP status. This is the one place transport-specific status mapping
// lives; everything else in the system deals only in cperr.Code.
func statusForCode(code cperr.Code) int {
	switch code {
	case cperr.CodeAuthRequired:
		return http.StatusUnauthorized
	case cperr.CodeTenantRequired, cperr.CodeCrossTenantDenied, cperr.CodeAccessRevoked,
		cperr.CodeTenantSuspended, cperr.CodeBillingRoleNotAllow, cperr.CodeEntitlementDenied,
		cperr.CodePaymentRequired, cperr.CodeUserInactive, cperr.CodeGuardrailViolation:
		return http.StatusForbidden
	case cperr.CodeTenantNotFound, cperr.CodeAccountNotFound:
		return http.StatusNotFound
	case cperr.CodeDuplicateConnection, cperr.CodeDuplicateShopDomain, cperr.CodeDashboardNameConflict,
		cperr.CodeOptimisticLockConflict, cperr.CodeDashboardLimitExceeded:
		return http.StatusConflict
	case cperr.CodeSchemaIncompatible:
		return http.StatusUnprocessableEntity
	case cperr.CodeEntitlementEvalFailed:
		// Must render as a retryable server-side failure, never a success —
		// spec.md section 6.
		return http.StatusServiceUnavailable
	case cperr.CodeCredentialRevoked, cperr.CodeRefreshExhausted, cperr.CodeSyncFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondDomainError writes the structured error envelope for a *cperr.Error,
// choosing the HTTP status from its code.
func RespondDomainError(w http.ResponseWriter, err *cperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForCode(err.Code))
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   string(err.Code),
		Message: err.Message,
		Context: err.Context,
	})
}
