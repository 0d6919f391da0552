// Package vault implements the credential vault and token manager
// (spec.md section 4.3): encrypted-at-rest OAuth credential storage and a
// three-flow refresh state machine (proactive, reactive, revocation).
package vault

import (
	"time"

	"github.com/google/uuid"
)

// SourceType mirrors the platforms the token manager refreshes against.
type SourceType string

const (
	SourceShopify SourceType = "shopify"
	SourceGoogle  SourceType = "google"
	SourceMeta    SourceType = "meta"
)

// CredentialStatus is spec.md section 3's ConnectorCredential.status enum.
type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "active"
	CredentialExpired CredentialStatus = "expired"
	CredentialRevoked CredentialStatus = "revoked"
)

// RevocationReason enumerates why a credential was revoked (spec.md 4.3).
type RevocationReason string

const (
	ReasonUserDisconnect     RevocationReason = "user_disconnect"
	ReasonProviderRevoked    RevocationReason = "provider_revoked"
	ReasonAdminAction        RevocationReason = "admin_action"
	ReasonSecurityEvent      RevocationReason = "security_event"
	ReasonAuthFailureExhaust RevocationReason = "auth_failure_exhausted"
)

// Metadata is ConnectorCredential.credential_metadata. It is persisted
// alongside (not inside) the encrypted payload, so the refresh state
// machine can be inspected without decrypting anything.
type Metadata struct {
	TokenExpiresAt   *time.Time
	LastRefreshAt    *time.Time
	RefreshErrorCount int
	LastError        string
	RevokedAt        *time.Time
	RevocationReason RevocationReason
}

// Credential is spec.md section 3's ConnectorCredential entity. The
// EncryptedPayload field is opaque ciphertext; nothing in this package ever
// logs or audits its plaintext contents.
type Credential struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	SourceType       SourceType
	EncryptedPayload []byte
	Status           CredentialStatus
	Metadata         Metadata
	SoftDeletedAt    *time.Time
}

// TokenPayload is the plaintext JSON structure encrypted into
// Credential.EncryptedPayload.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// backoffLadder is the refresh attempt backoff schedule from spec.md 4.3:
// 5, 30, 120 minutes between attempts 1→2, 2→3, 3→done. Confirmed against
// the original REFRESH_BACKOFF_MINUTES constant.
var backoffLadder = []time.Duration{5 * time.Minute, 30 * time.Minute, 120 * time.Minute}

// maxRefreshAttempts is the permanent-failure threshold (spec.md 4.3:
// "refresh_error_count >= 3 -> permanent failure").
const maxRefreshAttempts = 3

// RefreshOutcome classifies the result of a single refresh attempt.
type RefreshOutcome string

const (
	OutcomeSuccess        RefreshOutcome = "success"
	OutcomeRetryable      RefreshOutcome = "retryable_failure"
	OutcomePermanent      RefreshOutcome = "permanent_failure"
	OutcomeSkippedNoToken RefreshOutcome = "no_refresh_token"
	OutcomeBackoffActive  RefreshOutcome = "backoff_active"
)
