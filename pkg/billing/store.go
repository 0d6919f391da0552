package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// Store persists subscriptions and billing events, and backs the
// idempotency and cross-tenant-leakage checks.
type Store interface {
	// TenantForShopDomain resolves the owning tenant for a normalized shop
	// domain, preventing cross-tenant webhook leakage (spec.md 4.6, 4.5).
	TenantForShopDomain(ctx context.Context, tx dbx.DBTX, normalizedDomain string) (uuid.UUID, bool, error)
	// LockByExternalSubID row-locks the subscription for update, returning
	// ok=false if no local subscription matches yet.
	LockByExternalSubID(ctx context.Context, tx dbx.DBTX, externalSubID string) (Subscription, bool, error)
	Update(ctx context.Context, tx dbx.DBTX, sub Subscription) error
	// EventApplied reports whether externalEventID has already been
	// recorded as a billing_event for this subscription (idempotency).
	EventApplied(ctx context.Context, tx dbx.DBTX, subID uuid.UUID, externalEventID string) (bool, error)
	RecordEvent(ctx context.Context, tx dbx.DBTX, subID uuid.UUID, externalEventID string, source string) error
	// ActiveOrFrozenSubscriptions lists reconciliation's target set.
	ActiveOrFrozenSubscriptions(ctx context.Context, tx dbx.DBTX) ([]Subscription, error)
}

// EntitlementInvalidator is the minimal surface the pipeline needs from
// pkg/entitlement — defined locally to avoid billing depending on
// entitlement's full engine just to call Invalidate.
type EntitlementInvalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID, reason string)
}

// AuditSink is the minimal surface the pipeline needs for reconciliation
// drift events (spec.md 4.6: "write an audit event with
// metadata.source = 'reconciliation'").
type AuditSink interface {
	LogReconciliationDrift(ctx context.Context, tenantID uuid.UUID, externalSubID string, from, to Status)
}
