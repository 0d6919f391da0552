package entitlement

import (
	"context"

	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// SubscriptionStore reads subscription rows for resolve() step 3.
type SubscriptionStore interface {
	// WinningSubscription returns the subscription that wins resolution for
	// tenantID — ordered by plan.tier_rank DESC, created_at DESC, first
	// wins — or ok=false if the tenant has none.
	WinningSubscription(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID) (Subscription, bool, error)
}

// OverrideStore reads/writes TenantEntitlementOverride rows.
type OverrideStore interface {
	NonExpiredOverrides(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID) ([]Override, error)
	UpsertOverride(ctx context.Context, tx dbx.DBTX, o Override) error
	DeleteOverride(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, featureKey string) error
	// ExpiredOverrideTenants returns the distinct tenant ids with at least
	// one override whose expires_at has passed — the cleanup_expired sweep
	// target set.
	ExpiredOverrideTenants(ctx context.Context, tx dbx.DBTX) ([]uuid.UUID, error)
	DeleteExpired(ctx context.Context, tx dbx.DBTX) error
}
