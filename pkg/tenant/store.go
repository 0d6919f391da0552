package tenant

import (
	"context"

	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// UserStore abstracts User persistence so the guard never hand-rolls SQL
// against a bare DBTX.
type UserStore interface {
	// GetByExternalID returns the user matching externalUserID, or
	// ErrNotFound if none exists.
	GetByExternalID(ctx context.Context, tx dbx.DBTX, externalUserID string) (User, error)
	// Bootstrap lazily creates a User row the first time a known-good
	// bearer token is seen for a previously unseen external identity.
	Bootstrap(ctx context.Context, tx dbx.DBTX, externalUserID string) (User, error)
}

// TenantStore abstracts Tenant lookups.
type TenantStore interface {
	GetByID(ctx context.Context, tx dbx.DBTX, id uuid.UUID) (Tenant, error)
}

// RoleStore abstracts UserTenantRole persistence, including the lazy-sync
// bootstrap path (spec.md section 4.2: a user with no role row yet, but a
// valid claim asserting membership, is granted merchant_viewer).
type RoleStore interface {
	// ActiveRoles returns every active UserTenantRole for the user/tenant
	// pair. An empty, non-error result means access was revoked or never
	// granted.
	ActiveRoles(ctx context.Context, tx dbx.DBTX, userID, tenantID uuid.UUID) ([]UserTenantRole, error)
	// GrantLazySync inserts a merchant_viewer role sourced from lazy_sync
	// the first time a claim vouches for tenant membership that the
	// database doesn't yet know about.
	GrantLazySync(ctx context.Context, tx dbx.DBTX, userID, tenantID uuid.UUID) (UserTenantRole, error)
}

// Store bundles the three persistence interfaces the guard depends on. A
// single implementation (e.g. backed by one *pgxpool.Pool) typically
// satisfies all three; they're kept separate so tests can fake one without
// stubbing the others.
type Store interface {
	UserStore
	TenantStore
	RoleStore
}

// AuditSink is the minimal surface the guard needs to emit enforcement
// events. Defined locally (rather than importing internal/audit directly)
// so pkg/tenant has no dependency on the audit package's own use of
// tenant.Context — internal/audit depends on pkg/tenant, not the reverse.
type AuditSink interface {
	LogRoleChangeEnforced(ctx context.Context, userID, tenantID uuid.UUID, tokenRoles, dbRoles []string)
}

// NopAuditSink discards every event. Useful in tests and for callers that
// don't yet wire a real audit writer.
type NopAuditSink struct{}

func (NopAuditSink) LogRoleChangeEnforced(context.Context, uuid.UUID, uuid.UUID, []string, []string) {}
