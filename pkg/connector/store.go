package connector

import (
	"context"

	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// Store persists connections and backs the duplicate-shop-domain guard.
type Store interface {
	// ExternalIDExists reports whether tenantID already has a connection
	// with this external_connection_id.
	ExternalIDExists(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, externalConnectionID string) (bool, error)
	// FindActiveShopDomainOwner returns the tenant id that owns an active,
	// enabled connection for normalizedDomain, or ok=false if none.
	FindActiveShopDomainOwner(ctx context.Context, tx dbx.DBTX, normalizedDomain string) (uuid.UUID, bool, error)
	Insert(ctx context.Context, tx dbx.DBTX, c Connection) (Connection, error)
}

// AuditSink is the minimal surface the registration flow needs.
type AuditSink interface {
	LogDuplicateShopDomainBlocked(ctx context.Context, requestingTenantID, owningTenantID uuid.UUID, normalizedDomain string)
}
