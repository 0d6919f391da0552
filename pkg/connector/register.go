package connector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
)

// Registrar implements register_connection (spec.md section 4.5).
type Registrar struct {
	Pool  *pgxpool.Pool
	Store Store
	Audit AuditSink
}

// Register validates uniqueness and persists a new Connection for
// tenantID. Duplicate external_connection_id raises duplicate_connection
// without mutation; duplicate Shopify shop_domain raises
// duplicate_shop_domain, logging a critical audit event when a *different*
// tenant owns it, without ever disclosing the owning tenant to the caller.
func (r *Registrar) Register(ctx context.Context, tenantID uuid.UUID, in RegisterInput) (Connection, error) {
	exists, err := r.Store.ExternalIDExists(ctx, r.Pool, tenantID, in.ExternalConnectionID)
	if err != nil {
		return Connection{}, fmt.Errorf("checking external connection id: %w", err)
	}
	if exists {
		return Connection{}, cperr.New(cperr.CodeDuplicateConnection, "this connection has already been registered").
			WithContext(map[string]any{"external_connection_id": in.ExternalConnectionID})
	}

	if domain, isShopify := ShopDomain(in); isShopify {
		owner, owned, err := r.Store.FindActiveShopDomainOwner(ctx, r.Pool, domain)
		if err != nil {
			return Connection{}, fmt.Errorf("checking shop domain uniqueness: %w", err)
		}
		if owned {
			if owner == tenantID {
				return Connection{}, cperr.New(cperr.CodeDuplicateShopDomain, "this store is already connected — disconnect it first before reconnecting").
					WithContext(map[string]any{"shop_domain": domain})
			}

			r.Audit.LogDuplicateShopDomainBlocked(ctx, tenantID, owner, domain)
			// Deliberately does not include owner in the response context —
			// the user-facing error must not disclose the owning tenant.
			return Connection{}, cperr.New(cperr.CodeDuplicateShopDomain, "this store cannot be connected at this time")
		}
	}

	conn := Connection{
		ID:                   uuid.New(),
		TenantID:             tenantID,
		ExternalConnectionID: in.ExternalConnectionID,
		SourceType:           in.SourceType,
		ConnectionName:       in.ConnectionName,
		Configuration:        in.Configuration,
		Status:               StatusPending,
		IsEnabled:            true,
		SyncFrequencyMinutes: in.SyncFrequencyMinutes,
	}

	created, err := r.Store.Insert(ctx, r.Pool, conn)
	if err != nil {
		return Connection{}, fmt.Errorf("inserting connection: %w", err)
	}
	return created, nil
}
