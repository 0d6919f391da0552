package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrOverrideExpiresAtRequired is returned when a create/update override
// call doesn't supply a future expires_at (spec.md 4.1: "requires future
// expires_at with explicit offset").
var ErrOverrideExpiresAtRequired = fmt.Errorf("entitlement: override expires_at must be in the future")

// UpsertOverride creates or updates a tenant feature override, then
// invalidates the tenant's cached entitlement so the change is visible
// immediately.
func (e *Engine) UpsertOverride(ctx context.Context, o Override, now time.Time) error {
	if !o.ExpiresAt.After(now) {
		return ErrOverrideExpiresAtRequired
	}
	if err := e.Overrides.UpsertOverride(ctx, e.Pool, o); err != nil {
		return fmt.Errorf("writing override: %w", err)
	}
	e.Invalidate(ctx, o.TenantID, "override_upserted")
	return nil
}

// DeleteOverride removes a tenant feature override. Idempotent: deleting a
// nonexistent override is not an error.
func (e *Engine) DeleteOverride(ctx context.Context, tenantID uuid.UUID, featureKey string) error {
	if err := e.Overrides.DeleteOverride(ctx, e.Pool, tenantID, featureKey); err != nil {
		return fmt.Errorf("deleting override: %w", err)
	}
	e.Invalidate(ctx, tenantID, "override_deleted")
	return nil
}

// CleanupExpired sweeps expired overrides and invalidates every affected
// tenant's cache (spec.md 4.1: "cleanup_expired sweeps and invalidates
// affected tenants"). Intended to run as a periodic worker.
func (e *Engine) CleanupExpired(ctx context.Context) (int, error) {
	tenantIDs, err := e.Overrides.ExpiredOverrideTenants(ctx, e.Pool)
	if err != nil {
		return 0, fmt.Errorf("listing expired override tenants: %w", err)
	}
	if len(tenantIDs) == 0 {
		return 0, nil
	}

	if err := e.Overrides.DeleteExpired(ctx, e.Pool); err != nil {
		return 0, fmt.Errorf("deleting expired overrides: %w", err)
	}

	for _, tenantID := range tenantIDs {
		e.Invalidate(ctx, tenantID, "override_expired")
	}
	return len(tenantIDs), nil
}
