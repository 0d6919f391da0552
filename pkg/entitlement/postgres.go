package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// PostgresStore is the pgx-backed implementation of SubscriptionStore and
// OverrideStore.
type PostgresStore struct{}

func NewPostgresStore() *PostgresStore { return &PostgresStore{} }

var (
	_ SubscriptionStore = (*PostgresStore)(nil)
	_ OverrideStore     = (*PostgresStore)(nil)
)

func (PostgresStore) WinningSubscription(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID) (Subscription, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT s.id, s.tenant_id, s.plan_id, s.status, s.grace_period_ends_on,
		       s.current_period_end, s.external_subscription_id, p.tier_rank, s.created_at
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.tenant_id = $1
		ORDER BY p.tier_rank DESC, s.created_at DESC
		LIMIT 1`, tenantID)

	var s Subscription
	if err := row.Scan(&s.ID, &s.TenantID, &s.PlanID, &s.Status, &s.GracePeriodEndsOn,
		&s.CurrentPeriodEnd, &s.ExternalSubID, &s.PlanTierRank, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, false, nil
		}
		return Subscription{}, false, fmt.Errorf("entitlement: scanning subscription: %w", err)
	}
	return s, true, nil
}

func (PostgresStore) NonExpiredOverrides(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID) ([]Override, error) {
	rows, err := tx.Query(ctx, `
		SELECT tenant_id, feature_key, enabled, expires_at, reason, created_by
		FROM tenant_entitlement_overrides
		WHERE tenant_id = $1 AND expires_at > now()`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("entitlement: querying overrides: %w", err)
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.TenantID, &o.FeatureKey, &o.Enabled, &o.ExpiresAt, &o.Reason, &o.CreatedBy); err != nil {
			return nil, fmt.Errorf("entitlement: scanning override row: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entitlement: iterating override rows: %w", err)
	}
	return out, nil
}

func (PostgresStore) UpsertOverride(ctx context.Context, tx dbx.DBTX, o Override) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO tenant_entitlement_overrides (tenant_id, feature_key, enabled, expires_at, reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, feature_key) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			expires_at = EXCLUDED.expires_at,
			reason = EXCLUDED.reason,
			created_by = EXCLUDED.created_by`,
		o.TenantID, o.FeatureKey, o.Enabled, o.ExpiresAt, o.Reason, o.CreatedBy)
	if err != nil {
		return fmt.Errorf("entitlement: upserting override: %w", err)
	}
	return nil
}

func (PostgresStore) DeleteOverride(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, featureKey string) error {
	_, err := tx.Exec(ctx, `DELETE FROM tenant_entitlement_overrides WHERE tenant_id = $1 AND feature_key = $2`,
		tenantID, featureKey)
	if err != nil {
		return fmt.Errorf("entitlement: deleting override: %w", err)
	}
	return nil
}

func (PostgresStore) ExpiredOverrideTenants(ctx context.Context, tx dbx.DBTX) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `SELECT DISTINCT tenant_id FROM tenant_entitlement_overrides WHERE expires_at <= now()`)
	if err != nil {
		return nil, fmt.Errorf("entitlement: querying expired override tenants: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("entitlement: scanning tenant id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entitlement: iterating tenant ids: %w", err)
	}
	return out, nil
}

func (PostgresStore) DeleteExpired(ctx context.Context, tx dbx.DBTX) error {
	_, err := tx.Exec(ctx, `DELETE FROM tenant_entitlement_overrides WHERE expires_at <= now()`)
	if err != nil {
		return fmt.Errorf("entitlement: deleting expired overrides: %w", err)
	}
	return nil
}
