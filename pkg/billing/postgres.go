package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// PostgresStore is the pgx-backed implementation of Store.
type PostgresStore struct{}

func NewPostgresStore() *PostgresStore { return &PostgresStore{} }

var _ Store = (*PostgresStore)(nil)

func (PostgresStore) TenantForShopDomain(ctx context.Context, tx dbx.DBTX, normalizedDomain string) (uuid.UUID, bool, error) {
	var tenantID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT tenant_id FROM connector_connections
		WHERE shop_domain = $1 AND status != 'deleted'
		LIMIT 1`, normalizedDomain).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.UUID{}, false, nil
		}
		return uuid.UUID{}, false, fmt.Errorf("billing: resolving tenant for shop domain: %w", err)
	}
	return tenantID, true, nil
}

func (PostgresStore) LockByExternalSubID(ctx context.Context, tx dbx.DBTX, externalSubID string) (Subscription, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, tenant_id, plan_id, status, grace_period_ends_on, current_period_end, external_subscription_id
		FROM subscriptions
		WHERE external_subscription_id = $1
		FOR UPDATE`, externalSubID)

	var s Subscription
	if err := row.Scan(&s.ID, &s.TenantID, &s.PlanID, &s.Status, &s.GracePeriodEndsOn, &s.CurrentPeriodEnd, &s.ExternalSubID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, false, nil
		}
		return Subscription{}, false, fmt.Errorf("billing: locking subscription: %w", err)
	}
	return s, true, nil
}

func (PostgresStore) Update(ctx context.Context, tx dbx.DBTX, sub Subscription) error {
	_, err := tx.Exec(ctx, `
		UPDATE subscriptions SET
			status = $2,
			grace_period_ends_on = $3,
			current_period_end = $4
		WHERE id = $1`,
		sub.ID, sub.Status, sub.GracePeriodEndsOn, sub.CurrentPeriodEnd)
	if err != nil {
		return fmt.Errorf("billing: updating subscription: %w", err)
	}
	return nil
}

func (PostgresStore) EventApplied(ctx context.Context, tx dbx.DBTX, subID uuid.UUID, externalEventID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM billing_events WHERE subscription_id = $1 AND external_event_id = $2)`,
		subID, externalEventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("billing: checking event idempotency: %w", err)
	}
	return exists, nil
}

func (PostgresStore) RecordEvent(ctx context.Context, tx dbx.DBTX, subID uuid.UUID, externalEventID string, source string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO billing_events (subscription_id, external_event_id, source)
		VALUES ($1, $2, $3)
		ON CONFLICT (subscription_id, external_event_id) DO NOTHING`,
		subID, externalEventID, source)
	if err != nil {
		return fmt.Errorf("billing: recording event: %w", err)
	}
	return nil
}

func (PostgresStore) ActiveOrFrozenSubscriptions(ctx context.Context, tx dbx.DBTX) ([]Subscription, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, tenant_id, plan_id, status, grace_period_ends_on, current_period_end, external_subscription_id
		FROM subscriptions
		WHERE status IN ('active', 'frozen')`)
	if err != nil {
		return nil, fmt.Errorf("billing: querying reconciliation targets: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.ID, &s.TenantID, &s.PlanID, &s.Status, &s.GracePeriodEndsOn, &s.CurrentPeriodEnd, &s.ExternalSubID); err != nil {
			return nil, fmt.Errorf("billing: scanning subscription row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("billing: iterating subscription rows: %w", err)
	}
	return out, nil
}
