package freshness

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

func (PostgresStore) GetAvailability(ctx context.Context, db dbx.DBTX, tenantID uuid.UUID, sourceType string) (Availability, bool, error) {
	row := db.QueryRow(ctx, `
		SELECT tenant_id, source_type, state, reason, warn_threshold_minutes, error_threshold_minutes,
		       state_changed_at, previous_state, billing_tier
		FROM data_availability WHERE tenant_id = $1 AND source_type = $2`, tenantID, sourceType)

	var a Availability
	if err := row.Scan(&a.TenantID, &a.SourceType, &a.State, &a.Reason, &a.WarnThresholdMinutes, &a.ErrorThresholdMinutes,
		&a.StateChangedAt, &a.PreviousState, &a.BillingTier); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Availability{}, false, nil
		}
		return Availability{}, false, fmt.Errorf("freshness: scanning availability: %w", err)
	}
	return a, true, nil
}

func (PostgresStore) UpsertAvailability(ctx context.Context, db dbx.DBTX, a Availability) error {
	_, err := db.Exec(ctx, `
		INSERT INTO data_availability
			(tenant_id, source_type, state, reason, warn_threshold_minutes, error_threshold_minutes,
			 state_changed_at, previous_state, billing_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, source_type) DO UPDATE SET
			state = EXCLUDED.state,
			reason = EXCLUDED.reason,
			warn_threshold_minutes = EXCLUDED.warn_threshold_minutes,
			error_threshold_minutes = EXCLUDED.error_threshold_minutes,
			state_changed_at = EXCLUDED.state_changed_at,
			previous_state = EXCLUDED.previous_state,
			billing_tier = EXCLUDED.billing_tier`,
		a.TenantID, a.SourceType, a.State, a.Reason, a.WarnThresholdMinutes, a.ErrorThresholdMinutes,
		a.StateChangedAt, a.PreviousState, a.BillingTier)
	if err != nil {
		return fmt.Errorf("freshness: upserting availability: %w", err)
	}
	return nil
}

func (PostgresStore) OpenIncidentFor(ctx context.Context, db dbx.DBTX, tenantID, connectorID uuid.UUID) (Incident, bool, error) {
	row := db.QueryRow(ctx, `
		SELECT id, tenant_id, connector_id, severity, status, title, merchant_message, support_details,
		       is_blocking, opened_at, resolved_at
		FROM dq_incidents
		WHERE tenant_id = $1 AND connector_id = $2 AND status IN ('open', 'acknowledged')`, tenantID, connectorID)

	var inc Incident
	if err := row.Scan(&inc.ID, &inc.TenantID, &inc.ConnectorID, &inc.Severity, &inc.Status, &inc.Title,
		&inc.MerchantMessage, &inc.SupportDetails, &inc.IsBlocking, &inc.OpenedAt, &inc.ResolvedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Incident{}, false, nil
		}
		return Incident{}, false, fmt.Errorf("freshness: scanning open incident: %w", err)
	}
	return inc, true, nil
}

func (PostgresStore) InsertIncident(ctx context.Context, db dbx.DBTX, inc Incident) error {
	_, err := db.Exec(ctx, `
		INSERT INTO dq_incidents
			(id, tenant_id, connector_id, severity, status, title, merchant_message, support_details,
			 is_blocking, opened_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		inc.ID, inc.TenantID, inc.ConnectorID, inc.Severity, inc.Status, inc.Title, inc.MerchantMessage,
		inc.SupportDetails, inc.IsBlocking, inc.OpenedAt, inc.ResolvedAt)
	if err != nil {
		return fmt.Errorf("freshness: inserting incident: %w", err)
	}
	return nil
}

func (PostgresStore) UpdateIncident(ctx context.Context, db dbx.DBTX, inc Incident) error {
	_, err := db.Exec(ctx, `
		UPDATE dq_incidents SET
			severity = $2,
			status = $3,
			merchant_message = $4,
			support_details = $5,
			is_blocking = $6,
			resolved_at = $7
		WHERE id = $1`,
		inc.ID, inc.Severity, inc.Status, inc.MerchantMessage, inc.SupportDetails, inc.IsBlocking, inc.ResolvedAt)
	if err != nil {
		return fmt.Errorf("freshness: updating incident: %w", err)
	}
	return nil
}
