package connector

import (
	"context"
	"encoding/json"
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

func (PostgresStore) ExternalIDExists(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, externalConnectionID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM connector_connections WHERE tenant_id = $1 AND external_connection_id = $2)`,
		tenantID, externalConnectionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("connector: checking external id existence: %w", err)
	}
	return exists, nil
}

func (PostgresStore) FindActiveShopDomainOwner(ctx context.Context, tx dbx.DBTX, normalizedDomain string) (uuid.UUID, bool, error) {
	var tenantID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT tenant_id FROM connector_connections
		WHERE shop_domain = $1 AND status = 'active' AND is_enabled
		LIMIT 1`, normalizedDomain).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.UUID{}, false, nil
		}
		return uuid.UUID{}, false, fmt.Errorf("connector: finding shop domain owner: %w", err)
	}
	return tenantID, true, nil
}

func (PostgresStore) Insert(ctx context.Context, tx dbx.DBTX, c Connection) (Connection, error) {
	cfg, err := json.Marshal(c.Configuration)
	if err != nil {
		return Connection{}, fmt.Errorf("connector: marshaling configuration: %w", err)
	}

	var shopDomain *string
	if domain, ok := ShopDomain(RegisterInput{SourceType: c.SourceType, Configuration: c.Configuration}); ok {
		shopDomain = &domain
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO connector_connections
			(tenant_id, external_connection_id, source_type, connection_name, configuration,
			 status, is_enabled, sync_frequency_minutes, shop_domain)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, tenant_id, external_connection_id, source_type, connection_name, configuration,
			status, is_enabled, last_sync_status, sync_frequency_minutes`,
		c.TenantID, c.ExternalConnectionID, c.SourceType, c.ConnectionName, cfg,
		c.Status, c.IsEnabled, c.SyncFrequencyMinutes, shopDomain)

	var out Connection
	var rawCfg []byte
	if err := row.Scan(&out.ID, &out.TenantID, &out.ExternalConnectionID, &out.SourceType, &out.ConnectionName,
		&rawCfg, &out.Status, &out.IsEnabled, &out.LastSyncStatus, &out.SyncFrequencyMinutes); err != nil {
		return Connection{}, fmt.Errorf("connector: inserting connection: %w", err)
	}
	if err := json.Unmarshal(rawCfg, &out.Configuration); err != nil {
		return Connection{}, fmt.Errorf("connector: unmarshaling configuration: %w", err)
	}
	return out, nil
}
