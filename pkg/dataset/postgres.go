package dataset

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

const versionColumns = `id, tenant_id, dataset_name, version_number, column_snapshot, status, is_compatible, created_at`

func scanVersion(row pgx.Row) (Version, error) {
	var v Version
	var columns []byte
	if err := row.Scan(&v.ID, &v.TenantID, &v.DatasetName, &v.VersionNumber, &columns, &v.Status, &v.IsCompatible, &v.CreatedAt); err != nil {
		return Version{}, err
	}
	if err := json.Unmarshal(columns, &v.Columns); err != nil {
		return Version{}, fmt.Errorf("dataset: unmarshaling column snapshot: %w", err)
	}
	return v, nil
}

func (PostgresStore) FindPending(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, datasetName string, versionNumber int) (Version, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+versionColumns+`
		FROM dataset_versions
		WHERE tenant_id = $1 AND dataset_name = $2 AND version_number = $3`,
		tenantID, datasetName, versionNumber)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Version{}, false, nil
		}
		return Version{}, false, fmt.Errorf("dataset: scanning pending version: %w", err)
	}
	return v, true, nil
}

func (PostgresStore) ActiveVersion(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, datasetName string) (Version, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+versionColumns+`
		FROM dataset_versions
		WHERE tenant_id = $1 AND dataset_name = $2 AND status = 'active'`,
		tenantID, datasetName)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Version{}, false, nil
		}
		return Version{}, false, fmt.Errorf("dataset: scanning active version: %w", err)
	}
	return v, true, nil
}

func (PostgresStore) LatestSuperseded(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, datasetName string) (Version, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+versionColumns+`
		FROM dataset_versions
		WHERE tenant_id = $1 AND dataset_name = $2 AND status = 'superseded'
		ORDER BY version_number DESC
		LIMIT 1`, tenantID, datasetName)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Version{}, false, nil
		}
		return Version{}, false, fmt.Errorf("dataset: scanning latest superseded version: %w", err)
	}
	return v, true, nil
}

func (PostgresStore) Insert(ctx context.Context, tx dbx.DBTX, v Version) error {
	columns, err := json.Marshal(v.Columns)
	if err != nil {
		return fmt.Errorf("dataset: marshaling column snapshot: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO dataset_versions (id, tenant_id, dataset_name, version_number, column_snapshot, status, is_compatible, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.TenantID, v.DatasetName, v.VersionNumber, columns, v.Status, v.IsCompatible, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("dataset: inserting version: %w", err)
	}
	return nil
}

func (PostgresStore) UpdateStatus(ctx context.Context, tx dbx.DBTX, id uuid.UUID, status Status, isCompatible *bool) error {
	setActivated := status == StatusActive
	setDeactivated := status == StatusSuperseded || status == StatusRolledBack || status == StatusFailed

	_, err := tx.Exec(ctx, `
		UPDATE dataset_versions SET
			status = $2,
			is_compatible = COALESCE($3, is_compatible),
			activated_at = CASE WHEN $4 THEN now() ELSE activated_at END,
			deactivated_at = CASE WHEN $5 THEN now() ELSE deactivated_at END
		WHERE id = $1`,
		id, status, isCompatible, setActivated, setDeactivated)
	if err != nil {
		return fmt.Errorf("dataset: updating version status: %w", err)
	}
	return nil
}
