package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

func marshalSnapshot(s VersionSnapshot) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("dashboard: marshaling snapshot: %w", err)
	}
	return b, nil
}

func unmarshalSnapshot(b []byte) (VersionSnapshot, error) {
	var s VersionSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return VersionSnapshot{}, err
	}
	return s, nil
}

// PostgresStore is the pgx-backed implementation of Store.
type PostgresStore struct{}

func NewPostgresStore() *PostgresStore { return &PostgresStore{} }

var _ Store = (*PostgresStore)(nil)

func (PostgresStore) CountActiveForTenantForUpdate(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID) (int, error) {
	// Locks the tenant's active-dashboard rows under SELECT ... FOR UPDATE
	// so a concurrent create can't slip past the per-tenant cap between
	// the count check and the insert (spec.md section 5 ordering
	// guarantee (c)).
	rows, err := tx.Query(ctx, `
		SELECT id FROM custom_dashboards WHERE tenant_id = $1 AND status != 'archived' FOR UPDATE`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("dashboard: locking tenant dashboard count: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("dashboard: iterating locked dashboard rows: %w", err)
	}
	return count, nil
}

func (PostgresStore) NameConflictExists(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, name string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM custom_dashboards
			WHERE tenant_id = $1 AND name = $2 AND status != 'archived' AND id != $3
		)`, tenantID, name, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dashboard: checking name conflict: %w", err)
	}
	return exists, nil
}

func (PostgresStore) Insert(ctx context.Context, tx dbx.DBTX, d Dashboard) error {
	row := tx.QueryRow(ctx, `
		INSERT INTO custom_dashboards (id, tenant_id, owner_user_id, name, status, version_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		d.ID, d.TenantID, d.OwnerUserID, d.Name, dashboardStatus(d.Archived), d.VersionNumber, d.CreatedAt, d.UpdatedAt)
	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		return fmt.Errorf("dashboard: inserting dashboard: %w", err)
	}
	return nil
}

func (PostgresStore) GetForUpdate(ctx context.Context, tx dbx.DBTX, tenantID, id uuid.UUID) (Dashboard, error) {
	return getDashboard(ctx, tx, tenantID, id, true)
}

func (PostgresStore) Get(ctx context.Context, tx dbx.DBTX, tenantID, id uuid.UUID) (Dashboard, error) {
	return getDashboard(ctx, tx, tenantID, id, false)
}

func getDashboard(ctx context.Context, tx dbx.DBTX, tenantID, id uuid.UUID, forUpdate bool) (Dashboard, error) {
	query := `
		SELECT id, tenant_id, owner_user_id, name, status, version_number, created_at, updated_at
		FROM custom_dashboards WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	row := tx.QueryRow(ctx, query, tenantID, id)
	var d Dashboard
	var status string
	if err := row.Scan(&d.ID, &d.TenantID, &d.OwnerUserID, &d.Name, &status, &d.VersionNumber, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dashboard{}, fmt.Errorf("dashboard: %s: %w", id, err)
		}
		return Dashboard{}, fmt.Errorf("dashboard: scanning dashboard: %w", err)
	}
	d.Archived = status == "archived"
	return d, nil
}

func (PostgresStore) Update(ctx context.Context, tx dbx.DBTX, d Dashboard) error {
	_, err := tx.Exec(ctx, `
		UPDATE custom_dashboards SET
			name = $3,
			status = $4,
			version_number = $5,
			updated_at = $6
		WHERE tenant_id = $1 AND id = $2`,
		d.TenantID, d.ID, d.Name, dashboardStatus(d.Archived), d.VersionNumber, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("dashboard: updating dashboard: %w", err)
	}
	return nil
}

func (PostgresStore) ReplaceReports(ctx context.Context, tx dbx.DBTX, dashboardID uuid.UUID, reports []Report) error {
	if _, err := tx.Exec(ctx, `DELETE FROM dashboard_reports WHERE dashboard_id = $1`, dashboardID); err != nil {
		return fmt.Errorf("dashboard: clearing reports: %w", err)
	}
	for _, r := range reports {
		_, err := tx.Exec(ctx, `
			INSERT INTO dashboard_reports (id, dashboard_id, name, config, position)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), dashboardID, r.Name, r.Config, r.Position)
		if err != nil {
			return fmt.Errorf("dashboard: inserting report: %w", err)
		}
	}
	return nil
}

func (PostgresStore) ReportsFor(ctx context.Context, tx dbx.DBTX, dashboardID uuid.UUID) ([]Report, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, dashboard_id, name, config, position
		FROM dashboard_reports WHERE dashboard_id = $1 ORDER BY position`, dashboardID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: querying reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.DashboardID, &r.Name, &r.Config, &r.Position); err != nil {
			return nil, fmt.Errorf("dashboard: scanning report row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: iterating report rows: %w", err)
	}
	return out, nil
}

func (PostgresStore) InsertVersion(ctx context.Context, tx dbx.DBTX, v DashboardVersion) error {
	snapshot, err := marshalSnapshot(v.Snapshot)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO dashboard_versions (id, dashboard_id, version_number, snapshot_json, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.DashboardID, v.VersionNumber, snapshot, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("dashboard: inserting version: %w", err)
	}
	return nil
}

func (PostgresStore) ListVersions(ctx context.Context, tx dbx.DBTX, dashboardID uuid.UUID) ([]DashboardVersion, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, dashboard_id, version_number, snapshot_json, created_at
		FROM dashboard_versions WHERE dashboard_id = $1 ORDER BY version_number`, dashboardID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: querying versions: %w", err)
	}
	defer rows.Close()

	var out []DashboardVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("dashboard: scanning version row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: iterating version rows: %w", err)
	}
	return out, nil
}

func (PostgresStore) GetVersion(ctx context.Context, tx dbx.DBTX, dashboardID uuid.UUID, versionNumber int) (DashboardVersion, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, dashboard_id, version_number, snapshot_json, created_at
		FROM dashboard_versions WHERE dashboard_id = $1 AND version_number = $2`, dashboardID, versionNumber)
	v, err := scanVersion(row)
	if err != nil {
		return DashboardVersion{}, fmt.Errorf("dashboard: scanning version: %w", err)
	}
	return v, nil
}

func (PostgresStore) DeleteVersions(ctx context.Context, tx dbx.DBTX, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `DELETE FROM dashboard_versions WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("dashboard: pruning versions: %w", err)
	}
	return nil
}

func (PostgresStore) ShareFor(ctx context.Context, tx dbx.DBTX, dashboardID, userID uuid.UUID) (Share, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT dashboard_id, user_id, access_level, expires_at
		FROM dashboard_shares WHERE dashboard_id = $1 AND user_id = $2`, dashboardID, userID)
	var s Share
	if err := row.Scan(&s.DashboardID, &s.UserID, &s.AccessLevel, &s.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Share{}, false, nil
		}
		return Share{}, false, fmt.Errorf("dashboard: scanning share: %w", err)
	}
	return s, true, nil
}

func dashboardStatus(archived bool) string {
	if archived {
		return "archived"
	}
	return "published"
}

type scannable interface {
	Scan(dest ...any) error
}

func scanVersion(row scannable) (DashboardVersion, error) {
	var v DashboardVersion
	var snapshot []byte
	if err := row.Scan(&v.ID, &v.DashboardID, &v.VersionNumber, &snapshot, &v.CreatedAt); err != nil {
		return DashboardVersion{}, err
	}
	snap, err := unmarshalSnapshot(snapshot)
	if err != nil {
		return DashboardVersion{}, fmt.Errorf("dashboard: unmarshaling snapshot: %w", err)
	}
	v.Snapshot = snap
	return v, nil
}
