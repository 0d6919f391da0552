package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// PostgresStore is the pgx-backed implementation of Store. It holds no
// connection state of its own — every method takes the dbx.DBTX to run
// against, so the same value works inside or outside an explicit
// transaction (grounded on the teacher's apikey.Store, generalized from a
// pool field to a per-call DBTX parameter per internal/dbx's design).
type PostgresStore struct{}

func NewPostgresStore() *PostgresStore { return &PostgresStore{} }

var _ Store = (*PostgresStore)(nil)

func (PostgresStore) GetByExternalID(ctx context.Context, tx dbx.DBTX, externalUserID string) (User, error) {
	row := tx.QueryRow(ctx, `SELECT id, external_user_id, is_active FROM users WHERE external_user_id = $1`, externalUserID)
	var u User
	if err := row.Scan(&u.ID, &u.ExternalUserID, &u.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("tenant: scanning user: %w", err)
	}
	return u, nil
}

func (PostgresStore) Bootstrap(ctx context.Context, tx dbx.DBTX, externalUserID string) (User, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO users (external_user_id, is_active)
		VALUES ($1, true)
		ON CONFLICT (external_user_id) DO UPDATE SET external_user_id = EXCLUDED.external_user_id
		RETURNING id, external_user_id, is_active`, externalUserID)
	var u User
	if err := row.Scan(&u.ID, &u.ExternalUserID, &u.IsActive); err != nil {
		return User{}, fmt.Errorf("tenant: bootstrapping user: %w", err)
	}
	return u, nil
}

func (PostgresStore) GetByID(ctx context.Context, tx dbx.DBTX, id uuid.UUID) (Tenant, error) {
	row := tx.QueryRow(ctx, `SELECT id, external_org_id, name, billing_tier, status FROM tenants WHERE id = $1`, id)
	var t Tenant
	if err := row.Scan(&t.ID, &t.ExternalOrgID, &t.Name, &t.BillingTier, &t.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("tenant: scanning tenant: %w", err)
	}
	return t, nil
}

func (PostgresStore) ActiveRoles(ctx context.Context, tx dbx.DBTX, userID, tenantID uuid.UUID) ([]UserTenantRole, error) {
	rows, err := tx.Query(ctx, `
		SELECT user_id, tenant_id, role, is_active, source
		FROM user_tenant_roles
		WHERE user_id = $1 AND tenant_id = $2 AND is_active`, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant: querying active roles: %w", err)
	}
	defer rows.Close()

	var out []UserTenantRole
	for rows.Next() {
		var r UserTenantRole
		if err := rows.Scan(&r.UserID, &r.TenantID, &r.Role, &r.IsActive, &r.Source); err != nil {
			return nil, fmt.Errorf("tenant: scanning role row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenant: iterating role rows: %w", err)
	}
	return out, nil
}

func (PostgresStore) GrantLazySync(ctx context.Context, tx dbx.DBTX, userID, tenantID uuid.UUID) (UserTenantRole, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO user_tenant_roles (user_id, tenant_id, role, is_active, source)
		VALUES ($1, $2, $3, true, $4)
		ON CONFLICT (user_id, tenant_id, role) DO UPDATE SET is_active = true
		RETURNING user_id, tenant_id, role, is_active, source`,
		userID, tenantID, RoleMerchantViewer, SourceLazySync)
	var r UserTenantRole
	if err := row.Scan(&r.UserID, &r.TenantID, &r.Role, &r.IsActive, &r.Source); err != nil {
		return UserTenantRole{}, fmt.Errorf("tenant: granting lazy-sync role: %w", err)
	}
	return r, nil
}
