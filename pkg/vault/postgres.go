package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// PostgresStore is the pgx-backed implementation of Store.
type PostgresStore struct{}

func NewPostgresStore() *PostgresStore { return &PostgresStore{} }

var _ Store = (*PostgresStore)(nil)

const credentialColumns = `id, tenant_id, source_type, encrypted_payload, status,
	token_expires_at, last_refresh_at, refresh_error_count, last_error,
	revoked_at, revocation_reason, soft_deleted_at`

func scanCredential(row pgx.Row) (Credential, error) {
	var c Credential
	var revocationReason *string
	err := row.Scan(&c.ID, &c.TenantID, &c.SourceType, &c.EncryptedPayload, &c.Status,
		&c.Metadata.TokenExpiresAt, &c.Metadata.LastRefreshAt, &c.Metadata.RefreshErrorCount, &c.Metadata.LastError,
		&c.Metadata.RevokedAt, &revocationReason, &c.SoftDeletedAt)
	if err != nil {
		return Credential{}, err
	}
	if revocationReason != nil {
		c.Metadata.RevocationReason = RevocationReason(*revocationReason)
	}
	return c, nil
}

func (PostgresStore) LockForUpdate(ctx context.Context, tx dbx.DBTX, credentialID uuid.UUID) (Credential, error) {
	row := tx.QueryRow(ctx, `SELECT `+credentialColumns+` FROM connector_credentials WHERE id = $1 FOR UPDATE`, credentialID)
	c, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, fmt.Errorf("vault: credential %s not found: %w", credentialID, err)
		}
		return Credential{}, fmt.Errorf("vault: locking credential: %w", err)
	}
	return c, nil
}

func (PostgresStore) Update(ctx context.Context, tx dbx.DBTX, c Credential) error {
	_, err := tx.Exec(ctx, `
		UPDATE connector_credentials SET
			encrypted_payload = $2,
			status = $3,
			token_expires_at = $4,
			last_refresh_at = $5,
			refresh_error_count = $6,
			last_error = $7,
			revoked_at = $8,
			revocation_reason = $9,
			soft_deleted_at = $10
		WHERE id = $1`,
		c.ID, c.EncryptedPayload, c.Status, c.Metadata.TokenExpiresAt, c.Metadata.LastRefreshAt,
		c.Metadata.RefreshErrorCount, c.Metadata.LastError, c.Metadata.RevokedAt,
		nullableRevocationReason(c.Metadata.RevocationReason), c.SoftDeletedAt)
	if err != nil {
		return fmt.Errorf("vault: updating credential: %w", err)
	}
	return nil
}

func (PostgresStore) DueForProactiveRefresh(ctx context.Context, tx dbx.DBTX, horizon time.Duration) ([]Credential, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+credentialColumns+`
		FROM connector_credentials
		WHERE status = 'active' AND soft_deleted_at IS NULL
		  AND token_expires_at IS NOT NULL AND token_expires_at <= now() + make_interval(secs => $1)`,
		horizon.Seconds())
	if err != nil {
		return nil, fmt.Errorf("vault: querying due-for-refresh credentials: %w", err)
	}
	return scanCredentialRows(rows)
}

func (PostgresStore) ActiveCredentialsForTenant(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID) ([]Credential, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+credentialColumns+`
		FROM connector_credentials
		WHERE tenant_id = $1 AND status = 'active' AND soft_deleted_at IS NULL`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("vault: querying active credentials: %w", err)
	}
	return scanCredentialRows(rows)
}

func scanCredentialRows(rows pgx.Rows) ([]Credential, error) {
	defer rows.Close()
	var out []Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("vault: scanning credential row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vault: iterating credential rows: %w", err)
	}
	return out, nil
}

func nullableRevocationReason(r RevocationReason) *string {
	if r == "" {
		return nil
	}
	s := string(r)
	return &s
}
