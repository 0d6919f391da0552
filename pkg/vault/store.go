package vault

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// Store persists credentials. Mutations must take a row-level lock on the
// credential (spec.md 4.3 "Concurrency") — LockForUpdate returns the
// current row with that lock held for the remainder of the transaction.
type Store interface {
	LockForUpdate(ctx context.Context, tx dbx.DBTX, credentialID uuid.UUID) (Credential, error)
	Update(ctx context.Context, tx dbx.DBTX, c Credential) error
	// DueForProactiveRefresh returns active, non-soft-deleted credentials
	// whose token_expires_at is within the given horizon.
	DueForProactiveRefresh(ctx context.Context, tx dbx.DBTX, horizon time.Duration) ([]Credential, error)
	ActiveCredentialsForTenant(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID) ([]Credential, error)
}
