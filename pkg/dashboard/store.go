package dashboard

import (
	"context"

	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// Store is the persistence surface the Manager needs. Every method that
// participates in a create/update transaction takes a dbx.DBTX so it can
// run inside the caller's transaction.
type Store interface {
	// CountActiveForTenantForUpdate locks the tenant's dashboard count under
	// SELECT ... FOR UPDATE to close the TOCTOU window between the count
	// check and the insert (spec.md section 5's ordering guarantee (c)).
	CountActiveForTenantForUpdate(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID) (int, error)
	NameConflictExists(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, name string, excludeID uuid.UUID) (bool, error)
	Insert(ctx context.Context, tx dbx.DBTX, d Dashboard) error
	GetForUpdate(ctx context.Context, tx dbx.DBTX, tenantID, id uuid.UUID) (Dashboard, error)
	Get(ctx context.Context, tx dbx.DBTX, tenantID, id uuid.UUID) (Dashboard, error)
	Update(ctx context.Context, tx dbx.DBTX, d Dashboard) error

	ReplaceReports(ctx context.Context, tx dbx.DBTX, dashboardID uuid.UUID, reports []Report) error
	ReportsFor(ctx context.Context, tx dbx.DBTX, dashboardID uuid.UUID) ([]Report, error)

	InsertVersion(ctx context.Context, tx dbx.DBTX, v DashboardVersion) error
	ListVersions(ctx context.Context, tx dbx.DBTX, dashboardID uuid.UUID) ([]DashboardVersion, error)
	GetVersion(ctx context.Context, tx dbx.DBTX, dashboardID uuid.UUID, versionNumber int) (DashboardVersion, error)
	DeleteVersions(ctx context.Context, tx dbx.DBTX, ids []uuid.UUID) error

	ShareFor(ctx context.Context, tx dbx.DBTX, dashboardID, userID uuid.UUID) (Share, bool, error)
}
