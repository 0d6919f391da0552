package dataset

import (
	"context"

	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// Store is the persistence surface the Manager needs.
type Store interface {
	// FindPending returns an existing version with the same
	// (tenant, dataset_name, version_number), whatever its status, if any —
	// Create is idempotent on this triple.
	FindPending(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, datasetName string, versionNumber int) (Version, bool, error)
	ActiveVersion(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, datasetName string) (Version, bool, error)
	LatestSuperseded(ctx context.Context, tx dbx.DBTX, tenantID uuid.UUID, datasetName string) (Version, bool, error)
	Insert(ctx context.Context, tx dbx.DBTX, v Version) error
	UpdateStatus(ctx context.Context, tx dbx.DBTX, id uuid.UUID, status Status, isCompatible *bool) error
}
