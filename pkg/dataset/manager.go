package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// Manager gates BI-dataset upgrades through the schema-compatibility
// check before a pending version may become active.
type Manager struct {
	Pool  *pgxpool.Pool
	Store Store
	now   func() time.Time
}

func NewManager(pool *pgxpool.Pool, store Store) *Manager {
	return &Manager{Pool: pool, Store: store, now: time.Now}
}

// CreatePending registers a candidate version as pending. Creating a
// pending version with the same (name, version) is idempotent — spec.md
// 4.10 — so a retried ingestion run never double-inserts.
func (m *Manager) CreatePending(ctx context.Context, tenantID uuid.UUID, datasetName string, versionNumber int, columns []Column) (Version, error) {
	var result Version
	err := dbx.WithTx(ctx, m.Pool, func(tx pgx.Tx) error {
		existing, found, err := m.Store.FindPending(ctx, tx, tenantID, datasetName, versionNumber)
		if err != nil {
			return fmt.Errorf("checking for existing pending version: %w", err)
		}
		if found {
			result = existing
			return nil
		}

		active, hasActive, err := m.Store.ActiveVersion(ctx, tx, tenantID, datasetName)
		if err != nil {
			return fmt.Errorf("loading active version: %w", err)
		}

		compatible := true
		if hasActive {
			compatible, _ = CheckCompatibility(active.Columns, columns)
		}

		v := Version{
			ID:            uuid.New(),
			TenantID:      tenantID,
			DatasetName:   datasetName,
			VersionNumber: versionNumber,
			Columns:       columns,
			Status:        StatusPending,
			IsCompatible:  compatible,
			CreatedAt:     m.now(),
		}
		if err := m.Store.Insert(ctx, tx, v); err != nil {
			return fmt.Errorf("inserting pending version: %w", err)
		}
		result = v
		return nil
	})
	return result, err
}

// Activate promotes a pending version to active, demoting the current
// active version (if any) to superseded. Requires is_compatible=true —
// otherwise returns a SchemaCompatibilityError wrapped as a cperr.
func (m *Manager) Activate(ctx context.Context, tenantID uuid.UUID, datasetName string, pending Version) error {
	return dbx.WithTx(ctx, m.Pool, func(tx pgx.Tx) error {
		active, hasActive, err := m.Store.ActiveVersion(ctx, tx, tenantID, datasetName)
		if err != nil {
			return fmt.Errorf("loading active version: %w", err)
		}

		if !pending.IsCompatible {
			var violations []string
			if hasActive {
				_, violations = CheckCompatibility(active.Columns, pending.Columns)
			}
			return cperr.Wrap(cperr.CodeSchemaIncompatible, "candidate dataset version is not schema-compatible",
				&SchemaCompatibilityError{DatasetName: datasetName, Violations: violations})
		}

		if hasActive {
			if err := m.Store.UpdateStatus(ctx, tx, active.ID, StatusSuperseded, nil); err != nil {
				return fmt.Errorf("superseding active version: %w", err)
			}
		}

		if err := m.Store.UpdateStatus(ctx, tx, pending.ID, StatusActive, nil); err != nil {
			return fmt.Errorf("activating pending version: %w", err)
		}
		return nil
	})
}

// Active returns the current active version of a dataset, if any.
func (m *Manager) Active(ctx context.Context, tenantID uuid.UUID, datasetName string) (Version, bool, error) {
	var result Version
	var found bool
	err := dbx.WithTx(ctx, m.Pool, func(tx pgx.Tx) error {
		v, ok, err := m.Store.ActiveVersion(ctx, tx, tenantID, datasetName)
		if err != nil {
			return fmt.Errorf("loading active version: %w", err)
		}
		result, found = v, ok
		return nil
	})
	return result, found, err
}

// Fail marks a pending version as failed — used when activation was
// attempted but an upstream validation step (outside schema compatibility)
// rejected it.
func (m *Manager) Fail(ctx context.Context, pendingID uuid.UUID) error {
	return dbx.WithTx(ctx, m.Pool, func(tx pgx.Tx) error {
		return m.Store.UpdateStatus(ctx, tx, pendingID, StatusFailed, nil)
	})
}

// Rollback demotes the current active version to rolled_back and promotes
// the latest superseded version back to active.
func (m *Manager) Rollback(ctx context.Context, tenantID uuid.UUID, datasetName string) error {
	return dbx.WithTx(ctx, m.Pool, func(tx pgx.Tx) error {
		active, hasActive, err := m.Store.ActiveVersion(ctx, tx, tenantID, datasetName)
		if err != nil {
			return fmt.Errorf("loading active version: %w", err)
		}
		if !hasActive {
			return fmt.Errorf("dataset: no active version for %q to roll back", datasetName)
		}

		superseded, hasSuperseded, err := m.Store.LatestSuperseded(ctx, tx, tenantID, datasetName)
		if err != nil {
			return fmt.Errorf("loading latest superseded version: %w", err)
		}
		if !hasSuperseded {
			return fmt.Errorf("dataset: no superseded version for %q to roll back to", datasetName)
		}

		if err := m.Store.UpdateStatus(ctx, tx, active.ID, StatusRolledBack, nil); err != nil {
			return fmt.Errorf("rolling back active version: %w", err)
		}
		if err := m.Store.UpdateStatus(ctx, tx, superseded.ID, StatusActive, nil); err != nil {
			return fmt.Errorf("reactivating superseded version: %w", err)
		}
		return nil
	})
}
