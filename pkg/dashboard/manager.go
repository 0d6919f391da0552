package dashboard

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

// Manager is the dashboard CRUD and versioning service.
type Manager struct {
	Pool         *pgxpool.Pool
	Store        Store
	MaxDashboards int
	now          func() time.Time
}

func NewManager(pool *pgxpool.Pool, store Store, maxDashboards int) *Manager {
	return &Manager{Pool: pool, Store: store, MaxDashboards: maxDashboards, now: time.Now}
}

// Create inserts a new dashboard under tenantID owned by ownerUserID. The
// per-tenant count is taken under SELECT ... FOR UPDATE, in the same
// transaction as the insert, to close the check-then-act race spec.md
// section 5 flags.
func (m *Manager) Create(ctx context.Context, tenantID, ownerUserID uuid.UUID, in CreateInput) (Dashboard, error) {
	var result Dashboard
	err := dbx.WithTx(ctx, m.Pool, func(tx pgx.Tx) error {
		count, err := m.Store.CountActiveForTenantForUpdate(ctx, tx, tenantID)
		if err != nil {
			return fmt.Errorf("counting dashboards: %w", err)
		}
		if count >= m.MaxDashboards {
			return cperr.New(cperr.CodeDashboardLimitExceeded, "dashboard limit reached for this plan").
				WithContext(map[string]any{"tenant_id": tenantID, "limit": m.MaxDashboards})
		}

		conflict, err := m.Store.NameConflictExists(ctx, tx, tenantID, in.Name, uuid.Nil)
		if err != nil {
			return fmt.Errorf("checking name conflict: %w", err)
		}
		if conflict {
			return cperr.New(cperr.CodeDashboardNameConflict, "a dashboard with this name already exists").
				WithContext(map[string]any{"tenant_id": tenantID})
		}

		now := m.now()
		d := Dashboard{
			ID:            uuid.New(),
			TenantID:      tenantID,
			OwnerUserID:   ownerUserID,
			Name:          in.Name,
			VersionNumber: 1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := m.Store.Insert(ctx, tx, d); err != nil {
			return fmt.Errorf("inserting dashboard: %w", err)
		}

		reports := assignReportIDs(in.Reports, d.ID)
		if err := m.Store.ReplaceReports(ctx, tx, d.ID, reports); err != nil {
			return fmt.Errorf("inserting reports: %w", err)
		}

		if err := m.snapshotVersion(ctx, tx, d, reports); err != nil {
			return err
		}

		result = d
		return nil
	})
	return result, err
}

// Update applies a caller's edit under optimistic locking: if
// in.ExpectedUpdatedAt doesn't match the current row, the caller is
// forced to reload (spec.md 4.9). On success version_number increments
// and a new snapshot is taken; once the version count exceeds the cap,
// the oldest versions are pruned FIFO.
func (m *Manager) Update(ctx context.Context, tenantID, dashboardID, actorUserID uuid.UUID, in UpdateInput) (Dashboard, error) {
	var result Dashboard
	err := dbx.WithTx(ctx, m.Pool, func(tx pgx.Tx) error {
		d, err := m.Store.GetForUpdate(ctx, tx, tenantID, dashboardID)
		if err != nil {
			return fmt.Errorf("loading dashboard: %w", err)
		}

		level, err := AccessLevelFor(ctx, m.Store, tx, d, actorUserID, m.now())
		if err != nil {
			return cperr.Wrap(cperr.CodeCrossTenantDenied, "you do not have access to this dashboard", err)
		}
		if !level.CanWrite() {
			return cperr.New(cperr.CodeCrossTenantDenied, "read-only access cannot modify this dashboard")
		}

		if !d.UpdatedAt.Equal(in.ExpectedUpdatedAt) {
			return cperr.New(cperr.CodeOptimisticLockConflict, "dashboard was modified by someone else; reload and retry")
		}

		if in.Name != nil {
			conflict, err := m.Store.NameConflictExists(ctx, tx, tenantID, *in.Name, d.ID)
			if err != nil {
				return fmt.Errorf("checking name conflict: %w", err)
			}
			if conflict {
				return cperr.New(cperr.CodeDashboardNameConflict, "a dashboard with this name already exists")
			}
			d.Name = *in.Name
		}

		reports := in.Reports
		if reports == nil {
			reports, err = m.Store.ReportsFor(ctx, tx, d.ID)
			if err != nil {
				return fmt.Errorf("loading existing reports: %w", err)
			}
		} else {
			reports = assignReportIDs(reports, d.ID)
			if err := m.Store.ReplaceReports(ctx, tx, d.ID, reports); err != nil {
				return fmt.Errorf("replacing reports: %w", err)
			}
		}

		d.VersionNumber++
		d.UpdatedAt = m.now()
		if err := m.Store.Update(ctx, tx, d); err != nil {
			return fmt.Errorf("updating dashboard: %w", err)
		}

		if err := m.snapshotVersion(ctx, tx, d, reports); err != nil {
			return err
		}

		result = d
		return nil
	})
	return result, err
}

// Restore replaces the dashboard's current reports with the given
// version's snapshot (new report ids) and bumps version_number.
func (m *Manager) Restore(ctx context.Context, tenantID, dashboardID, actorUserID uuid.UUID, versionNumber int) (Dashboard, error) {
	var result Dashboard
	err := dbx.WithTx(ctx, m.Pool, func(tx pgx.Tx) error {
		d, err := m.Store.GetForUpdate(ctx, tx, tenantID, dashboardID)
		if err != nil {
			return fmt.Errorf("loading dashboard: %w", err)
		}

		level, err := AccessLevelFor(ctx, m.Store, tx, d, actorUserID, m.now())
		if err != nil {
			return cperr.Wrap(cperr.CodeCrossTenantDenied, "you do not have access to this dashboard", err)
		}
		if !level.CanWrite() {
			return cperr.New(cperr.CodeCrossTenantDenied, "read-only access cannot modify this dashboard")
		}

		version, err := m.Store.GetVersion(ctx, tx, d.ID, versionNumber)
		if err != nil {
			return fmt.Errorf("loading version %d: %w", versionNumber, err)
		}

		restoredReports := assignReportIDs(version.Snapshot.Reports, d.ID)
		if err := m.Store.ReplaceReports(ctx, tx, d.ID, restoredReports); err != nil {
			return fmt.Errorf("restoring reports: %w", err)
		}

		d.VersionNumber++
		d.UpdatedAt = m.now()
		if err := m.Store.Update(ctx, tx, d); err != nil {
			return fmt.Errorf("updating dashboard: %w", err)
		}

		if err := m.snapshotVersion(ctx, tx, d, restoredReports); err != nil {
			return err
		}

		result = d
		return nil
	})
	return result, err
}

func (m *Manager) snapshotVersion(ctx context.Context, tx pgx.Tx, d Dashboard, reports []Report) error {
	v := DashboardVersion{
		ID:            uuid.New(),
		DashboardID:   d.ID,
		VersionNumber: d.VersionNumber,
		Snapshot:      VersionSnapshot{Name: d.Name, Reports: reports},
		CreatedAt:     d.UpdatedAt,
	}
	if err := m.Store.InsertVersion(ctx, tx, v); err != nil {
		return fmt.Errorf("snapshotting version: %w", err)
	}

	versions, err := m.Store.ListVersions(ctx, tx, d.ID)
	if err != nil {
		return fmt.Errorf("listing versions for pruning: %w", err)
	}
	prune := versionsToPrune(versions)
	if len(prune) == 0 {
		return nil
	}
	if err := m.Store.DeleteVersions(ctx, tx, prune); err != nil {
		return fmt.Errorf("pruning oldest versions: %w", err)
	}
	return nil
}

// versionsToPrune returns the ids of the oldest versions beyond VersionCap.
// versions must be ordered oldest-first, per ListVersions' contract.
func versionsToPrune(versions []DashboardVersion) []uuid.UUID {
	if len(versions) <= VersionCap {
		return nil
	}
	excess := len(versions) - VersionCap
	prune := make([]uuid.UUID, 0, excess)
	for i := 0; i < excess; i++ {
		prune = append(prune, versions[i].ID)
	}
	return prune
}

func assignReportIDs(reports []Report, dashboardID uuid.UUID) []Report {
	out := make([]Report, len(reports))
	for i, r := range reports {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.DashboardID = dashboardID
		r.Position = i
		out[i] = r
	}
	return out
}
