package freshness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joshrkay/shopify-analytics-controlplane/pkg/notify"
)

// Monitor is the data-freshness/DQ incident pipeline (spec.md 4.4): it
// drives Evaluate/Transition off a connector's latest SyncStatus, persists
// the resulting availability row, and opens, escalates, or auto-resolves
// the DQIncident tied to a blocking state — mirroring the shape of
// billing.Pipeline's ingest-then-react pattern.
type Monitor struct {
	Pool       *pgxpool.Pool
	Store      Store
	Audit      AuditSink
	Notify     *notify.Registry
	Thresholds map[string]Thresholds
	now        func() time.Time
}

// NewMonitor constructs a Monitor. notifier may be nil when no merchant
// notification channel is configured for the tenant.
func NewMonitor(pool *pgxpool.Pool, store Store, audit AuditSink, notifier *notify.Registry, thresholds map[string]Thresholds) *Monitor {
	return &Monitor{Pool: pool, Store: store, Audit: audit, Notify: notifier, Thresholds: thresholds, now: time.Now}
}

// Observe evaluates a connector's current sync status, persists the
// resulting availability row, and opens/resolves the DQ incident for a
// blocking transition. It is the entry point called after every connector
// sync attempt (spec.md 4.4).
func (m *Monitor) Observe(ctx context.Context, tenantID, connectorID uuid.UUID, sourceType string, status SyncStatus, isCriticalSource bool) (Availability, error) {
	now := m.now().UTC()
	thresholds := ForSource(m.Thresholds, sourceType)

	prior, _, err := m.Store.GetAvailability(ctx, m.Pool, tenantID, sourceType)
	if err != nil {
		return Availability{}, fmt.Errorf("loading prior availability: %w", err)
	}
	prior.TenantID = tenantID
	prior.SourceType = sourceType

	updated, changed := Transition(prior, status, thresholds, now)
	if err := m.Store.UpsertAvailability(ctx, m.Pool, updated); err != nil {
		return Availability{}, fmt.Errorf("persisting availability: %w", err)
	}
	if !changed {
		return updated, nil
	}

	m.Audit.LogFreshnessTransition(ctx, tenantID, sourceType, AuditEventFor(updated), updated.PreviousState, updated.State)

	if updated.State == StateUnavailable {
		if err := m.openOrEscalate(ctx, tenantID, connectorID, sourceType, updated, isCriticalSource, now); err != nil {
			return updated, err
		}
	} else if updated.PreviousState == StateUnavailable {
		if err := m.autoResolve(ctx, tenantID, connectorID, now); err != nil {
			return updated, err
		}
	}

	return updated, nil
}

func (m *Monitor) openOrEscalate(ctx context.Context, tenantID, connectorID uuid.UUID, sourceType string, a Availability, isCriticalSource bool, now time.Time) error {
	minutesOver := int(now.Sub(a.StateChangedAt).Minutes())
	severity := StaleSeverity(minutesOver, a.ErrorThresholdMinutes, isCriticalSource)
	blocking := severity == SeverityCritical || isCriticalSource

	existing, found, err := m.Store.OpenIncidentFor(ctx, m.Pool, tenantID, connectorID)
	if err != nil {
		return fmt.Errorf("checking for open incident: %w", err)
	}

	scope, eta := BlockBannerCopy(severity, sourceType)
	merchantMessage := fmt.Sprintf("%s. %s", scope, eta)
	supportDetails := fmt.Sprintf("source=%s reason=%s minutes_over=%d", sourceType, a.Reason, minutesOver)

	if found {
		existing.Severity = severity
		existing.IsBlocking = blocking
		existing.MerchantMessage = merchantMessage
		existing.SupportDetails = supportDetails
		if err := m.Store.UpdateIncident(ctx, m.Pool, existing); err != nil {
			return fmt.Errorf("updating incident: %w", err)
		}
		return nil
	}

	inc := Open(tenantID, connectorID, severity, sourceType+" data is unavailable", merchantMessage, supportDetails, blocking, now)
	if err := m.Store.InsertIncident(ctx, m.Pool, inc); err != nil {
		return fmt.Errorf("inserting incident: %w", err)
	}

	if m.Notify != nil && (severity == SeverityHigh || severity == SeverityCritical) {
		m.Notify.Broadcast(ctx, notify.Alert{
			TenantID: tenantID.String(),
			Severity: notifySeverity(severity),
			Title:    inc.Title,
			Message:  merchantMessage,
		})
	}
	return nil
}

func (m *Monitor) autoResolve(ctx context.Context, tenantID, connectorID uuid.UUID, now time.Time) error {
	existing, found, err := m.Store.OpenIncidentFor(ctx, m.Pool, tenantID, connectorID)
	if err != nil {
		return fmt.Errorf("checking for open incident to resolve: %w", err)
	}
	if !found {
		return nil
	}

	resolved := AutoResolve(existing, now)
	if err := m.Store.UpdateIncident(ctx, m.Pool, resolved); err != nil {
		return fmt.Errorf("auto-resolving incident: %w", err)
	}

	if m.Notify != nil {
		m.Notify.Broadcast(ctx, notify.Alert{
			TenantID: tenantID.String(),
			Severity: notify.SeverityInfo,
			Title:    resolved.Title,
			Message:  "data has recovered and is flowing normally again",
		})
	}
	return nil
}

func notifySeverity(s IncidentSeverity) notify.Severity {
	switch s {
	case SeverityCritical:
		return notify.SeverityCritical
	case SeverityHigh:
		return notify.SeverityWarning
	default:
		return notify.SeverityInfo
	}
}
