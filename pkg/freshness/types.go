// Package freshness implements the data-freshness and data-quality state
// machine (spec.md section 4.4): per (tenant, source) availability state,
// severity-scored incidents, and registered anomaly checks.
package freshness

import (
	"time"

	"github.com/google/uuid"
)

// State is DataAvailability.state.
type State string

const (
	StateFresh       State = "fresh"
	StateStale       State = "stale"
	StateUnavailable State = "unavailable"
)

// Reason is DataAvailability.reason.
type Reason string

const (
	ReasonSyncOK             Reason = "sync_ok"
	ReasonSLAExceeded        Reason = "sla_exceeded"
	ReasonGraceWindowExceeded Reason = "grace_window_exceeded"
	ReasonSyncFailed         Reason = "sync_failed"
	ReasonNeverSynced        Reason = "never_synced"
	ReasonBackfillInProgress Reason = "backfill_in_progress"
)

// Availability is spec.md section 3's DataAvailability entity.
type Availability struct {
	TenantID             uuid.UUID
	SourceType           string
	State                State
	Reason               Reason
	WarnThresholdMinutes int
	ErrorThresholdMinutes int
	StateChangedAt       time.Time
	PreviousState        State
	BillingTier          string
}

// SyncStatus describes the connector's last sync outcome — the only input
// (besides thresholds and the clock) the evaluator needs.
type SyncStatus struct {
	LastSyncAt          *time.Time
	LastSyncFailed      bool
	BackfillInProgress  bool
}

// Thresholds is the (warn, error) pair resolved from SLA config for a given
// source type.
type Thresholds struct {
	WarnAfter  time.Duration
	ErrorAfter time.Duration
}

// IncidentSeverity is DQIncident.severity.
type IncidentSeverity string

const (
	SeverityWarning  IncidentSeverity = "warning"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

// IncidentStatus is DQIncident.status.
type IncidentStatus string

const (
	IncidentOpen         IncidentStatus = "open"
	IncidentAcknowledged IncidentStatus = "acknowledged"
	IncidentResolved     IncidentStatus = "resolved"
	IncidentAutoResolved IncidentStatus = "auto_resolved"
)

// Incident is spec.md section 3's DQIncident entity.
type Incident struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ConnectorID    uuid.UUID
	Severity       IncidentSeverity
	Status         IncidentStatus
	Title          string
	MerchantMessage string
	SupportDetails string
	IsBlocking     bool
	OpenedAt       time.Time
	ResolvedAt     *time.Time
}

// AnomalyResult is the common sum type every anomaly check returns
// (spec.md section 9 design note: "dynamic class dispatch ... replaced by
// a registered set of typed anomaly-check functions returning a common
// AnomalyResult sum type").
type AnomalyResult struct {
	CheckName      string
	IsAnomaly      bool
	Severity       IncidentSeverity
	Observed       float64
	Expected       float64
	MerchantMessage string // never exposes internals
	SupportDetails  string // may reference ids and counts
}
