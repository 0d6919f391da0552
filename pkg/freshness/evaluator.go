package freshness

import "time"

// Evaluate runs the state-transition table from spec.md section 4.4 for a
// single (tenant, source) pair at instant now.
func Evaluate(status SyncStatus, thresholds Thresholds, now time.Time) (State, Reason) {
	if status.LastSyncAt == nil {
		return StateUnavailable, ReasonNeverSynced
	}

	elapsed := now.Sub(*status.LastSyncAt)

	if status.LastSyncFailed && elapsed >= thresholds.WarnAfter {
		return StateUnavailable, ReasonSyncFailed
	}

	var state State
	var reason Reason
	switch {
	case elapsed >= thresholds.ErrorAfter:
		state, reason = StateUnavailable, ReasonGraceWindowExceeded
	case elapsed >= thresholds.WarnAfter:
		state, reason = StateStale, ReasonSLAExceeded
	default:
		state, reason = StateFresh, ReasonSyncOK
	}

	// Backfill override: only fresh is downgraded; worse states are never
	// overridden (spec.md 4.4).
	if state == StateFresh && status.BackfillInProgress {
		return StateStale, ReasonBackfillInProgress
	}
	return state, reason
}

// Transition computes the new Availability row for a (tenant, source),
// given the prior row (or zero value if none existed) and the current
// sync status. It returns the updated row and whether a genuine state
// change occurred (callers emit an audit event only when changed is true).
func Transition(prior Availability, status SyncStatus, thresholds Thresholds, now time.Time) (updated Availability, changed bool) {
	state, reason := Evaluate(status, thresholds, now)

	updated = prior
	updated.WarnThresholdMinutes = int(thresholds.WarnAfter.Minutes())
	updated.ErrorThresholdMinutes = int(thresholds.ErrorAfter.Minutes())

	if state == prior.State {
		updated.State = state
		updated.Reason = reason
		return updated, false
	}

	updated.PreviousState = prior.State
	updated.State = state
	updated.Reason = reason
	updated.StateChangedAt = now
	return updated, true
}

// AuditEventFor names the structured audit event for a genuine transition
// (spec.md 4.4: "data.freshness.stale | unavailable | recovered").
func AuditEventFor(updated Availability) string {
	switch updated.State {
	case StateStale:
		return "data.freshness.stale"
	case StateUnavailable:
		return "data.freshness.unavailable"
	case StateFresh:
		return "data.freshness.recovered"
	default:
		return "data.freshness.changed"
	}
}
