package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluate_Ladder(t *testing.T) {
	now := time.Now()
	thresholds := Thresholds{WarnAfter: 120 * time.Minute, ErrorAfter: 480 * time.Minute}

	cases := []struct {
		name     string
		minutes  time.Duration
		wantState State
		wantReason Reason
	}{
		{"just under warn", 119 * time.Minute, StateFresh, ReasonSyncOK},
		{"at warn", 120 * time.Minute, StateStale, ReasonSLAExceeded},
		{"just under error", 479 * time.Minute, StateStale, ReasonSLAExceeded},
		{"at error", 480 * time.Minute, StateUnavailable, ReasonGraceWindowExceeded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lastSync := now.Add(-tc.minutes)
			state, reason := Evaluate(SyncStatus{LastSyncAt: &lastSync}, thresholds, now)
			require.Equal(t, tc.wantState, state)
			require.Equal(t, tc.wantReason, reason)
		})
	}
}

func TestEvaluate_NeverSynced(t *testing.T) {
	state, reason := Evaluate(SyncStatus{}, Thresholds{WarnAfter: time.Hour, ErrorAfter: 2 * time.Hour}, time.Now())
	require.Equal(t, StateUnavailable, state)
	require.Equal(t, ReasonNeverSynced, reason)
}

func TestEvaluate_BackfillOverridesFreshOnly(t *testing.T) {
	now := time.Now()
	recent := now.Add(-time.Minute)
	thresholds := Thresholds{WarnAfter: time.Hour, ErrorAfter: 2 * time.Hour}

	state, reason := Evaluate(SyncStatus{LastSyncAt: &recent, BackfillInProgress: true}, thresholds, now)
	require.Equal(t, StateStale, state)
	require.Equal(t, ReasonBackfillInProgress, reason)

	// Worse state is not overridden by backfill.
	old := now.Add(-3 * time.Hour)
	state, reason = Evaluate(SyncStatus{LastSyncAt: &old, BackfillInProgress: true}, thresholds, now)
	require.Equal(t, StateUnavailable, state)
	require.Equal(t, ReasonGraceWindowExceeded, reason)
}

func TestTransition_EmitsOnlyOnChange(t *testing.T) {
	now := time.Now()
	thresholds := Thresholds{WarnAfter: time.Hour, ErrorAfter: 2 * time.Hour}
	recent := now.Add(-time.Minute)

	prior := Availability{State: StateFresh}
	updated, changed := Transition(prior, SyncStatus{LastSyncAt: &recent}, thresholds, now)
	require.False(t, changed)
	require.Equal(t, StateFresh, updated.State)

	stale := now.Add(-90 * time.Minute)
	updated, changed = Transition(prior, SyncStatus{LastSyncAt: &stale}, thresholds, now)
	require.True(t, changed)
	require.Equal(t, StateStale, updated.State)
	require.Equal(t, StateFresh, updated.PreviousState)
	require.Equal(t, "data.freshness.stale", AuditEventFor(updated))
}

func TestStaleSeverity(t *testing.T) {
	require.Equal(t, SeverityWarning, StaleSeverity(60, 60, false))
	require.Equal(t, SeverityHigh, StaleSeverity(180, 60, false))
	require.Equal(t, SeverityCritical, StaleSeverity(300, 60, false))
	require.Equal(t, SeverityCritical, StaleSeverity(1, 60, true))
}

func TestIncident_ResolveIsIdempotent(t *testing.T) {
	now := time.Now()
	inc := Incident{Status: IncidentOpen}
	resolved := Resolve(inc, now)
	require.Equal(t, IncidentResolved, resolved.Status)

	again := Resolve(resolved, now.Add(time.Hour))
	require.Equal(t, resolved.ResolvedAt, again.ResolvedAt)
}
