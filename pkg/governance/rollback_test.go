package governance

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestOrchestrator_DeniesUnauthorizedRole(t *testing.T) {
	orch := NewOrchestrator(nil, nil, []string{"sre_lead"}, nil)
	run, err := orch.Start(context.Background(), RollbackRequest{ID: uuid.New(), RequesterRole: "eng"})
	require.Error(t, err)
	require.Equal(t, RollbackFailed, run.State)
}

func TestOrchestrator_ExecutesAllActionsAndCompletes(t *testing.T) {
	calls := 0
	handlers := map[string]Handler{
		"disable_metric": func(ctx context.Context, scope RollbackScope, params map[string]any) error {
			calls++
			return nil
		},
	}
	orch := NewOrchestrator(handlers, nil, []string{"sre_lead"}, nil)
	req := RollbackRequest{
		ID:            uuid.New(),
		RequesterRole: "sre_lead",
		Actions:       []RollbackAction{{HandlerName: "disable_metric"}, {HandlerName: "disable_metric"}},
	}
	run, err := orch.Start(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, RollbackCompleted, run.State)
	require.Equal(t, 2, calls)
}

func TestOrchestrator_OneActionFailureMarksOverallFailedButRunsTheRest(t *testing.T) {
	var ran []string
	handlers := map[string]Handler{
		"a": func(ctx context.Context, scope RollbackScope, params map[string]any) error {
			ran = append(ran, "a")
			return errors.New("boom")
		},
		"b": func(ctx context.Context, scope RollbackScope, params map[string]any) error {
			ran = append(ran, "b")
			return nil
		},
	}
	orch := NewOrchestrator(handlers, nil, []string{"sre_lead"}, nil)
	req := RollbackRequest{
		ID:            uuid.New(),
		RequesterRole: "sre_lead",
		Actions:       []RollbackAction{{HandlerName: "a"}, {HandlerName: "b"}},
	}
	run, err := orch.Start(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, RollbackFailed, run.State)
	require.Equal(t, []string{"a", "b"}, ran)
}

func TestOrchestrator_VerifyFailureMarksFailed(t *testing.T) {
	handlers := map[string]Handler{"noop": func(ctx context.Context, scope RollbackScope, params map[string]any) error { return nil }}
	checks := map[string]VerifyCheck{"health": func(ctx context.Context, scope RollbackScope) (bool, error) { return false, nil }}
	orch := NewOrchestrator(handlers, checks, []string{"sre_lead"}, nil)
	req := RollbackRequest{
		ID:            uuid.New(),
		RequesterRole: "sre_lead",
		Actions:       []RollbackAction{{HandlerName: "noop"}},
		VerifyChecks:  []string{"health"},
	}
	run, err := orch.Start(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, RollbackFailed, run.State)
}

func TestOrchestrator_ReverseRequiresCompletedAndReversible(t *testing.T) {
	handlers := map[string]Handler{"noop": func(ctx context.Context, scope RollbackScope, params map[string]any) error { return nil }}
	orch := NewOrchestrator(handlers, nil, []string{"sre_lead"}, nil)
	originalID := uuid.New()
	req := RollbackRequest{
		ID:            originalID,
		RequesterRole: "sre_lead",
		Actions:       []RollbackAction{{HandlerName: "noop"}},
		Reversible:    false,
	}
	run, err := orch.Start(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, RollbackCompleted, run.State)

	_, err = orch.Reverse(context.Background(), originalID, uuid.New(), req.Actions)
	require.Error(t, err)
}

func TestOrchestrator_ReverseReentersWithNewID(t *testing.T) {
	handlers := map[string]Handler{"noop": func(ctx context.Context, scope RollbackScope, params map[string]any) error { return nil }}
	orch := NewOrchestrator(handlers, nil, []string{"sre_lead"}, nil)
	originalID := uuid.New()
	req := RollbackRequest{
		ID:            originalID,
		RequesterRole: "sre_lead",
		Actions:       []RollbackAction{{HandlerName: "noop"}},
		Reversible:    true,
	}
	_, err := orch.Start(context.Background(), req)
	require.NoError(t, err)

	newID := uuid.New()
	reversed, err := orch.Reverse(context.Background(), originalID, newID, req.Actions)
	require.NoError(t, err)
	require.Equal(t, RollbackRolledForward, reversed.State)
	require.Equal(t, newID, reversed.ID)
}
