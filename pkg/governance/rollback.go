package governance

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
)

// Handler executes one named rollback action against a scope. Registered
// handlers are the only place rollback side effects happen — the
// orchestrator itself never touches external systems directly.
type Handler func(ctx context.Context, scope RollbackScope, params map[string]any) error

// VerifyCheck runs a named post-rollback verification and reports whether
// it passed.
type VerifyCheck func(ctx context.Context, scope RollbackScope) (bool, error)

// RollbackAudit is the minimal surface the orchestrator needs to record
// state transitions.
type RollbackAudit interface {
	LogRollbackTransition(ctx context.Context, runID uuid.UUID, from, to RollbackState)
}

// Orchestrator is an in-process state machine driving one rollback run at
// a time through pending → validating_authority → executing → verifying →
// a terminal state. Per spec.md's Non-goals, there is no external workflow
// engine — this is a plain struct with explicit transition methods
// (design note 9(b): "reversible" is an explicit boolean on the request,
// not inferred from action type).
type Orchestrator struct {
	Handlers     map[string]Handler
	VerifyChecks map[string]VerifyCheck
	AuthorizedRoles map[string]bool
	Audit        RollbackAudit

	runs map[uuid.UUID]*RollbackRun
}

func NewOrchestrator(handlers map[string]Handler, verifyChecks map[string]VerifyCheck, authorizedRoles []string, audit RollbackAudit) *Orchestrator {
	roles := make(map[string]bool, len(authorizedRoles))
	for _, r := range authorizedRoles {
		roles[r] = true
	}
	return &Orchestrator{
		Handlers:        handlers,
		VerifyChecks:    verifyChecks,
		AuthorizedRoles: roles,
		Audit:           audit,
		runs:            make(map[uuid.UUID]*RollbackRun),
	}
}

// Start begins a new rollback run, validating requester authority before
// executing any action.
func (o *Orchestrator) Start(ctx context.Context, req RollbackRequest) (*RollbackRun, error) {
	run := &RollbackRun{ID: req.ID, Request: req, State: RollbackPending}
	o.runs[req.ID] = run

	o.transition(ctx, run, RollbackValidatingAuthority)
	if !o.AuthorizedRoles[req.RequesterRole] {
		o.transition(ctx, run, RollbackFailed)
		return run, cperr.New(cperr.CodeCrossTenantDenied, "requester role is not authorized to initiate a rollback").
			WithSupport(fmt.Sprintf("role %q not in authorized rollback roles", req.RequesterRole))
	}

	o.transition(ctx, run, RollbackExecuting)
	anyFailed := false
	for _, action := range req.Actions {
		handler, ok := o.Handlers[action.HandlerName]
		if !ok {
			run.ActionOutcomes = append(run.ActionOutcomes, RollbackActionOutcome{HandlerName: action.HandlerName, Err: fmt.Errorf("no handler registered for %q", action.HandlerName)})
			anyFailed = true
			continue
		}
		err := handler(ctx, req.Scope, action.Params)
		run.ActionOutcomes = append(run.ActionOutcomes, RollbackActionOutcome{HandlerName: action.HandlerName, Err: err})
		if err != nil {
			anyFailed = true
		}
	}

	if anyFailed {
		o.transition(ctx, run, RollbackFailed)
		return run, nil
	}

	o.transition(ctx, run, RollbackVerifying)
	for _, name := range req.VerifyChecks {
		check, ok := o.VerifyChecks[name]
		if !ok {
			o.transition(ctx, run, RollbackFailed)
			return run, nil
		}
		passed, err := check(ctx, req.Scope)
		if err != nil || !passed {
			o.transition(ctx, run, RollbackFailed)
			return run, nil
		}
	}

	o.transition(ctx, run, RollbackCompleted)
	return run, nil
}

// Pause marks an in-flight run as paused. Only valid from executing or
// verifying.
func (o *Orchestrator) Pause(ctx context.Context, runID uuid.UUID) error {
	run, ok := o.runs[runID]
	if !ok {
		return fmt.Errorf("governance: no rollback run %s", runID)
	}
	if run.State != RollbackExecuting && run.State != RollbackVerifying {
		return fmt.Errorf("governance: cannot pause run in state %q", run.State)
	}
	o.transition(ctx, run, RollbackPaused)
	return nil
}

// Reverse re-enters a completed, reversible run under a new id, running
// its actions forward again against the inverse intent. The caller
// supplies the new id and the (already-inverted) action list; Reverse only
// enforces that the original run was a completed, reversible rollback.
func (o *Orchestrator) Reverse(ctx context.Context, originalRunID, newRunID uuid.UUID, actions []RollbackAction) (*RollbackRun, error) {
	original, ok := o.runs[originalRunID]
	if !ok {
		return nil, fmt.Errorf("governance: no rollback run %s", originalRunID)
	}
	if original.State != RollbackCompleted {
		return nil, fmt.Errorf("governance: run %s is not completed, cannot reverse", originalRunID)
	}
	if !original.Request.Reversible {
		return nil, fmt.Errorf("governance: run %s is not marked reversible", originalRunID)
	}

	original.Reversed = true
	forwardReq := original.Request
	forwardReq.ID = newRunID
	forwardReq.Actions = actions
	run, err := o.Start(ctx, forwardReq)
	if err == nil && run.State == RollbackCompleted {
		run.State = RollbackRolledForward
	}
	return run, err
}

func (o *Orchestrator) transition(ctx context.Context, run *RollbackRun, to RollbackState) {
	from := run.State
	run.State = to
	if o.Audit != nil {
		o.Audit.LogRollbackTransition(ctx, run.ID, from, to)
	}
}
