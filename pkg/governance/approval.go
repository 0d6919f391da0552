package governance

import (
	"context"
	"fmt"
	"time"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
)

// AuditSink is the minimal surface the approval gate needs to record every
// decision — pass or block — per spec.md 4.8.1.
type AuditSink interface {
	LogApprovalDecision(ctx context.Context, cr ChangeRequest, result GateResult)
}

// ApprovalGate decides whether a change request may proceed, given the
// configuration for its change type. It never consults anything beyond
// the ChangeRequest and config it is handed — deterministic by
// construction.
type ApprovalGate struct {
	Config map[string]ChangeTypeConfig // keyed by change_type
	Audit  AuditSink
}

func NewApprovalGate(config map[string]ChangeTypeConfig, audit AuditSink) *ApprovalGate {
	return &ApprovalGate{Config: config, Audit: audit}
}

// Evaluate implements spec.md 4.8.1's block conditions in order, returning
// the first one violated.
func (g *ApprovalGate) Evaluate(ctx context.Context, cr ChangeRequest, now time.Time) GateResult {
	result := g.evaluate(cr, now)
	if g.Audit != nil {
		g.Audit.LogApprovalDecision(ctx, cr, result)
	}
	return result
}

func (g *ApprovalGate) evaluate(cr ChangeRequest, now time.Time) GateResult {
	if cr.ChangeType == "" {
		return GateResult{Decision: DecisionBlock, Reason: "missing change request"}
	}

	cfg, ok := g.Config[cr.ChangeType]
	if !ok {
		return GateResult{Decision: DecisionBlock, Reason: fmt.Sprintf("missing approval config for change type %q", cr.ChangeType)}
	}

	if cfg.SLA > 0 && !cr.SubmittedAt.IsZero() && now.After(cr.SubmittedAt.Add(cfg.SLA)) {
		return GateResult{Decision: DecisionBlock, Reason: "change request SLA has expired"}
	}

	for _, item := range cfg.ChecklistItems {
		if !cr.ChecklistCompleted[item] {
			return GateResult{Decision: DecisionBlock, Reason: fmt.Sprintf("checklist item %q incomplete", item)}
		}
	}

	if cr.Emergency {
		return g.evaluateEmergency(cfg, cr)
	}

	return g.evaluateStandard(cfg, cr)
}

func (g *ApprovalGate) evaluateStandard(cfg ChangeTypeConfig, cr ChangeRequest) GateResult {
	allowedRole := func(role string) bool {
		for _, r := range cfg.AllowedApproverRoles {
			if r == role {
				return true
			}
		}
		return false
	}

	count := 0
	seen := make(map[string]bool, len(cr.Approvals))
	for _, a := range cr.Approvals {
		if !allowedRole(a.ApproverRole) {
			continue
		}
		if seen[a.ApproverID.String()] {
			continue
		}
		seen[a.ApproverID.String()] = true
		count++
	}

	if count < cfg.RequiredApprovers {
		return GateResult{Decision: DecisionBlock, Reason: fmt.Sprintf("only %d of %d required approvals from an allowed role", count, cfg.RequiredApprovers)}
	}

	return GateResult{Decision: DecisionPass, Reason: "required approvals satisfied"}
}

func (g *ApprovalGate) evaluateEmergency(cfg ChangeTypeConfig, cr ChangeRequest) GateResult {
	rule := cfg.Emergency

	allowedRole := func(role string) bool {
		for _, r := range rule.AllowedApproverRoles {
			if r == role {
				return true
			}
		}
		return false
	}

	count := 0
	for _, a := range cr.Approvals {
		if allowedRole(a.ApproverRole) {
			count++
		}
	}
	if count < rule.MinApprovers {
		return GateResult{Decision: DecisionBlock, Reason: fmt.Sprintf("emergency approval needs %d approver(s) from an allowed role, got %d", rule.MinApprovers, count)}
	}

	if rule.RequireIncidentTicket && cr.IncidentTicket == "" {
		return GateResult{Decision: DecisionBlock, Reason: "emergency approval requires an incident ticket"}
	}

	if rule.RequirePostMortem && !cr.PostMortemCommitment {
		return GateResult{Decision: DecisionBlock, Reason: "emergency approval requires a post-mortem commitment"}
	}

	return GateResult{Decision: DecisionPass, Reason: "emergency approval requirements satisfied"}
}

// AsError converts a blocked GateResult into a structured cperr for
// callers that need to return it across an HTTP boundary.
func (r GateResult) AsError() error {
	if r.Decision == DecisionPass {
		return nil
	}
	return cperr.New(cperr.CodeGuardrailViolation, r.Reason)
}
