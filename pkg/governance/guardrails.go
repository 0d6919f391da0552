package governance

import (
	"context"
	"fmt"

	"github.com/joshrkay/shopify-analytics-controlplane/pkg/notify"
)

// GuardrailAudit is the minimal surface guardrails needs to record both
// allowed and refused attempts — spec.md 4.8.5 requires every check to be
// logged, not just refusals.
type GuardrailAudit interface {
	LogGuardrailCheck(ctx context.Context, action AttemptedAction, refusal *Refusal)
}

// Guardrails evaluates attempted actions against a closed registry of
// prohibited-action rules loaded from ai_restrictions.yaml, each compiled
// to a CEL program by the shared ruleEvaluator.
type Guardrails struct {
	Rules  []ProhibitedActionRule
	Audit  GuardrailAudit
	Notify *notify.Registry // optional; alerts ops when a security_critical refusal fires

	eval *ruleEvaluator
}

func NewGuardrails(rules []ProhibitedActionRule, audit GuardrailAudit) (*Guardrails, error) {
	eval, err := newRuleEvaluator()
	if err != nil {
		return nil, err
	}
	return &Guardrails{Rules: rules, Audit: audit, eval: eval}, nil
}

// Check evaluates action against every registered rule in order and
// returns the first matching refusal, or nil if the action is allowed.
// Every call — allowed or refused — is recorded to the guardrail audit.
func (g *Guardrails) Check(ctx context.Context, action AttemptedAction) (*Refusal, error) {
	input := map[string]any{
		"action": action.Action,
		"actor":  action.Actor,
		"params": action.Params,
	}

	for _, rule := range g.Rules {
		matched, err := g.eval.evalBool(rule.Expression, input)
		if err != nil {
			return nil, fmt.Errorf("governance: evaluating guardrail rule %q: %w", rule.Name, err)
		}
		if !matched {
			continue
		}

		refusal := &Refusal{
			RequestID:  action.RequestID,
			Action:     action.Action,
			Reason:     rule.Reason,
			Category:   rule.Category,
			RedirectTo: rule.RedirectTo,
		}
		if g.Audit != nil {
			g.Audit.LogGuardrailCheck(ctx, action, refusal)
		}
		if g.Notify != nil && refusal.Category == CategorySecurityCritical {
			g.Notify.Broadcast(ctx, notify.Alert{
				Severity: notify.SeverityWarning,
				Title:    "AI guardrail refusal",
				Message:  fmt.Sprintf("a requested action (%s) was blocked by a safety guardrail", refusal.Action),
			})
		}
		return refusal, nil
	}

	if g.Audit != nil {
		g.Audit.LogGuardrailCheck(ctx, action, nil)
	}
	return nil, nil
}
