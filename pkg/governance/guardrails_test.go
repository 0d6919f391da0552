package governance

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testRules() []ProhibitedActionRule {
	return []ProhibitedActionRule{
		{
			Name:       "no_direct_credential_writes",
			Expression: `input.action == "vault.write_credential_direct"`,
			Category:   CategorySecurityCritical,
			Reason:     "credentials may only be written through the vault API",
			RedirectTo: "pkg/vault.Manager",
		},
		{
			Name:       "no_auto_refunds_above_threshold",
			Expression: `input.action == "billing.issue_refund" && input.params.amount_cents > 500000`,
			Category:   CategoryBusinessDecision,
			Reason:     "refunds above $5,000 require a human approval",
		},
	}
}

func TestGuardrails_AllowsUnmatchedAction(t *testing.T) {
	g, err := NewGuardrails(testRules(), nil)
	require.NoError(t, err)
	refusal, err := g.Check(context.Background(), AttemptedAction{RequestID: uuid.New(), Action: "dashboard.create"})
	require.NoError(t, err)
	require.Nil(t, refusal)
}

func TestGuardrails_RefusesProhibitedAction(t *testing.T) {
	g, err := NewGuardrails(testRules(), nil)
	require.NoError(t, err)
	refusal, err := g.Check(context.Background(), AttemptedAction{RequestID: uuid.New(), Action: "vault.write_credential_direct"})
	require.NoError(t, err)
	require.NotNil(t, refusal)
	require.Equal(t, CategorySecurityCritical, refusal.Category)
}

func TestGuardrails_EvaluatesStructuredParams(t *testing.T) {
	g, err := NewGuardrails(testRules(), nil)
	require.NoError(t, err)

	allowed, err := g.Check(context.Background(), AttemptedAction{
		Action: "billing.issue_refund",
		Params: map[string]any{"amount_cents": int64(10000)},
	})
	require.NoError(t, err)
	require.Nil(t, allowed)

	refused, err := g.Check(context.Background(), AttemptedAction{
		Action: "billing.issue_refund",
		Params: map[string]any{"amount_cents": int64(600000)},
	})
	require.NoError(t, err)
	require.NotNil(t, refused)
	require.Equal(t, CategoryBusinessDecision, refused.Category)
}

type recordingAudit struct {
	calls int
}

func (r *recordingAudit) LogGuardrailCheck(ctx context.Context, action AttemptedAction, refusal *Refusal) {
	r.calls++
}

func TestGuardrails_LogsEveryCheckAllowedOrRefused(t *testing.T) {
	audit := &recordingAudit{}
	g, err := NewGuardrails(testRules(), audit)
	require.NoError(t, err)

	_, _ = g.Check(context.Background(), AttemptedAction{Action: "dashboard.create"})
	_, _ = g.Check(context.Background(), AttemptedAction{Action: "vault.write_credential_direct"})
	require.Equal(t, 2, audit.calls)
}
