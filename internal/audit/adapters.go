package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/pkg/billing"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/freshness"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/governance"
)

// The methods below adapt Writer to the small, locally-defined AuditSink
// interfaces each domain package declares (pkg/tenant.AuditSink,
// pkg/connector.AuditSink, pkg/billing.AuditSink, ...). Domain packages
// never import internal/audit directly — this package depends on them
// instead, keeping audit a leaf per spec.md section 2's data-flow note.

// LogRoleChangeEnforced implements pkg/tenant.AuditSink.
func (w *Writer) LogRoleChangeEnforced(ctx context.Context, userID, tenantID uuid.UUID, tokenRoles, dbRoles []string) {
	w.Log(Entry{
		TenantID:     tenantID,
		UserID:       &userID,
		Action:       "identity.role_change_enforced",
		ResourceType: "user_tenant_role",
		ResourceID:   userID,
		Source:       SourceAPI,
		Outcome:      OutcomeSuccess,
		Metadata: map[string]any{
			"token_roles": tokenRoles,
			"db_roles":    dbRoles,
		},
	})
}

// LogDuplicateShopDomainBlocked implements pkg/connector.AuditSink.
func (w *Writer) LogDuplicateShopDomainBlocked(ctx context.Context, requestingTenantID, owningTenantID uuid.UUID, normalizedDomain string) {
	w.Log(Entry{
		TenantID:     requestingTenantID,
		Action:       "connector.duplicate_shop_domain_blocked",
		ResourceType: "connector_connection",
		Source:       SourceAPI,
		Outcome:      OutcomeDenied,
		ErrorCode:    "duplicate_shop_domain",
		Metadata: map[string]any{
			"requesting_tenant_id": requestingTenantID,
			"owning_tenant_id":     owningTenantID,
			"shop_domain":          normalizedDomain,
			"severity":             "critical",
		},
	})
}

// LogReconciliationDrift implements pkg/billing.AuditSink.
func (w *Writer) LogReconciliationDrift(ctx context.Context, tenantID uuid.UUID, externalSubID string, from, to billing.Status) {
	w.Log(Entry{
		TenantID:     tenantID,
		Action:       "billing.reconciliation_drift_corrected",
		ResourceType: "subscription",
		Source:       SourceWorker,
		Outcome:      OutcomeSuccess,
		Metadata: map[string]any{
			"external_subscription_id": externalSubID,
			"from_status":              from,
			"to_status":                to,
			"source":                   "reconciliation",
		},
	})
}

// LogApprovalDecision implements pkg/governance.AuditSink.
func (w *Writer) LogApprovalDecision(ctx context.Context, cr governance.ChangeRequest, result governance.GateResult) {
	w.Log(Entry{
		TenantID:     cr.TenantID,
		Action:       "governance.approval_decision",
		ResourceType: "change_request",
		ResourceID:   cr.ID,
		Source:       SourceAPI,
		Outcome:      outcomeForDecision(result.Decision),
		Metadata: map[string]any{
			"change_type": cr.ChangeType,
			"decision":    result.Decision,
			"reason":      result.Reason,
			"emergency":   cr.Emergency,
		},
	})
}

// LogRollbackTransition implements pkg/governance.RollbackAudit.
func (w *Writer) LogRollbackTransition(ctx context.Context, runID uuid.UUID, from, to governance.RollbackState) {
	w.Log(Entry{
		Action:       "governance.rollback_transition",
		ResourceType: "rollback_run",
		ResourceID:   runID,
		Source:       SourceWorker,
		Outcome:      OutcomeSuccess,
		Metadata: map[string]any{
			"from_state": from,
			"to_state":   to,
		},
	})
}

// LogGuardrailCheck implements pkg/governance.GuardrailAudit. refusal is
// nil when the action was allowed.
func (w *Writer) LogGuardrailCheck(ctx context.Context, action governance.AttemptedAction, refusal *governance.Refusal) {
	outcome := OutcomeSuccess
	metadata := map[string]any{"action": action.Action, "actor": action.Actor}
	if refusal != nil {
		outcome = OutcomeDenied
		metadata["category"] = refusal.Category
		metadata["reason"] = refusal.Reason
	}

	w.Log(Entry{
		Action:       "governance.guardrail_check",
		ResourceType: "attempted_action",
		ResourceID:   action.RequestID,
		Source:       SourceAPI,
		Outcome:      outcome,
		Metadata:     metadata,
	})
}

// LogFreshnessTransition implements pkg/freshness.AuditSink.
func (w *Writer) LogFreshnessTransition(ctx context.Context, tenantID uuid.UUID, sourceType string, event string, from, to freshness.State) {
	w.Log(Entry{
		TenantID:     tenantID,
		Action:       event,
		ResourceType: "data_availability",
		Source:       SourceWorker,
		Outcome:      OutcomeSuccess,
		Metadata: map[string]any{
			"source_type": sourceType,
			"from_state":  from,
			"to_state":    to,
		},
	})
}

func outcomeForDecision(d governance.Decision) Outcome {
	if d == governance.DecisionPass {
		return OutcomeSuccess
	}
	return OutcomeDenied
}
