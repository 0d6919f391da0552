// Package governance implements the control plane's deployment-safety
// components (spec.md 4.8): an approval gate, a metric version resolver, a
// rollback orchestrator, a pre-deploy validator, and AI guardrails. All
// five share one contract: decisions are deterministic, and config supplies
// the data the code evaluates against rather than being hardcoded. Approval,
// guardrail and rollback decisions are audited; the metric resolver and the
// pre-deploy validator write no audit record.
package governance

import (
	"time"

	"github.com/google/uuid"
)

// Decision is the outcome of the approval gate.
type Decision string

const (
	DecisionPass  Decision = "pass"
	DecisionBlock Decision = "block"
)

// ApprovalRecord is a single recorded approval against a change request.
type ApprovalRecord struct {
	ApproverID   uuid.UUID
	ApproverRole string
	ApprovedAt   time.Time
}

// ChangeRequest is the input the approval gate evaluates.
type ChangeRequest struct {
	ID                    uuid.UUID
	TenantID              uuid.UUID
	ChangeType            string
	SubmittedAt           time.Time
	ChecklistCompleted    map[string]bool
	Approvals             []ApprovalRecord
	Emergency             bool
	IncidentTicket        string
	PostMortemCommitment  bool
}

// ChangeTypeConfig is one entry of change_approvals.yaml.
type ChangeTypeConfig struct {
	ChangeType            string        `yaml:"change_type"`
	RequiredApprovers     int           `yaml:"required_approvers"`
	AllowedApproverRoles  []string      `yaml:"allowed_approver_roles"`
	ChecklistItems        []string      `yaml:"checklist_items"`
	SLA                   time.Duration `yaml:"sla"`
	Emergency             EmergencyRule `yaml:"emergency"`
}

// EmergencyRule is the relaxed approval path a change request may use
// instead of the normal required-approvers set.
type EmergencyRule struct {
	MinApprovers         int      `yaml:"min_approvers"`
	AllowedApproverRoles []string `yaml:"allowed_approver_roles"`
	RequireIncidentTicket bool    `yaml:"require_incident_ticket"`
	RequirePostMortem     bool    `yaml:"require_post_mortem_commitment"`
}

// GateResult is the approval gate's output for a single change request.
type GateResult struct {
	Decision Decision
	Reason   string
}

// MetricVersionConfig is one entry of metrics_versions.yaml.
type MetricVersionConfig struct {
	MetricKey         string     `yaml:"metric_key"`
	CurrentVersion    string     `yaml:"current_version"`
	DeprecatedVersions []string  `yaml:"deprecated_versions"`
	SunsetVersions     []string  `yaml:"sunset_versions"`
	SunsetDate         *time.Time `yaml:"sunset_date"`
	WarnBeforeSunset   time.Duration `yaml:"warn_before_sunset"`
}

// WarningLevel is the severity a metric version resolution carries.
type WarningLevel string

const (
	WarningNone  WarningLevel = "none"
	WarningWarn  WarningLevel = "warn"
	WarningBlock WarningLevel = "block"
)

// MetricResolution is the outcome of resolving a requested metric version.
type MetricResolution struct {
	Resolved        bool
	Level           WarningLevel
	DaysUntilSunset int
	Message         string
}

// RollbackState is a node in the rollback orchestrator's state machine.
type RollbackState string

const (
	RollbackPending             RollbackState = "pending"
	RollbackValidatingAuthority RollbackState = "validating_authority"
	RollbackExecuting           RollbackState = "executing"
	RollbackVerifying           RollbackState = "verifying"
	RollbackCompleted           RollbackState = "completed"
	RollbackFailed              RollbackState = "failed"
	RollbackPaused              RollbackState = "paused"
	RollbackRolledForward       RollbackState = "rolled_forward"
)

// RollbackScope selects which tenants a rollback action applies to.
type RollbackScope struct {
	Kind            string   // "global", "tenant_subset", "gradual"
	TenantIDs       []uuid.UUID
	CanaryPercents  []int
}

// RollbackAction is one step of a rollback plan, delegated to a registered
// Handler by name.
type RollbackAction struct {
	HandlerName string
	Params      map[string]any
}

// RollbackRequest is the input that starts a rollback run.
type RollbackRequest struct {
	ID            uuid.UUID
	RequestedBy   uuid.UUID
	RequesterRole string
	Scope         RollbackScope
	Actions       []RollbackAction
	Reversible    bool
	VerifyChecks  []string
}

// RollbackActionOutcome records whether a single action succeeded.
type RollbackActionOutcome struct {
	HandlerName string
	Err         error
}

// RollbackRun is the orchestrator's mutable record of one rollback
// request's progress.
type RollbackRun struct {
	ID             uuid.UUID
	Request        RollbackRequest
	State          RollbackState
	ActionOutcomes []RollbackActionOutcome
	Reversed       bool
}

// CheckStatus is a pre-deploy validator check's result status.
type CheckStatus string

const (
	CheckPass  CheckStatus = "pass"
	CheckWarn  CheckStatus = "warn"
	CheckBlock CheckStatus = "block"
	CheckSkip  CheckStatus = "skip"
	CheckError CheckStatus = "error"
)

// CheckResult is the output of one pre-deploy check.
type CheckResult struct {
	CheckName     string      `json:"check_name"`
	Category      string      `json:"category"`
	Status        CheckStatus `json:"status"`
	MeasuredValue any         `json:"measured_value,omitempty"`
	Threshold     any         `json:"threshold,omitempty"`
	Blocking      bool        `json:"blocking"`
	Detail        string      `json:"detail,omitempty"`
}

// ValidationReport is the machine-readable pre-deploy report CI consumes.
type ValidationReport struct {
	CanDeploy        bool          `json:"can_deploy"`
	RequiresApproval bool          `json:"requires_approval"`
	Overall          CheckStatus   `json:"overall"`
	Checks           []CheckResult `json:"checks"`
}

// CheckCategoryConfig is one entry of pre_deploy_validation.yaml, naming
// the failure_behavior applied to every check in that category.
type CheckCategoryConfig struct {
	Category         string `yaml:"category"`
	FailureBehavior  string `yaml:"failure_behavior"` // "block" or "warn"
}

// Check names a single pre-deploy validation check and the category it
// belongs to.
type Check struct {
	Name     string
	Category string
}

// RefusalCategory classifies why an AI guardrail refused an action.
type RefusalCategory string

const (
	CategoryProhibited             RefusalCategory = "prohibited"
	CategoryRequiresHumanJudgment  RefusalCategory = "requires_human_judgment"
	CategoryBusinessDecision       RefusalCategory = "business_decision"
	CategorySecurityCritical       RefusalCategory = "security_critical"
	CategoryAccountabilityRequired RefusalCategory = "accountability_required"
)

// Refusal is the structured response returned when a guardrail blocks an
// attempted action.
type Refusal struct {
	RequestID  uuid.UUID       `json:"request_id"`
	Action     string          `json:"action"`
	Reason     string          `json:"reason"`
	Category   RefusalCategory `json:"category"`
	RedirectTo string          `json:"redirect_to,omitempty"`
}

// ProhibitedActionRule is one entry of ai_restrictions.yaml: a CEL
// expression matched against the attempted-action input, plus the refusal
// it produces when the expression evaluates true.
type ProhibitedActionRule struct {
	Name       string          `yaml:"name"`
	Expression string          `yaml:"expression"`
	Category   RefusalCategory `yaml:"category"`
	Reason     string          `yaml:"reason"`
	RedirectTo string          `yaml:"redirect_to"`
}

// AttemptedAction is the input an AI guardrail check evaluates.
type AttemptedAction struct {
	RequestID uuid.UUID
	Action    string
	Actor     string
	Params    map[string]any
}
