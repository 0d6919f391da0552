package governance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testConfig() map[string]ChangeTypeConfig {
	return map[string]ChangeTypeConfig{
		"metric_change": {
			ChangeType:           "metric_change",
			RequiredApprovers:    2,
			AllowedApproverRoles: []string{"data_lead", "eng_lead"},
			ChecklistItems:       []string{"tests_pass", "rollback_plan"},
			SLA:                  24 * time.Hour,
			Emergency: EmergencyRule{
				MinApprovers:          1,
				AllowedApproverRoles:  []string{"eng_lead"},
				RequireIncidentTicket: true,
				RequirePostMortem:     true,
			},
		},
	}
}

func TestApprovalGate_BlocksMissingConfig(t *testing.T) {
	gate := NewApprovalGate(testConfig(), nil)
	result := gate.Evaluate(context.Background(), ChangeRequest{ChangeType: "unknown"}, time.Now())
	require.Equal(t, DecisionBlock, result.Decision)
}

func TestApprovalGate_BlocksIncompleteChecklist(t *testing.T) {
	gate := NewApprovalGate(testConfig(), nil)
	cr := ChangeRequest{ChangeType: "metric_change", ChecklistCompleted: map[string]bool{"tests_pass": true}}
	result := gate.Evaluate(context.Background(), cr, time.Now())
	require.Equal(t, DecisionBlock, result.Decision)
}

func TestApprovalGate_BlocksExpiredSLA(t *testing.T) {
	gate := NewApprovalGate(testConfig(), nil)
	cr := ChangeRequest{
		ChangeType:         "metric_change",
		SubmittedAt:        time.Now().Add(-48 * time.Hour),
		ChecklistCompleted: map[string]bool{"tests_pass": true, "rollback_plan": true},
	}
	result := gate.Evaluate(context.Background(), cr, time.Now())
	require.Equal(t, DecisionBlock, result.Decision)
}

func TestApprovalGate_PassesWithRequiredApprovals(t *testing.T) {
	gate := NewApprovalGate(testConfig(), nil)
	cr := ChangeRequest{
		ChangeType:         "metric_change",
		SubmittedAt:        time.Now(),
		ChecklistCompleted: map[string]bool{"tests_pass": true, "rollback_plan": true},
		Approvals: []ApprovalRecord{
			{ApproverID: uuid.New(), ApproverRole: "data_lead"},
			{ApproverID: uuid.New(), ApproverRole: "eng_lead"},
		},
	}
	result := gate.Evaluate(context.Background(), cr, time.Now())
	require.Equal(t, DecisionPass, result.Decision)
}

func TestApprovalGate_DuplicateApproverDoesNotCountTwice(t *testing.T) {
	gate := NewApprovalGate(testConfig(), nil)
	approver := uuid.New()
	cr := ChangeRequest{
		ChangeType:         "metric_change",
		SubmittedAt:        time.Now(),
		ChecklistCompleted: map[string]bool{"tests_pass": true, "rollback_plan": true},
		Approvals: []ApprovalRecord{
			{ApproverID: approver, ApproverRole: "data_lead"},
			{ApproverID: approver, ApproverRole: "data_lead"},
		},
	}
	result := gate.Evaluate(context.Background(), cr, time.Now())
	require.Equal(t, DecisionBlock, result.Decision)
}

func TestApprovalGate_EmergencyRequiresIncidentAndPostMortem(t *testing.T) {
	gate := NewApprovalGate(testConfig(), nil)
	cr := ChangeRequest{
		ChangeType:           "metric_change",
		Emergency:            true,
		ChecklistCompleted:   map[string]bool{"tests_pass": true, "rollback_plan": true},
		Approvals:            []ApprovalRecord{{ApproverID: uuid.New(), ApproverRole: "eng_lead"}},
		IncidentTicket:       "",
		PostMortemCommitment: true,
	}
	result := gate.Evaluate(context.Background(), cr, time.Now())
	require.Equal(t, DecisionBlock, result.Decision)
}

func TestApprovalGate_EmergencyPassesWithAllConditionsMet(t *testing.T) {
	gate := NewApprovalGate(testConfig(), nil)
	cr := ChangeRequest{
		ChangeType:           "metric_change",
		Emergency:            true,
		ChecklistCompleted:   map[string]bool{"tests_pass": true, "rollback_plan": true},
		Approvals:            []ApprovalRecord{{ApproverID: uuid.New(), ApproverRole: "eng_lead"}},
		IncidentTicket:       "INC-123",
		PostMortemCommitment: true,
	}
	result := gate.Evaluate(context.Background(), cr, time.Now())
	require.Equal(t, DecisionPass, result.Decision)
}
