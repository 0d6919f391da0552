package governance

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// The yaml-facing file shapes below mirror the public Config types with
// durations and dates expressed as plain strings — yaml.v3 has no built-in
// support for time.Duration, so each Load function parses them explicitly,
// the same two-step shape pkg/entitlement's planconfig.go uses for its own
// YAML.

type changeApprovalsFile struct {
	ChangeTypes []changeTypeFile `yaml:"change_types"`
}

type changeTypeFile struct {
	ChangeType           string        `yaml:"change_type"`
	RequiredApprovers    int           `yaml:"required_approvers"`
	AllowedApproverRoles []string      `yaml:"allowed_approver_roles"`
	ChecklistItems       []string      `yaml:"checklist_items"`
	SLA                  string        `yaml:"sla"`
	Emergency            emergencyFile `yaml:"emergency"`
}

type emergencyFile struct {
	MinApprovers          int      `yaml:"min_approvers"`
	AllowedApproverRoles  []string `yaml:"allowed_approver_roles"`
	RequireIncidentTicket bool     `yaml:"require_incident_ticket"`
	RequirePostMortem     bool     `yaml:"require_post_mortem_commitment"`
}

// LoadChangeApprovals reads change_approvals.yaml into a map keyed by
// change_type, ready for NewApprovalGate.
func LoadChangeApprovals(path string) (map[string]ChangeTypeConfig, error) {
	var file changeApprovalsFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}

	out := make(map[string]ChangeTypeConfig, len(file.ChangeTypes))
	for _, ct := range file.ChangeTypes {
		sla, err := parseDuration(ct.SLA)
		if err != nil {
			return nil, fmt.Errorf("governance: change type %q: %w", ct.ChangeType, err)
		}
		out[ct.ChangeType] = ChangeTypeConfig{
			ChangeType:           ct.ChangeType,
			RequiredApprovers:    ct.RequiredApprovers,
			AllowedApproverRoles: ct.AllowedApproverRoles,
			ChecklistItems:       ct.ChecklistItems,
			SLA:                  sla,
			Emergency: EmergencyRule{
				MinApprovers:          ct.Emergency.MinApprovers,
				AllowedApproverRoles:  ct.Emergency.AllowedApproverRoles,
				RequireIncidentTicket: ct.Emergency.RequireIncidentTicket,
				RequirePostMortem:     ct.Emergency.RequirePostMortem,
			},
		}
	}
	return out, nil
}

type metricVersionsFile struct {
	Metrics []metricVersionFile `yaml:"metrics"`
}

type metricVersionFile struct {
	MetricKey          string   `yaml:"metric_key"`
	CurrentVersion     string   `yaml:"current_version"`
	DeprecatedVersions []string `yaml:"deprecated_versions"`
	SunsetVersions     []string `yaml:"sunset_versions"`
	SunsetDate         string   `yaml:"sunset_date"` // RFC3339, optional
	WarnBeforeSunset   string   `yaml:"warn_before_sunset"`
}

// LoadMetricVersions reads metrics_versions.yaml into a map keyed by
// metric_key, ready for NewMetricVersionResolver.
func LoadMetricVersions(path string) (map[string]MetricVersionConfig, error) {
	var file metricVersionsFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}

	out := make(map[string]MetricVersionConfig, len(file.Metrics))
	for _, m := range file.Metrics {
		warn, err := parseDuration(m.WarnBeforeSunset)
		if err != nil {
			return nil, fmt.Errorf("governance: metric %q: %w", m.MetricKey, err)
		}

		var sunsetDate *time.Time
		if m.SunsetDate != "" {
			t, err := time.Parse(time.RFC3339, m.SunsetDate)
			if err != nil {
				return nil, fmt.Errorf("governance: metric %q: parsing sunset_date: %w", m.MetricKey, err)
			}
			sunsetDate = &t
		}

		out[m.MetricKey] = MetricVersionConfig{
			MetricKey:          m.MetricKey,
			CurrentVersion:     m.CurrentVersion,
			DeprecatedVersions: m.DeprecatedVersions,
			SunsetVersions:     m.SunsetVersions,
			SunsetDate:         sunsetDate,
			WarnBeforeSunset:   warn,
		}
	}
	return out, nil
}

type preDeployValidationFile struct {
	Categories []categoryFile `yaml:"categories"`
}

type categoryFile struct {
	Category        string `yaml:"category"`
	FailureBehavior string `yaml:"failure_behavior"`
}

// LoadPreDeployValidation reads pre_deploy_validation.yaml into a map keyed
// by category, ready for NewValidator.
func LoadPreDeployValidation(path string) (map[string]CheckCategoryConfig, error) {
	var file preDeployValidationFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}

	out := make(map[string]CheckCategoryConfig, len(file.Categories))
	for _, c := range file.Categories {
		out[c.Category] = CheckCategoryConfig{Category: c.Category, FailureBehavior: c.FailureBehavior}
	}
	return out, nil
}

type rollbackConfigFile struct {
	AuthorizedRoles []string `yaml:"authorized_roles"`
}

// LoadRollbackConfig reads rollback_config.yaml's authorized-role list,
// ready for NewOrchestrator.
func LoadRollbackConfig(path string) ([]string, error) {
	var file rollbackConfigFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}
	return file.AuthorizedRoles, nil
}

type aiRestrictionsFile struct {
	ProhibitedActions []ProhibitedActionRule `yaml:"prohibited_actions"`
}

// LoadAIRestrictions reads ai_restrictions.yaml's closed registry of
// prohibited-action rules, ready for NewGuardrails.
func LoadAIRestrictions(path string) ([]ProhibitedActionRule, error) {
	var file aiRestrictionsFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}
	return file.ProhibitedActions, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("governance: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("governance: parsing %s: %w", path, err)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
