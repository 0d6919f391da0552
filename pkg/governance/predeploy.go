package governance

import (
	"context"
)

// CheckFunc runs one deterministic pre-deploy check and reports a raw
// result; the Validator applies the category's configured failure_behavior
// to decide status and blocking.
type CheckFunc func(ctx context.Context) (measured any, threshold any, ok bool, err error)

// RegisteredCheck pairs a check function with the category it belongs to.
type RegisteredCheck struct {
	Name     string
	Category string
	Run      CheckFunc
}

// Validator runs a configured list of checks and produces a
// machine-readable ValidationReport for CI (spec.md 4.8.4).
type Validator struct {
	Categories map[string]CheckCategoryConfig // keyed by category
	Checks     []RegisteredCheck
}

func NewValidator(categories map[string]CheckCategoryConfig, checks []RegisteredCheck) *Validator {
	return &Validator{Categories: categories, Checks: checks}
}

// Run executes every registered check in order and assembles the overall
// report. A check whose category has no config is skipped, never failed —
// config omission is an operator error to catch in review, not a deploy
// blocker of its own.
func (v *Validator) Run(ctx context.Context) ValidationReport {
	report := ValidationReport{CanDeploy: true, Overall: CheckPass}

	for _, c := range v.Checks {
		cat, hasCat := v.Categories[c.Category]
		if !hasCat {
			report.Checks = append(report.Checks, CheckResult{CheckName: c.Name, Category: c.Category, Status: CheckSkip})
			continue
		}

		measured, threshold, ok, err := c.Run(ctx)
		result := CheckResult{CheckName: c.Name, Category: c.Category, MeasuredValue: measured, Threshold: threshold}

		switch {
		case err != nil:
			result.Status = CheckError
			result.Detail = err.Error()
			result.Blocking = cat.FailureBehavior == "block"
		case ok:
			result.Status = CheckPass
		default:
			result.Blocking = cat.FailureBehavior == "block"
			if result.Blocking {
				result.Status = CheckBlock
			} else {
				result.Status = CheckWarn
			}
		}

		report.Checks = append(report.Checks, result)
	}

	report.finalize()
	return report
}

func (r *ValidationReport) finalize() {
	r.CanDeploy = true
	r.RequiresApproval = false
	r.Overall = CheckPass

	for _, c := range r.Checks {
		switch {
		case c.Status == CheckBlock || (c.Status == CheckError && c.Blocking):
			r.CanDeploy = false
			r.Overall = CheckBlock
		case c.Status == CheckWarn || c.Status == CheckError:
			if r.Overall != CheckBlock {
				r.Overall = CheckWarn
			}
			r.RequiresApproval = true
		}
	}
}
