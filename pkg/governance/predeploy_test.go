package governance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidator_AllPassYieldsCanDeploy(t *testing.T) {
	categories := map[string]CheckCategoryConfig{"perf": {Category: "perf", FailureBehavior: "block"}}
	checks := []RegisteredCheck{
		{Name: "p99_latency", Category: "perf", Run: func(ctx context.Context) (any, any, bool, error) {
			return 120, 200, true, nil
		}},
	}
	v := NewValidator(categories, checks)
	report := v.Run(context.Background())
	require.True(t, report.CanDeploy)
	require.Equal(t, CheckPass, report.Overall)
}

func TestValidator_BlockingCategoryFailureBlocksDeploy(t *testing.T) {
	categories := map[string]CheckCategoryConfig{"perf": {Category: "perf", FailureBehavior: "block"}}
	checks := []RegisteredCheck{
		{Name: "p99_latency", Category: "perf", Run: func(ctx context.Context) (any, any, bool, error) {
			return 500, 200, false, nil
		}},
	}
	v := NewValidator(categories, checks)
	report := v.Run(context.Background())
	require.False(t, report.CanDeploy)
	require.Equal(t, CheckBlock, report.Overall)
	require.Equal(t, CheckBlock, report.Checks[0].Status)
}

func TestValidator_NonBlockingFailureRequiresApprovalButAllowsDeploy(t *testing.T) {
	categories := map[string]CheckCategoryConfig{"docs": {Category: "docs", FailureBehavior: "warn"}}
	checks := []RegisteredCheck{
		{Name: "changelog_present", Category: "docs", Run: func(ctx context.Context) (any, any, bool, error) {
			return false, true, false, nil
		}},
	}
	v := NewValidator(categories, checks)
	report := v.Run(context.Background())
	require.True(t, report.CanDeploy)
	require.True(t, report.RequiresApproval)
	require.Equal(t, CheckWarn, report.Overall)
}

func TestValidator_ErrorInBlockingCategoryBlocksDeploy(t *testing.T) {
	categories := map[string]CheckCategoryConfig{"perf": {Category: "perf", FailureBehavior: "block"}}
	checks := []RegisteredCheck{
		{Name: "p99_latency", Category: "perf", Run: func(ctx context.Context) (any, any, bool, error) {
			return nil, nil, false, errors.New("metrics backend unreachable")
		}},
	}
	v := NewValidator(categories, checks)
	report := v.Run(context.Background())
	require.False(t, report.CanDeploy)
	require.Equal(t, CheckError, report.Checks[0].Status)
}

func TestValidator_UnconfiguredCategorySkips(t *testing.T) {
	v := NewValidator(nil, []RegisteredCheck{
		{Name: "unknown_check", Category: "missing", Run: func(ctx context.Context) (any, any, bool, error) {
			t.Fatal("should never run a check for an unconfigured category")
			return nil, nil, true, nil
		}},
	})
	report := v.Run(context.Background())
	require.True(t, report.CanDeploy)
	require.Equal(t, CheckSkip, report.Checks[0].Status)
}
