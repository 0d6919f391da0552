package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricVersionResolver_SunsetIsHardBlock(t *testing.T) {
	resolver := NewMetricVersionResolver(map[string]MetricVersionConfig{
		"gmv": {MetricKey: "gmv", CurrentVersion: "v3", SunsetVersions: []string{"v1"}},
	})
	result := resolver.Resolve("gmv", "v1", time.Now())
	require.False(t, result.Resolved)
	require.Equal(t, WarningBlock, result.Level)
}

func TestMetricVersionResolver_PastSunsetDateBlocksEvenWithoutExplicitList(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	resolver := NewMetricVersionResolver(map[string]MetricVersionConfig{
		"gmv": {MetricKey: "gmv", CurrentVersion: "v2", DeprecatedVersions: []string{"v1"}, SunsetDate: &past},
	})
	result := resolver.Resolve("gmv", "v1", time.Now())
	require.False(t, result.Resolved)
	require.Equal(t, WarningBlock, result.Level)
}

func TestMetricVersionResolver_DeprecatedWarnsWithDaysUntilSunset(t *testing.T) {
	sunset := time.Now().Add(30 * 24 * time.Hour)
	resolver := NewMetricVersionResolver(map[string]MetricVersionConfig{
		"gmv": {
			MetricKey:          "gmv",
			CurrentVersion:     "v2",
			DeprecatedVersions: []string{"v1"},
			SunsetDate:         &sunset,
			WarnBeforeSunset:   7 * 24 * time.Hour,
		},
	})
	result := resolver.Resolve("gmv", "v1", time.Now())
	require.True(t, result.Resolved)
	require.Equal(t, WarningWarn, result.Level)
	require.InDelta(t, 30, result.DaysUntilSunset, 1)
}

func TestMetricVersionResolver_WithinWarnBeforeSunsetWindowEscalatesToBlock(t *testing.T) {
	sunset := time.Now().Add(3 * 24 * time.Hour)
	resolver := NewMetricVersionResolver(map[string]MetricVersionConfig{
		"gmv": {
			MetricKey:          "gmv",
			CurrentVersion:     "v2",
			DeprecatedVersions: []string{"v1"},
			SunsetDate:         &sunset,
			WarnBeforeSunset:   7 * 24 * time.Hour,
		},
	})
	result := resolver.Resolve("gmv", "v1", time.Now())
	require.True(t, result.Resolved)
	require.Equal(t, WarningBlock, result.Level)
}

func TestMetricVersionResolver_CurrentVersionHasNoWarning(t *testing.T) {
	resolver := NewMetricVersionResolver(map[string]MetricVersionConfig{
		"gmv": {MetricKey: "gmv", CurrentVersion: "v2"},
	})
	result := resolver.Resolve("gmv", "", time.Now())
	require.True(t, result.Resolved)
	require.Equal(t, WarningNone, result.Level)
}

func TestMetricVersionResolver_UnknownMetricBlocks(t *testing.T) {
	resolver := NewMetricVersionResolver(map[string]MetricVersionConfig{})
	result := resolver.Resolve("unknown", "v1", time.Now())
	require.False(t, result.Resolved)
	require.Equal(t, WarningBlock, result.Level)
}
