package freshness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadThresholds_ParsesDurationsPerSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sla.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - source_type: shopify_orders
    warn_after: 2h
    error_after: 8h
`), 0o644))

	thresholds, err := LoadThresholds(path)
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, thresholds["shopify_orders"].WarnAfter)
	require.Equal(t, 8*time.Hour, thresholds["shopify_orders"].ErrorAfter)
}

func TestForSource_FallsBackToDefaultWhenUnconfigured(t *testing.T) {
	got := ForSource(map[string]Thresholds{}, "unknown_source")
	require.Equal(t, DefaultThresholds, got)
}
