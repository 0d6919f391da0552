package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckCompatibility_CompatibleWhenExposedColumnsUnchanged(t *testing.T) {
	active := []Column{
		{Name: "order_id", Type: "uuid", Exposed: true},
		{Name: "internal_debug", Type: "text", Exposed: false},
	}
	candidate := []Column{
		{Name: "order_id", Type: "uuid", Exposed: true},
	}
	ok, violations := CheckCompatibility(active, candidate)
	require.True(t, ok)
	require.Empty(t, violations)
}

func TestCheckCompatibility_RemovedExposedColumnIsIncompatible(t *testing.T) {
	active := []Column{{Name: "order_id", Type: "uuid", Exposed: true}}
	candidate := []Column{}
	ok, violations := CheckCompatibility(active, candidate)
	require.False(t, ok)
	require.Len(t, violations, 1)
}

func TestCheckCompatibility_RetypedExposedColumnIsIncompatible(t *testing.T) {
	active := []Column{{Name: "total_cents", Type: "bigint", Exposed: true}}
	candidate := []Column{{Name: "total_cents", Type: "numeric", Exposed: true}}
	ok, violations := CheckCompatibility(active, candidate)
	require.False(t, ok)
	require.Len(t, violations, 1)
}

func TestCheckCompatibility_UnexposedColumnFreelyRemovedOrRetyped(t *testing.T) {
	active := []Column{
		{Name: "order_id", Type: "uuid", Exposed: true},
		{Name: "scratch", Type: "text", Exposed: false},
	}
	candidate := []Column{
		{Name: "order_id", Type: "uuid", Exposed: true},
		{Name: "scratch", Type: "jsonb", Exposed: false},
	}
	ok, violations := CheckCompatibility(active, candidate)
	require.True(t, ok)
	require.Empty(t, violations)
}

func TestSchemaCompatibilityError_MessageListsViolations(t *testing.T) {
	err := &SchemaCompatibilityError{DatasetName: "orders", Violations: []string{"exposed column \"x\" removed"}}
	require.Contains(t, err.Error(), "orders")
	require.Contains(t, err.Error(), "removed")
}
