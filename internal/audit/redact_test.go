package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedact_PartialEmail(t *testing.T) {
	out := Redact(map[string]any{"email": "jane.doe@example.com"})
	require.Equal(t, "***@example.com", out["email"])
}

func TestRedact_PartialPhone(t *testing.T) {
	out := Redact(map[string]any{"phone": "+1 (555) 867-5309"})
	require.Equal(t, "***5309", out["phone"])
}

func TestRedact_ShortPhoneKeepsAllDigits(t *testing.T) {
	out := Redact(map[string]any{"phone": "42"})
	require.Equal(t, "***42", out["phone"])
}

func TestRedact_FullyRedactsOtherFields(t *testing.T) {
	out := Redact(map[string]any{
		"access_token": "tok_live_abc123",
		"ssn":          "123-45-6789",
	})
	require.Equal(t, "***", out["access_token"])
	require.Equal(t, "***", out["ssn"])
}

func TestRedact_NonStringValueRedactedAsStar(t *testing.T) {
	out := Redact(map[string]any{"token": 12345})
	require.Equal(t, "***", out["token"])
}

func TestRedact_LeavesUnmatchedFieldsAlone(t *testing.T) {
	out := Redact(map[string]any{"shop_domain": "acme.myshopify.com", "count": 42})
	require.Equal(t, "acme.myshopify.com", out["shop_domain"])
	require.Equal(t, 42, out["count"])
}

func TestRedact_RecursesIntoNestedMapsAndSlices(t *testing.T) {
	out := Redact(map[string]any{
		"customer": map[string]any{
			"email": "nested@example.com",
			"name":  "Jane",
		},
		"contacts": []any{
			map[string]any{"phone": "555-000-1234"},
			map[string]any{"phone": "555-000-5678"},
		},
	})

	customer := out["customer"].(map[string]any)
	require.Equal(t, "***@example.com", customer["email"])
	require.Equal(t, "Jane", customer["name"])

	contacts := out["contacts"].([]any)
	require.Equal(t, "***1234", contacts[0].(map[string]any)["phone"])
	require.Equal(t, "***5678", contacts[1].(map[string]any)["phone"])
}

func TestRedact_NilMetadataReturnsNil(t *testing.T) {
	require.Nil(t, Redact(nil))
}

func TestRedact_IsCaseInsensitiveOnFieldName(t *testing.T) {
	out := Redact(map[string]any{"Email": "Jane@Example.com"})
	require.Equal(t, "***@Example.com", out["Email"])
}
