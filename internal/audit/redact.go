package audit

import "strings"

// redactedFields is the static set of field names PII redaction targets
// (spec.md section 9 design note: "reflection-based PII redaction is
// replaced by a static set of redacted field names applied during a
// recursive walk; no runtime type introspection").
var redactedFields = map[string]bool{
	"email":          true,
	"phone":          true,
	"token":          true,
	"access_token":   true,
	"refresh_token":  true,
	"credential":     true,
	"password":       true,
	"ssn":            true,
	"tax_id":         true,
	"bank_account":   true,
	"credit_card":    true,
	"card_number":    true,
	"street_address": true,
	"address":        true,
}

// Redact recursively walks metadata and redacts any value whose key
// matches the fixed field-name set. Email and phone receive partial
// redaction so support can triage without seeing the full value; every
// other matched field is fully redacted.
func Redact(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	return redactMap(metadata)
}

func redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		lower := strings.ToLower(k)
		if redactedFields[lower] {
			out[k] = redactValue(lower, v)
			continue
		}
		out[k] = redactNested(v)
	}
	return out
}

func redactNested(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = redactNested(item)
		}
		return out
	default:
		return t
	}
}

func redactValue(fieldName string, v any) any {
	s, ok := v.(string)
	if !ok {
		return "***"
	}

	switch fieldName {
	case "email":
		return partialRedactEmail(s)
	case "phone":
		return partialRedactPhone(s)
	default:
		return "***"
	}
}

// partialRedactEmail produces "***@domain" so support can triage by
// domain without seeing the local part.
func partialRedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***"
	}
	return "***" + email[at:]
}

// partialRedactPhone produces "***1234" — the last four digits only.
func partialRedactPhone(phone string) string {
	digits := make([]byte, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, byte(r))
		}
	}
	if len(digits) <= 4 {
		return "***" + string(digits)
	}
	return "***" + string(digits[len(digits)-4:])
}
