package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifySignature checks a platform HMAC-SHA256 signature (base64 of the
// raw body) against secret. Missing or mismatched signatures must reject
// at the transport layer with no side effects (spec.md section 6) — this
// is a pure function so the caller can enforce that before any parsing or
// state mutation happens.
//
// HMAC verification is the one place this package reaches for the
// standard library instead of a pack dependency: crypto/hmac + sha256 is
// the idiomatic Go primitive for this, and nothing in the example corpus
// wraps it with a higher-level webhook-signature library.
func VerifySignature(rawBody []byte, secret, providedSignatureB64 string) bool {
	if providedSignatureB64 == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	provided, err := base64.StdEncoding.DecodeString(providedSignatureB64)
	if err != nil {
		return false
	}

	return hmac.Equal(expected, provided)
}
