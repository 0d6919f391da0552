package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gowebpki/jcs"
)

// CanonicalHash produces a stable content hash of a webhook body using
// RFC 8785 JSON canonicalization before hashing, so two byte-for-byte
// different but semantically identical payloads (differing only in key
// order or whitespace) hash identically. Nothing in the billing pipeline
// calls it; webhook HMAC verification runs over the raw body.
func CanonicalHash(rawJSON []byte) (string, error) {
	canon, err := jcs.Transform(rawJSON)
	if err != nil {
		return "", fmt.Errorf("canonicalizing payload: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
