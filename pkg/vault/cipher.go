package vault

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher performs envelope encryption of token payloads before persistence.
// Vault writes receive plaintext and metadata; encryption happens here,
// before the ciphertext is ever handed to a Store (spec.md 4.3).
type Cipher struct {
	aead   chacha20poly1305.AEAD
}

// NewCipher builds a Cipher from a 32-byte key (as produced by an external
// key-management service — key rotation/custody is out of scope here).
func NewCipher(key []byte) (*Cipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("constructing cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt serializes payload to JSON and seals it. The nonce is prepended
// to the ciphertext so Decrypt is self-contained.
func (c *Cipher) Encrypt(payload TokenPayload) ([]byte, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling token payload: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return sealed, nil
}

// Decrypt recovers the plaintext TokenPayload from sealed ciphertext.
func (c *Cipher) Decrypt(sealed []byte) (TokenPayload, error) {
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return TokenPayload{}, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return TokenPayload{}, fmt.Errorf("decrypting payload: %w", err)
	}

	var payload TokenPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return TokenPayload{}, fmt.Errorf("unmarshaling token payload: %w", err)
	}
	return payload, nil
}
