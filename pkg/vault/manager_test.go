package vault

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// fakeStore is an in-memory Store. The tests below exercise the cipher and
// backoff helpers directly; RefreshOne has no test here, since dbx.WithTx
// requires a real pool to begin a transaction.
type fakeStore struct {
	creds map[uuid.UUID]Credential
}

func newFakeStore(creds ...Credential) *fakeStore {
	m := map[uuid.UUID]Credential{}
	for _, c := range creds {
		m[c.ID] = c
	}
	return &fakeStore{creds: m}
}

func (s *fakeStore) LockForUpdate(_ context.Context, _ dbx.DBTX, id uuid.UUID) (Credential, error) {
	c, ok := s.creds[id]
	if !ok {
		return Credential{}, fmt.Errorf("not found")
	}
	return c, nil
}

func (s *fakeStore) Update(_ context.Context, _ dbx.DBTX, c Credential) error {
	s.creds[c.ID] = c
	return nil
}

func (s *fakeStore) DueForProactiveRefresh(context.Context, dbx.DBTX, time.Duration) ([]Credential, error) {
	return nil, nil
}

func (s *fakeStore) ActiveCredentialsForTenant(context.Context, dbx.DBTX, uuid.UUID) ([]Credential, error) {
	return nil, nil
}

type fakeExchanger struct {
	err    error
	result ExchangeResult
}

func (f fakeExchanger) Exchange(context.Context, SourceType, TokenPayload) (ExchangeResult, error) {
	return f.result, f.err
}

func testManagerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackoffFor(t *testing.T) {
	require.Equal(t, 5*time.Minute, backoffFor(0))
	require.Equal(t, 30*time.Minute, backoffFor(1))
	require.Equal(t, 120*time.Minute, backoffFor(2))
	require.Equal(t, 120*time.Minute, backoffFor(5))
}

func TestBackoffActive_OneFailureWaitsFiveMinutes(t *testing.T) {
	last := time.Now()
	require.True(t, backoffActive(1, last, last.Add(4*time.Minute)))
	require.False(t, backoffActive(1, last, last.Add(6*time.Minute)))
}

func TestBackoffActive_TwoFailuresWaitThirtyMinutes(t *testing.T) {
	last := time.Now()
	require.True(t, backoffActive(2, last, last.Add(29*time.Minute)))
	require.False(t, backoffActive(2, last, last.Add(31*time.Minute)))
}

func TestBackoffActive_ThreeFailuresWaitOneHundredTwentyMinutes(t *testing.T) {
	last := time.Now()
	require.True(t, backoffActive(3, last, last.Add(119*time.Minute)))
	require.False(t, backoffActive(3, last, last.Add(121*time.Minute)))
}

func TestEnsureActive_RejectsNonActive(t *testing.T) {
	err := EnsureActive(Credential{Status: CredentialRevoked})
	require.Error(t, err)
}

func TestEnsureActive_AllowsActive(t *testing.T) {
	require.NoError(t, EnsureActive(Credential{Status: CredentialActive}))
}

func TestCipher_RoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := NewCipher(key)
	require.NoError(t, err)

	payload := TokenPayload{AccessToken: "at", RefreshToken: "rt"}
	sealed, err := c.Encrypt(payload)
	require.NoError(t, err)

	recovered, err := c.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, payload, recovered)
}

func TestCipher_TamperedCiphertextFailsToDecrypt(t *testing.T) {
	key := make([]byte, 32)
	c, err := NewCipher(key)
	require.NoError(t, err)

	sealed, err := c.Encrypt(TokenPayload{AccessToken: "at"})
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xFF

	_, err = c.Decrypt(sealed)
	require.Error(t, err)
}
