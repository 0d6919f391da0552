package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":"sub_1"}`)
	secret := "shh"
	sig := sign(body, secret)

	require.True(t, VerifySignature(body, secret, sig))
	require.False(t, VerifySignature(body, secret, ""))
	require.False(t, VerifySignature(body, "wrong-secret", sig))
	require.False(t, VerifySignature([]byte(`{"id":"sub_2"}`), secret, sig))
}

func TestApply_PendingToActive(t *testing.T) {
	sub := Subscription{Status: StatusPending}
	updated, changed, err := Apply(sub, Event{Type: EventActivation}, time.Now())
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, StatusActive, updated.Status)
}

func TestApply_ActivationReplayIsNoOp(t *testing.T) {
	sub := Subscription{Status: StatusActive}
	_, changed, err := Apply(sub, Event{Type: EventActivation}, time.Now())
	require.NoError(t, err)
	require.False(t, changed)
}

func TestApply_PaymentFailureSetsGracePeriod(t *testing.T) {
	sub := Subscription{Status: StatusActive}
	now := time.Now()
	updated, changed, err := Apply(sub, Event{Type: EventPaymentFailure, GracePeriodDuration: time.Hour}, now)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, StatusFrozen, updated.Status)
	require.WithinDuration(t, now.Add(time.Hour), *updated.GracePeriodEndsOn, time.Second)
}

func TestApply_RecoveryClearsGrace(t *testing.T) {
	grace := time.Now().Add(time.Hour)
	sub := Subscription{Status: StatusFrozen, GracePeriodEndsOn: &grace}
	updated, changed, err := Apply(sub, Event{Type: EventPaymentRecovery}, time.Now())
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, StatusActive, updated.Status)
	require.Nil(t, updated.GracePeriodEndsOn)
}

func TestApply_CancellationFromActiveOrFrozen(t *testing.T) {
	for _, start := range []Status{StatusActive, StatusFrozen} {
		sub := Subscription{Status: start}
		updated, changed, err := Apply(sub, Event{Type: EventCancellation}, time.Now())
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, StatusCanceled, updated.Status)
	}
}

func TestApply_ExpiredFromAnyNonExpiredStatus(t *testing.T) {
	for _, start := range []Status{StatusPending, StatusActive, StatusFrozen, StatusCanceled} {
		sub := Subscription{Status: start}
		updated, changed, err := Apply(sub, Event{Type: EventProviderExpired}, time.Now())
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, StatusExpired, updated.Status)
	}
}

func TestCanonicalHash_StableAcrossKeyOrder(t *testing.T) {
	a, err := CanonicalHash([]byte(`{"b":1,"a":2}`))
	require.NoError(t, err)
	b, err := CanonicalHash([]byte(`{"a":2,"b":1}`))
	require.NoError(t, err)
	require.Equal(t, a, b)
}
