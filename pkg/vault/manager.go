package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/telemetry"
)

// Manager is the token manager's three-flow state machine (spec.md 4.3).
type Manager struct {
	Pool      *pgxpool.Pool
	Store     Store
	Cipher    *Cipher
	Exchanger Exchanger
	Logger    *slog.Logger

	breakers map[SourceType]*gobreaker.CircuitBreaker
	now      func() time.Time
}

// NewManager constructs a Manager with one circuit breaker per platform,
// shielding the refresh sweep from a platform-wide outage.
func NewManager(pool *pgxpool.Pool, store Store, cipher *Cipher, exchanger Exchanger, logger *slog.Logger) *Manager {
	breakers := make(map[SourceType]*gobreaker.CircuitBreaker, 3)
	for _, st := range []SourceType{SourceShopify, SourceGoogle, SourceMeta} {
		breakers[st] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "token-refresh:" + string(st),
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}
	return &Manager{Pool: pool, Store: store, Cipher: cipher, Exchanger: exchanger, Logger: logger, breakers: breakers, now: time.Now}
}

// ProactiveRefresh sweeps credentials expiring within 24h and refreshes
// each (spec.md 4.3 flow 1). Intended to run as a periodic worker.
func (m *Manager) ProactiveRefresh(ctx context.Context) (refreshed, skipped, failed int) {
	creds, err := m.Store.DueForProactiveRefresh(ctx, m.Pool, 24*time.Hour)
	if err != nil {
		m.Logger.Error("proactive refresh sweep failed to list credentials", "error", err)
		return 0, 0, 0
	}

	for _, c := range creds {
		outcome, err := m.RefreshOne(ctx, c.ID)
		switch {
		case err != nil:
			failed++
		case outcome == OutcomeSkippedNoToken || outcome == OutcomeBackoffActive:
			skipped++
		case outcome == OutcomeSuccess:
			refreshed++
		default:
			failed++
		}
	}
	return refreshed, skipped, failed
}

// ReactiveRefresh is triggered by a sync failing with an auth error
// (spec.md 4.3 flow 2). It runs the same attempt/backoff algorithm as the
// proactive sweep.
func (m *Manager) ReactiveRefresh(ctx context.Context, credentialID uuid.UUID) (RefreshOutcome, error) {
	return m.RefreshOne(ctx, credentialID)
}

// Revoke immediately marks a credential revoked (spec.md 4.3 flow 3). All
// downstream consumers must check status before use.
func (m *Manager) Revoke(ctx context.Context, credentialID uuid.UUID, reason RevocationReason) error {
	return dbx.WithTx(ctx, m.Pool, func(tx pgx.Tx) error {
		c, err := m.Store.LockForUpdate(ctx, tx, credentialID)
		if err != nil {
			return fmt.Errorf("locking credential: %w", err)
		}
		now := m.now().UTC()
		c.Status = CredentialRevoked
		c.Metadata.RevokedAt = &now
		c.Metadata.RevocationReason = reason
		return m.Store.Update(ctx, tx, c)
	})
}

// RefreshOne runs the attempt algorithm from spec.md section 4.3 for a
// single credential, under its row-level lock.
func (m *Manager) RefreshOne(ctx context.Context, credentialID uuid.UUID) (RefreshOutcome, error) {
	var outcome RefreshOutcome
	err := dbx.WithTx(ctx, m.Pool, func(tx pgx.Tx) error {
		c, err := m.Store.LockForUpdate(ctx, tx, credentialID)
		if err != nil {
			return fmt.Errorf("locking credential: %w", err)
		}

		if c.Status != CredentialActive {
			outcome = OutcomePermanent
			return nil
		}

		if c.Metadata.RefreshErrorCount >= maxRefreshAttempts {
			outcome = OutcomePermanent
			return m.markExpired(ctx, tx, c)
		}

		if c.Metadata.LastRefreshAt != nil && backoffActive(c.Metadata.RefreshErrorCount, *c.Metadata.LastRefreshAt, m.now().UTC()) {
			outcome = OutcomeBackoffActive
			return nil
		}

		current, decErr := m.Cipher.Decrypt(c.EncryptedPayload)
		if decErr != nil {
			return fmt.Errorf("decrypting credential payload: %w", decErr)
		}
		if current.RefreshToken == "" && c.SourceType != SourceShopify {
			outcome = OutcomeSkippedNoToken
			return nil
		}

		result, exErr := m.exchangeWithBreaker(ctx, c.SourceType, current)
		now := m.now().UTC()
		if exErr != nil {
			c.Metadata.RefreshErrorCount++
			c.Metadata.LastError = exErr.Error()
			c.Metadata.LastRefreshAt = &now
			telemetry.TokenRefreshAttempts.WithLabelValues(string(c.SourceType), "failure").Inc()

			if c.Metadata.RefreshErrorCount >= maxRefreshAttempts {
				outcome = OutcomePermanent
				if err := m.Store.Update(ctx, tx, c); err != nil {
					return err
				}
				return m.markExpired(ctx, tx, c)
			}
			outcome = OutcomeRetryable
			return m.Store.Update(ctx, tx, c)
		}

		sealed, sealErr := m.Cipher.Encrypt(result.Payload)
		if sealErr != nil {
			return fmt.Errorf("encrypting refreshed payload: %w", sealErr)
		}

		c.EncryptedPayload = sealed
		c.Metadata.TokenExpiresAt = result.TokenExpiresAt
		c.Metadata.LastRefreshAt = &now
		c.Metadata.RefreshErrorCount = 0
		c.Metadata.LastError = ""
		telemetry.TokenRefreshAttempts.WithLabelValues(string(c.SourceType), "success").Inc()

		outcome = OutcomeSuccess
		return m.Store.Update(ctx, tx, c)
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (m *Manager) markExpired(ctx context.Context, tx pgx.Tx, c Credential) error {
	c.Status = CredentialExpired
	c.Metadata.RevocationReason = ReasonAuthFailureExhaust
	return m.Store.Update(ctx, tx, c)
}

func (m *Manager) exchangeWithBreaker(ctx context.Context, sourceType SourceType, current TokenPayload) (ExchangeResult, error) {
	breaker := m.breakers[sourceType]
	if breaker == nil {
		return m.Exchanger.Exchange(ctx, sourceType, current)
	}

	v, err := breaker.Execute(func() (any, error) {
		return m.Exchanger.Exchange(ctx, sourceType, current)
	})
	if err != nil {
		return ExchangeResult{}, err
	}
	return v.(ExchangeResult), nil
}

func backoffFor(attemptsSoFar int) time.Duration {
	if attemptsSoFar < 0 {
		attemptsSoFar = 0
	}
	if attemptsSoFar >= len(backoffLadder) {
		return backoffLadder[len(backoffLadder)-1]
	}
	return backoffLadder[attemptsSoFar]
}

// backoffActive reports whether a credential that failed refreshErrorCount
// times, last attempted at lastRefreshAt, is still inside its backoff
// window at now. refreshErrorCount is the number of failures already
// recorded, so the wait it's serving is the ladder entry for the attempt
// just finished (refreshErrorCount-1), not refreshErrorCount: after 1
// failure the wait is backoffLadder[0] = 5m, not backoffLadder[1] = 30m.
func backoffActive(refreshErrorCount int, lastRefreshAt, now time.Time) bool {
	wait := backoffFor(refreshErrorCount - 1)
	return now.Before(lastRefreshAt.Add(wait))
}

// EnsureActive returns cperr.CodeCredentialRevoked if c isn't usable,
// enforcing spec.md's invariant that "any sync attempt using a revoked
// credential fails before an external call."
func EnsureActive(c Credential) error {
	if c.Status != CredentialActive {
		return cperr.New(cperr.CodeCredentialRevoked, "connection credentials are no longer valid").
			WithContext(map[string]any{"credential_id": c.ID, "status": c.Status})
	}
	return nil
}

