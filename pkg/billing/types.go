// Package billing implements the webhook ingestion pipeline and
// reconciliation backstop for subscription state (spec.md section 4.6).
package billing

import (
	"time"

	"github.com/google/uuid"
)

// Status mirrors entitlement.SubscriptionStatus but is kept local to avoid
// a billing -> entitlement import for what is really a shared vocabulary;
// the entitlement engine and billing pipeline independently own their
// state transitions, converging through Subscription rows and cache
// invalidation, not a shared type.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusFrozen   Status = "frozen"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// Subscription is the billing pipeline's view of spec.md section 3's
// Subscription entity.
type Subscription struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	PlanID               uuid.UUID
	Status               Status
	GracePeriodEndsOn    *time.Time
	CurrentPeriodEnd     *time.Time
	ExternalSubID        string
}

// EventType is the webhook's notice kind.
type EventType string

const (
	EventActivation     EventType = "activation"
	EventPaymentFailure EventType = "payment_failure"
	EventPaymentRecovery EventType = "payment_recovery"
	EventCancellation   EventType = "cancellation"
	EventProviderExpired EventType = "provider_expired"
)

// Event is one inbound or reconciliation-sourced billing event.
type Event struct {
	ExternalEventID     string
	ExternalSubID       string
	Type                EventType
	GracePeriodDuration time.Duration // used only for EventPaymentFailure
}

// DefaultGracePeriod is the grace window Apply uses on payment failure
// (grace_period_ends_on = now + window) when the event's
// GracePeriodDuration is zero.
const DefaultGracePeriod = 72 * time.Hour
