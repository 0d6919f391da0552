package billing

import (
	"fmt"
	"time"
)

// Apply runs the state transition table from spec.md section 4.6 for a
// single event against the subscription's current status. It returns the
// updated subscription and whether any mutation occurred — a replay that
// maps to a no-op transition (e.g. activation on an already-active sub)
// reports changed=false, so the caller skips the subscription update. The
// billing_event row is recorded either way.
func Apply(sub Subscription, ev Event, now time.Time) (updated Subscription, changed bool, err error) {
	updated = sub

	switch ev.Type {
	case EventActivation:
		if sub.Status != StatusPending {
			return sub, false, nil
		}
		updated.Status = StatusActive

	case EventPaymentFailure:
		if sub.Status != StatusActive {
			return sub, false, nil
		}
		updated.Status = StatusFrozen
		grace := now.Add(ev.GracePeriodDuration)
		if ev.GracePeriodDuration == 0 {
			grace = now.Add(DefaultGracePeriod)
		}
		updated.GracePeriodEndsOn = &grace

	case EventPaymentRecovery:
		if sub.Status != StatusFrozen {
			return sub, false, nil
		}
		updated.Status = StatusActive
		updated.GracePeriodEndsOn = nil

	case EventCancellation:
		if sub.Status != StatusActive && sub.Status != StatusFrozen {
			return sub, false, nil
		}
		updated.Status = StatusCanceled
		// Access is retained until current_period_end — no further field
		// mutation needed here; the entitlement engine reads
		// CurrentPeriodEnd against "now" at resolution time.

	case EventProviderExpired:
		if sub.Status == StatusExpired {
			return sub, false, nil
		}
		updated.Status = StatusExpired

	default:
		return sub, false, fmt.Errorf("billing: unknown event type %q", ev.Type)
	}

	return updated, true, nil
}
