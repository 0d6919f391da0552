// Package notify is the control plane's merchant notification channel
// (SPEC_FULL.md's supplemented "merchant alerts"/"configured channels"
// feature). It reuses the teacher's messaging.Provider/Registry shape
// (pkg/messaging), narrowed to the one alert kind this control plane
// sends: a merchant-safe text alert from the freshness/DQ incident
// pipeline (4.4) or the governance guardrail path (4.8).
package notify

import "context"

// Severity mirrors the teacher's messaging package's severity labels, used
// for consistent emoji/label rendering across providers.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Alert is a merchant-facing notification. Message must never contain
// internal identifiers, stack traces, or support-only detail — callers
// build it from the same merchant-safe strings returned to API clients.
type Alert struct {
	TenantID string
	Severity Severity
	Title    string
	Message  string
}

// Provider is one outbound channel implementation.
type Provider interface {
	Name() string
	PostAlert(ctx context.Context, alert Alert) error
}

// Registry holds the configured providers for a tenant's notification
// channel. Most deployments register exactly one (Slack), but the
// interface allows more without touching callers.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Broadcast posts alert to every registered provider, collecting (not
// failing fast on) individual provider errors — a notification failure
// never blocks the operation that triggered it.
func (r *Registry) Broadcast(ctx context.Context, alert Alert) []error {
	var errs []error
	for _, p := range r.providers {
		if err := p.PostAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// SeverityEmoji mirrors the teacher's messaging.SeverityEmoji.
func SeverityEmoji(s Severity) string {
	switch s {
	case SeverityCritical:
		return "\U0001F534"
	case SeverityWarning:
		return "\U0001F7E1"
	case SeverityInfo:
		return "\U0001F535"
	default:
		return "⚪"
	}
}
