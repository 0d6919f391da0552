// Package entitlement resolves per-tenant feature grants from plan config,
// billing state, and overrides (spec.md section 4.1). Resolution is
// fail-closed: any internal error surfaces as EntitlementEvalFailed rather
// than an implicit allow.
package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// BillingState is the derived subscription state from spec.md section 4.1
// step 4 and the GLOSSARY.
type BillingState string

const (
	BillingActive      BillingState = "active"
	BillingTrialing    BillingState = "trialing"
	BillingGracePeriod BillingState = "grace_period"
	BillingPastDue     BillingState = "past_due"
	BillingCanceled    BillingState = "canceled"
	BillingFrozen      BillingState = "frozen"
	BillingExpired     BillingState = "expired"
	BillingPending     BillingState = "pending"
	BillingNone        BillingState = "none"
)

// AccessLevel is the access-level table from spec.md section 4.1 step 8.
type AccessLevel string

const (
	AccessFull               AccessLevel = "full"
	AccessFullUntilPeriodEnd AccessLevel = "full_until_period_end"
	AccessReadOnly           AccessLevel = "read_only"
	AccessLimited            AccessLevel = "limited"
	AccessReadOnlyAnalytics  AccessLevel = "read_only_analytics"
	AccessNone               AccessLevel = "none"
)

// GrantSource records why a feature grant resolved the way it did.
type GrantSource string

const (
	SourcePlan     GrantSource = "plan"
	SourceOverride GrantSource = "override"
	SourceDeny     GrantSource = "deny"
)

// Grant is a single feature's resolved access.
type Grant struct {
	Granted bool
	Source  GrantSource
}

// ResolvedEntitlement is the deterministic output of resolve() (spec.md
// section 4.1).
type ResolvedEntitlement struct {
	TenantID     uuid.UUID
	PlanID       uuid.UUID
	PlanName     string
	BillingState BillingState
	AccessLevel  AccessLevel
	Features     map[string]Grant
	Limits       map[string]int
	Warnings     []string
	ResolvedAt   time.Time
}

// CheckFeature returns the grant for key, defaulting to a deny grant for
// features the plan/override never mention (spec.md 4.1: "unknown features
// return a deny grant").
func (r ResolvedEntitlement) CheckFeature(key string) Grant {
	if g, ok := r.Features[key]; ok {
		return g
	}
	return Grant{Granted: false, Source: SourceDeny}
}

// SubscriptionStatus mirrors spec.md section 3's Subscription.status enum.
type SubscriptionStatus string

const (
	SubPending  SubscriptionStatus = "pending"
	SubActive   SubscriptionStatus = "active"
	SubFrozen   SubscriptionStatus = "frozen"
	SubCanceled SubscriptionStatus = "canceled"
	SubExpired  SubscriptionStatus = "expired"
)

// Subscription is spec.md section 3's Subscription entity.
type Subscription struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	PlanID               uuid.UUID
	Status               SubscriptionStatus
	GracePeriodEndsOn    *time.Time
	CurrentPeriodEnd     *time.Time
	ExternalSubID        string
	PlanTierRank         int
	CreatedAt            time.Time
}

// Plan is spec.md section 3's global Plan entity.
type Plan struct {
	ID       uuid.UUID
	Name     string
	TierRank int
	Features map[string]bool
	Limits   map[string]int
}

// Override is spec.md section 3's TenantEntitlementOverride entity.
type Override struct {
	TenantID  uuid.UUID
	FeatureKey string
	Enabled   bool
	ExpiresAt time.Time
	Reason    string
	CreatedBy string
}

// Expired reports whether the override no longer applies at asOf.
func (o Override) Expired(asOf time.Time) bool {
	return !asOf.Before(o.ExpiresAt)
}
