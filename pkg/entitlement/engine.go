package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/telemetry"
)

const singleflightTimeout = 5 * time.Second

// Engine is the entitlement engine's public contract (spec.md section 4.1):
// get_entitlements, check_feature, invalidate, and override CRUD.
type Engine struct {
	Pool          *pgxpool.Pool
	Subscriptions SubscriptionStore
	Overrides     OverrideStore
	Plans         *PlanCatalog
	Cache         Cache

	group singleflight.Group
	now   func() time.Time
}

// NewEngine constructs an Engine. now defaults to time.Now when nil, and
// exists so tests can freeze resolution time.
func NewEngine(pool *pgxpool.Pool, subs SubscriptionStore, overrides OverrideStore, plans *PlanCatalog, cache Cache, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{Pool: pool, Subscriptions: subs, Overrides: overrides, Plans: plans, Cache: cache, now: now}
}

// GetEntitlements resolves and returns a tenant's entitlements, consulting
// the cache first. Fails closed: any internal error becomes
// EntitlementEvalFailed (spec.md 4.1).
func (e *Engine) GetEntitlements(ctx context.Context, tenantID uuid.UUID) (ResolvedEntitlement, error) {
	if v, ok := e.Cache.Get(ctx, tenantID); ok {
		return v, nil
	}

	resCh := e.group.DoChan(tenantID.String(), func() (any, error) {
		// Re-check cache after acquiring the single-flight slot — another
		// goroutine may have just populated it.
		if v, ok := e.Cache.Get(ctx, tenantID); ok {
			return v, nil
		}

		resolved, err := e.resolve(ctx, tenantID)
		if err != nil {
			return ResolvedEntitlement{}, err
		}

		e.Cache.Set(ctx, tenantID, resolved)
		return resolved, nil
	})

	select {
	case r := <-resCh:
		if r.Err != nil {
			return ResolvedEntitlement{}, e.evalFailed(tenantID, r.Err)
		}
		return r.Val.(ResolvedEntitlement), nil
	case <-time.After(singleflightTimeout):
		return ResolvedEntitlement{}, e.evalFailed(tenantID, fmt.Errorf("resolution lock timed out after %s", singleflightTimeout))
	case <-ctx.Done():
		return ResolvedEntitlement{}, e.evalFailed(tenantID, ctx.Err())
	}
}

func (e *Engine) evalFailed(tenantID uuid.UUID, cause error) *cperr.Error {
	telemetry.EntitlementEvalFailures.Inc()
	return cperr.Wrap(cperr.CodeEntitlementEvalFailed, "could not determine feature access", cause).
		WithSupport(cause.Error()).
		WithContext(map[string]any{"tenant_id": tenantID})
}

// CheckFeature resolves the tenant's entitlements and returns the grant for
// a single feature. Unknown features deny (spec.md 4.1). A tenant with no
// remaining access at all (spec.md section 8 scenario 3: canceled
// subscription past current_period_end) is denied outright rather than
// handed a deny grant, so callers can distinguish "this feature isn't on
// your plan" from "you have no plan access".
func (e *Engine) CheckFeature(ctx context.Context, tenantID uuid.UUID, featureKey string) (Grant, error) {
	resolved, err := e.GetEntitlements(ctx, tenantID)
	if err != nil {
		return Grant{}, err
	}

	if resolved.AccessLevel == AccessNone {
		if resolved.BillingState == BillingCanceled {
			return Grant{}, cperr.New(cperr.CodePaymentRequired, "subscription canceled and the current billing period has ended").
				WithContext(map[string]any{
					"feature":       featureKey,
					"billing_state": resolved.BillingState,
					"required_plan": resolved.PlanName,
					"tenant_id":     tenantID,
				})
		}
		return Grant{}, cperr.New(cperr.CodeEntitlementDenied, "tenant has no active plan access").
			WithContext(map[string]any{
				"feature":       featureKey,
				"billing_state": resolved.BillingState,
				"tenant_id":     tenantID,
			})
	}

	return resolved.CheckFeature(featureKey), nil
}

// Invalidate purges the cached entitlement for tenantID. Must be called
// after override writes and billing webhooks.
func (e *Engine) Invalidate(ctx context.Context, tenantID uuid.UUID, reason string) {
	e.Cache.Invalidate(ctx, tenantID, reason)
}

// resolve runs the 10-step algorithm from spec.md section 4.1, steps 3-9
// (steps 1/2/10 — cache read, lock, write — are handled by GetEntitlements).
func (e *Engine) resolve(ctx context.Context, tenantID uuid.UUID) (ResolvedEntitlement, error) {
	now := e.now().UTC()

	// Step 3: pick the winning subscription.
	sub, hasSub, err := e.Subscriptions.WinningSubscription(ctx, e.Pool, tenantID)
	if err != nil {
		return ResolvedEntitlement{}, fmt.Errorf("loading subscription: %w", err)
	}

	// Step 4: derive billing state.
	var billingState BillingState
	if hasSub {
		billingState = deriveBillingState(sub, now)
	} else {
		billingState = BillingActive // synthesized free-plan subscription is active
	}

	// Step 5: load plan config (deep copy), synthesizing free plan as needed.
	var plan Plan
	var planFound bool
	if hasSub {
		plan, planFound = e.Plans.ByID(sub.PlanID)
	}
	if !planFound {
		plan, planFound = e.Plans.ByName(freePlanName)
		if !planFound {
			return ResolvedEntitlement{}, fmt.Errorf("plan catalog missing required free plan")
		}
	}

	// Step 6: load non-expired overrides.
	overrides, err := e.Overrides.NonExpiredOverrides(ctx, e.Pool, tenantID)
	if err != nil {
		return ResolvedEntitlement{}, fmt.Errorf("loading overrides: %w", err)
	}
	overrideByKey := make(map[string]Override, len(overrides))
	for _, o := range overrides {
		if !o.Expired(now) {
			overrideByKey[o.FeatureKey] = o
		}
	}

	// Step 7: resolve features — override wins over plan.
	features := make(map[string]Grant, len(plan.Features)+len(overrideByKey))
	for key, enabled := range plan.Features {
		features[key] = Grant{Granted: enabled, Source: SourcePlan}
	}
	for key, o := range overrideByKey {
		features[key] = Grant{Granted: o.Enabled, Source: SourceOverride}
	}

	// Step 8: access level by billing state. A canceled subscription keeps
	// full access only until current_period_end (spec.md section 4.1 step 4
	// and section 8 scenario 3) — past that instant there is nothing left to
	// retain.
	canceledPeriodEnded := billingState == BillingCanceled && hasSub &&
		sub.CurrentPeriodEnd != nil && !now.Before(*sub.CurrentPeriodEnd)
	accessLevel := accessLevelFor(billingState, canceledPeriodEnded)

	// Step 9: warnings.
	var warnings []string
	if billingState == BillingGracePeriod {
		warnings = append(warnings, "payment_method_missing")
	}

	return ResolvedEntitlement{
		TenantID:     tenantID,
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		BillingState: billingState,
		AccessLevel:  accessLevel,
		Features:     features,
		Limits:       plan.Limits,
		Warnings:     warnings,
		ResolvedAt:   now,
	}, nil
}

func deriveBillingState(sub Subscription, now time.Time) BillingState {
	switch sub.Status {
	case SubFrozen:
		if sub.GracePeriodEndsOn != nil && now.Before(*sub.GracePeriodEndsOn) {
			return BillingGracePeriod
		}
		return BillingPastDue
	case SubActive:
		return BillingActive
	case SubCanceled:
		return BillingCanceled
	case SubExpired:
		return BillingExpired
	case SubPending:
		return BillingPending
	default:
		return BillingNone
	}
}

func accessLevelFor(state BillingState, canceledPeriodEnded bool) AccessLevel {
	switch state {
	case BillingActive, BillingTrialing, BillingGracePeriod:
		return AccessFull
	case BillingCanceled:
		if canceledPeriodEnded {
			return AccessNone
		}
		return AccessFullUntilPeriodEnd
	case BillingPastDue:
		return AccessReadOnly
	case BillingFrozen:
		return AccessLimited
	case BillingExpired:
		return AccessReadOnlyAnalytics
	default:
		return AccessNone
	}
}
