package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

type fakeSubStore struct {
	subs map[uuid.UUID]Subscription
}

func (f *fakeSubStore) WinningSubscription(_ context.Context, _ dbx.DBTX, tenantID uuid.UUID) (Subscription, bool, error) {
	s, ok := f.subs[tenantID]
	return s, ok, nil
}

type fakeOverrideStore struct {
	overrides map[uuid.UUID][]Override
}

func newFakeOverrideStore() *fakeOverrideStore {
	return &fakeOverrideStore{overrides: map[uuid.UUID][]Override{}}
}

func (f *fakeOverrideStore) NonExpiredOverrides(_ context.Context, _ dbx.DBTX, tenantID uuid.UUID) ([]Override, error) {
	return f.overrides[tenantID], nil
}

func (f *fakeOverrideStore) UpsertOverride(_ context.Context, _ dbx.DBTX, o Override) error {
	list := f.overrides[o.TenantID]
	for i, existing := range list {
		if existing.FeatureKey == o.FeatureKey {
			list[i] = o
			f.overrides[o.TenantID] = list
			return nil
		}
	}
	f.overrides[o.TenantID] = append(list, o)
	return nil
}

func (f *fakeOverrideStore) DeleteOverride(_ context.Context, _ dbx.DBTX, tenantID uuid.UUID, featureKey string) error {
	list := f.overrides[tenantID]
	out := list[:0]
	for _, o := range list {
		if o.FeatureKey != featureKey {
			out = append(out, o)
		}
	}
	f.overrides[tenantID] = out
	return nil
}

func (f *fakeOverrideStore) ExpiredOverrideTenants(context.Context, dbx.DBTX) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeOverrideStore) DeleteExpired(context.Context, dbx.DBTX) error { return nil }

func testCatalog() *PlanCatalog {
	freeID := uuid.New()
	growthID := uuid.New()
	return &PlanCatalog{
		byID: map[uuid.UUID]Plan{
			freeID:   {ID: freeID, Name: "free", TierRank: 0, Features: map[string]bool{}, Limits: map[string]int{"max_dashboards": 1}},
			growthID: {ID: growthID, Name: "growth", TierRank: 1, Features: map[string]bool{"ai_insights": true}, Limits: map[string]int{"max_dashboards": 10}},
		},
		byName: map[string]Plan{
			"free":   {ID: freeID, Name: "free", TierRank: 0, Features: map[string]bool{}, Limits: map[string]int{"max_dashboards": 1}},
			"growth": {ID: growthID, Name: "growth", TierRank: 1, Features: map[string]bool{"ai_insights": true}, Limits: map[string]int{"max_dashboards": 10}},
		},
	}
}

func TestEngine_NoSubscriptionSynthesizesFreePlan(t *testing.T) {
	tenantID := uuid.New()
	cat := testCatalog()
	engine := NewEngine(nil, &fakeSubStore{subs: map[uuid.UUID]Subscription{}}, newFakeOverrideStore(), cat, NewRedisCache(nil, testLogger()), nil)

	resolved, err := engine.GetEntitlements(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, "free", resolved.PlanName)
	require.Equal(t, AccessFull, resolved.AccessLevel)
	require.False(t, resolved.CheckFeature("ai_insights").Granted)
}

func TestEngine_OverrideWinsOverPlan(t *testing.T) {
	tenantID := uuid.New()
	cat := testCatalog()
	growth, _ := cat.ByName("growth")

	subs := &fakeSubStore{subs: map[uuid.UUID]Subscription{
		tenantID: {ID: uuid.New(), TenantID: tenantID, PlanID: growth.ID, Status: SubActive},
	}}
	overrides := newFakeOverrideStore()
	overrides.overrides[tenantID] = []Override{
		{TenantID: tenantID, FeatureKey: "ai_insights", Enabled: false, ExpiresAt: time.Now().Add(time.Hour)},
	}

	engine := NewEngine(nil, subs, overrides, cat, NewRedisCache(nil, testLogger()), nil)

	resolved, err := engine.GetEntitlements(context.Background(), tenantID)
	require.NoError(t, err)
	grant := resolved.CheckFeature("ai_insights")
	require.False(t, grant.Granted)
	require.Equal(t, SourceOverride, grant.Source)
}

func TestEngine_CanceledRetainsAccessUntilPeriodEnd(t *testing.T) {
	tenantID := uuid.New()
	cat := testCatalog()
	growth, _ := cat.ByName("growth")
	periodEnd := time.Now().Add(24 * time.Hour)

	subs := &fakeSubStore{subs: map[uuid.UUID]Subscription{
		tenantID: {ID: uuid.New(), TenantID: tenantID, PlanID: growth.ID, Status: SubCanceled, CurrentPeriodEnd: &periodEnd},
	}}
	engine := NewEngine(nil, subs, newFakeOverrideStore(), cat, NewRedisCache(nil, testLogger()), nil)

	resolved, err := engine.GetEntitlements(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, BillingCanceled, resolved.BillingState)
	require.Equal(t, AccessFullUntilPeriodEnd, resolved.AccessLevel)
}

func TestEngine_CanceledPastPeriodEndDeniesAccess(t *testing.T) {
	tenantID := uuid.New()
	cat := testCatalog()
	growth, _ := cat.ByName("growth")
	periodEnd := time.Now().Add(-time.Hour)

	subs := &fakeSubStore{subs: map[uuid.UUID]Subscription{
		tenantID: {ID: uuid.New(), TenantID: tenantID, PlanID: growth.ID, Status: SubCanceled, CurrentPeriodEnd: &periodEnd},
	}}
	engine := NewEngine(nil, subs, newFakeOverrideStore(), cat, NewRedisCache(nil, testLogger()), nil)

	resolved, err := engine.GetEntitlements(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, BillingCanceled, resolved.BillingState)
	require.Equal(t, AccessNone, resolved.AccessLevel)

	_, err = engine.CheckFeature(context.Background(), tenantID, "ai_insights")
	require.Error(t, err)
	cpErr, ok := err.(*cperr.Error)
	require.True(t, ok)
	require.Equal(t, cperr.CodePaymentRequired, cpErr.Code)
	require.Equal(t, "growth", cpErr.Context["required_plan"])
}

func TestEngine_InvalidateForcesRecompute(t *testing.T) {
	tenantID := uuid.New()
	cat := testCatalog()
	subs := &fakeSubStore{subs: map[uuid.UUID]Subscription{}}
	engine := NewEngine(nil, subs, newFakeOverrideStore(), cat, NewRedisCache(nil, testLogger()), nil)

	_, err := engine.GetEntitlements(context.Background(), tenantID)
	require.NoError(t, err)

	engine.Invalidate(context.Background(), tenantID, "test")

	_, ok := engine.Cache.Get(context.Background(), tenantID)
	require.False(t, ok)
}

func TestEngine_UpsertOverrideRejectsPastExpiry(t *testing.T) {
	cat := testCatalog()
	engine := NewEngine(nil, &fakeSubStore{subs: map[uuid.UUID]Subscription{}}, newFakeOverrideStore(), cat, NewRedisCache(nil, testLogger()), nil)

	now := time.Now()
	err := engine.UpsertOverride(context.Background(), Override{TenantID: uuid.New(), FeatureKey: "x", ExpiresAt: now.Add(-time.Minute)}, now)
	require.ErrorIs(t, err, ErrOverrideExpiresAtRequired)
}
