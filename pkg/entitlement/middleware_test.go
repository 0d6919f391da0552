package entitlement

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joshrkay/shopify-analytics-controlplane/pkg/tenant"
)

func withTenant(tenantID uuid.UUID) context.Context {
	return tenant.WithContext(context.Background(), tenant.Context{
		Tenant: tenant.Tenant{ID: tenantID},
	})
}

func TestRequireFeature_DeniesWhenPlanLacksFeature(t *testing.T) {
	tenantID := uuid.New()
	cat := testCatalog()
	engine := NewEngine(nil, &fakeSubStore{subs: map[uuid.UUID]Subscription{}}, newFakeOverrideStore(), cat, NewRedisCache(nil, testLogger()), nil)

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guardrails/check", nil).WithContext(withTenant(tenantID))

	RequireFeature(engine, "ai_insights")(next).ServeHTTP(rec, req)

	require.False(t, called)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireFeature_AllowsWhenPlanGrantsFeature(t *testing.T) {
	tenantID := uuid.New()
	cat := testCatalog()
	growth, _ := cat.ByName("growth")
	subs := &fakeSubStore{subs: map[uuid.UUID]Subscription{
		tenantID: {ID: uuid.New(), TenantID: tenantID, PlanID: growth.ID, Status: SubActive},
	}}
	engine := NewEngine(nil, subs, newFakeOverrideStore(), cat, NewRedisCache(nil, testLogger()), nil)

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guardrails/check", nil).WithContext(withTenant(tenantID))

	RequireFeature(engine, "ai_insights")(next).ServeHTTP(rec, req)

	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireFeature_DeniesCanceledPastPeriodEndWithPaymentRequired(t *testing.T) {
	tenantID := uuid.New()
	cat := testCatalog()
	growth, _ := cat.ByName("growth")
	periodEnd := time.Now().Add(-time.Hour)
	subs := &fakeSubStore{subs: map[uuid.UUID]Subscription{
		tenantID: {ID: uuid.New(), TenantID: tenantID, PlanID: growth.ID, Status: SubCanceled, CurrentPeriodEnd: &periodEnd},
	}}
	engine := NewEngine(nil, subs, newFakeOverrideStore(), cat, NewRedisCache(nil, testLogger()), nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guardrails/check", nil).WithContext(withTenant(tenantID))

	RequireFeature(engine, "ai_insights")(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
