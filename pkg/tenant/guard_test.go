package tenant

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

type fakeStore struct {
	users   map[string]User
	tenants map[uuid.UUID]Tenant
	roles   map[[2]uuid.UUID][]UserTenantRole
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]User{},
		tenants: map[uuid.UUID]Tenant{},
		roles:   map[[2]uuid.UUID][]UserTenantRole{},
	}
}

func (s *fakeStore) GetByExternalID(_ context.Context, _ dbx.DBTX, externalUserID string) (User, error) {
	u, ok := s.users[externalUserID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) Bootstrap(_ context.Context, _ dbx.DBTX, externalUserID string) (User, error) {
	u := User{ID: uuid.New(), ExternalUserID: externalUserID, IsActive: true}
	s.users[externalUserID] = u
	return u, nil
}

func (s *fakeStore) GetByID(_ context.Context, _ dbx.DBTX, id uuid.UUID) (Tenant, error) {
	t, ok := s.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (s *fakeStore) ActiveRoles(_ context.Context, _ dbx.DBTX, userID, tenantID uuid.UUID) ([]UserTenantRole, error) {
	return s.roles[[2]uuid.UUID{userID, tenantID}], nil
}

func (s *fakeStore) GrantLazySync(_ context.Context, _ dbx.DBTX, userID, tenantID uuid.UUID) (UserTenantRole, error) {
	r := UserTenantRole{UserID: userID, TenantID: tenantID, Role: RoleMerchantViewer, IsActive: true, Source: SourceLazySync}
	key := [2]uuid.UUID{userID, tenantID}
	s.roles[key] = append(s.roles[key], r)
	return r, nil
}

type fakeAudit struct {
	calls int
}

func (f *fakeAudit) LogRoleChangeEnforced(context.Context, uuid.UUID, uuid.UUID, []string, []string) {
	f.calls++
}

type fakeResolver struct {
	claims   Claims
	tenantID uuid.UUID
	err      error
}

func (f fakeResolver) Resolve(*http.Request) (Claims, uuid.UUID, error) {
	return f.claims, f.tenantID, f.err
}

func newGuard(store *fakeStore, resolver fakeResolver, audit *fakeAudit) *Guard {
	return &Guard{
		Pool:   nil,
		Store:  store,
		Claims: resolver,
		Audit:  audit,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestGuard_DeniesWithoutActiveTenant(t *testing.T) {
	store := newFakeStore()
	resolver := fakeResolver{claims: Claims{ExternalUserID: "ext-1"}, tenantID: uuid.Nil}
	g := newGuard(store, resolver, &fakeAudit{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := g.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGuard_DeniesSuspendedTenant(t *testing.T) {
	store := newFakeStore()
	tenantID := uuid.New()
	store.users["ext-1"] = User{ID: uuid.New(), ExternalUserID: "ext-1", IsActive: true}
	store.tenants[tenantID] = Tenant{ID: tenantID, Status: StatusSuspended, BillingTier: TierGrowth}

	resolver := fakeResolver{claims: Claims{ExternalUserID: "ext-1"}, tenantID: tenantID}
	g := newGuard(store, resolver, &fakeAudit{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler := g.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGuard_DeniesAccessRevokedWhenNoRolesAndNoClaim(t *testing.T) {
	store := newFakeStore()
	tenantID := uuid.New()
	userID := uuid.New()
	store.users["ext-1"] = User{ID: userID, ExternalUserID: "ext-1", IsActive: true}
	store.tenants[tenantID] = Tenant{ID: tenantID, Status: StatusActive, BillingTier: TierGrowth}

	resolver := fakeResolver{claims: Claims{ExternalUserID: "ext-1"}, tenantID: tenantID}
	audit := &fakeAudit{}
	g := newGuard(store, resolver, audit)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler := g.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, 1, audit.calls)
}

func TestGuard_LazySyncGrantsViewerFromClaim(t *testing.T) {
	store := newFakeStore()
	tenantID := uuid.New()
	userID := uuid.New()
	store.users["ext-1"] = User{ID: userID, ExternalUserID: "ext-1", IsActive: true}
	store.tenants[tenantID] = Tenant{ID: tenantID, Status: StatusActive, BillingTier: TierGrowth}

	resolver := fakeResolver{
		claims:   Claims{ExternalUserID: "ext-1", AllowedTenantIDsInToken: []uuid.UUID{tenantID}, RolesInToken: []string{"merchant_viewer"}},
		tenantID: tenantID,
	}
	g := newGuard(store, resolver, &fakeAudit{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	var resolvedCtx Context
	var ok bool
	handler := g.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		resolvedCtx, ok = FromContext(r.Context())
	}))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	require.Len(t, resolvedCtx.Roles, 1)
	require.Equal(t, RoleMerchantViewer, resolvedCtx.Roles[0].Role)
}

func TestGuard_DeniesBillingRoleNotAllowedAtTier(t *testing.T) {
	store := newFakeStore()
	tenantID := uuid.New()
	userID := uuid.New()
	store.users["ext-1"] = User{ID: userID, ExternalUserID: "ext-1", IsActive: true}
	store.tenants[tenantID] = Tenant{ID: tenantID, Status: StatusActive, BillingTier: TierFree}
	key := [2]uuid.UUID{userID, tenantID}
	store.roles[key] = []UserTenantRole{{UserID: userID, TenantID: tenantID, Role: RoleAgencyAdmin, IsActive: true, Source: SourceAgency}}

	resolver := fakeResolver{claims: Claims{ExternalUserID: "ext-1"}, tenantID: tenantID}
	audit := &fakeAudit{}
	g := newGuard(store, resolver, audit)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler := g.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, 1, audit.calls)
}

func TestGuard_SucceedsAndAttachesContext(t *testing.T) {
	store := newFakeStore()
	tenantID := uuid.New()
	userID := uuid.New()
	store.users["ext-1"] = User{ID: userID, ExternalUserID: "ext-1", IsActive: true}
	store.tenants[tenantID] = Tenant{ID: tenantID, Status: StatusActive, BillingTier: TierPro, Name: "Acme"}
	key := [2]uuid.UUID{userID, tenantID}
	store.roles[key] = []UserTenantRole{{UserID: userID, TenantID: tenantID, Role: RoleMerchantAdmin, IsActive: true, Source: SourceWebhook}}

	resolver := fakeResolver{
		claims:   Claims{ExternalUserID: "ext-1", RolesInToken: []string{"merchant_admin"}},
		tenantID: tenantID,
	}
	g := newGuard(store, resolver, &fakeAudit{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	var resolvedCtx Context
	handler := g.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		resolvedCtx, _ = FromContext(r.Context())
	}))
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Acme", resolvedCtx.Tenant.Name)
	require.Len(t, resolvedCtx.Roles, 1)
}
