package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/cperr"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/httpserver"
)

// ErrNotFound is returned by UserStore/TenantStore lookups that find no row.
var ErrNotFound = errors.New("tenant: not found")

// tierRoleAllowlist is the billing-tier role allowlist from spec.md section
// 4.2 step 6. agency_admin — cross-tenant agency access — is gated to the
// tiers that pay for it; merchant_admin/merchant_viewer are available
// everywhere. Open question in spec.md left the exact table unspecified;
// this is the resolved decision (see DESIGN.md).
var tierRoleAllowlist = map[BillingTier]map[Role]bool{
	TierFree:       {RoleMerchantAdmin: true, RoleMerchantViewer: true},
	TierGrowth:     {RoleMerchantAdmin: true, RoleMerchantViewer: true},
	TierPro:        {RoleMerchantAdmin: true, RoleMerchantViewer: true, RoleAgencyAdmin: true},
	TierEnterprise: {RoleMerchantAdmin: true, RoleMerchantViewer: true, RoleAgencyAdmin: true},
}

func allowedAtTier(tier BillingTier, role Role) bool {
	allowed, ok := tierRoleAllowlist[tier]
	if !ok {
		return false
	}
	return allowed[role]
}

type contextKey string

const ctxKey contextKey = "tenant_context"

// FromContext returns the resolved Context the guard attached, if any.
func FromContext(ctx context.Context) (Context, bool) {
	v, ok := ctx.Value(ctxKey).(Context)
	return v, ok
}

// WithContext attaches a resolved Context, the same way Middleware does
// after a successful enforce. Exported for tests and for internal callers
// (e.g. background jobs) that need to run code expecting FromContext
// without going through an HTTP request.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey, tc)
}

// ClaimsResolver extracts Claims and the caller's desired active_tenant_id
// from the request. Bearer-token parsing is out of scope (spec.md section
// 1); production wiring supplies an implementation backed by whatever
// upstream identity layer terminates the token.
type ClaimsResolver interface {
	Resolve(r *http.Request) (Claims, uuid.UUID, error)
}

// Guard is the tenant guard middleware authority (spec.md section 4.2).
type Guard struct {
	Pool     *pgxpool.Pool
	Store    Store
	Claims   ClaimsResolver
	Audit    AuditSink
	Logger   *slog.Logger
}

// NewGuard constructs a Guard, defaulting Audit to a no-op sink.
func NewGuard(pool *pgxpool.Pool, store Store, claims ClaimsResolver, audit AuditSink, logger *slog.Logger) *Guard {
	if audit == nil {
		audit = NopAuditSink{}
	}
	return &Guard{Pool: pool, Store: store, Claims: claims, Audit: audit, Logger: logger}
}

// Middleware runs the 8-step enforcement algorithm on every request,
// attaching a resolved Context on success or denying with the
// protocol-appropriate status on failure. Every denial is logged through
// Logger with its violation type; only access_revoked and
// billing_role_not_allowed denials are also recorded through the AuditSink
// (LogRoleChangeEnforced). Other denials write no audit record.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, activeTenantID, err := g.Claims.Resolve(r)
		if err != nil {
			g.deny(w, r, cperr.New(cperr.CodeAuthRequired, "authentication required"), claims, activeTenantID, "auth_resolution_failed")
			return
		}

		resolved, denyErr, violation := g.enforce(r.Context(), claims, activeTenantID)
		if denyErr != nil {
			g.deny(w, r, denyErr, claims, activeTenantID, violation)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKey, *resolved)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// enforce runs steps 1-8 and returns either a resolved Context or a deny
// error plus the violation type for the audit trail.
func (g *Guard) enforce(ctx context.Context, claims Claims, activeTenantID uuid.UUID) (*Context, *cperr.Error, string) {
	// Step 1: resolve (or lazily bootstrap) the local User.
	user, err := g.Store.GetByExternalID(ctx, g.Pool, claims.ExternalUserID)
	if errors.Is(err, ErrNotFound) {
		if activeTenantID == uuid.Nil {
			return nil, cperr.New(cperr.CodeTenantRequired, "no active tenant specified"), "tenant_required"
		}
		user, err = g.Store.Bootstrap(ctx, g.Pool, claims.ExternalUserID)
		if err != nil {
			return nil, cperr.Wrap(cperr.CodeTenantRequired, "identity bootstrap failed", err), "bootstrap_failed"
		}
	} else if err != nil {
		return nil, cperr.Wrap(cperr.CodeTenantRequired, "identity resolution failed", err), "identity_lookup_failed"
	}

	// Step 2: deny inactive users.
	if !user.IsActive {
		return nil, cperr.New(cperr.CodeUserInactive, "account is deactivated"), "user_inactive"
	}

	// Step 3: require an active_tenant_id.
	if activeTenantID == uuid.Nil {
		return nil, cperr.New(cperr.CodeTenantRequired, "no active tenant specified"), "tenant_required"
	}

	// Step 4: load Tenant.
	t, err := g.Store.GetByID(ctx, g.Pool, activeTenantID)
	if errors.Is(err, ErrNotFound) {
		return nil, cperr.New(cperr.CodeTenantNotFound, "tenant not found").WithContext(map[string]any{"tenant_id": activeTenantID}), "tenant_not_found"
	}
	if err != nil {
		return nil, cperr.Wrap(cperr.CodeTenantNotFound, "tenant lookup failed", err), "tenant_lookup_failed"
	}
	if t.Status == StatusSuspended {
		return nil, cperr.New(cperr.CodeTenantSuspended, "tenant is suspended").WithContext(map[string]any{"tenant_id": activeTenantID}), "tenant_suspended"
	}
	if t.Status != StatusActive {
		return nil, cperr.New(cperr.CodeTenantNotFound, "tenant not found").WithContext(map[string]any{"tenant_id": activeTenantID}), "tenant_not_found"
	}

	// Step 5: load active UserTenantRole rows.
	roles, err := g.Store.ActiveRoles(ctx, g.Pool, user.ID, t.ID)
	if err != nil {
		return nil, cperr.Wrap(cperr.CodeAccessRevoked, "role lookup failed", err), "role_lookup_failed"
	}
	if len(roles) == 0 {
		// A claim vouching for membership the database doesn't yet know
		// about closes the lazy-sync window the same way step 1 does.
		if containsTenant(claims.AllowedTenantIDsInToken, t.ID) {
			granted, grantErr := g.Store.GrantLazySync(ctx, g.Pool, user.ID, t.ID)
			if grantErr == nil {
				roles = []UserTenantRole{granted}
			}
		}
		if len(roles) == 0 {
			g.Audit.LogRoleChangeEnforced(ctx, user.ID, t.ID, claims.RolesInToken, nil)
			return nil, cperr.New(cperr.CodeAccessRevoked, "access to this tenant has been revoked").WithContext(map[string]any{"tenant_id": activeTenantID}), "access_revoked"
		}
	}

	// Step 6: filter by billing-tier allowlist.
	surviving := make([]UserTenantRole, 0, len(roles))
	for _, role := range roles {
		if allowedAtTier(t.BillingTier, role.Role) {
			surviving = append(surviving, role)
		}
	}
	if len(surviving) == 0 {
		g.Audit.LogRoleChangeEnforced(ctx, user.ID, t.ID, claims.RolesInToken, nil)
		return nil, cperr.New(cperr.CodeBillingRoleNotAllow, "current plan does not permit this role").WithContext(map[string]any{"tenant_id": activeTenantID, "billing_tier": t.BillingTier}), "billing_role_not_allowed"
	}

	resolved := Context{User: user, Tenant: t, Roles: surviving, ResolvedAt: time.Now().UTC()}

	// Step 7: audit, but do not deny, on role drift vs. token claims.
	if !sameRoleSet(resolved.RoleStrings(), claims.RolesInToken) {
		g.Audit.LogRoleChangeEnforced(ctx, user.ID, t.ID, claims.RolesInToken, resolved.RoleStrings())
	}

	return &resolved, nil, ""
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request, derr *cperr.Error, claims Claims, tenantID uuid.UUID, violation string) {
	g.Logger.Warn("tenant guard denied request",
		"violation", violation,
		"code", derr.Code,
		"external_user_id", claims.ExternalUserID,
		"tenant_id", tenantID,
		"path", r.URL.Path,
		"method", r.Method,
	)
	httpserver.RespondDomainError(w, derr)
}

func containsTenant(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sameRoleSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		seen[v]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}
