// Package tenant implements the tenant guard (spec.md section 4.2): the
// middleware authority that binds every request to exactly one active
// tenant, re-validated against the database rather than trusted from
// bearer-token claims alone.
package tenant

import (
	"time"

	"github.com/google/uuid"
)

// BillingTier mirrors spec.md section 3's Tenant.billing_tier enum.
type BillingTier string

const (
	TierFree       BillingTier = "free"
	TierGrowth     BillingTier = "growth"
	TierPro        BillingTier = "pro"
	TierEnterprise BillingTier = "enterprise"
)

// Status mirrors spec.md section 3's Tenant.status enum.
type Status string

const (
	StatusActive      Status = "active"
	StatusSuspended   Status = "suspended"
	StatusDeactivated Status = "deactivated"
)

// Tenant is spec.md section 3's Tenant entity.
type Tenant struct {
	ID             uuid.UUID
	ExternalOrgID  string
	Name           string
	BillingTier    BillingTier
	Status         Status
}

// User is spec.md section 3's User entity. No passwords: identity is
// established upstream by an external identity provider.
type User struct {
	ID             uuid.UUID
	ExternalUserID string
	IsActive       bool
}

// Role is the UserTenantRole.role enum. The set is open-ended in spec.md
// ("..."); the roles referenced in identity-sync role mapping (section 6)
// are named constants, others may be admin-granted strings.
type Role string

const (
	RoleMerchantAdmin  Role = "merchant_admin"
	RoleMerchantViewer Role = "merchant_viewer"
	RoleAgencyAdmin    Role = "agency_admin"
)

// RoleSource is UserTenantRole.source.
type RoleSource string

const (
	SourceWebhook   RoleSource = "webhook"
	SourceLazySync  RoleSource = "lazy_sync"
	SourceAgency    RoleSource = "agency_grant"
	SourceAdmin     RoleSource = "admin_grant"
)

// UserTenantRole is spec.md section 3's UserTenantRole entity. Revocation
// sets IsActive=false; rows are never deleted, for audit reconstruction.
type UserTenantRole struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     Role
	IsActive bool
	Source   RoleSource
}

// Claims is the assumed collaborator input from an external, already-
// validated bearer token (JWT parsing is explicitly out of scope — see
// spec.md section 1 and SPEC_FULL.md 4.2).
type Claims struct {
	ExternalUserID          string
	AllowedTenantIDsInToken []uuid.UUID
	RolesInToken            []string
}

// Context is the resolved, DB-verified context attached to a request after
// the guard runs successfully.
type Context struct {
	User       User
	Tenant     Tenant
	Roles      []UserTenantRole
	ResolvedAt time.Time
}

// RoleStrings returns the surviving role set as plain strings, for
// comparison against token claims (enforcement step 7).
func (c Context) RoleStrings() []string {
	out := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		out = append(out, string(r.Role))
	}
	return out
}
