package tenant

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderClaimsResolver is a dev-mode ClaimsResolver: it trusts plain
// headers instead of validating a bearer token, exactly the kind of
// fallback spec.md section 1 assumes sits upstream of the guard in
// production (JWT/OIDC validation is explicitly out of scope here; see
// SPEC_FULL.md 4.2). Grounded on the teacher's auth.Middleware dev-mode
// X-Tenant-Slug fallback, generalized to the full Claims shape the guard
// needs.
type HeaderClaimsResolver struct{}

func NewHeaderClaimsResolver() *HeaderClaimsResolver { return &HeaderClaimsResolver{} }

var _ ClaimsResolver = (*HeaderClaimsResolver)(nil)

func (HeaderClaimsResolver) Resolve(r *http.Request) (Claims, uuid.UUID, error) {
	externalUserID := r.Header.Get("X-External-User-ID")
	if externalUserID == "" {
		return Claims{}, uuid.Nil, fmt.Errorf("tenant: missing X-External-User-ID header")
	}

	var activeTenantID uuid.UUID
	if raw := r.Header.Get("X-Active-Tenant-ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Claims{}, uuid.Nil, fmt.Errorf("tenant: invalid X-Active-Tenant-ID: %w", err)
		}
		activeTenantID = id
	}

	var allowedTenants []uuid.UUID
	if raw := r.Header.Get("X-Token-Tenant-IDs"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				return Claims{}, uuid.Nil, fmt.Errorf("tenant: invalid X-Token-Tenant-IDs entry %q: %w", s, err)
			}
			allowedTenants = append(allowedTenants, id)
		}
	}

	var roles []string
	if raw := r.Header.Get("X-Token-Roles"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			roles = append(roles, strings.TrimSpace(s))
		}
	}

	return Claims{
		ExternalUserID:          externalUserID,
		AllowedTenantIDsInToken: allowedTenants,
		RolesInToken:            roles,
	}, activeTenantID, nil
}
