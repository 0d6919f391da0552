// Package connector implements connection registration and the Shopify
// duplicate-shop-domain guard (spec.md section 4.5).
package connector

import (
	"strings"

	"github.com/google/uuid"
)

// Status is ConnectorConnection.status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusFailed   Status = "failed"
	StatusDeleted  Status = "deleted"
)

// Connection is spec.md section 3's ConnectorConnection entity.
type Connection struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	ExternalConnectionID string
	SourceType           string
	ConnectionName       string
	Configuration        map[string]any
	Status               Status
	IsEnabled            bool
	LastSyncAt           *string
	LastSyncStatus       string
	SyncFrequencyMinutes int
}

// RegisterInput is the registration request from spec.md section 4.5.
type RegisterInput struct {
	ExternalConnectionID string
	SourceType           string
	ConnectionName       string
	Configuration        map[string]any
	SyncFrequencyMinutes int
}

const shopifySourceType = "shopify"

// NormalizeShopDomain applies the exact normalization spec.md 4.5 requires
// to match the database constraint: lowercase, strip http(s)://, strip a
// trailing slash. It must equate
// "HTTPS://Store.myshopify.com/", "http://store.myshopify.com", and
// "store.myshopify.com" (spec.md section 8).
func NormalizeShopDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, "/")
	return s
}

// ShopDomain extracts and normalizes configuration.shop_domain for a
// Shopify registration input. Returns ok=false if the input isn't a
// Shopify source or lacks a shop_domain key.
func ShopDomain(in RegisterInput) (string, bool) {
	if in.SourceType != shopifySourceType {
		return "", false
	}
	raw, ok := in.Configuration["shop_domain"].(string)
	if !ok || raw == "" {
		return "", false
	}
	return NormalizeShopDomain(raw), true
}
