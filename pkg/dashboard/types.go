// Package dashboard implements dashboard CRUD, versioning, and sharing
// (spec.md 4.9): optimistic locking on update, a pessimistic per-tenant
// count guard on create to close the TOCTOU window spec.md section 5
// calls out, a capped FIFO version history, and restore from any
// retained version.
package dashboard

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AccessLevel is the effective permission a user holds on a dashboard.
type AccessLevel string

const (
	AccessOwner AccessLevel = "owner"
	AccessAdmin AccessLevel = "admin"
	AccessEdit  AccessLevel = "edit"
	AccessRead  AccessLevel = "read"
)

// CanWrite reports whether the access level may create/update/restore.
func (a AccessLevel) CanWrite() bool {
	return a == AccessOwner || a == AccessAdmin || a == AccessEdit
}

// Dashboard is the current state of one dashboard.
type Dashboard struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	OwnerUserID   uuid.UUID
	Name          string
	Archived      bool
	VersionNumber int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Report is one report placed on a dashboard, in display order.
type Report struct {
	ID         uuid.UUID
	DashboardID uuid.UUID
	Name       string
	Config     json.RawMessage
	Position   int
}

// VersionSnapshot captures a dashboard's metadata plus its ordered
// reports at the moment a version was taken.
type VersionSnapshot struct {
	Name    string
	Reports []Report
}

// DashboardVersion is one retained snapshot.
type DashboardVersion struct {
	ID            uuid.UUID
	DashboardID   uuid.UUID
	VersionNumber int
	Snapshot      VersionSnapshot
	CreatedAt     time.Time
}

// Share is a non-owner grant of access to a dashboard. A nil ExpiresAt
// never expires.
type Share struct {
	DashboardID uuid.UUID
	UserID      uuid.UUID
	AccessLevel AccessLevel
	ExpiresAt   *time.Time
}

// Expired reports whether the share has lapsed as of now.
func (s Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// CreateInput is the caller-supplied portion of a new dashboard.
type CreateInput struct {
	Name    string
	Reports []Report
}

// UpdateInput is the caller-supplied portion of a dashboard update, plus
// the optimistic-lock token.
type UpdateInput struct {
	Name              *string
	Reports           []Report
	ExpectedUpdatedAt time.Time
}

// VersionCap is the maximum number of versions retained per dashboard;
// beyond this, the oldest are pruned FIFO (spec.md 4.9).
const VersionCap = 50
