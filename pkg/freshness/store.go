package freshness

import (
	"context"

	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// Store is the persistence contract for availability rows and DQ incidents.
type Store interface {
	GetAvailability(ctx context.Context, db dbx.DBTX, tenantID uuid.UUID, sourceType string) (Availability, bool, error)
	UpsertAvailability(ctx context.Context, db dbx.DBTX, a Availability) error

	OpenIncidentFor(ctx context.Context, db dbx.DBTX, tenantID, connectorID uuid.UUID) (Incident, bool, error)
	InsertIncident(ctx context.Context, db dbx.DBTX, inc Incident) error
	UpdateIncident(ctx context.Context, db dbx.DBTX, inc Incident) error
}

// AuditSink records freshness state transitions and incident lifecycle
// events. Implemented by internal/audit.Writer.
type AuditSink interface {
	LogFreshnessTransition(ctx context.Context, tenantID uuid.UUID, sourceType string, event string, from, to State)
}
