package freshness

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Open starts a new incident from an anomaly or stale-connector finding.
func Open(tenantID, connectorID uuid.UUID, severity IncidentSeverity, title, merchantMessage, supportDetails string, blocking bool, now time.Time) Incident {
	return Incident{
		ID:              uuid.New(),
		TenantID:        tenantID,
		ConnectorID:     connectorID,
		Severity:        severity,
		Status:          IncidentOpen,
		Title:           title,
		MerchantMessage: merchantMessage,
		SupportDetails:  supportDetails,
		IsBlocking:      blocking,
		OpenedAt:        now,
	}
}

// Acknowledge transitions an open incident to acknowledged.
func Acknowledge(inc Incident) (Incident, error) {
	if inc.Status != IncidentOpen {
		return inc, fmt.Errorf("incident: cannot acknowledge from status %q", inc.Status)
	}
	inc.Status = IncidentAcknowledged
	return inc, nil
}

// Resolve transitions an incident to resolved. Idempotent: resolving an
// already-resolved incident is a no-op, not an error (spec.md 4.4:
// "Resolution is idempotent").
func Resolve(inc Incident, now time.Time) Incident {
	if inc.Status == IncidentResolved || inc.Status == IncidentAutoResolved {
		return inc
	}
	inc.Status = IncidentResolved
	inc.ResolvedAt = &now
	return inc
}

// AutoResolve closes an incident because the underlying condition cleared
// on its own (e.g. a freshness recovery transition). Idempotent like
// Resolve.
func AutoResolve(inc Incident, now time.Time) Incident {
	if inc.Status == IncidentResolved || inc.Status == IncidentAutoResolved {
		return inc
	}
	inc.Status = IncidentAutoResolved
	inc.ResolvedAt = &now
	return inc
}
