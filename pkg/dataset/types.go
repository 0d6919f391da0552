// Package dataset implements the BI-dataset schema-compatibility gate
// (spec.md 4.10): exposed-column removals or type changes can never
// silently break a dashboard that reads them.
package dataset

import (
	"time"

	"github.com/google/uuid"
)

// Status is a dataset version's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusFailed     Status = "failed"
	StatusSuperseded Status = "superseded"
	StatusRolledBack Status = "rolled_back"
)

// Column describes one column of a dataset version's schema.
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Exposed bool   `json:"exposed"`
}

// Version is one revision of a named dataset's schema.
type Version struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	DatasetName   string    `json:"dataset_name"`
	VersionNumber int       `json:"version_number"`
	Columns       []Column  `json:"columns"`
	Status        Status    `json:"status"`
	IsCompatible  bool      `json:"is_compatible"`
	CreatedAt     time.Time `json:"created_at"`
}

// SchemaCompatibilityError is returned when a candidate version would drop
// or retype an exposed column of the currently active version.
type SchemaCompatibilityError struct {
	DatasetName string
	Violations  []string
}

func (e *SchemaCompatibilityError) Error() string {
	msg := "dataset: schema incompatible for " + e.DatasetName + ":"
	for _, v := range e.Violations {
		msg += " " + v + ";"
	}
	return msg
}
