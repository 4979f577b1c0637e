/*
store.go - Anomaly persistence contract

PURPOSE:
  The classifier and the review workflow only talk to this interface.
  Implementations:
  - store/sqlite/sqlite.go: SQLite, one transaction per ApplyDay
  - timekeeping/store/memory.go: in-memory, per-day lock

SERIALISATION:
  ApplyDay is the only write path for recompute. It must:
  1. Serialise concurrent calls for the same (employee, date)
  2. Hand fn the records currently stored for that key
  3. Apply fn's DayChanges atomically (all or none)

  UpdateAnomaly is a compare-and-swap on status, so a human decision and
  a recompute racing on the same record cannot lose either write.
*/
package anomaly

import (
	"context"

	"github.com/warp/attendance-engine/timekeeping"
)

// DayChanges is the write set produced for one (employee, date).
type DayChanges struct {
	Upserts []timekeeping.AnomalyRecord
	Deletes []timekeeping.AnomalyID
}

// IsEmpty reports whether there is nothing to write.
func (c DayChanges) IsEmpty() bool {
	return len(c.Upserts) == 0 && len(c.Deletes) == 0
}

// Store persists anomaly records.
type Store interface {
	// AnomaliesForDay returns every record of the employee for the date.
	AnomaliesForDay(ctx context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day) ([]timekeeping.AnomalyRecord, error)

	// Anomaly loads one record. Returns ErrAnomalyNotFound if absent.
	Anomaly(ctx context.Context, id timekeeping.AnomalyID) (*timekeeping.AnomalyRecord, error)

	// ListAnomalies returns records matching the filter, newest date first.
	ListAnomalies(ctx context.Context, filter Filter) ([]timekeeping.AnomalyRecord, error)

	// ApplyDay runs fn with the stored records of (employeeID, date) and
	// applies the returned changes atomically. If fn fails nothing is
	// written.
	ApplyDay(ctx context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day,
		fn func(existing []timekeeping.AnomalyRecord) (DayChanges, error)) error

	// UpdateAnomaly replaces a record if its stored status still equals
	// expected. Returns ErrConcurrentModification otherwise.
	UpdateAnomaly(ctx context.Context, record timekeeping.AnomalyRecord, expected timekeeping.AnomalyStatus) error
}

// =============================================================================
// FILTER
// =============================================================================

// Filter narrows ListAnomalies. Zero fields match everything.
type Filter struct {
	EmployeeID timekeeping.EmployeeID
	From       timekeeping.Day
	To         timekeeping.Day
	Status     timekeeping.AnomalyStatus
	Severity   timekeeping.Severity
	Type       timekeeping.DeviationKind
	Limit      int
}

// Matches applies the filter to one record.
func (f Filter) Matches(r timekeeping.AnomalyRecord) bool {
	switch {
	case f.EmployeeID != "" && r.EmployeeID != f.EmployeeID:
		return false
	case !f.From.IsZero() && r.Date.Before(f.From):
		return false
	case !f.To.IsZero() && r.Date.After(f.To):
		return false
	case f.Status != "" && r.Status != f.Status:
		return false
	case f.Severity != "" && r.Severity != f.Severity:
		return false
	case f.Type != 0 && r.Type != f.Type:
		return false
	}
	return true
}
