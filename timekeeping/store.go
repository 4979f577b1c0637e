/*
store.go - Collaborator interfaces for schedules and punches

PURPOSE:
  Defines the boundary between the engine and whatever persists shifts and
  clock events. Implementations:
  - store/sqlite/sqlite.go: SQLite
  - timekeeping/store/memory.go: In-memory for tests and demos

TIMEOUTS:
  The engine never times out on its own. Deadlines travel on the context
  handed to these collaborators.

SEE ALSO:
  - ledger.go: PunchLedger, built on PunchSource/PunchStore
  - anomaly/store.go: anomaly persistence contract
*/
package timekeeping

import (
	"context"
	"time"
)

// ShiftProvider supplies planned shifts. A nil shift with a nil error means
// nothing is planned that day (rest day or unplanned presence).
type ShiftProvider interface {
	Shift(ctx context.Context, employeeID EmployeeID, date Day) (*Shift, error)
}

// ShiftStore persists shifts.
type ShiftStore interface {
	ShiftProvider
	SaveShift(ctx context.Context, shift Shift) error
}

// PunchSource loads punches with At in [from, to), ordered by At.
type PunchSource interface {
	Punches(ctx context.Context, employeeID EmployeeID, from, to time.Time) ([]PunchEvent, error)
}

// PunchStore is a PunchSource that also accepts new punches.
type PunchStore interface {
	PunchSource

	// LastPunch returns the most recent punch of the employee, or nil.
	LastPunch(ctx context.Context, employeeID EmployeeID) (*PunchEvent, error)

	// AppendPunch persists a punch. Returns ErrDuplicatePunch if the same
	// (employee, instant, kind) already exists.
	AppendPunch(ctx context.Context, punch PunchEvent) error
}

// EmployeeLister enumerates employees for batch recomputation.
type EmployeeLister interface {
	EmployeeIDs(ctx context.Context) ([]EmployeeID, error)
}
