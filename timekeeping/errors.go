/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Higher packages wrap these with context using fmt.Errorf("...: %w").

ERROR CATEGORIES:
  1. Ledger errors - malformed or skewed punch sequences
  2. Anomaly errors - review workflow violations
  3. Input errors - invalid periods, shifts, punches

RECOVERABILITY:
  ErrMalformedLedger           recoverable: salvage pairs, flag MissingPunch
  ErrClockSkew                 day rejected, never reordered
  ErrTerminalAnomalyConflict   logged by the classifier, never returned
  A missing shift is not an error at all: it routes to rest-day logic.

SEE ALSO:
  - interval.go: returns MalformedLedgerError
  - ledger.go: returns ClockSkewError
*/
package timekeeping

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedLedger is returned when punches cannot all be paired
	// (two consecutive arrivals, a stray departure).
	ErrMalformedLedger = errors.New("malformed punch ledger")

	// ErrClockSkew is returned when a punch is earlier than the previous
	// punch of the same employee.
	ErrClockSkew = errors.New("clock skew: punch earlier than previous punch")

	// ErrTerminalAnomalyConflict marks a recompute that targets a record a
	// human already processed.
	ErrTerminalAnomalyConflict = errors.New("anomaly already processed")

	// ErrAnomalyNotFound is returned when a referenced anomaly doesn't exist.
	ErrAnomalyNotFound = errors.New("anomaly not found")

	// ErrAnomalyAlreadyProcessed is returned when processing a terminal record.
	ErrAnomalyAlreadyProcessed = errors.New("anomaly is not pending")

	// ErrCommentRequired is returned when refusing without a comment.
	ErrCommentRequired = errors.New("comment is required to refuse an anomaly")

	// ErrInvalidAction is returned for an unknown process action.
	ErrInvalidAction = errors.New("invalid anomaly action")

	// ErrConcurrentModification is returned when a compare-and-swap fails.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidShift is returned for overlapping or malformed segments.
	ErrInvalidShift = errors.New("invalid shift")

	// ErrInvalidPunch is returned for a punch with missing fields.
	ErrInvalidPunch = errors.New("invalid punch")

	// ErrDuplicatePunch is returned when the same punch is recorded twice.
	ErrDuplicatePunch = errors.New("duplicate punch")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MalformedLedgerError lists the punches that could not be paired.
type MalformedLedgerError struct {
	Stray []PunchEvent
}

func (e *MalformedLedgerError) Error() string {
	return fmt.Sprintf("malformed punch ledger: %d unpaired punch(es)", len(e.Stray))
}

func (e *MalformedLedgerError) Unwrap() error { return ErrMalformedLedger }

// ClockSkewError identifies the out-of-order punch.
type ClockSkewError struct {
	EmployeeID EmployeeID
	Previous   time.Time
	Punch      time.Time
}

func (e *ClockSkewError) Error() string {
	return fmt.Sprintf("clock skew for %s: punch at %s precedes %s",
		e.EmployeeID, e.Punch.Format(time.RFC3339), e.Previous.Format(time.RFC3339))
}

func (e *ClockSkewError) Unwrap() error { return ErrClockSkew }

// ShiftError explains why a shift was rejected.
type ShiftError struct {
	EmployeeID EmployeeID
	Date       Day
	Reason     string
}

func (e *ShiftError) Error() string {
	return fmt.Sprintf("invalid shift for %s on %s: %s", e.EmployeeID, e.Date, e.Reason)
}

func (e *ShiftError) Unwrap() error { return ErrInvalidShift }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrClockSkew) ||
		errors.Is(err, ErrCommentRequired) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidShift) ||
		errors.Is(err, ErrInvalidPunch)
}

// IsConflict returns true if the request collides with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAnomalyAlreadyProcessed) ||
		errors.Is(err, ErrDuplicatePunch) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAnomalyNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}
