/*
ledger.go - Punch ledger reader

PURPOSE:
  Loads the raw clock events that belong to one logical workday and
  guards the ordering invariant before anything is reconciled.

WORKDAY WINDOW:
  A workday D spans 06:00 D to 06:00 D+1 in the configured civil zone.
  A night shift 20:00-00:30 therefore sees its 00:35 departure on D.

  Day D:   06:00 ─────────────────────────────── 24:00 ──── 06:00 (D+1)
           │ day shift │         │ night shift ─────────┤
           └──────────────── ledger window of D ────────┘

ORDERING:
  Punches come back ordered from the collaborator. A punch earlier than its
  predecessor is a ClockSkewError: the day is rejected, never reordered.

APPEND:
  Record() applies the same rule against the employee's latest punch, so a
  skewed device cannot write history out of order.

SEE ALSO:
  - store.go: PunchSource / PunchStore
  - interval.go: PairPunches consumes the window
*/
package timekeeping

import (
	"context"
	"fmt"
	"strings"
)

// PunchLedger reads and appends punches through the single clock policy.
type PunchLedger struct {
	Source PunchSource
	Clock  Clock
}

func NewPunchLedger(source PunchSource, clock Clock) *PunchLedger {
	return &PunchLedger{Source: source, Clock: clock}
}

// Window returns the punches of employeeID for workday d, ordered.
// Returns a *ClockSkewError if the collaborator hands back an out-of-order
// sequence.
func (l *PunchLedger) Window(ctx context.Context, employeeID EmployeeID, d Day) ([]PunchEvent, error) {
	from, to := l.Clock.LedgerWindow(d)
	events, err := l.Source.Punches(ctx, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load punches for %s on %s: %w", employeeID, d, err)
	}
	if err := CheckOrder(employeeID, events); err != nil {
		return nil, err
	}
	return events, nil
}

// WorkdayOf is the logical workday a punch belongs to.
func (l *PunchLedger) WorkdayOf(p PunchEvent) Day {
	d := l.Clock.DayOf(p.At)
	if l.Clock.MinuteOfDay(p.At) < LedgerDayStart {
		return d.AddDays(-1)
	}
	return d
}

// Record validates and appends a punch. The source must be a PunchStore.
func (l *PunchLedger) Record(ctx context.Context, p PunchEvent) error {
	store, ok := l.Source.(PunchStore)
	if !ok {
		return fmt.Errorf("punch source %T is read-only", l.Source)
	}
	if strings.TrimSpace(string(p.EmployeeID)) == "" || p.At.IsZero() || !p.Kind.Valid() {
		return ErrInvalidPunch
	}

	last, err := store.LastPunch(ctx, p.EmployeeID)
	if err != nil {
		return fmt.Errorf("failed to load last punch: %w", err)
	}
	if last != nil {
		if p.At.Before(last.At) {
			return &ClockSkewError{EmployeeID: p.EmployeeID, Previous: last.At, Punch: p.At}
		}
		if p.At.Equal(last.At) && p.Kind == last.Kind {
			return ErrDuplicatePunch
		}
	}
	return store.AppendPunch(ctx, p)
}
