/*
Package timekeeping provides the primitives of the attendance engine.

PURPOSE:
  This package holds the zone-safe time model (Day, ClockTime, Clock), the
  attendance data model (shifts, punches, deviations, anomaly records) and
  the interval utilities every other package builds on. It has no knowledge
  of tolerances, severity rules or persistence.

KEY CONCEPTS IN THIS FILE (types.go):
  - Shift / WorkSegment: Planned work for one employee and one workday
  - PunchEvent: A raw clock-in or clock-out instant
  - WorkInterval: A paired Arrival -> Departure
  - Deviation: One typed difference between plan and reality
  - AnomalyRecord: The persisted, reviewable form of a deviation

DESIGN PRINCIPLES:
  1. One clock: shift HH:MM values are civil times in ONE configured zone,
     punches are absolute instants; Clock is the only bridge between them.
  2. Closed enums: deviation kinds and severities are fixed sets.
  3. Type Safety: EmployeeID and AnomalyID cannot be mixed up.

SEE ALSO:
  - time.go: Day, ClockTime and Clock
  - interval.go: segment durations and punch pairing
  - ledger.go: loading the punch window of a workday
*/
package timekeeping

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type AnomalyID string
type PunchID string

// =============================================================================
// SHIFT - Planned work for one workday
// =============================================================================

type SegmentKind string

const (
	SegmentWork  SegmentKind = "work"  // Baseline planned time
	SegmentBreak SegmentKind = "break" // Planned unpaid pause
	SegmentExtra SegmentKind = "extra" // Pre-approved overtime, excluded from planned time
)

func (k SegmentKind) Valid() bool {
	return k == SegmentWork || k == SegmentBreak || k == SegmentExtra
}

// WorkSegment is one planned block. End < Start means it crosses midnight.
type WorkSegment struct {
	Kind  SegmentKind `json:"kind"`
	Start ClockTime   `json:"start"`
	End   ClockTime   `json:"end"`
}

// Shift is the plan for one employee on one logical workday.
// Segments are intended chronological but need not be contiguous.
type Shift struct {
	EmployeeID EmployeeID    `json:"employee_id"`
	Date       Day           `json:"date"`
	Segments   []WorkSegment `json:"segments"`
}

// =============================================================================
// PUNCH - Raw clock events
// =============================================================================

type PunchKind string

const (
	PunchArrival   PunchKind = "arrival"
	PunchDeparture PunchKind = "departure"
)

func (k PunchKind) Valid() bool { return k == PunchArrival || k == PunchDeparture }

// PunchEvent is one clock-in or clock-out. At is an absolute instant.
type PunchEvent struct {
	ID         PunchID    `json:"id"`
	EmployeeID EmployeeID `json:"employee_id"`
	At         time.Time  `json:"at"`
	Kind       PunchKind  `json:"kind"`
	Source     string     `json:"source,omitempty"` // badge, mobile, manual
}

// WorkInterval is a paired Arrival -> Departure.
type WorkInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Minutes is the interval length, truncated to whole minutes.
func (w WorkInterval) Minutes() int {
	d := w.End.Sub(w.Start)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// =============================================================================
// DEVIATION - Typed difference between plan and reality
// =============================================================================

// DeviationKind is a closed enum. Adding a kind requires a severity rule in
// reconcile.SeverityFor; TestSeverityFor_CoversEveryKind enforces it.
type DeviationKind int

const (
	LateArrival DeviationKind = iota + 1
	EarlyDeparture
	Overtime
	OutOfWindowArrival
	OutOfWindowDeparture
	AbsenceJustified
	AbsenceUnjustified
	UnplannedPresence
	MissingPunch
	ExcessiveBreak
	BreakSkipped
	AmplitudeViolation
)

var deviationTags = [...]string{
	LateArrival:          "late_arrival",
	EarlyDeparture:       "early_departure",
	Overtime:             "overtime",
	OutOfWindowArrival:   "out_of_window_arrival",
	OutOfWindowDeparture: "out_of_window_departure",
	AbsenceJustified:     "absence_justified",
	AbsenceUnjustified:   "absence_unjustified",
	UnplannedPresence:    "unplanned_presence",
	MissingPunch:         "missing_punch",
	ExcessiveBreak:       "excessive_break",
	BreakSkipped:         "break_skipped",
	AmplitudeViolation:   "amplitude_violation",
}

// AllDeviationKinds lists every kind in declaration order.
func AllDeviationKinds() []DeviationKind {
	kinds := make([]DeviationKind, 0, len(deviationTags)-1)
	for k := LateArrival; k <= AmplitudeViolation; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// String returns the stable storage tag.
func (k DeviationKind) String() string {
	if k < LateArrival || k > AmplitudeViolation {
		return fmt.Sprintf("deviation(%d)", int(k))
	}
	return deviationTags[k]
}

// ParseDeviationKind maps a storage tag back to the enum.
func ParseDeviationKind(tag string) (DeviationKind, error) {
	for k := LateArrival; k <= AmplitudeViolation; k++ {
		if deviationTags[k] == tag {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown deviation kind %q", tag)
}

func (k DeviationKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *DeviationKind) UnmarshalText(b []byte) error {
	v, err := ParseDeviationKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// IsPunctuality reports kinds that make a day count as "late".
func (k DeviationKind) IsPunctuality() bool {
	return k == LateArrival || k == EarlyDeparture
}

// Severity is the review tier ("gravité") of a deviation.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityAttention Severity = "attention"
	SeverityCritique  Severity = "critique"
	SeverityHorsPlage Severity = "hors_plage" // Needs manual review, not auto-classified
	SeverityAValider  Severity = "a_valider"  // Needs human approval before it is settled
)

// Rank orders severities for "most severe wins" merges.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityAttention:
		return 2
	case SeverityAValider:
		return 3
	case SeverityHorsPlage:
		return 4
	case SeverityCritique:
		return 5
	}
	return 0
}

// Deviation is one typed finding of the reconciliation engine.
type Deviation struct {
	Kind             DeviationKind `json:"kind"`
	MagnitudeMinutes int           `json:"magnitude_minutes"`
	SegmentRef       *int          `json:"segment_ref,omitempty"` // index into Shift.Segments
	Severity         Severity      `json:"severity"`
}

// =============================================================================
// ANOMALY RECORD - Persisted, reviewable deviation
// =============================================================================

type AnomalyStatus string

const (
	StatusPending   AnomalyStatus = "pending"
	StatusValidated AnomalyStatus = "validated"
	StatusRefused   AnomalyStatus = "refused"
	StatusCorrected AnomalyStatus = "corrected"
)

// IsTerminal reports whether a record has been processed by a human.
func (s AnomalyStatus) IsTerminal() bool {
	return s == StatusValidated || s == StatusRefused || s == StatusCorrected
}

// AnomalyDetails is the refreshable payload of a record.
type AnomalyDetails struct {
	MagnitudeMinutes int    `json:"magnitude_minutes"`
	SegmentRef       *int   `json:"segment_ref,omitempty"`
	Occurrences      int    `json:"occurrences"`
	PlannedMinutes   int    `json:"planned_minutes"`
	WorkedMinutes    int    `json:"worked_minutes"`
	Message          string `json:"message,omitempty"`
}

type AnomalyRecord struct {
	ID          AnomalyID      `json:"id"`
	EmployeeID  EmployeeID     `json:"employee_id"`
	Date        Day            `json:"date"`
	Type        DeviationKind  `json:"type"`
	Severity    Severity       `json:"severity"`
	Status      AnomalyStatus  `json:"status"`
	Details     AnomalyDetails `json:"details"`
	DedupeKey   string         `json:"dedupe_key"`
	Comment     string         `json:"comment,omitempty"`
	ProcessedBy string         `json:"processed_by,omitempty"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DedupeKey is the identity of an anomaly: one per (employee, date, type).
func DedupeKey(employeeID EmployeeID, date Day, kind DeviationKind) string {
	return strings.Join([]string{string(employeeID), date.String(), kind.String()}, "|")
}
