package timekeeping

import "time"

// =============================================================================
// PERIOD - Inclusive range of workdays
// =============================================================================

// Period is an inclusive [Start, End] range of days, the unit every KPI is
// aggregated over.
//
// Examples:
//   - Payroll month: 2025-03-01 .. 2025-03-31
//   - Compliance week: Monday .. Sunday
type Period struct {
	Start Day `json:"start"`
	End   Day `json:"end"`
}

// NewPeriod validates and builds a period.
func NewPeriod(start, end Day) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// MonthPeriod is one calendar month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{
		Start: StartOfMonth(year, month),
		End:   EndOfMonth(year, month),
	}
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if the day is within [Start, End].
func (p Period) Contains(d Day) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns all days in the period in order.
func (p Period) Days() []Day {
	var days []Day
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Len is the number of days in the period.
func (p Period) Len() int {
	return DaysBetween(p.Start, p.End) + 1
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
