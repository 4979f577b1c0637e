package timekeeping

import "time"

// =============================================================================
// SEGMENT ARITHMETIC
// =============================================================================

// SegmentMinutes is the planned length of a segment, wrapping past midnight
// when End < Start. Always in [0, 1440).
func SegmentMinutes(seg WorkSegment) int {
	return ((int(seg.End)-int(seg.Start))%MinutesPerDay + MinutesPerDay) % MinutesPerDay
}

// Span is a half-open range of civil minutes on a workday timeline, where 0
// is midnight of the workday and values past 1440 fall on the next day.
type Span struct {
	Start int
	End   int
}

func (s Span) Minutes() int { return s.End - s.Start }

// Overlaps reports whether two spans share at least one minute.
func Overlaps(a, b Span) bool {
	return a.Start < b.End && b.Start < a.End
}

// Layout places segments on the workday timeline in order. A segment that
// starts earlier than the previous one ended is moved to the next day, so a
// shift like 20:00-00:30 + 01:00-04:00 lays out as [1200,1470) [1500,1680).
func Layout(segments []WorkSegment) []Span {
	spans := make([]Span, len(segments))
	offset := 0
	prevEnd := -1
	for i, seg := range segments {
		start := int(seg.Start) + offset
		if start < prevEnd {
			offset += MinutesPerDay
			start += MinutesPerDay
		}
		end := start + SegmentMinutes(seg)
		spans[i] = Span{Start: start, End: end}
		prevEnd = end
	}
	return spans
}

// ValidateShift checks kinds and rejects overlapping segments. Overlap is a
// schedule-entry concern; the reconciliation engine never calls this.
//
// arrivalLead is how early an arrival may be punched before the first
// segment. The whole lead must fall inside the workday's ledger window, so a
// shift cannot start before 06:00 plus arrivalLead; otherwise an early
// arrival would be read as part of the previous workday.
func ValidateShift(s Shift, arrivalLead int) error {
	for _, seg := range s.Segments {
		if !seg.Kind.Valid() {
			return &ShiftError{EmployeeID: s.EmployeeID, Date: s.Date, Reason: "unknown segment kind " + string(seg.Kind)}
		}
		if seg.Start == seg.End {
			return &ShiftError{EmployeeID: s.EmployeeID, Date: s.Date, Reason: "empty segment at " + seg.Start.String()}
		}
	}
	spans := Layout(s.Segments)
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			if Overlaps(spans[i], spans[j]) {
				return &ShiftError{
					EmployeeID: s.EmployeeID,
					Date:       s.Date,
					Reason:     "segments " + s.Segments[i].Start.String() + " and " + s.Segments[j].Start.String() + " overlap",
				}
			}
		}
	}
	if len(spans) > 0 && spans[0].Start < LedgerDayStart+arrivalLead {
		return &ShiftError{
			EmployeeID: s.EmployeeID,
			Date:       s.Date,
			Reason:     "shift starts before " + ClockTime(LedgerDayStart+arrivalLead).String() + ", early arrivals would fall in the previous workday",
		}
	}
	if len(spans) > 0 && spans[len(spans)-1].End > MinutesPerDay+LedgerDayStart {
		return &ShiftError{EmployeeID: s.EmployeeID, Date: s.Date, Reason: "shift runs past 06:00 of the next day"}
	}
	return nil
}

// =============================================================================
// PUNCH PAIRING
// =============================================================================

// PairPunches greedily pairs each Arrival with the next Departure. Events
// must be ordered by time.
//
// Returns the salvaged intervals, the punches left unpaired, and a
// *MalformedLedgerError when the sequence itself is broken (two consecutive
// arrivals, a departure with no open arrival). A single trailing arrival is
// an open interval, not a malformed ledger: it is returned in unpaired with
// a nil error and reported by the caller as a MissingPunch.
func PairPunches(events []PunchEvent) ([]WorkInterval, []PunchEvent, error) {
	var (
		intervals []WorkInterval
		stray     []PunchEvent
		open      *PunchEvent
	)

	for i := range events {
		ev := events[i]
		switch ev.Kind {
		case PunchArrival:
			if open != nil {
				stray = append(stray, *open)
			}
			open = &ev
		case PunchDeparture:
			if open == nil {
				stray = append(stray, ev)
				continue
			}
			intervals = append(intervals, WorkInterval{Start: open.At, End: ev.At})
			open = nil
		default:
			stray = append(stray, ev)
		}
	}

	unpaired := append([]PunchEvent(nil), stray...)
	if open != nil {
		unpaired = append(unpaired, *open)
	}

	if len(stray) > 0 {
		return intervals, unpaired, &MalformedLedgerError{Stray: stray}
	}
	return intervals, unpaired, nil
}

// TotalMinutes sums interval lengths.
func TotalMinutes(intervals []WorkInterval) int {
	total := 0
	for _, iv := range intervals {
		total += iv.Minutes()
	}
	return total
}

// CheckOrder returns a *ClockSkewError for the first punch that is earlier
// than its predecessor. Equal instants are accepted.
func CheckOrder(employeeID EmployeeID, events []PunchEvent) error {
	var prev time.Time
	for i, ev := range events {
		if i > 0 && ev.At.Before(prev) {
			return &ClockSkewError{EmployeeID: employeeID, Previous: prev, Punch: ev.At}
		}
		prev = ev.At
	}
	return nil
}
