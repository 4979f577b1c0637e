/*
Package reconcile compares one planned workday with what was punched.

PURPOSE:
  Given an optional shift, the punches of the workday window and an
  optional covering leave, produce a DayReconciliation: planned, worked and
  overtime minutes plus the typed deviations between plan and reality.

PURITY:
  Reconcile has no side effects and reads no ambient state. Every
  time-of-day value goes through the engine's Clock, so the same inputs
  always produce the same result on any machine.

DECISION FLOW:
  shift?  punches?  leave?   outcome
  no      no        -        rest day, nothing to report
  yes     no        yes      AbsenceJustified
  yes     no        no       AbsenceUnjustified
  no      yes       -        UnplannedPresence (time still counts as worked)
  yes     yes       -        arrival, departure, breaks, amplitude, overtime

ARRIVAL (diff = actual - planned start):
  diff < -early ceiling            OutOfWindowArrival
  grace < diff <= late ceiling     LateArrival
  diff > late ceiling              OutOfWindowArrival

DEPARTURE (diff = actual - planned end of the last Work/Extra block):
  early > early ceiling            OutOfWindowDeparture
  early > grace                    EarlyDeparture
  late  > late ceiling             OutOfWindowDeparture
  late  > overtime grace           Overtime

BREAKS:
  Planned break inside one continuous interval -> BreakSkipped, unless a
  punch gap starts within BreakShiftCeiling of it (break taken off-plan).
  Skipped break minutes remain worked and surface as overtime. Any
  interval longer than MaxContinuousWorkMinutes -> AmplitudeViolation. A
  taken break longer than planned beyond grace -> ExcessiveBreak; the
  overrun is simply not worked time and shows up as missing hours.

SEE ALSO:
  - severity.go: the severity table
  - tolerance.go: thresholds
*/
package reconcile

import (
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/timekeeping"
)

// Input is everything the engine needs for one employee and one workday.
type Input struct {
	EmployeeID timekeeping.EmployeeID
	Date       timekeeping.Day
	Shift      *timekeeping.Shift
	Punches    []timekeeping.PunchEvent // ordered, over the ledger window
	Leave      *leave.Period
}

// DayReconciliation is the derived, unpersisted result for one workday.
type DayReconciliation struct {
	EmployeeID      timekeeping.EmployeeID     `json:"employee_id"`
	Date            timekeeping.Day            `json:"date"`
	Scheduled       bool                       `json:"scheduled"`
	OnLeave         bool                       `json:"on_leave"`
	PlannedMinutes  int                        `json:"planned_minutes"`
	ExtraMinutes    int                        `json:"extra_minutes"`
	WorkedMinutes   int                        `json:"worked_minutes"`
	OvertimeMinutes int                        `json:"overtime_minutes"`
	UnpairedPunches int                        `json:"unpaired_punches"`
	Intervals       []timekeeping.WorkInterval `json:"intervals"`
	Deviations      []timekeeping.Deviation    `json:"deviations"`
}

// Has reports whether a deviation of the given kind was found.
func (r DayReconciliation) Has(kind timekeeping.DeviationKind) bool {
	for _, d := range r.Deviations {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// Kinds lists deviation kinds in emission order.
func (r DayReconciliation) Kinds() []timekeeping.DeviationKind {
	kinds := make([]timekeeping.DeviationKind, len(r.Deviations))
	for i, d := range r.Deviations {
		kinds[i] = d.Kind
	}
	return kinds
}

// Engine reconciles workdays under one clock and one set of tolerances.
type Engine struct {
	Clock      timekeeping.Clock
	Tolerances Tolerances
}

func NewEngine(clock timekeeping.Clock, tol Tolerances) *Engine {
	return &Engine{Clock: clock, Tolerances: tol}
}

// Reconcile computes the DayReconciliation for in. It fails only on
// unordered punches (ClockSkewError); a malformed sequence is salvaged and
// reported as MissingPunch.
func (e *Engine) Reconcile(in Input) (DayReconciliation, error) {
	if err := timekeeping.CheckOrder(in.EmployeeID, in.Punches); err != nil {
		return DayReconciliation{}, err
	}

	b := &dayBuilder{
		engine: e,
		rec: DayReconciliation{
			EmployeeID: in.EmployeeID,
			Date:       in.Date,
			Scheduled:  in.Shift != nil,
			OnLeave:    in.Leave != nil && in.Leave.Covers(in.Date),
			Deviations: []timekeeping.Deviation{},
		},
	}

	if in.Shift != nil {
		for _, seg := range in.Shift.Segments {
			switch seg.Kind {
			case timekeeping.SegmentWork:
				b.rec.PlannedMinutes += timekeeping.SegmentMinutes(seg)
			case timekeeping.SegmentExtra:
				b.rec.ExtraMinutes += timekeeping.SegmentMinutes(seg)
			}
		}
	}

	// Salvage whatever pairs exist; a malformed ledger surfaces as MissingPunch.
	intervals, unpaired, _ := timekeeping.PairPunches(in.Punches)
	b.rec.Intervals = intervals
	b.rec.UnpairedPunches = len(unpaired)
	b.rec.WorkedMinutes = timekeeping.TotalMinutes(intervals)

	switch {
	case in.Shift == nil && len(in.Punches) == 0:
		// Rest day.

	case in.Shift != nil && len(in.Punches) == 0:
		if b.rec.OnLeave {
			b.add(timekeeping.AbsenceJustified, b.rec.PlannedMinutes, nil)
		} else {
			b.add(timekeeping.AbsenceUnjustified, b.rec.PlannedMinutes, nil)
		}

	case in.Shift == nil:
		b.add(timekeeping.UnplannedPresence, b.rec.WorkedMinutes, nil)
		b.checkAmplitude()
		b.checkMissingPunch()

	default:
		spans := timekeeping.Layout(in.Shift.Segments)
		actual := b.actualSpans()
		b.checkArrival(in.Shift.Segments, spans, actual)
		b.checkDeparture(in.Shift.Segments, spans, actual)
		b.checkBreaks(in.Shift.Segments, spans, actual)
		b.checkAmplitude()
		b.checkMissingPunch()
	}

	b.rec.OvertimeMinutes = max(0, b.rec.WorkedMinutes-b.rec.PlannedMinutes-b.rec.ExtraMinutes)
	if in.Shift != nil && b.rec.OvertimeMinutes >= e.Tolerances.DailyOvertimeThreshold &&
		!b.rec.Has(timekeeping.Overtime) && !b.rec.Has(timekeeping.OutOfWindowDeparture) {
		b.add(timekeeping.Overtime, b.rec.OvertimeMinutes, nil)
	}

	if b.err != nil {
		return DayReconciliation{}, b.err
	}
	return b.rec, nil
}

// =============================================================================
// DAY BUILDER
// =============================================================================

type dayBuilder struct {
	engine *Engine
	rec    DayReconciliation
	err    error
}

func (b *dayBuilder) add(kind timekeeping.DeviationKind, magnitude int, segment *int) {
	sev, err := SeverityFor(kind, magnitude, b.engine.Tolerances)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return
	}
	b.rec.Deviations = append(b.rec.Deviations, timekeeping.Deviation{
		Kind:             kind,
		MagnitudeMinutes: magnitude,
		SegmentRef:       segment,
		Severity:         sev,
	})
}

// actualSpans maps worked intervals onto the civil timeline of the workday.
func (b *dayBuilder) actualSpans() []timekeeping.Span {
	clock := b.engine.Clock
	spans := make([]timekeeping.Span, len(b.rec.Intervals))
	for i, iv := range b.rec.Intervals {
		spans[i] = timekeeping.Span{
			Start: clock.MinutesFrom(b.rec.Date, iv.Start),
			End:   clock.MinutesFrom(b.rec.Date, iv.End),
		}
	}
	return spans
}

func (b *dayBuilder) checkArrival(segs []timekeeping.WorkSegment, planned, actual []timekeeping.Span) {
	first := firstOfKind(segs, timekeeping.SegmentWork)
	if first < 0 || len(actual) == 0 {
		return
	}
	tol := b.engine.Tolerances
	diff := actual[0].Start - planned[first].Start
	ref := intPtr(first)

	switch {
	case diff > tol.ArrivalLateCeiling || diff < -tol.ArrivalEarlyCeiling:
		b.add(timekeeping.OutOfWindowArrival, abs(diff), ref)
	case diff > tol.LateArrivalGrace:
		b.add(timekeeping.LateArrival, diff, ref)
	}
}

func (b *dayBuilder) checkDeparture(segs []timekeeping.WorkSegment, planned, actual []timekeeping.Span) {
	last := -1
	for i, seg := range segs {
		if seg.Kind == timekeeping.SegmentWork || seg.Kind == timekeeping.SegmentExtra {
			last = i
		}
	}
	if last < 0 || len(actual) == 0 {
		return
	}
	tol := b.engine.Tolerances
	diff := actual[len(actual)-1].End - planned[last].End
	ref := intPtr(last)

	switch {
	case -diff > tol.DepartureEarlyCeiling:
		b.add(timekeeping.OutOfWindowDeparture, -diff, ref)
	case -diff > tol.EarlyDepartureGrace:
		b.add(timekeeping.EarlyDeparture, -diff, ref)
	case diff > tol.DepartureLateCeiling:
		b.add(timekeeping.OutOfWindowDeparture, diff, ref)
	case diff > tol.OvertimeGrace:
		b.add(timekeeping.Overtime, diff, ref)
	}
}

func (b *dayBuilder) checkBreaks(segs []timekeeping.WorkSegment, planned, actual []timekeeping.Span) {
	tol := b.engine.Tolerances
	for i, seg := range segs {
		if seg.Kind != timekeeping.SegmentBreak {
			continue
		}
		brk := planned[i]
		ref := intPtr(i)

		var (
			gap timekeeping.Span
			ok  bool
		)
		if coveredByOne(actual, brk) {
			// The break may have been taken off-plan.
			gap, ok = shiftedBreak(actual, brk, planned, segs, tol.BreakShiftCeiling)
			if !ok {
				b.add(timekeeping.BreakSkipped, brk.Minutes(), ref)
				continue
			}
		} else if gap, ok = takenBreak(actual, brk); !ok {
			continue
		}
		if overrun := gap.Minutes() - brk.Minutes(); overrun > tol.BreakGrace {
			b.add(timekeeping.ExcessiveBreak, overrun, ref)
		}
	}
}

func (b *dayBuilder) checkAmplitude() {
	longest := 0
	for _, iv := range b.rec.Intervals {
		longest = max(longest, iv.Minutes())
	}
	if longest > MaxContinuousWorkMinutes {
		b.add(timekeeping.AmplitudeViolation, longest, nil)
	}
}

func (b *dayBuilder) checkMissingPunch() {
	if b.rec.UnpairedPunches > 0 {
		b.add(timekeeping.MissingPunch, 0, nil)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// coveredByOne reports whether a single worked span covers the whole break.
func coveredByOne(actual []timekeeping.Span, brk timekeeping.Span) bool {
	for _, s := range actual {
		if s.Start <= brk.Start && s.End >= brk.End {
			return true
		}
	}
	return false
}

// takenBreak returns the punch gap that overlaps the planned break the most.
func takenBreak(actual []timekeeping.Span, brk timekeeping.Span) (timekeeping.Span, bool) {
	var (
		best    timekeeping.Span
		overlap int
		found   bool
	)
	for i := 0; i+1 < len(actual); i++ {
		gap := timekeeping.Span{Start: actual[i].End, End: actual[i+1].Start}
		if gap.Minutes() <= 0 || !timekeeping.Overlaps(gap, brk) {
			continue
		}
		o := min(gap.End, brk.End) - max(gap.Start, brk.Start)
		if !found || o > overlap {
			best, overlap, found = gap, o, true
		}
	}
	return best, found
}

// shiftedBreak returns the punch gap closest to the planned break whose start
// is at most within minutes away from it. Gaps overlapping another planned
// break belong to that break.
func shiftedBreak(actual []timekeeping.Span, brk timekeeping.Span, planned []timekeeping.Span, segs []timekeeping.WorkSegment, within int) (timekeeping.Span, bool) {
	var (
		best  timekeeping.Span
		dist  int
		found bool
	)
	for i := 0; i+1 < len(actual); i++ {
		gap := timekeeping.Span{Start: actual[i].End, End: actual[i+1].Start}
		if gap.Minutes() <= 0 || overlapsOtherBreak(gap, brk, planned, segs) {
			continue
		}
		d := abs(gap.Start - brk.Start)
		if d > within {
			continue
		}
		if !found || d < dist {
			best, dist, found = gap, d, true
		}
	}
	return best, found
}

func overlapsOtherBreak(gap, brk timekeeping.Span, planned []timekeeping.Span, segs []timekeeping.WorkSegment) bool {
	for i, seg := range segs {
		if seg.Kind == timekeeping.SegmentBreak && planned[i] != brk && timekeeping.Overlaps(gap, planned[i]) {
			return true
		}
	}
	return false
}

func firstOfKind(segs []timekeeping.WorkSegment, kind timekeeping.SegmentKind) int {
	for i, seg := range segs {
		if seg.Kind == kind {
			return i
		}
	}
	return -1
}

func intPtr(i int) *int { return &i }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
