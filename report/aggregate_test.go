package report_test

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/timekeeping"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const emp = timekeeping.EmployeeID("emp-1")

var week = timekeeping.Period{
	Start: timekeeping.MustParseDay("2025-03-10"),
	End:   timekeeping.MustParseDay("2025-03-16"),
}

func date(offset int) timekeeping.Day { return week.Start.AddDays(offset) }

func scheduled(offset, planned, worked int, devs ...timekeeping.DeviationKind) reconcile.DayReconciliation {
	rec := reconcile.DayReconciliation{
		EmployeeID:      emp,
		Date:            date(offset),
		Scheduled:       true,
		PlannedMinutes:  planned,
		WorkedMinutes:   worked,
		OvertimeMinutes: max(0, worked-planned),
	}
	for _, k := range devs {
		rec.Deviations = append(rec.Deviations, timekeeping.Deviation{Kind: k})
	}
	return rec
}

func unplanned(offset, worked int) reconcile.DayReconciliation {
	return reconcile.DayReconciliation{
		EmployeeID:      emp,
		Date:            date(offset),
		WorkedMinutes:   worked,
		OvertimeMinutes: worked,
		Deviations:      []timekeeping.Deviation{{Kind: timekeeping.UnplannedPresence}},
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// KPI TESTS
// =============================================================================

func TestAggregate_PerfectDay(t *testing.T) {
	agg := report.Aggregate(emp, week, []reconcile.DayReconciliation{scheduled(0, 480, 480)}, nil)

	assert.Equal(t, 100, agg.PresenceRate)
	assert.Equal(t, 100, agg.PunctualityRate)
	assert.True(t, dec("8").Equal(agg.PlannedHours))
	assert.True(t, dec("8").Equal(agg.WorkedHours))
	assert.True(t, agg.MissingHours.IsZero())
	assert.True(t, dec("8").Equal(agg.AvgHoursPerDay))
}

func TestAggregate_JustifiedAbsence_CountsScheduledNotPunctuality(t *testing.T) {
	// GIVEN: one worked day and one day on approved leave
	days := []reconcile.DayReconciliation{
		scheduled(0, 480, 480),
		scheduled(1, 480, 0, timekeeping.AbsenceJustified),
	}

	agg := report.Aggregate(emp, week, days, nil)

	assert.Equal(t, 2, agg.ScheduledDays)
	assert.Equal(t, 1, agg.PresentDays)
	assert.Equal(t, 1, agg.JustifiedAbsenceDays)
	assert.Equal(t, 50, agg.PresenceRate)
	assert.Equal(t, 100, agg.PunctualityRate, "absent day is not in the punctuality denominator")
}

func TestAggregate_UnplannedPresence_WorkedButNotPlanned(t *testing.T) {
	days := []reconcile.DayReconciliation{
		scheduled(0, 480, 480),
		unplanned(5, 240),
	}

	agg := report.Aggregate(emp, week, days, nil)

	assert.True(t, dec("8").Equal(agg.PlannedHours))
	assert.True(t, dec("12").Equal(agg.WorkedHours))
	assert.Equal(t, 1, agg.ScheduledDays)
	assert.Equal(t, 2, agg.PresentDays)
	assert.Equal(t, 100, agg.PresenceRate, "capped even though present > scheduled")
	assert.True(t, dec("6").Equal(agg.AvgHoursPerDay))
}

func TestAggregate_LateDaysAreDistinctDays(t *testing.T) {
	days := []reconcile.DayReconciliation{
		scheduled(0, 480, 470, timekeeping.LateArrival, timekeeping.LateArrival, timekeeping.EarlyDeparture),
		scheduled(1, 480, 480),
		scheduled(2, 480, 480),
	}

	agg := report.Aggregate(emp, week, days, nil)

	assert.Equal(t, 1, agg.LateDays)
	assert.Equal(t, 67, agg.PunctualityRate)
}

func TestAggregate_ZeroDenominators(t *testing.T) {
	// GIVEN: a week with nothing scheduled and nothing worked
	agg := report.Aggregate(emp, week, nil, nil)

	assert.Equal(t, 0, agg.PresenceRate)
	assert.Equal(t, 0, agg.PunctualityRate)
	assert.True(t, agg.AvgHoursPerDay.IsZero())
}

func TestAggregate_UnjustifiedAbsence_MissingHours(t *testing.T) {
	days := []reconcile.DayReconciliation{
		scheduled(0, 480, 450),
		scheduled(1, 480, 0, timekeeping.AbsenceUnjustified),
	}

	agg := report.Aggregate(emp, week, days, nil)

	assert.Equal(t, 1, agg.UnjustifiedAbsenceDays)
	assert.True(t, dec("8.5").Equal(agg.MissingHours))
}

func TestAggregate_HoursRoundedToTwoDecimals(t *testing.T) {
	agg := report.Aggregate(emp, week, []reconcile.DayReconciliation{scheduled(0, 480, 475)}, nil)

	assert.Equal(t, "7.92", agg.WorkedHours.StringFixed(2))
	assert.Equal(t, "0.08", agg.MissingHours.StringFixed(2))
}

func TestAggregate_IgnoresDaysOutsidePeriod(t *testing.T) {
	agg := report.Aggregate(emp, week, []reconcile.DayReconciliation{scheduled(7, 480, 480)}, nil)

	assert.Equal(t, 0, agg.ScheduledDays)
	assert.True(t, agg.WorkedHours.IsZero())
}

func TestAggregate_Properties(t *testing.T) {
	// presenceRate stays in [0,100] and lateDays never exceeds presentDays
	cases := [][]reconcile.DayReconciliation{
		{unplanned(0, 60), unplanned(1, 60), scheduled(2, 480, 480, timekeeping.LateArrival)},
		{scheduled(0, 480, 0, timekeeping.AbsenceUnjustified), scheduled(1, 480, 0, timekeeping.AbsenceUnjustified)},
		{scheduled(0, 480, 0, timekeeping.LateArrival), scheduled(1, 480, 300, timekeeping.EarlyDeparture)},
	}
	for _, days := range cases {
		agg := report.Aggregate(emp, week, days, nil)
		assert.GreaterOrEqual(t, agg.PresenceRate, 0)
		assert.LessOrEqual(t, agg.PresenceRate, 100)
		assert.LessOrEqual(t, agg.LateDays, agg.PresentDays)
		assert.GreaterOrEqual(t, agg.PunctualityRate, 0)
	}
}

func TestAggregate_SkippedDaysCarried(t *testing.T) {
	skipped := []timekeeping.Day{date(3)}
	agg := report.Aggregate(emp, week, nil, skipped)
	assert.Equal(t, skipped, agg.SkippedDays)
}

// =============================================================================
// RENDERING
// =============================================================================

func TestRenderAggregates(t *testing.T) {
	agg := report.Aggregate(emp, week, []reconcile.DayReconciliation{scheduled(0, 480, 480)}, nil)
	var buf bytes.Buffer

	require.NoError(t, report.RenderAggregates(&buf, []report.PeriodAggregate{agg}))

	out := buf.String()
	assert.Contains(t, out, "emp-1")
	assert.Contains(t, out, "8.00")
}

func TestRenderDay(t *testing.T) {
	color.NoColor = true
	seg := 1
	rec := reconcile.DayReconciliation{Deviations: []timekeeping.Deviation{
		{Kind: timekeeping.BreakSkipped, MagnitudeMinutes: 30, SegmentRef: &seg, Severity: timekeeping.SeverityAttention},
	}}
	var buf bytes.Buffer

	require.NoError(t, report.RenderDay(&buf, rec))

	assert.Contains(t, buf.String(), "break_skipped")
	assert.Contains(t, buf.String(), "attention")
}
