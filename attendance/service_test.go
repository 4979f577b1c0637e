package attendance_test

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/anomaly"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/timekeeping"
	"github.com/warp/attendance-engine/timekeeping/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	alice = timekeeping.EmployeeID("alice")
	bob   = timekeeping.EmployeeID("bob")
)

var monday = timekeeping.MustParseDay("2025-03-10")

func newService(t *testing.T) (*attendance.Service, *store.Memory) {
	t.Helper()
	clock, err := timekeeping.NewClock("Europe/Paris")
	require.NoError(t, err)
	mem := store.NewMemory()
	return attendance.NewService(mem, clock, reconcile.DefaultTolerances(), zerolog.Nop()), mem
}

func plan(t *testing.T, svc *attendance.Service, emp timekeeping.EmployeeID, d timekeeping.Day, segs ...timekeeping.WorkSegment) {
	t.Helper()
	require.NoError(t, svc.SaveShift(context.Background(), timekeeping.Shift{EmployeeID: emp, Date: d, Segments: segs}))
}

func work(start, end string) timekeeping.WorkSegment {
	return timekeeping.WorkSegment{Kind: timekeeping.SegmentWork, Start: timekeeping.MustClockTime(start), End: timekeeping.MustClockTime(end)}
}

func brk(start, end string) timekeeping.WorkSegment {
	return timekeeping.WorkSegment{Kind: timekeeping.SegmentBreak, Start: timekeeping.MustClockTime(start), End: timekeeping.MustClockTime(end)}
}

func punchAt(svc *attendance.Service, emp timekeeping.EmployeeID, d timekeeping.Day, hhmm string, kind timekeeping.PunchKind) timekeeping.PunchEvent {
	return timekeeping.PunchEvent{
		EmployeeID: emp,
		At:         svc.Clock().At(d, int(timekeeping.MustClockTime(hhmm))),
		Kind:       kind,
		Source:     "badge",
	}
}

func record(t *testing.T, svc *attendance.Service, emp timekeeping.EmployeeID, d timekeeping.Day, hhmm string, kind timekeeping.PunchKind) attendance.PunchResult {
	t.Helper()
	res, err := svc.RecordPunch(context.Background(), punchAt(svc, emp, d, hhmm, kind))
	require.NoError(t, err)
	return res
}

func in(t *testing.T, svc *attendance.Service, emp timekeeping.EmployeeID, d timekeeping.Day, hhmm string) {
	record(t, svc, emp, d, hhmm, timekeeping.PunchArrival)
}

func out(t *testing.T, svc *attendance.Service, emp timekeeping.EmployeeID, d timekeeping.Day, hhmm string) {
	record(t, svc, emp, d, hhmm, timekeeping.PunchDeparture)
}

func singleDay(d timekeeping.Day) timekeeping.Period { return timekeeping.Period{Start: d, End: d} }

// =============================================================================
// END-TO-END SCENARIOS
// =============================================================================

func TestService_CleanSplitShift_NoAnomalies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	plan(t, svc, alice, monday, work("09:00", "13:00"), work("14:00", "18:00"))
	in(t, svc, alice, monday, "09:00")
	out(t, svc, alice, monday, "13:00")
	in(t, svc, alice, monday, "14:00")
	out(t, svc, alice, monday, "18:00")

	rec, records, err := svc.Recompute(ctx, alice, monday)

	require.NoError(t, err)
	assert.Equal(t, 480, rec.WorkedMinutes)
	assert.Empty(t, rec.Deviations)
	assert.Empty(t, records)

	agg, err := svc.Aggregate(ctx, alice, singleDay(monday))
	require.NoError(t, err)
	assert.Equal(t, 100, agg.PresenceRate)
	assert.Equal(t, 100, agg.PunctualityRate)
}

func TestService_SkippedBreak_PersistsThreeAnomalies(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t)
	plan(t, svc, alice, monday, work("08:00", "12:00"), brk("12:00", "12:30"), work("12:30", "17:00"))
	in(t, svc, alice, monday, "08:00")
	out(t, svc, alice, monday, "17:00")

	stored, err := mem.AnomaliesForDay(ctx, alice, monday)
	require.NoError(t, err)

	types := make([]timekeeping.DeviationKind, 0, len(stored))
	for _, r := range stored {
		types = append(types, r.Type)
		assert.Equal(t, timekeeping.StatusPending, r.Status)
	}
	assert.ElementsMatch(t, []timekeeping.DeviationKind{
		timekeeping.BreakSkipped, timekeeping.AmplitudeViolation, timekeeping.Overtime,
	}, types)

	agg, err := svc.Aggregate(ctx, alice, singleDay(monday))
	require.NoError(t, err)
	assert.Equal(t, "0.50", agg.OvertimeHours.StringFixed(2))
}

func TestService_SickLeave_JustifiesAbsence(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	tuesday := monday.AddDays(1)
	plan(t, svc, alice, monday, work("09:00", "17:00"))
	plan(t, svc, alice, tuesday, work("09:00", "17:00"))
	_, err := svc.SaveLeave(ctx, leave.Period{EmployeeID: alice, Kind: leave.KindSick, Start: tuesday, End: tuesday, Status: leave.StatusApproved})
	require.NoError(t, err)
	in(t, svc, alice, monday, "09:00")
	out(t, svc, alice, monday, "17:00")

	rec, err := svc.ReconcileDay(ctx, alice, tuesday)
	require.NoError(t, err)
	assert.Equal(t, []timekeeping.DeviationKind{timekeeping.AbsenceJustified}, rec.Kinds())

	agg, err := svc.Aggregate(ctx, alice, timekeeping.Period{Start: monday, End: tuesday})
	require.NoError(t, err)
	assert.Equal(t, 2, agg.ScheduledDays)
	assert.Equal(t, 1, agg.PresentDays)
	assert.Equal(t, 1, agg.JustifiedAbsenceDays)
	assert.Equal(t, 100, agg.PunctualityRate)
}

func TestService_UnplannedPresence_CountsHoursNotSchedule(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	in(t, svc, alice, monday, "14:00")
	out(t, svc, alice, monday, "18:00")

	rec, err := svc.ReconcileDay(ctx, alice, monday)
	require.NoError(t, err)
	assert.Equal(t, 240, rec.WorkedMinutes)
	assert.True(t, rec.Has(timekeeping.UnplannedPresence))

	agg, err := svc.Aggregate(ctx, alice, singleDay(monday))
	require.NoError(t, err)
	assert.Equal(t, "4.00", agg.WorkedHours.StringFixed(2))
	assert.True(t, agg.PlannedHours.IsZero())
	assert.Equal(t, 0, agg.ScheduledDays)
	assert.Equal(t, 0, agg.PresenceRate)
}

func TestService_NightShift_DepartureAfterMidnightStaysOnWorkday(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t)
	plan(t, svc, alice, monday, work("20:00", "00:30"))
	in(t, svc, alice, monday, "20:05")

	// WHEN: the departure lands on the next calendar day
	res := record(t, svc, alice, monday.AddDays(1), "00:35", timekeeping.PunchDeparture)

	// THEN: it belongs to Monday's workday
	assert.Equal(t, monday, res.Workday)
	assert.Equal(t, 270, res.Reconciliation.WorkedMinutes)
	assert.Empty(t, res.Reconciliation.Deviations)
	stored, err := mem.AnomaliesForDay(ctx, alice, monday)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

// =============================================================================
// INGESTION
// =============================================================================

func TestService_RecordPunch_RejectsSkew(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	in(t, svc, alice, monday, "09:00")

	_, err := svc.RecordPunch(ctx, punchAt(svc, alice, monday, "08:30", timekeeping.PunchDeparture))

	assert.ErrorIs(t, err, timekeeping.ErrClockSkew)
	assert.True(t, timekeeping.IsClientError(err))
}

func TestService_RecordPunch_RejectsDuplicate(t *testing.T) {
	svc, _ := newService(t)
	in(t, svc, alice, monday, "09:00")

	_, err := svc.RecordPunch(context.Background(), punchAt(svc, alice, monday, "09:00", timekeeping.PunchArrival))

	assert.ErrorIs(t, err, timekeeping.ErrDuplicatePunch)
}

func TestService_RecordPunch_OpenDayIsMissingPunch(t *testing.T) {
	svc, _ := newService(t)
	plan(t, svc, alice, monday, work("09:00", "13:00"))

	res := record(t, svc, alice, monday, "09:00", timekeeping.PunchArrival)

	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, timekeeping.MissingPunch, res.Anomalies[0].Type)
	assert.NotEmpty(t, res.Punch.ID)

	// WHEN: the departure arrives, the pending MissingPunch disappears
	res = record(t, svc, alice, monday, "13:00", timekeeping.PunchDeparture)
	assert.Empty(t, res.Anomalies)
}

// =============================================================================
// FAILURE ISOLATION
// =============================================================================

func TestService_Aggregate_SkipsClockSkewDay(t *testing.T) {
	// GIVEN: a clean Monday and a Tuesday whose device wrote punches out of order
	ctx := context.Background()
	svc, mem := newService(t)
	tuesday := monday.AddDays(1)
	plan(t, svc, alice, monday, work("09:00", "17:00"))
	plan(t, svc, alice, tuesday, work("09:00", "17:00"))
	in(t, svc, alice, monday, "09:00")
	out(t, svc, alice, monday, "17:00")
	mem.SeedPunches(alice,
		punchAt(svc, alice, tuesday, "17:00", timekeeping.PunchDeparture),
		punchAt(svc, alice, tuesday, "09:00", timekeeping.PunchArrival),
	)

	// WHEN
	agg, err := svc.Aggregate(ctx, alice, timekeeping.Period{Start: monday, End: tuesday})

	// THEN: Tuesday is excluded, Monday still counts
	require.NoError(t, err)
	assert.Equal(t, []timekeeping.Day{tuesday}, agg.SkippedDays)
	assert.Equal(t, 1, agg.ScheduledDays)
	assert.Equal(t, 100, agg.PresenceRate)

	_, err = svc.ReconcileDay(ctx, alice, tuesday)
	assert.ErrorIs(t, err, timekeeping.ErrClockSkew)
}

func TestService_AggregateTeam_ParallelKeepsOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	svc.Concurrency = 2
	plan(t, svc, alice, monday, work("09:00", "17:00"))
	plan(t, svc, bob, monday, work("09:00", "17:00"))
	in(t, svc, alice, monday, "09:00")
	out(t, svc, alice, monday, "17:00")

	aggs, err := svc.AggregateTeam(ctx, nil, singleDay(monday))

	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, alice, aggs[0].EmployeeID)
	assert.Equal(t, 100, aggs[0].PresenceRate)
	assert.Equal(t, bob, aggs[1].EmployeeID)
	assert.Equal(t, 0, aggs[1].PresenceRate)
	assert.Equal(t, 1, aggs[1].UnjustifiedAbsenceDays)
}

func TestService_AggregateTeam_InvalidPeriod(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.AggregateTeam(context.Background(), []timekeeping.EmployeeID{alice}, timekeeping.Period{Start: monday, End: monday.AddDays(-1)})

	assert.ErrorIs(t, err, timekeeping.ErrInvalidPeriod)
}

func TestService_RecomputeRange(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t)
	tuesday := monday.AddDays(1)
	plan(t, svc, alice, monday, work("09:00", "17:00"))
	plan(t, svc, bob, monday, work("09:00", "17:00"))
	mem.SeedPunches(bob,
		punchAt(svc, bob, tuesday, "17:00", timekeeping.PunchDeparture),
		punchAt(svc, bob, tuesday, "09:00", timekeeping.PunchArrival),
	)

	sum, err := svc.RecomputeRange(ctx, nil, timekeeping.Period{Start: monday, End: tuesday})

	require.NoError(t, err)
	assert.Equal(t, 2, sum.Employees)
	assert.Equal(t, 3, sum.Days)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 2, sum.Anomalies, "one unjustified absence each on Monday")

	// Running it again changes nothing.
	before, err := svc.ListAnomalies(ctx, anomaly.Filter{})
	require.NoError(t, err)
	_, err = svc.RecomputeRange(ctx, nil, timekeeping.Period{Start: monday, End: tuesday})
	require.NoError(t, err)
	after, err := svc.ListAnomalies(ctx, anomaly.Filter{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// =============================================================================
// REVIEW AND PLANNING
// =============================================================================

func TestService_ProcessAnomaly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	plan(t, svc, alice, monday, work("09:00", "17:00"))
	_, records, err := svc.Recompute(ctx, alice, monday)
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = svc.ProcessAnomaly(ctx, records[0].ID, anomaly.ActionRefuse, "", "hr-1")
	assert.ErrorIs(t, err, timekeeping.ErrCommentRequired)

	processed, err := svc.ProcessAnomaly(ctx, records[0].ID, anomaly.ActionRefuse, "was on site visit", "hr-1")
	require.NoError(t, err)
	assert.Equal(t, timekeeping.StatusRefused, processed.Status)

	pending, err := svc.ListAnomalies(ctx, anomaly.Filter{Status: timekeeping.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestService_SaveShift_RejectsOverlap(t *testing.T) {
	svc, _ := newService(t)

	err := svc.SaveShift(context.Background(), timekeeping.Shift{
		EmployeeID: alice, Date: monday,
		Segments: []timekeeping.WorkSegment{work("09:00", "13:00"), brk("12:00", "13:00")},
	})

	assert.ErrorIs(t, err, timekeeping.ErrInvalidShift)
}

func TestService_SaveShift_RejectsStartInsideArrivalLead(t *testing.T) {
	svc, _ := newService(t)

	err := svc.SaveShift(context.Background(), timekeeping.Shift{
		EmployeeID: alice, Date: monday,
		Segments: []timekeeping.WorkSegment{work("06:00", "10:00"), brk("10:00", "10:30"), work("10:30", "14:00")},
	})

	assert.ErrorIs(t, err, timekeeping.ErrInvalidShift)
}

func TestService_EarliestShift_EarlyArrivalStaysOnItsWorkday(t *testing.T) {
	// GIVEN: the earliest accepted start, 06:30
	svc, _ := newService(t)
	plan(t, svc, alice, monday, work("06:30", "10:30"), brk("10:30", "11:00"), work("11:00", "14:30"))

	// WHEN: the employee badges in 25 minutes early
	first := record(t, svc, alice, monday, "06:05", timekeeping.PunchArrival)
	out(t, svc, alice, monday, "10:30")
	in(t, svc, alice, monday, "11:00")
	last := record(t, svc, alice, monday, "14:30", timekeeping.PunchDeparture)

	// THEN: the arrival belongs to the same workday and every minute counts
	assert.Equal(t, monday.String(), first.Workday.String())
	assert.Equal(t, 475, last.Reconciliation.WorkedMinutes)
	assert.Empty(t, last.Reconciliation.Deviations)
}

func TestService_Aggregate_UnknownEmployee(t *testing.T) {
	svc, _ := newService(t)
	plan(t, svc, alice, monday, work("09:00", "17:00"))

	_, err := svc.Aggregate(context.Background(), bob, singleDay(monday))

	assert.ErrorIs(t, err, timekeeping.ErrEmployeeNotFound)
	assert.True(t, timekeeping.IsNotFound(err))
}

func TestService_ClassifyAndUpsert_RejectsMismatchedDay(t *testing.T) {
	svc, _ := newService(t)
	rec := reconcile.DayReconciliation{EmployeeID: alice, Date: monday}

	_, err := svc.ClassifyAndUpsert(context.Background(), bob, monday, rec)

	assert.Error(t, err)
}

func TestService_UsesConfiguredZone(t *testing.T) {
	// A 09:00 Paris punch is 08:00 UTC in March; the service must read it as 09:00.
	svc, _ := newService(t)
	plan(t, svc, alice, monday, work("09:00", "13:00"))
	_, err := svc.RecordPunch(context.Background(), timekeeping.PunchEvent{
		EmployeeID: alice, Kind: timekeeping.PunchArrival,
		At: time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = svc.RecordPunch(context.Background(), timekeeping.PunchEvent{
		EmployeeID: alice, Kind: timekeeping.PunchDeparture,
		At: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	rec, err := svc.ReconcileDay(context.Background(), alice, monday)
	require.NoError(t, err)
	assert.Empty(t, rec.Deviations)
}
