package anomaly_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/anomaly"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/timekeeping"
	"github.com/warp/attendance-engine/timekeeping/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const emp = timekeeping.EmployeeID("emp-1")

var day = timekeeping.MustParseDay("2025-03-10")

func dev(kind timekeeping.DeviationKind, magnitude int, sev timekeeping.Severity) timekeeping.Deviation {
	return timekeeping.Deviation{Kind: kind, MagnitudeMinutes: magnitude, Severity: sev}
}

func dayRec(devs ...timekeeping.Deviation) reconcile.DayReconciliation {
	return reconcile.DayReconciliation{
		EmployeeID:     emp,
		Date:           day,
		Scheduled:      true,
		PlannedMinutes: 480,
		WorkedMinutes:  465,
		Deviations:     devs,
	}
}

// fixedClock returns a Now func that advances one minute per call.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, time.March, 11, 2, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

func newClassifier(s anomaly.Store, log zerolog.Logger) *anomaly.Classifier {
	c := anomaly.NewClassifier(s, log)
	c.Now = fixedClock()
	return c
}

// =============================================================================
// UPSERT
// =============================================================================

func TestClassify_CreatesPendingRecords(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	c := newClassifier(mem, zerolog.Nop())

	records, err := c.ClassifyAndUpsert(ctx, dayRec(
		dev(timekeeping.LateArrival, 15, timekeeping.SeverityAttention),
		dev(timekeeping.Overtime, 45, timekeeping.SeverityInfo),
	))

	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, timekeeping.StatusPending, r.Status)
		_, err := uuid.Parse(string(r.ID))
		assert.NoError(t, err, "ids are uuids")
		assert.Equal(t, timekeeping.DedupeKey(emp, day, r.Type), r.DedupeKey)
	}
	assert.Equal(t, timekeeping.SeverityAttention, records[0].Severity, "severity copied from deviation")
	assert.Equal(t, 15, records[0].Details.MagnitudeMinutes)
	assert.Equal(t, 480, records[0].Details.PlannedMinutes)

	stored, err := mem.AnomaliesForDay(ctx, emp, day)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestClassify_Idempotent(t *testing.T) {
	// GIVEN: the same reconciliation classified twice
	ctx := context.Background()
	mem := store.NewMemory()
	c := newClassifier(mem, zerolog.Nop())
	rec := dayRec(dev(timekeeping.LateArrival, 15, timekeeping.SeverityAttention))

	first, err := c.ClassifyAndUpsert(ctx, rec)
	require.NoError(t, err)

	// WHEN
	second, err := c.ClassifyAndUpsert(ctx, rec)
	require.NoError(t, err)

	// THEN: identical records, nothing rewritten
	assert.Equal(t, first, second)
	stored, err := mem.AnomaliesForDay(ctx, emp, day)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, first[0].UpdatedAt, stored[0].UpdatedAt)
}

func TestClassify_RefreshesPending_KeepsIdentity(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	c := newClassifier(mem, zerolog.Nop())

	first, err := c.ClassifyAndUpsert(ctx, dayRec(dev(timekeeping.LateArrival, 15, timekeeping.SeverityAttention)))
	require.NoError(t, err)

	// WHEN: a corrected punch makes the lateness worse
	second, err := c.ClassifyAndUpsert(ctx, dayRec(dev(timekeeping.LateArrival, 40, timekeeping.SeverityCritique)))
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].CreatedAt, second[0].CreatedAt)
	assert.True(t, second[0].UpdatedAt.After(first[0].UpdatedAt))
	assert.Equal(t, timekeeping.SeverityCritique, second[0].Severity)
	assert.Equal(t, 40, second[0].Details.MagnitudeMinutes)
	assert.Equal(t, timekeeping.StatusPending, second[0].Status)
}

func TestClassify_TerminalRecordNeverReopened(t *testing.T) {
	// GIVEN: a validated anomaly
	ctx := context.Background()
	mem := store.NewMemory()
	var logs bytes.Buffer
	c := newClassifier(mem, zerolog.New(&logs))
	p := anomaly.NewProcessor(mem, zerolog.Nop())

	created, err := c.ClassifyAndUpsert(ctx, dayRec(dev(timekeeping.LateArrival, 15, timekeeping.SeverityAttention)))
	require.NoError(t, err)
	validated, err := p.Process(ctx, created[0].ID, anomaly.ActionValidate, "ok", "manager-1")
	require.NoError(t, err)

	// WHEN: recompute produces a different magnitude
	again, err := c.ClassifyAndUpsert(ctx, dayRec(dev(timekeeping.LateArrival, 50, timekeeping.SeverityCritique)))

	// THEN: no error, the human decision stands, a warning is logged
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, validated, again[0])
	stored, err := mem.Anomaly(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, timekeeping.StatusValidated, stored.Status)
	assert.Equal(t, 15, stored.Details.MagnitudeMinutes)
	assert.Contains(t, logs.String(), timekeeping.ErrTerminalAnomalyConflict.Error())
}

func TestClassify_StalePendingRemoved_TerminalKept(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	c := newClassifier(mem, zerolog.Nop())
	p := anomaly.NewProcessor(mem, zerolog.Nop())

	created, err := c.ClassifyAndUpsert(ctx, dayRec(
		dev(timekeeping.LateArrival, 15, timekeeping.SeverityAttention),
		dev(timekeeping.MissingPunch, 0, timekeeping.SeverityCritique),
	))
	require.NoError(t, err)
	_, err = p.Process(ctx, created[0].ID, anomaly.ActionCorrect, "badge fixed", "hr-1")
	require.NoError(t, err)

	// WHEN: the day now reconciles clean
	records, err := c.ClassifyAndUpsert(ctx, dayRec())
	require.NoError(t, err)
	assert.Empty(t, records)

	// THEN: the corrected record survives, the pending MissingPunch is gone
	stored, err := mem.AnomaliesForDay(ctx, emp, day)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, timekeeping.LateArrival, stored[0].Type)
	assert.Equal(t, timekeeping.StatusCorrected, stored[0].Status)
}

func TestClassify_SameKindMerged_MostSevereWins(t *testing.T) {
	ctx := context.Background()
	c := newClassifier(store.NewMemory(), zerolog.Nop())

	records, err := c.ClassifyAndUpsert(ctx, dayRec(
		dev(timekeeping.ExcessiveBreak, 10, timekeeping.SeverityAttention),
		dev(timekeeping.ExcessiveBreak, 45, timekeeping.SeverityCritique),
		dev(timekeeping.ExcessiveBreak, 20, timekeeping.SeverityAttention),
	))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, timekeeping.SeverityCritique, records[0].Severity)
	assert.Equal(t, 45, records[0].Details.MagnitudeMinutes)
	assert.Equal(t, 3, records[0].Details.Occurrences)
}

func TestClassify_ConcurrentRecompute_OneRecordPerKey(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	c := newClassifier(mem, zerolog.Nop())
	rec := dayRec(
		dev(timekeeping.LateArrival, 15, timekeeping.SeverityAttention),
		dev(timekeeping.Overtime, 45, timekeeping.SeverityInfo),
	)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ClassifyAndUpsert(ctx, rec)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := mem.AnomaliesForDay(ctx, emp, day)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

// failingStore fails every ApplyDay.
type failingStore struct {
	anomaly.Store
}

func (failingStore) ApplyDay(context.Context, timekeeping.EmployeeID, timekeeping.Day,
	func([]timekeeping.AnomalyRecord) (anomaly.DayChanges, error)) error {
	return errors.New("disk full")
}

func TestClassify_PersistenceErrorPropagates(t *testing.T) {
	c := newClassifier(failingStore{}, zerolog.Nop())

	_, err := c.ClassifyAndUpsert(context.Background(), dayRec(dev(timekeeping.LateArrival, 15, timekeeping.SeverityAttention)))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestMerge_KeepsFirstSeenOrder(t *testing.T) {
	merged := anomaly.Merge([]timekeeping.Deviation{
		dev(timekeeping.BreakSkipped, 30, timekeeping.SeverityAttention),
		dev(timekeeping.AmplitudeViolation, 540, timekeeping.SeverityCritique),
		dev(timekeeping.BreakSkipped, 15, timekeeping.SeverityAttention),
	})

	require.Len(t, merged, 2)
	assert.Equal(t, timekeeping.BreakSkipped, merged[0].Deviation.Kind)
	assert.Equal(t, 30, merged[0].Deviation.MagnitudeMinutes)
	assert.Equal(t, 2, merged[0].Occurrences)
	assert.Equal(t, timekeeping.AmplitudeViolation, merged[1].Deviation.Kind)
}
