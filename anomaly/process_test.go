package anomaly_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/anomaly"
	"github.com/warp/attendance-engine/timekeeping"
	"github.com/warp/attendance-engine/timekeeping/store"
)

func seedPending(t *testing.T) (*store.Memory, *anomaly.Processor, timekeeping.AnomalyID) {
	t.Helper()
	mem := store.NewMemory()
	c := newClassifier(mem, zerolog.Nop())
	records, err := c.ClassifyAndUpsert(context.Background(), dayRec(dev(timekeeping.LateArrival, 25, timekeeping.SeverityCritique)))
	require.NoError(t, err)
	p := anomaly.NewProcessor(mem, zerolog.Nop())
	p.Now = fixedClock()
	return mem, p, records[0].ID
}

func TestProcess_Transitions(t *testing.T) {
	tests := []struct {
		action anomaly.Action
		want   timekeeping.AnomalyStatus
	}{
		{anomaly.ActionValidate, timekeeping.StatusValidated},
		{anomaly.ActionRefuse, timekeeping.StatusRefused},
		{anomaly.ActionCorrect, timekeeping.StatusCorrected},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			mem, p, id := seedPending(t)

			rec, err := p.Process(context.Background(), id, tt.action, "  reviewed  ", "manager-1")

			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Status)
			assert.Equal(t, "reviewed", rec.Comment)
			assert.Equal(t, "manager-1", rec.ProcessedBy)
			require.NotNil(t, rec.ProcessedAt)

			stored, err := mem.Anomaly(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Status)
		})
	}
}

func TestProcess_RefuseRequiresComment(t *testing.T) {
	mem, p, id := seedPending(t)

	_, err := p.Process(context.Background(), id, anomaly.ActionRefuse, "   ", "manager-1")

	assert.ErrorIs(t, err, timekeeping.ErrCommentRequired)
	assert.True(t, timekeeping.IsClientError(err))
	stored, err := mem.Anomaly(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, timekeeping.StatusPending, stored.Status, "failed refuse leaves the record pending")
}

func TestProcess_AlreadyProcessed(t *testing.T) {
	_, p, id := seedPending(t)
	ctx := context.Background()

	_, err := p.Process(ctx, id, anomaly.ActionValidate, "", "manager-1")
	require.NoError(t, err)

	_, err = p.Process(ctx, id, anomaly.ActionCorrect, "again", "manager-2")
	assert.ErrorIs(t, err, timekeeping.ErrAnomalyAlreadyProcessed)
	assert.True(t, timekeeping.IsConflict(err))
}

func TestProcess_NotFound(t *testing.T) {
	_, p, _ := seedPending(t)

	_, err := p.Process(context.Background(), "missing", anomaly.ActionValidate, "", "manager-1")

	assert.ErrorIs(t, err, timekeeping.ErrAnomalyNotFound)
	assert.True(t, timekeeping.IsNotFound(err))
}

func TestProcess_InvalidAction(t *testing.T) {
	_, p, id := seedPending(t)

	_, err := p.Process(context.Background(), id, "escalate", "", "manager-1")

	assert.ErrorIs(t, err, timekeeping.ErrInvalidAction)
}
