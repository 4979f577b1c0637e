package anomaly

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/attendance-engine/timekeeping"
)

// =============================================================================
// ACTIONS
// =============================================================================

// Action is a reviewer's decision on a pending anomaly.
type Action string

const (
	ActionValidate Action = "validate"
	ActionRefuse   Action = "refuse"
	ActionCorrect  Action = "correct"
)

// Target is the status an action moves a record to.
func (a Action) Target() (timekeeping.AnomalyStatus, error) {
	switch a {
	case ActionValidate:
		return timekeeping.StatusValidated, nil
	case ActionRefuse:
		return timekeeping.StatusRefused, nil
	case ActionCorrect:
		return timekeeping.StatusCorrected, nil
	}
	return "", fmt.Errorf("%w: %q", timekeeping.ErrInvalidAction, a)
}

// =============================================================================
// PROCESSOR
// =============================================================================

// Processor applies reviewer decisions. It is the only writer of terminal
// statuses.
type Processor struct {
	Store Store
	Log   zerolog.Logger
	Now   func() time.Time
}

func NewProcessor(store Store, log zerolog.Logger) *Processor {
	return &Processor{Store: store, Log: log, Now: time.Now}
}

// Process moves a pending record to the status of action.
//
// Errors:
//   - ErrInvalidAction: unknown action
//   - ErrAnomalyNotFound: unknown id
//   - ErrAnomalyAlreadyProcessed: record is not pending
//   - ErrCommentRequired: refuse with a blank comment
func (p *Processor) Process(ctx context.Context, id timekeeping.AnomalyID, action Action, comment, actor string) (timekeeping.AnomalyRecord, error) {
	target, err := action.Target()
	if err != nil {
		return timekeeping.AnomalyRecord{}, err
	}
	comment = strings.TrimSpace(comment)
	if action == ActionRefuse && comment == "" {
		return timekeeping.AnomalyRecord{}, timekeeping.ErrCommentRequired
	}

	rec, err := p.Store.Anomaly(ctx, id)
	if err != nil {
		return timekeeping.AnomalyRecord{}, err
	}
	if rec.Status != timekeeping.StatusPending {
		return timekeeping.AnomalyRecord{}, fmt.Errorf("%w: %s is %s", timekeeping.ErrAnomalyAlreadyProcessed, id, rec.Status)
	}

	now := p.Now().UTC()
	updated := *rec
	updated.Status = target
	updated.Comment = comment
	updated.ProcessedBy = actor
	updated.ProcessedAt = &now
	updated.UpdatedAt = now

	if err := p.Store.UpdateAnomaly(ctx, updated, timekeeping.StatusPending); err != nil {
		if errors.Is(err, timekeeping.ErrConcurrentModification) {
			// Someone else settled it first.
			return timekeeping.AnomalyRecord{}, fmt.Errorf("%w: %w", timekeeping.ErrAnomalyAlreadyProcessed, err)
		}
		return timekeeping.AnomalyRecord{}, fmt.Errorf("failed to process anomaly %s: %w", id, err)
	}

	p.Log.Info().
		Str("anomaly_id", string(id)).
		Str("action", string(action)).
		Str("actor", actor).
		Msg("anomaly processed")
	return updated, nil
}
