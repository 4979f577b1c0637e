/*
Package anomaly turns reconciliation deviations into reviewable records.

PURPOSE:
  The classifier persists one AnomalyRecord per (employee, date, type),
  keyed by timekeeping.DedupeKey. Recomputing a day any number of times
  converges to the same records.

UPSERT RULES:
  existing record   outcome
  none              create, status pending, fresh uuid
  pending           refresh severity and details, keep ID and CreatedAt
  terminal          untouched; logged as a terminal conflict and returned as-is

  A pending record whose deviation is no longer produced is deleted in the
  same atomic write. Terminal records are never deleted or reopened: a
  human decision outlives any recompute.

SEVERITY:
  Severities are copied from the deviation. This package never derives
  one; reconcile.SeverityFor is the only table.

SEE ALSO:
  - process.go: validate / refuse / correct
  - store.go: Store contract
*/
package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/timekeeping"
)

// Classifier upserts anomaly records from day reconciliations.
type Classifier struct {
	Store Store
	Log   zerolog.Logger
	Now   func() time.Time
}

func NewClassifier(store Store, log zerolog.Logger) *Classifier {
	return &Classifier{Store: store, Log: log, Now: time.Now}
}

// ClassifyAndUpsert persists the deviations of rec and returns the
// resulting records for the day in deviation order. Persistence errors are
// returned wrapped; terminal conflicts are not errors.
func (c *Classifier) ClassifyAndUpsert(ctx context.Context, rec reconcile.DayReconciliation) ([]timekeeping.AnomalyRecord, error) {
	merged := Merge(rec.Deviations)
	var result []timekeeping.AnomalyRecord

	err := c.Store.ApplyDay(ctx, rec.EmployeeID, rec.Date, func(existing []timekeeping.AnomalyRecord) (DayChanges, error) {
		result = result[:0]
		now := c.Now().UTC()

		byKey := make(map[string]timekeeping.AnomalyRecord, len(existing))
		for _, r := range existing {
			byKey[r.DedupeKey] = r
		}

		var changes DayChanges
		produced := make(map[string]bool, len(merged))

		for _, m := range merged {
			key := timekeeping.DedupeKey(rec.EmployeeID, rec.Date, m.Deviation.Kind)
			produced[key] = true
			details := detailsFor(rec, m)

			current, ok := byKey[key]
			switch {
			case !ok:
				created := timekeeping.AnomalyRecord{
					ID:         timekeeping.AnomalyID(uuid.NewString()),
					EmployeeID: rec.EmployeeID,
					Date:       rec.Date,
					Type:       m.Deviation.Kind,
					Severity:   m.Deviation.Severity,
					Status:     timekeeping.StatusPending,
					Details:    details,
					DedupeKey:  key,
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				changes.Upserts = append(changes.Upserts, created)
				result = append(result, created)

			case current.Status.IsTerminal():
				c.Log.Warn().
					Err(timekeeping.ErrTerminalAnomalyConflict).
					Str("anomaly_id", string(current.ID)).
					Str("dedupe_key", key).
					Str("status", string(current.Status)).
					Str("computed_severity", string(m.Deviation.Severity)).
					Msg("recompute targets a processed anomaly, keeping human decision")
				result = append(result, current)

			case current.Severity == m.Deviation.Severity && sameDetails(current.Details, details):
				result = append(result, current)

			default:
				current.Severity = m.Deviation.Severity
				current.Details = details
				current.UpdatedAt = now
				changes.Upserts = append(changes.Upserts, current)
				result = append(result, current)
			}
		}

		for _, r := range existing {
			if !produced[r.DedupeKey] && r.Status == timekeeping.StatusPending {
				changes.Deletes = append(changes.Deletes, r.ID)
			}
		}
		return changes, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert anomalies for %s on %s: %w", rec.EmployeeID, rec.Date, err)
	}
	return result, nil
}

// =============================================================================
// MERGING
// =============================================================================

// Merged is one deviation kind of a day after collapsing repeats.
type Merged struct {
	Deviation   timekeeping.Deviation
	Occurrences int
}

// Merge collapses deviations of the same kind, keeping first-seen order.
// The most severe occurrence wins; on equal severity the larger magnitude.
func Merge(devs []timekeeping.Deviation) []Merged {
	index := make(map[timekeeping.DeviationKind]int, len(devs))
	var out []Merged
	for _, d := range devs {
		i, ok := index[d.Kind]
		if !ok {
			index[d.Kind] = len(out)
			out = append(out, Merged{Deviation: d, Occurrences: 1})
			continue
		}
		out[i].Occurrences++
		cur := out[i].Deviation
		if d.Severity.Rank() > cur.Severity.Rank() ||
			(d.Severity == cur.Severity && d.MagnitudeMinutes > cur.MagnitudeMinutes) {
			out[i].Deviation = d
		}
	}
	return out
}

func detailsFor(rec reconcile.DayReconciliation, m Merged) timekeeping.AnomalyDetails {
	return timekeeping.AnomalyDetails{
		MagnitudeMinutes: m.Deviation.MagnitudeMinutes,
		SegmentRef:       m.Deviation.SegmentRef,
		Occurrences:      m.Occurrences,
		PlannedMinutes:   rec.PlannedMinutes,
		WorkedMinutes:    rec.WorkedMinutes,
		Message:          Describe(m.Deviation),
	}
}

func sameDetails(a, b timekeeping.AnomalyDetails) bool {
	if (a.SegmentRef == nil) != (b.SegmentRef == nil) {
		return false
	}
	if a.SegmentRef != nil && *a.SegmentRef != *b.SegmentRef {
		return false
	}
	return a.MagnitudeMinutes == b.MagnitudeMinutes &&
		a.Occurrences == b.Occurrences &&
		a.PlannedMinutes == b.PlannedMinutes &&
		a.WorkedMinutes == b.WorkedMinutes &&
		a.Message == b.Message
}

// Describe renders a deviation for reviewers.
func Describe(d timekeeping.Deviation) string {
	switch d.Kind {
	case timekeeping.LateArrival:
		return fmt.Sprintf("arrived %d min late", d.MagnitudeMinutes)
	case timekeeping.EarlyDeparture:
		return fmt.Sprintf("left %d min early", d.MagnitudeMinutes)
	case timekeeping.Overtime:
		return fmt.Sprintf("%d min beyond plan", d.MagnitudeMinutes)
	case timekeeping.OutOfWindowArrival:
		return fmt.Sprintf("arrival %d min outside the accepted window", d.MagnitudeMinutes)
	case timekeeping.OutOfWindowDeparture:
		return fmt.Sprintf("departure %d min outside the accepted window", d.MagnitudeMinutes)
	case timekeeping.AbsenceJustified:
		return "absent on approved leave"
	case timekeeping.AbsenceUnjustified:
		return fmt.Sprintf("absent without leave, %d planned min", d.MagnitudeMinutes)
	case timekeeping.UnplannedPresence:
		return fmt.Sprintf("%d min worked without a shift", d.MagnitudeMinutes)
	case timekeeping.MissingPunch:
		return "unpaired punch"
	case timekeeping.ExcessiveBreak:
		return fmt.Sprintf("break %d min longer than planned", d.MagnitudeMinutes)
	case timekeeping.BreakSkipped:
		return fmt.Sprintf("planned %d min break not taken", d.MagnitudeMinutes)
	case timekeeping.AmplitudeViolation:
		return fmt.Sprintf("%d min of continuous work", d.MagnitudeMinutes)
	}
	return d.Kind.String()
}
