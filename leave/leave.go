// Package leave models approved absences that justify a missed shift.
// The approval workflow itself lives elsewhere; the engine only reads
// periods and trusts their status.
package leave

import (
	"fmt"

	"github.com/warp/attendance-engine/timekeeping"
)

// =============================================================================
// LEAVE KIND
// =============================================================================

type Kind string

const (
	KindPTO         Kind = "pto"
	KindSick        Kind = "sick"
	KindPersonal    Kind = "personal"
	KindParental    Kind = "parental"
	KindBereavement Kind = "bereavement"
	KindTraining    Kind = "training"
	KindUnpaid      Kind = "unpaid"
)

var kinds = map[Kind]bool{
	KindPTO: true, KindSick: true, KindPersonal: true, KindParental: true,
	KindBereavement: true, KindTraining: true, KindUnpaid: true,
}

func (k Kind) Valid() bool { return kinds[k] }

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusCanceled Status = "canceled"
)

// =============================================================================
// PERIOD
// =============================================================================

// Period is a leave covering [Start, End] inclusive.
type Period struct {
	ID         string                 `json:"id"`
	EmployeeID timekeeping.EmployeeID `json:"employee_id"`
	Kind       Kind                   `json:"kind"`
	Start      timekeeping.Day        `json:"start"`
	End        timekeeping.Day        `json:"end"`
	Status     Status                 `json:"status"`
	Reason     string                 `json:"reason,omitempty"`
}

// Validate checks kind, status and range.
func (p Period) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("unknown leave kind %q", p.Kind)
	}
	switch p.Status {
	case StatusPending, StatusApproved, StatusRejected, StatusCanceled:
	default:
		return fmt.Errorf("unknown leave status %q", p.Status)
	}
	if _, err := timekeeping.NewPeriod(p.Start, p.End); err != nil {
		return fmt.Errorf("leave %s: %w", p.ID, err)
	}
	return nil
}

// Covers reports whether the leave is approved and spans the date.
func (p Period) Covers(d timekeeping.Day) bool {
	return p.Status == StatusApproved && timekeeping.Period{Start: p.Start, End: p.End}.Contains(d)
}

// Covering returns the first approved period that spans d, or nil.
func Covering(periods []Period, d timekeeping.Day) *Period {
	for i := range periods {
		if periods[i].Covers(d) {
			return &periods[i]
		}
	}
	return nil
}
