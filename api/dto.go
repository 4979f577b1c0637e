/*
dto.go - Request and response bodies of the HTTP API

PURPOSE:
  Request types carry validator/v10 tags and convert themselves into
  domain values. Domain types (reconciliations, anomaly records,
  aggregates, leave periods) already carry JSON tags and are returned
  as-is inside the response wrappers below.

NAMING CONVENTION:
  - *Request:  request bodies from clients
  - *Response: response wrappers
  - *DTO:      small response items

TIMES:
  Instants are RFC 3339 ("2025-03-10T08:00:00+01:00"). Dates are
  "YYYY-MM-DD". Shift segment bounds are "HH:MM" in the configured zone.

SEE ALSO:
  - handlers.go: decodes, validates and converts these types
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/anomaly"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/timekeeping"
)

// =============================================================================
// REQUESTS
// =============================================================================

// PunchRequest records one badge event.
type PunchRequest struct {
	EmployeeID string    `json:"employee_id" validate:"required"`
	At         time.Time `json:"at" validate:"required"`
	Kind       string    `json:"kind" validate:"required,oneof=arrival departure"`
	Source     string    `json:"source" validate:"omitempty,max=32"`
}

func (r PunchRequest) toPunch() timekeeping.PunchEvent {
	return timekeeping.PunchEvent{
		EmployeeID: timekeeping.EmployeeID(r.EmployeeID),
		At:         r.At,
		Kind:       timekeeping.PunchKind(r.Kind),
		Source:     r.Source,
	}
}

// SegmentRequest is one planned segment of a shift.
type SegmentRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=work break extra"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// ShiftRequest replaces the plan of one employee for one day. An empty
// segment list removes the plan.
type ShiftRequest struct {
	EmployeeID string           `json:"employee_id" validate:"required"`
	Date       string           `json:"date" validate:"required,datetime=2006-01-02"`
	Segments   []SegmentRequest `json:"segments" validate:"dive"`
}

func (r ShiftRequest) toShift() (timekeeping.Shift, error) {
	date, err := timekeeping.ParseDay(r.Date)
	if err != nil {
		return timekeeping.Shift{}, err
	}
	shift := timekeeping.Shift{
		EmployeeID: timekeeping.EmployeeID(r.EmployeeID),
		Date:       date,
		Segments:   make([]timekeeping.WorkSegment, 0, len(r.Segments)),
	}
	for _, s := range r.Segments {
		start, err := timekeeping.ParseClockTime(s.Start)
		if err != nil {
			return timekeeping.Shift{}, err
		}
		end, err := timekeeping.ParseClockTime(s.End)
		if err != nil {
			return timekeeping.Shift{}, err
		}
		shift.Segments = append(shift.Segments, timekeeping.WorkSegment{
			Kind:  timekeeping.SegmentKind(s.Kind),
			Start: start,
			End:   end,
		})
	}
	return shift, nil
}

// LeaveRequest records a leave period. Status defaults to approved.
type LeaveRequest struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id" validate:"required"`
	Kind       string `json:"kind" validate:"required,oneof=pto sick personal parental bereavement training unpaid"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Status     string `json:"status" validate:"omitempty,oneof=pending approved rejected canceled"`
	Reason     string `json:"reason" validate:"max=500"`
}

func (r LeaveRequest) toPeriod() (leave.Period, error) {
	start, err := timekeeping.ParseDay(r.StartDate)
	if err != nil {
		return leave.Period{}, err
	}
	end, err := timekeeping.ParseDay(r.EndDate)
	if err != nil {
		return leave.Period{}, err
	}
	status := leave.Status(r.Status)
	if status == "" {
		status = leave.StatusApproved
	}
	return leave.Period{
		ID:         r.ID,
		EmployeeID: timekeeping.EmployeeID(r.EmployeeID),
		Kind:       leave.Kind(r.Kind),
		Start:      start,
		End:        end,
		Status:     status,
		Reason:     r.Reason,
	}, nil
}

// ProcessRequest is a reviewer decision on a pending anomaly.
type ProcessRequest struct {
	Action  string `json:"action" validate:"required,oneof=validate refuse correct"`
	Comment string `json:"comment" validate:"max=1000"`
	Actor   string `json:"actor" validate:"required"`
}

func (r ProcessRequest) action() anomaly.Action { return anomaly.Action(r.Action) }

// RecomputeRequest recomputes a date range. An empty employee list means
// every known employee.
type RecomputeRequest struct {
	EmployeeIDs []string `json:"employee_ids"`
	From        string   `json:"from" validate:"required,datetime=2006-01-02"`
	To          string   `json:"to" validate:"required,datetime=2006-01-02"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// DayResponse is a reconciled day with its persisted anomalies.
type DayResponse struct {
	Reconciliation reconcile.DayReconciliation `json:"reconciliation"`
	Anomalies      []timekeeping.AnomalyRecord `json:"anomalies"`
}

// AnomalyListResponse wraps a filtered anomaly listing.
type AnomalyListResponse struct {
	Anomalies []timekeeping.AnomalyRecord `json:"anomalies"`
	Count     int                         `json:"count"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Expected    string `json:"expected"`
}

// ScenarioResponse is the state after loading a scenario.
type ScenarioResponse struct {
	Scenario   ScenarioDTO            `json:"scenario"`
	EmployeeID timekeeping.EmployeeID `json:"employee_id"`
	Date       timekeeping.Day        `json:"date"`
	Day        DayResponse            `json:"day"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
