/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Pre-built days that exercise each branch of the reconciliation engine.
	Each scenario resets the store, plans a shift, records punches (and
	leave where relevant) for one employee on the previous civil day, then
	recomputes that day so its anomalies are ready for review.

AVAILABLE SCENARIOS:

	regular-day:      two work segments, all four punches on time
	skipped-break:    single arrival/departure across a planned break
	justified-absence: planned day covered by approved sick leave
	unplanned-day:    punches on a day with no plan
	night-shift:      20:00-00:30 shift punched 20:05 / 00:35

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "skipped-break"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and helpers
  - attendance/service.go: Recompute
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/timekeeping"
)

// ErrUnknownScenario is returned for an ID not in the catalogue.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	employee timekeeping.EmployeeID
	load     func(ctx context.Context, h *Handler, emp timekeeping.EmployeeID, d timekeeping.Day) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "regular-day",
			Name:        "Regular Day",
			Description: "Shift 09:00-13:00 + 14:00-18:00, punches 09:00/13:00/14:00/18:00",
			Expected:    "480 minutes worked, no anomaly",
		},
		employee: "emp-regular",
		load: func(ctx context.Context, h *Handler, emp timekeeping.EmployeeID, d timekeeping.Day) error {
			return h.seed(ctx, emp, d,
				[]timekeeping.WorkSegment{seg(timekeeping.SegmentWork, "09:00", "13:00"), seg(timekeeping.SegmentWork, "14:00", "18:00")},
				in("09:00"), out("13:00"), in("14:00"), out("18:00"))
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "skipped-break",
			Name:        "Skipped Break",
			Description: "Shift 08:00-12:00, break 12:00-12:30, 12:30-17:00, punches 08:00/17:00 only",
			Expected:    "break_skipped, amplitude_violation (540 > 360) and 30 minutes of overtime",
		},
		employee: "emp-nobreak",
		load: func(ctx context.Context, h *Handler, emp timekeeping.EmployeeID, d timekeeping.Day) error {
			return h.seed(ctx, emp, d,
				[]timekeeping.WorkSegment{
					seg(timekeeping.SegmentWork, "08:00", "12:00"),
					seg(timekeeping.SegmentBreak, "12:00", "12:30"),
					seg(timekeeping.SegmentWork, "12:30", "17:00"),
				},
				in("08:00"), out("17:00"))
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "justified-absence",
			Name:        "Justified Absence",
			Description: "Shift 09:00-17:00, no punches, approved sick leave covering the day",
			Expected:    "absence_justified, scheduled but outside the punctuality denominator",
		},
		employee: "emp-sick",
		load: func(ctx context.Context, h *Handler, emp timekeeping.EmployeeID, d timekeeping.Day) error {
			if err := h.seed(ctx, emp, d, []timekeeping.WorkSegment{seg(timekeeping.SegmentWork, "09:00", "17:00")}); err != nil {
				return err
			}
			_, err := h.Service.SaveLeave(ctx, leave.Period{
				EmployeeID: emp,
				Kind:       leave.KindSick,
				Start:      d,
				End:        d,
				Status:     leave.StatusApproved,
				Reason:     "demo",
			})
			return err
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "unplanned-day",
			Name:        "Unplanned Presence",
			Description: "No shift, punches 14:00/18:00",
			Expected:    "unplanned_presence, 240 minutes worked and none planned",
		},
		employee: "emp-unplanned",
		load: func(ctx context.Context, h *Handler, emp timekeeping.EmployeeID, d timekeeping.Day) error {
			return h.seed(ctx, emp, d, nil, in("14:00"), out("18:00"))
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "night-shift",
			Name:        "Night Shift",
			Description: "Shift 20:00-00:30, punches 20:05 and 00:35 the next morning",
			Expected:    "270 minutes worked, 5 minutes late is within grace, no anomaly",
		},
		employee: "emp-night",
		load: func(ctx context.Context, h *Handler, emp timekeeping.EmployeeID, d timekeeping.Day) error {
			return h.seed(ctx, emp, d,
				[]timekeeping.WorkSegment{seg(timekeeping.SegmentWork, "20:00", "00:30")},
				in("20:05"), punchAt(timekeeping.MinutesPerDay+35, timekeeping.PunchDeparture))
		},
	},
}

// Scenarios lists the demo catalogue.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	return out
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads one scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	resp, err := h.Load(r.Context(), req.ScenarioID)
	switch {
	case errors.Is(err, ErrUnknownScenario):
		writeError(w, http.StatusBadRequest, "Unknown scenario", err)
	case err != nil:
		writeFailure(w, "Failed to load scenario", err)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// ResetDatabase clears every table.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Load resets the store, seeds scenario id on the previous civil day and
// recomputes that day.
func (h *Handler) Load(ctx context.Context, id string) (ScenarioResponse, error) {
	var sc *scenario
	for i := range scenarios {
		if scenarios[i].ID == id {
			sc = &scenarios[i]
			break
		}
	}
	if sc == nil {
		return ScenarioResponse{}, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return ScenarioResponse{}, fmt.Errorf("failed to reset store: %w", err)
	}
	h.currentScenario = ""

	day := h.Service.Clock().DayOf(h.Now()).AddDays(-1)
	if err := sc.load(ctx, h, sc.employee, day); err != nil {
		return ScenarioResponse{}, fmt.Errorf("failed to seed %s: %w", sc.ID, err)
	}

	rec, records, err := h.Service.Recompute(ctx, sc.employee, day)
	if err != nil {
		return ScenarioResponse{}, err
	}
	h.currentScenario = sc.ID

	h.Log.Info().
		Str("scenario", sc.ID).
		Str("employee_id", string(sc.employee)).
		Str("date", day.String()).
		Int("anomalies", len(records)).
		Msg("scenario loaded")

	return ScenarioResponse{
		Scenario:   sc.ScenarioDTO,
		EmployeeID: sc.employee,
		Date:       day,
		Day:        DayResponse{Reconciliation: rec, Anomalies: nonNil(records)},
	}, nil
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

type seedPunch struct {
	minute int
	kind   timekeeping.PunchKind
}

func punchAt(minute int, kind timekeeping.PunchKind) seedPunch {
	return seedPunch{minute: minute, kind: kind}
}

func in(hhmm string) seedPunch {
	return punchAt(int(timekeeping.MustClockTime(hhmm)), timekeeping.PunchArrival)
}

func out(hhmm string) seedPunch {
	return punchAt(int(timekeeping.MustClockTime(hhmm)), timekeeping.PunchDeparture)
}

func seg(kind timekeeping.SegmentKind, start, end string) timekeeping.WorkSegment {
	return timekeeping.WorkSegment{Kind: kind, Start: timekeeping.MustClockTime(start), End: timekeeping.MustClockTime(end)}
}

// seed plans the day (when segments are given) and records punches
// through the ledger without recomputing after each one.
func (h *Handler) seed(ctx context.Context, emp timekeeping.EmployeeID, d timekeeping.Day, segments []timekeeping.WorkSegment, punches ...seedPunch) error {
	if err := h.Store.AddEmployee(ctx, emp); err != nil {
		return err
	}
	if len(segments) > 0 {
		if err := h.Service.SaveShift(ctx, timekeeping.Shift{EmployeeID: emp, Date: d, Segments: segments}); err != nil {
			return err
		}
	}

	clock := h.Service.Clock()
	for i, p := range punches {
		event := timekeeping.PunchEvent{
			ID:         timekeeping.PunchID(fmt.Sprintf("%s-%s-%d", emp, d, i)),
			EmployeeID: emp,
			At:         clock.At(d, p.minute),
			Kind:       p.kind,
			Source:     "demo",
		}
		if err := h.Service.Ledger.Record(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
