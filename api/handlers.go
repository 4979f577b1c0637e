/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes reconciliation, anomaly review and reporting over REST. Handlers
  parse and validate input, call attendance.Service, and serialise the
  result. No business rule lives here.

ENDPOINTS:
  Punches:
    POST   /api/punches                                 Record a punch, recompute its workday

  Days:
    GET    /api/employees/{id}/days/{date}              Reconcile (read-only) + stored anomalies
    POST   /api/employees/{id}/days/{date}/recompute    Reconcile and upsert anomalies
    POST   /api/recompute                               Recompute a date range

  Planning:
    GET    /api/employees                               Known employee IDs
    GET    /api/employees/{id}/shifts/{date}            Planned shift
    PUT    /api/shifts                                  Replace a planned shift
    POST   /api/leave                                   Record a leave period

  Anomalies:
    GET    /api/anomalies                               Filtered listing
    GET    /api/anomalies/{id}                          One record
    POST   /api/anomalies/{id}/process                  validate / refuse / correct

  Reporting:
    GET    /api/employees/{id}/aggregate?from&to        Period KPIs for one employee
    GET    /api/aggregates?from&to&employee_id=...      Period KPIs for a team

ERROR HANDLING:
  Errors are returned as JSON with an HTTP status derived from the
  timekeeping error helpers:
  - 400: IsClientError, undecodable or invalid bodies
  - 404: IsNotFound
  - 409: IsConflict (already processed, duplicate punch, lost CAS)
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response bodies
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/warp/attendance-engine/anomaly"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/timekeeping"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the backend behind the service, plus the writes demo scenarios
// need.
type Store interface {
	attendance.Store
	AddEmployee(ctx context.Context, employeeID timekeeping.EmployeeID) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *attendance.Service
	Store   Store
	Log     zerolog.Logger
	Now     func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over a service and the store it was built on.
func NewHandler(svc *attendance.Service, store Store, log zerolog.Logger) *Handler {
	return &Handler{
		Service: svc,
		Store:   store,
		Log:     log,
		Now:     time.Now,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// =============================================================================
// PUNCHES
// =============================================================================

// RecordPunch appends a punch and returns the recomputed workday.
// POST /api/punches
func (h *Handler) RecordPunch(w http.ResponseWriter, r *http.Request) {
	var req PunchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid punch", err)
		return
	}

	result, err := h.Service.RecordPunch(r.Context(), req.toPunch())
	if err != nil {
		writeFailure(w, "Failed to record punch", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// =============================================================================
// DAYS
// =============================================================================

// GetDay reconciles a day without writing and returns the stored anomalies.
// GET /api/employees/{id}/days/{date}
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	employeeID, date, err := dayParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	rec, err := h.Service.ReconcileDay(ctx, employeeID, date)
	if err != nil {
		writeFailure(w, "Failed to reconcile day", err)
		return
	}
	stored, err := h.Service.Anomalies.AnomaliesForDay(ctx, employeeID, date)
	if err != nil {
		writeFailure(w, "Failed to load anomalies", err)
		return
	}
	writeJSON(w, http.StatusOK, DayResponse{Reconciliation: rec, Anomalies: nonNil(stored)})
}

// RecomputeDay reconciles a day and upserts its anomalies.
// POST /api/employees/{id}/days/{date}/recompute
func (h *Handler) RecomputeDay(w http.ResponseWriter, r *http.Request) {
	employeeID, date, err := dayParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	rec, records, err := h.Service.Recompute(r.Context(), employeeID, date)
	if err != nil {
		writeFailure(w, "Failed to recompute day", err)
		return
	}
	writeJSON(w, http.StatusOK, DayResponse{Reconciliation: rec, Anomalies: nonNil(records)})
}

// RecomputeRange recomputes every day of a range for a set of employees.
// POST /api/recompute
func (h *Handler) RecomputeRange(w http.ResponseWriter, r *http.Request) {
	var req RecomputeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recompute request", err)
		return
	}
	period, err := periodOf(req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	employees := make([]timekeeping.EmployeeID, len(req.EmployeeIDs))
	for i, id := range req.EmployeeIDs {
		employees[i] = timekeeping.EmployeeID(id)
	}

	summary, err := h.Service.RecomputeRange(r.Context(), employees, period)
	if err != nil {
		writeFailure(w, "Recompute finished with errors", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// PLANNING
// =============================================================================

// ListEmployees returns every employee ID the store knows.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Service.Employees.EmployeeIDs(r.Context())
	if err != nil {
		writeFailure(w, "Failed to list employees", err)
		return
	}
	if ids == nil {
		ids = []timekeeping.EmployeeID{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetShift returns the planned shift of a day.
// GET /api/employees/{id}/shifts/{date}
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	employeeID, date, err := dayParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	shift, err := h.Service.Shifts.Shift(r.Context(), employeeID, date)
	if err != nil {
		writeFailure(w, "Failed to load shift", err)
		return
	}
	if shift == nil {
		writeError(w, http.StatusNotFound, "No shift planned", nil)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// SaveShift replaces the plan of one employee for one day.
// PUT /api/shifts
func (h *Handler) SaveShift(w http.ResponseWriter, r *http.Request) {
	var req ShiftRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift", err)
		return
	}
	shift, err := req.toShift()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift", err)
		return
	}

	if err := h.Service.SaveShift(r.Context(), shift); err != nil {
		writeFailure(w, "Failed to save shift", err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// CreateLeave records a leave period.
// POST /api/leave
func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid leave", err)
		return
	}
	period, err := req.toPeriod()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid leave", err)
		return
	}

	saved, err := h.Service.SaveLeave(r.Context(), period)
	if err != nil {
		writeFailure(w, "Failed to save leave", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// =============================================================================
// ANOMALIES
// =============================================================================

// ListAnomalies returns anomalies matching the query filters.
// GET /api/anomalies?employee_id&from&to&status&severity&type&limit
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	records, err := h.Service.ListAnomalies(r.Context(), filter)
	if err != nil {
		writeFailure(w, "Failed to list anomalies", err)
		return
	}
	writeJSON(w, http.StatusOK, AnomalyListResponse{Anomalies: nonNil(records), Count: len(records)})
}

// GetAnomaly returns one anomaly record.
// GET /api/anomalies/{id}
func (h *Handler) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	id := timekeeping.AnomalyID(chi.URLParam(r, "id"))
	record, err := h.Service.Anomalies.Anomaly(r.Context(), id)
	if err != nil {
		writeFailure(w, "Failed to load anomaly", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ProcessAnomaly applies a reviewer decision.
// POST /api/anomalies/{id}/process
func (h *Handler) ProcessAnomaly(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid decision", err)
		return
	}

	id := timekeeping.AnomalyID(chi.URLParam(r, "id"))
	record, err := h.Service.ProcessAnomaly(r.Context(), id, req.action(), req.Comment, req.Actor)
	if err != nil {
		writeFailure(w, "Failed to process anomaly", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// =============================================================================
// REPORTING
// =============================================================================

// GetAggregate returns period KPIs for one employee. The period defaults to
// the current month.
// GET /api/employees/{id}/aggregate?from&to
func (h *Handler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	period, err := h.queryPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	employeeID := timekeeping.EmployeeID(chi.URLParam(r, "id"))
	agg, err := h.Service.Aggregate(r.Context(), employeeID, period)
	if err != nil {
		writeFailure(w, "Failed to aggregate", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// GetTeamAggregate returns period KPIs for several employees, every known
// employee when none is given.
// GET /api/aggregates?from&to&employee_id=a&employee_id=b
func (h *Handler) GetTeamAggregate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	period, err := h.queryPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	var employees []timekeeping.EmployeeID
	for _, id := range r.URL.Query()["employee_id"] {
		employees = append(employees, timekeeping.EmployeeID(id))
	}
	if len(employees) == 0 {
		if employees, err = h.Service.Employees.EmployeeIDs(ctx); err != nil {
			writeFailure(w, "Failed to list employees", err)
			return
		}
	}

	aggs, err := h.Service.AggregateTeam(ctx, employees, period)
	if err != nil {
		writeFailure(w, "Failed to aggregate team", err)
		return
	}
	writeJSON(w, http.StatusOK, aggs)
}

// =============================================================================
// HELPERS
// =============================================================================

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return validate.Struct(dst)
}

func dayParams(r *http.Request) (timekeeping.EmployeeID, timekeeping.Day, error) {
	date, err := timekeeping.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		return "", timekeeping.Day{}, err
	}
	return timekeeping.EmployeeID(chi.URLParam(r, "id")), date, nil
}

func periodOf(from, to string) (timekeeping.Period, error) {
	start, err := timekeeping.ParseDay(from)
	if err != nil {
		return timekeeping.Period{}, err
	}
	end, err := timekeeping.ParseDay(to)
	if err != nil {
		return timekeeping.Period{}, err
	}
	return timekeeping.NewPeriod(start, end)
}

func (h *Handler) queryPeriod(r *http.Request) (timekeeping.Period, error) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		today := h.Service.Clock().DayOf(h.Now())
		return timekeeping.MonthPeriod(today.Year(), today.Month()), nil
	}
	if from == "" || to == "" {
		return timekeeping.Period{}, errors.New("from and to go together")
	}
	return periodOf(from, to)
}

func parseFilter(r *http.Request) (anomaly.Filter, error) {
	q := r.URL.Query()
	filter := anomaly.Filter{
		EmployeeID: timekeeping.EmployeeID(q.Get("employee_id")),
		Status:     timekeeping.AnomalyStatus(q.Get("status")),
		Severity:   timekeeping.Severity(q.Get("severity")),
	}

	var err error
	if v := q.Get("from"); v != "" {
		if filter.From, err = timekeeping.ParseDay(v); err != nil {
			return anomaly.Filter{}, err
		}
	}
	if v := q.Get("to"); v != "" {
		if filter.To, err = timekeeping.ParseDay(v); err != nil {
			return anomaly.Filter{}, err
		}
	}
	if v := q.Get("type"); v != "" {
		if filter.Type, err = timekeeping.ParseDeviationKind(v); err != nil {
			return anomaly.Filter{}, err
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
			return anomaly.Filter{}, fmt.Errorf("invalid limit %q", v)
		}
	}
	return filter, nil
}

func nonNil(records []timekeeping.AnomalyRecord) []timekeeping.AnomalyRecord {
	if records == nil {
		return []timekeeping.AnomalyRecord{}
	}
	return records
}

func statusFor(err error) int {
	switch {
	case timekeeping.IsNotFound(err):
		return http.StatusNotFound
	case timekeeping.IsConflict(err):
		return http.StatusConflict
	case timekeeping.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure maps a service error to its status.
func writeFailure(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = strings.TrimSpace(err.Error())
	}
	writeJSON(w, status, resp)
}
