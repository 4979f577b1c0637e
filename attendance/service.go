/*
Package attendance is the entry point of the engine.

PURPOSE:
  Service wires the collaborators (shifts, punches, leave, anomaly store)
  to the pure reconcile engine, the anomaly classifier and the period
  aggregator. HTTP handlers, the scheduler and the CLI only call Service.

OPERATIONS:
  ReconcileDay       load one workday and reconcile it (no writes)
  ClassifyAndUpsert  persist the deviations of a reconciliation
  Recompute          ReconcileDay + ClassifyAndUpsert
  ProcessAnomaly     validate / refuse / correct a pending record
  Aggregate          KPIs of one employee over a period
  AggregateTeam      Aggregate for many employees in parallel
  RecordPunch        ingest one punch and recompute its workday

FAILURE ISOLATION:
  A day rejected for clock skew is logged and skipped; it never aborts
  the other days of a period or the other employees of a team.
  Collaborator and persistence failures are returned to the caller.

SEE ALSO:
  - reconcile/engine.go: day reconciliation
  - anomaly/classifier.go: idempotent upsert
  - report/aggregate.go: KPI fold
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/warp/attendance-engine/anomaly"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/timekeeping"
)

// DefaultConcurrency bounds AggregateTeam and RecomputeRange fan-out.
const DefaultConcurrency = 8

// =============================================================================
// COLLABORATORS
// =============================================================================

// LeaveCalendar returns the approved leave covering a date, or nil.
type LeaveCalendar interface {
	Leave(ctx context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day) (*leave.Period, error)
}

// LeaveStore also records leave periods.
type LeaveStore interface {
	LeaveCalendar
	SaveLeave(ctx context.Context, period leave.Period) error
}

// Store is a single backend serving every collaborator, as both the
// memory and the sqlite stores do.
type Store interface {
	timekeeping.ShiftStore
	timekeeping.PunchStore
	timekeeping.EmployeeLister
	LeaveStore
	anomaly.Store
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Shifts     timekeeping.ShiftProvider
	Ledger     *timekeeping.PunchLedger
	Leave      LeaveCalendar
	Employees  timekeeping.EmployeeLister
	Anomalies  anomaly.Store
	Engine     *reconcile.Engine
	Classifier *anomaly.Classifier
	Processor  *anomaly.Processor
	Log        zerolog.Logger

	// Concurrency caps parallel employees in team operations.
	Concurrency int
}

// NewService builds a service over one backend.
func NewService(store Store, clock timekeeping.Clock, tol reconcile.Tolerances, log zerolog.Logger) *Service {
	return &Service{
		Shifts:      store,
		Ledger:      timekeeping.NewPunchLedger(store, clock),
		Leave:       store,
		Employees:   store,
		Anomalies:   store,
		Engine:      reconcile.NewEngine(clock, tol),
		Classifier:  anomaly.NewClassifier(store, log.With().Str("component", "classifier").Logger()),
		Processor:   anomaly.NewProcessor(store, log.With().Str("component", "processor").Logger()),
		Log:         log,
		Concurrency: DefaultConcurrency,
	}
}

// Clock is the civil time policy the service reconciles under.
func (s *Service) Clock() timekeeping.Clock { return s.Engine.Clock }

// =============================================================================
// DAY OPERATIONS
// =============================================================================

// ReconcileDay loads the shift, punch window and leave of one workday and
// reconciles them. Nothing is written.
func (s *Service) ReconcileDay(ctx context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day) (reconcile.DayReconciliation, error) {
	shift, err := s.Shifts.Shift(ctx, employeeID, date)
	if err != nil {
		return reconcile.DayReconciliation{}, fmt.Errorf("failed to load shift for %s on %s: %w", employeeID, date, err)
	}
	punches, err := s.Ledger.Window(ctx, employeeID, date)
	if err != nil {
		return reconcile.DayReconciliation{}, err
	}
	lv, err := s.Leave.Leave(ctx, employeeID, date)
	if err != nil {
		return reconcile.DayReconciliation{}, fmt.Errorf("failed to load leave for %s on %s: %w", employeeID, date, err)
	}

	return s.Engine.Reconcile(reconcile.Input{
		EmployeeID: employeeID,
		Date:       date,
		Shift:      shift,
		Punches:    punches,
		Leave:      lv,
	})
}

// ClassifyAndUpsert persists rec as anomaly records for (employeeID, date).
func (s *Service) ClassifyAndUpsert(ctx context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day, rec reconcile.DayReconciliation) ([]timekeeping.AnomalyRecord, error) {
	if rec.EmployeeID != employeeID || !rec.Date.Equal(date) {
		return nil, fmt.Errorf("reconciliation is for %s on %s, not %s on %s", rec.EmployeeID, rec.Date, employeeID, date)
	}
	return s.Classifier.ClassifyAndUpsert(ctx, rec)
}

// Recompute reconciles a workday and upserts its anomalies.
func (s *Service) Recompute(ctx context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day) (reconcile.DayReconciliation, []timekeeping.AnomalyRecord, error) {
	rec, err := s.ReconcileDay(ctx, employeeID, date)
	if err != nil {
		return reconcile.DayReconciliation{}, nil, err
	}
	records, err := s.ClassifyAndUpsert(ctx, employeeID, date, rec)
	if err != nil {
		return rec, nil, err
	}
	return rec, records, nil
}

// RecomputeSummary reports a batch recompute.
type RecomputeSummary struct {
	Employees int `json:"employees"`
	Days      int `json:"days"`
	Anomalies int `json:"anomalies"`
	Skipped   int `json:"skipped"`
}

// RecomputeRange recomputes every day of period for the given employees
// (all known employees when empty). Clock-skewed days are skipped; other
// failures are collected and returned together after every employee ran.
func (s *Service) RecomputeRange(ctx context.Context, employees []timekeeping.EmployeeID, period timekeeping.Period) (RecomputeSummary, error) {
	if err := period.Validate(); err != nil {
		return RecomputeSummary{}, err
	}
	employees, err := s.resolveEmployees(ctx, employees)
	if err != nil {
		return RecomputeSummary{}, err
	}

	perEmployee := make([]RecomputeSummary, len(employees))
	failures := make([]error, len(employees))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, emp := range employees {
		g.Go(func() error {
			sum := &perEmployee[i]
			for _, d := range period.Days() {
				if err := gctx.Err(); err != nil {
					return err
				}
				_, records, err := s.Recompute(gctx, emp, d)
				switch {
				case errors.Is(err, timekeeping.ErrClockSkew):
					s.logSkipped(emp, d, err)
					sum.Skipped++
				case err != nil:
					failures[i] = errors.Join(failures[i], err)
				default:
					sum.Days++
					sum.Anomalies += len(records)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RecomputeSummary{}, err
	}

	total := RecomputeSummary{Employees: len(employees)}
	for _, sum := range perEmployee {
		total.Days += sum.Days
		total.Anomalies += sum.Anomalies
		total.Skipped += sum.Skipped
	}
	s.Log.Info().
		Str("period", period.String()).
		Int("employees", total.Employees).
		Int("days", total.Days).
		Int("anomalies", total.Anomalies).
		Int("skipped", total.Skipped).
		Msg("recompute finished")
	return total, errors.Join(failures...)
}

// =============================================================================
// REVIEW
// =============================================================================

// ProcessAnomaly applies a reviewer decision.
func (s *Service) ProcessAnomaly(ctx context.Context, id timekeeping.AnomalyID, action anomaly.Action, comment, actor string) (timekeeping.AnomalyRecord, error) {
	return s.Processor.Process(ctx, id, action, comment, actor)
}

// ListAnomalies lists stored records.
func (s *Service) ListAnomalies(ctx context.Context, filter anomaly.Filter) ([]timekeeping.AnomalyRecord, error) {
	return s.Anomalies.ListAnomalies(ctx, filter)
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregate reconciles every day of period and folds the KPIs. Clock-skewed
// days are excluded and listed in SkippedDays.
func (s *Service) Aggregate(ctx context.Context, employeeID timekeeping.EmployeeID, period timekeeping.Period) (report.PeriodAggregate, error) {
	if err := period.Validate(); err != nil {
		return report.PeriodAggregate{}, err
	}
	if err := s.checkEmployee(ctx, employeeID); err != nil {
		return report.PeriodAggregate{}, err
	}

	days := make([]reconcile.DayReconciliation, 0, period.Len())
	var skipped []timekeeping.Day
	for _, d := range period.Days() {
		rec, err := s.ReconcileDay(ctx, employeeID, d)
		if errors.Is(err, timekeeping.ErrClockSkew) {
			s.logSkipped(employeeID, d, err)
			skipped = append(skipped, d)
			continue
		}
		if err != nil {
			return report.PeriodAggregate{}, err
		}
		days = append(days, rec)
	}
	return report.Aggregate(employeeID, period, days, skipped), nil
}

// AggregateTeam aggregates several employees in parallel. Results keep the
// order of employees (all known employees when empty).
func (s *Service) AggregateTeam(ctx context.Context, employees []timekeeping.EmployeeID, period timekeeping.Period) ([]report.PeriodAggregate, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	employees, err := s.resolveEmployees(ctx, employees)
	if err != nil {
		return nil, err
	}

	results := make([]report.PeriodAggregate, len(employees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, emp := range employees {
		g.Go(func() error {
			agg, err := s.Aggregate(gctx, emp, period)
			if err != nil {
				return fmt.Errorf("aggregate %s: %w", emp, err)
			}
			results[i] = agg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// =============================================================================
// INGESTION
// =============================================================================

// PunchResult is the outcome of RecordPunch.
type PunchResult struct {
	Punch          timekeeping.PunchEvent      `json:"punch"`
	Workday        timekeeping.Day             `json:"workday"`
	Reconciliation reconcile.DayReconciliation `json:"reconciliation"`
	Anomalies      []timekeeping.AnomalyRecord `json:"anomalies"`
}

// RecordPunch appends a punch through the ledger and recomputes the
// workday it belongs to.
func (s *Service) RecordPunch(ctx context.Context, p timekeeping.PunchEvent) (PunchResult, error) {
	if p.ID == "" {
		p.ID = timekeeping.PunchID(uuid.NewString())
	}
	if err := s.Ledger.Record(ctx, p); err != nil {
		return PunchResult{}, err
	}

	workday := s.Ledger.WorkdayOf(p)
	rec, records, err := s.Recompute(ctx, p.EmployeeID, workday)
	if err != nil {
		return PunchResult{}, fmt.Errorf("punch recorded but recompute of %s failed: %w", workday, err)
	}
	return PunchResult{Punch: p, Workday: workday, Reconciliation: rec, Anomalies: records}, nil
}

// =============================================================================
// PLANNING
// =============================================================================

// SaveShift validates and stores a shift. Shifts is required to be a
// ShiftStore.
func (s *Service) SaveShift(ctx context.Context, shift timekeeping.Shift) error {
	store, ok := s.Shifts.(timekeeping.ShiftStore)
	if !ok {
		return fmt.Errorf("shift provider %T is read-only", s.Shifts)
	}
	if strings.TrimSpace(string(shift.EmployeeID)) == "" || shift.Date.IsZero() {
		return fmt.Errorf("%w: employee and date are required", timekeeping.ErrInvalidShift)
	}
	if err := timekeeping.ValidateShift(shift, s.Engine.Tolerances.ArrivalEarlyCeiling); err != nil {
		return err
	}
	return store.SaveShift(ctx, shift)
}

// SaveLeave validates and stores a leave period, assigning an ID if needed.
func (s *Service) SaveLeave(ctx context.Context, p leave.Period) (leave.Period, error) {
	store, ok := s.Leave.(LeaveStore)
	if !ok {
		return leave.Period{}, fmt.Errorf("leave calendar %T is read-only", s.Leave)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := p.Validate(); err != nil {
		return leave.Period{}, err
	}
	if err := store.SaveLeave(ctx, p); err != nil {
		return leave.Period{}, err
	}
	return p, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) resolveEmployees(ctx context.Context, employees []timekeeping.EmployeeID) ([]timekeeping.EmployeeID, error) {
	if len(employees) > 0 {
		return employees, nil
	}
	if s.Employees == nil {
		return nil, errors.New("no employee lister configured")
	}
	ids, err := s.Employees.EmployeeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return ids, nil
}

// checkEmployee fails with ErrEmployeeNotFound for an ID the store has never
// seen. Without a lister every ID is accepted.
func (s *Service) checkEmployee(ctx context.Context, employeeID timekeeping.EmployeeID) error {
	if s.Employees == nil {
		return nil
	}
	ids, err := s.Employees.EmployeeIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list employees: %w", err)
	}
	if !slices.Contains(ids, employeeID) {
		return fmt.Errorf("%w: %s", timekeeping.ErrEmployeeNotFound, employeeID)
	}
	return nil
}

func (s *Service) concurrency() int {
	if s.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return s.Concurrency
}

func (s *Service) logSkipped(employeeID timekeeping.EmployeeID, d timekeeping.Day, err error) {
	s.Log.Warn().
		Err(err).
		Str("employee_id", string(employeeID)).
		Str("date", d.String()).
		Msg("day skipped: punches out of order")
}
