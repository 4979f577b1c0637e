// Package store provides in-memory collaborator implementations for tests,
// demos and development servers.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/anomaly"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/timekeeping"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements every collaborator of the attendance service: shifts,
// punches, leave, employees and anomalies.
type Memory struct {
	mu        sync.RWMutex
	employees map[timekeeping.EmployeeID]bool
	shifts    map[dayKey]timekeeping.Shift
	punches   map[timekeeping.EmployeeID][]timekeeping.PunchEvent
	leave     map[timekeeping.EmployeeID][]leave.Period
	anomalies map[timekeeping.AnomalyID]timekeeping.AnomalyRecord
	byDedupe  map[string]timekeeping.AnomalyID

	locksMu  sync.Mutex
	dayLocks map[dayKey]*sync.Mutex
}

type dayKey struct {
	EmployeeID timekeeping.EmployeeID
	Date       string
}

func keyOf(employeeID timekeeping.EmployeeID, d timekeeping.Day) dayKey {
	return dayKey{EmployeeID: employeeID, Date: d.String()}
}

func NewMemory() *Memory {
	return &Memory{
		employees: make(map[timekeeping.EmployeeID]bool),
		shifts:    make(map[dayKey]timekeeping.Shift),
		punches:   make(map[timekeeping.EmployeeID][]timekeeping.PunchEvent),
		leave:     make(map[timekeeping.EmployeeID][]leave.Period),
		anomalies: make(map[timekeeping.AnomalyID]timekeeping.AnomalyRecord),
		byDedupe:  make(map[string]timekeeping.AnomalyID),
		dayLocks:  make(map[dayKey]*sync.Mutex),
	}
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	fresh := NewMemory()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = fresh.employees
	m.shifts = fresh.shifts
	m.punches = fresh.punches
	m.leave = fresh.leave
	m.anomalies = fresh.anomalies
	m.byDedupe = fresh.byDedupe
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) AddEmployee(_ context.Context, employeeID timekeeping.EmployeeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[employeeID] = true
	return nil
}

// EmployeeIDs returns every known employee, sorted.
func (m *Memory) EmployeeIDs(_ context.Context) ([]timekeeping.EmployeeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]timekeeping.EmployeeID, 0, len(m.employees))
	for id := range m.employees {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// =============================================================================
// SHIFTS
// =============================================================================

func (m *Memory) Shift(_ context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day) (*timekeeping.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shifts[keyOf(employeeID, date)]
	if !ok {
		return nil, nil
	}
	s.Segments = append([]timekeeping.WorkSegment(nil), s.Segments...)
	return &s, nil
}

// SaveShift replaces the shift of (employee, date). A shift with no
// segments removes the plan for that day.
func (m *Memory) SaveShift(_ context.Context, shift timekeeping.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(shift.EmployeeID, shift.Date)
	if len(shift.Segments) == 0 {
		delete(m.shifts, k)
		return nil
	}
	shift.Segments = append([]timekeeping.WorkSegment(nil), shift.Segments...)
	m.shifts[k] = shift
	m.employees[shift.EmployeeID] = true
	return nil
}

// =============================================================================
// PUNCHES
// =============================================================================

func (m *Memory) Punches(_ context.Context, employeeID timekeeping.EmployeeID, from, to time.Time) ([]timekeeping.PunchEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []timekeeping.PunchEvent
	for _, p := range m.punches[employeeID] {
		if !p.At.Before(from) && p.At.Before(to) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *Memory) LastPunch(_ context.Context, employeeID timekeeping.EmployeeID) (*timekeeping.PunchEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps := m.punches[employeeID]
	if len(ps) == 0 {
		return nil, nil
	}
	last := ps[len(ps)-1]
	return &last, nil
}

// AppendPunch inserts in time order. Out-of-order inserts are accepted here
// so tests can seed skewed ledgers; PunchLedger.Record guards live ingestion.
func (m *Memory) AppendPunch(_ context.Context, p timekeeping.PunchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps := m.punches[p.EmployeeID]
	for _, existing := range ps {
		if existing.At.Equal(p.At) && existing.Kind == p.Kind {
			return timekeeping.ErrDuplicatePunch
		}
	}
	i := sort.Search(len(ps), func(i int) bool { return ps[i].At.After(p.At) })
	ps = append(ps, timekeeping.PunchEvent{})
	copy(ps[i+1:], ps[i:])
	ps[i] = p
	m.punches[p.EmployeeID] = ps
	m.employees[p.EmployeeID] = true
	return nil
}

// SeedPunches stores punches exactly in the given order, bypassing any
// sorting. Used to reproduce device clock skew.
func (m *Memory) SeedPunches(employeeID timekeeping.EmployeeID, punches ...timekeeping.PunchEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.punches[employeeID] = append(m.punches[employeeID], punches...)
	m.employees[employeeID] = true
}

// =============================================================================
// LEAVE
// =============================================================================

// Leave returns the approved leave covering the date, or nil.
func (m *Memory) Leave(_ context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day) (*leave.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := leave.Covering(m.leave[employeeID], date)
	if p == nil {
		return nil, nil
	}
	out := *p
	return &out, nil
}

// SaveLeave inserts or replaces a leave period by ID.
func (m *Memory) SaveLeave(_ context.Context, p leave.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	periods := m.leave[p.EmployeeID]
	for i := range periods {
		if periods[i].ID == p.ID {
			periods[i] = p
			return nil
		}
	}
	m.leave[p.EmployeeID] = append(periods, p)
	m.employees[p.EmployeeID] = true
	return nil
}

// =============================================================================
// ANOMALIES
// =============================================================================

func (m *Memory) AnomaliesForDay(_ context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day) ([]timekeeping.AnomalyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forDayLocked(employeeID, date), nil
}

func (m *Memory) forDayLocked(employeeID timekeeping.EmployeeID, date timekeeping.Day) []timekeeping.AnomalyRecord {
	var result []timekeeping.AnomalyRecord
	for _, r := range m.anomalies {
		if r.EmployeeID == employeeID && r.Date.Equal(date) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

func (m *Memory) Anomaly(_ context.Context, id timekeeping.AnomalyID) (*timekeeping.AnomalyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.anomalies[id]
	if !ok {
		return nil, timekeeping.ErrAnomalyNotFound
	}
	return &r, nil
}

func (m *Memory) ListAnomalies(_ context.Context, filter anomaly.Filter) ([]timekeeping.AnomalyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []timekeeping.AnomalyRecord
	for _, r := range m.anomalies {
		if filter.Matches(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].DedupeKey < result[j].DedupeKey
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// ApplyDay serialises on the (employee, date) lock, then applies the change
// set in one critical section. A change that cannot be applied restores the
// snapshot taken before the first write.
func (m *Memory) ApplyDay(_ context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day,
	fn func(existing []timekeeping.AnomalyRecord) (anomaly.DayChanges, error)) error {

	unlock := m.lockDay(keyOf(employeeID, date))
	defer unlock()

	m.mu.RLock()
	existing := m.forDayLocked(employeeID, date)
	m.mu.RUnlock()

	changes, err := fn(existing)
	if err != nil {
		return err
	}
	if changes.IsEmpty() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := m.applyLocked(employeeID, date, changes); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) applyLocked(employeeID timekeeping.EmployeeID, date timekeeping.Day, changes anomaly.DayChanges) error {
	for _, id := range changes.Deletes {
		r, ok := m.anomalies[id]
		if !ok {
			continue
		}
		if r.Status.IsTerminal() {
			return fmt.Errorf("refusing to delete %s anomaly %s", r.Status, id)
		}
		delete(m.anomalies, id)
		delete(m.byDedupe, r.DedupeKey)
	}
	for _, r := range changes.Upserts {
		if r.EmployeeID != employeeID || !r.Date.Equal(date) {
			return fmt.Errorf("anomaly %s does not belong to %s on %s", r.ID, employeeID, date)
		}
		if owner, ok := m.byDedupe[r.DedupeKey]; ok && owner != r.ID {
			return fmt.Errorf("dedupe key %s already owned by %s", r.DedupeKey, owner)
		}
		if prev, ok := m.anomalies[r.ID]; ok && prev.Status.IsTerminal() {
			return fmt.Errorf("%w: %s", timekeeping.ErrTerminalAnomalyConflict, r.ID)
		}
		m.anomalies[r.ID] = r
		m.byDedupe[r.DedupeKey] = r.ID
	}
	return nil
}

// UpdateAnomaly is a compare-and-swap on status, serialised with ApplyDay
// through the same day lock.
func (m *Memory) UpdateAnomaly(_ context.Context, record timekeeping.AnomalyRecord, expected timekeeping.AnomalyStatus) error {
	unlock := m.lockDay(keyOf(record.EmployeeID, record.Date))
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.anomalies[record.ID]
	if !ok {
		return timekeeping.ErrAnomalyNotFound
	}
	if current.Status != expected {
		return timekeeping.ErrConcurrentModification
	}
	m.anomalies[record.ID] = record
	return nil
}

func (m *Memory) lockDay(k dayKey) func() {
	m.locksMu.Lock()
	l, ok := m.dayLocks[k]
	if !ok {
		l = &sync.Mutex{}
		m.dayLocks[k] = l
	}
	m.locksMu.Unlock()
	l.Lock()
	return l.Unlock
}

type anomalySnapshot struct {
	anomalies map[timekeeping.AnomalyID]timekeeping.AnomalyRecord
	byDedupe  map[string]timekeeping.AnomalyID
}

func (m *Memory) snapshot() anomalySnapshot {
	s := anomalySnapshot{
		anomalies: make(map[timekeeping.AnomalyID]timekeeping.AnomalyRecord, len(m.anomalies)),
		byDedupe:  make(map[string]timekeeping.AnomalyID, len(m.byDedupe)),
	}
	for k, v := range m.anomalies {
		s.anomalies[k] = v
	}
	for k, v := range m.byDedupe {
		s.byDedupe[k] = v
	}
	return s
}

func (m *Memory) restore(s anomalySnapshot) {
	m.anomalies = s.anomalies
	m.byDedupe = s.byDedupe
}
