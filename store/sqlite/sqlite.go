/*
Package sqlite provides a SQLite-backed implementation of the collaborator
interfaces.

PURPOSE:
  One Store serves every collaborator of attendance.Service. In production
  the same patterns apply to PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  timekeeping.ShiftStore:     planned shifts
  timekeeping.PunchStore:     raw clock events
  timekeeping.EmployeeLister: batch recompute targets
  attendance.LeaveStore:      leave periods
  anomaly.Store:              anomaly records

KEY TABLES:
  employees:      known employee ids
  shifts:         one row per (employee, date), segments as JSON
  punches:        append-only clock events, instant as unix nanoseconds
  leave_periods:  leave with status
  anomalies:      reviewable records, UNIQUE(dedupe_key)

IDEMPOTENCY:
  - punches: UNIQUE(employee_id, at_ns, kind) -> ErrDuplicatePunch
  - anomalies: UNIQUE(dedupe_key); a refresh never touches a row whose
    status is no longer pending

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ApplyDay holds the write lock and
  runs in one SQL transaction, which serialises every (employee, date).

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the single writer.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - timekeeping/store.go: shift and punch contracts
  - anomaly/store.go: anomaly contract
  - timekeeping/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/attendance-engine/anomaly"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/timekeeping"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);

	-- Shifts (one plan per employee and workday)
	CREATE TABLE IF NOT EXISTS shifts (
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		segments_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, date)
	);

	-- Punches (append-only)
	CREATE TABLE IF NOT EXISTS punches (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		at_ns INTEGER NOT NULL,
		kind TEXT NOT NULL,
		source TEXT,
		created_at TEXT NOT NULL,
		UNIQUE (employee_id, at_ns, kind)
	);

	-- Ledger window reads (hot path)
	CREATE INDEX IF NOT EXISTS idx_punches_employee_at
		ON punches(employee_id, at_ns);

	-- Leave periods
	CREATE TABLE IF NOT EXISTS leave_periods (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_leave_employee_range
		ON leave_periods(employee_id, start_date, end_date);

	-- Anomalies (one per employee, date and type)
	CREATE TABLE IF NOT EXISTS anomalies (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		details_json TEXT NOT NULL,
		dedupe_key TEXT NOT NULL UNIQUE,
		comment TEXT,
		processed_by TEXT,
		processed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_anomalies_employee_date
		ON anomalies(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_anomalies_status
		ON anomalies(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// =============================================================================
// EMPLOYEES (timekeeping.EmployeeLister)
// =============================================================================

// AddEmployee registers an employee id. Re-adding is a no-op.
func (s *Store) AddEmployee(ctx context.Context, employeeID timekeeping.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchEmployee(ctx, s.db, employeeID)
}

func (s *Store) touchEmployee(ctx context.Context, db execer, employeeID timekeeping.EmployeeID) error {
	_, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO employees (id, created_at) VALUES (?, ?)",
		employeeID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to register employee: %w", err)
	}
	return nil
}

// EmployeeIDs returns every known employee, sorted.
func (s *Store) EmployeeIDs(ctx context.Context) ([]timekeeping.EmployeeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM employees ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var ids []timekeeping.EmployeeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, timekeeping.EmployeeID(id))
	}
	return ids, rows.Err()
}

// =============================================================================
// SHIFTS (timekeeping.ShiftStore)
// =============================================================================

// Shift returns the plan of (employee, date), or nil when nothing is planned.
func (s *Store) Shift(ctx context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day) (*timekeeping.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var segmentsJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT segments_json FROM shifts WHERE employee_id = ? AND date = ?",
		employeeID, date.String(),
	).Scan(&segmentsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shift: %w", err)
	}

	shift := timekeeping.Shift{EmployeeID: employeeID, Date: date}
	if err := json.Unmarshal([]byte(segmentsJSON), &shift.Segments); err != nil {
		return nil, fmt.Errorf("corrupt segments for %s on %s: %w", employeeID, date, err)
	}
	return &shift, nil
}

// SaveShift replaces the plan of (employee, date). No segments deletes it.
func (s *Store) SaveShift(ctx context.Context, shift timekeeping.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(shift.Segments) == 0 {
		_, err := s.db.ExecContext(ctx,
			"DELETE FROM shifts WHERE employee_id = ? AND date = ?",
			shift.EmployeeID, shift.Date.String(),
		)
		return err
	}

	segmentsJSON, err := json.Marshal(shift.Segments)
	if err != nil {
		return fmt.Errorf("failed to encode segments: %w", err)
	}

	query := `
		INSERT INTO shifts (employee_id, date, segments_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, date) DO UPDATE SET
			segments_json = excluded.segments_json,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		shift.EmployeeID, shift.Date.String(), string(segmentsJSON),
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to save shift: %w", err)
	}
	return s.touchEmployee(ctx, s.db, shift.EmployeeID)
}

// =============================================================================
// PUNCHES (timekeeping.PunchStore)
// =============================================================================

// Punches returns punches with At in [from, to), ordered by At.
func (s *Store) Punches(ctx context.Context, employeeID timekeeping.EmployeeID, from, to time.Time) ([]timekeeping.PunchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, at_ns, kind, source
		FROM punches
		WHERE employee_id = ? AND at_ns >= ? AND at_ns < ?
		ORDER BY at_ns ASC, rowid ASC
	`
	return s.queryPunches(ctx, query, employeeID, from.UnixNano(), to.UnixNano())
}

// LastPunch returns the latest punch of the employee, or nil.
func (s *Store) LastPunch(ctx context.Context, employeeID timekeeping.EmployeeID) (*timekeeping.PunchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, at_ns, kind, source
		FROM punches
		WHERE employee_id = ?
		ORDER BY at_ns DESC, rowid DESC
		LIMIT 1
	`
	punches, err := s.queryPunches(ctx, query, employeeID)
	if err != nil || len(punches) == 0 {
		return nil, err
	}
	return &punches[0], nil
}

// AppendPunch persists a punch.
func (s *Store) AppendPunch(ctx context.Context, p timekeeping.PunchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO punches (id, employee_id, at_ns, kind, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.EmployeeID, p.At.UnixNano(), p.Kind, nullString(p.Source),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return timekeeping.ErrDuplicatePunch
		}
		return fmt.Errorf("failed to append punch: %w", err)
	}
	return s.touchEmployee(ctx, s.db, p.EmployeeID)
}

func (s *Store) queryPunches(ctx context.Context, query string, args ...any) ([]timekeeping.PunchEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query punches: %w", err)
	}
	defer rows.Close()

	var punches []timekeeping.PunchEvent
	for rows.Next() {
		var (
			p      timekeeping.PunchEvent
			atNS   int64
			source sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.EmployeeID, &atNS, &p.Kind, &source); err != nil {
			return nil, fmt.Errorf("failed to scan punch: %w", err)
		}
		p.At = time.Unix(0, atNS).UTC()
		p.Source = source.String
		punches = append(punches, p)
	}
	return punches, rows.Err()
}

// =============================================================================
// LEAVE (attendance.LeaveStore)
// =============================================================================

// Leave returns the first approved leave covering the date, or nil.
func (s *Store) Leave(ctx context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day) (*leave.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p          leave.Period
		start, end string
		reason     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, kind, start_date, end_date, status, reason
		FROM leave_periods
		WHERE employee_id = ? AND status = ? AND start_date <= ? AND end_date >= ?
		ORDER BY start_date ASC, id ASC
		LIMIT 1`,
		employeeID, leave.StatusApproved, date.String(), date.String(),
	).Scan(&p.ID, &p.EmployeeID, &p.Kind, &start, &end, &p.Status, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load leave: %w", err)
	}

	if p.Start, err = timekeeping.ParseDay(start); err != nil {
		return nil, err
	}
	if p.End, err = timekeeping.ParseDay(end); err != nil {
		return nil, err
	}
	p.Reason = reason.String
	return &p, nil
}

// SaveLeave inserts or replaces a leave period by ID.
func (s *Store) SaveLeave(ctx context.Context, p leave.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leave_periods (id, employee_id, kind, start_date, end_date, status, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			reason = excluded.reason
	`
	if _, err := s.db.ExecContext(ctx, query,
		p.ID, p.EmployeeID, p.Kind, p.Start.String(), p.End.String(), p.Status, nullString(p.Reason),
	); err != nil {
		return fmt.Errorf("failed to save leave: %w", err)
	}
	return s.touchEmployee(ctx, s.db, p.EmployeeID)
}

// =============================================================================
// ANOMALIES (anomaly.Store)
// =============================================================================

const anomalyColumns = `id, employee_id, date, type, severity, status, details_json, dedupe_key,
	comment, processed_by, processed_at, created_at, updated_at`

// AnomaliesForDay returns the records of (employee, date).
func (s *Store) AnomaliesForDay(ctx context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day) ([]timekeeping.AnomalyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.anomaliesForDay(ctx, s.db, employeeID, date)
}

func (s *Store) anomaliesForDay(ctx context.Context, db querier, employeeID timekeeping.EmployeeID, date timekeeping.Day) ([]timekeeping.AnomalyRecord, error) {
	query := "SELECT " + anomalyColumns + " FROM anomalies WHERE employee_id = ? AND date = ? ORDER BY created_at, id"
	return queryAnomalies(ctx, db, query, employeeID, date.String())
}

// Anomaly loads one record.
func (s *Store) Anomaly(ctx context.Context, id timekeeping.AnomalyID) (*timekeeping.AnomalyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := queryAnomalies(ctx, s.db, "SELECT "+anomalyColumns+" FROM anomalies WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, timekeeping.ErrAnomalyNotFound
	}
	return &records[0], nil
}

// ListAnomalies returns records matching the filter, newest date first.
func (s *Store) ListAnomalies(ctx context.Context, filter anomaly.Filter) ([]timekeeping.AnomalyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if !filter.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, filter.From.String())
	}
	if !filter.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, filter.To.String())
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Type != 0 {
		where = append(where, "type = ?")
		args = append(args, filter.Type.String())
	}

	query := "SELECT " + anomalyColumns + " FROM anomalies"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, dedupe_key ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return queryAnomalies(ctx, s.db, query, args...)
}

// ApplyDay runs fn inside one SQL transaction under the write lock.
func (s *Store) ApplyDay(ctx context.Context, employeeID timekeeping.EmployeeID, date timekeeping.Day,
	fn func(existing []timekeeping.AnomalyRecord) (anomaly.DayChanges, error)) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	existing, err := s.anomaliesForDay(ctx, sqlTx, employeeID, date)
	if err != nil {
		return err
	}

	changes, err := fn(existing)
	if err != nil {
		return err
	}
	if changes.IsEmpty() {
		return nil
	}

	for _, id := range changes.Deletes {
		if _, err := sqlTx.ExecContext(ctx,
			"DELETE FROM anomalies WHERE id = ? AND status = ?", id, timekeeping.StatusPending,
		); err != nil {
			return fmt.Errorf("failed to delete anomaly %s: %w", id, err)
		}
	}
	for _, r := range changes.Upserts {
		if r.EmployeeID != employeeID || !r.Date.Equal(date) {
			return fmt.Errorf("anomaly %s does not belong to %s on %s", r.ID, employeeID, date)
		}
		if err := upsertAnomaly(ctx, sqlTx, r); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// upsertAnomaly inserts a record or refreshes a pending one. A processed
// row is left as is.
func upsertAnomaly(ctx context.Context, db execer, r timekeeping.AnomalyRecord) error {
	detailsJSON, err := json.Marshal(r.Details)
	if err != nil {
		return fmt.Errorf("failed to encode details: %w", err)
	}

	query := `
		INSERT INTO anomalies (` + anomalyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			severity = excluded.severity,
			details_json = excluded.details_json,
			updated_at = excluded.updated_at
		WHERE anomalies.status = 'pending'
	`
	_, err = db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.Date.String(), r.Type.String(), r.Severity, r.Status,
		string(detailsJSON), r.DedupeKey,
		nullString(r.Comment), nullString(r.ProcessedBy), nullTime(r.ProcessedAt),
		r.CreatedAt.UTC().Format(time.RFC3339Nano), r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("dedupe key %s already taken: %w", r.DedupeKey, err)
		}
		return fmt.Errorf("failed to upsert anomaly: %w", err)
	}
	return nil
}

// UpdateAnomaly replaces a record if its status is still expected.
func (s *Store) UpdateAnomaly(ctx context.Context, r timekeeping.AnomalyRecord, expected timekeeping.AnomalyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailsJSON, err := json.Marshal(r.Details)
	if err != nil {
		return fmt.Errorf("failed to encode details: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE anomalies SET
			severity = ?, status = ?, details_json = ?, comment = ?,
			processed_by = ?, processed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		r.Severity, r.Status, string(detailsJSON), nullString(r.Comment),
		nullString(r.ProcessedBy), nullTime(r.ProcessedAt), r.UpdatedAt.UTC().Format(time.RFC3339Nano),
		r.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update anomaly: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM anomalies WHERE id = ?", r.ID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return timekeeping.ErrAnomalyNotFound
	}
	return timekeeping.ErrConcurrentModification
}

func queryAnomalies(ctx context.Context, db querier, query string, args ...any) ([]timekeeping.AnomalyRecord, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer rows.Close()

	var records []timekeeping.AnomalyRecord
	for rows.Next() {
		r, err := scanAnomaly(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanAnomaly(rows *sql.Rows) (timekeeping.AnomalyRecord, error) {
	var (
		r                    timekeeping.AnomalyRecord
		date, typeTag        string
		detailsJSON          string
		comment, processedBy sql.NullString
		processedAt          sql.NullString
		createdAt, updatedAt string
	)
	err := rows.Scan(
		&r.ID, &r.EmployeeID, &date, &typeTag, &r.Severity, &r.Status, &detailsJSON, &r.DedupeKey,
		&comment, &processedBy, &processedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan anomaly: %w", err)
	}

	if r.Date, err = timekeeping.ParseDay(date); err != nil {
		return r, err
	}
	if r.Type, err = timekeeping.ParseDeviationKind(typeTag); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(detailsJSON), &r.Details); err != nil {
		return r, fmt.Errorf("corrupt details for anomaly %s: %w", r.ID, err)
	}
	r.Comment = comment.String
	r.ProcessedBy = processedBy.String
	if processedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, processedAt.String)
		if err != nil {
			return r, fmt.Errorf("corrupt processed_at for anomaly %s: %w", r.ID, err)
		}
		r.ProcessedAt = &t
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return r, fmt.Errorf("corrupt created_at for anomaly %s: %w", r.ID, err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return r, fmt.Errorf("corrupt updated_at for anomaly %s: %w", r.ID, err)
	}
	return r, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"anomalies", "punches", "shifts", "leave_periods", "employees"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
