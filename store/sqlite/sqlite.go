/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the payroll engine using SQLite.
  In production the same patterns apply to PostgreSQL (see store/postgres),
  with only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  payroll.Source:      Employees, attendance, holidays, weekends, allowances
  compensation.Store:  Current structures, increment history, transactions
  payroll.RunStore:    Persisted monthly payroll runs

APPEND-ONLY ENFORCEMENT:
  salary_history rows are never deleted. The only UPDATE touches
  increment_amount of a single row addressed by (id, employee_id).

KEY TABLES:
  employees:          Organization membership and join date
  attendance:         One row per (employee, date)
  holidays:           One row per (organization, date)
  weekends:           Weekday names per organization
  leave_allowances:   Yearly leave days per organization
  salary_structures:  Current compensation record per employee
  salary_history:     Snapshots of superseded records
  payroll_runs:       One row per (employee, month)

CONCURRENCY:
  Uses sync.RWMutex for in-process thread-safety and BEGIN IMMEDIATE
  (_txlock=immediate) so a compensation transaction takes the write lock
  before it reads. A busy database surfaces as ErrConcurrentModification.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := payroll.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). PostgreSQL uses versioned migrations
  run by cmd/migrate.

SEE ALSO:
  - compensation.go: Compensation reads and the transactional writer
  - runs.go: Payroll runs
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// timestampLayout sorts lexicographically; every stored timestamp is UTC.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
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
		organization_id TEXT NOT NULL,
		name TEXT,
		join_date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_employees_organization ON employees(organization_id);

	CREATE TABLE IF NOT EXISTS attendance (
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('Present', 'Absent', 'Half-Day', 'Leave')),
		entry_time TEXT,
		exit_time TEXT,
		PRIMARY KEY (employee_id, date)
	);

	CREATE TABLE IF NOT EXISTS holidays (
		organization_id TEXT NOT NULL,
		date TEXT NOT NULL,
		reason TEXT,
		PRIMARY KEY (organization_id, date)
	);

	CREATE TABLE IF NOT EXISTS weekends (
		organization_id TEXT NOT NULL,
		day TEXT NOT NULL,
		PRIMARY KEY (organization_id, day)
	);

	CREATE TABLE IF NOT EXISTS leave_allowances (
		organization_id TEXT PRIMARY KEY,
		days INTEGER NOT NULL CHECK (days >= 0)
	);

	CREATE TABLE IF NOT EXISTS salary_structures (
		employee_id TEXT PRIMARY KEY,
		base_salary TEXT NOT NULL,
		da TEXT NOT NULL,
		hra TEXT NOT NULL,
		ta TEXT NOT NULL,
		ma TEXT NOT NULL,
		pa TEXT NOT NULL,
		others_json TEXT,
		pf TEXT NOT NULL,
		pt TEXT NOT NULL,
		other_deductions_json TEXT,
		total_salary TEXT NOT NULL,
		increment_amount TEXT NOT NULL,
		effective_from TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS salary_history (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		base_salary TEXT NOT NULL,
		da TEXT NOT NULL,
		hra TEXT NOT NULL,
		ta TEXT NOT NULL,
		ma TEXT NOT NULL,
		pa TEXT NOT NULL,
		others_json TEXT,
		pf TEXT NOT NULL,
		pt TEXT NOT NULL,
		other_deductions_json TEXT,
		total_salary TEXT NOT NULL,
		increment_amount TEXT NOT NULL,
		applied_increment TEXT NOT NULL,
		effective_from TEXT,
		superseded_on TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_salary_history_employee
		ON salary_history(employee_id, recorded_at);

	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		month TEXT NOT NULL,
		status TEXT NOT NULL,
		net_salary TEXT NOT NULL,
		result_json TEXT,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL,
		UNIQUE (employee_id, month)
	);
	CREATE INDEX IF NOT EXISTS idx_payroll_runs_status ON payroll_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset drops all data (for demo scenarios and tests).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"payroll_runs", "salary_history", "salary_structures", "leave_allowances",
		"weekends", "holidays", "attendance", "employees",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return generic.StoreFailure("reset "+table, err)
		}
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp payroll.Employee) error {
	if err := emp.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, organization_id, name, join_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			organization_id = excluded.organization_id,
			name = excluded.name,
			join_date = excluded.join_date
	`
	_, err := s.db.ExecContext(ctx, query,
		string(emp.ID), string(emp.OrganizationID), nullString(emp.Name), emp.JoinDate.String())
	return generic.StoreFailure("save employee", err)
}

func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, name, join_date FROM employees WHERE id = ?`, string(id))
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, generic.StoreFailure("get employee", err)
	}
	return &emp, nil
}

func (s *Store) ListEmployees(ctx context.Context, orgID generic.OrganizationID) ([]payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, organization_id, name, join_date FROM employees`
	var args []any
	if orgID != "" {
		query += ` WHERE organization_id = ?`
		args = append(args, string(orgID))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, generic.StoreFailure("list employees", err)
	}
	defer rows.Close()

	var out []payroll.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, generic.StoreFailure("list employees", err)
		}
		out = append(out, emp)
	}
	return out, generic.StoreFailure("list employees", rows.Err())
}

func (s *Store) ListOrganizations(ctx context.Context) ([]generic.OrganizationID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT organization_id FROM employees ORDER BY organization_id`)
	if err != nil {
		return nil, generic.StoreFailure("list organizations", err)
	}
	defer rows.Close()

	var out []generic.OrganizationID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, generic.StoreFailure("list organizations", err)
		}
		out = append(out, generic.OrganizationID(id))
	}
	return out, generic.StoreFailure("list organizations", rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (payroll.Employee, error) {
	var (
		emp           payroll.Employee
		id, org, join string
		name          sql.NullString
	)
	if err := row.Scan(&id, &org, &name, &join); err != nil {
		return emp, err
	}
	joinDate, err := generic.ParseDate(join)
	if err != nil {
		return emp, fmt.Errorf("employee %s join_date: %w", id, err)
	}
	emp.ID = generic.EmployeeID(id)
	emp.OrganizationID = generic.OrganizationID(org)
	emp.Name = name.String
	emp.JoinDate = joinDate
	return emp, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// SaveAttendance upserts rows keyed by (employee, date).
func (s *Store) SaveAttendance(ctx context.Context, days ...attendance.Day) error {
	for _, d := range days {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.StoreFailure("save attendance", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO attendance (employee_id, date, status, entry_time, exit_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, date) DO UPDATE SET
			status = excluded.status,
			entry_time = excluded.entry_time,
			exit_time = excluded.exit_time
	`
	for _, d := range days {
		d = d.Normalized()
		if _, err := tx.ExecContext(ctx, query,
			string(d.EmployeeID), d.Date.String(), string(d.Status),
			clockString(d.EntryTime), clockString(d.ExitTime),
		); err != nil {
			return generic.StoreFailure("save attendance", err)
		}
	}
	return generic.StoreFailure("save attendance", tx.Commit())
}

func (s *Store) AttendanceBetween(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) ([]attendance.Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, date, status, entry_time, exit_time
		FROM attendance
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date
	`, string(employeeID), period.Start.String(), period.End.String())
	if err != nil {
		return nil, generic.StoreFailure("load attendance", err)
	}
	defer rows.Close()

	var out []attendance.Day
	for rows.Next() {
		var (
			emp, date, status string
			entry, exit       sql.NullString
		)
		if err := rows.Scan(&emp, &date, &status, &entry, &exit); err != nil {
			return nil, generic.StoreFailure("load attendance", err)
		}
		tp, err := generic.ParseDate(date)
		if err != nil {
			return nil, generic.StoreFailure("load attendance", err)
		}
		d := attendance.Day{EmployeeID: generic.EmployeeID(emp), Date: tp, Status: attendance.Status(status)}
		d.EntryTime, _ = attendance.ParseOptionalClock(entry.String)
		d.ExitTime, _ = attendance.ParseOptionalClock(exit.String)
		out = append(out, d)
	}
	return out, generic.StoreFailure("load attendance", rows.Err())
}

// =============================================================================
// HOLIDAYS, WEEKENDS, LEAVE ALLOWANCES
// =============================================================================

// SaveHoliday upserts; a second holiday on the same date replaces the reason.
func (s *Store) SaveHoliday(ctx context.Context, h attendance.Holiday) error {
	if h.OrganizationID == "" || h.Date.IsZero() {
		return generic.Invalid("holiday", "organization and date are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (organization_id, date, reason) VALUES (?, ?, ?)
		ON CONFLICT(organization_id, date) DO UPDATE SET reason = excluded.reason
	`, string(h.OrganizationID), h.Date.String(), nullString(h.Reason))
	return generic.StoreFailure("save holiday", err)
}

func (s *Store) HolidaysBetween(ctx context.Context, orgID generic.OrganizationID, period generic.Period) ([]attendance.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, reason FROM holidays
		WHERE organization_id = ? AND date >= ? AND date <= ?
		ORDER BY date
	`, string(orgID), period.Start.String(), period.End.String())
	if err != nil {
		return nil, generic.StoreFailure("load holidays", err)
	}
	defer rows.Close()

	var out []attendance.Holiday
	for rows.Next() {
		var (
			date   string
			reason sql.NullString
		)
		if err := rows.Scan(&date, &reason); err != nil {
			return nil, generic.StoreFailure("load holidays", err)
		}
		tp, err := generic.ParseDate(date)
		if err != nil {
			return nil, generic.StoreFailure("load holidays", err)
		}
		out = append(out, attendance.Holiday{OrganizationID: orgID, Date: tp, Reason: reason.String})
	}
	return out, generic.StoreFailure("load holidays", rows.Err())
}

// SetWeekends replaces the organization's weekend days.
func (s *Store) SetWeekends(ctx context.Context, orgID generic.OrganizationID, names []string) error {
	cfg, err := attendance.NewWeekendConfig(names...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.StoreFailure("set weekends", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM weekends WHERE organization_id = ?`, string(orgID)); err != nil {
		return generic.StoreFailure("set weekends", err)
	}
	for _, day := range cfg.Names() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO weekends (organization_id, day) VALUES (?, ?)`, string(orgID), day); err != nil {
			return generic.StoreFailure("set weekends", err)
		}
	}
	return generic.StoreFailure("set weekends", tx.Commit())
}

func (s *Store) Weekends(ctx context.Context, orgID generic.OrganizationID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT day FROM weekends WHERE organization_id = ?`, string(orgID))
	if err != nil {
		return nil, generic.StoreFailure("load weekends", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, generic.StoreFailure("load weekends", err)
		}
		out = append(out, day)
	}
	sort.Strings(out)
	return out, generic.StoreFailure("load weekends", rows.Err())
}

func (s *Store) SetLeaveAllowance(ctx context.Context, orgID generic.OrganizationID, days int) error {
	if days < 0 {
		return generic.Invalid("leave_allowance", "must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_allowances (organization_id, days) VALUES (?, ?)
		ON CONFLICT(organization_id) DO UPDATE SET days = excluded.days
	`, string(orgID), days)
	return generic.StoreFailure("set leave allowance", err)
}

func (s *Store) LeaveAllowance(ctx context.Context, orgID generic.OrganizationID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var days int
	err := s.db.QueryRowContext(ctx,
		`SELECT days FROM leave_allowances WHERE organization_id = ?`, string(orgID)).Scan(&days)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, generic.StoreFailure("load leave allowance", err)
	}
	return days, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func clockString(c *attendance.ClockTime) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: c.String(), Valid: true}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// translateError maps lock contention to ErrConcurrentModification and
// everything else to a StoreError.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%s: %w", op, generic.ErrConcurrentModification)
		}
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%s: %w", op, generic.ErrConcurrentModification)
		}
	}
	return generic.StoreFailure(op, err)
}
