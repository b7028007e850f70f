/*
Package postgres provides a PostgreSQL-backed implementation of the storage interfaces.

PURPOSE:
  Same contract as store/sqlite for multi-instance deployments. The schema is
  versioned under migrations/ and applied with cmd/migrate.

CONCURRENCY:
  WithEmployeeTx takes pg_advisory_xact_lock(hashtext(employee_id)) before it
  reads, then locks the current row FOR UPDATE. Two servers applying an
  increment to the same employee therefore run one after the other. A
  serialization failure, deadlock or unique violation surfaces as
  generic.ErrConcurrentModification.

TYPES:
  Money columns are NUMERIC and are read back as text into decimal.Decimal so
  no float conversion ever happens. Dates are DATE and read back as text.

SEE ALSO:
  - transaction.go: TransactionManager (pgx.Tx carried in context)
  - compensation.go: Compensation reads and the transactional writer
  - store/sqlite: Single-node implementation
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

const (
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
	lockNotAvailableCode     = "55P03"
	uniqueViolationCode      = "23505"
	checkViolationCode       = "23514"
)

// Store implements all storage interfaces on a pgx pool.
type Store struct {
	db DB
	tm *TransactionManager
}

func New(db DB) *Store {
	return &Store{db: db, tm: NewTransactionManager(db)}
}

func (s *Store) q(ctx context.Context) Queryer {
	return QueryerFromContext(ctx, s.db)
}

// Reset truncates every table (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.q(ctx).Exec(ctx, `
		TRUNCATE payroll_runs, salary_history, salary_structures, leave_allowances,
			weekends, holidays, attendance, employees
	`)
	return translateError("reset", err)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp payroll.Employee) error {
	if err := emp.Validate(); err != nil {
		return err
	}
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO employees (id, organization_id, name, join_date)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			name = EXCLUDED.name,
			join_date = EXCLUDED.join_date
	`, string(emp.ID), string(emp.OrganizationID), emp.Name, emp.JoinDate.String())
	return translateError("save employee", err)
}

const employeeColumns = `id, organization_id, COALESCE(name, ''), join_date::text`

func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*payroll.Employee, error) {
	row := s.q(ctx).QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, string(id))
	emp, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, translateError("get employee", err)
	}
	return &emp, nil
}

func (s *Store) ListEmployees(ctx context.Context, orgID generic.OrganizationID) ([]payroll.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	var args []any
	if orgID != "" {
		query += ` WHERE organization_id = $1`
		args = append(args, string(orgID))
	}
	query += ` ORDER BY id`

	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, translateError("list employees", err)
	}
	defer rows.Close()

	var out []payroll.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, translateError("list employees", err)
		}
		out = append(out, emp)
	}
	return out, translateError("list employees", rows.Err())
}

func (s *Store) ListOrganizations(ctx context.Context) ([]generic.OrganizationID, error) {
	rows, err := s.q(ctx).Query(ctx, `SELECT DISTINCT organization_id FROM employees ORDER BY organization_id`)
	if err != nil {
		return nil, translateError("list organizations", err)
	}
	defer rows.Close()

	var out []generic.OrganizationID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, translateError("list organizations", err)
		}
		out = append(out, generic.OrganizationID(id))
	}
	return out, translateError("list organizations", rows.Err())
}

func scanEmployee(row pgx.Row) (payroll.Employee, error) {
	var (
		emp                 payroll.Employee
		id, org, name, join string
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
	emp.Name = name
	emp.JoinDate = joinDate
	return emp, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (s *Store) SaveAttendance(ctx context.Context, days ...attendance.Day) error {
	for _, d := range days {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return s.tm.WithinReadWrite(ctx, func(ctx context.Context) error {
		for _, d := range days {
			d = d.Normalized()
			_, err := s.q(ctx).Exec(ctx, `
				INSERT INTO attendance (employee_id, date, status, entry_time, exit_time)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (employee_id, date) DO UPDATE SET
					status = EXCLUDED.status,
					entry_time = EXCLUDED.entry_time,
					exit_time = EXCLUDED.exit_time
			`, string(d.EmployeeID), d.Date.String(), string(d.Status), clockArg(d.EntryTime), clockArg(d.ExitTime))
			if err != nil {
				return translateError("save attendance", err)
			}
		}
		return nil
	})
}

func (s *Store) AttendanceBetween(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) ([]attendance.Day, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT date::text, status, COALESCE(entry_time::text, ''), COALESCE(exit_time::text, '')
		FROM attendance
		WHERE employee_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, string(employeeID), period.Start.String(), period.End.String())
	if err != nil {
		return nil, translateError("load attendance", err)
	}
	defer rows.Close()

	var out []attendance.Day
	for rows.Next() {
		var date, status, entry, exit string
		if err := rows.Scan(&date, &status, &entry, &exit); err != nil {
			return nil, translateError("load attendance", err)
		}
		tp, err := generic.ParseDate(date)
		if err != nil {
			return nil, translateError("load attendance", err)
		}
		d := attendance.Day{EmployeeID: employeeID, Date: tp, Status: attendance.Status(status)}
		d.EntryTime, _ = attendance.ParseOptionalClock(entry)
		d.ExitTime, _ = attendance.ParseOptionalClock(exit)
		out = append(out, d)
	}
	return out, translateError("load attendance", rows.Err())
}

// =============================================================================
// HOLIDAYS, WEEKENDS, LEAVE ALLOWANCES
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h attendance.Holiday) error {
	if h.OrganizationID == "" || h.Date.IsZero() {
		return generic.Invalid("holiday", "organization and date are required")
	}
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO holidays (organization_id, date, reason) VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (organization_id, date) DO UPDATE SET reason = EXCLUDED.reason
	`, string(h.OrganizationID), h.Date.String(), h.Reason)
	return translateError("save holiday", err)
}

func (s *Store) HolidaysBetween(ctx context.Context, orgID generic.OrganizationID, period generic.Period) ([]attendance.Holiday, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT date::text, COALESCE(reason, '')
		FROM holidays
		WHERE organization_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, string(orgID), period.Start.String(), period.End.String())
	if err != nil {
		return nil, translateError("load holidays", err)
	}
	defer rows.Close()

	var out []attendance.Holiday
	for rows.Next() {
		var date, reason string
		if err := rows.Scan(&date, &reason); err != nil {
			return nil, translateError("load holidays", err)
		}
		tp, err := generic.ParseDate(date)
		if err != nil {
			return nil, translateError("load holidays", err)
		}
		out = append(out, attendance.Holiday{OrganizationID: orgID, Date: tp, Reason: reason})
	}
	return out, translateError("load holidays", rows.Err())
}

func (s *Store) SetWeekends(ctx context.Context, orgID generic.OrganizationID, names []string) error {
	cfg, err := attendance.NewWeekendConfig(names...)
	if err != nil {
		return err
	}
	return s.tm.WithinReadWrite(ctx, func(ctx context.Context) error {
		if _, err := s.q(ctx).Exec(ctx, `DELETE FROM weekends WHERE organization_id = $1`, string(orgID)); err != nil {
			return translateError("set weekends", err)
		}
		for _, day := range cfg.Names() {
			if _, err := s.q(ctx).Exec(ctx,
				`INSERT INTO weekends (organization_id, day) VALUES ($1, $2)`, string(orgID), day); err != nil {
				return translateError("set weekends", err)
			}
		}
		return nil
	})
}

func (s *Store) Weekends(ctx context.Context, orgID generic.OrganizationID) ([]string, error) {
	rows, err := s.q(ctx).Query(ctx, `SELECT day FROM weekends WHERE organization_id = $1`, string(orgID))
	if err != nil {
		return nil, translateError("load weekends", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, translateError("load weekends", err)
		}
		out = append(out, day)
	}
	sort.Strings(out)
	return out, translateError("load weekends", rows.Err())
}

func (s *Store) SetLeaveAllowance(ctx context.Context, orgID generic.OrganizationID, days int) error {
	if days < 0 {
		return generic.Invalid("leave_allowance", "must not be negative")
	}
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO leave_allowances (organization_id, days) VALUES ($1, $2)
		ON CONFLICT (organization_id) DO UPDATE SET days = EXCLUDED.days
	`, string(orgID), days)
	return translateError("set leave allowance", err)
}

func (s *Store) LeaveAllowance(ctx context.Context, orgID generic.OrganizationID) (int, error) {
	var days int
	err := s.q(ctx).QueryRow(ctx,
		`SELECT days FROM leave_allowances WHERE organization_id = $1`, string(orgID)).Scan(&days)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, translateError("load leave allowance", err)
	}
	return days, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func clockArg(c *attendance.ClockTime) any {
	if c == nil {
		return nil
	}
	return c.String()
}

// translateError maps lock conflicts to ErrConcurrentModification, check
// violations to ErrInvalidInput and everything else to a StoreError.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case serializationFailureCode, deadlockDetectedCode, lockNotAvailableCode, uniqueViolationCode:
			return fmt.Errorf("%s: %w", op, generic.ErrConcurrentModification)
		case checkViolationCode:
			return generic.Invalid(op, "%s", pgErr.Message)
		}
	}
	return generic.StoreFailure(op, err)
}
