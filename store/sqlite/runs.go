package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// PAYROLL RUNS
// =============================================================================

const runColumns = `id, employee_id, month, status, net_salary, result_json, error, started_at, completed_at, created_at`

// SaveRun inserts or replaces the run for (employee, month). The row keeps
// its original id and created_at on replacement.
func (s *Store) SaveRun(ctx context.Context, run payroll.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payroll_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, month) DO UPDATE SET
			status = excluded.status,
			net_salary = excluded.net_salary,
			result_json = excluded.result_json,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		string(run.EmployeeID),
		run.Month.String(),
		string(run.Status),
		run.NetSalary.String(),
		nullString(run.ResultJSON),
		nullString(run.Error),
		nullTime(run.StartedAt),
		nullTime(run.CompletedAt),
		formatTimestamp(run.CreatedAt),
	)
	return translateError("save payroll run", err)
}

func (s *Store) GetRun(ctx context.Context, employeeID generic.EmployeeID, month generic.YearMonth) (*payroll.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM payroll_runs WHERE employee_id = ? AND month = ?`,
		string(employeeID), month.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrRunNotFound
	}
	if err != nil {
		return nil, generic.StoreFailure("get payroll run", err)
	}
	return &run, nil
}

func (s *Store) ListRuns(ctx context.Context, status payroll.RunStatus) ([]payroll.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM payroll_runs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, generic.StoreFailure("list payroll runs", err)
	}
	defer rows.Close()

	var out []payroll.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, generic.StoreFailure("list payroll runs", err)
		}
		out = append(out, run)
	}
	return out, generic.StoreFailure("list payroll runs", rows.Err())
}

func scanRun(row scanner) (payroll.Run, error) {
	var (
		run                                 payroll.Run
		id, emp, month, status, net, create string
		result, errMsg, started, completed  sql.NullString
	)
	if err := row.Scan(&id, &emp, &month, &status, &net, &result, &errMsg, &started, &completed, &create); err != nil {
		return run, err
	}
	ym, err := generic.ParseYearMonth(month)
	if err != nil {
		return run, err
	}
	netSalary, err := decimal.NewFromString(net)
	if err != nil {
		return run, err
	}

	run.ID = id
	run.EmployeeID = generic.EmployeeID(emp)
	run.Month = ym
	run.Status = payroll.RunStatus(status)
	run.NetSalary = netSalary
	run.ResultJSON = result.String
	run.Error = errMsg.String
	run.StartedAt = optionalTime(started)
	run.CompletedAt = optionalTime(completed)
	run.CreatedAt = parseTimestamp(create)
	return run, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func optionalTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t := parseTimestamp(raw.String)
	return &t
}
