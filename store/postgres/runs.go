package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// PAYROLL RUNS
// =============================================================================

const runSelect = `id::text, employee_id, month, status, net_salary::text, COALESCE(result_json::text, ''),
	COALESCE(error, ''), started_at, completed_at, created_at`

func (s *Store) SaveRun(ctx context.Context, run payroll.Run) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO payroll_runs (id, employee_id, month, status, net_salary, result_json,
			error, started_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)
		ON CONFLICT (employee_id, month) DO UPDATE SET
			status = EXCLUDED.status,
			net_salary = EXCLUDED.net_salary,
			result_json = EXCLUDED.result_json,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`,
		run.ID,
		string(run.EmployeeID),
		run.Month.String(),
		string(run.Status),
		run.NetSalary.String(),
		nullIfEmpty(run.ResultJSON),
		run.Error,
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt.UTC(),
	)
	return translateError("save payroll run", err)
}

func (s *Store) GetRun(ctx context.Context, employeeID generic.EmployeeID, month generic.YearMonth) (*payroll.Run, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+runSelect+` FROM payroll_runs WHERE employee_id = $1 AND month = $2`,
		string(employeeID), month.String())
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.ErrRunNotFound
	}
	if err != nil {
		return nil, translateError("get payroll run", err)
	}
	return &run, nil
}

func (s *Store) ListRuns(ctx context.Context, status payroll.RunStatus) ([]payroll.Run, error) {
	query := `SELECT ` + runSelect + ` FROM payroll_runs`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, translateError("list payroll runs", err)
	}
	defer rows.Close()

	var out []payroll.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, translateError("list payroll runs", err)
		}
		out = append(out, run)
	}
	return out, translateError("list payroll runs", rows.Err())
}

func scanRun(row pgx.Row) (payroll.Run, error) {
	var (
		run                                 payroll.Run
		id, emp, month, status, net, result string
		errMsg                              string
		startedAt, completedAt              sql.NullTime
		createdAt                           time.Time
	)
	if err := row.Scan(&id, &emp, &month, &status, &net, &result, &errMsg, &startedAt, &completedAt, &createdAt); err != nil {
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
	run.ResultJSON = result
	run.Error = errMsg
	run.StartedAt = timePtr(startedAt)
	run.CompletedAt = timePtr(completedAt)
	run.CreatedAt = createdAt.UTC()
	return run, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
