package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const componentColumns = `base_salary, da, hra, ta, ma, pa, others_json, pf, pt, other_deductions_json`

// =============================================================================
// COMPENSATION READS
// =============================================================================

func (s *Store) CurrentRecord(ctx context.Context, employeeID generic.EmployeeID) (*compensation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return currentRecord(ctx, s.db, employeeID)
}

func (s *Store) History(ctx context.Context, employeeID generic.EmployeeID) ([]compensation.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return history(ctx, s.db, employeeID)
}

func currentRecord(ctx context.Context, q queryer, employeeID generic.EmployeeID) (*compensation.Record, error) {
	row := q.QueryRowContext(ctx, `
		SELECT employee_id, `+componentColumns+`, increment_amount, effective_from, updated_at
		FROM salary_structures WHERE employee_id = ?
	`, string(employeeID))

	var (
		rec                  compensation.Record
		cols                 componentRow
		id, increment, updAt string
		effective            sql.NullString
	)
	dest := append([]any{&id}, cols.dest()...)
	dest = append(dest, &increment, &effective, &updAt)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translateError("load salary structure", err)
	}

	components, err := cols.components()
	if err != nil {
		return nil, generic.StoreFailure("decode salary structure", err)
	}
	rec.EmployeeID = generic.EmployeeID(id)
	rec.Components = components
	rec.IncrementAmount, err = decimal.NewFromString(increment)
	if err != nil {
		return nil, generic.StoreFailure("decode increment amount", err)
	}
	if rec.EffectiveFrom, err = optionalDate(effective); err != nil {
		return nil, generic.StoreFailure("decode effective_from", err)
	}
	rec.UpdatedAt = parseTimestamp(updAt)
	return &rec, nil
}

func history(ctx context.Context, q queryer, employeeID generic.EmployeeID) ([]compensation.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, employee_id, `+componentColumns+`, total_salary, increment_amount,
			applied_increment, effective_from, superseded_on, recorded_at
		FROM salary_history
		WHERE employee_id = ?
		ORDER BY recorded_at, rowid
	`, string(employeeID))
	if err != nil {
		return nil, translateError("load salary history", err)
	}
	defer rows.Close()

	var out []compensation.HistoryEntry
	for rows.Next() {
		var (
			entry                              compensation.HistoryEntry
			cols                               componentRow
			id, emp, total, increment, applied string
			supersededOn, recordedAt           string
			effective                          sql.NullString
		)
		dest := append([]any{&id, &emp}, cols.dest()...)
		dest = append(dest, &total, &increment, &applied, &effective, &supersededOn, &recordedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, translateError("load salary history", err)
		}

		entry.ID = id
		entry.EmployeeID = generic.EmployeeID(emp)
		if entry.Components, err = cols.components(); err != nil {
			return nil, generic.StoreFailure("decode salary history", err)
		}
		if entry.Total, err = decimal.NewFromString(total); err != nil {
			return nil, generic.StoreFailure("decode salary history", err)
		}
		if entry.IncrementAmount, err = decimal.NewFromString(increment); err != nil {
			return nil, generic.StoreFailure("decode salary history", err)
		}
		if entry.AppliedIncrement, err = decimal.NewFromString(applied); err != nil {
			return nil, generic.StoreFailure("decode salary history", err)
		}
		if entry.EffectiveFrom, err = optionalDate(effective); err != nil {
			return nil, generic.StoreFailure("decode salary history", err)
		}
		if entry.SupersededOn, err = generic.ParseDate(supersededOn); err != nil {
			return nil, generic.StoreFailure("decode salary history", err)
		}
		entry.RecordedAt = parseTimestamp(recordedAt)
		out = append(out, entry)
	}
	return out, translateError("load salary history", rows.Err())
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithEmployeeTx runs fn inside a BEGIN IMMEDIATE transaction. The write lock
// is taken before fn reads, so a concurrent writer waits (or fails busy)
// instead of acting on a stale snapshot.
func (s *Store) WithEmployeeTx(ctx context.Context, employeeID generic.EmployeeID, fn func(compensation.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&txWriter{tx: tx, employeeID: employeeID}); err != nil {
		return err
	}
	return translateError("commit transaction", tx.Commit())
}

// txWriter uses only the transaction; taking s.mu here would deadlock.
type txWriter struct {
	tx         *sql.Tx
	employeeID generic.EmployeeID
}

func (w *txWriter) checkEmployee(id generic.EmployeeID) error {
	if id != w.employeeID {
		return fmt.Errorf("transaction for %s cannot touch %s: %w", w.employeeID, id, generic.ErrInvalidInput)
	}
	return nil
}

func (w *txWriter) CurrentRecord(ctx context.Context, employeeID generic.EmployeeID) (*compensation.Record, error) {
	if err := w.checkEmployee(employeeID); err != nil {
		return nil, err
	}
	return currentRecord(ctx, w.tx, employeeID)
}

func (w *txWriter) History(ctx context.Context, employeeID generic.EmployeeID) ([]compensation.HistoryEntry, error) {
	if err := w.checkEmployee(employeeID); err != nil {
		return nil, err
	}
	return history(ctx, w.tx, employeeID)
}

func (w *txWriter) InsertHistory(ctx context.Context, entry compensation.HistoryEntry) error {
	if err := w.checkEmployee(entry.EmployeeID); err != nil {
		return err
	}
	cols, err := newComponentRow(entry.Components)
	if err != nil {
		return generic.StoreFailure("encode salary history", err)
	}
	args := append([]any{entry.ID, string(entry.EmployeeID)}, cols.args()...)
	args = append(args,
		entry.Total.String(),
		entry.IncrementAmount.String(),
		entry.AppliedIncrement.String(),
		optionalDateString(entry.EffectiveFrom),
		entry.SupersededOn.String(),
		formatTimestamp(entry.RecordedAt),
	)
	_, err = w.tx.ExecContext(ctx, `
		INSERT INTO salary_history (id, employee_id, `+componentColumns+`, total_salary,
			increment_amount, applied_increment, effective_from, superseded_on, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	return translateError("insert salary history", err)
}

func (w *txWriter) UpsertRecord(ctx context.Context, record compensation.Record) error {
	if err := w.checkEmployee(record.EmployeeID); err != nil {
		return err
	}
	cols, err := newComponentRow(record.Components)
	if err != nil {
		return generic.StoreFailure("encode salary structure", err)
	}
	args := append([]any{string(record.EmployeeID)}, cols.args()...)
	args = append(args,
		record.Total().String(),
		record.IncrementAmount.String(),
		optionalDateString(record.EffectiveFrom),
		formatTimestamp(record.UpdatedAt),
	)
	_, err = w.tx.ExecContext(ctx, `
		INSERT INTO salary_structures (employee_id, `+componentColumns+`, total_salary,
			increment_amount, effective_from, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			base_salary = excluded.base_salary,
			da = excluded.da,
			hra = excluded.hra,
			ta = excluded.ta,
			ma = excluded.ma,
			pa = excluded.pa,
			others_json = excluded.others_json,
			pf = excluded.pf,
			pt = excluded.pt,
			other_deductions_json = excluded.other_deductions_json,
			total_salary = excluded.total_salary,
			increment_amount = excluded.increment_amount,
			effective_from = excluded.effective_from,
			updated_at = excluded.updated_at
	`, args...)
	return translateError("upsert salary structure", err)
}

func (w *txWriter) UpdateHistoryIncrement(ctx context.Context, employeeID generic.EmployeeID, entryID string, amount decimal.Decimal) error {
	if err := w.checkEmployee(employeeID); err != nil {
		return err
	}
	res, err := w.tx.ExecContext(ctx,
		`UPDATE salary_history SET increment_amount = ? WHERE id = ? AND employee_id = ?`,
		amount.String(), entryID, string(employeeID))
	if err != nil {
		return translateError("update salary history", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translateError("update salary history", err)
	}
	if n == 0 {
		return generic.ErrHistoryEntryNotFound
	}
	return nil
}

// =============================================================================
// COLUMN MAPPING
// =============================================================================

// componentRow is the column-level form of compensation.Components.
type componentRow struct {
	base, da, hra, ta, ma, pa string
	others                    sql.NullString
	pf, pt                    string
	otherDeductions           sql.NullString
}

func newComponentRow(c compensation.Components) (componentRow, error) {
	others, err := encodeLines(c.OtherAllowances)
	if err != nil {
		return componentRow{}, err
	}
	deductions, err := encodeLines(c.OtherDeductions)
	if err != nil {
		return componentRow{}, err
	}
	return componentRow{
		base: c.Base.String(), da: c.DA.String(), hra: c.HRA.String(),
		ta: c.TA.String(), ma: c.MA.String(), pa: c.PA.String(),
		others: others,
		pf:     c.PF.String(), pt: c.PT.String(),
		otherDeductions: deductions,
	}, nil
}

func (r *componentRow) dest() []any {
	return []any{&r.base, &r.da, &r.hra, &r.ta, &r.ma, &r.pa, &r.others, &r.pf, &r.pt, &r.otherDeductions}
}

func (r componentRow) args() []any {
	return []any{r.base, r.da, r.hra, r.ta, r.ma, r.pa, r.others, r.pf, r.pt, r.otherDeductions}
}

func (r componentRow) components() (compensation.Components, error) {
	var (
		c   compensation.Components
		err error
	)
	fixed := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{r.base, &c.Base}, {r.da, &c.DA}, {r.hra, &c.HRA}, {r.ta, &c.TA},
		{r.ma, &c.MA}, {r.pa, &c.PA}, {r.pf, &c.PF}, {r.pt, &c.PT},
	}
	for _, f := range fixed {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return c, err
		}
	}
	if c.OtherAllowances, err = decodeLines(r.others); err != nil {
		return c, err
	}
	if c.OtherDeductions, err = decodeLines(r.otherDeductions); err != nil {
		return c, err
	}
	return c, nil
}

func encodeLines(lines []compensation.NamedAmount) (sql.NullString, error) {
	if len(lines) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeLines(raw sql.NullString) ([]compensation.NamedAmount, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var lines []compensation.NamedAmount
	if err := json.Unmarshal([]byte(raw.String), &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func optionalDate(raw sql.NullString) (*generic.TimePoint, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	tp, err := generic.ParseDate(raw.String)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func optionalDateString(tp *generic.TimePoint) sql.NullString {
	if tp == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}
