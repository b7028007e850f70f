package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
)

const componentSelect = `base_salary::text, da::text, hra::text, ta::text, ma::text, pa::text,
	COALESCE(others::text, ''), pf::text, pt::text, COALESCE(other_deductions::text, '')`

const componentInsert = `base_salary, da, hra, ta, ma, pa, others, pf, pt, other_deductions`

// =============================================================================
// COMPENSATION READS
// =============================================================================

func (s *Store) CurrentRecord(ctx context.Context, employeeID generic.EmployeeID) (*compensation.Record, error) {
	return currentRecord(ctx, s.q(ctx), employeeID, false)
}

func (s *Store) History(ctx context.Context, employeeID generic.EmployeeID) ([]compensation.HistoryEntry, error) {
	return history(ctx, s.q(ctx), employeeID)
}

func currentRecord(ctx context.Context, q Queryer, employeeID generic.EmployeeID, forUpdate bool) (*compensation.Record, error) {
	query := `
		SELECT employee_id, ` + componentSelect + `, increment_amount::text,
			COALESCE(effective_from::text, ''), updated_at
		FROM salary_structures
		WHERE employee_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		rec                      compensation.Record
		cols                     componentRow
		id, increment, effective string
		updatedAt                time.Time
	)
	dest := append([]any{&id}, cols.dest()...)
	dest = append(dest, &increment, &effective, &updatedAt)
	if err := q.QueryRow(ctx, query, string(employeeID)).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, translateError("load salary structure", err)
	}

	var err error
	if rec.Components, err = cols.components(); err != nil {
		return nil, generic.StoreFailure("decode salary structure", err)
	}
	if rec.IncrementAmount, err = decimal.NewFromString(increment); err != nil {
		return nil, generic.StoreFailure("decode salary structure", err)
	}
	if rec.EffectiveFrom, err = optionalDate(effective); err != nil {
		return nil, generic.StoreFailure("decode salary structure", err)
	}
	rec.EmployeeID = generic.EmployeeID(id)
	rec.UpdatedAt = updatedAt.UTC()
	return &rec, nil
}

func history(ctx context.Context, q Queryer, employeeID generic.EmployeeID) ([]compensation.HistoryEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT id::text, employee_id, `+componentSelect+`, total_salary::text,
			increment_amount::text, applied_increment::text,
			COALESCE(effective_from::text, ''), superseded_on::text, recorded_at
		FROM salary_history
		WHERE employee_id = $1
		ORDER BY recorded_at, id
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
			effective, supersededOn            string
			recordedAt                         time.Time
		)
		dest := append([]any{&id, &emp}, cols.dest()...)
		dest = append(dest, &total, &increment, &applied, &effective, &supersededOn, &recordedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, translateError("load salary history", err)
		}
		if err := decodeHistory(&entry, cols, total, increment, applied, effective, supersededOn); err != nil {
			return nil, generic.StoreFailure("decode salary history", err)
		}
		entry.ID = id
		entry.EmployeeID = generic.EmployeeID(emp)
		entry.RecordedAt = recordedAt.UTC()
		out = append(out, entry)
	}
	return out, translateError("load salary history", rows.Err())
}

func decodeHistory(entry *compensation.HistoryEntry, cols componentRow, total, increment, applied, effective, supersededOn string) error {
	var err error
	if entry.Components, err = cols.components(); err != nil {
		return err
	}
	if entry.Total, err = decimal.NewFromString(total); err != nil {
		return err
	}
	if entry.IncrementAmount, err = decimal.NewFromString(increment); err != nil {
		return err
	}
	if entry.AppliedIncrement, err = decimal.NewFromString(applied); err != nil {
		return err
	}
	if entry.EffectiveFrom, err = optionalDate(effective); err != nil {
		return err
	}
	entry.SupersededOn, err = generic.ParseDate(supersededOn)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithEmployeeTx serializes writers per employee with a transaction-scoped
// advisory lock; the lock is released on commit or rollback.
func (s *Store) WithEmployeeTx(ctx context.Context, employeeID generic.EmployeeID, fn func(compensation.Writer) error) error {
	return s.tm.WithinReadWrite(ctx, func(txCtx context.Context) error {
		q := s.q(txCtx)
		if _, err := q.Exec(txCtx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(employeeID)); err != nil {
			return translateError("lock employee", err)
		}
		return fn(&txWriter{q: q, employeeID: employeeID})
	})
}

// txWriter is bound to one transaction and one employee.
type txWriter struct {
	q          Queryer
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
	return currentRecord(ctx, w.q, employeeID, true)
}

func (w *txWriter) History(ctx context.Context, employeeID generic.EmployeeID) ([]compensation.HistoryEntry, error) {
	if err := w.checkEmployee(employeeID); err != nil {
		return nil, err
	}
	return history(ctx, w.q, employeeID)
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
		optionalDateArg(entry.EffectiveFrom),
		entry.SupersededOn.String(),
		entry.RecordedAt.UTC(),
	)
	_, err = w.q.Exec(ctx, `
		INSERT INTO salary_history (id, employee_id, `+componentInsert+`, total_salary,
			increment_amount, applied_increment, effective_from, superseded_on, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
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
		optionalDateArg(record.EffectiveFrom),
		record.UpdatedAt.UTC(),
	)
	_, err = w.q.Exec(ctx, `
		INSERT INTO salary_structures (employee_id, `+componentInsert+`, total_salary,
			increment_amount, effective_from, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (employee_id) DO UPDATE SET
			base_salary = EXCLUDED.base_salary,
			da = EXCLUDED.da,
			hra = EXCLUDED.hra,
			ta = EXCLUDED.ta,
			ma = EXCLUDED.ma,
			pa = EXCLUDED.pa,
			others = EXCLUDED.others,
			pf = EXCLUDED.pf,
			pt = EXCLUDED.pt,
			other_deductions = EXCLUDED.other_deductions,
			total_salary = EXCLUDED.total_salary,
			increment_amount = EXCLUDED.increment_amount,
			effective_from = EXCLUDED.effective_from,
			updated_at = EXCLUDED.updated_at
	`, args...)
	return translateError("upsert salary structure", err)
}

func (w *txWriter) UpdateHistoryIncrement(ctx context.Context, employeeID generic.EmployeeID, entryID string, amount decimal.Decimal) error {
	if err := w.checkEmployee(employeeID); err != nil {
		return err
	}
	tag, err := w.q.Exec(ctx,
		`UPDATE salary_history SET increment_amount = $1 WHERE id::text = $2 AND employee_id = $3`,
		amount.String(), entryID, string(employeeID))
	if err != nil {
		return translateError("update salary history", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.ErrHistoryEntryNotFound
	}
	return nil
}

// =============================================================================
// COLUMN MAPPING
// =============================================================================

// componentRow is the text form of compensation.Components as it crosses the wire.
type componentRow struct {
	base, da, hra, ta, ma, pa string
	others                    string
	pf, pt                    string
	otherDeductions           string
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
	return []any{r.base, r.da, r.hra, r.ta, r.ma, r.pa, nullIfEmpty(r.others), r.pf, r.pt, nullIfEmpty(r.otherDeductions)}
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

func encodeLines(lines []compensation.NamedAmount) (string, error) {
	if len(lines) == 0 {
		return "", nil
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeLines(raw string) ([]compensation.NamedAmount, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var lines []compensation.NamedAmount
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func optionalDate(raw string) (*generic.TimePoint, error) {
	if raw == "" {
		return nil, nil
	}
	tp, err := generic.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func optionalDateArg(tp *generic.TimePoint) any {
	if tp == nil {
		return nil
	}
	return tp.String()
}
