// Package memory provides an in-memory store for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	employees  map[generic.EmployeeID]payroll.Employee
	attendance map[generic.EmployeeID]map[string]attendance.Day
	holidays   map[generic.OrganizationID]map[string]attendance.Holiday
	weekends   map[generic.OrganizationID][]string
	allowances map[generic.OrganizationID]int
	records    map[generic.EmployeeID]compensation.Record
	history    map[generic.EmployeeID][]compensation.HistoryEntry
	runs       map[runKey]payroll.Run

	// One lock per employee serializes compensation transactions.
	locksMu sync.Mutex
	locks   map[generic.EmployeeID]*sync.Mutex
}

type runKey struct {
	EmployeeID generic.EmployeeID
	Month      generic.YearMonth
}

func New() *Memory {
	m := &Memory{locks: make(map[generic.EmployeeID]*sync.Mutex)}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.employees = make(map[generic.EmployeeID]payroll.Employee)
	m.attendance = make(map[generic.EmployeeID]map[string]attendance.Day)
	m.holidays = make(map[generic.OrganizationID]map[string]attendance.Holiday)
	m.weekends = make(map[generic.OrganizationID][]string)
	m.allowances = make(map[generic.OrganizationID]int)
	m.records = make(map[generic.EmployeeID]compensation.Record)
	m.history = make(map[generic.EmployeeID][]compensation.HistoryEntry)
	m.runs = make(map[runKey]payroll.Run)
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, emp payroll.Employee) error {
	if err := emp.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id generic.EmployeeID) (*payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	emp, ok := m.employees[id]
	if !ok {
		return nil, generic.ErrEmployeeNotFound
	}
	return &emp, nil
}

func (m *Memory) ListEmployees(_ context.Context, orgID generic.OrganizationID) ([]payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.Employee
	for _, emp := range m.employees {
		if orgID == "" || emp.OrganizationID == orgID {
			out = append(out, emp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListOrganizations(_ context.Context) ([]generic.OrganizationID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[generic.OrganizationID]bool)
	var out []generic.OrganizationID
	for _, emp := range m.employees {
		if !seen[emp.OrganizationID] {
			seen[emp.OrganizationID] = true
			out = append(out, emp.OrganizationID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// =============================================================================
// ATTENDANCE, HOLIDAYS, WEEKENDS, ALLOWANCES
// =============================================================================

// SaveAttendance upserts rows keyed by (employee, date).
func (m *Memory) SaveAttendance(_ context.Context, days ...attendance.Day) error {
	for _, d := range days {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range days {
		byDate := m.attendance[d.EmployeeID]
		if byDate == nil {
			byDate = make(map[string]attendance.Day)
			m.attendance[d.EmployeeID] = byDate
		}
		byDate[d.Date.String()] = d.Normalized()
	}
	return nil
}

func (m *Memory) AttendanceBetween(_ context.Context, employeeID generic.EmployeeID, period generic.Period) ([]attendance.Day, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []attendance.Day
	for _, d := range m.attendance[employeeID] {
		if period.Contains(d.Date) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// SaveHoliday upserts; a second holiday on the same date replaces the reason.
func (m *Memory) SaveHoliday(_ context.Context, h attendance.Holiday) error {
	if h.OrganizationID == "" || h.Date.IsZero() {
		return generic.Invalid("holiday", "organization and date are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byDate := m.holidays[h.OrganizationID]
	if byDate == nil {
		byDate = make(map[string]attendance.Holiday)
		m.holidays[h.OrganizationID] = byDate
	}
	byDate[h.Date.String()] = h
	return nil
}

func (m *Memory) HolidaysBetween(_ context.Context, orgID generic.OrganizationID, period generic.Period) ([]attendance.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []attendance.Holiday
	for _, h := range m.holidays[orgID] {
		if period.Contains(h.Date) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// SetWeekends replaces the organization's weekend days.
func (m *Memory) SetWeekends(_ context.Context, orgID generic.OrganizationID, names []string) error {
	cfg, err := attendance.NewWeekendConfig(names...)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weekends[orgID] = cfg.Names()
	return nil
}

func (m *Memory) Weekends(_ context.Context, orgID generic.OrganizationID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.weekends[orgID]...), nil
}

func (m *Memory) SetLeaveAllowance(_ context.Context, orgID generic.OrganizationID, days int) error {
	if days < 0 {
		return generic.Invalid("leave_allowance", "must not be negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[orgID] = days
	return nil
}

func (m *Memory) LeaveAllowance(_ context.Context, orgID generic.OrganizationID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allowances[orgID], nil
}

// =============================================================================
// COMPENSATION
// =============================================================================

func (m *Memory) CurrentRecord(_ context.Context, employeeID generic.EmployeeID) (*compensation.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[employeeID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) History(_ context.Context, employeeID generic.EmployeeID) ([]compensation.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]compensation.HistoryEntry(nil), m.history[employeeID]...), nil
}

func (m *Memory) employeeLock(id generic.EmployeeID) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// WithEmployeeTx stages writes and applies them only if fn succeeds.
// Readers outside the transaction never observe a partial write.
func (m *Memory) WithEmployeeTx(ctx context.Context, employeeID generic.EmployeeID, fn func(compensation.Writer) error) error {
	lock := m.employeeLock(employeeID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &txMemory{parent: m, employeeID: employeeID, patches: make(map[string]decimal.Decimal)}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.record != nil {
		m.records[employeeID] = *tx.record
	}
	m.history[employeeID] = append(m.history[employeeID], tx.inserted...)
	for id, amount := range tx.patches {
		entries := m.history[employeeID]
		for i := range entries {
			if entries[i].ID == id {
				entries[i].IncrementAmount = amount
			}
		}
	}
	return nil
}

// txMemory overlays staged writes on the committed state of one employee.
type txMemory struct {
	parent     *Memory
	employeeID generic.EmployeeID
	record     *compensation.Record
	inserted   []compensation.HistoryEntry
	patches    map[string]decimal.Decimal
}

func (t *txMemory) checkEmployee(id generic.EmployeeID) error {
	if id != t.employeeID {
		return generic.Invalid("employee_id", "transaction is scoped to %s", t.employeeID)
	}
	return nil
}

func (t *txMemory) CurrentRecord(ctx context.Context, employeeID generic.EmployeeID) (*compensation.Record, error) {
	if err := t.checkEmployee(employeeID); err != nil {
		return nil, err
	}
	if t.record != nil {
		rec := *t.record
		return &rec, nil
	}
	return t.parent.CurrentRecord(ctx, employeeID)
}

func (t *txMemory) History(ctx context.Context, employeeID generic.EmployeeID) ([]compensation.HistoryEntry, error) {
	if err := t.checkEmployee(employeeID); err != nil {
		return nil, err
	}
	committed, err := t.parent.History(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	out := append(committed, t.inserted...)
	for i := range out {
		if amount, ok := t.patches[out[i].ID]; ok {
			out[i].IncrementAmount = amount
		}
	}
	return out, nil
}

func (t *txMemory) InsertHistory(_ context.Context, entry compensation.HistoryEntry) error {
	if err := t.checkEmployee(entry.EmployeeID); err != nil {
		return err
	}
	t.inserted = append(t.inserted, entry)
	return nil
}

func (t *txMemory) UpsertRecord(_ context.Context, record compensation.Record) error {
	if err := t.checkEmployee(record.EmployeeID); err != nil {
		return err
	}
	t.record = &record
	return nil
}

func (t *txMemory) UpdateHistoryIncrement(ctx context.Context, employeeID generic.EmployeeID, entryID string, amount decimal.Decimal) error {
	history, err := t.History(ctx, employeeID)
	if err != nil {
		return err
	}
	for _, h := range history {
		if h.ID == entryID {
			t.patches[entryID] = amount
			return nil
		}
	}
	return generic.ErrHistoryEntryNotFound
}

// =============================================================================
// PAYROLL RUNS
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run payroll.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runKey{EmployeeID: run.EmployeeID, Month: run.Month}] = run
	return nil
}

func (m *Memory) GetRun(_ context.Context, employeeID generic.EmployeeID, month generic.YearMonth) (*payroll.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runKey{EmployeeID: employeeID, Month: month}]
	if !ok {
		return nil, generic.ErrRunNotFound
	}
	return &run, nil
}

func (m *Memory) ListRuns(_ context.Context, status payroll.RunStatus) ([]payroll.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.Run
	for _, run := range m.runs {
		if status == "" || run.Status == status {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
