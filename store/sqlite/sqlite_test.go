package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(t *testing.T, s string) generic.TimePoint {
	t.Helper()
	tp, err := generic.ParseDate(s)
	require.NoError(t, err)
	return tp
}

func month(t *testing.T, s string) generic.YearMonth {
	t.Helper()
	ym, err := generic.ParseYearMonth(s)
	require.NoError(t, err)
	return ym
}

func salary(amount int64) compensation.Components {
	return compensation.Components{
		Base: decimal.NewFromInt(amount),
		HRA:  decimal.NewFromInt(2000),
		OtherAllowances: []compensation.NamedAmount{
			{Name: "Shift", Amount: decimal.RequireFromString("500.50")},
		},
		PF: decimal.NewFromInt(1000),
		OtherDeductions: []compensation.NamedAmount{
			{Name: "Loan", Amount: decimal.NewFromInt(500)},
		},
	}
}

// =============================================================================
// EMPLOYEE AND CALENDAR TESTS
// =============================================================================

func TestEmployees_SaveGetList(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, payroll.Employee{ID: "emp-2", OrganizationID: "org-b", JoinDate: date(t, "2022-01-10")}))
	require.NoError(t, store.SaveEmployee(ctx, payroll.Employee{ID: "emp-1", OrganizationID: "org-a", Name: "Asha", JoinDate: date(t, "2023-03-15")}))

	emp, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", emp.Name)
	assert.Equal(t, "2023-03-15", emp.JoinDate.String())

	_, err = store.GetEmployee(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)

	all, err := store.ListEmployees(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, generic.EmployeeID("emp-1"), all[0].ID)

	orgA, err := store.ListEmployees(ctx, "org-a")
	require.NoError(t, err)
	assert.Len(t, orgA, 1)

	orgs, err := store.ListOrganizations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.OrganizationID{"org-a", "org-b"}, orgs)
}

func TestAttendance_UpsertAndRange(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	clock, err := attendance.ParseClock("09:00")
	require.NoError(t, err)
	entry := &clock

	require.NoError(t, store.SaveAttendance(ctx,
		attendance.Day{EmployeeID: "emp-1", Date: date(t, "2024-04-01"), Status: attendance.StatusPresent, EntryTime: entry},
		attendance.Day{EmployeeID: "emp-1", Date: date(t, "2024-04-02"), Status: attendance.StatusLeave, EntryTime: entry},
		attendance.Day{EmployeeID: "emp-1", Date: date(t, "2024-05-01"), Status: attendance.StatusPresent},
	))
	// Second write for the same date replaces the first.
	require.NoError(t, store.SaveAttendance(ctx,
		attendance.Day{EmployeeID: "emp-1", Date: date(t, "2024-04-01"), Status: attendance.StatusHalfDay}))

	days, err := store.AttendanceBetween(ctx, "emp-1", month(t, "2024-04").Period())
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, attendance.StatusHalfDay, days[0].Status)
	assert.Equal(t, attendance.StatusLeave, days[1].Status)
	assert.Nil(t, days[1].EntryTime, "leave days carry no clock times")
}

func TestCalendar_HolidaysWeekendsAllowance(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveHoliday(ctx, attendance.Holiday{OrganizationID: "org-1", Date: date(t, "2024-04-10"), Reason: "Festival"}))
	require.NoError(t, store.SaveHoliday(ctx, attendance.Holiday{OrganizationID: "org-1", Date: date(t, "2024-04-10"), Reason: "Renamed"}))
	require.NoError(t, store.SaveHoliday(ctx, attendance.Holiday{OrganizationID: "org-2", Date: date(t, "2024-04-11")}))

	holidays, err := store.HolidaysBetween(ctx, "org-1", month(t, "2024-04").Period())
	require.NoError(t, err)
	require.Len(t, holidays, 1)
	assert.Equal(t, "Renamed", holidays[0].Reason)

	require.NoError(t, store.SetWeekends(ctx, "org-1", []string{"Saturday", "sunday"}))
	require.NoError(t, store.SetWeekends(ctx, "org-1", []string{"Sunday"}))
	weekends, err := store.Weekends(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sunday"}, weekends)

	allowance, err := store.LeaveAllowance(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 0, allowance, "unset allowance is zero")

	require.NoError(t, store.SetLeaveAllowance(ctx, "org-1", 12))
	allowance, err = store.LeaveAllowance(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 12, allowance)

	assert.ErrorIs(t, store.SetLeaveAllowance(ctx, "org-1", -1), generic.ErrInvalidInput)
}

// =============================================================================
// COMPENSATION TESTS
// =============================================================================

func TestCompensation_IncrementRoundTrip(t *testing.T) {
	// GIVEN: A configured structure
	// WHEN: An increment is applied and then corrected
	// THEN: Components, dates and amounts survive the trip through SQLite

	store := newStore(t)
	ctx := context.Background()
	manager := compensation.NewManager(store)

	_, err := manager.SetStructure(ctx, "emp-1", salary(30000))
	require.NoError(t, err)

	current, err := store.CurrentRecord(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Nil(t, current.EffectiveFrom)
	assert.True(t, current.Total().Equal(decimal.RequireFromString("31000.50")))
	require.Len(t, current.Components.OtherAllowances, 1)
	assert.Equal(t, "Shift", current.Components.OtherAllowances[0].Name)

	_, err = manager.ApplyIncrement(ctx, compensation.IncrementRequest{
		EmployeeID:      "emp-1",
		Components:      salary(35000),
		IncrementAmount: decimal.NewFromInt(5000),
		IncrementDate:   date(t, "2024-04-10"),
	})
	require.NoError(t, err)

	history, err := store.History(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	entry := history[0]
	assert.True(t, entry.Total.Equal(decimal.RequireFromString("31000.50")))
	assert.True(t, entry.IncrementAmount.Equal(decimal.NewFromInt(5000)))
	assert.True(t, entry.AppliedIncrement.IsZero())
	assert.Nil(t, entry.EffectiveFrom)
	assert.Equal(t, "2024-04-10", entry.SupersededOn.String())

	_, err = manager.EditIncrement(ctx, compensation.EditIncrementRequest{
		EmployeeID:      "emp-1",
		HistoryEntryID:  entry.ID,
		Components:      salary(36000),
		IncrementAmount: decimal.NewFromInt(6000),
	})
	require.NoError(t, err)

	current, err = store.CurrentRecord(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, current.Components.Base.Equal(decimal.NewFromInt(36000)))
	assert.True(t, current.IncrementAmount.Equal(decimal.NewFromInt(6000)))
	require.NotNil(t, current.EffectiveFrom)
	assert.Equal(t, "2024-04-10", current.EffectiveFrom.String(), "correction keeps the effective date")

	history, err = store.History(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].IncrementAmount.Equal(decimal.NewFromInt(6000)))
}

func TestCompensation_HistoryOrderedByRecordedAt(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	clock := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	manager := compensation.NewManager(store, compensation.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	_, err := manager.SetStructure(ctx, "emp-1", salary(30000))
	require.NoError(t, err)
	for i, d := range []string{"2024-02-01", "2024-05-01", "2024-09-01"} {
		_, err := manager.ApplyIncrement(ctx, compensation.IncrementRequest{
			EmployeeID:      "emp-1",
			Components:      salary(int64(31000 + i*1000)),
			IncrementAmount: decimal.NewFromInt(1000),
			IncrementDate:   date(t, d),
		})
		require.NoError(t, err)
	}

	history, err := store.History(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "2024-02-01", history[0].SupersededOn.String())
	assert.Equal(t, "2024-05-01", history[1].SupersededOn.String())
	assert.Equal(t, "2024-09-01", history[2].SupersededOn.String())
	assert.True(t, history[0].RecordedAt.Before(history[2].RecordedAt))

	timeline := compensation.BuildTimeline(mustCurrent(t, store), history)
	assert.True(t, timeline.Resolve(month(t, "2024-06")).Components.Base.Equal(decimal.NewFromInt(32000)))
}

func mustCurrent(t *testing.T, store *sqlite.Store) *compensation.Record {
	t.Helper()
	rec, err := store.CurrentRecord(context.Background(), "emp-1")
	require.NoError(t, err)
	return rec
}

func TestWithEmployeeTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes history, then fails
	// WHEN: The callback returns an error
	// THEN: Neither the history entry nor the record is visible

	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithEmployeeTx(ctx, "emp-1", func(w compensation.Writer) error {
		require.NoError(t, w.InsertHistory(ctx, compensation.HistoryEntry{
			ID:           "h-1",
			EmployeeID:   "emp-1",
			Components:   salary(30000),
			SupersededOn: date(t, "2024-04-01"),
			RecordedAt:   time.Now(),
		}))
		require.NoError(t, w.UpsertRecord(ctx, compensation.Record{EmployeeID: "emp-1", Components: salary(35000)}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	history, err := store.History(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	current, err := store.CurrentRecord(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestWithEmployeeTx_ScopedToOneEmployee(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.WithEmployeeTx(ctx, "emp-1", func(w compensation.Writer) error {
		return w.UpsertRecord(ctx, compensation.Record{EmployeeID: "emp-2", Components: salary(1000)})
	})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	err = store.WithEmployeeTx(ctx, "emp-1", func(w compensation.Writer) error {
		return w.UpdateHistoryIncrement(ctx, "emp-1", "missing", decimal.NewFromInt(1))
	})
	assert.ErrorIs(t, err, generic.ErrHistoryEntryNotFound)
}

func TestWithEmployeeTx_FileDatabaseSerializesWriters(t *testing.T) {
	// GIVEN: Two managers racing on the same employee in a file database
	// WHEN: Both apply an increment
	// THEN: Each produces exactly one history entry; nothing is lost

	store, err := sqlite.New(filepath.Join(t.TempDir(), "payroll.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	manager := compensation.NewManager(store)

	_, err = manager.SetStructure(ctx, "emp-1", salary(30000))
	require.NoError(t, err)

	errs := make(chan error, 2)
	april := date(t, "2024-04-01")
	for i := 0; i < 2; i++ {
		go func() {
			_, err := manager.ApplyIncrement(ctx, compensation.IncrementRequest{
				EmployeeID:      "emp-1",
				Components:      salary(35000),
				IncrementAmount: decimal.NewFromInt(5000),
				IncrementDate:   april,
			})
			errs <- err
		}()
	}
	succeeded := 0
	for i := 0; i < 2; i++ {
		if err := <-errs; err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, generic.ErrConcurrentModification)
		}
	}

	history, err := store.History(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, history, succeeded)
}

func TestCompensation_CorruptRowIsStoreFailure(t *testing.T) {
	// GIVEN: A stored structure and history entry whose dates were overwritten with garbage
	// WHEN: Reading them back
	// THEN: The error is a store failure, never a client input error

	path := filepath.Join(t.TempDir(), "payroll.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	manager := compensation.NewManager(store)

	_, err = manager.SetStructure(ctx, "emp-1", salary(30000))
	require.NoError(t, err)
	_, err = manager.ApplyIncrement(ctx, compensation.IncrementRequest{
		EmployeeID:      "emp-1",
		Components:      salary(35000),
		IncrementAmount: decimal.NewFromInt(5000),
		IncrementDate:   date(t, "2024-04-01"),
	})
	require.NoError(t, err)

	raw, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec(`UPDATE salary_structures SET effective_from = 'garbage'`)
	require.NoError(t, err)
	_, err = raw.Exec(`UPDATE salary_history SET superseded_on = 'garbage'`)
	require.NoError(t, err)

	_, err = store.CurrentRecord(ctx, "emp-1")
	assert.ErrorIs(t, err, generic.ErrStoreFailure)
	assert.NotErrorIs(t, err, generic.ErrInvalidInput)
	assert.Contains(t, err.Error(), "garbage")

	_, err = store.History(ctx, "emp-1")
	assert.ErrorIs(t, err, generic.ErrStoreFailure)
	assert.False(t, generic.IsClientError(err))
}

// =============================================================================
// PAYROLL RUN TESTS
// =============================================================================

func TestRuns_SaveReplaceList(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	april := month(t, "2024-04")

	_, err := store.GetRun(ctx, "emp-1", april)
	assert.ErrorIs(t, err, generic.ErrRunNotFound)

	created := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, payroll.Run{
		ID: "run-1", EmployeeID: "emp-1", Month: april, Status: payroll.RunFailed,
		Error: "store down", CreatedAt: created,
	}))

	completed := created.Add(time.Hour)
	require.NoError(t, store.SaveRun(ctx, payroll.Run{
		ID: "run-2", EmployeeID: "emp-1", Month: april, Status: payroll.RunCompleted,
		NetSalary: decimal.NewFromInt(28000), ResultJSON: `{"ok":true}`,
		CompletedAt: &completed, CreatedAt: completed,
	}))
	require.NoError(t, store.SaveRun(ctx, payroll.Run{
		ID: "run-3", EmployeeID: "emp-2", Month: april, Status: payroll.RunFailed,
		CreatedAt: created.Add(2 * time.Hour),
	}))

	run, err := store.GetRun(ctx, "emp-1", april)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID, "replacement keeps the original id")
	assert.Equal(t, payroll.RunCompleted, run.Status)
	assert.True(t, run.NetSalary.Equal(decimal.NewFromInt(28000)))
	require.NotNil(t, run.CompletedAt)
	assert.True(t, run.CompletedAt.Equal(completed))
	assert.True(t, run.CreatedAt.Equal(created))

	failed, err := store.ListRuns(ctx, payroll.RunFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, generic.EmployeeID("emp-2"), failed[0].EmployeeID)

	all, err := store.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "run-3", all[0].ID, "newest first")
}

// =============================================================================
// END-TO-END
// =============================================================================

func TestEngine_ComputesFromSQLite(t *testing.T) {
	// GIVEN: 30000/month, Sunday weekends, two holidays, two leave days and
	//        two unmarked days in April 2024
	// WHEN: Computing April against the SQLite store
	// THEN: 28 paid days -> 28000, same as the in-memory store

	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, payroll.Employee{ID: "emp-1", OrganizationID: "org-1", JoinDate: date(t, "2023-03-15")}))
	require.NoError(t, store.SetWeekends(ctx, "org-1", []string{"Sunday"}))
	require.NoError(t, store.SetLeaveAllowance(ctx, "org-1", 12))
	_, err := compensation.NewManager(store).SetStructure(ctx, "emp-1", compensation.Components{Base: decimal.NewFromInt(30000)})
	require.NoError(t, err)

	for _, d := range []string{"2024-04-10", "2024-04-11"} {
		require.NoError(t, store.SaveHoliday(ctx, attendance.Holiday{OrganizationID: "org-1", Date: date(t, d)}))
	}
	skip := map[int]bool{7: true, 14: true, 21: true, 28: true, 10: true, 11: true, 17: true, 18: true}
	for _, d := range month(t, "2024-04").Period().Days() {
		status := attendance.StatusPresent
		if d.Day() == 15 || d.Day() == 16 {
			status = attendance.StatusLeave
		} else if skip[d.Day()] {
			continue
		}
		require.NoError(t, store.SaveAttendance(ctx, attendance.Day{EmployeeID: "emp-1", Date: d, Status: status}))
	}

	res, err := payroll.NewEngine(store).ComputeMonthlyPayroll(ctx, "emp-1", "2024-04")
	require.NoError(t, err)
	assert.Equal(t, 20, res.Days.Present)
	assert.Equal(t, 2, res.Days.Leave)
	assert.True(t, res.Salary.Net.Equal(decimal.NewFromInt(28000)), "got %s", res.Salary.Net)

	summary, err := payroll.NewEngine(store).ProcessMonth(ctx, store, "org-1", "2024-04")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)

	summary, err = payroll.NewEngine(store).ProcessMonth(ctx, store, "org-1", "2024-04")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
}
