package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

func TestWithEmployeeTx_StagesUntilCommit(t *testing.T) {
	// GIVEN: An empty store
	m := New()
	ctx := context.Background()
	date := generic.NewTimePoint(2024, time.April, 1)

	// WHEN: A transaction writes and then fails
	boom := errors.New("boom")
	err := m.WithEmployeeTx(ctx, "emp-1", func(w compensation.Writer) error {
		require.NoError(t, w.UpsertRecord(ctx, compensation.Record{
			EmployeeID: "emp-1", EffectiveFrom: &date,
			Components: compensation.Components{Base: decimal.NewFromInt(100)},
		}))
		require.NoError(t, w.InsertHistory(ctx, compensation.HistoryEntry{ID: "h-1", EmployeeID: "emp-1", SupersededOn: date}))

		// THEN: The transaction sees its own writes
		current, err := w.CurrentRecord(ctx, "emp-1")
		require.NoError(t, err)
		require.NotNil(t, current)
		history, err := w.History(ctx, "emp-1")
		require.NoError(t, err)
		assert.Len(t, history, 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// THEN: Nothing is visible afterwards
	current, err := m.CurrentRecord(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, current)
	history, err := m.History(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestWithEmployeeTx_PatchAndScope(t *testing.T) {
	m := New()
	ctx := context.Background()
	date := generic.NewTimePoint(2024, time.April, 1)

	require.NoError(t, m.WithEmployeeTx(ctx, "emp-1", func(w compensation.Writer) error {
		return w.InsertHistory(ctx, compensation.HistoryEntry{ID: "h-1", EmployeeID: "emp-1", SupersededOn: date})
	}))
	require.NoError(t, m.WithEmployeeTx(ctx, "emp-1", func(w compensation.Writer) error {
		return w.UpdateHistoryIncrement(ctx, "emp-1", "h-1", decimal.NewFromInt(750))
	}))

	history, err := m.History(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].IncrementAmount.Equal(decimal.NewFromInt(750)))

	err = m.WithEmployeeTx(ctx, "emp-1", func(w compensation.Writer) error {
		return w.UpdateHistoryIncrement(ctx, "emp-1", "missing", decimal.NewFromInt(1))
	})
	assert.ErrorIs(t, err, generic.ErrHistoryEntryNotFound)

	err = m.WithEmployeeTx(ctx, "emp-1", func(w compensation.Writer) error {
		_, err := w.CurrentRecord(ctx, "emp-2")
		return err
	})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestAttendanceAndCalendar(t *testing.T) {
	m := New()
	ctx := context.Background()
	april := generic.YearMonth{Year: 2024, Month: time.April}

	require.NoError(t, m.SaveEmployee(ctx, payroll.Employee{
		ID: "emp-1", OrganizationID: "org-1", JoinDate: generic.NewTimePoint(2023, time.March, 15),
	}))
	require.NoError(t, m.SaveAttendance(ctx,
		attendance.Day{EmployeeID: "emp-1", Date: generic.NewTimePoint(2024, time.April, 2), Status: attendance.StatusPresent},
		attendance.Day{EmployeeID: "emp-1", Date: generic.NewTimePoint(2024, time.May, 2), Status: attendance.StatusLeave},
	))
	require.NoError(t, m.SetWeekends(ctx, "org-1", []string{"Sunday", "saturday"}))
	assert.Error(t, m.SetWeekends(ctx, "org-1", []string{"Funday"}))

	days, err := m.AttendanceBetween(ctx, "emp-1", april.Period())
	require.NoError(t, err)
	assert.Len(t, days, 1)

	names, err := m.Weekends(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, names, 2)

	allowance, err := m.LeaveAllowance(ctx, "org-1")
	require.NoError(t, err)
	assert.Zero(t, allowance)

	_, err = m.GetEmployee(ctx, "nobody")
	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)

	require.NoError(t, m.Reset(ctx))
	orgs, err := m.ListOrganizations(ctx)
	require.NoError(t, err)
	assert.Empty(t, orgs)
}
