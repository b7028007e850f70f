package payroll

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// RESULT
// =============================================================================

type CompensationSummary struct {
	Status          compensation.ResolutionStatus
	BaseSalary      decimal.Decimal
	TotalSalary     decimal.Decimal
	IncrementAmount decimal.Decimal
	EffectiveFrom   *generic.TimePoint
}

type Result struct {
	EmployeeID     generic.EmployeeID
	OrganizationID generic.OrganizationID
	Month          generic.YearMonth
	JoinDate       generic.TimePoint
	Compensation   CompensationSummary
	Days           attendance.MonthSummary
	LeaveYear      generic.Period
	Leave          Allocation
	Salary         Salary
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	source           Source
	batchConcurrency int
}

type EngineOption func(*Engine)

// WithBatchConcurrency bounds how many employees a batch computes at once.
func WithBatchConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchConcurrency = n
		}
	}
}

func NewEngine(source Source, opts ...EngineOption) *Engine {
	e := &Engine{source: source, batchConcurrency: 8}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeMonthlyPayroll reconciles one employee's month. month is "YYYY-MM".
// An unknown employee is an error; an employee without a salary structure
// gets a zero result whose Compensation.Status says why.
func (e *Engine) ComputeMonthlyPayroll(ctx context.Context, employeeID generic.EmployeeID, month string) (*Result, error) {
	if strings.TrimSpace(string(employeeID)) == "" {
		return nil, generic.Invalid("employee_id", "required")
	}
	ym, err := generic.ParseYearMonth(month)
	if err != nil {
		return nil, err
	}

	emp, err := e.source.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return e.compute(ctx, *emp, ym)
}

func (e *Engine) compute(ctx context.Context, emp Employee, ym generic.YearMonth) (*Result, error) {
	if emp.JoinDate.IsZero() {
		return nil, generic.Invalid("join_date", "employee %s has no join date", emp.ID)
	}
	monthPeriod := ym.Period()
	periods := generic.PeriodConfig{Type: generic.PeriodAnniversary, AnchorDate: &emp.JoinDate}
	leaveYear := periods.PeriodForMonth(ym)

	// When the leave year opens mid-month, the days before the anniversary
	// are charged against the closing leave year.
	var priorYear *generic.Period
	if leaveYear.Start.After(monthPeriod.Start) {
		p := periods.PeriodFor(leaveYear.Start.AddDays(-1))
		priorYear = &p
	}

	var (
		current      *compensation.Record
		history      []compensation.HistoryEntry
		monthDays    []attendance.Day
		yearDays     []attendance.Day
		priorDays    []attendance.Day
		holidays     []attendance.Holiday
		weekendNames []string
		allowance    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		current, err = e.source.CurrentRecord(gctx, emp.ID)
		return err
	})
	g.Go(func() (err error) {
		history, err = e.source.History(gctx, emp.ID)
		return err
	})
	g.Go(func() (err error) {
		monthDays, err = e.source.AttendanceBetween(gctx, emp.ID, monthPeriod)
		return err
	})
	g.Go(func() (err error) {
		yearDays, err = e.source.AttendanceBetween(gctx, emp.ID, leaveYear)
		return err
	})
	if priorYear != nil {
		g.Go(func() (err error) {
			priorDays, err = e.source.AttendanceBetween(gctx, emp.ID, *priorYear)
			return err
		})
	}
	g.Go(func() (err error) {
		holidays, err = e.source.HolidaysBetween(gctx, emp.OrganizationID, monthPeriod)
		return err
	})
	g.Go(func() (err error) {
		weekendNames, err = e.source.Weekends(gctx, emp.OrganizationID)
		return err
	})
	g.Go(func() (err error) {
		allowance, err = e.source.LeaveAllowance(gctx, emp.OrganizationID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if allowance < 0 {
		return nil, generic.Invalid("leave_allowance", "organization %s has a negative allowance %d", emp.OrganizationID, allowance)
	}
	weekends, err := attendance.NewWeekendConfig(weekendNames...)
	if err != nil {
		return nil, err
	}

	resolution := compensation.BuildTimeline(current, history).Resolve(ym)
	days := attendance.SummarizeMonth(ym, monthDays, attendance.NewCalendar(holidays, weekends))
	leave := allocateMonth(allowance, monthPeriod, monthDays, leaveYear, yearDays)
	if priorYear != nil {
		prior := allocateMonth(allowance, monthPeriod, monthDays, *priorYear, priorDays)
		leave = leave.WithPriorYear(prior)
	}
	salary := NetSalary(resolution.TotalSalary(), PaidDays(days, leave.Paid), days.DaysInMonth)

	return &Result{
		EmployeeID:     emp.ID,
		OrganizationID: emp.OrganizationID,
		Month:          ym,
		JoinDate:       emp.JoinDate,
		Compensation: CompensationSummary{
			Status:          resolution.Status,
			BaseSalary:      resolution.BaseSalary(),
			TotalSalary:     resolution.TotalSalary(),
			IncrementAmount: resolution.IncrementAmount,
			EffectiveFrom:   resolution.EffectiveFrom,
		},
		Days:      days,
		LeaveYear: leaveYear,
		Leave:     leave,
		Salary:    salary,
	}, nil
}

// allocateMonth charges the month's leave dated inside window against that
// window's allowance.
func allocateMonth(allowance int, month generic.Period, monthDays []attendance.Day, window generic.Period, windowDays []attendance.Day) Allocation {
	overlap := generic.Period{Start: month.Start, End: month.End}
	if window.Start.After(overlap.Start) {
		overlap.Start = window.Start
	}
	if window.End.Before(overlap.End) {
		overlap.End = window.End
	}
	inMonth := attendance.ConsumptionIn(monthDays, overlap)
	inYear := attendance.ConsumptionIn(windowDays, window)
	return Allocate(allowance, inYear.Total, inMonth.Total)
}
