/*
Package payroll reconciles attendance, leave and compensation into a monthly
net salary.

PURPOSE:
  For one employee and one month the engine resolves the salary in force,
  classifies every day of the month, charges leave against the leave-year
  allowance and pro-rates the salary over the paid days.

FLOW:
  ComputeMonthlyPayroll(employee, month)
    -> compensation.Timeline.Resolve        (salary in force on the 1st)
    -> generic.PeriodConfig.PeriodForMonth  (leave year from the join date)
    -> attendance.SummarizeMonth            (day categories)
    -> attendance.ConsumptionIn             (leave used in the leave year)
    -> Allocate                             (paid / unpaid leave)
    -> NetSalary                            (pro-rated, rounded half-up)

  Reads have no side effects, so any number of computations may run at once.

SEE ALSO:
  - batch.go: Organization-wide computation
  - run.go: Persisted payroll runs
  - scheduler.go: Periodic processing of the previous month
*/
package payroll

import (
	"context"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID             generic.EmployeeID
	OrganizationID generic.OrganizationID
	Name           string
	JoinDate       generic.TimePoint
}

func (e Employee) Validate() error {
	if e.ID == "" {
		return generic.Invalid("employee_id", "required")
	}
	if e.OrganizationID == "" {
		return generic.Invalid("organization_id", "required")
	}
	if e.JoinDate.IsZero() {
		return generic.Invalid("join_date", "required")
	}
	return nil
}

// =============================================================================
// SOURCE INTERFACES - Everything the engine reads
// =============================================================================

type Directory interface {
	// GetEmployee returns generic.ErrEmployeeNotFound for unknown IDs.
	GetEmployee(ctx context.Context, id generic.EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context, orgID generic.OrganizationID) ([]Employee, error)
	ListOrganizations(ctx context.Context) ([]generic.OrganizationID, error)
}

type AttendanceSource interface {
	AttendanceBetween(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) ([]attendance.Day, error)
	HolidaysBetween(ctx context.Context, orgID generic.OrganizationID, period generic.Period) ([]attendance.Holiday, error)
	// Weekends returns weekday names; an organization without rules has none.
	Weekends(ctx context.Context, orgID generic.OrganizationID) ([]string, error)
	// LeaveAllowance returns 0 when the organization has not configured one.
	LeaveAllowance(ctx context.Context, orgID generic.OrganizationID) (int, error)
}

// Source is the read side of a store as the engine sees it.
type Source interface {
	Directory
	AttendanceSource
	compensation.Reader
}
