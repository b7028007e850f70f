/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the payroll and compensation models from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Payroll:
    PayrollDTO, OrganizationPayrollDTO, ProcessSummaryDTO, RunDTO

  Salary:
    ComponentsDTO, RecordDTO, HistoryEntryDTO, TimelineEntryDTO,
    SalaryOverviewDTO, SetSalaryRequest, ApplyIncrementRequest,
    EditIncrementRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry validator/v10 tags for shape (required fields, date
  layout). Domain rules (non-negative components, no backdating) stay in
  the compensation package.

MONEY:
  Amounts are shopspring decimals. Requests accept JSON numbers or strings;
  responses always emit strings so no precision is lost in clients.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// SALARY STRUCTURE
// =============================================================================

type NamedAmountDTO struct {
	Name   string          `json:"name" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type ComponentsDTO struct {
	BaseSalary      decimal.Decimal  `json:"base_salary"`
	DA              decimal.Decimal  `json:"da"`
	HRA             decimal.Decimal  `json:"hra"`
	TA              decimal.Decimal  `json:"ta"`
	MA              decimal.Decimal  `json:"ma"`
	PA              decimal.Decimal  `json:"pa"`
	Others          []NamedAmountDTO `json:"others,omitempty" validate:"dive"`
	PF              decimal.Decimal  `json:"pf"`
	PT              decimal.Decimal  `json:"pt"`
	OtherDeductions []NamedAmountDTO `json:"other_deductions,omitempty" validate:"dive"`
	// Read-only; ignored on input.
	TotalSalary *decimal.Decimal `json:"total_salary,omitempty"`
}

func (c ComponentsDTO) toDomain() compensation.Components {
	return compensation.Components{
		Base:            c.BaseSalary,
		DA:              c.DA,
		HRA:             c.HRA,
		TA:              c.TA,
		MA:              c.MA,
		PA:              c.PA,
		OtherAllowances: namedAmounts(c.Others),
		PF:              c.PF,
		PT:              c.PT,
		OtherDeductions: namedAmounts(c.OtherDeductions),
	}
}

func namedAmounts(lines []NamedAmountDTO) []compensation.NamedAmount {
	if len(lines) == 0 {
		return nil
	}
	out := make([]compensation.NamedAmount, len(lines))
	for i, l := range lines {
		out[i] = compensation.NamedAmount{Name: l.Name, Amount: l.Amount}
	}
	return out
}

func toComponentsDTO(c compensation.Components) ComponentsDTO {
	total := c.Total()
	dto := ComponentsDTO{
		BaseSalary:  c.Base,
		DA:          c.DA,
		HRA:         c.HRA,
		TA:          c.TA,
		MA:          c.MA,
		PA:          c.PA,
		PF:          c.PF,
		PT:          c.PT,
		TotalSalary: &total,
	}
	for _, o := range c.OtherAllowances {
		dto.Others = append(dto.Others, NamedAmountDTO{Name: o.Name, Amount: o.Amount})
	}
	for _, o := range c.OtherDeductions {
		dto.OtherDeductions = append(dto.OtherDeductions, NamedAmountDTO{Name: o.Name, Amount: o.Amount})
	}
	return dto
}

type SetSalaryRequest struct {
	Components *ComponentsDTO `json:"components" validate:"required"`
}

type ApplyIncrementRequest struct {
	Components      *ComponentsDTO  `json:"components" validate:"required"`
	IncrementAmount decimal.Decimal `json:"increment_amount"`
	IncrementDate   string          `json:"increment_date" validate:"required,datetime=2006-01-02"`
}

type EditIncrementRequest struct {
	Components      *ComponentsDTO  `json:"components" validate:"required"`
	IncrementAmount decimal.Decimal `json:"increment_amount"`
}

type RecordDTO struct {
	EmployeeID      string             `json:"employee_id"`
	Components      ComponentsDTO      `json:"components"`
	IncrementAmount decimal.Decimal    `json:"increment_amount"`
	EffectiveFrom   *generic.TimePoint `json:"effective_from"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func toRecordDTO(r *compensation.Record) *RecordDTO {
	if r == nil {
		return nil
	}
	return &RecordDTO{
		EmployeeID:      string(r.EmployeeID),
		Components:      toComponentsDTO(r.Components),
		IncrementAmount: r.IncrementAmount,
		EffectiveFrom:   r.EffectiveFrom,
		UpdatedAt:       r.UpdatedAt,
	}
}

type HistoryEntryDTO struct {
	ID               string             `json:"id"`
	Components       ComponentsDTO      `json:"components"`
	TotalSalary      decimal.Decimal    `json:"total_salary"`
	IncrementAmount  decimal.Decimal    `json:"increment_amount"`
	AppliedIncrement decimal.Decimal    `json:"applied_increment"`
	EffectiveFrom    *generic.TimePoint `json:"effective_from"`
	SupersededOn     generic.TimePoint  `json:"superseded_on"`
	RecordedAt       time.Time          `json:"recorded_at"`
}

type TimelineEntryDTO struct {
	HistoryID       string             `json:"history_id,omitempty"`
	TotalSalary     decimal.Decimal    `json:"total_salary"`
	IncrementAmount decimal.Decimal    `json:"increment_amount"`
	SupersededBy    decimal.Decimal    `json:"superseded_by"`
	EffectiveFrom   *generic.TimePoint `json:"effective_from"`
	EffectiveTo     *generic.TimePoint `json:"effective_to"`
	Current         bool               `json:"current"`
}

type SalaryOverviewDTO struct {
	EmployeeID string             `json:"employee_id"`
	Current    *RecordDTO         `json:"current"`
	History    []HistoryEntryDTO  `json:"history"`
	Timeline   []TimelineEntryDTO `json:"timeline"`
}

func toSalaryOverviewDTO(o *compensation.Overview) SalaryOverviewDTO {
	dto := SalaryOverviewDTO{
		EmployeeID: string(o.EmployeeID),
		Current:    toRecordDTO(o.Current),
		History:    make([]HistoryEntryDTO, 0, len(o.History)),
		Timeline:   make([]TimelineEntryDTO, 0, len(o.Timeline.Entries)),
	}
	for _, h := range o.History {
		dto.History = append(dto.History, HistoryEntryDTO{
			ID:               h.ID,
			Components:       toComponentsDTO(h.Components),
			TotalSalary:      h.Total,
			IncrementAmount:  h.IncrementAmount,
			AppliedIncrement: h.AppliedIncrement,
			EffectiveFrom:    h.EffectiveFrom,
			SupersededOn:     h.SupersededOn,
			RecordedAt:       h.RecordedAt,
		})
	}
	for _, e := range o.Timeline.Entries {
		dto.Timeline = append(dto.Timeline, TimelineEntryDTO{
			HistoryID:       e.HistoryID,
			TotalSalary:     e.Components.Total(),
			IncrementAmount: e.IncrementAmount,
			SupersededBy:    e.SupersededBy,
			EffectiveFrom:   e.EffectiveFrom,
			EffectiveTo:     e.EffectiveTo,
			Current:         e.Current,
		})
	}
	return dto
}

// =============================================================================
// PAYROLL RESULT
// =============================================================================

type PeriodDTO struct {
	Start generic.TimePoint `json:"start"`
	End   generic.TimePoint `json:"end"`
}

type CompensationDTO struct {
	Status          string             `json:"status"`
	BaseSalary      decimal.Decimal    `json:"base_salary"`
	TotalSalary     decimal.Decimal    `json:"total_salary"`
	IncrementAmount decimal.Decimal    `json:"increment_amount"`
	EffectiveFrom   *generic.TimePoint `json:"effective_from"`
}

type DaysDTO struct {
	DaysInMonth  int                 `json:"days_in_month"`
	Present      int                 `json:"present"`
	Absent       int                 `json:"absent"`
	Leave        int                 `json:"leave"`
	HalfDay      int                 `json:"half_day"`
	Holiday      int                 `json:"holiday"`
	Weekend      int                 `json:"weekend"`
	Unmarked     int                 `json:"unmarked"`
	WeekendDates []generic.TimePoint `json:"weekend_dates"`
}

type LeaveDTO struct {
	Allowed              decimal.Decimal `json:"allowed"`
	TakenInYear          decimal.Decimal `json:"taken_in_year"`
	TakenInMonth         decimal.Decimal `json:"taken_in_month"`
	RemainingBeforeMonth decimal.Decimal `json:"remaining_before_month"`
	Paid                 decimal.Decimal `json:"paid"`
	Unpaid               decimal.Decimal `json:"unpaid"`
	Remaining            decimal.Decimal `json:"remaining"`
	PriorYear            *LeaveDTO       `json:"prior_year,omitempty"`
}

type SalaryDTO struct {
	TotalSalary   decimal.Decimal `json:"total_salary"`
	DaysInMonth   int             `json:"days_in_month"`
	TotalPaidDays decimal.Decimal `json:"total_paid_days"`
	PerDay        decimal.Decimal `json:"per_day"`
	NetSalary     decimal.Decimal `json:"net_salary"`
}

// PayrollDTO is one employee's reconciled month.
type PayrollDTO struct {
	EmployeeID     string          `json:"employee_id"`
	OrganizationID string          `json:"organization_id"`
	Month          string          `json:"month"`
	JoinDate       string          `json:"join_date"`
	Compensation   CompensationDTO `json:"compensation"`
	Days           DaysDTO         `json:"days"`
	LeaveYear      PeriodDTO       `json:"leave_year"`
	Leave          LeaveDTO        `json:"leave"`
	Salary         SalaryDTO       `json:"salary"`
}

func toPayrollDTO(r *payroll.Result) PayrollDTO {
	return PayrollDTO{
		EmployeeID:     string(r.EmployeeID),
		OrganizationID: string(r.OrganizationID),
		Month:          r.Month.String(),
		JoinDate:       r.JoinDate.String(),
		Compensation: CompensationDTO{
			Status:          string(r.Compensation.Status),
			BaseSalary:      r.Compensation.BaseSalary,
			TotalSalary:     r.Compensation.TotalSalary,
			IncrementAmount: r.Compensation.IncrementAmount,
			EffectiveFrom:   r.Compensation.EffectiveFrom,
		},
		Days:      toDaysDTO(r.Days),
		LeaveYear: PeriodDTO{Start: r.LeaveYear.Start, End: r.LeaveYear.End},
		Leave:     toLeaveDTO(r.Leave),
		Salary: SalaryDTO{
			TotalSalary:   r.Salary.Total,
			DaysInMonth:   r.Salary.DaysInMonth,
			TotalPaidDays: r.Salary.TotalPaidDays.Value,
			PerDay:        r.Salary.PerDay,
			NetSalary:     r.Salary.Net,
		},
	}
}

func toLeaveDTO(a payroll.Allocation) LeaveDTO {
	dto := LeaveDTO{
		Allowed:              a.Allowed.Value,
		TakenInYear:          a.TakenInYear.Value,
		TakenInMonth:         a.TakenInMonth.Value,
		RemainingBeforeMonth: a.RemainingBeforeMonth.Value,
		Paid:                 a.Paid.Value,
		Unpaid:               a.Unpaid.Value,
		Remaining:            a.Remaining.Value,
	}
	if a.PriorYear != nil {
		prior := toLeaveDTO(*a.PriorYear)
		dto.PriorYear = &prior
	}
	return dto
}

func toDaysDTO(s attendance.MonthSummary) DaysDTO {
	dates := s.WeekendDates
	if dates == nil {
		dates = []generic.TimePoint{}
	}
	return DaysDTO{
		DaysInMonth:  s.DaysInMonth,
		Present:      s.Present,
		Absent:       s.Absent,
		Leave:        s.Leave,
		HalfDay:      s.HalfDay,
		Holiday:      s.Holiday,
		Weekend:      s.Weekend,
		Unmarked:     s.UnmarkedDays,
		WeekendDates: dates,
	}
}

type BatchErrorDTO struct {
	EmployeeID string `json:"employee_id"`
	Error      string `json:"error"`
}

type OrganizationPayrollDTO struct {
	OrganizationID string          `json:"organization_id"`
	Month          string          `json:"month"`
	Results        []PayrollDTO    `json:"results"`
	Errors         []BatchErrorDTO `json:"errors"`
}

// =============================================================================
// PAYROLL RUNS
// =============================================================================

type RunDTO struct {
	ID          string          `json:"id"`
	EmployeeID  string          `json:"employee_id"`
	Month       string          `json:"month"`
	Status      string          `json:"status"`
	NetSalary   decimal.Decimal `json:"net_salary"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toRunDTO(r payroll.Run) RunDTO {
	dto := RunDTO{
		ID:          r.ID,
		EmployeeID:  string(r.EmployeeID),
		Month:       r.Month.String(),
		Status:      string(r.Status),
		NetSalary:   r.NetSalary,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		CreatedAt:   r.CreatedAt,
	}
	if r.ResultJSON != "" && json.Valid([]byte(r.ResultJSON)) {
		dto.Result = json.RawMessage(r.ResultJSON)
	}
	return dto
}

type ProcessSummaryDTO struct {
	OrganizationID string `json:"organization_id,omitempty"`
	Month          string `json:"month"`
	Processed      int    `json:"processed"`
	Skipped        int    `json:"skipped"`
	Failed         int    `json:"failed"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
