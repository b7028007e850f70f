package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// NET SALARY
// =============================================================================

type Salary struct {
	Total         decimal.Decimal
	DaysInMonth   int
	TotalPaidDays generic.Amount
	PerDay        decimal.Decimal
	Net           decimal.Decimal
}

// PaidDays is present + paid leave + holidays + weekends. Half-days are not
// paid on their own; their leave half is charged through paidLeave.
func PaidDays(summary attendance.MonthSummary, paidLeave generic.Amount) generic.Amount {
	return generic.NewAmountFromInt(summary.Present, generic.UnitDays).
		Add(paidLeave).
		Add(generic.NewAmountFromInt(summary.Holiday, generic.UnitDays)).
		Add(generic.NewAmountFromInt(summary.Weekend, generic.UnitDays))
}

// NetSalary pro-rates total over the month, rounded half-up to whole units.
// The product is formed before dividing so equal inputs give equal outputs
// and more paid days never pay less.
func NetSalary(total decimal.Decimal, paidDays generic.Amount, daysInMonth int) Salary {
	s := Salary{Total: total, DaysInMonth: daysInMonth, TotalPaidDays: paidDays}
	if daysInMonth <= 0 {
		return s
	}
	days := decimal.NewFromInt(int64(daysInMonth))
	s.PerDay = total.Div(days)
	s.Net = total.Mul(paidDays.Value).Div(days).Round(0)
	return s
}
