package payroll

import (
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// LEAVE ALLOCATION - Paid vs unpaid split of a month's leave
// =============================================================================

// Allocation splits the leave taken in a month into paid and unpaid days.
type Allocation struct {
	Allowed              generic.Amount
	TakenInYear          generic.Amount
	TakenInMonth         generic.Amount
	RemainingBeforeMonth generic.Amount // may be negative if the balance was overdrawn earlier
	Paid                 generic.Amount
	Unpaid               generic.Amount
	Remaining            generic.Amount // never negative

	// PriorYear is set when the month straddles an anniversary. It holds the
	// allocation of the days before the anniversary against the closing
	// leave year; its Paid and Unpaid are already folded into the totals.
	PriorYear *Allocation
}

// Allocate charges the month's leave against what was left of the yearly
// allowance before the month began. takenInYear includes takenInMonth.
//
//	remainingBefore = allowed - (takenInYear - takenInMonth)
//	paid            = takenInMonth               if remainingBefore >= takenInMonth
//	                  max(0, remainingBefore)    otherwise
//	unpaid          = takenInMonth - paid
//	remaining       = max(0, allowed - takenInYear)
func Allocate(allowed int, takenInYear, takenInMonth generic.Amount) Allocation {
	allowedDays := generic.NewAmountFromInt(allowed, generic.UnitDays)
	remainingBefore := allowedDays.Sub(takenInYear.Sub(takenInMonth))

	paid := takenInMonth
	if remainingBefore.LessThan(takenInMonth) {
		paid = remainingBefore.ClampZero()
	}

	return Allocation{
		Allowed:              allowedDays,
		TakenInYear:          takenInYear,
		TakenInMonth:         takenInMonth,
		RemainingBeforeMonth: remainingBefore,
		Paid:                 paid,
		Unpaid:               takenInMonth.Sub(paid),
		Remaining:            allowedDays.Sub(takenInYear).ClampZero(),
	}
}

// WithPriorYear folds the pre-anniversary part of the month into a. The
// balances stay those of the current leave year.
func (a Allocation) WithPriorYear(prior Allocation) Allocation {
	a.TakenInMonth = a.TakenInMonth.Add(prior.TakenInMonth)
	a.Paid = a.Paid.Add(prior.Paid)
	a.Unpaid = a.Unpaid.Add(prior.Unpaid)
	a.PriorYear = &prior
	return a
}
