package payroll_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

func days(v float64) generic.Amount { return generic.Days(v) }

func assertDays(t *testing.T, want float64, got generic.Amount, msg string) {
	t.Helper()
	assert.True(t, got.Equal(days(want)), "%s: want %v got %s", msg, want, got)
}

// =============================================================================
// LEAVE ALLOCATION TESTS
// =============================================================================

func TestAllocate_WithinAllowanceIsFullyPaid(t *testing.T) {
	a := payroll.Allocate(12, days(5), days(2))

	assertDays(t, 9, a.RemainingBeforeMonth, "remaining before")
	assertDays(t, 2, a.Paid, "paid")
	assertDays(t, 0, a.Unpaid, "unpaid")
	assertDays(t, 7, a.Remaining, "remaining")
}

func TestAllocate_ExhaustedAllowanceIsUnpaid(t *testing.T) {
	// GIVEN: Allowance 12 already used up before the month
	// WHEN: 1 Leave + 1 Half-Day are taken in the month (1.5 days)
	// THEN: Nothing is paid

	a := payroll.Allocate(12, days(13.5), days(1.5))

	assertDays(t, 0, a.RemainingBeforeMonth, "remaining before")
	assertDays(t, 0, a.Paid, "paid")
	assertDays(t, 1.5, a.Unpaid, "unpaid")
	assertDays(t, 0, a.Remaining, "remaining")
}

func TestAllocate_PartiallyCovered(t *testing.T) {
	a := payroll.Allocate(10, days(12), days(3))

	assertDays(t, 1, a.RemainingBeforeMonth, "remaining before")
	assertDays(t, 1, a.Paid, "paid")
	assertDays(t, 2, a.Unpaid, "unpaid")
	assertDays(t, 0, a.Remaining, "remaining never negative")
}

func TestAllocate_OverdrawnBeforeMonthPaysNothing(t *testing.T) {
	a := payroll.Allocate(5, days(9), days(2))

	assertDays(t, -2, a.RemainingBeforeMonth, "remaining before")
	assertDays(t, 0, a.Paid, "paid is clamped")
	assertDays(t, 2, a.Unpaid, "unpaid")
}

func TestAllocate_ZeroAllowance(t *testing.T) {
	a := payroll.Allocate(0, days(1), days(1))
	assertDays(t, 0, a.Paid, "paid")
	assertDays(t, 1, a.Unpaid, "unpaid")
}

func TestAllocation_WithPriorYearFoldsTotals(t *testing.T) {
	// GIVEN: 2 days charged to an exhausted closing year, 1 day to a fresh one
	prior := payroll.Allocate(12, days(14), days(2))
	current := payroll.Allocate(12, days(1), days(1))

	// WHEN: Folding the closing year into the month
	a := current.WithPriorYear(prior)

	// THEN: Paid and unpaid add up; balances stay the new year's
	assertDays(t, 3, a.TakenInMonth, "taken in month")
	assertDays(t, 1, a.Paid, "paid")
	assertDays(t, 2, a.Unpaid, "unpaid")
	assertDays(t, 12, a.RemainingBeforeMonth, "remaining before")
	assertDays(t, 11, a.Remaining, "remaining")
	if assert.NotNil(t, a.PriorYear) {
		assertDays(t, 2, a.PriorYear.Unpaid, "prior unpaid")
	}
}

func TestAllocate_Properties(t *testing.T) {
	for allowed := 0; allowed <= 15; allowed += 3 {
		for before := 0.0; before <= 20; before += 0.5 {
			for month := 0.0; month <= 5; month += 0.5 {
				a := payroll.Allocate(allowed, days(before+month), days(month))

				assert.True(t, a.Paid.Add(a.Unpaid).Equal(days(month)), "paid + unpaid = month")
				assert.False(t, a.Paid.IsNegative())
				assert.False(t, a.Unpaid.IsNegative())
				assert.False(t, a.Remaining.IsNegative())
				if decimal.NewFromFloat(before + month).LessThanOrEqual(decimal.NewFromInt(int64(allowed))) {
					assert.True(t, a.Unpaid.IsZero(), "within allowance nothing is unpaid")
				}
			}
		}
	}
}

// =============================================================================
// NET SALARY TESTS
// =============================================================================

func TestNetSalary_ThirtyDayMonth(t *testing.T) {
	// 20 present + 2 paid leave + 2 holidays + 4 weekend days = 28
	summary := attendance.MonthSummary{DaysInMonth: 30, Present: 20, Weekend: 4, Holiday: 2, Leave: 2, Absent: 2}
	paid := payroll.PaidDays(summary, days(2))
	assertDays(t, 28, paid, "paid days")

	s := payroll.NetSalary(decimal.NewFromInt(30000), paid, 30)
	assert.True(t, s.PerDay.Equal(decimal.NewFromInt(1000)))
	assert.True(t, s.Net.Equal(decimal.NewFromInt(28000)), "got %s", s.Net)
}

func TestNetSalary_RoundsHalfUp(t *testing.T) {
	// 1000 / 31 * 15.5 = 500 exactly; 1001 / 31 * 15.5 = 500.5 -> 501
	s := payroll.NetSalary(decimal.NewFromInt(1001), days(15.5), 31)
	assert.True(t, s.Net.Equal(decimal.NewFromInt(501)), "got %s", s.Net)

	// 1000 / 30 * 7 = 233.33 -> 233
	s = payroll.NetSalary(decimal.NewFromInt(1000), days(7), 30)
	assert.True(t, s.Net.Equal(decimal.NewFromInt(233)), "got %s", s.Net)
}

func TestNetSalary_FullMonthPaysTotal(t *testing.T) {
	for _, n := range []int{28, 29, 30, 31} {
		s := payroll.NetSalary(decimal.NewFromInt(45678), generic.NewAmountFromInt(n, generic.UnitDays), n)
		assert.True(t, s.Net.Equal(decimal.NewFromInt(45678)), "%d-day month", n)
	}
}

func TestNetSalary_MonotoneInPaidDays(t *testing.T) {
	total := decimal.NewFromInt(37777)
	prev := decimal.NewFromInt(-1)
	for paid := 0.0; paid <= 31; paid += 0.5 {
		net := payroll.NetSalary(total, days(paid), 31).Net
		assert.True(t, net.GreaterThanOrEqual(prev), "paid %.1f", paid)
		prev = net
	}
}

func TestNetSalary_ZeroTotal(t *testing.T) {
	s := payroll.NetSalary(decimal.Zero, days(30), 30)
	assert.True(t, s.Net.IsZero())
	assert.True(t, s.PerDay.IsZero())
}
