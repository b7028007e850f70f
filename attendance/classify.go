package attendance

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// CATEGORY - What a day counts as for payroll
// =============================================================================

type Category int

const (
	CategoryAbsent Category = iota
	CategoryPresent
	CategoryLeave
	CategoryHalfDay
	CategoryHoliday
	CategoryWeekend
)

func (c Category) String() string {
	switch c {
	case CategoryPresent:
		return "present"
	case CategoryLeave:
		return "leave"
	case CategoryHalfDay:
		return "half_day"
	case CategoryHoliday:
		return "holiday"
	case CategoryWeekend:
		return "weekend"
	default:
		return "absent"
	}
}

// Classify assigns exactly one category to a day. record may be nil.
func Classify(day generic.TimePoint, record *Day, cal Calendar) Category {
	if record != nil {
		switch record.Status {
		case StatusPresent:
			return CategoryPresent
		case StatusLeave:
			return CategoryLeave
		case StatusHalfDay:
			return CategoryHalfDay
		case StatusAbsent:
			return CategoryAbsent
		}
	}
	if cal.IsHoliday(day) {
		return CategoryHoliday
	}
	if cal.IsWeekend(day) {
		return CategoryWeekend
	}
	return CategoryAbsent
}

// =============================================================================
// MONTH SUMMARY
// =============================================================================

type MonthSummary struct {
	Month        generic.YearMonth
	DaysInMonth  int
	Present      int
	Absent       int
	Leave        int
	HalfDay      int
	Holiday      int
	Weekend      int
	UnmarkedDays int // Absent days without an attendance row
	WeekendDates []generic.TimePoint
}

// Total is the number of classified days. It always equals DaysInMonth.
func (s MonthSummary) Total() int {
	return s.Present + s.Absent + s.Leave + s.HalfDay + s.Holiday + s.Weekend
}

// LeaveTaken is the month's leave consumption (Leave + 0.5 x Half-Day).
func (s MonthSummary) LeaveTaken() generic.Amount {
	return leaveAmount(s.Leave, s.HalfDay)
}

// SummarizeMonth classifies every day of the month. Rows dated outside the
// month are ignored; for duplicate rows on one date the last one wins.
func SummarizeMonth(month generic.YearMonth, days []Day, cal Calendar) MonthSummary {
	period := month.Period()
	byDate := make(map[string]*Day, len(days))
	for i := range days {
		if period.Contains(days[i].Date) {
			byDate[days[i].Date.String()] = &days[i]
		}
	}

	summary := MonthSummary{Month: month, DaysInMonth: month.Days()}
	for _, day := range period.Days() {
		record := byDate[day.String()]
		switch Classify(day, record, cal) {
		case CategoryPresent:
			summary.Present++
		case CategoryLeave:
			summary.Leave++
		case CategoryHalfDay:
			summary.HalfDay++
		case CategoryHoliday:
			summary.Holiday++
		case CategoryWeekend:
			summary.Weekend++
			summary.WeekendDates = append(summary.WeekendDates, day)
		case CategoryAbsent:
			summary.Absent++
			if record == nil {
				summary.UnmarkedDays++
			}
		}
	}
	return summary
}

// =============================================================================
// LEAVE USAGE - Consumption over a leave year
// =============================================================================

type LeaveUsage struct {
	Period    generic.Period
	LeaveDays int
	HalfDays  int
	Total     generic.Amount
}

// ConsumptionIn totals Leave and Half-Day rows dated inside period.
// Holidays and weekends never consume leave, so only rows are counted.
func ConsumptionIn(days []Day, period generic.Period) LeaveUsage {
	seen := make(map[string]Status, len(days))
	for _, d := range days {
		if period.Contains(d.Date) {
			seen[d.Date.String()] = d.Status
		}
	}

	usage := LeaveUsage{Period: period}
	for _, status := range seen {
		switch status {
		case StatusLeave:
			usage.LeaveDays++
		case StatusHalfDay:
			usage.HalfDays++
		}
	}
	usage.Total = leaveAmount(usage.LeaveDays, usage.HalfDays)
	return usage
}

var half = decimal.NewFromFloat(0.5)

func leaveAmount(leave, halfDays int) generic.Amount {
	return generic.NewAmountFromInt(leave, generic.UnitDays).
		Add(generic.NewAmountFromInt(halfDays, generic.UnitDays).Mul(half))
}
