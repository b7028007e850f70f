package generic

import "time"

// =============================================================================
// PERIOD - A closed range of calendar days
// =============================================================================

// Period is an inclusive range of days [Start, End].
//
// Examples:
//   - March 2024: 2024-03-01 - 2024-03-31
//   - Leave year of an employee who joined 2023-03-15: 2024-03-15 - 2025-03-14
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// PeriodType defines how periods are calculated
type PeriodType string

const (
	PeriodCalendarYear PeriodType = "calendar_year" // Jan 1 - Dec 31
	PeriodAnniversary  PeriodType = "anniversary"   // Based on join date
)

// PeriodConfig defines how the leave year is laid out.
type PeriodConfig struct {
	Type PeriodType

	// For anniversary: the anchor date (the join date)
	AnchorDate *TimePoint
}

// =============================================================================
// PERIOD CALCULATOR - Determines which leave year a day or month falls into
// =============================================================================

// PeriodFor returns the period that contains the given date.
func (pc PeriodConfig) PeriodFor(date TimePoint) Period {
	if pc.Type == PeriodAnniversary && pc.AnchorDate != nil {
		return pc.anniversaryPeriod(date)
	}
	return Period{
		Start: NewTimePoint(date.Year(), time.January, 1),
		End:   NewTimePoint(date.Year(), time.December, 31),
	}
}

// PeriodForMonth returns the leave year used to reconcile a whole month.
// A month containing the anniversary belongs to the leave year that starts on
// that anniversary, so the period in force on the month's last day is used.
func (pc PeriodConfig) PeriodForMonth(ym YearMonth) Period {
	return pc.PeriodFor(ym.LastDay())
}

func (pc PeriodConfig) anniversaryPeriod(date TimePoint) Period {
	anchor := *pc.AnchorDate

	start := Anniversary(anchor, date.Year())
	if date.Before(start) {
		start = Anniversary(anchor, date.Year()-1)
	}
	next := Anniversary(anchor, start.Year()+1)
	return Period{Start: start, End: next.AddDays(-1)}
}

// Anniversary returns the anchor's month/day in the given year. Days that do not
// exist in that year are clamped to the month's last day (Feb 29 -> Feb 28).
func Anniversary(anchor TimePoint, year int) TimePoint {
	day := anchor.Day()
	if last := DaysInMonth(year, anchor.Month()); day > last {
		day = last
	}
	return NewTimePoint(year, anchor.Month(), day)
}
