package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
)

func leaveYear(join generic.TimePoint, month string) generic.Period {
	ym, err := generic.ParseYearMonth(month)
	if err != nil {
		panic(err)
	}
	return generic.PeriodConfig{Type: generic.PeriodAnniversary, AnchorDate: &join}.PeriodForMonth(ym)
}

// =============================================================================
// LEAVE YEAR WINDOW TESTS
// =============================================================================

func TestPeriodForMonth_AnniversaryMonthStartsNewLeaveYear(t *testing.T) {
	// GIVEN: Employee joined 2023-03-15
	// WHEN: Reconciling March 2024 (the anniversary month)
	// THEN: The window is the leave year starting on the anniversary

	join := generic.NewTimePoint(2023, time.March, 15)
	window := leaveYear(join, "2024-03")

	assert.Equal(t, "2024-03-15", window.Start.String())
	assert.Equal(t, "2025-03-14", window.End.String())
}

func TestPeriodForMonth_BeforeAnniversaryUsesPreviousLeaveYear(t *testing.T) {
	join := generic.NewTimePoint(2023, time.March, 15)
	window := leaveYear(join, "2024-02")

	assert.Equal(t, "2023-03-15", window.Start.String())
	assert.Equal(t, "2024-03-14", window.End.String())
}

func TestPeriodForMonth_AfterAnniversaryUsesCurrentLeaveYear(t *testing.T) {
	join := generic.NewTimePoint(2023, time.March, 15)

	for _, month := range []string{"2024-04", "2024-12", "2025-01", "2025-02"} {
		window := leaveYear(join, month)
		assert.Equal(t, "2024-03-15", window.Start.String(), month)
		assert.Equal(t, "2025-03-14", window.End.String(), month)
	}
}

func TestPeriodForMonth_FirstOfMonthJoin(t *testing.T) {
	join := generic.NewTimePoint(2022, time.January, 1)

	window := leaveYear(join, "2024-01")
	assert.Equal(t, "2024-01-01", window.Start.String())
	assert.Equal(t, "2024-12-31", window.End.String())
}

func TestPeriodForMonth_MonthEndJoin(t *testing.T) {
	join := generic.NewTimePoint(2023, time.August, 31)
	window := leaveYear(join, "2024-08")
	assert.Equal(t, "2024-08-31", window.Start.String())
	assert.Equal(t, "2025-08-30", window.End.String())
}

func TestAnniversary_ClampsMissingDay(t *testing.T) {
	leapDay := generic.NewTimePoint(2024, time.February, 29)
	assert.Equal(t, "2025-02-28", generic.Anniversary(leapDay, 2025).String())
	assert.Equal(t, "2028-02-29", generic.Anniversary(leapDay, 2028).String())
}

func TestPeriodForMonth_LeapDayJoinClampsToFeb28(t *testing.T) {
	join := generic.NewTimePoint(2024, time.February, 29)

	window := leaveYear(join, "2025-02")
	assert.Equal(t, "2025-02-28", window.Start.String())
	assert.Equal(t, "2026-02-27", window.End.String())

	leap := leaveYear(join, "2028-02")
	assert.Equal(t, "2028-02-29", leap.Start.String())
	assert.Equal(t, "2029-02-27", leap.End.String())

	// January still belongs to the leave year that began on the leap day.
	before := leaveYear(join, "2025-01")
	assert.Equal(t, "2024-02-29", before.Start.String())
	assert.Equal(t, "2025-02-27", before.End.String())
}

func TestPeriodForMonth_WindowAlwaysContainsMonthEnd(t *testing.T) {
	join := generic.NewTimePoint(2021, time.October, 31)

	for _, month := range []string{"2023-01", "2023-02", "2023-09", "2023-10", "2023-11", "2024-02"} {
		ym, err := generic.ParseYearMonth(month)
		require.NoError(t, err)
		window := generic.PeriodConfig{Type: generic.PeriodAnniversary, AnchorDate: &join}.PeriodForMonth(ym)

		assert.True(t, window.Contains(ym.LastDay()), month)
		assert.NoError(t, window.Validate())
		span := generic.DaysBetween(window.Start, window.End) + 1
		assert.True(t, span == 365 || span == 366, "%s spans %d days", month, span)
	}
}

func TestPeriodFor_WithoutAnchorFallsBackToCalendarYear(t *testing.T) {
	window := generic.PeriodConfig{Type: generic.PeriodAnniversary}.PeriodFor(generic.NewTimePoint(2024, time.June, 3))
	assert.Equal(t, "2024-01-01", window.Start.String())
	assert.Equal(t, "2024-12-31", window.End.String())
}

func TestPeriod_Days(t *testing.T) {
	p := generic.Period{Start: generic.NewTimePoint(2024, time.February, 27), End: generic.NewTimePoint(2024, time.March, 1)}
	days := p.Days()
	require.Len(t, days, 4)
	assert.Equal(t, "2024-02-29", days[2].String())

	bad := generic.Period{Start: p.End, End: p.Start}
	assert.ErrorIs(t, bad.Validate(), generic.ErrInvalidInput)
}
