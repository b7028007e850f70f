package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Calendar date used for attendance, holidays and effective dates
// =============================================================================

// DateLayout is the wire and storage format for every TimePoint.
const DateLayout = "2006-01-02"

// TimePoint is a calendar day in UTC. Payroll never needs a finer granularity.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day (in t's own location) and moves it to UTC.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint {
	return FromTime(time.Now())
}

// ParseDate parses a YYYY-MM-DD date. A full RFC3339 timestamp is accepted too,
// as older rows stored increment dates that way.
func ParseDate(s string) (TimePoint, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return FromTime(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return FromTime(t), nil
	}
	return TimePoint{}, &InputError{Field: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int              { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month      { return tp.Time.Month() }
func (tp TimePoint) Day() int               { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday  { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool           { return tp.Time.IsZero() }
func (tp TimePoint) YearMonth() YearMonth   { return YearMonth{Year: tp.Year(), Month: tp.Month()} }
func (tp TimePoint) String() string         { return tp.Time.Format(DateLayout) }

// MarshalText renders the day as YYYY-MM-DD so TimePoints serialize cleanly in JSON.
func (tp TimePoint) MarshalText() ([]byte, error) {
	return []byte(tp.String()), nil
}

func (tp *TimePoint) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// YEAR MONTH - The reporting period of a payroll computation
// =============================================================================

type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses "YYYY-MM". Anything else is an InvalidInput error.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) FirstDay() TimePoint { return NewTimePoint(ym.Year, ym.Month, 1) }
func (ym YearMonth) LastDay() TimePoint  { return EndOfMonth(ym.Year, ym.Month) }
func (ym YearMonth) Days() int           { return DaysInMonth(ym.Year, ym.Month) }
func (ym YearMonth) Period() Period      { return Period{Start: ym.FirstDay(), End: ym.LastDay()} }
func (ym YearMonth) String() string      { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)) }

func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

func (ym *YearMonth) UnmarshalText(b []byte) error {
	parsed, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

// Previous returns the month before ym.
func (ym YearMonth) Previous() YearMonth {
	return ym.FirstDay().AddDays(-1).YearMonth()
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }

func EndOfMonth(year int, month time.Month) TimePoint {
	return TimePoint{Time: time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}

// DaysInMonth handles leap years through the calendar itself.
func DaysInMonth(year int, month time.Month) int {
	return EndOfMonth(year, month).Day()
}
