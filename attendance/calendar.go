package attendance

import (
	"sort"
	"strings"
	"time"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// WEEKEND CONFIG - Organization-scoped set of weekday names
// =============================================================================

type WeekendConfig struct {
	days map[time.Weekday]bool
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday matches weekday names case-insensitively.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, generic.Invalid("weekend", "%q is not a weekday name", name)
	}
	return wd, nil
}

// NewWeekendConfig builds a config from names such as "Saturday" or "sunday".
func NewWeekendConfig(names ...string) (WeekendConfig, error) {
	cfg := WeekendConfig{days: make(map[time.Weekday]bool, len(names))}
	for _, name := range names {
		wd, err := ParseWeekday(name)
		if err != nil {
			return WeekendConfig{}, err
		}
		cfg.days[wd] = true
	}
	return cfg, nil
}

func (w WeekendConfig) IsWeekend(day generic.TimePoint) bool {
	return w.days[day.Weekday()]
}

// Names returns the configured days in lowercase, Sunday first.
func (w WeekendConfig) Names() []string {
	days := make([]time.Weekday, 0, len(w.days))
	for wd := range w.days {
		days = append(days, wd)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	names := make([]string, len(days))
	for i, wd := range days {
		names[i] = strings.ToLower(wd.String())
	}
	return names
}

// =============================================================================
// CALENDAR - Holidays and weekends of one organization
// =============================================================================

type Calendar struct {
	holidays map[string]Holiday
	weekends WeekendConfig
}

func NewCalendar(holidays []Holiday, weekends WeekendConfig) Calendar {
	byDate := make(map[string]Holiday, len(holidays))
	for _, h := range holidays {
		byDate[h.Date.String()] = h
	}
	return Calendar{holidays: byDate, weekends: weekends}
}

func (c Calendar) IsHoliday(day generic.TimePoint) bool {
	_, ok := c.holidays[day.String()]
	return ok
}

func (c Calendar) IsWeekend(day generic.TimePoint) bool {
	return c.weekends.IsWeekend(day)
}
