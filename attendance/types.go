/*
Package attendance classifies the days of a month and aggregates leave usage.

PURPOSE:
  Attendance rows, organization holidays and weekend rules are captured by
  other systems. This package turns them into a per-category day count for a
  reporting month and a leave consumption total for a leave year.

KEY CONCEPTS:
  - Status: what the attendance row says about a day
  - Category: what the day counts as for payroll (exactly one per day)
  - Calendar: holidays plus weekend rules of one organization

CLASSIFICATION PRECEDENCE (first match wins):
  1. Attendance row (Present, Leave, Half-Day, Absent)
  2. Organization holiday
  3. Configured weekend day
  4. Absent (unmarked working day)

SEE ALSO:
  - classify.go: Classify, SummarizeMonth, ConsumptionIn
  - payroll/engine.go: Feeds the summaries into leave allocation and net pay
*/
package attendance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusHalfDay Status = "Half-Day"
	StatusLeave   Status = "Leave"
)

// ParseStatus accepts the canonical spellings case-insensitively, plus the
// "half day" / "halfday" variants older clients send.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present":
		return StatusPresent, nil
	case "absent":
		return StatusAbsent, nil
	case "half-day", "half day", "halfday":
		return StatusHalfDay, nil
	case "leave":
		return StatusLeave, nil
	}
	return "", generic.Invalid("status", "%q is not one of Present, Absent, Half-Day, Leave", s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusHalfDay, StatusLeave:
		return true
	}
	return false
}

// =============================================================================
// DAY - One attendance row, unique per (employee, date)
// =============================================================================

type Day struct {
	EmployeeID generic.EmployeeID
	Date       generic.TimePoint
	Status     Status
	EntryTime  *ClockTime
	ExitTime   *ClockTime
}

// Validate checks the row before it is written.
func (d Day) Validate() error {
	if d.EmployeeID == "" {
		return generic.Invalid("employee_id", "required")
	}
	if d.Date.IsZero() {
		return generic.Invalid("date", "required")
	}
	if !d.Status.Valid() {
		return generic.Invalid("status", "%q is not a known status", d.Status)
	}
	return nil
}

// Normalized drops clock times for statuses that have no presence.
func (d Day) Normalized() Day {
	if d.Status == StatusAbsent || d.Status == StatusLeave {
		d.EntryTime = nil
		d.ExitTime = nil
	}
	return d
}

// =============================================================================
// HOLIDAY
// =============================================================================

type Holiday struct {
	OrganizationID generic.OrganizationID
	Date           generic.TimePoint
	Reason         string
}

// =============================================================================
// CLOCK TIME - Entry and exit times of an attendance row
// =============================================================================

type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock accepts "9:05 AM", "12:30 pm", "21:05" and "21:05:00".
// 12 AM is midnight and 12 PM is noon.
func ParseClock(s string) (ClockTime, error) {
	raw := strings.TrimSpace(s)
	fields := strings.Fields(raw)
	if len(fields) == 0 || len(fields) > 2 {
		return ClockTime{}, generic.Invalid("time", "%q is not a clock time", s)
	}

	parts := strings.Split(fields[0], ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ClockTime{}, generic.Invalid("time", "%q is not a clock time", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return ClockTime{}, generic.Invalid("time", "%q has a bad hour", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, generic.Invalid("time", "%q has a bad minute", s)
	}

	if len(fields) == 2 {
		if hour < 1 || hour > 12 {
			return ClockTime{}, generic.Invalid("time", "%q has a bad 12-hour value", s)
		}
		switch strings.ToUpper(fields[1]) {
		case "AM":
			if hour == 12 {
				hour = 0
			}
		case "PM":
			if hour != 12 {
				hour += 12
			}
		default:
			return ClockTime{}, generic.Invalid("time", "%q must end in AM or PM", s)
		}
	}
	if hour < 0 || hour > 23 {
		return ClockTime{}, generic.Invalid("time", "%q has a bad hour", s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// String renders the 24-hour storage form.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:00", c.Hour, c.Minute)
}

// ParseOptionalClock returns nil for an empty string.
func ParseOptionalClock(s string) (*ClockTime, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	c, err := ParseClock(s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
