package compensation

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// TIMELINE - History + current record ordered by effective date
// =============================================================================

// TimelineEntry is one structure together with the span it applied.
// EffectiveTo is exclusive and nil for the entry still in force.
// IncrementAmount is the increment that brought the structure into force;
// SupersededBy is the increment that replaced it.
type TimelineEntry struct {
	HistoryID       string // empty for the current record
	Components      Components
	IncrementAmount decimal.Decimal
	SupersededBy    decimal.Decimal
	EffectiveFrom   *generic.TimePoint
	EffectiveTo     *generic.TimePoint
	Current         bool
}

type Timeline struct {
	Entries []TimelineEntry
}

// BuildTimeline orders history entries and the current record by effective
// date. A missing date sorts first (it predates every increment); ties keep
// history order with the current record last.
func BuildTimeline(current *Record, history []HistoryEntry) Timeline {
	entries := make([]TimelineEntry, 0, len(history)+1)
	for _, h := range history {
		entries = append(entries, TimelineEntry{
			HistoryID:       h.ID,
			Components:      h.Components,
			IncrementAmount: h.AppliedIncrement,
			SupersededBy:    h.IncrementAmount,
			EffectiveFrom:   h.EffectiveFrom,
		})
	}
	if current != nil {
		entries = append(entries, TimelineEntry{
			Components:      current.Components,
			IncrementAmount: current.IncrementAmount,
			EffectiveFrom:   current.EffectiveFrom,
			Current:         true,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return effectiveBefore(entries[i].EffectiveFrom, entries[j].EffectiveFrom)
	})

	for i := 0; i+1 < len(entries); i++ {
		entries[i].EffectiveTo = entries[i+1].EffectiveFrom
	}
	return Timeline{Entries: entries}
}

func effectiveBefore(a, b *generic.TimePoint) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return a.Before(*b)
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

type ResolutionStatus string

const (
	// StatusConfigured means a structure was in force on the first of the month.
	StatusConfigured ResolutionStatus = "configured"
	// StatusUnconfigured means the employee has no structure at all.
	StatusUnconfigured ResolutionStatus = "unconfigured"
	// StatusNotYetEffective means structures exist but all start later.
	StatusNotYetEffective ResolutionStatus = "not_yet_effective"
)

// Resolution is the compensation in force for a month. Unless Status is
// StatusConfigured every amount is zero and EffectiveFrom is nil.
type Resolution struct {
	Status          ResolutionStatus
	Components      Components
	IncrementAmount decimal.Decimal
	EffectiveFrom   *generic.TimePoint
	Entry           *TimelineEntry
}

func (r Resolution) BaseSalary() decimal.Decimal  { return r.Components.Base }
func (r Resolution) TotalSalary() decimal.Decimal { return r.Components.Total() }
func (r Resolution) Configured() bool             { return r.Status == StatusConfigured }

// Resolve returns the last entry whose effective date is on or before the
// first day of month. A structure effective mid-month applies from the next one.
func (t Timeline) Resolve(month generic.YearMonth) Resolution {
	if len(t.Entries) == 0 {
		return Resolution{Status: StatusUnconfigured}
	}

	firstDay := month.FirstDay()
	var found *TimelineEntry
	for i := range t.Entries {
		e := &t.Entries[i]
		if e.EffectiveFrom != nil && e.EffectiveFrom.After(firstDay) {
			break
		}
		found = e
	}
	if found == nil {
		return Resolution{Status: StatusNotYetEffective}
	}

	entry := *found
	return Resolution{
		Status:          StatusConfigured,
		Components:      entry.Components,
		IncrementAmount: entry.IncrementAmount,
		EffectiveFrom:   entry.EffectiveFrom,
		Entry:           &entry,
	}
}
