/*
Package compensation owns salary structures, their increment history and the
timeline that says which structure was in force in a given month.

PURPOSE:
  An employee has at most one current compensation record. Every increment
  snapshots the record it replaces into an append-only history, so payroll for
  any past month is computed against the salary that applied back then.

KEY CONCEPTS:
  - Components: base, fixed allowances, named extras and deductions
  - Record: the structure in force from EffectiveFrom onwards
  - HistoryEntry: an immutable snapshot of a superseded record
  - Timeline: history + current ordered by effective date
  - Manager: applies and corrects increments atomically

INVARIANTS:
  - History entries are never deleted; only the increment amount of the most
    recent entry may be corrected
  - Applying an increment either writes both the history entry and the new
    record, or neither
  - Total() is never negative

SEE ALSO:
  - timeline.go: Resolution for a reporting month
  - manager.go: ApplyIncrement / EditIncrement
  - payroll/engine.go: Consumer of the resolution
*/
package compensation

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// COMPONENTS
// =============================================================================

// NamedAmount is a free-form allowance or deduction line ("Bonus", "Loan EMI").
type NamedAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Components is a full salary structure. Fixed allowances follow the
// conventional payslip lines: dearness (DA), house rent (HRA), travel (TA),
// medical (MA) and performance (PA). PF and PT are provident fund and
// professional tax deductions.
type Components struct {
	Base            decimal.Decimal `json:"base_salary"`
	DA              decimal.Decimal `json:"da"`
	HRA             decimal.Decimal `json:"hra"`
	TA              decimal.Decimal `json:"ta"`
	MA              decimal.Decimal `json:"ma"`
	PA              decimal.Decimal `json:"pa"`
	OtherAllowances []NamedAmount   `json:"others,omitempty"`
	PF              decimal.Decimal `json:"pf"`
	PT              decimal.Decimal `json:"pt"`
	OtherDeductions []NamedAmount   `json:"other_deductions,omitempty"`
}

// Allowances is the gross side of the structure.
func (c Components) Allowances() decimal.Decimal {
	sum := c.Base.Add(c.DA).Add(c.HRA).Add(c.TA).Add(c.MA).Add(c.PA)
	for _, o := range c.OtherAllowances {
		sum = sum.Add(o.Amount)
	}
	return sum
}

// Deductions is the withheld side of the structure.
func (c Components) Deductions() decimal.Decimal {
	sum := c.PF.Add(c.PT)
	for _, o := range c.OtherDeductions {
		sum = sum.Add(o.Amount)
	}
	return sum
}

// Total is the monthly salary before attendance adjustments.
func (c Components) Total() decimal.Decimal {
	return c.Allowances().Sub(c.Deductions())
}

// IsZero reports whether every component is zero.
func (c Components) IsZero() bool {
	return c.Allowances().IsZero() && c.Deductions().IsZero()
}

// Validate rejects negative components, unnamed extra lines and structures
// whose deductions exceed their allowances.
func (c Components) Validate() error {
	fixed := []struct {
		field string
		value decimal.Decimal
	}{
		{"base_salary", c.Base}, {"da", c.DA}, {"hra", c.HRA}, {"ta", c.TA},
		{"ma", c.MA}, {"pa", c.PA}, {"pf", c.PF}, {"pt", c.PT},
	}
	for _, f := range fixed {
		if f.value.IsNegative() {
			return generic.Invalid(f.field, "must not be negative")
		}
	}
	for _, lines := range []struct {
		field string
		items []NamedAmount
	}{{"others", c.OtherAllowances}, {"other_deductions", c.OtherDeductions}} {
		for i, item := range lines.items {
			if item.Name == "" {
				return generic.Invalid(lines.field, "line %d has no name", i)
			}
			if item.Amount.IsNegative() {
				return generic.Invalid(lines.field, "%q must not be negative", item.Name)
			}
		}
	}
	if c.Total().IsNegative() {
		return generic.Invalid("components", "deductions %s exceed allowances %s", c.Deductions(), c.Allowances())
	}
	return nil
}

// =============================================================================
// RECORD - The current structure of one employee
// =============================================================================

type Record struct {
	EmployeeID      generic.EmployeeID
	Components      Components
	IncrementAmount decimal.Decimal
	// EffectiveFrom is nil only for a structure configured before any increment.
	EffectiveFrom *generic.TimePoint
	UpdatedAt     time.Time
}

func (r Record) Total() decimal.Decimal { return r.Components.Total() }

// =============================================================================
// HISTORY ENTRY - Snapshot of a superseded record
// =============================================================================

type HistoryEntry struct {
	ID               string
	EmployeeID       generic.EmployeeID
	Components       Components
	Total            decimal.Decimal
	IncrementAmount  decimal.Decimal    // the increment that superseded this snapshot
	AppliedIncrement decimal.Decimal    // the increment that produced this snapshot
	EffectiveFrom    *generic.TimePoint // when this snapshot started applying
	SupersededOn     generic.TimePoint  // the date of the superseding increment
	RecordedAt       time.Time
}
