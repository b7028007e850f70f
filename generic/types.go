/*
Package generic provides the domain-agnostic primitives of the payroll engine.

PURPOSE:
  Calendar days, reporting months, leave-year periods, decimal quantities and
  the error kinds shared by every package. Nothing in here knows about salary
  structures or attendance statuses.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 1.5 days, 30000 currency)
  - EmployeeID / OrganizationID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing employee/organization IDs

USAGE:
  half := generic.NewAmount(0.5, generic.UnitDays)
  taken := generic.NewAmountFromInt(3, generic.UnitDays).Add(half)

SEE ALSO:
  - time.go: TimePoint and YearMonth
  - period.go: Leave year windows
  - errors.go: Error kinds
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays     Unit = "days"
	UnitCurrency Unit = "currency"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// Days is shorthand for a day-denominated amount.
func Days(value float64) Amount { return NewAmount(value, UnitDays) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) String() string               { return a.Value.String() + " " + string(a.Unit) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampZero returns a, or zero when a is negative.
func (a Amount) ClampZero() Amount {
	if a.IsNegative() {
		return a.Zero()
	}
	return a
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type OrganizationID string
