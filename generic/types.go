/*
Package generic provides the primitives shared by the payroll packages.

PURPOSE:
  Contracts, payslips, leaves and working shifts all reason about dated
  ranges and decimal quantities of hours or money. This package holds those
  building blocks so the domain packages (payroll, leave, workshift) agree on
  rounding and date semantics.

KEY CONCEPTS IN THIS FILE (types.go):
  - Hours:  decimal hour quantities, rounded to 2 digits for display
  - Money:  decimal amounts, rounded to the currency digits
  - Sum helpers used by every aggregate (payslip line, payslip, summary)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Rounding happens once, when a figure is exposed, never mid-sum
  3. Type Safety: Strong typing for IDs prevents mixing employees and contracts

SEE ALSO:
  - time.go:   TimePoint and holiday calendar
  - period.go: Period and OpenPeriod ranges
  - errors.go: Error taxonomy
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// DECIMAL QUANTITIES
// =============================================================================

// HourDigits is the number of decimals hour figures are rounded to.
const HourDigits int32 = 2

// DefaultCurrencyDigits is used when an employee has no currency configured.
const DefaultCurrencyDigits int32 = 2

// HoursPerDay is the nominal length of a working day.
var HoursPerDay = decimal.NewFromInt(8)

// RoundHours rounds an hour quantity to HourDigits.
func RoundHours(d decimal.Decimal) decimal.Decimal {
	return d.Round(HourDigits)
}

// RoundCurrency rounds an amount to the given currency digits.
func RoundCurrency(d decimal.Decimal, digits int32) decimal.Decimal {
	return d.Round(digits)
}

// Sum adds up decimals; an empty input sums to zero.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// SumBy adds up f(item) for every item.
func SumBy[T any](items []T, f func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(f(it))
	}
	return total
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalPtr returns a pointer to a parsed decimal, or nil for an empty string.
func DecimalPtr(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string

// Employee is the person payslips are issued to.
type Employee struct {
	ID             EmployeeID
	Name           string
	Email          string
	HireDate       TimePoint
	CurrencyDigits int32
}

// Digits returns the currency digits, falling back to the default.
func (e Employee) Digits() int32 {
	if e.CurrencyDigits <= 0 {
		return DefaultCurrencyDigits
	}
	return e.CurrencyDigits
}
