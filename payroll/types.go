/*
Package payroll implements employment contracts, pay rules and payslips.

PURPOSE:
  A contract says which ruleset prices an employee's working shifts and how
  many hours a year they owe. A payslip groups, for a date range, the shifts
  worked, the leave taken and the leave hours granted or paid, and turns them
  into hour figures and an amount.

KEY CONCEPTS:
  - LineType:  Kind of payslip line ("Normal hours", "Night hours")
  - RuleSet:   Ordered rules; the first rule matching a shift prices it
  - Contract:  Employee + validity range + ruleset, draft until confirmed
  - Payslip:   Employee + contract + date range, made of lines
  - Line:      Working hours to do plus attached shifts, entitlements and
               leave payments

HOUR FIGURES (per line):
  worked     = sum of attached shift cost hours
  leave      = leave hours inside the payslip (lines with working hours only)
  entitled   = sum of generated entitlement hours
  total      = worked + leave - entitled
  hours todo = working - leave
  remaining  = working - total

SEE ALSO:
  - rules.go:   Rule matching
  - contract.go: Contract workflow and overlap check
  - costing.go: Working shift cost
  - payslip.go: Line and payslip figures
  - summary.go: Contract hours per leave period
*/
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// LINE TYPE & RULES
// =============================================================================

// LineType classifies payslip lines and is the hour type rules resolve to.
type LineType struct {
	ID      string
	Name    string
	Product string
}

// Rule prices a working shift. A rule without Hours matches any shift;
// otherwise it matches shifts of at most Hours hours.
type Rule struct {
	ID         string
	Sequence   *int
	Hours      *decimal.Decimal
	HourTypeID string
	CostPrice  decimal.Decimal
}

// RuleSet is a named, ordered list of rules shared by contracts.
type RuleSet struct {
	ID    string
	Name  string
	Rules []Rule
}

// =============================================================================
// CONTRACT
// =============================================================================

type ContractState string

const (
	ContractDraft     ContractState = "draft"
	ContractConfirmed ContractState = "confirmed"
	ContractCancelled ContractState = "cancelled"
)

// Contract is an employment agreement. A nil End means open ended.
type Contract struct {
	ID                string
	EmployeeID        generic.EmployeeID
	Start             generic.TimePoint
	End               *generic.TimePoint
	YearlyHours       decimal.Decimal
	WorkingShiftHours *decimal.Decimal
	WorkingShiftPrice *decimal.Decimal
	RuleSetID         string
	State             ContractState
}

// Range returns the days the contract is valid.
func (c Contract) Range() generic.OpenPeriod {
	return generic.OpenPeriod{Start: c.Start, End: c.End}
}

// ContractFilter narrows contract listings. Zero fields are ignored.
type ContractFilter struct {
	EmployeeID generic.EmployeeID
	States     []ContractState
}

// Match reports whether c satisfies the filter.
func (f ContractFilter) Match(c Contract) bool {
	if f.EmployeeID != "" && c.EmployeeID != f.EmployeeID {
		return false
	}
	if len(f.States) == 0 {
		return true
	}
	for _, s := range f.States {
		if s == c.State {
			return true
		}
	}
	return false
}

// =============================================================================
// PAYSLIP
// =============================================================================

// Payslip covers [Start, End] for one employee under one contract.
type Payslip struct {
	ID         string
	EmployeeID generic.EmployeeID
	ContractID string
	Start      generic.TimePoint
	End        generic.TimePoint
}

// Range returns the days covered by the payslip.
func (p Payslip) Range() generic.Period {
	return generic.Period{Start: p.Start, End: p.End}
}

// Line is a payslip line. Shifts, entitlements and leave payments point to
// the line through their PayslipLineID.
type Line struct {
	ID           string
	PayslipID    string
	TypeID       string
	WorkingHours decimal.Decimal
}

// HasWorkingHours reports whether the line carries the payslip's hours to do.
func (l Line) HasWorkingHours() bool {
	return !l.WorkingHours.IsZero()
}

// PayslipFilter narrows payslip listings. Zero fields are ignored.
type PayslipFilter struct {
	EmployeeID generic.EmployeeID
	ContractID string

	// From/To select payslips overlapping the range.
	From *generic.TimePoint
	To   *generic.TimePoint
}

// Match reports whether p satisfies the filter.
func (f PayslipFilter) Match(p Payslip) bool {
	if f.EmployeeID != "" && p.EmployeeID != f.EmployeeID {
		return false
	}
	if f.ContractID != "" && p.ContractID != f.ContractID {
		return false
	}
	if f.From != nil && p.End.Before(*f.From) {
		return false
	}
	if f.To != nil && p.Start.After(*f.To) {
		return false
	}
	return true
}
