package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/workshift"
)

// =============================================================================
// WORKING SHIFT COSTING
// =============================================================================

// CostedShift is a working shift with the figures its contract gives it.
type CostedShift struct {
	workshift.Shift
	ContractID string
	RuleID     string
	HourTypeID string
	CostHours  decimal.Decimal
	Cost       decimal.Decimal
}

// CostShift prices a shift under contract and its ruleset. Either may be nil
// when the employee has no confirmed contract on the shift date.
//
//	cost hours = contract shift hours, else rule hours, else shift hours
//	cost       = rule cost price, else contract shift price, else 0
//
// The rule is always matched on the shift's own hours.
func CostShift(s workshift.Shift, contract *Contract, rules *RuleSet, digits int32) CostedShift {
	out := CostedShift{Shift: s}
	hours := s.Hours()
	if hours != nil {
		out.CostHours = *hours
	}
	out.Cost = decimal.Zero
	if contract == nil {
		return out
	}
	out.ContractID = contract.ID

	var rule *Rule
	if rules != nil {
		rule, _ = rules.MatchingRule(hours)
	}

	switch {
	case contract.WorkingShiftHours != nil:
		out.CostHours = *contract.WorkingShiftHours
	case rule != nil && rule.Hours != nil:
		out.CostHours = *rule.Hours
	}
	switch {
	case rule != nil:
		out.RuleID = rule.ID
		out.HourTypeID = rule.HourTypeID
		out.Cost = rule.CostPrice
	case contract.WorkingShiftPrice != nil:
		out.Cost = *contract.WorkingShiftPrice
	}
	out.CostHours = generic.RoundHours(out.CostHours)
	out.Cost = generic.RoundCurrency(out.Cost, digits)
	return out
}
