package payroll

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// RULE MATCHING - Ordered linear scan, first match wins
// =============================================================================

// Pattern is what a rule is matched against. A nil Hours matches every rule.
type Pattern struct {
	Hours *decimal.Decimal
}

// Match reports whether the rule applies to the pattern.
func (r Rule) Match(p Pattern) bool {
	if r.Hours == nil || p.Hours == nil {
		return true
	}
	return r.Hours.GreaterThanOrEqual(*p.Hours)
}

// Validate checks the rule's own fields.
func (r Rule) Validate() error {
	if r.HourTypeID == "" {
		return generic.Invalid("hour_type", "is required")
	}
	if r.Hours != nil && r.Hours.IsNegative() {
		return generic.Invalid("hours", "must be positive or zero")
	}
	if r.CostPrice.IsNegative() {
		return generic.Invalid("cost_price", "must be positive or zero")
	}
	return nil
}

// Ordered returns the rules sorted by sequence. Rules without a sequence go
// last; ties keep their insertion order.
func (rs RuleSet) Ordered() []Rule {
	rules := make([]Rule, len(rs.Rules))
	copy(rules, rs.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i].Sequence, rules[j].Sequence
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return rules
}

// MatchingRule returns the first rule, in order, that matches hours.
func (rs RuleSet) MatchingRule(hours *decimal.Decimal) (*Rule, bool) {
	p := Pattern{Hours: hours}
	for _, r := range rs.Ordered() {
		if r.Match(p) {
			r := r
			return &r, true
		}
	}
	return nil, false
}

// Validate checks the ruleset and every rule in it.
func (rs RuleSet) Validate() error {
	if rs.Name == "" {
		return generic.Invalid("name", "is required")
	}
	for i, r := range rs.Rules {
		if err := r.Validate(); err != nil {
			return generic.Invalid("rules", "rule %d: %v", i+1, err)
		}
	}
	return nil
}
