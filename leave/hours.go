package leave

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// LEAVE HOURS - Prorated per calendar day
// =============================================================================

// HoursIn returns the part of the leave's hours that falls inside p.
//
// The leave's hours are spread evenly over every day of [Start, End], so a
// 96 hour leave from Dec 27 to Jan 7 (12 days) gives 40 hours to the first
// year and 56 to the second.
func (l Leave) HoursIn(p generic.Period) decimal.Decimal {
	span := l.Range()
	overlap, ok := span.Overlap(p)
	if !ok {
		return decimal.Zero
	}
	total := span.Length()
	if total == 0 {
		return decimal.Zero
	}
	if overlap.Length() == total {
		return l.Hours
	}
	return l.Hours.
		Mul(decimal.NewFromInt(int64(overlap.Length()))).
		Div(decimal.NewFromInt(int64(total)))
}

// Hours sums the approved and done leave hours that fall inside p.
// An empty typeID counts every leave type.
func Hours(leaves []Leave, p generic.Period, typeID string) decimal.Decimal {
	total := decimal.Zero
	for _, l := range leaves {
		if !l.State.Counted() {
			continue
		}
		if typeID != "" && l.TypeID != typeID {
			continue
		}
		total = total.Add(l.HoursIn(p))
	}
	return generic.RoundHours(total)
}

// EntitlementHours sums entitlement hours.
func EntitlementHours(items []Entitlement) decimal.Decimal {
	return generic.SumBy(items, func(e Entitlement) decimal.Decimal { return e.Hours })
}

// PaymentHours sums leave payment hours.
func PaymentHours(items []Payment) decimal.Decimal {
	return generic.SumBy(items, func(p Payment) decimal.Decimal { return p.Hours })
}
