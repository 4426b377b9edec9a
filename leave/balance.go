/*
balance.go - Leave balance per employee, leave period and leave type

PURPOSE:
  Answers "how many leave hours does this employee have left this year?"
  The balance is derived every time from entitlements, leaves and payments;
  there is no stored balance that could drift.

BALANCE COMPONENTS:
  Entitled:  Sum of entitlements of the period (yearly grant + generated)
  Taken:     Approved and done leaves charged to the period
  Pending:   Leaves still waiting for approval
  Paid:      Leave payments (hours paid out instead of taken)

  Remaining = Entitled - Taken - Paid
  Available = Remaining - Pending

EXAMPLE:
  184h entitled, 96h taken, 8h paid, 16h pending:
    Remaining = 80h, Available = 64h

SEE ALSO:
  - hours.go:   Prorated leave hours inside a date range
  - service.go: Balances() loads the records and calls ComputeBalances
*/
package leave

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// BALANCE
// =============================================================================

type Balance struct {
	EmployeeID generic.EmployeeID
	PeriodID   string
	TypeID     string
	Entitled   decimal.Decimal
	Taken      decimal.Decimal
	Pending    decimal.Decimal
	Paid       decimal.Decimal
}

func (b Balance) Remaining() decimal.Decimal {
	return b.Entitled.Sub(b.Taken).Sub(b.Paid)
}

func (b Balance) Available() decimal.Decimal {
	return b.Remaining().Sub(b.Pending)
}

// ComputeBalances groups the records of one employee and period by leave type.
// Leaves are charged in full to the period they reference.
func ComputeBalances(employeeID generic.EmployeeID, periodID string, entitlements []Entitlement, leaves []Leave, payments []Payment) []Balance {
	byType := make(map[string]*Balance)
	get := func(typeID string) *Balance {
		b, ok := byType[typeID]
		if !ok {
			b = &Balance{EmployeeID: employeeID, PeriodID: periodID, TypeID: typeID}
			byType[typeID] = b
		}
		return b
	}

	for _, e := range entitlements {
		b := get(e.TypeID)
		b.Entitled = b.Entitled.Add(e.Hours)
	}
	for _, l := range leaves {
		switch {
		case l.State.Counted():
			b := get(l.TypeID)
			b.Taken = b.Taken.Add(l.Hours)
		case l.State == StatePending:
			b := get(l.TypeID)
			b.Pending = b.Pending.Add(l.Hours)
		}
	}
	for _, p := range payments {
		b := get(p.TypeID)
		b.Paid = b.Paid.Add(p.Hours)
	}

	result := make([]Balance, 0, len(byType))
	for _, b := range byType {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TypeID < result[j].TypeID })
	return result
}
