// Package leave implements leave years, leave requests, entitlements and
// leave payments. Payroll reads leave hours from here to compute how many
// hours an employee still has to work in a payslip.
package leave

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// LEAVE PERIOD & TYPE
// =============================================================================

// Period is a leave year (e.g. "2025": Jan 1 - Dec 31).
type Period struct {
	ID    string
	Name  string
	Start generic.TimePoint
	End   generic.TimePoint
}

// Range returns the period as a generic day range.
func (p Period) Range() generic.Period {
	return generic.Period{Start: p.Start, End: p.End}
}

// Type classifies leaves, entitlements and payments ("Holidays", "Sick", ...).
type Type struct {
	ID   string
	Name string
}

// =============================================================================
// LEAVE - Requested absence
// =============================================================================

type State string

const (
	StatePending   State = "pending"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
	StateCancelled State = "cancelled"
	StateDone      State = "done"
)

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StatePending:   {StateApproved, StateRejected, StateCancelled},
	StateApproved:  {StateDone, StateRejected, StateCancelled},
	StateRejected:  {StatePending},
	StateCancelled: {StatePending},
	StateDone:      nil,
}

// CanTransition reports whether a leave in state from may move to state to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Counted reports whether leaves in this state consume hours.
func (s State) Counted() bool {
	return s == StateApproved || s == StateDone
}

// Leave is an absence of an employee between two dates (both included).
// Hours are spread evenly over every calendar day of the range.
type Leave struct {
	ID          string
	EmployeeID  generic.EmployeeID
	PeriodID    string
	TypeID      string
	RequestDate generic.TimePoint
	Start       generic.TimePoint
	End         generic.TimePoint
	Hours       decimal.Decimal
	State       State
}

// Range returns the days covered by the leave.
func (l Leave) Range() generic.Period {
	return generic.Period{Start: l.Start, End: l.End}
}

// =============================================================================
// ENTITLEMENT & PAYMENT
// =============================================================================

// Entitlement grants leave hours to an employee for a leave period.
// Entitlements generated from a payslip line carry its ID.
type Entitlement struct {
	ID            string
	EmployeeID    generic.EmployeeID
	PeriodID      string
	TypeID        string
	Date          generic.TimePoint // zero when not dated
	Hours         decimal.Decimal
	PayslipLineID string
}

// Payment records leave hours paid out instead of taken.
type Payment struct {
	ID            string
	EmployeeID    generic.EmployeeID
	PeriodID      string
	TypeID        string
	Date          generic.TimePoint
	Hours         decimal.Decimal
	PayslipLineID string
}

// =============================================================================
// FILTER
// =============================================================================

// Filter narrows list queries. Zero fields are ignored.
type Filter struct {
	EmployeeID generic.EmployeeID
	PeriodID   string
	TypeID     string

	// From/To select leaves overlapping the range, or entitlements and
	// payments dated inside it.
	From *generic.TimePoint
	To   *generic.TimePoint

	States         []State  // leaves only
	PayslipLineIDs []string // entitlements and payments only
	Unattached     bool     // entitlements and payments without payslip line
}

// MatchLeave reports whether l satisfies the filter.
func (f Filter) MatchLeave(l Leave) bool {
	if !f.matchKeys(l.EmployeeID, l.PeriodID, l.TypeID) {
		return false
	}
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if s == l.State {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && l.End.Before(*f.From) {
		return false
	}
	if f.To != nil && l.Start.After(*f.To) {
		return false
	}
	return true
}

// MatchEntitlement reports whether e satisfies the filter.
func (f Filter) MatchEntitlement(e Entitlement) bool {
	return f.matchKeys(e.EmployeeID, e.PeriodID, e.TypeID) && f.matchDated(e.Date, e.PayslipLineID)
}

// MatchPayment reports whether p satisfies the filter.
func (f Filter) MatchPayment(p Payment) bool {
	return f.matchKeys(p.EmployeeID, p.PeriodID, p.TypeID) && f.matchDated(p.Date, p.PayslipLineID)
}

func (f Filter) matchKeys(employeeID generic.EmployeeID, periodID, typeID string) bool {
	if f.EmployeeID != "" && employeeID != f.EmployeeID {
		return false
	}
	if f.PeriodID != "" && periodID != f.PeriodID {
		return false
	}
	if f.TypeID != "" && typeID != f.TypeID {
		return false
	}
	return true
}

func (f Filter) matchDated(date generic.TimePoint, lineID string) bool {
	if f.Unattached && lineID != "" {
		return false
	}
	if len(f.PayslipLineIDs) > 0 {
		found := false
		for _, id := range f.PayslipLineIDs {
			if id == lineID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && (date.IsZero() || date.Before(*f.From)) {
		return false
	}
	if f.To != nil && (date.IsZero() || date.After(*f.To)) {
		return false
	}
	return true
}
