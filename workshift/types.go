// Package workshift records the shifts employees work. Done shifts are
// attached to payslip lines and costed by the payroll package.
package workshift

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// SHIFT
// =============================================================================

type State string

const (
	StateDraft     State = "draft"
	StateConfirmed State = "confirmed"
	StateDone      State = "done"
	StateCancelled State = "cancelled"
)

var transitions = map[State][]State{
	StateDraft:     {StateConfirmed, StateCancelled},
	StateConfirmed: {StateDone, StateCancelled},
	StateDone:      nil,
	StateCancelled: {StateDraft},
}

// CanTransition reports whether a shift in state from may move to state to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Shift is a block of time worked by an employee.
// End is nil while the shift is still open.
type Shift struct {
	ID            string
	Code          string
	EmployeeID    generic.EmployeeID
	Start         time.Time
	End           *time.Time
	State         State
	PayslipLineID string
}

// Hours returns the shift length in hours rounded to 2 decimals,
// or nil when the shift has no end yet.
func (s Shift) Hours() *decimal.Decimal {
	if s.End == nil {
		return nil
	}
	seconds := decimal.NewFromInt(int64(s.End.Sub(s.Start) / time.Second))
	h := generic.RoundHours(seconds.Div(decimal.NewFromInt(3600)))
	return &h
}

// Date is the day the shift starts on.
func (s Shift) Date() generic.TimePoint {
	return generic.DateOf(s.Start)
}

// Attached reports whether the shift is linked to a payslip line.
func (s Shift) Attached() bool {
	return s.PayslipLineID != ""
}

// =============================================================================
// FILTER
// =============================================================================

// Filter narrows list queries. Zero fields are ignored.
type Filter struct {
	EmployeeID     generic.EmployeeID
	States         []State
	PayslipLineIDs []string
	Unattached     bool

	// From/To select shifts starting on those days (both included).
	From *generic.TimePoint
	To   *generic.TimePoint
}

// Match reports whether s satisfies the filter. Stores that cannot push a
// filter down use it to post-filter rows.
func (f Filter) Match(s Shift) bool {
	if f.EmployeeID != "" && s.EmployeeID != f.EmployeeID {
		return false
	}
	if len(f.States) > 0 && !containsState(f.States, s.State) {
		return false
	}
	if len(f.PayslipLineIDs) > 0 && !containsString(f.PayslipLineIDs, s.PayslipLineID) {
		return false
	}
	if f.Unattached && s.Attached() {
		return false
	}
	d := s.Date()
	if f.From != nil && d.Before(*f.From) {
		return false
	}
	if f.To != nil && d.After(*f.To) {
		return false
	}
	return true
}

func containsState(states []State, s State) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
