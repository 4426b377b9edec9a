/*
contract.go - Contract validation, workflow and lookups

PURPOSE:
  A contract starts as a draft and only prices shifts and payslips once it is
  confirmed. At most one confirmed contract per employee may cover a day.

WORKFLOW:
  draft ──confirm──► confirmed ──draft──► draft
    │                                       ▲
    └──cancel──► cancelled ────draft────────┘

CURRENT CONTRACT:
  Confirmed contracts are scanned from the latest start backwards. The first
  one that started on or before the date is the candidate; it is current only
  if it has not ended yet. Older contracts are never considered, because
  confirmed contracts cannot overlap.
*/
package payroll

import (
	"fmt"
	"sort"
	"strings"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// VALIDATION & WORKFLOW
// =============================================================================

// Validate checks the contract's own fields.
func (c Contract) Validate() error {
	if c.EmployeeID == "" {
		return generic.Invalid("employee", "is required")
	}
	if c.Start.IsZero() {
		return generic.Invalid("start", "is required")
	}
	if c.End != nil && c.End.Before(c.Start) {
		return fmt.Errorf("contract end %s before start %s: %w", c.End, c.Start, generic.ErrInvalidPeriod)
	}
	if c.YearlyHours.IsNegative() {
		return generic.Invalid("yearly_hours", "must be positive or zero")
	}
	if c.WorkingShiftHours != nil && c.WorkingShiftHours.IsNegative() {
		return generic.Invalid("working_shift_hours", "must be positive or zero")
	}
	if c.WorkingShiftPrice != nil && c.WorkingShiftPrice.IsNegative() {
		return generic.Invalid("working_shift_price", "must be positive or zero")
	}
	return nil
}

var contractTransitions = map[ContractState][]ContractState{
	ContractDraft:     {ContractConfirmed, ContractCancelled},
	ContractConfirmed: {ContractDraft},
	ContractCancelled: {ContractDraft},
}

// CanTransitionContract reports whether a contract may move from one state to another.
func CanTransitionContract(from, to ContractState) bool {
	for _, s := range contractTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OverlapError is returned when confirming a contract that intersects another
// confirmed contract of the same employee.
type OverlapError struct {
	Contract string
	Existing string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("The Payroll Contract %q overlaps with existing contract %q.", e.Contract, e.Existing)
}

func (e *OverlapError) Unwrap() error { return generic.ErrConflict }

// FindOverlap returns the first confirmed contract of c's employee, other than
// c itself, whose range intersects c's.
func FindOverlap(c Contract, others []Contract) (*Contract, bool) {
	for _, o := range others {
		if o.ID == c.ID || o.EmployeeID != c.EmployeeID || o.State != ContractConfirmed {
			continue
		}
		if c.Range().Intersects(o.Range()) {
			o := o
			return &o, true
		}
	}
	return nil, false
}

// =============================================================================
// NAMING & SEARCH
// =============================================================================

// RecName renders a contract as "<employee name> (<start>)".
func RecName(c Contract, employee *generic.Employee) string {
	name := string(c.EmployeeID)
	if employee != nil && employee.Name != "" {
		name = employee.Name
	}
	return fmt.Sprintf("%s (%s)", name, c.Start)
}

// MatchesName reports whether query is found, case-insensitively, in the
// employee name or the start date of the contract.
func MatchesName(c Contract, employee *generic.Employee, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if employee != nil && strings.Contains(strings.ToLower(employee.Name), q) {
		return true
	}
	return strings.Contains(c.Start.String(), q)
}

// =============================================================================
// LOOKUPS
// =============================================================================

// CurrentContract returns the confirmed contract covering date.
func CurrentContract(contracts []Contract, date generic.TimePoint) (*Contract, bool) {
	confirmed := make([]Contract, 0, len(contracts))
	for _, c := range contracts {
		if c.State == ContractConfirmed {
			confirmed = append(confirmed, c)
		}
	}
	sort.SliceStable(confirmed, func(i, j int) bool {
		return confirmed[i].Start.After(confirmed[j].Start)
	})
	for _, c := range confirmed {
		if c.Start.After(date) {
			continue
		}
		if c.End == nil || c.End.AfterOrEqual(date) {
			c := c
			return &c, true
		}
		return nil, false
	}
	return nil, false
}

// Copy returns a draft duplicate of the contract without an ID.
func (c Contract) Copy() Contract {
	dup := c
	dup.ID = ""
	dup.State = ContractDraft
	if c.End != nil {
		end := *c.End
		dup.End = &end
	}
	if c.WorkingShiftHours != nil {
		h := *c.WorkingShiftHours
		dup.WorkingShiftHours = &h
	}
	if c.WorkingShiftPrice != nil {
		p := *c.WorkingShiftPrice
		dup.WorkingShiftPrice = &p
	}
	return dup
}
