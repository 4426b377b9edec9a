package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

// =============================================================================
// FIGURES - Hours and amount of a line or a whole payslip
// =============================================================================

// Figures are the computed hours and amount of a payslip line. A payslip's
// figures are the sums of its lines' figures.
type Figures struct {
	WorkingHours           decimal.Decimal
	WorkedHours            decimal.Decimal
	LeaveHours             decimal.Decimal
	GeneratedEntitledHours decimal.Decimal
	TotalHours             decimal.Decimal
	HoursToDo              decimal.Decimal
	RemainingHours         decimal.Decimal
	LeavePaymentHours      decimal.Decimal
	Amount                 decimal.Decimal
}

// Add returns the sum of two figure sets.
func (f Figures) Add(o Figures) Figures {
	return Figures{
		WorkingHours:           f.WorkingHours.Add(o.WorkingHours),
		WorkedHours:            f.WorkedHours.Add(o.WorkedHours),
		LeaveHours:             f.LeaveHours.Add(o.LeaveHours),
		GeneratedEntitledHours: f.GeneratedEntitledHours.Add(o.GeneratedEntitledHours),
		TotalHours:             f.TotalHours.Add(o.TotalHours),
		HoursToDo:              f.HoursToDo.Add(o.HoursToDo),
		RemainingHours:         f.RemainingHours.Add(o.RemainingHours),
		LeavePaymentHours:      f.LeavePaymentHours.Add(o.LeavePaymentHours),
		Amount:                 f.Amount.Add(o.Amount),
	}
}

// LineFigures computes the figures of one line.
//
// leaveHours are the employee's leave hours inside the payslip range; they
// only count on a line carrying working hours.
func LineFigures(line Line, shifts []CostedShift, leaveHours decimal.Decimal, entitlements []leave.Entitlement, payments []leave.Payment, digits int32) Figures {
	f := Figures{
		WorkingHours:           generic.RoundHours(line.WorkingHours),
		WorkedHours:            generic.RoundHours(generic.SumBy(shifts, func(s CostedShift) decimal.Decimal { return s.CostHours })),
		GeneratedEntitledHours: generic.RoundHours(leave.EntitlementHours(entitlements)),
		LeavePaymentHours:      generic.RoundHours(leave.PaymentHours(payments)),
		Amount:                 generic.RoundCurrency(generic.SumBy(shifts, func(s CostedShift) decimal.Decimal { return s.Cost }), digits),
		LeaveHours:             decimal.Zero,
	}
	if line.HasWorkingHours() {
		f.LeaveHours = generic.RoundHours(leaveHours)
	}
	f.TotalHours = f.WorkedHours.Add(f.LeaveHours).Sub(f.GeneratedEntitledHours)
	f.HoursToDo = f.WorkingHours.Sub(f.LeaveHours)
	f.RemainingHours = f.WorkingHours.Sub(f.TotalHours)
	return f
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the payslip's own fields.
func (p Payslip) Validate() error {
	if p.EmployeeID == "" {
		return generic.Invalid("employee", "is required")
	}
	if p.Start.IsZero() || p.End.IsZero() {
		return generic.Invalid("dates", "start and end are required")
	}
	if !p.End.After(p.Start) {
		return fmt.Errorf("payslip end %s must be after start %s: %w", p.End, p.Start, generic.ErrInvalidPeriod)
	}
	return nil
}

// CheckContract verifies the payslip may use contract.
func (p Payslip) CheckContract(c *Contract) error {
	if c == nil {
		return generic.Invalid("contract", "employee %s has no confirmed contract on %s", p.EmployeeID, p.Start)
	}
	if c.EmployeeID != p.EmployeeID {
		return generic.Invalid("contract", "contract %s belongs to another employee", c.ID)
	}
	if c.State != ContractConfirmed {
		return generic.Invalid("contract", "contract %s is %s, not confirmed", c.ID, c.State)
	}
	return nil
}

// DuplicateHoursError is returned when a second line of a payslip is given
// working hours.
type DuplicateHoursError struct {
	Line     string
	Existing string
}

func (e *DuplicateHoursError) Error() string {
	return fmt.Sprintf("cannot set working hours on payslip line %q: line %q already has hours in the same payslip", e.Line, e.Existing)
}

func (e *DuplicateHoursError) Unwrap() error { return generic.ErrConflict }

// CheckUniqueHours verifies that line is the only line of its payslip
// carrying working hours.
func CheckUniqueHours(line Line, siblings []Line) error {
	if !line.HasWorkingHours() {
		return nil
	}
	for _, o := range siblings {
		if o.ID != line.ID && o.PayslipID == line.PayslipID && o.HasWorkingHours() {
			return &DuplicateHoursError{Line: line.ID, Existing: o.ID}
		}
	}
	return nil
}

// DefaultWorkingHours is the number of workdays in p times the nominal day.
func DefaultWorkingHours(p generic.Period, calendar generic.HolidayCalendar) decimal.Decimal {
	return generic.HoursPerDay.Mul(decimal.NewFromInt(int64(p.Workdays(calendar))))
}

// =============================================================================
// VIEWS - A payslip with everything attached to it
// =============================================================================

// LineView is a line with its attached records and computed figures.
type LineView struct {
	Line
	Shifts       []CostedShift
	Entitlements []leave.Entitlement
	Payments     []leave.Payment
	Figures      Figures
}

// PayslipView is a payslip with its lines and totals.
type PayslipView struct {
	Payslip
	Employee generic.Employee
	Contract Contract
	Lines    []LineView
	Totals   Figures
}

// BuildView computes the figures of every line and the payslip totals.
func BuildView(p Payslip, employee generic.Employee, contract Contract, lines []LineView, leaveHours decimal.Decimal) PayslipView {
	v := PayslipView{Payslip: p, Employee: employee, Contract: contract}
	for _, l := range lines {
		l.Figures = LineFigures(l.Line, l.Shifts, leaveHours, l.Entitlements, l.Payments, employee.Digits())
		v.Totals = v.Totals.Add(l.Figures)
		v.Lines = append(v.Lines, l)
	}
	return v
}

// Shifts returns the shifts of every line.
func (v PayslipView) Shifts() []CostedShift {
	var out []CostedShift
	for _, l := range v.Lines {
		out = append(out, l.Shifts...)
	}
	return out
}

// Entitlements returns the generated entitlements of every line.
func (v PayslipView) Entitlements() []leave.Entitlement {
	var out []leave.Entitlement
	for _, l := range v.Lines {
		out = append(out, l.Entitlements...)
	}
	return out
}

// Payments returns the leave payments of every line.
func (v PayslipView) Payments() []leave.Payment {
	var out []leave.Payment
	for _, l := range v.Lines {
		out = append(out, l.Payments...)
	}
	return out
}
