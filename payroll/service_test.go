package payroll_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/memory"
	"github.com/warp/payroll-engine/workshift"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	svc      *payroll.Service
	employee *generic.Employee
	normal   *payroll.LineType
	extra    *payroll.LineType
	ruleset  *payroll.RuleSet
	contract *payroll.Contract
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	svc := payroll.NewService(memory.New(), zerolog.Nop())
	svc.Now = func() time.Time { return time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC) }

	emp, err := svc.CreateEmployee(ctx, generic.Employee{Name: "Employee"})
	require.NoError(t, err)
	normal, err := svc.CreateLineType(ctx, payroll.LineType{Name: "Normal", Product: "Professional Services"})
	require.NoError(t, err)
	extra, err := svc.CreateLineType(ctx, payroll.LineType{Name: "Extra", Product: "Extra Professional Services"})
	require.NoError(t, err)

	rs, err := svc.SaveRuleSet(ctx, payroll.RuleSet{
		Name: "Employees",
		Rules: []payroll.Rule{
			{Sequence: seq(1), Hours: decPtr("4.5"), HourTypeID: normal.ID, CostPrice: dec("300")},
			{Sequence: seq(2), Hours: decPtr("8"), HourTypeID: normal.ID, CostPrice: dec("800")},
		},
	})
	require.NoError(t, err)

	c, err := svc.CreateContract(ctx, payroll.Contract{
		EmployeeID:        emp.ID,
		Start:             date(2025, time.January, 1),
		End:               datePtr(2025, time.December, 31),
		YearlyHours:       dec("1840"),
		WorkingShiftHours: decPtr("8"),
		WorkingShiftPrice: decPtr("360"),
		RuleSetID:         rs.ID,
	})
	require.NoError(t, err)
	c, err = svc.ConfirmContract(ctx, c.ID)
	require.NoError(t, err)

	return &fixture{svc: svc, employee: emp, normal: normal, extra: extra, ruleset: rs, contract: c}
}

func (f *fixture) doneShift(t *testing.T, start time.Time, hours float64) *workshift.Shift {
	t.Helper()
	ctx := context.Background()
	end := start.Add(time.Duration(hours * float64(time.Hour)))
	s, err := f.svc.Shifts.Create(ctx, workshift.Shift{EmployeeID: f.employee.ID, Start: start, End: &end})
	require.NoError(t, err)
	_, err = f.svc.Shifts.Confirm(ctx, s.ID)
	require.NoError(t, err)
	s, err = f.svc.Shifts.Done(ctx, s.ID)
	require.NoError(t, err)
	return s
}

func (f *fixture) maySlip(t *testing.T) (*payroll.Payslip, *payroll.Line) {
	t.Helper()
	ctx := context.Background()
	p, err := f.svc.CreatePayslip(ctx, payroll.Payslip{
		EmployeeID: f.employee.ID,
		Start:      date(2025, time.May, 1),
		End:        date(2025, time.May, 31),
	})
	require.NoError(t, err)
	line, err := f.svc.AddLine(ctx, p.ID, f.normal.ID, decPtr("160"))
	require.NoError(t, err)
	return p, line
}

func mayAt(day, hour, minute int) time.Time {
	return time.Date(2025, time.May, day, hour, minute, 0, 0, time.UTC)
}

// =============================================================================
// CONTRACT WORKFLOW
// =============================================================================

func TestService_ContractWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.contract.ID

	c, err := f.svc.DraftContract(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payroll.ContractDraft, c.State)

	c, err = f.svc.CancelContract(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payroll.ContractCancelled, c.State)

	_, err = f.svc.ConfirmContract(ctx, id)
	assert.ErrorIs(t, err, generic.ErrInvalidState, "cancelled contracts go back to draft first")

	_, err = f.svc.DraftContract(ctx, id)
	require.NoError(t, err)
	c, err = f.svc.ConfirmContract(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payroll.ContractConfirmed, c.State)
}

func TestService_ConfirmContract_Overlap(t *testing.T) {
	// GIVEN: A confirmed 2025 contract
	// WHEN: Confirming a December 2025 contract for the same employee
	// THEN: It is rejected; moved to 2024 it can be confirmed

	f := newFixture(t)
	ctx := context.Background()

	c2, err := f.svc.CreateContract(ctx, payroll.Contract{
		EmployeeID: f.employee.ID,
		Start:      date(2025, time.December, 1),
		End:        datePtr(2025, time.December, 31),
		RuleSetID:  f.ruleset.ID,
	})
	require.NoError(t, err)

	_, err = f.svc.ConfirmContract(ctx, c2.ID)
	var overlap *payroll.OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, "Employee (2025-12-01)", overlap.Contract)
	assert.Equal(t, "Employee (2025-01-01)", overlap.Existing)
	assert.True(t, generic.IsConflict(err))

	stored, err := f.svc.Contract(ctx, c2.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.ContractDraft, stored.State, "failed confirmation leaves the draft untouched")

	c2.Start = date(2024, time.January, 1)
	c2.End = datePtr(2024, time.December, 31)
	_, err = f.svc.UpdateContract(ctx, *c2)
	require.NoError(t, err)
	c2, err = f.svc.ConfirmContract(ctx, c2.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.ContractConfirmed, c2.State)

	c3, err := f.svc.CopyContract(ctx, c2.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.ContractDraft, c3.State)
	assert.NotEqual(t, c2.ID, c3.ID)

	_, err = f.svc.UpdateContract(ctx, *c2)
	assert.ErrorIs(t, err, generic.ErrInvalidState, "confirmed contracts are read-only")
}

func TestService_SearchContracts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	found, err := f.svc.SearchContracts(ctx, "employee")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, f.contract.ID, found[0].ID)

	found, err = f.svc.SearchContracts(ctx, "1999")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestService_CurrentContract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.CurrentContract(ctx, f.employee.ID, generic.TimePoint{})
	require.NoError(t, err)
	require.NotNil(t, c, "today (2025-06-15) is covered")
	assert.Equal(t, f.contract.ID, c.ID)

	c, err = f.svc.CurrentContract(ctx, f.employee.ID, date(2026, time.January, 1))
	require.NoError(t, err)
	assert.Nil(t, c)
}

// =============================================================================
// PAYSLIP SCENARIO
// =============================================================================

func TestService_PayslipScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leaves := f.svc.Leaves

	// Leave years and types
	p2015, err := leaves.CreatePeriod(ctx, leave.Period{Name: "2015", Start: date(2015, time.January, 1), End: date(2015, time.December, 31)})
	require.NoError(t, err)
	p2016, err := leaves.CreatePeriod(ctx, leave.Period{Name: "2016", Start: date(2016, time.January, 1), End: date(2016, time.December, 31)})
	require.NoError(t, err)
	holidays, err := leaves.CreateType(ctx, leave.Type{Name: "Holidays"})
	require.NoError(t, err)

	// Yearly entitlement, not generated by a payslip
	_, err = leaves.CreateEntitlement(ctx, leave.Entitlement{EmployeeID: f.employee.ID, PeriodID: p2015.ID, TypeID: holidays.ID, Hours: dec("184")})
	require.NoError(t, err)

	// One leave day in May, one leave across two leave years
	for _, l := range []leave.Leave{
		{EmployeeID: f.employee.ID, PeriodID: p2015.ID, TypeID: holidays.ID, RequestDate: date(2025, time.May, 1),
			Start: date(2025, time.May, 5), End: date(2025, time.May, 5), Hours: dec("8")},
		{EmployeeID: f.employee.ID, PeriodID: p2015.ID, TypeID: holidays.ID, RequestDate: date(2015, time.May, 28),
			Start: date(2015, time.December, 27), End: date(2016, time.January, 7), Hours: dec("96")},
	} {
		created, err := leaves.RequestLeave(ctx, l)
		require.NoError(t, err)
		_, err = leaves.Approve(ctx, created.ID)
		require.NoError(t, err)
		_, err = leaves.Done(ctx, created.ID)
		require.NoError(t, err)
	}

	// Working shifts
	s1 := f.doneShift(t, mayAt(6, 9, 0), 3)
	s2 := f.doneShift(t, mayAt(7, 9, 0), 8)
	s3 := f.doneShift(t, mayAt(8, 9, 0), 7.5)
	s4 := f.doneShift(t, mayAt(9, 9, 0), 7.5)
	assert.Equal(t, "3.00", s1.Hours().StringFixed(2))
	assert.Equal(t, "7.50", s3.Hours().StringFixed(2))

	payment, err := leaves.CreatePayment(ctx, leave.Payment{
		EmployeeID: f.employee.ID, PeriodID: p2015.ID, TypeID: holidays.ID,
		Date: date(2025, time.May, 8), Hours: dec("8"),
	})
	require.NoError(t, err)

	// May payslip picks the current contract
	p, line := f.maySlip(t)
	assert.Equal(t, f.contract.ID, p.ContractID)
	require.NoError(t, f.svc.AttachShifts(ctx, line.ID, s1.ID, s2.ID, s3.ID, s4.ID))
	_, err = f.svc.GenerateEntitlement(ctx, line.ID, leave.Entitlement{
		PeriodID: p2015.ID, TypeID: holidays.ID, Date: date(2025, time.May, 7), Hours: dec("4"),
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.AttachPayments(ctx, line.ID, payment.ID))

	v, err := f.svc.PayslipView(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, v.Lines, 1)
	lf := v.Lines[0].Figures

	// every shift counts the contract's 8h; 3h is priced by the 4.5h rule
	// at 300, the others by the 8h rule at 800
	assert.Equal(t, "8.00", lf.LeaveHours.StringFixed(2))
	assert.Equal(t, "152.00", lf.HoursToDo.StringFixed(2))
	assert.Equal(t, "32.00", lf.WorkedHours.StringFixed(2))
	assert.Equal(t, "4.00", lf.GeneratedEntitledHours.StringFixed(2))
	assert.Equal(t, "124.00", lf.RemainingHours.StringFixed(2))
	assert.Equal(t, "8.00", lf.LeavePaymentHours.StringFixed(2))
	assert.Equal(t, "2700.00", lf.Amount.StringFixed(2))
	assert.True(t, lf.Amount.Equal(v.Totals.Amount))
	assert.True(t, lf.WorkedHours.Equal(v.Totals.WorkedHours))
	assert.Len(t, v.Shifts(), 4)
	assert.Len(t, v.Entitlements(), 1)
	assert.Len(t, v.Payments(), 1)

	// Empty December payslip
	dec2025, err := f.svc.CreatePayslip(ctx, payroll.Payslip{EmployeeID: f.employee.ID, Start: date(2025, time.December, 1), End: date(2025, time.December, 31)})
	require.NoError(t, err)
	assert.Equal(t, f.contract.ID, dec2025.ContractID)
	_, err = f.svc.AddLine(ctx, dec2025.ID, f.normal.ID, decPtr("160"))
	require.NoError(t, err)

	dv, err := f.svc.PayslipView(ctx, dec2025.ID)
	require.NoError(t, err)
	df := dv.Lines[0].Figures
	assert.True(t, df.LeaveHours.IsZero())
	assert.Equal(t, "160", df.HoursToDo.String())
	assert.True(t, df.WorkedHours.IsZero())
	assert.Equal(t, "160", df.RemainingHours.String())
	assert.True(t, df.Amount.IsZero())

	// Contract hours summary per leave year
	rows, err := f.svc.HoursSummary(ctx, f.contract.ID)
	require.NoError(t, err)
	byPeriod := map[string]payroll.SummaryRow{}
	for _, r := range rows {
		byPeriod[r.PeriodID] = r
	}
	require.Len(t, byPeriod, 2)

	r15 := byPeriod[p2015.ID]
	assert.Equal(t, "40.00", r15.LeaveHours.StringFixed(2))
	assert.True(t, r15.HoursToDo.IsZero())
	assert.True(t, r15.WorkedHours.IsZero())
	assert.Equal(t, "4.00", r15.EntitledHours.StringFixed(2))
	assert.Equal(t, "4.00", r15.RemainingHours.StringFixed(2))
	assert.Equal(t, "8.00", r15.LeavePaymentHours.StringFixed(2))

	r16 := byPeriod[p2016.ID]
	assert.Equal(t, "56.00", r16.LeaveHours.StringFixed(2))
	assert.True(t, r16.HoursToDo.IsZero())
	assert.True(t, r16.WorkedHours.IsZero())
	assert.True(t, r16.EntitledHours.IsZero())
	assert.True(t, r16.RemainingHours.IsZero())
	assert.True(t, r16.LeavePaymentHours.IsZero())
}

func TestService_HoursSummary_CurrentYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	y2025, err := f.svc.Leaves.CreatePeriod(ctx, leave.Period{Name: "2025", Start: date(2025, time.January, 1), End: date(2025, time.December, 31)})
	require.NoError(t, err)

	s := f.doneShift(t, mayAt(6, 9, 0), 8)
	_, line := f.maySlip(t)
	require.NoError(t, f.svc.AttachShifts(ctx, line.ID, s.ID))

	rows, err := f.svc.HoursSummary(ctx, f.contract.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, y2025.ID, r.PeriodID)
	assert.Equal(t, "8", r.WorkedHours.String())
	assert.Equal(t, "160", r.HoursToDo.String())
	assert.Equal(t, "152", r.RemainingHours.String())
}

// =============================================================================
// PAYSLIP EDGE CASES
// =============================================================================

func TestService_CreatePayslip_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePayslip(ctx, payroll.Payslip{EmployeeID: f.employee.ID, Start: date(2026, time.March, 1), End: date(2026, time.March, 31)})
	assert.ErrorIs(t, err, generic.ErrValidation, "no contract covers 2026")

	other, err := f.svc.CreateEmployee(ctx, generic.Employee{Name: "Other"})
	require.NoError(t, err)
	_, err = f.svc.CreatePayslip(ctx, payroll.Payslip{EmployeeID: other.ID, ContractID: f.contract.ID, Start: date(2025, time.May, 1), End: date(2025, time.May, 31)})
	assert.ErrorIs(t, err, generic.ErrValidation, "contract belongs to another employee")

	_, err = f.svc.CreatePayslip(ctx, payroll.Payslip{EmployeeID: f.employee.ID, Start: date(2025, time.May, 31), End: date(2025, time.May, 1)})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestService_AddLine_SingleLineWithHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.maySlip(t)

	_, err := f.svc.AddLine(ctx, p.ID, f.extra.ID, decPtr("10"))
	var dup *payroll.DuplicateHoursError
	assert.ErrorAs(t, err, &dup)

	extra, err := f.svc.AddLine(ctx, p.ID, f.extra.ID, decPtr("0"))
	require.NoError(t, err)
	assert.True(t, extra.WorkingHours.IsZero())
}

func TestService_AddLine_DefaultHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddHoliday(ctx, generic.Holiday{Date: date(2025, time.May, 1), Name: "Labour day", Recurring: true})
	require.NoError(t, err)
	p, err := f.svc.CreatePayslip(ctx, payroll.Payslip{EmployeeID: f.employee.ID, Start: date(2025, time.May, 1), End: date(2025, time.May, 31)})
	require.NoError(t, err)

	line, err := f.svc.AddLine(ctx, p.ID, f.normal.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "168", line.WorkingHours.String(), "21 workdays x 8h")

	extra, err := f.svc.AddLine(ctx, p.ID, f.extra.ID, nil)
	require.NoError(t, err, "a second line without hours must not collide with the first")
	assert.True(t, extra.WorkingHours.IsZero())

	lines, err := f.svc.Store.ListLines(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestService_SetLineHours_SecondLineRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _ := f.maySlip(t)
	extra, err := f.svc.AddLine(ctx, p.ID, f.extra.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.SetLineHours(ctx, extra.ID, dec("12"))
	assert.True(t, generic.IsConflict(err))

	got, err := f.svc.Line(ctx, extra.ID)
	require.NoError(t, err)
	assert.True(t, got.WorkingHours.IsZero())
}

func TestService_AttachShifts_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, line := f.maySlip(t)

	draft, err := f.svc.Shifts.Create(ctx, workshift.Shift{EmployeeID: f.employee.ID, Start: mayAt(6, 9, 0)})
	require.NoError(t, err)
	err = f.svc.AttachShifts(ctx, line.ID, draft.ID)
	assert.ErrorIs(t, err, generic.ErrValidation, "only done shifts")

	done := f.doneShift(t, mayAt(7, 9, 0), 8)
	// second payslip line elsewhere
	p2, err := f.svc.CreatePayslip(ctx, payroll.Payslip{EmployeeID: f.employee.ID, Start: date(2025, time.June, 1), End: date(2025, time.June, 30)})
	require.NoError(t, err)
	line2, err := f.svc.AddLine(ctx, p2.ID, f.normal.ID, decPtr("160"))
	require.NoError(t, err)

	require.NoError(t, f.svc.AttachShifts(ctx, line.ID, done.ID))
	err = f.svc.AttachShifts(ctx, line2.ID, done.ID)
	assert.ErrorIs(t, err, generic.ErrConflict)

	_, err = f.svc.Shifts.Cancel(ctx, done.ID)
	assert.Error(t, err)
}

func TestService_AttachShifts_RollsBackOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, line := f.maySlip(t)

	done := f.doneShift(t, mayAt(7, 9, 0), 8)
	err := f.svc.AttachShifts(ctx, line.ID, done.ID, "missing")
	require.True(t, generic.IsNotFound(err))

	s, err := f.svc.Shifts.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.False(t, s.Attached(), "first shift must not stay attached")
}

func TestService_GenerateEntitlement_DateInsidePayslip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	period, err := f.svc.Leaves.CreatePeriod(ctx, leave.Period{Name: "2025", Start: date(2025, time.January, 1), End: date(2025, time.December, 31)})
	require.NoError(t, err)
	typ, err := f.svc.Leaves.CreateType(ctx, leave.Type{Name: "Holidays"})
	require.NoError(t, err)
	_, line := f.maySlip(t)

	_, err = f.svc.GenerateEntitlement(ctx, line.ID, leave.Entitlement{PeriodID: period.ID, TypeID: typ.ID, Date: date(2025, time.June, 1), Hours: dec("4")})
	assert.ErrorIs(t, err, generic.ErrValidation)

	e, err := f.svc.GenerateEntitlement(ctx, line.ID, leave.Entitlement{PeriodID: period.ID, TypeID: typ.ID, Hours: dec("4")})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.May, 31), e.Date, "defaults to the payslip end")
	assert.Equal(t, f.employee.ID, e.EmployeeID)
	assert.Equal(t, line.ID, e.PayslipLineID)
}

func TestService_RemoveEntitlement(t *testing.T) {
	// GIVEN: A yearly grant and an entitlement generated by a payslip line
	// WHEN: Removing both
	// THEN: Both records are gone and the line no longer counts the hours

	f := newFixture(t)
	ctx := context.Background()
	period, err := f.svc.Leaves.CreatePeriod(ctx, leave.Period{Name: "2025", Start: date(2025, time.January, 1), End: date(2025, time.December, 31)})
	require.NoError(t, err)
	typ, err := f.svc.Leaves.CreateType(ctx, leave.Type{Name: "Holidays"})
	require.NoError(t, err)

	grant, err := f.svc.Leaves.CreateEntitlement(ctx, leave.Entitlement{
		EmployeeID: f.employee.ID, PeriodID: period.ID, TypeID: typ.ID, Hours: dec("184"),
	})
	require.NoError(t, err)
	p, line := f.maySlip(t)
	generated, err := f.svc.GenerateEntitlement(ctx, line.ID, leave.Entitlement{PeriodID: period.ID, TypeID: typ.ID, Hours: dec("4")})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveEntitlement(ctx, grant.ID))
	require.NoError(t, f.svc.RemoveEntitlement(ctx, generated.ID))

	list, err := f.svc.Store.ListEntitlements(ctx, leave.Filter{EmployeeID: f.employee.ID})
	require.NoError(t, err)
	assert.Empty(t, list)

	v, err := f.svc.PayslipView(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, v.Totals.GeneratedEntitledHours.IsZero())

	assert.True(t, generic.IsNotFound(f.svc.RemoveEntitlement(ctx, grant.ID)))
}

func TestService_CopyAndDeletePayslip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, line := f.maySlip(t)
	s := f.doneShift(t, mayAt(6, 9, 0), 8)
	require.NoError(t, f.svc.AttachShifts(ctx, line.ID, s.ID))

	dup, err := f.svc.CopyPayslip(ctx, p.ID)
	require.NoError(t, err)
	dv, err := f.svc.PayslipView(ctx, dup.ID)
	require.NoError(t, err)
	require.Len(t, dv.Lines, 1)
	assert.Equal(t, "160", dv.Lines[0].WorkingHours.String())
	assert.Empty(t, dv.Lines[0].Shifts, "shifts stay on the original")

	require.NoError(t, f.svc.DeletePayslip(ctx, p.ID))
	_, err = f.svc.Payslip(ctx, p.ID)
	assert.True(t, generic.IsNotFound(err))

	got, err := f.svc.Shifts.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.Attached(), "deleting a payslip detaches its shifts")
	assert.Equal(t, workshift.StateDone, got.State)
}

func TestService_ShiftCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.doneShift(t, mayAt(6, 9, 0), 3)
	cs, err := f.svc.ShiftCost(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "8", cs.CostHours.String(), "contract shift hours win over the rule's")
	assert.Equal(t, "300", cs.Cost.String())
	assert.Equal(t, f.contract.ID, cs.ContractID)

	rule, err := f.svc.MatchingRule(ctx, f.contract.ID, s.ID)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, cs.RuleID, rule.ID)

	// outside the contract: no cost, own hours
	outside := f.doneShift(t, time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC), 3)
	cs, err = f.svc.ShiftCost(ctx, outside.ID)
	require.NoError(t, err)
	assert.Equal(t, "3", cs.CostHours.String())
	assert.True(t, cs.Cost.IsZero())
	assert.Empty(t, cs.ContractID)
}

// =============================================================================
// MONTHLY GENERATION
// =============================================================================

func TestService_GenerateMonth_Idempotent(t *testing.T) {
	// GIVEN: One employee with a contract and two done shifts in May
	// WHEN: Generating May twice
	// THEN: One payslip with both shifts; the second run creates nothing

	f := newFixture(t)
	ctx := context.Background()
	f.doneShift(t, mayAt(6, 9, 0), 8)
	f.doneShift(t, mayAt(20, 9, 0), 3)
	_, err := f.svc.CreateEmployee(ctx, generic.Employee{Name: "No contract"})
	require.NoError(t, err)

	res, err := f.svc.GenerateMonth(ctx, date(2025, time.May, 17), f.normal.ID)
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Len(t, res.Skipped, 1)
	assert.Equal(t, date(2025, time.May, 1), res.Month.Start)

	v, err := f.svc.PayslipView(ctx, res.Created[0])
	require.NoError(t, err)
	require.Len(t, v.Lines, 1)
	assert.Equal(t, "176", v.Lines[0].WorkingHours.String())
	assert.Len(t, v.Lines[0].Shifts, 2)
	assert.Equal(t, "16", v.Totals.WorkedHours.String())

	res, err = f.svc.GenerateMonth(ctx, date(2025, time.May, 1), f.normal.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Len(t, res.Skipped, 2)
}

func TestService_GenerateMonth_Concurrent(t *testing.T) {
	// GIVEN: One employee with a contract
	// WHEN: Several runs generate May at the same time
	// THEN: Exactly one May payslip exists

	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.GenerateMonth(ctx, date(2025, time.May, 1), f.normal.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	payslips, err := f.svc.ListPayslips(ctx, payroll.PayslipFilter{EmployeeID: f.employee.ID})
	require.NoError(t, err)
	assert.Len(t, payslips, 1)
}

func TestService_GenerateMonth_UnknownLineType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GenerateMonth(context.Background(), date(2025, time.May, 1), "missing")
	assert.True(t, generic.IsNotFound(err))
}
