/*
sqlite_test.go - Tests for the SQLite payroll store

Tests for:
- Round trips of nullable columns (contract end, rule sequence/hours)
- Ruleset replacement
- Foreign key cascades when payslips and lines are deleted
- Transaction rollback
- The payroll service running end to end on SQLite
*/
package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
	"github.com/warp/payroll-engine/workshift"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func day(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

// seed stores an employee, a line type and a confirmed contract.
func seed(t *testing.T, store *sqlite.Store) payroll.Contract {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, generic.Employee{ID: "emp-1", Name: "Employee", CurrencyDigits: 2}))
	require.NoError(t, store.SaveLineType(ctx, payroll.LineType{ID: "normal", Name: "Normal"}))

	c := payroll.Contract{
		ID:          "c-1",
		EmployeeID:  "emp-1",
		Start:       day(2025, time.January, 1),
		YearlyHours: dec("1840"),
		State:       payroll.ContractConfirmed,
	}
	require.NoError(t, store.SaveContract(ctx, c))
	return c
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestStore_Employee(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	got, err := store.GetEmployee(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got, "unknown employees return nil without error")

	emp := generic.Employee{ID: "emp-1", Name: "Alice", Email: "alice@example.com",
		HireDate: day(2024, time.March, 1), CurrencyDigits: 2}
	require.NoError(t, store.SaveEmployee(ctx, emp))

	emp.Name = "Alice B."
	require.NoError(t, store.SaveEmployee(ctx, emp))

	got, err = store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, emp, *got)
}

func TestStore_Contract_NullableFields(t *testing.T) {
	// GIVEN: A contract without end, shift settings or ruleset
	// WHEN: Reading it back
	// THEN: The optional fields stay nil

	store := newStore(t)
	ctx := context.Background()
	c := seed(t, store)

	got, err := store.GetContract(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.End)
	assert.Nil(t, got.WorkingShiftHours)
	assert.Nil(t, got.WorkingShiftPrice)
	assert.Empty(t, got.RuleSetID)
	assert.Equal(t, "1840", got.YearlyHours.String())

	// AND: Once set they round-trip
	end := day(2025, time.December, 31)
	c.End = &end
	c.WorkingShiftHours = decPtr("7.5")
	c.WorkingShiftPrice = decPtr("360.25")
	require.NoError(t, store.SaveContract(ctx, c))

	got, err = store.GetContract(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.End)
	assert.Equal(t, end, *got.End)
	assert.Equal(t, "7.5", got.WorkingShiftHours.String())
	assert.Equal(t, "360.25", got.WorkingShiftPrice.String())

	confirmed, err := store.ListContracts(ctx, payroll.ContractFilter{
		EmployeeID: "emp-1",
		States:     []payroll.ContractState{payroll.ContractConfirmed},
	})
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)

	drafts, err := store.ListContracts(ctx, payroll.ContractFilter{States: []payroll.ContractState{payroll.ContractDraft}})
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestStore_RuleSet_ReplacesRules(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	seed(t, store)

	one := 1
	rs := payroll.RuleSet{ID: "rs-1", Name: "Employees", Rules: []payroll.Rule{
		{ID: "r-1", Sequence: &one, Hours: decPtr("4.5"), HourTypeID: "normal", CostPrice: dec("300")},
		{ID: "r-2", HourTypeID: "normal", CostPrice: dec("10")},
	}}
	require.NoError(t, store.SaveRuleSet(ctx, rs))

	got, err := store.GetRuleSet(ctx, "rs-1")
	require.NoError(t, err)
	require.Len(t, got.Rules, 2)
	assert.Equal(t, 1, *got.Rules[0].Sequence)
	assert.Equal(t, "4.5", got.Rules[0].Hours.String())
	assert.Nil(t, got.Rules[1].Sequence, "catch-all rule keeps its nil sequence")
	assert.Nil(t, got.Rules[1].Hours)

	// WHEN: Saving the ruleset with a single rule
	rs.Rules = rs.Rules[1:]
	require.NoError(t, store.SaveRuleSet(ctx, rs))

	all, err := store.ListRuleSets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Len(t, all[0].Rules, 1)
	assert.Equal(t, "r-2", all[0].Rules[0].ID)
}

func TestStore_RuleSet_UnknownHourType(t *testing.T) {
	store := newStore(t)
	err := store.SaveRuleSet(context.Background(), payroll.RuleSet{ID: "rs-1", Name: "Bad", Rules: []payroll.Rule{
		{ID: "r-1", HourTypeID: "missing", CostPrice: dec("1")},
	}})
	require.Error(t, err, "rules reference existing line types")

	got, err := store.GetRuleSet(context.Background(), "rs-1")
	require.NoError(t, err)
	assert.Nil(t, got, "the ruleset row is rolled back with its rules")
}

// =============================================================================
// CASCADES
// =============================================================================

func TestStore_DeletePayslip_UnlinksRecords(t *testing.T) {
	// GIVEN: A payslip line with a shift, an entitlement and a payment attached
	// WHEN: Deleting the payslip
	// THEN: The line is gone and the records remain, unlinked

	store := newStore(t)
	ctx := context.Background()
	c := seed(t, store)

	require.NoError(t, store.SavePeriod(ctx, leave.Period{ID: "2025", Name: "2025",
		Start: generic.StartOfYear(2025), End: generic.EndOfYear(2025)}))
	require.NoError(t, store.SaveType(ctx, leave.Type{ID: "holidays", Name: "Holidays"}))

	p := payroll.Payslip{ID: "p-1", EmployeeID: "emp-1", ContractID: c.ID,
		Start: day(2025, time.May, 1), End: day(2025, time.May, 31)}
	require.NoError(t, store.SavePayslip(ctx, p))
	require.NoError(t, store.SaveLine(ctx, payroll.Line{ID: "l-1", PayslipID: p.ID, TypeID: "normal", WorkingHours: dec("160")}))

	start := time.Date(2025, time.May, 6, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	require.NoError(t, store.SaveShift(ctx, workshift.Shift{ID: "s-1", Code: "WS-00001", EmployeeID: "emp-1",
		Start: start, End: &end, State: workshift.StateDone, PayslipLineID: "l-1"}))
	require.NoError(t, store.SaveEntitlement(ctx, leave.Entitlement{ID: "e-1", EmployeeID: "emp-1", PeriodID: "2025",
		TypeID: "holidays", Date: p.End, Hours: dec("4"), PayslipLineID: "l-1"}))
	require.NoError(t, store.SavePayment(ctx, leave.Payment{ID: "pay-1", EmployeeID: "emp-1", PeriodID: "2025",
		TypeID: "holidays", Date: p.End, Hours: dec("8"), PayslipLineID: "l-1"}))

	attached, err := store.ListShifts(ctx, workshift.Filter{PayslipLineIDs: []string{"l-1"}})
	require.NoError(t, err)
	require.Len(t, attached, 1)
	assert.True(t, attached[0].Start.Equal(start))
	assert.Equal(t, "8.00", attached[0].Hours().StringFixed(2))

	require.NoError(t, store.DeletePayslip(ctx, p.ID))

	line, err := store.GetLine(ctx, "l-1")
	require.NoError(t, err)
	assert.Nil(t, line, "lines cascade with their payslip")

	sh, err := store.GetShift(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, sh)
	assert.Empty(t, sh.PayslipLineID)

	ents, err := store.ListEntitlements(ctx, leave.Filter{EmployeeID: "emp-1", Unattached: true})
	require.NoError(t, err)
	assert.Len(t, ents, 1)

	pay, err := store.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, pay)
	assert.Empty(t, pay.PayslipLineID)
}

func TestStore_ListEntitlements_DateRange(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SavePeriod(ctx, leave.Period{ID: "2025", Name: "2025",
		Start: generic.StartOfYear(2025), End: generic.EndOfYear(2025)}))
	require.NoError(t, store.SaveType(ctx, leave.Type{ID: "holidays", Name: "Holidays"}))

	for id, d := range map[string]generic.TimePoint{
		"undated": {},
		"april":   day(2025, time.April, 30),
		"may":     day(2025, time.May, 31),
	} {
		require.NoError(t, store.SaveEntitlement(ctx, leave.Entitlement{ID: id, EmployeeID: "emp-1",
			PeriodID: "2025", TypeID: "holidays", Date: d, Hours: dec("1")}))
	}

	from, to := day(2025, time.May, 1), day(2025, time.May, 31)
	got, err := store.ListEntitlements(ctx, leave.Filter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "may", got[0].ID)

	all, err := store.ListEntitlements(ctx, leave.Filter{PeriodID: "2025"})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// TRANSACTIONS & SEQUENCES
// =============================================================================

func TestStore_WithTx_RollsBack(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx payroll.Store) error {
		if err := tx.SaveEmployee(ctx, generic.Employee{ID: "emp-1", Name: "Ghost"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = store.WithTx(ctx, func(tx payroll.Store) error {
		return tx.SaveEmployee(ctx, generic.Employee{ID: "emp-2", Name: "Kept"})
	})
	require.NoError(t, err)
	got, err = store.GetEmployee(ctx, "emp-2")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStore_NextSequence(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.NextSequence(ctx, workshift.SequenceName)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	other, err := store.NextSequence(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other, "sequences are independent")
}

// =============================================================================
// SERVICE ON SQLITE
// =============================================================================

func TestService_GenerateMonth_OnSQLite(t *testing.T) {
	// GIVEN: A contract with a ruleset and two done shifts in May
	// WHEN: Generating the May payslips
	// THEN: The payslip carries both shifts, costed through the rules

	store := newStore(t)
	ctx := context.Background()
	svc := payroll.NewService(store, zerolog.Nop())
	svc.Now = func() time.Time { return time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC) }

	emp, err := svc.CreateEmployee(ctx, generic.Employee{Name: "Employee"})
	require.NoError(t, err)
	normal, err := svc.CreateLineType(ctx, payroll.LineType{Name: "Normal"})
	require.NoError(t, err)
	one, two := 1, 2
	rs, err := svc.SaveRuleSet(ctx, payroll.RuleSet{Name: "Employees", Rules: []payroll.Rule{
		{Sequence: &one, Hours: decPtr("4.5"), HourTypeID: normal.ID, CostPrice: dec("300")},
		{Sequence: &two, Hours: decPtr("8"), HourTypeID: normal.ID, CostPrice: dec("800")},
	}})
	require.NoError(t, err)
	c, err := svc.CreateContract(ctx, payroll.Contract{
		EmployeeID:  emp.ID,
		Start:       day(2025, time.January, 1),
		YearlyHours: dec("1840"),
		RuleSetID:   rs.ID,
	})
	require.NoError(t, err)
	_, err = svc.ConfirmContract(ctx, c.ID)
	require.NoError(t, err)

	for _, sh := range []struct {
		day   int
		hours time.Duration
	}{{6, 8 * time.Hour}, {20, 3 * time.Hour}} {
		start := time.Date(2025, time.May, sh.day, 9, 0, 0, 0, time.UTC)
		end := start.Add(sh.hours)
		s, err := svc.Shifts.Create(ctx, workshift.Shift{EmployeeID: emp.ID, Start: start, End: &end})
		require.NoError(t, err)
		_, err = svc.Shifts.Confirm(ctx, s.ID)
		require.NoError(t, err)
		_, err = svc.Shifts.Done(ctx, s.ID)
		require.NoError(t, err)
	}

	res, err := svc.GenerateMonth(ctx, day(2025, time.May, 10), normal.ID)
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	v, err := svc.PayslipView(ctx, res.Created[0])
	require.NoError(t, err)
	require.Len(t, v.Lines, 1)
	assert.Equal(t, "176", v.Lines[0].WorkingHours.String())
	assert.Len(t, v.Lines[0].Shifts, 2)
	assert.Equal(t, "12.5", v.Totals.WorkedHours.String())
	assert.Equal(t, "1100", v.Totals.Amount.String())

	res, err = svc.GenerateMonth(ctx, day(2025, time.May, 10), normal.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Created, "the month is only generated once")
}
