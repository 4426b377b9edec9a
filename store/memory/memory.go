// Package memory provides an in-memory payroll.Store for tests and development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/workshift"
)

// =============================================================================
// TABLE - Rows keyed by ID, listed in insertion order
// =============================================================================

type table[T any] struct {
	rows  map[string]T
	order map[string]int
	next  int
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T), order: make(map[string]int)}
}

func (t *table[T]) put(id string, v T) {
	if _, ok := t.order[id]; !ok {
		t.next++
		t.order[id] = t.next
	}
	t.rows[id] = v
}

func (t *table[T]) get(id string) *T {
	v, ok := t.rows[id]
	if !ok {
		return nil
	}
	return &v
}

func (t *table[T]) del(id string) {
	delete(t.rows, id)
	delete(t.order, id)
}

func (t *table[T]) list(keep func(T) bool) []T {
	ids := make([]string, 0, len(t.rows))
	for id, v := range t.rows {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return t.order[ids[i]] < t.order[ids[j]] })
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = t.rows[id]
	}
	return out
}

// update rewrites every row for which f returns true.
func (t *table[T]) update(f func(*T) bool) {
	for id, v := range t.rows {
		if f(&v) {
			t.rows[id] = v
		}
	}
}

func (t *table[T]) clone() *table[T] {
	c := &table[T]{rows: make(map[string]T, len(t.rows)), order: make(map[string]int, len(t.order)), next: t.next}
	for k, v := range t.rows {
		c.rows[k] = v
	}
	for k, v := range t.order {
		c.order[k] = v
	}
	return c
}

// =============================================================================
// MEMORY STORE
// =============================================================================

type data struct {
	employees    *table[generic.Employee]
	holidays     *table[generic.Holiday]
	lineTypes    *table[payroll.LineType]
	ruleSets     *table[payroll.RuleSet]
	contracts    *table[payroll.Contract]
	payslips     *table[payroll.Payslip]
	lines        *table[payroll.Line]
	periods      *table[leave.Period]
	leaveTypes   *table[leave.Type]
	leaves       *table[leave.Leave]
	entitlements *table[leave.Entitlement]
	payments     *table[leave.Payment]
	shifts       *table[workshift.Shift]
	sequences    map[string]int64
}

func newData() *data {
	return &data{
		employees:    newTable[generic.Employee](),
		holidays:     newTable[generic.Holiday](),
		lineTypes:    newTable[payroll.LineType](),
		ruleSets:     newTable[payroll.RuleSet](),
		contracts:    newTable[payroll.Contract](),
		payslips:     newTable[payroll.Payslip](),
		lines:        newTable[payroll.Line](),
		periods:      newTable[leave.Period](),
		leaveTypes:   newTable[leave.Type](),
		leaves:       newTable[leave.Leave](),
		entitlements: newTable[leave.Entitlement](),
		payments:     newTable[leave.Payment](),
		shifts:       newTable[workshift.Shift](),
		sequences:    make(map[string]int64),
	}
}

func (d *data) snapshot() *data {
	seq := make(map[string]int64, len(d.sequences))
	for k, v := range d.sequences {
		seq[k] = v
	}
	return &data{
		employees:    d.employees.clone(),
		holidays:     d.holidays.clone(),
		lineTypes:    d.lineTypes.clone(),
		ruleSets:     d.ruleSets.clone(),
		contracts:    d.contracts.clone(),
		payslips:     d.payslips.clone(),
		lines:        d.lines.clone(),
		periods:      d.periods.clone(),
		leaveTypes:   d.leaveTypes.clone(),
		leaves:       d.leaves.clone(),
		entitlements: d.entitlements.clone(),
		payments:     d.payments.clone(),
		shifts:       d.shifts.clone(),
		sequences:    seq,
	}
}

// Store keeps every record in maps guarded by a single mutex.
// A Store handed to a WithTx callback shares the parent's lock, which the
// parent holds for the whole transaction.
type Store struct {
	mu   *sync.Mutex
	d    *data
	inTx bool
}

var _ payroll.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, d: newData()}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (s *Store) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.snapshot()
	if err := fn(&Store{mu: s.mu, d: s.d, inTx: true}); err != nil {
		*s.d = *snapshot
		return err
	}
	return nil
}

// =============================================================================
// EMPLOYEES & HOLIDAYS
// =============================================================================

func (s *Store) SaveEmployee(_ context.Context, e generic.Employee) error {
	defer s.lock()()
	s.d.employees.put(string(e.ID), e)
	return nil
}

func (s *Store) GetEmployee(_ context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	defer s.lock()()
	return s.d.employees.get(string(id)), nil
}

func (s *Store) ListEmployees(_ context.Context) ([]generic.Employee, error) {
	defer s.lock()()
	return s.d.employees.list(nil), nil
}

func (s *Store) SaveHoliday(_ context.Context, h generic.Holiday) error {
	defer s.lock()()
	s.d.holidays.put(h.ID, h)
	return nil
}

func (s *Store) ListHolidays(_ context.Context) ([]generic.Holiday, error) {
	defer s.lock()()
	return s.d.holidays.list(nil), nil
}

// =============================================================================
// LINE TYPES & RULESETS
// =============================================================================

func (s *Store) SaveLineType(_ context.Context, t payroll.LineType) error {
	defer s.lock()()
	s.d.lineTypes.put(t.ID, t)
	return nil
}

func (s *Store) GetLineType(_ context.Context, id string) (*payroll.LineType, error) {
	defer s.lock()()
	return s.d.lineTypes.get(id), nil
}

func (s *Store) ListLineTypes(_ context.Context) ([]payroll.LineType, error) {
	defer s.lock()()
	return s.d.lineTypes.list(nil), nil
}

func copyRuleSet(rs payroll.RuleSet) payroll.RuleSet {
	rs.Rules = append([]payroll.Rule(nil), rs.Rules...)
	return rs
}

func (s *Store) SaveRuleSet(_ context.Context, rs payroll.RuleSet) error {
	defer s.lock()()
	s.d.ruleSets.put(rs.ID, copyRuleSet(rs))
	return nil
}

func (s *Store) GetRuleSet(_ context.Context, id string) (*payroll.RuleSet, error) {
	defer s.lock()()
	rs := s.d.ruleSets.get(id)
	if rs == nil {
		return nil, nil
	}
	c := copyRuleSet(*rs)
	return &c, nil
}

func (s *Store) ListRuleSets(_ context.Context) ([]payroll.RuleSet, error) {
	defer s.lock()()
	out := s.d.ruleSets.list(nil)
	for i := range out {
		out[i] = copyRuleSet(out[i])
	}
	return out, nil
}

// =============================================================================
// CONTRACTS
// =============================================================================

func (s *Store) SaveContract(_ context.Context, c payroll.Contract) error {
	defer s.lock()()
	s.d.contracts.put(c.ID, c)
	return nil
}

func (s *Store) GetContract(_ context.Context, id string) (*payroll.Contract, error) {
	defer s.lock()()
	return s.d.contracts.get(id), nil
}

// ListContracts returns matching contracts ordered by start.
func (s *Store) ListContracts(_ context.Context, f payroll.ContractFilter) ([]payroll.Contract, error) {
	defer s.lock()()
	out := s.d.contracts.list(f.Match)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// =============================================================================
// PAYSLIPS & LINES
// =============================================================================

func (s *Store) SavePayslip(_ context.Context, p payroll.Payslip) error {
	defer s.lock()()
	s.d.payslips.put(p.ID, p)
	return nil
}

func (s *Store) GetPayslip(_ context.Context, id string) (*payroll.Payslip, error) {
	defer s.lock()()
	return s.d.payslips.get(id), nil
}

// ListPayslips returns matching payslips ordered by start.
func (s *Store) ListPayslips(_ context.Context, f payroll.PayslipFilter) ([]payroll.Payslip, error) {
	defer s.lock()()
	out := s.d.payslips.list(f.Match)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Store) DeletePayslip(_ context.Context, id string) error {
	defer s.lock()()
	for _, l := range s.d.lines.list(func(l payroll.Line) bool { return l.PayslipID == id }) {
		s.deleteLineLocked(l.ID)
	}
	s.d.payslips.del(id)
	return nil
}

func (s *Store) SaveLine(_ context.Context, l payroll.Line) error {
	defer s.lock()()
	s.d.lines.put(l.ID, l)
	return nil
}

func (s *Store) GetLine(_ context.Context, id string) (*payroll.Line, error) {
	defer s.lock()()
	return s.d.lines.get(id), nil
}

// ListLines returns the lines of the given payslips, or every line when no
// payslip is given.
func (s *Store) ListLines(_ context.Context, payslipIDs ...string) ([]payroll.Line, error) {
	defer s.lock()()
	return s.d.lines.list(func(l payroll.Line) bool {
		return len(payslipIDs) == 0 || contains(payslipIDs, l.PayslipID)
	}), nil
}

func (s *Store) DeleteLine(_ context.Context, id string) error {
	defer s.lock()()
	s.deleteLineLocked(id)
	return nil
}

func (s *Store) deleteLineLocked(id string) {
	s.d.shifts.update(func(sh *workshift.Shift) bool {
		if sh.PayslipLineID != id {
			return false
		}
		sh.PayslipLineID = ""
		return true
	})
	s.d.entitlements.update(func(e *leave.Entitlement) bool {
		if e.PayslipLineID != id {
			return false
		}
		e.PayslipLineID = ""
		return true
	})
	s.d.payments.update(func(p *leave.Payment) bool {
		if p.PayslipLineID != id {
			return false
		}
		p.PayslipLineID = ""
		return true
	})
	s.d.lines.del(id)
}

// =============================================================================
// LEAVE RECORDS
// =============================================================================

func (s *Store) SavePeriod(_ context.Context, p leave.Period) error {
	defer s.lock()()
	s.d.periods.put(p.ID, p)
	return nil
}

func (s *Store) GetPeriod(_ context.Context, id string) (*leave.Period, error) {
	defer s.lock()()
	return s.d.periods.get(id), nil
}

// ListPeriods returns leave periods ordered by start.
func (s *Store) ListPeriods(_ context.Context) ([]leave.Period, error) {
	defer s.lock()()
	out := s.d.periods.list(nil)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Store) SaveType(_ context.Context, t leave.Type) error {
	defer s.lock()()
	s.d.leaveTypes.put(t.ID, t)
	return nil
}

func (s *Store) GetType(_ context.Context, id string) (*leave.Type, error) {
	defer s.lock()()
	return s.d.leaveTypes.get(id), nil
}

func (s *Store) ListTypes(_ context.Context) ([]leave.Type, error) {
	defer s.lock()()
	return s.d.leaveTypes.list(nil), nil
}

func (s *Store) SaveLeave(_ context.Context, l leave.Leave) error {
	defer s.lock()()
	s.d.leaves.put(l.ID, l)
	return nil
}

func (s *Store) GetLeave(_ context.Context, id string) (*leave.Leave, error) {
	defer s.lock()()
	return s.d.leaves.get(id), nil
}

func (s *Store) ListLeaves(_ context.Context, f leave.Filter) ([]leave.Leave, error) {
	defer s.lock()()
	return s.d.leaves.list(f.MatchLeave), nil
}

func (s *Store) SaveEntitlement(_ context.Context, e leave.Entitlement) error {
	defer s.lock()()
	s.d.entitlements.put(e.ID, e)
	return nil
}

func (s *Store) GetEntitlement(_ context.Context, id string) (*leave.Entitlement, error) {
	defer s.lock()()
	return s.d.entitlements.get(id), nil
}

func (s *Store) ListEntitlements(_ context.Context, f leave.Filter) ([]leave.Entitlement, error) {
	defer s.lock()()
	return s.d.entitlements.list(f.MatchEntitlement), nil
}

func (s *Store) DeleteEntitlement(_ context.Context, id string) error {
	defer s.lock()()
	s.d.entitlements.del(id)
	return nil
}

func (s *Store) SavePayment(_ context.Context, p leave.Payment) error {
	defer s.lock()()
	s.d.payments.put(p.ID, p)
	return nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*leave.Payment, error) {
	defer s.lock()()
	return s.d.payments.get(id), nil
}

func (s *Store) ListPayments(_ context.Context, f leave.Filter) ([]leave.Payment, error) {
	defer s.lock()()
	return s.d.payments.list(f.MatchPayment), nil
}

// =============================================================================
// WORKING SHIFTS
// =============================================================================

func (s *Store) SaveShift(_ context.Context, sh workshift.Shift) error {
	defer s.lock()()
	s.d.shifts.put(sh.ID, sh)
	return nil
}

func (s *Store) GetShift(_ context.Context, id string) (*workshift.Shift, error) {
	defer s.lock()()
	return s.d.shifts.get(id), nil
}

// ListShifts returns matching shifts ordered by start.
func (s *Store) ListShifts(_ context.Context, f workshift.Filter) ([]workshift.Shift, error) {
	defer s.lock()()
	out := s.d.shifts.list(f.Match)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Store) DeleteShift(_ context.Context, id string) error {
	defer s.lock()()
	s.d.shifts.del(id)
	return nil
}

func (s *Store) NextSequence(_ context.Context, name string) (int64, error) {
	defer s.lock()()
	s.d.sequences[name]++
	return s.d.sequences[name], nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
