package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/workshift"
)

// =============================================================================
// SERVICE - Contracts, rulesets and payslips over a Store
// =============================================================================

type Service struct {
	Store  Store
	Leaves *leave.Service
	Shifts *workshift.Service
	Log    zerolog.Logger
	Now    func() time.Time
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{
		Store:  store,
		Leaves: leave.NewService(store, log),
		Shifts: workshift.NewService(store, log),
		Log:    log.With().Str("component", "payroll").Logger(),
		Now:    time.Now,
	}
}

func (s *Service) today() generic.TimePoint {
	if s.Now == nil {
		return generic.Today()
	}
	return generic.DateOf(s.Now())
}

// bind returns a copy of the service whose stores are st.
func (s *Service) bind(st Store) *Service {
	c := *s
	c.Store = st
	c.Leaves = &leave.Service{Store: st, Log: s.Leaves.Log, Now: s.Leaves.Now}
	c.Shifts = &workshift.Service{Store: st, Log: s.Shifts.Log}
	return &c
}

// tx runs fn inside a store transaction.
func (s *Service) tx(ctx context.Context, fn func(*Service) error) error {
	return s.Store.WithTx(ctx, func(st Store) error {
		return fn(s.bind(st))
	})
}

// =============================================================================
// EMPLOYEES & HOLIDAYS
// =============================================================================

func (s *Service) CreateEmployee(ctx context.Context, e generic.Employee) (*generic.Employee, error) {
	if e.Name == "" {
		return nil, generic.Invalid("name", "is required")
	}
	if e.CurrencyDigits < 0 {
		return nil, generic.Invalid("currency_digits", "must be positive or zero")
	}
	if e.ID == "" {
		e.ID = generic.EmployeeID(uuid.NewString())
	}
	if err := s.Store.SaveEmployee(ctx, e); err != nil {
		return nil, fmt.Errorf("save employee: %w", err)
	}
	return &e, nil
}

// Employee loads an employee or returns a NotFoundError.
func (s *Service) Employee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	e, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, generic.NotFound("employee", string(id))
	}
	return e, nil
}

func (s *Service) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	return s.Store.ListEmployees(ctx)
}

func (s *Service) AddHoliday(ctx context.Context, h generic.Holiday) (*generic.Holiday, error) {
	if h.Date.IsZero() {
		return nil, generic.Invalid("date", "is required")
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if err := s.Store.SaveHoliday(ctx, h); err != nil {
		return nil, fmt.Errorf("save holiday: %w", err)
	}
	return &h, nil
}

// Calendar returns the stored holidays as a calendar.
func (s *Service) Calendar(ctx context.Context) (generic.StaticCalendar, error) {
	hs, err := s.Store.ListHolidays(ctx)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return generic.StaticCalendar(hs), nil
}

// DefaultWorkingHours returns 8 hours per workday of p.
func (s *Service) DefaultWorkingHours(ctx context.Context, p generic.Period) (decimal.Decimal, error) {
	cal, err := s.Calendar(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return DefaultWorkingHours(p, cal), nil
}

// =============================================================================
// LINE TYPES & RULESETS
// =============================================================================

func (s *Service) CreateLineType(ctx context.Context, t LineType) (*LineType, error) {
	if t.Name == "" {
		return nil, generic.Invalid("name", "is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := s.Store.SaveLineType(ctx, t); err != nil {
		return nil, fmt.Errorf("save line type: %w", err)
	}
	return &t, nil
}

// LineType loads a line type or returns a NotFoundError.
func (s *Service) LineType(ctx context.Context, id string) (*LineType, error) {
	t, err := s.Store.GetLineType(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, generic.NotFound("line type", id)
	}
	return t, nil
}

func (s *Service) ListLineTypes(ctx context.Context) ([]LineType, error) {
	return s.Store.ListLineTypes(ctx)
}

// SaveRuleSet validates and stores a ruleset, replacing any previous version.
func (s *Service) SaveRuleSet(ctx context.Context, rs RuleSet) (*RuleSet, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	for _, r := range rs.Rules {
		if _, err := s.LineType(ctx, r.HourTypeID); err != nil {
			return nil, err
		}
	}
	if rs.ID == "" {
		rs.ID = uuid.NewString()
	}
	for i := range rs.Rules {
		if rs.Rules[i].ID == "" {
			rs.Rules[i].ID = uuid.NewString()
		}
	}
	if err := s.Store.SaveRuleSet(ctx, rs); err != nil {
		return nil, fmt.Errorf("save ruleset: %w", err)
	}
	s.Log.Info().Str("ruleset", rs.ID).Str("name", rs.Name).Int("rules", len(rs.Rules)).Msg("ruleset saved")
	return &rs, nil
}

// RuleSet loads a ruleset or returns a NotFoundError.
func (s *Service) RuleSet(ctx context.Context, id string) (*RuleSet, error) {
	rs, err := s.Store.GetRuleSet(ctx, id)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, generic.NotFound("ruleset", id)
	}
	return rs, nil
}

func (s *Service) ListRuleSets(ctx context.Context) ([]RuleSet, error) {
	return s.Store.ListRuleSets(ctx)
}

// =============================================================================
// CONTRACTS
// =============================================================================

func (s *Service) checkContractRefs(ctx context.Context, c Contract) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, err := s.Employee(ctx, c.EmployeeID); err != nil {
		return err
	}
	if c.RuleSetID != "" {
		if _, err := s.RuleSet(ctx, c.RuleSetID); err != nil {
			return err
		}
	}
	return nil
}

// CreateContract stores a new draft contract.
func (s *Service) CreateContract(ctx context.Context, c Contract) (*Contract, error) {
	if err := s.checkContractRefs(ctx, c); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.State = ContractDraft
	if err := s.Store.SaveContract(ctx, c); err != nil {
		return nil, fmt.Errorf("save contract: %w", err)
	}
	s.Log.Info().Str("contract", c.ID).Str("employee", string(c.EmployeeID)).Msg("contract created")
	return &c, nil
}

// UpdateContract replaces the fields of a draft contract.
func (s *Service) UpdateContract(ctx context.Context, c Contract) (*Contract, error) {
	existing, err := s.Contract(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if existing.State != ContractDraft {
		return nil, fmt.Errorf("contract %s is %s, only drafts can be edited: %w", c.ID, existing.State, generic.ErrInvalidState)
	}
	c.State = ContractDraft
	if err := s.checkContractRefs(ctx, c); err != nil {
		return nil, err
	}
	if err := s.Store.SaveContract(ctx, c); err != nil {
		return nil, fmt.Errorf("save contract: %w", err)
	}
	return &c, nil
}

// Contract loads a contract or returns a NotFoundError.
func (s *Service) Contract(ctx context.Context, id string) (*Contract, error) {
	c, err := s.Store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, generic.NotFound("contract", id)
	}
	return c, nil
}

func (s *Service) ListContracts(ctx context.Context, f ContractFilter) ([]Contract, error) {
	return s.Store.ListContracts(ctx, f)
}

// ContractName renders a contract as "<employee name> (<start>)".
func (s *Service) ContractName(ctx context.Context, c Contract) string {
	e, err := s.Store.GetEmployee(ctx, c.EmployeeID)
	if err != nil {
		s.Log.Warn().Err(err).Str("contract", c.ID).Msg("contract name without employee")
	}
	return RecName(c, e)
}

// SearchContracts returns contracts whose employee name or start matches query.
func (s *Service) SearchContracts(ctx context.Context, query string) ([]Contract, error) {
	contracts, err := s.Store.ListContracts(ctx, ContractFilter{})
	if err != nil {
		return nil, err
	}
	employees, err := s.employeeIndex(ctx)
	if err != nil {
		return nil, err
	}
	var out []Contract
	for _, c := range contracts {
		if MatchesName(c, employees[c.EmployeeID], query) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) employeeIndex(ctx context.Context) (map[generic.EmployeeID]*generic.Employee, error) {
	list, err := s.Store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[generic.EmployeeID]*generic.Employee, len(list))
	for i := range list {
		idx[list[i].ID] = &list[i]
	}
	return idx, nil
}

// ConfirmContract confirms a draft contract unless it overlaps another
// confirmed contract of the same employee.
func (s *Service) ConfirmContract(ctx context.Context, id string) (*Contract, error) {
	var out *Contract
	err := s.tx(ctx, func(s *Service) error {
		c, err := s.contractTransition(ctx, id, ContractConfirmed)
		if err != nil {
			return err
		}
		others, err := s.Store.ListContracts(ctx, ContractFilter{
			EmployeeID: c.EmployeeID,
			States:     []ContractState{ContractConfirmed},
		})
		if err != nil {
			return err
		}
		if o, found := FindOverlap(*c, others); found {
			return &OverlapError{Contract: s.ContractName(ctx, *c), Existing: s.ContractName(ctx, *o)}
		}
		c.State = ContractConfirmed
		if err := s.Store.SaveContract(ctx, *c); err != nil {
			return fmt.Errorf("save contract: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info().Str("contract", id).Msg("contract confirmed")
	return out, nil
}

// DraftContract moves a confirmed or cancelled contract back to draft.
func (s *Service) DraftContract(ctx context.Context, id string) (*Contract, error) {
	return s.setContractState(ctx, id, ContractDraft)
}

func (s *Service) CancelContract(ctx context.Context, id string) (*Contract, error) {
	return s.setContractState(ctx, id, ContractCancelled)
}

func (s *Service) setContractState(ctx context.Context, id string, to ContractState) (*Contract, error) {
	c, err := s.contractTransition(ctx, id, to)
	if err != nil {
		return nil, err
	}
	c.State = to
	if err := s.Store.SaveContract(ctx, *c); err != nil {
		return nil, fmt.Errorf("save contract: %w", err)
	}
	s.Log.Info().Str("contract", id).Str("state", string(to)).Msg("contract state changed")
	return c, nil
}

func (s *Service) contractTransition(ctx context.Context, id string, to ContractState) (*Contract, error) {
	c, err := s.Contract(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransitionContract(c.State, to) {
		return nil, &generic.TransitionError{Kind: "contract", ID: id, From: string(c.State), To: string(to)}
	}
	return c, nil
}

// CopyContract stores a draft duplicate of a contract.
func (s *Service) CopyContract(ctx context.Context, id string) (*Contract, error) {
	c, err := s.Contract(ctx, id)
	if err != nil {
		return nil, err
	}
	dup := c.Copy()
	dup.ID = uuid.NewString()
	if err := s.Store.SaveContract(ctx, dup); err != nil {
		return nil, fmt.Errorf("save contract: %w", err)
	}
	return &dup, nil
}

// CurrentContract returns the employee's confirmed contract covering date,
// or nil when there is none. A zero date means today.
func (s *Service) CurrentContract(ctx context.Context, employeeID generic.EmployeeID, date generic.TimePoint) (*Contract, error) {
	if date.IsZero() {
		date = s.today()
	}
	contracts, err := s.Store.ListContracts(ctx, ContractFilter{
		EmployeeID: employeeID,
		States:     []ContractState{ContractConfirmed},
	})
	if err != nil {
		return nil, err
	}
	c, _ := CurrentContract(contracts, date)
	return c, nil
}

// MatchingRule returns the rule of the contract's ruleset that prices the
// shift, or nil when no rule matches.
func (s *Service) MatchingRule(ctx context.Context, contractID, shiftID string) (*Rule, error) {
	c, err := s.Contract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	shift, err := s.Shifts.Get(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if c.RuleSetID == "" {
		return nil, nil
	}
	rs, err := s.RuleSet(ctx, c.RuleSetID)
	if err != nil {
		return nil, err
	}
	rule, _ := rs.MatchingRule(shift.Hours())
	return rule, nil
}

// =============================================================================
// COSTING
// =============================================================================

// coster prices shifts, caching the records shared by shifts of a payslip.
type coster struct {
	store     Store
	employees map[generic.EmployeeID]*generic.Employee
	contracts map[generic.EmployeeID][]Contract
	rulesets  map[string]*RuleSet
}

func newCoster(st Store) *coster {
	return &coster{
		store:     st,
		employees: make(map[generic.EmployeeID]*generic.Employee),
		contracts: make(map[generic.EmployeeID][]Contract),
		rulesets:  make(map[string]*RuleSet),
	}
}

func (c *coster) employee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	if e, ok := c.employees[id]; ok {
		return e, nil
	}
	e, err := c.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		e = &generic.Employee{ID: id}
	}
	c.employees[id] = e
	return e, nil
}

func (c *coster) cost(ctx context.Context, sh workshift.Shift) (CostedShift, error) {
	emp, err := c.employee(ctx, sh.EmployeeID)
	if err != nil {
		return CostedShift{}, err
	}
	contracts, ok := c.contracts[sh.EmployeeID]
	if !ok {
		contracts, err = c.store.ListContracts(ctx, ContractFilter{
			EmployeeID: sh.EmployeeID,
			States:     []ContractState{ContractConfirmed},
		})
		if err != nil {
			return CostedShift{}, err
		}
		c.contracts[sh.EmployeeID] = contracts
	}
	contract, _ := CurrentContract(contracts, sh.Date())
	var rs *RuleSet
	if contract != nil && contract.RuleSetID != "" {
		rs, ok = c.rulesets[contract.RuleSetID]
		if !ok {
			rs, err = c.store.GetRuleSet(ctx, contract.RuleSetID)
			if err != nil {
				return CostedShift{}, err
			}
			c.rulesets[contract.RuleSetID] = rs
		}
	}
	return CostShift(sh, contract, rs, emp.Digits()), nil
}

// ShiftCost prices a working shift under the confirmed contract covering its date.
func (s *Service) ShiftCost(ctx context.Context, shiftID string) (*CostedShift, error) {
	shift, err := s.Shifts.Get(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	cs, err := newCoster(s.Store).cost(ctx, *shift)
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// =============================================================================
// PAYSLIPS
// =============================================================================

// CreatePayslip stores a payslip. Without a contract, the employee's current
// contract at the payslip start is used.
func (s *Service) CreatePayslip(ctx context.Context, p Payslip) (*Payslip, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.Employee(ctx, p.EmployeeID); err != nil {
		return nil, err
	}
	var contract *Contract
	var err error
	if p.ContractID == "" {
		contract, err = s.CurrentContract(ctx, p.EmployeeID, p.Start)
	} else {
		contract, err = s.Contract(ctx, p.ContractID)
	}
	if err != nil {
		return nil, err
	}
	if err := p.CheckContract(contract); err != nil {
		return nil, err
	}
	p.ContractID = contract.ID
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.Store.SavePayslip(ctx, p); err != nil {
		return nil, fmt.Errorf("save payslip: %w", err)
	}
	s.Log.Info().Str("payslip", p.ID).Str("employee", string(p.EmployeeID)).
		Str("range", p.Range().String()).Msg("payslip created")
	return &p, nil
}

// Payslip loads a payslip or returns a NotFoundError.
func (s *Service) Payslip(ctx context.Context, id string) (*Payslip, error) {
	p, err := s.Store.GetPayslip(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, generic.NotFound("payslip", id)
	}
	return p, nil
}

func (s *Service) ListPayslips(ctx context.Context, f PayslipFilter) ([]Payslip, error) {
	return s.Store.ListPayslips(ctx, f)
}

// PayslipView loads a payslip with its lines, attached records and figures.
func (s *Service) PayslipView(ctx context.Context, id string) (*PayslipView, error) {
	p, err := s.Payslip(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, *p, newCoster(s.Store))
}

func (s *Service) view(ctx context.Context, p Payslip, cc *coster) (*PayslipView, error) {
	emp, err := s.Employee(ctx, p.EmployeeID)
	if err != nil {
		return nil, err
	}
	contract, err := s.Contract(ctx, p.ContractID)
	if err != nil {
		return nil, err
	}
	lines, err := s.Store.ListLines(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	views := make([]LineView, len(lines))
	byID := make(map[string]*LineView, len(lines))
	ids := make([]string, len(lines))
	for i, l := range lines {
		views[i] = LineView{Line: l}
		byID[l.ID] = &views[i]
		ids[i] = l.ID
	}

	if len(ids) > 0 {
		shifts, err := s.Store.ListShifts(ctx, workshift.Filter{PayslipLineIDs: ids})
		if err != nil {
			return nil, fmt.Errorf("list shifts: %w", err)
		}
		for _, sh := range shifts {
			cs, err := cc.cost(ctx, sh)
			if err != nil {
				return nil, err
			}
			lv := byID[sh.PayslipLineID]
			lv.Shifts = append(lv.Shifts, cs)
		}
		ents, err := s.Store.ListEntitlements(ctx, leave.Filter{PayslipLineIDs: ids})
		if err != nil {
			return nil, fmt.Errorf("list entitlements: %w", err)
		}
		for _, e := range ents {
			lv := byID[e.PayslipLineID]
			lv.Entitlements = append(lv.Entitlements, e)
		}
		pays, err := s.Store.ListPayments(ctx, leave.Filter{PayslipLineIDs: ids})
		if err != nil {
			return nil, fmt.Errorf("list leave payments: %w", err)
		}
		for _, pm := range pays {
			lv := byID[pm.PayslipLineID]
			lv.Payments = append(lv.Payments, pm)
		}
	}

	leaveHours, err := s.Leaves.LeaveHours(ctx, p.EmployeeID, p.Range(), "")
	if err != nil {
		return nil, err
	}
	v := BuildView(p, *emp, *contract, views, leaveHours)
	return &v, nil
}

// ListPayslipViews returns the views of every payslip matching f.
func (s *Service) ListPayslipViews(ctx context.Context, f PayslipFilter) ([]PayslipView, error) {
	payslips, err := s.Store.ListPayslips(ctx, f)
	if err != nil {
		return nil, err
	}
	cc := newCoster(s.Store)
	out := make([]PayslipView, 0, len(payslips))
	for _, p := range payslips {
		v, err := s.view(ctx, p, cc)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// AddLine adds a line to a payslip. A nil workingHours fills in the default
// working hours of the payslip range, or zero when another line of the
// payslip already carries hours.
func (s *Service) AddLine(ctx context.Context, payslipID, typeID string, workingHours *decimal.Decimal) (*Line, error) {
	var line Line
	err := s.tx(ctx, func(s *Service) error {
		p, err := s.Payslip(ctx, payslipID)
		if err != nil {
			return err
		}
		if _, err := s.LineType(ctx, typeID); err != nil {
			return err
		}
		siblings, err := s.Store.ListLines(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("list lines: %w", err)
		}

		line = Line{ID: uuid.NewString(), PayslipID: p.ID, TypeID: typeID}
		switch {
		case workingHours != nil:
			line.WorkingHours = *workingHours
		case hoursLine(siblings) != nil:
			line.WorkingHours = decimal.Zero
		default:
			line.WorkingHours, err = s.DefaultWorkingHours(ctx, p.Range())
			if err != nil {
				return err
			}
		}
		return s.saveLine(ctx, line, siblings)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// SetLineHours changes the working hours of a line.
func (s *Service) SetLineHours(ctx context.Context, lineID string, hours decimal.Decimal) (*Line, error) {
	var line *Line
	err := s.tx(ctx, func(s *Service) error {
		var err error
		if line, err = s.Line(ctx, lineID); err != nil {
			return err
		}
		siblings, err := s.Store.ListLines(ctx, line.PayslipID)
		if err != nil {
			return fmt.Errorf("list lines: %w", err)
		}
		line.WorkingHours = hours
		return s.saveLine(ctx, *line, siblings)
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// saveLine stores line after checking it against the other lines of its
// payslip. Callers run it inside a transaction.
func (s *Service) saveLine(ctx context.Context, line Line, siblings []Line) error {
	if line.WorkingHours.IsNegative() {
		return generic.Invalid("working_hours", "must be positive or zero")
	}
	if err := CheckUniqueHours(line, siblings); err != nil {
		return err
	}
	if err := s.Store.SaveLine(ctx, line); err != nil {
		return fmt.Errorf("save line: %w", err)
	}
	return nil
}

// hoursLine returns the first line carrying working hours, if any.
func hoursLine(lines []Line) *Line {
	for i := range lines {
		if lines[i].HasWorkingHours() {
			return &lines[i]
		}
	}
	return nil
}

// Line loads a payslip line or returns a NotFoundError.
func (s *Service) Line(ctx context.Context, id string) (*Line, error) {
	l, err := s.Store.GetLine(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, generic.NotFound("payslip line", id)
	}
	return l, nil
}

// RemoveLine deletes a line and detaches what was attached to it.
func (s *Service) RemoveLine(ctx context.Context, lineID string) error {
	if _, err := s.Line(ctx, lineID); err != nil {
		return err
	}
	return s.Store.DeleteLine(ctx, lineID)
}

func (s *Service) lineWithPayslip(ctx context.Context, lineID string) (*Line, *Payslip, error) {
	line, err := s.Line(ctx, lineID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.Payslip(ctx, line.PayslipID)
	if err != nil {
		return nil, nil, err
	}
	return line, p, nil
}

// AttachShifts links done shifts of the payslip's employee to a line.
func (s *Service) AttachShifts(ctx context.Context, lineID string, shiftIDs ...string) error {
	return s.tx(ctx, func(s *Service) error {
		line, p, err := s.lineWithPayslip(ctx, lineID)
		if err != nil {
			return err
		}
		for _, id := range shiftIDs {
			sh, err := s.Shifts.Get(ctx, id)
			if err != nil {
				return err
			}
			if sh.EmployeeID != p.EmployeeID {
				return generic.Invalid("working_shifts", "shift %s belongs to another employee", sh.Code)
			}
			if sh.State != workshift.StateDone {
				return generic.Invalid("working_shifts", "shift %s is %s, not done", sh.Code, sh.State)
			}
			if sh.Attached() && sh.PayslipLineID != line.ID {
				return fmt.Errorf("shift %s is already on another payslip line: %w", sh.Code, generic.ErrConflict)
			}
			sh.PayslipLineID = line.ID
			if err := s.Store.SaveShift(ctx, *sh); err != nil {
				return fmt.Errorf("save shift: %w", err)
			}
		}
		return nil
	})
}

// DetachShift unlinks a shift from its payslip line.
func (s *Service) DetachShift(ctx context.Context, shiftID string) error {
	sh, err := s.Shifts.Get(ctx, shiftID)
	if err != nil {
		return err
	}
	sh.PayslipLineID = ""
	return s.Store.SaveShift(ctx, *sh)
}

// GenerateEntitlement creates an entitlement owned by a payslip line. A zero
// date defaults to the payslip end.
func (s *Service) GenerateEntitlement(ctx context.Context, lineID string, e leave.Entitlement) (*leave.Entitlement, error) {
	line, p, err := s.lineWithPayslip(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if e.EmployeeID == "" {
		e.EmployeeID = p.EmployeeID
	}
	if e.EmployeeID != p.EmployeeID {
		return nil, generic.Invalid("employee", "entitlement must belong to the payslip employee")
	}
	if e.Date.IsZero() {
		e.Date = p.End
	}
	if !p.Range().Contains(e.Date) {
		return nil, generic.Invalid("date", "%s is outside payslip %s", e.Date, p.Range())
	}
	if err := s.Leaves.ValidateEntitlement(ctx, e); err != nil {
		return nil, err
	}
	e.ID = uuid.NewString()
	e.PayslipLineID = line.ID
	if err := s.Store.SaveEntitlement(ctx, e); err != nil {
		return nil, fmt.Errorf("save entitlement: %w", err)
	}
	return &e, nil
}

// RemoveEntitlement deletes an entitlement: a yearly grant, or one generated
// by a payslip line, which then no longer counts on that line.
func (s *Service) RemoveEntitlement(ctx context.Context, id string) error {
	e, err := s.Store.GetEntitlement(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return generic.NotFound("entitlement", id)
	}
	return s.Store.DeleteEntitlement(ctx, id)
}

// AttachPayments links existing leave payments of the payslip's employee,
// dated inside the payslip, to a line.
func (s *Service) AttachPayments(ctx context.Context, lineID string, paymentIDs ...string) error {
	return s.tx(ctx, func(s *Service) error {
		line, p, err := s.lineWithPayslip(ctx, lineID)
		if err != nil {
			return err
		}
		for _, id := range paymentIDs {
			pm, err := s.Store.GetPayment(ctx, id)
			if err != nil {
				return err
			}
			if pm == nil {
				return generic.NotFound("leave payment", id)
			}
			if pm.EmployeeID != p.EmployeeID {
				return generic.Invalid("leave_payments", "payment %s belongs to another employee", id)
			}
			if !p.Range().Contains(pm.Date) {
				return generic.Invalid("leave_payments", "payment %s dated %s is outside payslip %s", id, pm.Date, p.Range())
			}
			if pm.PayslipLineID != "" && pm.PayslipLineID != line.ID {
				return fmt.Errorf("leave payment %s is already on another payslip line: %w", id, generic.ErrConflict)
			}
			pm.PayslipLineID = line.ID
			if err := s.Store.SavePayment(ctx, *pm); err != nil {
				return fmt.Errorf("save leave payment: %w", err)
			}
		}
		return nil
	})
}

// DetachPayment unlinks a leave payment from its payslip line.
func (s *Service) DetachPayment(ctx context.Context, paymentID string) error {
	pm, err := s.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if pm == nil {
		return generic.NotFound("leave payment", paymentID)
	}
	pm.PayslipLineID = ""
	return s.Store.SavePayment(ctx, *pm)
}

// CopyPayslip duplicates a payslip and the type and working hours of its
// lines. Shifts, entitlements and leave payments stay on the original.
func (s *Service) CopyPayslip(ctx context.Context, id string) (*Payslip, error) {
	var out *Payslip
	err := s.tx(ctx, func(s *Service) error {
		p, err := s.Payslip(ctx, id)
		if err != nil {
			return err
		}
		lines, err := s.Store.ListLines(ctx, p.ID)
		if err != nil {
			return err
		}
		dup := *p
		dup.ID = uuid.NewString()
		if err := s.Store.SavePayslip(ctx, dup); err != nil {
			return fmt.Errorf("save payslip: %w", err)
		}
		for _, l := range lines {
			l.ID = uuid.NewString()
			l.PayslipID = dup.ID
			if err := s.Store.SaveLine(ctx, l); err != nil {
				return fmt.Errorf("save line: %w", err)
			}
		}
		out = &dup
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePayslip removes a payslip; its shifts, entitlements and leave
// payments are kept but detached.
func (s *Service) DeletePayslip(ctx context.Context, id string) error {
	if _, err := s.Payslip(ctx, id); err != nil {
		return err
	}
	if err := s.Store.DeletePayslip(ctx, id); err != nil {
		return fmt.Errorf("delete payslip: %w", err)
	}
	s.Log.Info().Str("payslip", id).Msg("payslip deleted")
	return nil
}

// =============================================================================
// HOURS SUMMARY
// =============================================================================

// HoursSummary returns one row per leave period for a contract.
func (s *Service) HoursSummary(ctx context.Context, contractID string) ([]SummaryRow, error) {
	c, err := s.Contract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	periods, err := s.Store.ListPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leave periods: %w", err)
	}
	views, err := s.ListPayslipViews(ctx, PayslipFilter{ContractID: c.ID})
	if err != nil {
		return nil, err
	}
	rows := make([]SummaryRow, 0, len(periods))
	for _, p := range periods {
		leaveHours, err := s.Leaves.LeaveHours(ctx, c.EmployeeID, p.Range(), "")
		if err != nil {
			return nil, err
		}
		rows = append(rows, Summarize(c.ID, p, views, leaveHours))
	}
	return rows, nil
}
