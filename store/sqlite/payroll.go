package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// SaveEmployee saves an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp generic.Employee) error {
	defer s.lock()()

	query := `
		INSERT INTO employees (id, name, email, hire_date, currency_digits, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			hire_date = excluded.hire_date,
			currency_digits = excluded.currency_digits
	`

	_, err := s.q.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.Email,
		formatOptionalDate(emp.HireDate),
		emp.CurrencyDigits,
		now(),
	)
	return err
}

const employeeColumns = "id, name, email, hire_date, currency_digits"

func scanEmployee(row interface{ Scan(...any) error }) (generic.Employee, error) {
	var emp generic.Employee
	var hireDate sql.NullString
	if err := row.Scan(&emp.ID, &emp.Name, &emp.Email, &hireDate, &emp.CurrencyDigits); err != nil {
		return emp, err
	}
	emp.HireDate = parseOptionalDate(hireDate)
	return emp, nil
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	defer s.rlock()()

	emp, err := scanEmployee(s.q.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	defer s.rlock()()

	rows, err := s.q.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []generic.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// SaveHoliday saves a holiday to the database.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	defer s.lock()()

	query := `
		INSERT INTO holidays (id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, name) DO UPDATE SET
			recurring = excluded.recurring
	`

	_, err := s.q.ExecContext(ctx, query,
		h.ID,
		formatDate(h.Date),
		h.Name,
		h.Recurring,
		now(),
	)
	return err
}

// ListHolidays returns every holiday ordered by date.
func (s *Store) ListHolidays(ctx context.Context) ([]generic.Holiday, error) {
	defer s.rlock()()

	rows, err := s.q.QueryContext(ctx, "SELECT id, date, name, recurring FROM holidays ORDER BY date")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		var h generic.Holiday
		var date string
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		h.Date = parseDate(date)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// LINE TYPES
// =============================================================================

func (s *Store) SaveLineType(ctx context.Context, t payroll.LineType) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO line_types (id, name, product) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, product = excluded.product
	`, t.ID, t.Name, t.Product)
	return err
}

func (s *Store) GetLineType(ctx context.Context, id string) (*payroll.LineType, error) {
	defer s.rlock()()

	var t payroll.LineType
	err := s.q.QueryRowContext(ctx, "SELECT id, name, product FROM line_types WHERE id = ?", id).
		Scan(&t.ID, &t.Name, &t.Product)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListLineTypes(ctx context.Context) ([]payroll.LineType, error) {
	defer s.rlock()()

	rows, err := s.q.QueryContext(ctx, "SELECT id, name, product FROM line_types ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.LineType
	for rows.Next() {
		var t payroll.LineType
		if err := rows.Scan(&t.ID, &t.Name, &t.Product); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// RULESETS
// =============================================================================

// SaveRuleSet replaces the ruleset and all of its rules atomically.
func (s *Store) SaveRuleSet(ctx context.Context, rs payroll.RuleSet) error {
	return s.WithTx(ctx, func(st payroll.Store) error {
		return st.(*Store).saveRuleSet(ctx, rs)
	})
}

func (s *Store) saveRuleSet(ctx context.Context, rs payroll.RuleSet) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO rulesets (id, name, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
	`, rs.ID, rs.Name, now())
	if err != nil {
		return fmt.Errorf("failed to save ruleset: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM rules WHERE ruleset_id = ?", rs.ID); err != nil {
		return fmt.Errorf("failed to clear rules: %w", err)
	}
	for i, r := range rs.Rules {
		var sequence sql.NullInt64
		if r.Sequence != nil {
			sequence = sql.NullInt64{Int64: int64(*r.Sequence), Valid: true}
		}
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO rules (id, ruleset_id, position, sequence, hours, hour_type_id, cost_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, rs.ID, i, sequence, formatDecimalPtr(r.Hours), r.HourTypeID, r.CostPrice.String())
		if err != nil {
			return fmt.Errorf("failed to save rule %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) GetRuleSet(ctx context.Context, id string) (*payroll.RuleSet, error) {
	defer s.rlock()()

	var rs payroll.RuleSet
	err := s.q.QueryRowContext(ctx, "SELECT id, name FROM rulesets WHERE id = ?", id).Scan(&rs.ID, &rs.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rs.Rules, err = s.loadRules(ctx, rs.ID)
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

func (s *Store) ListRuleSets(ctx context.Context) ([]payroll.RuleSet, error) {
	defer s.rlock()()

	rows, err := s.q.QueryContext(ctx, "SELECT id, name FROM rulesets ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	var out []payroll.RuleSet
	for rows.Next() {
		var rs payroll.RuleSet
		if err := rows.Scan(&rs.ID, &rs.Name); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, rs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Rules, err = s.loadRules(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadRules(ctx context.Context, rulesetID string) ([]payroll.Rule, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, sequence, hours, hour_type_id, cost_price
		FROM rules WHERE ruleset_id = ? ORDER BY position
	`, rulesetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []payroll.Rule
	for rows.Next() {
		var r payroll.Rule
		var sequence sql.NullInt64
		var hours sql.NullString
		var cost string
		if err := rows.Scan(&r.ID, &sequence, &hours, &r.HourTypeID, &cost); err != nil {
			return nil, err
		}
		if sequence.Valid {
			n := int(sequence.Int64)
			r.Sequence = &n
		}
		r.Hours = parseDecimalPtr(hours)
		r.CostPrice = generic.MustParseDecimal(cost)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// =============================================================================
// CONTRACTS
// =============================================================================

func (s *Store) SaveContract(ctx context.Context, c payroll.Contract) error {
	defer s.lock()()

	query := `
		INSERT INTO contracts (id, employee_id, start_date, end_date, yearly_hours, working_shift_hours,
		                       working_shift_price, ruleset_id, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			yearly_hours = excluded.yearly_hours,
			working_shift_hours = excluded.working_shift_hours,
			working_shift_price = excluded.working_shift_price,
			ruleset_id = excluded.ruleset_id,
			state = excluded.state
	`
	_, err := s.q.ExecContext(ctx, query,
		c.ID, c.EmployeeID, formatDate(c.Start), formatDatePtr(c.End),
		c.YearlyHours.String(), formatDecimalPtr(c.WorkingShiftHours), formatDecimalPtr(c.WorkingShiftPrice),
		nullString(c.RuleSetID), c.State,
	)
	return err
}

const contractColumns = `id, employee_id, start_date, end_date, yearly_hours, working_shift_hours,
	working_shift_price, ruleset_id, state`

func scanContract(row interface{ Scan(...any) error }) (payroll.Contract, error) {
	var c payroll.Contract
	var start, yearly string
	var end, wsHours, wsPrice, ruleset sql.NullString
	if err := row.Scan(&c.ID, &c.EmployeeID, &start, &end, &yearly, &wsHours, &wsPrice, &ruleset, &c.State); err != nil {
		return c, err
	}
	c.Start = parseDate(start)
	c.End = parseDatePtr(end)
	c.YearlyHours = generic.MustParseDecimal(yearly)
	c.WorkingShiftHours = parseDecimalPtr(wsHours)
	c.WorkingShiftPrice = parseDecimalPtr(wsPrice)
	c.RuleSetID = ruleset.String
	return c, nil
}

func (s *Store) GetContract(ctx context.Context, id string) (*payroll.Contract, error) {
	defer s.rlock()()

	c, err := scanContract(s.q.QueryRowContext(ctx, "SELECT "+contractColumns+" FROM contracts WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContracts returns matching contracts ordered by start.
func (s *Store) ListContracts(ctx context.Context, f payroll.ContractFilter) ([]payroll.Contract, error) {
	defer s.rlock()()

	var w where
	if f.EmployeeID != "" {
		w.add("employee_id = ?", f.EmployeeID)
	}
	states := make([]string, len(f.States))
	for i, st := range f.States {
		states[i] = string(st)
	}
	w.in("state", states)

	rows, err := s.q.QueryContext(ctx, "SELECT "+contractColumns+" FROM contracts"+w.String()+" ORDER BY start_date, rowid", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// PAYSLIPS & LINES
// =============================================================================

func (s *Store) SavePayslip(ctx context.Context, p payroll.Payslip) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO payslips (id, employee_id, contract_id, start_date, end_date) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			contract_id = excluded.contract_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`, p.ID, p.EmployeeID, p.ContractID, formatDate(p.Start), formatDate(p.End))
	return err
}

func scanPayslip(row interface{ Scan(...any) error }) (payroll.Payslip, error) {
	var p payroll.Payslip
	var start, end string
	if err := row.Scan(&p.ID, &p.EmployeeID, &p.ContractID, &start, &end); err != nil {
		return p, err
	}
	p.Start = parseDate(start)
	p.End = parseDate(end)
	return p, nil
}

func (s *Store) GetPayslip(ctx context.Context, id string) (*payroll.Payslip, error) {
	defer s.rlock()()

	p, err := scanPayslip(s.q.QueryRowContext(ctx,
		"SELECT id, employee_id, contract_id, start_date, end_date FROM payslips WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPayslips returns matching payslips ordered by start.
func (s *Store) ListPayslips(ctx context.Context, f payroll.PayslipFilter) ([]payroll.Payslip, error) {
	defer s.rlock()()

	var w where
	if f.EmployeeID != "" {
		w.add("employee_id = ?", f.EmployeeID)
	}
	if f.ContractID != "" {
		w.add("contract_id = ?", f.ContractID)
	}
	if f.From != nil {
		w.add("end_date >= ?", formatDate(*f.From))
	}
	if f.To != nil {
		w.add("start_date <= ?", formatDate(*f.To))
	}

	rows, err := s.q.QueryContext(ctx,
		"SELECT id, employee_id, contract_id, start_date, end_date FROM payslips"+w.String()+" ORDER BY start_date, rowid", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Payslip
	for rows.Next() {
		p, err := scanPayslip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePayslip removes the payslip. Lines cascade; shifts, entitlements and
// payments pointing to them are unlinked by their foreign keys.
func (s *Store) DeletePayslip(ctx context.Context, id string) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, "DELETE FROM payslips WHERE id = ?", id)
	return err
}

func (s *Store) SaveLine(ctx context.Context, l payroll.Line) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO payslip_lines (id, payslip_id, type_id, working_hours) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type_id = excluded.type_id,
			working_hours = excluded.working_hours
	`, l.ID, l.PayslipID, l.TypeID, l.WorkingHours.String())
	return err
}

func scanLine(row interface{ Scan(...any) error }) (payroll.Line, error) {
	var l payroll.Line
	var hours string
	if err := row.Scan(&l.ID, &l.PayslipID, &l.TypeID, &hours); err != nil {
		return l, err
	}
	l.WorkingHours = generic.MustParseDecimal(hours)
	return l, nil
}

func (s *Store) GetLine(ctx context.Context, id string) (*payroll.Line, error) {
	defer s.rlock()()

	l, err := scanLine(s.q.QueryRowContext(ctx,
		"SELECT id, payslip_id, type_id, working_hours FROM payslip_lines WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLines returns the lines of the given payslips in insertion order, or
// every line when no payslip is given.
func (s *Store) ListLines(ctx context.Context, payslipIDs ...string) ([]payroll.Line, error) {
	defer s.rlock()()

	var w where
	w.in("payslip_id", payslipIDs)
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, payslip_id, type_id, working_hours FROM payslip_lines"+w.String()+" ORDER BY rowid", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) DeleteLine(ctx context.Context, id string) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, "DELETE FROM payslip_lines WHERE id = ?", id)
	return err
}
