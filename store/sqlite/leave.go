package sqlite

import (
	"context"
	"database/sql"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

// =============================================================================
// LEAVE PERIODS & TYPES
// =============================================================================

func (s *Store) SavePeriod(ctx context.Context, p leave.Period) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO leave_periods (id, name, start_date, end_date) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, start_date = excluded.start_date, end_date = excluded.end_date
	`, p.ID, p.Name, formatDate(p.Start), formatDate(p.End))
	return err
}

func scanPeriod(row interface{ Scan(...any) error }) (leave.Period, error) {
	var p leave.Period
	var start, end string
	if err := row.Scan(&p.ID, &p.Name, &start, &end); err != nil {
		return p, err
	}
	p.Start = parseDate(start)
	p.End = parseDate(end)
	return p, nil
}

func (s *Store) GetPeriod(ctx context.Context, id string) (*leave.Period, error) {
	defer s.rlock()()

	p, err := scanPeriod(s.q.QueryRowContext(ctx, "SELECT id, name, start_date, end_date FROM leave_periods WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPeriods(ctx context.Context) ([]leave.Period, error) {
	defer s.rlock()()

	rows, err := s.q.QueryContext(ctx, "SELECT id, name, start_date, end_date FROM leave_periods ORDER BY start_date, rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SaveType(ctx context.Context, t leave.Type) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO leave_types (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, t.ID, t.Name)
	return err
}

func (s *Store) GetType(ctx context.Context, id string) (*leave.Type, error) {
	defer s.rlock()()

	var t leave.Type
	err := s.q.QueryRowContext(ctx, "SELECT id, name FROM leave_types WHERE id = ?", id).Scan(&t.ID, &t.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTypes(ctx context.Context) ([]leave.Type, error) {
	defer s.rlock()()

	rows, err := s.q.QueryContext(ctx, "SELECT id, name FROM leave_types ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Type
	for rows.Next() {
		var t leave.Type
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// LEAVES
// =============================================================================

func (s *Store) SaveLeave(ctx context.Context, l leave.Leave) error {
	defer s.lock()()

	query := `
		INSERT INTO leaves (id, employee_id, period_id, type_id, request_date, start_date, end_date, hours, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			period_id = excluded.period_id,
			type_id = excluded.type_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			hours = excluded.hours,
			state = excluded.state
	`
	_, err := s.q.ExecContext(ctx, query,
		l.ID, l.EmployeeID, l.PeriodID, l.TypeID,
		formatOptionalDate(l.RequestDate), formatDate(l.Start), formatDate(l.End),
		l.Hours.String(), l.State,
	)
	return err
}

const leaveColumns = "id, employee_id, period_id, type_id, request_date, start_date, end_date, hours, state"

func scanLeave(row interface{ Scan(...any) error }) (leave.Leave, error) {
	var l leave.Leave
	var requested sql.NullString
	var start, end, hours string
	if err := row.Scan(&l.ID, &l.EmployeeID, &l.PeriodID, &l.TypeID, &requested, &start, &end, &hours, &l.State); err != nil {
		return l, err
	}
	l.RequestDate = parseOptionalDate(requested)
	l.Start = parseDate(start)
	l.End = parseDate(end)
	l.Hours = generic.MustParseDecimal(hours)
	return l, nil
}

func (s *Store) GetLeave(ctx context.Context, id string) (*leave.Leave, error) {
	defer s.rlock()()

	l, err := scanLeave(s.q.QueryRowContext(ctx, "SELECT "+leaveColumns+" FROM leaves WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLeaves returns leaves matching the filter ordered by start date.
func (s *Store) ListLeaves(ctx context.Context, f leave.Filter) ([]leave.Leave, error) {
	defer s.rlock()()

	w := keyFilter(f)
	states := make([]string, len(f.States))
	for i, st := range f.States {
		states[i] = string(st)
	}
	w.in("state", states)
	if f.From != nil {
		w.add("end_date >= ?", formatDate(*f.From))
	}
	if f.To != nil {
		w.add("start_date <= ?", formatDate(*f.To))
	}

	rows, err := s.q.QueryContext(ctx, "SELECT "+leaveColumns+" FROM leaves"+w.String()+" ORDER BY start_date, rowid", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Leave
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// keyFilter pushes the filter fields shared by every leave table.
func keyFilter(f leave.Filter) *where {
	w := &where{}
	if f.EmployeeID != "" {
		w.add("employee_id = ?", f.EmployeeID)
	}
	if f.PeriodID != "" {
		w.add("period_id = ?", f.PeriodID)
	}
	if f.TypeID != "" {
		w.add("type_id = ?", f.TypeID)
	}
	return w
}

// datedFilter extends keyFilter for entitlements and payments.
func datedFilter(f leave.Filter) *where {
	w := keyFilter(f)
	w.in("payslip_line_id", f.PayslipLineIDs)
	if f.Unattached {
		w.add("payslip_line_id IS NULL")
	}
	if f.From != nil {
		w.add("date IS NOT NULL AND date >= ?", formatDate(*f.From))
	}
	if f.To != nil {
		w.add("date IS NOT NULL AND date <= ?", formatDate(*f.To))
	}
	return w
}

// =============================================================================
// ENTITLEMENTS & PAYMENTS
// =============================================================================

// entitlements and payments share their layout; only the table differs.
type hoursRecord struct {
	ID            string
	EmployeeID    generic.EmployeeID
	PeriodID      string
	TypeID        string
	Date          generic.TimePoint
	Hours         string
	PayslipLineID string
}

const hoursColumns = "id, employee_id, period_id, type_id, date, hours, payslip_line_id"

func (s *Store) saveHours(ctx context.Context, table string, r hoursRecord) error {
	defer s.lock()()

	query := `
		INSERT INTO ` + table + ` (` + hoursColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			period_id = excluded.period_id,
			type_id = excluded.type_id,
			date = excluded.date,
			hours = excluded.hours,
			payslip_line_id = excluded.payslip_line_id
	`
	_, err := s.q.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.PeriodID, r.TypeID,
		formatOptionalDate(r.Date), r.Hours, nullString(r.PayslipLineID),
	)
	return err
}

func scanHours(row interface{ Scan(...any) error }) (hoursRecord, error) {
	var r hoursRecord
	var date, line sql.NullString
	if err := row.Scan(&r.ID, &r.EmployeeID, &r.PeriodID, &r.TypeID, &date, &r.Hours, &line); err != nil {
		return r, err
	}
	r.Date = parseOptionalDate(date)
	r.PayslipLineID = line.String
	return r, nil
}

func (s *Store) getHours(ctx context.Context, table, id string) (*hoursRecord, error) {
	defer s.rlock()()

	r, err := scanHours(s.q.QueryRowContext(ctx, "SELECT "+hoursColumns+" FROM "+table+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) listHours(ctx context.Context, table string, f leave.Filter) ([]hoursRecord, error) {
	defer s.rlock()()

	w := datedFilter(f)
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+hoursColumns+" FROM "+table+w.String()+" ORDER BY date, rowid", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hoursRecord
	for rows.Next() {
		r, err := scanHours(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (r hoursRecord) entitlement() leave.Entitlement {
	return leave.Entitlement{
		ID: r.ID, EmployeeID: r.EmployeeID, PeriodID: r.PeriodID, TypeID: r.TypeID,
		Date: r.Date, Hours: generic.MustParseDecimal(r.Hours), PayslipLineID: r.PayslipLineID,
	}
}

func (r hoursRecord) payment() leave.Payment {
	return leave.Payment{
		ID: r.ID, EmployeeID: r.EmployeeID, PeriodID: r.PeriodID, TypeID: r.TypeID,
		Date: r.Date, Hours: generic.MustParseDecimal(r.Hours), PayslipLineID: r.PayslipLineID,
	}
}

func (s *Store) SaveEntitlement(ctx context.Context, e leave.Entitlement) error {
	return s.saveHours(ctx, "leave_entitlements", hoursRecord{
		ID: e.ID, EmployeeID: e.EmployeeID, PeriodID: e.PeriodID, TypeID: e.TypeID,
		Date: e.Date, Hours: e.Hours.String(), PayslipLineID: e.PayslipLineID,
	})
}

func (s *Store) GetEntitlement(ctx context.Context, id string) (*leave.Entitlement, error) {
	r, err := s.getHours(ctx, "leave_entitlements", id)
	if r == nil || err != nil {
		return nil, err
	}
	e := r.entitlement()
	return &e, nil
}

func (s *Store) ListEntitlements(ctx context.Context, f leave.Filter) ([]leave.Entitlement, error) {
	records, err := s.listHours(ctx, "leave_entitlements", f)
	if err != nil {
		return nil, err
	}
	out := make([]leave.Entitlement, 0, len(records))
	for _, r := range records {
		out = append(out, r.entitlement())
	}
	return out, nil
}

func (s *Store) DeleteEntitlement(ctx context.Context, id string) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, "DELETE FROM leave_entitlements WHERE id = ?", id)
	return err
}

func (s *Store) SavePayment(ctx context.Context, p leave.Payment) error {
	return s.saveHours(ctx, "leave_payments", hoursRecord{
		ID: p.ID, EmployeeID: p.EmployeeID, PeriodID: p.PeriodID, TypeID: p.TypeID,
		Date: p.Date, Hours: p.Hours.String(), PayslipLineID: p.PayslipLineID,
	})
}

func (s *Store) GetPayment(ctx context.Context, id string) (*leave.Payment, error) {
	r, err := s.getHours(ctx, "leave_payments", id)
	if r == nil || err != nil {
		return nil, err
	}
	p := r.payment()
	return &p, nil
}

func (s *Store) ListPayments(ctx context.Context, f leave.Filter) ([]leave.Payment, error) {
	records, err := s.listHours(ctx, "leave_payments", f)
	if err != nil {
		return nil, err
	}
	out := make([]leave.Payment, 0, len(records))
	for _, r := range records {
		out = append(out, r.payment())
	}
	return out, nil
}
