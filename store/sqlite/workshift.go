package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/warp/payroll-engine/workshift"
)

// =============================================================================
// WORKING SHIFTS
// =============================================================================

func (s *Store) SaveShift(ctx context.Context, sh workshift.Shift) error {
	defer s.lock()()

	var end sql.NullString
	if sh.End != nil {
		end = nullString(formatTime(*sh.End))
	}

	query := `
		INSERT INTO working_shifts (id, code, employee_id, start_date, end_date, state, payslip_line_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			employee_id = excluded.employee_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			state = excluded.state,
			payslip_line_id = excluded.payslip_line_id
	`
	_, err := s.q.ExecContext(ctx, query,
		sh.ID, sh.Code, sh.EmployeeID, formatTime(sh.Start), end, sh.State, nullString(sh.PayslipLineID),
	)
	return err
}

const shiftColumns = "id, code, employee_id, start_date, end_date, state, payslip_line_id"

func scanShift(row interface{ Scan(...any) error }) (workshift.Shift, error) {
	var sh workshift.Shift
	var start string
	var end, line sql.NullString
	if err := row.Scan(&sh.ID, &sh.Code, &sh.EmployeeID, &start, &end, &sh.State, &line); err != nil {
		return sh, err
	}
	sh.Start = parseTime(start)
	if end.Valid {
		t := parseTime(end.String)
		sh.End = &t
	}
	sh.PayslipLineID = line.String
	return sh, nil
}

func (s *Store) GetShift(ctx context.Context, id string) (*workshift.Shift, error) {
	defer s.rlock()()

	sh, err := scanShift(s.q.QueryRowContext(ctx, "SELECT "+shiftColumns+" FROM working_shifts WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// ListShifts returns shifts matching the filter ordered by start.
// The day range is checked in Go since a shift's day depends on its zone.
func (s *Store) ListShifts(ctx context.Context, f workshift.Filter) ([]workshift.Shift, error) {
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
	w.in("payslip_line_id", f.PayslipLineIDs)
	if f.Unattached {
		w.add("payslip_line_id IS NULL")
	}
	if f.From != nil {
		// one day of slack for shifts starting before midnight UTC
		w.add("start_date >= ?", formatTime(f.From.Time.Add(-24*time.Hour)))
	}

	rows, err := s.q.QueryContext(ctx, "SELECT "+shiftColumns+" FROM working_shifts"+w.String()+" ORDER BY start_date, rowid", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workshift.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		if f.Match(sh) {
			out = append(out, sh)
		}
	}
	return out, rows.Err()
}

func (s *Store) DeleteShift(ctx context.Context, id string) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, "DELETE FROM working_shifts WHERE id = ?", id)
	return err
}

// NextSequence returns the next value of a named counter, starting at 1.
func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	defer s.lock()()

	var value int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value
	`, name).Scan(&value)
	return value, err
}
