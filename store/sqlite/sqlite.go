/*
Package sqlite provides a SQLite-backed implementation of payroll.Store.

PURPOSE:
  Persists employees, rulesets, contracts, payslips, leave records and
  working shifts. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  payroll.Store:   Contracts, rulesets, payslips and lines, holidays
  leave.Store:     Leave periods, types, leaves, entitlements, payments
  workshift.Store: Working shifts and code sequences

STORAGE FORMATS:
  - Decimals are stored as TEXT to keep their exact value
  - Dates are stored as TEXT "YYYY-MM-DD", so they sort and compare as text
  - Shift start/end are stored as RFC3339 UTC timestamps
  - Optional values (contract end, unlinked payslip line) are NULL

KEY TABLES:
  contracts, rulesets, rules:        Pay configuration
  payslips, payslip_lines:           Payslips; lines cascade with their payslip
  working_shifts, leave_entitlements,
  leave_payments:                    payslip_line_id is SET NULL when the line goes

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction; the store handed to the callback runs its statements
  on the *sql.Tx without locking again.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := payroll.NewService(store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payroll/store.go: Interface definitions
  - store/memory:     In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements payroll.Store using SQLite.
type Store struct {
	db   *sql.DB
	q    querier
	mu   *sync.RWMutex
	inTx bool
}

var _ payroll.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, q: db, mu: &sync.RWMutex{}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		hire_date TEXT,
		currency_digits INTEGER NOT NULL DEFAULT 2,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);

	-- Payslip line types (also the hour type of rules)
	CREATE TABLE IF NOT EXISTS line_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		product TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS rulesets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Rules keep their insertion order through position
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		ruleset_id TEXT NOT NULL REFERENCES rulesets(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		sequence INTEGER,
		hours TEXT,
		hour_type_id TEXT NOT NULL REFERENCES line_types(id),
		cost_price TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_ruleset
		ON rules(ruleset_id, position);

	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		start_date TEXT NOT NULL,
		end_date TEXT,
		yearly_hours TEXT NOT NULL,
		working_shift_hours TEXT,
		working_shift_price TEXT,
		ruleset_id TEXT REFERENCES rulesets(id),
		state TEXT NOT NULL DEFAULT 'draft'
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_employee
		ON contracts(employee_id, state, start_date);

	CREATE TABLE IF NOT EXISTS payslips (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payslips_employee
		ON payslips(employee_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_payslips_contract
		ON payslips(contract_id);

	CREATE TABLE IF NOT EXISTS payslip_lines (
		id TEXT PRIMARY KEY,
		payslip_id TEXT NOT NULL REFERENCES payslips(id) ON DELETE CASCADE,
		type_id TEXT NOT NULL REFERENCES line_types(id),
		working_hours TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payslip_lines_payslip
		ON payslip_lines(payslip_id);

	-- Leave
	CREATE TABLE IF NOT EXISTS leave_periods (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leaves (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		period_id TEXT NOT NULL REFERENCES leave_periods(id),
		type_id TEXT NOT NULL REFERENCES leave_types(id),
		request_date TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		hours TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_leaves_employee_dates
		ON leaves(employee_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS leave_entitlements (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		period_id TEXT NOT NULL REFERENCES leave_periods(id),
		type_id TEXT NOT NULL REFERENCES leave_types(id),
		date TEXT,
		hours TEXT NOT NULL,
		payslip_line_id TEXT REFERENCES payslip_lines(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entitlements_employee_period
		ON leave_entitlements(employee_id, period_id);
	CREATE INDEX IF NOT EXISTS idx_entitlements_line
		ON leave_entitlements(payslip_line_id) WHERE payslip_line_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS leave_payments (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		period_id TEXT NOT NULL REFERENCES leave_periods(id),
		type_id TEXT NOT NULL REFERENCES leave_types(id),
		date TEXT,
		hours TEXT NOT NULL,
		payslip_line_id TEXT REFERENCES payslip_lines(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_employee_period
		ON leave_payments(employee_id, period_id);
	CREATE INDEX IF NOT EXISTS idx_payments_line
		ON leave_payments(payslip_line_id) WHERE payslip_line_id IS NOT NULL;

	-- Working shifts
	CREATE TABLE IF NOT EXISTS working_shifts (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		state TEXT NOT NULL DEFAULT 'draft',
		payslip_line_id TEXT REFERENCES payslip_lines(id) ON DELETE SET NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_working_shifts_code
		ON working_shifts(code);
	CREATE INDEX IF NOT EXISTS idx_working_shifts_employee_start
		ON working_shifts(employee_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_working_shifts_line
		ON working_shifts(payslip_line_id) WHERE payslip_line_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS sequences (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOCKING & TRANSACTIONS
// =============================================================================

func (s *Store) rlock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &Store{db: s.db, q: sqlTx, mu: s.mu, inTx: true}
	if err := fn(txStore); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

// where collects AND-ed conditions and their arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	marks := make([]string, len(values))
	for i, v := range values {
		marks[i] = "?"
		w.args = append(w.args, v)
	}
	w.clauses = append(w.clauses, column+" IN ("+strings.Join(marks, ", ")+")")
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatDate(tp generic.TimePoint) string {
	return tp.Time.Format(generic.DateLayout)
}

func formatDatePtr(tp *generic.TimePoint) sql.NullString {
	if tp == nil {
		return sql.NullString{}
	}
	return nullString(formatDate(*tp))
}

func formatOptionalDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return nullString(formatDate(tp))
}

func parseDate(s string) generic.TimePoint {
	tp, _ := generic.ParseDate(s)
	return tp
}

func parseDatePtr(ns sql.NullString) *generic.TimePoint {
	if !ns.Valid {
		return nil
	}
	tp := parseDate(ns.String)
	return &tp
}

func parseOptionalDate(ns sql.NullString) generic.TimePoint {
	if !ns.Valid {
		return generic.TimePoint{}
	}
	return parseDate(ns.String)
}

func formatDecimalPtr(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return nullString(d.String())
}

func parseDecimalPtr(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d := generic.MustParseDecimal(ns.String)
	return &d
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t.UTC()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
