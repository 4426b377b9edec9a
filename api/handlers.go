/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the payroll, leave and working shift
  services.

ENDPOINTS:
  Setup:
    GET    /api/employees                       List employees
    POST   /api/employees                       Create employee
    GET    /api/employees/{id}                  Get employee
    GET    /api/employees/{id}/contract?date=   Contract in force at date
    GET    /api/employees/{id}/balances?period= Leave balances
    GET    /api/holidays                        List holidays
    POST   /api/holidays                        Add holiday
    GET    /api/line-types                      List payslip line types
    POST   /api/line-types                      Create line type
    GET    /api/rulesets                        List rulesets
    POST   /api/rulesets                        Create or replace (JSON or YAML)
    GET    /api/rulesets/{id}                   Get ruleset

  Contracts:  handlers_contracts.go
  Leave:      handlers_leave.go
  Shifts:     handlers_shifts.go
  Payslips:   handlers_payslips.go

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Payroll: the payroll service (owns the leave and shift services)
  - RuleSets: JSON/YAML ruleset parsing
  - Scheduler: monthly payslip generation

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Overlaps, duplicate links, workflow transitions not allowed
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Deploy behind the ERP's gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// maxBodyBytes bounds request bodies, ruleset documents included.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Payroll   *payroll.Service
	RuleSets  *factory.RuleSetFactory
	Scheduler *GenerationScheduler
	Log       zerolog.Logger
}

// NewHandler creates a handler over the payroll service.
func NewHandler(svc *payroll.Service, scheduler *GenerationScheduler, log zerolog.Logger) *Handler {
	return &Handler{
		Payroll:   svc,
		RuleSets:  factory.NewRuleSetFactory(),
		Scheduler: scheduler,
		Log:       log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Payroll.ListEmployees(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns one employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Payroll.Employee(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*e))
}

// CreateEmployee creates an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !decode(w, r, &req) {
		return
	}
	hire, err := parseOptionalDate("hire_date", req.HireDate)
	if err != nil {
		h.writeServiceError(w, "Invalid employee", err)
		return
	}

	e := generic.Employee{
		ID:             generic.EmployeeID(req.ID),
		Name:           req.Name,
		Email:          req.Email,
		CurrencyDigits: req.CurrencyDigits,
	}
	if hire != nil {
		e.HireDate = *hire
	}

	created, err := h.Payroll.CreateEmployee(r.Context(), e)
	if err != nil {
		h.writeServiceError(w, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(*created))
}

// GetCurrentContract returns the contract in force for the employee at
// ?date= (default today), or 404 when there is none.
func (h *Handler) GetCurrentContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.EmployeeID(chi.URLParam(r, "id"))

	date, err := queryDate(r, "date")
	if err != nil {
		h.writeServiceError(w, "Invalid date", err)
		return
	}
	if date == nil {
		today := generic.DateOf(h.Payroll.Now())
		date = &today
	}

	c, err := h.Payroll.CurrentContract(ctx, id, *date)
	if err != nil {
		h.writeServiceError(w, "Failed to get contract", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "No contract in force", fmt.Errorf("employee %s on %s", id, date))
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(*c, h.Payroll.ContractName(ctx, *c)))
}

// GetBalances returns the employee's leave balances for ?period=.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	periodID := r.URL.Query().Get("period")
	if periodID == "" {
		writeError(w, http.StatusBadRequest, "period is required", nil)
		return
	}

	balances, err := h.Payroll.Leaves.Balances(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")), periodID)
	if err != nil {
		h.writeServiceError(w, "Failed to compute balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = BalanceDTO{
			TypeID:    b.TypeID,
			Entitled:  b.Entitled,
			Taken:     b.Taken,
			Pending:   b.Pending,
			Paid:      b.Paid,
			Remaining: b.Remaining(),
			Available: b.Available(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns the holiday calendar.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	calendar, err := h.Payroll.Calendar(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to get holidays", err)
		return
	}

	dtos := make([]HolidayDTO, len(calendar))
	for i, hol := range calendar {
		dtos[i] = HolidayDTO{ID: hol.ID, Date: formatDate(hol.Date), Name: hol.Name, Recurring: hol.Recurring}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		h.writeServiceError(w, "Invalid holiday", err)
		return
	}

	hol, err := h.Payroll.AddHoliday(r.Context(), generic.Holiday{
		ID:        req.ID,
		Date:      date,
		Name:      req.Name,
		Recurring: req.Recurring,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, HolidayDTO{ID: hol.ID, Date: formatDate(hol.Date), Name: hol.Name, Recurring: hol.Recurring})
}

// =============================================================================
// LINE TYPE & RULESET HANDLERS
// =============================================================================

// ListLineTypes returns the payslip line types.
func (h *Handler) ListLineTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Payroll.ListLineTypes(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list line types", err)
		return
	}

	dtos := make([]LineTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = LineTypeDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLineType creates a payslip line type.
func (h *Handler) CreateLineType(w http.ResponseWriter, r *http.Request) {
	var req LineTypeDTO
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Payroll.CreateLineType(r.Context(), payroll.LineType(req))
	if err != nil {
		h.writeServiceError(w, "Failed to create line type", err)
		return
	}
	writeJSON(w, http.StatusCreated, LineTypeDTO(*t))
}

// ListRuleSets returns every ruleset with its rules.
func (h *Handler) ListRuleSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.Payroll.ListRuleSets(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list rulesets", err)
		return
	}

	dtos := make([]RuleSetDTO, len(sets))
	for i, rs := range sets {
		dtos[i] = toRuleSetDTO(rs)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRuleSet returns one ruleset.
func (h *Handler) GetRuleSet(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Payroll.RuleSet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get ruleset", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleSetDTO(*rs))
}

// SaveRuleSet creates a ruleset, or replaces it when the document carries
// an existing ID. The body is JSON, or YAML when Content-Type says so.
func (h *Handler) SaveRuleSet(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if isYAML(r.Header.Get("Content-Type")) {
		if data, err = factory.YAMLToJSON(data); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid ruleset YAML", err)
			return
		}
	}

	rs, err := h.RuleSets.ParseRuleSet(data)
	if err != nil {
		if generic.IsClientError(err) {
			h.writeServiceError(w, "Invalid ruleset", err)
		} else {
			writeError(w, http.StatusBadRequest, "Invalid ruleset", err)
		}
		return
	}

	saved, err := h.Payroll.SaveRuleSet(r.Context(), *rs)
	if err != nil {
		h.writeServiceError(w, "Failed to save ruleset", err)
		return
	}
	h.Log.Info().Str("ruleset", saved.ID).Int("rules", len(saved.Rules)).Msg("ruleset saved")
	writeJSON(w, http.StatusCreated, toRuleSetDTO(*saved))
}

func isYAML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasSuffix(mt, "yaml") || strings.HasSuffix(mt, "yml")
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with the status statusFor picks. Unexpected
// errors are logged.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error().Err(err).Msg(message)
	}
	writeError(w, status, message, err)
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		err = errors.New("empty body")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// parseDate parses a required "YYYY-MM-DD" field.
func parseDate(field, s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, generic.Invalid(field, "is required")
	}
	tp, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, generic.Invalid(field, "invalid date %q (use YYYY-MM-DD)", s)
	}
	return tp, nil
}

// parseOptionalDate parses a "YYYY-MM-DD" field that may be empty.
func parseOptionalDate(field, s string) (*generic.TimePoint, error) {
	if s == "" {
		return nil, nil
	}
	tp, err := parseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

// queryDate parses an optional date query parameter.
func queryDate(r *http.Request, name string) (*generic.TimePoint, error) {
	return parseOptionalDate(name, r.URL.Query().Get(name))
}
