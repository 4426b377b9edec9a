/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Error mapping (statusFor) and error bodies
- Contract workflow over HTTP, overlap conflicts
- Rulesets posted as YAML
- Payslip flow: lines, shift attachment, figures, PDF and CSV exports
- Monthly generation and scheduler status
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/memory"
	"github.com/warp/payroll-engine/workshift"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testAPI struct {
	svc      *payroll.Service
	router   http.Handler
	employee *generic.Employee
	normal   *payroll.LineType
	ruleset  *payroll.RuleSet
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	svc := payroll.NewService(memory.New(), zerolog.Nop())
	svc.Now = func() time.Time { return time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC) }

	emp, err := svc.CreateEmployee(ctx, generic.Employee{ID: "emp-1", Name: "Alice Martin"})
	require.NoError(t, err)
	normal, err := svc.CreateLineType(ctx, payroll.LineType{ID: "normal", Name: "Normal"})
	require.NoError(t, err)
	four, eight := decimal.RequireFromString("4.5"), decimal.RequireFromString("8")
	one, two := 1, 2
	rs, err := svc.SaveRuleSet(ctx, payroll.RuleSet{
		Name: "Employees",
		Rules: []payroll.Rule{
			{Sequence: &one, Hours: &four, HourTypeID: normal.ID, CostPrice: decimal.NewFromInt(300)},
			{Sequence: &two, Hours: &eight, HourTypeID: normal.ID, CostPrice: decimal.NewFromInt(800)},
		},
	})
	require.NoError(t, err)

	scheduler := NewGenerationScheduler(svc, "", "", zerolog.Nop())
	scheduler.Now = svc.Now
	h := NewHandler(svc, scheduler, zerolog.Nop())

	return &testAPI{
		svc:      svc,
		router:   NewRouter(h, zerolog.Nop(), []string{"*"}),
		employee: emp,
		normal:   normal,
		ruleset:  rs,
	}
}

// do sends body as JSON, or as-is when it is a string.
func (a *testAPI) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// confirmedContract creates and confirms a 2025 contract for the employee.
func (a *testAPI) confirmedContract(t *testing.T) ContractDTO {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/contracts", map[string]any{
		"employee_id":         a.employee.ID,
		"start":               "2025-01-01",
		"end":                 "2025-12-31",
		"yearly_hours":        "1840",
		"working_shift_hours": "8",
		"working_shift_price": "360",
		"ruleset_id":          a.ruleset.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decodeBody[ContractDTO](t, rec)

	rec = a.do(t, http.MethodPost, "/api/contracts/"+c.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[ContractDTO](t, rec)
}

func (a *testAPI) doneShift(t *testing.T, start time.Time, hours float64) ShiftDTO {
	t.Helper()
	end := start.Add(time.Duration(hours * float64(time.Hour)))
	rec := a.do(t, http.MethodPost, "/api/shifts", ShiftRequest{EmployeeID: string(a.employee.ID), Start: start, End: &end})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	s := decodeBody[ShiftDTO](t, rec)

	for _, action := range []string{"confirm", "done"} {
		rec = a.do(t, http.MethodPost, "/api/shifts/"+s.ID+"/"+action, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	return decodeBody[ShiftDTO](t, rec)
}

func mayAt(day, hour int) time.Time {
	return time.Date(2025, time.May, day, hour, 0, 0, 0, time.UTC)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", generic.NotFound("payslip", "p-1"), http.StatusNotFound},
		{"validation", generic.Invalid("hours", "must be positive"), http.StatusBadRequest},
		{"invalid period", fmt.Errorf("payslip: %w", generic.ErrInvalidPeriod), http.StatusBadRequest},
		{"transition", &generic.TransitionError{Kind: "leave", ID: "l-1", From: "done", To: "pending"}, http.StatusConflict},
		{"overlap", &payroll.OverlapError{Contract: "a", Existing: "b"}, http.StatusConflict},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestAPI_NotFoundBody(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/payslips/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "Failed to get payslip", body.Error)
	assert.Contains(t, body.Details, "missing")
}

func TestAPI_InvalidBody(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/contracts", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/contracts", map[string]any{"employee_id": a.employee.ID, "start": "01/05/2025"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Details, "start")
}

// =============================================================================
// CONTRACTS
// =============================================================================

func TestAPI_ContractOverlapConflict(t *testing.T) {
	// GIVEN: A confirmed 2025 contract
	// WHEN: Confirming a second contract starting in June 2025
	// THEN: 409 naming both contracts; the second stays draft

	a := newTestAPI(t)
	first := a.confirmedContract(t)
	assert.Equal(t, "confirmed", first.State)
	assert.Equal(t, "Alice Martin (2025-01-01)", first.Name)

	rec := a.do(t, http.MethodPost, "/api/contracts", map[string]any{
		"employee_id":  a.employee.ID,
		"start":        "2025-06-01",
		"yearly_hours": "1000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	second := decodeBody[ContractDTO](t, rec)

	rec = a.do(t, http.MethodPost, "/api/contracts/"+second.ID+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Details, first.Name)

	rec = a.do(t, http.MethodGet, "/api/contracts/"+second.ID, nil)
	assert.Equal(t, "draft", decodeBody[ContractDTO](t, rec).State)
}

func TestAPI_CurrentContractAndSearch(t *testing.T) {
	a := newTestAPI(t)
	c := a.confirmedContract(t)

	rec := a.do(t, http.MethodGet, "/api/employees/emp-1/contract?date=2025-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, c.ID, decodeBody[ContractDTO](t, rec).ID)

	rec = a.do(t, http.MethodGet, "/api/employees/emp-1/contract?date=2026-03-01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/contracts?q=martin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]ContractDTO](t, rec), 1)

	rec = a.do(t, http.MethodGet, "/api/contracts?state=draft", nil)
	assert.Empty(t, decodeBody[[]ContractDTO](t, rec))
}

// =============================================================================
// RULESETS
// =============================================================================

func TestAPI_SaveRuleSet_YAML(t *testing.T) {
	// GIVEN: A YAML ruleset listing rules out of sequence
	// WHEN: Posting it with a YAML content type
	// THEN: 201 and rules returned in evaluation order

	a := newTestAPI(t)
	doc := `
name: Night shifts
rules:
  - sequence: 20
    hours: 10
    hour_type: normal
    cost_price: 900
  - sequence: 10
    hours: 6
    hour_type: normal
    cost_price: 500
`
	rec := a.do(t, http.MethodPost, "/api/rulesets", doc, "Content-Type", "application/yaml")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rs := decodeBody[RuleSetDTO](t, rec)
	assert.Equal(t, "Night shifts", rs.Name)
	require.Len(t, rs.Rules, 2)
	assert.Equal(t, "6", rs.Rules[0].Hours.String())
	assert.Equal(t, "900", rs.Rules[1].CostPrice.String())
}

func TestAPI_SaveRuleSet_UnknownField(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/rulesets", `{"name": "x", "rules": [], "price": 3}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// PAYSLIPS
// =============================================================================

func TestAPI_PayslipFlow(t *testing.T) {
	// GIVEN: A confirmed contract and two done shifts in May (8h and 3h)
	// WHEN: Creating a May payslip, adding a line and attaching both shifts
	// THEN: The view prices the shifts by rule (800 + 300), counts the
	//       contract's 8h per shift, and the exports render

	a := newTestAPI(t)
	a.confirmedContract(t)
	long := a.doneShift(t, mayAt(6, 9), 8)
	short := a.doneShift(t, mayAt(20, 9), 3)

	rec := a.do(t, http.MethodPost, "/api/payslips", PayslipRequest{EmployeeID: "emp-1", Start: "2025-05-01", End: "2025-05-31"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decodeBody[PayslipDTO](t, rec)
	assert.NotEmpty(t, p.ContractID, "contract defaults to the current one")

	rec = a.do(t, http.MethodPost, "/api/payslips/"+p.ID+"/lines", LineRequest{TypeID: "normal"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	line := decodeBody[LineDTO](t, rec)
	assert.Equal(t, "176", line.WorkingHours.String())

	rec = a.do(t, http.MethodPost, "/api/lines/"+line.ID+"/shifts", IDsRequest{IDs: []string{long.ID, short.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/payslips/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody[PayslipViewDTO](t, rec)
	require.Len(t, v.Lines, 1)
	assert.Len(t, v.Lines[0].Shifts, 2)
	assert.Equal(t, "1100", v.Totals.Amount.String())
	assert.Equal(t, "16", v.Totals.WorkedHours.String())
	assert.Equal(t, "Alice Martin", v.Employee)

	rec = a.do(t, http.MethodGet, "/api/payslips/"+p.ID+"/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	rec = a.do(t, http.MethodGet, "/api/payslips/register.csv?employee=emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 2, "header and one payslip line")
}

func TestAPI_DeletePayslipDetachesShifts(t *testing.T) {
	a := newTestAPI(t)
	a.confirmedContract(t)
	s := a.doneShift(t, mayAt(6, 9), 8)

	rec := a.do(t, http.MethodPost, "/api/payslips", PayslipRequest{EmployeeID: "emp-1", Start: "2025-05-01", End: "2025-05-31"})
	p := decodeBody[PayslipDTO](t, rec)
	rec = a.do(t, http.MethodPost, "/api/payslips/"+p.ID+"/lines", LineRequest{TypeID: "normal"})
	line := decodeBody[LineDTO](t, rec)
	a.do(t, http.MethodPost, "/api/lines/"+line.ID+"/shifts", IDsRequest{IDs: []string{s.ID}})

	rec = a.do(t, http.MethodDelete, "/api/payslips/"+p.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/shifts?unattached=true&employee=emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	shifts := decodeBody[[]ShiftDTO](t, rec)
	require.Len(t, shifts, 1)
	assert.Equal(t, s.ID, shifts[0].ID)
	assert.Equal(t, string(workshift.StateDone), shifts[0].State)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestAPI_LeaveWorkflow(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/leave/periods", LeavePeriodDTO{Name: "2025", Start: "2025-01-01", End: "2025-12-31"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	period := decodeBody[LeavePeriodDTO](t, rec)
	rec = a.do(t, http.MethodPost, "/api/leave/types", LeaveTypeDTO{Name: "Holidays"})
	require.Equal(t, http.StatusCreated, rec.Code)
	typ := decodeBody[LeaveTypeDTO](t, rec)

	rec = a.do(t, http.MethodPost, "/api/entitlements", map[string]any{
		"employee_id": "emp-1", "period_id": period.ID, "type_id": typ.ID, "hours": "40",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/leaves", map[string]any{
		"employee_id": "emp-1", "period_id": period.ID, "type_id": typ.ID,
		"start": "2025-05-05", "end": "2025-05-06", "hours": "16",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	l := decodeBody[LeaveDTO](t, rec)
	assert.Equal(t, "pending", l.State)

	rec = a.do(t, http.MethodPost, "/api/leaves/"+l.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodPost, "/api/leaves/"+l.ID+"/done", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodPost, "/api/leaves/"+l.ID+"/reset", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "done leaves are final")
	rec = a.do(t, http.MethodPost, "/api/leaves/"+l.ID+"/archive", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/employees/emp-1/balances?period="+period.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balances := decodeBody[[]BalanceDTO](t, rec)
	require.Len(t, balances, 1)
	assert.Equal(t, "24", balances[0].Remaining.String())
}

// =============================================================================
// GENERATION
// =============================================================================

func TestAPI_GeneratePayslips(t *testing.T) {
	// GIVEN: A confirmed contract and a done shift in May
	// WHEN: Generating May twice through the API
	// THEN: One payslip created, then skipped; status reports the last run

	a := newTestAPI(t)
	a.confirmedContract(t)
	a.doneShift(t, mayAt(6, 9), 8)

	rec := a.do(t, http.MethodPost, "/api/payslips/generate", GenerateRequest{Date: "2025-05-17", LineTypeID: "normal"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[GenerationResultDTO](t, rec)
	assert.Equal(t, "2025-05-01", res.Start)
	assert.Equal(t, "2025-05-31", res.End)
	assert.Len(t, res.Created, 1)

	rec = a.do(t, http.MethodPost, "/api/payslips/generate", GenerateRequest{Date: "2025-05-17", LineTypeID: "normal"})
	res = decodeBody[GenerationResultDTO](t, rec)
	assert.Empty(t, res.Created)
	assert.Equal(t, []string{"emp-1"}, res.Skipped)

	rec = a.do(t, http.MethodGet, "/api/scheduler", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeBody[SchedulerStatus](t, rec)
	assert.False(t, st.Enabled)
	require.NotNil(t, st.LastRun)
	assert.True(t, st.LastRun.Manual)
}

func TestAPI_GeneratePayslips_RequiresLineType(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/payslips/generate", GenerateRequest{Date: "2025-05-17"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerationScheduler_StartStop(t *testing.T) {
	a := newTestAPI(t)
	s := NewGenerationScheduler(a.svc, "0 6 1 * *", "normal", zerolog.Nop())

	require.NoError(t, s.Start())
	st := s.Status()
	assert.True(t, st.Running)
	require.NotNil(t, st.Next)
	assert.Equal(t, 1, st.Next.Day())

	s.Stop(context.Background())
	assert.False(t, s.Status().Running)

	bad := NewGenerationScheduler(a.svc, "every day", "normal", zerolog.Nop())
	assert.Error(t, bad.Start())
}

func TestGenerationScheduler_LogsOnceEachRun(t *testing.T) {
	a := newTestAPI(t)
	a.confirmedContract(t)

	var buf bytes.Buffer
	log := zerolog.New(&buf)
	a.svc.Log = log
	s := NewGenerationScheduler(a.svc, "", "normal", log)
	s.Now = a.svc.Now

	_, err := s.Run(context.Background(), generic.NewTimePoint(2025, time.May, 1), "")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(buf.String(), "payslips generated"), buf.String())
}

func TestThrottle(t *testing.T) {
	h := throttle(rate.NewLimiter(rate.Limit(0.1), 1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/payslips/generate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/payslips/generate", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
}
