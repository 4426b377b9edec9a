package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

// =============================================================================
// LEAVE HANDLERS
//
//   GET    /api/leave/periods              List leave periods
//   POST   /api/leave/periods              Create leave period
//   GET    /api/leave/types                List leave types
//   POST   /api/leave/types                Create leave type
//   GET    /api/leaves                     List leaves (filters below)
//   POST   /api/leaves                     Request leave
//   POST   /api/leaves/{id}/{action}       approve, reject, cancel, done, reset
//   GET    /api/entitlements               List entitlements
//   POST   /api/entitlements               Create entitlement
//   DELETE /api/entitlements/{id}          Delete entitlement
//   GET    /api/leave-payments             List leave payments
//   POST   /api/leave-payments             Create leave payment
//
// List filters: ?employee= &period= &type= &from= &to= &state= &unattached=true
// =============================================================================

// leaveFilter reads the list filters shared by leave records.
func leaveFilter(r *http.Request) (leave.Filter, error) {
	q := r.URL.Query()
	f := leave.Filter{
		EmployeeID: generic.EmployeeID(q.Get("employee")),
		PeriodID:   q.Get("period"),
		TypeID:     q.Get("type"),
		Unattached: q.Get("unattached") == "true",
	}
	var err error
	if f.From, err = queryDate(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		return f, err
	}
	for _, s := range q["state"] {
		for _, part := range strings.Split(s, ",") {
			if part != "" {
				f.States = append(f.States, leave.State(part))
			}
		}
	}
	return f, nil
}

// ListLeavePeriods returns the leave periods.
func (h *Handler) ListLeavePeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Payroll.Leaves.Store.ListPeriods(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list leave periods", err)
		return
	}

	dtos := make([]LeavePeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = LeavePeriodDTO{ID: p.ID, Name: p.Name, Start: formatDate(p.Start), End: formatDate(p.End)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLeavePeriod creates a leave period.
func (h *Handler) CreateLeavePeriod(w http.ResponseWriter, r *http.Request) {
	var req LeavePeriodDTO
	if !decode(w, r, &req) {
		return
	}
	start, err := parseDate("start", req.Start)
	if err != nil {
		h.writeServiceError(w, "Invalid leave period", err)
		return
	}
	end, err := parseDate("end", req.End)
	if err != nil {
		h.writeServiceError(w, "Invalid leave period", err)
		return
	}

	p, err := h.Payroll.Leaves.CreatePeriod(r.Context(), leave.Period{ID: req.ID, Name: req.Name, Start: start, End: end})
	if err != nil {
		h.writeServiceError(w, "Failed to create leave period", err)
		return
	}
	writeJSON(w, http.StatusCreated, LeavePeriodDTO{ID: p.ID, Name: p.Name, Start: formatDate(p.Start), End: formatDate(p.End)})
}

// ListLeaveTypes returns the leave types.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Payroll.Leaves.Store.ListTypes(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list leave types", err)
		return
	}

	dtos := make([]LeaveTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = LeaveTypeDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLeaveType creates a leave type.
func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	var req LeaveTypeDTO
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Payroll.Leaves.CreateType(r.Context(), leave.Type(req))
	if err != nil {
		h.writeServiceError(w, "Failed to create leave type", err)
		return
	}
	writeJSON(w, http.StatusCreated, LeaveTypeDTO(*t))
}

// ListLeaves returns the leaves matching the query filters.
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	f, err := leaveFilter(r)
	if err != nil {
		h.writeServiceError(w, "Invalid filter", err)
		return
	}
	leaves, err := h.Payroll.Leaves.Store.ListLeaves(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "Failed to list leaves", err)
		return
	}

	dtos := make([]LeaveDTO, len(leaves))
	for i, l := range leaves {
		dtos[i] = toLeaveDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RequestLeave creates a pending leave.
func (h *Handler) RequestLeave(w http.ResponseWriter, r *http.Request) {
	var req HoursRecordRequest
	if !decode(w, r, &req) {
		return
	}
	start, err := parseDate("start", req.Start)
	if err != nil {
		h.writeServiceError(w, "Invalid leave", err)
		return
	}
	end, err := parseDate("end", req.End)
	if err != nil {
		h.writeServiceError(w, "Invalid leave", err)
		return
	}
	requested, err := parseOptionalDate("date", req.Date)
	if err != nil {
		h.writeServiceError(w, "Invalid leave", err)
		return
	}

	l := leave.Leave{
		EmployeeID: generic.EmployeeID(req.EmployeeID),
		PeriodID:   req.PeriodID,
		TypeID:     req.TypeID,
		Start:      start,
		End:        end,
		Hours:      req.Hours,
	}
	if requested != nil {
		l.RequestDate = *requested
	}

	created, err := h.Payroll.Leaves.RequestLeave(r.Context(), l)
	if err != nil {
		h.writeServiceError(w, "Failed to request leave", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveDTO(*created))
}

// LeaveAction moves a leave through its workflow.
func (h *Handler) LeaveAction(w http.ResponseWriter, r *http.Request) {
	actions := map[string]func(context.Context, string) (*leave.Leave, error){
		"approve": h.Payroll.Leaves.Approve,
		"reject":  h.Payroll.Leaves.Reject,
		"cancel":  h.Payroll.Leaves.Cancel,
		"done":    h.Payroll.Leaves.Done,
		"reset":   h.Payroll.Leaves.Reset,
	}
	action := chi.URLParam(r, "action")
	fn, ok := actions[action]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown leave action", nil)
		return
	}

	l, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to "+action+" leave", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(*l))
}

// =============================================================================
// ENTITLEMENTS & PAYMENTS
// =============================================================================

// ListEntitlements returns the entitlements matching the query filters.
func (h *Handler) ListEntitlements(w http.ResponseWriter, r *http.Request) {
	f, err := leaveFilter(r)
	if err != nil {
		h.writeServiceError(w, "Invalid filter", err)
		return
	}
	list, err := h.Payroll.Leaves.Store.ListEntitlements(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "Failed to list entitlements", err)
		return
	}

	dtos := make([]EntitlementDTO, len(list))
	for i, e := range list {
		dtos[i] = toEntitlementDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEntitlement grants leave hours outside of any payslip.
func (h *Handler) CreateEntitlement(w http.ResponseWriter, r *http.Request) {
	var req HoursRecordRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		h.writeServiceError(w, "Invalid entitlement", err)
		return
	}

	e, err := h.Payroll.Leaves.CreateEntitlement(r.Context(), entitlementOf(req, date))
	if err != nil {
		h.writeServiceError(w, "Failed to create entitlement", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntitlementDTO(*e))
}

func entitlementOf(req HoursRecordRequest, date *generic.TimePoint) leave.Entitlement {
	e := leave.Entitlement{
		EmployeeID: generic.EmployeeID(req.EmployeeID),
		PeriodID:   req.PeriodID,
		TypeID:     req.TypeID,
		Hours:      req.Hours,
	}
	if date != nil {
		e.Date = *date
	}
	return e
}

// DeleteEntitlement deletes an entitlement, including one generated by a
// payslip line.
func (h *Handler) DeleteEntitlement(w http.ResponseWriter, r *http.Request) {
	if err := h.Payroll.RemoveEntitlement(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to delete entitlement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListLeavePayments returns the leave payments matching the query filters.
func (h *Handler) ListLeavePayments(w http.ResponseWriter, r *http.Request) {
	f, err := leaveFilter(r)
	if err != nil {
		h.writeServiceError(w, "Invalid filter", err)
		return
	}
	list, err := h.Payroll.Leaves.Store.ListPayments(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "Failed to list leave payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(list))
	for i, p := range list {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLeavePayment records leave hours paid out.
func (h *Handler) CreateLeavePayment(w http.ResponseWriter, r *http.Request) {
	var req HoursRecordRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		h.writeServiceError(w, "Invalid leave payment", err)
		return
	}

	p, err := h.Payroll.Leaves.CreatePayment(r.Context(), leave.Payment{
		EmployeeID: generic.EmployeeID(req.EmployeeID),
		PeriodID:   req.PeriodID,
		TypeID:     req.TypeID,
		Date:       date,
		Hours:      req.Hours,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create leave payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(*p))
}
