package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/workshift"
)

// =============================================================================
// WORKING SHIFT HANDLERS
//
//   GET    /api/shifts?employee=&state=&from=&to=&unattached=true
//   POST   /api/shifts                     Create draft shift
//   GET    /api/shifts/{id}                Get shift
//   PUT    /api/shifts/{id}                Update draft shift
//   DELETE /api/shifts/{id}                Delete draft or cancelled shift
//   POST   /api/shifts/{id}/{action}       confirm, done, cancel, draft
//   GET    /api/shifts/{id}/cost           Hours and cost under the contract
//   POST   /api/shifts/{id}/detach         Unlink from its payslip line
// =============================================================================

// ListShifts returns the shifts matching the query filters.
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := workshift.Filter{
		EmployeeID: generic.EmployeeID(q.Get("employee")),
		Unattached: q.Get("unattached") == "true",
	}
	var err error
	if f.From, err = queryDate(r, "from"); err != nil {
		h.writeServiceError(w, "Invalid filter", err)
		return
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		h.writeServiceError(w, "Invalid filter", err)
		return
	}
	for _, s := range q["state"] {
		for _, part := range strings.Split(s, ",") {
			if part != "" {
				f.States = append(f.States, workshift.State(part))
			}
		}
	}

	shifts, err := h.Payroll.Shifts.List(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "Failed to list shifts", err)
		return
	}

	dtos := make([]ShiftDTO, len(shifts))
	for i, s := range shifts {
		dtos[i] = toShiftDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetShift returns one shift.
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	s, err := h.Payroll.Shifts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(*s))
}

// CreateShift creates a draft shift with the next shift code.
func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req ShiftRequest
	if !decode(w, r, &req) {
		return
	}

	s, err := h.Payroll.Shifts.Create(r.Context(), workshift.Shift{
		EmployeeID: generic.EmployeeID(req.EmployeeID),
		Start:      req.Start,
		End:        req.End,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create shift", err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(*s))
}

// UpdateShift changes the employee and times of a draft shift.
func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	var req ShiftRequest
	if !decode(w, r, &req) {
		return
	}

	s, err := h.Payroll.Shifts.Update(r.Context(), chi.URLParam(r, "id"), generic.EmployeeID(req.EmployeeID), req.Start, req.End)
	if err != nil {
		h.writeServiceError(w, "Failed to update shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(*s))
}

// DeleteShift removes a draft or cancelled shift.
func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	if err := h.Payroll.Shifts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to delete shift", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ShiftAction moves a shift through its workflow.
func (h *Handler) ShiftAction(w http.ResponseWriter, r *http.Request) {
	actions := map[string]func(context.Context, string) (*workshift.Shift, error){
		"confirm": h.Payroll.Shifts.Confirm,
		"done":    h.Payroll.Shifts.Done,
		"cancel":  h.Payroll.Shifts.Cancel,
		"draft":   h.Payroll.Shifts.Draft,
	}
	action := chi.URLParam(r, "action")
	fn, ok := actions[action]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown shift action", nil)
		return
	}

	s, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to "+action+" shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(*s))
}

// GetShiftCost returns the hours and cost a shift contributes under the
// employee's contract.
func (h *Handler) GetShiftCost(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Payroll.ShiftCost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to cost shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toCostedShiftDTO(*cs))
}

// DetachShift unlinks a shift from its payslip line.
func (h *Handler) DetachShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := h.Payroll.DetachShift(ctx, id); err != nil {
		h.writeServiceError(w, "Failed to detach shift", err)
		return
	}
	s, err := h.Payroll.Shifts.Get(ctx, id)
	if err != nil {
		h.writeServiceError(w, "Failed to get shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(*s))
}
