package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/report"
)

// =============================================================================
// PAYSLIP HANDLERS
//
//   GET    /api/payslips?employee=&contract=&from=&to=   List payslips
//   GET    /api/payslips/register.csv?...                 Register export
//   POST   /api/payslips                                  Create payslip
//   POST   /api/payslips/generate                         Generate a month
//   GET    /api/payslips/{id}                             Payslip with lines and figures
//   DELETE /api/payslips/{id}                             Delete (records detached)
//   POST   /api/payslips/{id}/copy                        Duplicate with lines
//   GET    /api/payslips/{id}/pdf                         Printable payslip
//   POST   /api/payslips/{id}/lines                       Add line
//   PUT    /api/lines/{id}                                Set working hours
//   DELETE /api/lines/{id}                                Remove line
//   POST   /api/lines/{id}/shifts                         Attach shifts
//   POST   /api/lines/{id}/entitlements                   Generate entitlement
//   POST   /api/lines/{id}/payments                       Attach leave payments
//   POST   /api/leave-payments/{id}/detach                Detach leave payment
//   GET    /api/scheduler                                 Generation schedule
// =============================================================================

func payslipFilter(r *http.Request) (payroll.PayslipFilter, error) {
	q := r.URL.Query()
	f := payroll.PayslipFilter{
		EmployeeID: generic.EmployeeID(q.Get("employee")),
		ContractID: q.Get("contract"),
	}
	var err error
	if f.From, err = queryDate(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		return f, err
	}
	return f, nil
}

// ListPayslips returns the payslip headers matching the query filters.
func (h *Handler) ListPayslips(w http.ResponseWriter, r *http.Request) {
	f, err := payslipFilter(r)
	if err != nil {
		h.writeServiceError(w, "Invalid filter", err)
		return
	}
	payslips, err := h.Payroll.ListPayslips(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "Failed to list payslips", err)
		return
	}

	dtos := make([]PayslipDTO, len(payslips))
	for i, p := range payslips {
		dtos[i] = toPayslipDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportRegister writes the payslips matching the query filters as CSV, one
// row per line.
func (h *Handler) ExportRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := payslipFilter(r)
	if err != nil {
		h.writeServiceError(w, "Invalid filter", err)
		return
	}
	views, err := h.Payroll.ListPayslipViews(ctx, f)
	if err != nil {
		h.writeServiceError(w, "Failed to load payslips", err)
		return
	}
	types, err := h.Payroll.ListLineTypes(ctx)
	if err != nil {
		h.writeServiceError(w, "Failed to list line types", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="payslips.csv"`)
	if err := report.WriteRegister(w, views, types); err != nil {
		h.Log.Error().Err(err).Msg("failed to write payslip register")
	}
}

// CreatePayslip creates a payslip for an employee.
func (h *Handler) CreatePayslip(w http.ResponseWriter, r *http.Request) {
	var req PayslipRequest
	if !decode(w, r, &req) {
		return
	}
	start, err := parseDate("start", req.Start)
	if err != nil {
		h.writeServiceError(w, "Invalid payslip", err)
		return
	}
	end, err := parseDate("end", req.End)
	if err != nil {
		h.writeServiceError(w, "Invalid payslip", err)
		return
	}

	p, err := h.Payroll.CreatePayslip(r.Context(), payroll.Payslip{
		EmployeeID: generic.EmployeeID(req.EmployeeID),
		ContractID: req.ContractID,
		Start:      start,
		End:        end,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create payslip", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayslipDTO(*p))
}

// GetPayslip returns a payslip with its lines, attached records and figures.
func (h *Handler) GetPayslip(w http.ResponseWriter, r *http.Request) {
	v, err := h.Payroll.PayslipView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get payslip", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayslipViewDTO(*v))
}

// GetPayslipPDF renders a payslip as PDF.
func (h *Handler) GetPayslipPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	v, err := h.Payroll.PayslipView(ctx, id)
	if err != nil {
		h.writeServiceError(w, "Failed to get payslip", err)
		return
	}
	types, err := h.Payroll.ListLineTypes(ctx)
	if err != nil {
		h.writeServiceError(w, "Failed to list line types", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="payslip-`+id+`.pdf"`)
	if err := report.WritePayslipPDF(w, *v, report.Names(types)); err != nil {
		h.Log.Error().Err(err).Str("payslip", id).Msg("failed to render payslip PDF")
	}
}

// DeletePayslip deletes a payslip and detaches its records.
func (h *Handler) DeletePayslip(w http.ResponseWriter, r *http.Request) {
	if err := h.Payroll.DeletePayslip(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to delete payslip", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CopyPayslip duplicates a payslip and its lines.
func (h *Handler) CopyPayslip(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payroll.CopyPayslip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to copy payslip", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayslipDTO(*p))
}

// =============================================================================
// LINE HANDLERS
// =============================================================================

// AddLine adds a line to a payslip.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req LineRequest
	if !decode(w, r, &req) {
		return
	}
	l, err := h.Payroll.AddLine(r.Context(), chi.URLParam(r, "id"), req.TypeID, req.WorkingHours)
	if err != nil {
		h.writeServiceError(w, "Failed to add line", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLineDTO(*l))
}

// SetLineHours changes the working hours of a line.
func (h *Handler) SetLineHours(w http.ResponseWriter, r *http.Request) {
	var req HoursRequest
	if !decode(w, r, &req) {
		return
	}
	l, err := h.Payroll.SetLineHours(r.Context(), chi.URLParam(r, "id"), req.WorkingHours)
	if err != nil {
		h.writeServiceError(w, "Failed to set line hours", err)
		return
	}
	writeJSON(w, http.StatusOK, toLineDTO(*l))
}

// RemoveLine removes a line and detaches its records.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	if err := h.Payroll.RemoveLine(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to remove line", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AttachShifts links shifts to a line.
func (h *Handler) AttachShifts(w http.ResponseWriter, r *http.Request) {
	var req IDsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Payroll.AttachShifts(r.Context(), chi.URLParam(r, "id"), req.IDs...); err != nil {
		h.writeServiceError(w, "Failed to attach shifts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attached": len(req.IDs)})
}

// GenerateEntitlement creates an entitlement owned by a line. The date
// defaults to the payslip end.
func (h *Handler) GenerateEntitlement(w http.ResponseWriter, r *http.Request) {
	var req HoursRecordRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		h.writeServiceError(w, "Invalid entitlement", err)
		return
	}

	e, err := h.Payroll.GenerateEntitlement(r.Context(), chi.URLParam(r, "id"), entitlementOf(req, date))
	if err != nil {
		h.writeServiceError(w, "Failed to generate entitlement", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntitlementDTO(*e))
}

// AttachPayments links leave payments to a line.
func (h *Handler) AttachPayments(w http.ResponseWriter, r *http.Request) {
	var req IDsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Payroll.AttachPayments(r.Context(), chi.URLParam(r, "id"), req.IDs...); err != nil {
		h.writeServiceError(w, "Failed to attach leave payments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attached": len(req.IDs)})
}

// DetachPayment unlinks a leave payment from its line.
func (h *Handler) DetachPayment(w http.ResponseWriter, r *http.Request) {
	if err := h.Payroll.DetachPayment(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to detach leave payment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// GENERATION
// =============================================================================

// GeneratePayslips runs the monthly generation for the month containing
// date (default today).
func (h *Handler) GeneratePayslips(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		h.writeServiceError(w, "Invalid generation request", err)
		return
	}
	var d generic.TimePoint
	if date != nil {
		d = *date
	}

	res, err := h.Scheduler.Run(r.Context(), d, req.LineTypeID)
	if err != nil {
		h.writeServiceError(w, "Failed to generate payslips", err)
		return
	}
	writeJSON(w, http.StatusOK, toGenerationResultDTO(*res))
}

// GetSchedulerStatus returns the generation schedule and its last run.
func (h *Handler) GetSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Scheduler.Status())
}
