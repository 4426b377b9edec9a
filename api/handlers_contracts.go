package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/report"
)

// =============================================================================
// CONTRACT HANDLERS
//
//   GET    /api/contracts?employee=&state=&q=   List or search contracts
//   POST   /api/contracts                       Create draft contract
//   GET    /api/contracts/{id}                  Get contract
//   PUT    /api/contracts/{id}                  Update draft contract
//   POST   /api/contracts/{id}/confirm          Confirm (checks overlaps)
//   POST   /api/contracts/{id}/draft            Back to draft
//   POST   /api/contracts/{id}/cancel           Cancel
//   POST   /api/contracts/{id}/copy             Duplicate as draft
//   GET    /api/contracts/{id}/summary          Hours per leave period (?format=csv)
//   GET    /api/contracts/{id}/rule?shift=      Rule pricing a shift
// =============================================================================

// ListContracts lists contracts filtered by employee and states, or searches
// them by name when ?q= is set.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		contracts []payroll.Contract
		err       error
	)
	if query := q.Get("q"); query != "" {
		contracts, err = h.Payroll.SearchContracts(ctx, query)
	} else {
		f := payroll.ContractFilter{EmployeeID: generic.EmployeeID(q.Get("employee"))}
		for _, s := range q["state"] {
			for _, part := range strings.Split(s, ",") {
				if part != "" {
					f.States = append(f.States, payroll.ContractState(part))
				}
			}
		}
		contracts, err = h.Payroll.ListContracts(ctx, f)
	}
	if err != nil {
		h.writeServiceError(w, "Failed to list contracts", err)
		return
	}

	writeJSON(w, http.StatusOK, h.contractDTOs(ctx, contracts))
}

func (h *Handler) contractDTOs(ctx context.Context, contracts []payroll.Contract) []ContractDTO {
	dtos := make([]ContractDTO, len(contracts))
	for i, c := range contracts {
		dtos[i] = toContractDTO(c, h.Payroll.ContractName(ctx, c))
	}
	return dtos
}

// GetContract returns one contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.Payroll.Contract(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(*c, h.Payroll.ContractName(ctx, *c)))
}

// CreateContract creates a draft contract.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ContractRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := req.contract()
	if err != nil {
		h.writeServiceError(w, "Invalid contract", err)
		return
	}

	created, err := h.Payroll.CreateContract(ctx, c)
	if err != nil {
		h.writeServiceError(w, "Failed to create contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(*created, h.Payroll.ContractName(ctx, *created)))
}

// UpdateContract replaces the fields of a draft contract.
func (h *Handler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ContractRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := req.contract()
	if err != nil {
		h.writeServiceError(w, "Invalid contract", err)
		return
	}
	c.ID = chi.URLParam(r, "id")

	updated, err := h.Payroll.UpdateContract(ctx, c)
	if err != nil {
		h.writeServiceError(w, "Failed to update contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(*updated, h.Payroll.ContractName(ctx, *updated)))
}

// contractAction adapts a contract workflow method to a handler.
func (h *Handler) contractAction(action string, fn func(context.Context, string) (*payroll.Contract, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		c, err := fn(ctx, chi.URLParam(r, "id"))
		if err != nil {
			h.writeServiceError(w, "Failed to "+action+" contract", err)
			return
		}
		writeJSON(w, http.StatusOK, toContractDTO(*c, h.Payroll.ContractName(ctx, *c)))
	}
}

// CopyContract duplicates a contract as a new draft.
func (h *Handler) CopyContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.Payroll.CopyContract(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to copy contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(*c, h.Payroll.ContractName(ctx, *c)))
}

// GetHoursSummary returns the contract's hours per leave period, as JSON or
// as CSV with ?format=csv.
func (h *Handler) GetHoursSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rows, err := h.Payroll.HoursSummary(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to compute hours summary", err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="summary-`+id+`.csv"`)
		if err := report.WriteSummary(w, rows); err != nil {
			h.Log.Error().Err(err).Str("contract", id).Msg("failed to write summary CSV")
		}
		return
	}

	dtos := make([]SummaryRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toSummaryRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMatchingRule returns the rule of the contract's ruleset that prices
// ?shift=, or 404 when none matches.
func (h *Handler) GetMatchingRule(w http.ResponseWriter, r *http.Request) {
	shiftID := r.URL.Query().Get("shift")
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, "shift is required", nil)
		return
	}

	rule, err := h.Payroll.MatchingRule(r.Context(), chi.URLParam(r, "id"), shiftID)
	if err != nil {
		h.writeServiceError(w, "Failed to match rule", err)
		return
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, "No rule matches the shift", nil)
		return
	}
	writeJSON(w, http.StatusOK, RuleDTO{ID: rule.ID, RuleJSON: factoryRule(*rule)})
}
