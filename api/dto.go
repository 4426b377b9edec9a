/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  - Dates are "YYYY-MM-DD"
  - Shift start/end are RFC3339 timestamps
  - Hours and amounts are decimal strings ("7.5"); requests accept numbers too

TYPES:
  Setup:     EmployeeDTO, HolidayDTO, LineTypeDTO, RuleSetDTO
  Contracts: ContractDTO, ContractRequest, SummaryRowDTO
  Leave:     LeavePeriodDTO, LeaveTypeDTO, LeaveDTO, EntitlementDTO,
             PaymentDTO, BalanceDTO
  Shifts:    ShiftDTO, ShiftRequest, CostedShiftDTO
  Payslips:  PayslipDTO, PayslipViewDTO, LineViewDTO, FiguresDTO

SEE ALSO:
  - handlers.go: Uses these types
  - factory/ruleset.go: RuleJSON schema shared with ruleset files
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/workshift"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func formatDate(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.String()
}

func formatDatePtr(tp *generic.TimePoint) *string {
	if tp == nil {
		return nil
	}
	s := tp.String()
	return &s
}

// =============================================================================
// EMPLOYEES & HOLIDAYS
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	HireDate       string `json:"hire_date,omitempty"`
	CurrencyDigits int32  `json:"currency_digits"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	HireDate       string `json:"hire_date"`
	CurrencyDigits int32  `json:"currency_digits"`
}

func toEmployeeDTO(e generic.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:             string(e.ID),
		Name:           e.Name,
		Email:          e.Email,
		HireDate:       formatDate(e.HireDate),
		CurrencyDigits: e.Digits(),
	}
}

// HolidayDTO represents a public holiday.
type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// =============================================================================
// LINE TYPES & RULESETS
// =============================================================================

// LineTypeDTO represents a payslip line type.
type LineTypeDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Product string `json:"product,omitempty"`
}

// RuleDTO is a rule with its stored ID.
type RuleDTO struct {
	ID string `json:"id"`
	factory.RuleJSON
}

// RuleSetDTO represents a ruleset in API responses. Rules are listed in
// evaluation order.
type RuleSetDTO struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Rules []RuleDTO `json:"rules"`
}

func toRuleSetDTO(rs payroll.RuleSet) RuleSetDTO {
	dto := RuleSetDTO{ID: rs.ID, Name: rs.Name, Rules: []RuleDTO{}}
	for _, r := range rs.Ordered() {
		dto.Rules = append(dto.Rules, RuleDTO{ID: r.ID, RuleJSON: factoryRule(r)})
	}
	return dto
}

func factoryRule(r payroll.Rule) factory.RuleJSON {
	return factory.RuleJSON{
		Sequence:  r.Sequence,
		Hours:     r.Hours,
		HourType:  r.HourTypeID,
		CostPrice: r.CostPrice,
	}
}

// =============================================================================
// CONTRACTS
// =============================================================================

// ContractDTO represents a payroll contract.
type ContractDTO struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	EmployeeID        string           `json:"employee_id"`
	Start             string           `json:"start"`
	End               *string          `json:"end,omitempty"`
	YearlyHours       decimal.Decimal  `json:"yearly_hours"`
	WorkingShiftHours *decimal.Decimal `json:"working_shift_hours,omitempty"`
	WorkingShiftPrice *decimal.Decimal `json:"working_shift_price,omitempty"`
	RuleSetID         string           `json:"ruleset_id,omitempty"`
	State             string           `json:"state"`
}

func toContractDTO(c payroll.Contract, name string) ContractDTO {
	return ContractDTO{
		ID:                c.ID,
		Name:              name,
		EmployeeID:        string(c.EmployeeID),
		Start:             formatDate(c.Start),
		End:               formatDatePtr(c.End),
		YearlyHours:       c.YearlyHours,
		WorkingShiftHours: c.WorkingShiftHours,
		WorkingShiftPrice: c.WorkingShiftPrice,
		RuleSetID:         c.RuleSetID,
		State:             string(c.State),
	}
}

// ContractRequest creates or updates a contract.
type ContractRequest struct {
	EmployeeID        string           `json:"employee_id"`
	Start             string           `json:"start"`
	End               string           `json:"end"`
	YearlyHours       decimal.Decimal  `json:"yearly_hours"`
	WorkingShiftHours *decimal.Decimal `json:"working_shift_hours"`
	WorkingShiftPrice *decimal.Decimal `json:"working_shift_price"`
	RuleSetID         string           `json:"ruleset_id"`
}

func (req ContractRequest) contract() (payroll.Contract, error) {
	start, err := parseDate("start", req.Start)
	if err != nil {
		return payroll.Contract{}, err
	}
	end, err := parseOptionalDate("end", req.End)
	if err != nil {
		return payroll.Contract{}, err
	}
	return payroll.Contract{
		EmployeeID:        generic.EmployeeID(req.EmployeeID),
		Start:             start,
		End:               end,
		YearlyHours:       req.YearlyHours,
		WorkingShiftHours: req.WorkingShiftHours,
		WorkingShiftPrice: req.WorkingShiftPrice,
		RuleSetID:         req.RuleSetID,
	}, nil
}

// SummaryRowDTO is one leave period of a contract's hours summary.
type SummaryRowDTO struct {
	PeriodID          string          `json:"period_id"`
	Period            string          `json:"period"`
	WorkedHours       decimal.Decimal `json:"worked_hours"`
	LeaveHours        decimal.Decimal `json:"leave_hours"`
	EntitledHours     decimal.Decimal `json:"entitled_hours"`
	LeavePaymentHours decimal.Decimal `json:"leave_payment_hours"`
	TotalHours        decimal.Decimal `json:"total_hours"`
	HoursToDo         decimal.Decimal `json:"hours_to_do"`
	RemainingHours    decimal.Decimal `json:"remaining_hours"`
}

func toSummaryRowDTO(r payroll.SummaryRow) SummaryRowDTO {
	return SummaryRowDTO{
		PeriodID:          r.PeriodID,
		Period:            r.PeriodName,
		WorkedHours:       r.WorkedHours,
		LeaveHours:        r.LeaveHours,
		EntitledHours:     r.EntitledHours,
		LeavePaymentHours: r.LeavePaymentHours,
		TotalHours:        r.TotalHours,
		HoursToDo:         r.HoursToDo,
		RemainingHours:    r.RemainingHours,
	}
}

// =============================================================================
// LEAVE
// =============================================================================

// LeavePeriodDTO represents a leave year.
type LeavePeriodDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// LeaveTypeDTO represents a leave type.
type LeaveTypeDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LeaveDTO represents a leave request.
type LeaveDTO struct {
	ID          string          `json:"id"`
	EmployeeID  string          `json:"employee_id"`
	PeriodID    string          `json:"period_id"`
	TypeID      string          `json:"type_id"`
	RequestDate string          `json:"request_date,omitempty"`
	Start       string          `json:"start"`
	End         string          `json:"end"`
	Hours       decimal.Decimal `json:"hours"`
	State       string          `json:"state"`
}

func toLeaveDTO(l leave.Leave) LeaveDTO {
	return LeaveDTO{
		ID:          l.ID,
		EmployeeID:  string(l.EmployeeID),
		PeriodID:    l.PeriodID,
		TypeID:      l.TypeID,
		RequestDate: formatDate(l.RequestDate),
		Start:       formatDate(l.Start),
		End:         formatDate(l.End),
		Hours:       l.Hours,
		State:       string(l.State),
	}
}

// HoursRecordRequest creates a leave, an entitlement or a leave payment.
type HoursRecordRequest struct {
	EmployeeID string          `json:"employee_id"`
	PeriodID   string          `json:"period_id"`
	TypeID     string          `json:"type_id"`
	Date       string          `json:"date"`
	Start      string          `json:"start"`
	End        string          `json:"end"`
	Hours      decimal.Decimal `json:"hours"`
}

// EntitlementDTO represents leave hours granted to an employee.
type EntitlementDTO struct {
	ID            string          `json:"id"`
	EmployeeID    string          `json:"employee_id"`
	PeriodID      string          `json:"period_id"`
	TypeID        string          `json:"type_id"`
	Date          string          `json:"date,omitempty"`
	Hours         decimal.Decimal `json:"hours"`
	PayslipLineID string          `json:"payslip_line_id,omitempty"`
}

func toEntitlementDTO(e leave.Entitlement) EntitlementDTO {
	return EntitlementDTO{
		ID:            e.ID,
		EmployeeID:    string(e.EmployeeID),
		PeriodID:      e.PeriodID,
		TypeID:        e.TypeID,
		Date:          formatDate(e.Date),
		Hours:         e.Hours,
		PayslipLineID: e.PayslipLineID,
	}
}

// PaymentDTO represents leave hours paid out.
type PaymentDTO EntitlementDTO

func toPaymentDTO(p leave.Payment) PaymentDTO {
	return PaymentDTO{
		ID:            p.ID,
		EmployeeID:    string(p.EmployeeID),
		PeriodID:      p.PeriodID,
		TypeID:        p.TypeID,
		Date:          formatDate(p.Date),
		Hours:         p.Hours,
		PayslipLineID: p.PayslipLineID,
	}
}

// BalanceDTO is the leave balance of one type in a period.
type BalanceDTO struct {
	TypeID    string          `json:"type_id"`
	Entitled  decimal.Decimal `json:"entitled"`
	Taken     decimal.Decimal `json:"taken"`
	Pending   decimal.Decimal `json:"pending"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
	Available decimal.Decimal `json:"available"`
}

// =============================================================================
// WORKING SHIFTS
// =============================================================================

// ShiftDTO represents a working shift.
type ShiftDTO struct {
	ID            string           `json:"id"`
	Code          string           `json:"code"`
	EmployeeID    string           `json:"employee_id"`
	Start         time.Time        `json:"start"`
	End           *time.Time       `json:"end,omitempty"`
	Hours         *decimal.Decimal `json:"hours,omitempty"`
	State         string           `json:"state"`
	PayslipLineID string           `json:"payslip_line_id,omitempty"`
}

func toShiftDTO(s workshift.Shift) ShiftDTO {
	return ShiftDTO{
		ID:            s.ID,
		Code:          s.Code,
		EmployeeID:    string(s.EmployeeID),
		Start:         s.Start,
		End:           s.End,
		Hours:         s.Hours(),
		State:         string(s.State),
		PayslipLineID: s.PayslipLineID,
	}
}

// ShiftRequest creates or updates a shift.
type ShiftRequest struct {
	EmployeeID string     `json:"employee_id"`
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end"`
}

// CostedShiftDTO is a shift with the hours and cost it contributes.
type CostedShiftDTO struct {
	ShiftDTO
	ContractID string          `json:"contract_id,omitempty"`
	RuleID     string          `json:"rule_id,omitempty"`
	HourTypeID string          `json:"hour_type_id,omitempty"`
	CostHours  decimal.Decimal `json:"cost_hours"`
	Cost       decimal.Decimal `json:"cost"`
}

func toCostedShiftDTO(s payroll.CostedShift) CostedShiftDTO {
	return CostedShiftDTO{
		ShiftDTO:   toShiftDTO(s.Shift),
		ContractID: s.ContractID,
		RuleID:     s.RuleID,
		HourTypeID: s.HourTypeID,
		CostHours:  s.CostHours,
		Cost:       s.Cost,
	}
}

// =============================================================================
// PAYSLIPS
// =============================================================================

// PayslipDTO represents a payslip header.
type PayslipDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	ContractID string `json:"contract_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

func toPayslipDTO(p payroll.Payslip) PayslipDTO {
	return PayslipDTO{
		ID:         p.ID,
		EmployeeID: string(p.EmployeeID),
		ContractID: p.ContractID,
		Start:      formatDate(p.Start),
		End:        formatDate(p.End),
	}
}

// PayslipRequest creates a payslip. The contract defaults to the employee's
// contract at the start date.
type PayslipRequest struct {
	EmployeeID string `json:"employee_id"`
	ContractID string `json:"contract_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// FiguresDTO are the computed hours and amount of a line or payslip.
type FiguresDTO struct {
	WorkingHours           decimal.Decimal `json:"working_hours"`
	WorkedHours            decimal.Decimal `json:"worked_hours"`
	LeaveHours             decimal.Decimal `json:"leave_hours"`
	GeneratedEntitledHours decimal.Decimal `json:"generated_entitled_hours"`
	TotalHours             decimal.Decimal `json:"total_hours"`
	HoursToDo              decimal.Decimal `json:"hours_to_do"`
	RemainingHours         decimal.Decimal `json:"remaining_hours"`
	LeavePaymentHours      decimal.Decimal `json:"leave_payment_hours"`
	Amount                 decimal.Decimal `json:"amount"`
}

func toFiguresDTO(f payroll.Figures) FiguresDTO {
	return FiguresDTO{
		WorkingHours:           f.WorkingHours,
		WorkedHours:            f.WorkedHours,
		LeaveHours:             f.LeaveHours,
		GeneratedEntitledHours: f.GeneratedEntitledHours,
		TotalHours:             f.TotalHours,
		HoursToDo:              f.HoursToDo,
		RemainingHours:         f.RemainingHours,
		LeavePaymentHours:      f.LeavePaymentHours,
		Amount:                 f.Amount,
	}
}

// LineViewDTO is a payslip line with its attached records and figures.
type LineViewDTO struct {
	ID           string           `json:"id"`
	TypeID       string           `json:"type_id"`
	Shifts       []CostedShiftDTO `json:"shifts"`
	Entitlements []EntitlementDTO `json:"entitlements"`
	Payments     []PaymentDTO     `json:"payments"`
	Figures      FiguresDTO       `json:"figures"`
}

// PayslipViewDTO is a payslip with its lines and totals.
type PayslipViewDTO struct {
	PayslipDTO
	Employee string        `json:"employee"`
	Contract string        `json:"contract"`
	Lines    []LineViewDTO `json:"lines"`
	Totals   FiguresDTO    `json:"totals"`
}

func toPayslipViewDTO(v payroll.PayslipView) PayslipViewDTO {
	dto := PayslipViewDTO{
		PayslipDTO: toPayslipDTO(v.Payslip),
		Employee:   v.Employee.Name,
		Contract:   payroll.RecName(v.Contract, &v.Employee),
		Lines:      []LineViewDTO{},
		Totals:     toFiguresDTO(v.Totals),
	}
	for _, l := range v.Lines {
		lv := LineViewDTO{
			ID:           l.ID,
			TypeID:       l.TypeID,
			Shifts:       []CostedShiftDTO{},
			Entitlements: []EntitlementDTO{},
			Payments:     []PaymentDTO{},
			Figures:      toFiguresDTO(l.Figures),
		}
		for _, s := range l.Shifts {
			lv.Shifts = append(lv.Shifts, toCostedShiftDTO(s))
		}
		for _, e := range l.Entitlements {
			lv.Entitlements = append(lv.Entitlements, toEntitlementDTO(e))
		}
		for _, p := range l.Payments {
			lv.Payments = append(lv.Payments, toPaymentDTO(p))
		}
		dto.Lines = append(dto.Lines, lv)
	}
	return dto
}

// LineDTO represents a payslip line without its attached records.
type LineDTO struct {
	ID           string          `json:"id"`
	PayslipID    string          `json:"payslip_id"`
	TypeID       string          `json:"type_id"`
	WorkingHours decimal.Decimal `json:"working_hours"`
}

func toLineDTO(l payroll.Line) LineDTO {
	return LineDTO{ID: l.ID, PayslipID: l.PayslipID, TypeID: l.TypeID, WorkingHours: l.WorkingHours}
}

// HoursRequest sets the working hours of a line.
type HoursRequest struct {
	WorkingHours decimal.Decimal `json:"working_hours"`
}

// LineRequest adds a line to a payslip. Without working_hours the line gets
// the payslip's default working hours.
type LineRequest struct {
	TypeID       string           `json:"type_id"`
	WorkingHours *decimal.Decimal `json:"working_hours"`
}

// IDsRequest lists records to attach to a payslip line.
type IDsRequest struct {
	IDs []string `json:"ids"`
}

// GenerateRequest triggers the monthly payslip generation.
type GenerateRequest struct {
	Date       string `json:"date"`
	LineTypeID string `json:"line_type_id"`
}

// GenerationResultDTO reports a generation run.
type GenerationResultDTO struct {
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}
