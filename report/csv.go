package report

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// PAYSLIP REGISTER
// =============================================================================

// RegisterRow is one payslip line in the accounting register.
type RegisterRow struct {
	PayslipID         string `csv:"payslip_id"`
	Employee          string `csv:"employee"`
	Contract          string `csv:"contract"`
	Start             string `csv:"start"`
	End               string `csv:"end"`
	LineType          string `csv:"line_type"`
	Product           string `csv:"product"`
	WorkingHours      string `csv:"working_hours"`
	WorkedHours       string `csv:"worked_hours"`
	LeaveHours        string `csv:"leave_hours"`
	EntitledHours     string `csv:"entitled_hours"`
	TotalHours        string `csv:"total_hours"`
	HoursToDo         string `csv:"hours_to_do"`
	RemainingHours    string `csv:"remaining_hours"`
	LeavePaymentHours string `csv:"leave_payment_hours"`
	Shifts            int    `csv:"shifts"`
	Amount            string `csv:"amount"`
}

// RegisterRows flattens payslip views into one row per line.
func RegisterRows(views []payroll.PayslipView, types []payroll.LineType) []*RegisterRow {
	byID := make(map[string]payroll.LineType, len(types))
	for _, t := range types {
		byID[t.ID] = t
	}

	var rows []*RegisterRow
	for _, v := range views {
		digits := v.Employee.Digits()
		for _, l := range v.Lines {
			lt, ok := byID[l.TypeID]
			if !ok {
				lt = payroll.LineType{ID: l.TypeID, Name: l.TypeID}
			}
			f := l.Figures
			rows = append(rows, &RegisterRow{
				PayslipID:         v.ID,
				Employee:          v.Employee.Name,
				Contract:          payroll.RecName(v.Contract, &v.Employee),
				Start:             v.Start.String(),
				End:               v.End.String(),
				LineType:          lt.Name,
				Product:           lt.Product,
				WorkingHours:      hours(f.WorkingHours),
				WorkedHours:       hours(f.WorkedHours),
				LeaveHours:        hours(f.LeaveHours),
				EntitledHours:     hours(f.GeneratedEntitledHours),
				TotalHours:        hours(f.TotalHours),
				HoursToDo:         hours(f.HoursToDo),
				RemainingHours:    hours(f.RemainingHours),
				LeavePaymentHours: hours(f.LeavePaymentHours),
				Shifts:            len(l.Shifts),
				Amount:            f.Amount.StringFixed(digits),
			})
		}
	}
	return rows
}

// WriteRegister writes the payslip register as CSV with a header row.
func WriteRegister(w io.Writer, views []payroll.PayslipView, types []payroll.LineType) error {
	rows := RegisterRows(views, types)
	if rows == nil {
		rows = []*RegisterRow{}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write payslip register: %w", err)
	}
	return nil
}

// =============================================================================
// HOURS SUMMARY
// =============================================================================

// SummaryCSVRow is one leave period of a contract's hours summary.
type SummaryCSVRow struct {
	Period            string `csv:"period"`
	WorkedHours       string `csv:"worked_hours"`
	LeaveHours        string `csv:"leave_hours"`
	EntitledHours     string `csv:"entitled_hours"`
	LeavePaymentHours string `csv:"leave_payment_hours"`
	TotalHours        string `csv:"total_hours"`
	HoursToDo         string `csv:"hours_to_do"`
	RemainingHours    string `csv:"remaining_hours"`
}

// WriteSummary writes a contract's hours summary as CSV.
func WriteSummary(w io.Writer, summary []payroll.SummaryRow) error {
	rows := make([]*SummaryCSVRow, 0, len(summary))
	for _, s := range summary {
		rows = append(rows, &SummaryCSVRow{
			Period:            s.PeriodName,
			WorkedHours:       hours(s.WorkedHours),
			LeaveHours:        hours(s.LeaveHours),
			EntitledHours:     hours(s.EntitledHours),
			LeavePaymentHours: hours(s.LeavePaymentHours),
			TotalHours:        hours(s.TotalHours),
			HoursToDo:         hours(s.HoursToDo),
			RemainingHours:    hours(s.RemainingHours),
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write hours summary: %w", err)
	}
	return nil
}
