/*
Package report renders payslips for people outside the system.

PURPOSE:
  - PDF payslip for the employee (gofpdf)
  - CSV payslip register for accounting (gocsv), one row per payslip line
  - CSV hours summary of a contract, one row per leave period

All renderers take computed views from the payroll service; nothing here
touches the store.

SEE ALSO:
  - payroll/payslip.go: PayslipView and Figures
  - payroll/summary.go: SummaryRow
*/
package report

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// Names maps line type IDs to their display name.
func Names(types []payroll.LineType) map[string]string {
	names := make(map[string]string, len(types))
	for _, t := range types {
		names[t.ID] = t.Name
	}
	return names
}

func nameOf(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id
}

func hours(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// =============================================================================
// PDF
// =============================================================================

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Type", 34},
	{"Working", 17},
	{"Worked", 17},
	{"Leave", 15},
	{"Entitled", 17},
	{"Total", 17},
	{"To do", 17},
	{"Remaining", 19},
	{"Paid leave", 19},
	{"Amount", 20},
}

func figureCells(label string, f payroll.Figures, digits int32) []string {
	return []string{
		label,
		hours(f.WorkingHours),
		hours(f.WorkedHours),
		hours(f.LeaveHours),
		hours(f.GeneratedEntitledHours),
		hours(f.TotalHours),
		hours(f.HoursToDo),
		hours(f.RemainingHours),
		hours(f.LeavePaymentHours),
		f.Amount.StringFixed(digits),
	}
}

// NewPayslipPDF lays out a payslip: header, one row per line, totals, then
// the shifts of every line.
func NewPayslipPDF(v payroll.PayslipView, names map[string]string) *gofpdf.Fpdf {
	digits := v.Employee.Digits()

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Payslip %s %s", v.Employee.Name, v.Start), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", v.Employee.Name))
	pdf.Ln(6)
	if v.Employee.Email != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Email: %s", v.Employee.Email))
		pdf.Ln(6)
	}
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s", v.Start, v.End))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Contract: %s", payroll.RecName(v.Contract, &v.Employee)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range pdfColumns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, l := range v.Lines {
		row(pdf, figureCells(nameOf(names, l.TypeID), l.Figures, digits))
	}
	pdf.SetFont("Helvetica", "B", 9)
	row(pdf, figureCells("Total", v.Totals, digits))

	if shifts := v.Shifts(); len(shifts) > 0 {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 7, "Working shifts")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 9)
		for _, s := range shifts {
			end := ""
			if s.End != nil {
				end = s.End.Format("15:04")
			}
			pdf.CellFormat(30, 6, s.Code, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, s.Start.Format("2006-01-02 15:04"), "1", 0, "L", false, 0, "")
			pdf.CellFormat(20, 6, end, "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, nameOf(names, s.HourTypeID), "1", 0, "L", false, 0, "")
			pdf.CellFormat(20, 6, hours(s.CostHours), "1", 0, "R", false, 0, "")
			pdf.CellFormat(25, 6, generic.RoundCurrency(s.Cost, digits).StringFixed(digits), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	return pdf
}

func row(pdf *gofpdf.Fpdf, cells []string) {
	for i, c := range pdfColumns {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(c.width, 7, cells[i], "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

// WritePayslipPDF renders the payslip as PDF into w.
func WritePayslipPDF(w io.Writer, v payroll.PayslipView, names map[string]string) error {
	pdf := NewPayslipPDF(v, names)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render payslip pdf: %w", err)
	}
	return nil
}
