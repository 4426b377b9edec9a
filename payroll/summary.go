/*
summary.go - Contract hours per leave period

PURPOSE:
  Shows, for every leave year, how many hours an employee owed and worked
  under a contract, so that overtime or missing hours can be settled before
  the year closes.

FIGURES (per contract and leave period):
  worked        cost hours of done shifts on payslips fully inside the period
  leave         leave hours of the employee inside the period
  entitled      entitlements of the period generated by the contract's payslips
  leave payment leave payments of the period made on the contract's payslips
  hours to do   hours to do of lines with working hours, on payslips
                starting before the period's last day and ending on or
                after its first day
  total         worked + leave - entitled
  remaining     hours to do - worked + entitled
*/
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/workshift"
)

// SummaryRow holds the hours of one contract for one leave period.
type SummaryRow struct {
	ContractID        string
	PeriodID          string
	PeriodName        string
	WorkedHours       decimal.Decimal
	LeaveHours        decimal.Decimal
	EntitledHours     decimal.Decimal
	LeavePaymentHours decimal.Decimal
	TotalHours        decimal.Decimal
	HoursToDo         decimal.Decimal
	RemainingHours    decimal.Decimal
}

// Summarize computes the row of one leave period from the contract's payslip
// views and the employee's leave hours inside the period.
func Summarize(contractID string, period leave.Period, payslips []PayslipView, leaveHours decimal.Decimal) SummaryRow {
	row := SummaryRow{
		ContractID: contractID,
		PeriodID:   period.ID,
		PeriodName: period.Name,
		LeaveHours: generic.RoundHours(leaveHours),
	}
	span := period.Range()

	for _, v := range payslips {
		if v.ContractID != contractID {
			continue
		}
		inside := span.Covers(v.Range())
		overlaps := v.Start.Before(span.End) && v.End.AfterOrEqual(span.Start)
		for _, l := range v.Lines {
			if inside {
				for _, s := range l.Shifts {
					if s.State == workshift.StateDone {
						row.WorkedHours = row.WorkedHours.Add(s.CostHours)
					}
				}
			}
			for _, e := range l.Entitlements {
				if e.PeriodID == period.ID {
					row.EntitledHours = row.EntitledHours.Add(e.Hours)
				}
			}
			for _, p := range l.Payments {
				if p.PeriodID == period.ID {
					row.LeavePaymentHours = row.LeavePaymentHours.Add(p.Hours)
				}
			}
			if overlaps && l.HasWorkingHours() {
				row.HoursToDo = row.HoursToDo.Add(l.Figures.HoursToDo)
			}
		}
	}

	row.WorkedHours = generic.RoundHours(row.WorkedHours)
	row.EntitledHours = generic.RoundHours(row.EntitledHours)
	row.LeavePaymentHours = generic.RoundHours(row.LeavePaymentHours)
	row.HoursToDo = generic.RoundHours(row.HoursToDo)
	row.TotalHours = row.WorkedHours.Add(row.LeaveHours).Sub(row.EntitledHours)
	row.RemainingHours = row.HoursToDo.Sub(row.WorkedHours).Add(row.EntitledHours)
	return row
}
