package payroll

import (
	"context"
	"fmt"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/workshift"
)

// =============================================================================
// MONTHLY GENERATION - One payslip per employee and month
// =============================================================================

// GenerationResult reports what a generation run did.
type GenerationResult struct {
	Month   generic.Period
	Created []string
	Skipped []generic.EmployeeID
}

// GenerateMonth creates, for the month containing date, a payslip for every
// employee with a confirmed contract at the month start who has no payslip for
// that exact month yet. Each payslip gets one line of lineTypeID with the
// default working hours, and the employee's unattached done shifts of the
// month. Running it twice for the same month creates nothing new.
func (s *Service) GenerateMonth(ctx context.Context, date generic.TimePoint, lineTypeID string) (*GenerationResult, error) {
	month := generic.MonthPeriod(date)
	if _, err := s.LineType(ctx, lineTypeID); err != nil {
		return nil, err
	}
	employees, err := s.Store.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	res := &GenerationResult{Month: month}
	for _, e := range employees {
		id, err := s.generateFor(ctx, e.ID, month, lineTypeID)
		if err != nil {
			return res, fmt.Errorf("employee %s: %w", e.ID, err)
		}
		if id == "" {
			res.Skipped = append(res.Skipped, e.ID)
			continue
		}
		res.Created = append(res.Created, id)
	}
	return res, nil
}

func (s *Service) generateFor(ctx context.Context, employeeID generic.EmployeeID, month generic.Period, lineTypeID string) (string, error) {
	contract, err := s.CurrentContract(ctx, employeeID, month.Start)
	if err != nil || contract == nil {
		return "", err
	}

	var created string
	err = s.tx(ctx, func(s *Service) error {
		existing, err := s.Store.ListPayslips(ctx, PayslipFilter{EmployeeID: employeeID, From: &month.Start, To: &month.End})
		if err != nil {
			return err
		}
		for _, p := range existing {
			if p.Start.Equal(month.Start) && p.End.Equal(month.End) {
				return nil
			}
		}

		p, err := s.CreatePayslip(ctx, Payslip{
			EmployeeID: employeeID,
			ContractID: contract.ID,
			Start:      month.Start,
			End:        month.End,
		})
		if err != nil {
			return err
		}
		line, err := s.AddLine(ctx, p.ID, lineTypeID, nil)
		if err != nil {
			return err
		}
		shifts, err := s.Store.ListShifts(ctx, workshift.Filter{
			EmployeeID: employeeID,
			States:     []workshift.State{workshift.StateDone},
			Unattached: true,
			From:       &month.Start,
			To:         &month.End,
		})
		if err != nil {
			return err
		}
		for _, sh := range shifts {
			sh.PayslipLineID = line.ID
			if err := s.Store.SaveShift(ctx, sh); err != nil {
				return fmt.Errorf("save shift: %w", err)
			}
		}
		created = p.ID
		return nil
	})
	return created, err
}
