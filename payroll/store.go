package payroll

import (
	"context"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/workshift"
)

// Store persists every payroll record, including the leave and working shift
// records payslips link to. Get* methods return (nil, nil) when the record
// does not exist.
type Store interface {
	leave.Store
	workshift.Store

	SaveEmployee(ctx context.Context, e generic.Employee) error
	GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error)
	ListEmployees(ctx context.Context) ([]generic.Employee, error)

	SaveHoliday(ctx context.Context, h generic.Holiday) error
	ListHolidays(ctx context.Context) ([]generic.Holiday, error)

	SaveLineType(ctx context.Context, t LineType) error
	GetLineType(ctx context.Context, id string) (*LineType, error)
	ListLineTypes(ctx context.Context) ([]LineType, error)

	// SaveRuleSet replaces the ruleset and all of its rules.
	SaveRuleSet(ctx context.Context, rs RuleSet) error
	GetRuleSet(ctx context.Context, id string) (*RuleSet, error)
	ListRuleSets(ctx context.Context) ([]RuleSet, error)

	SaveContract(ctx context.Context, c Contract) error
	GetContract(ctx context.Context, id string) (*Contract, error)
	ListContracts(ctx context.Context, f ContractFilter) ([]Contract, error)

	SavePayslip(ctx context.Context, p Payslip) error
	GetPayslip(ctx context.Context, id string) (*Payslip, error)
	ListPayslips(ctx context.Context, f PayslipFilter) ([]Payslip, error)
	// DeletePayslip removes the payslip and its lines and clears the line
	// link of every shift, entitlement and leave payment pointing to them.
	DeletePayslip(ctx context.Context, id string) error

	SaveLine(ctx context.Context, l Line) error
	GetLine(ctx context.Context, id string) (*Line, error)
	ListLines(ctx context.Context, payslipIDs ...string) ([]Line, error)
	// DeleteLine removes the line and clears the links pointing to it.
	DeleteLine(ctx context.Context, id string) error

	// WithTx runs fn against a store whose writes are committed only when
	// fn returns nil.
	WithTx(ctx context.Context, fn func(Store) error) error
}
