package leave

import "context"

// Store persists leave records.
// Get* methods return (nil, nil) when the record does not exist.
type Store interface {
	SavePeriod(ctx context.Context, p Period) error
	GetPeriod(ctx context.Context, id string) (*Period, error)
	ListPeriods(ctx context.Context) ([]Period, error)

	SaveType(ctx context.Context, t Type) error
	GetType(ctx context.Context, id string) (*Type, error)
	ListTypes(ctx context.Context) ([]Type, error)

	SaveLeave(ctx context.Context, l Leave) error
	GetLeave(ctx context.Context, id string) (*Leave, error)
	ListLeaves(ctx context.Context, f Filter) ([]Leave, error)

	SaveEntitlement(ctx context.Context, e Entitlement) error
	GetEntitlement(ctx context.Context, id string) (*Entitlement, error)
	ListEntitlements(ctx context.Context, f Filter) ([]Entitlement, error)
	DeleteEntitlement(ctx context.Context, id string) error

	SavePayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	ListPayments(ctx context.Context, f Filter) ([]Payment, error)
}
