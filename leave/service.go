package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// SERVICE - Leave request lifecycle and leave records
// =============================================================================

type Service struct {
	Store Store
	Log   zerolog.Logger
	Now   func() time.Time
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{Store: store, Log: log.With().Str("component", "leave").Logger(), Now: time.Now}
}

func (s *Service) today() generic.TimePoint {
	if s.Now == nil {
		return generic.Today()
	}
	return generic.DateOf(s.Now())
}

// CreatePeriod stores a leave year.
func (s *Service) CreatePeriod(ctx context.Context, p Period) (*Period, error) {
	if p.Name == "" {
		return nil, generic.Invalid("name", "is required")
	}
	if p.End.Before(p.Start) {
		return nil, fmt.Errorf("leave period %s: %w", p.Name, generic.ErrInvalidPeriod)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.Store.SavePeriod(ctx, p); err != nil {
		return nil, fmt.Errorf("save leave period: %w", err)
	}
	return &p, nil
}

// CreateType stores a leave type.
func (s *Service) CreateType(ctx context.Context, t Type) (*Type, error) {
	if t.Name == "" {
		return nil, generic.Invalid("name", "is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := s.Store.SaveType(ctx, t); err != nil {
		return nil, fmt.Errorf("save leave type: %w", err)
	}
	return &t, nil
}

// Period loads a leave period or returns a NotFoundError.
func (s *Service) Period(ctx context.Context, id string) (*Period, error) {
	p, err := s.Store.GetPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, generic.NotFound("leave period", id)
	}
	return p, nil
}

func (s *Service) checkType(ctx context.Context, id string) error {
	if id == "" {
		return generic.Invalid("type", "is required")
	}
	t, err := s.Store.GetType(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return generic.NotFound("leave type", id)
	}
	return nil
}

// =============================================================================
// LEAVES
// =============================================================================

// RequestLeave validates and stores a new pending leave.
func (s *Service) RequestLeave(ctx context.Context, l Leave) (*Leave, error) {
	if l.EmployeeID == "" {
		return nil, generic.Invalid("employee", "is required")
	}
	if l.End.Before(l.Start) {
		return nil, fmt.Errorf("leave: %w", generic.ErrInvalidPeriod)
	}
	if l.Hours.IsNegative() {
		return nil, generic.Invalid("hours", "must be positive or zero")
	}
	if _, err := s.Period(ctx, l.PeriodID); err != nil {
		return nil, err
	}
	if err := s.checkType(ctx, l.TypeID); err != nil {
		return nil, err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.RequestDate.IsZero() {
		l.RequestDate = s.today()
	}
	l.State = StatePending
	if err := s.Store.SaveLeave(ctx, l); err != nil {
		return nil, fmt.Errorf("save leave: %w", err)
	}
	s.Log.Info().Str("leave", l.ID).Str("employee", string(l.EmployeeID)).
		Str("hours", l.Hours.String()).Msg("leave requested")
	return &l, nil
}

func (s *Service) Approve(ctx context.Context, id string) (*Leave, error) {
	return s.transition(ctx, id, StateApproved)
}

func (s *Service) Reject(ctx context.Context, id string) (*Leave, error) {
	return s.transition(ctx, id, StateRejected)
}

func (s *Service) Cancel(ctx context.Context, id string) (*Leave, error) {
	return s.transition(ctx, id, StateCancelled)
}

func (s *Service) Done(ctx context.Context, id string) (*Leave, error) {
	return s.transition(ctx, id, StateDone)
}

// Reset moves a rejected or cancelled leave back to pending.
func (s *Service) Reset(ctx context.Context, id string) (*Leave, error) {
	return s.transition(ctx, id, StatePending)
}

func (s *Service) transition(ctx context.Context, id string, to State) (*Leave, error) {
	l, err := s.Store.GetLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, generic.NotFound("leave", id)
	}
	if !CanTransition(l.State, to) {
		return nil, &generic.TransitionError{Kind: "leave", ID: id, From: string(l.State), To: string(to)}
	}
	from := l.State
	l.State = to
	if err := s.Store.SaveLeave(ctx, *l); err != nil {
		return nil, fmt.Errorf("save leave: %w", err)
	}
	s.Log.Info().Str("leave", id).Str("from", string(from)).Str("to", string(to)).Msg("leave state changed")
	return l, nil
}

// LeaveHours returns the approved and done leave hours of an employee that
// fall inside p. An empty typeID counts every type.
func (s *Service) LeaveHours(ctx context.Context, employeeID generic.EmployeeID, p generic.Period, typeID string) (decimal.Decimal, error) {
	leaves, err := s.Store.ListLeaves(ctx, Filter{
		EmployeeID: employeeID,
		From:       &p.Start,
		To:         &p.End,
		States:     []State{StateApproved, StateDone},
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("list leaves: %w", err)
	}
	return Hours(leaves, p, typeID), nil
}

// =============================================================================
// ENTITLEMENTS & PAYMENTS
// =============================================================================

// ValidateEntitlement checks an entitlement against its period and type.
func (s *Service) ValidateEntitlement(ctx context.Context, e Entitlement) error {
	if e.EmployeeID == "" {
		return generic.Invalid("employee", "is required")
	}
	if e.Hours.IsNegative() {
		return generic.Invalid("hours", "must be positive or zero")
	}
	if _, err := s.Period(ctx, e.PeriodID); err != nil {
		return err
	}
	return s.checkType(ctx, e.TypeID)
}

// CreateEntitlement stores an entitlement that is not tied to a payslip.
func (s *Service) CreateEntitlement(ctx context.Context, e Entitlement) (*Entitlement, error) {
	if err := s.ValidateEntitlement(ctx, e); err != nil {
		return nil, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := s.Store.SaveEntitlement(ctx, e); err != nil {
		return nil, fmt.Errorf("save entitlement: %w", err)
	}
	return &e, nil
}

// CreatePayment stores a leave payment.
func (s *Service) CreatePayment(ctx context.Context, p Payment) (*Payment, error) {
	if p.EmployeeID == "" {
		return nil, generic.Invalid("employee", "is required")
	}
	if p.Hours.IsNegative() {
		return nil, generic.Invalid("hours", "must be positive or zero")
	}
	if p.Date.IsZero() {
		return nil, generic.Invalid("date", "is required")
	}
	if _, err := s.Period(ctx, p.PeriodID); err != nil {
		return nil, err
	}
	if err := s.checkType(ctx, p.TypeID); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.Store.SavePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("save leave payment: %w", err)
	}
	return &p, nil
}

// Balances computes the per-type leave balance of an employee for a period.
func (s *Service) Balances(ctx context.Context, employeeID generic.EmployeeID, periodID string) ([]Balance, error) {
	if _, err := s.Period(ctx, periodID); err != nil {
		return nil, err
	}
	f := Filter{EmployeeID: employeeID, PeriodID: periodID}
	entitlements, err := s.Store.ListEntitlements(ctx, f)
	if err != nil {
		return nil, err
	}
	leaves, err := s.Store.ListLeaves(ctx, f)
	if err != nil {
		return nil, err
	}
	payments, err := s.Store.ListPayments(ctx, f)
	if err != nil {
		return nil, err
	}
	return ComputeBalances(employeeID, periodID, entitlements, leaves, payments), nil
}
