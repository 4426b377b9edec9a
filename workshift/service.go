package workshift

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// SERVICE - Shift lifecycle
// =============================================================================

type Service struct {
	Store Store
	Log   zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{Store: store, Log: log.With().Str("component", "workshift").Logger()}
}

// CodeFormat renders a sequence value as a shift code.
const CodeFormat = "WS-%05d"

func validate(s Shift) error {
	if s.EmployeeID == "" {
		return generic.Invalid("employee", "is required")
	}
	if s.Start.IsZero() {
		return generic.Invalid("start", "is required")
	}
	if s.End != nil && !s.End.After(s.Start) {
		return generic.Invalid("end", "must be after start")
	}
	return nil
}

// Create stores a new draft shift and assigns its code.
func (s *Service) Create(ctx context.Context, shift Shift) (*Shift, error) {
	if err := validate(shift); err != nil {
		return nil, err
	}
	seq, err := s.Store.NextSequence(ctx, SequenceName)
	if err != nil {
		return nil, fmt.Errorf("next shift code: %w", err)
	}
	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}
	shift.Code = fmt.Sprintf(CodeFormat, seq)
	shift.State = StateDraft
	shift.PayslipLineID = ""
	if err := s.Store.SaveShift(ctx, shift); err != nil {
		return nil, fmt.Errorf("save shift: %w", err)
	}
	s.Log.Info().Str("shift", shift.ID).Str("code", shift.Code).
		Str("employee", string(shift.EmployeeID)).Msg("shift created")
	return &shift, nil
}

// Get loads a shift or returns a NotFoundError.
func (s *Service) Get(ctx context.Context, id string) (*Shift, error) {
	shift, err := s.Store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, generic.NotFound("working shift", id)
	}
	return shift, nil
}

// List returns the shifts matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Shift, error) {
	return s.Store.ListShifts(ctx, f)
}

// Update changes the employee and times of a draft shift.
func (s *Service) Update(ctx context.Context, id string, employeeID generic.EmployeeID, start time.Time, end *time.Time) (*Shift, error) {
	shift, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if shift.State != StateDraft {
		return nil, fmt.Errorf("shift %s is %s, only draft shifts can be edited: %w", shift.Code, shift.State, generic.ErrInvalidState)
	}
	shift.EmployeeID = employeeID
	shift.Start = start
	shift.End = end
	if err := validate(*shift); err != nil {
		return nil, err
	}
	if err := s.Store.SaveShift(ctx, *shift); err != nil {
		return nil, fmt.Errorf("save shift: %w", err)
	}
	return shift, nil
}

// Delete removes a draft or cancelled shift.
func (s *Service) Delete(ctx context.Context, id string) error {
	shift, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if shift.State != StateDraft && shift.State != StateCancelled {
		return fmt.Errorf("shift %s is %s: %w", shift.Code, shift.State, generic.ErrInvalidState)
	}
	return s.Store.DeleteShift(ctx, id)
}

func (s *Service) Confirm(ctx context.Context, id string) (*Shift, error) {
	return s.transition(ctx, id, StateConfirmed)
}

// Done closes a shift. The shift must have an end.
func (s *Service) Done(ctx context.Context, id string) (*Shift, error) {
	return s.transition(ctx, id, StateDone)
}

func (s *Service) Cancel(ctx context.Context, id string) (*Shift, error) {
	return s.transition(ctx, id, StateCancelled)
}

// Draft moves a cancelled shift back to draft.
func (s *Service) Draft(ctx context.Context, id string) (*Shift, error) {
	return s.transition(ctx, id, StateDraft)
}

func (s *Service) transition(ctx context.Context, id string, to State) (*Shift, error) {
	shift, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(shift.State, to) {
		return nil, &generic.TransitionError{Kind: "working shift", ID: id, From: string(shift.State), To: string(to)}
	}
	if to == StateDone && shift.End == nil {
		return nil, generic.Invalid("end", "shift %s has no end", shift.Code)
	}
	if shift.Attached() && (to == StateCancelled || to == StateDraft) {
		return nil, fmt.Errorf("shift %s is on a payslip: %w", shift.Code, generic.ErrConflict)
	}
	from := shift.State
	shift.State = to
	if err := s.Store.SaveShift(ctx, *shift); err != nil {
		return nil, fmt.Errorf("save shift: %w", err)
	}
	s.Log.Info().Str("shift", shift.Code).Str("from", string(from)).Str("to", string(to)).Msg("shift state changed")
	return shift, nil
}
