package workshift

import "context"

// SequenceName is the store sequence shift codes are drawn from.
const SequenceName = "working_shift"

// Store persists working shifts.
// GetShift returns (nil, nil) when the shift does not exist.
type Store interface {
	SaveShift(ctx context.Context, s Shift) error
	GetShift(ctx context.Context, id string) (*Shift, error)
	ListShifts(ctx context.Context, f Filter) ([]Shift, error)
	DeleteShift(ctx context.Context, id string) error

	// NextSequence returns the next value of a named counter, starting at 1.
	NextSequence(ctx context.Context, name string) (int64, error)
}
