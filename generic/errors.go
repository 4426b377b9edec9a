/*
errors.go - Centralized error types for the payroll packages

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context; the HTTP layer
  maps them to status codes with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Lookup errors     - Referenced record does not exist
  2. Validation errors - Field constraints (end before start, negative hours)
  3. State errors      - Workflow transitions that are not allowed
  4. Conflict errors   - Overlapping contracts, duplicated links

USAGE:
  if errors.Is(err, generic.ErrNotFound) {
      // 404
  }

  var te *generic.TransitionError
  if errors.As(err, &te) {
      fmt.Println(te.From, te.To)
  }

SEE ALSO:
  - payroll/contract.go: OverlapError
  - api/handlers.go:     statusFor maps errors to HTTP codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrValidation is returned when a record violates a field constraint.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState is returned when a workflow transition is not allowed.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrConflict is returned when a write collides with existing records.
	ErrConflict = errors.New("conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ValidationError describes a field constraint violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransitionError reports a workflow move that the current state forbids.
type TransitionError struct {
	Kind string
	ID   string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %q cannot go from %s to %s", e.Kind, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsConflict returns true if the error is a state or uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidState)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
