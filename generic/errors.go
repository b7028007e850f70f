/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. NotFound - a referenced employee or history entry does not exist
  2. InvalidInput - malformed month, missing identifiers, negative amounts
  3. ConcurrentModification - a competing writer touched the same employee
  4. StoreFailure - the persistence layer failed

  Missing compensation is NOT an error: resolution returns the zero
  compensation with an "unconfigured" status instead.

USAGE:
  if errors.Is(err, generic.ErrInvalidInput) {
      // 400
  }

SEE ALSO:
  - compensation/manager.go: raises ConcurrentModification and InvalidInput
  - payroll/engine.go: raises NotFound for unknown employees
  - api/handlers.go: maps kinds to HTTP status codes
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
	// ErrNotFound is the kind shared by every missing-resource error.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is the kind shared by every rejected request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConcurrentModification is returned when two writers race on the
	// compensation of the same employee. Callers decide whether to retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrStoreFailure is the kind of every infrastructure failure below the engine.
	ErrStoreFailure = errors.New("store failure")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = fmt.Errorf("employee %w", ErrNotFound)

	// ErrHistoryEntryNotFound is returned when an increment history entry doesn't
	// exist for the employee it is addressed through.
	ErrHistoryEntryNotFound = fmt.Errorf("history entry %w", ErrNotFound)

	// ErrRunNotFound is returned when no payroll run exists for (employee, month).
	ErrRunNotFound = fmt.Errorf("payroll run %w", ErrNotFound)

	// ErrInvalidMonth is returned for a month that is not YYYY-MM.
	ErrInvalidMonth = fmt.Errorf("%w: month must be YYYY-MM", ErrInvalidInput)

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = fmt.Errorf("%w: period ends before it starts", ErrInvalidInput)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InputError names the offending field of a rejected request.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// Invalid is shorthand for an *InputError.
func Invalid(field, format string, args ...any) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StoreError wraps a driver error with the operation that failed.
// It matches both ErrStoreFailure and the underlying cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreFailure, e.Err}
}

// StoreFailure wraps err as a *StoreError unless it already carries a kind
// the caller must see unchanged (not found, conflict, store failure).
// A parse error raised while decoding a stored value loses its InvalidInput
// kind: only a rejected request is invalid input.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrStoreFailure) {
		return err
	}
	if errors.Is(err, ErrInvalidInput) {
		err = errors.New(err.Error())
	}
	return &StoreError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
