/*
errors.go - Centralized error types for the operations engine

PURPOSE:
  All error categories in one place for consistency and discoverability.
  Subsystem packages wrap these with additional context.

ERROR CATEGORIES:
  1. Validation errors - malformed input, surfaced with no partial effect
  2. Not-found errors - referenced entity does not exist
  3. Conflict errors - uniqueness invariant violations
  4. Invalid-state errors - operation against the wrong lifecycle state

  Failures of best-effort derived steps (meal-ticket sync) are NOT errors
  in this taxonomy: they are reported through attendance.SyncReport and
  logged, never returned to the caller of the primary operation.

USAGE:
  if kinder.IsConflict(err) {
      // duplicate attendance / ticket / invoice / overlapping leave
  }

SEE ALSO:
  - store.go: Store methods return these errors
  - attendance/tickets.go: SyncReport, the isolated failure channel
*/
package kinder

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness
	// invariant (duplicate attendance day, duplicate ticket triple,
	// duplicate invoice, overlapping leave).
	ErrConflict = errors.New("conflict")

	// ErrInvalidState is returned when an operation is attempted against
	// an entity in the wrong lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is returned for malformed input. The operation has no
	// partial effect.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Entity string // "student", "dish", "leave request", ...
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError identifies the uniqueness key that would be violated.
type ConflictError struct {
	Entity string
	Key    string // e.g. "student=s1 date=2026-03-02"
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists for %s", e.Entity, e.Key)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ValidationError identifies the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidStateError records the state the entity was in and the state the
// operation required.
type InvalidStateError struct {
	Entity  string
	ID      string
	Current string
	Want    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s is %s, operation requires %s", e.Entity, e.ID, e.Current, e.Want)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }
func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }

// IsClientError returns true if the error is the caller's fault rather
// than an infrastructure failure.
func IsClientError(err error) bool {
	return IsNotFound(err) || IsConflict(err) || IsInvalidState(err) || IsValidation(err)
}
