package tasks

import (
	"errors"
	"fmt"

	"github.com/carebook/routesheet/internal/models"
)

var (
	// ErrValidation indicates malformed input (bad time range, missing
	// mandatory reason). Never retried automatically.
	ErrValidation = errors.New("validation failed")
	// ErrStateConflict indicates a transition was attempted on a task not in
	// the required source state.
	ErrStateConflict = errors.New("state conflict")
	// ErrNotFound indicates a referenced task, template or patient is absent.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor lacks the required relationship to the
	// patient or organization.
	ErrForbidden = errors.New("forbidden")
)

// StateConflictError carries the task's actual status so callers can return
// a specific reason ("already completed") instead of a generic failure.
type StateConflictError struct {
	Action string
	Status models.TaskStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s task with status %q: only pending tasks allowed", e.Action, e.Status)
}

func (e *StateConflictError) Unwrap() error {
	return ErrStateConflict
}

// ValidationError carries a field-level reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsStateConflict reports whether err is a state-conflict error.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrStateConflict)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
