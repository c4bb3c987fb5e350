package expense

import (
	"errors"
	"fmt"

	"gitlab.com/yelinaung/expense-claims/internal/models"
)

var (
	ErrInvalidAmount   = errors.New("amount must be a non-negative number below 10000000000")
	ErrInvalidCategory = errors.New("category must be one of the fixed categories")
	ErrNotesTooLong    = fmt.Errorf("notes must be at most %d characters", models.MaxNotesLength)
	ErrInvalidNotes    = errors.New("notes must be valid UTF-8 text without NUL characters")
	ErrInvalidDate     = errors.New("date must be a calendar date (YYYY-MM-DD)")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrForbidden       = errors.New("administrator role required")
	ErrNotFound        = models.ErrNotFound
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// TransitionError reports a status change the state machine does not allow.
// It matches ErrInvalidStatus with errors.Is.
type TransitionError struct {
	From models.ExpenseStatus
	To   models.ExpenseStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStatus
}
