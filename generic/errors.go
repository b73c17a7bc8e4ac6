/*
errors.go - Centralized error types for the allowance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain and store packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Data errors       - Employee records the calculator cannot use
  2. Boundary errors   - Failures of the external data store
  3. Lock errors       - Mutations attempted against a finalized month
  4. Validation errors - Malformed input (months, periods, leave types)

USAGE:
    if errors.Is(err, generic.ErrMonthLocked) {
        // tell the user the month is finalized
    }

SEE ALSO:
  - allowance/errors.go: InvalidEmployeeError
  - api/handlers.go: HTTP status mapping
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
	// ErrInvalidEmployeeData is returned when an employee record cannot be
	// calculated (missing join date, leave date before join date).
	ErrInvalidEmployeeData = errors.New("invalid employee data")

	// ErrRepository marks every failure coming from the data store boundary.
	ErrRepository = errors.New("repository failure")

	// ErrMonthLocked is returned when a mutation targets a locked month.
	ErrMonthLocked = errors.New("month is locked")

	// ErrEntityNotFound is returned when a referenced record doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidLeaveType is returned by write paths given an empty leave type.
	ErrInvalidLeaveType = errors.New("invalid leave type")

	// ErrInvalidDate is returned when a required date is missing or malformed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidMonth is returned for months outside 1..12.
	ErrInvalidMonth = errors.New("invalid month")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RepositoryError wraps a data store failure with the operation that failed.
// It matches both ErrRepository and the underlying cause with errors.Is.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() []error {
	return []error{ErrRepository, e.Err}
}

// WrapRepository returns nil for a nil err, otherwise a *RepositoryError.
// Errors that are already client or lock errors pass through untouched.
func WrapRepository(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RepositoryError
	if errors.As(err, &re) || IsNotFound(err) || IsClientError(err) || errors.Is(err, ErrMonthLocked) {
		return err
	}
	return &RepositoryError{Op: op, Err: err}
}

// MonthLockedError names the month a mutation was refused for.
type MonthLockedError struct {
	Month Month
}

func (e *MonthLockedError) Error() string {
	return fmt.Sprintf("month %s is locked", e.Month)
}

func (e *MonthLockedError) Unwrap() error {
	return ErrMonthLocked
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
// Only boundary failures qualify; bad data stays bad.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRepository) && !IsNotFound(err)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidEmployeeData) ||
		errors.Is(err, ErrInvalidLeaveType) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
