/*
errors.go - Centralized error types for the leave ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Stores return these; the leave service wraps them with context; the API
  maps them to HTTP status codes.

ERROR CATEGORIES:
  1. Validation errors - Bad dates, bad input (no mutation performed)
  2. Referential errors - Unknown member or event
  3. Store errors - Uniqueness violations, transaction failures

NOT AN ERROR:
  Zero or negative quotas. The evaluator degrades to "everything LOP".

USAGE:
  if errors.Is(err, generic.ErrEventNotFound) {
      // 404
  }

SEE ALSO:
  - store.go: Uses these errors
  - api/handlers.go: Maps them to HTTP responses
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
	// ErrInvalidDate is returned when a leave date cannot be parsed, is out of
	// range, or disagrees with an explicitly supplied year.
	ErrInvalidDate = errors.New("invalid date")

	// ErrMemberNotFound is returned when a referenced member doesn't exist.
	ErrMemberNotFound = errors.New("member not found")

	// ErrEventNotFound is returned when a referenced leave event doesn't exist.
	ErrEventNotFound = errors.New("leave event not found")

	// ErrDuplicateLeaveDay is returned when a member already has leave on a date.
	ErrDuplicateLeaveDay = errors.New("leave already recorded for this day")

	// ErrTransactionFailed is returned when a classify-and-persist cycle cannot commit.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrStoreRequired is returned when an operation requires a specific store capability.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidDateError provides details about a rejected date.
type InvalidDateError struct {
	Value  string
	Reason string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q: %s", e.Value, e.Reason)
}

func (e *InvalidDateError) Unwrap() error {
	return ErrInvalidDate
}

// DuplicateDayError provides details about a day uniqueness violation.
type DuplicateDayError struct {
	MemberID MemberID
	Date     TimePoint
}

func (e *DuplicateDayError) Error() string {
	return fmt.Sprintf("leave already recorded: member %s on %s", e.MemberID, e.Date)
}

func (e *DuplicateDayError) Unwrap() error {
	return ErrDuplicateLeaveDay
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if rerunning the whole classify-and-persist cycle
// might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrDuplicateLeaveDay)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrEventNotFound)
}
