/*
errors.go - Error types for the installment engine

PURPOSE:
  All engine error types in one place. Callers branch with errors.Is /
  errors.As; the API layer maps them to HTTP status codes.

ERROR CATEGORIES:
  1. Validation errors - malformed dates, bad premium/count/first amount
  2. Not-found errors  - raised by the service layer, defined here so the
                         whole taxonomy lives together

Degenerate schedules (zero remaining installments to divide) are NOT
errors: they are documented policy decisions and produce empty output.
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrPolicyNotFound is returned when a referenced policy doesn't exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInstallmentNotFound is returned when a referenced installment doesn't exist.
	ErrInstallmentNotFound = errors.New("installment not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError reports an invalid engine input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrInstallmentNotFound)
}
