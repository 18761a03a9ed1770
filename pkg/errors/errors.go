package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrNotFound              = errors.New("record not found")
	ErrInvalidState          = errors.New("invalid application state")
	ErrIncompleteApplication = errors.New("application is incomplete")
	ErrNotEligible           = errors.New("application is not eligible")
	ErrInvalidInput          = errors.New("invalid input")
	ErrAccessDenied          = errors.New("access denied")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeInvalidState          = "INVALID_STATE"
	ErrCodeIncompleteApplication = "INCOMPLETE_APPLICATION"
	ErrCodeNotEligible           = "NOT_ELIGIBLE"
	ErrCodeInvalidInput          = "INVALID_INPUT"
	ErrCodeAccessDenied          = "ACCESS_DENIED"
	ErrCodeDatabaseError         = "DATABASE_ERROR"
	ErrCodeCacheError            = "CACHE_ERROR"
)

// CodeOf returns the business code carried by err, or "" for unclassified errors
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Wrap common errors with business context
func WrapApplicationNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Loan application %s not found", id),
		ErrNotFound,
	)
}

func WrapCustomerNotFound(key string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("Customer %s not found", key),
		ErrNotFound,
	)
}

// WrapInvalidState names the operation, the current status and the statuses it requires
func WrapInvalidState(id, operation, current string, required ...string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidState,
		fmt.Sprintf("Cannot %s application %s in status %s: requires %s",
			operation, id, current, strings.Join(required, " or ")),
		ErrInvalidState,
	)
}

func WrapIncompleteApplication(id, reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeIncompleteApplication,
		fmt.Sprintf("Application %s is incomplete: %s", id, reason),
		ErrIncompleteApplication,
	)
}

func WrapNotEligible(id, reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotEligible,
		fmt.Sprintf("Application %s is not eligible for approval: %s", id, reason),
		ErrNotEligible,
	)
}

func WrapInvalidInput(message string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidInput,
		message,
		ErrInvalidInput,
	)
}

func WrapAccessDenied(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeAccessDenied,
		fmt.Sprintf("Application %s does not belong to this customer", id),
		ErrAccessDenied,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
