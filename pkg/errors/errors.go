package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError; handlers map it to an HTTP status
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeInternal     ErrorType = "INTERNAL"
	// ErrorTypeExternal is a failure of a third-party API (places, OpenAI, search)
	ErrorTypeExternal ErrorType = "EXTERNAL"

	ErrorTypeStoreUnavailable ErrorType = "STORE_UNAVAILABLE"
	ErrorTypeStoreTimeout     ErrorType = "STORE_TIMEOUT"
	ErrorTypePartialWrite     ErrorType = "PARTIAL_WRITE"
)

// AppError is the error type returned across service boundaries
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, message string, err error) *AppError {
	return &AppError{Type: t, Message: message, Err: err}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return newError(ErrorTypeNotFound, message, nil)
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, message, nil)
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, message, nil)
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return newError(ErrorTypeUnauthorized, message, nil)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return newError(ErrorTypeInternal, message, err)
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return newError(ErrorTypeExternal, message, err)
}

// NewStoreUnavailableError is returned when the document store cannot be reached
func NewStoreUnavailableError(message string, err error) *AppError {
	return newError(ErrorTypeStoreUnavailable, message, err)
}

// NewStoreTimeoutError is returned when a document store call runs past its deadline
func NewStoreTimeoutError(message string, err error) *AppError {
	return newError(ErrorTypeStoreTimeout, message, err)
}

// NewPartialWriteError is returned when a multi-document write stopped after
// some documents were written. Repeating the call completes it.
func NewPartialWriteError(message string, err error) *AppError {
	return newError(ErrorTypePartialWrite, message, err)
}

// TypeOf returns the type of the first AppError in err's chain, or "" when there is none
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// Retryable reports whether repeating the failed call may succeed. Errors
// that are not AppErrors are assumed transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch TypeOf(err) {
	case "", ErrorTypeStoreUnavailable, ErrorTypeStoreTimeout, ErrorTypeExternal:
		return true
	default:
		return false
	}
}

// IsType reports whether the first AppError in err's chain has the given type
func IsType(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// HTTPStatus maps an error to the response status handlers should use
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeStoreUnavailable, ErrorTypeExternal:
		return http.StatusServiceUnavailable
	case ErrorTypeStoreTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypePartialWrite:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}
