package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeUnauthenticated indicates the caller has no valid session.
	ErrCodeUnauthenticated ErrorCode = "unauthenticated"
	// ErrCodeForbidden indicates the caller's role is not allowed for the operation.
	ErrCodeForbidden ErrorCode = "forbidden"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeForeignKey indicates a foreign key constraint violation.
	ErrCodeForeignKey ErrorCode = "foreign_key"
	// ErrCodeUpstream indicates an external service failed.
	ErrCodeUpstream ErrorCode = "upstream"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	ErrCodeTimeout  ErrorCode = "timeout"
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError is a structured application error with a code, message and optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending input for validation errors.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Unauthenticated creates a new Unauthenticated error.
func Unauthenticated(message string) *AppError { return newAppError(ErrCodeUnauthenticated, message) }

// Forbidden creates a new Forbidden error.
func Forbidden(message string) *AppError { return newAppError(ErrCodeForbidden, message) }

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError { return newAppError(ErrCodeNotFound, message) }

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return newAppError(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError { return newAppError(ErrCodeConflict, message) }

// Validation creates a new Validation error.
func Validation(message string) *AppError { return newAppError(ErrCodeValidation, message) }

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return newAppError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Upstream wraps a failure reported by an external service.
func Upstream(err error, message string) *AppError {
	return &AppError{Code: ErrCodeUpstream, Message: message, Cause: err}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError { return newAppError(ErrCodeInternal, message) }

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsAppError reports whether err is an AppError carrying code.
func IsAppError(err error, code ErrorCode) bool { return isCode(err, code) }

func IsUnauthenticated(err error) bool { return isCode(err, ErrCodeUnauthenticated) }
func IsForbidden(err error) bool       { return isCode(err, ErrCodeForbidden) }
func IsNotFound(err error) bool        { return isCode(err, ErrCodeNotFound) }
func IsConflict(err error) bool        { return isCode(err, ErrCodeConflict) }
func IsValidation(err error) bool      { return isCode(err, ErrCodeValidation) }
func IsForeignKey(err error) bool      { return isCode(err, ErrCodeForeignKey) }
func IsUpstream(err error) bool        { return isCode(err, ErrCodeUpstream) }
func IsInternal(err error) bool        { return isCode(err, ErrCodeInternal) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
