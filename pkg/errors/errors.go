package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrInternal

	// Dosing engine codes
	ErrConfiguration
	ErrExhausted
	ErrInvalidTransition
	ErrConflict
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Configuration marks an invalid or incomplete dosing configuration. Raised
// at creation or first computation, never silently defaulted.
func Configuration(message string) *AppError {
	return &AppError{
		Code:    ErrConfiguration,
		Message: message,
	}
}

// Exhausted marks a dose-taking attempt against a medication with no supply
// left.
func Exhausted(medication string) *AppError {
	return &AppError{
		Code:    ErrExhausted,
		Message: fmt.Sprintf("medication %s is already exhausted", medication),
	}
}

// InvalidTransition marks an operation attempted on a schedule entry that is
// not in the required source state.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot transition schedule from %s to %s", from, to),
	}
}

// Conflict marks a per-medication lock that could not be acquired. The whole
// operation is safe to retry.
func Conflict(err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: "concurrent operation in progress, retry",
		Err:     err,
	}
}

func code(err error) (ErrorCode, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return 0, false
}

func IsNotFound(err error) bool          { c, ok := code(err); return ok && c == ErrNotFound }
func IsConfiguration(err error) bool     { c, ok := code(err); return ok && c == ErrConfiguration }
func IsExhausted(err error) bool         { c, ok := code(err); return ok && c == ErrExhausted }
func IsInvalidTransition(err error) bool { c, ok := code(err); return ok && c == ErrInvalidTransition }
func IsConflict(err error) bool          { c, ok := code(err); return ok && c == ErrConflict }
