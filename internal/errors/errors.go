// Package errors provides the error taxonomy of the sync core.
package errors

import (
	stderrors "errors"
	"fmt"
	"net"
	"strings"
)

// ErrorCode classifies an AppError.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Storage errors
	ErrDatabase   ErrorCode = "DATABASE_ERROR"
	ErrMigration  ErrorCode = "MIGRATION_FAILED"
	ErrConstraint ErrorCode = "CONSTRAINT_VIOLATION"

	// Network errors
	ErrNetwork  ErrorCode = "NETWORK_ERROR"
	ErrProtocol ErrorCode = "PROTOCOL_ERROR"

	// Sync errors
	ErrSyncFailed     ErrorCode = "SYNC_FAILED"
	ErrSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"
	ErrSyncOffline    ErrorCode = "SYNC_OFFLINE"
	ErrUnknownEntity  ErrorCode = "UNKNOWN_ENTITY"
)

// AppError represents an application error with code and message.
// Status carries the HTTP status of protocol errors and is zero otherwise.
type AppError struct {
	Code    ErrorCode
	Message string
	Status  int
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code. A nil err yields nil.
func Wrap(code ErrorCode, message string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Status creates a protocol error for an unexpected HTTP response.
func Status(status int, message string) *AppError {
	return &AppError{
		Code:    ErrProtocol,
		Message: message,
		Status:  status,
	}
}

// Is checks whether any error in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// HTTPStatus returns the HTTP status recorded in err's chain, or 0.
func HTTPStatus(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}

// networkPatterns are message fragments produced by unreachable networks.
var networkPatterns = []string{
	"Network request failed",
	"Network",
	"network",
	"Failed to fetch",
	"connection refused",
	"connection reset",
	"no such host",
	"no route to host",
	"i/o timeout",
	"Client.Timeout exceeded",
}

// IsNetworkError reports whether err means the server could not be reached.
// It only selects log severity; callers must not branch retry logic on it.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrNetwork) {
		return true
	}
	if Is(err, ErrProtocol) {
		return false
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
