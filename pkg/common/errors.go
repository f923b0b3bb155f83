package common

import (
	"errors"
	"net/http"
)

// Common error types
var (
	ErrNoLiveSession     = errors.New("no live ride session")
	ErrSessionLive       = errors.New("a ride session is already live")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrOTPMismatch       = errors.New("otp does not match")
	ErrReasonRequired    = errors.New("cancellation reason required")
	ErrNotConnected      = errors.New("dispatch connection is down")
	ErrRemoteRejected    = errors.New("rejected by dispatch server")
	ErrTokenExpired      = errors.New("auth token expired")
	ErrValidation        = errors.New("validation error")
	ErrInternal          = errors.New("internal error")
)

// Kind classifies an error for propagation policy: validation errors are
// local and surfaced immediately, connection errors are retried silently,
// remote errors are authoritative, internal errors trigger defensive cleanup.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConnection Kind = "connection"
	KindRemote     Kind = "remote"
	KindInternal   Kind = "internal"
)

// AppError represents an agent error with its propagation class
type AppError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped error for errors.Is checks
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error class to a control-API status code
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConnection:
		return http.StatusServiceUnavailable
	case KindRemote:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a local, synchronous validation error
func NewValidationError(message string, err error) *AppError {
	if err == nil {
		err = ErrValidation
	}
	return &AppError{
		Kind:    KindValidation,
		Message: message,
		Err:     err,
	}
}

// NewConnectionError creates a non-fatal transport error
func NewConnectionError(message string, err error) *AppError {
	if err == nil {
		err = ErrNotConnected
	}
	return &AppError{
		Kind:    KindConnection,
		Message: message,
		Err:     err,
	}
}

// NewRemoteError creates an authoritative server-side rejection
func NewRemoteError(message string, err error) *AppError {
	if err == nil {
		err = ErrRemoteRejected
	}
	return &AppError{
		Kind:    KindRemote,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates an unexpected error that triggers cleanup
func NewInternalError(message string, err error) *AppError {
	if err == nil {
		err = ErrInternal
	}
	return &AppError{
		Kind:    KindInternal,
		Message: message,
		Err:     err,
	}
}

// AsAppError extracts an AppError from an error chain, defaulting to internal
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err.Error(), err)
}
