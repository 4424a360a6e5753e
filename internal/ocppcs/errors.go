// Package ocppcs implements the OCPP-J protocol runtime: frame codec,
// version adapter, router, correlation engine, and session coordinator.
package ocppcs

import (
	"errors"
	"fmt"
)

// ErrorCode is one of the OCPP-J CallError error codes.
type ErrorCode string

const (
	ErrNotImplemented                ErrorCode = "NotImplemented"
	ErrNotSupported                  ErrorCode = "NotSupported"
	ErrInternalError                 ErrorCode = "InternalError"
	ErrProtocolError                 ErrorCode = "ProtocolError"
	ErrSecurityError                 ErrorCode = "SecurityError"
	ErrFormationViolation            ErrorCode = "FormationViolation"
	ErrPropertyConstraintViolation   ErrorCode = "PropertyConstraintViolation"
	ErrOccurrenceConstraintViolation ErrorCode = "OccurrenceConstraintViolation"
	ErrTypeConstraintViolation       ErrorCode = "TypeConstraintViolation"
	ErrGenericError                  ErrorCode = "GenericError"

	// ErrTimeout never appears on the wire. A Call that times out locally is
	// surfaced to the caller as this error; the remote end is never told.
	ErrTimeout ErrorCode = "Timeout"
)

// CentralSystemError carries an OCPP-J error code plus a human-readable
// message and optional structured details, and is the only error type the
// codec will translate into a CallError frame.
type CentralSystemError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

func (e *CentralSystemError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a CentralSystemError with no details.
func NewError(code ErrorCode, message string) *CentralSystemError {
	return &CentralSystemError{Code: code, Message: message}
}

// NewErrorf builds a CentralSystemError with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *CentralSystemError {
	return &CentralSystemError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrSessionClosed is returned by Router.Call when the session has already
// been torn down before the Call starts.
var ErrSessionClosed = NewError(ErrGenericError, "session closed")

// ErrUnknownAction is returned internally when no handler is registered for
// an inbound action; the router converts it to a NotImplemented CallError.
func ErrUnknownAction(action string) *CentralSystemError {
	return NewErrorf(ErrNotImplemented, "no handler registered for action %q", action)
}

// AsCentralSystemError converts any error into a CentralSystemError, falling
// back to InternalError for errors the handler code didn't annotate.
func AsCentralSystemError(err error) *CentralSystemError {
	if err == nil {
		return nil
	}
	var cse *CentralSystemError
	if errors.As(err, &cse) {
		return cse
	}
	return &CentralSystemError{Code: ErrInternalError, Message: err.Error()}
}
