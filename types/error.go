package types

import (
	"context"
	"errors"
	"fmt"
)

// Usage errors. These indicate incorrect API use and fail fast.
var (
	ErrAlreadyEntered     = errors.New("operation already entered")
	ErrNotEntered         = errors.New("operation not entered")
	ErrAlreadyExited      = errors.New("operation already exited")
	ErrDuplicateOperation = errors.New("operation id already registered")
	ErrSourceReused       = errors.New("source already activated")
	ErrParentNotRunning   = errors.New("parent operation is not running")
)

// CancellationError is the domain cancellation error carrying the reason and
// message recorded on the token. It unwraps to context.Canceled so that
// errors.Is(err, context.Canceled) holds and ctx-aware code treats it as
// ordinary cooperative cancellation.
type CancellationError struct {
	Reason      CancellationReason
	Message     string
	OperationID string
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("operation cancelled (%s): %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("operation cancelled (%s)", e.Reason)
}

// Unwrap makes the error match context.Canceled.
func (e *CancellationError) Unwrap() error {
	return context.Canceled
}

// NewCancellationError creates a cancellation error for the given reason.
func NewCancellationError(reason CancellationReason, message string) *CancellationError {
	return &CancellationError{Reason: reason, Message: message}
}

// NewTimeoutError creates a timeout cancellation error.
func NewTimeoutError(message string) *CancellationError {
	if message == "" {
		message = "operation timed out"
	}
	return &CancellationError{Reason: ReasonTimeout, Message: message}
}

// NewManualError creates a manual cancellation error.
func NewManualError(message string) *CancellationError {
	if message == "" {
		message = "operation cancelled manually"
	}
	return &CancellationError{Reason: ReasonManual, Message: message}
}

// NewSignalError creates a signal cancellation error for the given signal name.
func NewSignalError(signal string, message string) *CancellationError {
	if message == "" {
		message = fmt.Sprintf("operation cancelled by signal %s", signal)
	}
	return &CancellationError{Reason: ReasonSignal, Message: message}
}

// NewConditionError creates a condition cancellation error.
func NewConditionError(message string) *CancellationError {
	if message == "" {
		message = "operation cancelled: condition met"
	}
	return &CancellationError{Reason: ReasonCondition, Message: message}
}

// NewParentError creates a parent-propagated cancellation error.
func NewParentError(parentID string, message string) *CancellationError {
	if message == "" {
		message = fmt.Sprintf("parent operation %s cancelled", parentID)
	}
	return &CancellationError{Reason: ReasonParent, Message: message}
}

// NewSourceError creates a cancellation error caused by a failed source.
func NewSourceError(message string) *CancellationError {
	if message == "" {
		message = "operation cancelled: source failure"
	}
	return &CancellationError{Reason: ReasonError, Message: message}
}

// IsCancellation reports whether err represents cooperative cancellation,
// either the domain error or the runtime's native context errors.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ReasonOf extracts the cancellation reason from err, if any.
func ReasonOf(err error) (CancellationReason, bool) {
	var ce *CancellationError
	if errors.As(err, &ce) {
		return ce.Reason, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout, true
	}
	return "", false
}
