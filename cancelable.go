// Package cancelable provides a top-level convenience entry point for the
// cancellation coordination library.
//
// Usage:
//
//	import "github.com/BaSui01/cancelable"
//
//	op, err := cancelable.WithTimeout(5 * time.Second, cancelable.WithName("fetch"))
//	err = op.Run(ctx, func(ctx context.Context) error { ... })
//
// This is a thin wrapper around the operation, token and registry packages;
// both spellings produce identical results. Use this package when you prefer
// the shorter import path.
package cancelable

import (
	"context"

	"github.com/BaSui01/cancelable/operation"
	"github.com/BaSui01/cancelable/registry"
	"github.com/BaSui01/cancelable/token"
	"github.com/BaSui01/cancelable/types"
)

// Option configures an operation created by the factory functions.
type Option = operation.Option

// Operation is a scoped cancellable operation.
type Operation = operation.Operation

// Token is the thread-safe one-shot cancellation signal.
type Token = token.Token

// Cancellation reasons.
const (
	ReasonTimeout   = types.ReasonTimeout
	ReasonManual    = types.ReasonManual
	ReasonSignal    = types.ReasonSignal
	ReasonCondition = types.ReasonCondition
	ReasonParent    = types.ReasonParent
	ReasonError     = types.ReasonError
)

// Operation statuses.
const (
	StatusPending   = types.StatusPending
	StatusRunning   = types.StatusRunning
	StatusCompleted = types.StatusCompleted
	StatusCancelled = types.StatusCancelled
	StatusFailed    = types.StatusFailed
	StatusShielded  = types.StatusShielded
)

// New constructs an operation.
var New = operation.New

// WithTimeout constructs an operation cancelled after the given duration.
var WithTimeout = operation.NewWithTimeout

// WithDeadline constructs an operation cancelled at an absolute time.
var WithDeadline = operation.NewWithDeadline

// WithToken constructs an operation around an externally owned token.
var WithToken = operation.NewWithToken

// WithSignals constructs an operation cancelled by OS signals.
var WithSignals = operation.NewWithSignals

// WithPredicate constructs an operation cancelled when a predicate holds.
var WithPredicate = operation.NewWithPredicate

// WithName sets the operation name.
var WithName = operation.WithName

// WithParent links the operation under a parent.
var WithParent = operation.WithParent

// NewToken creates an uncancelled token.
var NewToken = token.New

// Registry returns the process-wide operation registry.
var Registry = registry.Default

// Current returns the innermost active operation, nil outside any scope.
func Current(ctx context.Context) *Operation {
	return operation.Current(ctx)
}

// IsCancellation reports whether err represents cooperative cancellation.
var IsCancellation = types.IsCancellation
