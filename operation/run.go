package operation

import (
	"context"
	"time"
)

// RunScoped creates an operation, runs fn inside it with the operation
// injected, and finalizes it on every path. It is the function-wrapping
// convenience form of New + Run.
func RunScoped(ctx context.Context, fn func(ctx context.Context, op *Operation) error, opts ...Option) error {
	op := New(opts...)
	return op.Run(ctx, func(ctx context.Context) error {
		return fn(ctx, op)
	})
}

// RunWithTimeout is RunScoped with a deadline source installed.
func RunWithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context, op *Operation) error, opts ...Option) error {
	op, err := NewWithTimeout(d, opts...)
	if err != nil {
		return err
	}
	return op.Run(ctx, func(ctx context.Context) error {
		return fn(ctx, op)
	})
}
