package operation

import "context"

// Wrap returns a callable that performs a synchronous cancellation check on
// the token before each invocation of fn.
func (o *Operation) Wrap(fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := o.tok.Check(); err != nil {
			return err
		}
		return fn(ctx)
	}
}

// Call checks the token and invokes fn. It is the call-site convenience form
// of Wrap for one-off invocations.
func (o *Operation) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := o.tok.Check(); err != nil {
		return err
	}
	return fn(ctx)
}
