package operation

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BaSui01/cancelable/source"
	"github.com/BaSui01/cancelable/token"
)

// NewWithTimeout constructs an operation cancelled after d. A negative
// duration is a construction error; zero cancels at the first suspension.
func NewWithTimeout(d time.Duration, opts ...Option) (*Operation, error) {
	src, err := source.NewDeadline(d)
	if err != nil {
		return nil, err
	}
	return New(append(opts, WithSources(src))...), nil
}

// NewWithDeadline constructs an operation cancelled at the absolute time t.
func NewWithDeadline(t time.Time, opts ...Option) *Operation {
	return New(append(opts, WithSources(source.NewDeadlineAt(t)))...)
}

// NewWithToken constructs an operation whose own token is the given token,
// so cancelling it cancels the operation with the caller's reason intact.
func NewWithToken(tok *token.Token, opts ...Option) *Operation {
	return New(append(opts, WithToken(tok))...)
}

// NewWithSignals constructs an operation cancelled by the given OS signals
// (SIGINT and SIGTERM when none are given).
func NewWithSignals(signals []os.Signal, opts ...Option) *Operation {
	return New(append(opts, WithSources(source.NewSignal(signals...)))...)
}

// NewWithPredicate constructs an operation cancelled when the predicate
// holds, polled every interval.
func NewWithPredicate(p source.Predicate, interval time.Duration, opts ...Option) (*Operation, error) {
	src, err := source.NewPredicate(p, interval)
	if err != nil {
		return nil, err
	}
	return New(append(opts, WithSources(src))...), nil
}

// Combine returns an aggregate operation whose token is linked to both
// operations' tokens: whichever fires first cancels the aggregate with its
// reason preserved. Child scopes may be created under the aggregate.
func (o *Operation) Combine(other *Operation, opts ...Option) *Operation {
	lt := token.NewLinked(context.Background(), []*token.Token{o.tok, other.tok})
	name := o.Name()
	if name == "" {
		name = o.ID()
	}
	base := []Option{
		WithName(fmt.Sprintf("combined_%s", name)),
		WithToken(lt.Token),
		WithMetadata(map[string]any{
			"combined_from": []string{o.ID(), other.ID()},
		}),
	}
	return New(append(base, opts...)...)
}
