package source

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BaSui01/cancelable/types"
)

// Predicate reports whether the cancellation condition holds. Evaluation
// errors are surfaced to the operation and monitoring continues.
type Predicate func(ctx context.Context) (bool, error)

// PredicateSource polls a predicate and cancels the operation with reason
// Condition when it holds. With a sustained duration configured, the
// predicate must stay true continuously for that long; a single false
// observation resets the clock.
type PredicateSource struct {
	attachment

	predicate Predicate
	interval  time.Duration
	sustained time.Duration
	name      string

	stop      chan struct{}
	done      chan struct{}
	triggered atomic.Bool
}

// PredicateOption configures a PredicateSource.
type PredicateOption func(*PredicateSource)

// WithSustainedFor requires the predicate to hold continuously for d before
// the source fires. Transient true returns shorter than d are ignored.
func WithSustainedFor(d time.Duration) PredicateOption {
	return func(s *PredicateSource) { s.sustained = d }
}

// WithPredicateName names the condition for messages and logs.
func WithPredicateName(name string) PredicateOption {
	return func(s *PredicateSource) { s.name = name }
}

// NewPredicate creates a predicate source polling every interval. A
// non-positive interval is a construction error.
func NewPredicate(p Predicate, interval time.Duration, opts ...PredicateOption) (*PredicateSource, error) {
	if p == nil {
		return nil, fmt.Errorf("predicate must not be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("check interval must be positive, got %s", interval)
	}
	s := &PredicateSource{
		predicate: p,
		interval:  interval,
		name:      "condition",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Description implements Source.
func (s *PredicateSource) Description() string {
	return fmt.Sprintf("predicate(%s, every %s)", s.name, s.interval)
}

// Activate implements Source. It spawns one monitor goroutine owned by the
// source; Deactivate stops and joins it.
func (s *PredicateSource) Activate(ctx context.Context, op Operation) error {
	if err := s.attach(op); err != nil {
		return err
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	// The monitor must not observe the operation's own cancellation, or it
	// would die before reporting the trigger that caused it.
	monitorCtx := context.WithoutCancel(ctx)
	go s.monitor(monitorCtx, op)
	return nil
}

func (s *PredicateSource) monitor(ctx context.Context, op Operation) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var firstTrue time.Time
	checks := 0

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		checks++
		ok, err := s.predicate(ctx)
		if err != nil {
			op.OnSourceError(fmt.Errorf("predicate %q check failed: %w", s.name, err))
			continue
		}

		if !ok {
			firstTrue = time.Time{}
			continue
		}

		if s.sustained > 0 {
			if firstTrue.IsZero() {
				firstTrue = time.Now()
			}
			if time.Since(firstTrue) < s.sustained {
				continue
			}
		}

		s.triggered.Store(true)
		op.Token().CancelSync(types.ReasonCondition,
			fmt.Sprintf("condition %q met after %d checks", s.name, checks))
		return
	}
}

// Deactivate implements Source. The monitor goroutine is stopped and joined.
func (s *PredicateSource) Deactivate(ctx context.Context) error {
	if !s.detach() {
		return nil
	}
	close(s.stop)
	<-s.done
	return nil
}

// Triggered implements Source.
func (s *PredicateSource) Triggered() bool {
	return s.triggered.Load()
}
