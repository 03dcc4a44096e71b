package source

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/cancelable/types"
)

// DeadlineSource cancels the operation with reason Timeout once a deadline
// passes. Timers run on the monotonic clock.
type DeadlineSource struct {
	attachment

	duration time.Duration
	absolute time.Time

	timerMu   sync.Mutex
	timer     *time.Timer
	deadline  time.Time
	triggered atomic.Bool
}

// NewDeadline creates a source that fires after d. A negative duration is a
// construction error; zero fires at the first suspension after activation.
func NewDeadline(d time.Duration) (*DeadlineSource, error) {
	if d < 0 {
		return nil, fmt.Errorf("deadline duration must not be negative, got %s", d)
	}
	return &DeadlineSource{duration: d}, nil
}

// NewDeadlineAt creates a source that fires at the absolute time t. A time in
// the past causes immediate cancellation on activation.
func NewDeadlineAt(t time.Time) *DeadlineSource {
	return &DeadlineSource{absolute: t}
}

// Description implements Source.
func (s *DeadlineSource) Description() string {
	if !s.absolute.IsZero() {
		return fmt.Sprintf("deadline(at %s)", s.absolute.Format(time.RFC3339))
	}
	return fmt.Sprintf("deadline(%s)", s.duration)
}

// Deadline returns the absolute deadline, zero before activation when the
// source was built from a duration.
func (s *DeadlineSource) Deadline() time.Time {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if !s.deadline.IsZero() {
		return s.deadline
	}
	return s.absolute
}

// Activate implements Source. The deadline is reported to the operation's
// cancel handle; an armed timer marks the source triggered and fires the
// token when the deadline passes.
func (s *DeadlineSource) Activate(ctx context.Context, op Operation) error {
	if err := s.attach(op); err != nil {
		return err
	}

	deadline := s.absolute
	if deadline.IsZero() {
		deadline = time.Now().Add(s.duration)
	}

	s.timerMu.Lock()
	s.deadline = deadline
	s.timerMu.Unlock()

	op.SetDeadline(deadline)

	remaining := time.Until(deadline)
	if remaining <= 0 {
		s.fire(op)
		return nil
	}

	s.timerMu.Lock()
	s.timer = time.AfterFunc(remaining, func() {
		if attached := s.operation(); attached != nil {
			s.fire(attached)
		}
	})
	s.timerMu.Unlock()
	return nil
}

func (s *DeadlineSource) fire(op Operation) {
	if !s.triggered.CompareAndSwap(false, true) {
		return
	}
	op.Token().CancelSync(types.ReasonTimeout, fmt.Sprintf("deadline exceeded after %s", s.elapsedHint()))
}

func (s *DeadlineSource) elapsedHint() string {
	if s.duration > 0 {
		return s.duration.String()
	}
	return "deadline"
}

// Deactivate implements Source.
func (s *DeadlineSource) Deactivate(ctx context.Context) error {
	if !s.detach() {
		return nil
	}
	s.timerMu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerMu.Unlock()
	return nil
}

// Triggered implements Source.
func (s *DeadlineSource) Triggered() bool {
	return s.triggered.Load()
}
