package token

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/cancelable/bridge"
	"github.com/BaSui01/cancelable/types"
)

// Callback is invoked when a token is cancelled. Errors are logged and never
// interrupt cancellation delivery.
type Callback func(ctx context.Context, t *Token) error

// Token is a thread-safe one-shot cancellation signal. Once cancelled it stays
// cancelled; the recorded reason and message are immutable afterwards.
//
// Waiters observe cancellation through Done or Wait. Sync code distinguishes
// reasons via Check, which returns the reason-tagged domain error; ctx-aware
// code typically observes the runtime's context cancellation and then reads
// Reason and Message.
type Token struct {
	id string

	mu        sync.Mutex
	cancelled atomic.Bool
	reason    types.CancellationReason
	message   string
	firedAt   time.Time
	done      chan struct{}
	callbacks []*callbackEntry

	// runtime handle, captured at first observation. CancelSync marshals
	// callback execution through it; the flag and done channel never need it.
	runtime atomic.Pointer[bridge.Bridge]

	logger *zap.Logger
}

type callbackEntry struct {
	cb      Callback
	removed atomic.Bool
}

// Option configures a Token.
type Option func(*Token)

// WithLogger sets the token logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Token) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithBridge binds the runtime bridge used by CancelSync.
func WithBridge(b *bridge.Bridge) Option {
	return func(t *Token) {
		if b != nil {
			t.runtime.Store(b)
		}
	}
}

// New creates an uncancelled token.
func New(opts ...Option) *Token {
	t := &Token{
		id:     uuid.NewString(),
		done:   make(chan struct{}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the token identifier.
func (t *Token) ID() string { return t.id }

// IsCancelled reports whether the token has fired.
func (t *Token) IsCancelled() bool { return t.cancelled.Load() }

// Reason returns the recorded cancellation reason, "" while active.
func (t *Token) Reason() types.CancellationReason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Message returns the recorded cancellation message.
func (t *Token) Message() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.message
}

// FiredAt returns when the token was cancelled, zero while active.
func (t *Token) FiredAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.firedAt
}

// Done returns a channel closed when the token fires.
func (t *Token) Done() <-chan struct{} { return t.done }

// BindBridge captures the runtime handle used by CancelSync to marshal
// callbacks. The first binding wins; later calls are no-ops.
func (t *Token) BindBridge(b *bridge.Bridge) {
	if b != nil {
		t.runtime.CompareAndSwap(nil, b)
	}
}

// Cancel fires the token. It performs the one-shot transition, wakes all
// waiters and invokes registered callbacks sequentially in registration
// order. Returns false when the token was already cancelled.
func (t *Token) Cancel(ctx context.Context, reason types.CancellationReason, message string) bool {
	cbs, ok := t.fire(reason, message)
	if !ok {
		return false
	}
	t.invoke(ctx, cbs)
	return true
}

// CancelSync fires the token from any goroutine or OS-thread context. The
// atomic flag and the waiter channel are updated immediately; callback
// execution is marshalled onto the bound bridge when one is running, and
// runs inline otherwise. Returns false when already cancelled.
func (t *Token) CancelSync(reason types.CancellationReason, message string) bool {
	cbs, ok := t.fire(reason, message)
	if !ok {
		return false
	}
	if rt := t.runtime.Load(); rt != nil && rt.Started() {
		rt.CallSoon(func(ctx context.Context) {
			t.invoke(ctx, cbs)
		})
		return true
	}
	t.invoke(context.Background(), cbs)
	return true
}

// fire performs the guarded transition and returns the callbacks to run.
func (t *Token) fire(reason types.CancellationReason, message string) ([]*callbackEntry, bool) {
	t.mu.Lock()
	if t.cancelled.Load() {
		t.mu.Unlock()
		t.logger.Debug("token already cancelled",
			zap.String("token_id", t.id),
			zap.String("original_reason", string(t.reason)),
		)
		return nil, false
	}
	t.cancelled.Store(true)
	t.reason = reason
	t.message = message
	t.firedAt = time.Now()
	cbs := make([]*callbackEntry, len(t.callbacks))
	copy(cbs, t.callbacks)
	close(t.done)
	t.mu.Unlock()

	t.logger.Debug("token cancelled",
		zap.String("token_id", t.id),
		zap.String("reason", string(reason)),
		zap.String("message", message),
		zap.Int("callback_count", len(cbs)),
	)
	return cbs, true
}

// invoke runs callbacks outside the lock, isolating individual failures.
func (t *Token) invoke(ctx context.Context, cbs []*callbackEntry) {
	for i, entry := range cbs {
		if entry.removed.Load() {
			continue
		}
		if err := entry.cb(ctx, t); err != nil {
			t.logger.Error("cancellation callback failed",
				zap.String("token_id", t.id),
				zap.Int("callback_index", i),
				zap.Error(err),
			)
		}
	}
}

// Check returns the reason-tagged cancellation error when the token has
// fired, nil otherwise. This is the synchronous observation point.
func (t *Token) Check() error {
	if !t.cancelled.Load() {
		return nil
	}
	t.mu.Lock()
	reason, message := t.reason, t.message
	t.mu.Unlock()
	return types.NewCancellationError(reason, message)
}

// Err is a non-panicking alias for Check, for wrappers that treat the token
// like a context.
func (t *Token) Err() error {
	return t.Check()
}

// Wait blocks until the token fires or ctx is cancelled. It returns nil on
// token cancellation and the context cause otherwise.
func (t *Token) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// RegisterCallback registers cb to run on cancellation and returns an
// idempotent removal func. When the token has already fired, cb runs
// immediately with the recorded reason and message.
func (t *Token) RegisterCallback(ctx context.Context, cb Callback) (remove func()) {
	if cb == nil {
		return func() {}
	}
	entry := &callbackEntry{cb: cb}

	t.mu.Lock()
	fired := t.cancelled.Load()
	if !fired {
		t.callbacks = append(t.callbacks, entry)
	}
	t.mu.Unlock()

	if fired {
		if err := cb(ctx, t); err != nil {
			t.logger.Error("immediate cancellation callback failed",
				zap.String("token_id", t.id),
				zap.Error(err),
			)
		}
	}
	return func() { entry.removed.Store(true) }
}

// clearCallbacks drops the callback list. Linked tokens use it to break
// reference cycles once the child has fired.
func (t *Token) clearCallbacks() {
	t.mu.Lock()
	t.callbacks = nil
	t.mu.Unlock()
}
