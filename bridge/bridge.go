package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultBufferSize is the task queue capacity of the default bridge.
const DefaultBufferSize = 1000

// Task is a unit of work marshalled onto the bridge goroutine.
type Task func(ctx context.Context)

// Bridge marshals callbacks from arbitrary goroutines and OS-thread contexts
// (signal handlers) onto a single owning goroutine. It is the Go counterpart
// of an event loop's call_soon_threadsafe.
//
// Tasks submitted before Run starts are queued and drained on startup.
// When the buffer is full, tasks are dropped with a logged warning; the queue
// bound keeps a misbehaving producer from exhausting memory once the bridge
// runs. The pre-start queue itself is not bounded; tasks beyond the buffer
// capacity are dropped when Run drains it.
type Bridge struct {
	tasks   chan Task
	started atomic.Bool

	mu      sync.Mutex
	pending []Task

	logger *zap.Logger
}

// New creates a bridge with the given queue capacity.
func New(size int, logger *zap.Logger) *Bridge {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		tasks:  make(chan Task, size),
		logger: logger.With(zap.String("component", "bridge")),
	}
}

var (
	defaultBridge *Bridge
	defaultOnce   sync.Once
)

// Default returns the process-wide bridge, created lazily on first use.
// The host application is responsible for running it (Run).
func Default() *Bridge {
	defaultOnce.Do(func() {
		defaultBridge = New(DefaultBufferSize, nil)
	})
	return defaultBridge
}

// Run executes queued tasks on the calling goroutine until ctx is cancelled.
// It returns ctx.Err() on shutdown. Calling Run twice is rejected.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		b.logger.Warn("bridge already started, ignoring duplicate run")
		return nil
	}

	// Drain tasks that arrived before startup.
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, task := range pending {
		select {
		case b.tasks <- task:
		default:
			b.logger.Warn("bridge queue full during startup, task dropped")
		}
	}

	b.logger.Debug("bridge started")

	for {
		select {
		case <-ctx.Done():
			b.started.Store(false)
			return ctx.Err()
		case task := <-b.tasks:
			b.run(ctx, task)
		}
	}
}

func (b *Bridge) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bridge task panicked", zap.Any("panic", r))
		}
	}()
	task(ctx)
}

// CallSoon schedules task to run on the bridge goroutine. Safe to call from
// any goroutine, including signal-handling contexts. Tasks submitted before
// the bridge runs are queued; a full queue drops the task with a warning.
func (b *Bridge) CallSoon(task Task) {
	if task == nil {
		return
	}
	if !b.started.Load() {
		b.mu.Lock()
		// Re-check under the lock so a concurrent Run does not strand the task.
		if !b.started.Load() {
			b.pending = append(b.pending, task)
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()
	}
	select {
	case b.tasks <- task:
	default:
		b.logger.Warn("bridge queue full, task dropped",
			zap.Int("capacity", cap(b.tasks)),
		)
	}
}

// Started reports whether the bridge worker loop is running.
func (b *Bridge) Started() bool {
	return b.started.Load()
}

// RunInThread offloads fn to its own goroutine and waits for the result,
// remaining cancellable at the await point. When ctx is cancelled first, the
// worker keeps running to completion and its result is discarded.
func RunInThread[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	out := make(chan result, 1)
	go func() {
		val, err := fn()
		out <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, context.Cause(ctx)
	case r := <-out:
		return r.val, r.err
	}
}
