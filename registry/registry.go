package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/cancelable/types"
)

// DefaultHistoryLimit caps the completed-operation ring buffer.
const DefaultHistoryLimit = 1000

// Operation is the registry-side view of a live operation. It is satisfied
// by *operation.Operation.
type Operation interface {
	// ID returns the operation identifier.
	ID() string
	// Name returns the operation name.
	Name() string
	// Snapshot returns an independent copy of the operation state.
	Snapshot() types.Snapshot
	// Cancel cancels the operation with the given reason.
	Cancel(ctx context.Context, reason types.CancellationReason, message string) error
}

// Registry tracks live operations for introspection and bulk control, and
// retains recently completed operations for historical queries. All mutation
// is serialized by an internal lock; returned views are snapshots.
type Registry struct {
	mu           sync.Mutex
	active       map[string]Operation
	history      []types.Snapshot
	historyLimit int

	logger *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithHistoryLimit caps the history ring buffer.
func WithHistoryLimit(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.historyLimit = n
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger.With(zap.String("component", "registry"))
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		active:       make(map[string]Operation),
		historyLimit: DefaultHistoryLimit,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry, created lazily on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// Register inserts op into the active map. A duplicate id is a usage bug and
// fails fast.
func (r *Registry) Register(op Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.active[op.ID()]; exists {
		return fmt.Errorf("%w: %s", types.ErrDuplicateOperation, op.ID())
	}
	r.active[op.ID()] = op

	r.logger.Debug("operation registered",
		zap.String("operation_id", op.ID()),
		zap.String("operation_name", op.Name()),
		zap.Int("active_operations", len(r.active)),
	)
	return nil
}

// Unregister removes the operation from the active map and appends its final
// snapshot to history, trimming the oldest entries past the cap. A snapshot
// without an end time is stamped with the unregistration time. An unknown
// id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.active[id]
	if !ok {
		return
	}
	delete(r.active, id)
	snap := op.Snapshot()
	if snap.EndedAt.IsZero() {
		snap.EndedAt = time.Now()
	}
	r.appendHistoryLocked(snap)

	r.logger.Debug("operation unregistered",
		zap.String("operation_id", id),
		zap.Int("active_operations", len(r.active)),
	)
}

func (r *Registry) appendHistoryLocked(snap types.Snapshot) {
	r.history = append(r.history, snap)
	if overflow := len(r.history) - r.historyLimit; overflow > 0 {
		r.history = append(r.history[:0], r.history[overflow:]...)
	}
}

// Get returns the active operation with the given id.
func (r *Registry) Get(id string) (Operation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.active[id]
	return op, ok
}

// Lookup returns a snapshot of the operation with the given id, consulting
// the active map first and then history (most recent first).
func (r *Registry) Lookup(id string) (types.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, ok := r.active[id]; ok {
		return op.Snapshot(), true
	}
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].ID == id {
			return r.history[i], true
		}
	}
	return types.Snapshot{}, false
}

// List returns snapshots of active operations matching the filter.
func (r *Registry) List(f Filter) []types.Snapshot {
	r.mu.Lock()
	snaps := make([]types.Snapshot, 0, len(r.active))
	for _, op := range r.active {
		snaps = append(snaps, op.Snapshot())
	}
	r.mu.Unlock()

	out := snaps[:0]
	for _, snap := range snaps {
		if f.matches(snap) {
			out = append(out, snap)
		}
	}
	return out
}

// Children returns the active direct children of the given parent.
func (r *Registry) Children(parentID string) []types.Snapshot {
	return r.List(Filter{ParentID: parentID})
}

// CancelOperation cancels the active operation with the given id. It returns
// false when the id is unknown.
func (r *Registry) CancelOperation(ctx context.Context, id string, reason types.CancellationReason, message string) bool {
	op, ok := r.Get(id)
	if !ok {
		r.logger.Warn("cancel requested for unknown operation",
			zap.String("operation_id", id),
		)
		return false
	}
	if err := op.Cancel(ctx, reason, message); err != nil {
		r.logger.Error("operation cancel failed",
			zap.String("operation_id", id),
			zap.Error(err),
		)
		return false
	}
	return true
}

// CancelAll cancels every active operation matching the filter and returns
// the number of operations cancelled. Cancellations run concurrently; the
// snapshot is taken under the lock, the cancels outside it.
func (r *Registry) CancelAll(ctx context.Context, f Filter, reason types.CancellationReason, message string) int {
	r.mu.Lock()
	targets := make([]Operation, 0, len(r.active))
	for _, op := range r.active {
		if f.matches(op.Snapshot()) {
			targets = append(targets, op)
		}
	}
	r.mu.Unlock()

	var (
		countMu sync.Mutex
		count   int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, op := range targets {
		g.Go(func() error {
			if err := op.Cancel(gctx, reason, message); err != nil {
				r.logger.Error("bulk cancel failed for operation",
					zap.String("operation_id", op.ID()),
					zap.Error(err),
				)
				return nil
			}
			countMu.Lock()
			count++
			countMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("bulk cancellation completed",
		zap.Int("cancelled_count", count),
		zap.Int("matched_count", len(targets)),
		zap.String("reason", string(reason)),
	)
	return count
}

// History returns up to limit most recent completed operations, newest last.
// A non-positive limit returns the full retained history.
func (r *Registry) History(limit int) []types.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	hist := r.history
	if limit > 0 && len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	out := make([]types.Snapshot, len(hist))
	copy(out, hist)
	return out
}

// CleanupCompleted trims history entries older than maxAge. A non-positive
// maxAge drops the whole history. Returns the number of entries removed.
func (r *Registry) CleanupCompleted(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if maxAge <= 0 {
		removed := len(r.history)
		r.history = nil
		return removed
	}
	cutoff := time.Now().Add(-maxAge)
	kept := r.history[:0]
	for _, snap := range r.history {
		if snap.EndedAt.After(cutoff) {
			kept = append(kept, snap)
		}
	}
	removed := len(r.history) - len(kept)
	r.history = kept
	return removed
}

// Clear drops all active entries and history without cancelling anything.
// Test-only.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = make(map[string]Operation)
	r.history = nil
	r.logger.Warn("registry cleared")
}

// Stats aggregates registry counts for observability consumers.
type Stats struct {
	Active          int
	ActiveByStatus  map[types.OperationStatus]int
	HistorySize     int
	HistoryByStatus map[types.OperationStatus]int
}

// Stats returns aggregate counts over active operations and history.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := Stats{
		Active:          len(r.active),
		ActiveByStatus:  make(map[types.OperationStatus]int),
		HistorySize:     len(r.history),
		HistoryByStatus: make(map[types.OperationStatus]int),
	}
	for _, op := range r.active {
		stats.ActiveByStatus[op.Snapshot().Status]++
	}
	for _, snap := range r.history {
		stats.HistoryByStatus[snap.Status]++
	}
	return stats
}
