package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/cancelable/types"
)

// stubOp is a minimal registry.Operation for tests.
type stubOp struct {
	octx *types.OperationContext

	mu        sync.Mutex
	cancelled bool
	reason    types.CancellationReason
}

func newStubOp(id, name, parentID string) *stubOp {
	octx := types.NewOperationContext(id, name, parentID, nil)
	_ = octx.SetStatus(types.StatusRunning)
	return &stubOp{octx: octx}
}

func (s *stubOp) ID() string               { return s.octx.ID() }
func (s *stubOp) Name() string             { return s.octx.Name() }
func (s *stubOp) Snapshot() types.Snapshot { return s.octx.Snapshot() }

func (s *stubOp) Cancel(ctx context.Context, reason types.CancellationReason, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	s.reason = reason
	s.octx.SetCancellation(reason, message)
	return nil
}

func (s *stubOp) wasCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	reg := New()
	op := newStubOp("op-1", "job", "")
	require.NoError(t, reg.Register(op))

	got, ok := reg.Get("op-1")
	require.True(t, ok)
	assert.Equal(t, "op-1", got.ID())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_DuplicateIDFails(t *testing.T) {
	t.Parallel()

	reg := New()
	require.NoError(t, reg.Register(newStubOp("dup", "", "")))
	err := reg.Register(newStubOp("dup", "", ""))
	assert.ErrorIs(t, err, types.ErrDuplicateOperation)
}

func TestRegistry_UnregisterMovesToHistory(t *testing.T) {
	t.Parallel()

	reg := New()
	op := newStubOp("op-1", "job", "")
	require.NoError(t, reg.Register(op))

	reg.Unregister("op-1")
	_, ok := reg.Get("op-1")
	assert.False(t, ok)

	snap, ok := reg.Lookup("op-1")
	require.True(t, ok)
	assert.Equal(t, "op-1", snap.ID)
	assert.Len(t, reg.History(0), 1)

	// Unknown id is a no-op, not an error.
	reg.Unregister("never-registered")
	assert.Len(t, reg.History(0), 1)
}

func TestRegistry_ListFilters(t *testing.T) {
	t.Parallel()

	reg := New()
	require.NoError(t, reg.Register(newStubOp("a", "fetch-users", "")))
	require.NoError(t, reg.Register(newStubOp("b", "fetch-orders", "a")))
	require.NoError(t, reg.Register(newStubOp("c", "cleanup", "a")))

	assert.Len(t, reg.List(Filter{}), 3)
	assert.Len(t, reg.List(Filter{NamePattern: "fetch-*"}), 2)
	assert.Len(t, reg.List(Filter{ParentID: "a"}), 2)
	assert.Len(t, reg.List(Filter{Status: types.StatusRunning}), 3)
	assert.Empty(t, reg.List(Filter{Status: types.StatusCancelled}))
	assert.Empty(t, reg.List(Filter{MinAge: time.Hour}))
	assert.Len(t, reg.List(Filter{MaxAge: time.Hour}), 3)
}

func TestRegistry_Children(t *testing.T) {
	t.Parallel()

	reg := New()
	require.NoError(t, reg.Register(newStubOp("p", "parent", "")))
	require.NoError(t, reg.Register(newStubOp("c1", "child", "p")))
	require.NoError(t, reg.Register(newStubOp("c2", "child", "p")))

	kids := reg.Children("p")
	assert.Len(t, kids, 2)
}

func TestRegistry_CancelOperation(t *testing.T) {
	t.Parallel()

	reg := New()
	op := newStubOp("op-1", "", "")
	require.NoError(t, reg.Register(op))

	ok := reg.CancelOperation(context.Background(), "op-1", types.ReasonManual, "stop")
	require.True(t, ok)
	assert.True(t, op.wasCancelled())

	assert.False(t, reg.CancelOperation(context.Background(), "missing", types.ReasonManual, ""))
}

func TestRegistry_CancelAllWithPattern(t *testing.T) {
	t.Parallel()

	reg := New()
	targets := []*stubOp{
		newStubOp("a", "batch-1", ""),
		newStubOp("b", "batch-2", ""),
	}
	other := newStubOp("c", "interactive", "")
	for _, op := range targets {
		require.NoError(t, reg.Register(op))
	}
	require.NoError(t, reg.Register(other))

	count := reg.CancelAll(context.Background(), Filter{NamePattern: "batch-*"}, types.ReasonManual, "shutdown")
	assert.Equal(t, 2, count)
	for _, op := range targets {
		assert.True(t, op.wasCancelled())
	}
	assert.False(t, other.wasCancelled())
}

func TestRegistry_HistoryTrimsAtCap(t *testing.T) {
	t.Parallel()

	reg := New(WithHistoryLimit(3))
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, reg.Register(newStubOp(id, "", "")))
		reg.Unregister(id)
	}

	hist := reg.History(0)
	require.Len(t, hist, 3)
	assert.Equal(t, "3", hist[0].ID)
	assert.Equal(t, "5", hist[2].ID)

	assert.Len(t, reg.History(2), 2)
}

func TestRegistry_CleanupCompleted(t *testing.T) {
	t.Parallel()

	reg := New()
	require.NoError(t, reg.Register(newStubOp("old", "", "")))
	reg.Unregister("old")

	// Entries newer than the cutoff survive.
	assert.Equal(t, 0, reg.CleanupCompleted(time.Hour))
	assert.Len(t, reg.History(0), 1)

	// Wholesale trim.
	assert.Equal(t, 1, reg.CleanupCompleted(0))
	assert.Empty(t, reg.History(0))
}

func TestRegistry_Clear(t *testing.T) {
	t.Parallel()

	reg := New()
	op := newStubOp("op-1", "", "")
	require.NoError(t, reg.Register(op))
	reg.Unregister("op-1")
	require.NoError(t, reg.Register(newStubOp("op-2", "", "")))

	reg.Clear()
	assert.Empty(t, reg.List(Filter{}))
	assert.Empty(t, reg.History(0))
	// Clear does not cancel.
	assert.False(t, op.wasCancelled())
}

func TestRegistry_Stats(t *testing.T) {
	t.Parallel()

	reg := New()
	require.NoError(t, reg.Register(newStubOp("a", "", "")))
	require.NoError(t, reg.Register(newStubOp("b", "", "")))
	reg.Unregister("b")

	stats := reg.Stats()
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.ActiveByStatus[types.StatusRunning])
	assert.Equal(t, 1, stats.HistorySize)
}

func TestDefault_Singleton(t *testing.T) {
	t.Parallel()

	assert.Same(t, Default(), Default())
}
