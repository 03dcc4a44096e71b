package operation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/cancelable/registry"
	"github.com/BaSui01/cancelable/testutil"
	"github.com/BaSui01/cancelable/types"
)

// S6: cancelling a parent cancels both children with reason parent before the
// parent finishes, and all three leave the registry.
func TestHierarchy_ParentCancelScenario(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	parent := New(WithName("p"), WithRegistry(reg))

	parentCtx, err := parent.Enter(context.Background())
	require.NoError(t, err)

	c1 := New(WithName("c1"), WithParent(parent), WithRegistry(reg))
	c2 := New(WithName("c2"), WithParent(parent), WithRegistry(reg))

	var wg sync.WaitGroup
	for _, child := range []*Operation{c1, c2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = child.Run(parentCtx, func(ctx context.Context) error {
				<-ctx.Done()
				return context.Cause(ctx)
			})
		}()
	}

	// Wait for both children to be live under the parent.
	testutil.Eventually(t, func() bool { return len(parent.Children()) == 2 }, 2*time.Second)
	require.Len(t, parent.Children(), 2)
	require.Len(t, reg.Children(parent.ID()), 2)

	require.NoError(t, parent.Cancel(parentCtx, types.ReasonManual, "p-stop"))
	err = parent.Exit(parentCtx, context.Cause(parentCtx))
	require.Error(t, err)
	wg.Wait()

	assert.Equal(t, types.StatusCancelled, parent.Status())
	assert.Equal(t, types.ReasonManual, parent.Reason())
	for _, child := range []*Operation{c1, c2} {
		assert.Equal(t, types.StatusCancelled, child.Status())
		assert.Equal(t, types.ReasonParent, child.Reason())
	}

	// All three are out of the active registry.
	assert.Empty(t, reg.List(registry.Filter{}))
	snap, ok := reg.Lookup(c1.ID())
	require.True(t, ok)
	assert.Equal(t, types.ReasonParent, snap.CancelReason)
}

// Invariant 2: child cancellation completes before the parent's exit
// finishes, within the shutdown budget.
func TestHierarchy_ChildrenExitBeforeParent(t *testing.T) {
	t.Parallel()

	parent := New(WithName("p"), WithoutRegistration())
	parentCtx, err := parent.Enter(context.Background())
	require.NoError(t, err)

	child := New(WithName("c"), WithParent(parent), WithoutRegistration())
	childExited := make(chan struct{})
	go func() {
		defer close(childExited)
		_ = child.Run(parentCtx, func(ctx context.Context) error {
			<-ctx.Done()
			return context.Cause(ctx)
		})
	}()

	testutil.Eventually(t, func() bool { return len(parent.Children()) == 1 }, 2*time.Second)
	require.Len(t, parent.Children(), 1)

	require.NoError(t, parent.Cancel(parentCtx, types.ReasonManual, ""))
	_ = parent.Exit(parentCtx, context.Cause(parentCtx))

	select {
	case <-childExited:
	default:
		t.Fatal("parent exit returned before child exited")
	}
	assert.Empty(t, parent.Children())
}

func TestHierarchy_ShutdownBudgetBounded(t *testing.T) {
	t.Parallel()

	parent := New(WithoutRegistration(), WithShutdownBudget(50*time.Millisecond))
	parentCtx, err := parent.Enter(context.Background())
	require.NoError(t, err)

	// The child never observes cancellation (it holds no suspension point),
	// so the parent can only wait out the budget.
	child := New(WithParent(parent), WithoutRegistration())
	childCtx, err := child.Enter(parentCtx)
	require.NoError(t, err)
	defer child.Exit(childCtx, nil)

	start := time.Now()
	_ = parent.Exit(parentCtx, nil)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestHierarchy_ChildRequiresRunningParent(t *testing.T) {
	t.Parallel()

	parent := New(WithoutRegistration())
	child := New(WithParent(parent), WithoutRegistration())

	_, err := child.Enter(context.Background())
	assert.ErrorIs(t, err, types.ErrParentNotRunning)
}

func TestHierarchy_CancelDetachedLeavesChildren(t *testing.T) {
	t.Parallel()

	parent := New(WithoutRegistration())
	parentCtx, err := parent.Enter(context.Background())
	require.NoError(t, err)

	child := New(WithParent(parent), WithoutRegistration())
	childCtx, err := child.Enter(parentCtx)
	require.NoError(t, err)

	require.NoError(t, parent.CancelDetached(parentCtx, types.ReasonManual, "just me"))
	assert.False(t, child.IsCancelled())

	_ = child.Exit(childCtx, nil)
	_ = parent.Exit(parentCtx, context.Cause(parentCtx))
}
