package operation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/cancelable/types"
)

func TestShield_StatusTransitions(t *testing.T) {
	t.Parallel()

	op := New(WithoutRegistration())
	err := op.Run(context.Background(), func(ctx context.Context) error {
		require.Equal(t, types.StatusRunning, op.Status())

		sctx, release := op.Shield(ctx)
		assert.Equal(t, types.StatusShielded, op.Status())
		assert.NoError(t, sctx.Err())

		release()
		release() // idempotent
		assert.Equal(t, types.StatusRunning, op.Status())
		return nil
	})
	require.NoError(t, err)
}

func TestShield_SuppressesCancellationDelivery(t *testing.T) {
	t.Parallel()

	op := New(WithoutRegistration())
	err := op.Run(context.Background(), func(ctx context.Context) error {
		op.Token().Cancel(ctx, types.ReasonManual, "stop")

		// The scope context is cancelled, but the shielded context is not:
		// suspension points inside the shield do not observe it.
		require.Error(t, ctx.Err())
		return op.Shielded(ctx, func(sctx context.Context) error {
			select {
			case <-sctx.Done():
				t.Fatal("shielded context observed cancellation")
			case <-time.After(30 * time.Millisecond):
			}
			// The token stays observable for voluntary checks.
			require.Error(t, op.Token().Check())
			return nil
		})
	})

	// Run surfaces the cancellation recorded on the scope.
	require.Error(t, err)
	assert.Equal(t, types.StatusCancelled, op.Status())
}

func TestShield_NestedDepth(t *testing.T) {
	t.Parallel()

	op := New(WithoutRegistration())
	err := op.Run(context.Background(), func(ctx context.Context) error {
		_, releaseOuter := op.Shield(ctx)
		_, releaseInner := op.Shield(ctx)
		assert.Equal(t, types.StatusShielded, op.Status())

		releaseInner()
		assert.Equal(t, types.StatusShielded, op.Status())

		releaseOuter()
		assert.Equal(t, types.StatusRunning, op.Status())
		return nil
	})
	require.NoError(t, err)
}

// A child inside a shield block finishes its shielded section before
// observing the parent's cancellation.
func TestShield_ParentCancelWhileChildShielded(t *testing.T) {
	t.Parallel()

	parent := New(WithoutRegistration())
	parentCtx, err := parent.Enter(context.Background())
	require.NoError(t, err)

	child := New(WithParent(parent), WithoutRegistration())
	sectionDone := make(chan struct{})
	childErr := make(chan error, 1)

	go func() {
		childErr <- child.Run(parentCtx, func(ctx context.Context) error {
			err := child.Shielded(ctx, func(sctx context.Context) error {
				time.Sleep(60 * time.Millisecond)
				close(sectionDone)
				return nil
			})
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return context.Cause(ctx)
			case <-time.After(5 * time.Second):
				return nil
			}
		})
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, parent.Cancel(parentCtx, types.ReasonManual, "p-stop"))

	select {
	case err := <-childErr:
		require.Error(t, err)
		// The shielded section ran to completion first.
		select {
		case <-sectionDone:
		default:
			t.Fatal("child exited before finishing its shielded section")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}

	assert.Equal(t, types.ReasonParent, child.Reason())
	_ = parent.Exit(parentCtx, context.Cause(parentCtx))
}
