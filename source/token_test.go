package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/cancelable/token"
	"github.com/BaSui01/cancelable/types"
)

func TestTokenSource_PropagatesExternalCancel(t *testing.T) {
	t.Parallel()

	external := token.New()
	src := NewTokenSource(external)
	op := newFakeOp()
	require.NoError(t, src.Activate(context.Background(), op))
	defer src.Deactivate(context.Background())

	external.Cancel(context.Background(), types.ReasonManual, "stop now")

	assert.True(t, op.tok.IsCancelled())
	assert.Equal(t, types.ReasonManual, op.tok.Reason())
	assert.Equal(t, "stop now", op.tok.Message())
	assert.True(t, src.Triggered())
}

func TestTokenSource_PreCancelledTokenFiresOnActivation(t *testing.T) {
	t.Parallel()

	external := token.New()
	external.Cancel(context.Background(), types.ReasonManual, "already done")

	src := NewTokenSource(external)
	op := newFakeOp()
	require.NoError(t, src.Activate(context.Background(), op))
	defer src.Deactivate(context.Background())

	assert.True(t, op.tok.IsCancelled())
	assert.Equal(t, "already done", op.tok.Message())
}

func TestTokenSource_DeactivateRemovesCallback(t *testing.T) {
	t.Parallel()

	external := token.New()
	src := NewTokenSource(external)
	op := newFakeOp()
	require.NoError(t, src.Activate(context.Background(), op))
	require.NoError(t, src.Deactivate(context.Background()))

	external.Cancel(context.Background(), types.ReasonManual, "")
	time.Sleep(10 * time.Millisecond)

	assert.False(t, op.tok.IsCancelled())
}
