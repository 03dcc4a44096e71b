package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_CallSoonAfterStart(t *testing.T) {
	t.Parallel()

	b := New(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	done := make(chan struct{})
	b.CallSoon(func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task not executed")
	}
}

func TestBridge_QueuesBeforeStart(t *testing.T) {
	t.Parallel()

	b := New(16, nil)
	var ran atomic.Int32
	for range 3 {
		b.CallSoon(func(ctx context.Context) { ran.Add(1) })
	}
	require.False(t, b.Started())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for ran.Load() != 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.EqualValues(t, 3, ran.Load())
}

func TestBridge_TaskPanicDoesNotKillWorker(t *testing.T) {
	t.Parallel()

	b := New(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.CallSoon(func(ctx context.Context) { panic("boom") })

	done := make(chan struct{})
	b.CallSoon(func(ctx context.Context) { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after panicking task")
	}
}

func TestBridge_RunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	b := New(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestRunInThread_ReturnsResult(t *testing.T) {
	t.Parallel()

	got, err := RunInThread(context.Background(), func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestRunInThread_PropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := RunInThread(context.Background(), func() (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunInThread_CancellableAtAwait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := RunInThread(ctx, func() (int, error) {
		<-release // blocks well past the cancel
		return 0, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDefault_Singleton(t *testing.T) {
	t.Parallel()

	assert.Same(t, Default(), Default())
}
