package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancellationError_UnwrapsToContextCanceled(t *testing.T) {
	t.Parallel()

	err := NewTimeoutError("")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.ErrorContains(t, err, "timeout")
}

func TestCancellationError_Constructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    *CancellationError
		reason CancellationReason
	}{
		{"timeout", NewTimeoutError(""), ReasonTimeout},
		{"manual", NewManualError("stop"), ReasonManual},
		{"signal", NewSignalError("interrupt", ""), ReasonSignal},
		{"condition", NewConditionError(""), ReasonCondition},
		{"parent", NewParentError("op-1", ""), ReasonParent},
		{"source", NewSourceError(""), ReasonError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.reason, tt.err.Reason)
			require.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestCancellationError_MessagePreserved(t *testing.T) {
	t.Parallel()

	err := NewManualError("user clicked stop")
	assert.Equal(t, "user clicked stop", err.Message)
	assert.Contains(t, err.Error(), "user clicked stop")
}

func TestIsCancellation(t *testing.T) {
	t.Parallel()

	assert.False(t, IsCancellation(nil))
	assert.False(t, IsCancellation(errors.New("boom")))
	assert.True(t, IsCancellation(context.Canceled))
	assert.True(t, IsCancellation(context.DeadlineExceeded))
	assert.True(t, IsCancellation(NewManualError("")))
	assert.True(t, IsCancellation(fmt.Errorf("wrapped: %w", NewParentError("p", ""))))
}

func TestReasonOf(t *testing.T) {
	t.Parallel()

	reason, ok := ReasonOf(NewConditionError(""))
	require.True(t, ok)
	assert.Equal(t, ReasonCondition, reason)

	reason, ok = ReasonOf(context.DeadlineExceeded)
	require.True(t, ok)
	assert.Equal(t, ReasonTimeout, reason)

	_, ok = ReasonOf(errors.New("boom"))
	assert.False(t, ok)

	_, ok = ReasonOf(context.Canceled)
	assert.False(t, ok)
}
