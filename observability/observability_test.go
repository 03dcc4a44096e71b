package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/cancelable/operation"
	"github.com/BaSui01/cancelable/registry"
	"github.com/BaSui01/cancelable/types"
)

func TestAttachLogger_DoesNotDisturbLifecycle(t *testing.T) {
	t.Parallel()

	op := operation.New(operation.WithName("logged"), operation.WithoutRegistration())
	AttachLogger(op, zaptest.NewLogger(t))

	err := op.Run(context.Background(), func(ctx context.Context) error {
		return op.ReportProgress(ctx, "step", map[string]any{"progress": 10.0})
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, op.Status())
}

func TestAttachLogger_LogsCancellation(t *testing.T) {
	t.Parallel()

	op := operation.New(operation.WithoutRegistration())
	AttachLogger(op, zaptest.NewLogger(t))

	_ = op.Run(context.Background(), func(ctx context.Context) error {
		op.Token().Cancel(ctx, types.ReasonManual, "stop")
		return context.Cause(ctx)
	})
	assert.Equal(t, types.StatusCancelled, op.Status())
}

func TestCollector_ExportsRegistryCounts(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	promReg := prometheus.NewRegistry()
	require.NoError(t, promReg.Register(NewCollector(reg)))

	op := operation.New(operation.WithRegistry(reg), operation.WithName("observed"))
	err := op.Run(context.Background(), func(ctx context.Context) error {
		families, err := promReg.Gather()
		require.NoError(t, err)
		require.NotEmpty(t, families)
		found := false
		for _, mf := range families {
			if mf.GetName() == "cancelable_operations_active" {
				found = true
			}
		}
		assert.True(t, found)
		return nil
	})
	require.NoError(t, err)

	// After exit the operation shows up in the completed series.
	families, err := promReg.Gather()
	require.NoError(t, err)
	var completed float64
	for _, mf := range families {
		if mf.GetName() != "cancelable_operations_completed_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			completed += m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, completed)
}

func TestCancellationCounter_CountsByReason(t *testing.T) {
	t.Parallel()

	counter := NewCancellationCounter()
	promReg := prometheus.NewRegistry()
	require.NoError(t, promReg.Register(counter))

	op := operation.New(operation.WithoutRegistration())
	counter.Attach(op)
	counter.Attach(op) // second attach is a no-op

	_ = op.Run(context.Background(), func(ctx context.Context) error {
		op.Token().Cancel(ctx, types.ReasonTimeout, "")
		return context.Cause(ctx)
	})

	families, err := promReg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != "cancelable_cancellations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, total)
}

func TestAttachTracer_NoopProviderSafe(t *testing.T) {
	t.Parallel()

	op := operation.New(operation.WithName("traced"), operation.WithoutRegistration())
	AttachTracer(op, nil)

	err := op.Run(context.Background(), func(ctx context.Context) error {
		return op.ReportProgress(ctx, "step", nil)
	})
	require.NoError(t, err)

	// The cancelled path ends the span without panicking either.
	op2 := operation.New(operation.WithoutRegistration())
	AttachTracer(op2, nil)
	_ = op2.Run(context.Background(), func(ctx context.Context) error {
		op2.Token().Cancel(ctx, types.ReasonManual, "")
		return context.Cause(ctx)
	})
	assert.Equal(t, types.StatusCancelled, op2.Status())
}
