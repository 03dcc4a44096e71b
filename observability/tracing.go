package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/cancelable/operation"
	"github.com/BaSui01/cancelable/types"
)

const instrumentationName = "github.com/BaSui01/cancelable"

// AttachTracer opens a span for the operation's lifetime: started on the
// start callback, annotated by progress reports, and ended with the final
// status on completion, cancellation or failure. A nil tracer falls back to
// the globally registered provider.
func AttachTracer(op *operation.Operation, tracer oteltrace.Tracer) {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	var (
		mu   sync.Mutex
		span oteltrace.Span
	)
	end := func(fn func(s oteltrace.Span)) {
		mu.Lock()
		defer mu.Unlock()
		if span == nil {
			return
		}
		fn(span)
		span.End()
		span = nil
	}

	op.OnStart(func(ctx context.Context, snap types.Snapshot) error {
		name := snap.Name
		if name == "" {
			name = "operation"
		}
		mu.Lock()
		_, span = tracer.Start(ctx, name, oteltrace.WithAttributes(
			attribute.String("operation.id", snap.ID),
			attribute.String("operation.parent_id", snap.ParentID),
		))
		mu.Unlock()
		return nil
	})
	op.OnProgress(func(ctx context.Context, id, message string, metadata map[string]any) error {
		mu.Lock()
		if span != nil {
			span.AddEvent("progress", oteltrace.WithAttributes(
				attribute.String("message", message),
			))
		}
		mu.Unlock()
		return nil
	})
	op.OnComplete(func(ctx context.Context, snap types.Snapshot) error {
		end(func(s oteltrace.Span) {
			s.SetStatus(codes.Ok, "")
		})
		return nil
	})
	op.OnCancel(func(ctx context.Context, snap types.Snapshot) error {
		end(func(s oteltrace.Span) {
			s.SetAttributes(
				attribute.String("cancel.reason", string(snap.CancelReason)),
				attribute.String("cancel.message", snap.CancelMessage),
			)
			s.SetStatus(codes.Error, "cancelled")
		})
		return nil
	})
	op.OnError(func(ctx context.Context, snap types.Snapshot, err error) error {
		end(func(s oteltrace.Span) {
			s.RecordError(err)
			s.SetStatus(codes.Error, err.Error())
		})
		return nil
	})
}
