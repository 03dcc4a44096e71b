package operation

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/cancelable/types"
)

// OnProgress registers a progress callback. Duplicates are allowed.
func (o *Operation) OnProgress(cb ProgressCallback) *Operation {
	if cb == nil {
		return o
	}
	o.cbMu.Lock()
	o.progressCbs = append(o.progressCbs, cb)
	o.cbMu.Unlock()
	return o
}

// OnStart registers a callback fired when the operation enters.
func (o *Operation) OnStart(cb LifecycleCallback) *Operation {
	if cb == nil {
		return o
	}
	o.cbMu.Lock()
	o.startCbs = append(o.startCbs, cb)
	o.cbMu.Unlock()
	return o
}

// OnComplete registers a callback fired on successful exit.
func (o *Operation) OnComplete(cb LifecycleCallback) *Operation {
	if cb == nil {
		return o
	}
	o.cbMu.Lock()
	o.completeCbs = append(o.completeCbs, cb)
	o.cbMu.Unlock()
	return o
}

// OnCancel registers a callback fired on cancelled exit.
func (o *Operation) OnCancel(cb LifecycleCallback) *Operation {
	if cb == nil {
		return o
	}
	o.cbMu.Lock()
	o.cancelCbs = append(o.cancelCbs, cb)
	o.cbMu.Unlock()
	return o
}

// OnError registers a callback fired on failed exit and on source monitor
// failures.
func (o *Operation) OnError(cb ErrorCallback) *Operation {
	if cb == nil {
		return o
	}
	o.cbMu.Lock()
	o.errorCbs = append(o.errorCbs, cb)
	o.cbMu.Unlock()
	return o
}

// ReportProgress delivers a progress report to the registered callbacks in
// registration order. It is a cancellation checkpoint: a fired token returns
// the cancellation error before any callback runs. Callback errors are
// logged and do not stop later callbacks.
func (o *Operation) ReportProgress(ctx context.Context, message string, metadata map[string]any) error {
	if err := o.tok.Check(); err != nil {
		return err
	}

	o.cbMu.Lock()
	cbs := make([]ProgressCallback, len(o.progressCbs))
	copy(cbs, o.progressCbs)
	o.cbMu.Unlock()

	o.invokeProgress(ctx, cbs, message, metadata)

	if o.bubbleProgress && o.parent != nil {
		o.parent.cbMu.Lock()
		parentCbs := make([]ProgressCallback, len(o.parent.progressCbs))
		copy(parentCbs, o.parent.progressCbs)
		o.parent.cbMu.Unlock()
		o.invokeProgress(ctx, parentCbs, message, metadata)
	}
	return nil
}

func (o *Operation) invokeProgress(ctx context.Context, cbs []ProgressCallback, message string, metadata map[string]any) {
	for i, cb := range cbs {
		if err := cb(ctx, o.ID(), message, metadata); err != nil {
			o.logger.Error("progress callback failed",
				zap.String("operation_id", o.ID()),
				zap.Int("callback_index", i),
				zap.Error(err),
			)
		}
	}
}

func (o *Operation) snapshotStartCbs() []LifecycleCallback {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	cbs := make([]LifecycleCallback, len(o.startCbs))
	copy(cbs, o.startCbs)
	return cbs
}

func (o *Operation) snapshotCompleteCbs() []LifecycleCallback {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	cbs := make([]LifecycleCallback, len(o.completeCbs))
	copy(cbs, o.completeCbs)
	return cbs
}

func (o *Operation) snapshotCancelCbs() []LifecycleCallback {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	cbs := make([]LifecycleCallback, len(o.cancelCbs))
	copy(cbs, o.cancelCbs)
	return cbs
}

// fireLifecycle invokes lifecycle callbacks with a fresh snapshot, isolating
// individual failures.
func (o *Operation) fireLifecycle(ctx context.Context, cbs []LifecycleCallback) {
	if len(cbs) == 0 {
		return
	}
	snap := o.Snapshot()
	for i, cb := range cbs {
		if err := cb(ctx, snap); err != nil {
			o.logger.Error("lifecycle callback failed",
				zap.String("operation_id", o.ID()),
				zap.Int("callback_index", i),
				zap.Error(err),
			)
		}
	}
}

// fireError invokes error callbacks, isolating individual failures.
func (o *Operation) fireError(ctx context.Context, snap types.Snapshot, cause error) {
	o.cbMu.Lock()
	cbs := make([]ErrorCallback, len(o.errorCbs))
	copy(cbs, o.errorCbs)
	o.cbMu.Unlock()

	for i, cb := range cbs {
		if err := cb(ctx, snap, cause); err != nil {
			o.logger.Error("error callback failed",
				zap.String("operation_id", o.ID()),
				zap.Int("callback_index", i),
				zap.Error(err),
			)
		}
	}
}
