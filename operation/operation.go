package operation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/cancelable/bridge"
	"github.com/BaSui01/cancelable/registry"
	"github.com/BaSui01/cancelable/source"
	"github.com/BaSui01/cancelable/token"
	"github.com/BaSui01/cancelable/types"
)

// Operation is a scoped cancellation context wrapping a task region. It owns
// a token, activates sources on entry, propagates cancellation to children,
// emits progress, and registers itself for process-wide introspection.
//
// The lifecycle is Enter -> task -> Exit; Run bundles all three. The context
// returned by Enter delivers cancellation at the next ctx-aware suspension
// once the token fires.
type Operation struct {
	octx *types.OperationContext

	explicitID string
	name       string
	metadata   map[string]any

	tok     *token.Token
	sources []source.Source

	parent *Operation

	reg    *registry.Registry
	bridge *bridge.Bridge
	logger *zap.Logger

	budget         time.Duration
	errorPolicy    ErrorPolicy
	bubbleProgress bool

	mu          sync.Mutex
	entered     bool
	exited      bool
	registered  bool
	activated   []source.Source
	cancelCause context.CancelCauseFunc
	releaseCtx  context.CancelFunc
	removeCb    func()
	deadline    time.Time
	shieldDepth int

	childMu  sync.Mutex
	children map[string]*Operation

	cbMu        sync.Mutex
	progressCbs []ProgressCallback
	startCbs    []LifecycleCallback
	completeCbs []LifecycleCallback
	cancelCbs   []LifecycleCallback
	errorCbs    []ErrorCallback

	done chan struct{}
}

// New constructs an operation. Global registration is the default; disable
// it with WithoutRegistration or redirect it with WithRegistry.
func New(opts ...Option) *Operation {
	o := &Operation{
		metadata: make(map[string]any),
		reg:      registry.Default(),
		bridge:   bridge.Default(),
		logger:   zap.NewNop(),
		budget:   DefaultShutdownBudget,
		children: make(map[string]*Operation),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tok == nil {
		o.tok = token.New(token.WithLogger(o.logger))
	}
	parentID := ""
	if o.parent != nil {
		parentID = o.parent.ID()
	}
	o.octx = types.NewOperationContext(o.explicitID, o.name, parentID, o.metadata)
	return o
}

// ID returns the operation identifier.
func (o *Operation) ID() string { return o.octx.ID() }

// Name returns the operation name.
func (o *Operation) Name() string { return o.octx.Name() }

// Token returns the operation's cancellation token.
func (o *Operation) Token() *token.Token { return o.tok }

// Context returns the operation's observable state.
func (o *Operation) Context() *types.OperationContext { return o.octx }

// Snapshot returns an independent copy of the operation state.
func (o *Operation) Snapshot() types.Snapshot { return o.octx.Snapshot() }

// Status returns the current lifecycle status.
func (o *Operation) Status() types.OperationStatus { return o.octx.Status() }

// Done returns a channel closed once the operation has fully exited.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Parent returns the parent operation, nil for roots.
func (o *Operation) Parent() *Operation { return o.parent }

// IsCancelled reports whether the operation's token has fired.
func (o *Operation) IsCancelled() bool { return o.tok.IsCancelled() }

// Reason returns the recorded cancellation reason, "" if none.
func (o *Operation) Reason() types.CancellationReason { return o.octx.CancelReason() }

// Message returns the recorded cancellation message.
func (o *Operation) Message() string { return o.octx.CancelMessage() }

// Enter activates the operation: status moves to Running, the ambient
// reference is pushed onto the returned context, the operation is registered,
// sources are activated deadline-first, the parent link is established and
// start callbacks fire. The returned context delivers cancellation once the
// token fires.
func (o *Operation) Enter(ctx context.Context) (context.Context, error) {
	o.mu.Lock()
	if o.entered {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", types.ErrAlreadyEntered, o.ID())
	}
	o.entered = true
	o.mu.Unlock()

	if o.parent != nil {
		st := o.parent.Status()
		if st != types.StatusRunning && st != types.StatusShielded {
			return nil, fmt.Errorf("%w: parent %s is %s", types.ErrParentNotRunning, o.parent.ID(), st)
		}
	}
	if err := o.octx.SetStatus(types.StatusRunning); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithCancelCause(ctx)
	cctx = context.WithValue(cctx, ambientKey{}, o)

	o.tok.BindBridge(o.bridge)
	removeCb := o.tok.RegisterCallback(cctx, func(cbCtx context.Context, t *token.Token) error {
		o.octx.SetCancellation(t.Reason(), t.Message())
		cancel(&types.CancellationError{
			Reason:      t.Reason(),
			Message:     t.Message(),
			OperationID: o.ID(),
		})
		return nil
	})

	o.mu.Lock()
	o.cancelCause = cancel
	o.removeCb = removeCb
	o.mu.Unlock()

	if o.reg != nil {
		if err := o.reg.Register(o); err != nil {
			o.abortEnter(cctx, cancel, err)
			return nil, err
		}
		o.mu.Lock()
		o.registered = true
		o.mu.Unlock()
	}

	for _, src := range orderSources(o.sources) {
		if err := src.Activate(cctx, o); err != nil {
			err = fmt.Errorf("activating %s: %w", src.Description(), err)
			o.abortEnter(cctx, cancel, err)
			return nil, err
		}
		o.mu.Lock()
		o.activated = append(o.activated, src)
		o.mu.Unlock()
	}

	if o.parent != nil {
		o.parent.addChild(o)
	}

	retCtx := cctx
	o.mu.Lock()
	deadline := o.deadline
	o.mu.Unlock()
	if !deadline.IsZero() {
		var release context.CancelFunc
		retCtx, release = context.WithDeadline(cctx, deadline)
		o.mu.Lock()
		o.releaseCtx = release
		o.mu.Unlock()
	}

	o.fireLifecycle(retCtx, o.snapshotStartCbs())

	o.logger.Info("operation entered", o.octx.LogFields()...)
	return retCtx, nil
}

// abortEnter rolls back a partial entry after an activation or registration
// failure.
func (o *Operation) abortEnter(ctx context.Context, cancel context.CancelCauseFunc, cause error) {
	o.mu.Lock()
	activated := o.activated
	o.activated = nil
	registered := o.registered
	o.registered = false
	removeCb := o.removeCb
	o.mu.Unlock()

	for i := len(activated) - 1; i >= 0; i-- {
		if err := activated[i].Deactivate(ctx); err != nil {
			o.logger.Error("source deactivation failed during rollback",
				zap.String("operation_id", o.ID()),
				zap.Error(err),
			)
		}
	}
	if registered && o.reg != nil {
		o.reg.Unregister(o.ID())
	}
	if removeCb != nil {
		removeCb()
	}
	cancel(cause)
}

// Exit finalizes the operation. It must run on every exit path, including
// cancellation: sources are deactivated in reverse order shielded from
// cancellation, live children are cancelled and awaited within the shutdown
// budget, the final status is resolved, callbacks fire, and the operation is
// unregistered before Exit returns. The incoming error is returned unchanged
// so callers observe cancellation as the runtime's own cancellation error.
func (o *Operation) Exit(ctx context.Context, cause error) error {
	o.mu.Lock()
	if !o.entered {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrNotEntered, o.ID())
	}
	if o.exited {
		o.mu.Unlock()
		return cause
	}
	o.exited = true
	activated := o.activated
	o.mu.Unlock()

	// Cleanup must not observe the cancellation that is being delivered.
	cleanupCtx := context.WithoutCancel(ctx)

	for i := len(activated) - 1; i >= 0; i-- {
		if err := activated[i].Deactivate(cleanupCtx); err != nil {
			o.logger.Error("source deactivation failed",
				zap.String("operation_id", o.ID()),
				zap.String("source", activated[i].Description()),
				zap.Error(err),
			)
		}
	}

	o.cancelChildren(cleanupCtx)

	final := o.resolveFinalStatus(ctx, cause)
	if err := o.octx.SetStatus(final); err != nil {
		o.logger.Error("status transition failed on exit",
			zap.String("operation_id", o.ID()),
			zap.Error(err),
		)
	}

	snap := o.Snapshot()
	switch final {
	case types.StatusCancelled:
		o.fireLifecycle(cleanupCtx, o.snapshotCancelCbs())
	case types.StatusFailed:
		o.fireError(cleanupCtx, snap, cause)
	default:
		o.fireLifecycle(cleanupCtx, o.snapshotCompleteCbs())
	}

	o.mu.Lock()
	registered := o.registered
	o.registered = false
	removeCb := o.removeCb
	cancelCause := o.cancelCause
	releaseCtx := o.releaseCtx
	o.mu.Unlock()

	if registered && o.reg != nil {
		o.reg.Unregister(o.ID())
	}
	if o.parent != nil {
		o.parent.removeChild(o.ID())
	}
	if removeCb != nil {
		removeCb()
	}
	if cancelCause != nil {
		cancelCause(context.Canceled)
	}
	if releaseCtx != nil {
		releaseCtx()
	}
	close(o.done)

	o.logger.Info("operation exited", o.octx.LogFields()...)
	return cause
}

// resolveFinalStatus maps the exit error to the terminal status, firing the
// token when an outer cancellation arrived without it so that the status
// invariant (Cancelled iff token fired) holds.
func (o *Operation) resolveFinalStatus(ctx context.Context, cause error) types.OperationStatus {
	switch {
	case cause == nil:
		if o.tok.IsCancelled() {
			o.octx.SetCancellation(o.tok.Reason(), o.tok.Message())
			return types.StatusCancelled
		}
		return types.StatusCompleted
	case types.IsCancellation(cause):
		if !o.tok.IsCancelled() {
			reason, message := outerCancellation(ctx, cause)
			o.tok.CancelSync(reason, message)
		}
		o.octx.SetCancellation(o.tok.Reason(), o.tok.Message())
		return types.StatusCancelled
	default:
		o.octx.SetError(cause)
		return types.StatusFailed
	}
}

// outerCancellation derives reason and message for a cancellation that was
// delivered from outside the operation's own token.
func outerCancellation(ctx context.Context, cause error) (types.CancellationReason, string) {
	var ce *types.CancellationError
	if errors.As(cause, &ce) {
		return ce.Reason, ce.Message
	}
	if errors.As(context.Cause(ctx), &ce) {
		return ce.Reason, ce.Message
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return types.ReasonTimeout, "deadline exceeded"
	}
	return types.ReasonManual, "enclosing context cancelled"
}

// Run enters the operation, invokes fn with the derived context and exits on
// every path. It returns fn's error (or the cancellation error) unchanged.
func (o *Operation) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	opCtx, err := o.Enter(ctx)
	if err != nil {
		return err
	}
	var runErr error
	defer func() {
		// Exit runs even when fn panics; the panic is re-raised by the
		// runtime after the deferred call.
		_ = o.Exit(opCtx, runErr)
	}()
	runErr = fn(opCtx)
	if runErr == nil && opCtx.Err() != nil {
		// fn swallowed the cancellation; surface the recorded cause.
		runErr = context.Cause(opCtx)
	}
	return runErr
}

// Cancel cancels the operation with the given reason and propagates to live
// children with reason Parent.
func (o *Operation) Cancel(ctx context.Context, reason types.CancellationReason, message string) error {
	return o.cancel(ctx, reason, message, true)
}

// CancelDetached cancels the operation without propagating to children.
func (o *Operation) CancelDetached(ctx context.Context, reason types.CancellationReason, message string) error {
	return o.cancel(ctx, reason, message, false)
}

func (o *Operation) cancel(ctx context.Context, reason types.CancellationReason, message string, propagate bool) error {
	if !reason.Valid() {
		return fmt.Errorf("invalid cancellation reason %q", reason)
	}

	// Children first: each child must record reason Parent on its own token
	// before this operation's cancellation sweeps through the context tree.
	if propagate {
		for _, child := range o.liveChildren() {
			_ = child.cancel(ctx, types.ReasonParent,
				fmt.Sprintf("parent operation %.8s cancelled", o.ID()), true)
		}
	}

	o.tok.Cancel(ctx, reason, message)

	o.logger.Info("operation cancelled",
		zap.String("operation_id", o.ID()),
		zap.String("cancel_reason", string(reason)),
		zap.String("cancel_message", message),
	)
	return nil
}

// cancelChildren cancels every live child with reason Parent and waits for
// each to exit, bounded by the shutdown budget.
func (o *Operation) cancelChildren(ctx context.Context) {
	kids := o.liveChildren()
	if len(kids) == 0 {
		return
	}

	var g errgroup.Group
	for _, child := range kids {
		g.Go(func() error {
			_ = child.cancel(ctx, types.ReasonParent,
				fmt.Sprintf("parent operation %.8s cancelled", o.ID()), true)
			select {
			case <-child.Done():
			case <-time.After(o.budget):
				o.logger.Warn("child did not exit within shutdown budget",
					zap.String("operation_id", o.ID()),
					zap.String("child_id", child.ID()),
					zap.Duration("budget", o.budget),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Operation) addChild(child *Operation) {
	o.childMu.Lock()
	o.children[child.ID()] = child
	o.childMu.Unlock()
}

func (o *Operation) removeChild(id string) {
	o.childMu.Lock()
	delete(o.children, id)
	o.childMu.Unlock()
}

func (o *Operation) liveChildren() []*Operation {
	o.childMu.Lock()
	defer o.childMu.Unlock()
	kids := make([]*Operation, 0, len(o.children))
	for _, child := range o.children {
		kids = append(kids, child)
	}
	return kids
}

// Children returns the live child operations.
func (o *Operation) Children() []*Operation {
	return o.liveChildren()
}

// SetDeadline records the earliest deadline reported by a deadline source.
// It implements the source-facing cancel-scope hook.
func (o *Operation) SetDeadline(t time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.deadline.IsZero() || t.Before(o.deadline) {
		o.deadline = t
	}
}

// OnSourceError surfaces a source monitor failure. The failure is logged and
// delivered to error callbacks; under CancelOnSourceError the operation is
// additionally cancelled with reason Error.
func (o *Operation) OnSourceError(err error) {
	o.logger.Error("source monitor failed",
		zap.String("operation_id", o.ID()),
		zap.Error(err),
	)
	o.fireError(context.Background(), o.Snapshot(), err)
	if o.errorPolicy == CancelOnSourceError {
		o.tok.CancelSync(types.ReasonError, err.Error())
	}
}

// orderSources returns sources in activation order, deadline sources first.
func orderSources(sources []source.Source) []source.Source {
	ordered := make([]source.Source, 0, len(sources))
	for _, src := range sources {
		if _, ok := src.(*source.DeadlineSource); ok {
			ordered = append(ordered, src)
		}
	}
	for _, src := range sources {
		if _, ok := src.(*source.DeadlineSource); !ok {
			ordered = append(ordered, src)
		}
	}
	return ordered
}

var _ source.Operation = (*Operation)(nil)
var _ registry.Operation = (*Operation)(nil)
