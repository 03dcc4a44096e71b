package operation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/cancelable/bridge"
	"github.com/BaSui01/cancelable/registry"
	"github.com/BaSui01/cancelable/source"
	"github.com/BaSui01/cancelable/token"
	"github.com/BaSui01/cancelable/types"
)

// DefaultShutdownBudget bounds how long a parent waits for cancelled
// children on exit.
const DefaultShutdownBudget = 5 * time.Second

// ProgressCallback receives progress reports. Errors are logged and isolated.
type ProgressCallback func(ctx context.Context, operationID, message string, metadata map[string]any) error

// LifecycleCallback receives start, complete and cancel notifications with a
// snapshot of the operation state.
type LifecycleCallback func(ctx context.Context, snap types.Snapshot) error

// ErrorCallback receives failures: the operation's own error on a failed
// exit, or a source monitor failure while running.
type ErrorCallback func(ctx context.Context, snap types.Snapshot, err error) error

// ErrorPolicy selects how the operation reacts to a failing source monitor.
type ErrorPolicy int

const (
	// ContinueOnSourceError keeps the operation running without the failed
	// source. The failure is logged and surfaced to error callbacks.
	ContinueOnSourceError ErrorPolicy = iota
	// CancelOnSourceError additionally cancels the operation with reason
	// Error.
	CancelOnSourceError
)

// Option configures an Operation at construction.
type Option func(*Operation)

// WithID sets an explicit operation id instead of a generated one.
func WithID(id string) Option {
	return func(o *Operation) { o.explicitID = id }
}

// WithName sets the human-readable operation name used by pattern matching
// and logs.
func WithName(name string) Option {
	return func(o *Operation) { o.name = name }
}

// WithParent links the operation under parent for hierarchical cancellation.
// The parent must be entered before the child enters.
func WithParent(parent *Operation) Option {
	return func(o *Operation) { o.parent = parent }
}

// WithToken adopts an externally owned token instead of creating one.
func WithToken(tok *token.Token) Option {
	return func(o *Operation) {
		if tok != nil {
			o.tok = tok
		}
	}
}

// WithSources installs cancellation sources, activated on entry.
func WithSources(sources ...source.Source) Option {
	return func(o *Operation) { o.sources = append(o.sources, sources...) }
}

// WithMetadata merges entries into the operation metadata.
func WithMetadata(metadata map[string]any) Option {
	return func(o *Operation) {
		for k, v := range metadata {
			o.metadata[k] = v
		}
	}
}

// WithRegistry registers the operation in reg instead of the default
// process-wide registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(o *Operation) { o.reg = reg }
}

// WithoutRegistration disables global registration.
func WithoutRegistration() Option {
	return func(o *Operation) { o.reg = nil }
}

// WithLogger sets the operation logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Operation) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBridge sets the runtime bridge bound to the operation token on entry.
func WithBridge(b *bridge.Bridge) Option {
	return func(o *Operation) {
		if b != nil {
			o.bridge = b
		}
	}
}

// WithShutdownBudget bounds the wait for cancelled children on exit.
func WithShutdownBudget(d time.Duration) Option {
	return func(o *Operation) {
		if d > 0 {
			o.budget = d
		}
	}
}

// WithErrorPolicy selects the source-failure policy.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(o *Operation) { o.errorPolicy = p }
}

// WithProgressBubbling additionally delivers this operation's progress
// reports to the parent's progress callbacks.
func WithProgressBubbling() Option {
	return func(o *Operation) { o.bubbleProgress = true }
}
