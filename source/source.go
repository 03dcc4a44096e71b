package source

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/cancelable/token"
	"github.com/BaSui01/cancelable/types"
)

// Operation is the consumer-side view a source needs of the scope it is
// installed in. *operation.Operation implements it.
type Operation interface {
	// ID returns the operation identifier.
	ID() string
	// Name returns the operation name.
	Name() string
	// Token returns the operation's cancellation token.
	Token() *token.Token
	// SetDeadline reports an absolute deadline to the enclosing cancel
	// handle. Only the deadline source calls it.
	SetDeadline(t time.Time)
	// OnSourceError surfaces a monitor failure to the operation.
	OnSourceError(err error)
}

// Source is a background-monitored cancellation trigger. Activation attaches
// the source to exactly one operation; a second activation fails with
// types.ErrSourceReused. Deactivation is idempotent and releases every
// resource the source acquired.
type Source interface {
	// Description returns a short human-readable description.
	Description() string
	// Activate attaches the source to op and starts monitoring.
	Activate(ctx context.Context, op Operation) error
	// Deactivate stops monitoring and releases resources.
	Deactivate(ctx context.Context) error
	// Triggered reports whether this source fired.
	Triggered() bool
}

// attachment is the shared activation guard embedded by every source.
type attachment struct {
	mu     sync.Mutex
	op     Operation
	active bool
	used   bool
}

// attach claims the source for op. Sources are consumed by activation and
// cannot be attached twice, even after deactivation.
func (a *attachment) attach(op Operation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.used {
		return types.ErrSourceReused
	}
	a.used = true
	a.active = true
	a.op = op
	return nil
}

// detach releases the attachment. Returns false when already detached.
func (a *attachment) detach() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return false
	}
	a.active = false
	a.op = nil
	return true
}

// operation returns the attached operation, nil after deactivation.
func (a *attachment) operation() Operation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.op
}
