package token

import (
	"context"
	"fmt"
	"sync"
)

// LinkedToken fires when any of its parent tokens fires, recording which one.
// The link preserves the parent's reason and message unchanged; no note is
// added to a non-empty message, and the firing parent is identified only by
// Origin. When the parent's message is empty, the generated message names the
// parent. Parent registrations are released once the child has fired so no
// reference cycle keeps parents alive.
type LinkedToken struct {
	*Token

	mu      sync.Mutex
	origin  string
	removes []func()
}

// NewLinked creates a token linked to the given parents. A parent that has
// already fired propagates immediately.
func NewLinked(ctx context.Context, parents []*Token, opts ...Option) *LinkedToken {
	lt := &LinkedToken{Token: New(opts...)}
	for _, parent := range parents {
		lt.link(ctx, parent)
	}
	return lt
}

// Origin returns the id of the parent token that fired first, "" while the
// linked token is active.
func (lt *LinkedToken) Origin() string {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.origin
}

func (lt *LinkedToken) link(ctx context.Context, parent *Token) {
	if parent == nil {
		return
	}
	remove := parent.RegisterCallback(ctx, func(cbCtx context.Context, fired *Token) error {
		lt.propagate(cbCtx, fired)
		return nil
	})
	lt.mu.Lock()
	lt.removes = append(lt.removes, remove)
	lt.mu.Unlock()
}

func (lt *LinkedToken) propagate(ctx context.Context, parent *Token) {
	lt.mu.Lock()
	if lt.origin != "" {
		lt.mu.Unlock()
		return
	}
	lt.origin = parent.ID()
	lt.mu.Unlock()

	message := parent.Message()
	if message == "" {
		message = fmt.Sprintf("linked token %.8s cancelled", parent.ID())
	}
	if !lt.Cancel(ctx, parent.Reason(), message) {
		return
	}

	lt.mu.Lock()
	removes := lt.removes
	lt.removes = nil
	lt.mu.Unlock()

	// Drop parent registrations and our own callback list references now
	// that the one-shot has fired.
	for _, remove := range removes {
		remove()
	}
	lt.Token.clearCallbacks()
}

// Unlink detaches the linked token from all parents without firing it.
func (lt *LinkedToken) Unlink() {
	lt.mu.Lock()
	removes := lt.removes
	lt.removes = nil
	lt.mu.Unlock()
	for _, remove := range removes {
		remove()
	}
}
