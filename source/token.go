package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/cancelable/token"
	"github.com/BaSui01/cancelable/types"
)

// TokenSource observes an externally owned token and cancels the operation
// with reason Manual when it fires. There is no monitor goroutine; the only
// resource is the callback registration, removed on deactivation.
type TokenSource struct {
	attachment

	external *token.Token

	removeMu sync.Mutex
	remove   func()
}

// NewTokenSource creates a source observing the given external token.
func NewTokenSource(external *token.Token) *TokenSource {
	return &TokenSource{external: external}
}

// Description implements Source.
func (s *TokenSource) Description() string {
	return fmt.Sprintf("token(%.8s)", s.external.ID())
}

// Activate implements Source.
func (s *TokenSource) Activate(ctx context.Context, op Operation) error {
	if err := s.attach(op); err != nil {
		return err
	}
	remove := s.external.RegisterCallback(ctx, func(cbCtx context.Context, fired *token.Token) error {
		message := fired.Message()
		if message == "" {
			message = fmt.Sprintf("external token %.8s cancelled", fired.ID())
		}
		op.Token().Cancel(cbCtx, types.ReasonManual, message)
		return nil
	})
	s.removeMu.Lock()
	s.remove = remove
	s.removeMu.Unlock()
	return nil
}

// Deactivate implements Source.
func (s *TokenSource) Deactivate(ctx context.Context) error {
	if !s.detach() {
		return nil
	}
	s.removeMu.Lock()
	if s.remove != nil {
		s.remove()
		s.remove = nil
	}
	s.removeMu.Unlock()
	return nil
}

// Triggered implements Source. The token source is considered triggered once
// the external token has fired.
func (s *TokenSource) Triggered() bool {
	return s.external.IsCancelled()
}
