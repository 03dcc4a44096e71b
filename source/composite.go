package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/cancelable/token"
	"github.com/BaSui01/cancelable/types"
)

// AnyOfSource combines sources with OR semantics: the first child to fire
// cancels the operation with its own reason and message. Children are
// consumed by the composite and must not be activated elsewhere.
type AnyOfSource struct {
	attachment

	children []Source
	fired    atomic.Pointer[Source]
	remove   func()
}

// AnyOf creates an any-of composite over the given sources.
func AnyOf(children ...Source) (*AnyOfSource, error) {
	if len(children) == 0 {
		return nil, errors.New("any-of composite requires at least one source")
	}
	return &AnyOfSource{children: children}, nil
}

// Description implements Source.
func (s *AnyOfSource) Description() string {
	return fmt.Sprintf("any-of(%s)", describeAll(s.children))
}

// Activate implements Source. Children attach to the real operation; the
// token's one-shot transition arbitrates which child wins.
func (s *AnyOfSource) Activate(ctx context.Context, op Operation) error {
	if err := s.attach(op); err != nil {
		return err
	}

	// Record the winning child once the operation token fires. Sources mark
	// themselves triggered before cancelling, so the scan sees the winner.
	s.remove = op.Token().RegisterCallback(ctx, func(context.Context, *token.Token) error {
		for i := range s.children {
			if s.children[i].Triggered() {
				s.fired.Store(&s.children[i])
				break
			}
		}
		return nil
	})

	for i, child := range s.children {
		if err := child.Activate(ctx, op); err != nil {
			s.deactivateChildren(ctx, i)
			s.remove()
			s.detach()
			return fmt.Errorf("any-of child %d (%s): %w", i, child.Description(), err)
		}
	}
	return nil
}

// Deactivate implements Source. Children are deactivated in reverse
// activation order.
func (s *AnyOfSource) Deactivate(ctx context.Context) error {
	if !s.detach() {
		return nil
	}
	if s.remove != nil {
		s.remove()
	}
	s.deactivateChildren(ctx, len(s.children))
	return nil
}

func (s *AnyOfSource) deactivateChildren(ctx context.Context, n int) {
	for i := n - 1; i >= 0; i-- {
		_ = s.children[i].Deactivate(ctx)
	}
}

// Triggered implements Source.
func (s *AnyOfSource) Triggered() bool {
	for _, child := range s.children {
		if child.Triggered() {
			return true
		}
	}
	return false
}

// Fired returns the child that fired first, nil while none has.
func (s *AnyOfSource) Fired() Source {
	if p := s.fired.Load(); p != nil {
		return *p
	}
	return nil
}

// AllOfSource combines sources with AND semantics: a child trigger only
// increments the trigger set; the composite fires with reason Condition once
// every child has fired, its message joining the contributing reasons in
// arrival order.
type AllOfSource struct {
	attachment

	children []Source
	proxies  []*allOfProxy

	mu       sync.Mutex
	firedSet map[int]bool
	messages []string

	triggered atomic.Bool
}

// AllOf creates an all-of composite over the given sources.
func AllOf(children ...Source) (*AllOfSource, error) {
	if len(children) == 0 {
		return nil, errors.New("all-of composite requires at least one source")
	}
	return &AllOfSource{
		children: children,
		firedSet: make(map[int]bool, len(children)),
	}, nil
}

// Description implements Source.
func (s *AllOfSource) Description() string {
	return fmt.Sprintf("all-of(%s)", describeAll(s.children))
}

// Activate implements Source. Each child attaches to a private proxy whose
// token feeds the trigger set instead of cancelling the operation, so
// individual triggers do not end the scope early.
func (s *AllOfSource) Activate(ctx context.Context, op Operation) error {
	if err := s.attach(op); err != nil {
		return err
	}

	s.proxies = make([]*allOfProxy, len(s.children))
	for i, child := range s.children {
		index := i
		proxy := &allOfProxy{real: op, tok: token.New()}
		proxy.tok.RegisterCallback(ctx, func(cbCtx context.Context, fired *token.Token) error {
			s.childFired(cbCtx, index, fired, op)
			return nil
		})
		s.proxies[i] = proxy

		if err := child.Activate(ctx, proxy); err != nil {
			s.deactivateChildren(ctx, i)
			s.detach()
			return fmt.Errorf("all-of child %d (%s): %w", i, child.Description(), err)
		}
	}
	return nil
}

func (s *AllOfSource) childFired(ctx context.Context, index int, fired *token.Token, op Operation) {
	s.mu.Lock()
	if s.firedSet[index] {
		s.mu.Unlock()
		return
	}
	s.firedSet[index] = true
	s.messages = append(s.messages, fmt.Sprintf("%s: %s", fired.Reason(), fired.Message()))
	complete := len(s.firedSet) == len(s.children)
	message := strings.Join(s.messages, "; ")
	s.mu.Unlock()

	if !complete {
		return
	}
	s.triggered.Store(true)
	op.Token().Cancel(ctx, types.ReasonCondition,
		fmt.Sprintf("all %d sources triggered (%s)", len(s.children), message))
}

// Deactivate implements Source.
func (s *AllOfSource) Deactivate(ctx context.Context) error {
	if !s.detach() {
		return nil
	}
	s.deactivateChildren(ctx, len(s.children))
	return nil
}

func (s *AllOfSource) deactivateChildren(ctx context.Context, n int) {
	for i := n - 1; i >= 0; i-- {
		_ = s.children[i].Deactivate(ctx)
	}
}

// Triggered implements Source.
func (s *AllOfSource) Triggered() bool {
	return s.triggered.Load()
}

// allOfProxy is the per-child operation view handed out by AllOfSource. The
// private token absorbs child triggers; deadlines stay confined to the child.
type allOfProxy struct {
	real Operation
	tok  *token.Token
}

func (p *allOfProxy) ID() string              { return p.real.ID() }
func (p *allOfProxy) Name() string            { return p.real.Name() }
func (p *allOfProxy) Token() *token.Token     { return p.tok }
func (p *allOfProxy) SetDeadline(time.Time)   {}
func (p *allOfProxy) OnSourceError(err error) { p.real.OnSourceError(err) }

func describeAll(children []Source) string {
	parts := make([]string, len(children))
	for i, child := range children {
		parts[i] = child.Description()
	}
	return strings.Join(parts, ", ")
}
