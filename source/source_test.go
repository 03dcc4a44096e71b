package source

import (
	"sync"
	"time"

	"github.com/BaSui01/cancelable/token"
)

// fakeOp is the minimal operation stand-in used by source tests.
type fakeOp struct {
	id  string
	tok *token.Token

	mu       sync.Mutex
	deadline time.Time
	errs     []error
}

func newFakeOp() *fakeOp {
	return &fakeOp{id: "op-test", tok: token.New()}
}

func (f *fakeOp) ID() string          { return f.id }
func (f *fakeOp) Name() string        { return "test" }
func (f *fakeOp) Token() *token.Token { return f.tok }

var _ Operation = (*fakeOp)(nil)

func (f *fakeOp) SetDeadline(t time.Time) {
	f.mu.Lock()
	f.deadline = t
	f.mu.Unlock()
}

func (f *fakeOp) OnSourceError(err error) {
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
}

func (f *fakeOp) reportedDeadline() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadline
}

func (f *fakeOp) sourceErrors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}
