package operation

import (
	"context"
	"sync"

	"github.com/BaSui01/cancelable/types"
)

// Shield returns a context whose suspension points do not observe the
// enclosing cancellation, plus a release func restoring normal delivery.
// While any shield is held the operation reports status Shielded; the status
// reverts to Running on release. The token stays observable through Check,
// so shielded code may honor cancellation voluntarily. Shielded sections
// should be short and bounded; nothing enforces that.
func (o *Operation) Shield(ctx context.Context) (context.Context, func()) {
	o.mu.Lock()
	o.shieldDepth++
	if o.shieldDepth == 1 && o.octx.Status() == types.StatusRunning {
		_ = o.octx.SetStatus(types.StatusShielded)
	}
	o.mu.Unlock()

	sctx := context.WithoutCancel(ctx)

	var once sync.Once
	release := func() {
		once.Do(func() {
			o.mu.Lock()
			o.shieldDepth--
			if o.shieldDepth == 0 && o.octx.Status() == types.StatusShielded {
				_ = o.octx.SetStatus(types.StatusRunning)
			}
			o.mu.Unlock()
		})
	}
	return sctx, release
}

// Shielded runs fn under a shield, releasing it on every path.
func (o *Operation) Shielded(ctx context.Context, fn func(ctx context.Context) error) error {
	sctx, release := o.Shield(ctx)
	defer release()
	return fn(sctx)
}
