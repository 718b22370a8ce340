// Package guard suppresses re-entrant event ingestion while the counter's own
// bookkeeping runs.
//
// Go has no thread identity, so the "inside guarded region" mark is scoped to
// the calling task: it is a value on the context handed to the guarded action
// and is visible only to the call chain that receives that context. The mark
// cannot outlive Run because the derived context is never returned to the
// caller.
package guard

import (
	"context"
	"fmt"

	"golang.org/x/xerrors"
)

// ErrPanicked is wrapped by Run when the guarded action panics.
var ErrPanicked = xerrors.New("guarded action panicked")

type activeKey struct{}

// Run executes action with a context marked as inside a guarded region.
// A panic in action is recovered and returned as an error wrapping ErrPanicked.
func Run[T any](ctx context.Context, action func(ctx context.Context) (T, error)) (result T, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = xerrors.Errorf("%w: %s", ErrPanicked, fmt.Sprint(r))
		}
	}()
	return action(context.WithValue(ctx, activeKey{}, true))
}

// Active reports whether ctx was derived inside Run.
func Active(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	active, _ := ctx.Value(activeKey{}).(bool)
	return active
}
