package eventcounter

import "context"

// SetBuildHook installs fn to run inside every descriptor rebuild.
func (t *Tracker) SetBuildHook(fn func(ctx context.Context)) {
	t.buildHook = fn
}
