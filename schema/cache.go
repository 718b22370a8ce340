package schema

import (
	"context"

	"go.uber.org/atomic"

	"github.com/st-keller/event-counter/guard"
)

// BuildFunc computes a fresh Descriptor from live state.
type BuildFunc func(ctx context.Context) (*Descriptor, error)

type cached struct {
	generation uint64
	descriptor *Descriptor
}

// Cache holds the most recently built Descriptor until it is invalidated.
//
// Every Invalidate advances a generation counter. A cached Descriptor is only
// served while its generation matches the current one, and a rebuild records
// the generation it observed before reading live state. A rebuild that races an
// invalidation is therefore stamped with an old generation and replaced by the
// next reader.
type Cache struct {
	build      BuildFunc
	generation atomic.Uint64
	current    atomic.Pointer[cached]
}

// NewCache creates a Cache that starts invalid.
func NewCache(build BuildFunc) *Cache {
	c := &Cache{build: build}
	// Start past the zero value so no cached entry can match before a build.
	c.generation.Store(1)
	return c
}

// Read returns the cached Descriptor, rebuilding it inside a guarded region
// when it is missing or stale. Concurrent readers may rebuild redundantly.
func (c *Cache) Read(ctx context.Context) (*Descriptor, error) {
	gen := c.generation.Load()
	prev := c.current.Load()
	if prev != nil && prev.generation == gen {
		return prev.descriptor, nil
	}

	desc, err := guard.Run(ctx, c.build)
	if err != nil {
		return nil, err
	}

	// Losing the swap means another reader published first; ours is still a
	// valid answer for this call.
	c.current.CompareAndSwap(prev, &cached{generation: gen, descriptor: desc})
	return desc, nil
}

// Invalidate marks the cached Descriptor stale. It is idempotent and never blocks.
func (c *Cache) Invalidate() {
	c.generation.Inc()
}

// Valid reports whether the next Read would be served from cache.
func (c *Cache) Valid() bool {
	prev := c.current.Load()
	return prev != nil && prev.generation == c.generation.Load()
}
