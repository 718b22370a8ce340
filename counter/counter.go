// Package counter implements the concurrent key to count registry behind the
// event tracker.
package counter

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Counter maps event keys to monotonically increasing counts.
// It is safe for concurrent use; the zero value is not, use New.
type Counter struct {
	counts *xsync.MapOf[string, int64]
}

// New creates an empty Counter.
func New() *Counter {
	return &Counter{counts: xsync.NewMapOf[string, int64]()}
}

// Increment adds one to key, creating the entry at 1 if it is absent.
// It reports whether the entry was created by this call.
func (c *Counter) Increment(key string) (wasNew bool) {
	c.counts.Compute(key, func(count int64, loaded bool) (int64, bool) {
		if !loaded {
			wasNew = true
			return 1, false
		}
		return count + 1, false
	})
	return wasNew
}

// Get returns the current count for key.
func (c *Counter) Get(key string) (int64, bool) {
	return c.counts.Load(key)
}

// Keys returns the current keys in sorted order.
func (c *Counter) Keys() []string {
	keys := make([]string, 0, c.counts.Size())
	c.counts.Range(func(key string, _ int64) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	return keys
}

// Snapshot copies all entries. Entries are read one by one, so the result is
// not an atomic multi-key view.
func (c *Counter) Snapshot() map[string]int64 {
	out := make(map[string]int64, c.counts.Size())
	c.counts.Range(func(key string, count int64) bool {
		out[key] = count
		return true
	})
	return out
}

// Len returns the number of keys.
func (c *Counter) Len() int {
	return c.counts.Size()
}

// Reset removes every entry.
func (c *Counter) Reset() {
	c.counts.Clear()
}
