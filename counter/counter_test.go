package counter_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/st-keller/event-counter/counter"
)

func TestCounter_Increment(t *testing.T) {
	t.Parallel()

	c := counter.New()
	assert.True(t, c.Increment("a.B"), "first increment creates the key")
	assert.False(t, c.Increment("a.B"))
	assert.False(t, c.Increment("a.B"))
	assert.True(t, c.Increment("c.D"))

	got, ok := c.Get("a.B")
	require.True(t, ok)
	assert.EqualValues(t, 3, got)

	got, ok = c.Get("c.D")
	require.True(t, ok)
	assert.EqualValues(t, 1, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a.B", "c.D"}, c.Keys())
	assert.Equal(t, map[string]int64{"a.B": 3, "c.D": 1}, c.Snapshot())
	assert.Equal(t, 2, c.Len())
}

func TestCounter_Reset(t *testing.T) {
	t.Parallel()

	c := counter.New()
	c.Increment("a.B")
	c.Increment("c.D")
	c.Reset()

	_, ok := c.Get("a.B")
	assert.False(t, ok)
	assert.Empty(t, c.Keys())
	assert.Zero(t, c.Len())

	// A key seen before the reset is new again afterwards.
	assert.True(t, c.Increment("a.B"))
	got, _ := c.Get("a.B")
	assert.EqualValues(t, 1, got)
}

func TestCounter_ConcurrentIncrement(t *testing.T) {
	t.Parallel()

	const (
		goroutines = 16
		perG       = 1000
		keys       = 4
	)

	c := counter.New()
	var (
		wg      sync.WaitGroup
		newKeys sync.Map
	)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				key := fmt.Sprintf("k%d", i%keys)
				if c.Increment(key) {
					_, dup := newKeys.LoadOrStore(key, true)
					assert.False(t, dup, "key %s reported new twice", key)
				}
			}
		}()
	}
	wg.Wait()

	for k := 0; k < keys; k++ {
		got, ok := c.Get(fmt.Sprintf("k%d", k))
		require.True(t, ok)
		assert.EqualValues(t, goroutines*perG/keys, got)
	}
}
