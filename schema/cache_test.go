package schema_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"golang.org/x/xerrors"

	"github.com/st-keller/event-counter/guard"
	"github.com/st-keller/event-counter/schema"
)

// keySource is a minimal live state for the cache to describe.
type keySource struct {
	mu   sync.Mutex
	keys []string
}

func (s *keySource) add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
}

func (s *keySource) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *keySource) build(context.Context) (*schema.Descriptor, error) {
	return schema.New("test", "", schema.Counters(s.snapshot(), "Event count"), nil), nil
}

func TestCache_StartsInvalid(t *testing.T) {
	t.Parallel()

	builds := atomic.NewInt64(0)
	cache := schema.NewCache(func(context.Context) (*schema.Descriptor, error) {
		builds.Inc()
		return schema.New("test", "", nil, nil), nil
	})
	require.False(t, cache.Valid())

	desc, err := cache.Read(context.Background())
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.True(t, cache.Valid())
	assert.EqualValues(t, 1, builds.Load())

	again, err := cache.Read(context.Background())
	require.NoError(t, err)
	assert.Same(t, desc, again, "valid cache returns the same descriptor")
	assert.EqualValues(t, 1, builds.Load())
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()

	src := &keySource{}
	cache := schema.NewCache(src.build)

	desc, err := cache.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, desc.AttributeNames())

	src.add("a.B")
	cache.Invalidate()
	cache.Invalidate() // idempotent
	assert.False(t, cache.Valid())

	desc, err = cache.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.B"}, desc.AttributeNames())
}

func TestCache_BuildRunsGuarded(t *testing.T) {
	t.Parallel()

	var guarded bool
	cache := schema.NewCache(func(ctx context.Context) (*schema.Descriptor, error) {
		guarded = guard.Active(ctx)
		return schema.New("test", "", nil, nil), nil
	})
	_, err := cache.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, guarded)
}

func TestCache_BuildError(t *testing.T) {
	t.Parallel()

	want := xerrors.New("no keys for you")
	fail := atomic.NewBool(true)
	cache := schema.NewCache(func(context.Context) (*schema.Descriptor, error) {
		if fail.Load() {
			return nil, want
		}
		return schema.New("test", "", nil, nil), nil
	})

	_, err := cache.Read(context.Background())
	require.ErrorIs(t, err, want)
	assert.False(t, cache.Valid(), "failed build must not be cached")

	fail.Store(false)
	desc, err := cache.Read(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, desc)
}

func TestCache_BuildPanic(t *testing.T) {
	t.Parallel()

	cache := schema.NewCache(func(context.Context) (*schema.Descriptor, error) {
		panic("broken builder")
	})
	_, err := cache.Read(context.Background())
	require.ErrorIs(t, err, guard.ErrPanicked)
}

// An invalidation that lands while a rebuild is in flight must not be lost.
func TestCache_InvalidateDuringBuild(t *testing.T) {
	t.Parallel()

	src := &keySource{}
	building := make(chan struct{})
	resume := make(chan struct{})
	first := atomic.NewBool(true)
	cache := schema.NewCache(func(ctx context.Context) (*schema.Descriptor, error) {
		desc, err := src.build(ctx)
		if first.CompareAndSwap(true, false) {
			close(building)
			<-resume
		}
		return desc, err
	})

	done := make(chan *schema.Descriptor)
	go func() {
		desc, err := cache.Read(context.Background())
		assert.NoError(t, err)
		done <- desc
	}()

	<-building
	src.add("x.Y")
	cache.Invalidate()
	close(resume)

	stale := <-done
	assert.Empty(t, stale.AttributeNames(), "in-flight build saw the old key set")

	desc, err := cache.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x.Y"}, desc.AttributeNames())
}

func TestCache_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	src := &keySource{}
	cache := schema.NewCache(src.build)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_, err := cache.Read(context.Background())
				assert.NoError(t, err)
			}
		}()
	}

	for _, key := range []string{"a.B", "c.D", "e.F"} {
		src.add(key)
		cache.Invalidate()
	}
	close(stop)
	wg.Wait()

	desc, err := cache.Read(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.B", "c.D", "e.F"}, desc.AttributeNames())
}
