package guard_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/st-keller/event-counter/guard"
)

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("MarksOnlyDerivedContext", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		require.False(t, guard.Active(ctx))

		got, err := guard.Run(ctx, func(inner context.Context) (bool, error) {
			return guard.Active(inner), nil
		})
		require.NoError(t, err)
		assert.True(t, got)
		assert.False(t, guard.Active(ctx), "outer context must stay unmarked")
	})

	t.Run("ReturnsActionError", func(t *testing.T) {
		t.Parallel()

		want := xerrors.New("boom")
		_, err := guard.Run(context.Background(), func(context.Context) (int, error) {
			return 0, want
		})
		require.ErrorIs(t, err, want)
	})

	t.Run("RecoversPanic", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		got, err := guard.Run(ctx, func(context.Context) (int, error) {
			panic("bad bookkeeping")
		})
		require.ErrorIs(t, err, guard.ErrPanicked)
		assert.Contains(t, err.Error(), "bad bookkeeping")
		assert.Zero(t, got)
		assert.False(t, guard.Active(ctx))
	})

	t.Run("NilContext", func(t *testing.T) {
		t.Parallel()

		//nolint:staticcheck // nil context is tolerated on purpose.
		got, err := guard.Run(nil, func(inner context.Context) (bool, error) {
			return guard.Active(inner), nil
		})
		require.NoError(t, err)
		assert.True(t, got)
		//nolint:staticcheck
		assert.False(t, guard.Active(nil))
	})

	t.Run("Nested", func(t *testing.T) {
		t.Parallel()

		got, err := guard.Run(context.Background(), func(outer context.Context) (bool, error) {
			return guard.Run(outer, func(inner context.Context) (bool, error) {
				return guard.Active(inner), nil
			})
		})
		require.NoError(t, err)
		assert.True(t, got)
	})
}

func TestRunIndependentCallers(t *testing.T) {
	t.Parallel()

	// A guarded region on one goroutine must never suppress another.
	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = guard.Run(context.Background(), func(context.Context) (struct{}, error) {
			close(entered)
			<-release
			return struct{}{}, nil
		})
	}()

	<-entered
	assert.False(t, guard.Active(context.Background()))
	close(release)
	wg.Wait()
}
