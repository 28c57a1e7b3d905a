package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperoffice-ai/api-file-processor/errors"
)

// instrument replaces the governor's sleep with an instant one that records
// the total requested wait.
func instrument(g *Governor) *time.Duration {
	var total time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		total += d
		return ctx.Err()
	}
	return &total
}

func TestGovernorApply(t *testing.T) {
	t.Run("no counters means no wait", func(t *testing.T) {
		g := NewGovernor(nil, false)
		slept := instrument(g)

		require.NoError(t, g.Apply(context.Background(), nil))
		require.NoError(t, g.Apply(context.Background(), map[string]int{}))

		assert.Equal(t, time.Duration(0), *slept)
	})

	t.Run("healthy counters pass through", func(t *testing.T) {
		g := NewGovernor(nil, false)
		slept := instrument(g)

		err := g.Apply(context.Background(), map[string]int{"1_minute": 5, "1_hour": 80})

		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), *slept)
	})

	t.Run("exhausted minute window waits sixty seconds", func(t *testing.T) {
		g := NewGovernor(nil, false)
		slept := instrument(g)

		err := g.Apply(context.Background(), map[string]int{"1_minute": 0, "1_hour": 50})

		require.NoError(t, err)
		assert.Equal(t, time.Minute, *slept)
	})

	t.Run("exhausted hour window waits an hour", func(t *testing.T) {
		g := NewGovernor(nil, false)
		slept := instrument(g)

		err := g.Apply(context.Background(), map[string]int{"1_minute": 3, "1_hour": 0})

		require.NoError(t, err)
		assert.Equal(t, time.Hour, *slept)
	})

	t.Run("minute window takes precedence over hour window", func(t *testing.T) {
		g := NewGovernor(nil, false)
		slept := instrument(g)

		err := g.Apply(context.Background(), map[string]int{"1_minute": 0, "1_hour": 0})

		require.NoError(t, err)
		assert.Equal(t, time.Minute, *slept)
	})

	t.Run("unknown exhausted window ends the folder", func(t *testing.T) {
		g := NewGovernor(nil, false)
		instrument(g)

		err := g.Apply(context.Background(), map[string]int{"1_day": 0})

		require.Error(t, err)
		assert.True(t, errors.IsFolderFatal(err))
	})

	t.Run("cancellation interrupts the wait", func(t *testing.T) {
		g := NewGovernor(nil, false)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		g.sleep = func(ctx context.Context, d time.Duration) error {
			return ctx.Err()
		}

		err := g.Apply(ctx, map[string]int{"1_minute": 0})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSubmissionLimiter(t *testing.T) {
	t.Run("zero rate never blocks", func(t *testing.T) {
		l := NewSubmissionLimiter(0)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		for i := 0; i < 100; i++ {
			require.NoError(t, l.Wait(ctx))
		}
	})

	t.Run("nil limiter never blocks", func(t *testing.T) {
		var l *SubmissionLimiter
		require.NoError(t, l.Wait(context.Background()))
	})

	t.Run("first submission is immediate", func(t *testing.T) {
		l := NewSubmissionLimiter(10)
		start := time.Now()
		require.NoError(t, l.Wait(context.Background()))
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	})
}
