package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextFireAlignsToEpochMultiples(t *testing.T) {
	interval := time.Hour

	now := time.Unix(3600*5+17, 0)
	next := nextFire(now, interval)
	assert.Equal(t, time.Unix(3600*6, 0).UTC(), next.UTC())

	t.Run("exact boundary moves to the next one", func(t *testing.T) {
		next := nextFire(time.Unix(3600*6, 0), interval)
		assert.Equal(t, time.Unix(3600*7, 0).UTC(), next.UTC())
	})

	t.Run("always strictly in the future", func(t *testing.T) {
		now := time.Now()
		assert.True(t, nextFire(now, time.Second).After(now))
	})
}

func TestRunFiresOnCadence(t *testing.T) {
	var fired atomic.Int32

	s := New(Job{
		Name:     "tick",
		Interval: 50 * time.Millisecond,
		Run:      func(ctx context.Context) { fired.Add(1) },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 275*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	// Around five boundaries fit the window; allow scheduling jitter.
	count := fired.Load()
	assert.GreaterOrEqual(t, count, int32(3))
	assert.LessOrEqual(t, count, int32(6))
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Job{
		Name:     "tick",
		Interval: time.Hour,
		Run:      func(ctx context.Context) {},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

func TestRunInterleavesJobs(t *testing.T) {
	var fast, slow atomic.Int32

	s := New(
		Job{Name: "fast", Interval: 40 * time.Millisecond,
			Run: func(ctx context.Context) { fast.Add(1) }},
		Job{Name: "slow", Interval: 120 * time.Millisecond,
			Run: func(ctx context.Context) { slow.Add(1) }},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.Greater(t, fast.Load(), slow.Load())
	assert.Positive(t, slow.Load())
}
