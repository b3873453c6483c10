package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runUntil runs the scheduler until tick has been called n times.
func runUntil(t *testing.T, s *Scheduler, n int, tick TickFunc) []time.Time {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var calls []time.Time
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, due time.Time) error {
			mu.Lock()
			calls = append(calls, time.Now())
			count := len(calls)
			mu.Unlock()

			err := tick(ctx, due)
			if count >= n {
				cancel()
			}
			return err
		})
	}()

	err := <-done
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(calls), n)
	return calls
}

func TestNewPanicsOnZeroInterval(t *testing.T) {
	assert.Panics(t, func() { New(Options{}, zerolog.Nop()) })
}

func TestRunFiresImmediately(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())
	start := time.Now()

	calls := runUntil(t, s, 1, func(context.Context, time.Time) error { return nil })
	assert.Less(t, calls[0].Sub(start), time.Second)
}

func TestRunContinuesAfterErrors(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	calls := runUntil(t, s, 3, func(context.Context, time.Time) error {
		return errors.New("scrape failed")
	})
	assert.GreaterOrEqual(t, len(calls), 3)
}

func TestRunCoalescesMissedFirings(t *testing.T) {
	interval := 40 * time.Millisecond
	s := New(Options{Interval: interval}, zerolog.Nop())

	var n atomic.Int32
	calls := runUntil(t, s, 3, func(context.Context, time.Time) error {
		if n.Add(1) == 1 {
			time.Sleep(5 * interval)
		}
		return nil
	})

	// one catch-up run right after the overrun, then back to the regular cadence
	assert.GreaterOrEqual(t, calls[2].Sub(calls[1]), interval*3/4)
}

func TestRunNeverOverlaps(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, zerolog.Nop())

	var running, maxRunning atomic.Int32
	runUntil(t, s, 4, func(context.Context, time.Time) error {
		cur := running.Add(1)
		if cur > maxRunning.Load() {
			maxRunning.Store(cur)
		}
		time.Sleep(15 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	assert.EqualValues(t, 1, maxRunning.Load())
}

func TestStartupDelayHonoursCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(context.Context, time.Time) error {
		t.Fatal("tick must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
