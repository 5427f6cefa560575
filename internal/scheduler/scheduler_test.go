package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestNewPanicsOnBadInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive interval")
		}
	}()
	New(Options{Interval: 0}, noopLogger())
}

func TestRunExecutesImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	s := New(Options{Interval: time.Hour}, noopLogger())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			fired <- struct{}{}
			return nil
		})
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick did not fire before the interval elapsed")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunTicksAtInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var count atomic.Int64
	s := New(Options{Interval: 10 * time.Millisecond}, noopLogger())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			count.Add(1)
			return nil
		})
	}()

	time.Sleep(120 * time.Millisecond)
	cancel()
	<-done

	if got := count.Load(); got < 4 {
		t.Fatalf("expected at least 4 ticks over 120ms, got %d", got)
	}
}

func TestRunDropsMissedTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var starts []time.Time
	s := New(Options{Interval: 50 * time.Millisecond}, noopLogger())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			mu.Lock()
			n := len(starts)
			starts = append(starts, time.Now())
			mu.Unlock()
			if n == 1 {
				time.Sleep(120 * time.Millisecond)
			}
			return nil
		})
	}()

	time.Sleep(320 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(starts) < 3 {
		t.Fatalf("expected ticks to resume after the slow one, got %d", len(starts))
	}
	// The 120ms sleep swallows two 50ms intervals. With queued catch-up the
	// third invocation would start right as the sleep ends; dropping means
	// it waits for the next ticker fire.
	gap := starts[2].Sub(starts[1])
	if gap < 135*time.Millisecond {
		t.Fatalf("tick after the slow one started %v later, backlog was not dropped", gap)
	}
}

func TestRunKeepsGoingAfterTickError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var count atomic.Int64
	s := New(Options{Interval: 10 * time.Millisecond}, noopLogger())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			count.Add(1)
			return errors.New("boom")
		})
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	if got := count.Load(); got < 2 {
		t.Fatalf("tick errors must not stop the loop, got %d ticks", got)
	}
}

func TestRunHonoursJitterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Options{Interval: time.Hour, Jitter: time.Hour}, noopLogger())
	err := s.Run(ctx, func(context.Context, time.Time) error {
		t.Fatal("tick must not fire when cancelled during jitter")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
