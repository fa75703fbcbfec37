package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// acquireAsync starts an Acquire and returns a channel that receives its
// result.
func acquireAsync(ctx context.Context, l *inflightLimiter) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- l.Acquire(ctx) }()
	return ch
}

func waitForWaiters(t *testing.T, l *inflightLimiter, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for l.Waiting() < n {
		if time.Now().After(deadline) {
			t.Fatalf("Waiting() = %d, want %d", l.Waiting(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func expectBlocked(t *testing.T, ch <-chan error) {
	t.Helper()
	select {
	case err := <-ch:
		t.Fatalf("Acquire returned %v, want it to block", err)
	case <-time.After(30 * time.Millisecond):
	}
}

func expectAcquired(t *testing.T, ch <-chan error) {
	t.Helper()
	select {
	case err := <-ch:
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not unblock")
	}
}

func TestInflightLimiter_Unlimited(t *testing.T) {
	l := newInflightLimiter(0)
	for i := range 100 {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if l.Acquired() != 100 {
		t.Errorf("Acquired() = %d, want 100", l.Acquired())
	}
}

func TestInflightLimiter_NegativeLimitsClamp(t *testing.T) {
	if got := newInflightLimiter(-5).Limit(); got != 0 {
		t.Errorf("newInflightLimiter(-5).Limit() = %d, want 0", got)
	}
	l := newInflightLimiter(2)
	l.SetLimit(-1)
	if l.Limit() != 0 {
		t.Errorf("SetLimit(-1).Limit() = %d, want 0", l.Limit())
	}
}

func TestInflightLimiter_BlocksAtLimit(t *testing.T) {
	l := newInflightLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ch := acquireAsync(context.Background(), l)
	expectBlocked(t, ch)

	l.Release()
	expectAcquired(t, ch)
	l.Release()
}

func TestInflightLimiter_CancelledAcquireTakesNoSlot(t *testing.T) {
	l := newInflightLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := acquireAsync(ctx, l)
	waitForWaiters(t, l, 1)
	cancel()

	select {
	case err := <-ch:
		if err != context.Canceled {
			t.Errorf("Acquire error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled Acquire did not return")
	}
	if l.Acquired() != 1 {
		t.Errorf("Acquired() = %d, want 1", l.Acquired())
	}
	if l.Waiting() != 0 {
		t.Errorf("Waiting() = %d, want 0", l.Waiting())
	}
}

func TestInflightLimiter_Resize(t *testing.T) {
	tests := []struct {
		name     string
		initial  int
		held     int
		newLimit int
		releases int // releases needed before the waiter gets through
	}{
		{name: "grow", initial: 1, held: 1, newLimit: 2, releases: 0},
		{name: "unlimited", initial: 1, held: 1, newLimit: 0, releases: 0},
		{name: "shrink", initial: 3, held: 2, newLimit: 1, releases: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newInflightLimiter(tt.initial)
			for range tt.held {
				if err := l.Acquire(context.Background()); err != nil {
					t.Fatalf("Acquire: %v", err)
				}
			}
			if tt.newLimit != 0 && tt.newLimit < tt.initial {
				l.SetLimit(tt.newLimit)
			}

			ch := acquireAsync(context.Background(), l)
			if tt.releases > 0 {
				expectBlocked(t, ch)
				for i := range tt.releases {
					l.Release()
					if i < tt.releases-1 {
						expectBlocked(t, ch)
					}
				}
			} else {
				expectBlocked(t, ch)
				l.SetLimit(tt.newLimit)
			}
			expectAcquired(t, ch)
		})
	}
}

func TestInflightLimiter_ReleaseNeverNegative(t *testing.T) {
	l := newInflightLimiter(1)
	l.Release()
	if l.Acquired() != 0 {
		t.Errorf("Acquired() = %d, want 0", l.Acquired())
	}
}

func TestInflightLimiter_ConcurrentStress(t *testing.T) {
	l := newInflightLimiter(5)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		running   atomic.Int32
		peak      atomic.Int32
		completed atomic.Int32
		wg        sync.WaitGroup
	)
	for range 50 {
		wg.Go(func() {
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			completed.Add(1)
			l.Release()
		})
	}
	wg.Wait()

	if completed.Load() != 50 {
		t.Errorf("completed = %d, want 50", completed.Load())
	}
	if peak.Load() > 5 {
		t.Errorf("peak concurrency = %d, want <= 5", peak.Load())
	}
	if l.Acquired() != 0 {
		t.Errorf("Acquired() = %d after all releases, want 0", l.Acquired())
	}
}

func TestOpTracker_DrainWaitsThenRefuses(t *testing.T) {
	var tr opTracker
	if !tr.enter() {
		t.Fatal("enter on a fresh tracker should succeed")
	}

	drained := make(chan struct{})
	go func() {
		tr.drain()
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatal("drain returned while an operation was running")
	case <-time.After(30 * time.Millisecond):
	}

	if tr.enter() {
		t.Error("enter after drain started should be refused")
	}

	tr.exit()
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("drain never returned after the last exit")
	}
}
