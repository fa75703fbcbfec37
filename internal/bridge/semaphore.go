package bridge

import (
	"context"
	"sync"
)

// inflightLimiter caps how many collaborator calls run at once across every
// Call and Action minted by a Bridge. A limit of 0 means unlimited.
//
// The limit can change while calls are waiting (config reload); waiters are
// woken with Cond.Broadcast and re-check against the new limit.
type inflightLimiter struct {
	mu       sync.Mutex
	cond     *sync.Cond
	limit    int // 0 = unlimited
	acquired int
	waiting  int
}

// newInflightLimiter creates a limiter. Negative limits are clamped to 0.
func newInflightLimiter(limit int) *inflightLimiter {
	if limit < 0 {
		limit = 0
	}
	l := &inflightLimiter{limit: limit}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Acquire blocks until a slot is free or ctx is done, in which case it
// returns ctx.Err() without taking a slot.
func (l *inflightLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit == 0 {
		l.acquired++
		return nil
	}

	// Wake the waiters when ctx ends so the loop below can observe it.
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stop()

	l.waiting++
	defer func() { l.waiting-- }()

	for l.limit > 0 && l.acquired >= l.limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.acquired++
	return nil
}

// Release frees a slot and wakes one waiter. Extra releases are ignored.
func (l *inflightLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.acquired > 0 {
		l.acquired--
	}
	l.cond.Signal()
}

// SetLimit changes the capacity. Slots already held stay held; lowering the
// limit only delays new acquisitions.
func (l *inflightLimiter) SetLimit(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n < 0 {
		n = 0
	}
	l.limit = n
	l.cond.Broadcast()
}

// Limit returns the current limit.
func (l *inflightLimiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// Acquired returns how many slots are held.
func (l *inflightLimiter) Acquired() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}

// Waiting returns how many callers are blocked in Acquire.
func (l *inflightLimiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiting
}
