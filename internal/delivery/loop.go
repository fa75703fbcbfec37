package delivery

import (
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/hostbridge/internal/logging"
)

// Loop runs posted functions one at a time on a dedicated goroutine.
// It is safe for concurrent use.
type Loop struct {
	name   string
	logger *logging.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool

	wake  chan struct{}
	done  chan struct{}
	after <-chan struct{}
}

// NewLoop starts a Loop. The goroutine exits once Close is called and the
// function currently running, if any, returns.
func NewLoop(name string, logger *logging.Logger) *Loop {
	return NewLoopAfter(name, logger, nil)
}

// NewLoopAfter starts a Loop that runs nothing until prev's goroutine has
// exited. Chaining each handle's loop to its predecessor keeps the callbacks
// of one owner strictly sequential across handles. A nil prev behaves like
// NewLoop.
func NewLoopAfter(name string, logger *logging.Logger, prev *Loop) *Loop {
	if logger == nil {
		logger = logging.NopLogger()
	}
	l := &Loop{
		name:   name,
		logger: logger.With("loop", name),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if prev != nil {
		l.after = prev.Done()
	}
	go l.run()
	return l
}

// Name returns the name the loop was created with.
func (l *Loop) Name() string {
	return l.name
}

// Post enqueues fn without blocking. It returns false if the loop is closed,
// in which case fn will never run.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	l.signal()
	return true
}

// Close stops the loop. Queued functions that have not started are dropped.
// Close never blocks, is idempotent, and may be called from inside a posted
// function. Use Done to wait for the goroutine to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	dropped := len(l.queue)
	l.queue = nil
	l.mu.Unlock()

	if dropped > 0 {
		l.logger.Debug("delivery loop closed with pending items", "dropped", dropped)
	}
	l.signal()
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Done returns a channel that is closed when the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Pending returns the number of queued functions that have not started.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer close(l.done)

	if l.after != nil {
		<-l.after
		l.after = nil
	}

	for {
		fn, ok := l.next()
		if !ok {
			return
		}
		l.invoke(fn)
	}
}

// next blocks until a function is available or the loop is closed.
func (l *Loop) next() (func(), bool) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, false
		}
		if len(l.queue) > 0 {
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			return fn, true
		}
		l.mu.Unlock()
		<-l.wake
	}
}

func (l *Loop) invoke(fn func()) {
	if r := panics.Try(fn); r != nil {
		l.logger.Error("delivery callback panicked",
			"panic", fmt.Sprint(r.Value),
			"stack", string(r.Stack))
	}
}
