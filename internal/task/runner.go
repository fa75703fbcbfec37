package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/hostbridge/internal/delivery"
	"github.com/Iron-Ham/hostbridge/internal/errors"
	"github.com/Iron-Ham/hostbridge/internal/logging"
)

// State is the state of a runner's most recent handle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// handle is one in-flight operation. Its state only ever moves out of
// StateRunning once, and whoever performs that move decides whether a
// callback runs.
type handle struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32
	loop   *delivery.Loop
	logger *logging.Logger
}

func (h *handle) transition(to State) bool {
	return h.state.CompareAndSwap(int32(StateRunning), int32(to))
}

// Runner runs one operation at a time and delivers exactly one terminal
// callback per Start, unless the operation is cancelled or superseded first.
//
// Start, Cancel and Dispose are expected to be called from the host's own
// control goroutine; they are nonetheless safe for concurrent use.
type Runner[T any] struct {
	cfg    config
	logger *logging.Logger

	mu       sync.Mutex
	current  *handle // handle that may still deliver, nil once retired
	latest   *handle // most recently started handle, for State
	disposed error   // non-nil once the runner is unusable

	wg conc.WaitGroup
}

// NewRunner creates a Runner.
func NewRunner[T any](opts ...Option) *Runner[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Runner[T]{
		cfg:    cfg,
		logger: cfg.logger.WithComponent("runner").With("runner", cfg.name),
	}
	if cfg.scope != nil {
		if err := cfg.scope.Adopt(r); err != nil {
			r.disposed = err
		}
	}
	return r
}

// Name returns the runner's name.
func (r *Runner[T]) Name() string {
	return r.cfg.name
}

// Start runs op and delivers its outcome to onSuccess or onError on a
// dedicated delivery goroutine. Any previous handle is cancelled before op
// starts and will never deliver. If a previous callback is still running,
// the new handle's callback waits for it to return. Nil callbacks are
// treated as no-ops.
//
// Start panics with a *errors.LifecycleError if the runner was disposed or
// its scope closed.
func (r *Runner[T]) Start(op func(context.Context) Outcome[T], onSuccess func(T), onError func(error)) {
	if op == nil {
		panic(errors.NewLifecycleError("runner", "start", errors.ErrInvalidInput).
			WithMessage("nil operation for " + r.cfg.name))
	}

	r.mu.Lock()
	if r.disposed != nil {
		cause := r.disposed
		r.mu.Unlock()
		panic(errors.NewLifecycleError("runner", "start", cause).
			WithState("disposed").
			WithMessage(r.cfg.name))
	}
	prev := r.current
	h := r.newHandle(r.latest)
	r.current = h
	r.latest = h
	r.cfg.observer.TaskStarted(r.cfg.name)
	r.mu.Unlock()

	if prev != nil {
		if r.abort(prev) {
			prev.logger.Debug("task superseded", "by", h.id)
		}
	}

	h.logger.Debug("task started")

	r.wg.Go(func() {
		r.run(h, op, onSuccess, onError)
	})
}

// StartCatching is Start for operations that report failure through a
// returned error. Panics are recovered in both variants.
func (r *Runner[T]) StartCatching(op func(context.Context) (T, error), onSuccess func(T), onError func(error)) {
	if op == nil {
		r.Start(nil, onSuccess, onError)
		return
	}
	r.Start(func(ctx context.Context) Outcome[T] {
		return FromResult(op(ctx))
	}, onSuccess, onError)
}

// Cancel cancels the in-flight handle, if any. Neither callback of that
// handle runs after Cancel returns. Cancel is idempotent, never blocks, and
// leaves the runner reusable.
func (r *Runner[T]) Cancel() {
	r.mu.Lock()
	h := r.current
	r.current = nil
	r.mu.Unlock()

	if h != nil && r.abort(h) {
		h.logger.Debug("task cancelled")
	}
}

// Dispose cancels any in-flight handle and makes the runner unusable.
// It is idempotent.
func (r *Runner[T]) Dispose() {
	r.mu.Lock()
	if r.disposed != nil {
		r.mu.Unlock()
		return
	}
	r.disposed = errors.ErrDisposed
	h := r.current
	r.current = nil
	r.mu.Unlock()

	if h != nil {
		r.abort(h)
	}
	if r.cfg.scope != nil {
		r.cfg.scope.Release(r)
	}
	r.logger.Debug("runner disposed")
}

// Disposed reports whether the runner can no longer start work.
func (r *Runner[T]) Disposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed != nil
}

// State returns the state of the most recently started handle.
func (r *Runner[T]) State() State {
	r.mu.Lock()
	h := r.latest
	r.mu.Unlock()

	if h == nil {
		return StateIdle
	}
	return State(h.state.Load())
}

// Wait blocks until every operation started on this runner has returned and
// its delivery goroutine has exited. It must not be called from a callback.
func (r *Runner[T]) Wait() {
	r.wg.Wait()
}

// newHandle creates a handle whose delivery loop starts only after the
// loop of after, the previously started handle, has exited.
func (r *Runner[T]) newHandle(after *handle) *handle {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	h := &handle{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		logger: r.logger.WithHandle(id),
	}
	h.state.Store(int32(StateRunning))
	var prevLoop *delivery.Loop
	if after != nil {
		prevLoop = after.loop
	}
	h.loop = delivery.NewLoopAfter(fmt.Sprintf("%s/%s", r.cfg.name, id), h.logger, prevLoop)
	return h
}

// abort moves h to StateCancelled and releases it. It returns false if h
// had already settled.
func (r *Runner[T]) abort(h *handle) bool {
	if !h.transition(StateCancelled) {
		return false
	}
	r.release(h)
	r.cfg.observer.TaskSettled(r.cfg.name, OutcomeCancelled)
	return true
}

// release cancels the handle's context, closes its delivery loop and
// forgets it. Every exit path of a handle ends here.
func (r *Runner[T]) release(h *handle) {
	h.cancel()
	h.loop.Close()

	r.mu.Lock()
	if r.current == h {
		r.current = nil
	}
	r.mu.Unlock()
}

func (r *Runner[T]) run(h *handle, op func(context.Context) Outcome[T], onSuccess func(T), onError func(error)) {
	defer func() { <-h.loop.Done() }()

	var out Outcome[T]
	if rec := panics.Try(func() { out = op(h.ctx) }); rec != nil {
		h.logger.Error("task panicked", "panic", fmt.Sprint(rec.Value))
		out = Failure[T](errors.NewPanicError(rec.Value, rec.Stack))
	}

	if out.IsSuccess() {
		v := out.Value()
		r.deliver(h, OutcomeSuccess, func() {
			if onSuccess != nil {
				onSuccess(v)
			}
		})
		return
	}

	err := out.Err()
	if errors.IsCancellation(err) || h.ctx.Err() != nil {
		if r.abort(h) {
			h.logger.Debug("task ended with cancellation", "error", err)
		}
		return
	}

	r.deliver(h, OutcomeError, func() {
		if onError != nil {
			onError(err)
		}
	})
}

// deliver posts the terminal callback. The Running -> Completed transition
// happens on the delivery goroutine immediately before the callback, so a
// concurrent Cancel either wins and silences the callback or loses and
// observes a completed handle.
func (r *Runner[T]) deliver(h *handle, outcome string, callback func()) {
	posted := h.loop.Post(func() {
		if !h.transition(StateCompleted) {
			return
		}
		defer r.release(h)

		r.cfg.observer.TaskSettled(r.cfg.name, outcome)
		h.logger.Debug("task delivered", "outcome", outcome)
		callback()
	})
	if !posted {
		// The loop only closes after the handle left StateRunning.
		r.release(h)
	}
}
