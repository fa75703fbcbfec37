package stream

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Iron-Ham/hostbridge/internal/delivery"
	"github.com/Iron-Ham/hostbridge/internal/errors"
	"github.com/Iron-Ham/hostbridge/internal/logging"
)

// subHandle is one attachment of a callback to a source.
type subHandle struct {
	id     string
	closed atomic.Bool
	loop   *delivery.Loop
	detach func()
	logger *logging.Logger
}

// Subscription forwards every value of a Source, in production order, to a
// single active callback on a dedicated delivery goroutine.
type Subscription[T any] struct {
	src    Source[T]
	cfg    config
	logger *logging.Logger

	mu       sync.Mutex
	current  *subHandle
	last     *subHandle // most recent handle, even after Close
	disposed error
}

// NewSubscription creates a Subscription over src. The source is referenced,
// never owned.
func NewSubscription[T any](src Source[T], opts ...Option) *Subscription[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Subscription[T]{
		src:    src,
		cfg:    cfg,
		logger: cfg.logger.WithComponent("subscription").With("stream", cfg.name),
	}
	if cfg.scope != nil {
		if err := cfg.scope.Adopt(s); err != nil {
			s.disposed = err
		}
	}
	return s
}

// Name returns the subscription's name.
func (s *Subscription[T]) Name() string {
	return s.cfg.name
}

// Subscribe closes any previous handle, then attaches onEach to the source.
// A stateful source delivers its current value first. After Subscribe
// returns, the previous callback is never invoked again, and onEach does not
// run until a previous callback still in progress has returned.
//
// Subscribe panics with a *errors.LifecycleError if the subscription was
// disposed or its scope closed.
func (s *Subscription[T]) Subscribe(onEach func(T)) {
	if onEach == nil {
		panic(errors.NewLifecycleError("subscription", "subscribe", errors.ErrInvalidInput).
			WithMessage("nil callback for " + s.cfg.name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkUsableLocked("subscribe")
	if prev := s.current; prev != nil {
		s.closeHandleLocked(prev)
		prev.logger.Debug("subscription replaced")
	}

	id := uuid.NewString()
	h := &subHandle{
		id:     id,
		logger: s.logger.WithHandle(id),
	}
	var prevLoop *delivery.Loop
	if s.last != nil {
		prevLoop = s.last.loop
	}
	h.loop = delivery.NewLoopAfter(fmt.Sprintf("%s/%s", s.cfg.name, id), h.logger, prevLoop)

	name := s.cfg.name
	observer := s.cfg.observer
	h.detach = s.src.Listen(func(v T) {
		h.loop.Post(func() {
			if h.closed.Load() {
				return
			}
			observer.Delivered(name)
			onEach(v)
		})
	})

	s.current = h
	s.last = h
	observer.SubscriptionOpened(name)
	h.logger.Debug("subscription opened")
}

// Close detaches the current handle. No callback runs after Close returns,
// including values the source already produced but that were not yet
// delivered. Close is idempotent and the subscription stays reusable.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.closeHandleLocked(s.current)
	}
}

// Dispose closes the current handle and makes the subscription unusable.
// It is idempotent.
func (s *Subscription[T]) Dispose() {
	s.mu.Lock()
	if s.disposed != nil {
		s.mu.Unlock()
		return
	}
	s.disposed = errors.ErrDisposed
	if s.current != nil {
		s.closeHandleLocked(s.current)
	}
	s.mu.Unlock()

	if s.cfg.scope != nil {
		s.cfg.scope.Release(s)
	}
	s.logger.Debug("subscription disposed")
}

// Active reports whether a callback is currently attached.
func (s *Subscription[T]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Disposed reports whether the subscription can no longer subscribe.
func (s *Subscription[T]) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed != nil
}

func (s *Subscription[T]) checkUsable(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkUsableLocked(op)
}

func (s *Subscription[T]) checkUsableLocked(op string) {
	if s.disposed != nil {
		panic(errors.NewLifecycleError("subscription", op, s.disposed).
			WithState("disposed").
			WithMessage(s.cfg.name))
	}
}

// closeHandleLocked flips the closed flag before anything else so that a
// value already queued on the loop is dropped by the check in the posted
// function.
func (s *Subscription[T]) closeHandleLocked(h *subHandle) {
	h.closed.Store(true)
	h.detach()
	h.loop.Close()
	if s.current == h {
		s.current = nil
	}
	s.cfg.observer.SubscriptionClosed(s.cfg.name)
	h.logger.Debug("subscription closed")
}

// StateSubscription is a Subscription over a Stateful source that can also
// read the source's current value without subscribing.
type StateSubscription[T any] struct {
	*Subscription[T]
	state Stateful[T]
}

// NewStateSubscription creates a StateSubscription over src.
func NewStateSubscription[T any](src Stateful[T], opts ...Option) *StateSubscription[T] {
	return &StateSubscription[T]{
		Subscription: NewSubscription[T](src, opts...),
		state:        src,
	}
}

// Value returns the source's current value. It never blocks on delivery and
// is available whether or not a callback is attached. It panics with a
// *errors.LifecycleError after Dispose.
func (s *StateSubscription[T]) Value() T {
	s.checkUsable("value")
	return s.state.Value()
}
