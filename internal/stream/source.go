package stream

import (
	"sync"

	"github.com/Iron-Ham/hostbridge/internal/event"
)

// Source is a value source that pushes updates to listeners. Sources invoke
// each listener in production order; listeners must not block.
type Source[T any] interface {
	// Listen registers fn and returns a function that unregisters it.
	// The returned function is idempotent.
	Listen(fn func(T)) (detach func())
}

// Stateful is a Source that always holds a current value. Listen replays
// that value to fn before any later update, atomically with registration.
type Stateful[T any] interface {
	Source[T]
	Value() T
}

// listenerSet is an ordered registry of listeners. It is not safe for
// concurrent use; owners guard it with their own lock.
type listenerSet[T any] struct {
	nextID  uint64
	entries []listenerEntry[T]
}

type listenerEntry[T any] struct {
	id uint64
	fn func(T)
}

func (ls *listenerSet[T]) add(fn func(T)) uint64 {
	ls.nextID++
	ls.entries = append(ls.entries, listenerEntry[T]{id: ls.nextID, fn: fn})
	return ls.nextID
}

func (ls *listenerSet[T]) remove(id uint64) {
	for i, e := range ls.entries {
		if e.id == id {
			ls.entries = append(ls.entries[:i:i], ls.entries[i+1:]...)
			return
		}
	}
}

func (ls *listenerSet[T]) emit(v T) {
	for _, e := range ls.entries {
		e.fn(v)
	}
}

func (ls *listenerSet[T]) len() int {
	return len(ls.entries)
}

// StateOption configures a State.
type StateOption[T any] func(*State[T])

// WithEqual makes Set drop a value equal to the current one. This is the
// only conflation a State performs.
func WithEqual[T any](equal func(a, b T) bool) StateOption[T] {
	return func(s *State[T]) {
		s.equal = equal
	}
}

// State is a Stateful source holding a current value. It may be shared and
// mutated by several producers; listeners observe one total order of values.
type State[T any] struct {
	mu        sync.Mutex
	value     T
	equal     func(a, b T) bool
	listeners listenerSet[T]
}

// NewState creates a State holding initial.
func NewState[T any](initial T, opts ...StateOption[T]) *State[T] {
	s := &State[T]{value: initial}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set stores v and notifies listeners.
func (s *State[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(v)
}

// Update applies fn to the current value, stores the result, and returns it.
func (s *State[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := fn(s.value)
	s.setLocked(v)
	return v
}

func (s *State[T]) setLocked(v T) {
	if s.equal != nil && s.equal(s.value, v) {
		return
	}
	s.value = v
	s.listeners.emit(v)
}

// Value returns the current value without blocking on listeners.
func (s *State[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Listen replays the current value to fn, then registers it for updates.
func (s *State[T]) Listen(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.value)
	id := s.listeners.add(fn)
	return s.detacher(id)
}

// Listeners returns the number of registered listeners.
func (s *State[T]) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listeners.len()
}

func (s *State[T]) detacher(id uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.listeners.remove(id)
		})
	}
}

// Feed is a stateless Source: listeners only see values emitted after they
// registered.
type Feed[T any] struct {
	mu        sync.Mutex
	listeners listenerSet[T]
}

// NewFeed creates an empty Feed.
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{}
}

// Emit delivers v to every registered listener.
func (f *Feed[T]) Emit(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners.emit(v)
}

// Listen registers fn for future values.
func (f *Feed[T]) Listen(fn func(T)) func() {
	f.mu.Lock()
	id := f.listeners.add(fn)
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.listeners.remove(id)
		})
	}
}

// Listeners returns the number of registered listeners.
func (f *Feed[T]) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listeners.len()
}

// BusSource is a stateless Source backed by an event bus. It forwards
// events whose type matches pattern and whose Go type is T.
type BusSource[T event.Event] struct {
	bus     *event.Bus
	pattern string
}

// NewBusSource creates a BusSource. pattern follows event.Bus.Subscribe.
func NewBusSource[T event.Event](bus *event.Bus, pattern string) *BusSource[T] {
	return &BusSource[T]{bus: bus, pattern: pattern}
}

// Pattern returns the event pattern the source listens to.
func (b *BusSource[T]) Pattern() string {
	return b.pattern
}

// Listen subscribes fn to matching events.
func (b *BusSource[T]) Listen(fn func(T)) func() {
	id := b.bus.Subscribe(b.pattern, func(e event.Event) {
		if v, ok := e.(T); ok {
			fn(v)
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.bus.Unsubscribe(id)
		})
	}
}
