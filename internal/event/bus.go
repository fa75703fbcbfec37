package event

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/hostbridge/internal/logging"
)

// Handler is a function that handles an event.
type Handler func(Event)

// wildcard is the pattern registered by SubscribeAll.
const wildcard = "*"

// separator splits event types into segments for pattern matching, so that
// "auth.*" matches "auth.invalid" but not "auth.token.refreshed".
const separator = '.'

// subscription represents a registered event handler.
type subscription struct {
	id      string
	pattern string
	matcher glob.Glob // nil for exact and wildcard subscriptions
	handler Handler
}

func (s subscription) matches(eventType string) bool {
	if s.matcher != nil {
		return s.matcher.Match(eventType)
	}
	return s.pattern == eventType
}

// Bus is a synchronous pub-sub event bus.
// It allows components to communicate without direct dependencies.
type Bus struct {
	mu       sync.RWMutex
	exact    map[string][]subscription // eventType -> subscriptions
	patterns []subscription            // glob subscriptions in registration order
	all      []subscription            // SubscribeAll subscriptions
	nextID   atomic.Uint64
	logger   *logging.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used to report handler panics.
func WithLogger(logger *logging.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger.WithComponent("event_bus")
		}
	}
}

// NewBus creates a new event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		exact:  make(map[string][]subscription),
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// IsPattern reports whether s contains glob metacharacters.
func IsPattern(s string) bool {
	return strings.ContainsAny(s, "*?[{\\")
}

// ValidatePattern reports whether pattern is usable with Subscribe.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty event pattern")
	}
	if pattern == wildcard || !IsPattern(pattern) {
		return nil
	}
	if _, err := glob.Compile(pattern, separator); err != nil {
		return fmt.Errorf("invalid event pattern %q: %w", pattern, err)
	}
	return nil
}

// Subscribe registers a handler for an event type or a glob pattern over
// event types ("auth.*", "graph.{state_changed,endpoint_configured}").
// "*" subscribes to everything, like SubscribeAll. A pattern that fails to
// compile is matched literally.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(pattern string, handler Handler) string {
	sub := subscription{pattern: pattern, handler: handler}
	if pattern != wildcard && IsPattern(pattern) {
		g, err := glob.Compile(pattern, separator)
		if err != nil {
			b.logger.Warn("event pattern does not compile, matching literally",
				"pattern", pattern, "error", err)
		} else {
			sub.matcher = g
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub.id = b.generateID()
	switch {
	case pattern == wildcard:
		b.all = append(b.all, sub)
	case sub.matcher != nil:
		b.patterns = append(b.patterns, sub)
	default:
		b.exact[pattern] = append(b.exact[pattern], sub)
	}
	return sub.id
}

// SubscribeAll registers a handler for all event types.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(wildcard, handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.exact {
		if rest, ok := without(subs, id); ok {
			if len(rest) == 0 {
				delete(b.exact, eventType)
			} else {
				b.exact[eventType] = rest
			}
			return true
		}
	}
	if rest, ok := without(b.patterns, id); ok {
		b.patterns = rest
		return true
	}
	if rest, ok := without(b.all, id); ok {
		b.all = rest
		return true
	}
	return false
}

// without returns subs minus the entry with the given id. The result never
// aliases subs, so snapshots taken by Publish stay intact.
func without(subs []subscription, id string) ([]subscription, bool) {
	for i, sub := range subs {
		if sub.id == id {
			rest := make([]subscription, 0, len(subs)-1)
			rest = append(rest, subs[:i]...)
			return append(rest, subs[i+1:]...), true
		}
	}
	return subs, false
}

// Publish dispatches an event to all registered handlers.
// Exact handlers are called first, then pattern handlers, then wildcard
// handlers. Within each group, handlers are called in registration order.
// If a handler panics, the panic is logged, recovered, and publishing
// continues to remaining handlers.
func (b *Bus) Publish(event Event) {
	eventType := event.EventType()

	b.mu.RLock()
	targets := make([]subscription, 0, len(b.exact[eventType])+len(b.all))
	targets = append(targets, b.exact[eventType]...)
	for _, sub := range b.patterns {
		if sub.matches(eventType) {
			targets = append(targets, sub)
		}
	}
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, sub := range targets {
		b.safeCall(sub, event)
	}
}

// safeCall invokes a handler and recovers from any panics so one misbehaving
// handler cannot block delivery to the others.
func (b *Bus) safeCall(sub subscription, event Event) {
	if r := panics.Try(func() { sub.handler(event) }); r != nil {
		b.logger.Error("event handler panicked",
			"event_type", event.EventType(),
			"subscription", sub.id,
			"panic", fmt.Sprint(r.Value),
			"stack", string(r.Stack))
	}
}

// generateID creates a unique subscription ID.
func (b *Bus) generateID() string {
	return fmt.Sprintf("sub-%d", b.nextID.Add(1))
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exact = make(map[string][]subscription)
	b.patterns = nil
	b.all = nil
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.patterns) + len(b.all)
	for _, subs := range b.exact {
		count += len(subs)
	}
	return count
}
