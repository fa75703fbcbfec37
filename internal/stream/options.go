package stream

import (
	"github.com/Iron-Ham/hostbridge/internal/lifecycle"
	"github.com/Iron-Ham/hostbridge/internal/logging"
)

// Observer is notified about subscription activity. Implementations must be
// safe for concurrent use and must not block.
type Observer interface {
	SubscriptionOpened(stream string)
	SubscriptionClosed(stream string)
	Delivered(stream string)
}

type nopObserver struct{}

func (nopObserver) SubscriptionOpened(string) {}
func (nopObserver) SubscriptionClosed(string) {}
func (nopObserver) Delivered(string)          {}

// Option configures a Subscription.
type Option func(*config)

type config struct {
	name     string
	logger   *logging.Logger
	observer Observer
	scope    *lifecycle.Scope
}

func defaultConfig() config {
	return config{
		name:     "stream",
		logger:   logging.NopLogger(),
		observer: nopObserver{},
	}
}

// WithName names the subscription in logs and metrics.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets the subscription's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver reports subscription activity to o.
func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithScope ties the subscription to an owner; closing the scope disposes it.
func WithScope(s *lifecycle.Scope) Option {
	return func(c *config) {
		c.scope = s
	}
}
