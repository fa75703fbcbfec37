package task

import (
	"github.com/Iron-Ham/hostbridge/internal/lifecycle"
	"github.com/Iron-Ham/hostbridge/internal/logging"
)

// Settlement labels reported to an Observer.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Observer receives one TaskStarted and exactly one TaskSettled per handle.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	TaskStarted(runner string)
	TaskSettled(runner, outcome string)
}

type nopObserver struct{}

func (nopObserver) TaskStarted(string)         {}
func (nopObserver) TaskSettled(string, string) {}

// Option configures a Runner.
type Option func(*config)

type config struct {
	name     string
	logger   *logging.Logger
	observer Observer
	scope    *lifecycle.Scope
}

func defaultConfig() config {
	return config{
		name:     "task",
		logger:   logging.NopLogger(),
		observer: nopObserver{},
	}
}

// WithName names the runner in logs and metrics.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver reports handle starts and settlements to o.
func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithScope ties the runner to an owner. Closing the scope disposes the
// runner; creating a runner in an already closed scope yields a disposed
// runner.
func WithScope(s *lifecycle.Scope) Option {
	return func(c *config) {
		c.scope = s
	}
}
