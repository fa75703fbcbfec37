package bridge

import (
	"time"

	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/event"
	"github.com/Iron-Ham/hostbridge/internal/logging"
	"github.com/Iron-Ham/hostbridge/internal/metrics"
	"github.com/Iron-Ham/hostbridge/internal/session"
)

// Option configures a Bridge.
type Option func(*config)

type config struct {
	dialer       api.Dialer
	logger       *logging.Logger
	bus          *event.Bus
	metrics      *metrics.Collector
	tokenRefresh time.Duration
	startTimeout time.Duration
	maxInFlight  int
}

func defaultConfig() config {
	return config{
		dialer:       api.Dial,
		logger:       logging.NopLogger(),
		tokenRefresh: session.DefaultRefreshInterval,
	}
}

// WithDialer replaces api.Dial, typically to inject a test client.
func WithDialer(d api.Dialer) Option {
	return func(c *config) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets the logger for the bridge and everything it builds.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBus shares an existing event bus. By default the bridge creates its own.
func WithBus(bus *event.Bus) Option {
	return func(c *config) {
		c.bus = bus
	}
}

// WithMetrics records runner, subscription and graph activity in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithTokenRefresh sets how often the workspace token is refreshed.
// A zero or negative value keeps the default.
func WithTokenRefresh(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.tokenRefresh = d
		}
	}
}

// WithStartTimeout bounds how long Start may take to build the graph.
// Zero means no bound beyond the caller's context.
func WithStartTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.startTimeout = d
		}
	}
}

// WithMaxInFlight caps concurrent collaborator calls across all minted
// calls. Zero means unlimited.
func WithMaxInFlight(n int) Option {
	return func(c *config) {
		c.maxInFlight = n
	}
}
