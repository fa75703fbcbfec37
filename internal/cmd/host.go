package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Iron-Ham/hostbridge/internal/bridge"
	"github.com/Iron-Ham/hostbridge/internal/config"
	"github.com/Iron-Ham/hostbridge/internal/event"
	"github.com/Iron-Ham/hostbridge/internal/lifecycle"
	"github.com/Iron-Ham/hostbridge/internal/logging"
	"github.com/Iron-Ham/hostbridge/internal/metrics"
)

// host wires a Bridge to a loaded Config. The chat and monitor commands
// each run one.
type host struct {
	logger  *logging.Logger
	metrics *metrics.Collector
	bridge  *bridge.Bridge

	mu     sync.Mutex
	cfg    *config.Config
	out    *printer
	subIDs []string
}

// newHostLogger opens bridge.log as configured, or a no-op logger when
// logging is disabled.
func newHostLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLoggerWithRotation(cfg.ResolveDir(), cfg.Level, cfg.Rotation())
}

// newHost builds the logger, metrics collector and bridge for cfg. Extra
// options are applied after the ones derived from cfg.
func newHost(cfg *config.Config, extra ...bridge.Option) (*host, error) {
	logger, err := newHostLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	h := &host{
		logger: logger,
		cfg:    cfg,
	}
	if cfg.Metrics.Enabled {
		h.metrics = metrics.NewCollector()
	}

	opts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithTokenRefresh(cfg.Bridge.TokenRefresh()),
		bridge.WithStartTimeout(cfg.Bridge.StartTimeout()),
		bridge.WithMaxInFlight(cfg.Bridge.MaxInFlight),
	}
	if h.metrics != nil {
		opts = append(opts, bridge.WithMetrics(h.metrics))
	}
	h.bridge = bridge.New(append(opts, extra...)...)

	if !cfg.Endpoint.IsZero() {
		if err := h.bridge.Configure(cfg.Endpoint); err != nil {
			_ = logger.Close()
			return nil, err
		}
	}
	return h, nil
}

// Config returns the configuration currently applied.
func (h *host) Config() *config.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// logEvents subscribes to the configured event patterns. Matching events
// are logged and, when out is non-nil, printed.
func (h *host) logEvents(out *printer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.out = out
	h.resubscribeLocked()
}

func (h *host) resubscribeLocked() {
	bus := h.bridge.Bus()
	for _, id := range h.subIDs {
		bus.Unsubscribe(id)
	}
	h.subIDs = h.subIDs[:0]

	out := h.out
	for _, pattern := range h.cfg.Events.LogPatterns {
		id := bus.Subscribe(pattern, func(e event.Event) {
			h.logger.Info("event", "type", e.EventType(), "pattern", pattern)
			if out != nil {
				out.Printf("%s  %s\n", e.Timestamp().Format(time.TimeOnly), describeEvent(e))
			}
		})
		h.subIDs = append(h.subIDs, id)
	}
}

// applyConfig adopts a reloaded configuration. A changed endpoint rebuilds
// the graph; the in-flight limit and event patterns change in place. Token
// refresh and start timeout are fixed for the bridge's lifetime.
func (h *host) applyConfig(ctx context.Context, path string, next *config.Config) error {
	h.mu.Lock()
	prev := h.cfg
	h.cfg = next
	h.resubscribeLocked()
	h.mu.Unlock()

	if next.Bridge.MaxInFlight != prev.Bridge.MaxInFlight {
		h.bridge.SetMaxInFlight(next.Bridge.MaxInFlight)
	}

	endpointChanged := next.Endpoint != prev.Endpoint
	var err error
	switch {
	case !endpointChanged:
	case next.Endpoint.IsZero():
		if h.bridge.State() == lifecycle.StateStarted {
			err = h.bridge.Stop()
		}
	case h.bridge.State() == lifecycle.StateStarted:
		err = h.bridge.Reconfigure(ctx, next.Endpoint)
	default:
		// A stopped bridge picks the endpoint up on its next Start
		err = h.bridge.Configure(next.Endpoint)
	}

	h.logger.Info("config applied", "path", path, "endpoint_changed", endpointChanged)
	h.bridge.Bus().Publish(event.NewConfigReloadedEvent(path, endpointChanged))
	return err
}

// serveMetrics exposes /metrics until ctx is done. It returns nil at once
// when metrics are disabled.
func (h *host) serveMetrics(ctx context.Context) error {
	if h.metrics == nil {
		return nil
	}
	addr := h.Config().Metrics.Addr
	h.logger.Info("serving metrics", "addr", addr)
	return h.metrics.Serve(ctx, addr)
}

// Close stops the bridge if it is running and closes the log.
func (h *host) Close() error {
	var err error
	if h.bridge.State() == lifecycle.StateStarted {
		err = h.bridge.Stop()
	}
	h.mu.Lock()
	for _, id := range h.subIDs {
		h.bridge.Bus().Unsubscribe(id)
	}
	h.subIDs = nil
	h.mu.Unlock()

	if cerr := h.logger.Close(); err == nil {
		err = cerr
	}
	return err
}

// describeEvent renders an event as one line of host output.
func describeEvent(e event.Event) string {
	switch ev := e.(type) {
	case event.GraphStateChangedEvent:
		if ev.Err != nil {
			return fmt.Sprintf("graph %s -> %s: %v", ev.Previous, ev.Current, ev.Err)
		}
		return fmt.Sprintf("graph %s -> %s", ev.Previous, ev.Current)
	case event.EndpointConfiguredEvent:
		return fmt.Sprintf("endpoint %s (workspace %s)", ev.URL, ev.Workspace)
	case event.AuthInvalidEvent:
		return fmt.Sprintf("auth invalid for workspace %s: %s", ev.Workspace, ev.Reason)
	case event.TokenRefreshedEvent:
		return fmt.Sprintf("token refreshed for workspace %s, expires %s", ev.Workspace, ev.ExpiresAt.Format(time.TimeOnly))
	case event.ConfigReloadedEvent:
		return fmt.Sprintf("config reloaded from %s (endpoint changed: %v)", ev.Path, ev.EndpointChanged)
	default:
		return e.EventType()
	}
}

// printer serializes writes from callbacks running on different
// goroutines.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

// Printf writes a formatted line.
func (p *printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}
