// Package metrics exposes bridge activity as Prometheus metrics on a private
// registry. A Collector plugs into task runners and stream subscriptions as
// their observer and into the bridge for graph state.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hostbridge"

// Collector records bridge metrics. It is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	tasksStarted  *prometheus.CounterVec
	tasksSettled  *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	subscriptions *prometheus.GaugeVec
	graphState    *prometheus.GaugeVec
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		// Labels: runner
		tasksStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_started_total",
			Help:      "Operations started by task runners",
		}, []string{"runner"}),

		// Labels: runner, outcome (success, error, cancelled)
		tasksSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_settled_total",
			Help:      "Operations settled by task runners, by outcome",
		}, []string{"runner", "outcome"}),

		// Labels: stream
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_deliveries_total",
			Help:      "Values delivered to subscription callbacks",
		}, []string{"stream"}),

		// Labels: stream
		subscriptions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Subscription handles currently attached",
		}, []string{"stream"}),

		// Labels: state (stopped, starting, started); exactly one is 1
		graphState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_state",
			Help:      "Current lifecycle state of the bridge dependency graph",
		}, []string{"state"}),
	}
}

// TaskStarted implements task.Observer.
func (c *Collector) TaskStarted(runner string) {
	c.tasksStarted.WithLabelValues(runner).Inc()
}

// TaskSettled implements task.Observer.
func (c *Collector) TaskSettled(runner, outcome string) {
	c.tasksSettled.WithLabelValues(runner, outcome).Inc()
}

// SubscriptionOpened implements stream.Observer.
func (c *Collector) SubscriptionOpened(stream string) {
	c.subscriptions.WithLabelValues(stream).Inc()
}

// SubscriptionClosed implements stream.Observer.
func (c *Collector) SubscriptionClosed(stream string) {
	c.subscriptions.WithLabelValues(stream).Dec()
}

// Delivered implements stream.Observer.
func (c *Collector) Delivered(stream string) {
	c.deliveries.WithLabelValues(stream).Inc()
}

// SetGraphState marks current as the active state among all.
func (c *Collector) SetGraphState(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		c.graphState.WithLabelValues(s).Set(v)
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
