package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/errors"
	"github.com/Iron-Ham/hostbridge/internal/event"
	"github.com/Iron-Ham/hostbridge/internal/lifecycle"
	"github.com/Iron-Ham/hostbridge/internal/logging"
	"github.com/Iron-Ham/hostbridge/internal/session"
	"github.com/Iron-Ham/hostbridge/internal/stream"
	"github.com/Iron-Ham/hostbridge/internal/task"
)

// Bridge is the host's single entry point. It owns the dependency graph
// (client, session layer, graph scope) and mints Calls and Subscriptions
// bound to it.
//
// Configure, Start, Stop and Reconfigure are serialized. Accessors may be
// called from any goroutine but panic with a *errors.LifecycleError unless
// the bridge is started.
type Bridge struct {
	cfg     config
	logger  *logging.Logger
	bus     *event.Bus
	limiter *inflightLimiter
	machine *lifecycle.Machine
	states  *stream.State[lifecycle.State]

	mu      sync.Mutex // serializes lifecycle operations
	failure error      // start error, reported with the Starting -> Stopped transition

	endpoint atomic.Pointer[api.Endpoint]
	graph    atomic.Pointer[graph]
}

// New creates a stopped, unconfigured Bridge.
func New(opts ...Option) *Bridge {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bridge{
		cfg:     cfg,
		logger:  cfg.logger.WithComponent("bridge"),
		bus:     cfg.bus,
		limiter: newInflightLimiter(cfg.maxInFlight),
		states:  stream.NewState(lifecycle.StateStopped),
	}
	if b.bus == nil {
		b.bus = event.NewBus(event.WithLogger(cfg.logger))
	}
	b.machine = lifecycle.NewMachine(lifecycle.Callbacks{
		OnStateChange: b.onStateChange,
	}, cfg.logger)

	if cfg.metrics != nil {
		cfg.metrics.SetGraphState(lifecycle.StateStopped.String(), stateNames())
	}
	return b
}

// Bus returns the event bus graph and auth events are published on.
func (b *Bridge) Bus() *event.Bus {
	return b.bus
}

// State returns the graph's lifecycle state.
func (b *Bridge) State() lifecycle.State {
	return b.machine.State()
}

// Endpoint returns the configured endpoint, if any.
func (b *Bridge) Endpoint() (api.Endpoint, bool) {
	ep := b.endpoint.Load()
	if ep == nil {
		return api.Endpoint{}, false
	}
	return *ep, true
}

// SetMaxInFlight changes the limit on concurrent collaborator calls.
// Calls already running keep their slots.
func (b *Bridge) SetMaxInFlight(n int) {
	b.limiter.SetLimit(n)
	b.logger.Info("max in-flight changed", "limit", n)
}

// Configure sets the endpoint used by the next Start. It is only allowed
// while stopped.
func (b *Bridge) Configure(ep api.Endpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configureLocked(ep)
}

// Start builds the graph: it dials the client, then primes the session
// layer and pings the client concurrently. On any failure everything built
// so far is torn down and the bridge returns to stopped.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startLocked(ctx)
}

// Stop tears the graph down. Every Call and Subscription minted while
// started is disposed, so none of their callbacks run afterwards. Stop
// waits for operations still inside the client to return; it does not wait
// for callbacks and may be called from one.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopLocked()
}

// Reconfigure stops the bridge if it is started, applies ep and starts
// again. The old graph is never reused.
func (b *Bridge) Reconfigure(ctx context.Context, ep api.Endpoint) error {
	if err := ep.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.machine.State() == lifecycle.StateStarted {
		if err := b.stopLocked(); err != nil {
			return err
		}
	}
	if err := b.configureLocked(ep); err != nil {
		return err
	}
	return b.startLocked(ctx)
}

// States returns a subscription to graph state changes. It is owned by the
// caller and usable in any state.
func (b *Bridge) States() *stream.StateSubscription[lifecycle.State] {
	opts := []stream.Option{
		stream.WithName("graph_state"),
		stream.WithLogger(b.cfg.logger),
	}
	if b.cfg.metrics != nil {
		opts = append(opts, stream.WithObserver(b.cfg.metrics))
	}
	return stream.NewStateSubscription[lifecycle.State](b.states, opts...)
}

// CreateSession returns a Call that creates a remote session from a title.
func (b *Bridge) CreateSession() *Call[string, api.Session] {
	g := b.require("create_session")
	return newCall(g, "create_session", g.sessions.CreateSession)
}

// SendMessage returns a Call that sends a message and yields the reply.
func (b *Bridge) SendMessage() *Call[api.MessageRequest, api.Message] {
	g := b.require("send_message")
	return newCall(g, "send_message", g.sessions.SendMessage)
}

// ListSessions returns a Call that lists remote sessions.
func (b *Bridge) ListSessions() *Call[struct{}, []api.Session] {
	g := b.require("list_sessions")
	return newCall(g, "list_sessions", func(ctx context.Context, _ struct{}) task.Outcome[[]api.Session] {
		return g.sessions.ListSessions(ctx)
	})
}

// DeleteSession returns an Action that deletes a session by ID.
func (b *Bridge) DeleteSession() *Action[string] {
	g := b.require("delete_session")
	return newAction(g, "delete_session", g.sessions.DeleteSession)
}

// WorkspaceToken returns a subscription to workspace token updates. The
// current token is delivered first.
func (b *Bridge) WorkspaceToken() *stream.StateSubscription[api.Token] {
	g := b.require("workspace_token")
	return stream.NewStateSubscription[api.Token](g.sessions.Token(), g.streamOptions("workspace_token")...)
}

// Connection returns a subscription to the session layer's status.
func (b *Bridge) Connection() *stream.StateSubscription[session.Status] {
	g := b.require("connection")
	return stream.NewStateSubscription[session.Status](g.sessions.Status(), g.streamOptions("connection")...)
}

// AuthInvalid returns a subscription to auth-invalid notifications. Only
// notifications published after Subscribe are delivered.
func (b *Bridge) AuthInvalid() *stream.Subscription[event.AuthInvalidEvent] {
	g := b.require("auth_invalid")
	return stream.NewSubscription[event.AuthInvalidEvent](g.sessions.AuthInvalid(), g.streamOptions("auth_invalid")...)
}

// require returns the live graph or panics with a misuse error.
func (b *Bridge) require(op string) *graph {
	g := b.graph.Load()
	st := b.machine.State()
	if g == nil || st != lifecycle.StateStarted {
		panic(errors.NewLifecycleError("bridge", op, errors.ErrNotStarted).
			WithState(st.String()).
			WithMessage("accessors are only available while started"))
	}
	return g
}

func (b *Bridge) configureLocked(ep api.Endpoint) error {
	if st := b.machine.State(); st != lifecycle.StateStopped {
		return errors.NewLifecycleError("bridge", "configure", errors.ErrAlreadyStarted).
			WithState(st.String()).
			WithMessage("stop the bridge before changing its endpoint")
	}
	if err := ep.Validate(); err != nil {
		return err
	}

	b.endpoint.Store(&ep)
	b.logger.Info("endpoint configured", "url", ep.URL, "workspace", ep.Workspace)
	b.bus.Publish(event.NewEndpointConfiguredEvent(ep.URL, ep.Workspace))
	return nil
}

func (b *Bridge) startLocked(ctx context.Context) error {
	ep := b.endpoint.Load()
	if ep == nil {
		return errors.NewLifecycleError("bridge", "start", errors.ErrNotConfigured).
			WithState(b.machine.State().String())
	}
	if err := b.machine.Begin(); err != nil {
		return err
	}

	g, err := b.build(ctx, *ep)
	if err != nil {
		b.failure = err
		_ = b.machine.Abort()
		b.failure = nil
		b.logger.Error("bridge start failed", "url", ep.URL, "error", err)
		return fmt.Errorf("start bridge: %w", err)
	}

	b.graph.Store(g)
	if err := b.machine.Commit(); err != nil {
		b.graph.Store(nil)
		_ = g.teardown()
		return err
	}
	b.logger.Info("bridge started", "url", ep.URL, "workspace", ep.Workspace)
	return nil
}

func (b *Bridge) stopLocked() error {
	if err := b.machine.Halt(); err != nil {
		return err
	}
	g := b.graph.Swap(nil)
	if g == nil {
		return nil
	}
	if err := g.teardown(); err != nil {
		b.logger.Warn("graph teardown failed", "error", err)
		return fmt.Errorf("stop bridge: %w", err)
	}
	b.logger.Info("bridge stopped")
	return nil
}

// build creates a complete graph for ep or nothing at all.
func (b *Bridge) build(ctx context.Context, ep api.Endpoint) (*graph, error) {
	if b.cfg.startTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.startTimeout)
		defer cancel()
	}
	logger := b.cfg.logger.WithEndpoint(ep.URL)

	client, err := b.cfg.dialer(ctx, ep)
	if err != nil {
		return nil, b.startError(ctx, err)
	}
	sessions := session.New(client, b.bus,
		session.WithLogger(logger),
		session.WithRefreshInterval(b.cfg.tokenRefresh),
		session.WithWorkspace(ep.Workspace),
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return sessions.Start(egCtx)
	})
	eg.Go(func() error {
		return client.Ping(egCtx)
	})
	if err := eg.Wait(); err != nil {
		sessions.Stop()
		if cerr := client.Close(); cerr != nil {
			logger.Warn("closing client after failed start", "error", cerr)
		}
		return nil, b.startError(ctx, err)
	}

	g := &graph{
		client:   client,
		sessions: sessions,
		scope:    lifecycle.NewScope("graph"),
		limiter:  b.limiter,
		logger:   logger,
	}
	if b.cfg.metrics != nil {
		g.taskObserver = b.cfg.metrics
		g.streamObserver = b.cfg.metrics
	}
	return g, nil
}

// startError turns an expired start deadline into a TimeoutError.
func (b *Bridge) startError(ctx context.Context, err error) error {
	if b.cfg.startTimeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeoutError("bridge start", b.cfg.startTimeout).WithCause(err)
	}
	return err
}

// onStateChange runs on the goroutine holding b.mu.
func (b *Bridge) onStateChange(old, current lifecycle.State) {
	b.states.Set(current)
	if b.cfg.metrics != nil {
		b.cfg.metrics.SetGraphState(current.String(), stateNames())
	}

	var err error
	if old == lifecycle.StateStarting && current == lifecycle.StateStopped {
		err = b.failure
	}
	b.bus.Publish(event.NewGraphStateChangedEvent(old.String(), current.String(), err))
}

func stateNames() []string {
	states := lifecycle.States()
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.String()
	}
	return names
}
