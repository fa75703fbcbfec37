// Package session is the API/session layer the bridge is wired against. It
// owns the value sources hosts observe (workspace token, connection status,
// auth-invalid notifications) and wraps the remote client's operations as
// task outcomes.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/errors"
	"github.com/Iron-Ham/hostbridge/internal/event"
	"github.com/Iron-Ham/hostbridge/internal/logging"
	"github.com/Iron-Ham/hostbridge/internal/stream"
	"github.com/Iron-Ham/hostbridge/internal/task"
)

// DefaultRefreshInterval is how often the workspace token is refreshed.
const DefaultRefreshInterval = 5 * time.Minute

// refreshTimeout bounds a single background token fetch.
const refreshTimeout = 30 * time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshInterval sets the token refresh period. Non-positive values
// keep the default.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshInterval = d
		}
	}
}

// WithLogger sets the manager's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithWorkspace names the workspace in events.
func WithWorkspace(name string) Option {
	return func(m *Manager) {
		m.workspace = name
	}
}

// Manager owns the session-level state of one connected client.
type Manager struct {
	client          api.Client
	bus             *event.Bus
	logger          *logging.Logger
	workspace       string
	refreshInterval time.Duration

	token       *stream.State[api.Token]
	status      *stream.State[Status]
	authInvalid *stream.BusSource[event.AuthInvalidEvent]
	invalid     atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	stopped bool
	wg      conc.WaitGroup
}

// New creates a Manager for client. Events are published on bus.
func New(client api.Client, bus *event.Bus, opts ...Option) *Manager {
	if client == nil {
		panic("session: client must not be nil")
	}
	if bus == nil {
		panic("session: event.Bus must not be nil")
	}

	m := &Manager{
		client:          client,
		bus:             bus,
		logger:          logging.NopLogger(),
		refreshInterval: DefaultRefreshInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("session")

	m.token = stream.NewState(api.Token{}, stream.WithEqual(func(a, b api.Token) bool {
		return a == b
	}))
	m.status = stream.NewState(StatusConnecting, stream.WithEqual(func(a, b Status) bool {
		return a == b
	}))
	m.authInvalid = stream.NewBusSource[event.AuthInvalidEvent](bus, event.TypeAuthInvalid)
	return m
}

// Token is the workspace token source. It holds the zero Token until the
// first fetch succeeds.
func (m *Manager) Token() stream.Stateful[api.Token] {
	return m.token
}

// Status is the connection status source.
func (m *Manager) Status() stream.Stateful[Status] {
	return m.status
}

// AuthInvalid is a stateless source of auth-invalid notifications.
func (m *Manager) AuthInvalid() stream.Source[event.AuthInvalidEvent] {
	return m.authInvalid
}

// Prime fetches the first workspace token synchronously.
func (m *Manager) Prime(ctx context.Context) error {
	return m.refresh(ctx)
}

// Start primes the token and launches the background refresher. The
// refresher outlives ctx and runs until Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return errors.NewLifecycleError("session", "start", errors.ErrAlreadyStarted)
	}
	m.started = true
	m.mu.Unlock()

	if err := m.Prime(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		cancel()
		return errors.NewLifecycleError("session", "start", errors.ErrCanceled).WithState("stopped")
	}
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Go(func() {
		m.refreshLoop(runCtx)
	})
	m.logger.Info("session manager started", "refresh_interval", m.refreshInterval.String())
	return nil
}

// Stop cancels the refresher, waits for it to exit and marks the status
// stopped. It is idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.status.Set(StatusStopped)
	m.logger.Info("session manager stopped")
}

func (m *Manager) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
			err := m.refresh(fetchCtx)
			cancel()
			if err != nil && !errors.IsCancellation(err) {
				m.logger.Warn("token refresh failed", "error", err)
			}
		}
	}
}

func (m *Manager) refresh(ctx context.Context) error {
	tok, err := m.client.WorkspaceToken(ctx)
	if err != nil {
		m.observe(err)
		return err
	}

	m.token.Set(tok)
	m.invalid.Store(false)
	m.status.Set(StatusReady)
	m.bus.Publish(event.NewTokenRefreshedEvent(tok.Workspace, tok.ExpiresAt))
	m.logger.Debug("token refreshed", "expires_at", tok.ExpiresAt)
	return nil
}

// observe reacts to a failed call. Rejected credentials move the status to
// unauthorized and publish one AuthInvalidEvent until a refresh succeeds.
func (m *Manager) observe(err error) {
	if !errors.Is(err, api.ErrUnauthorized) {
		return
	}
	m.status.Set(StatusUnauthorized)
	if m.invalid.CompareAndSwap(false, true) {
		m.logger.Warn("workspace credentials rejected", "error", err)
		m.bus.Publish(event.NewAuthInvalidEvent(m.workspace, err.Error()))
	}
}

// CreateSession starts a new remote session.
func (m *Manager) CreateSession(ctx context.Context, title string) task.Outcome[api.Session] {
	s, err := m.client.CreateSession(ctx, title)
	m.observe(err)
	return task.FromResult(s, err)
}

// SendMessage sends a message and returns the reply.
func (m *Manager) SendMessage(ctx context.Context, req api.MessageRequest) task.Outcome[api.Message] {
	msg, err := m.client.SendMessage(ctx, req)
	m.observe(err)
	return task.FromResult(msg, err)
}

// ListSessions lists remote sessions.
func (m *Manager) ListSessions(ctx context.Context) task.Outcome[[]api.Session] {
	sessions, err := m.client.ListSessions(ctx)
	m.observe(err)
	return task.FromResult(sessions, err)
}

// DeleteSession deletes a remote session.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	err := m.client.DeleteSession(ctx, id)
	m.observe(err)
	return err
}
