package bridge_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/bridge"
	"github.com/Iron-Ham/hostbridge/internal/errors"
	"github.com/Iron-Ham/hostbridge/internal/event"
	"github.com/Iron-Ham/hostbridge/internal/lifecycle"
	"github.com/Iron-Ham/hostbridge/internal/metrics"
	"github.com/Iron-Ham/hostbridge/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Test doubles --------------------------------------------------------

var testEndpoint = api.Endpoint{URL: "loopback://local", Workspace: "acme"}

// dialRecorder hands out loopback clients and remembers them.
type dialRecorder struct {
	mu      sync.Mutex
	opts    []api.LoopbackOption
	clients []*api.Loopback
}

func (d *dialRecorder) dial(_ context.Context, ep api.Endpoint) (api.Client, error) {
	l := api.NewLoopback(ep, d.opts...)
	d.mu.Lock()
	d.clients = append(d.clients, l)
	d.mu.Unlock()
	return l, nil
}

func (d *dialRecorder) last() *api.Loopback {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[len(d.clients)-1]
}

// pingFailClient refuses Ping but otherwise behaves like a loopback.
type pingFailClient struct {
	*api.Loopback
}

func (c *pingFailClient) Ping(context.Context) error {
	return errors.New("ping refused")
}

// gatedClient holds CreateSession until released and records how many
// calls were inside at once.
type gatedClient struct {
	*api.Loopback
	release      chan struct{}
	active, peak atomic.Int32
}

func (c *gatedClient) CreateSession(ctx context.Context, title string) (api.Session, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-c.release:
	case <-ctx.Done():
		return api.Session{}, ctx.Err()
	}
	return c.Loopback.CreateSession(ctx, title)
}

// recorder captures terminal callbacks.
type recorder[T any] struct {
	mu        sync.Mutex
	successes []T
	failures  []error
	done      chan struct{}
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{done: make(chan struct{}, 16)}
}

func (r *recorder[T]) onSuccess(v T) {
	r.mu.Lock()
	r.successes = append(r.successes, v)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recorder[T]) onError(err error) {
	r.mu.Lock()
	r.failures = append(r.failures, err)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recorder[T]) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for a callback")
	}
}

func (r *recorder[T]) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.successes), len(r.failures)
}

// values collects stream deliveries.
type values[T any] struct {
	mu  sync.Mutex
	got []T
	ch  chan struct{}
}

func newValues[T any]() *values[T] {
	return &values[T]{ch: make(chan struct{}, 64)}
}

func (v *values[T]) onEach(x T) {
	v.mu.Lock()
	v.got = append(v.got, x)
	v.mu.Unlock()
	v.ch <- struct{}{}
}

func (v *values[T]) waitUntil(t *testing.T, pred func([]T) bool) []T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		v.mu.Lock()
		snap := append([]T(nil), v.got...)
		v.mu.Unlock()
		if pred(snap) {
			return snap
		}
		select {
		case <-v.ch:
		case <-deadline:
			t.Fatalf("condition not met, delivered %v", snap)
		}
	}
}

func settle() {
	time.Sleep(30 * time.Millisecond)
}

func newStartedBridge(t *testing.T, d *dialRecorder, opts ...bridge.Option) *bridge.Bridge {
	t.Helper()
	opts = append([]bridge.Option{bridge.WithDialer(d.dial)}, opts...)
	b := bridge.New(opts...)
	if err := b.Configure(testEndpoint); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if b.State() == lifecycle.StateStarted {
			_ = b.Stop()
		}
	})
	return b
}

func assertMisuse(t *testing.T, cause error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		rec := recover()
		if rec == nil {
			t.Fatal("expected a panic")
		}
		err, ok := rec.(error)
		if !ok || !errors.IsMisuse(err) {
			t.Fatalf("panic value %v is not a LifecycleError", rec)
		}
		if cause != nil && !errors.Is(err, cause) {
			t.Errorf("panic %v does not wrap %v", err, cause)
		}
	}()
	fn()
}

// --- Lifecycle -----------------------------------------------------------

func TestBridge_Lifecycle(t *testing.T) {
	d := &dialRecorder{}
	b := bridge.New(bridge.WithDialer(d.dial))

	if b.State() != lifecycle.StateStopped {
		t.Fatalf("initial State() = %s, want stopped", b.State())
	}
	if _, ok := b.Endpoint(); ok {
		t.Error("Endpoint() should report unconfigured")
	}
	if err := b.Start(context.Background()); !errors.Is(err, errors.ErrNotConfigured) {
		t.Fatalf("Start before Configure = %v, want ErrNotConfigured", err)
	}
	if err := b.Stop(); !errors.Is(err, errors.ErrNotStarted) {
		t.Errorf("Stop while stopped = %v, want ErrNotStarted", err)
	}

	if err := b.Configure(testEndpoint); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if b.State() != lifecycle.StateStarted {
		t.Errorf("State() = %s, want started", b.State())
	}
	if err := b.Start(context.Background()); !errors.Is(err, errors.ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
	if err := b.Configure(testEndpoint); !errors.Is(err, errors.ErrAlreadyStarted) {
		t.Errorf("Configure while started = %v, want ErrAlreadyStarted", err)
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if b.State() != lifecycle.StateStopped {
		t.Errorf("State() after Stop = %s, want stopped", b.State())
	}
	if err := d.last().Ping(context.Background()); !errors.Is(err, api.ErrClosed) {
		t.Errorf("client should be closed after Stop, Ping = %v", err)
	}

	// The stopped bridge can start again with a fresh graph.
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if len(d.clients) != 2 {
		t.Errorf("dialed %d clients, want 2", len(d.clients))
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestBridge_ConfigureValidates(t *testing.T) {
	b := bridge.New()

	tests := []struct {
		name string
		ep   api.Endpoint
	}{
		{name: "empty", ep: api.Endpoint{}},
		{name: "unknown scheme", ep: api.Endpoint{URL: "carrier-pigeon://x", Workspace: "acme"}},
		{name: "no workspace", ep: api.Endpoint{URL: "loopback://local"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Configure(tt.ep)
			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Configure(%+v) = %v, want a ValidationError", tt.ep, err)
			}
		})
	}
	if _, ok := b.Endpoint(); ok {
		t.Error("a rejected endpoint must not be stored")
	}
}

func TestBridge_AccessorsRequireStarted(t *testing.T) {
	accessors := map[string]func(*bridge.Bridge){
		"CreateSession":  func(b *bridge.Bridge) { b.CreateSession() },
		"SendMessage":    func(b *bridge.Bridge) { b.SendMessage() },
		"ListSessions":   func(b *bridge.Bridge) { b.ListSessions() },
		"DeleteSession":  func(b *bridge.Bridge) { b.DeleteSession() },
		"WorkspaceToken": func(b *bridge.Bridge) { b.WorkspaceToken() },
		"Connection":     func(b *bridge.Bridge) { b.Connection() },
		"AuthInvalid":    func(b *bridge.Bridge) { b.AuthInvalid() },
	}

	d := &dialRecorder{}
	fresh := bridge.New(bridge.WithDialer(d.dial))
	stopped := newStartedBridge(t, d)
	if err := stopped.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for name, access := range accessors {
		t.Run(name, func(t *testing.T) {
			assertMisuse(t, errors.ErrNotStarted, func() { access(fresh) })
			assertMisuse(t, errors.ErrNotStarted, func() { access(stopped) })
		})
	}
}

func TestBridge_GraphEvents(t *testing.T) {
	bus := event.NewBus()
	var mu sync.Mutex
	var transitions []string
	bus.Subscribe("graph.*", func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch ev := e.(type) {
		case event.GraphStateChangedEvent:
			transitions = append(transitions, ev.Previous+">"+ev.Current)
		case event.EndpointConfiguredEvent:
			transitions = append(transitions, "configured:"+ev.Workspace)
		}
	})

	d := &dialRecorder{}
	b := newStartedBridge(t, d, bridge.WithBus(bus))
	if b.Bus() != bus {
		t.Error("Bus() should return the injected bus")
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{"configured:acme", "stopped>starting", "starting>started", "started>stopped"}
	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != len(want) {
		t.Fatalf("events = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestBridge_StatesSubscription(t *testing.T) {
	d := &dialRecorder{}
	b := bridge.New(bridge.WithDialer(d.dial))
	states := b.States()
	defer states.Dispose()

	v := newValues[lifecycle.State]()
	states.Subscribe(v.onEach)

	if err := b.Configure(testEndpoint); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got := v.waitUntil(t, func(s []lifecycle.State) bool { return len(s) >= 4 })
	want := []lifecycle.State{lifecycle.StateStopped, lifecycle.StateStarting, lifecycle.StateStarted, lifecycle.StateStopped}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}
	if states.Disposed() {
		t.Error("States() subscriptions are owned by the caller and survive Stop")
	}
}

// --- Start failures ------------------------------------------------------

func TestBridge_StartFailureRollsBack(t *testing.T) {
	tests := []struct {
		name   string
		dialer func(*dialRecorder) api.Dialer
	}{
		{
			name: "dial error",
			dialer: func(*dialRecorder) api.Dialer {
				return func(context.Context, api.Endpoint) (api.Client, error) {
					return nil, errors.New("connection refused")
				}
			},
		},
		{
			name: "ping error",
			dialer: func(d *dialRecorder) api.Dialer {
				return func(ctx context.Context, ep api.Endpoint) (api.Client, error) {
					c, _ := d.dial(ctx, ep)
					return &pingFailClient{Loopback: c.(*api.Loopback)}, nil
				}
			},
		},
		{
			name: "token error",
			dialer: func(d *dialRecorder) api.Dialer {
				return func(ctx context.Context, ep api.Endpoint) (api.Client, error) {
					c, _ := d.dial(ctx, ep)
					c.(*api.Loopback).Revoke()
					return c, nil
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &dialRecorder{}
			bus := event.NewBus()
			var failed atomic.Value
			bus.Subscribe(event.TypeGraphStateChanged, func(e event.Event) {
				if ev := e.(event.GraphStateChangedEvent); ev.Err != nil {
					failed.Store(ev)
				}
			})

			b := bridge.New(bridge.WithDialer(tt.dialer(d)), bridge.WithBus(bus))
			if err := b.Configure(testEndpoint); err != nil {
				t.Fatalf("Configure: %v", err)
			}
			if err := b.Start(context.Background()); err == nil {
				t.Fatal("Start should fail")
			}
			if b.State() != lifecycle.StateStopped {
				t.Errorf("State() = %s, want stopped", b.State())
			}

			ev, ok := failed.Load().(event.GraphStateChangedEvent)
			if !ok || ev.Previous != "starting" || ev.Current != "stopped" {
				t.Errorf("failure event = %+v, want starting>stopped with an error", ev)
			}
			for _, c := range d.clients {
				if err := c.Ping(context.Background()); !errors.Is(err, api.ErrClosed) {
					t.Errorf("client built by a failed start left open: Ping = %v", err)
				}
			}
			assertMisuse(t, errors.ErrNotStarted, func() { b.CreateSession() })
		})
	}
}

func TestBridge_StartTimeout(t *testing.T) {
	blocking := func(ctx context.Context, _ api.Endpoint) (api.Client, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	b := bridge.New(bridge.WithDialer(blocking), bridge.WithStartTimeout(20*time.Millisecond))
	if err := b.Configure(testEndpoint); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	err := b.Start(context.Background())
	if !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("Start = %v, want a timeout", err)
	}
	if b.State() != lifecycle.StateStopped {
		t.Errorf("State() = %s, want stopped", b.State())
	}
}

// --- Calls ---------------------------------------------------------------

func TestBridge_SessionFlow(t *testing.T) {
	d := &dialRecorder{}
	b := newStartedBridge(t, d)

	create := b.CreateSession()
	created := newRecorder[api.Session]()
	create.Start("hello", created.onSuccess, created.onError)
	created.wait(t)
	if s, f := created.counts(); s != 1 || f != 0 {
		t.Fatalf("create: successes=%d failures=%d", s, f)
	}
	sess := created.successes[0]
	if sess.Title != "hello" {
		t.Errorf("Title = %q", sess.Title)
	}

	send := b.SendMessage()
	replies := newRecorder[api.Message]()
	send.Start(api.MessageRequest{SessionID: sess.ID, Content: "ping"}, replies.onSuccess, replies.onError)
	replies.wait(t)
	if s, _ := replies.counts(); s != 1 || replies.successes[0].Content != "echo: ping" {
		t.Fatalf("reply = %+v, failures %v", replies.successes, replies.failures)
	}

	list := b.ListSessions()
	listed := newRecorder[[]api.Session]()
	list.Start(struct{}{}, listed.onSuccess, listed.onError)
	listed.wait(t)
	if s, _ := listed.counts(); s != 1 || len(listed.successes[0]) != 1 {
		t.Fatalf("list = %+v", listed.successes)
	}

	del := b.DeleteSession()
	deleted := make(chan struct{})
	del.Start(sess.ID, func() { close(deleted) }, func(err error) { t.Errorf("delete: %v", err) })
	select {
	case <-deleted:
	case <-time.After(2 * time.Second):
		t.Fatal("delete did not complete")
	}

	// Deleting again is a plain failure delivered unwrapped.
	again := make(chan error, 1)
	del.Start(sess.ID, func() { t.Error("second delete should fail") }, func(err error) { again <- err })
	select {
	case err := <-again:
		if err != api.ErrSessionNotFound {
			t.Errorf("error = %v, want ErrSessionNotFound unwrapped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second delete did not fail")
	}
	if del.Name() != "delete_session" {
		t.Errorf("Name() = %q", del.Name())
	}
}

func TestBridge_CancelBeforeCompletionIsSilent(t *testing.T) {
	d := &dialRecorder{opts: []api.LoopbackOption{api.WithLatency(50 * time.Millisecond)}}
	b := newStartedBridge(t, d)

	call := b.CreateSession()
	rec := newRecorder[api.Session]()
	call.Start("slow", rec.onSuccess, rec.onError)
	call.Cancel()
	call.Wait()
	settle()

	if s, f := rec.counts(); s != 0 || f != 0 {
		t.Errorf("cancelled call delivered successes=%d failures=%d", s, f)
	}
}

func TestBridge_StopSilencesAndDisposesMintedObjects(t *testing.T) {
	d := &dialRecorder{opts: []api.LoopbackOption{api.WithLatency(50 * time.Millisecond)}}
	b := newStartedBridge(t, d)

	call := b.CreateSession()
	token := b.WorkspaceToken()
	rec := newRecorder[api.Session]()
	call.Start("doomed", rec.onSuccess, rec.onError)

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	call.Wait()
	settle()

	if s, f := rec.counts(); s != 0 || f != 0 {
		t.Errorf("call delivered after Stop: successes=%d failures=%d", s, f)
	}
	if !call.Disposed() || !token.Disposed() {
		t.Error("Stop should dispose every minted call and subscription")
	}
	assertMisuse(t, nil, func() { call.Start("late", nil, nil) })
	assertMisuse(t, errors.ErrDisposed, func() { token.Value() })
}

func TestBridge_StopFromCallback(t *testing.T) {
	d := &dialRecorder{}
	b := newStartedBridge(t, d)

	stopped := make(chan error, 1)
	b.CreateSession().Start("x", func(api.Session) {
		stopped <- b.Stop()
	}, func(err error) { t.Errorf("create: %v", err) })

	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("Stop from callback: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop from a callback deadlocked")
	}
	if b.State() != lifecycle.StateStopped {
		t.Errorf("State() = %s, want stopped", b.State())
	}
}

func TestBridge_MaxInFlight(t *testing.T) {
	gate := &gatedClient{release: make(chan struct{})}
	dial := func(_ context.Context, ep api.Endpoint) (api.Client, error) {
		gate.Loopback = api.NewLoopback(ep)
		return gate, nil
	}
	b := bridge.New(bridge.WithDialer(dial), bridge.WithMaxInFlight(1))
	if err := b.Configure(testEndpoint); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = b.Stop() }()

	first, second := b.CreateSession(), b.CreateSession()
	r1, r2 := newRecorder[api.Session](), newRecorder[api.Session]()
	first.Start("one", r1.onSuccess, r1.onError)
	second.Start("two", r2.onSuccess, r2.onError)

	deadline := time.Now().Add(time.Second)
	for gate.active.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	settle()
	if gate.active.Load() != 1 {
		t.Fatalf("%d calls inside the client, want 1", gate.active.Load())
	}

	close(gate.release)
	r1.wait(t)
	r2.wait(t)
	if gate.peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", gate.peak.Load())
	}
}

func TestBridge_CancelWhileWaitingForSlotIsSilent(t *testing.T) {
	gate := &gatedClient{release: make(chan struct{})}
	dial := func(_ context.Context, ep api.Endpoint) (api.Client, error) {
		gate.Loopback = api.NewLoopback(ep)
		return gate, nil
	}
	b := bridge.New(bridge.WithDialer(dial), bridge.WithMaxInFlight(1))
	if err := b.Configure(testEndpoint); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	holder, waiter := b.CreateSession(), b.CreateSession()
	rh, rw := newRecorder[api.Session](), newRecorder[api.Session]()
	holder.Start("holder", rh.onSuccess, rh.onError)
	waiter.Start("waiter", rw.onSuccess, rw.onError)
	settle()

	waiter.Cancel()
	waiter.Wait()
	if s, f := rw.counts(); s != 0 || f != 0 {
		t.Errorf("cancelled waiter delivered successes=%d failures=%d", s, f)
	}

	close(gate.release)
	rh.wait(t)
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// --- Subscriptions -------------------------------------------------------

func TestBridge_WorkspaceTokenReplaysCurrentToken(t *testing.T) {
	d := &dialRecorder{}
	b := newStartedBridge(t, d)

	sub := b.WorkspaceToken()
	v := newValues[api.Token]()
	sub.Subscribe(v.onEach)

	got := v.waitUntil(t, func(toks []api.Token) bool { return len(toks) >= 1 })
	if got[0].IsZero() || got[0].Workspace != "acme" {
		t.Errorf("first token = %+v, want the primed token", got[0])
	}
	if sub.Value() != got[0] {
		t.Error("Value() should match the replayed token")
	}
}

func TestBridge_AuthInvalidation(t *testing.T) {
	d := &dialRecorder{}
	b := newStartedBridge(t, d)

	auth := b.AuthInvalid()
	notes := newValues[event.AuthInvalidEvent]()
	auth.Subscribe(notes.onEach)

	conn := b.Connection()
	statuses := newValues[session.Status]()
	conn.Subscribe(statuses.onEach)
	statuses.waitUntil(t, func(s []session.Status) bool { return len(s) >= 1 })

	d.last().Revoke()
	call := b.ListSessions()
	rec := newRecorder[[]api.Session]()
	call.Start(struct{}{}, rec.onSuccess, rec.onError)
	rec.wait(t)

	if _, f := rec.counts(); f != 1 || !errors.Is(rec.failures[0], api.ErrUnauthorized) {
		t.Fatalf("failures = %v, want ErrUnauthorized", rec.failures)
	}
	got := notes.waitUntil(t, func(n []event.AuthInvalidEvent) bool { return len(n) >= 1 })
	if got[0].Workspace != "acme" {
		t.Errorf("notification = %+v", got[0])
	}
	statuses.waitUntil(t, func(s []session.Status) bool {
		return len(s) > 0 && s[len(s)-1] == session.StatusUnauthorized
	})
}

func TestBridge_Reconfigure(t *testing.T) {
	d := &dialRecorder{}
	b := newStartedBridge(t, d)
	old := b.WorkspaceToken()

	next := api.Endpoint{URL: "loopback://other", Workspace: "globex"}
	if err := b.Reconfigure(context.Background(), next); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if b.State() != lifecycle.StateStarted {
		t.Fatalf("State() = %s, want started", b.State())
	}
	if ep, _ := b.Endpoint(); ep != next {
		t.Errorf("Endpoint() = %+v, want %+v", ep, next)
	}
	if !old.Disposed() {
		t.Error("subscriptions of the previous graph should be disposed")
	}
	if len(d.clients) != 2 {
		t.Fatalf("dialed %d clients, want 2", len(d.clients))
	}

	sub := b.WorkspaceToken()
	if tok := sub.Value(); tok.Workspace != "globex" {
		t.Errorf("token workspace = %q, want globex", tok.Workspace)
	}

	if err := b.Reconfigure(context.Background(), api.Endpoint{}); err == nil {
		t.Error("Reconfigure with an invalid endpoint should fail")
	}
	if b.State() != lifecycle.StateStarted {
		t.Error("a rejected Reconfigure must leave the running graph alone")
	}
}

func TestBridge_Metrics(t *testing.T) {
	m := metrics.NewCollector()
	d := &dialRecorder{}
	b := newStartedBridge(t, d, bridge.WithMetrics(m))

	rec := newRecorder[api.Session]()
	b.CreateSession().Start("metered", rec.onSuccess, rec.onError)
	rec.wait(t)

	tok := b.WorkspaceToken()
	v := newValues[api.Token]()
	tok.Subscribe(v.onEach)
	v.waitUntil(t, func(toks []api.Token) bool { return len(toks) >= 1 })

	for _, name := range []string{
		"hostbridge_tasks_started_total",
		"hostbridge_tasks_settled_total",
		"hostbridge_stream_deliveries_total",
		"hostbridge_subscriptions_active",
	} {
		n, err := testutil.GatherAndCount(m.Registry(), name)
		if err != nil {
			t.Fatalf("GatherAndCount(%s): %v", name, err)
		}
		if n == 0 {
			t.Errorf("%s has no series", name)
		}
	}
	if n, _ := testutil.GatherAndCount(m.Registry(), "hostbridge_graph_state"); n != len(lifecycle.States()) {
		t.Errorf("graph_state has %d series, want %d", n, len(lifecycle.States()))
	}
}
