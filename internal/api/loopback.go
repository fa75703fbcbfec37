package api

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LoopbackScheme is the URL scheme served by the in-memory client.
const LoopbackScheme = "loopback"

// DefaultTokenTTL is how long loopback tokens stay valid.
const DefaultTokenTTL = 15 * time.Minute

func init() {
	Register(LoopbackScheme, dialLoopback)
}

// dialLoopback builds a Loopback from an endpoint such as
// "loopback://local?latency=50ms&token_ttl=1m".
func dialLoopback(ctx context.Context, ep Endpoint) (Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(ep.URL)
	if err != nil {
		return nil, err
	}

	var opts []LoopbackOption
	q := u.Query()
	if v := q.Get("latency"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid latency %q: %w", v, err)
		}
		opts = append(opts, WithLatency(d))
	}
	if v := q.Get("token_ttl"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid token_ttl %q: %w", v, err)
		}
		opts = append(opts, WithTokenTTL(d))
	}
	return NewLoopback(ep, opts...), nil
}

// LoopbackOption configures a Loopback.
type LoopbackOption func(*Loopback)

// WithLatency delays every call by d, honoring ctx.
func WithLatency(d time.Duration) LoopbackOption {
	return func(l *Loopback) {
		if d > 0 {
			l.latency = d
		}
	}
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(d time.Duration) LoopbackOption {
	return func(l *Loopback) {
		if d > 0 {
			l.tokenTTL = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LoopbackOption {
	return func(l *Loopback) {
		if now != nil {
			l.now = now
		}
	}
}

// Loopback is an in-memory Client. Replies echo the user's message, which
// is enough to exercise the bridge end to end without a network.
type Loopback struct {
	endpoint Endpoint
	latency  time.Duration
	tokenTTL time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]Session
	messages map[string][]Message
	revoked  bool
	closed   bool
	calls    int
}

// NewLoopback creates a Loopback for ep.
func NewLoopback(ep Endpoint, opts ...LoopbackOption) *Loopback {
	l := &Loopback{
		endpoint: ep,
		tokenTTL: DefaultTokenTTL,
		now:      time.Now,
		sessions: make(map[string]Session),
		messages: make(map[string][]Message),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Revoke makes every authenticated call fail with ErrUnauthorized.
func (l *Loopback) Revoke() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked = true
}

// Restore undoes Revoke.
func (l *Loopback) Restore() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked = false
}

// Calls returns how many calls reached the client.
func (l *Loopback) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Transcript returns the messages of a session in order.
func (l *Loopback) Transcript(sessionID string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.messages[sessionID]...)
}

// Ping checks that the client is open.
func (l *Loopback) Ping(ctx context.Context) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.closed {
		return ErrClosed
	}
	return nil
}

// CreateSession starts a new session.
func (l *Loopback) CreateSession(ctx context.Context, title string) (Session, error) {
	if err := l.wait(ctx); err != nil {
		return Session{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkLocked(); err != nil {
		return Session{}, err
	}

	if strings.TrimSpace(title) == "" {
		title = "untitled"
	}
	s := Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: l.now(),
	}
	l.sessions[s.ID] = s
	return s, nil
}

// SendMessage records the request and returns the assistant's reply.
func (l *Loopback) SendMessage(ctx context.Context, req MessageRequest) (Message, error) {
	if err := req.Validate(); err != nil {
		return Message{}, err
	}
	if err := l.wait(ctx); err != nil {
		return Message{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkLocked(); err != nil {
		return Message{}, err
	}
	if _, ok := l.sessions[req.SessionID]; !ok {
		return Message{}, ErrSessionNotFound
	}

	now := l.now()
	user := Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      RoleUser,
		Content:   req.Content,
		CreatedAt: now,
	}
	reply := Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      RoleAssistant,
		Content:   "echo: " + req.Content,
		CreatedAt: now,
	}
	l.messages[req.SessionID] = append(l.messages[req.SessionID], user, reply)
	return reply, nil
}

// ListSessions returns sessions ordered by creation time.
func (l *Loopback) ListSessions(ctx context.Context) ([]Session, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkLocked(); err != nil {
		return nil, err
	}

	out := make([]Session, 0, len(l.sessions))
	for _, s := range l.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteSession removes a session and its transcript.
func (l *Loopback) DeleteSession(ctx context.Context, id string) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkLocked(); err != nil {
		return err
	}
	if _, ok := l.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(l.sessions, id)
	delete(l.messages, id)
	return nil
}

// WorkspaceToken issues a fresh token.
func (l *Loopback) WorkspaceToken(ctx context.Context) (Token, error) {
	if err := l.wait(ctx); err != nil {
		return Token{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkLocked(); err != nil {
		return Token{}, err
	}
	return Token{
		Value:     "tok-" + uuid.NewString(),
		Workspace: l.endpoint.Workspace,
		ExpiresAt: l.now().Add(l.tokenTTL),
	}, nil
}

// Close makes every later call fail with ErrClosed. It is idempotent.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *Loopback) checkLocked() error {
	l.calls++
	if l.closed {
		return ErrClosed
	}
	if l.revoked {
		return ErrUnauthorized
	}
	return nil
}

func (l *Loopback) wait(ctx context.Context) error {
	if l.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(l.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
