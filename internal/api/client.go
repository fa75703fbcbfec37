package api

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Iron-Ham/hostbridge/internal/errors"
)

// Sentinel errors returned by clients.
var (
	// ErrUnauthorized indicates that the remote rejected the credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionNotFound indicates that a session id is unknown to the remote.
	ErrSessionNotFound = errors.New("session not found")
	// ErrClosed indicates that the client was closed.
	ErrClosed = errors.New("client closed")
)

// Client is the remote API surface the bridge wraps. Every method honors
// ctx cancellation.
type Client interface {
	Ping(ctx context.Context) error
	CreateSession(ctx context.Context, title string) (Session, error)
	SendMessage(ctx context.Context, req MessageRequest) (Message, error)
	ListSessions(ctx context.Context) ([]Session, error)
	DeleteSession(ctx context.Context, id string) error
	WorkspaceToken(ctx context.Context) (Token, error)
	Close() error
}

// Dialer connects a Client to an endpoint.
type Dialer func(ctx context.Context, ep Endpoint) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Dialer{}
)

// Register makes a Dialer available for a URL scheme. Registering a scheme
// twice replaces the previous dialer.
func Register(scheme string, d Dialer) {
	if d == nil {
		panic("api: Register called with nil dialer for " + scheme)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(scheme)] = d
}

// Registered reports whether a dialer exists for scheme.
func Registered(scheme string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[strings.ToLower(scheme)]
	return ok
}

// Schemes returns the registered schemes in sorted order.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for s := range registry {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Dial validates ep and connects using the dialer registered for its scheme.
func Dial(ctx context.Context, ep Endpoint) (Client, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	d, ok := registry[ep.Scheme()]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no dialer for scheme %q", ep.Scheme())
	}

	c, err := d(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep.Redacted().URL, err)
	}
	return c, nil
}
