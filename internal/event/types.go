package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "graph.state_changed", "auth.invalid")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeGraphStateChanged  = "graph.state_changed"
	TypeEndpointConfigured = "graph.endpoint_configured"
	TypeAuthInvalid        = "auth.invalid"
	TypeTokenRefreshed     = "auth.token_refreshed"
	TypeConfigReloaded     = "config.reloaded"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Graph Events
// -----------------------------------------------------------------------------

// GraphStateChangedEvent is emitted after every transition of the bridge's
// dependency graph (stopped, starting, started).
type GraphStateChangedEvent struct {
	baseEvent
	Previous string
	Current  string
	Err      error // set when a start attempt failed and the graph fell back to stopped
}

// NewGraphStateChangedEvent creates a GraphStateChangedEvent.
func NewGraphStateChangedEvent(previous, current string, err error) GraphStateChangedEvent {
	return GraphStateChangedEvent{
		baseEvent: newBaseEvent(TypeGraphStateChanged),
		Previous:  previous,
		Current:   current,
		Err:       err,
	}
}

// EndpointConfiguredEvent is emitted when the bridge accepts a new endpoint.
type EndpointConfiguredEvent struct {
	baseEvent
	URL       string
	Workspace string
}

// NewEndpointConfiguredEvent creates an EndpointConfiguredEvent.
func NewEndpointConfiguredEvent(url, workspace string) EndpointConfiguredEvent {
	return EndpointConfiguredEvent{
		baseEvent: newBaseEvent(TypeEndpointConfigured),
		URL:       url,
		Workspace: workspace,
	}
}

// -----------------------------------------------------------------------------
// Auth Events
// -----------------------------------------------------------------------------

// AuthInvalidEvent is emitted when the remote rejects the workspace
// credentials. Hosts typically answer it by prompting for a new key.
type AuthInvalidEvent struct {
	baseEvent
	Workspace string
	Reason    string
}

// NewAuthInvalidEvent creates an AuthInvalidEvent.
func NewAuthInvalidEvent(workspace, reason string) AuthInvalidEvent {
	return AuthInvalidEvent{
		baseEvent: newBaseEvent(TypeAuthInvalid),
		Workspace: workspace,
		Reason:    reason,
	}
}

// TokenRefreshedEvent is emitted each time a workspace token is fetched.
type TokenRefreshedEvent struct {
	baseEvent
	Workspace string
	ExpiresAt time.Time
}

// NewTokenRefreshedEvent creates a TokenRefreshedEvent.
func NewTokenRefreshedEvent(workspace string, expiresAt time.Time) TokenRefreshedEvent {
	return TokenRefreshedEvent{
		baseEvent: newBaseEvent(TypeTokenRefreshed),
		Workspace: workspace,
		ExpiresAt: expiresAt,
	}
}

// -----------------------------------------------------------------------------
// Config Events
// -----------------------------------------------------------------------------

// ConfigReloadedEvent is emitted when the config file changed on disk and was
// loaded again.
type ConfigReloadedEvent struct {
	baseEvent
	Path            string
	EndpointChanged bool
}

// NewConfigReloadedEvent creates a ConfigReloadedEvent.
func NewConfigReloadedEvent(path string, endpointChanged bool) ConfigReloadedEvent {
	return ConfigReloadedEvent{
		baseEvent:       newBaseEvent(TypeConfigReloaded),
		Path:            path,
		EndpointChanged: endpointChanged,
	}
}
