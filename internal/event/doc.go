// Package event provides a pub-sub event bus for decoupled communication
// between the bridge, its collaborators, and host surfaces.
//
// Collaborators publish events without knowing who will receive them, and
// hosts subscribe without knowing who produces them. Stateless streams such
// as auth-invalid notifications are built on top of the bus.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Graph:
//   - [GraphStateChangedEvent]: Emitted after each bridge lifecycle transition
//   - [EndpointConfiguredEvent]: Emitted when the bridge accepts an endpoint
//
// Auth:
//   - [AuthInvalidEvent]: Emitted when the remote rejects the credentials
//   - [TokenRefreshedEvent]: Emitted when a workspace token is fetched
//
// Config:
//   - [ConfigReloadedEvent]: Emitted when the config file is reloaded
//
// # Patterns
//
// Subscribe accepts either an exact event type or a glob pattern. Segments
// are separated by '.', so "auth.*" matches "auth.invalid" and
// "auth.token_refreshed" but "*" alone means every event.
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called synchronously
// on the publishing goroutine and are protected against panics.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//
//	bus.Subscribe("auth.*", func(e event.Event) {
//	    if invalid, ok := e.(event.AuthInvalidEvent); ok {
//	        promptForKey(invalid.Workspace)
//	    }
//	})
//
//	bus.Publish(event.NewAuthInvalidEvent("acme", "token revoked"))
package event
