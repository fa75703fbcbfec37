// Package lifecycle holds the two ownership primitives of the bridge.
//
// [Machine] is the graph state machine (stopped, starting, started). The
// bridge drives it on Start, Stop and Reconfigure, and every transition is
// reported through [Callbacks].
//
// [Scope] models the owner of handles: a UI screen, a view-model, or the
// started graph itself. Runners and subscriptions created with a scope are
// disposed when the scope closes, and using them afterwards is a programming
// error.
package lifecycle
