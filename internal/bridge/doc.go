// Package bridge is the host-facing facade over the API/session layer.
//
// A Bridge owns one dependency graph at a time: the remote client, the
// session manager built on it, and a lifecycle scope that every minted Call,
// Action and Subscription is adopted into. The graph moves through
// stopped -> starting -> started -> stopped; a failed start returns to
// stopped with nothing left behind.
//
// Hosts never see goroutines or contexts. They mint a Call, Start it with
// callbacks, and Cancel or Dispose it when the screen goes away. Callbacks
// run on a delivery goroutine owned by the call; hosts with their own UI
// thread forward them (the TUI wraps them in tea.Msg values).
//
// Lifecycle:
//
//	b := bridge.New(bridge.WithLogger(logger), bridge.WithMetrics(m))
//	b.Configure(endpoint)
//	b.Start(ctx)                 // dial, prime token and ping concurrently
//	send := b.SendMessage()      // panics unless started
//	send.Start(req, onReply, onError)
//	b.Stop()                     // disposes send; no callback runs after this
package bridge
