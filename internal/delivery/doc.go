// Package delivery provides the delivery context used by task runners and
// stream subscriptions.
//
// A [Loop] is a single goroutine draining an unbounded FIFO of functions.
// Every task handle and subscription handle owns exactly one Loop, so the
// callbacks of one handle run one at a time and in the order they were
// posted, while producers (operations and sources) never block on a slow
// consumer.
//
// Closing a Loop drops everything still queued. A function that is already
// running finishes; nothing else runs afterwards. Callers combine this with
// their own closed flags to guarantee that no callback fires after a cancel
// or close returns.
//
//	loop := delivery.NewLoop("create_session", logger)
//	loop.Post(func() { onSuccess(v) })
//	loop.Close()
//	<-loop.Done()
package delivery
