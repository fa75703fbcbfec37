// Package stream implements the stream subscription half of the bridge:
// observing a continuously updating value source from a callback-driven host.
//
// Sources are owned by collaborators and only referenced here:
//
//   - [State] holds a current value; new listeners receive it first.
//   - [Feed] emits future values only.
//   - [BusSource] adapts typed events from an event.Bus.
//
// A [Subscription] attaches exactly one callback at a time. Subscribing
// again closes the previous handle first, and Close guarantees that no
// callback runs afterwards, even for values that were already queued.
// Values reach the callback in the order the source produced them, on a
// delivery goroutine owned by the handle.
//
//	sub := stream.NewStateSubscription[api.Token](sessions.Token(),
//	    stream.WithName("workspace_token"))
//	sub.Subscribe(func(tok api.Token) {
//	    program.Send(tokenMsg{tok})
//	})
//	defer sub.Dispose()
//
// Sources never fail in-band. Producers that can fail publish the failure
// as part of the value type.
package stream
