// Package api defines the remote collaborator the bridge wraps: the
// endpoint a host configures, the domain values exchanged with the remote,
// and the [Client] interface.
//
// Concrete clients are selected by URL scheme through [Register] and
// [Dial]. The in-memory [Loopback] client is registered for "loopback://"
// and accepts latency and token_ttl query parameters:
//
//	ep := api.Endpoint{URL: "loopback://local?latency=50ms", Workspace: "acme"}
//	client, err := api.Dial(ctx, ep)
package api
