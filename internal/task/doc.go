// Package task implements the cancellable task runner: the bridge type that
// lets a callback-driven host start an asynchronous operation and receive
// exactly one terminal result.
//
// # Guarantees
//
//   - At most one handle is active per [Runner]. Start cancels the previous
//     handle before launching the next, and a superseded handle never
//     delivers.
//   - Exactly one of onSuccess or onError runs per Start, unless the handle
//     is cancelled first, in which case neither runs.
//   - Cancellation (context.Canceled, errors.ErrCanceled, or the handle's
//     own context being done) is swallowed and never reaches onError.
//   - Every other failure, including a recovered panic wrapped in
//     *errors.PanicError, reaches onError unwrapped and exactly once.
//   - Callbacks for a handle run on that handle's own delivery loop, one at
//     a time.
//
// Cancellation is cooperative. Cancel silences the callbacks immediately,
// but the operation keeps running until it observes its context. [Runner.Wait]
// blocks until every operation has returned.
//
// # Variants
//
//	r := task.NewRunner[api.Session](task.WithName("create_session"))
//	r.Start(func(ctx context.Context) task.Outcome[api.Session] {
//	    return sessions.CreateSession(ctx, title)
//	}, onSession, onError)
//
//	r.StartCatching(func(ctx context.Context) (api.Session, error) {
//	    return client.CreateSession(ctx, title)
//	}, onSession, onError)
//
//	u := task.NewUnitRunner(task.WithName("delete_session"))
//	u.Start(func(ctx context.Context) error {
//	    return client.DeleteSession(ctx, id)
//	}, onDeleted, onError)
package task
