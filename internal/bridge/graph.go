package bridge

import (
	"context"
	"sync"

	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/errors"
	"github.com/Iron-Ham/hostbridge/internal/lifecycle"
	"github.com/Iron-Ham/hostbridge/internal/logging"
	"github.com/Iron-Ham/hostbridge/internal/session"
	"github.com/Iron-Ham/hostbridge/internal/stream"
	"github.com/Iron-Ham/hostbridge/internal/task"
)

// graph is everything built by one successful Start. It is torn down as a
// unit by Stop and never reused.
type graph struct {
	client   api.Client
	sessions *session.Manager
	scope    *lifecycle.Scope
	limiter  *inflightLimiter
	logger   *logging.Logger
	ops      opTracker

	taskObserver   task.Observer
	streamObserver stream.Observer
}

func (g *graph) taskOptions(name string) []task.Option {
	opts := []task.Option{
		task.WithName(name),
		task.WithLogger(g.logger),
		task.WithScope(g.scope),
	}
	if g.taskObserver != nil {
		opts = append(opts, task.WithObserver(g.taskObserver))
	}
	return opts
}

func (g *graph) streamOptions(name string) []stream.Option {
	opts := []stream.Option{
		stream.WithName(name),
		stream.WithLogger(g.logger),
		stream.WithScope(g.scope),
	}
	if g.streamObserver != nil {
		opts = append(opts, stream.WithObserver(g.streamObserver))
	}
	return opts
}

// invoke runs op under the in-flight limit and registers it with the
// tracker so teardown can wait for it.
func invoke[T any](ctx context.Context, g *graph, op func(context.Context) task.Outcome[T]) task.Outcome[T] {
	if !g.ops.enter() {
		return task.Failure[T](errors.ErrScopeClosed)
	}
	defer g.ops.exit()

	if err := g.limiter.Acquire(ctx); err != nil {
		return task.Failure[T](err)
	}
	defer g.limiter.Release()
	return op(ctx)
}

// teardown disposes every runner and subscription minted from the graph,
// waits for operations still inside the collaborator, then stops the
// session layer and closes the client.
func (g *graph) teardown() error {
	g.scope.Close()
	g.ops.drain()
	g.sessions.Stop()
	if err := g.client.Close(); err != nil {
		return errors.Wrap(err, "close client")
	}
	return nil
}

// opTracker counts operation functions currently running. Once drained it
// refuses new entries. Add happens under the same lock that closes the gate,
// so no operation can slip in after drain has started waiting.
type opTracker struct {
	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

func (t *opTracker) enter() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.running.Add(1)
	return true
}

func (t *opTracker) exit() {
	t.running.Done()
}

func (t *opTracker) drain() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.running.Wait()
}
