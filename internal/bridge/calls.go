package bridge

import (
	"context"

	"github.com/Iron-Ham/hostbridge/internal/task"
)

// Call is a host-facing handle on one collaborator operation that takes an
// A and produces a T. Each Start supersedes the previous one; at most one of
// onSuccess and onError runs per Start, on the call's delivery goroutine,
// and neither runs after Cancel or Dispose.
//
// A Call belongs to the graph that minted it and is disposed when the
// bridge stops.
type Call[A, T any] struct {
	g      *graph
	runner *task.Runner[T]
	op     func(context.Context, A) task.Outcome[T]
}

func newCall[A, T any](g *graph, name string, op func(context.Context, A) task.Outcome[T]) *Call[A, T] {
	return &Call[A, T]{
		g:      g,
		runner: task.NewRunner[T](g.taskOptions(name)...),
		op:     op,
	}
}

// Start invokes the operation with arg. It panics with a
// *errors.LifecycleError once the call is disposed or the bridge stopped.
func (c *Call[A, T]) Start(arg A, onSuccess func(T), onError func(error)) {
	c.runner.Start(func(ctx context.Context) task.Outcome[T] {
		return invoke(ctx, c.g, func(ctx context.Context) task.Outcome[T] {
			return c.op(ctx, arg)
		})
	}, onSuccess, onError)
}

// Name returns the operation name used in logs and metrics.
func (c *Call[A, T]) Name() string { return c.runner.Name() }

// Cancel cancels the in-flight invocation. It never blocks.
func (c *Call[A, T]) Cancel() { c.runner.Cancel() }

// Dispose cancels and makes the call unusable.
func (c *Call[A, T]) Dispose() { c.runner.Dispose() }

// Disposed reports whether Start would panic.
func (c *Call[A, T]) Disposed() bool { return c.runner.Disposed() }

// State returns the state of the latest invocation.
func (c *Call[A, T]) State() task.State { return c.runner.State() }

// Wait blocks until every invocation has returned and its callbacks ran.
// It must not be called from a callback.
func (c *Call[A, T]) Wait() { c.runner.Wait() }

// Action is a Call for operations that produce no value.
type Action[A any] struct {
	g      *graph
	runner *task.UnitRunner
	op     func(context.Context, A) error
}

func newAction[A any](g *graph, name string, op func(context.Context, A) error) *Action[A] {
	return &Action[A]{
		g:      g,
		runner: task.NewUnitRunner(g.taskOptions(name)...),
		op:     op,
	}
}

// Start invokes the operation with arg; onComplete runs on success.
func (a *Action[A]) Start(arg A, onComplete func(), onError func(error)) {
	a.runner.Start(func(ctx context.Context) error {
		out := invoke(ctx, a.g, func(ctx context.Context) task.Outcome[struct{}] {
			return task.FromResult(struct{}{}, a.op(ctx, arg))
		})
		return out.Err()
	}, onComplete, onError)
}

// Name returns the operation name used in logs and metrics.
func (a *Action[A]) Name() string { return a.runner.Name() }

// Cancel cancels the in-flight invocation. It never blocks.
func (a *Action[A]) Cancel() { a.runner.Cancel() }

// Dispose cancels and makes the action unusable.
func (a *Action[A]) Dispose() { a.runner.Dispose() }

// Disposed reports whether Start would panic.
func (a *Action[A]) Disposed() bool { return a.runner.Disposed() }

// State returns the state of the latest invocation.
func (a *Action[A]) State() task.State { return a.runner.State() }

// Wait blocks until every invocation has returned and its callbacks ran.
func (a *Action[A]) Wait() { a.runner.Wait() }
