package task

import "context"

// UnitRunner is a Runner for operations that produce no value. A successful
// run invokes onComplete instead of onSuccess.
type UnitRunner struct {
	r *Runner[struct{}]
}

// NewUnitRunner creates a UnitRunner.
func NewUnitRunner(opts ...Option) *UnitRunner {
	return &UnitRunner{r: NewRunner[struct{}](opts...)}
}

// Start runs op with the same supersession and cancellation rules as
// Runner.Start.
func (u *UnitRunner) Start(op func(context.Context) error, onComplete func(), onError func(error)) {
	if op == nil {
		u.r.Start(nil, nil, onError)
		return
	}
	u.r.StartCatching(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, func(struct{}) {
		if onComplete != nil {
			onComplete()
		}
	}, onError)
}

// Name returns the runner's name.
func (u *UnitRunner) Name() string { return u.r.Name() }

// Cancel cancels the in-flight operation, if any.
func (u *UnitRunner) Cancel() { u.r.Cancel() }

// Dispose cancels and makes the runner unusable.
func (u *UnitRunner) Dispose() { u.r.Dispose() }

// Disposed reports whether the runner can no longer start work.
func (u *UnitRunner) Disposed() bool { return u.r.Disposed() }

// State returns the state of the most recent operation.
func (u *UnitRunner) State() State { return u.r.State() }

// Wait blocks until every started operation has returned.
func (u *UnitRunner) Wait() { u.r.Wait() }
