package lifecycle

import (
	"sync"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/hostbridge/internal/errors"
)

// Disposer is implemented by anything a Scope can tear down: task runners,
// stream subscriptions, and bridge calls.
type Disposer interface {
	Dispose()
}

// DisposerFunc adapts a plain function to the Disposer interface.
type DisposerFunc func()

// Dispose calls f.
func (f DisposerFunc) Dispose() { f() }

// Scope is the owner of runners and subscriptions. Closing it disposes
// everything it adopted, newest first, so no callback outlives the owner.
type Scope struct {
	name string

	mu      sync.Mutex
	members []Disposer
	closed  bool
	done    chan struct{}
}

// NewScope creates an open Scope.
func NewScope(name string) *Scope {
	return &Scope{
		name: name,
		done: make(chan struct{}),
	}
}

// Name returns the scope's name.
func (s *Scope) Name() string {
	return s.name
}

// Adopt registers d for disposal when the scope closes. It fails with
// errors.ErrScopeClosed if the scope is already closed; d is not disposed in
// that case.
func (s *Scope) Adopt(d Disposer) error {
	if d == nil {
		return errors.NewValidationError("nil disposer").WithField("scope." + s.name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewLifecycleError("scope", "adopt", errors.ErrScopeClosed).
			WithState("closed").
			WithMessage("scope " + s.name)
	}
	s.members = append(s.members, d)
	return nil
}

// Release forgets d without disposing it. Members call this when they are
// disposed directly so a long-lived scope does not retain them.
func (s *Scope) Release(d Disposer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.members {
		if m == d {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return true
		}
	}
	return false
}

// Close disposes every adopted member in reverse adoption order. It is
// idempotent. If a member panics the remaining members are still disposed
// and the first panic is re-raised afterwards.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	members := s.members
	s.members = nil
	s.mu.Unlock()

	var pc panics.Catcher
	for i := len(members) - 1; i >= 0; i-- {
		pc.Try(members[i].Dispose)
	}
	close(s.done)
	pc.Repanic()
}

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Done returns a channel closed once Close has disposed every member.
func (s *Scope) Done() <-chan struct{} {
	return s.done
}

// Len returns the number of members awaiting disposal.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}
