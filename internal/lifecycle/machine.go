package lifecycle

import (
	"sync"
	"time"

	"github.com/Iron-Ham/hostbridge/internal/errors"
	"github.com/Iron-Ham/hostbridge/internal/logging"
)

// State is the lifecycle state of the bridge's dependency graph.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateStarted  State = "started"
)

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// States lists every state in transition order.
func States() []State {
	return []State{StateStopped, StateStarting, StateStarted}
}

// Callbacks holds callback functions for graph lifecycle events.
type Callbacks struct {
	// OnStateChange is called after every successful transition, outside the
	// machine's lock.
	OnStateChange func(oldState, newState State)
}

// Machine enforces the Stopped -> Starting -> Started -> Stopped cycle.
// Illegal transitions are rejected with a *errors.LifecycleError and leave
// the state untouched.
type Machine struct {
	callbacks Callbacks
	logger    *logging.Logger

	mu        sync.Mutex
	state     State
	changedAt time.Time
}

// NewMachine creates a Machine in StateStopped.
func NewMachine(callbacks Callbacks, logger *logging.Logger) *Machine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Machine{
		callbacks: callbacks,
		logger:    logger.WithComponent("lifecycle"),
		state:     StateStopped,
		changedAt: time.Now(),
	}
}

// Begin moves Stopped -> Starting.
func (m *Machine) Begin() error {
	return m.transition("begin", StateStopped, StateStarting, errors.ErrAlreadyStarted)
}

// Commit moves Starting -> Started.
func (m *Machine) Commit() error {
	return m.transition("commit", StateStarting, StateStarted, errors.ErrNotStarted)
}

// Abort moves Starting -> Stopped after a failed start.
func (m *Machine) Abort() error {
	return m.transition("abort", StateStarting, StateStopped, errors.ErrNotStarted)
}

// Halt moves Started -> Stopped.
func (m *Machine) Halt() error {
	return m.transition("halt", StateStarted, StateStopped, errors.ErrNotStarted)
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Since returns how long the machine has been in its current state.
func (m *Machine) Since() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.changedAt)
}

func (m *Machine) transition(op string, from, to State, cause error) error {
	m.mu.Lock()
	if m.state != from {
		current := m.state
		m.mu.Unlock()
		return errors.NewLifecycleError("graph", op, cause).
			WithState(string(current)).
			WithMessage("cannot move to " + string(to))
	}
	m.state = to
	m.changedAt = time.Now()
	m.mu.Unlock()

	m.logger.Info("graph state changed", "from", string(from), "to", string(to))

	if m.callbacks.OnStateChange != nil {
		m.callbacks.OnStateChange(from, to)
	}
	return nil
}
