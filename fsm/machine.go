// Package fsm provides the state machine and intent mailbox shared by the
// reader and listing screens.
//
// A screen declares its states and the transitions allowed between them;
// the machine rejects anything else. Input goroutines post intents to a
// Mailbox and never block; the screen's worker goroutine drains it.
package fsm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tsawler/inkpage/logging"
)

// ErrInvalidTransition is returned for a transition the table does not
// allow.
var ErrInvalidTransition = errors.New("fsm: invalid transition")

// State is implemented by screen state enums.
type State interface {
	comparable
	fmt.Stringer
}

// Table lists, for each state, the states it may move to.
type Table[S State] map[S][]S

// Machine tracks the current state of a screen. It is safe for concurrent
// use: the input goroutine reads the state while the worker changes it.
type Machine[S State] struct {
	mu      sync.RWMutex
	state   S
	allowed map[S]map[S]bool
	hooks   []func(from, to S)
	log     *logging.Logger
}

// New creates a machine in state initial.
func New[S State](initial S, table Table[S], log *logging.Logger) *Machine[S] {
	if log == nil {
		log = logging.Noop()
	}
	allowed := make(map[S]map[S]bool, len(table))
	for from, tos := range table {
		set := make(map[S]bool, len(tos))
		for _, to := range tos {
			set[to] = true
		}
		allowed[from] = set
	}
	return &Machine[S]{state: initial, allowed: allowed, log: log}
}

// State returns the current state.
func (m *Machine[S]) State() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Is reports whether the machine is in one of states.
func (m *Machine[S]) Is(states ...S) bool {
	cur := m.State()
	for _, s := range states {
		if s == cur {
			return true
		}
	}
	return false
}

// Can reports whether the current state may move to to.
func (m *Machine[S]) Can(to S) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allowed[m.state][to]
}

// OnTransition registers fn to run after every transition. Hooks run on the
// goroutine that made the transition, outside the machine's lock.
func (m *Machine[S]) OnTransition(fn func(from, to S)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Transition moves to state to. Staying in the same state is always
// allowed and runs no hooks.
func (m *Machine[S]) Transition(to S) error {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return nil
	}
	if !m.allowed[from][to] {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.state = to
	hooks := m.hooks
	m.mu.Unlock()

	m.log.Debug("state transition", "from", from.String(), "to", to.String())
	for _, h := range hooks {
		h(from, to)
	}
	return nil
}

// MustTransition is Transition for moves the caller has already checked;
// it panics on an invalid one.
func (m *Machine[S]) MustTransition(to S) {
	if err := m.Transition(to); err != nil {
		panic(err)
	}
}
