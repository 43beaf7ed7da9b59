package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
)

// State is the state of cloud synchronization.
type State string

const (
	Disabled State = "DISABLED" // privacy mode is local
	Idle     State = "IDLE"
	Syncing  State = "SYNCING"
	Ready    State = "READY"
	Degraded State = "DEGRADED" // last push or pull failed; local state is intact
	Error    State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Disabled: {Idle},
	Idle:     {Syncing, Degraded, Disabled, Error},
	Syncing:  {Ready, Degraded, Disabled, Error},
	Ready:    {Syncing, Degraded, Disabled, Error},
	Degraded: {Syncing, Ready, Disabled, Error},
	Error:    {Idle, Disabled},
}

// Machine tracks and enforces sync state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Disabled.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disabled,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(to)
}

// Move transitions to `to` when allowed and reports whether the state is
// now `to`. Moving to the current state is a successful no-op.
func (m *Machine) Move(to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == to {
		return true
	}
	return m.transitionLocked(to) == nil
}

func (m *Machine) transitionLocked(to State) error {
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.SyncStatusChanged,
			Timestamp: time.Now(),
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
