package status

import (
	"testing"

	"github.com/matheus3301/chatsync/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Disabled {
		t.Errorf("initial state = %s, want DISABLED", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Disabled, Idle},
		{Idle, Syncing},
		{Idle, Degraded},
		{Syncing, Ready},
		{Syncing, Degraded},
		{Ready, Syncing},
		{Ready, Degraded},
		{Degraded, Ready},
		{Degraded, Syncing},
		{Ready, Disabled},
		{Error, Idle},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(DISABLED -> READY) should fail")
	}
	if m.Current() != Disabled {
		t.Errorf("state = %s, want DISABLED (unchanged)", m.Current())
	}
}

func TestMove(t *testing.T) {
	m := NewMachine(nil)
	if m.Move(Ready) {
		t.Error("Move(DISABLED -> READY) reported success")
	}
	if !m.Move(Disabled) {
		t.Error("Move to the current state should succeed")
	}
	walkTo(t, m, Degraded)
	if !m.Move(Ready) || m.Current() != Ready {
		t.Errorf("Move(DEGRADED -> READY) failed, state %s", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Idle); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.SyncStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.SyncStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Disabled || change.To != Idle {
		t.Errorf("change = %v -> %v, want DISABLED -> IDLE", change.From, change.To)
	}
}

// TestPrivacyRoundTrip walks cloud → local → cloud:
// READY → DISABLED → IDLE → SYNCING → READY
func TestPrivacyRoundTrip(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Ready)

	steps := []State{Disabled, Idle, Syncing, Ready}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

// TestDisabledCannotSyncDirectly verifies DISABLED must pass through IDLE.
func TestDisabledCannotSyncDirectly(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Syncing); err == nil {
		t.Fatal("Transition(DISABLED -> SYNCING) should fail")
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Disabled: {},
		Idle:     {Idle},
		Syncing:  {Idle, Syncing},
		Ready:    {Idle, Syncing, Ready},
		Degraded: {Idle, Syncing, Degraded},
		Error:    {Idle, Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
