package outbox

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/clock"
	"go.uber.org/zap"
)

// mockDeleter records calls and fails the ids listed in fail.
type mockDeleter struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (m *mockDeleter) record(kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, kind+":"+id)
	if m.fail[id] {
		return errors.New("remote unavailable")
	}
	return nil
}

func (m *mockDeleter) DeleteChat(_ context.Context, id string) error {
	return m.record(KindChat, id)
}

func (m *mockDeleter) DeleteFolder(_ context.Context, id string) error {
	return m.record(KindFolder, id)
}

func (m *mockDeleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// memTombstones is an in-memory Tombstones.
type memTombstones struct {
	mu      sync.Mutex
	chats   []string
	folders []string
}

func (m *memTombstones) DeletedChatIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.chats)
}

func (m *memTombstones) DeletedFolderIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.folders)
}

func (m *memTombstones) ConfirmChatDeleted(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.chats)
	m.chats = slices.DeleteFunc(m.chats, func(x string) bool { return x == id })
	return len(m.chats) != n
}

func (m *memTombstones) ConfirmFolderDeleted(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.folders)
	m.folders = slices.DeleteFunc(m.folders, func(x string) bool { return x == id })
	return len(m.folders) != n
}

func TestSweepConfirmsAndKeepsFailures(t *testing.T) {
	b := bus.New()
	confirmed, unsubC := b.Subscribe(bus.SyncDeleteConfirmed, 10)
	defer unsubC()
	failed, unsubF := b.Subscribe(bus.SyncDeleteFailed, 10)
	defer unsubF()

	stones := &memTombstones{chats: []string{"c1", "c2"}, folders: []string{"f1"}}
	remote := &mockDeleter{fail: map[string]bool{"c2": true}}
	logger, _ := zap.NewDevelopment()
	s := NewSweeper(stones, remote, b, nil, logger, 0)

	res := s.Sweep(context.Background())
	if res.Confirmed != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want 2 confirmed, 1 failed", res)
	}
	if got := stones.DeletedChatIDs(); !slices.Equal(got, []string{"c2"}) {
		t.Errorf("remaining chat tombstones = %v, want [c2]", got)
	}
	if got := stones.DeletedFolderIDs(); len(got) != 0 {
		t.Errorf("remaining folder tombstones = %v", got)
	}
	if remote.calls[0] != "folder:f1" {
		t.Errorf("first delete = %s, want folders first", remote.calls[0])
	}

	select {
	case evt := <-failed:
		res := evt.Payload.(DeleteResult)
		if res.ID != "c2" || res.Kind != KindChat || res.Error == "" {
			t.Errorf("failed payload = %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delete_failed")
	}
	for i := 0; i < 2; i++ {
		select {
		case <-confirmed:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for delete_confirmed")
		}
	}

	// Retry succeeds once the remote recovers.
	remote.mu.Lock()
	remote.fail = nil
	remote.mu.Unlock()
	if res := s.Sweep(context.Background()); res.Confirmed != 1 {
		t.Errorf("retry result = %+v", res)
	}
	if got := stones.DeletedChatIDs(); len(got) != 0 {
		t.Errorf("tombstones after retry = %v", got)
	}
}

func TestDisabledSweeperKeepsTombstones(t *testing.T) {
	stones := &memTombstones{chats: []string{"c1"}}
	remote := &mockDeleter{}
	s := NewSweeper(stones, remote, nil, nil, nil, 0)
	s.SetEnabled(false)

	s.Sweep(context.Background())
	if err := s.DeleteChat(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if remote.callCount() != 0 {
		t.Errorf("remote called %d times while disabled", remote.callCount())
	}
	if len(stones.DeletedChatIDs()) != 1 {
		t.Error("tombstone dropped while disabled")
	}
}

func TestLoopSweepsOnTick(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	stones := &memTombstones{chats: []string{"c1"}}
	remote := &mockDeleter{}
	s := NewSweeper(stones, remote, nil, clk, nil, 30*time.Second)

	s.Start(context.Background())
	defer s.Stop()

	clk.WaitForTimers(1)
	clk.Advance(30 * time.Second)

	deadline := time.After(time.Second)
	for len(stones.DeletedChatIDs()) != 0 {
		select {
		case <-deadline:
			t.Fatal("loop did not sweep on tick")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
