package chatstore

import (
	"errors"
	"slices"
	"testing"

	"github.com/matheus3301/chatsync/internal/clock"
)

// brokenDisk reads fine (or not, with readErr) and fails every write.
type brokenDisk struct {
	readErr error
	writes  int
}

func (d *brokenDisk) Get(string) ([]byte, bool, error) { return nil, false, d.readErr }

func (d *brokenDisk) Set(string, []byte) error {
	d.writes++
	return errors.New("disk full")
}

func (d *brokenDisk) Remove(string) error {
	d.writes++
	return errors.New("disk full")
}

func (d *brokenDisk) List(string) (map[string][]byte, error) { return nil, d.readErr }

func TestWriteFailuresKeepMemoryState(t *testing.T) {
	disk := &brokenDisk{}
	s, err := New(disk, nil, clock.Fake(epoch), nil)
	if err != nil {
		t.Fatal(err)
	}
	syncer := &recordingSyncer{}
	s.AttachSyncer(syncer)

	keep, err := s.CreateChat("keep", nil, "", "", "")
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if err := s.AddMessage(keep, userMsg("u1", "hello")); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	drop, _ := s.CreateChat("drop", nil, "", "", "")
	if err := s.DeleteChat(drop); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}

	if disk.writes == 0 {
		t.Fatal("store never tried to persist")
	}
	if c := mustChat(t, s, keep); len(c.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(c.Messages))
	}
	if _, ok := s.Chat(drop); ok {
		t.Error("deleted chat still listed")
	}
	if got := s.DeletedChatIDs(); !slices.Equal(got, []string{drop}) {
		t.Errorf("tombstones = %v, want [%s]", got, drop)
	}
	if !slices.Contains(syncer.scheduledChats(), keep) {
		t.Error("sync not scheduled despite the failed write")
	}
}

func TestUnreadableStoreFailsAtStartup(t *testing.T) {
	if _, err := New(&brokenDisk{readErr: errors.New("io error")}, nil, nil, nil); err == nil {
		t.Fatal("New succeeded over an unreadable store")
	}
}
