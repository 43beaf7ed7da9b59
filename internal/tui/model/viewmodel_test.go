package model

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chatstore"
	"github.com/matheus3301/chatsync/internal/clock"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
)

func newViewModel(t *testing.T) (*ViewModel, *chatstore.Store, *bus.Bus, *clock.FakeClock) {
	t.Helper()
	db, _, err := store.OpenMigrated(filepath.Join(t.TempDir(), "chatsync.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	clk := clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	s, err := chatstore.New(db, b, clk, nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewViewModel(s, b, clk, status.Disabled), s, b, clk
}

func TestRowsFollowFilter(t *testing.T) {
	vm, s, _, _ := newViewModel(t)
	folder, _ := s.CreateFolder("Work")
	plain, _ := s.CreateChat("plain", nil, "", "", "")
	filed, _ := s.CreateChat("filed", nil, "", "", folder)
	_ = s.SetStarred(plain, true)

	if rows := vm.Rows(); len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	vm.SetFilter(Filter{Starred: true})
	rows := vm.Rows()
	if len(rows) != 1 || rows[0].ID != plain || !rows[0].Starred {
		t.Errorf("starred rows = %+v", rows)
	}

	vm.SetFilter(Filter{FolderID: folder})
	rows = vm.Rows()
	if len(rows) != 1 || rows[0].ID != filed || rows[0].Folder != "Work" {
		t.Errorf("folder rows = %+v", rows)
	}

	if f, ok := vm.FolderByName("Work"); !ok || f.ID != folder {
		t.Errorf("FolderByName(Work) = %+v, %v", f, ok)
	}
}

func TestWatchAppliesToastsAndStatus(t *testing.T) {
	vm, _, b, clk := newViewModel(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		vm.Watch(ctx)
	}()

	exported := make(chan struct{}, 1)
	m := status.NewMachine(b)
	n := notify.New(b, clk)

	// The subscription is registered asynchronously; publish until seen.
	deadline := time.After(time.Second)
	for vm.SyncStatus() != status.Idle {
		_ = m.Move(status.Disabled)
		_ = m.Move(status.Idle)
		select {
		case <-deadline:
			t.Fatal("status change not applied")
		case <-time.After(10 * time.Millisecond):
		}
	}

	n.Warning("Chat too large to sync", "kept local", &notify.Action{Label: "Export", Callback: func() { exported <- struct{}{} }})
	deadline = time.After(time.Second)
	for {
		if toast, ok := vm.Flash.Get(); ok && toast.Kind == notify.KindWarning {
			break
		}
		select {
		case <-deadline:
			t.Fatal("toast not applied")
		case <-time.After(10 * time.Millisecond):
		}
	}

	action := vm.Flash.TakeAction()
	if action == nil || action.Label != "Export" {
		t.Fatalf("action = %+v", action)
	}
	action.Callback()
	<-exported
	if vm.Flash.TakeAction() != nil {
		t.Error("action still present after it was taken")
	}

	cancel()
	<-done
}

func TestFlashExpires(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	f := NewFlash(clk)
	f.Set(notify.Toast{Kind: notify.KindError, Title: "Couldn't sync chat", Duration: 5 * time.Second})

	if _, ok := f.Get(); !ok {
		t.Fatal("toast missing before expiry")
	}
	clk.Advance(5 * time.Second)
	if _, ok := f.Get(); ok {
		t.Error("toast still shown after its duration")
	}
}
