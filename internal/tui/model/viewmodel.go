package model

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chatstore"
	"github.com/matheus3301/chatsync/internal/clock"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/status"
)

// Filter selects which chats the list shows.
type Filter struct {
	Starred  bool
	FolderID string
}

// ChatRow is one line of the chat list.
type ChatRow struct {
	ID        string
	Title     string
	Folder    string
	Starred   bool
	LocalOnly bool
	Streaming bool
	Messages  int
	UpdatedAt time.Time
}

// ViewModel reads the chat store for the views and signals a refresh on
// every store or sync event.
type ViewModel struct {
	store *chatstore.Store
	bus   *bus.Bus
	Flash *Flash

	mu     sync.RWMutex
	filter Filter
	status status.State

	refreshCh chan struct{}
}

// NewViewModel creates a view model over the store.
func NewViewModel(s *chatstore.Store, b *bus.Bus, clk clock.Clock, initial status.State) *ViewModel {
	return &ViewModel{
		store:     s,
		bus:       b,
		Flash:     NewFlash(clk),
		status:    initial,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Watch consumes bus events until ctx is done.
func (vm *ViewModel) Watch(ctx context.Context) {
	events, unsub := vm.bus.Subscribe("", 256)
	defer unsub()
	for {
		select {
		case evt := <-events:
			vm.apply(evt)
		case <-ctx.Done():
			return
		}
	}
}

func (vm *ViewModel) apply(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case notify.Toast:
		vm.Flash.Set(p)
	case status.StatusChange:
		vm.mu.Lock()
		vm.status = p.To
		vm.mu.Unlock()
	}
	vm.signalRefresh()
}

// SyncStatus returns the last sync status seen.
func (vm *ViewModel) SyncStatus() status.State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// SetFilter changes the chat list filter.
func (vm *ViewModel) SetFilter(f Filter) {
	vm.mu.Lock()
	vm.filter = f
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Filter returns the current filter.
func (vm *ViewModel) Filter() Filter {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.filter
}

// Rows returns the chat list under the current filter, newest first.
func (vm *ViewModel) Rows() []ChatRow {
	f := vm.Filter()
	var chats []*model.Chat
	switch {
	case f.Starred:
		chats = vm.store.StarredChats()
	case f.FolderID != "":
		chats = vm.store.ChatsInFolder(f.FolderID)
	default:
		chats = vm.store.Chats()
	}

	names := make(map[string]string)
	for _, folder := range vm.store.Folders() {
		names[folder.ID] = folder.Name
	}
	streamingChat, _ := vm.store.StreamingMessageID()

	rows := make([]ChatRow, len(chats))
	for i, c := range chats {
		rows[i] = ChatRow{
			ID:        c.ID,
			Title:     c.Title,
			Folder:    names[c.FolderID],
			Starred:   c.IsStarred,
			LocalOnly: c.LocalOnly,
			Streaming: c.ID == streamingChat,
			Messages:  len(c.Messages),
			UpdatedAt: time.UnixMilli(c.UpdatedAt),
		}
	}
	return rows
}

// FolderByName finds a folder by its exact name.
func (vm *ViewModel) FolderByName(name string) (*model.Folder, bool) {
	for _, f := range vm.store.Folders() {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}
