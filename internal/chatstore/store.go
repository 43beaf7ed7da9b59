// Package chatstore is the single source of truth for chats, folders,
// selection, streaming and interactive-prompt state.
//
// Every mutation runs to completion under one lock. While it runs it
// collects its effects (bus events, sync requests, remote delete requests);
// those are flushed after the lock is released so observers and the sync
// engine may call back into the store.
package chatstore

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/clock"
	"github.com/matheus3301/chatsync/internal/model"
	"go.uber.org/zap"
)

// Syncer receives the store's sync requests. Implementations must not
// block; the sync engine debounces and pushes asynchronously.
type Syncer interface {
	ScheduleChat(id string)
	ScheduleFolder(id string)
	ChatDeleted(id string)
	FolderDeleted(id string)
}

// Store holds the in-memory state and writes the persisted subset through
// on every mutation.
type Store struct {
	mu      sync.Mutex
	persist Persistence
	bus     *bus.Bus
	clock   clock.Clock
	logger  *zap.Logger
	syncer  Syncer

	chats   []*model.Chat // newest first
	folders []*model.Folder

	currentChatID string
	activeNav     model.Nav
	activePrompt  *model.Prompt
	promptQueue   []*model.Prompt
	stream        *streamBuf

	deletedChats   map[string]struct{}
	deletedFolders map[string]struct{}
}

// streamBuf accumulates the raw chunks of the one streaming message.
type streamBuf struct {
	chat      *model.Chat
	messageID string
	index     int
	content   strings.Builder
	reasoning strings.Builder
}

// New creates a store and loads the persisted state. A nil clock uses the
// real clock; a nil logger discards logs.
func New(p Persistence, b *bus.Bus, clk clock.Clock, logger *zap.Logger) (*Store, error) {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if b == nil {
		b = bus.New()
	}
	s := &Store{
		persist:        p,
		bus:            b,
		clock:          clk,
		logger:         logger,
		activeNav:      model.NavChat,
		deletedChats:   make(map[string]struct{}),
		deletedFolders: make(map[string]struct{}),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("load chat store: %w", err)
	}
	return s, nil
}

// AttachSyncer wires the sync engine. A nil syncer keeps the store local.
func (s *Store) AttachSyncer(sy Syncer) {
	s.mu.Lock()
	s.syncer = sy
	s.mu.Unlock()
}

// Subscribe returns store events under namespace ("chat.", "folder.",
// "prompt.", "nav.", "notify.", "sync.").
func (s *Store) Subscribe(namespace string, bufSize int) (<-chan bus.Event, func()) {
	return s.bus.Subscribe(namespace, bufSize)
}

// effects are the side effects of one update, applied after unlocking.
type effects struct {
	events         []bus.Event
	syncChats      []string
	syncFolders    []string
	deletedChats   []string
	deletedFolders []string
}

func (s *Store) emit(fx *effects, kind string, payload any) {
	fx.events = append(fx.events, bus.Event{Kind: kind, Timestamp: s.clock.Now(), Payload: payload})
}

func (fx *effects) syncChat(id string) {
	if !slices.Contains(fx.syncChats, id) {
		fx.syncChats = append(fx.syncChats, id)
	}
}

func (fx *effects) syncFolder(id string) {
	if !slices.Contains(fx.syncFolders, id) {
		fx.syncFolders = append(fx.syncFolders, id)
	}
}

// update runs fn under the store lock and then flushes its effects.
func (s *Store) update(fn func(fx *effects) error) error {
	var fx effects
	s.mu.Lock()
	err := fn(&fx)
	syncer := s.syncer
	s.mu.Unlock()

	s.bus.PublishAll(fx.events)
	if syncer == nil {
		return err
	}
	// Remote deletes go first so a folder delete reaches the server before
	// the uncategorized member chats are pushed.
	for _, id := range fx.deletedFolders {
		syncer.FolderDeleted(id)
	}
	for _, id := range fx.deletedChats {
		syncer.ChatDeleted(id)
	}
	for _, id := range fx.syncFolders {
		syncer.ScheduleFolder(id)
	}
	for _, id := range fx.syncChats {
		syncer.ScheduleChat(id)
	}
	return err
}

func (s *Store) now() int64 { return clock.NowMillis(s.clock) }

func (s *Store) chatLocked(id string) (*model.Chat, error) {
	for _, c := range s.chats {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("chat %s: %w", id, ErrChatNotFound)
}

func (s *Store) messageLocked(chatID, msgID string) (*model.Chat, int, error) {
	c, err := s.chatLocked(chatID)
	if err != nil {
		return nil, -1, err
	}
	idx := c.MessageIndex(msgID)
	if idx < 0 {
		return nil, -1, fmt.Errorf("message %s in chat %s: %w", msgID, chatID, ErrMessageNotFound)
	}
	return c, idx, nil
}

func (s *Store) folderLocked(id string) (*model.Folder, error) {
	for _, f := range s.folders {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, fmt.Errorf("folder %s: %w", id, ErrFolderNotFound)
}

// touch marks a content-affecting change on c. UpdatedAt strictly
// increases so a push response can tell whether the chat moved on.
func (s *Store) touch(c *model.Chat) {
	c.UpdatedAt = s.later(c.UpdatedAt)
}

func (s *Store) later(prev int64) int64 {
	return max(s.now(), prev+1)
}

func (s *Store) streamingIn(chatID string) bool {
	return s.stream != nil && s.stream.chat.ID == chatID
}

func sortChats(chats []*model.Chat) {
	slices.SortStableFunc(chats, func(a, b *model.Chat) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt > b.CreatedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func sortFolders(folders []*model.Folder) {
	slices.SortStableFunc(folders, func(a, b *model.Folder) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt < b.CreatedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
}
