package chatstore

import (
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/model"
)

// PushOutcome says how a push response was received.
type PushOutcome int

const (
	// PushApplied recorded the server-assigned fields.
	PushApplied PushOutcome = iota
	// PushStale means local state moved on while the push was in flight.
	// The response was discarded; push again.
	PushStale
	// PushGone means the entity was deleted locally meanwhile.
	PushGone
)

func (o PushOutcome) String() string {
	switch o {
	case PushApplied:
		return "applied"
	case PushStale:
		return "stale"
	case PushGone:
		return "gone"
	}
	return "unknown"
}

// ChatForSync returns the current state of a chat for pushing, read at
// send time.
func (s *Store) ChatForSync(id string) (*model.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.chatLocked(id)
	if err != nil {
		return nil, false
	}
	return c.Clone(), true
}

// FolderForSync returns the current state of a folder for pushing.
func (s *Store) FolderForSync(id string) (*model.Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.folderLocked(id)
	if err != nil {
		return nil, false
	}
	return f.Clone(), true
}

// IsStreaming reports whether a message of the chat is streaming.
func (s *Store) IsStreaming(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamingIn(chatID)
}

// ApplyChatPush records the server response to a push of the chat as it was
// at sentUpdatedAt. The response is discarded if the chat changed or
// started streaming since.
func (s *Store) ApplyChatPush(sentUpdatedAt int64, pushed *model.Chat) PushOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.chatLocked(pushed.ID)
	if err != nil {
		return PushGone
	}
	if s.streamingIn(c.ID) || c.UpdatedAt != sentUpdatedAt {
		return PushStale
	}
	if pushed.Version != c.Version {
		c.Version = pushed.Version
		s.saveChat(c)
	}
	return PushApplied
}

// ApplyFolderPush records the server response to a folder push.
func (s *Store) ApplyFolderPush(sentUpdatedAt int64, pushed *model.Folder) PushOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.folderLocked(pushed.ID)
	if err != nil {
		return PushGone
	}
	if f.UpdatedAt != sentUpdatedAt {
		return PushStale
	}
	if pushed.Version != f.Version {
		f.Version = pushed.Version
		s.saveFolder(f)
	}
	return PushApplied
}

// MarkChatLocalOnly keeps the chat out of future pushes after the server
// rejected it as too large. Returns the chat title.
func (s *Store) MarkChatLocalOnly(chatID string) (string, bool) {
	var title string
	err := s.update(func(fx *effects) error {
		c, err := s.chatLocked(chatID)
		if err != nil {
			return err
		}
		title = c.Title
		if c.LocalOnly {
			return nil
		}
		c.LocalOnly = true
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID})
		return nil
	})
	return title, err == nil
}

// ConfirmChatDeleted clears the chat tombstone once the remote delete
// succeeded. Returns false if there was no tombstone.
func (s *Store) ConfirmChatDeleted(chatID string) bool {
	return s.clearTombstone(s.deletedChats, chatID)
}

// ConfirmFolderDeleted clears the folder tombstone.
func (s *Store) ConfirmFolderDeleted(folderID string) bool {
	return s.clearTombstone(s.deletedFolders, folderID)
}

func (s *Store) clearTombstone(set map[string]struct{}, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := set[id]; !ok {
		return false
	}
	delete(set, id)
	s.saveMeta()
	return true
}
