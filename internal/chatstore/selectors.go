package chatstore

import (
	"github.com/matheus3301/chatsync/internal/model"
)

// Selectors return deep copies; callers may keep and modify them.

// Chats returns every chat, newest first.
func (s *Store) Chats() []*model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneChats(s.chats, func(*model.Chat) bool { return true })
}

// Chat returns the chat with the given id.
func (s *Store) Chat(id string) (*model.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.chatLocked(id)
	if err != nil {
		return nil, false
	}
	return c.Clone(), true
}

// ChatsInFolder returns the chats filed under folderID. An empty folderID
// returns the uncategorized chats.
func (s *Store) ChatsInFolder(folderID string) []*model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneChats(s.chats, func(c *model.Chat) bool { return c.FolderID == folderID })
}

// StarredChats returns the starred chats, newest first.
func (s *Store) StarredChats() []*model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneChats(s.chats, func(c *model.Chat) bool { return c.IsStarred })
}

func cloneChats(chats []*model.Chat, keep func(*model.Chat) bool) []*model.Chat {
	out := make([]*model.Chat, 0, len(chats))
	for _, c := range chats {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Folders returns every folder in creation order.
func (s *Store) Folders() []*model.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Folder, len(s.folders))
	for i, f := range s.folders {
		out[i] = f.Clone()
	}
	return out
}

// Folder returns the folder with the given id.
func (s *Store) Folder(id string) (*model.Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.folderLocked(id)
	if err != nil {
		return nil, false
	}
	return f.Clone(), true
}

// FolderCounts returns the number of chats per folder id. Uncategorized
// chats are counted under "". Every known folder has an entry.
func (s *Store) FolderCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int, len(s.folders)+1)
	counts[""] = 0
	for _, f := range s.folders {
		counts[f.ID] = 0
	}
	for _, c := range s.chats {
		counts[c.FolderID]++
	}
	return counts
}

// CurrentChatID returns the selected chat id, or "" when none is selected.
func (s *Store) CurrentChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentChatID
}

// CurrentChat returns the selected chat.
func (s *Store) CurrentChat() (*model.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentChatID == "" {
		return nil, false
	}
	c, err := s.chatLocked(s.currentChatID)
	if err != nil {
		return nil, false
	}
	return c.Clone(), true
}

func (s *Store) ActiveNav() model.Nav {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeNav
}

// ActivePrompt returns the active prompt, or nil.
func (s *Store) ActivePrompt() *model.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePrompt.Clone()
}

// PromptQueue returns the queued prompts in FIFO order.
func (s *Store) PromptQueue() []*model.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Prompt, len(s.promptQueue))
	for i, p := range s.promptQueue {
		out[i] = p.Clone()
	}
	return out
}

// StreamingMessageID returns the chat and message currently streaming.
// Both are empty when nothing streams.
func (s *Store) StreamingMessageID() (chatID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return "", ""
	}
	return s.stream.chat.ID, s.stream.messageID
}

// DeletedChatIDs returns the chat tombstones, sorted.
func (s *Store) DeletedChatIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setToSlice(s.deletedChats)
}

// DeletedFolderIDs returns the folder tombstones, sorted.
func (s *Store) DeletedFolderIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setToSlice(s.deletedFolders)
}
