package chatstore

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/model"
)

// DefaultChatTitle names chats created without a title.
const DefaultChatTitle = "New Chat"

// CreateChat inserts a chat at the head of the list, selects it and
// schedules a sync. A caller-supplied chatID makes creation idempotent:
// if that chat exists its id is returned unchanged. firstMessage may be nil.
func (s *Store) CreateChat(title string, firstMessage *model.Message, systemInstructions, chatID, folderID string) (string, error) {
	var id string
	err := s.update(func(fx *effects) error {
		if chatID != "" {
			if _, err := s.chatLocked(chatID); err == nil {
				id = chatID
				return nil
			}
			if _, gone := s.deletedChats[chatID]; gone {
				return fmt.Errorf("create chat %s: %w", chatID, ErrChatDeleted)
			}
		}
		if folderID != "" {
			if _, err := s.folderLocked(folderID); err != nil {
				return fmt.Errorf("create chat: %w", err)
			}
		}

		id = chatID
		if id == "" {
			id = uuid.NewString()
		}
		if strings.TrimSpace(title) == "" {
			title = DefaultChatTitle
		}
		now := s.now()
		c := &model.Chat{
			ID:                 id,
			Title:              title,
			Messages:           []model.Message{},
			CreatedAt:          now,
			UpdatedAt:          now,
			SystemInstructions: systemInstructions,
			FolderID:           folderID,
		}
		if firstMessage != nil {
			msg := s.prepareMessage(*firstMessage)
			c.Messages = append(c.Messages, msg)
			if msg.Role == model.RoleUser {
				c.LastActivityAt = now
			}
		}
		s.chats = slices.Insert(s.chats, 0, c)
		s.saveChat(c)
		s.emit(fx, bus.ChatCreated, bus.EntityRef{ChatID: id, FolderID: folderID})
		s.selectLocked(fx, id, model.NavChat)
		fx.syncChat(id)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// prepareMessage fills the defaults of a message entering the store.
func (s *Store) prepareMessage(m model.Message) model.Message {
	m = m.Clone()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp == 0 {
		m.Timestamp = s.now()
	}
	if m.Status == "" {
		m.Status = model.StatusSent
		if m.IsStreaming {
			m.Status = model.StatusSending
		}
	}
	return m
}

// AddMessage appends msg to the chat. User messages schedule a sync right
// away; assistant messages are synced when their stream is finalized.
// A message added with IsStreaming set becomes the streaming message.
func (s *Store) AddMessage(chatID string, msg model.Message) error {
	return s.update(func(fx *effects) error {
		c, err := s.chatLocked(chatID)
		if err != nil {
			return err
		}
		m := s.prepareMessage(msg)
		c.Messages = append(c.Messages, m)
		s.touch(c)
		if m.Role == model.RoleUser {
			c.LastActivityAt = c.UpdatedAt
		}
		if m.IsStreaming {
			s.beginStreamLocked(fx, c, len(c.Messages)-1)
		}
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID, MessageID: m.ID})
		if m.Role == model.RoleUser && !s.streamingIn(chatID) {
			fx.syncChat(chatID)
		}
		return nil
	})
}

// EditMessage replaces the content of a message and discards every message
// after it. Later turns were generated from the old text and are no
// longer valid.
func (s *Store) EditMessage(chatID, messageID, newContent string) error {
	return s.update(func(fx *effects) error {
		c, idx, err := s.messageLocked(chatID, messageID)
		if err != nil {
			return err
		}
		if s.streamingIn(chatID) && s.stream.index >= idx {
			s.stream = nil
		}
		c.Messages = slices.Delete(c.Messages, idx+1, len(c.Messages))
		m := &c.Messages[idx]
		m.Content = newContent
		m.IsStreaming = false
		m.Timestamp = s.now()
		s.touch(c)
		if m.Role == model.RoleUser {
			c.LastActivityAt = c.UpdatedAt
		}
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID, MessageID: messageID})
		fx.syncChat(chatID)
		return nil
	})
}

// UpdateMessage applies fn to a message, for tool calls, attachments,
// artifacts and status changes. The content of a streaming message belongs
// to its stream; changes fn makes to it are discarded.
func (s *Store) UpdateMessage(chatID, messageID string, fn func(*model.Message)) error {
	return s.update(func(fx *effects) error {
		c, idx, err := s.messageLocked(chatID, messageID)
		if err != nil {
			return err
		}
		m := &c.Messages[idx]
		fn(m)
		m.ID = messageID
		streaming := s.streamingIn(chatID)
		if streaming && s.stream.messageID == messageID {
			m.Content = s.stream.content.String()
			m.IsStreaming = true
		}
		s.touch(c)
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID, MessageID: messageID})
		if !streaming {
			fx.syncChat(chatID)
		}
		return nil
	})
}

// SetMessageError marks a message failed. A failed stream ends here and its
// content is normalized once.
func (s *Store) SetMessageError(chatID, messageID, errText string) error {
	return s.update(func(fx *effects) error {
		c, idx, err := s.messageLocked(chatID, messageID)
		if err != nil {
			return err
		}
		m := &c.Messages[idx]
		if s.streamingIn(chatID) && s.stream.messageID == messageID {
			s.endStreamLocked(m)
		}
		m.Status = model.StatusError
		m.Error = errText
		s.touch(c)
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID, MessageID: messageID})
		fx.syncChat(chatID)
		return nil
	})
}

// DeleteChat removes the chat locally and from persistence, records a
// tombstone and requests the remote delete. The tombstone stays until the
// remote delete is confirmed.
func (s *Store) DeleteChat(chatID string) error {
	return s.update(func(fx *effects) error {
		c, err := s.chatLocked(chatID)
		if err != nil {
			return err
		}
		s.chats = slices.DeleteFunc(s.chats, func(x *model.Chat) bool { return x == c })
		if s.streamingIn(chatID) {
			s.stream = nil
		}
		if s.currentChatID == chatID {
			s.currentChatID = ""
			s.emit(fx, bus.ChatSelected, bus.EntityRef{})
		}
		s.dropPromptsLocked(fx, chatID)

		s.erase(chatPrefix + chatID)
		s.deletedChats[chatID] = struct{}{}
		s.saveMeta()

		s.emit(fx, bus.ChatDeleted, bus.EntityRef{ChatID: chatID})
		fx.deletedChats = append(fx.deletedChats, chatID)
		return nil
	})
}

// MoveChatToFolder files the chat under folderID. An empty folderID clears
// the folder reference.
func (s *Store) MoveChatToFolder(chatID, folderID string) error {
	return s.update(func(fx *effects) error {
		c, err := s.chatLocked(chatID)
		if err != nil {
			return err
		}
		if folderID != "" {
			if _, err := s.folderLocked(folderID); err != nil {
				return err
			}
		}
		if c.FolderID == folderID {
			return nil
		}
		c.FolderID = folderID
		s.touch(c)
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID, FolderID: folderID})
		fx.syncChat(chatID)
		return nil
	})
}

// RenameChat sets the chat title.
func (s *Store) RenameChat(chatID, title string) error {
	return s.mutateChat(chatID, true, func(c *model.Chat) bool {
		if c.Title == title {
			return false
		}
		c.Title = title
		return true
	})
}

// SetStarred stars or unstars the chat.
func (s *Store) SetStarred(chatID string, starred bool) error {
	return s.mutateChat(chatID, true, func(c *model.Chat) bool {
		if c.IsStarred == starred {
			return false
		}
		c.IsStarred = starred
		return true
	})
}

// ToggleStar flips the starred flag and returns the new value.
func (s *Store) ToggleStar(chatID string) (bool, error) {
	var starred bool
	err := s.mutateChat(chatID, true, func(c *model.Chat) bool {
		c.IsStarred = !c.IsStarred
		starred = c.IsStarred
		return true
	})
	return starred, err
}

// SetSystemInstructions replaces the chat's system instructions.
func (s *Store) SetSystemInstructions(chatID, instructions string) error {
	return s.mutateChat(chatID, true, func(c *model.Chat) bool {
		if c.SystemInstructions == instructions {
			return false
		}
		c.SystemInstructions = instructions
		return true
	})
}

// SetBackendStatus records the lifecycle of the backend conversation. It
// is bookkeeping, not content, so it neither bumps UpdatedAt nor syncs.
func (s *Store) SetBackendStatus(chatID string, status model.BackendStatus) error {
	return s.mutateChat(chatID, false, func(c *model.Chat) bool {
		if c.BackendStatus == status {
			return false
		}
		c.BackendStatus = status
		return true
	})
}

// RetrySync clears the local-only flag set by a too-large rejection and
// schedules another push.
func (s *Store) RetrySync(chatID string) error {
	return s.update(func(fx *effects) error {
		c, err := s.chatLocked(chatID)
		if err != nil {
			return err
		}
		c.LocalOnly = false
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID})
		fx.syncChat(chatID)
		return nil
	})
}

// mutateChat applies fn and, when it reports a change, persists the chat.
// Content changes also bump UpdatedAt and schedule a sync.
func (s *Store) mutateChat(chatID string, content bool, fn func(*model.Chat) bool) error {
	return s.update(func(fx *effects) error {
		c, err := s.chatLocked(chatID)
		if err != nil {
			return err
		}
		if !fn(c) {
			return nil
		}
		if content {
			s.touch(c)
			if !s.streamingIn(chatID) {
				fx.syncChat(chatID)
			}
		}
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID})
		return nil
	})
}

// ExportChat returns the chat as indented JSON.
func (s *Store) ExportChat(chatID string) ([]byte, error) {
	s.mu.Lock()
	c, err := s.chatLocked(chatID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	cp := c.Clone()
	s.mu.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export chat %s: %w", chatID, err)
	}
	return data, nil
}
