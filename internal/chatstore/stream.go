package chatstore

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/content"
	"github.com/matheus3301/chatsync/internal/model"
)

// StartStreaming makes messageID the one streaming message and clears its
// content. A message that was streaming before is finalized as it stands.
func (s *Store) StartStreaming(chatID, messageID string) error {
	return s.update(func(fx *effects) error {
		c, idx, err := s.messageLocked(chatID, messageID)
		if err != nil {
			return err
		}
		m := &c.Messages[idx]
		m.Content = ""
		m.Error = ""
		m.Status = model.StatusSending
		s.beginStreamLocked(fx, c, idx)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID, MessageID: messageID})
		return nil
	})
}

// AppendStreamChunk appends a raw chunk to the streaming message. Chunks
// are concatenated verbatim; tags are only processed at finalization.
func (s *Store) AppendStreamChunk(chatID, messageID, chunk string) error {
	return s.update(func(fx *effects) error {
		m, err := s.activeStreamLocked(chatID, messageID)
		if err != nil {
			return err
		}
		s.stream.content.WriteString(chunk)
		m.Content = s.stream.content.String()
		s.emit(fx, bus.ChatStreamChunk, bus.StreamChunk{ChatID: chatID, MessageID: messageID, Chunk: chunk})
		return nil
	})
}

// AppendReasoningChunk appends to the reasoning of the streaming message,
// for providers that stream reasoning on a separate channel.
func (s *Store) AppendReasoningChunk(chatID, messageID, chunk string) error {
	return s.update(func(fx *effects) error {
		m, err := s.activeStreamLocked(chatID, messageID)
		if err != nil {
			return err
		}
		s.stream.reasoning.WriteString(chunk)
		m.Reasoning = s.stream.reasoning.String()
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID, MessageID: messageID})
		return nil
	})
}

// FinalizeStreamingMessage normalizes the streamed content once, marks the
// message sent, persists the chat and schedules a sync.
func (s *Store) FinalizeStreamingMessage(chatID, messageID string) error {
	return s.update(func(fx *effects) error {
		m, err := s.activeStreamLocked(chatID, messageID)
		if err != nil {
			return err
		}
		c := s.stream.chat
		s.endStreamLocked(m)
		if m.Status != model.StatusError {
			m.Status = model.StatusSent
		}
		s.touch(c)
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID, MessageID: messageID})
		fx.syncChat(chatID)
		return nil
	})
}

// RetryMessage hides the current response of an assistant turn and starts
// a new streaming response in the same version group. Messages after the
// group are discarded. Returns the new message id.
func (s *Store) RetryMessage(chatID, messageID, retryType string) (string, error) {
	var newID string
	err := s.update(func(fx *effects) error {
		c, idx, err := s.messageLocked(chatID, messageID)
		if err != nil {
			return err
		}
		if c.Messages[idx].Role != model.RoleAssistant {
			return fmt.Errorf("retry %s: %w", messageID, ErrNotRetryable)
		}
		if s.streamingIn(chatID) {
			if prev := s.streamMessageLocked(); prev != nil {
				s.endStreamLocked(prev)
			}
			s.stream = nil
		}

		group := c.Messages[idx].VersionGroupID
		if group == "" {
			group = c.Messages[idx].ID
			c.Messages[idx].VersionGroupID = group
			c.Messages[idx].VersionNumber = 1
		}
		last, maxVersion := idx, 0
		for i := range c.Messages {
			m := &c.Messages[i]
			if m.VersionGroupID != group {
				continue
			}
			m.IsHidden = true
			maxVersion = max(maxVersion, m.VersionNumber)
			last = i
		}
		c.Messages = slices.Delete(c.Messages, last+1, len(c.Messages))

		newID = uuid.NewString()
		c.Messages = append(c.Messages, model.Message{
			ID:             newID,
			Role:           model.RoleAssistant,
			Timestamp:      s.now(),
			Status:         model.StatusSending,
			VersionGroupID: group,
			VersionNumber:  maxVersion + 1,
			RetryType:      retryType,
		})
		s.beginStreamLocked(fx, c, len(c.Messages)-1)
		s.touch(c)
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID, MessageID: newID})
		return nil
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

// SwitchMessageVersion shows one version of a response group and hides the
// others.
func (s *Store) SwitchMessageVersion(chatID, groupID string, version int) error {
	return s.update(func(fx *effects) error {
		c, err := s.chatLocked(chatID)
		if err != nil {
			return err
		}
		if !slices.ContainsFunc(c.Messages, func(m model.Message) bool {
			return m.VersionGroupID == groupID && m.VersionNumber == version
		}) {
			return fmt.Errorf("version %d of group %s: %w", version, groupID, ErrMessageNotFound)
		}
		for i := range c.Messages {
			m := &c.Messages[i]
			if m.VersionGroupID == groupID {
				m.IsHidden = m.VersionNumber != version
			}
		}
		s.touch(c)
		s.saveChat(c)
		s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: chatID})
		if !s.streamingIn(chatID) {
			fx.syncChat(chatID)
		}
		return nil
	})
}

// beginStreamLocked makes c.Messages[idx] the streaming message. Its
// current content seeds the buffer.
func (s *Store) beginStreamLocked(fx *effects, c *model.Chat, idx int) {
	if s.stream != nil {
		if prev := s.streamMessageLocked(); prev != nil && prev.ID != c.Messages[idx].ID {
			prevChat := s.stream.chat
			s.endStreamLocked(prev)
			if prev.Status == model.StatusSending {
				prev.Status = model.StatusSent
			}
			s.saveChat(prevChat)
			s.emit(fx, bus.ChatUpdated, bus.EntityRef{ChatID: prevChat.ID, MessageID: prev.ID})
			fx.syncChat(prevChat.ID)
		}
		s.stream = nil
	}

	m := &c.Messages[idx]
	m.IsStreaming = true
	buf := &streamBuf{chat: c, messageID: m.ID, index: idx}
	buf.content.WriteString(m.Content)
	buf.reasoning.WriteString(m.Reasoning)
	s.stream = buf
}

// endStreamLocked runs the one-time normalization on the streamed content
// and clears the stream.
func (s *Store) endStreamLocked(m *model.Message) {
	body, reasoning := content.Normalize(s.stream.content.String())
	m.Content = body
	if reasoning != "" {
		if m.Reasoning != "" {
			m.Reasoning += "\n\n" + reasoning
		} else {
			m.Reasoning = reasoning
		}
	}
	m.IsStreaming = false
	s.stream = nil
}

// streamMessageLocked returns the streaming message, or nil if it is gone.
func (s *Store) streamMessageLocked() *model.Message {
	if s.stream == nil {
		return nil
	}
	c := s.stream.chat
	if s.stream.index >= len(c.Messages) || c.Messages[s.stream.index].ID != s.stream.messageID {
		idx := c.MessageIndex(s.stream.messageID)
		if idx < 0 {
			return nil
		}
		s.stream.index = idx
	}
	return &c.Messages[s.stream.index]
}

func (s *Store) activeStreamLocked(chatID, messageID string) (*model.Message, error) {
	if s.stream == nil || s.stream.chat.ID != chatID || s.stream.messageID != messageID {
		return nil, fmt.Errorf("message %s in chat %s: %w", messageID, chatID, ErrNotStreaming)
	}
	m := s.streamMessageLocked()
	if m == nil {
		s.stream = nil
		return nil, fmt.Errorf("message %s in chat %s: %w", messageID, chatID, ErrMessageNotFound)
	}
	return m, nil
}
