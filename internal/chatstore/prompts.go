package chatstore

import (
	"slices"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/model"
)

// SetActivePrompt makes p the active prompt, or queues it behind the one
// already active. A prompt whose id is already known replaces that entry.
// A nil prompt behaves like ClearActivePrompt.
func (s *Store) SetActivePrompt(p *model.Prompt) {
	if p == nil {
		s.ClearActivePrompt()
		return
	}
	_ = s.update(func(fx *effects) error {
		cp := p.Clone()
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		if cp.CreatedAt == 0 {
			cp.CreatedAt = s.now()
		}
		switch {
		case s.activePrompt == nil:
			s.activePrompt = cp
		case s.activePrompt.ID == cp.ID:
			s.activePrompt = cp
		default:
			if i := slices.IndexFunc(s.promptQueue, func(q *model.Prompt) bool { return q.ID == cp.ID }); i >= 0 {
				s.promptQueue[i] = cp
			} else {
				s.promptQueue = append(s.promptQueue, cp)
			}
		}
		s.emit(fx, bus.PromptChanged, cp.ID)
		return nil
	})
}

// ClearActivePrompt drops the active prompt and promotes the next queued
// one, if any.
func (s *Store) ClearActivePrompt() {
	_ = s.update(func(fx *effects) error {
		if s.activePrompt == nil && len(s.promptQueue) == 0 {
			return nil
		}
		s.activePrompt = nil
		s.promoteLocked()
		s.emit(fx, bus.PromptChanged, s.activePromptID())
		return nil
	})
}

func (s *Store) promoteLocked() {
	if s.activePrompt != nil || len(s.promptQueue) == 0 {
		return
	}
	s.activePrompt = s.promptQueue[0]
	s.promptQueue = slices.Delete(s.promptQueue, 0, 1)
}

func (s *Store) activePromptID() string {
	if s.activePrompt == nil {
		return ""
	}
	return s.activePrompt.ID
}

// dropPromptsLocked forgets every prompt that belongs to a deleted chat.
func (s *Store) dropPromptsLocked(fx *effects, chatID string) {
	changed := false
	if s.activePrompt != nil && s.activePrompt.ChatID == chatID {
		s.activePrompt = nil
		changed = true
	}
	n := len(s.promptQueue)
	s.promptQueue = slices.DeleteFunc(s.promptQueue, func(p *model.Prompt) bool { return p.ChatID == chatID })
	if len(s.promptQueue) != n {
		changed = true
	}
	if changed {
		s.promoteLocked()
		s.emit(fx, bus.PromptChanged, s.activePromptID())
	}
}

// SelectChat makes chatID the current chat. An active prompt is stashed on
// the chat being left; a prompt stashed on chatID becomes active again.
func (s *Store) SelectChat(chatID string) error {
	return s.update(func(fx *effects) error {
		if _, err := s.chatLocked(chatID); err != nil {
			return err
		}
		s.selectLocked(fx, chatID, model.NavChat)
		return nil
	})
}

// StartNewChat leaves the current chat without selecting another one.
func (s *Store) StartNewChat() {
	_ = s.update(func(fx *effects) error {
		s.selectLocked(fx, "", model.NavChat)
		return nil
	})
}

// ShowHistory leaves the current chat and switches to the history view.
func (s *Store) ShowHistory() {
	_ = s.update(func(fx *effects) error {
		s.selectLocked(fx, "", model.NavHistory)
		return nil
	})
}

// SetActiveNav switches the top-level view without touching the selection.
func (s *Store) SetActiveNav(nav model.Nav) {
	_ = s.update(func(fx *effects) error {
		s.setNavLocked(fx, nav)
		return nil
	})
}

func (s *Store) setNavLocked(fx *effects, nav model.Nav) {
	if s.activeNav == nav {
		return
	}
	s.activeNav = nav
	s.saveMeta()
	s.emit(fx, bus.NavChanged, nav)
}

// selectLocked moves the current-chat pointer to chatID ("" for none).
func (s *Store) selectLocked(fx *effects, chatID string, nav model.Nav) {
	leaving := s.currentChatID
	if leaving != chatID {
		promptChanged := false

		if s.activePrompt != nil {
			owner := leaving
			if owner == "" {
				owner = s.activePrompt.ChatID
			}
			if c, err := s.chatLocked(owner); err == nil && owner != chatID {
				if c.PendingPrompt != nil {
					// One stash per chat; the newer prompt waits in line.
					s.promptQueue = slices.Insert(s.promptQueue, 0, s.activePrompt)
				} else {
					c.PendingPrompt = s.activePrompt
					s.saveChat(c)
				}
				s.activePrompt = nil
				promptChanged = true
			}
		}

		if chatID != "" {
			if c, err := s.chatLocked(chatID); err == nil && c.PendingPrompt != nil {
				if s.activePrompt != nil {
					s.promptQueue = slices.Insert(s.promptQueue, 0, s.activePrompt)
				}
				s.activePrompt = c.PendingPrompt
				c.PendingPrompt = nil
				s.saveChat(c)
				promptChanged = true
			}
		}
		if promptChanged {
			s.promoteLocked()
			s.emit(fx, bus.PromptChanged, s.activePromptID())
		}

		s.currentChatID = chatID
		s.emit(fx, bus.ChatSelected, bus.EntityRef{ChatID: chatID})
	}
	s.setNavLocked(fx, nav)
}
