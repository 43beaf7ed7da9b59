package model

import "slices"

// Clone returns a deep copy of the prompt.
func (p *Prompt) Clone() *Prompt {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Questions != nil {
		cp.Questions = make([]PromptQuestion, len(p.Questions))
		for i, q := range p.Questions {
			q.Options = slices.Clone(q.Options)
			cp.Questions[i] = q
		}
	}
	return &cp
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.ToolCalls = slices.Clone(m.ToolCalls)
	m.Attachments = slices.Clone(m.Attachments)
	m.Artifacts = slices.Clone(m.Artifacts)
	m.Prompt = m.Prompt.Clone()
	return m
}

// Clone returns a deep copy of the chat.
func (c *Chat) Clone() *Chat {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Messages != nil {
		cp.Messages = make([]Message, len(c.Messages))
		for i, m := range c.Messages {
			cp.Messages[i] = m.Clone()
		}
	}
	cp.PendingPrompt = c.PendingPrompt.Clone()
	return &cp
}

// Clone returns a copy of the folder.
func (f *Folder) Clone() *Folder {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

// VisibleMessages returns the messages not hidden by response versioning.
func (c *Chat) VisibleMessages() []Message {
	out := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if !m.IsHidden {
			out = append(out, m)
		}
	}
	return out
}

// MessageIndex returns the index of the message with the given id, or -1.
func (c *Chat) MessageIndex(id string) int {
	return slices.IndexFunc(c.Messages, func(m Message) bool { return m.ID == id })
}
