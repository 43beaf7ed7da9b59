package model

import "testing"

func TestChatCloneIsDeep(t *testing.T) {
	orig := &Chat{
		ID:    "c1",
		Title: "Original",
		Messages: []Message{
			{ID: "m1", Role: RoleUser, Content: "hi", ToolCalls: []ToolCall{{ID: "t1", Name: "search"}}},
			{ID: "m2", Role: RoleAssistant, Prompt: &Prompt{ID: "p1", Questions: []PromptQuestion{{ID: "q1", Options: []string{"a"}}}}},
		},
		PendingPrompt: &Prompt{ID: "p2"},
	}

	cp := orig.Clone()
	cp.Title = "Changed"
	cp.Messages[0].Content = "changed"
	cp.Messages[0].ToolCalls[0].Name = "changed"
	cp.Messages[1].Prompt.Questions[0].Options[0] = "changed"
	cp.PendingPrompt.ID = "changed"

	if orig.Title != "Original" {
		t.Errorf("title = %q, want Original", orig.Title)
	}
	if orig.Messages[0].Content != "hi" {
		t.Errorf("content = %q, want hi", orig.Messages[0].Content)
	}
	if orig.Messages[0].ToolCalls[0].Name != "search" {
		t.Errorf("tool call name = %q, want search", orig.Messages[0].ToolCalls[0].Name)
	}
	if orig.Messages[1].Prompt.Questions[0].Options[0] != "a" {
		t.Errorf("prompt option = %q, want a", orig.Messages[1].Prompt.Questions[0].Options[0])
	}
	if orig.PendingPrompt.ID != "p2" {
		t.Errorf("pending prompt id = %q, want p2", orig.PendingPrompt.ID)
	}
}

func TestCloneNil(t *testing.T) {
	var c *Chat
	if c.Clone() != nil {
		t.Error("nil chat clone should be nil")
	}
	var f *Folder
	if f.Clone() != nil {
		t.Error("nil folder clone should be nil")
	}
	var p *Prompt
	if p.Clone() != nil {
		t.Error("nil prompt clone should be nil")
	}
}

func TestVisibleMessages(t *testing.T) {
	c := &Chat{Messages: []Message{
		{ID: "u1"},
		{ID: "a1", IsHidden: true},
		{ID: "a1v2"},
	}}
	got := c.VisibleMessages()
	if len(got) != 2 || got[0].ID != "u1" || got[1].ID != "a1v2" {
		t.Errorf("visible = %+v, want [u1 a1v2]", got)
	}
	if idx := c.MessageIndex("a1v2"); idx != 2 {
		t.Errorf("MessageIndex(a1v2) = %d, want 2", idx)
	}
	if idx := c.MessageIndex("missing"); idx != -1 {
		t.Errorf("MessageIndex(missing) = %d, want -1", idx)
	}
}
