package views

import (
	"strings"
	"testing"

	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/notify"
	tuimodel "github.com/matheus3301/chatsync/internal/tui/model"
)

func TestSanitizeForTerminal(t *testing.T) {
	in := "ok \U0001F44D\U0001F3FB fam\u200Dily \u2764\uFE0F"
	want := "ok \U0001F44D family \u2764"
	if got := sanitizeForTerminal(in); got != want {
		t.Errorf("sanitizeForTerminal = %q, want %q", got, want)
	}
}

func TestRenderMessagesSkipsHidden(t *testing.T) {
	out := renderMessages([]model.Message{
		{ID: "u1", Role: model.RoleUser, Content: "question"},
		{ID: "a1", Role: model.RoleAssistant, Content: "old answer", IsHidden: true},
		{ID: "a2", Role: model.RoleAssistant, Content: "new answer", VersionNumber: 2},
		{ID: "a3", Role: model.RoleAssistant, Status: model.StatusError, Error: "interrupted"},
	})
	if strings.Contains(out, "old answer") {
		t.Error("hidden version rendered")
	}
	for _, want := range []string{"question", "new answer", "Assistant (v2)", "interrupted"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderMessagesEscapesTags(t *testing.T) {
	out := renderMessages([]model.Message{{Role: model.RoleUser, Content: "[red]not a color[-]"}})
	if !strings.Contains(out, "[red[]") {
		t.Errorf("content not escaped: %q", out)
	}
}

func TestMarkers(t *testing.T) {
	if got := markers(tuimodel.ChatRow{Starred: true, LocalOnly: true}); got != "* L" {
		t.Errorf("markers = %q", got)
	}
	if got := markers(tuimodel.ChatRow{Streaming: true}); got != " ~ " {
		t.Errorf("markers = %q", got)
	}
}

func TestStatusLine(t *testing.T) {
	line := statusLine("main", "cloud", "DEGRADED", []string{"q:quit"}, nil)
	if !strings.Contains(line, "sync failed") || !strings.Contains(line, "q:quit") {
		t.Errorf("line = %q", line)
	}

	toast := &notify.Toast{Kind: notify.KindWarning, Title: "Chat too large", Action: &notify.Action{Label: "Export"}}
	line = statusLine("main", "cloud", "READY", []string{"q:quit"}, toast)
	if strings.Contains(line, "q:quit") {
		t.Error("hints shown under a toast")
	}
	if !strings.Contains(line, "Chat too large") || !strings.Contains(line, "x: Export") {
		t.Errorf("line = %q", line)
	}
}
