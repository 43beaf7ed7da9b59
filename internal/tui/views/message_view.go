package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/chatsync/internal/model"
	"github.com/rivo/tview"
)

// MessageView displays the messages of one chat.
type MessageView struct {
	*tview.TextView
	chatID string
}

// NewMessageView creates a new message view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageView{TextView: tv}
}

// ChatID returns the chat being shown.
func (mv *MessageView) ChatID() string { return mv.chatID }

// Show renders c.
func (mv *MessageView) Show(c *model.Chat) {
	mv.chatID = c.ID
	mv.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(c.Title))))
	mv.Clear()
	_, _ = fmt.Fprint(mv, renderMessages(c.Messages))
	mv.ScrollToEnd()
}

// renderMessages formats messages oldest first. Hidden versions are
// skipped.
func renderMessages(msgs []model.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.IsHidden {
			continue
		}
		sender := "You"
		if m.Role == model.RoleAssistant {
			sender = "Assistant"
		}
		if m.VersionNumber > 1 {
			sender += fmt.Sprintf(" (v%d)", m.VersionNumber)
		}
		ts := formatTimestamp(timeOf(m.Timestamp))
		fmt.Fprintf(&b, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n", sender, ts)
		if m.Reasoning != "" {
			fmt.Fprintf(&b, "[::d]%s[-:-:-]\n", tview.Escape(sanitizeForTerminal(m.Reasoning)))
		}
		b.WriteString(tview.Escape(sanitizeForTerminal(m.Content)))
		switch {
		case m.IsStreaming:
			b.WriteString(" [green]…[-]")
		case m.Status == model.StatusError:
			fmt.Fprintf(&b, "\n[red]%s[-]", tview.Escape(m.Error))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}
