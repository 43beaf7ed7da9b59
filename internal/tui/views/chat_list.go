package views

import (
	"time"

	tuimodel "github.com/matheus3301/chatsync/internal/tui/model"
	"github.com/rivo/tview"
)

// ChatList is the chat table.
type ChatList struct {
	*tview.Table
	rows []tuimodel.ChatRow
}

// NewChatList creates a new chat list table.
func NewChatList() *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true).SetTitle(" Chats ")

	return &ChatList{Table: table}
}

// Update refreshes the list, keeping the selected chat selected when it
// is still present.
func (cl *ChatList) Update(rows []tuimodel.ChatRow) {
	selected := cl.SelectedChat()
	cl.rows = rows
	cl.Clear()

	header := []string{"", "Title", "Folder", "Msgs", "Updated"}
	for col, h := range header {
		cl.SetCell(0, col, tview.NewTableCell(" "+h).SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	}

	selectRow := 1
	for i, r := range rows {
		row := i + 1
		if r.ID == selected {
			selectRow = row
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+markers(r)))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(r.Title))).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(r.Folder)).SetMaxWidth(20).SetExpansion(1))
		cl.SetCell(row, 3, tview.NewTableCell(" "+itoa(r.Messages)).SetAlign(tview.AlignRight))
		cl.SetCell(row, 4, tview.NewTableCell(" "+formatTimestamp(r.UpdatedAt)).SetMaxWidth(12))
	}
	if len(rows) > 0 {
		cl.Select(selectRow, 0)
	}
}

// SelectedChat returns the id of the selected chat.
func (cl *ChatList) SelectedChat() string {
	row, _ := cl.GetSelection()
	idx := row - 1 // header
	if idx >= 0 && idx < len(cl.rows) {
		return cl.rows[idx].ID
	}
	return ""
}

// markers renders the star, streaming and local-only flags.
func markers(r tuimodel.ChatRow) string {
	m := []byte("   ")
	if r.Starred {
		m[0] = '*'
	}
	if r.Streaming {
		m[1] = '~'
	}
	if r.LocalOnly {
		m[2] = 'L'
	}
	return string(m)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() || t.UnixMilli() == 0 {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
