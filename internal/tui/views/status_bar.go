package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/rivo/tview"
)

// StatusBar displays the profile, sync state and the current toast.
type StatusBar struct {
	*tview.TextView
	profile string
	mode    string
	status  string
	hints   []string
	toast   *notify.Toast
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetSync updates privacy mode and sync status.
func (sb *StatusBar) SetSync(mode, status string) {
	sb.mode, sb.status = mode, status
	sb.render()
}

// SetHints sets the key hints shown when no toast is up.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetToast shows a toast, or clears it when ok is false.
func (sb *StatusBar) SetToast(t notify.Toast, ok bool) {
	if ok {
		sb.toast = &t
	} else {
		sb.toast = nil
	}
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, statusLine(sb.profile, sb.mode, sb.status, sb.hints, sb.toast))
}

func statusLine(profile, mode, status string, hints []string, toast *notify.Toast) string {
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s %s", profile, mode, syncLabel(status))
	if toast == nil {
		if len(hints) > 0 {
			line += " | [::d]" + strings.Join(hints, " ") + "[-:-:-]"
		}
		return line
	}

	color := "yellow"
	switch toast.Kind {
	case notify.KindError:
		color = "red"
	case notify.KindSuccess:
		color = "green"
	}
	line += fmt.Sprintf(" | [%s]%s[-]", color, tview.Escape(toast.Title))
	if toast.Message != "" {
		line += ": " + tview.Escape(toast.Message)
	}
	if toast.Action != nil {
		line += fmt.Sprintf(" [::b](x: %s)[-:-:-]", tview.Escape(toast.Action.Label))
	}
	return line
}

func syncLabel(status string) string {
	switch status {
	case "READY":
		return "[green]synced[-]"
	case "SYNCING":
		return "[green]syncing~[-]"
	case "DEGRADED":
		return "[red]sync failed[-]"
	case "DISABLED":
		return "[::d]sync off[-:-:-]"
	}
	return strings.ToLower(status)
}
