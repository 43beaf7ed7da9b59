// Package notify raises user-facing toasts. Toasts are published on the
// bus under "notify." so any front end can render them.
package notify

import (
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/clock"
)

// Kind is the severity of a toast.
type Kind string

const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindSuccess Kind = "success"
)

// Default display durations.
const (
	ShortDuration = 5 * time.Second
	LongDuration  = 15 * time.Second
)

// Action is the single optional button on a toast.
type Action struct {
	Label    string
	Callback func()
}

// Toast is the payload of a bus.NotifyToast event.
type Toast struct {
	Kind    Kind
	Title   string
	Message string
	// Duration is how long the toast stays visible. Zero means until
	// dismissed.
	Duration time.Duration
	Action   *Action
}

// Notifier publishes toasts.
type Notifier struct {
	bus   *bus.Bus
	clock clock.Clock
}

// New creates a notifier. A nil clock uses the real clock.
func New(b *bus.Bus, clk clock.Clock) *Notifier {
	if clk == nil {
		clk = clock.Real()
	}
	return &Notifier{bus: b, clock: clk}
}

// Notify publishes t. It is a no-op on a nil notifier or nil bus.
func (n *Notifier) Notify(t Toast) {
	if n == nil || n.bus == nil {
		return
	}
	n.bus.Publish(bus.Event{Kind: bus.NotifyToast, Timestamp: n.clock.Now(), Payload: t})
}

// Error publishes a dismissible error toast.
func (n *Notifier) Error(title, message string) {
	n.Notify(Toast{Kind: KindError, Title: title, Message: message, Duration: ShortDuration})
}

// Warning publishes a warning toast with an optional action.
func (n *Notifier) Warning(title, message string, action *Action) {
	n.Notify(Toast{Kind: KindWarning, Title: title, Message: message, Duration: LongDuration, Action: action})
}

// Success publishes a success toast.
func (n *Notifier) Success(title, message string) {
	n.Notify(Toast{Kind: KindSuccess, Title: title, Message: message, Duration: ShortDuration})
}
