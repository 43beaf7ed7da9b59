package model

import (
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/clock"
	"github.com/matheus3301/chatsync/internal/notify"
)

// Flash holds the toast currently shown in the status bar.
type Flash struct {
	mu      sync.RWMutex
	clock   clock.Clock
	toast   notify.Toast
	expires time.Time
}

// NewFlash creates an empty flash.
func NewFlash(clk clock.Clock) *Flash {
	if clk == nil {
		clk = clock.Real()
	}
	return &Flash{clock: clk}
}

// Set shows t for its Duration, replacing any current toast.
func (f *Flash) Set(t notify.Toast) {
	d := t.Duration
	if d <= 0 {
		d = notify.ShortDuration
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toast = t
	f.expires = f.clock.Now().Add(d)
}

// Get returns the current toast, or false once it expired.
func (f *Flash) Get() (notify.Toast, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.toast.Title == "" || !f.clock.Now().Before(f.expires) {
		return notify.Toast{}, false
	}
	return f.toast, true
}

// TakeAction returns the action of the current toast and dismisses it.
func (f *Flash) TakeAction() *notify.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toast.Action == nil || !f.clock.Now().Before(f.expires) {
		return nil
	}
	a := f.toast.Action
	f.toast = notify.Toast{}
	return a
}
