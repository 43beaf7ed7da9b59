package keys

import "github.com/gdamore/tcell/v2"

// Action represents a keybinding action.
type Action struct {
	Name        string
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches reports whether a key press matches this action. r is only
// compared for tcell.KeyRune.
func (a *Action) Matches(key tcell.Key, r rune) bool {
	if a.Key != tcell.KeyRune {
		return key == a.Key
	}
	return key == tcell.KeyRune && r == a.Rune
}

// Registry holds keybindings organized by page. Bindings keep their
// registration order so hints render stably.
type Registry struct {
	global []*Action
	pages  map[string][]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]*Action)}
}

// AddGlobal registers a binding active on every page.
func (r *Registry) AddGlobal(action *Action) {
	r.global = append(r.global, action)
}

// AddPage registers a binding for one page. Page bindings shadow global
// ones with the same key.
func (r *Registry) AddPage(page string, action *Action) {
	r.pages[page] = append(r.pages[page], action)
}

// Hints returns visible keybinding descriptions for a page, page bindings
// first.
func (r *Registry) Hints(page string) []string {
	var hints []string
	for _, a := range r.pages[page] {
		if a.Visible {
			hints = append(hints, a.Description)
		}
	}
	for _, a := range r.global {
		if a.Visible {
			hints = append(hints, a.Description)
		}
	}
	return hints
}

// Find returns the action bound to a key press on page, or nil.
func (r *Registry) Find(page string, key tcell.Key, ch rune) *Action {
	for _, a := range r.pages[page] {
		if a.Matches(key, ch) {
			return a
		}
	}
	for _, a := range r.global {
		if a.Matches(key, ch) {
			return a
		}
	}
	return nil
}

// HandleEvent dispatches a key event to the matching action of the page.
// Returns true if a handler matched.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	a := r.Find(page, ev.Key(), ev.Rune())
	if a == nil {
		return false
	}
	a.Handler()
	return true
}
