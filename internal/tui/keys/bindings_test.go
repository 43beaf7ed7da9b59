package keys

import (
	"slices"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestPageBindingShadowsGlobal(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Name: "quit", Key: tcell.KeyRune, Rune: 'q', Description: "q:quit", Visible: true})
	r.AddPage("chat", &Action{Name: "back", Key: tcell.KeyRune, Rune: 'q', Description: "q:back", Visible: true})
	r.AddPage("chat", &Action{Name: "refresh", Key: tcell.KeyCtrlR})

	if a := r.Find("chats", tcell.KeyRune, 'q'); a == nil || a.Name != "quit" {
		t.Errorf("chats q = %+v, want quit", a)
	}
	if a := r.Find("chat", tcell.KeyRune, 'q'); a == nil || a.Name != "back" {
		t.Errorf("chat q = %+v, want back", a)
	}
	if a := r.Find("chat", tcell.KeyCtrlR, 0); a == nil || a.Name != "refresh" {
		t.Errorf("chat ctrl-r = %+v, want refresh", a)
	}
	if a := r.Find("chat", tcell.KeyRune, 'z'); a != nil {
		t.Errorf("unbound key matched %+v", a)
	}
	if hints := r.Hints("chat"); !slices.Equal(hints, []string{"q:back", "q:quit"}) {
		t.Errorf("hints = %v", hints)
	}
}
