package tui

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"new", Command{Name: "new"}},
		{"  Rename   Trip to Lisbon ", Command{Name: "rename", Args: "Trip to Lisbon"}},
		{"filter starred", Command{Name: "filter", Args: "starred"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.in); got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
