package codec

import (
	"bytes"
	"testing"

	"github.com/matheus3301/chatsync/internal/model"
)

func TestChatRoundTrip(t *testing.T) {
	in := &model.Chat{
		ID:        "c1",
		Title:     "Trip planning",
		CreatedAt: 1000,
		UpdatedAt: 2000,
		FolderID:  "f1",
		Messages: []model.Message{
			{ID: "m1", Role: model.RoleUser, Content: "hi", Status: model.StatusSent, Timestamp: 1000},
		},
		Version: 3,
	}

	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out model.Chat
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID != "c1" || out.FolderID != "f1" || out.Version != 3 || out.UpdatedAt != 2000 {
		t.Errorf("decoded = %+v", out)
	}
	if len(out.Messages) != 1 || out.Messages[0].Role != model.RoleUser {
		t.Errorf("messages = %+v", out.Messages)
	}
}

// TestDeterministic verifies map ordering does not leak into the encoding.
func TestDeterministic(t *testing.T) {
	a := map[string]int{"z": 1, "a": 2, "m": 3}
	b := map[string]int{"m": 3, "z": 1, "a": 2}

	ea, err := Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	eb, err := Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ea, eb) {
		t.Error("equal maps encoded differently")
	}
}
