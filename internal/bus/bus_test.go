package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	b.Publish(Event{Kind: ChatCreated, Timestamp: time.Now(), Payload: EntityRef{ChatID: "c1"}})

	select {
	case evt := <-ch:
		if evt.Kind != ChatCreated {
			t.Errorf("got kind %q, want %s", evt.Kind, ChatCreated)
		}
		if ref, _ := evt.Payload.(EntityRef); ref.ChatID != "c1" {
			t.Errorf("payload = %+v, want chat c1", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	b.Publish(Event{Kind: ChatUpdated})
	b.Publish(Event{Kind: SyncStatusChanged})

	select {
	case evt := <-ch:
		if evt.Kind != SyncStatusChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, SyncStatusChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The chat event must not be delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("folder.", 10)
	unsub()

	b.Publish(Event{Kind: FolderCreated})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}

func TestPublishAllKeepsOrder(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 10)
	defer unsub()

	b.PublishAll([]Event{{Kind: ChatDeleted}, {Kind: FolderUpdated}, {Kind: NotifyToast}})

	for _, want := range []string{ChatDeleted, FolderUpdated, NotifyToast} {
		select {
		case evt := <-ch:
			if evt.Kind != want {
				t.Errorf("got %q, want %q", evt.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}
