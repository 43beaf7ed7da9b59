package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus. It is how the chat
// store notifies its observers: subscribers pick the namespaces they care
// about ("chat.", "folder.", "notify.") and never see the rest.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	namespace string
	ch        chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Publish delivers evt to every subscriber whose namespace is a prefix of
// evt.Kind. Delivery never blocks: a full subscriber misses the event.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.namespace) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// PublishAll publishes events in order.
func (b *Bus) PublishAll(events []Event) {
	for _, evt := range events {
		b.Publish(evt)
	}
}

// Subscribe returns a channel receiving events under namespace and a
// function that cancels the subscription. An empty namespace receives
// everything.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
