package events

import (
	"sync"
	"time"
)

// Type identifies what happened to the media collection.
type Type string

const (
	MediaSaved    Type = "media_saved"
	TagsAdded     Type = "tags_added"
	MediaDeleted  Type = "media_deleted"
	PersistFailed Type = "persist_failed"
	// SnapshotSaved follows every successful mutation; Data["records"] holds the
	// full collection as it was written.
	SnapshotSaved Type = "snapshot_saved"
)

// Event is a single notification with optional payload.
type Event struct {
	Type      Type
	Timestamp time.Time
	Data      map[string]interface{}
}

// Handler receives published events. Handlers run on the publisher's goroutine.
type Handler func(Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[Type][]Handler
	allHandlers []Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandlers = append(b.allHandlers, h)
}

// Publish delivers e to the matching handlers, then to the catch-all handlers.
// A nil Bus drops the event.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	// Handlers run without the lock so they may publish or subscribe themselves.
	b.mu.RLock()
	handlers := append(append([]Handler(nil), b.handlers[e.Type]...), b.allHandlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// PublishWithData is shorthand for Publish(Event{Type: t, Data: data}).
func (b *Bus) PublishWithData(t Type, data map[string]interface{}) {
	b.Publish(Event{Type: t, Data: data})
}
