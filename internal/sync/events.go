package sync

import (
	stdsync "sync"
	"time"
)

// EventType names a sync lifecycle event.
type EventType string

const (
	EventSyncStart    EventType = "sync_start"
	EventSyncComplete EventType = "sync_complete"
	EventSyncError    EventType = "sync_error"
)

// Event is published to subscribers. Message is set on sync_error and
// Result on sync_complete.
type Event struct {
	Type    EventType   `json:"type"`
	Message string      `json:"message,omitempty"`
	Result  *SyncResult `json:"result,omitempty"`
	Time    time.Time   `json:"time"`
}

// eventBus delivers events synchronously on the publishing goroutine.
// Subscribers must not block.
type eventBus struct {
	mu     stdsync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]func(Event))}
}

func (b *eventBus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	var once stdsync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *eventBus) publish(ev Event) {
	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
