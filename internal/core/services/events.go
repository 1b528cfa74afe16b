package services

import (
	"sync"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
)

type EventType string

const (
	EventDataChanged EventType = "data_changed"
	EventSyncStatus  EventType = "sync_status"
)

// Where a data change came from.
const (
	SourceLocal       = "local"
	SourceRemote      = "remote"
	SourceImport      = "import"
	SourceDayBoundary = "day_boundary"
	SourceReset       = "reset"
)

type Event struct {
	Type   EventType         `json:"type"`
	Source string            `json:"source,omitempty"`
	Status domain.SyncStatus `json:"status,omitempty"`
	At     time.Time         `json:"at"`
}

const subscriberBuffer = 32

// broadcaster fans events out to subscribers. A subscriber that does not keep
// up misses events rather than blocking the publisher.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
