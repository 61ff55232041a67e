// Package events carries pipeline status transitions to whoever is watching a user's
// journal (the SSE stream, tests).
package events

import (
	"sync"
	"time"

	"github.com/echovault/echovault/internal/model"
)

// EventKind represents a status transition observable by the presentation layer.
type EventKind string

const (
	EventPending                    EventKind = "pending"
	EventComplete                   EventKind = "complete"
	EventNeedsDecompression         EventKind = "needs-decompression"
	EventGateBlocked                EventKind = "gate-blocked"
	EventTemporalConfirmationNeeded EventKind = "temporal-confirmation-needed"
	EventOfflineQueued              EventKind = "offline-queued"
	EventRetrofitProgress           EventKind = "retrofit-progress"
)

// Event carries ids only; consumers read the record from the store when they need it.
type Event struct {
	Kind      EventKind               `json:"kind"`
	UserID    string                  `json:"userId"`
	EntryID   string                  `json:"entryId,omitempty"`
	PendingID string                  `json:"pendingId,omitempty"`
	OfflineID string                  `json:"offlineId,omitempty"`
	Progress  *model.RetrofitProgress `json:"progress,omitempty"`
	At        time.Time               `json:"at"`
}

// Publisher is the side of the bus the pipeline and maintenance jobs see.
type Publisher interface {
	Publish(evt Event) bool
}

// Bus is an in-process fan-out keyed by user. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
}

// NewBus creates a bus whose subscriber channels hold buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{subs: map[string]map[chan Event]struct{}{}, buffer: buffer}
}

// Publish delivers evt to every subscriber of evt.UserID. Returns false when at least one
// subscriber dropped it.
func (b *Bus) Publish(evt Event) bool {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	ok := true
	for ch := range b.subs[evt.UserID] {
		select {
		case ch <- evt:
		default:
			ok = false
		}
	}
	return ok
}

// Subscribe registers a listener for userID. Call the returned cancel func to release it;
// the channel is closed on cancel.
func (b *Bus) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = map[chan Event]struct{}{}
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[userID], ch)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) bool { return true }

// Recorder is a Publisher that keeps every event, for tests and the CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(evt Event) bool {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return true
}

// Events returns a copy of what was published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of kind were published.
func (r *Recorder) Count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
