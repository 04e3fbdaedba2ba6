// Package progress fans job lifecycle events out to live viewers. Events are
// delivered only to subscribers registered at publish time; a late viewer
// reads the terminal record from the store instead.
package progress

import (
	"sync"

	"github.com/google/uuid"

	"github.com/varunv-ux/getglow/pkg/models"
)

// Event is one job state transition pushed to live subscribers.
type Event struct {
	JobID   uuid.UUID           `json:"job_id"`
	Status  string              `json:"status"`
	Job     *models.AnalysisJob `json:"job,omitempty"`
	Message string              `json:"message,omitempty"`
}

// Terminal reports whether no further events will be published for this job.
func (e Event) Terminal() bool {
	return models.IsTerminalStatus(e.Status)
}

// Bus is the publish/subscribe contract between the job controller and the
// live-update handlers. Implementations must be safe for concurrent
// subscribe/unsubscribe/publish.
type Bus interface {
	// Subscribe registers a new channel under id and returns it. The bus owns
	// the channel: it is closed by the bus after a terminal publish, or
	// abandoned (not closed) after Unsubscribe.
	Subscribe(id uuid.UUID) chan Event
	// Unsubscribe removes ch from id's subscriber set. Safe to call for a
	// channel the bus already dropped.
	Unsubscribe(id uuid.UUID, ch chan Event)
	// Publish delivers ev to every channel currently subscribed to id. A
	// subscriber that cannot accept the event is dropped; the rest still
	// receive it. A terminal event closes every remaining channel for id.
	// Publishing with no subscribers is a no-op.
	Publish(id uuid.UUID, ev Event)
}

// subscriberBuffer sizes each subscriber channel. A job emits at most two
// events after subscription, so a drop means the client stopped reading.
const subscriberBuffer = 8

// MemoryBus is the single-process Bus implementation. Subscriber state is
// process-local: in a horizontally scaled deployment use RedisBus instead.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan Event]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uuid.UUID]map[chan Event]struct{})}
}

func (b *MemoryBus) Subscribe(id uuid.UUID) chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[id]
	if !ok {
		set = make(map[chan Event]struct{})
		b.subs[id] = set
	}
	set[ch] = struct{}{}
	return ch
}

func (b *MemoryBus) Unsubscribe(id uuid.UUID, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[id]
	if !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(b.subs, id)
	}
}

func (b *MemoryBus) Publish(id uuid.UUID, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[id]
	if !ok {
		return
	}
	for ch := range set {
		select {
		case ch <- ev:
		default:
			// Full buffer means the reader is gone or wedged; drop it so the
			// remaining subscribers still get the event.
			delete(set, ch)
			close(ch)
		}
	}
	if ev.Terminal() {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, id)
		return
	}
	if len(set) == 0 {
		delete(b.subs, id)
	}
}

// SubscriberCount reports the current number of live channels for id.
func (b *MemoryBus) SubscriberCount(id uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[id])
}

var _ Bus = (*MemoryBus)(nil)
