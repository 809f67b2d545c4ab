// Package events fans link notifications out to subscribers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/danmuck/boatlink/internal/protocol/session"
)

// Type classifies an event for subscribers.
type Type string

const (
	TypeDataReceived Type = "data_received"
	TypeLinkLost     Type = "link_lost"
)

// Event is the JSON envelope delivered to subscribers. Data is set only for
// data_received.
type Event struct {
	Type      Type              `json:"type"`
	Link      string            `json:"link"`
	Timestamp time.Time         `json:"timestamp"`
	Data      *payload.BoatData `json:"data,omitempty"`
}

const subscriberBuffer = 64

type subscriber struct {
	ch chan Event
}

// Bus implements session.Emitter. Publishing never blocks: a subscriber whose
// buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	dropped atomic.Uint64
	now     func() time.Time
}

var _ session.Emitter = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{
		subs: make(map[*subscriber]struct{}),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe returns a receive channel and a function that unsubscribes and
// closes it. The function is safe to call more than once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	return b.SubscribeBuffered(subscriberBuffer)
}

// SubscribeBuffered is Subscribe with a caller-sized buffer, for consumers
// that must not miss link_lost while they are busy writing.
func (b *Bus) SubscribeBuffered(size int) (<-chan Event, func()) {
	if size < 1 {
		size = 1
	}
	s := &subscriber{ch: make(chan Event, size)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.ch)
		})
	}
}

func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = b.now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Bus) DataReceived(link string, data payload.BoatData) {
	b.Publish(Event{Type: TypeDataReceived, Link: link, Data: &data})
}

func (b *Bus) LinkLost(link string) {
	b.Publish(Event{Type: TypeLinkLost, Link: link})
}

// Len returns the current subscriber count.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
