// Package eventbus sequences ledger events and fans them out to subscribers.
package eventbus

import (
	"sync"

	"github.com/ethereum/go-ethereum/event"

	"farm-ledger/internal/domain"
	"farm-ledger/internal/observability"
)

// DefaultHistory is the number of recent events kept for Since.
const DefaultHistory = 1024

// Bus is a domain.EventSink that numbers events and publishes them on a
// go-ethereum event.Feed. Send blocks until every subscriber has taken the
// event, so subscribers must use buffered channels and keep draining them.
type Bus struct {
	feed  event.Feed
	scope event.SubscriptionScope

	mu      sync.Mutex
	seq     uint64
	history []domain.Event
	limit   int
}

// Compile-time interface check.
var _ domain.EventSink = (*Bus)(nil)

// New creates a bus keeping up to history recent events (DefaultHistory when <= 0).
func New(history int) *Bus {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Bus{limit: history}
}

// Emit assigns the next sequence number and publishes ev.
func (b *Bus) Emit(ev domain.Event) {
	b.mu.Lock()
	b.seq++
	ev.Seq = b.seq
	b.history = append(b.history, ev)
	if len(b.history) > b.limit {
		b.history = b.history[len(b.history)-b.limit:]
	}
	b.mu.Unlock()

	observability.RecordEvent(ev)
	b.feed.Send(ev)
}

// Subscribe delivers future events to ch until the subscription ends.
func (b *Bus) Subscribe(ch chan<- domain.Event) event.Subscription {
	return b.scope.Track(b.feed.Subscribe(ch))
}

// Since returns retained events with Seq > seq, oldest first.
func (b *Bus) Since(seq uint64) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []domain.Event
	for _, ev := range b.history {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

// Seq returns the last assigned sequence number.
func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// SetSeq resumes numbering after seq, typically the event store's MaxSeq.
// Retained history is dropped.
func (b *Bus) SetSeq(seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq = seq
	b.history = nil
}

// Close ends all subscriptions.
func (b *Bus) Close() {
	b.scope.Close()
}
