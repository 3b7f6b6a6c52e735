package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"farm-ledger/internal/domain"
	"farm-ledger/internal/logging"
	"farm-ledger/internal/observability"
	"farm-ledger/internal/storage"
)

// PersisterOptions contains configuration for creating a Persister.
type PersisterOptions struct {
	Store         storage.EventStore
	BatchSize     int           // Default: 100
	FlushInterval time.Duration // Default: 2s
	Buffer        int           // subscription channel size, default 1024
	MaxPending    int           // queued events before new ones are dropped, default 65536
	StoreName     string        // metrics label, default "events"
	Logger        logrus.FieldLogger
}

// Persister batches bus events into an EventStore. A relay goroutine moves
// events off the bus subscription into an in-memory queue, so a slow store
// never blocks Emit; once MaxPending events are queued, new ones are dropped
// and counted.
type Persister struct {
	ch            chan domain.Event
	sub           event.Subscription
	store         storage.EventStore
	batchSize     int
	flushInterval time.Duration
	maxPending    int
	storeName     string
	logger        logrus.FieldLogger

	mu      sync.Mutex
	pending []*domain.Event
	dropped int

	ready    chan struct{} // signalled when pending grows
	stop     chan struct{}
	stopOnce sync.Once
	relayed  chan struct{} // closed when the relay exits
	subErr   error         // set before relayed is closed
}

// NewPersister subscribes to bus immediately so no event emitted after it
// returns is missed, and queues the events still in the bus history so the
// ones emitted before it was created are written too. Events are queued from
// the moment it returns; Run writes them.
func NewPersister(bus *Bus, opts PersisterOptions) *Persister {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 1024
	}
	p := &Persister{
		ch:            make(chan domain.Event, buffer),
		store:         opts.Store,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		maxPending:    opts.MaxPending,
		storeName:     opts.StoreName,
		logger:        logging.OrDiscard(opts.Logger).WithField("component", "event_persister"),
		ready:         make(chan struct{}, 1),
		stop:          make(chan struct{}),
		relayed:       make(chan struct{}),
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	if p.flushInterval <= 0 {
		p.flushInterval = 2 * time.Second
	}
	if p.maxPending <= 0 {
		p.maxPending = 1 << 16
	}
	if p.storeName == "" {
		p.storeName = "events"
	}
	p.sub = bus.Subscribe(p.ch)
	for _, ev := range bus.Since(0) {
		p.enqueue(ev)
	}
	go p.relay()
	return p
}

// Run writes events until ctx is cancelled or the bus is closed. Queued
// events are flushed before returning.
func (p *Persister) Run(ctx context.Context) error {
	defer p.sub.Unsubscribe()
	defer p.stopRelay()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.stopRelay()
			<-p.relayed
			p.flush(context.WithoutCancel(ctx))
			return ctx.Err()

		case <-p.relayed:
			p.flush(ctx)
			return p.subErr

		case <-p.ready:
			if p.queued() >= p.batchSize {
				p.flush(ctx)
			}

		case <-ticker.C:
			p.flush(ctx)
		}
	}
}

// relay never blocks on the store: it only appends to the queue.
func (p *Persister) relay() {
	defer close(p.relayed)
	for {
		select {
		case ev := <-p.ch:
			p.enqueue(ev)
		case err := <-p.sub.Err():
			p.drain()
			p.subErr = err
			return
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *Persister) stopRelay() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Persister) drain() {
	for {
		select {
		case ev := <-p.ch:
			p.enqueue(ev)
		default:
			return
		}
	}
}

func (p *Persister) enqueue(ev domain.Event) {
	p.mu.Lock()
	if len(p.pending) >= p.maxPending {
		p.dropped++
		p.mu.Unlock()
		observability.RecordEventDropped()
		return
	}
	p.pending = append(p.pending, &ev)
	p.mu.Unlock()

	select {
	case p.ready <- struct{}{}:
	default:
	}
}

func (p *Persister) queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// take removes up to batchSize events from the front of the queue.
func (p *Persister) take() (batch []*domain.Event, dropped int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := min(len(p.pending), p.batchSize)
	batch = p.pending[:n:n]
	p.pending = p.pending[n:]
	dropped, p.dropped = p.dropped, 0
	return batch, dropped
}

// flush writes every queued event in batches of batchSize.
func (p *Persister) flush(ctx context.Context) {
	for {
		batch, dropped := p.take()
		if dropped > 0 {
			p.logger.WithField("dropped", dropped).Warn("event queue full, events dropped")
		}
		if len(batch) == 0 {
			return
		}
		p.write(ctx, batch)
	}
}

// write stores one batch. A batch rejected for duplicate keys is retried
// event by event so a replayed prefix does not drop new events.
func (p *Persister) write(ctx context.Context, batch []*domain.Event) {
	err := p.store.InsertBulk(ctx, batch)
	if err == nil {
		return
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		observability.RecordStoreWriteError(p.storeName)
		p.logger.WithError(err).WithField("events", len(batch)).Warn("event batch write failed")
		return
	}

	for _, ev := range batch {
		err := p.store.Insert(ctx, ev)
		if err == nil || errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		observability.RecordStoreWriteError(p.storeName)
		p.logger.WithError(err).WithField("seq", ev.Seq).Warn("event write failed")
	}
}
