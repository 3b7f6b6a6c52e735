package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/domain"
	"farm-ledger/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[uint64]*domain.Event // keyed by seq
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[uint64]*domain.Event),
	}
}

// Insert adds one event. Returns ErrDuplicateKey if seq exists.
func (s *EventStore) Insert(_ context.Context, ev *domain.Event) error {
	if ev == nil || ev.Seq == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[ev.Seq]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *ev
	s.data[ev.Seq] = &copy
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, evs []*domain.Event) error {
	if len(evs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[uint64]struct{}, len(evs))
	for _, ev := range evs {
		if ev == nil || ev.Seq == 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[ev.Seq]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[ev.Seq]; exists {
			return storage.ErrDuplicateKey
		}
		batch[ev.Seq] = struct{}{}
	}

	for _, ev := range evs {
		copy := *ev
		s.data[ev.Seq] = &copy
	}
	return nil
}

func (s *EventStore) filter(keep func(*domain.Event) bool) []*domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, ev := range s.data {
		if keep(ev) {
			copy := *ev
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result
}

// GetByHolder retrieves a holder's events, ordered by seq ASC.
func (s *EventStore) GetByHolder(_ context.Context, holder common.Address) ([]*domain.Event, error) {
	return s.filter(func(ev *domain.Event) bool { return ev.Holder == holder }), nil
}

// GetByPool retrieves a pool's events, ordered by seq ASC.
func (s *EventStore) GetByPool(_ context.Context, poolID int) ([]*domain.Event, error) {
	return s.filter(func(ev *domain.Event) bool { return ev.PoolID == poolID }), nil
}

// GetByTimeRange retrieves events with timestamp in [start, end] (inclusive).
func (s *EventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Event, error) {
	return s.filter(func(ev *domain.Event) bool {
		return ev.Timestamp >= start && ev.Timestamp <= end
	}), nil
}

// MaxSeq returns the highest stored seq, zero when empty.
func (s *EventStore) MaxSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max uint64
	for seq := range s.data {
		if seq > max {
			max = seq
		}
	}
	return max, nil
}

var _ storage.EventStore = (*EventStore)(nil)
