package memory

import (
	"context"
	"sort"
	"sync"

	"farm-ledger/internal/domain"
	"farm-ledger/internal/storage"
)

// StateStore is an in-memory implementation of storage.StateStore.
type StateStore struct {
	mu     sync.RWMutex
	farm   *domain.FarmSnapshot
	escrow *domain.EscrowSnapshot
	tokens []domain.TokenSnapshot
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{}
}

func copyFarm(s *domain.FarmSnapshot) *domain.FarmSnapshot {
	c := *s
	c.Pools = append([]domain.Pool(nil), s.Pools...)
	c.Positions = append([]domain.PositionRecord(nil), s.Positions...)
	return &c
}

func copyEscrow(s *domain.EscrowSnapshot) *domain.EscrowSnapshot {
	c := *s
	c.Schedule = append([]domain.RateChange(nil), s.Schedule...)
	return &c
}

// SaveFarmState replaces the stored farm snapshot.
func (s *StateStore) SaveFarmState(_ context.Context, snap *domain.FarmSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.farm = copyFarm(snap)
	return nil
}

// LoadFarmState returns the stored farm snapshot. Returns ErrNotFound before the first save.
func (s *StateStore) LoadFarmState(_ context.Context) (*domain.FarmSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.farm == nil {
		return nil, storage.ErrNotFound
	}
	return copyFarm(s.farm), nil
}

// SaveEscrowState replaces the stored escrow snapshot.
func (s *StateStore) SaveEscrowState(_ context.Context, snap *domain.EscrowSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.escrow = copyEscrow(snap)
	return nil
}

// LoadEscrowState returns the stored escrow snapshot. Returns ErrNotFound before the first save.
func (s *StateStore) LoadEscrowState(_ context.Context) (*domain.EscrowSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.escrow == nil {
		return nil, storage.ErrNotFound
	}
	return copyEscrow(s.escrow), nil
}

func copyTokens(snaps []domain.TokenSnapshot) []domain.TokenSnapshot {
	out := make([]domain.TokenSnapshot, len(snaps))
	for i, t := range snaps {
		out[i] = t
		out[i].Balances = append([]domain.TokenBalance(nil), t.Balances...)
		out[i].Allowances = append([]domain.TokenAllowance(nil), t.Allowances...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// SaveTokenState replaces the stored token ledgers.
func (s *StateStore) SaveTokenState(_ context.Context, snaps []domain.TokenSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = copyTokens(snaps)
	return nil
}

// LoadTokenState returns the stored token ledgers, ordered by address.
func (s *StateStore) LoadTokenState(_ context.Context) ([]domain.TokenSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyTokens(s.tokens), nil
}

var _ storage.StateStore = (*StateStore)(nil)
