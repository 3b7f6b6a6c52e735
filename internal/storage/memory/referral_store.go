package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/domain"
	"farm-ledger/internal/storage"
)

// ReferralStore is an in-memory implementation of storage.ReferralStore.
type ReferralStore struct {
	mu   sync.RWMutex
	data map[common.Address]*domain.Referral // keyed by holder
}

// NewReferralStore creates a new in-memory referral store.
func NewReferralStore() *ReferralStore {
	return &ReferralStore{
		data: make(map[common.Address]*domain.Referral),
	}
}

// Record stores a referral. Returns ErrDuplicateKey if the holder already has one.
func (s *ReferralStore) Record(_ context.Context, r *domain.Referral) error {
	if r == nil || r.Holder == (common.Address{}) || r.Referrer == (common.Address{}) || r.Holder == r.Referrer {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Holder]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *r
	s.data[r.Holder] = &copy
	return nil
}

// GetReferrer returns the holder's referral. Returns ErrNotFound if none.
func (s *ReferralStore) GetReferrer(_ context.Context, holder common.Address) (*domain.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[holder]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// CountByReferrer returns how many holders the referrer brought in.
func (s *ReferralStore) CountByReferrer(_ context.Context, referrer common.Address) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.data {
		if r.Referrer == referrer {
			n++
		}
	}
	return n, nil
}

var _ storage.ReferralStore = (*ReferralStore)(nil)
