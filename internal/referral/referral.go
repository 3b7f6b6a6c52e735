// Package referral connects the farm's referral hook to a ReferralStore.
package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/chain"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/farm"
	"farm-ledger/internal/storage"
)

// DefaultTimeout bounds a single store write.
const DefaultTimeout = 3 * time.Second

// Recorder implements farm.ReferralRecorder over a storage.ReferralStore.
// The first referrer recorded for a holder wins.
type Recorder struct {
	store   storage.ReferralStore
	clock   chain.Clock
	timeout time.Duration
}

var _ farm.ReferralRecorder = (*Recorder)(nil)

// NewRecorder creates a recorder stamping referrals with clock.Now().
func NewRecorder(store storage.ReferralStore, clock chain.Clock) *Recorder {
	return &Recorder{store: store, clock: clock, timeout: DefaultTimeout}
}

// RecordReferral stores holder -> referrer unless the holder already has one.
func (r *Recorder) RecordReferral(holder, referrer common.Address) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.store.Record(ctx, &domain.Referral{
		Holder:     holder,
		Referrer:   referrer,
		RecordedAt: r.clock.Now(),
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrDuplicateKey):
		return false, nil
	default:
		return false, fmt.Errorf("record referral: %w", err)
	}
}

// Referrer returns who referred holder, or the zero address.
func (r *Recorder) Referrer(ctx context.Context, holder common.Address) (common.Address, error) {
	ref, err := r.store.GetReferrer(ctx, holder)
	if errors.Is(err, storage.ErrNotFound) {
		return common.Address{}, nil
	}
	if err != nil {
		return common.Address{}, err
	}
	return ref.Referrer, nil
}

// Count returns how many holders referrer brought in.
func (r *Recorder) Count(ctx context.Context, referrer common.Address) (int, error) {
	return r.store.CountByReferrer(ctx, referrer)
}
