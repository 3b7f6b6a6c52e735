package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/domain"
)

// StateStore persists the latest ledger snapshots. Each save replaces the
// previous one.
type StateStore interface {
	// SaveFarmState replaces the stored farm snapshot.
	SaveFarmState(ctx context.Context, snap *domain.FarmSnapshot) error

	// LoadFarmState returns the stored farm snapshot. Returns ErrNotFound before the first save.
	LoadFarmState(ctx context.Context) (*domain.FarmSnapshot, error)

	// SaveEscrowState replaces the stored escrow snapshot.
	SaveEscrowState(ctx context.Context, snap *domain.EscrowSnapshot) error

	// LoadEscrowState returns the stored escrow snapshot. Returns ErrNotFound before the first save.
	LoadEscrowState(ctx context.Context) (*domain.EscrowSnapshot, error)

	// SaveTokenState replaces the stored token ledgers.
	SaveTokenState(ctx context.Context, snaps []domain.TokenSnapshot) error

	// LoadTokenState returns the stored token ledgers, ordered by address.
	// Returns an empty slice before the first save.
	LoadTokenState(ctx context.Context) ([]domain.TokenSnapshot, error)
}

// ReferralStore provides access to referrals storage.
type ReferralStore interface {
	// Record stores a referral. Returns ErrDuplicateKey if the holder already has a referrer.
	Record(ctx context.Context, r *domain.Referral) error

	// GetReferrer returns the holder's referral. Returns ErrNotFound if none.
	GetReferrer(ctx context.Context, holder common.Address) (*domain.Referral, error)

	// CountByReferrer returns how many holders the referrer brought in.
	CountByReferrer(ctx context.Context, referrer common.Address) (int, error)
}

// EventStore provides access to ledger_events storage.
type EventStore interface {
	// Insert adds one event. Returns ErrDuplicateKey if seq exists.
	Insert(ctx context.Context, ev *domain.Event) error

	// InsertBulk adds multiple events. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, evs []*domain.Event) error

	// GetByHolder retrieves a holder's events, ordered by seq ASC.
	GetByHolder(ctx context.Context, holder common.Address) ([]*domain.Event, error)

	// GetByPool retrieves a pool's events, ordered by seq ASC.
	GetByPool(ctx context.Context, poolID int) ([]*domain.Event, error)

	// GetByTimeRange retrieves events with timestamp in [start, end] (inclusive), ordered by seq ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error)

	// MaxSeq returns the highest stored seq, zero when empty.
	MaxSeq(ctx context.Context) (uint64, error)
}
