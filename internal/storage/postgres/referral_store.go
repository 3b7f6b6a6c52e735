package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/domain"
	"farm-ledger/internal/storage"
)

// ReferralStore implements storage.ReferralStore using PostgreSQL.
type ReferralStore struct {
	pool *Pool
}

// NewReferralStore creates a new ReferralStore.
func NewReferralStore(pool *Pool) *ReferralStore {
	return &ReferralStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReferralStore = (*ReferralStore)(nil)

// Record stores a referral. Returns ErrDuplicateKey if the holder already has one.
func (s *ReferralStore) Record(ctx context.Context, r *domain.Referral) (err error) {
	defer observe("record_referral", time.Now(), &err)

	if r == nil || r.Holder == (common.Address{}) || r.Referrer == (common.Address{}) || r.Holder == r.Referrer {
		return storage.ErrInvalidInput
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO referrals (holder, referrer, recorded_at)
		VALUES ($1, $2, $3)
	`, r.Holder.Hex(), r.Referrer.Hex(), r.RecordedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert referral: %w", err)
	}
	return nil
}

// GetReferrer returns the holder's referral. Returns ErrNotFound if none.
func (s *ReferralStore) GetReferrer(ctx context.Context, holder common.Address) (_ *domain.Referral, err error) {
	defer observe("get_referrer", time.Now(), &err)

	var (
		referrer string
		r        = domain.Referral{Holder: holder}
	)
	err = s.pool.QueryRow(ctx, `
		SELECT referrer, recorded_at
		FROM referrals
		WHERE holder = $1
	`, holder.Hex()).Scan(&referrer, &r.RecordedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get referrer: %w", err)
	}
	r.Referrer = common.HexToAddress(referrer)
	return &r, nil
}

// CountByReferrer returns how many holders the referrer brought in.
func (s *ReferralStore) CountByReferrer(ctx context.Context, referrer common.Address) (_ int, err error) {
	defer observe("count_referrals", time.Now(), &err)

	var n int
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM referrals WHERE referrer = $1
	`, referrer.Hex()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return n, nil
}
