package postgres

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-ledger/internal/domain"
	"farm-ledger/internal/storage"
)

func TestReferralStore_RecordAndGet(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewReferralStore(pool)

	holder := common.HexToAddress("0xa1")
	referrer := common.HexToAddress("0xb1")

	require.NoError(t, store.Record(ctx, &domain.Referral{Holder: holder, Referrer: referrer, RecordedAt: 42}))

	got, err := store.GetReferrer(ctx, holder)
	require.NoError(t, err)
	assert.Equal(t, referrer, got.Referrer)
	assert.Equal(t, int64(42), got.RecordedAt)

	err = store.Record(ctx, &domain.Referral{Holder: holder, Referrer: common.HexToAddress("0xb2")})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetReferrer(ctx, referrer)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReferralStore_CountByReferrer(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewReferralStore(pool)
	referrer := common.HexToAddress("0xb1")

	for _, h := range []string{"0xa1", "0xa2"} {
		require.NoError(t, store.Record(ctx, &domain.Referral{Holder: common.HexToAddress(h), Referrer: referrer}))
	}

	n, err := store.CountByReferrer(ctx, referrer)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
