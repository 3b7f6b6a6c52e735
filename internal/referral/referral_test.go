package referral

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-ledger/internal/chain"
	"farm-ledger/internal/storage/memory"
)

var (
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb0")
	carol = common.HexToAddress("0xc1")
)

func TestRecorder_FirstReferrerWins(t *testing.T) {
	store := memory.NewReferralStore()
	r := NewRecorder(store, chain.NewManualClock(1, 1_700_000_000))
	ctx := context.Background()

	ok, err := r.RecordReferral(alice, bob)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.RecordReferral(alice, carol)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := r.Referrer(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, bob, got)

	stored, err := store.GetReferrer(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), stored.RecordedAt)

	n, err := r.Count(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecorder_UnknownHolder(t *testing.T) {
	r := NewRecorder(memory.NewReferralStore(), chain.NewManualClock(1, 0))
	got, err := r.Referrer(context.Background(), carol)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, got)
}

func TestRecorder_InvalidReferral(t *testing.T) {
	r := NewRecorder(memory.NewReferralStore(), chain.NewManualClock(1, 0))
	_, err := r.RecordReferral(alice, alice)
	assert.Error(t, err)
}
