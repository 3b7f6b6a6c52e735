package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/domain"
	"farm-ledger/internal/storage"
)

func TestReferralStore_FirstReferrerWins(t *testing.T) {
	store := NewReferralStore()
	ctx := context.Background()

	holder := common.HexToAddress("0xa1")
	first := common.HexToAddress("0xb1")
	second := common.HexToAddress("0xb2")

	if err := store.Record(ctx, &domain.Referral{Holder: holder, Referrer: first, RecordedAt: 1}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	err := store.Record(ctx, &domain.Referral{Holder: holder, Referrer: second, RecordedAt: 2})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetReferrer(ctx, holder)
	if err != nil {
		t.Fatalf("GetReferrer failed: %v", err)
	}
	if got.Referrer != first {
		t.Errorf("Referrer mismatch: got %s, want %s", got.Referrer.Hex(), first.Hex())
	}
}

func TestReferralStore_CountByReferrer(t *testing.T) {
	store := NewReferralStore()
	ctx := context.Background()
	referrer := common.HexToAddress("0xb1")

	for _, h := range []string{"0xa1", "0xa2", "0xa3"} {
		if err := store.Record(ctx, &domain.Referral{Holder: common.HexToAddress(h), Referrer: referrer}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	n, err := store.CountByReferrer(ctx, referrer)
	if err != nil {
		t.Fatalf("CountByReferrer failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 referrals, got %d", n)
	}
}

func TestReferralStore_Validation(t *testing.T) {
	store := NewReferralStore()
	ctx := context.Background()
	a := common.HexToAddress("0xa1")

	if err := store.Record(ctx, &domain.Referral{Holder: a, Referrer: a}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for self-referral, got %v", err)
	}
	if _, err := store.GetReferrer(ctx, a); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
