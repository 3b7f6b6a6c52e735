package memory

import (
	"context"
	"errors"
	"testing"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/storage"
)

func TestStateStore_LoadBeforeSave(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	if _, err := store.LoadFarmState(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.LoadEscrowState(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStateStore_SaveReplacesAndCopies(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	snap := &domain.FarmSnapshot{
		Block:          10,
		RewardPerBlock: amount.New(5),
		Pools:          []domain.Pool{{ID: 0, Weight: 100}},
	}
	if err := store.SaveFarmState(ctx, snap); err != nil {
		t.Fatalf("SaveFarmState failed: %v", err)
	}

	// Mutating the caller's snapshot must not leak into the store.
	snap.Pools[0].Weight = 1

	got, err := store.LoadFarmState(ctx)
	if err != nil {
		t.Fatalf("LoadFarmState failed: %v", err)
	}
	if got.Pools[0].Weight != 100 {
		t.Errorf("Weight mismatch: got %d, want 100", got.Pools[0].Weight)
	}

	snap.Block = 20
	if err := store.SaveFarmState(ctx, snap); err != nil {
		t.Fatalf("SaveFarmState failed: %v", err)
	}
	got, err = store.LoadFarmState(ctx)
	if err != nil {
		t.Fatalf("LoadFarmState failed: %v", err)
	}
	if got.Block != 20 {
		t.Errorf("Block mismatch: got %d, want 20", got.Block)
	}
}

func TestStateStore_EscrowRoundTrip(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	snap := &domain.EscrowSnapshot{
		State:    domain.EscrowState{LastAccrualTime: 100, CurrentRatePerSecond: amount.New(3), AccruedUnsent: amount.New(9)},
		Schedule: []domain.RateChange{{EffectiveAt: 200, RatePerSecond: amount.New(4)}},
	}
	if err := store.SaveEscrowState(ctx, snap); err != nil {
		t.Fatalf("SaveEscrowState failed: %v", err)
	}
	got, err := store.LoadEscrowState(ctx)
	if err != nil {
		t.Fatalf("LoadEscrowState failed: %v", err)
	}
	if len(got.Schedule) != 1 || got.Schedule[0].EffectiveAt != 200 {
		t.Errorf("Schedule mismatch: %+v", got.Schedule)
	}
	if got.State.AccruedUnsent.Uint64() != 9 {
		t.Errorf("AccruedUnsent mismatch: got %s, want 9", got.State.AccruedUnsent)
	}
}

func TestStateStore_NilSnapshot(t *testing.T) {
	store := NewStateStore()
	if err := store.SaveFarmState(context.Background(), nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestStateStore_TokenRoundTrip(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	empty, err := store.LoadTokenState(ctx)
	if err != nil {
		t.Fatalf("LoadTokenState failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no tokens before save, got %d", len(empty))
	}

	snaps := []domain.TokenSnapshot{
		{Address: "0xbb", Supply: amount.New(5), Balances: []domain.TokenBalance{{Owner: "0x01", Amount: amount.New(5)}}},
		{Address: "0xaa", Supply: amount.New(7)},
	}
	if err := store.SaveTokenState(ctx, snaps); err != nil {
		t.Fatalf("SaveTokenState failed: %v", err)
	}
	snaps[0].Balances[0].Owner = "mutated"

	got, err := store.LoadTokenState(ctx)
	if err != nil {
		t.Fatalf("LoadTokenState failed: %v", err)
	}
	if len(got) != 2 || got[0].Address != "0xaa" {
		t.Fatalf("Expected tokens ordered by address, got %+v", got)
	}
	if got[1].Balances[0].Owner != "0x01" {
		t.Errorf("Stored snapshot shares memory with caller: %+v", got[1].Balances)
	}
}
