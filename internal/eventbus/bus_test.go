package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

func TestBus_AssignsSequence(t *testing.T) {
	b := New(0)
	b.Emit(domain.Event{Kind: domain.EventDeposit, Amount: amount.New(1)})
	b.Emit(domain.Event{Kind: domain.EventHarvest, Amount: amount.New(2)})

	assert.Equal(t, uint64(2), b.Seq())
	got := b.Since(0)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, domain.EventHarvest, got[1].Kind)
	assert.Len(t, b.Since(1), 1)
}

func TestBus_HistoryLimit(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Emit(domain.Event{Kind: domain.EventDeposit})
	}
	got := b.Since(0)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[0].Seq)
	assert.Equal(t, uint64(5), got[2].Seq)
}

func TestBus_SetSeqResumesNumbering(t *testing.T) {
	b := New(0)
	b.Emit(domain.Event{Kind: domain.EventDeposit})
	b.SetSeq(40)
	assert.Empty(t, b.Since(0))

	b.Emit(domain.Event{Kind: domain.EventWithdraw})
	got := b.Since(0)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(41), got[0].Seq)
}

func TestBus_Subscribe(t *testing.T) {
	b := New(0)
	ch := make(chan domain.Event, 4)
	sub := b.Subscribe(ch)
	defer sub.Unsubscribe()

	b.Emit(domain.Event{Kind: domain.EventTopUp, PoolID: domain.NoPool})

	select {
	case ev := <-ch:
		assert.Equal(t, uint64(1), ev.Seq)
		assert.Equal(t, domain.EventTopUp, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	b.Close()
	select {
	case _, ok := <-sub.Err():
		assert.False(t, ok, "closed bus ends subscriptions")
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
}
