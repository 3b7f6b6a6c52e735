package farm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/token"
)

func TestAddPool_Validation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.farm.AddPool(bob, fx.lp, 100, 0, false)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = fx.farm.AddPool(admin, nil, 100, 0, false)
	assert.ErrorIs(t, err, ErrZeroAddress)

	_, err = fx.farm.AddPool(admin, fx.lp, 100, MaxHarvestDelay+1, false)
	assert.ErrorIs(t, err, ErrInvalidHarvestDelay)

	_, err = fx.farm.AddPool(admin, fx.lp, 100, -1, false)
	assert.ErrorIs(t, err, ErrInvalidHarvestDelay)

	pid := fx.addPool(t, fx.lp, 100, MaxHarvestDelay)
	assert.Equal(t, 0, pid)

	_, err = fx.farm.AddPool(admin, fx.lp, 50, 0, false)
	assert.ErrorIs(t, err, ErrDuplicatePool)
	assert.Equal(t, 1, fx.farm.PoolLength())
	assert.Equal(t, uint64(100), fx.farm.TotalAllocWeight())
	assert.Equal(t, domain.EventPoolAdded, fx.sink.events[0].Kind)
}

func TestSetPool_UpdatesWeightAndDelay(t *testing.T) {
	fx := newFixture(t)
	other := token.NewLedger(token.LedgerOptions{Address: common.HexToAddress("0x2b"), Symbol: "LP2"})
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.addPool(t, other, 100, 0)

	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	fx.clock.Advance(4, 40)

	assert.ErrorIs(t, fx.farm.SetPool(bob, pid, 300, 0, true), ErrUnauthorized)
	assert.ErrorIs(t, fx.farm.SetPool(admin, 9, 300, 0, true), ErrInvalidPool)
	require.NoError(t, fx.farm.SetPool(admin, pid, 300, 60, true))
	assert.Equal(t, uint64(400), fx.farm.TotalAllocWeight())

	p, err := fx.farm.Pool(pid)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), p.Weight)
	assert.Equal(t, int64(60), p.HarvestDelay)

	// 4 blocks at half the emission, then 4 at three quarters.
	fx.clock.Advance(4, 40)
	gross, _, err := fx.farm.PendingReward(pid, alice)
	require.NoError(t, err)
	assert.Equal(t, tokens("5").String(), gross.String())
}

func TestSetRewardPerBlock_AccruesAtOldRateFirst(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))

	fx.clock.Advance(5, 50)
	assert.ErrorIs(t, fx.farm.SetRewardPerBlock(bob, tokens("2")), ErrUnauthorized)
	require.NoError(t, fx.farm.SetRewardPerBlock(admin, tokens("2")))
	fx.clock.Advance(5, 50)

	gross, _, err := fx.farm.PendingReward(pid, alice)
	require.NoError(t, err)
	assert.Equal(t, tokens("15").String(), gross.String())
	assert.Equal(t, tokens("2").String(), fx.farm.RewardPerBlock().String())

	assert.ErrorIs(t, fx.farm.SetEmissionSource(admin, nil), ErrInvalidConfig)
}

func TestSetFee_Bound(t *testing.T) {
	fx := newFixture(t)
	assert.ErrorIs(t, fx.farm.SetFee(bob, 100, treasury), ErrUnauthorized)
	assert.ErrorIs(t, fx.farm.SetFee(admin, MaxFeeBips+1, treasury), ErrFeeTooHigh)
	require.NoError(t, fx.farm.SetFee(admin, MaxFeeBips, treasury))

	cfg := fx.farm.Config()
	assert.Equal(t, MaxFeeBips, cfg.FeeBips)
	assert.Equal(t, treasury, cfg.FeeRecipient)
}

func TestRoles_Transfer(t *testing.T) {
	fx := newFixture(t)

	assert.ErrorIs(t, fx.farm.SetPauser(admin, common.Address{}), ErrZeroAddress)
	require.NoError(t, fx.farm.SetPauser(admin, bob))
	assert.ErrorIs(t, fx.farm.SetPaused(pauser, true), ErrUnauthorized)
	require.NoError(t, fx.farm.SetPaused(bob, true))
	assert.True(t, fx.farm.Config().Paused)

	assert.ErrorIs(t, fx.farm.TransferAdmin(bob, bob), ErrUnauthorized)
	assert.ErrorIs(t, fx.farm.TransferAdmin(admin, common.Address{}), ErrZeroAddress)
	require.NoError(t, fx.farm.TransferAdmin(admin, alice))
	assert.ErrorIs(t, fx.farm.SetAutoCompounder(admin, compounder), ErrUnauthorized)
	require.NoError(t, fx.farm.SetAutoCompounder(alice, compounder))
	assert.Equal(t, compounder, fx.farm.Config().AutoCompounder)
}
