package farm

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/token"
)

func TestHarvest_TenBlocksWithFee(t *testing.T) {
	fx := newFixture(t, func(o *Options) {
		o.FeeBips = 200
		o.FeeRecipient = treasury
	})
	pid := fx.addPool(t, fx.lp, 100, 3600)
	fx.mintRewards(t, tokens("100"))
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))

	fx.clock.Advance(10, 3600)
	res, err := fx.farm.Harvest(alice, pid)
	require.NoError(t, err)

	assert.Equal(t, HarvestPaid, res.Status)
	assert.Equal(t, tokens("10").String(), res.Gross.String())
	assert.Equal(t, tokens("10").String(), res.Paid.String())
	assert.Equal(t, tokens("0.2").String(), res.Fee.String())
	assert.Equal(t, tokens("9.8").String(), res.Net.String())
	assert.True(t, res.Carried.IsZero())

	assert.Equal(t, tokens("9.8").String(), fx.reward.BalanceOf(alice).String())
	assert.Equal(t, tokens("0.2").String(), fx.reward.BalanceOf(treasury).String())
	fx.assertDebtSnapshotted(t, pid, alice)

	kinds := fx.sink.kinds()
	assert.Equal(t, []domain.EventKind{domain.EventHarvest, domain.EventFee}, kinds[len(kinds)-2:])
}

func TestHarvest_DelayDefersThenPays(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 3600)
	fx.mintRewards(t, tokens("100"))
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))

	fx.clock.Advance(5, 100)
	ok, err := fx.farm.CanHarvest(pid, alice)
	require.NoError(t, err)
	assert.False(t, ok)
	claimable, err := fx.farm.Claimable(pid, alice)
	require.NoError(t, err)
	assert.True(t, claimable.IsZero())

	res, err := fx.farm.Harvest(alice, pid)
	require.NoError(t, err)
	assert.Equal(t, HarvestDeferred, res.Status)
	assert.Equal(t, DeferHarvestDelay, res.Reason)
	assert.Equal(t, tokens("5").String(), res.Carried.String())
	assert.True(t, fx.reward.BalanceOf(alice).IsZero())
	assert.Equal(t, tokens("5").String(), fx.position(t, pid, alice).CarriedUnpaid.String())
	fx.assertDebtSnapshotted(t, pid, alice)

	fx.clock.Advance(0, 3500)
	claimable, err = fx.farm.Claimable(pid, alice)
	require.NoError(t, err)
	assert.Equal(t, tokens("5").String(), claimable.String())

	res, err = fx.farm.Harvest(alice, pid)
	require.NoError(t, err)
	assert.Equal(t, HarvestPaid, res.Status)
	assert.Equal(t, tokens("5").String(), fx.reward.BalanceOf(alice).String())
	assert.True(t, fx.position(t, pid, alice).CarriedUnpaid.IsZero())
}

func TestHarvest_NothingPendingIsDeferred(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)

	res, err := fx.farm.Harvest(alice, pid)
	require.NoError(t, err)
	assert.Equal(t, HarvestDeferred, res.Status)
	assert.Equal(t, DeferNothingPending, res.Reason)
}

func TestHarvest_PrincipalIsNeverPaidOut(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.reward, 100, 0)
	fx.fund(t, fx.reward, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	assert.Equal(t, "1000", fx.farm.TotalRewardTokenStaked().String())

	fx.clock.Advance(10, 100)
	res, err := fx.farm.Harvest(alice, pid)
	require.NoError(t, err)
	assert.Equal(t, HarvestDeferred, res.Status)
	assert.Equal(t, DeferNoRewards, res.Reason)
	assert.Equal(t, tokens("10").String(), res.Carried.String())

	assert.Equal(t, "1000", fx.reward.BalanceOf(farmAddr).String())
	assert.True(t, fx.farm.AvailableRewards().IsZero())
	assert.Equal(t, tokens("10").String(), fx.position(t, pid, alice).CarriedUnpaid.String())

	// Withdrawing principal still works and settles nothing.
	_, err = fx.farm.Withdraw(alice, pid, amount.New(1000))
	require.NoError(t, err)
	assert.Equal(t, "1000", fx.reward.BalanceOf(alice).String())
	assert.True(t, fx.farm.TotalRewardTokenStaked().IsZero())
}

func TestHarvest_PartialPayoutCarriesRemainder(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.mintRewards(t, tokens("4"))
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))

	fx.clock.Advance(10, 100)
	res, err := fx.farm.Harvest(alice, pid)
	require.NoError(t, err)
	assert.Equal(t, HarvestPaid, res.Status)
	assert.Equal(t, tokens("4").String(), res.Paid.String())
	assert.Equal(t, tokens("6").String(), res.Carried.String())

	fx.mintRewards(t, tokens("10"))
	res, err = fx.farm.Harvest(alice, pid)
	require.NoError(t, err)
	assert.Equal(t, tokens("6").String(), res.Paid.String())
	assert.True(t, res.Carried.IsZero())
	assert.Equal(t, tokens("10").String(), fx.reward.BalanceOf(alice).String())
}

func TestHarvest_FeePlusNetEqualsPaid(t *testing.T) {
	fx := newFixture(t, func(o *Options) {
		o.RewardPerBlock = amount.New(999_999)
		o.FeeBips = 333
		o.FeeRecipient = treasury
	})
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.mintRewards(t, tokens("1"))
	fx.fund(t, fx.lp, alice, amount.New(7))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(7), common.Address{}))

	fx.clock.Advance(3, 30)
	res, err := fx.farm.Harvest(alice, pid)
	require.NoError(t, err)
	assert.False(t, res.Paid.IsZero())
	assert.Equal(t, res.Paid.String(), res.Fee.Add(res.Net).String())
	assert.Equal(t, amount.MulDivUint64(res.Paid, 333, amount.BipsDenominator).String(), res.Fee.String())
}

func TestHarvest_NoFeeWithoutRecipient(t *testing.T) {
	fx := newFixture(t, func(o *Options) { o.FeeBips = 500 })
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.mintRewards(t, tokens("10"))
	fx.fund(t, fx.lp, alice, amount.New(10))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(10), common.Address{}))

	fx.clock.Advance(1, 10)
	gross, net, err := fx.farm.PendingReward(pid, alice)
	require.NoError(t, err)
	assert.Equal(t, gross.String(), net.String())

	res, err := fx.farm.Harvest(alice, pid)
	require.NoError(t, err)
	assert.True(t, res.Fee.IsZero())
}

func TestDeposit_FoldsPendingWithoutPaying(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.mintRewards(t, tokens("100"))
	fx.fund(t, fx.lp, alice, amount.New(2000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))

	fx.clock.Advance(3, 30)
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))

	pos := fx.position(t, pid, alice)
	assert.Equal(t, "2000", pos.Amount.String())
	assert.Equal(t, tokens("3").String(), pos.CarriedUnpaid.String())
	assert.True(t, fx.reward.BalanceOf(alice).IsZero())
	assert.Equal(t, t0+30, pos.LastDepositTime)
	fx.assertDebtSnapshotted(t, pid, alice)
}

func TestDeposit_SplitsRewardsByStake(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.fund(t, fx.lp, alice, amount.New(1000))
	fx.fund(t, fx.lp, bob, amount.New(3000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	fx.clock.Advance(4, 40)
	require.NoError(t, fx.farm.Deposit(bob, pid, amount.New(3000), common.Address{}))
	fx.clock.Advance(4, 40)

	a, _, err := fx.farm.PendingReward(pid, alice)
	require.NoError(t, err)
	b, _, err := fx.farm.PendingReward(pid, bob)
	require.NoError(t, err)
	assert.Equal(t, tokens("5").String(), a.String())
	assert.Equal(t, tokens("3").String(), b.String())
}

func TestDeposit_FeeOnTransferCreditsReceived(t *testing.T) {
	fx := newFixture(t)
	taxed := token.NewLedger(token.LedgerOptions{Address: common.HexToAddress("0x3b"), Symbol: "TAX", FeeBips: 100})
	pid := fx.addPool(t, taxed, 100, 0)
	fx.fund(t, taxed, alice, amount.New(1000))

	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	assert.Equal(t, "990", fx.position(t, pid, alice).Amount.String())
	p, err := fx.farm.Pool(pid)
	require.NoError(t, err)
	assert.Equal(t, "990", p.TotalStaked.String())
}

func TestDeposit_FailedTransferLeavesNoTrace(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.fund(t, fx.lp, alice, amount.New(1000))
	fx.lp.SetFailSilently(true)

	err := fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{})
	require.ErrorIs(t, err, token.ErrTransferFailed)
	assert.Empty(t, fx.farm.Snapshot().Positions)
	p, err := fx.farm.Pool(pid)
	require.NoError(t, err)
	assert.True(t, p.TotalStaked.IsZero())
}

func TestHarvest_FailedPayoutRollsBack(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.mintRewards(t, tokens("100"))
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	fx.clock.Advance(10, 100)

	before := fx.position(t, pid, alice)
	fx.reward.SetFailSilently(true)
	_, err := fx.farm.Harvest(alice, pid)
	require.ErrorIs(t, err, token.ErrTransferFailed)

	after := fx.position(t, pid, alice)
	assert.Equal(t, before.RewardDebt.String(), after.RewardDebt.String())
	assert.Equal(t, before.CarriedUnpaid.String(), after.CarriedUnpaid.String())

	fx.reward.SetFailSilently(false)
	res, err := fx.farm.Harvest(alice, pid)
	require.NoError(t, err)
	assert.Equal(t, tokens("10").String(), res.Paid.String())
}

func TestDeposit_ReentryIsRejected(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.fund(t, fx.lp, alice, amount.New(1000))

	var reentryErr error
	fx.lp.SetHook(func(from, to common.Address, _ sdkmath.Uint) {
		if to == farmAddr {
			_, reentryErr = fx.farm.Harvest(from, pid)
		}
	})

	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	assert.ErrorIs(t, reentryErr, ErrReentrant)
	assert.Equal(t, "1000", fx.position(t, pid, alice).Amount.String())
}

func TestDepositFor_AutoCompounderKeepsHarvestClock(t *testing.T) {
	fx := newFixture(t, func(o *Options) { o.AutoCompounder = compounder })
	pid := fx.addPool(t, fx.lp, 100, 3600)
	fx.fund(t, fx.lp, alice, amount.New(1000))
	fx.fund(t, fx.lp, compounder, amount.New(500))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))

	fx.clock.Advance(1, 50)
	require.NoError(t, fx.farm.DepositFor(compounder, pid, alice, amount.New(500)))

	pos := fx.position(t, pid, alice)
	assert.Equal(t, t0, pos.LastDepositTime)
	assert.Equal(t, "500", pos.AutoCompounded.String())
	assert.Equal(t, "1500", pos.Amount.String())
	assert.Equal(t, "0", fx.lp.BalanceOf(compounder).String())

	assert.ErrorIs(t, fx.farm.DepositFor(bob, pid, alice, amount.New(1)), ErrUnauthorized)
	assert.ErrorIs(t, fx.farm.DepositFor(compounder, pid, common.Address{}, amount.New(1)), ErrZeroAddress)
}

func TestWithdraw_HarvestsAndReturnsStake(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.mintRewards(t, tokens("100"))
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))

	fx.clock.Advance(4, 40)
	res, err := fx.farm.Withdraw(alice, pid, amount.New(400))
	require.NoError(t, err)
	assert.Equal(t, tokens("4").String(), res.Net.String())
	assert.Equal(t, "400", fx.lp.BalanceOf(alice).String())
	assert.Equal(t, "600", fx.position(t, pid, alice).Amount.String())
	fx.assertDebtSnapshotted(t, pid, alice)

	kinds := fx.sink.kinds()
	assert.Equal(t, []domain.EventKind{domain.EventHarvest, domain.EventWithdraw}, kinds[len(kinds)-2:])
}

func TestWithdraw_MoreThanStakedFails(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	fx.clock.Advance(2, 20)

	_, err := fx.farm.Withdraw(alice, pid, amount.New(1001))
	require.ErrorIs(t, err, ErrInsufficientStake)
	pos := fx.position(t, pid, alice)
	assert.Equal(t, "1000", pos.Amount.String())
	assert.True(t, pos.CarriedUnpaid.IsZero())
}

func TestWithdraw_FailedStakeReturnKeepsStake(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 3600)
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	fx.clock.Advance(2, 20)

	fx.lp.SetFailSilently(true)
	_, err := fx.farm.Withdraw(alice, pid, amount.New(1000))
	require.ErrorIs(t, err, token.ErrTransferFailed)

	pos := fx.position(t, pid, alice)
	assert.Equal(t, "1000", pos.Amount.String())
	p, err := fx.farm.Pool(pid)
	require.NoError(t, err)
	assert.Equal(t, "1000", p.TotalStaked.String())
	fx.assertDebtSnapshotted(t, pid, alice)
}

func TestWithdraw_FailedStakeTransferPaysNothing(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.mintRewards(t, tokens("100"))
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	fx.clock.Advance(10, 100)

	before := fx.position(t, pid, alice)
	events := len(fx.sink.kinds())
	fx.lp.SetFailSilently(true)
	_, err := fx.farm.Withdraw(alice, pid, amount.New(1000))
	require.ErrorIs(t, err, token.ErrTransferFailed)

	assert.True(t, fx.reward.BalanceOf(alice).IsZero())
	assert.Equal(t, tokens("100").String(), fx.farm.AvailableRewards().String())
	after := fx.position(t, pid, alice)
	assert.Equal(t, "1000", after.Amount.String())
	assert.Equal(t, before.RewardDebt.String(), after.RewardDebt.String())
	assert.Equal(t, before.CarriedUnpaid.String(), after.CarriedUnpaid.String())
	p, err := fx.farm.Pool(pid)
	require.NoError(t, err)
	assert.Equal(t, "1000", p.TotalStaked.String())
	assert.Len(t, fx.sink.kinds(), events)

	fx.lp.SetFailSilently(false)
	res, err := fx.farm.Withdraw(alice, pid, amount.New(1000))
	require.NoError(t, err)
	assert.Equal(t, tokens("10").String(), res.Net.String())
	assert.Equal(t, "1000", fx.lp.BalanceOf(alice).String())
}

func TestWithdraw_FailedRewardPayoutStaysCarried(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.mintRewards(t, tokens("100"))
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	fx.clock.Advance(10, 100)

	fx.reward.SetFailSilently(true)
	res, err := fx.farm.Withdraw(alice, pid, amount.New(1000))
	require.NoError(t, err)
	assert.Equal(t, HarvestDeferred, res.Status)
	assert.Equal(t, DeferPayoutFailed, res.Reason)
	assert.Equal(t, tokens("10").String(), res.Carried.String())

	assert.Equal(t, "1000", fx.lp.BalanceOf(alice).String())
	assert.True(t, fx.reward.BalanceOf(alice).IsZero())
	pos := fx.position(t, pid, alice)
	assert.True(t, pos.Amount.IsZero())
	assert.Equal(t, tokens("10").String(), pos.CarriedUnpaid.String())

	kinds := fx.sink.kinds()
	assert.Equal(t, []domain.EventKind{domain.EventHarvestDeferred, domain.EventWithdraw}, kinds[len(kinds)-2:])

	fx.reward.SetFailSilently(false)
	res, err = fx.farm.Harvest(alice, pid)
	require.NoError(t, err)
	assert.Equal(t, tokens("10").String(), res.Net.String())
	assert.Equal(t, tokens("10").String(), fx.reward.BalanceOf(alice).String())
}

func TestHarvest_FailedFeeRoutingKeepsFeeInFarm(t *testing.T) {
	fx := newFixture(t, func(o *Options) {
		o.FeeBips = 200
		o.FeeRecipient = treasury
	})
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.mintRewards(t, tokens("100"))
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	fx.clock.Advance(10, 100)

	fx.reward.SetHook(func(_, to common.Address, _ sdkmath.Uint) {
		if to == alice {
			fx.reward.SetFailSilently(true)
		}
	})
	res, err := fx.farm.Harvest(alice, pid)
	require.NoError(t, err)
	assert.Equal(t, HarvestPaid, res.Status)
	assert.Equal(t, tokens("9.8").String(), res.Net.String())
	assert.Equal(t, tokens("9.8").String(), res.Paid.String())
	assert.True(t, res.Fee.IsZero())

	assert.Equal(t, tokens("9.8").String(), fx.reward.BalanceOf(alice).String())
	assert.True(t, fx.reward.BalanceOf(treasury).IsZero())
	assert.Equal(t, tokens("90.2").String(), fx.farm.AvailableRewards().String())
	assert.True(t, fx.position(t, pid, alice).CarriedUnpaid.IsZero())

	kinds := fx.sink.kinds()
	assert.Equal(t, domain.EventHarvest, kinds[len(kinds)-1])
}

func TestEmergencyWithdraw_ForfeitsRewardsEvenWhenPaused(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.mintRewards(t, tokens("100"))
	fx.fund(t, fx.lp, alice, amount.New(1000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))
	fx.clock.Advance(5, 50)
	require.NoError(t, fx.farm.SetPaused(pauser, true))

	got, err := fx.farm.EmergencyWithdraw(alice, pid)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.String())
	assert.Equal(t, "1000", fx.lp.BalanceOf(alice).String())

	pos := fx.position(t, pid, alice)
	assert.True(t, pos.Amount.IsZero())
	assert.True(t, pos.RewardDebt.IsZero())
	assert.True(t, pos.CarriedUnpaid.IsZero())
	assert.True(t, fx.reward.BalanceOf(alice).IsZero())
}

func TestPause_BlocksFlowsAndFreezesAccrual(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.mintRewards(t, tokens("100"))
	fx.fund(t, fx.lp, alice, amount.New(2000))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(1000), common.Address{}))

	fx.clock.Advance(5, 50)
	assert.ErrorIs(t, fx.farm.SetPaused(admin, true), ErrUnauthorized)
	require.NoError(t, fx.farm.SetPaused(pauser, true))

	assert.ErrorIs(t, fx.farm.Deposit(alice, pid, amount.New(1), common.Address{}), ErrPaused)
	_, err := fx.farm.Harvest(alice, pid)
	assert.ErrorIs(t, err, ErrPaused)
	_, err = fx.farm.Withdraw(alice, pid, amount.New(1))
	assert.ErrorIs(t, err, ErrPaused)

	fx.clock.Advance(10, 100)
	gross, _, err := fx.farm.PendingReward(pid, alice)
	require.NoError(t, err)
	assert.Equal(t, tokens("5").String(), gross.String())

	require.NoError(t, fx.farm.SetPaused(pauser, false))
	fx.clock.Advance(2, 20)
	gross, _, err = fx.farm.PendingReward(pid, alice)
	require.NoError(t, err)
	assert.Equal(t, tokens("7").String(), gross.String())
}

func TestPrincipalProtection_HoldsAcrossFlows(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.reward, 60, 0)
	lpPool := fx.addPool(t, fx.lp, 40, 0)
	fx.mintRewards(t, tokens("3"))
	fx.fund(t, fx.reward, alice, tokens("50"))
	fx.fund(t, fx.lp, bob, tokens("50"))

	check := func() {
		t.Helper()
		assert.True(t, fx.reward.BalanceOf(farmAddr).GTE(fx.farm.TotalRewardTokenStaked()))
	}

	require.NoError(t, fx.farm.Deposit(alice, pid, tokens("50"), common.Address{}))
	check()
	require.NoError(t, fx.farm.Deposit(bob, lpPool, tokens("50"), common.Address{}))
	check()
	for i := 0; i < 5; i++ {
		fx.clock.Advance(3, 30)
		_, err := fx.farm.Harvest(alice, pid)
		require.NoError(t, err)
		check()
		_, err = fx.farm.Harvest(bob, lpPool)
		require.NoError(t, err)
		check()
	}
	_, err := fx.farm.Withdraw(alice, pid, tokens("20"))
	require.NoError(t, err)
	check()
	_, err = fx.farm.EmergencyWithdraw(alice, pid)
	require.NoError(t, err)
	check()
	assert.True(t, fx.farm.TotalRewardTokenStaked().IsZero())
}
