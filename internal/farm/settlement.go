package farm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/token"
)

// HarvestStatus tells whether a settlement paid anything out.
type HarvestStatus int

const (
	HarvestDeferred HarvestStatus = iota
	HarvestPaid
)

func (s HarvestStatus) String() string {
	if s == HarvestPaid {
		return "paid"
	}
	return "deferred"
}

// Defer reasons.
const (
	DeferNothingPending = "nothing_pending"
	DeferHarvestDelay   = "harvest_delay"
	DeferNoRewards      = "insufficient_rewards"
	DeferPayoutFailed   = "payout_failed"
)

// HarvestResult describes one settlement of a position's rewards.
type HarvestResult struct {
	Status  HarvestStatus
	Reason  string       // set when Status is HarvestDeferred
	Gross   sdkmath.Uint // owed before payout
	Paid    sdkmath.Uint // taken from the reward balance
	Fee     sdkmath.Uint
	Net     sdkmath.Uint // received by the holder
	Carried sdkmath.Uint // still owed afterwards
}

func deferred(reason string, gross sdkmath.Uint) HarvestResult {
	return HarvestResult{
		Status:  HarvestDeferred,
		Reason:  reason,
		Gross:   gross,
		Paid:    amount.Zero(),
		Fee:     amount.Zero(),
		Net:     amount.Zero(),
		Carried: gross,
	}
}

func (f *Farm) canHarvest(p *domain.Pool, pos *domain.UserPosition) bool {
	return f.clock.Now() >= pos.LastDepositTime+p.HarvestDelay
}

// settle reconciles the position and decides how much of CarriedUnpaid the
// harvest delay and the free reward balance allow to pay. It moves no tokens;
// payout does.
func (f *Farm) settle(p *domain.Pool, pos *domain.UserPosition) HarvestResult {
	reconcile(p, pos)
	gross := pos.CarriedUnpaid

	if gross.IsZero() {
		return deferred(DeferNothingPending, gross)
	}
	if !f.canHarvest(p, pos) {
		return deferred(DeferHarvestDelay, gross)
	}
	paid := amount.Min(gross, f.AvailableRewards())
	if paid.IsZero() {
		return deferred(DeferNoRewards, gross)
	}

	fee, net := f.splitFee(paid)
	pos.CarriedUnpaid = gross.Sub(paid)
	return HarvestResult{
		Status:  HarvestPaid,
		Gross:   gross,
		Paid:    paid,
		Fee:     fee,
		Net:     net,
		Carried: pos.CarriedUnpaid,
	}
}

// payout carries out a settlement decided by settle. A failed net transfer
// moves nothing: the carried balance is restored and the error returned
// without emitting. A failed fee transfer after the net payout leaves the fee
// in the farm's reward balance.
func (f *Farm) payout(pid int, pos *domain.UserPosition, holder common.Address, res HarvestResult) (HarvestResult, error) {
	if res.Status != HarvestPaid {
		if res.Reason != DeferNothingPending {
			f.emit(domain.EventHarvestDeferred, pid, holder, res.Gross, amount.Zero(), res.Reason)
		}
		return res, nil
	}

	if !res.Net.IsZero() {
		if err := token.SafeTransfer(f.rewardToken, f.self, holder, res.Net); err != nil {
			pos.CarriedUnpaid = res.Gross
			return deferred(DeferPayoutFailed, res.Gross), fmt.Errorf("pay reward: %w", err)
		}
	}

	if !res.Fee.IsZero() {
		if err := token.SafeTransfer(f.rewardToken, f.self, f.cfg.FeeRecipient, res.Fee); err != nil {
			f.log.WithError(err).WithField("pool", pid).WithField("fee", res.Fee.String()).Error("fee routing failed, fee left in reward balance")
			res.Paid = res.Net
			res.Fee = amount.Zero()
		}
	}
	f.emit(domain.EventHarvest, pid, holder, res.Net, res.Fee, "")
	if !res.Fee.IsZero() {
		f.emit(domain.EventFee, pid, f.cfg.FeeRecipient, res.Fee, amount.Zero(), "")
	}
	return res, nil
}

// Deposit stakes amt of pool pid's token for caller. Pending rewards are
// folded into the carried balance, not paid. A non-zero referrer is passed
// to the referral recorder.
func (f *Farm) Deposit(caller common.Address, pid int, amt sdkmath.Uint, referrer common.Address) error {
	return f.deposit(caller, caller, pid, amt, referrer)
}

// DepositFor stakes on behalf of beneficiary. Only the auto-compounder may
// call it; its deposits do not restart the beneficiary's harvest delay.
func (f *Farm) DepositFor(caller common.Address, pid int, beneficiary common.Address, amt sdkmath.Uint) error {
	if caller == (common.Address{}) || caller != f.cfg.AutoCompounder {
		return ErrUnauthorized
	}
	if beneficiary == (common.Address{}) {
		return ErrZeroAddress
	}
	return f.deposit(caller, beneficiary, pid, amt, common.Address{})
}

func (f *Farm) deposit(payer, holder common.Address, pid int, amt sdkmath.Uint, referrer common.Address) (err error) {
	if err := f.enter(); err != nil {
		return err
	}
	defer f.exit()

	p, err := f.pool(pid)
	if err != nil {
		return err
	}
	if f.cfg.Paused {
		return ErrPaused
	}
	if holder == (common.Address{}) {
		return ErrZeroAddress
	}
	amt = amount.Or0(amt)

	cp := f.checkpoint(pid, holder)
	defer func() {
		if err != nil {
			cp.rollback()
		}
	}()

	f.advance(pid, payer)
	pos := f.position(pid, holder)
	reconcile(p, pos)

	received := amount.Zero()
	if !amt.IsZero() {
		received, err = token.PullReceived(f.stakeTokens[pid], f.self, payer, amt)
		if err != nil {
			return fmt.Errorf("deposit: %w", err)
		}
		f.addStake(pid, p, pos, received)
		if f.isAutoCompounder(payer) {
			pos.AutoCompounded = pos.AutoCompounded.Add(received)
		} else {
			pos.LastDepositTime = f.clock.Now()
		}
	}
	resnapshot(p, pos)

	f.emit(domain.EventDeposit, pid, holder, received, amount.Zero(), "")
	if !received.IsZero() {
		f.recordReferral(holder, referrer)
	}
	return nil
}

func (f *Farm) isAutoCompounder(a common.Address) bool {
	return a != (common.Address{}) && a == f.cfg.AutoCompounder
}

func (f *Farm) recordReferral(holder, referrer common.Address) {
	if f.referrals == nil || referrer == (common.Address{}) || referrer == holder {
		return
	}
	recorded, err := f.referrals.RecordReferral(holder, referrer)
	if err != nil {
		f.log.WithError(err).WithField("holder", holder.Hex()).Warn("referral not recorded")
		return
	}
	if !recorded {
		return
	}
	f.emit(domain.EventReferral, domain.NoPool, holder, amount.Zero(), amount.Zero(), referrer.Hex())
}

// Harvest pays out caller's rewards in pid, subject to the harvest delay and
// the free reward balance. Whatever cannot be paid stays carried.
func (f *Farm) Harvest(caller common.Address, pid int) (res HarvestResult, err error) {
	if err := f.enter(); err != nil {
		return HarvestResult{}, err
	}
	defer f.exit()

	p, err := f.pool(pid)
	if err != nil {
		return HarvestResult{}, err
	}
	if f.cfg.Paused {
		return HarvestResult{}, ErrPaused
	}

	cp := f.checkpoint(pid, caller)
	f.advance(pid, caller)
	pos := f.position(pid, caller)
	res, err = f.payout(pid, pos, caller, f.settle(p, pos))
	if err != nil {
		cp.rollback()
		return HarvestResult{}, err
	}
	resnapshot(p, pos)
	return res, nil
}

// Withdraw returns amt of stake to caller and harvests. The stake moves
// first, so a failed stake transfer leaves everything as it was. A reward
// transfer that fails afterwards stays carried and the withdrawal succeeds.
func (f *Farm) Withdraw(caller common.Address, pid int, amt sdkmath.Uint) (res HarvestResult, err error) {
	if err := f.enter(); err != nil {
		return HarvestResult{}, err
	}
	defer f.exit()

	p, err := f.pool(pid)
	if err != nil {
		return HarvestResult{}, err
	}
	if f.cfg.Paused {
		return HarvestResult{}, ErrPaused
	}
	amt = amount.Or0(amt)
	current, _ := f.lookupPosition(pid, caller)
	if amt.GT(current.Amount) {
		return HarvestResult{}, fmt.Errorf("%w: have %s, want %s", ErrInsufficientStake, current.Amount, amt)
	}

	cp := f.checkpoint(pid, caller)
	f.advance(pid, caller)
	pos := f.position(pid, caller)
	decided := f.settle(p, pos)

	if !amt.IsZero() {
		f.removeStake(pid, p, pos, amt)
		if err := token.SafeTransfer(f.stakeTokens[pid], f.self, caller, amt); err != nil {
			cp.rollback()
			return HarvestResult{}, fmt.Errorf("withdraw: %w", err)
		}
	}
	resnapshot(p, pos)

	res, err = f.payout(pid, pos, caller, decided)
	if err != nil {
		f.log.WithError(err).WithField("pool", pid).WithField("holder", caller.Hex()).Warn("reward payout failed, carried forward")
		f.emit(domain.EventHarvestDeferred, pid, caller, res.Gross, amount.Zero(), res.Reason)
	}
	f.emit(domain.EventWithdraw, pid, caller, amt, amount.Zero(), "")
	return res, nil
}

// EmergencyWithdraw returns caller's entire stake in pid and forfeits all
// rewards. It works while paused.
func (f *Farm) EmergencyWithdraw(caller common.Address, pid int) (sdkmath.Uint, error) {
	if err := f.enter(); err != nil {
		return amount.Zero(), err
	}
	defer f.exit()

	p, err := f.pool(pid)
	if err != nil {
		return amount.Zero(), err
	}
	cp := f.checkpoint(pid, caller)
	pos := f.position(pid, caller)
	amt := pos.Amount

	f.removeStake(pid, p, pos, amt)
	pos.RewardDebt = amount.Zero()
	pos.CarriedUnpaid = amount.Zero()
	if !amt.IsZero() {
		if err := token.SafeTransfer(f.stakeTokens[pid], f.self, caller, amt); err != nil {
			cp.rollback()
			return amount.Zero(), fmt.Errorf("emergency withdraw: %w", err)
		}
	}
	f.log.WithField("pool", pid).WithField("holder", caller.Hex()).WithField("amount", amt.String()).Warn("emergency withdraw")
	f.emit(domain.EventEmergencyWithdraw, pid, caller, amt, amount.Zero(), "")
	return amt, nil
}
