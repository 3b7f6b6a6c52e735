package farm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/observability"
)

// escrowResult is the outcome of an isolated escrow call.
type escrowResult struct {
	amount sdkmath.Uint
	err    error
}

func (r escrowResult) ok() bool { return r.err == nil }

// callEscrow runs fn so that neither an error nor a panic escapes into the
// calling ledger operation.
func (f *Farm) callEscrow(op string, fn func() (sdkmath.Uint, error)) (res escrowResult) {
	defer func() { observability.RecordEscrowCall(op, res.err) }()
	defer func() {
		if r := recover(); r != nil {
			res = escrowResult{amount: amount.Zero(), err: fmt.Errorf("escrow %s panicked: %v", op, r)}
		}
	}()
	v, err := fn()
	if err != nil {
		return escrowResult{amount: amount.Zero(), err: fmt.Errorf("escrow %s: %w", op, err)}
	}
	return escrowResult{amount: amount.Or0(v)}
}

// lowWater is the reward balance below which the automation tops up.
func (f *Farm) lowWater(perBlock sdkmath.Uint) sdkmath.Uint {
	esc := f.cfg.Escrow
	return perBlock.MulUint64(esc.BlocksPerDay).MulUint64(esc.LowWaterDays)
}

// maybeTopUp pulls from the escrow when the farm's free reward balance is
// below the low-water mark. Escrow failures are logged and swallowed.
func (f *Farm) maybeTopUp(caller common.Address) {
	esc := f.cfg.Escrow
	if esc.Escrow == nil || f.cfg.Paused {
		return
	}
	if caller == esc.Address {
		return
	}
	now := f.clock.Now()
	if f.lastTopUpTime != 0 && now < f.lastTopUpTime+esc.CooldownSeconds {
		return
	}
	perBlock := f.emission.RewardPerBlock()
	if perBlock.IsZero() {
		return
	}
	available := f.AvailableRewards()
	need := f.lowWater(perBlock)
	if available.GTE(need) {
		return
	}

	log := f.log.WithField("available", available.String()).WithField("need", need.String())
	pending := f.callEscrow("pendingAccrued", esc.Escrow.PendingAccrued)
	if !pending.ok() {
		log.WithError(pending.err).Warn("top-up skipped")
		return
	}
	if pending.amount.IsZero() || pending.amount.LT(esc.MinDrip) {
		return
	}
	before := f.rewardToken.BalanceOf(f.self)
	dripped := f.callEscrow("drip", esc.Escrow.Drip)
	if !dripped.ok() {
		log.WithError(dripped.err).Warn("top-up failed")
		return
	}
	received := amount.SatSub(f.rewardToken.BalanceOf(f.self), before)

	f.lastTopUpTime = now
	log.WithField("received", received.String()).Debug("topped up from escrow")
	f.emit(domain.EventTopUp, domain.NoPool, esc.Address, received, amount.Zero(), "")
}
