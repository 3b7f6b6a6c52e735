package farm

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

// indexAt returns the pool's reward index as it would be at block, without
// mutating anything. Nothing accrues while paused, without stake, or while
// the farm has no weight.
func (f *Farm) indexAt(p *domain.Pool, block uint64) sdkmath.Uint {
	if block <= p.LastAccrualBlock {
		return p.AccRewardPerShare
	}
	if f.cfg.Paused || p.TotalStaked.IsZero() || f.totalAllocWeight == 0 || p.Weight == 0 {
		return p.AccRewardPerShare
	}
	perBlock := f.emission.RewardPerBlock()
	if perBlock.IsZero() {
		return p.AccRewardPerShare
	}
	elapsed := block - p.LastAccrualBlock
	reward := perBlock.MulUint64(elapsed).MulUint64(p.Weight).QuoUint64(f.totalAllocWeight)
	return p.AccRewardPerShare.Add(reward.MulUint64(amount.AccScale).Quo(p.TotalStaked))
}

func (f *Farm) accrue(p *domain.Pool) {
	block := f.clock.BlockNumber()
	if block <= p.LastAccrualBlock {
		return
	}
	p.AccRewardPerShare = f.indexAt(p, block)
	p.LastAccrualBlock = block
}

// advance runs the top-up automation, then brings one pool up to date.
func (f *Farm) advance(pid int, caller common.Address) {
	f.maybeTopUp(caller)
	f.accrue(f.pools[pid])
}

func (f *Farm) massUpdate(caller common.Address) {
	f.maybeTopUp(caller)
	for _, p := range f.pools {
		f.accrue(p)
	}
}

// UpdatePool brings one pool's index up to the current block.
func (f *Farm) UpdatePool(caller common.Address, pid int) error {
	if err := f.enter(); err != nil {
		return err
	}
	defer f.exit()

	if _, err := f.pool(pid); err != nil {
		return err
	}
	f.advance(pid, caller)
	return nil
}

// MassUpdatePools brings every pool's index up to the current block.
func (f *Farm) MassUpdatePools(caller common.Address) error {
	if err := f.enter(); err != nil {
		return err
	}
	defer f.exit()

	f.massUpdate(caller)
	return nil
}
