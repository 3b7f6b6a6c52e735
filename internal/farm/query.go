package farm

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

// AvailableRewards is the reward-token balance not backing any stake.
func (f *Farm) AvailableRewards() sdkmath.Uint {
	return amount.SatSub(f.rewardToken.BalanceOf(f.self), f.totalRewardTokenStaked)
}

// PendingReward previews what holder is owed in pid as of the current block,
// before and after the performance fee.
func (f *Farm) PendingReward(pid int, holder common.Address) (gross, net sdkmath.Uint, err error) {
	p, err := f.pool(pid)
	if err != nil {
		return amount.Zero(), amount.Zero(), err
	}
	pos, _ := f.lookupPosition(pid, holder)
	idx := f.indexAt(p, f.clock.BlockNumber())
	gross = pos.CarriedUnpaid.Add(accumulated(pos.Amount, idx).Sub(pos.RewardDebt))
	_, net = f.splitFee(gross)
	return gross, net, nil
}

// Claimable is what a harvest right now would take from the reward balance.
func (f *Farm) Claimable(pid int, holder common.Address) (sdkmath.Uint, error) {
	gross, _, err := f.PendingReward(pid, holder)
	if err != nil {
		return amount.Zero(), err
	}
	ok, err := f.CanHarvest(pid, holder)
	if err != nil || !ok {
		return amount.Zero(), err
	}
	return amount.Min(gross, f.AvailableRewards()), nil
}

// CanHarvest reports whether holder's harvest delay in pid has elapsed.
func (f *Farm) CanHarvest(pid int, holder common.Address) (bool, error) {
	p, err := f.pool(pid)
	if err != nil {
		return false, err
	}
	pos, _ := f.lookupPosition(pid, holder)
	return f.canHarvest(p, &pos), nil
}

// PoolLength returns the number of pools.
func (f *Farm) PoolLength() int { return len(f.pools) }

// Pool returns a copy of pool pid.
func (f *Farm) Pool(pid int) (domain.Pool, error) {
	p, err := f.pool(pid)
	if err != nil {
		return domain.Pool{}, err
	}
	return *p, nil
}

// Pools returns copies of every pool in id order.
func (f *Farm) Pools() []domain.Pool {
	out := make([]domain.Pool, len(f.pools))
	for i, p := range f.pools {
		out[i] = *p
	}
	return out
}

// Position returns a copy of holder's position in pid. A holder that never
// deposited has a zero position.
func (f *Farm) Position(pid int, holder common.Address) (domain.UserPosition, error) {
	if _, err := f.pool(pid); err != nil {
		return domain.UserPosition{}, err
	}
	pos, _ := f.lookupPosition(pid, holder)
	return pos, nil
}

// Config returns a copy of the farm configuration.
func (f *Farm) Config() Config { return f.cfg }

// RewardPerBlock returns the current emission rate.
func (f *Farm) RewardPerBlock() sdkmath.Uint { return f.emission.RewardPerBlock() }

// TotalAllocWeight returns the sum of pool weights.
func (f *Farm) TotalAllocWeight() uint64 { return f.totalAllocWeight }

// TotalRewardTokenStaked returns the principal held in reward tokens.
func (f *Farm) TotalRewardTokenStaked() sdkmath.Uint { return f.totalRewardTokenStaked }

// LastTopUpTime returns the time of the last successful escrow top-up.
func (f *Farm) LastTopUpTime() int64 { return f.lastTopUpTime }
