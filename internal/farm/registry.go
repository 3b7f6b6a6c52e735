package farm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/token"
)

func (f *Farm) pool(pid int) (*domain.Pool, error) {
	if pid < 0 || pid >= len(f.pools) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPool, pid)
	}
	return f.pools[pid], nil
}

func (f *Farm) isRewardStake(pid int) bool {
	return f.stakeTokens[pid].Address() == f.rewardToken.Address()
}

func validateHarvestDelay(d int64) error {
	if d < 0 || d > MaxHarvestDelay {
		return fmt.Errorf("%w: %d", ErrInvalidHarvestDelay, d)
	}
	return nil
}

// AddPool registers a new pool for stake and returns its id. Pools are never
// removed; a pool is retired by setting its weight to zero.
func (f *Farm) AddPool(caller common.Address, stake token.Token, weight uint64, harvestDelay int64, withUpdate bool) (int, error) {
	if err := f.onlyAdmin(caller); err != nil {
		return 0, err
	}
	if stake == nil || stake.Address() == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	if err := validateHarvestDelay(harvestDelay); err != nil {
		return 0, err
	}
	for _, t := range f.stakeTokens {
		if t.Address() == stake.Address() {
			return 0, fmt.Errorf("%w: %s", ErrDuplicatePool, stake.Address().Hex())
		}
	}
	if withUpdate {
		f.massUpdate(caller)
	}

	last := f.clock.BlockNumber()
	if last < f.startBlock {
		last = f.startBlock
	}
	pid := len(f.pools)
	f.pools = append(f.pools, &domain.Pool{
		ID:                    pid,
		StakeToken:            stake.Address(),
		Weight:                weight,
		LastAccrualBlock:      last,
		AccRewardPerShare:     amount.Zero(),
		HarvestDelay:          harvestDelay,
		TotalStaked:           amount.Zero(),
		RewardTokenStakedHere: amount.Zero(),
	})
	f.stakeTokens = append(f.stakeTokens, stake)
	f.totalAllocWeight += weight

	f.log.WithField("pool", pid).WithField("stake", stake.Symbol()).WithField("weight", weight).Info("pool added")
	f.emit(domain.EventPoolAdded, pid, common.Address{}, amount.Zero(), amount.Zero(), stake.Symbol())
	return pid, nil
}

// SetPool changes a pool's weight and harvest delay.
func (f *Farm) SetPool(caller common.Address, pid int, weight uint64, harvestDelay int64, withUpdate bool) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	p, err := f.pool(pid)
	if err != nil {
		return err
	}
	if err := validateHarvestDelay(harvestDelay); err != nil {
		return err
	}
	if withUpdate {
		f.massUpdate(caller)
	}
	f.totalAllocWeight = f.totalAllocWeight - p.Weight + weight
	p.Weight = weight
	p.HarvestDelay = harvestDelay

	f.log.WithField("pool", pid).WithField("weight", weight).WithField("harvest_delay", harvestDelay).Info("pool updated")
	f.emit(domain.EventPoolUpdated, pid, common.Address{}, amount.Zero(), amount.Zero(), "")
	return nil
}
