package farm

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

func newPosition() *domain.UserPosition {
	return &domain.UserPosition{
		Amount:         amount.Zero(),
		RewardDebt:     amount.Zero(),
		CarriedUnpaid:  amount.Zero(),
		AutoCompounded: amount.Zero(),
	}
}

// position returns the holder's position in pid, creating it if needed.
func (f *Farm) position(pid int, holder common.Address) *domain.UserPosition {
	key := domain.PositionKey{PoolID: pid, Holder: holder}
	pos, ok := f.positions[key]
	if !ok {
		pos = newPosition()
		f.positions[key] = pos
	}
	return pos
}

func (f *Farm) lookupPosition(pid int, holder common.Address) (domain.UserPosition, bool) {
	pos, ok := f.positions[domain.PositionKey{PoolID: pid, Holder: holder}]
	if !ok {
		return *newPosition(), false
	}
	return *pos, true
}

func accumulated(stake, index sdkmath.Uint) sdkmath.Uint {
	return stake.Mul(index).QuoUint64(amount.AccScale)
}

// reconcile folds the position's pending reward into CarriedUnpaid and
// re-snapshots its debt at the pool's current index.
func reconcile(p *domain.Pool, pos *domain.UserPosition) {
	acc := accumulated(pos.Amount, p.AccRewardPerShare)
	pos.CarriedUnpaid = pos.CarriedUnpaid.Add(acc.Sub(pos.RewardDebt))
	pos.RewardDebt = acc
}

func resnapshot(p *domain.Pool, pos *domain.UserPosition) {
	pos.RewardDebt = accumulated(pos.Amount, p.AccRewardPerShare)
}

func (f *Farm) addStake(pid int, p *domain.Pool, pos *domain.UserPosition, v sdkmath.Uint) {
	pos.Amount = pos.Amount.Add(v)
	p.TotalStaked = p.TotalStaked.Add(v)
	if f.isRewardStake(pid) {
		p.RewardTokenStakedHere = p.RewardTokenStakedHere.Add(v)
		f.totalRewardTokenStaked = f.totalRewardTokenStaked.Add(v)
	}
}

func (f *Farm) removeStake(pid int, p *domain.Pool, pos *domain.UserPosition, v sdkmath.Uint) {
	pos.Amount = pos.Amount.Sub(v)
	p.TotalStaked = p.TotalStaked.Sub(v)
	if f.isRewardStake(pid) {
		p.RewardTokenStakedHere = p.RewardTokenStakedHere.Sub(v)
		f.totalRewardTokenStaked = f.totalRewardTokenStaked.Sub(v)
	}
}

// checkpoint captures the ledger state a settlement flow may touch so that
// it can be put back if a transfer fails.
type checkpoint struct {
	f      *Farm
	key    domain.PositionKey
	pool   domain.Pool
	pos    domain.UserPosition
	hadPos bool
	staked sdkmath.Uint
}

func (f *Farm) checkpoint(pid int, holder common.Address) checkpoint {
	pos, ok := f.lookupPosition(pid, holder)
	return checkpoint{
		f:      f,
		key:    domain.PositionKey{PoolID: pid, Holder: holder},
		pool:   *f.pools[pid],
		pos:    pos,
		hadPos: ok,
		staked: f.totalRewardTokenStaked,
	}
}

func (c checkpoint) rollback() {
	*c.f.pools[c.key.PoolID] = c.pool
	c.f.totalRewardTokenStaked = c.staked
	if !c.hadPos {
		delete(c.f.positions, c.key)
		return
	}
	pos := c.pos
	c.f.positions[c.key] = &pos
}
