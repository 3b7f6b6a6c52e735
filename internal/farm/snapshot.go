package farm

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/token"
)

// TokenResolver maps a stake token address back to its Token.
type TokenResolver func(addr common.Address) (token.Token, bool)

// Snapshot captures the ledger for persistence. Positions are ordered by
// pool, then holder.
func (f *Farm) Snapshot() domain.FarmSnapshot {
	snap := domain.FarmSnapshot{
		Block:                  f.clock.BlockNumber(),
		TotalAllocWeight:       f.totalAllocWeight,
		TotalRewardTokenStaked: f.totalRewardTokenStaked,
		LastTopUpTime:          f.lastTopUpTime,
		Paused:                 f.cfg.Paused,
		FeeBips:                f.cfg.FeeBips,
		FeeRecipient:           f.cfg.FeeRecipient.Hex(),
		RewardPerBlock:         f.emission.RewardPerBlock(),
		Admin:                  f.cfg.Admin.Hex(),
		Pauser:                 f.cfg.Pauser.Hex(),
		AutoCompounder:         f.cfg.AutoCompounder.Hex(),
		Pools:                  f.Pools(),
	}
	for key, pos := range f.positions {
		snap.Positions = append(snap.Positions, domain.PositionRecord{
			PoolID:       key.PoolID,
			Holder:       key.Holder.Hex(),
			UserPosition: *pos,
		})
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		a, b := snap.Positions[i], snap.Positions[j]
		if a.PoolID != b.PoolID {
			return a.PoolID < b.PoolID
		}
		return a.Holder < b.Holder
	})
	return snap
}

// Restore rebuilds a Farm from a snapshot. Fee settings and the roles the
// snapshot records override opts, so role changes made at runtime survive a
// restart. Escrow wiring and the emission source come from opts; when opts
// sets neither Emission nor RewardPerBlock, the snapshot's rate is used as a
// fixed emission.
func Restore(opts Options, snap domain.FarmSnapshot, resolve TokenResolver) (*Farm, error) {
	if opts.Emission == nil && amount.Or0(opts.RewardPerBlock).IsZero() {
		opts.RewardPerBlock = amount.Or0(snap.RewardPerBlock)
	}
	opts.FeeBips = snap.FeeBips
	opts.FeeRecipient = common.HexToAddress(snap.FeeRecipient)
	if snap.Admin != "" {
		opts.Admin = common.HexToAddress(snap.Admin)
	}
	if snap.Pauser != "" {
		opts.Pauser = common.HexToAddress(snap.Pauser)
	}
	if snap.AutoCompounder != "" {
		opts.AutoCompounder = common.HexToAddress(snap.AutoCompounder)
	}
	f, err := New(opts)
	if err != nil {
		return nil, err
	}

	var weight uint64
	for i, p := range snap.Pools {
		if p.ID != i {
			return nil, fmt.Errorf("%w: pool %d stored at index %d", ErrInvalidConfig, p.ID, i)
		}
		tok, ok := resolve(p.StakeToken)
		if !ok {
			return nil, fmt.Errorf("%w: no token for pool %d (%s)", ErrInvalidConfig, i, p.StakeToken.Hex())
		}
		pool := p
		pool.AccRewardPerShare = amount.Or0(pool.AccRewardPerShare)
		pool.TotalStaked = amount.Or0(pool.TotalStaked)
		pool.RewardTokenStakedHere = amount.Or0(pool.RewardTokenStakedHere)
		f.pools = append(f.pools, &pool)
		f.stakeTokens = append(f.stakeTokens, tok)
		weight += p.Weight
	}
	if weight != snap.TotalAllocWeight {
		return nil, fmt.Errorf("%w: pool weights sum to %d, snapshot says %d", ErrInvalidConfig, weight, snap.TotalAllocWeight)
	}
	f.totalAllocWeight = weight

	for _, rec := range snap.Positions {
		if rec.PoolID < 0 || rec.PoolID >= len(f.pools) {
			return nil, fmt.Errorf("%w: position in pool %d", ErrInvalidPool, rec.PoolID)
		}
		pos := rec.UserPosition
		pos.Amount = amount.Or0(pos.Amount)
		pos.RewardDebt = amount.Or0(pos.RewardDebt)
		pos.CarriedUnpaid = amount.Or0(pos.CarriedUnpaid)
		pos.AutoCompounded = amount.Or0(pos.AutoCompounded)
		f.positions[domain.PositionKey{PoolID: rec.PoolID, Holder: common.HexToAddress(rec.Holder)}] = &pos
	}
	f.totalRewardTokenStaked = amount.Or0(snap.TotalRewardTokenStaked)
	f.lastTopUpTime = snap.LastTopUpTime
	f.cfg.Paused = snap.Paused
	return f, nil
}
