// Package verification checks ledger state for internal consistency and
// compares a restored farm against the snapshot it was built from.
package verification

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

// FieldDivergence is one value that is not what it should be.
type FieldDivergence struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s: expected %s, got %s", d.Field, d.Expected, d.Actual)
}

// Result is the outcome of a verification pass.
type Result struct {
	Match       bool              `json:"match"`
	Divergences []FieldDivergence `json:"divergences,omitempty"`
}

func newResult(divs []FieldDivergence) Result {
	return Result{Match: len(divs) == 0, Divergences: divs}
}

// Holdings returns the farm's balance of a token.
type Holdings func(token common.Address) sdkmath.Uint

type checker struct{ divs []FieldDivergence }

func (c *checker) equal(field string, expected, actual sdkmath.Uint) {
	expected, actual = amount.Or0(expected), amount.Or0(actual)
	if !expected.Equal(actual) {
		c.divs = append(c.divs, FieldDivergence{Field: field, Expected: expected.String(), Actual: actual.String()})
	}
}

func (c *checker) atLeast(field string, floor, actual sdkmath.Uint) {
	floor, actual = amount.Or0(floor), amount.Or0(actual)
	if actual.LT(floor) {
		c.divs = append(c.divs, FieldDivergence{Field: field, Expected: ">= " + floor.String(), Actual: actual.String()})
	}
}

func (c *checker) same(field string, expected, actual any) {
	e, a := fmt.Sprint(expected), fmt.Sprint(actual)
	if e != a {
		c.divs = append(c.divs, FieldDivergence{Field: field, Expected: e, Actual: a})
	}
}

// VerifyFarm checks the accounting identities of a farm snapshot:
//   - pool weights sum to the total allocation weight
//   - each pool's TotalStaked is the sum of its positions
//   - the farm holds at least TotalStaked of every stake token
//   - the reward-token principal matches the pools that stake it
//   - no position's reward debt exceeds what its stake has accumulated
func VerifyFarm(snap domain.FarmSnapshot, rewardToken common.Address, holdings Holdings) Result {
	c := &checker{}

	var weight uint64
	rewardStaked := amount.Zero()
	for _, p := range snap.Pools {
		weight += p.Weight
		rewardStaked = rewardStaked.Add(amount.Or0(p.RewardTokenStakedHere))
	}
	c.same("total_alloc_weight", weight, snap.TotalAllocWeight)
	c.equal("total_reward_token_staked", rewardStaked, snap.TotalRewardTokenStaked)

	staked := make(map[int]sdkmath.Uint, len(snap.Pools))
	for _, rec := range snap.Positions {
		staked[rec.PoolID] = amount.Or0(staked[rec.PoolID]).Add(amount.Or0(rec.Amount))
	}

	for _, p := range snap.Pools {
		prefix := fmt.Sprintf("pool[%d]", p.ID)
		c.equal(prefix+".total_staked", staked[p.ID], p.TotalStaked)
		if holdings != nil {
			c.atLeast(prefix+".stake_backing", p.TotalStaked, holdings(p.StakeToken))
		}
		if p.StakeToken == rewardToken {
			c.equal(prefix+".reward_token_staked_here", p.TotalStaked, p.RewardTokenStakedHere)
		} else {
			c.equal(prefix+".reward_token_staked_here", amount.Zero(), p.RewardTokenStakedHere)
		}
	}
	if holdings != nil {
		c.atLeast("reward_principal_backing", snap.TotalRewardTokenStaked, holdings(rewardToken))
	}

	for _, rec := range snap.Positions {
		if rec.PoolID < 0 || rec.PoolID >= len(snap.Pools) {
			c.same(fmt.Sprintf("position[%d/%s].pool", rec.PoolID, rec.Holder), "known pool", rec.PoolID)
			continue
		}
		idx := amount.Or0(snap.Pools[rec.PoolID].AccRewardPerShare)
		accrued := amount.Or0(rec.Amount).Mul(idx).QuoUint64(amount.AccScale)
		if amount.Or0(rec.RewardDebt).GT(accrued) {
			c.divs = append(c.divs, FieldDivergence{
				Field:    fmt.Sprintf("position[%d/%s].reward_debt", rec.PoolID, rec.Holder),
				Expected: "<= " + accrued.String(),
				Actual:   rec.RewardDebt.String(),
			})
		}
	}
	return newResult(c.divs)
}

// CompareFarmSnapshots reports where restored differs from stored. The block
// and the emission rate are not compared: both come from the live
// environment, not the snapshot.
func CompareFarmSnapshots(stored, restored domain.FarmSnapshot) []FieldDivergence {
	c := &checker{}
	c.same("total_alloc_weight", stored.TotalAllocWeight, restored.TotalAllocWeight)
	c.equal("total_reward_token_staked", stored.TotalRewardTokenStaked, restored.TotalRewardTokenStaked)
	c.same("last_top_up_time", stored.LastTopUpTime, restored.LastTopUpTime)
	c.same("paused", stored.Paused, restored.Paused)
	c.same("fee_bips", stored.FeeBips, restored.FeeBips)
	c.same("fee_recipient", common.HexToAddress(stored.FeeRecipient), common.HexToAddress(restored.FeeRecipient))
	if stored.Admin != "" {
		c.same("admin", common.HexToAddress(stored.Admin), common.HexToAddress(restored.Admin))
		c.same("pauser", common.HexToAddress(stored.Pauser), common.HexToAddress(restored.Pauser))
		c.same("auto_compounder", common.HexToAddress(stored.AutoCompounder), common.HexToAddress(restored.AutoCompounder))
	}

	c.same("pools", len(stored.Pools), len(restored.Pools))
	for i := 0; i < len(stored.Pools) && i < len(restored.Pools); i++ {
		s, r := stored.Pools[i], restored.Pools[i]
		prefix := fmt.Sprintf("pool[%d]", i)
		c.same(prefix+".stake_token", s.StakeToken, r.StakeToken)
		c.same(prefix+".weight", s.Weight, r.Weight)
		c.same(prefix+".last_accrual_block", s.LastAccrualBlock, r.LastAccrualBlock)
		c.same(prefix+".harvest_delay", s.HarvestDelay, r.HarvestDelay)
		c.equal(prefix+".acc_reward_per_share", s.AccRewardPerShare, r.AccRewardPerShare)
		c.equal(prefix+".total_staked", s.TotalStaked, r.TotalStaked)
		c.equal(prefix+".reward_token_staked_here", s.RewardTokenStakedHere, r.RewardTokenStakedHere)
	}

	restoredPos := make(map[domain.PositionKey]domain.UserPosition, len(restored.Positions))
	for _, rec := range restored.Positions {
		restoredPos[domain.PositionKey{PoolID: rec.PoolID, Holder: common.HexToAddress(rec.Holder)}] = rec.UserPosition
	}
	for _, rec := range stored.Positions {
		key := domain.PositionKey{PoolID: rec.PoolID, Holder: common.HexToAddress(rec.Holder)}
		prefix := fmt.Sprintf("position[%d/%s]", key.PoolID, key.Holder.Hex())
		r, found := restoredPos[key]
		if !found {
			c.same(prefix, "present", "missing")
			continue
		}
		delete(restoredPos, key)
		c.equal(prefix+".amount", rec.Amount, r.Amount)
		c.equal(prefix+".reward_debt", rec.RewardDebt, r.RewardDebt)
		c.same(prefix+".last_deposit_time", rec.LastDepositTime, r.LastDepositTime)
		c.equal(prefix+".carried_unpaid", rec.CarriedUnpaid, r.CarriedUnpaid)
		c.equal(prefix+".auto_compounded", rec.AutoCompounded, r.AutoCompounded)
	}
	for key := range restoredPos {
		c.same(fmt.Sprintf("position[%d/%s]", key.PoolID, key.Holder.Hex()), "absent", "present")
	}
	return c.divs
}
