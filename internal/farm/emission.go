package farm

import (
	"sync"

	sdkmath "cosmossdk.io/math"

	"farm-ledger/internal/amount"
)

// EmissionSource yields the farm-wide reward per block.
type EmissionSource interface {
	RewardPerBlock() sdkmath.Uint
}

// FixedEmission emits a constant amount per block.
type FixedEmission struct {
	PerBlock sdkmath.Uint
}

// RewardPerBlock implements EmissionSource.
func (e FixedEmission) RewardPerBlock() sdkmath.Uint { return amount.Or0(e.PerBlock) }

// TVLOracle reports total value locked, denominated in reward-token base units.
type TVLOracle interface {
	TotalValueLocked() (sdkmath.Uint, error)
}

// TargetAPREmission derives the per-block reward from TVL so that stakers earn
// roughly TargetAPRBips per year. When the oracle errors, the last good value
// is used.
type TargetAPREmission struct {
	Oracle        TVLOracle
	TargetAPRBips uint64
	BlocksPerYear uint64

	mu   sync.Mutex
	last sdkmath.Uint
}

// NewTargetAPREmission creates a TargetAPREmission.
func NewTargetAPREmission(oracle TVLOracle, aprBips, blocksPerYear uint64) *TargetAPREmission {
	return &TargetAPREmission{
		Oracle:        oracle,
		TargetAPRBips: aprBips,
		BlocksPerYear: blocksPerYear,
		last:          amount.Zero(),
	}
}

// RewardPerBlock implements EmissionSource.
func (e *TargetAPREmission) RewardPerBlock() sdkmath.Uint {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.last = amount.Or0(e.last)
	if e.Oracle == nil || e.BlocksPerYear == 0 {
		return e.last
	}
	tvl, err := e.Oracle.TotalValueLocked()
	if err != nil {
		return e.last
	}
	yearly := amount.MulDivUint64(tvl, e.TargetAPRBips, amount.BipsDenominator)
	e.last = yearly.QuoUint64(e.BlocksPerYear)
	return e.last
}

// StakeValueOracle values every pool's stake with a fixed price table.
// Prices are reward-token base units per 1e18 stake base units; pools
// without a price contribute nothing.
type StakeValueOracle struct {
	Farm   *Farm
	Prices map[string]sdkmath.Uint // keyed by stake token hex address
}

var priceScale = sdkmath.NewUintFromString("1000000000000000000")

// TotalValueLocked implements TVLOracle.
func (o StakeValueOracle) TotalValueLocked() (sdkmath.Uint, error) {
	total := amount.Zero()
	for _, p := range o.Farm.Pools() {
		price, ok := o.Prices[p.StakeToken.Hex()]
		if !ok {
			continue
		}
		total = total.Add(amount.MulDiv(p.TotalStaked, price, priceScale))
	}
	return total, nil
}
