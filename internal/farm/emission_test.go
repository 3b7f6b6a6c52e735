package farm

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-ledger/internal/amount"
)

type stubOracle struct {
	tvl sdkmath.Uint
	err error
}

func (o *stubOracle) TotalValueLocked() (sdkmath.Uint, error) { return o.tvl, o.err }

func TestTargetAPREmission_KeepsLastGoodValue(t *testing.T) {
	oracle := &stubOracle{tvl: amount.New(3_650_000)}
	e := NewTargetAPREmission(oracle, 1000, 365)

	assert.Equal(t, "1000", e.RewardPerBlock().String())

	oracle.err = errors.New("stale price")
	oracle.tvl = amount.New(1)
	assert.Equal(t, "1000", e.RewardPerBlock().String())

	oracle.err = nil
	oracle.tvl = amount.New(7_300_000)
	assert.Equal(t, "2000", e.RewardPerBlock().String())
}

func TestTargetAPREmission_ZeroBeforeFirstReading(t *testing.T) {
	e := NewTargetAPREmission(&stubOracle{err: errors.New("down")}, 1000, 365)
	assert.True(t, e.RewardPerBlock().IsZero())
}

func TestStakeValueOracle_DrivesEmission(t *testing.T) {
	fx := newFixture(t)
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.fund(t, fx.lp, alice, tokens("2"))
	require.NoError(t, fx.farm.Deposit(alice, pid, tokens("2"), common.Address{}))

	oracle := StakeValueOracle{
		Farm:   fx.farm,
		Prices: map[string]sdkmath.Uint{fx.lp.Address().Hex(): tokens("0.5")},
	}
	tvl, err := oracle.TotalValueLocked()
	require.NoError(t, err)
	assert.Equal(t, tokens("1").String(), tvl.String())

	// 100% APR over a 10-block year.
	require.NoError(t, fx.farm.SetEmissionSource(admin, NewTargetAPREmission(oracle, 10_000, 10)))
	assert.Equal(t, tokens("0.1").String(), fx.farm.RewardPerBlock().String())
}
