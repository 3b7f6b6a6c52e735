package domain

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Pool is one staking pool of the farm.
type Pool struct {
	ID         int            // index in the registry
	StakeToken common.Address // asset accepted by this pool

	Weight            uint64       // allocation weight
	LastAccrualBlock  uint64       // last block the index was advanced to
	AccRewardPerShare sdkmath.Uint // cumulative reward per unit stake, scaled by 1e12
	HarvestDelay      int64        // seconds from the last qualifying deposit

	TotalStaked           sdkmath.Uint // sum of holder stakes
	RewardTokenStakedHere sdkmath.Uint // part of TotalStaked denominated in the reward token
}
