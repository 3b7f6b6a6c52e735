package domain

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// UserPosition is a holder's state in one pool.
type UserPosition struct {
	Amount          sdkmath.Uint // current stake
	RewardDebt      sdkmath.Uint // Amount * AccRewardPerShare / 1e12 at last reconciliation
	LastDepositTime int64        // unix seconds of the last qualifying deposit
	CarriedUnpaid   sdkmath.Uint // computed but not yet transferred reward
	AutoCompounded  sdkmath.Uint // stake deposited by the auto-compounding integration
}

// PositionKey identifies a position.
type PositionKey struct {
	PoolID int
	Holder common.Address
}
