package domain

import (
	sdkmath "cosmossdk.io/math"
)

// PositionRecord is a position with its key, for persistence.
type PositionRecord struct {
	PoolID int
	Holder string // hex address
	UserPosition
}

// FarmSnapshot is the persisted form of a farm ledger.
type FarmSnapshot struct {
	Block                  uint64
	TotalAllocWeight       uint64
	TotalRewardTokenStaked sdkmath.Uint
	LastTopUpTime          int64
	Paused                 bool
	FeeBips                uint64
	FeeRecipient           string
	RewardPerBlock         sdkmath.Uint

	// Roles as hex addresses. Empty means not recorded; the configured
	// role is used.
	Admin          string
	Pauser         string
	AutoCompounder string

	Pools     []Pool
	Positions []PositionRecord
}
