package domain

import (
	sdkmath "cosmossdk.io/math"
)

// RateChange is a future streaming-rate transition of the dripper.
type RateChange struct {
	EffectiveAt   int64        // unix seconds
	RatePerSecond sdkmath.Uint // base units per second from EffectiveAt on
}

// EscrowState is the accrual state of the dripper.
type EscrowState struct {
	LastAccrualTime      int64
	CurrentRatePerSecond sdkmath.Uint
	AccruedUnsent        sdkmath.Uint // claimable but not yet transferred
}

// EscrowSnapshot is the persisted form of a dripper.
type EscrowSnapshot struct {
	State      EscrowState
	Schedule   []RateChange
	Recipient  string
	Owner      string
	MaxPerCall sdkmath.Uint
}
