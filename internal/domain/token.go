package domain

import sdkmath "cosmossdk.io/math"

// TokenBalance is one holder's balance.
type TokenBalance struct {
	Owner  string // hex address
	Amount sdkmath.Uint
}

// TokenAllowance is one owner -> spender approval.
type TokenAllowance struct {
	Owner   string
	Spender string
	Amount  sdkmath.Uint
}

// TokenSnapshot is the persisted form of a devnet token ledger.
type TokenSnapshot struct {
	Address    string
	Supply     sdkmath.Uint
	Balances   []TokenBalance
	Allowances []TokenAllowance
}
