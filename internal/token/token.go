// Package token defines the token-transfer interface consumed by the farm and
// the dripper, plus an in-memory ERC-20 style implementation.
package token

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrTransferFailed is returned when a token reports failure without an error.
	ErrTransferFailed = errors.New("token transfer failed")

	// ErrInsufficientBalance is returned when the sender cannot cover the amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance is returned when the spender is not approved for the amount.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrZeroAddress is returned for transfers to or from the zero address.
	ErrZeroAddress = errors.New("zero address")
)

// Token is the transfer surface of a fungible asset.
//
// Implementations may charge a fee on transfer (the receiver gets less than
// amount) and may signal failure by returning false instead of an error.
type Token interface {
	Address() common.Address
	Symbol() string
	Decimals() uint8
	BalanceOf(owner common.Address) sdkmath.Uint

	// Transfer moves amount from `from` to `to`.
	Transfer(from, to common.Address, amount sdkmath.Uint) (bool, error)

	// TransferFrom moves amount from `from` to `to` using spender's allowance.
	TransferFrom(spender, from, to common.Address, amount sdkmath.Uint) (bool, error)
}

// SafeTransfer calls Transfer and treats a false return as ErrTransferFailed.
func SafeTransfer(t Token, from, to common.Address, amount sdkmath.Uint) error {
	ok, err := t.Transfer(from, to, amount)
	if err != nil {
		return fmt.Errorf("transfer %s: %w", t.Symbol(), err)
	}
	if !ok {
		return fmt.Errorf("transfer %s: %w", t.Symbol(), ErrTransferFailed)
	}
	return nil
}

// SafeTransferFrom calls TransferFrom and treats a false return as ErrTransferFailed.
func SafeTransferFrom(t Token, spender, from, to common.Address, amount sdkmath.Uint) error {
	ok, err := t.TransferFrom(spender, from, to, amount)
	if err != nil {
		return fmt.Errorf("transferFrom %s: %w", t.Symbol(), err)
	}
	if !ok {
		return fmt.Errorf("transferFrom %s: %w", t.Symbol(), ErrTransferFailed)
	}
	return nil
}

// PullReceived pulls amount from holder into self and returns what self
// actually received, measured as the balance delta.
func PullReceived(t Token, self, holder common.Address, amount sdkmath.Uint) (sdkmath.Uint, error) {
	before := t.BalanceOf(self)
	if err := SafeTransferFrom(t, self, holder, self, amount); err != nil {
		return sdkmath.ZeroUint(), err
	}
	after := t.BalanceOf(self)
	if after.LT(before) {
		return sdkmath.ZeroUint(), fmt.Errorf("transferFrom %s: balance decreased", t.Symbol())
	}
	return after.Sub(before), nil
}
