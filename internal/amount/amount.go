// Package amount holds the fixed-point helpers shared by the farm and the dripper.
//
// Every value is a cosmossdk.io/math Uint: an unsigned 256-bit integer whose
// arithmetic panics on overflow and underflow. A panic here is a ledger bug,
// never an expected runtime condition.
package amount

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// AccScale is the denominator of every cumulative reward-per-share index.
const AccScale uint64 = 1_000_000_000_000

const maxBits = 256

// BipsDenominator is the basis-point denominator (100.00%).
const BipsDenominator uint64 = 10_000

// Zero returns an initialized zero amount.
func Zero() sdkmath.Uint { return sdkmath.ZeroUint() }

// New returns an amount from a uint64.
func New(v uint64) sdkmath.Uint { return sdkmath.NewUint(v) }

// Or0 turns an uninitialized Uint into zero.
func Or0(v sdkmath.Uint) sdkmath.Uint {
	if v == (sdkmath.Uint{}) {
		return sdkmath.ZeroUint()
	}
	return v
}

// MulDiv returns floor(a * b / c). Panics when c is zero or a*b overflows.
func MulDiv(a, b, c sdkmath.Uint) sdkmath.Uint {
	return a.Mul(b).Quo(c)
}

// MulDivUint64 is MulDiv with uint64 multiplier and divisor.
func MulDivUint64(a sdkmath.Uint, b, c uint64) sdkmath.Uint {
	return a.MulUint64(b).QuoUint64(c)
}

// SatSub returns max(0, a-b).
func SatSub(a, b sdkmath.Uint) sdkmath.Uint {
	if b.GTE(a) {
		return sdkmath.ZeroUint()
	}
	return a.Sub(b)
}

// Min returns the smaller of the given amounts.
func Min(first sdkmath.Uint, rest ...sdkmath.Uint) sdkmath.Uint {
	m := first
	for _, v := range rest {
		m = sdkmath.MinUint(m, v)
	}
	return m
}

// CeilDiv returns ceil(a / b) for a uint64 divisor.
func CeilDiv(a sdkmath.Uint, b uint64) sdkmath.Uint {
	q := a.QuoUint64(b)
	if !q.MulUint64(b).Equal(a) {
		q = q.AddUint64(1)
	}
	return q
}

// Format renders v as a decimal string with the given number of token decimals.
func Format(v sdkmath.Uint, decimals uint8) string {
	return ToDecimal(v, decimals).String()
}

// ToDecimal converts a base-unit amount into a decimal token amount.
func ToDecimal(v sdkmath.Uint, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(Or0(v).BigInt(), -int32(decimals))
}

// Parse converts a human-readable token amount ("12.5") into base units.
// Fractions finer than the token's precision are rejected.
func Parse(s string, decimals uint8) (sdkmath.Uint, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return sdkmath.Uint{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return sdkmath.Uint{}, fmt.Errorf("parse amount %q: negative", s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return sdkmath.Uint{}, fmt.Errorf("parse amount %q: more than %d decimals", s, decimals)
	}
	bi := scaled.BigInt()
	if bi.BitLen() > maxBits {
		return sdkmath.Uint{}, fmt.Errorf("parse amount %q: exceeds 256 bits", s)
	}
	return sdkmath.NewUintFromBigInt(bi), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string, decimals uint8) sdkmath.Uint {
	v, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseBase parses a base-unit integer string ("1000000000000000000").
func ParseBase(s string) (sdkmath.Uint, error) {
	bi, ok := new(big.Int).SetString(s, 10)
	if !ok || bi.Sign() < 0 {
		return sdkmath.Uint{}, fmt.Errorf("parse base amount %q: invalid", s)
	}
	if bi.BitLen() > maxBits {
		return sdkmath.Uint{}, fmt.Errorf("parse base amount %q: exceeds 256 bits", s)
	}
	return sdkmath.NewUintFromBigInt(bi), nil
}
