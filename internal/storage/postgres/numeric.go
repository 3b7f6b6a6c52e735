package postgres

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"farm-ledger/internal/amount"
)

// Amounts travel as decimal text and are cast to NUMERIC(78,0) in SQL;
// reads cast back to text.

func numeric(v sdkmath.Uint) string {
	return amount.Or0(v).String()
}

func parseNumeric(column, s string) (sdkmath.Uint, error) {
	v, err := sdkmath.ParseUint(s)
	if err != nil {
		return sdkmath.Uint{}, fmt.Errorf("parse %s %q: %w", column, s, err)
	}
	return v, nil
}
