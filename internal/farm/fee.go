package farm

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
)

// splitFee splits a payout into fee and net. No fee is charged without a
// recipient.
func (f *Farm) splitFee(paid sdkmath.Uint) (fee, net sdkmath.Uint) {
	if f.cfg.FeeBips == 0 || f.cfg.FeeRecipient == (common.Address{}) {
		return amount.Zero(), paid
	}
	fee = amount.MulDivUint64(paid, f.cfg.FeeBips, amount.BipsDenominator)
	return fee, paid.Sub(fee)
}
