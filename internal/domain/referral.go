package domain

import "github.com/ethereum/go-ethereum/common"

// Referral links a holder to the account that referred them.
type Referral struct {
	Holder     common.Address
	Referrer   common.Address
	RecordedAt int64 // unix seconds
}
