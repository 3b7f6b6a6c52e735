package dripper

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

func (d *Dripper) onlyOwner(caller common.Address) error {
	if caller != d.owner {
		return ErrUnauthorized
	}
	return nil
}

// SetRatePerSecond accrues at the old rate up to now, then switches rate.
func (d *Dripper) SetRatePerSecond(caller common.Address, rate sdkmath.Uint) error {
	if err := d.onlyOwner(caller); err != nil {
		return err
	}
	now := d.clock.Now()
	d.applyAccrual(now)
	if rate.Equal(d.state.CurrentRatePerSecond) {
		return nil
	}
	d.state.CurrentRatePerSecond = rate
	d.emit(domain.Event{Kind: domain.EventRateApplied, Amount: rate, Timestamp: now})
	d.log.WithField("rate", rate.String()).Info("rate set")
	return nil
}

// SetWeeklyAmount sets the rate to ceil(weekly / SecondsPerWeek).
func (d *Dripper) SetWeeklyAmount(caller common.Address, weekly sdkmath.Uint) error {
	return d.SetRatePerSecond(caller, amount.CeilDiv(weekly, SecondsPerWeek))
}

// SetRecipient changes where drips are sent.
func (d *Dripper) SetRecipient(caller, recipient common.Address) error {
	if err := d.onlyOwner(caller); err != nil {
		return err
	}
	if recipient == (common.Address{}) {
		return ErrZeroAddress
	}
	d.recipient = recipient
	return nil
}

// SetMaxPerCall changes the per-drip cap. Zero removes the cap.
func (d *Dripper) SetMaxPerCall(caller common.Address, max sdkmath.Uint) error {
	if err := d.onlyOwner(caller); err != nil {
		return err
	}
	d.maxPerCall = max
	return nil
}

// TransferOwnership hands the owner role to another account.
func (d *Dripper) TransferOwnership(caller, newOwner common.Address) error {
	if err := d.onlyOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return ErrZeroAddress
	}
	d.owner = newOwner
	return nil
}
