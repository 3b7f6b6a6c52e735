package farm

import (
	"fmt"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

func (f *Farm) onlyAdmin(caller common.Address) error {
	if caller != f.cfg.Admin {
		return ErrUnauthorized
	}
	return nil
}

func validateEscrowConfig(c EscrowConfig) error {
	if c.Escrow == nil {
		return nil
	}
	if c.Address == (common.Address{}) {
		return fmt.Errorf("%w: escrow address", ErrZeroAddress)
	}
	if c.BlocksPerDay == 0 || c.CooldownSeconds < 0 {
		return fmt.Errorf("%w: escrow blocks per day and cooldown", ErrInvalidConfig)
	}
	return nil
}

// SetRewardPerBlock accrues every pool at the old rate and switches to a
// fixed emission of perBlock.
func (f *Farm) SetRewardPerBlock(caller common.Address, perBlock sdkmath.Uint) error {
	return f.SetEmissionSource(caller, FixedEmission{PerBlock: amount.Or0(perBlock)})
}

// SetEmissionSource accrues every pool at the old rate and switches sources.
func (f *Farm) SetEmissionSource(caller common.Address, src EmissionSource) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("%w: nil emission source", ErrInvalidConfig)
	}
	f.massUpdate(caller)
	f.emission = src
	f.log.WithField("reward_per_block", src.RewardPerBlock().String()).Info("emission changed")
	return nil
}

// SetFee sets the performance fee. A zero recipient disables the fee.
func (f *Farm) SetFee(caller common.Address, bips uint64, recipient common.Address) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	if bips > MaxFeeBips {
		return fmt.Errorf("%w: %d > %d", ErrFeeTooHigh, bips, MaxFeeBips)
	}
	f.cfg.FeeBips = bips
	f.cfg.FeeRecipient = recipient
	return nil
}

// SetEscrow replaces the automation config. A nil Escrow disables top-ups.
func (f *Farm) SetEscrow(caller common.Address, c EscrowConfig) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	if err := validateEscrowConfig(c); err != nil {
		return err
	}
	c.MinDrip = amount.Or0(c.MinDrip)
	f.cfg.Escrow = c
	return nil
}

// SetAutoCompounder designates the integration allowed to DepositFor.
func (f *Farm) SetAutoCompounder(caller, compounder common.Address) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	f.cfg.AutoCompounder = compounder
	return nil
}

// SetPauser hands the pause role to pauser.
func (f *Farm) SetPauser(caller, pauser common.Address) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	if pauser == (common.Address{}) {
		return ErrZeroAddress
	}
	f.cfg.Pauser = pauser
	return nil
}

// TransferAdmin hands the admin role to admin.
func (f *Farm) TransferAdmin(caller, admin common.Address) error {
	if err := f.onlyAdmin(caller); err != nil {
		return err
	}
	if admin == (common.Address{}) {
		return ErrZeroAddress
	}
	f.cfg.Admin = admin
	return nil
}

// SetPaused toggles the pause. Pools are accrued up to the toggle so that
// no blocks from before a pause are lost and none from during it accrue.
func (f *Farm) SetPaused(caller common.Address, paused bool) error {
	if caller == (common.Address{}) || caller != f.cfg.Pauser {
		return ErrUnauthorized
	}
	if f.cfg.Paused == paused {
		return nil
	}
	f.massUpdate(caller)
	f.cfg.Paused = paused
	f.log.WithField("paused", paused).Warn("pause toggled")
	f.emit(domain.EventPaused, domain.NoPool, caller, amount.Zero(), amount.Zero(), strconv.FormatBool(paused))
	return nil
}
