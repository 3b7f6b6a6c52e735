// Package farm implements the block-driven reward ledger: pools with
// allocation weights, per-holder positions reconciled against a cumulative
// reward index, harvest delays, a capped performance fee, and an automation
// hook that tops the reward balance up from an escrow.
//
// A Farm is a sequential state machine. Every exported operation runs to
// completion before the next one starts; callers that share a Farm across
// goroutines serialize access themselves. Re-entry from inside an operation
// (for example from a token transfer callback) fails with ErrReentrant.
package farm

import (
	"fmt"
	"sync/atomic"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/chain"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/logging"
	"farm-ledger/internal/token"
)

const (
	// MaxFeeBips is the hard ceiling on the performance fee (5.00%).
	MaxFeeBips uint64 = 500

	// MaxHarvestDelay bounds a pool's harvest delay.
	MaxHarvestDelay int64 = 14 * 24 * 60 * 60
)

// Escrow is the reward source the automation pulls top-ups from.
type Escrow interface {
	PendingAccrued() (sdkmath.Uint, error)
	Drip() (sdkmath.Uint, error)
}

// ReferralRecorder records who referred a depositor. It reports false when
// the holder already had a referrer.
type ReferralRecorder interface {
	RecordReferral(holder, referrer common.Address) (bool, error)
}

// EscrowConfig wires the automation to an escrow.
type EscrowConfig struct {
	Escrow          Escrow         // nil disables the automation
	Address         common.Address // the escrow's own account
	CooldownSeconds int64          // minimum time between top-ups
	LowWaterDays    uint64         // runway target in days of emission
	BlocksPerDay    uint64
	MinDrip         sdkmath.Uint // skip top-ups smaller than this
}

// Config is the mutable configuration owned by a Farm.
type Config struct {
	Admin          common.Address
	Pauser         common.Address
	Paused         bool
	FeeBips        uint64
	FeeRecipient   common.Address
	AutoCompounder common.Address
	Escrow         EscrowConfig
}

// Options configures a new Farm.
type Options struct {
	// Address is the farm's own account: it holds stake and reward tokens.
	Address     common.Address
	RewardToken token.Token
	Clock       chain.Clock
	StartBlock  uint64

	Admin  common.Address
	Pauser common.Address

	// RewardPerBlock configures a FixedEmission unless Emission is set.
	RewardPerBlock sdkmath.Uint
	Emission       EmissionSource

	FeeBips        uint64
	FeeRecipient   common.Address
	AutoCompounder common.Address
	Escrow         EscrowConfig

	Referrals ReferralRecorder
	Events    domain.EventSink
	Logger    logrus.FieldLogger
}

// Farm is the reward ledger.
type Farm struct {
	self        common.Address
	rewardToken token.Token
	clock       chain.Clock
	startBlock  uint64
	emission    EmissionSource

	cfg Config

	pools       []*domain.Pool
	stakeTokens []token.Token
	positions   map[domain.PositionKey]*domain.UserPosition

	totalAllocWeight       uint64
	totalRewardTokenStaked sdkmath.Uint
	lastTopUpTime          int64

	referrals ReferralRecorder
	events    domain.EventSink
	log       logrus.FieldLogger

	entered atomic.Bool
}

// New creates an empty Farm.
func New(opts Options) (*Farm, error) {
	if opts.Address == (common.Address{}) || opts.Admin == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if opts.RewardToken == nil || opts.Clock == nil {
		return nil, fmt.Errorf("%w: reward token and clock are required", ErrInvalidConfig)
	}
	if opts.FeeBips > MaxFeeBips {
		return nil, ErrFeeTooHigh
	}
	if err := validateEscrowConfig(opts.Escrow); err != nil {
		return nil, err
	}

	emission := opts.Emission
	if emission == nil {
		emission = FixedEmission{PerBlock: amount.Or0(opts.RewardPerBlock)}
	}
	events := opts.Events
	if events == nil {
		events = domain.DiscardEvents{}
	}
	esc := opts.Escrow
	esc.MinDrip = amount.Or0(esc.MinDrip)

	return &Farm{
		self:        opts.Address,
		rewardToken: opts.RewardToken,
		clock:       opts.Clock,
		startBlock:  opts.StartBlock,
		emission:    emission,
		cfg: Config{
			Admin:          opts.Admin,
			Pauser:         opts.Pauser,
			FeeBips:        opts.FeeBips,
			FeeRecipient:   opts.FeeRecipient,
			AutoCompounder: opts.AutoCompounder,
			Escrow:         esc,
		},
		positions:              make(map[domain.PositionKey]*domain.UserPosition),
		totalRewardTokenStaked: amount.Zero(),
		referrals:              opts.Referrals,
		events:                 events,
		log:                    logging.OrDiscard(opts.Logger).WithField("component", "farm"),
	}, nil
}

// Address returns the farm's account.
func (f *Farm) Address() common.Address { return f.self }

// RewardToken returns the reward token.
func (f *Farm) RewardToken() token.Token { return f.rewardToken }

func (f *Farm) enter() error {
	if !f.entered.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	return nil
}

func (f *Farm) exit() { f.entered.Store(false) }

func (f *Farm) emit(kind domain.EventKind, pid int, holder common.Address, amt, fee sdkmath.Uint, detail string) {
	f.events.Emit(domain.Event{
		Kind:      kind,
		PoolID:    pid,
		Holder:    holder,
		Amount:    amount.Or0(amt),
		Fee:       amount.Or0(fee),
		Block:     f.clock.BlockNumber(),
		Timestamp: f.clock.Now(),
		Detail:    detail,
	})
}
