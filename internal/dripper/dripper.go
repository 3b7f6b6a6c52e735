// Package dripper implements the reward escrow that streams a scheduled,
// per-second rate of reward tokens to a single recipient (the farm).
package dripper

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

// SecondsPerWeek is the period SetWeeklyAmount spreads its target over.
const SecondsPerWeek = 7 * 24 * 60 * 60

// Options configures a Dripper.
type Options struct {
	Address   common.Address // account holding the escrowed tokens
	Owner     common.Address
	Recipient common.Address
	Token     token.Token
	Clock     chain.Clock

	// MaxPerCall caps a single drip. Zero means uncapped.
	MaxPerCall sdkmath.Uint
	// RatePerSecond is the rate in effect from construction time.
	RatePerSecond sdkmath.Uint

	Events domain.EventSink
	Logger logrus.FieldLogger
}

// Dripper is the reward escrow. It is not safe for concurrent use; callers
// serialize access the same way they serialize the farm.
type Dripper struct {
	address   common.Address
	owner     common.Address
	recipient common.Address
	token     token.Token
	clock     chain.Clock

	maxPerCall sdkmath.Uint
	state      domain.EscrowState
	schedule   []domain.RateChange

	dripping atomic.Bool

	events domain.EventSink
	log    logrus.FieldLogger
}

// New creates a Dripper whose accrual starts at the clock's current time.
func New(opts Options) *Dripper {
	events := opts.Events
	if events == nil {
		events = domain.DiscardEvents{}
	}
	return &Dripper{
		address:    opts.Address,
		owner:      opts.Owner,
		recipient:  opts.Recipient,
		token:      opts.Token,
		clock:      opts.Clock,
		maxPerCall: amount.Or0(opts.MaxPerCall),
		state: domain.EscrowState{
			LastAccrualTime:      opts.Clock.Now(),
			CurrentRatePerSecond: amount.Or0(opts.RatePerSecond),
			AccruedUnsent:        amount.Zero(),
		},
		events: events,
		log:    logging.OrDiscard(opts.Logger).WithField("component", "dripper"),
	}
}

// Address returns the escrow account.
func (d *Dripper) Address() common.Address { return d.address }

// Recipient returns the configured recipient.
func (d *Dripper) Recipient() common.Address { return d.recipient }

// Owner returns the owner.
func (d *Dripper) Owner() common.Address { return d.owner }

// MaxPerCall returns the per-drip cap (zero when uncapped).
func (d *Dripper) MaxPerCall() sdkmath.Uint { return d.maxPerCall }

// State returns a copy of the accrual state.
func (d *Dripper) State() domain.EscrowState { return d.state }

// CurrentRate returns the rate applied at the last accrual.
func (d *Dripper) CurrentRate() sdkmath.Uint { return d.state.CurrentRatePerSecond }

// Schedule returns a copy of the pending rate changes.
func (d *Dripper) Schedule() []domain.RateChange {
	out := make([]domain.RateChange, len(d.schedule))
	copy(out, d.schedule)
	return out
}

// Balance returns the escrowed token balance.
func (d *Dripper) Balance() sdkmath.Uint {
	return d.token.BalanceOf(d.address)
}

// PendingAccrued returns the amount a drip made now could send, before the
// balance and per-call caps.
func (d *Dripper) PendingAccrued() (sdkmath.Uint, error) {
	acc := d.PreviewAccrual(d.clock.Now())
	return d.state.AccruedUnsent.Add(acc.Added), nil
}

// Drip accrues up to now and transfers min(accrued, balance, cap) to the recipient.
func (d *Dripper) Drip() (sdkmath.Uint, error) {
	if !d.dripping.CompareAndSwap(false, true) {
		return amount.Zero(), ErrDripInProgress
	}
	defer d.dripping.Store(false)

	if d.recipient == (common.Address{}) {
		return amount.Zero(), ErrNoRecipient
	}

	now := d.clock.Now()
	d.applyAccrual(now)

	send := amount.Min(d.state.AccruedUnsent, d.token.BalanceOf(d.address))
	if !d.maxPerCall.IsZero() {
		send = amount.Min(send, d.maxPerCall)
	}
	if send.IsZero() {
		return send, nil
	}

	d.state.AccruedUnsent = d.state.AccruedUnsent.Sub(send)
	if err := token.SafeTransfer(d.token, d.address, d.recipient, send); err != nil {
		d.state.AccruedUnsent = d.state.AccruedUnsent.Add(send)
		return amount.Zero(), fmt.Errorf("drip: %w", err)
	}

	d.emit(domain.Event{Kind: domain.EventDrip, Holder: d.recipient, Amount: send, Timestamp: now})
	d.log.WithFields(logrus.Fields{"amount": send.String(), "recipient": d.recipient.Hex()}).Debug("dripped")
	return send, nil
}

func (d *Dripper) emit(ev domain.Event) {
	ev.PoolID = domain.NoPool
	if ev.Amount == (sdkmath.Uint{}) {
		ev.Amount = amount.Zero()
	}
	if ev.Fee == (sdkmath.Uint{}) {
		ev.Fee = amount.Zero()
	}
	ev.Block = d.clock.BlockNumber()
	d.events.Emit(ev)
}

// Snapshot returns the persisted form of the dripper.
func (d *Dripper) Snapshot() domain.EscrowSnapshot {
	return domain.EscrowSnapshot{
		State:      d.state,
		Schedule:   d.Schedule(),
		Recipient:  d.recipient.Hex(),
		Owner:      d.owner.Hex(),
		MaxPerCall: d.maxPerCall,
	}
}

// Restore replaces the dripper state with a snapshot.
func (d *Dripper) Restore(snap domain.EscrowSnapshot) {
	d.state = domain.EscrowState{
		LastAccrualTime:      snap.State.LastAccrualTime,
		CurrentRatePerSecond: amount.Or0(snap.State.CurrentRatePerSecond),
		AccruedUnsent:        amount.Or0(snap.State.AccruedUnsent),
	}
	d.schedule = make([]domain.RateChange, len(snap.Schedule))
	copy(d.schedule, snap.Schedule)
	d.recipient = common.HexToAddress(snap.Recipient)
	d.owner = common.HexToAddress(snap.Owner)
	d.maxPerCall = amount.Or0(snap.MaxPerCall)
}
