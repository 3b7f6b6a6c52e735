package domain

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// EventKind names a ledger transition.
type EventKind string

// Event kinds
const (
	EventDeposit           EventKind = "deposit"
	EventWithdraw          EventKind = "withdraw"
	EventHarvest           EventKind = "harvest"
	EventHarvestDeferred   EventKind = "harvest_deferred"
	EventEmergencyWithdraw EventKind = "emergency_withdraw"
	EventFee               EventKind = "fee"
	EventTopUp             EventKind = "top_up"
	EventPoolAdded         EventKind = "pool_added"
	EventPoolUpdated       EventKind = "pool_updated"
	EventPaused            EventKind = "paused"
	EventReferral          EventKind = "referral"
	EventRateApplied       EventKind = "rate_applied"
	EventRateScheduled     EventKind = "rate_scheduled"
	EventScheduleCleared   EventKind = "schedule_cleared"
	EventDrip              EventKind = "drip"
)

// NoPool marks events not tied to a pool.
const NoPool = -1

// Event is one observable ledger transition.
type Event struct {
	Seq       uint64 // assigned by the event bus
	Kind      EventKind
	PoolID    int
	Holder    common.Address
	Amount    sdkmath.Uint
	Fee       sdkmath.Uint
	Block     uint64
	Timestamp int64
	Detail    string
}

// EventSink receives ledger events. Emit must not fail the ledger operation.
type EventSink interface {
	Emit(ev Event)
}

// DiscardEvents is an EventSink that drops everything.
type DiscardEvents struct{}

// Emit implements EventSink.
func (DiscardEvents) Emit(Event) {}
