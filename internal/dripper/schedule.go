package dripper

import (
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

// Accrual is the result of walking the schedule up to a point in time.
type Accrual struct {
	Added           sdkmath.Uint // accrued since LastAccrualTime
	LastAccrualTime int64        // new accrual marker
	RatePerSecond   sdkmath.Uint // rate in effect going forward
	Applied         int          // schedule entries consumed
}

// PreviewAccrual computes what applyAccrual(asOf) would add. It does not mutate.
func (d *Dripper) PreviewAccrual(asOf int64) Accrual {
	acc := Accrual{
		Added:           amount.Zero(),
		LastAccrualTime: d.state.LastAccrualTime,
		RatePerSecond:   d.state.CurrentRatePerSecond,
	}
	if asOf < d.state.LastAccrualTime {
		return acc
	}

	segmentStart := d.state.LastAccrualTime
	rate := d.state.CurrentRatePerSecond
	for _, rc := range d.schedule {
		if rc.EffectiveAt > asOf {
			break
		}
		at := rc.EffectiveAt
		if at < segmentStart {
			at = segmentStart
		}
		acc.Added = acc.Added.Add(rate.MulUint64(uint64(at - segmentStart)))
		rate = rc.RatePerSecond
		segmentStart = at
		acc.Applied++
	}
	acc.Added = acc.Added.Add(rate.MulUint64(uint64(asOf - segmentStart)))
	acc.LastAccrualTime = asOf
	acc.RatePerSecond = rate
	return acc
}

// applyAccrual folds the preview into the state and drops consumed entries.
func (d *Dripper) applyAccrual(asOf int64) {
	if asOf < d.state.LastAccrualTime {
		return
	}
	acc := d.PreviewAccrual(asOf)

	d.state.AccruedUnsent = d.state.AccruedUnsent.Add(acc.Added)
	d.state.LastAccrualTime = acc.LastAccrualTime
	if acc.Applied > 0 {
		d.schedule = d.schedule[acc.Applied:]
	}
	if !acc.RatePerSecond.Equal(d.state.CurrentRatePerSecond) {
		d.state.CurrentRatePerSecond = acc.RatePerSecond
		d.emit(domain.Event{Kind: domain.EventRateApplied, Amount: acc.RatePerSecond, Timestamp: asOf})
		d.log.WithField("rate", acc.RatePerSecond.String()).Info("rate applied")
	}
}

// ScheduleRateChange queues a rate transition at effectiveAt.
func (d *Dripper) ScheduleRateChange(caller common.Address, effectiveAt int64, rate sdkmath.Uint) error {
	if err := d.onlyOwner(caller); err != nil {
		return err
	}
	now := d.clock.Now()
	if effectiveAt < now {
		return ErrScheduleInPast
	}
	if n := len(d.schedule); n > 0 && effectiveAt <= d.schedule[n-1].EffectiveAt {
		return ErrScheduleNotIncreasing
	}
	d.schedule = append(d.schedule, domain.RateChange{EffectiveAt: effectiveAt, RatePerSecond: rate})

	d.emit(domain.Event{Kind: domain.EventRateScheduled, Amount: rate, Timestamp: now})
	d.log.WithFields(logrus.Fields{"effective_at": effectiveAt, "rate": rate.String()}).Info("rate change scheduled")
	return nil
}

// ClearSchedule drops all pending rate changes. Accrued balance, the accrual
// marker and the current rate are untouched.
func (d *Dripper) ClearSchedule(caller common.Address) error {
	if err := d.onlyOwner(caller); err != nil {
		return err
	}
	n := len(d.schedule)
	d.schedule = nil
	d.emit(domain.Event{Kind: domain.EventScheduleCleared, Timestamp: d.clock.Now(), Detail: "dropped=" + strconv.Itoa(n)})
	return nil
}
