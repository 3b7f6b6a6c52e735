package node

import (
	"context"
	"fmt"
	"time"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/observability"
)

type snapshots struct {
	farm   domain.FarmSnapshot
	escrow *domain.EscrowSnapshot
	tokens []domain.TokenSnapshot
}

func (n *Node) capture() snapshots {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := snapshots{farm: n.Farm.Snapshot()}
	if n.Dripper != nil {
		e := n.Dripper.Snapshot()
		s.escrow = &e
	}
	for _, l := range n.Tokens() {
		s.tokens = append(s.tokens, l.Snapshot())
	}
	return s
}

// Save writes a consistent snapshot of every ledger. The lock is held only
// while capturing, not while writing.
func (n *Node) Save(ctx context.Context) error {
	s := n.capture()

	if err := n.state.SaveTokenState(ctx, s.tokens); err != nil {
		observability.RecordStoreWriteError("token_state")
		return fmt.Errorf("save token state: %w", err)
	}
	if s.escrow != nil {
		if err := n.state.SaveEscrowState(ctx, s.escrow); err != nil {
			observability.RecordStoreWriteError("escrow_state")
			return fmt.Errorf("save escrow state: %w", err)
		}
	}
	if err := n.state.SaveFarmState(ctx, &s.farm); err != nil {
		observability.RecordStoreWriteError("farm_state")
		return fmt.Errorf("save farm state: %w", err)
	}
	observability.RecordSnapshot(n.clock.Now())
	return nil
}

// RunSnapshots saves every interval until ctx is cancelled, then saves once
// more. interval <= 0 only saves at shutdown.
func (n *Node) RunSnapshots(ctx context.Context, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			if err := n.Save(context.WithoutCancel(ctx)); err != nil {
				n.log.WithError(err).Error("final snapshot failed")
				return err
			}
			n.log.Info("final snapshot saved")
			return ctx.Err()
		case <-tick:
			if err := n.Save(ctx); err != nil {
				n.log.WithError(err).Warn("snapshot failed")
			}
		}
	}
}

// UpdateMetrics refreshes the balance gauges. Callers hold the lock.
func (n *Node) UpdateMetrics() {
	pending := amount.Zero()
	if n.Dripper != nil {
		if p, err := n.Dripper.PendingAccrued(); err == nil {
			pending = p
		}
	}
	observability.UpdateBalances(n.Farm.AvailableRewards(), n.Farm.TotalRewardTokenStaked(), pending)
}
