package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/idhash"
	"farm-ledger/internal/storage"
)

// Input is the final ledger state of a run. Holder Paid, Fees, Harvests and
// Deferrals are ignored; the Generator derives them from events.
type Input struct {
	Scenario   string
	Decimals   uint8 // reward token decimals
	StartBlock uint64
	EndBlock   uint64
	StartTime  int64
	EndTime    int64
	Steps      []StepRow
	Pools      []PoolRow
	Holders    []HolderRow
	Checks     []CheckRow
}

// Generator produces reports from a run's final state and its event log.
type Generator struct {
	events storage.EventStore
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(events storage.EventStore) *Generator {
	return &Generator{
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report.
func (g *Generator) Generate(ctx context.Context, in Input) (*Report, error) {
	evs, err := g.events.GetByTimeRange(ctx, in.StartTime, in.EndTime)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	holders, err := g.holderRows(ctx, in)
	if err != nil {
		return nil, err
	}

	summary := Summary{
		Steps:       len(in.Steps),
		StartBlock:  in.StartBlock,
		EndBlock:    in.EndBlock,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Events:      len(evs),
		Fingerprint: idhash.ComputeLogDigest(evs),
	}
	for _, s := range in.Steps {
		if s.Failed {
			summary.FailedSteps++
		}
	}

	paid, fees, dripped := amount.Zero(), amount.Zero(), amount.Zero()
	for _, ev := range evs {
		switch ev.Kind {
		case domain.EventHarvest:
			paid = paid.Add(amount.Or0(ev.Amount))
		case domain.EventFee:
			fees = fees.Add(amount.Or0(ev.Amount))
		case domain.EventDrip:
			dripped = dripped.Add(amount.Or0(ev.Amount))
		case domain.EventHarvestDeferred:
			summary.Deferrals++
		}
	}
	summary.RewardsPaid = amount.Format(paid, in.Decimals)
	summary.FeesCollected = amount.Format(fees, in.Decimals)
	summary.Dripped = amount.Format(dripped, in.Decimals)

	allPassed := true
	for _, c := range in.Checks {
		if !c.Pass {
			allPassed = false
		}
	}

	return &Report{
		GeneratedAt:     g.now(),
		Scenario:        in.Scenario,
		Summary:         summary,
		Checks:          in.Checks,
		AllChecksPassed: allPassed,
		Pools:           in.Pools,
		Holders:         holders,
		EventCounts:     eventCounts(evs, in.Decimals),
		Steps:           in.Steps,
	}, nil
}

// holderRows fills each holder's settlement history from their events.
func (g *Generator) holderRows(ctx context.Context, in Input) ([]HolderRow, error) {
	out := make([]HolderRow, len(in.Holders))
	copy(out, in.Holders)

	byHolder := make(map[common.Address][]*domain.Event)
	for i := range out {
		addr := common.HexToAddress(out[i].Address)
		evs, ok := byHolder[addr]
		if !ok {
			var err error
			evs, err = g.events.GetByHolder(ctx, addr)
			if err != nil {
				return nil, fmt.Errorf("load events for %s: %w", out[i].Name, err)
			}
			byHolder[addr] = evs
		}

		paid, fees := amount.Zero(), amount.Zero()
		out[i].Harvests, out[i].Deferrals = 0, 0
		for _, ev := range evs {
			if ev.PoolID != out[i].Pool {
				continue
			}
			switch ev.Kind {
			case domain.EventHarvest:
				paid = paid.Add(amount.Or0(ev.Amount))
				fees = fees.Add(amount.Or0(ev.Fee))
				out[i].Harvests++
			case domain.EventHarvestDeferred:
				out[i].Deferrals++
			}
		}
		out[i].Paid = amount.Format(paid, in.Decimals)
		out[i].Fees = amount.Format(fees, in.Decimals)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pool != out[j].Pool {
			return out[i].Pool < out[j].Pool
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// eventCounts groups events by kind. Totals use the reward token's decimals
// for every kind.
func eventCounts(evs []*domain.Event, decimals uint8) []EventCountRow {
	type acc struct {
		count int
		total sdkmath.Uint
	}
	byKind := make(map[domain.EventKind]*acc)
	for _, ev := range evs {
		a, ok := byKind[ev.Kind]
		if !ok {
			a = &acc{total: amount.Zero()}
			byKind[ev.Kind] = a
		}
		a.count++
		a.total = a.total.Add(amount.Or0(ev.Amount))
	}

	out := make([]EventCountRow, 0, len(byKind))
	for kind, a := range byKind {
		out = append(out, EventCountRow{
			Kind:  string(kind),
			Count: a.count,
			Total: amount.Format(a.total, decimals),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
