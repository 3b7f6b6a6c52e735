package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/chain"
	"farm-ledger/internal/config"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/eventbus"
	"farm-ledger/internal/logging"
	"farm-ledger/internal/node"
	"farm-ledger/internal/reporting"
	"farm-ledger/internal/storage/memory"
	"farm-ledger/internal/token"
)

// Check kinds.
const (
	checkBalance = "balance"
	checkStaked  = "staked"
	checkCarried = "carried"
	checkPending = "pending"
)

// Options configures a run.
type Options struct {
	Logger logrus.FieldLogger
}

// Result is a finished run: the report input and the event log it produced.
type Result struct {
	Input  reporting.Input
	Events *memory.EventStore
}

// Failed reports whether any step failed unexpectedly or any check failed.
func (res *Result) Failed() bool {
	for _, s := range res.Input.Steps {
		if s.Failed {
			return true
		}
	}
	for _, c := range res.Input.Checks {
		if !c.Pass {
			return true
		}
	}
	return false
}

type runner struct {
	sc      *Scenario
	n       *node.Node
	clock   *chain.ManualClock
	holders map[string]common.Address
	names   map[common.Address]string
	touched map[domain.PositionKey]bool
	log     logrus.FieldLogger
}

// Run executes sc against a fresh in-memory deployment. Step failures are
// recorded, not returned; the error is for a scenario that cannot start.
func Run(ctx context.Context, sc *Scenario, opts Options) (*Result, error) {
	log := logging.OrDiscard(opts.Logger).WithField("scenario", sc.Name)

	cfg, err := config.FromYAML(&sc.Config)
	if err != nil {
		return nil, err
	}
	cfg.Storage.UseMemory = true
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario config: %w", err)
	}

	clock := chain.NewManualClock(sc.Start.Block, sc.Start.Time)
	events := memory.NewEventStore()
	n, err := node.New(ctx, node.Options{
		Config:    cfg,
		Clock:     clock,
		State:     memory.NewStateStore(),
		Referrals: memory.NewReferralStore(),
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	persister := eventbus.NewPersister(n.Bus(), eventbus.PersisterOptions{Store: events, Logger: log})
	persisted := make(chan error, 1)
	go func() { persisted <- persister.Run(ctx) }()

	r := &runner{
		sc:      sc,
		n:       n,
		clock:   clock,
		holders: make(map[string]common.Address),
		names:   make(map[common.Address]string),
		touched: make(map[domain.PositionKey]bool),
		log:     log,
	}
	for name, hex := range sc.Holders {
		addr := common.HexToAddress(hex)
		r.holders[name] = addr
		r.names[addr] = name
	}

	in := reporting.Input{
		Scenario:   sc.Name,
		Decimals:   n.RewardDecimals(),
		StartBlock: clock.BlockNumber(),
		StartTime:  clock.Now(),
	}
	for i, st := range sc.Steps {
		in.Steps = append(in.Steps, r.step(i+1, st))
	}
	_ = n.Do(func() error {
		in.Pools = r.poolRows()
		in.Holders = r.holderRows()
		in.Checks = append(r.checks(), r.invariants())
		return nil
	})
	in.EndBlock = clock.BlockNumber()
	in.EndTime = clock.Now()

	n.Bus().Close()
	if err := <-persisted; err != nil {
		return nil, fmt.Errorf("persist events: %w", err)
	}
	return &Result{Input: in, Events: events}, nil
}

func (r *runner) step(index int, st Step) reporting.StepRow {
	r.clock.Advance(st.Advance.Blocks, st.Advance.Seconds)
	row := reporting.StepRow{
		Index:  index,
		Block:  r.clock.BlockNumber(),
		Time:   r.clock.Now(),
		Action: st.Action,
		Actor:  st.Actor,
		Pool:   domain.NoPool,
	}
	if usesPool(st.Action) {
		row.Pool = st.Pool
	}

	var out outcome
	err := r.n.Do(func() (err error) {
		out, err = actions[st.Action](r, st)
		return err
	})

	switch {
	case err == nil && st.ExpectError != "":
		row.Outcome = "error"
		row.Detail = fmt.Sprintf("expected error containing %q", st.ExpectError)
		row.Failed = true
	case err == nil:
		row.Outcome = out.status
		row.Detail = out.detail
	case st.ExpectError != "" && strings.Contains(err.Error(), st.ExpectError):
		row.Outcome = "rejected"
		row.Detail = err.Error()
	default:
		row.Outcome = "error"
		row.Detail = err.Error()
		row.Failed = true
	}
	if row.Failed {
		r.log.WithField("step", index).WithField("action", st.Action).Warn(row.Detail)
	}
	return row
}

func usesPool(action string) bool {
	switch action {
	case "deposit", "deposit_for", "harvest", "withdraw", "emergency_withdraw", "update_pool", "set_pool":
		return true
	}
	return false
}

// resolve maps a holder name, a reserved name or a hex address to an account.
func (r *runner) resolve(name string) (common.Address, error) {
	switch name {
	case "":
		return common.Address{}, errors.New("account is required")
	case adminActor:
		return r.n.Admin(), nil
	case farmActor:
		return r.n.Farm.Address(), nil
	case escrowActor:
		if r.n.Dripper == nil {
			return common.Address{}, errNoEscrow
		}
		return r.n.Dripper.Address(), nil
	}
	if addr, found := r.holders[name]; found {
		return addr, nil
	}
	addr, err := config.ParseAddress(name)
	if err != nil {
		return common.Address{}, fmt.Errorf("unknown account %q", name)
	}
	return addr, nil
}

// optional resolves name, mapping "" to the zero address.
func (r *runner) optional(name string) (common.Address, error) {
	if name == "" {
		return common.Address{}, nil
	}
	return r.resolve(name)
}

func (r *runner) actorOr(name string, fallback common.Address) (common.Address, error) {
	if name == "" {
		return fallback, nil
	}
	return r.resolve(name)
}

func (r *runner) ledger(symbol string) (*token.Ledger, error) {
	l, found := r.n.Token(symbol)
	if !found {
		return nil, fmt.Errorf("unknown token %q", symbol)
	}
	return l, nil
}

func (r *runner) stakeLedger(pid int) *token.Ledger {
	p, err := r.n.Farm.Pool(pid)
	if err != nil {
		return nil
	}
	l, _ := r.n.TokenAt(p.StakeToken)
	return l
}

func (r *runner) formatStake(pid int, v sdkmath.Uint) string {
	if l := r.stakeLedger(pid); l != nil {
		return amount.Format(v, l.Decimals())
	}
	return v.String()
}

func (r *runner) formatReward(v sdkmath.Uint) string {
	return amount.Format(v, r.n.RewardDecimals())
}

func (r *runner) poolRows() []reporting.PoolRow {
	var out []reporting.PoolRow
	for _, p := range r.n.Farm.Pools() {
		symbol := p.StakeToken.Hex()
		if l, found := r.n.TokenAt(p.StakeToken); found {
			symbol = l.Symbol()
		}
		out = append(out, reporting.PoolRow{
			ID:                p.ID,
			StakeToken:        symbol,
			Weight:            p.Weight,
			HarvestDelay:      p.HarvestDelay,
			TotalStaked:       r.formatStake(p.ID, p.TotalStaked),
			AccRewardPerShare: p.AccRewardPerShare.String(),
		})
	}
	return out
}

// holderRows lists every position a step touched.
func (r *runner) holderRows() []reporting.HolderRow {
	keys := make([]domain.PositionKey, 0, len(r.touched))
	for k := range r.touched {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PoolID != keys[j].PoolID {
			return keys[i].PoolID < keys[j].PoolID
		}
		return keys[i].Holder.Hex() < keys[j].Holder.Hex()
	})

	var out []reporting.HolderRow
	for _, k := range keys {
		pos, err := r.n.Farm.Position(k.PoolID, k.Holder)
		if err != nil {
			continue
		}
		gross, _, err := r.n.Farm.PendingReward(k.PoolID, k.Holder)
		if err != nil {
			continue
		}
		name := r.names[k.Holder]
		if name == "" {
			name = k.Holder.Hex()
		}
		out = append(out, reporting.HolderRow{
			Name:    name,
			Address: k.Holder.Hex(),
			Pool:    k.PoolID,
			Staked:  r.formatStake(k.PoolID, amount.Or0(pos.Amount)),
			Carried: r.formatReward(amount.Or0(pos.CarriedUnpaid)),
			Pending: r.formatReward(gross),
		})
	}
	return out
}

func (r *runner) checks() []reporting.CheckRow {
	out := make([]reporting.CheckRow, 0, len(r.sc.Checks))
	for _, c := range r.sc.Checks {
		out = append(out, r.check(c))
	}
	return out
}

// invariants verifies the farm's accounting after the last step.
func (r *runner) invariants() reporting.CheckRow {
	row := reporting.CheckRow{Name: "ledger invariants", Expected: "consistent", Actual: "consistent"}
	res := r.n.Verify()
	row.Pass = res.Match
	if !res.Match {
		msgs := make([]string, len(res.Divergences))
		for i, d := range res.Divergences {
			msgs[i] = d.String()
		}
		row.Actual = strings.Join(msgs, "; ")
	}
	return row
}

func (r *runner) check(c Check) reporting.CheckRow {
	row := reporting.CheckRow{Expected: c.Amount}
	if c.Kind == checkBalance {
		row.Name = fmt.Sprintf("%s %s balance", c.Holder, c.Token)
	} else {
		row.Name = fmt.Sprintf("%s %s in pool %d", c.Holder, c.Kind, c.Pool)
	}

	actual, decimals, err := r.measure(c)
	if err != nil {
		row.Actual = "error: " + err.Error()
		return row
	}
	actual = amount.Or0(actual)
	row.Actual = amount.Format(actual, decimals)
	want, err := amount.Parse(c.Amount, decimals)
	if err != nil {
		row.Actual += " (bad expectation: " + err.Error() + ")"
		return row
	}
	row.Pass = want.Equal(actual)
	return row
}

func (r *runner) measure(c Check) (sdkmath.Uint, uint8, error) {
	holder, err := r.resolve(c.Holder)
	if err != nil {
		return sdkmath.Uint{}, 0, err
	}
	if c.Kind == checkBalance {
		l, err := r.ledger(c.Token)
		if err != nil {
			return sdkmath.Uint{}, 0, err
		}
		return l.BalanceOf(holder), l.Decimals(), nil
	}

	pos, err := r.n.Farm.Position(c.Pool, holder)
	if err != nil {
		return sdkmath.Uint{}, 0, err
	}
	switch c.Kind {
	case checkStaked:
		l := r.stakeLedger(c.Pool)
		if l == nil {
			return sdkmath.Uint{}, 0, fmt.Errorf("pool %d has no known stake token", c.Pool)
		}
		return pos.Amount, l.Decimals(), nil
	case checkCarried:
		return pos.CarriedUnpaid, r.n.RewardDecimals(), nil
	default:
		gross, _, err := r.n.Farm.PendingReward(c.Pool, holder)
		return gross, r.n.RewardDecimals(), err
	}
}
