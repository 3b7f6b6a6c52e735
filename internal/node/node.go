// Package node assembles the devnet token ledgers, the dripper and the farm
// from configuration, restores them from a StateStore and persists snapshots.
package node

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/chain"
	"farm-ledger/internal/config"
	"farm-ledger/internal/dripper"
	"farm-ledger/internal/eventbus"
	"farm-ledger/internal/farm"
	"farm-ledger/internal/logging"
	"farm-ledger/internal/referral"
	"farm-ledger/internal/storage"
	"farm-ledger/internal/token"
	"farm-ledger/internal/verification"
)

// Options contains configuration for creating a Node.
type Options struct {
	Config    *config.Config
	Clock     chain.Clock
	State     storage.StateStore
	Referrals storage.ReferralStore // optional
	Events    storage.EventStore    // optional; resumes event numbering
	Logger    logrus.FieldLogger
}

// Node owns every ledger of one deployment. Ledger calls must hold the
// node lock (see Do); the ledgers themselves are not safe for concurrent use.
type Node struct {
	mu sync.Mutex

	cfg    *config.Config
	clock  chain.Clock
	state  storage.StateStore
	bus    *eventbus.Bus
	log    logrus.FieldLogger
	admin  common.Address
	tokens map[string]*token.Ledger // by symbol
	byAddr map[common.Address]*token.Ledger

	Farm      *farm.Farm
	Dripper   *dripper.Dripper // nil when no escrow is configured
	Referrals *referral.Recorder
}

// New builds the ledgers. Stored state wins over config for everything the
// snapshots carry; config seeds a fresh deployment.
func New(ctx context.Context, opts Options) (*Node, error) {
	cfg := opts.Config
	if cfg == nil || opts.Clock == nil || opts.State == nil {
		return nil, errors.New("node: config, clock and state store are required")
	}
	n := &Node{
		cfg:    cfg,
		clock:  opts.Clock,
		state:  opts.State,
		bus:    eventbus.New(cfg.Server.EventHistory),
		log:    logging.OrDiscard(opts.Logger).WithField("component", "node"),
		tokens: make(map[string]*token.Ledger),
		byAddr: make(map[common.Address]*token.Ledger),
	}

	var err error
	if n.admin, err = config.ParseAddress(cfg.Farm.Admin); err != nil {
		return nil, fmt.Errorf("farm.admin: %w", err)
	}
	if opts.Events != nil {
		seq, err := opts.Events.MaxSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("resume event sequence: %w", err)
		}
		n.bus.SetSeq(seq)
	}

	fresh, err := n.buildTokens(ctx)
	if err != nil {
		return nil, err
	}
	if err := n.buildDripper(ctx, fresh); err != nil {
		return nil, err
	}
	if opts.Referrals != nil {
		n.Referrals = referral.NewRecorder(opts.Referrals, n.clock)
	}
	if err := n.buildFarm(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

// buildTokens creates the ledgers and restores their balances. It reports
// whether no token state was stored.
func (n *Node) buildTokens(ctx context.Context) (bool, error) {
	for _, tc := range n.cfg.Tokens {
		addr, err := config.ParseAddress(tc.Address)
		if err != nil {
			return false, fmt.Errorf("token %s: %w", tc.Symbol, err)
		}
		l := token.NewLedger(token.LedgerOptions{
			Address:  addr,
			Symbol:   tc.Symbol,
			Decimals: tc.Decimals,
			FeeBips:  tc.TransferFeeBips,
		})
		n.tokens[tc.Symbol] = l
		n.byAddr[addr] = l
	}

	stored, err := n.state.LoadTokenState(ctx)
	if err != nil {
		return false, fmt.Errorf("load token state: %w", err)
	}
	for _, snap := range stored {
		l, ok := n.byAddr[common.HexToAddress(snap.Address)]
		if !ok {
			n.log.WithField("token", snap.Address).Warn("stored token is not configured, skipping")
			continue
		}
		l.Restore(snap)
	}
	return len(stored) == 0, nil
}

func (n *Node) buildDripper(ctx context.Context, fresh bool) error {
	dc := n.cfg.Dripper
	if dc.Address == "" {
		return nil
	}
	addr, err := config.ParseAddress(dc.Address)
	if err != nil {
		return fmt.Errorf("dripper.address: %w", err)
	}
	farmAddr, err := config.ParseAddress(n.cfg.Farm.Address)
	if err != nil {
		return fmt.Errorf("farm.address: %w", err)
	}
	owner, err := config.OptionalAddress(dc.Owner)
	if err != nil {
		return fmt.Errorf("dripper.owner: %w", err)
	}
	if owner == (common.Address{}) {
		owner = n.admin
	}
	decimals := n.cfg.RewardDecimals()
	maxPerCall, err := config.TokenAmount(dc.MaxPerCall, decimals)
	if err != nil {
		return fmt.Errorf("dripper.max_per_call: %w", err)
	}
	rate, err := config.BaseAmount(dc.RatePerSecond)
	if err != nil {
		return fmt.Errorf("dripper.rate_per_second: %w", err)
	}

	d := dripper.New(dripper.Options{
		Address:       addr,
		Owner:         owner,
		Recipient:     farmAddr,
		Token:         n.rewardLedger(),
		Clock:         n.clock,
		MaxPerCall:    maxPerCall,
		RatePerSecond: rate,
		Events:        n.bus,
		Logger:        n.log,
	})

	snap, err := n.state.LoadEscrowState(ctx)
	switch {
	case err == nil:
		d.Restore(*snap)
	case errors.Is(err, storage.ErrNotFound):
		if err := n.seedDripper(d, owner, fresh); err != nil {
			return err
		}
	default:
		return fmt.Errorf("load escrow state: %w", err)
	}
	n.Dripper = d
	return nil
}

func (n *Node) seedDripper(d *dripper.Dripper, owner common.Address, fresh bool) error {
	dc := n.cfg.Dripper
	decimals := n.cfg.RewardDecimals()

	if dc.WeeklyAmount != "" {
		weekly, err := config.TokenAmount(dc.WeeklyAmount, decimals)
		if err != nil {
			return fmt.Errorf("dripper.weekly_amount: %w", err)
		}
		if err := d.SetWeeklyAmount(owner, weekly); err != nil {
			return fmt.Errorf("set weekly amount: %w", err)
		}
	}
	for i, rc := range dc.Schedule {
		rate, err := config.BaseAmount(rc.RatePerSecond)
		if err != nil {
			return fmt.Errorf("dripper.schedule[%d]: %w", i, err)
		}
		if err := d.ScheduleRateChange(owner, rc.EffectiveAt, rate); err != nil {
			return fmt.Errorf("dripper.schedule[%d]: %w", i, err)
		}
	}
	if fresh && dc.Funding != "" {
		funding, err := config.TokenAmount(dc.Funding, decimals)
		if err != nil {
			return fmt.Errorf("dripper.funding: %w", err)
		}
		if err := n.rewardLedger().Mint(d.Address(), funding); err != nil {
			return fmt.Errorf("fund escrow: %w", err)
		}
	}
	return nil
}

func (n *Node) buildFarm(ctx context.Context) error {
	fc := n.cfg.Farm
	addr, err := config.ParseAddress(fc.Address)
	if err != nil {
		return fmt.Errorf("farm.address: %w", err)
	}
	opts := farm.Options{
		Address:     addr,
		RewardToken: n.rewardLedger(),
		Clock:       n.clock,
		StartBlock:  fc.StartBlock,
		Admin:       n.admin,
		FeeBips:     fc.FeeBips,
		Events:      n.bus,
		Logger:      n.log,
	}
	if opts.Pauser, err = config.OptionalAddress(fc.Pauser); err != nil {
		return fmt.Errorf("farm.pauser: %w", err)
	}
	if opts.FeeRecipient, err = config.OptionalAddress(fc.FeeRecipient); err != nil {
		return fmt.Errorf("farm.fee_recipient: %w", err)
	}
	if opts.AutoCompounder, err = config.OptionalAddress(fc.AutoCompounder); err != nil {
		return fmt.Errorf("farm.auto_compounder: %w", err)
	}
	if n.Referrals != nil {
		opts.Referrals = n.Referrals
	}
	if opts.Escrow, err = n.escrowConfig(); err != nil {
		return err
	}

	var apr *farm.TargetAPREmission
	if fc.TargetAPRBips > 0 {
		apr = farm.NewTargetAPREmission(nil, fc.TargetAPRBips, fc.BlocksPerYear)
		opts.Emission = apr
	}

	snap, err := n.state.LoadFarmState(ctx)
	switch {
	case err == nil:
		n.Farm, err = farm.Restore(opts, *snap, n.resolve)
		if err != nil {
			return fmt.Errorf("restore farm: %w", err)
		}
		for _, d := range verification.CompareFarmSnapshots(*snap, n.Farm.Snapshot()) {
			n.log.WithField("field", d.Field).WithField("stored", d.Expected).WithField("restored", d.Actual).Warn("restored farm differs from snapshot")
		}
		n.log.WithField("pools", len(snap.Pools)).WithField("positions", len(snap.Positions)).Info("farm restored")
	case errors.Is(err, storage.ErrNotFound):
		if opts.RewardPerBlock, err = config.TokenAmount(fc.RewardPerBlock, n.cfg.RewardDecimals()); err != nil {
			return fmt.Errorf("farm.reward_per_block: %w", err)
		}
		if n.Farm, err = farm.New(opts); err != nil {
			return fmt.Errorf("create farm: %w", err)
		}
		if err := n.seedPools(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("load farm state: %w", err)
	}

	if apr != nil {
		prices, err := n.stakePrices()
		if err != nil {
			return err
		}
		apr.Oracle = farm.StakeValueOracle{Farm: n.Farm, Prices: prices}
	}
	return nil
}

func (n *Node) escrowConfig() (farm.EscrowConfig, error) {
	ac := n.cfg.Automation
	if !ac.Enabled || n.Dripper == nil {
		return farm.EscrowConfig{}, nil
	}
	minDrip, err := config.TokenAmount(ac.MinDrip, n.cfg.RewardDecimals())
	if err != nil {
		return farm.EscrowConfig{}, fmt.Errorf("automation.min_drip: %w", err)
	}
	return farm.EscrowConfig{
		Escrow:          n.Dripper,
		Address:         n.Dripper.Address(),
		CooldownSeconds: ac.CooldownSeconds,
		LowWaterDays:    ac.LowWaterDays,
		BlocksPerDay:    ac.BlocksPerDay,
		MinDrip:         minDrip,
	}, nil
}

func (n *Node) seedPools() error {
	for i, pc := range n.cfg.Farm.Pools {
		stake, ok := n.tokens[pc.StakeToken]
		if !ok {
			return fmt.Errorf("farm.pools[%d]: unknown token %s", i, pc.StakeToken)
		}
		if _, err := n.Farm.AddPool(n.admin, stake, pc.AllocWeight, pc.HarvestDelaySeconds, false); err != nil {
			return fmt.Errorf("farm.pools[%d]: %w", i, err)
		}
	}
	return nil
}

// stakePrices converts configured prices to reward base units per 1e18
// stake base units.
func (n *Node) stakePrices() (map[string]sdkmath.Uint, error) {
	rewardDecimals := int(n.cfg.RewardDecimals())
	prices := make(map[string]sdkmath.Uint)
	for _, tc := range n.cfg.Tokens {
		if tc.Price == "" {
			continue
		}
		shift := rewardDecimals + 18 - int(tc.Decimals)
		if shift < 0 || shift > 255 {
			return nil, fmt.Errorf("token %s: unsupported decimals for pricing", tc.Symbol)
		}
		p, err := amount.Parse(tc.Price, uint8(shift))
		if err != nil {
			return nil, fmt.Errorf("token %s price: %w", tc.Symbol, err)
		}
		prices[common.HexToAddress(tc.Address).Hex()] = p
	}
	return prices, nil
}

func (n *Node) resolve(addr common.Address) (token.Token, bool) {
	l, ok := n.byAddr[addr]
	return l, ok
}

func (n *Node) rewardLedger() *token.Ledger {
	return n.tokens[n.cfg.Farm.RewardToken]
}

// Do runs fn with the ledger lock held.
func (n *Node) Do(fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fn()
}

// Bus returns the event bus every ledger emits to.
func (n *Node) Bus() *eventbus.Bus { return n.bus }

// Clock returns the node's clock.
func (n *Node) Clock() chain.Clock { return n.clock }

// Admin returns the farm's current admin, which a restored snapshot may have
// moved away from the configured one.
func (n *Node) Admin() common.Address {
	if n.Farm == nil {
		return n.admin
	}
	return n.Farm.Config().Admin
}

// Token returns the ledger for symbol.
func (n *Node) Token(symbol string) (*token.Ledger, bool) {
	l, ok := n.tokens[symbol]
	return l, ok
}

// TokenAt returns the ledger at addr.
func (n *Node) TokenAt(addr common.Address) (*token.Ledger, bool) {
	l, ok := n.byAddr[addr]
	return l, ok
}

// Tokens returns every ledger, ordered by symbol.
func (n *Node) Tokens() []*token.Ledger {
	out := make([]*token.Ledger, 0, len(n.tokens))
	for _, l := range n.tokens {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}

// RewardToken returns the reward token ledger.
func (n *Node) RewardToken() *token.Ledger { return n.rewardLedger() }

// RewardDecimals returns the reward token's decimals.
func (n *Node) RewardDecimals() uint8 { return n.cfg.RewardDecimals() }

// Verify checks the farm's accounting against the token ledgers. Callers
// hold the lock.
func (n *Node) Verify() verification.Result {
	self := n.Farm.Address()
	return verification.VerifyFarm(n.Farm.Snapshot(), n.rewardLedger().Address(), func(tok common.Address) sdkmath.Uint {
		if l, found := n.byAddr[tok]; found {
			return l.BalanceOf(self)
		}
		return amount.Zero()
	})
}
