package token

import (
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
)

// TransferHook runs after a successful transfer, outside the ledger lock.
type TransferHook func(from, to common.Address, amount sdkmath.Uint)

// LedgerOptions configures a Ledger.
type LedgerOptions struct {
	Address  common.Address
	Symbol   string
	Decimals uint8

	// FeeBips is burned from every transfer (fee-on-transfer token).
	FeeBips uint64
}

// Ledger is an in-memory ERC-20 style token.
type Ledger struct {
	mu         sync.RWMutex
	address    common.Address
	symbol     string
	decimals   uint8
	feeBips    uint64
	supply     sdkmath.Uint
	balances   map[common.Address]sdkmath.Uint
	allowances map[common.Address]map[common.Address]sdkmath.Uint

	// failSilently makes transfers return false instead of moving funds.
	failSilently bool
	hook         TransferHook
}

// NewLedger creates an empty token ledger.
func NewLedger(opts LedgerOptions) *Ledger {
	return &Ledger{
		address:    opts.Address,
		symbol:     opts.Symbol,
		decimals:   opts.Decimals,
		feeBips:    opts.FeeBips,
		supply:     amount.Zero(),
		balances:   make(map[common.Address]sdkmath.Uint),
		allowances: make(map[common.Address]map[common.Address]sdkmath.Uint),
	}
}

// Address returns the token's address.
func (l *Ledger) Address() common.Address { return l.address }

// Symbol returns the token's ticker.
func (l *Ledger) Symbol() string { return l.symbol }

// Decimals returns the token's decimals.
func (l *Ledger) Decimals() uint8 { return l.decimals }

// SetHook installs a post-transfer hook. Pass nil to remove it.
func (l *Ledger) SetHook(h TransferHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hook = h
}

// SetFailSilently toggles the non-reverting failure mode.
func (l *Ledger) SetFailSilently(fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failSilently = fail
}

// TotalSupply returns the minted supply net of burns.
func (l *Ledger) TotalSupply() sdkmath.Uint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply
}

// BalanceOf returns owner's balance.
func (l *Ledger) BalanceOf(owner common.Address) sdkmath.Uint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceOf(owner)
}

func (l *Ledger) balanceOf(owner common.Address) sdkmath.Uint {
	if b, ok := l.balances[owner]; ok {
		return b
	}
	return amount.Zero()
}

// Allowance returns how much spender may move on behalf of owner.
func (l *Ledger) Allowance(owner, spender common.Address) sdkmath.Uint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowance(owner, spender)
}

func (l *Ledger) allowance(owner, spender common.Address) sdkmath.Uint {
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return amount.Zero()
}

// Mint credits amount to `to`.
func (l *Ledger) Mint(to common.Address, v sdkmath.Uint) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] = l.balanceOf(to).Add(v)
	l.supply = l.supply.Add(v)
	return nil
}

// Approve sets spender's allowance over owner's balance.
func (l *Ledger) Approve(owner, spender common.Address, v sdkmath.Uint) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[common.Address]sdkmath.Uint)
		l.allowances[owner] = m
	}
	m[spender] = v
	return nil
}

// Transfer moves v from `from` to `to`.
func (l *Ledger) Transfer(from, to common.Address, v sdkmath.Uint) (bool, error) {
	l.mu.Lock()
	if l.failSilently {
		l.mu.Unlock()
		return false, nil
	}
	if err := l.move(from, to, v); err != nil {
		l.mu.Unlock()
		return false, err
	}
	hook := l.hook
	l.mu.Unlock()

	if hook != nil {
		hook(from, to, v)
	}
	return true, nil
}

// TransferFrom moves v from `from` to `to`, consuming spender's allowance.
func (l *Ledger) TransferFrom(spender, from, to common.Address, v sdkmath.Uint) (bool, error) {
	l.mu.Lock()
	if l.failSilently {
		l.mu.Unlock()
		return false, nil
	}
	allowed := l.allowance(from, spender)
	if allowed.LT(v) {
		l.mu.Unlock()
		return false, ErrInsufficientAllowance
	}
	if err := l.move(from, to, v); err != nil {
		l.mu.Unlock()
		return false, err
	}
	l.allowances[from][spender] = allowed.Sub(v)
	hook := l.hook
	l.mu.Unlock()

	if hook != nil {
		hook(from, to, v)
	}
	return true, nil
}

// move must be called with l.mu held.
func (l *Ledger) move(from, to common.Address, v sdkmath.Uint) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrZeroAddress
	}
	bal := l.balanceOf(from)
	if bal.LT(v) {
		return ErrInsufficientBalance
	}
	fee := amount.MulDivUint64(v, l.feeBips, amount.BipsDenominator)
	l.balances[from] = bal.Sub(v)
	l.balances[to] = l.balanceOf(to).Add(v.Sub(fee))
	l.supply = l.supply.Sub(fee)
	return nil
}

var _ Token = (*Ledger)(nil)
