package token

import (
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

// Snapshot captures non-zero balances and allowances, sorted by address.
func (l *Ledger) Snapshot() domain.TokenSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := domain.TokenSnapshot{Address: l.address.Hex(), Supply: l.supply}
	for owner, bal := range l.balances {
		if !bal.IsZero() {
			snap.Balances = append(snap.Balances, domain.TokenBalance{Owner: owner.Hex(), Amount: bal})
		}
	}
	for owner, m := range l.allowances {
		for spender, v := range m {
			if !v.IsZero() {
				snap.Allowances = append(snap.Allowances, domain.TokenAllowance{Owner: owner.Hex(), Spender: spender.Hex(), Amount: v})
			}
		}
	}
	sort.Slice(snap.Balances, func(i, j int) bool { return snap.Balances[i].Owner < snap.Balances[j].Owner })
	sort.Slice(snap.Allowances, func(i, j int) bool {
		a, b := snap.Allowances[i], snap.Allowances[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Spender < b.Spender
	})
	return snap
}

// Restore replaces balances, allowances and supply with snap's.
func (l *Ledger) Restore(snap domain.TokenSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.supply = amount.Or0(snap.Supply)
	l.balances = make(map[common.Address]sdkmath.Uint, len(snap.Balances))
	for _, b := range snap.Balances {
		l.balances[common.HexToAddress(b.Owner)] = amount.Or0(b.Amount)
	}
	l.allowances = make(map[common.Address]map[common.Address]sdkmath.Uint)
	for _, a := range snap.Allowances {
		owner := common.HexToAddress(a.Owner)
		m, ok := l.allowances[owner]
		if !ok {
			m = make(map[common.Address]sdkmath.Uint)
			l.allowances[owner] = m
		}
		m[common.HexToAddress(a.Spender)] = amount.Or0(a.Amount)
	}
}
