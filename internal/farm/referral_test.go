package farm

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

type referralCall struct{ holder, referrer common.Address }

type stubReferrals struct {
	calls []referralCall
	known map[common.Address]bool
	err   error
}

func (s *stubReferrals) RecordReferral(holder, referrer common.Address) (bool, error) {
	s.calls = append(s.calls, referralCall{holder, referrer})
	if s.err != nil {
		return false, s.err
	}
	if s.known[holder] {
		return false, nil
	}
	if s.known == nil {
		s.known = make(map[common.Address]bool)
	}
	s.known[holder] = true
	return true, nil
}

func TestDeposit_RecordsReferral(t *testing.T) {
	refs := &stubReferrals{}
	fx := newFixture(t, func(o *Options) { o.Referrals = refs })
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.fund(t, fx.lp, alice, amount.New(1000))

	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(100), bob))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.Zero(), bob))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(100), alice))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(100), common.Address{}))

	assert.Equal(t, []referralCall{{alice, bob}}, refs.calls)
}

func TestDeposit_ReferralFailureDoesNotFailDeposit(t *testing.T) {
	refs := &stubReferrals{err: errors.New("store offline")}
	fx := newFixture(t, func(o *Options) { o.Referrals = refs })
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.fund(t, fx.lp, alice, amount.New(1000))

	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(100), bob))
	assert.Len(t, refs.calls, 1)
	assert.Equal(t, "100", fx.position(t, pid, alice).Amount.String())
}

func TestDeposit_ReferralEventOnlyForNewLink(t *testing.T) {
	refs := &stubReferrals{}
	fx := newFixture(t, func(o *Options) { o.Referrals = refs })
	pid := fx.addPool(t, fx.lp, 100, 0)
	fx.fund(t, fx.lp, alice, amount.New(1000))

	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(100), bob))
	require.NoError(t, fx.farm.Deposit(alice, pid, amount.New(100), bob))
	assert.Len(t, refs.calls, 2)

	var referrals int
	for _, ev := range fx.sink.events {
		if ev.Kind == domain.EventReferral {
			referrals++
			assert.Equal(t, bob.Hex(), ev.Detail)
		}
	}
	assert.Equal(t, 1, referrals)
}
