package api

import (
	"farm-ledger/internal/domain"
	"farm-ledger/internal/dripper"
	"farm-ledger/internal/farm"
)

// Amounts are rendered as base-unit integer strings.

type farmView struct {
	Address                string `json:"address"`
	RewardToken            string `json:"reward_token"`
	Block                  uint64 `json:"block"`
	Time                   int64  `json:"time"`
	Admin                  string `json:"admin"`
	Pauser                 string `json:"pauser"`
	Paused                 bool   `json:"paused"`
	FeeBips                uint64 `json:"fee_bips"`
	FeeRecipient           string `json:"fee_recipient"`
	AutoCompounder         string `json:"auto_compounder"`
	RewardPerBlock         string `json:"reward_per_block"`
	TotalAllocWeight       uint64 `json:"total_alloc_weight"`
	TotalRewardTokenStaked string `json:"total_reward_token_staked"`
	AvailableRewards       string `json:"available_rewards"`
	LastTopUpTime          int64  `json:"last_top_up_time"`
	PoolCount              int    `json:"pool_count"`
}

type poolView struct {
	ID                    int    `json:"id"`
	StakeToken            string `json:"stake_token"`
	Weight                uint64 `json:"weight"`
	LastAccrualBlock      uint64 `json:"last_accrual_block"`
	AccRewardPerShare     string `json:"acc_reward_per_share"`
	HarvestDelay          int64  `json:"harvest_delay"`
	TotalStaked           string `json:"total_staked"`
	RewardTokenStakedHere string `json:"reward_token_staked_here"`
}

func newPoolView(p domain.Pool) poolView {
	return poolView{
		ID:                    p.ID,
		StakeToken:            p.StakeToken.Hex(),
		Weight:                p.Weight,
		LastAccrualBlock:      p.LastAccrualBlock,
		AccRewardPerShare:     str(p.AccRewardPerShare),
		HarvestDelay:          p.HarvestDelay,
		TotalStaked:           str(p.TotalStaked),
		RewardTokenStakedHere: str(p.RewardTokenStakedHere),
	}
}

type positionView struct {
	Pool            int    `json:"pool"`
	Holder          string `json:"holder"`
	Amount          string `json:"amount"`
	RewardDebt      string `json:"reward_debt"`
	LastDepositTime int64  `json:"last_deposit_time"`
	CarriedUnpaid   string `json:"carried_unpaid"`
	AutoCompounded  string `json:"auto_compounded"`
	PendingGross    string `json:"pending_gross"`
	PendingNet      string `json:"pending_net"`
	Claimable       string `json:"claimable"`
	CanHarvest      bool   `json:"can_harvest"`
}

type harvestView struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Gross   string `json:"gross"`
	Paid    string `json:"paid"`
	Fee     string `json:"fee"`
	Net     string `json:"net"`
	Carried string `json:"carried"`
}

func newHarvestView(r farm.HarvestResult) harvestView {
	return harvestView{
		Status:  r.Status.String(),
		Reason:  r.Reason,
		Gross:   str(r.Gross),
		Paid:    str(r.Paid),
		Fee:     str(r.Fee),
		Net:     str(r.Net),
		Carried: str(r.Carried),
	}
}

type rateChangeView struct {
	EffectiveAt   int64  `json:"effective_at"`
	RatePerSecond string `json:"rate_per_second"`
}

type escrowView struct {
	Address         string           `json:"address"`
	Owner           string           `json:"owner"`
	Recipient       string           `json:"recipient"`
	Balance         string           `json:"balance"`
	Pending         string           `json:"pending"`
	AccruedUnsent   string           `json:"accrued_unsent"`
	LastAccrualTime int64            `json:"last_accrual_time"`
	RatePerSecond   string           `json:"rate_per_second"`
	MaxPerCall      string           `json:"max_per_call"`
	Schedule        []rateChangeView `json:"schedule"`
	Preview         *accrualView     `json:"preview,omitempty"`
}

type accrualView struct {
	AsOf            int64  `json:"as_of"`
	Added           string `json:"added"`
	LastAccrualTime int64  `json:"last_accrual_time"`
	RatePerSecond   string `json:"rate_per_second"`
	Applied         int    `json:"applied"`
}

func newAccrualView(asOf int64, a dripper.Accrual) *accrualView {
	return &accrualView{
		AsOf:            asOf,
		Added:           str(a.Added),
		LastAccrualTime: a.LastAccrualTime,
		RatePerSecond:   str(a.RatePerSecond),
		Applied:         a.Applied,
	}
}

type eventView struct {
	Seq       uint64 `json:"seq"`
	Kind      string `json:"kind"`
	Pool      int    `json:"pool"`
	Holder    string `json:"holder"`
	Amount    string `json:"amount"`
	Fee       string `json:"fee"`
	Block     uint64 `json:"block"`
	Timestamp int64  `json:"timestamp"`
	Detail    string `json:"detail,omitempty"`
}

func newEventView(ev domain.Event) eventView {
	return eventView{
		Seq:       ev.Seq,
		Kind:      string(ev.Kind),
		Pool:      ev.PoolID,
		Holder:    ev.Holder.Hex(),
		Amount:    str(ev.Amount),
		Fee:       str(ev.Fee),
		Block:     ev.Block,
		Timestamp: ev.Timestamp,
		Detail:    ev.Detail,
	}
}

func eventViews(evs []*domain.Event) []eventView {
	out := make([]eventView, 0, len(evs))
	for _, ev := range evs {
		out = append(out, newEventView(*ev))
	}
	return out
}
