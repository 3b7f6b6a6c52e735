package scenario

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/farm"
)

// Reserved account names.
const (
	adminActor  = "admin"
	farmActor   = "farm"
	escrowActor = "escrow"
)

var errNoEscrow = errors.New("no escrow configured")

type outcome struct {
	status string // "ok", "paid", "deferred"
	detail string
}

func success(detail string) outcome { return outcome{status: "ok", detail: detail} }

type actionFunc func(r *runner, st Step) (outcome, error)

var actions = map[string]actionFunc{
	"mint":                 (*runner).mint,
	"approve":              (*runner).approve,
	"transfer":             (*runner).transfer,
	"deposit":              (*runner).deposit,
	"deposit_for":          (*runner).depositFor,
	"harvest":              (*runner).harvest,
	"withdraw":             (*runner).withdraw,
	"emergency_withdraw":   (*runner).emergencyWithdraw,
	"update_pool":          (*runner).updatePool,
	"mass_update":          (*runner).massUpdate,
	"drip":                 (*runner).drip,
	"add_pool":             (*runner).addPool,
	"set_pool":             (*runner).setPool,
	"set_reward_per_block": (*runner).setRewardPerBlock,
	"set_fee":              (*runner).setFee,
	"set_auto_compounder":  (*runner).setAutoCompounder,
	"pause":                (*runner).pause,
	"unpause":              (*runner).unpause,
	"schedule_rate":        (*runner).scheduleRate,
	"clear_schedule":       (*runner).clearSchedule,
}

func (r *runner) mint(st Step) (outcome, error) {
	l, err := r.ledger(st.Token)
	if err != nil {
		return outcome{}, err
	}
	name := st.Target
	if name == "" {
		name = st.Actor
	}
	to, err := r.resolve(name)
	if err != nil {
		return outcome{}, err
	}
	v, err := amount.Parse(st.Amount, l.Decimals())
	if err != nil {
		return outcome{}, err
	}
	return success(""), l.Mint(to, v)
}

func (r *runner) approve(st Step) (outcome, error) {
	l, err := r.ledger(st.Token)
	if err != nil {
		return outcome{}, err
	}
	owner, err := r.resolve(st.Actor)
	if err != nil {
		return outcome{}, err
	}
	v, err := amount.Parse(st.Amount, l.Decimals())
	if err != nil {
		return outcome{}, err
	}
	return success(""), l.Approve(owner, r.n.Farm.Address(), v)
}

func (r *runner) transfer(st Step) (outcome, error) {
	l, err := r.ledger(st.Token)
	if err != nil {
		return outcome{}, err
	}
	from, err := r.resolve(st.Actor)
	if err != nil {
		return outcome{}, err
	}
	to, err := r.resolve(st.Target)
	if err != nil {
		return outcome{}, err
	}
	v, err := amount.Parse(st.Amount, l.Decimals())
	if err != nil {
		return outcome{}, err
	}
	moved, err := l.Transfer(from, to, v)
	if err == nil && !moved {
		err = errors.New("transfer returned false")
	}
	return success(""), err
}

func (r *runner) deposit(st Step) (outcome, error) {
	holder, v, err := r.stakeArgs(st)
	if err != nil {
		return outcome{}, err
	}
	var referrer common.Address
	if st.Target != "" {
		if referrer, err = r.resolve(st.Target); err != nil {
			return outcome{}, err
		}
	}
	r.touch(st.Pool, holder)
	return success(""), r.n.Farm.Deposit(holder, st.Pool, v, referrer)
}

func (r *runner) depositFor(st Step) (outcome, error) {
	caller, v, err := r.stakeArgs(st)
	if err != nil {
		return outcome{}, err
	}
	beneficiary, err := r.resolve(st.Target)
	if err != nil {
		return outcome{}, err
	}
	r.touch(st.Pool, beneficiary)
	return success(""), r.n.Farm.DepositFor(caller, st.Pool, beneficiary, v)
}

func (r *runner) harvest(st Step) (outcome, error) {
	holder, err := r.resolve(st.Actor)
	if err != nil {
		return outcome{}, err
	}
	r.touch(st.Pool, holder)
	res, err := r.n.Farm.Harvest(holder, st.Pool)
	return r.settlement(res), err
}

func (r *runner) withdraw(st Step) (outcome, error) {
	holder, v, err := r.stakeArgs(st)
	if err != nil {
		return outcome{}, err
	}
	r.touch(st.Pool, holder)
	res, err := r.n.Farm.Withdraw(holder, st.Pool, v)
	return r.settlement(res), err
}

func (r *runner) settlement(res farm.HarvestResult) outcome {
	if res.Status == farm.HarvestDeferred {
		return outcome{status: res.Status.String(), detail: res.Reason}
	}
	dec := r.n.RewardDecimals()
	return outcome{
		status: res.Status.String(),
		detail: fmt.Sprintf("net=%s fee=%s carried=%s",
			amount.Format(res.Net, dec), amount.Format(res.Fee, dec), amount.Format(res.Carried, dec)),
	}
}

func (r *runner) emergencyWithdraw(st Step) (outcome, error) {
	holder, err := r.resolve(st.Actor)
	if err != nil {
		return outcome{}, err
	}
	r.touch(st.Pool, holder)
	returned, err := r.n.Farm.EmergencyWithdraw(holder, st.Pool)
	if err != nil {
		return outcome{}, err
	}
	return success("returned=" + r.formatStake(st.Pool, returned)), nil
}

func (r *runner) updatePool(st Step) (outcome, error) {
	caller, err := r.optional(st.Actor)
	if err != nil {
		return outcome{}, err
	}
	return success(""), r.n.Farm.UpdatePool(caller, st.Pool)
}

func (r *runner) massUpdate(st Step) (outcome, error) {
	caller, err := r.optional(st.Actor)
	if err != nil {
		return outcome{}, err
	}
	return success(""), r.n.Farm.MassUpdatePools(caller)
}

func (r *runner) drip(Step) (outcome, error) {
	d := r.n.Dripper
	if d == nil {
		return outcome{}, errNoEscrow
	}
	sent, err := d.Drip()
	if err != nil {
		return outcome{}, err
	}
	return success("sent=" + amount.Format(sent, r.n.RewardDecimals())), nil
}

func (r *runner) addPool(st Step) (outcome, error) {
	caller, err := r.actorOr(st.Actor, r.n.Admin())
	if err != nil {
		return outcome{}, err
	}
	l, err := r.ledger(st.Token)
	if err != nil {
		return outcome{}, err
	}
	pid, err := r.n.Farm.AddPool(caller, l, st.Weight, st.HarvestDelay, st.WithUpdate)
	if err != nil {
		return outcome{}, err
	}
	return success(fmt.Sprintf("pool=%d", pid)), nil
}

func (r *runner) setPool(st Step) (outcome, error) {
	caller, err := r.actorOr(st.Actor, r.n.Admin())
	if err != nil {
		return outcome{}, err
	}
	return success(""), r.n.Farm.SetPool(caller, st.Pool, st.Weight, st.HarvestDelay, st.WithUpdate)
}

func (r *runner) setRewardPerBlock(st Step) (outcome, error) {
	caller, err := r.actorOr(st.Actor, r.n.Admin())
	if err != nil {
		return outcome{}, err
	}
	v, err := amount.Parse(st.Amount, r.n.RewardDecimals())
	if err != nil {
		return outcome{}, err
	}
	return success(""), r.n.Farm.SetRewardPerBlock(caller, v)
}

func (r *runner) setFee(st Step) (outcome, error) {
	caller, err := r.actorOr(st.Actor, r.n.Admin())
	if err != nil {
		return outcome{}, err
	}
	recipient, err := r.optional(st.Target)
	if err != nil {
		return outcome{}, err
	}
	return success(""), r.n.Farm.SetFee(caller, st.Bips, recipient)
}

func (r *runner) setAutoCompounder(st Step) (outcome, error) {
	caller, err := r.actorOr(st.Actor, r.n.Admin())
	if err != nil {
		return outcome{}, err
	}
	compounder, err := r.optional(st.Target)
	if err != nil {
		return outcome{}, err
	}
	return success(""), r.n.Farm.SetAutoCompounder(caller, compounder)
}

func (r *runner) pause(st Step) (outcome, error)   { return r.setPaused(st, true) }
func (r *runner) unpause(st Step) (outcome, error) { return r.setPaused(st, false) }

func (r *runner) setPaused(st Step, paused bool) (outcome, error) {
	caller, err := r.actorOr(st.Actor, r.n.Farm.Config().Pauser)
	if err != nil {
		return outcome{}, err
	}
	return success(""), r.n.Farm.SetPaused(caller, paused)
}

func (r *runner) scheduleRate(st Step) (outcome, error) {
	d := r.n.Dripper
	if d == nil {
		return outcome{}, errNoEscrow
	}
	caller, err := r.actorOr(st.Actor, d.Owner())
	if err != nil {
		return outcome{}, err
	}
	rate, err := amount.ParseBase(st.Rate)
	if err != nil {
		return outcome{}, err
	}
	at := r.clock.Now() + st.EffectiveIn
	return success(fmt.Sprintf("effective_at=%d", at)), d.ScheduleRateChange(caller, at, rate)
}

func (r *runner) clearSchedule(st Step) (outcome, error) {
	d := r.n.Dripper
	if d == nil {
		return outcome{}, errNoEscrow
	}
	caller, err := r.actorOr(st.Actor, d.Owner())
	if err != nil {
		return outcome{}, err
	}
	return success(""), d.ClearSchedule(caller)
}

// stakeArgs resolves the actor and parses Amount in the pool's stake token.
func (r *runner) stakeArgs(st Step) (common.Address, sdkmath.Uint, error) {
	holder, err := r.resolve(st.Actor)
	if err != nil {
		return common.Address{}, sdkmath.Uint{}, err
	}
	p, err := r.n.Farm.Pool(st.Pool)
	if err != nil {
		return common.Address{}, sdkmath.Uint{}, err
	}
	l, found := r.n.TokenAt(p.StakeToken)
	if !found {
		return common.Address{}, sdkmath.Uint{}, fmt.Errorf("pool %d: unknown stake token %s", st.Pool, p.StakeToken.Hex())
	}
	if st.Amount == "" {
		return holder, amount.Zero(), nil
	}
	v, err := amount.Parse(st.Amount, l.Decimals())
	return holder, v, err
}

func (r *runner) touch(pid int, holder common.Address) {
	r.touched[domain.PositionKey{PoolID: pid, Holder: holder}] = true
}
