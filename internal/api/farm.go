package api

import (
	"net/http"

	sdkmath "cosmossdk.io/math"

	"farm-ledger/internal/domain"
	"farm-ledger/internal/farm"
	"farm-ledger/internal/verification"
)

type depositRequest struct {
	Caller   string `json:"caller"`
	Amount   string `json:"amount"`
	Referrer string `json:"referrer,omitempty"`
}

type depositForRequest struct {
	Caller      string `json:"caller"`
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"`
}

type callerRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount,omitempty"`
}

type addPoolRequest struct {
	Caller       string `json:"caller"`
	StakeToken   string `json:"stake_token"` // symbol
	Weight       uint64 `json:"weight"`
	HarvestDelay int64  `json:"harvest_delay"`
	WithUpdate   bool   `json:"with_update"`
}

type setPoolRequest struct {
	Caller       string `json:"caller"`
	Weight       uint64 `json:"weight"`
	HarvestDelay int64  `json:"harvest_delay"`
	WithUpdate   bool   `json:"with_update"`
}

type feeRequest struct {
	Caller    string `json:"caller"`
	Bips      uint64 `json:"bips"`
	Recipient string `json:"recipient"`
}

type pauseRequest struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleFarm(w http.ResponseWriter, _ *http.Request) (int, error) {
	var v farmView
	_ = s.node.Do(func() error {
		f := s.node.Farm
		cfg := f.Config()
		clock := s.node.Clock()
		v = farmView{
			Address:                f.Address().Hex(),
			RewardToken:            f.RewardToken().Address().Hex(),
			Block:                  clock.BlockNumber(),
			Time:                   clock.Now(),
			Admin:                  cfg.Admin.Hex(),
			Pauser:                 cfg.Pauser.Hex(),
			Paused:                 cfg.Paused,
			FeeBips:                cfg.FeeBips,
			FeeRecipient:           cfg.FeeRecipient.Hex(),
			AutoCompounder:         cfg.AutoCompounder.Hex(),
			RewardPerBlock:         str(f.RewardPerBlock()),
			TotalAllocWeight:       f.TotalAllocWeight(),
			TotalRewardTokenStaked: str(f.TotalRewardTokenStaked()),
			AvailableRewards:       str(f.AvailableRewards()),
			LastTopUpTime:          f.LastTopUpTime(),
			PoolCount:              f.PoolLength(),
		}
		return nil
	})
	return respond(w, v)
}

// handleVerify reports accounting divergences; the status is 200 either way.
func (s *Server) handleVerify(w http.ResponseWriter, _ *http.Request) (int, error) {
	var res verification.Result
	_ = s.node.Do(func() error {
		res = s.node.Verify()
		return nil
	})
	return respond(w, res)
}

func (s *Server) handlePools(w http.ResponseWriter, _ *http.Request) (int, error) {
	var pools []domain.Pool
	_ = s.node.Do(func() error {
		pools = s.node.Farm.Pools()
		return nil
	})
	out := make([]poolView, 0, len(pools))
	for _, p := range pools {
		out = append(out, newPoolView(p))
	}
	return respond(w, out)
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) (int, error) {
	pid, err := parsePID(r)
	if err != nil {
		return 0, err
	}
	var p domain.Pool
	if err := s.node.Do(func() (err error) {
		p, err = s.node.Farm.Pool(pid)
		return err
	}); err != nil {
		return 0, err
	}
	return respond(w, newPoolView(p))
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) (int, error) {
	pid, err := parsePID(r)
	if err != nil {
		return 0, err
	}
	holder, err := parseAddress("holder", r.PathValue("holder"))
	if err != nil {
		return 0, err
	}

	v := positionView{Pool: pid, Holder: holder.Hex()}
	err = s.node.Do(func() error {
		f := s.node.Farm
		pos, err := f.Position(pid, holder)
		if err != nil {
			return err
		}
		gross, net, err := f.PendingReward(pid, holder)
		if err != nil {
			return err
		}
		claimable, err := f.Claimable(pid, holder)
		if err != nil {
			return err
		}
		can, err := f.CanHarvest(pid, holder)
		if err != nil {
			return err
		}
		v.Amount = str(pos.Amount)
		v.RewardDebt = str(pos.RewardDebt)
		v.LastDepositTime = pos.LastDepositTime
		v.CarriedUnpaid = str(pos.CarriedUnpaid)
		v.AutoCompounded = str(pos.AutoCompounded)
		v.PendingGross = str(gross)
		v.PendingNet = str(net)
		v.Claimable = str(claimable)
		v.CanHarvest = can
		return nil
	})
	if err != nil {
		return 0, err
	}
	return respond(w, v)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) (int, error) {
	pid, err := parsePID(r)
	if err != nil {
		return 0, err
	}
	var req depositRequest
	if err := decode(r, &req); err != nil {
		return 0, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	referrer, err := optionalAddress("referrer", req.Referrer)
	if err != nil {
		return 0, err
	}
	amt, err := parseAmount("amount", req.Amount)
	if err != nil {
		return 0, err
	}
	if err := s.exec(func() error {
		return s.node.Farm.Deposit(caller, pid, amt, referrer)
	}); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDepositFor(w http.ResponseWriter, r *http.Request) (int, error) {
	pid, err := parsePID(r)
	if err != nil {
		return 0, err
	}
	var req depositForRequest
	if err := decode(r, &req); err != nil {
		return 0, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	beneficiary, err := parseAddress("beneficiary", req.Beneficiary)
	if err != nil {
		return 0, err
	}
	amt, err := parseAmount("amount", req.Amount)
	if err != nil {
		return 0, err
	}
	if err := s.exec(func() error {
		return s.node.Farm.DepositFor(caller, pid, beneficiary, amt)
	}); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"status": "ok"})
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) (int, error) {
	pid, req, err := s.callerRequest(r)
	if err != nil {
		return 0, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	var res farm.HarvestResult
	err = s.exec(func() (err error) {
		res, err = s.node.Farm.Harvest(caller, pid)
		return err
	})
	return s.settlement(w, res, err)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) (int, error) {
	pid, req, err := s.callerRequest(r)
	if err != nil {
		return 0, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	amt, err := parseAmount("amount", req.Amount)
	if err != nil {
		return 0, err
	}
	var res farm.HarvestResult
	err = s.exec(func() (err error) {
		res, err = s.node.Farm.Withdraw(caller, pid, amt)
		return err
	})
	return s.settlement(w, res, err)
}

func (s *Server) settlement(w http.ResponseWriter, res farm.HarvestResult, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	return respond(w, newHarvestView(res))
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) (int, error) {
	pid, req, err := s.callerRequest(r)
	if err != nil {
		return 0, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	var returned sdkmath.Uint
	if err := s.exec(func() (err error) {
		returned, err = s.node.Farm.EmergencyWithdraw(caller, pid)
		return err
	}); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"amount": str(returned)})
}

func (s *Server) handleUpdatePool(w http.ResponseWriter, r *http.Request) (int, error) {
	pid, req, err := s.callerRequest(r)
	if err != nil {
		return 0, err
	}
	caller, err := optionalAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	if err := s.exec(func() error {
		return s.node.Farm.UpdatePool(caller, pid)
	}); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"status": "ok"})
}

func (s *Server) handleMassUpdate(w http.ResponseWriter, r *http.Request) (int, error) {
	var req callerRequest
	if err := decode(r, &req); err != nil {
		return 0, err
	}
	caller, err := optionalAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	if err := s.exec(func() error {
		return s.node.Farm.MassUpdatePools(caller)
	}); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"status": "ok"})
}

func (s *Server) callerRequest(r *http.Request) (int, callerRequest, error) {
	var req callerRequest
	pid, err := parsePID(r)
	if err != nil {
		return 0, req, err
	}
	if err := decode(r, &req); err != nil {
		return 0, req, err
	}
	return pid, req, nil
}

func (s *Server) handleAddPool(w http.ResponseWriter, r *http.Request) (int, error) {
	var req addPoolRequest
	if err := decode(r, &req); err != nil {
		return 0, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	stake, ok := s.node.Token(req.StakeToken)
	if !ok {
		return 0, badRequest("unknown token %q", req.StakeToken)
	}
	var pid int
	if err := s.exec(func() (err error) {
		pid, err = s.node.Farm.AddPool(caller, stake, req.Weight, req.HarvestDelay, req.WithUpdate)
		return err
	}); err != nil {
		return 0, err
	}
	writeJSON(w, http.StatusCreated, map[string]int{"pool": pid})
	return http.StatusCreated, nil
}

func (s *Server) handleSetPool(w http.ResponseWriter, r *http.Request) (int, error) {
	pid, err := parsePID(r)
	if err != nil {
		return 0, err
	}
	var req setPoolRequest
	if err := decode(r, &req); err != nil {
		return 0, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	if err := s.exec(func() error {
		return s.node.Farm.SetPool(caller, pid, req.Weight, req.HarvestDelay, req.WithUpdate)
	}); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSetRewardPerBlock(w http.ResponseWriter, r *http.Request) (int, error) {
	var req callerRequest
	if err := decode(r, &req); err != nil {
		return 0, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	perBlock, err := parseAmount("amount", req.Amount)
	if err != nil {
		return 0, err
	}
	if err := s.exec(func() error {
		return s.node.Farm.SetRewardPerBlock(caller, perBlock)
	}); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) (int, error) {
	var req feeRequest
	if err := decode(r, &req); err != nil {
		return 0, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	recipient, err := optionalAddress("recipient", req.Recipient)
	if err != nil {
		return 0, err
	}
	if err := s.exec(func() error {
		return s.node.Farm.SetFee(caller, req.Bips, recipient)
	}); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request) (int, error) {
	var req pauseRequest
	if err := decode(r, &req); err != nil {
		return 0, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	if err := s.exec(func() error {
		return s.node.Farm.SetPaused(caller, req.Paused)
	}); err != nil {
		return 0, err
	}
	return respond(w, map[string]bool{"paused": req.Paused})
}
