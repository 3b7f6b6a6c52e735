package api

import (
	"net/http"
	"strconv"

	sdkmath "cosmossdk.io/math"
)

type scheduleRequest struct {
	Caller        string `json:"caller"`
	EffectiveAt   int64  `json:"effective_at"`
	RatePerSecond string `json:"rate_per_second"`
	Clear         bool   `json:"clear,omitempty"`
}

// handleEscrow reports the dripper. ?at=<unix> adds a pure accrual preview.
func (s *Server) handleEscrow(w http.ResponseWriter, r *http.Request) (int, error) {
	d := s.node.Dripper
	if d == nil {
		return 0, errNoEscrow
	}
	var at int64
	if raw := r.URL.Query().Get("at"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, badRequest("invalid at %q", raw)
		}
		at = v
	}

	var v escrowView
	err := s.node.Do(func() error {
		pending, err := d.PendingAccrued()
		if err != nil {
			return err
		}
		st := d.State()
		v = escrowView{
			Address:         d.Address().Hex(),
			Owner:           d.Owner().Hex(),
			Recipient:       d.Recipient().Hex(),
			Balance:         str(d.Balance()),
			Pending:         str(pending),
			AccruedUnsent:   str(st.AccruedUnsent),
			LastAccrualTime: st.LastAccrualTime,
			RatePerSecond:   str(st.CurrentRatePerSecond),
			MaxPerCall:      str(d.MaxPerCall()),
			Schedule:        []rateChangeView{},
		}
		for _, rc := range d.Schedule() {
			v.Schedule = append(v.Schedule, rateChangeView{EffectiveAt: rc.EffectiveAt, RatePerSecond: str(rc.RatePerSecond)})
		}
		if at != 0 {
			v.Preview = newAccrualView(at, d.PreviewAccrual(at))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return respond(w, v)
}

// handleDrip releases accrued rewards to the recipient. Anyone may call it.
func (s *Server) handleDrip(w http.ResponseWriter, _ *http.Request) (int, error) {
	d := s.node.Dripper
	if d == nil {
		return 0, errNoEscrow
	}
	var sent sdkmath.Uint
	if err := s.exec(func() (err error) {
		sent, err = d.Drip()
		return err
	}); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"sent": str(sent)})
}

func (s *Server) handleScheduleRate(w http.ResponseWriter, r *http.Request) (int, error) {
	d := s.node.Dripper
	if d == nil {
		return 0, errNoEscrow
	}
	var req scheduleRequest
	if err := decode(r, &req); err != nil {
		return 0, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return 0, err
	}
	if req.Clear {
		if err := s.exec(func() error { return d.ClearSchedule(caller) }); err != nil {
			return 0, err
		}
		return respond(w, map[string]string{"status": "cleared"})
	}
	rate, err := parseAmount("rate_per_second", req.RatePerSecond)
	if err != nil {
		return 0, err
	}
	if err := s.exec(func() error {
		return d.ScheduleRateChange(caller, req.EffectiveAt, rate)
	}); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"status": "scheduled"})
}
