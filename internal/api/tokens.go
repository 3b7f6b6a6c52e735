package api

import (
	"fmt"
	"net/http"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/token"
)

var (
	errNoEscrow     = fmt.Errorf("%w: no escrow configured", errNotFound)
	errNoEventStore = fmt.Errorf("%w: no event store configured", errNotFound)
)

type mintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type balanceView struct {
	Token     string `json:"token"`
	Owner     string `json:"owner"`
	Balance   string `json:"balance"`
	Formatted string `json:"formatted"`
}

func (s *Server) ledger(r *http.Request) (*token.Ledger, error) {
	sym := r.PathValue("symbol")
	l, ok := s.node.Token(sym)
	if !ok {
		return nil, fmt.Errorf("%w: token %q", errNotFound, sym)
	}
	return l, nil
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) (int, error) {
	l, err := s.ledger(r)
	if err != nil {
		return 0, err
	}
	owner, err := parseAddress("owner", r.PathValue("owner"))
	if err != nil {
		return 0, err
	}
	var v balanceView
	_ = s.node.Do(func() error {
		bal := l.BalanceOf(owner)
		v = balanceView{
			Token:     l.Symbol(),
			Owner:     owner.Hex(),
			Balance:   str(bal),
			Formatted: amount.Format(bal, l.Decimals()),
		}
		return nil
	})
	return respond(w, v)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) (int, error) {
	l, err := s.ledger(r)
	if err != nil {
		return 0, err
	}
	var req mintRequest
	if err := decode(r, &req); err != nil {
		return 0, err
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		return 0, err
	}
	v, err := parseAmount("amount", req.Amount)
	if err != nil {
		return 0, err
	}
	if err := s.exec(func() error { return l.Mint(to, v) }); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"status": "ok"})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) (int, error) {
	l, err := s.ledger(r)
	if err != nil {
		return 0, err
	}
	var req approveRequest
	if err := decode(r, &req); err != nil {
		return 0, err
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		return 0, err
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		return 0, err
	}
	v, err := parseAmount("amount", req.Amount)
	if err != nil {
		return 0, err
	}
	if err := s.exec(func() error { return l.Approve(owner, spender, v) }); err != nil {
		return 0, err
	}
	return respond(w, map[string]string{"status": "ok"})
}
