// Package api serves the farm ledger over HTTP. Every ledger call runs under
// the node lock, so requests execute one at a time.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/logging"
	"farm-ledger/internal/node"
	"farm-ledger/internal/observability"
	"farm-ledger/internal/storage"
)

// Options contains configuration for creating a Server.
type Options struct {
	// Events serves holder and pool history; optional.
	Events storage.EventStore
	// Devnet enables token mint and approve endpoints.
	Devnet bool
	Logger logrus.FieldLogger
}

// Server routes HTTP requests to a node.
type Server struct {
	node    *node.Node
	events  storage.EventStore
	devnet  bool
	log     logrus.FieldLogger
	mux     *http.ServeMux
	started time.Time
}

// New creates a Server for n.
func New(n *node.Node, opts Options) *Server {
	s := &Server{
		node:    n,
		events:  opts.Events,
		devnet:  opts.Devnet,
		log:     logging.OrDiscard(opts.Logger).WithField("component", "api"),
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", observability.Handler())

	s.handle("GET /farm", s.handleFarm)
	s.handle("GET /farm/verify", s.handleVerify)
	s.handle("GET /pools", s.handlePools)
	s.handle("GET /pools/{pid}", s.handlePool)
	s.handle("GET /pools/{pid}/positions/{holder}", s.handlePosition)
	s.handle("POST /pools/{pid}/deposit", s.handleDeposit)
	s.handle("POST /pools/{pid}/deposit-for", s.handleDepositFor)
	s.handle("POST /pools/{pid}/harvest", s.handleHarvest)
	s.handle("POST /pools/{pid}/withdraw", s.handleWithdraw)
	s.handle("POST /pools/{pid}/emergency-withdraw", s.handleEmergencyWithdraw)
	s.handle("POST /pools/{pid}/update", s.handleUpdatePool)
	s.handle("POST /pools/update", s.handleMassUpdate)

	s.handle("POST /admin/pools", s.handleAddPool)
	s.handle("POST /admin/pools/{pid}", s.handleSetPool)
	s.handle("POST /admin/reward-per-block", s.handleSetRewardPerBlock)
	s.handle("POST /admin/fee", s.handleSetFee)
	s.handle("POST /admin/pause", s.handleSetPaused)

	s.handle("GET /escrow", s.handleEscrow)
	s.handle("POST /escrow/drip", s.handleDrip)
	s.handle("POST /escrow/schedule", s.handleScheduleRate)

	s.handle("GET /tokens/{symbol}/balances/{owner}", s.handleBalance)
	if s.devnet {
		s.handle("POST /tokens/{symbol}/mint", s.handleMint)
		s.handle("POST /tokens/{symbol}/approve", s.handleApprove)
	}

	s.handle("GET /events", s.handleEvents)
	s.handle("GET /events/holders/{holder}", s.handleHolderEvents)
	s.handle("GET /events/pools/{pid}", s.handlePoolEvents)
	s.mux.HandleFunc("GET /ws/events", s.handleStream)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

type handlerFunc func(w http.ResponseWriter, r *http.Request) (int, error)

// handle wraps h with error rendering and latency recording.
func (s *Server) handle(pattern string, h handlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status, err := h(w, r)
		if err != nil {
			status = statusFor(err)
			if status >= 500 {
				s.log.WithError(err).WithField("route", pattern).Error("request failed")
			}
			writeJSON(w, status, errorResponse{Error: err.Error()})
		}
		observability.RecordAPIRequest(pattern, status, time.Since(start).Seconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// exec runs fn under the node lock and refreshes the balance gauges.
func (s *Server) exec(fn func() error) error {
	return s.node.Do(func() error {
		err := fn()
		s.node.UpdateMetrics()
		return err
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

// errBadRequest marks malformed input.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, v any) (int, error) {
	writeJSON(w, http.StatusOK, v)
	return http.StatusOK, nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func parsePID(r *http.Request) (int, error) {
	pid, err := strconv.Atoi(r.PathValue("pid"))
	if err != nil {
		return 0, badRequest("invalid pool id %q", r.PathValue("pid"))
	}
	return pid, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, badRequest("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func optionalAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	return parseAddress(field, s)
}

// parseAmount reads a base-unit integer string.
func parseAmount(field, s string) (sdkmath.Uint, error) {
	if s == "" {
		return amount.Zero(), nil
	}
	v, err := amount.ParseBase(s)
	if err != nil {
		return sdkmath.Uint{}, badRequest("%s: %v", field, err)
	}
	return v, nil
}

func str(v sdkmath.Uint) string { return amount.Or0(v).String() }
