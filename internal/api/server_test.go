package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-ledger/internal/chain"
	"farm-ledger/internal/config"
	"farm-ledger/internal/domain"
	"farm-ledger/internal/node"
	"farm-ledger/internal/storage/memory"
	"farm-ledger/internal/verification"
)

const t0 = int64(1_700_000_000)

const testYAML = `
tokens:
  - symbol: RWD
    address: "0x00000000000000000000000000000000000000e1"
  - symbol: LP
    address: "0x00000000000000000000000000000000000000e2"
farm:
  address: "0x00000000000000000000000000000000000000fa"
  admin: "0x00000000000000000000000000000000000000ad"
  pauser: "0x00000000000000000000000000000000000000ad"
  reward_per_block: "1"
  pools:
    - stake_token: LP
      alloc_weight: 100
dripper:
  address: "0x00000000000000000000000000000000000000e5"
  rate_per_second: "1000000000000000000"
  funding: "1000"
storage:
  use_memory: true
`

const (
	oneToken  = "1000000000000000000"
	tenTokens = "10000000000000000000"
)

var (
	admin    = common.HexToAddress("0xad")
	alice    = common.HexToAddress("0xa1")
	farmAddr = common.HexToAddress("0xfa")
	rwd      = "RWD"
)

type fixture struct {
	clock  *chain.ManualClock
	node   *node.Node
	events *memory.EventStore
	srv    *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	clock := chain.NewManualClock(100, t0)
	events := memory.NewEventStore()
	n, err := node.New(context.Background(), node.Options{
		Config:    cfg,
		Clock:     clock,
		State:     memory.NewStateStore(),
		Referrals: memory.NewReferralStore(),
		Events:    events,
	})
	require.NoError(t, err)
	return &fixture{
		clock:  clock,
		node:   n,
		events: events,
		srv:    New(n, Options{Events: events, Devnet: true}),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// stake mints, approves and deposits ten LP for holder.
func (f *fixture) stake(t *testing.T, holder common.Address) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/tokens/LP/mint", mintRequest{To: holder.Hex(), Amount: "100" + oneToken[1:]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, "/tokens/LP/approve", approveRequest{Owner: holder.Hex(), Spender: farmAddr.Hex(), Amount: "100" + oneToken[1:]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, "/pools/0/deposit", depositRequest{Caller: holder.Hex(), Amount: tenTokens})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])
}

func TestFarmAndPools(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/farm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fv := decodeBody[farmView](t, rec)
	assert.Equal(t, farmAddr.Hex(), fv.Address)
	assert.Equal(t, admin.Hex(), fv.Admin)
	assert.Equal(t, oneToken, fv.RewardPerBlock)
	assert.Equal(t, 1, fv.PoolCount)
	assert.Equal(t, uint64(100), fv.TotalAllocWeight)

	rec = f.do(t, http.MethodGet, "/pools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pools := decodeBody[[]poolView](t, rec)
	require.Len(t, pools, 1)
	assert.Equal(t, uint64(100), pools[0].Weight)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/pools/7", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/pools/x", nil).Code)
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice)

	rec := f.do(t, http.MethodGet, "/farm/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[verification.Result](t, rec)
	assert.True(t, res.Match, "%v", res.Divergences)
}

func TestDepositHarvestWithdraw(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice)
	f.clock.Advance(10, 30)

	rec := f.do(t, http.MethodGet, "/pools/0/positions/"+alice.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pos := decodeBody[positionView](t, rec)
	assert.Equal(t, tenTokens, pos.Amount)
	assert.Equal(t, tenTokens, pos.PendingGross)
	assert.Equal(t, "0", pos.Claimable, "farm holds no rewards yet")
	assert.True(t, pos.CanHarvest)

	rec = f.do(t, http.MethodPost, "/pools/0/harvest", callerRequest{Caller: alice.Hex()})
	require.Equal(t, http.StatusOK, rec.Code)
	hv := decodeBody[harvestView](t, rec)
	assert.Equal(t, "deferred", hv.Status)
	assert.Equal(t, "insufficient_rewards", hv.Reason)
	assert.Equal(t, tenTokens, hv.Carried)

	rec = f.do(t, http.MethodPost, "/tokens/RWD/mint", mintRequest{To: farmAddr.Hex(), Amount: "100" + oneToken[1:]})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/pools/0/withdraw", callerRequest{Caller: alice.Hex(), Amount: tenTokens})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	hv = decodeBody[harvestView](t, rec)
	assert.Equal(t, "paid", hv.Status)
	assert.Equal(t, tenTokens, hv.Net)
	assert.Equal(t, "0", hv.Carried)

	rec = f.do(t, http.MethodGet, "/tokens/RWD/balances/"+alice.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decodeBody[balanceView](t, rec)
	assert.Equal(t, tenTokens, bal.Balance)
	assert.Equal(t, "10", bal.Formatted)
}

func TestWithdraw_InsufficientStake(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice)

	rec := f.do(t, http.MethodPost, "/pools/0/withdraw", callerRequest{Caller: alice.Hex(), Amount: "1" + tenTokens})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody[errorResponse](t, rec).Error, "insufficient stake")
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice)
	f.clock.Advance(5, 15)

	rec := f.do(t, http.MethodPost, "/pools/0/emergency-withdraw", callerRequest{Caller: alice.Hex()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenTokens, decodeBody[map[string]string](t, rec)["amount"])

	rec = f.do(t, http.MethodGet, "/pools/0/positions/"+alice.Hex(), nil)
	pos := decodeBody[positionView](t, rec)
	assert.Equal(t, "0", pos.Amount)
	assert.Equal(t, "0", pos.PendingGross)
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/pools", addPoolRequest{Caller: alice.Hex(), StakeToken: rwd, Weight: 50})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/admin/pools", addPoolRequest{Caller: admin.Hex(), StakeToken: rwd, Weight: 50, WithUpdate: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeBody[map[string]int](t, rec)["pool"])

	rec = f.do(t, http.MethodPost, "/admin/pools", addPoolRequest{Caller: admin.Hex(), StakeToken: rwd, Weight: 50})
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate stake token")

	rec = f.do(t, http.MethodPost, "/admin/pools", addPoolRequest{Caller: admin.Hex(), StakeToken: "NOPE", Weight: 50})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/admin/pools/1", setPoolRequest{Caller: admin.Hex(), Weight: 0})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/admin/fee", feeRequest{Caller: admin.Hex(), Bips: 501, Recipient: admin.Hex()})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/admin/reward-per-block", callerRequest{Caller: admin.Hex(), Amount: tenTokens})
	require.Equal(t, http.StatusOK, rec.Code)

	fv := decodeBody[farmView](t, f.do(t, http.MethodGet, "/farm", nil))
	assert.Equal(t, tenTokens, fv.RewardPerBlock)
	assert.Equal(t, uint64(100), fv.TotalAllocWeight)
}

func TestPause_BlocksDeposits(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/pause", pauseRequest{Caller: admin.Hex(), Paused: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/pools/0/deposit", depositRequest{Caller: alice.Hex(), Amount: oneToken})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"bad caller", "/pools/0/deposit", depositRequest{Caller: "nope", Amount: oneToken}},
		{"bad amount", "/pools/0/deposit", depositRequest{Caller: alice.Hex(), Amount: "1.5"}},
		{"unknown field", "/pools/0/deposit", map[string]string{"caller": alice.Hex(), "amt": "1"}},
		{"bad referrer", "/pools/0/deposit", depositRequest{Caller: alice.Hex(), Amount: oneToken, Referrer: "0x12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestEscrow_ViewPreviewAndDrip(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(2, 5)

	rec := f.do(t, http.MethodGet, "/escrow?at=1700000020", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ev := decodeBody[escrowView](t, rec)
	assert.Equal(t, "5"+oneToken[1:], ev.Pending)
	assert.Equal(t, "1000"+oneToken[1:], ev.Balance)
	require.NotNil(t, ev.Preview)
	assert.Equal(t, "20"+oneToken[1:], ev.Preview.Added)

	rec = f.do(t, http.MethodPost, "/escrow/drip", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5"+oneToken[1:], decodeBody[map[string]string](t, rec)["sent"])

	fv := decodeBody[farmView](t, f.do(t, http.MethodGet, "/farm", nil))
	assert.Equal(t, "5"+oneToken[1:], fv.AvailableRewards)
}

func TestEscrow_Schedule(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/escrow/schedule", scheduleRequest{Caller: alice.Hex(), EffectiveAt: t0 + 10, RatePerSecond: "1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/escrow/schedule", scheduleRequest{Caller: admin.Hex(), EffectiveAt: t0 - 10, RatePerSecond: "1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/escrow/schedule", scheduleRequest{Caller: admin.Hex(), EffectiveAt: t0 + 10, RatePerSecond: "1"})
	require.Equal(t, http.StatusOK, rec.Code)
	ev := decodeBody[escrowView](t, f.do(t, http.MethodGet, "/escrow", nil))
	require.Len(t, ev.Schedule, 1)
	assert.Equal(t, t0+10, ev.Schedule[0].EffectiveAt)

	rec = f.do(t, http.MethodPost, "/escrow/schedule", scheduleRequest{Caller: admin.Hex(), Clear: true})
	require.Equal(t, http.StatusOK, rec.Code)
	ev = decodeBody[escrowView](t, f.do(t, http.MethodGet, "/escrow", nil))
	assert.Empty(t, ev.Schedule)
}

func TestEvents_HistoryAndStore(t *testing.T) {
	f := newFixture(t)
	f.stake(t, alice)

	rec := f.do(t, http.MethodGet, "/events?since=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	evs := decodeBody[[]eventView](t, rec)
	require.NotEmpty(t, evs)
	assert.Equal(t, string(domain.EventDeposit), evs[len(evs)-1].Kind)

	require.NoError(t, f.events.Insert(context.Background(), &domain.Event{
		Seq: 99, Kind: domain.EventHarvest, PoolID: 0, Holder: alice, Timestamp: t0,
	}))
	rec = f.do(t, http.MethodGet, "/events/holders/"+alice.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decodeBody[[]eventView](t, rec)
	require.Len(t, stored, 1)
	assert.Equal(t, uint64(99), stored[0].Seq)

	rec = f.do(t, http.MethodGet, "/events?from=1700000100&to=1700000000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvents_NoStore(t *testing.T) {
	f := newFixture(t)
	srv := New(f.node, Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/pools/0", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tokens/LP/mint", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, rec.Code, "mint is devnet only")
}

func TestStream_ReplaysAndPushes(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events?since=0"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The seeded pool arrives from history.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev eventView
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, string(domain.EventPoolAdded), ev.Kind)

	f.stake(t, alice)
	for {
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Kind == string(domain.EventDeposit) {
			break
		}
	}
	assert.Equal(t, alice.Hex(), ev.Holder)
	assert.Equal(t, tenTokens, ev.Amount)
}
