// Package keeper pokes the escrow on a schedule: it reads the server's escrow
// view and triggers a drip once the accrued amount passes a threshold.
package keeper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/logging"
	"farm-ledger/internal/observability"
	"farm-ledger/internal/recorder"
)

// Decisions recorded per tick.
const (
	DecisionDrip           = "drip"
	DecisionBelowThreshold = "below_threshold"
	DecisionError          = "error"
)

const defaultTimeout = 10 * time.Second

// Options configures a Keeper.
type Options struct {
	Endpoint  string       // server base URL
	Threshold sdkmath.Uint // minimum pending amount, base units; zero drips anything positive
	Client    *http.Client
	Recorder  recorder.Recorder
	Logger    logrus.FieldLogger
}

// Keeper triggers escrow drips.
type Keeper struct {
	endpoint  string
	threshold sdkmath.Uint
	client    *http.Client
	rec       recorder.Recorder
	log       logrus.FieldLogger
}

// New creates a Keeper.
func New(opts Options) *Keeper {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	rec := opts.Recorder
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Keeper{
		endpoint:  strings.TrimRight(opts.Endpoint, "/"),
		threshold: amount.Or0(opts.Threshold),
		client:    client,
		rec:       rec,
		log:       logging.OrDiscard(opts.Logger).WithField("component", "keeper"),
	}
}

type escrowView struct {
	Pending string `json:"pending"`
}

type dripView struct {
	Sent string `json:"sent"`
}

// Tick runs one poll-and-drip cycle and records its outcome.
func (k *Keeper) Tick(ctx context.Context) recorder.Run {
	run := recorder.Run{Time: time.Now(), Threshold: k.threshold.String()}
	if err := k.tick(ctx, &run); err != nil {
		run.Decision = DecisionError
		run.Error = err.Error()
		k.log.WithError(err).Warn("keeper tick failed")
	}
	observability.RecordKeeperRun(run.Decision)
	if err := k.rec.RecordRun(ctx, &run); err != nil {
		k.log.WithError(err).Error("record keeper run")
	}
	return run
}

func (k *Keeper) tick(ctx context.Context, run *recorder.Run) error {
	var esc escrowView
	if err := k.call(ctx, http.MethodGet, "/escrow", &esc); err != nil {
		return fmt.Errorf("read escrow: %w", err)
	}
	pending, err := amount.ParseBase(esc.Pending)
	if err != nil {
		return fmt.Errorf("read escrow: %w", err)
	}
	run.Pending = pending.String()

	if pending.IsZero() || pending.LT(k.threshold) {
		run.Decision = DecisionBelowThreshold
		k.log.WithField("pending", run.Pending).Debug("below threshold")
		return nil
	}

	var drip dripView
	if err := k.call(ctx, http.MethodPost, "/escrow/drip", &drip); err != nil {
		return fmt.Errorf("drip: %w", err)
	}
	run.Decision = DecisionDrip
	run.Sent = drip.Sent
	k.log.WithField("pending", run.Pending).WithField("sent", run.Sent).Info("dripped")
	return nil
}

func (k *Keeper) call(ctx context.Context, method, path string, out any) error {
	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}
	req, err := http.NewRequestWithContext(ctx, method, k.endpoint+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := k.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Run ticks on the cron spec (seconds field included) until ctx is done.
func (k *Keeper) Run(ctx context.Context, spec string) error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(spec, func() { k.Tick(ctx) }); err != nil {
		return fmt.Errorf("register keeper schedule %q: %w", spec, err)
	}
	c.Start()
	k.log.WithField("schedule", spec).Info("keeper started")

	<-ctx.Done()
	<-c.Stop().Done()
	k.log.Info("keeper stopped")
	return ctx.Err()
}
