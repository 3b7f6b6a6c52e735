// Package main runs the farm ledger service: the HTTP API over one node,
// periodic state snapshots and optional event persistence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"farm-ledger/internal/api"
	"farm-ledger/internal/chain"
	"farm-ledger/internal/config"
	"farm-ledger/internal/eventbus"
	"farm-ledger/internal/logging"
	"farm-ledger/internal/node"
	"farm-ledger/internal/observability"
	"farm-ledger/internal/storage"
	chstore "farm-ledger/internal/storage/clickhouse"
	"farm-ledger/internal/storage/memory"
	"farm-ledger/internal/storage/migrations"
	pgstore "farm-ledger/internal/storage/postgres"
)

const shutdownTimeout = 30 * time.Second

// stores holds the storage backends selected by config.
type stores struct {
	state     storage.StateStore
	referrals storage.ReferralStore
	events    storage.EventStore // nil when no event store is configured
}

func main() {
	loadEnvFile()

	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid config")
	}
	observability.RewardDecimals = cfg.RewardDecimals()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create stores")
	}
	defer cleanup()

	genesis := time.Now()
	if cfg.Chain.GenesisTime > 0 {
		genesis = time.Unix(cfg.Chain.GenesisTime, 0)
	}
	clock := chain.NewWallClock(genesis, cfg.Chain.GenesisBlock, cfg.Chain.BlockInterval)

	n, err := node.New(ctx, node.Options{
		Config:    cfg,
		Clock:     clock,
		State:     st.state,
		Referrals: st.referrals,
		Events:    st.events,
		Logger:    logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to build ledgers")
	}

	done := make(chan error, 1)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("shutting down")
		cancel()

		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Error("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			logger.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, n, st, logger)
	done <- err
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("server error")
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, n *node.Node, st *stores, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var persisted chan error
	if st.events != nil {
		p := eventbus.NewPersister(n.Bus(), eventbus.PersisterOptions{Store: st.events, Logger: logger})
		persisted = make(chan error, 1)
		go func() { persisted <- p.Run(context.WithoutCancel(ctx)) }()
	}

	snapshots := make(chan error, 1)
	go func() { snapshots <- n.RunSnapshots(ctx, cfg.Server.SnapshotInterval) }()

	srv := &http.Server{
		Addr: cfg.Server.Listen,
		Handler: api.New(n, api.Options{
			Events: st.events,
			Devnet: cfg.Server.Devnet,
			Logger: logger,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errCh:
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.WithError(serr).Warn("http shutdown")
	}

	// The snapshot loop saves once more on cancellation. The persister runs
	// until the bus closes so events from drained requests are written.
	if serr := <-snapshots; serr != nil && !errors.Is(serr, context.Canceled) {
		logger.WithError(serr).Error("final snapshot")
	}
	n.Bus().Close()
	if persisted != nil {
		if perr := <-persisted; perr != nil {
			logger.WithError(perr).Error("event persister")
		}
	}
	return err
}

func createStores(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*stores, func(), error) {
	if cfg.Storage.UseMemory {
		logger.Warn("using in-memory storage; state is lost on exit")
		return &stores{
			state:     memory.NewStateStore(),
			referrals: memory.NewReferralStore(),
			events:    memory.NewEventStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	st := &stores{
		state:     pgstore.NewStateStore(pool),
		referrals: pgstore.NewReferralStore(pool),
	}
	if cfg.Storage.ClickhouseDSN == "" {
		logger.Info("no clickhouse dsn; event history endpoints disabled")
		return st, pool.Close, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	st.events = chstore.NewEventStore(conn)
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return st, cleanup, nil
}

// loadEnvFile loads environment variables from .env file if it exists.
// Variables already set in the environment win.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if os.Getenv(key) == "" {
			os.Setenv(key, strings.TrimSpace(value))
		}
	}
}
