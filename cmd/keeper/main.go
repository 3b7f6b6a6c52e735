// Package main runs the escrow keeper: it polls the server on a cron
// schedule and triggers a drip once enough has accrued.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"farm-ledger/internal/config"
	"farm-ledger/internal/keeper"
	"farm-ledger/internal/logging"
	"farm-ledger/internal/recorder"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	once := flag.Bool("once", false, "Run a single tick and exit")
	history := flag.Int("history", 0, "Print the last N recorded runs and exit")
	noRecord := flag.Bool("no-record", false, "Do not record runs to SQLite")
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

	threshold, err := config.TokenAmount(cfg.Keeper.Threshold, cfg.RewardDecimals())
	if err != nil {
		logger.WithError(err).Fatal("keeper.threshold")
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if !*noRecord {
		sq, err := recorder.NewSQLiteRecorder(cfg.Keeper.SQLitePath, logger)
		if err != nil {
			logger.WithError(err).Fatal("open keeper history")
		}
		rec = sq
	}
	defer rec.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *history > 0 {
		runs, err := rec.Recent(ctx, *history)
		if err != nil {
			logger.WithError(err).Fatal("load keeper history")
		}
		for _, r := range runs {
			fmt.Printf("%s  %-16s pending=%s sent=%s %s\n",
				r.Time.UTC().Format("2006-01-02T15:04:05Z"), r.Decision, r.Pending, r.Sent, r.Error)
		}
		return
	}

	k := keeper.New(keeper.Options{
		Endpoint:  cfg.Keeper.Endpoint,
		Threshold: threshold,
		Recorder:  rec,
		Logger:    logger,
	})

	if *once {
		run := k.Tick(ctx)
		if run.Decision == keeper.DecisionError {
			os.Exit(1)
		}
		return
	}

	if err := k.Run(ctx, cfg.Keeper.Cron); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("keeper failed")
	}
}
