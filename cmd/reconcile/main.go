// Command reconcile runs one reconciliation pass and exits. It is meant
// for cron jobs and manual recovery when the API's scheduler is disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pliz-ledger/config"
	"pliz-ledger/internal/app"
	"pliz-ledger/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", os.Getenv("PLZ_CONFIG"), "path to the config file")
	expire := flag.Bool("expire", true, "also cancel stale untracked reservations")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline for the run")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config:\n%v\n", err)
		os.Exit(1)
	}
	// The worker is not started here; notifications are delivered inline.
	cfg.Queue.Enabled = false

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	report, err := a.Reconciliation.RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reconciliation run failed")
		a.Close()
		os.Exit(1)
	}
	log.Info().
		Int("checked", report.Checked).
		Int("advanced", report.Advanced).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("reconciliation run finished")

	if *expire && cfg.Reconciliation.StaleAfter > 0 {
		n, err := a.Reconciliation.ExpireStale(ctx, cfg.Reconciliation.StaleAfter)
		if err != nil {
			log.Error().Err(err).Msg("stale reservation sweep failed")
			a.Close()
			os.Exit(1)
		}
		log.Info().Int("cancelled", n).Msg("stale reservation sweep finished")
	}
}
