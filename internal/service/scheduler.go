package service

import (
	"context"
	"fmt"
	"time"

	"pliz-ledger/internal/core/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SchedulerConfig configures the background reconciliation jobs.
type SchedulerConfig struct {
	Schedule   string        // cron spec, e.g. "@every 1m"
	StaleAfter time.Duration // age at which untracked reservations expire
	JobTimeout time.Duration
}

// Scheduler runs the poller and the stale-reservation sweep on cron.
type Scheduler struct {
	cron  *cron.Cron
	recon ports.ReconciliationService
	cfg   SchedulerConfig
	log   zerolog.Logger
}

// NewScheduler registers both jobs. A job still running when its next
// tick fires is skipped.
func NewScheduler(recon ports.ReconciliationService, cfg SchedulerConfig, log zerolog.Logger) (*Scheduler, error) {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		recon: recon,
		cfg:   cfg,
		log:   log,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.reconcile); err != nil {
		return nil, fmt.Errorf("schedule reconciliation %q: %w", cfg.Schedule, err)
	}
	if cfg.StaleAfter > 0 {
		if _, err := s.cron.AddFunc(cfg.Schedule, s.expireStale); err != nil {
			return nil, fmt.Errorf("schedule expiry %q: %w", cfg.Schedule, err)
		}
	}
	return s, nil
}

// Start runs the jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Str("schedule", s.cfg.Schedule).Msg("reconciliation scheduler started")
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stopped before running jobs finished")
	}
}

func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	if _, err := s.recon.RunOnce(ctx); err != nil {
		s.log.Error().Err(err).Msg("reconciliation run failed")
	}
}

func (s *Scheduler) expireStale() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	if _, err := s.recon.ExpireStale(ctx, s.cfg.StaleAfter); err != nil {
		s.log.Error().Err(err).Msg("stale reservation sweep failed")
	}
}

// cronLogger routes cron's logging through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
