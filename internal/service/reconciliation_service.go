package service

import (
	"context"
	"fmt"
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const expiredReason = "reservation expired"

type resolver interface {
	Resolve(ctx context.Context, res ports.Resolution) (*ports.ResolveResult, error)
}

// ReconciliationConfig bounds one poller pass.
type ReconciliationConfig struct {
	BatchSize    int
	QueryTimeout time.Duration
}

// ReconciliationServiceImpl implements ports.ReconciliationService.
type ReconciliationServiceImpl struct {
	checks     ports.StatusCheckRepository
	txRepo     ports.TransactionRepository
	gateways   ports.GatewayRegistry
	resolver   resolver
	manager    *TransactionManager
	transactor ports.DBTransactor
	cfg        ReconciliationConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	checks ports.StatusCheckRepository,
	txRepo ports.TransactionRepository,
	gateways ports.GatewayRegistry,
	settlement ports.SettlementService,
	manager *TransactionManager,
	transactor ports.DBTransactor,
	cfg ReconciliationConfig,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	return &ReconciliationServiceImpl{
		checks:     checks,
		txRepo:     txRepo,
		gateways:   gateways,
		resolver:   settlement,
		manager:    manager,
		transactor: transactor,
		cfg:        cfg,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeAdvanced
	outcomeFailed
)

// RunOnce re-queries partners for every pending status check of the
// batch. Per-item errors are counted, never returned.
func (s *ReconciliationServiceImpl) RunOnce(ctx context.Context) (*ports.ReconciliationReport, error) {
	checks, err := s.checks.ListPending(ctx, s.cfg.BatchSize)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list pending checks: %w", err))
	}

	report := &ports.ReconciliationReport{}
	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}
		report.Checked++

		if err := s.checks.Touch(ctx, check.ID, s.now()); err != nil {
			s.log.Warn().Err(err).Str("order_id", check.OrderID).Msg("failed to touch status check")
		}

		switch s.reconcile(ctx, check) {
		case outcomeAdvanced:
			report.Advanced++
		case outcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	s.log.Info().
		Int("checked", report.Checked).
		Int("advanced", report.Advanced).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("reconciliation pass finished")

	return report, nil
}

func (s *ReconciliationServiceImpl) reconcile(ctx context.Context, check domain.TransactionStatusCheck) outcome {
	log := s.log.With().Str("order_id", check.OrderID).Str("partner", check.Partner).Logger()

	gw, err := s.gateways.Get(check.Partner)
	if err != nil {
		log.Debug().Err(err).Msg("no gateway for status check, skipping")
		return outcomeSkipped
	}

	qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	status, err := gw.QueryStatus(qctx, check.ExternalReference)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("partner status query failed")
		return outcomeFailed
	}

	if status == domain.TransactionStatusPending || status == check.Status {
		return outcomeSkipped
	}

	res := ports.Resolution{
		OrderID: check.OrderID,
		Status:  status,
		Source:  "poller",
	}
	if check.ExternalReference != check.OrderID {
		res.ExternalID = check.ExternalReference
	}
	if status != domain.TransactionStatusSuccess {
		res.FailureReason = "reported " + string(status) + " by " + check.Partner
	}

	if _, err := s.resolver.Resolve(ctx, res); err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("failed to resolve transaction")
		return outcomeFailed
	}
	return outcomeAdvanced
}

// ExpireStale cancels PENDING reservations older than olderThan that no
// partner is tracking. It returns how many were cancelled.
func (s *ReconciliationServiceImpl) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.txRepo.ListStalePending(ctx, s.now().Add(-olderThan), s.cfg.BatchSize)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list stale transactions: %w", err))
	}

	expired := 0
	for _, candidate := range stale {
		txn, err := s.expire(ctx, candidate.OrderID)
		if err != nil {
			s.log.Warn().Err(err).Str("order_id", candidate.OrderID).Msg("failed to expire transaction")
			continue
		}
		if txn == nil {
			continue
		}
		expired++
		s.manager.Announce(ctx, txn)
	}

	if expired > 0 {
		s.log.Info().Int("expired", expired).Msg("stale reservations cancelled")
	}
	return expired, nil
}

func (s *ReconciliationServiceImpl) expire(ctx context.Context, orderID string) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByOrderIDForUpdate(ctx, dbTx, orderID)
	if err != nil {
		return nil, fmt.Errorf("lock transaction: %w", err)
	}
	// settled or picked up since listing
	if txn == nil || txn.IsTerminal() || txn.LedgerApplied {
		return nil, nil
	}

	if err := s.manager.MergeAdditionalData(ctx, dbTx, txn, map[string]any{"failure_reason": expiredReason}); err != nil {
		return nil, err
	}
	if err := s.manager.Transition(ctx, dbTx, txn, domain.TransactionStatusCancelled, expiredReason); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return txn, nil
}
