package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrWalletInitialized is returned by Initialize on a wallet that
// already has history.
var ErrWalletInitialized = errors.New("wallet already has balance history")

// LedgerService appends balance history. Callers hold the wallet row lock
// for the whole database transaction.
type LedgerService struct {
	repo ports.LedgerRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(repo ports.LedgerRepository, log zerolog.Logger) *LedgerService {
	return &LedgerService{
		repo: repo,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CurrentBalance returns the committed balance of a wallet.
func (s *LedgerService) CurrentBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.CurrentBalance(ctx, walletID)
}

// BalanceInTx returns the balance as seen inside tx.
func (s *LedgerService) BalanceInTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (decimal.Decimal, error) {
	latest, err := s.repo.Latest(ctx, tx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	if latest == nil {
		return decimal.Zero, nil
	}
	return latest.BalanceAfter, nil
}

// Debit subtracts amount and returns the new balance.
func (s *LedgerService) Debit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal, txnID *uuid.UUID, description string) (decimal.Decimal, error) {
	return s.append(ctx, tx, walletID, amount, domain.DirectionDebit, txnID, description)
}

// Credit adds amount and returns the new balance.
func (s *LedgerService) Credit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal, txnID *uuid.UUID, description string) (decimal.Decimal, error) {
	return s.append(ctx, tx, walletID, amount, domain.DirectionCredit, txnID, description)
}

// Initialize writes the opening entry 0 -> amount of an empty wallet.
func (s *LedgerService) Initialize(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal, description string) error {
	latest, err := s.repo.Latest(ctx, tx, walletID)
	if err != nil {
		return fmt.Errorf("initialize wallet: %w", err)
	}
	if latest != nil {
		return ErrWalletInitialized
	}
	_, err = s.append(ctx, tx, walletID, amount, domain.DirectionCredit, nil, description)
	return err
}

func (s *LedgerService) append(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal, dir domain.Direction, txnID *uuid.UUID, description string) (decimal.Decimal, error) {
	amount = domain.RoundMoney(amount)
	if !domain.IsPositive(amount) {
		return decimal.Zero, apperror.ErrInvalidAmount()
	}

	latest, err := s.repo.Latest(ctx, tx, walletID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read latest entry: %w", err)
	}

	entry := &domain.BalanceHistoryEntry{
		ID:            uuid.New(),
		WalletID:      walletID,
		BalanceBefore: decimal.Zero,
		TransactionID: txnID,
		Direction:     dir,
		Description:   description,
		Sequence:      1,
		CreatedAt:     s.now(),
	}
	if latest != nil {
		entry.BalanceBefore = latest.BalanceAfter
		entry.Sequence = latest.Sequence + 1
	}

	if dir == domain.DirectionDebit {
		entry.BalanceAfter = entry.BalanceBefore.Sub(amount)
	} else {
		entry.BalanceAfter = entry.BalanceBefore.Add(amount)
	}

	if err := s.repo.Append(ctx, tx, entry); err != nil {
		return decimal.Zero, err
	}

	s.log.Debug().
		Str("wallet_id", walletID.String()).
		Str("direction", string(dir)).
		Str("amount", amount.String()).
		Str("balance_after", entry.BalanceAfter.String()).
		Int64("sequence", entry.Sequence).
		Msg("ledger entry appended")

	return entry.BalanceAfter, nil
}
