package postgres

import (
	"context"
	"errors"
	"fmt"

	"pliz-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const ledgerColumns = `id, wallet_id, balance_before, balance_after, transaction_id, direction, description, sequence, created_at`

// ErrSequenceConflict means another writer appended to the wallet chain
// without holding the wallet lock.
var ErrSequenceConflict = errors.New("balance history sequence conflict")

// LedgerRepo implements ports.LedgerRepository. It never updates or
// deletes rows.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Latest returns the newest entry of a wallet, or nil for an empty chain.
func (r *LedgerRepo) Latest(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*domain.BalanceHistoryEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM balance_history
		WHERE wallet_id = $1 ORDER BY sequence DESC LIMIT 1`

	e, err := scanEntry(tx.QueryRow(ctx, query, walletID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest balance entry: %w", err)
	}
	return e, nil
}

// CurrentBalance returns the latest balance_after, or zero.
func (r *LedgerRepo) CurrentBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT balance_after FROM balance_history
		WHERE wallet_id = $1 ORDER BY sequence DESC LIMIT 1`

	var balance decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, walletID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("current balance: %w", err)
	}
	return balance, nil
}

// Append inserts one immutable entry.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.BalanceHistoryEntry) error {
	query := `INSERT INTO balance_history (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.WalletID, e.BalanceBefore, e.BalanceAfter, e.TransactionID,
		e.Direction, e.Description, e.Sequence, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "balance_history_wallet_sequence_key") {
			return fmt.Errorf("append balance entry: %w", ErrSequenceConflict)
		}
		return fmt.Errorf("append balance entry: %w", err)
	}
	return nil
}

// ListByTransaction returns a wallet's entries produced by one transaction.
func (r *LedgerRepo) ListByTransaction(ctx context.Context, transactionID, walletID uuid.UUID) ([]domain.BalanceHistoryEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM balance_history
		WHERE transaction_id = $1 AND wallet_id = $2 ORDER BY sequence`
	return r.list(ctx, query, transactionID, walletID)
}

// ListByWallet returns the whole chain of a wallet in order.
func (r *LedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.BalanceHistoryEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM balance_history WHERE wallet_id = $1 ORDER BY sequence`
	return r.list(ctx, query, walletID)
}

func (r *LedgerRepo) list(ctx context.Context, query string, args ...any) ([]domain.BalanceHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list balance entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.BalanceHistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance entries: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (*domain.BalanceHistoryEntry, error) {
	e := &domain.BalanceHistoryEntry{}
	err := row.Scan(
		&e.ID, &e.WalletID, &e.BalanceBefore, &e.BalanceAfter, &e.TransactionID,
		&e.Direction, &e.Description, &e.Sequence, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}
