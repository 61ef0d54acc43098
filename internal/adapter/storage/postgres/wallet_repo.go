package postgres

import (
	"context"
	"errors"
	"fmt"

	"pliz-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, owner_type, owner_id, phone_number, currency, is_platform, created_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.OwnerType, w.OwnerID, w.PhoneNumber, w.Currency, w.IsPlatform, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, id), "get wallet by id")
}

// GetByOwner fetches the wallet owned by an actor, merchant or bank.
func (r *WalletRepo) GetByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_type = $1 AND owner_id = $2`
	return scanWallet(r.pool.QueryRow(ctx, query, ownerType, ownerID), "get wallet by owner")
}

// GetByPhone fetches a wallet by its phone number.
func (r *WalletRepo) GetByPhone(ctx context.Context, phone string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE phone_number = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, phone), "get wallet by phone")
}

// GetPlatform fetches the single fee-collection wallet.
func (r *WalletRepo) GetPlatform(ctx context.Context) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE is_platform = TRUE`
	return scanWallet(r.pool.QueryRow(ctx, query), "get platform wallet")
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, id), "get wallet for update")
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.OwnerType, &w.OwnerID, &w.PhoneNumber, &w.Currency, &w.IsPlatform, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
