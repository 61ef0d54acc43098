package postgres

import (
	"context"
	"errors"
	"fmt"

	"pliz-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	actorColumns    = `id, actor_type, username, phone_number, is_active, is_subscribed, created_at`
	merchantColumns = `id, actor_id, wallet_id, merchant_code, business_name, processor, created_at`
	bankColumns     = `id, name, partner_code, wallet_id, created_at`
)

// ActorRepo implements ports.ActorRepository.
type ActorRepo struct {
	pool Pool
}

// NewActorRepo creates a new ActorRepo.
func NewActorRepo(pool Pool) *ActorRepo {
	return &ActorRepo{pool: pool}
}

// Create inserts a new actor.
func (r *ActorRepo) Create(ctx context.Context, a *domain.Actor) error {
	query := `INSERT INTO actors (` + actorColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Type, a.Username, a.PhoneNumber, a.IsActive, a.IsSubscribed, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

// GetByID fetches an actor by UUID.
func (r *ActorRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM actors WHERE id = $1`
	return scanActor(r.pool.QueryRow(ctx, query, id), "get actor by id")
}

// GetByUsername fetches an actor by username, case-insensitively.
func (r *ActorRepo) GetByUsername(ctx context.Context, username string) (*domain.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM actors WHERE LOWER(username) = LOWER($1)`
	return scanActor(r.pool.QueryRow(ctx, query, username), "get actor by username")
}

// GetByPhone fetches an actor by phone number.
func (r *ActorRepo) GetByPhone(ctx context.Context, phone string) (*domain.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM actors WHERE phone_number = $1`
	return scanActor(r.pool.QueryRow(ctx, query, phone), "get actor by phone")
}

func scanActor(row pgx.Row, op string) (*domain.Actor, error) {
	a := &domain.Actor{}
	err := row.Scan(&a.ID, &a.Type, &a.Username, &a.PhoneNumber, &a.IsActive, &a.IsSubscribed, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// MerchantRepo implements ports.MerchantRepository.
type MerchantRepo struct {
	pool Pool
}

// NewMerchantRepo creates a new MerchantRepo.
func NewMerchantRepo(pool Pool) *MerchantRepo {
	return &MerchantRepo{pool: pool}
}

// Create inserts a new merchant.
func (r *MerchantRepo) Create(ctx context.Context, m *domain.Merchant) error {
	query := `INSERT INTO merchants (` + merchantColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		m.ID, m.ActorID, m.WalletID, m.MerchantCode, m.BusinessName, m.Processor, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert merchant: %w", err)
	}
	return nil
}

// GetByID fetches a merchant by UUID.
func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE id = $1`
	return scanMerchant(r.pool.QueryRow(ctx, query, id), "get merchant by id")
}

// GetByCode fetches a merchant by its public code, case-insensitively.
func (r *MerchantRepo) GetByCode(ctx context.Context, code string) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE LOWER(merchant_code) = LOWER($1)`
	return scanMerchant(r.pool.QueryRow(ctx, query, code), "get merchant by code")
}

// GetByActorID fetches the merchant profile of a merchant actor.
func (r *MerchantRepo) GetByActorID(ctx context.Context, actorID uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE actor_id = $1`
	return scanMerchant(r.pool.QueryRow(ctx, query, actorID), "get merchant by actor")
}

func scanMerchant(row pgx.Row, op string) (*domain.Merchant, error) {
	m := &domain.Merchant{}
	err := row.Scan(&m.ID, &m.ActorID, &m.WalletID, &m.MerchantCode, &m.BusinessName, &m.Processor, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// BankRepo implements ports.BankRepository.
type BankRepo struct {
	pool Pool
}

// NewBankRepo creates a new BankRepo.
func NewBankRepo(pool Pool) *BankRepo {
	return &BankRepo{pool: pool}
}

// Create inserts a new bank.
func (r *BankRepo) Create(ctx context.Context, b *domain.Bank) error {
	query := `INSERT INTO banks (` + bankColumns + `) VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.pool.Exec(ctx, query, b.ID, b.Name, b.PartnerCode, b.WalletID, b.CreatedAt); err != nil {
		return fmt.Errorf("insert bank: %w", err)
	}
	return nil
}

// GetByID fetches a bank by UUID.
func (r *BankRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bank, error) {
	query := `SELECT ` + bankColumns + ` FROM banks WHERE id = $1`
	return scanBank(r.pool.QueryRow(ctx, query, id), "get bank by id")
}

// GetByPartnerCode fetches the bank behind a partner id.
func (r *BankRepo) GetByPartnerCode(ctx context.Context, code string) (*domain.Bank, error) {
	query := `SELECT ` + bankColumns + ` FROM banks WHERE partner_code = $1`
	return scanBank(r.pool.QueryRow(ctx, query, code), "get bank by partner code")
}

func scanBank(row pgx.Row, op string) (*domain.Bank, error) {
	b := &domain.Bank{}
	if err := row.Scan(&b.ID, &b.Name, &b.PartnerCode, &b.WalletID, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}
