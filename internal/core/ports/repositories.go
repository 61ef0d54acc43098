package ports

import (
	"context"
	"time"

	"pliz-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repositories return (nil, nil) when a single row is not found.
// Methods accepting pgx.Tx run inside the caller's transaction; the
// ForUpdate variants take a row lock held until commit.

// WalletRepository defines persistence operations for wallets.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Wallet, error)
	GetPlatform(ctx context.Context) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
}

// LedgerRepository is append-only: there is no update or delete.
type LedgerRepository interface {
	Latest(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*domain.BalanceHistoryEntry, error)
	CurrentBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
	Append(ctx context.Context, tx pgx.Tx, entry *domain.BalanceHistoryEntry) error
	ListByTransaction(ctx context.Context, transactionID, walletID uuid.UUID) ([]domain.BalanceHistoryEntry, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.BalanceHistoryEntry, error)
}

// TransactionRepository defines persistence operations for transactions.
type TransactionRepository interface {
	// Create returns domain.ErrDuplicateOrderID on an order id collision.
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error)
	GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Transaction, error)
	// CompareAndSetStatus moves id from `from` to `to`; false means another
	// writer changed the status first.
	CompareAndSetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error)
	MarkLedgerApplied(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	SetFeeApplied(ctx context.Context, tx pgx.Tx, id uuid.UUID, fee decimal.Decimal) error
	SetExternalReference(ctx context.Context, tx pgx.Tx, id uuid.UUID, ref string) error
	MergeAdditionalData(ctx context.Context, tx pgx.Tx, id uuid.UUID, data map[string]any) error
	// SumPendingOutbound totals what PENDING sends from walletID still hold
	// back: undebited principals plus uncharged quoted fees.
	SumPendingOutbound(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (decimal.Decimal, error)
	ListByWallet(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	// ListStalePending returns PENDING, not ledger-applied transactions
	// created before `before` that have no status check.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Transaction, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	WalletID uuid.UUID
	Status   *domain.TransactionStatus
	Type     *domain.TransactionType
	Page     int
	PageSize int
}

// EventRepository stores status transition audit rows.
type EventRepository interface {
	Create(ctx context.Context, tx pgx.Tx, event *domain.TransactionEvent) error
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.TransactionEvent, error)
}

// FeeRepository stores tariffs, distribution rules and paid-out shares.
type FeeRepository interface {
	// ListFeeRules returns active rules of active grids covering amount.
	ListFeeRules(ctx context.Context, txType domain.TransactionType, amount decimal.Decimal) ([]domain.FeeRule, error)
	ListDistributionRules(ctx context.Context, txType domain.TransactionType) ([]domain.FeeDistributionRule, error)
	CreateFeeRule(ctx context.Context, rule *domain.FeeRule) error
	CreateDistributionRule(ctx context.Context, rule *domain.FeeDistributionRule) error
	CreateDistribution(ctx context.Context, tx pgx.Tx, d *domain.FeeDistribution) error
	ListDistributions(ctx context.Context, transactionID uuid.UUID) ([]domain.FeeDistribution, error)
}

// StatusCheckRepository tracks partner-side transactions awaiting settlement.
type StatusCheckRepository interface {
	// Register upserts by external reference.
	Register(ctx context.Context, tx pgx.Tx, check *domain.TransactionStatusCheck) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.TransactionStatusCheck, error)
	UpdateStatusByOrderID(ctx context.Context, tx pgx.Tx, orderID string, status domain.TransactionStatus) error
	ListPending(ctx context.Context, limit int) ([]domain.TransactionStatusCheck, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ActorRepository defines lookups for account holders.
type ActorRepository interface {
	Create(ctx context.Context, actor *domain.Actor) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error)
	GetByUsername(ctx context.Context, username string) (*domain.Actor, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Actor, error)
}

// MerchantRepository defines lookups for payable merchants.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByCode(ctx context.Context, code string) (*domain.Merchant, error)
	GetByActorID(ctx context.Context, actorID uuid.UUID) (*domain.Merchant, error)
}

// BankRepository defines lookups for banking partners.
type BankRepository interface {
	Create(ctx context.Context, bank *domain.Bank) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Bank, error)
	GetByPartnerCode(ctx context.Context, code string) (*domain.Bank, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
