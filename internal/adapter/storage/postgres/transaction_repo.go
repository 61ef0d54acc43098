package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, order_id, sender_wallet_id, receiver_wallet_id, transaction_type, amount, status,
	fee_applied, quoted_fee, additional_data, external_reference, partner, merchant_id, bank_id, ledger_applied,
	description, created_at, updated_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	data, err := marshalData(t.AdditionalData)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = tx.Exec(ctx, query,
		t.ID, t.OrderID, t.SenderWalletID, t.ReceiverWalletID, t.Type, t.Amount, t.Status,
		t.FeeApplied, t.QuotedFee, data, t.ExternalReference, t.Partner, t.MerchantID, t.BankID, t.LedgerApplied,
		t.Description, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "transactions_order_id_key") {
			return domain.ErrDuplicateOrderID
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransactionRow(r.pool.QueryRow(ctx, query, id), "get transaction by id")
}

// GetByOrderID fetches a transaction by its public order id.
func (r *TransactionRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE order_id = $1`
	return scanTransactionRow(r.pool.QueryRow(ctx, query, orderID), "get transaction by order id")
}

// GetByOrderIDForUpdate locks the transaction row until commit.
func (r *TransactionRepo) GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE order_id = $1 FOR UPDATE`
	return scanTransactionRow(tx.QueryRow(ctx, query, orderID), "get transaction for update")
}

// CompareAndSetStatus updates the status only if it still equals from.
func (r *TransactionRepo) CompareAndSetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	query := `UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	tag, err := tx.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("update transaction status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkLedgerApplied records that the principal has moved.
func (r *TransactionRepo) MarkLedgerApplied(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return r.exec(ctx, tx, "mark ledger applied",
		`UPDATE transactions SET ledger_applied = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

// SetFeeApplied stores the fee actually charged.
func (r *TransactionRepo) SetFeeApplied(ctx context.Context, tx pgx.Tx, id uuid.UUID, fee decimal.Decimal) error {
	return r.exec(ctx, tx, "set fee applied",
		`UPDATE transactions SET fee_applied = $1, updated_at = NOW() WHERE id = $2`, fee, id)
}

// SetExternalReference stores the partner-side id.
func (r *TransactionRepo) SetExternalReference(ctx context.Context, tx pgx.Tx, id uuid.UUID, ref string) error {
	return r.exec(ctx, tx, "set external reference",
		`UPDATE transactions SET external_reference = $1, updated_at = NOW() WHERE id = $2`, ref, id)
}

// MergeAdditionalData merges keys into the JSONB additional_data column.
func (r *TransactionRepo) MergeAdditionalData(ctx context.Context, tx pgx.Tx, id uuid.UUID, data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	raw, err := marshalData(data)
	if err != nil {
		return fmt.Errorf("merge additional data: %w", err)
	}
	return r.exec(ctx, tx, "merge additional data",
		`UPDATE transactions SET additional_data = COALESCE(additional_data, '{}'::jsonb) || $1::jsonb, updated_at = NOW()
		WHERE id = $2`, raw, id)
}

// SumPendingOutbound totals what pending sends still hold back: principals
// not yet debited and fees not yet charged.
func (r *TransactionRepo) SumPendingOutbound(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(CASE WHEN ledger_applied THEN quoted_fee ELSE amount + quoted_fee END), 0)
		FROM transactions
		WHERE sender_wallet_id = $1 AND status = 'PENDING'`

	var total decimal.Decimal
	if err := tx.QueryRow(ctx, query, walletID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum pending outbound: %w", err)
	}
	return total, nil
}

// ListByWallet fetches transactions touching a wallet, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	conditions := []string{"(sender_wallet_id = $1 OR receiver_wallet_id = $1)"}
	args := []any{params.WalletID}
	argIdx := 2

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("transaction_type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM transactions " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	txns, err := r.list(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListStalePending finds pending rows nobody is tracking with a partner.
func (r *TransactionRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t
		WHERE t.status = 'PENDING' AND t.ledger_applied = FALSE AND t.created_at < $1
		AND NOT EXISTS (SELECT 1 FROM transaction_status_checks c WHERE c.order_id = t.order_id)
		ORDER BY t.created_at LIMIT $2`
	return r.list(ctx, query, before, limit)
}

func (r *TransactionRepo) exec(ctx context.Context, tx pgx.Tx, op, query string, args ...any) error {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: transaction %v not found", op, args[len(args)-1])
	}
	return nil
}

func (r *TransactionRepo) list(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

func scanTransactionRow(row pgx.Row, op string) (*domain.Transaction, error) {
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var data []byte
	err := row.Scan(
		&t.ID, &t.OrderID, &t.SenderWalletID, &t.ReceiverWalletID, &t.Type, &t.Amount, &t.Status,
		&t.FeeApplied, &t.QuotedFee, &data, &t.ExternalReference, &t.Partner, &t.MerchantID, &t.BankID, &t.LedgerApplied,
		&t.Description, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &t.AdditionalData); err != nil {
			return nil, fmt.Errorf("decode additional_data: %w", err)
		}
	}
	return t, nil
}

func marshalData(data map[string]any) ([]byte, error) {
	if data == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(data)
}
