package postgres

import (
	"context"
	"testing"
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

// anyArgs matches n query arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newTestTransaction() *domain.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Transaction{
		ID:               uuid.New(),
		OrderID:          "PLZ-20260101-001-002-ABC",
		SenderWalletID:   uuidPtr(uuid.New()),
		ReceiverWalletID: uuidPtr(uuid.New()),
		Type:             domain.TransactionTypeTransfer,
		Amount:           decimal.RequireFromString("300.00"),
		Status:           domain.TransactionStatusPending,
		FeeApplied:       decimal.Zero,
		QuotedFee:        decimal.RequireFromString("3.00"),
		AdditionalData:   map[string]any{"receiver": "bob"},
		Partner:          strPtr("djamo"),
		Description:      "Transfer to bob",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func txColumns() []string {
	return []string{"id", "order_id", "sender_wallet_id", "receiver_wallet_id", "transaction_type", "amount", "status",
		"fee_applied", "quoted_fee", "additional_data", "external_reference", "partner", "merchant_id", "bank_id", "ledger_applied",
		"description", "created_at", "updated_at"}
}

func txRow(t *domain.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows(txColumns()).AddRow(
		t.ID, t.OrderID, t.SenderWalletID, t.ReceiverWalletID, t.Type, t.Amount, t.Status,
		t.FeeApplied, t.QuotedFee, []byte(`{"receiver":"bob"}`), t.ExternalReference, t.Partner, t.MerchantID, t.BankID, t.LedgerApplied,
		t.Description, t.CreatedAt, t.UpdatedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	txn := newTestTransaction()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(
			txn.ID, txn.OrderID, txn.SenderWalletID, txn.ReceiverWalletID, txn.Type, txn.Amount, txn.Status,
			txn.FeeApplied, txn.QuotedFee, []byte(`{"receiver":"bob"}`), txn.ExternalReference, txn.Partner, txn.MerchantID, txn.BankID,
			txn.LedgerApplied, txn.Description, txn.CreatedAt, txn.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, NewTransactionRepo(mock).Create(context.Background(), tx, txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Create_DuplicateOrderID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(anyArgs(18)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "transactions_order_id_key"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = NewTransactionRepo(mock).Create(context.Background(), tx, newTestTransaction())
	assert.ErrorIs(t, err, domain.ErrDuplicateOrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByOrderID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	txn := newTestTransaction()
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE order_id").
		WithArgs(txn.OrderID).
		WillReturnRows(txRow(txn))

	got, err := NewTransactionRepo(mock).GetByOrderID(context.Background(), txn.OrderID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, "bob", got.AdditionalData["receiver"])
	assert.Equal(t, "djamo", got.PartnerName())
	assert.True(t, txn.QuotedFee.Equal(got.QuotedFee))
	assert.True(t, txn.Amount.Equal(got.Amount))
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(txColumns()))

	got, err := NewTransactionRepo(mock).GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestTransactionRepo_CompareAndSetStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"status still pending", 1, true},
		{"status already changed", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			id := uuid.New()
			mock.ExpectBegin()
			mock.ExpectExec("UPDATE transactions SET status").
				WithArgs(domain.TransactionStatusSuccess, id, domain.TransactionStatusPending).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			tx, err := mock.Begin(context.Background())
			require.NoError(t, err)

			ok, err := NewTransactionRepo(mock).CompareAndSetStatus(context.Background(), tx, id,
				domain.TransactionStatusPending, domain.TransactionStatusSuccess)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestTransactionRepo_MarkLedgerApplied_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET ledger_applied").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = NewTransactionRepo(mock).MarkLedgerApplied(context.Background(), tx, id)
	assert.ErrorContains(t, err, "not found")
}

func TestTransactionRepo_MergeAdditionalData(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET additional_data").
		WithArgs([]byte(`{"failure_reason":"timeout"}`), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	repo := NewTransactionRepo(mock)
	require.NoError(t, repo.MergeAdditionalData(context.Background(), tx, id, map[string]any{"failure_reason": "timeout"}))
	require.NoError(t, repo.MergeAdditionalData(context.Background(), tx, id, nil), "empty merge is a no-op")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumPendingOutbound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	walletID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(CASE WHEN ledger_applied THEN quoted_fee ELSE amount \\+ quoted_fee END\\), 0\\)").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(decimal.RequireFromString("250.00")))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	total, err := NewTransactionRepo(mock).SumPendingOutbound(context.Background(), tx, walletID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("250").Equal(total))
}

func TestTransactionRepo_ListByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	txn := newTestTransaction()
	walletID := *txn.SenderWalletID
	status := domain.TransactionStatusPending

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions").
		WithArgs(walletID, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(11)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE .+ ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs(walletID, status, 10, 10).
		WillReturnRows(txRow(txn))

	txns, total, err := NewTransactionRepo(mock).ListByWallet(context.Background(), ports.TransactionListParams{
		WalletID: walletID,
		Status:   &status,
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	require.Len(t, txns, 1)
	assert.Equal(t, txn.OrderID, txns[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListStalePending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	before := time.Now().Add(-30 * time.Minute)
	txn := newTestTransaction()
	mock.ExpectQuery("NOT EXISTS \\(SELECT 1 FROM transaction_status_checks").
		WithArgs(before, 50).
		WillReturnRows(txRow(txn))

	txns, err := NewTransactionRepo(mock).ListStalePending(context.Background(), before, 50)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}
