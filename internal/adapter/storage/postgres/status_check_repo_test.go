package postgres

import (
	"context"
	"testing"
	"time"

	"pliz-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusCheckRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "order_id", "external_reference", "partner", "transaction_type",
		"status", "last_checked_at", "created_at"})
}

func TestStatusCheckRepo_Register_Upserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := &domain.TransactionStatusCheck{
		ID:                uuid.New(),
		OrderID:           "DJAMO-20260101-001-002-ABC",
		ExternalReference: "ext-1",
		Partner:           "djamo",
		TransactionType:   domain.TransactionTypeTopup,
		Status:            domain.TransactionStatusPending,
		CreatedAt:         time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transaction_status_checks .+ ON CONFLICT \\(external_reference\\) DO UPDATE").
		WithArgs(c.ID, c.OrderID, c.ExternalReference, c.Partner, c.TransactionType, c.Status, c.LastCheckedAt, c.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, NewStatusCheckRepo(mock).Register(context.Background(), tx, c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusCheckRepo_ListPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	checked := time.Now().Add(-time.Minute)
	mock.ExpectQuery("SELECT .+ FROM transaction_status_checks\\s+WHERE status = 'PENDING'").
		WithArgs(25).
		WillReturnRows(statusCheckRows().
			AddRow(uuid.New(), "A-20260101-001-001-AAA", "ext-a", "djamo", domain.TransactionTypeTopup,
				domain.TransactionStatusPending, (*time.Time)(nil), time.Now()).
			AddRow(uuid.New(), "B-20260101-001-001-BBB", "ext-b", "wave", domain.TransactionTypeTransfer,
				domain.TransactionStatusPending, &checked, time.Now()))

	checks, err := NewStatusCheckRepo(mock).ListPending(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Nil(t, checks[0].LastCheckedAt)
	require.NotNil(t, checks[1].LastCheckedAt)
}

func TestStatusCheckRepo_GetByOrderID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM transaction_status_checks WHERE order_id").
		WithArgs("missing").
		WillReturnRows(statusCheckRows())

	c, err := NewStatusCheckRepo(mock).GetByOrderID(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestStatusCheckRepo_Touch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	at := time.Now()
	mock.ExpectExec("UPDATE transaction_status_checks SET last_checked_at").
		WithArgs(at, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, NewStatusCheckRepo(mock).Touch(context.Background(), id, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
