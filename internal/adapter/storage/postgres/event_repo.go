package postgres

import (
	"context"
	"fmt"

	"pliz-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EventRepo implements ports.EventRepository.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Create inserts a status transition row in the caller's transaction.
func (r *EventRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.TransactionEvent) error {
	query := `INSERT INTO transaction_events (id, transaction_id, from_status, to_status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, e.ID, e.TransactionID, e.FromStatus, e.ToStatus, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction event: %w", err)
	}
	return nil
}

// ListByTransaction returns the transitions of one transaction in order.
func (r *EventRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.TransactionEvent, error) {
	query := `SELECT id, transaction_id, from_status, to_status, reason, created_at
		FROM transaction_events WHERE transaction_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list transaction events: %w", err)
	}
	defer rows.Close()

	var events []domain.TransactionEvent
	for rows.Next() {
		var e domain.TransactionEvent
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.FromStatus, &e.ToStatus, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
