package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pliz-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const statusCheckColumns = `id, order_id, external_reference, partner, transaction_type, status, last_checked_at, created_at`

// StatusCheckRepo implements ports.StatusCheckRepository.
type StatusCheckRepo struct {
	pool Pool
}

// NewStatusCheckRepo creates a new StatusCheckRepo.
func NewStatusCheckRepo(pool Pool) *StatusCheckRepo {
	return &StatusCheckRepo{pool: pool}
}

// Register inserts a check or refreshes the one with the same external reference.
func (r *StatusCheckRepo) Register(ctx context.Context, tx pgx.Tx, c *domain.TransactionStatusCheck) error {
	query := `INSERT INTO transaction_status_checks (` + statusCheckColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_reference) DO UPDATE
		SET order_id = EXCLUDED.order_id, partner = EXCLUDED.partner, status = EXCLUDED.status`

	_, err := tx.Exec(ctx, query,
		c.ID, c.OrderID, c.ExternalReference, c.Partner, c.TransactionType, c.Status, c.LastCheckedAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("register status check: %w", err)
	}
	return nil
}

// GetByOrderID fetches the check tracking an order.
func (r *StatusCheckRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.TransactionStatusCheck, error) {
	query := `SELECT ` + statusCheckColumns + ` FROM transaction_status_checks WHERE order_id = $1`

	c, err := scanStatusCheck(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get status check: %w", err)
	}
	return c, nil
}

// UpdateStatusByOrderID mirrors a transaction's status onto its check.
// A missing check is not an error.
func (r *StatusCheckRepo) UpdateStatusByOrderID(ctx context.Context, tx pgx.Tx, orderID string, status domain.TransactionStatus) error {
	query := `UPDATE transaction_status_checks SET status = $1 WHERE order_id = $2`

	if _, err := tx.Exec(ctx, query, status, orderID); err != nil {
		return fmt.Errorf("update status check: %w", err)
	}
	return nil
}

// ListPending returns the least recently checked pending rows first.
func (r *StatusCheckRepo) ListPending(ctx context.Context, limit int) ([]domain.TransactionStatusCheck, error) {
	query := `SELECT ` + statusCheckColumns + ` FROM transaction_status_checks
		WHERE status = 'PENDING' ORDER BY last_checked_at NULLS FIRST, created_at LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending status checks: %w", err)
	}
	defer rows.Close()

	var checks []domain.TransactionStatusCheck
	for rows.Next() {
		c, err := scanStatusCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan status check: %w", err)
		}
		checks = append(checks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status checks: %w", err)
	}
	return checks, nil
}

// Touch records a poll attempt.
func (r *StatusCheckRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE transaction_status_checks SET last_checked_at = $1 WHERE id = $2`

	if _, err := r.pool.Exec(ctx, query, at, id); err != nil {
		return fmt.Errorf("touch status check: %w", err)
	}
	return nil
}

func scanStatusCheck(row pgx.Row) (*domain.TransactionStatusCheck, error) {
	c := &domain.TransactionStatusCheck{}
	err := row.Scan(&c.ID, &c.OrderID, &c.ExternalReference, &c.Partner, &c.TransactionType,
		&c.Status, &c.LastCheckedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
