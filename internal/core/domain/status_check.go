package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatusCheck tracks a partner-side transaction until it settles.
type TransactionStatusCheck struct {
	ID                uuid.UUID         `json:"id"`
	OrderID           string            `json:"order_id"`
	ExternalReference string            `json:"external_reference"`
	Partner           string            `json:"partner"`
	TransactionType   TransactionType   `json:"transaction_type"`
	Status            TransactionStatus `json:"status"`
	LastCheckedAt     *time.Time        `json:"last_checked_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}
