package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the sign of a balance change.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// BalanceHistoryEntry is an immutable ledger row. For a given wallet,
// entry[n].BalanceAfter == entry[n+1].BalanceBefore.
type BalanceHistoryEntry struct {
	ID            uuid.UUID       `json:"id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	Direction     Direction       `json:"direction"`
	Description   string          `json:"description"`
	Sequence      int64           `json:"sequence"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Delta returns the signed change carried by the entry.
func (e *BalanceHistoryEntry) Delta() decimal.Decimal {
	return e.BalanceAfter.Sub(e.BalanceBefore)
}

// RoundMoney rounds half away from zero to two decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsPositive reports whether amount is strictly greater than zero.
func IsPositive(amount decimal.Decimal) bool {
	return amount.GreaterThan(decimal.Zero)
}
