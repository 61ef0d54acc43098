package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeTransfer TransactionType = "TRANSFER"
	TransactionTypePayment  TransactionType = "PAYMENT"
	TransactionTypeTopup    TransactionType = "TOPUP"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeTransfer, TransactionTypePayment, TransactionTypeTopup:
		return true
	}
	return false
}

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusSuccess   TransactionStatus = "SUCCESS"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// Valid reports whether s is one of the four canonical statuses.
func (s TransactionStatus) Valid() bool {
	return s == TransactionStatusPending || s.IsTerminal()
}

// IsTerminal returns true for SUCCESS, FAILED and CANCELLED.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess ||
		s == TransactionStatusFailed ||
		s == TransactionStatusCancelled
}

// CanTransition reports whether a move from s to next is legal.
// Only PENDING may advance, and only to a terminal state.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	return s == TransactionStatusPending && next.IsTerminal()
}

var statusAliases = map[string]TransactionStatus{
	"pending":     TransactionStatusPending,
	"started":     TransactionStatusPending,
	"processing":  TransactionStatusPending,
	"initiated":   TransactionStatusPending,
	"in_progress": TransactionStatusPending,
	"success":     TransactionStatusSuccess,
	"successful":  TransactionStatusSuccess,
	"succeeded":   TransactionStatusSuccess,
	"completed":   TransactionStatusSuccess,
	"complete":    TransactionStatusSuccess,
	"failed":      TransactionStatusFailed,
	"failure":     TransactionStatusFailed,
	"error":       TransactionStatusFailed,
	"rejected":    TransactionStatusFailed,
	"declined":    TransactionStatusFailed,
	"expired":     TransactionStatusFailed,
	"cancelled":   TransactionStatusCancelled,
	"canceled":    TransactionStatusCancelled,
}

// NormalizeStatus maps a partner status string onto the closed enum.
// Unknown values are reported with ok=false.
func NormalizeStatus(raw string) (TransactionStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	s, ok := statusAliases[key]
	return s, ok
}

// Transaction is the record of one money movement attempt.
type Transaction struct {
	ID                uuid.UUID         `json:"id"`
	OrderID           string            `json:"order_id"`
	SenderWalletID    *uuid.UUID        `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID  *uuid.UUID        `json:"receiver_wallet_id,omitempty"`
	Type              TransactionType   `json:"transaction_type"`
	Amount            decimal.Decimal   `json:"amount"`
	Status            TransactionStatus `json:"status"`
	FeeApplied        decimal.Decimal   `json:"fee_applied"`
	QuotedFee         decimal.Decimal   `json:"quoted_fee"`
	AdditionalData    map[string]any    `json:"additional_data,omitempty"`
	ExternalReference *string           `json:"external_reference,omitempty"`
	Partner           *string           `json:"partner,omitempty"`
	MerchantID        *uuid.UUID        `json:"merchant_id,omitempty"`
	BankID            *uuid.UUID        `json:"bank_id,omitempty"`
	LedgerApplied     bool              `json:"ledger_applied"`
	Description       string            `json:"description"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Reserved is what a PENDING transaction still holds back on its sender
// wallet: the principal until it is debited, plus the quoted fee until it
// is charged.
func (t *Transaction) Reserved() decimal.Decimal {
	if t.Status != TransactionStatusPending {
		return decimal.Zero
	}
	if t.LedgerApplied {
		return t.QuotedFee
	}
	return t.Amount.Add(t.QuotedFee)
}

// InvolvesWallet reports whether walletID is the sender or the receiver.
func (t *Transaction) InvolvesWallet(walletID uuid.UUID) bool {
	return (t.SenderWalletID != nil && *t.SenderWalletID == walletID) ||
		(t.ReceiverWalletID != nil && *t.ReceiverWalletID == walletID)
}

// FeePayer returns the wallet charged for the fee: the sender, or the
// receiver for top-ups.
func (t *Transaction) FeePayer() *uuid.UUID {
	if t.Type == TransactionTypeTopup || t.SenderWalletID == nil {
		return t.ReceiverWalletID
	}
	return t.SenderWalletID
}

// PartnerName returns the partner id or "".
func (t *Transaction) PartnerName() string {
	if t.Partner == nil {
		return ""
	}
	return *t.Partner
}

// TransactionEvent records one status transition.
type TransactionEvent struct {
	ID            uuid.UUID         `json:"id"`
	TransactionID uuid.UUID         `json:"transaction_id"`
	FromStatus    TransactionStatus `json:"from_status"`
	ToStatus      TransactionStatus `json:"to_status"`
	Reason        string            `json:"reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
