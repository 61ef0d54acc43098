package dto

import (
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

// SendMoneyRequest is the request body for a transfer. Receiver is a
// username or phone number; Partner routes the transfer outside Pliz.
type SendMoneyRequest struct {
	Receiver string          `json:"receiver" binding:"required,max=64"`
	Amount   decimal.Decimal `json:"amount"`
	Partner  string          `json:"partner,omitempty" binding:"omitempty,safe_id,max=32"`
}

// PayMerchantRequest is the request body for a merchant payment.
type PayMerchantRequest struct {
	MerchantCode string            `json:"merchant_code" binding:"required,safe_id,max=32"`
	Amount       decimal.Decimal   `json:"amount"`
	Details      map[string]string `json:"details,omitempty"`
}

// ChargeCustomerRequest is sent by a merchant to debit a customer.
type ChargeCustomerRequest struct {
	CustomerPhone string          `json:"customer_phone" binding:"required,phone"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty" binding:"max=255"`
}

// TopUpRequest is the request body for a wallet top-up.
type TopUpRequest struct {
	Partner string          `json:"partner" binding:"required,safe_id,max=32"`
	Amount  decimal.Decimal `json:"amount"`
	Detail  string          `json:"detail,omitempty" binding:"omitempty,phone"`
}

// TransactionResponse is the public view of a transaction.
type TransactionResponse struct {
	ID                string          `json:"id"`
	OrderID           string          `json:"order_id"`
	TransactionType   string          `json:"transaction_type"`
	Amount            decimal.Decimal `json:"amount"`
	FeeApplied        decimal.Decimal `json:"fee_applied"`
	Status            string          `json:"status"`
	Partner           string          `json:"partner,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	Description       string          `json:"description,omitempty"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

// SettlementResponse is returned by every money-moving endpoint.
type SettlementResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Fee         decimal.Decimal     `json:"fee"`
	PaymentURL  string              `json:"payment_url,omitempty"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	WalletID  string          `json:"wallet_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
}

// LedgerEntryResponse is one ledger row seen by its wallet owner.
type LedgerEntryResponse struct {
	Sequence      int64           `json:"sequence"`
	Direction     string          `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// TransactionDetailResponse is a transaction with the caller's entries.
type TransactionDetailResponse struct {
	Transaction TransactionResponse   `json:"transaction"`
	Entries     []LedgerEntryResponse `json:"entries"`
}

// WebhookAck is returned to partners for every accepted delivery.
type WebhookAck struct {
	Message string `json:"message"`
}

func ToTransactionResponse(tx *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:              tx.ID.String(),
		OrderID:         tx.OrderID,
		TransactionType: string(tx.Type),
		Amount:          tx.Amount,
		FeeApplied:      tx.FeeApplied,
		Status:          string(tx.Status),
		Partner:         tx.PartnerName(),
		Description:     tx.Description,
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       tx.UpdatedAt.Format(time.RFC3339),
	}
	if tx.ExternalReference != nil {
		resp.ExternalReference = *tx.ExternalReference
	}
	return resp
}

func ToSettlementResponse(res *ports.SettlementResult) SettlementResponse {
	return SettlementResponse{
		Transaction: ToTransactionResponse(res.Transaction),
		Fee:         res.Fee,
		PaymentURL:  res.PaymentURL,
	}
}

func ToBalanceResponse(b *domain.Balance) BalanceResponse {
	return BalanceResponse{
		WalletID:  b.WalletID.String(),
		Currency:  b.Currency,
		Balance:   b.Balance,
		Available: b.Available,
	}
}

func ToTransactionDetailResponse(d *ports.TransactionDetail) TransactionDetailResponse {
	entries := make([]LedgerEntryResponse, 0, len(d.Entries))
	for i := range d.Entries {
		e := &d.Entries[i]
		entries = append(entries, LedgerEntryResponse{
			Sequence:      e.Sequence,
			Direction:     string(e.Direction),
			Amount:        e.Delta().Abs(),
			BalanceBefore: e.BalanceBefore,
			BalanceAfter:  e.BalanceAfter,
			Description:   e.Description,
			CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		})
	}
	return TransactionDetailResponse{
		Transaction: ToTransactionResponse(d.Transaction),
		Entries:     entries,
	}
}
