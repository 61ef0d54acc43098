package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the settlement currency.
const DefaultCurrency = "XOF"

// OwnerType identifies who a wallet belongs to.
type OwnerType string

const (
	OwnerTypeUser     OwnerType = "user"
	OwnerTypeMerchant OwnerType = "merchant"
	OwnerTypeBank     OwnerType = "bank"
	OwnerTypePlatform OwnerType = "platform"
)

// Wallet holds no balance column; the balance is derived from the ledger.
type Wallet struct {
	ID          uuid.UUID `json:"id"`
	OwnerType   OwnerType `json:"owner_type"`
	OwnerID     uuid.UUID `json:"owner_id"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Currency    string    `json:"currency"`
	IsPlatform  bool      `json:"is_platform"`
	CreatedAt   time.Time `json:"created_at"`
}

// Balance is a wallet balance snapshot. Available excludes funds
// reserved by pending outbound transactions.
type Balance struct {
	WalletID  uuid.UUID       `json:"wallet_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
}
