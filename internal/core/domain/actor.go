package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActorType distinguishes end users from merchants.
type ActorType string

const (
	ActorTypeUser     ActorType = "user"
	ActorTypeMerchant ActorType = "merchant"
)

// Actor is an account holder. Subscribed actors are exempt from fees.
type Actor struct {
	ID           uuid.UUID `json:"id"`
	Type         ActorType `json:"type"`
	Username     string    `json:"username"`
	PhoneNumber  string    `json:"phone_number"`
	IsActive     bool      `json:"is_active"`
	IsSubscribed bool      `json:"is_subscribed"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsMerchant returns true for merchant actors.
func (a *Actor) IsMerchant() bool {
	return a.Type == ActorTypeMerchant
}

// Merchant receives payments. A nil Processor means the merchant is
// settled directly on its Pliz wallet.
type Merchant struct {
	ID           uuid.UUID  `json:"id"`
	ActorID      *uuid.UUID `json:"actor_id,omitempty"`
	WalletID     uuid.UUID  `json:"wallet_id"`
	MerchantCode string     `json:"merchant_code"`
	BusinessName string     `json:"business_name"`
	Processor    *string    `json:"processor,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsDirect returns true when no external processor is involved.
func (m *Merchant) IsDirect() bool {
	return m.Processor == nil || *m.Processor == ""
}

// Bank is a banking partner reachable through a gateway.
type Bank struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	PartnerCode string     `json:"partner_code"`
	WalletID    *uuid.UUID `json:"wallet_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
