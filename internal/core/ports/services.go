package ports

import (
	"context"
	"time"

	"pliz-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// TokenService validates bearer tokens issued by the auth service.
type TokenService interface {
	Generate(actorID uuid.UUID, actorType domain.ActorType) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ActorID   uuid.UUID
	ActorType domain.ActorType
}

// IdempotencyCache is a Redis key/value cache with expiry.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil when absent
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RequestKeyStore claims client Idempotency-Keys.
type RequestKeyStore interface {
	// Claim returns true the first time key is seen within ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so the client may retry.
	Release(ctx context.Context, key string) error
}

// --- Service Ports (Business Logic) ---

// SettlementService moves money between wallets and partners.
type SettlementService interface {
	SendMoney(ctx context.Context, req SendMoneyRequest) (*SettlementResult, error)
	PayMerchant(ctx context.Context, req PayMerchantRequest) (*SettlementResult, error)
	ChargeCustomer(ctx context.Context, req ChargeCustomerRequest) (*SettlementResult, error)
	TopUp(ctx context.Context, req TopUpRequest) (*SettlementResult, error)
	GetBalance(ctx context.Context, actorID uuid.UUID) (*domain.Balance, error)
	GetTransactionHistory(ctx context.Context, params HistoryParams) ([]domain.Transaction, int64, error)
	GetTransactionDetail(ctx context.Context, orderID string, actorID uuid.UUID) (*TransactionDetail, error)
	Resolve(ctx context.Context, res Resolution) (*ResolveResult, error)
}

// SendMoneyRequest transfers to another Pliz account, or out through a
// partner when Partner is set.
type SendMoneyRequest struct {
	ActorID  uuid.UUID
	Receiver string // username or phone number
	Amount   decimal.Decimal
	Partner  string
}

// PayMerchantRequest pays a merchant by code.
type PayMerchantRequest struct {
	ActorID      uuid.UUID
	MerchantCode string
	Amount       decimal.Decimal
	Details      map[string]string
}

// ChargeCustomerRequest is a merchant-initiated debit of a customer.
type ChargeCustomerRequest struct {
	MerchantActorID uuid.UUID
	CustomerPhone   string
	Amount          decimal.Decimal
	Description     string
}

// TopUpRequest credits the actor's wallet from a partner account.
type TopUpRequest struct {
	ActorID uuid.UUID
	Partner string
	Amount  decimal.Decimal
	Detail  string // source phone number
}

// SettlementResult is returned by every money-moving operation.
type SettlementResult struct {
	Transaction *domain.Transaction
	Fee         decimal.Decimal
	PaymentURL  string
}

// HistoryParams pages an actor's transactions, newest first.
type HistoryParams struct {
	ActorID  uuid.UUID
	Status   *domain.TransactionStatus
	Type     *domain.TransactionType
	Page     int
	PageSize int
}

// TransactionDetail is a transaction with the caller's ledger entries.
type TransactionDetail struct {
	Transaction *domain.Transaction
	Entries     []domain.BalanceHistoryEntry
}

// Resolution is an asynchronous outcome reported by a partner.
type Resolution struct {
	OrderID       string
	Status        domain.TransactionStatus
	ExternalID    string
	Data          map[string]any
	FailureReason string
	Source        string // "webhook" or "poller"
}

// ResolveResult reports what Resolve did.
type ResolveResult struct {
	Transaction  *domain.Transaction
	AlreadyFinal bool
}

// ReconciliationService advances transactions still pending with partners.
type ReconciliationService interface {
	RunOnce(ctx context.Context) (*ReconciliationReport, error)
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// ReconciliationReport summarizes one poller pass.
type ReconciliationReport struct {
	Checked  int `json:"checked"`
	Advanced int `json:"advanced"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// WebhookService ingests partner push notifications.
type WebhookService interface {
	Handle(ctx context.Context, delivery WebhookDelivery) error
}

// WebhookDelivery is the raw inbound request.
type WebhookDelivery struct {
	Partner     string
	Signature   string
	HeaderTopic string
	Body        []byte
}
