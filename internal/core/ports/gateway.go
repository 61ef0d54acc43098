package ports

import (
	"context"
	"errors"

	"pliz-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// GatewayResult is a partner's answer to an initiation call.
type GatewayResult struct {
	Status     domain.TransactionStatus
	ExternalID string
	Raw        map[string]any
}

// GatewayTopUpRequest pulls money from a phone into Pliz.
type GatewayTopUpRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	SourcePhone string
}

// GatewayTransferRequest pushes money out of Pliz.
type GatewayTransferRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Destination string
}

// PartnerGateway is a mobile-money or bank partner.
type PartnerGateway interface {
	Name() string
	InitiateTopUp(ctx context.Context, req GatewayTopUpRequest) (*GatewayResult, error)
	InitiateTransfer(ctx context.Context, req GatewayTransferRequest) (*GatewayResult, error)
	QueryStatus(ctx context.Context, externalRef string) (domain.TransactionStatus, error)
}

// GatewayRegistry resolves a partner id to its gateway.
type GatewayRegistry interface {
	Get(partner string) (PartnerGateway, error)
}

// MerchantPaymentRequest is a bill payment sent to an external processor.
type MerchantPaymentRequest struct {
	OrderID      string
	MerchantCode string
	Amount       decimal.Decimal
	Details      map[string]string
}

// MerchantProcessor settles payments to external billers.
type MerchantProcessor interface {
	Name() string
	ProcessPayment(ctx context.Context, req MerchantPaymentRequest) (*GatewayResult, error)
}

// MerchantProcessorRegistry resolves a processor id.
type MerchantProcessorRegistry interface {
	Get(processor string) (MerchantProcessor, error)
}

// Notifier delivers fire-and-forget messages to actors.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// IsUncertainOutcome reports whether a failed call may still have reached
// the partner: a timeout, or the caller giving up mid-call.
func IsUncertainOutcome(err error) bool {
	return IsGatewayTimeout(err) || errors.Is(err, context.Canceled)
}

// IsGatewayTimeout reports whether err means the partner may still act
// on the request: a deadline or an error whose Timeout method says so.
func IsGatewayTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
