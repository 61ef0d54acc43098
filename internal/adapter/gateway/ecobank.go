package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"pliz-ledger/config"
	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// Ecobank is the bank aggregator used for account top-ups and payouts.
type Ecobank struct {
	id       string
	currency string
	client   *Client
	log      zerolog.Logger
}

type ecobankTransaction struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

func NewEcobank(id string, cfg config.PartnerConfig, currency string, opts Options) (*Ecobank, error) {
	if cfg.APIKey == "" {
		return nil, apperror.ErrMissingCredentials(id)
	}

	header := http.Header{}
	header.Set("X-Api-Key", cfg.APIKey)

	log := opts.logger()
	return &Ecobank{
		id:       id,
		currency: currency,
		client:   NewClient(id, cfg.BaseURL, opts.HTTPClient, opts.Timeout, header, opts.breaker(id), log),
		log:      log,
	}, nil
}

func (e *Ecobank) Name() string { return e.id }

func (e *Ecobank) InitiateTopUp(ctx context.Context, req ports.GatewayTopUpRequest) (*ports.GatewayResult, error) {
	return e.post(ctx, "topup", "/v1/collections", map[string]any{
		"reference": req.OrderID,
		"amount":    json.Number(req.Amount.StringFixed(2)),
		"currency":  e.currency,
		"account":   req.SourcePhone,
	})
}

func (e *Ecobank) InitiateTransfer(ctx context.Context, req ports.GatewayTransferRequest) (*ports.GatewayResult, error) {
	return e.post(ctx, "transfer", "/v1/payouts", map[string]any{
		"reference": req.OrderID,
		"amount":    json.Number(req.Amount.StringFixed(2)),
		"currency":  e.currency,
		"account":   req.Destination,
	})
}

func (e *Ecobank) QueryStatus(ctx context.Context, externalRef string) (domain.TransactionStatus, error) {
	var txn ecobankTransaction
	if err := e.client.Do(ctx, "status", http.MethodGet, "/v1/transactions/"+url.PathEscape(externalRef), nil, &txn, nil); err != nil {
		return "", err
	}
	return normalize(e.log, txn.Status), nil
}

func (e *Ecobank) post(ctx context.Context, op, path string, body any) (*ports.GatewayResult, error) {
	var raw map[string]any
	if err := e.client.Do(ctx, op, http.MethodPost, path, body, &raw, nil); err != nil {
		return nil, err
	}
	return &ports.GatewayResult{
		Status:     normalize(e.log, stringOf(raw["status"])),
		ExternalID: stringOf(raw["transactionId"]),
		Raw:        raw,
	}, nil
}
