package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"pliz-ledger/config"
	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// SamirPay is the aggregator behind Orange Money and Wave. One instance
// serves one operator.
type SamirPay struct {
	id       string
	operator string
	client   *Client
	log      zerolog.Logger
}

// NewSamirPay builds a SamirPay adapter for the operator named in cfg,
// or the upper-cased partner id when none is set.
func NewSamirPay(id string, cfg config.PartnerConfig, opts Options) (*SamirPay, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, apperror.ErrMissingCredentials(id)
	}

	operator := cfg.Operator
	if operator == "" {
		operator = id
	}

	log := opts.logger()
	return &SamirPay{
		id:       id,
		operator: strings.ToUpper(operator),
		client:   NewClient(id, cfg.BaseURL, opts.HTTPClient, opts.Timeout, samirHeaders(cfg.APIKey, cfg.SecretKey), opts.breaker(id), log),
		log:      log,
	}, nil
}

func samirHeaders(apiKey, secretKey string) http.Header {
	h := http.Header{}
	h.Set("X-API-KEY", apiKey)
	h.Set("X-SECRET-KEY", secretKey)
	return h
}

func (s *SamirPay) Name() string { return s.id }

func (s *SamirPay) InitiateTopUp(ctx context.Context, req ports.GatewayTopUpRequest) (*ports.GatewayResult, error) {
	body := map[string]any{
		"orderId":   req.OrderID,
		"amount":    json.Number(req.Amount.StringFixed(2)),
		"telephone": req.SourcePhone,
	}
	return s.post(ctx, "topup", "/api/tiers/initPayment", body)
}

func (s *SamirPay) InitiateTransfer(ctx context.Context, req ports.GatewayTransferRequest) (*ports.GatewayResult, error) {
	body := map[string]any{
		"orderId":      req.OrderID,
		"amount":       req.Amount.StringFixed(2),
		"phoneNumber":  req.Destination,
		"operatorName": s.operator,
	}
	return s.post(ctx, "transfer", "/api/tiers/payments/send", body)
}

func (s *SamirPay) QueryStatus(ctx context.Context, externalRef string) (domain.TransactionStatus, error) {
	var raw map[string]any
	if err := s.client.Do(ctx, "status", http.MethodGet, "/api/tiers/payments/"+url.PathEscape(externalRef), nil, &raw, nil); err != nil {
		return "", err
	}
	return normalize(s.log, samirStatus(raw)), nil
}

func (s *SamirPay) post(ctx context.Context, op, path string, body any) (*ports.GatewayResult, error) {
	var raw map[string]any
	if err := s.client.Do(ctx, op, http.MethodPost, path, body, &raw, nil); err != nil {
		return nil, err
	}
	lift(raw, "body", "urlTransaction")

	var externalID string
	if b, ok := raw["body"].(map[string]any); ok {
		externalID = stringOf(b["id"])
	}

	return &ports.GatewayResult{
		Status:     normalize(s.log, samirStatus(raw)),
		ExternalID: externalID,
		Raw:        raw,
	}, nil
}

// samirStatus prefers the status inside body over the envelope status.
func samirStatus(raw map[string]any) string {
	if b, ok := raw["body"].(map[string]any); ok {
		if st := stringOf(b["status"]); st != "" {
			return st
		}
	}
	return stringOf(raw["status"])
}
