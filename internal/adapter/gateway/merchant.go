package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"pliz-ledger/config"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// billerPaths maps merchant codes to biller invoice endpoints.
var billerPaths = map[string]string{
	"airtime": "airtime-reload",
	"woyofal": "woyofal-reload",
	"rapido":  "rapido",
}

// Biller settles bill payments through an invoice API.
type Biller struct {
	id     string
	client *Client
	log    zerolog.Logger
}

func NewBiller(id string, cfg config.ProcessorConfig, opts Options) (*Biller, error) {
	if cfg.APIKey == "" {
		return nil, apperror.ErrMissingCredentials(id)
	}
	header := http.Header{}
	header.Set("X-API-KEY", cfg.APIKey)
	if cfg.SecretKey != "" {
		header.Set("X-SECRET-KEY", cfg.SecretKey)
	}

	log := opts.logger()
	return &Biller{
		id:     id,
		client: NewClient(id, cfg.BaseURL, opts.HTTPClient, opts.Timeout, header, opts.breaker("processor:"+id), log),
		log:    log,
	}, nil
}

func (b *Biller) Name() string { return b.id }

// ProcessPayment posts the order and the merchant's required details.
func (b *Biller) ProcessPayment(ctx context.Context, req ports.MerchantPaymentRequest) (*ports.GatewayResult, error) {
	code := strings.ToLower(req.MerchantCode)
	path, ok := billerPaths[code]
	if !ok {
		path = code
	}

	body := map[string]any{
		"orderId": req.OrderID,
		"amount":  json.Number(req.Amount.StringFixed(2)),
	}
	for k, v := range req.Details {
		body[k] = v
	}

	var raw map[string]any
	if err := b.client.Do(ctx, "payment", http.MethodPost, fmt.Sprintf("/api/invoice/v1/WIZALL/%s", path), body, &raw, nil); err != nil {
		return nil, err
	}

	var externalID string
	if inner, ok := raw["body"].(map[string]any); ok {
		externalID = stringOf(inner["id"])
	}
	if externalID == "" {
		externalID = stringOf(raw["id"])
	}

	return &ports.GatewayResult{
		Status:     normalize(b.log, samirStatus(raw)),
		ExternalID: externalID,
		Raw:        raw,
	}, nil
}

// MerchantRegistry resolves processor ids to billers.
type MerchantRegistry struct {
	processors map[string]ports.MerchantProcessor
}

var _ ports.MerchantProcessorRegistry = (*MerchantRegistry)(nil)

func NewMerchantRegistry(merchants map[string]config.ProcessorConfig, opts Options) (*MerchantRegistry, error) {
	r := &MerchantRegistry{processors: make(map[string]ports.MerchantProcessor, len(merchants))}
	for id, cfg := range merchants {
		id = strings.ToLower(id)
		p, err := NewBiller(id, cfg, opts)
		if err != nil {
			return nil, fmt.Errorf("merchant processor %s: %w", id, err)
		}
		r.processors[id] = p
	}
	return r, nil
}

func (r *MerchantRegistry) Get(processor string) (ports.MerchantProcessor, error) {
	p, ok := r.processors[strings.ToLower(processor)]
	if !ok {
		return nil, apperror.ErrUnknownPartner(processor)
	}
	return p, nil
}
