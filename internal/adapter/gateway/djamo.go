package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"pliz-ledger/config"
	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Djamo pushes money out through the Djamo transfer API.
type Djamo struct {
	id     string
	client *Client
	log    zerolog.Logger
}

type djamoTransaction struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// NewDjamo builds the Djamo adapter. The access token is sent as a
// static bearer token on every call.
func NewDjamo(id string, cfg config.PartnerConfig, opts Options) (*Djamo, error) {
	if cfg.AccessToken == "" || cfg.CompanyID == "" {
		return nil, apperror.ErrMissingCredentials(id)
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.AccessToken,
		TokenType:   "Bearer",
	}))

	header := http.Header{}
	header.Set("X-Company-Id", cfg.CompanyID)

	log := opts.logger()
	return &Djamo{
		id:     id,
		client: NewClient(id, cfg.BaseURL, httpClient, opts.Timeout, header, opts.breaker(id), log),
		log:    log,
	}, nil
}

func (d *Djamo) Name() string { return d.id }

// InitiateTopUp is not offered by Djamo; it only pays out.
func (d *Djamo) InitiateTopUp(ctx context.Context, req ports.GatewayTopUpRequest) (*ports.GatewayResult, error) {
	return nil, &GatewayError{Partner: d.id, Op: "topup", Err: errors.ErrUnsupported}
}

func (d *Djamo) InitiateTransfer(ctx context.Context, req ports.GatewayTransferRequest) (*ports.GatewayResult, error) {
	body := map[string]any{
		"reference":   req.OrderID,
		"amount":      json.Number(req.Amount.StringFixed(2)),
		"msisdn":      req.Destination,
		"description": fmt.Sprintf("Transfer Pliz to %s", req.Destination),
		"type":        "transfer",
	}

	var raw map[string]any
	if err := d.client.Do(ctx, "transfer", http.MethodPost, "/v1/transaction", body, &raw, nil); err != nil {
		return nil, err
	}

	return &ports.GatewayResult{
		Status:     normalize(d.log, stringOf(raw["status"])),
		ExternalID: stringOf(raw["id"]),
		Raw:        raw,
	}, nil
}

func (d *Djamo) QueryStatus(ctx context.Context, externalRef string) (domain.TransactionStatus, error) {
	var txn djamoTransaction
	if err := d.client.Do(ctx, "status", http.MethodGet, "/v1/transactions/"+url.PathEscape(externalRef), nil, &txn, nil); err != nil {
		return "", err
	}
	return normalize(d.log, txn.Status), nil
}

// DjamoWebhookTopics are the transaction events Pliz subscribes to.
var DjamoWebhookTopics = []string{
	"transactions/started",
	"transactions/completed",
	"transactions/failed",
}

// DjamoWebhook is one subscription registered on the Djamo account.
type DjamoWebhook struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
	URL   string `json:"url"`
}

// ListWebhooks returns the subscriptions currently registered.
func (d *Djamo) ListWebhooks(ctx context.Context) ([]DjamoWebhook, error) {
	var hooks []DjamoWebhook
	if err := d.client.Do(ctx, "webhooks.list", http.MethodGet, "/v1/webhooks", nil, &hooks, nil); err != nil {
		return nil, err
	}
	return hooks, nil
}

// RegisterWebhook subscribes target to topic.
func (d *Djamo) RegisterWebhook(ctx context.Context, topic, target string) (*DjamoWebhook, error) {
	body := map[string]string{"topic": topic, "url": target}
	hook := &DjamoWebhook{Topic: topic, URL: target}
	if err := d.client.Do(ctx, "webhooks.register", http.MethodPost, "/v1/webhooks", body, hook, nil); err != nil {
		return nil, err
	}
	return hook, nil
}

// DeleteWebhook removes one subscription by id.
func (d *Djamo) DeleteWebhook(ctx context.Context, id string) error {
	return d.client.Do(ctx, "webhooks.delete", http.MethodDelete, "/v1/webhooks/"+url.PathEscape(id), nil, nil, nil)
}
