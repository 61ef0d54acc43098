package gateway

import (
	"context"
	"errors"
	"net/http"

	"pliz-ledger/config"
	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// mtnNamespace seeds reference ids so an order id always maps to the
// same X-Reference-Id, even when the initiation call timed out.
var mtnNamespace = uuid.MustParse("6f1c2a4e-8b3d-4c5e-9a7f-1d2e3f405162")

// MTNMoney talks to the MoMo collection and disbursement products.
type MTNMoney struct {
	id          string
	currency    string
	environment string
	client      *Client
	log         zerolog.Logger
}

type mtnParty struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type mtnRequest struct {
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	ExternalID   string    `json:"externalId"`
	Payer        *mtnParty `json:"payer,omitempty"`
	Payee        *mtnParty `json:"payee,omitempty"`
	PayerMessage string    `json:"payerMessage"`
	PayeeNote    string    `json:"payeeNote"`
}

type mtnStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// NewMTNMoney builds the MoMo adapter. Tokens come from the client
// credentials grant and are refreshed by the oauth2 transport.
func NewMTNMoney(id string, cfg config.PartnerConfig, currency string, opts Options) (*MTNMoney, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.TokenURL == "" || cfg.APIKey == "" {
		return nil, apperror.ErrMissingCredentials(id)
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	env := cfg.Environment
	if env == "" {
		env = "sandbox"
	}

	header := http.Header{}
	header.Set("Ocp-Apim-Subscription-Key", cfg.APIKey)
	header.Set("X-Target-Environment", env)

	log := opts.logger()
	return &MTNMoney{
		id:          id,
		currency:    currency,
		environment: env,
		client:      NewClient(id, cfg.BaseURL, cc.Client(ctx), opts.Timeout, header, opts.breaker(id), log),
		log:         log,
	}, nil
}

// MTNReference returns the X-Reference-Id used for an order.
func MTNReference(orderID string) string {
	return uuid.NewSHA1(mtnNamespace, []byte(orderID)).String()
}

func (m *MTNMoney) Name() string { return m.id }

func (m *MTNMoney) InitiateTopUp(ctx context.Context, req ports.GatewayTopUpRequest) (*ports.GatewayResult, error) {
	body := mtnRequest{
		Amount:       req.Amount.StringFixed(0),
		Currency:     m.currency,
		ExternalID:   req.OrderID,
		Payer:        &mtnParty{PartyIDType: "MSISDN", PartyID: req.SourcePhone},
		PayerMessage: "Pliz top-up",
		PayeeNote:    req.OrderID,
	}
	return m.initiate(ctx, "topup", "/collection/v1_0/requesttopay", req.OrderID, body)
}

func (m *MTNMoney) InitiateTransfer(ctx context.Context, req ports.GatewayTransferRequest) (*ports.GatewayResult, error) {
	body := mtnRequest{
		Amount:       req.Amount.StringFixed(0),
		Currency:     m.currency,
		ExternalID:   req.OrderID,
		Payee:        &mtnParty{PartyIDType: "MSISDN", PartyID: req.Destination},
		PayerMessage: "Pliz transfer",
		PayeeNote:    req.OrderID,
	}
	return m.initiate(ctx, "transfer", "/disbursement/v1_0/transfer", req.OrderID, body)
}

// initiate posts the request. MoMo answers 202 with an empty body, so
// the outcome is always pending until polled.
func (m *MTNMoney) initiate(ctx context.Context, op, path, orderID string, body mtnRequest) (*ports.GatewayResult, error) {
	ref := MTNReference(orderID)
	extra := http.Header{}
	extra.Set("X-Reference-Id", ref)

	if err := m.client.Do(ctx, op, http.MethodPost, path, body, nil, extra); err != nil {
		return nil, err
	}
	return &ports.GatewayResult{
		Status:     domain.TransactionStatusPending,
		ExternalID: ref,
		Raw:        map[string]any{"reference_id": ref},
	}, nil
}

// QueryStatus accepts either a reference id or an order id. Collection
// is tried first, then disbursement.
func (m *MTNMoney) QueryStatus(ctx context.Context, externalRef string) (domain.TransactionStatus, error) {
	ref := externalRef
	if _, err := uuid.Parse(ref); err != nil {
		ref = MTNReference(externalRef)
	}

	var st mtnStatus
	err := m.client.Do(ctx, "status", http.MethodGet, "/collection/v1_0/requesttopay/"+ref, nil, &st, nil)
	var ge *GatewayError
	if errors.As(err, &ge) && ge.StatusCode == http.StatusNotFound {
		err = m.client.Do(ctx, "status", http.MethodGet, "/disbursement/v1_0/transfer/"+ref, nil, &st, nil)
	}
	if err != nil {
		return "", err
	}

	status := normalize(m.log, st.Status)
	if status == domain.TransactionStatusFailed && st.Reason != "" {
		m.log.Info().Str("reference_id", ref).Str("reason", st.Reason).Msg("momo request failed")
	}
	return status, nil
}
