package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pliz-ledger/config"
	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{Timeout: time.Second, Currency: "XOF", Log: zerolog.Nop()}
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestDjamo_Transfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transaction", r.URL.Path)
		assert.Equal(t, "Bearer djamo-token", r.Header.Get("Authorization"))
		assert.Equal(t, "cmp-1", r.Header.Get("X-Company-Id"))

		body := decodeBody(t, r)
		assert.Equal(t, "DJAMO-20261016-123-456-ABC", body["reference"])
		assert.Equal(t, 250.5, body["amount"])
		assert.Equal(t, "+2250700000001", body["msisdn"])
		assert.Equal(t, "transfer", body["type"])

		w.Write([]byte(`{"id":"dj_tx_1","reference":"DJAMO-20261016-123-456-ABC","status":"started"}`))
	}))
	defer srv.Close()

	gw, err := NewDjamo("djamo", config.PartnerConfig{BaseURL: srv.URL, AccessToken: "djamo-token", CompanyID: "cmp-1"}, testOptions())
	require.NoError(t, err)

	res, err := gw.InitiateTransfer(context.Background(), ports.GatewayTransferRequest{
		OrderID:     "DJAMO-20261016-123-456-ABC",
		Amount:      decimal.RequireFromString("250.50"),
		Destination: "+2250700000001",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, res.Status)
	assert.Equal(t, "dj_tx_1", res.ExternalID)
	assert.Equal(t, "started", res.Raw["status"])
}

func TestDjamo_QueryStatus(t *testing.T) {
	tests := []struct {
		partnerStatus string
		want          domain.TransactionStatus
	}{
		{"completed", domain.TransactionStatusSuccess},
		{"failed", domain.TransactionStatusFailed},
		{"cancelled", domain.TransactionStatusCancelled},
		{"pending", domain.TransactionStatusPending},
		{"on_hold_for_review", domain.TransactionStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.partnerStatus, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/transactions/dj_tx_1", r.URL.Path)
				json.NewEncoder(w).Encode(map[string]string{"id": "dj_tx_1", "status": tt.partnerStatus})
			}))
			defer srv.Close()

			gw, err := NewDjamo("djamo", config.PartnerConfig{BaseURL: srv.URL, AccessToken: "t", CompanyID: "c"}, testOptions())
			require.NoError(t, err)

			status, err := gw.QueryStatus(context.Background(), "dj_tx_1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestDjamo_TopUpUnsupported(t *testing.T) {
	gw, err := NewDjamo("djamo", config.PartnerConfig{BaseURL: "http://127.0.0.1:1", AccessToken: "t", CompanyID: "c"}, testOptions())
	require.NoError(t, err)

	_, err = gw.InitiateTopUp(context.Background(), ports.GatewayTopUpRequest{OrderID: "X", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupported))
	assert.False(t, IsTimeout(err))
}

func TestDjamo_WebhookSubscriptions(t *testing.T) {
	hooks := map[string]DjamoWebhook{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer djamo-token", r.Header.Get("Authorization"))
		assert.Equal(t, "cmp-1", r.Header.Get("X-Company-Id"))

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/webhooks":
			list := make([]DjamoWebhook, 0, len(hooks))
			for _, h := range hooks {
				list = append(list, h)
			}
			_ = json.NewEncoder(w).Encode(list)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/webhooks":
			body := decodeBody(t, r)
			h := DjamoWebhook{ID: "wh-" + body["topic"].(string), Topic: body["topic"].(string), URL: body["url"].(string)}
			hooks[h.ID] = h
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(h)
		case r.Method == http.MethodDelete:
			id := r.URL.Path[len("/v1/webhooks/"):]
			if _, ok := hooks[id]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(hooks, id)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	gw, err := NewDjamo("djamo", config.PartnerConfig{BaseURL: srv.URL, AccessToken: "djamo-token", CompanyID: "cmp-1"}, testOptions())
	require.NoError(t, err)
	ctx := context.Background()

	target := "https://core.example.com/api/v1/webhooks/djamo"
	for _, topic := range DjamoWebhookTopics {
		hook, err := gw.RegisterWebhook(ctx, topic, target)
		require.NoError(t, err)
		assert.Equal(t, "wh-"+topic, hook.ID)
		assert.Equal(t, target, hook.URL)
	}

	list, err := gw.ListWebhooks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(DjamoWebhookTopics))

	for _, h := range list {
		require.NoError(t, gw.DeleteWebhook(ctx, h.ID))
	}
	list, err = gw.ListWebhooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = gw.DeleteWebhook(ctx, "wh-missing")
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
}

func TestSamirPay_TopUpReturnsPaymentURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tiers/initPayment", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "secret", r.Header.Get("X-SECRET-KEY"))

		body := decodeBody(t, r)
		assert.Equal(t, "ORANGE_MONEY-20261016-1", body["orderId"])
		assert.Equal(t, float64(5000), body["amount"])
		assert.Equal(t, "+2250102030405", body["telephone"])

		w.Write([]byte(`{"status":"success","body":{"id":"sp-77","status":"pending","urlTransaction":"https://pay.test/sp-77"}}`))
	}))
	defer srv.Close()

	gw, err := NewSamirPay("orange_money", config.PartnerConfig{BaseURL: srv.URL, APIKey: "key", SecretKey: "secret"}, testOptions())
	require.NoError(t, err)

	res, err := gw.InitiateTopUp(context.Background(), ports.GatewayTopUpRequest{
		OrderID:     "ORANGE_MONEY-20261016-1",
		Amount:      decimal.NewFromInt(5000),
		SourcePhone: "+2250102030405",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, res.Status, "the inner status wins over the envelope")
	assert.Equal(t, "sp-77", res.ExternalID)
	assert.Equal(t, "https://pay.test/sp-77", res.Raw["urlTransaction"])
}

func TestSamirPay_TransferSendsOperator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tiers/payments/send", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "250.00", body["amount"])
		assert.Equal(t, "WAVE", body["operatorName"])
		assert.Equal(t, "+221770000000", body["phoneNumber"])
		w.Write([]byte(`{"status":"successful","body":{"id":"sp-9"}}`))
	}))
	defer srv.Close()

	gw, err := NewSamirPay("wave", config.PartnerConfig{BaseURL: srv.URL, APIKey: "k", SecretKey: "s", Operator: "wave"}, testOptions())
	require.NoError(t, err)

	res, err := gw.InitiateTransfer(context.Background(), ports.GatewayTransferRequest{
		OrderID:     "WAVE-1",
		Amount:      decimal.NewFromInt(250),
		Destination: "+221770000000",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, res.Status)
	assert.Equal(t, "sp-9", res.ExternalID)
}

func TestMTNMoney_TopUpAndQuery(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"mtn-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/collection/v1_0/requesttopay", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer mtn-token", r.Header.Get("Authorization"))
		assert.Equal(t, "sub-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "sandbox", r.Header.Get("X-Target-Environment"))
		assert.Equal(t, MTNReference("MTN_MONEY-1"), r.Header.Get("X-Reference-Id"))

		body := decodeBody(t, r)
		assert.Equal(t, "1500", body["amount"])
		assert.Equal(t, "XOF", body["currency"])
		payer := body["payer"].(map[string]any)
		assert.Equal(t, "+2250505050505", payer["partyId"])
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/collection/v1_0/requesttopay/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/disbursement/v1_0/transfer/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/disbursement/v1_0/transfer/"+MTNReference("MTN_MONEY-1"), r.URL.Path)
		w.Write([]byte(`{"status":"SUCCESSFUL"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw, err := NewMTNMoney("mtn_money", config.PartnerConfig{
		BaseURL:      srv.URL,
		APIKey:       "sub-key",
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/token",
	}, "XOF", testOptions())
	require.NoError(t, err)

	res, err := gw.InitiateTopUp(context.Background(), ports.GatewayTopUpRequest{
		OrderID:     "MTN_MONEY-1",
		Amount:      decimal.NewFromInt(1500),
		SourcePhone: "+2250505050505",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, res.Status)
	assert.Equal(t, MTNReference("MTN_MONEY-1"), res.ExternalID)

	status, err := gw.QueryStatus(context.Background(), "MTN_MONEY-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, status)
	assert.Equal(t, 1, tokenCalls, "the token is cached between calls")
}

func TestMTNReference_IsStable(t *testing.T) {
	assert.Equal(t, MTNReference("A"), MTNReference("A"))
	assert.NotEqual(t, MTNReference("A"), MTNReference("B"))
}

func TestEcobank_TransferAndQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payouts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eco-key", r.Header.Get("X-Api-Key"))
		body := decodeBody(t, r)
		assert.Equal(t, "CI0010100100123456789012", body["account"])
		assert.Equal(t, "XOF", body["currency"])
		w.Write([]byte(`{"transactionId":"eco-1","status":"processing"}`))
	})
	mux.HandleFunc("/v1/transactions/eco-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactionId":"eco-1","status":"rejected","message":"account closed"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw, err := NewEcobank("ecobank", config.PartnerConfig{BaseURL: srv.URL, APIKey: "eco-key"}, "XOF", testOptions())
	require.NoError(t, err)

	res, err := gw.InitiateTransfer(context.Background(), ports.GatewayTransferRequest{
		OrderID:     "ECOBANK-1",
		Amount:      decimal.NewFromInt(10000),
		Destination: "CI0010100100123456789012",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, res.Status)
	assert.Equal(t, "eco-1", res.ExternalID)

	status, err := gw.QueryStatus(context.Background(), "eco-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, status)
}
