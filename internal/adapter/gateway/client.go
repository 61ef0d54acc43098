package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/circuitbreaker"

	"github.com/rs/zerolog"
)

const maxErrorBody = 2048

// GatewayError describes a failed partner call.
type GatewayError struct {
	Partner    string
	Op         string
	StatusCode int
	Body       string
	TimedOut   bool
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Partner, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Timeout reports whether the partner may still act on the request.
func (e *GatewayError) Timeout() bool { return e.TimedOut }

// IsTimeout reports whether err is a timed out partner call.
func IsTimeout(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.TimedOut
	}
	return ports.IsGatewayTimeout(err)
}

// BreakerConfig counts transport errors, timeouts and 5xx answers as
// failures. A 4xx is the partner refusing one request, not being down.
func BreakerConfig(name string) circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig(name)
	cfg.IsFailure = func(err error) bool {
		if err == nil {
			return false
		}
		var ge *GatewayError
		if errors.As(err, &ge) {
			return ge.TimedOut || ge.StatusCode == 0 || ge.StatusCode >= http.StatusInternalServerError
		}
		return true
	}
	return cfg
}

// Client is the JSON-over-HTTP plumbing shared by partner adapters.
type Client struct {
	partner string
	baseURL string
	http    *http.Client
	timeout time.Duration
	header  http.Header
	breaker *circuitbreaker.Breaker
	log     zerolog.Logger
}

// NewClient builds a client for one partner. A nil httpClient uses
// http.DefaultClient and a nil breaker disables circuit breaking.
func NewClient(partner, baseURL string, httpClient *http.Client, timeout time.Duration, header http.Header, breaker *circuitbreaker.Breaker, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if header == nil {
		header = http.Header{}
	}
	return &Client{
		partner: partner,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		timeout: timeout,
		header:  header,
		breaker: breaker,
		log:     log.With().Str("partner", partner).Logger(),
	}
}

// Do sends body as JSON and decodes the response into out.
// Extra headers apply to this call only.
func (c *Client) Do(ctx context.Context, op, method, path string, body, out any, extra http.Header) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	call := func(ctx context.Context) error {
		return c.do(ctx, op, method, path, body, out, extra)
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return &GatewayError{Partner: c.partner, Op: op, Err: err}
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any, extra http.Header) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &GatewayError{Partner: c.partner, Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &GatewayError{Partner: c.partner, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("op", op).Dur("latency", time.Since(start)).Msg("partner call failed")
		return &GatewayError{Partner: c.partner, Op: op, TimedOut: ports.IsGatewayTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{Partner: c.partner, Op: op, StatusCode: resp.StatusCode, TimedOut: ports.IsGatewayTimeout(err), Err: err}
	}

	c.log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("partner call")

	if resp.StatusCode >= http.StatusBadRequest {
		return &GatewayError{
			Partner:    c.partner,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw), maxErrorBody),
			TimedOut:   resp.StatusCode == http.StatusGatewayTimeout,
		}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &GatewayError{Partner: c.partner, Op: op, StatusCode: resp.StatusCode, Body: truncate(string(raw), maxErrorBody), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
