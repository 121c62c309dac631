// Package mercadopago is a small REST client for the hosted checkout
// (preferences), payment lookups and refunds.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://api.mercadopago.com"
	requestTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "mercadopago",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 4xx answers are the caller's problem, not an outage.
		IsSuccessful: func(err error) bool {
			var providerErr *ProviderError
			if errors.As(err, &providerErr) {
				return providerErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[MERCADOPAGO] [WARN] circuit %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
	}
}

func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	var pref Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", uuid.NewString(), req, &pref); err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	if pref.InitPoint == "" {
		return nil, errors.New("create preference: response has no init_point")
	}
	return &pref, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if _, err := strconv.ParseInt(paymentID, 10, 64); err != nil {
		return nil, fmt.Errorf("get payment: invalid id %q", paymentID)
	}

	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, "", nil, &payment); err != nil {
		return nil, fmt.Errorf("get payment %s: %w", paymentID, err)
	}
	return &payment, nil
}

// RefundPayment issues a full refund. idempotencyKey makes redelivered
// requests collapse into one refund at the provider.
func (c *Client) RefundPayment(ctx context.Context, paymentID, idempotencyKey string) (*Refund, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	var refund Refund
	if err := c.do(ctx, http.MethodPost, "/v1/payments/"+paymentID+"/refunds", idempotencyKey, struct{}{}, &refund); err != nil {
		return nil, fmt.Errorf("refund payment %s: %w", paymentID, err)
	}
	return &refund, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, in, out interface{}) error {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, idempotencyKey, in)
	})
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path, idempotencyKey string, in interface{}) ([]byte, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseProviderError(resp.StatusCode, data)
	}
	return data, nil
}

func parseProviderError(status int, data []byte) *ProviderError {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if len(data) > maxErrorBody {
		data = data[:maxErrorBody]
	}
	if err := json.Unmarshal(data, &body); err != nil || (body.Message == "" && body.Error == "") {
		return &ProviderError{StatusCode: status, Message: strings.TrimSpace(string(data))}
	}
	return &ProviderError{StatusCode: status, Code: body.Error, Message: body.Message}
}
