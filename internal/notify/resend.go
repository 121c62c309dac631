package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultResendURL = "https://api.resend.com"

// Email is one outbound message. Tags end up in the provider's dashboard.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
	Tags    map[string]string
}

type Sender interface {
	Send(ctx context.Context, email Email) (string, error)
}

type ResendSender struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewResendSender(baseURL, apiKey string) *ResendSender {
	if baseURL == "" {
		baseURL = DefaultResendURL
	}
	return &ResendSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendRequest struct {
	From    string      `json:"from"`
	To      []string    `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html"`
	Tags    []resendTag `json:"tags,omitempty"`
}

func (s *ResendSender) Send(ctx context.Context, email Email) (string, error) {
	req := resendRequest{
		From:    email.From,
		To:      []string{email.To},
		Subject: email.Subject,
		HTML:    email.HTML,
	}
	for _, name := range sortedKeys(email.Tags) {
		req.Tags = append(req.Tags, resendTag{Name: name, Value: tagValue(email.Tags[name])})
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode email: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("resend request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("resend: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode resend response: %w", err)
	}
	return out.ID, nil
}

// LogSender prints emails instead of sending them. Used when no API key is
// configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, email Email) (string, error) {
	log.Printf("[EMAIL] [INFO] (not sent) to=%s subject=%q tags=%v", email.To, email.Subject, email.Tags)
	return "", nil
}

var tagValueCleaner = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Resend accepts only ASCII letters, digits, underscores and dashes in tags.
func tagValue(v string) string {
	v = tagValueCleaner.ReplaceAllString(strings.TrimSpace(v), "_")
	if len(v) > 256 {
		v = v[:256]
	}
	return v
}
