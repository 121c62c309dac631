package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

const (
	CodeUnauthorized = "mercadopago_unauthorized"
	CodeInvalidToken = "mercadopago_invalid_token"
	CodeTimeout      = "mercadopago_timeout"
	CodeError        = "mercadopago_error"
)

// ProviderError is a non-2xx answer from the API.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("mercadopago: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("mercadopago: %d: %s", e.StatusCode, e.Message)
}

var userMessages = map[string]string{
	CodeUnauthorized: "Payment provider authentication failed. Please contact support.",
	CodeInvalidToken: "Payment provider credentials are invalid. Please contact support.",
	CodeTimeout:      "The payment provider did not respond in time. Please try again.",
	CodeError:        "The payment could not be started. Please try again in a few minutes.",
}

// Classify maps a client error to a stable error code and a shopper-facing
// message.
func Classify(err error) (string, string) {
	code := classify(err)
	return code, userMessages[code]
}

func classify(err error) string {
	if err == nil {
		return CodeError
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		text := strings.ToLower(providerErr.Code + " " + providerErr.Message)
		switch {
		case strings.Contains(text, "invalid_token") || strings.Contains(text, "invalid access token"):
			return CodeInvalidToken
		case providerErr.StatusCode == 401 || providerErr.StatusCode == 403 || strings.Contains(text, "unauthorized"):
			return CodeUnauthorized
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "unauthorized"):
		return CodeUnauthorized
	case strings.Contains(text, "invalid_token"):
		return CodeInvalidToken
	case strings.Contains(text, "timeout"):
		return CodeTimeout
	}
	return CodeError
}
