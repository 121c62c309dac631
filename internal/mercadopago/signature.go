package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseSignatureHeader splits an x-signature header ("ts=...,v1=...").
func ParseSignatureHeader(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	return ts, v1
}

func SignatureManifest(dataID, requestID, ts string) string {
	return fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
}

func Sign(secret, dataID, requestID, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(SignatureManifest(dataID, requestID, ts)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the webhook HMAC. Alphanumeric data ids are
// lowercased before signing, as the provider does.
func VerifySignature(secret, xSignature, xRequestID, dataID string) bool {
	ts, v1 := ParseSignatureHeader(xSignature)
	if ts == "" || v1 == "" {
		return false
	}

	expected := Sign(secret, strings.ToLower(dataID), xRequestID, ts)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(v1)))
}
