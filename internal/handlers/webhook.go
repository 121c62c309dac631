package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bikestore/internal/mercadopago"
	"bikestore/internal/reconcile"
)

const maxWebhookBody = 64 << 10

type webhookNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// dataID accepts the id as a JSON string or number.
func (n webhookNotification) dataID() string {
	return strings.Trim(strings.TrimSpace(string(n.Data.ID)), `"`)
}

// MercadoPagoWebhook acknowledges payment notifications and hands them to
// the reconciliation queue. The provider only ever sees 200 or, when a
// secret is configured and the signature does not match, 403.
func MercadoPagoWebhook(secret string, queue reconcile.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /webhooks/mercadopago"
		defer handlePanic(c, route)

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			log.Printf("[%s] reading body: %v", route, err)
		}

		var notification webhookNotification
		decodeErr := json.Unmarshal(body, &notification)

		dataID := c.Query("data.id")
		if dataID == "" {
			dataID = notification.dataID()
		}
		if dataID == "" {
			dataID = c.Query("id")
		}

		requestID := c.GetHeader("x-request-id")
		if secret != "" && !mercadopago.VerifySignature(secret, c.GetHeader("x-signature"), requestID, dataID) {
			respondWithError(c, http.StatusForbidden, route, "invalid signature")
			return
		}

		if decodeErr != nil && len(body) > 0 {
			log.Printf("[%s] undecodable body acknowledged: %v", route, decodeErr)
		}

		kind := notification.Type
		if kind == "" {
			kind = c.Query("type")
		}
		if kind == "" {
			kind = c.Query("topic")
		}

		if kind == "payment" && dataID != "" {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 3*time.Second)
			defer cancel()

			err := queue.Enqueue(ctx, reconcile.Task{PaymentID: dataID, RequestID: requestID, ReceivedAt: time.Now().UTC()})
			if err != nil {
				log.Printf("[%s] [ERROR] enqueue payment %s: %v", route, dataID, err)
			} else {
				log.Printf("[%s] payment %s queued", route, dataID)
			}
		} else {
			log.Printf("[%s] ignoring notification type=%q id=%q", route, kind, dataID)
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
