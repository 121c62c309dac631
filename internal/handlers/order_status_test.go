package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikestore/internal/models"
)

func TestPaymentState(t *testing.T) {
	tests := []struct {
		name          string
		status        models.OrderStatus
		paymentStatus string
		want          string
	}{
		{"awaiting", models.OrderStatusPending, models.PaymentStatusPending, PaymentStatePending},
		{"in process", models.OrderStatusPending, models.PaymentStatusInProcess, PaymentStatePending},
		{"rejected", models.OrderStatusPending, models.PaymentStatusRejected, PaymentStateRejected},
		{"payment cancelled", models.OrderStatusPending, models.PaymentStatusCancelled, PaymentStateCancelled},
		{"paid", models.OrderStatusPaid, models.PaymentStatusApproved, PaymentStatePaid},
		{"shipped", models.OrderStatusShipped, models.PaymentStatusApproved, PaymentStatePaid},
		{"refunded after stock race", models.OrderStatusCancelled, models.PaymentStatusRefunded, PaymentStateRefunded},
		{"refund not yet accepted", models.OrderStatusCancelled, models.PaymentStatusRefundPending, PaymentStateCancelled},
		{"cancelled", models.OrderStatusCancelled, models.PaymentStatusPending, PaymentStateCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := models.Order{Status: tt.status, Payment: models.OrderPayment{Status: tt.paymentStatus}}
			assert.Equal(t, tt.want, paymentState(order))
		})
	}
}

func TestResumableCheckoutURL(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	open := now.Add(time.Hour)
	closed := now.Add(-time.Minute)

	hosted := func(expires *time.Time) models.Order {
		return models.Order{
			Status: models.OrderStatusPending,
			Payment: models.OrderPayment{
				Method:           models.PaymentMethodMercadoPago,
				CheckoutURL:      "https://mp.test/pref-1",
				SessionExpiresAt: expires,
				Status:           models.PaymentStatusPending,
			},
		}
	}

	assert.Equal(t, "https://mp.test/pref-1", resumableCheckoutURL(hosted(&open), PaymentStatePending, now))
	assert.Equal(t, "https://mp.test/pref-1", resumableCheckoutURL(hosted(&open), PaymentStateRejected, now))
	assert.Empty(t, resumableCheckoutURL(hosted(&closed), PaymentStatePending, now))
	assert.Empty(t, resumableCheckoutURL(hosted(nil), PaymentStatePending, now))
	assert.Empty(t, resumableCheckoutURL(hosted(&open), PaymentStatePaid, now))

	offline := hosted(&open)
	offline.Payment.Method = models.PaymentMethodBankTransfer
	assert.Empty(t, resumableCheckoutURL(offline, PaymentStatePending, now))
}

func TestGetOrderStatus(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	orders := orderMap{
		"ORD-20240501-042": {
			OrderNumber: "ORD-20240501-042",
			Status:      models.OrderStatusPending,
			Customer:    models.OrderCustomer{Name: "Ana Pérez", Email: "ana@example.com", DNI: "30111222"},
			Payment: models.OrderPayment{
				Method:           models.PaymentMethodMercadoPago,
				CheckoutURL:      "https://mp.test/pref-1",
				SessionExpiresAt: &expires,
				Status:           models.PaymentStatusPending,
			},
			Shipping: models.OrderShipping{Address: models.ShippingAddress{Street: "Av. Siempre Viva", Number: "742", City: "Rosario"}},
		},
	}

	r := gin.New()
	r.GET("/orders/:orderNumber", GetOrderStatus(orders))

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/ord-20240501-042", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, PaymentStatePending, got["paymentState"])
		assert.Equal(t, "https://mp.test/pref-1", got["completePaymentUrl"])
		assert.Equal(t, "Av. Siempre Viva 742, Rosario", got["shipping"])
		assert.NotContains(t, w.Body.String(), "30111222")
		assert.NotContains(t, w.Body.String(), "ana@example.com")
	})

	for _, tc := range []struct {
		path string
		want int
	}{
		{"/orders/ORD-20240501-043", http.StatusNotFound},
		{"/orders/not-an-order", http.StatusNotFound},
		{"/orders/ORD-20990101-999", http.StatusInternalServerError},
	} {
		t.Run(tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
