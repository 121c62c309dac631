package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikestore/internal/cart"
	"bikestore/internal/checkout"
	"bikestore/internal/mercadopago"
)

const validCheckoutBody = `{
	"items": [{"productId": "p1", "quantity": 2}],
	"customer": {"firstName": " Ana ", "lastName": "Pérez", "email": "ANA@example.com", "phone": "1155550000", "dni": "30111222"},
	"shipping": {"address": "Av. Siempre Viva", "number": "742", "city": "Rosario", "province": "Santa Fe", "zipCode": "2000"},
	"paymentMethod": "mercadopago"
}`

func postCheckout(t *testing.T, s *stubCheckouter, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.POST("/checkout", Checkout(s))
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckoutHostedPaymentReturnsRedirect(t *testing.T) {
	s := &stubCheckouter{result: checkout.Result{
		Success:     true,
		OrderNumber: "ORD-20240501-042",
		RedirectURL: "https://mp.test/checkout/pref-1",
	}}

	w := postCheckout(t, s, validCheckoutBody)

	require.Equal(t, http.StatusCreated, w.Code)
	var got checkout.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "https://mp.test/checkout/pref-1", got.RedirectURL)

	assert.Equal(t, []cart.Line{{ProductID: "p1", Quantity: 2}}, s.got.Items)
	assert.Equal(t, "Ana", s.got.Customer.FirstName)
	assert.Equal(t, "ana@example.com", s.got.Customer.Email)
	assert.Equal(t, "Santa Fe", s.got.Shipping.Province)
}

func TestCheckoutStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		result checkout.Result
		want   int
	}{
		{"insufficient stock", checkout.Result{Error: checkout.ErrorInsufficientStock, Issues: []checkout.StockIssue{{ProductID: "p1"}}}, http.StatusConflict},
		{"order creation", checkout.Result{Error: checkout.ErrorOrderCreationFailed}, http.StatusInternalServerError},
		{"provider timeout", checkout.Result{OrderNumber: "ORD-20240501-001", Error: mercadopago.CodeTimeout}, http.StatusBadGateway},
		{"provider auth", checkout.Result{Error: mercadopago.CodeUnauthorized}, http.StatusBadGateway},
		{"invalid cart", checkout.Result{Error: checkout.ErrorInvalidCart}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCheckout(t, &stubCheckouter{result: tt.result}, validCheckoutBody)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCheckoutRejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"not json", "{", checkout.ErrorInvalidCart},
		{"empty items", strings.Replace(validCheckoutBody, `[{"productId": "p1", "quantity": 2}]`, `[]`, 1), checkout.ErrorInvalidCart},
		{"zero quantity", strings.Replace(validCheckoutBody, `"quantity": 2`, `"quantity": 0`, 1), checkout.ErrorInvalidCart},
		{"negative quantity", strings.Replace(validCheckoutBody, `"quantity": 2`, `"quantity": -1`, 1), checkout.ErrorInvalidCart},
		{"bad email", strings.Replace(validCheckoutBody, "ANA@example.com", "ana", 1), checkout.ErrorInvalidCart},
		{"unknown payment method", strings.Replace(validCheckoutBody, `"mercadopago"`, `"bitcoin"`, 1), checkout.ErrorInvalidPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubCheckouter{}
			w := postCheckout(t, s, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var got checkout.Result
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.wantErr, got.Error)
			assert.Zero(t, s.calls)
		})
	}
}

func TestCheckoutOfflinePaymentAccepted(t *testing.T) {
	s := &stubCheckouter{result: checkout.Result{Success: true, OrderNumber: "ORD-20240501-007"}}
	w := postCheckout(t, s, strings.Replace(validCheckoutBody, `"mercadopago"`, `"bank_transfer"`, 1))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "bank_transfer", s.got.PaymentMethod)
}

func TestCheckoutCatalogFailure(t *testing.T) {
	w := postCheckout(t, &stubCheckouter{err: errors.New("mongo down")}, validCheckoutBody)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
