package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bikestore/internal/ledger"
	"bikestore/internal/models"
)

const (
	PaymentStatePending   = "pending"
	PaymentStatePaid      = "paid"
	PaymentStateRejected  = "rejected"
	PaymentStateCancelled = "cancelled"
	PaymentStateRefunded  = "refunded"
)

var paymentStateMessages = map[string]string{
	PaymentStatePending:   "We are waiting for your payment to be confirmed.",
	PaymentStatePaid:      "Payment received. We are preparing your order.",
	PaymentStateRejected:  "Your payment was rejected. You can try again with another card.",
	PaymentStateCancelled: "This order was cancelled.",
	PaymentStateRefunded:  "This order was cancelled and your payment refunded.",
}

type OrderReader interface {
	GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
}

type orderStatusView struct {
	OrderNumber        string             `json:"orderNumber"`
	Status             models.OrderStatus `json:"status"`
	PaymentMethod      string             `json:"paymentMethod"`
	PaymentState       string             `json:"paymentState"`
	Message            string             `json:"message"`
	CompletePaymentURL string             `json:"completePaymentUrl,omitempty"`
	CustomerName       string             `json:"customerName"`
	Items              []models.OrderItem `json:"items"`
	Totals             models.OrderTotals `json:"totals"`
	Shipping           string             `json:"shipping"`
	CreatedAt          time.Time          `json:"createdAt"`
	PaidAt             *time.Time         `json:"paidAt,omitempty"`
}

// paymentState folds the order lifecycle and the provider sub-status into
// the single state the order page renders.
func paymentState(order models.Order) string {
	switch order.Status {
	case models.OrderStatusPaid, models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusCompleted:
		return PaymentStatePaid
	case models.OrderStatusRefunded:
		return PaymentStateRefunded
	case models.OrderStatusCancelled:
		if order.Payment.Status == models.PaymentStatusRefunded {
			return PaymentStateRefunded
		}
		return PaymentStateCancelled
	}

	switch order.Payment.Status {
	case models.PaymentStatusRejected:
		return PaymentStateRejected
	case models.PaymentStatusCancelled:
		return PaymentStateCancelled
	default:
		return PaymentStatePending
	}
}

// resumableCheckoutURL is only offered while the hosted session is still open.
func resumableCheckoutURL(order models.Order, state string, now time.Time) string {
	if state != PaymentStatePending && state != PaymentStateRejected {
		return ""
	}
	p := order.Payment
	if p.Method != models.PaymentMethodMercadoPago || p.CheckoutURL == "" || p.SessionExpiresAt == nil {
		return ""
	}
	if !now.Before(*p.SessionExpiresAt) {
		return ""
	}
	return p.CheckoutURL
}

func newOrderStatusView(order models.Order, now time.Time) orderStatusView {
	state := paymentState(order)
	return orderStatusView{
		OrderNumber:        order.OrderNumber,
		Status:             order.Status,
		PaymentMethod:      order.Payment.Method,
		PaymentState:       state,
		Message:            paymentStateMessages[state],
		CompletePaymentURL: resumableCheckoutURL(order, state, now),
		CustomerName:       order.Customer.Name,
		Items:              order.Items,
		Totals:             order.Totals,
		Shipping:           order.Shipping.Address.OneLine(),
		CreatedAt:          order.CreatedAt,
		PaidAt:             order.PaidAt,
	}
}

func GetOrderStatus(orders OrderReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:orderNumber"
		defer handlePanic(c, route)

		orderNumber := strings.ToUpper(strings.TrimSpace(c.Param("orderNumber")))
		if !ledger.ValidOrderNumber(orderNumber) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		order, err := orders.GetOrderByNumber(ctx, orderNumber)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if order == nil {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		c.JSON(http.StatusOK, newOrderStatusView(*order, time.Now()))
	}
}
