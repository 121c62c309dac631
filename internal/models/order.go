package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusRefunded
}

func (s OrderStatus) String() string {
	return string(s)
}

const (
	PaymentMethodMercadoPago  = "mercadopago"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCash         = "cash"
)

// IsOfflinePaymentMethod reports whether the method settles outside the
// hosted checkout (no payment session, no webhook).
func IsOfflinePaymentMethod(method string) bool {
	return method == PaymentMethodBankTransfer || method == PaymentMethodCash
}

// Provider-side payment statuses mirrored into Order.Payment.Status.
const (
	PaymentStatusPending     = "pending"
	PaymentStatusApproved    = "approved"
	PaymentStatusRejected    = "rejected"
	PaymentStatusCancelled   = "cancelled"
	PaymentStatusRefunded    = "refunded"
	PaymentStatusInProcess   = "in_process"
	PaymentStatusInMediation = "in_mediation"
)

// PaymentStatusRefundPending is never reported by the provider. It marks an
// order cancelled for a refund whose refund call has not succeeded yet.
const PaymentStatusRefundPending = "refund_pending"

// OrderItem is an immutable snapshot of the product at purchase time.
type OrderItem struct {
	ProductID string  `bson:"productId" json:"productId"`
	Name      string  `bson:"name" json:"name"`
	ImageURL  string  `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	UnitPrice float64 `bson:"unitPrice" json:"unitPrice"`
	Subtotal  float64 `bson:"subtotal" json:"subtotal"`
}

type OrderCustomer struct {
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
	Phone string `bson:"phone" json:"phone"`
	DNI   string `bson:"dni,omitempty" json:"dni,omitempty"`
}

type OrderPayment struct {
	Method            string     `bson:"method" json:"method"`
	ExternalPaymentID string     `bson:"externalPaymentId,omitempty" json:"externalPaymentId,omitempty"`
	PreferenceID      string     `bson:"preferenceId,omitempty" json:"preferenceId,omitempty"`
	CheckoutURL       string     `bson:"checkoutUrl,omitempty" json:"-"`
	SessionExpiresAt  *time.Time `bson:"sessionExpiresAt,omitempty" json:"sessionExpiresAt,omitempty"`
	Status            string     `bson:"status" json:"status"`
	StatusDetail      string     `bson:"statusDetail,omitempty" json:"statusDetail,omitempty"`
	Amount            float64    `bson:"amount" json:"amount"`
}

type ShippingAddress struct {
	Street  string `bson:"street" json:"street"`
	Number  string `bson:"number,omitempty" json:"number,omitempty"`
	Floor   string `bson:"floor,omitempty" json:"floor,omitempty"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	ZipCode string `bson:"zipCode" json:"zipCode"`
	Country string `bson:"country" json:"country"`
}

// OneLine renders the address the way confirmation emails print it.
func (a ShippingAddress) OneLine() string {
	line := a.Street
	if a.Number != "" {
		line += " " + a.Number
	}
	if a.Floor != "" {
		line += ", " + a.Floor
	}
	for _, part := range []string{a.City, a.State, a.ZipCode} {
		if part != "" {
			line += ", " + part
		}
	}
	return line
}

type OrderShipping struct {
	Address        ShippingAddress `bson:"address" json:"address"`
	Method         string          `bson:"method" json:"method"`
	Cost           float64         `bson:"cost" json:"cost"`
	TrackingNumber string          `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
}

type OrderTotals struct {
	Subtotal float64 `bson:"subtotal" json:"subtotal"`
	Shipping float64 `bson:"shipping" json:"shipping"`
	Discount float64 `bson:"discount" json:"discount"`
	Total    float64 `bson:"total" json:"total"`
}

// Order defines the persisted order document.
type Order struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber string             `bson:"orderNumber" json:"orderNumber"`
	Status      OrderStatus        `bson:"status" json:"status"`
	Customer    OrderCustomer      `bson:"customer" json:"customer"`
	Items       []OrderItem        `bson:"items" json:"items"`
	Payment     OrderPayment       `bson:"payment" json:"payment"`
	Shipping    OrderShipping      `bson:"shipping" json:"shipping"`
	Totals      OrderTotals        `bson:"totals" json:"totals"`
	Notes       string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
	PaidAt      *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
}
