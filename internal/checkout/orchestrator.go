// Package checkout turns a cart into a pending order and, for hosted
// payments, a provider checkout session.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bikestore/internal/cart"
	"bikestore/internal/ledger"
	"bikestore/internal/mercadopago"
	"bikestore/internal/models"
	"bikestore/internal/notify"
)

const (
	ErrorInvalidCart         = "invalid_cart"
	ErrorInsufficientStock   = "insufficient_stock"
	ErrorOrderCreationFailed = "order_creation_failed"
	ErrorInvalidPayment      = "invalid_payment_method"
)

type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.CartProduct, error)
}

type Ledger interface {
	CreateOrder(ctx context.Context, order models.Order) (ledger.CreatedOrder, error)
	AttachPaymentSession(ctx context.Context, orderID primitive.ObjectID, session ledger.PaymentSession) error
}

type PaymentProvider interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
}

type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	DNI       string
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Shipping struct {
	Address  string
	Number   string
	Floor    string
	City     string
	Province string
	ZipCode  string
}

type Request struct {
	Items         []cart.Line
	Customer      Customer
	Shipping      Shipping
	PaymentMethod string
	Notes         string
}

type Result struct {
	Success     bool         `json:"success"`
	OrderNumber string       `json:"orderNumber,omitempty"`
	RedirectURL string       `json:"redirectUrl,omitempty"`
	Error       string       `json:"error,omitempty"`
	Message     string       `json:"message,omitempty"`
	Issues      []StockIssue `json:"issues,omitempty"`
}

type Config struct {
	PublicURL           string
	SessionTTL          time.Duration
	CurrencyID          string
	StatementDescriptor string
	Country             string
}

type Orchestrator struct {
	catalog  Catalog
	ledger   Ledger
	payments PaymentProvider
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time
}

func New(catalog Catalog, orders Ledger, payments PaymentProvider, notifier notify.Notifier, cfg Config) *Orchestrator {
	if cfg.CurrencyID == "" {
		cfg.CurrencyID = "ARS"
	}
	if cfg.Country == "" {
		cfg.Country = "AR"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 48 * time.Hour
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	return &Orchestrator{
		catalog:  catalog,
		ledger:   orders,
		payments: payments,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Checkout validates stock, writes a pending order and, for hosted payments,
// opens a payment session. Business outcomes are reported in Result; the
// error is reserved for infrastructure failures before any order exists.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) (Result, error) {
	method := req.PaymentMethod
	if method != models.PaymentMethodMercadoPago && !models.IsOfflinePaymentMethod(method) {
		return Result{Error: ErrorInvalidPayment, Message: "unsupported payment method"}, nil
	}

	lines, err := NormalizeLines(req.Items)
	if err != nil {
		return Result{Error: ErrorInvalidCart, Message: err.Error()}, nil
	}

	products, err := o.catalog.GetProductsByIDs(ctx, ProductIDs(lines))
	if err != nil {
		return Result{}, fmt.Errorf("load cart products: %w", err)
	}

	if issues := ValidateStock(lines, products); len(issues) > 0 {
		log.Printf("[CHECKOUT] [INFO] rejected cart with %d stock issue(s)", len(issues))
		return Result{Error: ErrorInsufficientStock, Issues: issues}, nil
	}

	items, totals := BuildItems(lines, products, 0, 0)
	order := models.Order{
		Status: models.OrderStatusPending,
		Customer: models.OrderCustomer{
			Name:  req.Customer.FullName(),
			Email: strings.TrimSpace(req.Customer.Email),
			Phone: strings.TrimSpace(req.Customer.Phone),
			DNI:   strings.TrimSpace(req.Customer.DNI),
		},
		Items: items,
		Payment: models.OrderPayment{
			Method: method,
			Status: models.PaymentStatusPending,
			Amount: totals.Total,
		},
		Shipping: models.OrderShipping{
			Address: models.ShippingAddress{
				Street:  req.Shipping.Address,
				Number:  req.Shipping.Number,
				Floor:   req.Shipping.Floor,
				City:    req.Shipping.City,
				State:   req.Shipping.Province,
				ZipCode: req.Shipping.ZipCode,
				Country: o.cfg.Country,
			},
			Method: "standard",
			Cost:   totals.Shipping,
		},
		Totals: totals,
		Notes:  strings.TrimSpace(req.Notes),
	}

	created, err := o.ledger.CreateOrder(ctx, order)
	if err != nil {
		log.Printf("[CHECKOUT] [ERROR] order creation failed: %v", err)
		return Result{Error: ErrorOrderCreationFailed, Message: "the order could not be created"}, nil
	}
	order.ID = created.OrderID
	order.OrderNumber = created.OrderNumber

	if models.IsOfflinePaymentMethod(method) {
		o.sendOrderConfirmation(ctx, order)
		return Result{Success: true, OrderNumber: created.OrderNumber}, nil
	}

	redirectURL, err := o.openPaymentSession(ctx, order, lines, req)
	if err != nil {
		code, message := mercadopago.Classify(err)
		log.Printf("[CHECKOUT] [ERROR] payment session for %s failed (%s): %v", created.OrderNumber, code, err)
		return Result{OrderNumber: created.OrderNumber, Error: code, Message: message}, nil
	}

	return Result{Success: true, OrderNumber: created.OrderNumber, RedirectURL: redirectURL}, nil
}

func (o *Orchestrator) openPaymentSession(ctx context.Context, order models.Order, lines []cart.Line, req Request) (string, error) {
	if o.payments == nil {
		return "", errors.New("payment provider is not configured")
	}

	metadata, err := PaymentMetadata{
		OrderNumber:      order.OrderNumber,
		Items:            lines,
		CustomerEmail:    order.Customer.Email,
		CustomerName:     order.Customer.Name,
		CustomerPhone:    order.Customer.Phone,
		CustomerDNI:      order.Customer.DNI,
		ShippingAddress:  req.Shipping.Address,
		ShippingCity:     req.Shipping.City,
		ShippingProvince: req.Shipping.Province,
		ShippingZipCode:  req.Shipping.ZipCode,
	}.Encode()
	if err != nil {
		return "", err
	}

	now := o.now().UTC()
	expiresAt := now.Add(o.cfg.SessionTTL)
	orderURL := o.OrderURL(order.OrderNumber)

	pref := mercadopago.PreferenceRequest{
		Items: make([]mercadopago.PreferenceItem, 0, len(order.Items)),
		Payer: mercadopago.Payer{
			Name:    req.Customer.FirstName,
			Surname: req.Customer.LastName,
			Email:   order.Customer.Email,
			Phone:   mercadopago.Phone{Number: order.Customer.Phone},
		},
		BackURLs:            mercadopago.BackURLs{Success: orderURL, Failure: orderURL, Pending: orderURL},
		AutoReturn:          "approved",
		NotificationURL:     o.cfg.PublicURL + "/webhooks/mercadopago",
		ExternalReference:   order.OrderNumber,
		Metadata:            metadata,
		Expires:             true,
		ExpirationDateFrom:  &now,
		ExpirationDateTo:    &expiresAt,
		StatementDescriptor: o.cfg.StatementDescriptor,
	}
	if order.Customer.DNI != "" {
		pref.Payer.Identification = &mercadopago.Identification{Type: "DNI", Number: order.Customer.DNI}
	}
	for _, item := range order.Items {
		pref.Items = append(pref.Items, mercadopago.PreferenceItem{
			ID:         item.ProductID,
			Title:      item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			CurrencyID: o.cfg.CurrencyID,
			PictureURL: item.ImageURL,
		})
	}

	preference, err := o.payments.CreatePreference(ctx, pref)
	if err != nil {
		return "", err
	}

	// A failed write only hides the completion link on the order page.
	if err := o.ledger.AttachPaymentSession(ctx, order.ID, ledger.PaymentSession{
		PreferenceID: preference.ID,
		CheckoutURL:  preference.InitPoint,
		ExpiresAt:    expiresAt,
	}); err != nil {
		log.Printf("[CHECKOUT] [ERROR] attach payment session to %s failed: %v", order.OrderNumber, err)
	}

	return preference.InitPoint, nil
}

func (o *Orchestrator) sendOrderConfirmation(ctx context.Context, order models.Order) {
	if o.notifier == nil {
		return
	}

	instructions := "Pay in cash when you pick up your order."
	if order.Payment.Method == models.PaymentMethodBankTransfer {
		instructions = "We will email you the bank transfer details shortly."
	}

	err := o.notifier.SendOrderConfirmation(ctx,
		notify.Recipient{Email: order.Customer.Email, Name: order.Customer.Name},
		notify.OrderEmail{
			OrderNumber:         order.OrderNumber,
			OrderURL:            o.OrderURL(order.OrderNumber),
			CustomerName:        order.Customer.Name,
			Items:               EmailItems(order.Items),
			Total:               order.Totals.Total,
			ShippingAddress:     order.Shipping.Address.OneLine(),
			PaymentInstructions: instructions,
		})
	if err != nil {
		log.Printf("[CHECKOUT] [ERROR] order-confirmation-email-failed %s: %v", order.OrderNumber, err)
	}
}

func (o *Orchestrator) OrderURL(orderNumber string) string {
	return OrderURL(o.cfg.PublicURL, orderNumber)
}

func OrderURL(publicURL, orderNumber string) string {
	return strings.TrimRight(publicURL, "/") + "/pedido/" + orderNumber
}

func EmailItems(items []models.OrderItem) []notify.EmailItem {
	out := make([]notify.EmailItem, 0, len(items))
	for _, item := range items {
		out = append(out, notify.EmailItem{Name: item.Name, Quantity: item.Quantity, Subtotal: item.Subtotal})
	}
	return out
}
