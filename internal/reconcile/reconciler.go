// Package reconcile processes payment notifications after the webhook has
// acknowledged them: it re-checks stock, moves the order to paid or refunds
// the payment, and sends the matching email. Every pass is safe to repeat.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bikestore/internal/checkout"
	"bikestore/internal/ledger"
	"bikestore/internal/mercadopago"
	"bikestore/internal/models"
	"bikestore/internal/notify"
)

type Outcome string

const (
	OutcomePaid             Outcome = "paid"
	OutcomeRefunded         Outcome = "refunded"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeInFlight         Outcome = "in_flight"
	OutcomeNotApproved      Outcome = "not_approved"
	OutcomeNoMetadata       Outcome = "no_metadata"
	OutcomeOrderNotFound    Outcome = "order_not_found"
)

const (
	leaseTTL    = 2 * time.Minute
	taskTimeout = 2 * time.Minute

	refundReasonStock = "One or more products in your order ran out of stock before the payment was confirmed."
)

type PaymentProvider interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
	RefundPayment(ctx context.Context, paymentID, idempotencyKey string) (*mercadopago.Refund, error)
}

type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.CartProduct, error)
	InvalidateProducts(ctx context.Context, ids ...string) error
}

type Ledger interface {
	GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID primitive.ObjectID, items []models.OrderItem, update ledger.PaymentUpdate) error
	CancelForRefund(ctx context.Context, orderID primitive.ObjectID, update ledger.PaymentUpdate) error
	MarkRefunded(ctx context.Context, orderID primitive.ObjectID) error
	RecordPaymentStatus(ctx context.Context, orderID primitive.ObjectID, externalStatus, detail string) error
}

type Reconciler struct {
	payments  PaymentProvider
	catalog   Catalog
	ledger    Ledger
	notifier  notify.Notifier
	locker    Locker
	publicURL string
}

func NewReconciler(payments PaymentProvider, catalog Catalog, orders Ledger, notifier notify.Notifier, locker Locker, publicURL string) *Reconciler {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &Reconciler{
		payments:  payments,
		catalog:   catalog,
		ledger:    orders,
		notifier:  notifier,
		locker:    locker,
		publicURL: publicURL,
	}
}

// Handle is the queue entry point. It never returns an error and never lets
// a panic escape.
func (r *Reconciler) Handle(ctx context.Context, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[RECONCILE] [ERROR] panic reconciling payment %s: %v\n%s", task.PaymentID, rec, debug.Stack())
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	outcome, err := r.Process(ctx, task.PaymentID)
	if err != nil {
		log.Printf("[RECONCILE] [ERROR] payment %s (request %s): %v", task.PaymentID, task.RequestID, err)
		return
	}
	log.Printf("[RECONCILE] [INFO] payment %s: %s", task.PaymentID, outcome)
}

// Process runs one reconciliation pass for paymentID.
func (r *Reconciler) Process(ctx context.Context, paymentID string) (Outcome, error) {
	release, ok, err := r.locker.Acquire(ctx, paymentID, leaseTTL)
	switch {
	case err != nil:
		log.Printf("[RECONCILE] [WARN] lease unavailable for payment %s, continuing: %v", paymentID, err)
	case !ok:
		return OutcomeInFlight, nil
	default:
		defer release()
	}

	payment, err := r.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return "", fmt.Errorf("fetch payment: %w", err)
	}

	meta, metaErr := checkout.DecodeMetadata(payment.Metadata)
	orderNumber := meta.OrderNumber
	if orderNumber == "" {
		orderNumber = payment.ExternalReference
	}

	if payment.Status != models.PaymentStatusApproved {
		r.recordStatus(ctx, orderNumber, payment)
		return OutcomeNotApproved, nil
	}

	if errors.Is(metaErr, checkout.ErrNoCartMetadata) {
		log.Printf("[RECONCILE] [INFO] payment %s has no cart metadata, nothing to reconcile", paymentID)
		return OutcomeNoMetadata, nil
	}
	if metaErr != nil {
		return "", metaErr
	}

	order, err := r.ledger.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return "", fmt.Errorf("load order: %w", err)
	}
	// Checked before the stock gate: once paid, stock already reflects
	// this order and a second gate would fail.
	if order != nil && order.Status != models.OrderStatusPending {
		if refundInterrupted(order, payment) {
			log.Printf("[RECONCILE] [WARN] retrying refund for cancelled order %s", order.OrderNumber)
			return r.issueRefund(ctx, payment, order, meta)
		}
		return OutcomeAlreadyProcessed, nil
	}

	products, err := r.catalog.GetProductsByIDs(ctx, checkout.ProductIDs(meta.Items))
	if err != nil {
		return "", fmt.Errorf("load products: %w", err)
	}

	if issues := checkout.ValidateStock(meta.Items, products); len(issues) > 0 {
		log.Printf("[RECONCILE] [WARN] payment %s approved but %d line(s) short on stock", paymentID, len(issues))
		return r.refund(ctx, payment, order, meta)
	}

	if order == nil {
		log.Printf("[RECONCILE] [ERROR] order-not-found %s for approved payment %s", orderNumber, paymentID)
		return OutcomeOrderNotFound, nil
	}

	update := ledger.PaymentUpdate{
		ExternalPaymentID: fmt.Sprint(payment.ID),
		ExternalStatus:    payment.Status,
		StatusDetail:      payment.StatusDetail,
		Amount:            payment.TransactionAmount,
	}
	err = r.ledger.ConfirmPayment(ctx, order.ID, order.Items, update)
	switch {
	case errors.Is(err, ledger.ErrOrderNotPending):
		return OutcomeAlreadyProcessed, nil
	case errors.Is(err, ledger.ErrInsufficientStock):
		log.Printf("[RECONCILE] [WARN] stock ran out while confirming %s: %v", order.OrderNumber, err)
		return r.refund(ctx, payment, order, meta)
	case err != nil:
		log.Printf("[RECONCILE] [ERROR] ledger-update-failed %s: %v", order.OrderNumber, err)
		return "", fmt.Errorf("confirm payment: %w", err)
	}

	if err := r.catalog.InvalidateProducts(ctx, checkout.ProductIDs(meta.Items)...); err != nil {
		log.Printf("[RECONCILE] [WARN] catalog cache invalidation failed: %v", err)
	}

	err = r.notifier.SendPaymentConfirmed(ctx,
		notify.Recipient{Email: order.Customer.Email, Name: order.Customer.Name},
		notify.OrderEmail{
			OrderNumber:     order.OrderNumber,
			OrderURL:        checkout.OrderURL(r.publicURL, order.OrderNumber),
			CustomerName:    order.Customer.Name,
			Items:           checkout.EmailItems(order.Items),
			Total:           order.Totals.Total,
			ShippingAddress: order.Shipping.Address.OneLine(),
		})
	if err != nil {
		log.Printf("[RECONCILE] [ERROR] paid-email-failed %s: %v", order.OrderNumber, err)
	}

	return OutcomePaid, nil
}

func (r *Reconciler) refund(ctx context.Context, payment *mercadopago.Payment, order *models.Order, meta checkout.PaymentMetadata) (Outcome, error) {
	paymentID := fmt.Sprint(payment.ID)

	if order != nil {
		err := r.ledger.CancelForRefund(ctx, order.ID, ledger.PaymentUpdate{
			ExternalPaymentID: paymentID,
			StatusDetail:      checkout.IssueInsufficientStock,
			Amount:            payment.TransactionAmount,
		})
		switch {
		case errors.Is(err, ledger.ErrOrderNotPending):
			return OutcomeAlreadyProcessed, nil
		case err != nil:
			// The money still has to go back; a redelivery will retry the claim.
			log.Printf("[RECONCILE] [ERROR] ledger-update-failed cancelling %s: %v", order.OrderNumber, err)
		}
	} else {
		log.Printf("[RECONCILE] [WARN] refunding payment %s for unknown order %s", paymentID, meta.OrderNumber)
	}

	return r.issueRefund(ctx, payment, order, meta)
}

// issueRefund is safe to repeat: the provider collapses calls sharing the
// idempotency key.
func (r *Reconciler) issueRefund(ctx context.Context, payment *mercadopago.Payment, order *models.Order, meta checkout.PaymentMetadata) (Outcome, error) {
	paymentID := fmt.Sprint(payment.ID)

	if _, err := r.payments.RefundPayment(ctx, paymentID, "refund-"+paymentID); err != nil {
		log.Printf("[RECONCILE] [ERROR] refund-failed payment %s: %v", paymentID, err)
		return "", fmt.Errorf("refund payment: %w", err)
	}
	if order != nil {
		r.markRefunded(ctx, order)
	}

	to := notify.Recipient{Email: meta.CustomerEmail, Name: meta.CustomerName}
	orderNumber := meta.OrderNumber
	if order != nil {
		to = notify.Recipient{Email: order.Customer.Email, Name: order.Customer.Name}
		orderNumber = order.OrderNumber
	}

	err := r.notifier.SendPaymentRefunded(ctx, to, notify.RefundEmail{
		OrderNumber:  orderNumber,
		OrderURL:     checkout.OrderURL(r.publicURL, orderNumber),
		CustomerName: to.Name,
		Amount:       payment.TransactionAmount,
		Reason:       refundReasonStock,
	})
	if err != nil {
		log.Printf("[RECONCILE] [ERROR] refund-email-failed %s: %v", orderNumber, err)
	}

	return OutcomeRefunded, nil
}

// markRefunded failures leave the order in refund_pending; the provider's
// refunded notification settles it later through recordStatus.
func (r *Reconciler) markRefunded(ctx context.Context, order *models.Order) {
	err := r.ledger.MarkRefunded(ctx, order.ID)
	if err != nil && !errors.Is(err, ledger.ErrOrderNotPending) {
		log.Printf("[RECONCILE] [ERROR] ledger-update-failed marking %s refunded: %v", order.OrderNumber, err)
	}
}

// refundInterrupted reports an order we cancelled for a refund while the
// provider still shows the payment as approved.
func refundInterrupted(order *models.Order, payment *mercadopago.Payment) bool {
	return order.Status == models.OrderStatusCancelled &&
		order.Payment.Status == models.PaymentStatusRefundPending &&
		order.Payment.ExternalPaymentID == fmt.Sprint(payment.ID) &&
		payment.Status == models.PaymentStatusApproved
}

func (r *Reconciler) recordStatus(ctx context.Context, orderNumber string, payment *mercadopago.Payment) {
	if orderNumber == "" || payment.Status == "" {
		return
	}

	order, err := r.ledger.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		log.Printf("[RECONCILE] [WARN] load order %s: %v", orderNumber, err)
		return
	}
	if order == nil {
		return
	}
	if order.Payment.Status == models.PaymentStatusRefundPending && payment.Status == models.PaymentStatusRefunded {
		r.markRefunded(ctx, order)
		return
	}
	if order.Status != models.OrderStatusPending || order.Payment.Status == payment.Status {
		return
	}

	err = r.ledger.RecordPaymentStatus(ctx, order.ID, payment.Status, payment.StatusDetail)
	if err != nil && !errors.Is(err, ledger.ErrOrderNotPending) {
		log.Printf("[RECONCILE] [ERROR] ledger-update-failed recording %s on %s: %v", payment.Status, orderNumber, err)
	}
}
