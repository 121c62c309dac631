// Package ledger persists orders and owns every write that moves an order
// through its lifecycle or touches product stock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bikestore/internal/models"
)

const orderNumberAttempts = 5

type CreatedOrder struct {
	OrderID     primitive.ObjectID
	OrderNumber string
}

type PaymentSession struct {
	PreferenceID string
	CheckoutURL  string
	ExpiresAt    time.Time
}

// PaymentUpdate is the partial write applied on a pending order. Zero fields
// are left untouched.
type PaymentUpdate struct {
	Status            models.OrderStatus
	PaidAt            *time.Time
	ExternalPaymentID string
	ExternalStatus    string
	StatusDetail      string
	Amount            float64
}

type MongoLedger struct {
	client   *mongo.Client
	orders   *mongo.Collection
	products *mongo.Collection

	now       func() time.Time
	newNumber func(time.Time) string
}

func NewMongoLedger(db *mongo.Database) *MongoLedger {
	return &MongoLedger{
		client:    db.Client(),
		orders:    db.Collection("orders"),
		products:  db.Collection("products"),
		now:       time.Now,
		newNumber: NewOrderNumber,
	}
}

func (l *MongoLedger) CreateOrder(ctx context.Context, order models.Order) (CreatedOrder, error) {
	now := l.now().UTC()
	order.ID = primitive.NilObjectID
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	var lastErr error
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		order.OrderNumber = l.newNumber(now)

		res, err := l.orders.InsertOne(ctx, order)
		if err == nil {
			id, _ := res.InsertedID.(primitive.ObjectID)
			log.Printf("[LEDGER] [INFO] order %s created", order.OrderNumber)
			return CreatedOrder{OrderID: id, OrderNumber: order.OrderNumber}, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return CreatedOrder{}, &OrderCreationError{Err: err}
		}

		log.Printf("[LEDGER] [WARN] order number %s taken (attempt %d)", order.OrderNumber, attempt)
		lastErr = err
	}
	return CreatedOrder{}, &OrderCreationError{Err: fmt.Errorf("no free order number after %d attempts: %w", orderNumberAttempts, lastErr)}
}

func (l *MongoLedger) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, nil
	}

	var order models.Order
	err := l.orders.FindOne(ctx, bson.M{"orderNumber": orderNumber}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", orderNumber, err)
	}
	return &order, nil
}

func (l *MongoLedger) AttachPaymentSession(ctx context.Context, orderID primitive.ObjectID, session PaymentSession) error {
	set := bson.M{
		"payment.preferenceId": session.PreferenceID,
		"payment.checkoutUrl":  session.CheckoutURL,
		"updatedAt":            l.now().UTC(),
	}
	if !session.ExpiresAt.IsZero() {
		set["payment.sessionExpiresAt"] = session.ExpiresAt.UTC()
	}

	res, err := l.orders.UpdateOne(ctx, bson.M{"_id": orderID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("attach payment session: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateOrderPayment applies update only while the order is still pending.
func (l *MongoLedger) UpdateOrderPayment(ctx context.Context, orderID primitive.ObjectID, update PaymentUpdate) error {
	return l.transition(ctx, orderID, update)
}

// RecordPaymentStatus mirrors a non-approved provider status. The order
// lifecycle status is not changed.
func (l *MongoLedger) RecordPaymentStatus(ctx context.Context, orderID primitive.ObjectID, externalStatus, detail string) error {
	return l.transition(ctx, orderID, PaymentUpdate{ExternalStatus: externalStatus, StatusDetail: detail})
}

// CancelForRefund claims a pending order for a refund. The payment is left
// in refund_pending until MarkRefunded records the provider's answer.
func (l *MongoLedger) CancelForRefund(ctx context.Context, orderID primitive.ObjectID, update PaymentUpdate) error {
	update.Status = models.OrderStatusCancelled
	update.ExternalStatus = models.PaymentStatusRefundPending
	return l.transition(ctx, orderID, update)
}

// MarkRefunded settles a refund_pending order once the provider accepted the
// refund. Orders in any other state report ErrOrderNotPending.
func (l *MongoLedger) MarkRefunded(ctx context.Context, orderID primitive.ObjectID) error {
	res, err := l.orders.UpdateOne(ctx,
		bson.M{
			"_id":            orderID,
			"status":         models.OrderStatusCancelled,
			"payment.status": models.PaymentStatusRefundPending,
		},
		bson.M{"$set": bson.M{
			"payment.status": models.PaymentStatusRefunded,
			"updatedAt":      l.now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("mark order refunded: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrOrderNotPending
	}
	return nil
}

func (l *MongoLedger) DecrementStock(ctx context.Context, productID string, quantity int) error {
	return decrementStock(ctx, l.products, productID, quantity)
}

// ConfirmPayment moves a pending order to paid and takes every line out of
// stock in one transaction. Nothing is written if any step fails.
func (l *MongoLedger) ConfirmPayment(ctx context.Context, orderID primitive.ObjectID, items []models.OrderItem, update PaymentUpdate) error {
	update.Status = models.OrderStatusPaid
	if update.PaidAt == nil {
		paidAt := l.now().UTC()
		update.PaidAt = &paidAt
	}

	session, err := l.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if err := l.transition(sessCtx, orderID, update); err != nil {
			return nil, err
		}
		for _, item := range items {
			if err := decrementStock(sessCtx, l.products, item.ProductID, item.Quantity); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (l *MongoLedger) ListOrders(ctx context.Context, page, limit int, status string) ([]models.Order, int64, error) {
	filter := bson.M{}
	if status = strings.TrimSpace(status); status != "" {
		filter["status"] = status
	}

	total, err := l.orders.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := l.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0, limit)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("decode orders: %w", err)
	}
	return orders, total, nil
}

func (l *MongoLedger) transition(ctx context.Context, orderID primitive.ObjectID, update PaymentUpdate) error {
	res, err := l.orders.UpdateOne(ctx,
		bson.M{"_id": orderID, "status": models.OrderStatusPending},
		bson.M{"$set": paymentSet(update, l.now().UTC())},
	)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrOrderNotPending
	}
	return nil
}

func paymentSet(update PaymentUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if update.Status != "" {
		set["status"] = update.Status
	}
	if update.PaidAt != nil {
		set["paidAt"] = update.PaidAt.UTC()
	}
	if update.ExternalPaymentID != "" {
		set["payment.externalPaymentId"] = update.ExternalPaymentID
	}
	if update.ExternalStatus != "" {
		set["payment.status"] = update.ExternalStatus
	}
	if update.StatusDetail != "" {
		set["payment.statusDetail"] = update.StatusDetail
	}
	if update.Amount > 0 {
		set["payment.amount"] = update.Amount
	}
	return set
}

func decrementStock(ctx context.Context, products *mongo.Collection, productID string, quantity int) error {
	if quantity <= 0 {
		return nil
	}

	res, err := products.UpdateOne(ctx,
		bson.M{"_id": productID, "stock": bson.M{"$gte": quantity}},
		bson.M{"$inc": bson.M{"stock": -quantity}},
	)
	if err != nil {
		return fmt.Errorf("decrement stock for %s: %w", productID, err)
	}
	if res.MatchedCount == 0 {
		return &StockError{ProductID: productID, Requested: quantity}
	}
	return nil
}
