package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"bikestore/internal/database"
	"bikestore/internal/models"
)

func setupTestLedger(t *testing.T) (*MongoLedger, *mongo.Database) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongo integration test in short mode")
	}

	ctx := context.Background()

	// Transactions need a replica set.
	mongoContainer, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := database.Connect(uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	db := client.Database("bikestore_test")
	require.NoError(t, database.EnsureOrderIndexes(db))

	return NewMongoLedger(db), db
}

func seedProduct(t *testing.T, db *mongo.Database, id string, stock int) {
	t.Helper()
	_, err := db.Collection("products").InsertOne(context.Background(), models.Product{
		ID:     id,
		Name:   "Bike " + id,
		Slug:   id,
		Price:  1000,
		Stock:  stock,
		Status: models.ProductStatusPublished,
	})
	require.NoError(t, err)
}

func productStock(t *testing.T, db *mongo.Database, id string) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.Collection("products").FindOne(context.Background(), bson.M{"_id": id}).Decode(&p))
	return p.Stock
}

func pendingOrder(productID string, qty int) models.Order {
	return models.Order{
		Customer: models.OrderCustomer{Name: "Ana", Email: "ana@example.com"},
		Items: []models.OrderItem{
			{ProductID: productID, Name: "Bike", Quantity: qty, UnitPrice: 1000, Subtotal: 1000 * float64(qty)},
		},
		Payment: models.OrderPayment{Method: models.PaymentMethodMercadoPago, Status: models.PaymentStatusPending},
		Totals:  models.OrderTotals{Subtotal: 1000 * float64(qty), Total: 1000 * float64(qty)},
	}
}

func TestCreateOrder_AssignsNumberAndPending(t *testing.T) {
	l, _ := setupTestLedger(t)
	ctx := context.Background()

	created, err := l.CreateOrder(ctx, pendingOrder("p1", 2))
	require.NoError(t, err)
	assert.True(t, ValidOrderNumber(created.OrderNumber))
	assert.False(t, created.OrderID.IsZero())

	order, err := l.GetOrderByNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 2000.0, order.Totals.Total)
}

func TestCreateOrder_RetriesOnDuplicateNumber(t *testing.T) {
	l, _ := setupTestLedger(t)
	ctx := context.Background()

	numbers := []string{"ORD-20240101-001", "ORD-20240101-001", "ORD-20240101-002"}
	l.newNumber = func(time.Time) string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}

	first, err := l.CreateOrder(ctx, pendingOrder("p1", 1))
	require.NoError(t, err)
	second, err := l.CreateOrder(ctx, pendingOrder("p1", 1))
	require.NoError(t, err)

	assert.Equal(t, "ORD-20240101-001", first.OrderNumber)
	assert.Equal(t, "ORD-20240101-002", second.OrderNumber)
}

func TestCreateOrder_GivesUpAfterAttempts(t *testing.T) {
	l, _ := setupTestLedger(t)
	ctx := context.Background()
	l.newNumber = func(time.Time) string { return "ORD-20240101-001" }

	_, err := l.CreateOrder(ctx, pendingOrder("p1", 1))
	require.NoError(t, err)

	_, err = l.CreateOrder(ctx, pendingOrder("p1", 1))
	var creationErr *OrderCreationError
	assert.True(t, errors.As(err, &creationErr))
}

func TestGetOrderByNumber_Missing(t *testing.T) {
	l, _ := setupTestLedger(t)

	order, err := l.GetOrderByNumber(context.Background(), "ORD-20990101-999")
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestConfirmPayment_DecrementsOnce(t *testing.T) {
	l, db := setupTestLedger(t)
	ctx := context.Background()
	seedProduct(t, db, "p1", 5)

	created, err := l.CreateOrder(ctx, pendingOrder("p1", 2))
	require.NoError(t, err)
	order, err := l.GetOrderByNumber(ctx, created.OrderNumber)
	require.NoError(t, err)

	update := PaymentUpdate{ExternalPaymentID: "123", ExternalStatus: models.PaymentStatusApproved, Amount: 2000}
	require.NoError(t, l.ConfirmPayment(ctx, order.ID, order.Items, update))

	err = l.ConfirmPayment(ctx, order.ID, order.Items, update)
	assert.ErrorIs(t, err, ErrOrderNotPending)

	assert.Equal(t, 3, productStock(t, db, "p1"))

	order, err = l.GetOrderByNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, "123", order.Payment.ExternalPaymentID)
	assert.NotNil(t, order.PaidAt)
}

func TestConfirmPayment_FloorGuardRollsBack(t *testing.T) {
	l, db := setupTestLedger(t)
	ctx := context.Background()
	seedProduct(t, db, "p1", 5)
	seedProduct(t, db, "p2", 1)

	order := pendingOrder("p1", 2)
	order.Items = append(order.Items, models.OrderItem{ProductID: "p2", Name: "Bike", Quantity: 2, UnitPrice: 1000, Subtotal: 2000})
	created, err := l.CreateOrder(ctx, order)
	require.NoError(t, err)

	err = l.ConfirmPayment(ctx, created.OrderID, order.Items, PaymentUpdate{ExternalPaymentID: "9"})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 5, productStock(t, db, "p1"))
	assert.Equal(t, 1, productStock(t, db, "p2"))

	stored, err := l.GetOrderByNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestDecrementStock_NeverNegative(t *testing.T) {
	l, db := setupTestLedger(t)
	ctx := context.Background()
	seedProduct(t, db, "p1", 1)

	require.NoError(t, l.DecrementStock(ctx, "p1", 1))
	assert.ErrorIs(t, l.DecrementStock(ctx, "p1", 1), ErrInsufficientStock)
	assert.Equal(t, 0, productStock(t, db, "p1"))
}

func TestCancelForRefund_ClaimsOnce(t *testing.T) {
	l, _ := setupTestLedger(t)
	ctx := context.Background()

	created, err := l.CreateOrder(ctx, pendingOrder("p1", 1))
	require.NoError(t, err)

	update := PaymentUpdate{ExternalPaymentID: "77", Amount: 1000}
	require.NoError(t, l.CancelForRefund(ctx, created.OrderID, update))
	assert.ErrorIs(t, l.CancelForRefund(ctx, created.OrderID, update), ErrOrderNotPending)

	order, err := l.GetOrderByNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, models.PaymentStatusRefundPending, order.Payment.Status)
}

func TestMarkRefunded_OnlySettlesRefundPending(t *testing.T) {
	l, _ := setupTestLedger(t)
	ctx := context.Background()

	created, err := l.CreateOrder(ctx, pendingOrder("p1", 1))
	require.NoError(t, err)

	assert.ErrorIs(t, l.MarkRefunded(ctx, created.OrderID), ErrOrderNotPending, "pending orders are not refunded")

	require.NoError(t, l.CancelForRefund(ctx, created.OrderID, PaymentUpdate{ExternalPaymentID: "77"}))
	require.NoError(t, l.MarkRefunded(ctx, created.OrderID))
	assert.ErrorIs(t, l.MarkRefunded(ctx, created.OrderID), ErrOrderNotPending)

	order, err := l.GetOrderByNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, models.PaymentStatusRefunded, order.Payment.Status)
	assert.Equal(t, "77", order.Payment.ExternalPaymentID)
}

func TestRecordPaymentStatus_KeepsLifecycle(t *testing.T) {
	l, _ := setupTestLedger(t)
	ctx := context.Background()

	created, err := l.CreateOrder(ctx, pendingOrder("p1", 1))
	require.NoError(t, err)

	require.NoError(t, l.RecordPaymentStatus(ctx, created.OrderID, models.PaymentStatusRejected, "cc_rejected_insufficient_amount"))

	order, err := l.GetOrderByNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusRejected, order.Payment.Status)
	assert.Equal(t, "cc_rejected_insufficient_amount", order.Payment.StatusDetail)
}

func TestAttachPaymentSessionAndList(t *testing.T) {
	l, _ := setupTestLedger(t)
	ctx := context.Background()

	created, err := l.CreateOrder(ctx, pendingOrder("p1", 1))
	require.NoError(t, err)

	expires := time.Now().Add(48 * time.Hour)
	require.NoError(t, l.AttachPaymentSession(ctx, created.OrderID, PaymentSession{
		PreferenceID: "pref-1",
		CheckoutURL:  "https://mp.example/checkout",
		ExpiresAt:    expires,
	}))

	orders, total, err := l.ListOrders(ctx, 1, 10, string(models.OrderStatusPending))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orders, 1)
	assert.Equal(t, "pref-1", orders[0].Payment.PreferenceID)
	assert.Equal(t, "https://mp.example/checkout", orders[0].Payment.CheckoutURL)
	require.NotNil(t, orders[0].Payment.SessionExpiresAt)
}

func TestUpdateOrderPayment_OnlyFromPending(t *testing.T) {
	l, _ := setupTestLedger(t)
	ctx := context.Background()

	created, err := l.CreateOrder(ctx, pendingOrder("p1", 1))
	require.NoError(t, err)

	paidAt := time.Date(2024, 5, 1, 15, 4, 5, 0, time.UTC)
	update := PaymentUpdate{
		Status:            models.OrderStatusPaid,
		PaidAt:            &paidAt,
		ExternalPaymentID: "99",
		ExternalStatus:    models.PaymentStatusApproved,
		Amount:            1000,
	}
	require.NoError(t, l.UpdateOrderPayment(ctx, created.OrderID, update))
	assert.ErrorIs(t, l.UpdateOrderPayment(ctx, created.OrderID, update), ErrOrderNotPending)

	order, err := l.GetOrderByNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, "99", order.Payment.ExternalPaymentID)
	require.NotNil(t, order.PaidAt)
	assert.True(t, order.PaidAt.Equal(paidAt))
}
