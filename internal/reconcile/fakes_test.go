package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bikestore/internal/ledger"
	"bikestore/internal/mercadopago"
	"bikestore/internal/models"
	"bikestore/internal/notify"
)

// memStore is an in-memory order ledger and catalog sharing one stock table,
// with the same conditional semantics as the Mongo ledger.
type memStore struct {
	mu          sync.Mutex
	stock       map[string]int
	orders      map[string]*models.Order
	invalidated []string
	confirmErr  error

	markRefundedErr error
}

func newMemStore(stock map[string]int) *memStore {
	return &memStore{stock: stock, orders: map[string]*models.Order{}}
}

func (m *memStore) addOrder(order models.Order) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = primitive.NewObjectID()
	order.Status = models.OrderStatusPending
	m.orders[order.OrderNumber] = &order
	return &order
}

func (m *memStore) order(number string) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[number]
}

func (m *memStore) stockOf(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[id]
}

func (m *memStore) setStock(id string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[id] = n
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []string) ([]models.CartProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CartProduct
	for _, id := range ids {
		if n, ok := m.stock[id]; ok {
			out = append(out, models.CartProduct{ID: id, Name: "Bike " + id, Price: 1000, Stock: n})
		}
	}
	return out, nil
}

func (m *memStore) InvalidateProducts(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, ids...)
	return nil
}

func (m *memStore) GetOrderByNumber(_ context.Context, number string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[number]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (m *memStore) byID(id primitive.ObjectID) *models.Order {
	for _, o := range m.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (m *memStore) ConfirmPayment(_ context.Context, id primitive.ObjectID, items []models.OrderItem, update ledger.PaymentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmErr != nil {
		return m.confirmErr
	}
	o := m.byID(id)
	if o == nil || o.Status != models.OrderStatusPending {
		return ledger.ErrOrderNotPending
	}
	for _, item := range items {
		if m.stock[item.ProductID] < item.Quantity {
			return &ledger.StockError{ProductID: item.ProductID, Requested: item.Quantity}
		}
	}
	for _, item := range items {
		m.stock[item.ProductID] -= item.Quantity
	}
	now := time.Now()
	o.Status = models.OrderStatusPaid
	o.PaidAt = &now
	o.Payment.ExternalPaymentID = update.ExternalPaymentID
	o.Payment.Status = update.ExternalStatus
	o.Payment.Amount = update.Amount
	return nil
}

func (m *memStore) CancelForRefund(_ context.Context, id primitive.ObjectID, update ledger.PaymentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.byID(id)
	if o == nil || o.Status != models.OrderStatusPending {
		return ledger.ErrOrderNotPending
	}
	o.Status = models.OrderStatusCancelled
	o.Payment.Status = models.PaymentStatusRefundPending
	o.Payment.ExternalPaymentID = update.ExternalPaymentID
	return nil
}

func (m *memStore) MarkRefunded(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markRefundedErr != nil {
		return m.markRefundedErr
	}
	o := m.byID(id)
	if o == nil || o.Status != models.OrderStatusCancelled || o.Payment.Status != models.PaymentStatusRefundPending {
		return ledger.ErrOrderNotPending
	}
	o.Payment.Status = models.PaymentStatusRefunded
	return nil
}

func (m *memStore) RecordPaymentStatus(_ context.Context, id primitive.ObjectID, status, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.byID(id)
	if o == nil || o.Status != models.OrderStatusPending {
		return ledger.ErrOrderNotPending
	}
	o.Payment.Status = status
	o.Payment.StatusDetail = detail
	return nil
}

type fakeProvider struct {
	mu        sync.Mutex
	payments  map[string]mercadopago.Payment
	refunds   []string
	refundErr error
}

func (f *fakeProvider) GetPayment(_ context.Context, id string) (*mercadopago.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, &mercadopago.ProviderError{StatusCode: 404, Message: "payment not found"}
	}
	return &p, nil
}

func (f *fakeProvider) RefundPayment(_ context.Context, id, key string) (*mercadopago.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.refunds = append(f.refunds, key)
	if p, ok := f.payments[id]; ok {
		p.Status = models.PaymentStatusRefunded
		f.payments[id] = p
	}
	return &mercadopago.Refund{ID: 1}, nil
}

func (f *fakeProvider) refundCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refunds)
}

type countingNotifier struct {
	mu       sync.Mutex
	paid     []string
	refunded []string
	err      error
}

func (n *countingNotifier) SendOrderConfirmation(context.Context, notify.Recipient, notify.OrderEmail) error {
	return fmt.Errorf("unexpected order confirmation")
}

func (n *countingNotifier) SendPaymentConfirmed(_ context.Context, to notify.Recipient, _ notify.OrderEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.paid = append(n.paid, to.Email)
	return nil
}

func (n *countingNotifier) SendPaymentRefunded(_ context.Context, to notify.Recipient, _ notify.RefundEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refunded = append(n.refunded, to.Email)
	return nil
}

func (n *countingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.paid), len(n.refunded)
}
