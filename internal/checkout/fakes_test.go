package checkout

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bikestore/internal/ledger"
	"bikestore/internal/mercadopago"
	"bikestore/internal/models"
	"bikestore/internal/notify"
)

type fakeCatalog struct {
	products []models.CartProduct
	err      error
}

func (f *fakeCatalog) GetProductsByIDs(_ context.Context, ids []string) ([]models.CartProduct, error) {
	if f.err != nil {
		return nil, f.err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.CartProduct
	for _, p := range f.products {
		if wanted[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	orders    []models.Order
	sessions  map[primitive.ObjectID]ledger.PaymentSession
	createErr error
}

func (f *fakeLedger) CreateOrder(_ context.Context, order models.Order) (ledger.CreatedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return ledger.CreatedOrder{}, &ledger.OrderCreationError{Err: f.createErr}
	}
	order.ID = primitive.NewObjectID()
	order.OrderNumber = ledger.NewOrderNumber(fixedNow)
	f.orders = append(f.orders, order)
	return ledger.CreatedOrder{OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
}

func (f *fakeLedger) AttachPaymentSession(_ context.Context, id primitive.ObjectID, session ledger.PaymentSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions == nil {
		f.sessions = map[primitive.ObjectID]ledger.PaymentSession{}
	}
	f.sessions[id] = session
	return nil
}

type fakePayments struct {
	requests []mercadopago.PreferenceRequest
	err      error
}

func (f *fakePayments) CreatePreference(_ context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &mercadopago.Preference{ID: "pref-1", InitPoint: "https://mp.example/init/pref-1"}, nil
}

type fakeNotifier struct {
	confirmations []notify.OrderEmail
}

func (f *fakeNotifier) SendOrderConfirmation(_ context.Context, _ notify.Recipient, data notify.OrderEmail) error {
	f.confirmations = append(f.confirmations, data)
	return nil
}

func (f *fakeNotifier) SendPaymentConfirmed(context.Context, notify.Recipient, notify.OrderEmail) error {
	return errors.New("unexpected call")
}

func (f *fakeNotifier) SendPaymentRefunded(context.Context, notify.Recipient, notify.RefundEmail) error {
	return errors.New("unexpected call")
}
