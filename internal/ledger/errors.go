package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotPending is returned by the conditional transitions when the
	// order already left pending. Reconciliation treats it as "already handled".
	ErrOrderNotPending   = errors.New("order is not pending")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
)

type OrderCreationError struct {
	Err error
}

func (e *OrderCreationError) Error() string {
	return fmt.Sprintf("order creation failed: %v", e.Err)
}

func (e *OrderCreationError) Unwrap() error {
	return e.Err
}

// StockError names the product whose floor guard rejected a decrement.
type StockError struct {
	ProductID string
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d)", e.ProductID, e.Requested)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
