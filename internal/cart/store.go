// Package cart is the client-local shopping cart. Lines carry only a product
// id and a quantity; names and prices are always re-read from the catalog.
package cart

import (
	"fmt"
	"strings"
	"sync"
)

type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Store struct {
	mu      sync.Mutex
	storage Storage
	bus     *Bus
}

func NewStore(storage Storage, bus *Bus) *Store {
	if bus == nil {
		bus = NewBus()
	}
	return &Store{storage: storage, bus: bus}
}

func (s *Store) Bus() *Bus {
	return s.bus
}

// Add increments an existing line or appends a new one. A non-positive
// quantity is a no-op.
func (s *Store) Add(productID string, qty int) ([]Line, error) {
	productID = strings.TrimSpace(productID)
	if qty <= 0 || productID == "" {
		return s.List()
	}

	return s.mutate(EventAdded, productID, func(lines []Line) ([]Line, bool) {
		for i := range lines {
			if lines[i].ProductID == productID {
				lines[i].Quantity += qty
				return lines, true
			}
		}
		return append(lines, Line{ProductID: productID, Quantity: qty}), true
	})
}

func (s *Store) Remove(productID string) ([]Line, error) {
	return s.mutate(EventRemoved, productID, func(lines []Line) ([]Line, bool) {
		out := lines[:0]
		for _, line := range lines {
			if line.ProductID != productID {
				out = append(out, line)
			}
		}
		return out, len(out) != len(lines)
	})
}

// SetQuantity overwrites a line's quantity; qty <= 0 removes the line.
func (s *Store) SetQuantity(productID string, qty int) ([]Line, error) {
	if qty <= 0 {
		return s.Remove(productID)
	}

	return s.mutate(EventUpdated, productID, func(lines []Line) ([]Line, bool) {
		for i := range lines {
			if lines[i].ProductID == productID {
				lines[i].Quantity = qty
				return lines, true
			}
		}
		return lines, false
	})
}

func (s *Store) Clear() error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	err = s.storage.Remove()
	unlock()
	if err != nil {
		return err
	}

	s.bus.Publish(Event{Kind: EventCleared, Lines: []Line{}})
	return nil
}

func (s *Store) List() ([]Line, error) {
	return s.storage.Load()
}

// Count is the total number of units, what a header badge shows.
func (s *Store) Count() (int, error) {
	lines, err := s.List()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total, nil
}

// mutate re-reads the persisted cart under lock, applies fn, persists the
// result and only then broadcasts. fn reports whether anything changed.
func (s *Store) mutate(kind EventKind, productID string, fn func([]Line) ([]Line, bool)) ([]Line, error) {
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}

	lines, err := s.storage.Load()
	if err != nil {
		unlock()
		return nil, fmt.Errorf("load cart: %w", err)
	}

	lines, changed := fn(lines)
	if !changed {
		unlock()
		return lines, nil
	}

	if err := s.storage.Save(lines); err != nil {
		unlock()
		return nil, fmt.Errorf("save cart: %w", err)
	}
	unlock()

	s.bus.Publish(Event{Kind: kind, ProductID: productID, Lines: cloneLines(lines)})
	return lines, nil
}

func (s *Store) lock() (func(), error) {
	s.mu.Lock()
	locker, ok := s.storage.(Locker)
	if !ok {
		return s.mu.Unlock, nil
	}
	release, err := locker.Lock()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return func() {
		release()
		s.mu.Unlock()
	}, nil
}
