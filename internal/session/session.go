// Package session holds the per-session ephemeral state: the cat-mode toggle,
// the shopping mode, the in-progress cart and the pending furniture purchase.
// None of it is persisted; a process restart starts every session fresh.
package session

import (
	"errors"
	"sync"

	"roomie/internal/core"
)

const (
	ModePlanning Mode = "planning"
	ModeShopping Mode = "shopping"
)

// Mode is the shopping page state. Toggling back to planning does not touch
// the cart; only a successful checkout clears it.
type Mode string

var (
	ErrNegativePrice   = errors.New("price cannot be negative")
	ErrPurchasePending = errors.New("another furniture purchase is already pending")
)

// CartEntry is one staged item with its entered price.
type CartEntry struct {
	Name  string
	Price float64
}

// Session is explicit request-scoped state passed into the core operations.
type Session struct {
	mu               sync.Mutex
	catMode          bool
	mode             Mode
	cart             []CartEntry
	pendingFurniture string
}

func New() *Session {
	return &Session{mode: ModePlanning}
}

// SetCatMode flips the active context. Switching never mutates data, it only
// changes which slice of every collection is visible.
func (s *Session) SetCatMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catMode = on
}

func (s *Session) CatMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catMode
}

// Context returns the active context id derived from the cat-mode toggle.
func (s *Session) Context() core.Context {
	if s.CatMode() {
		return core.ContextCat
	}
	return core.ContextHouse
}

func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// AddToCart stages an item at price zero. Adding an item already in the cart
// leaves its price alone.
func (s *Session) AddToCart(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.cart {
		if e.Name == name {
			return
		}
	}
	s.cart = append(s.cart, CartEntry{Name: name})
}

// SetCartPrice updates a staged item's price. A name not in the cart is a
// stale reference and the call is a no-op.
func (s *Session) SetCartPrice(name string, price float64) error {
	if price < 0 {
		return ErrNegativePrice
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cart {
		if s.cart[i].Name == name {
			s.cart[i].Price = price
			return nil
		}
	}
	return nil
}

func (s *Session) RemoveFromCart(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.cart {
		if e.Name == name {
			s.cart = append(s.cart[:i], s.cart[i+1:]...)
			return
		}
	}
}

// CartSnapshot returns the staged entries in insertion order.
func (s *Session) CartSnapshot() []CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CartEntry, len(s.cart))
	copy(out, s.cart)
	return out
}

func (s *Session) CartTotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, e := range s.cart {
		total += e.Price
	}
	return total
}

func (s *Session) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = nil
}

// BeginFurniturePurchase stages one furniture item for confirmation. Only one
// purchase may be pending per session.
func (s *Session) BeginFurniturePurchase(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingFurniture != "" && s.pendingFurniture != itemID {
		return ErrPurchasePending
	}
	s.pendingFurniture = itemID
	return nil
}

// PendingFurniture returns the staged furniture item id, empty when none.
func (s *Session) PendingFurniture() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingFurniture
}

// CancelFurniturePurchase drops the staged purchase. Also called implicitly
// when the user navigates away.
func (s *Session) CancelFurniturePurchase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingFurniture = ""
}
