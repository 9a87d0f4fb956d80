// Package cart holds the per-user cart and the append-only purchase
// history. The cart is derived entirely from the session's current identity:
// it reloads whenever the identity changes, and mutations without an
// identity are rejected.
package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vitrine/internal/domain"
	"vitrine/internal/keyspace"
	"vitrine/internal/session"
	"vitrine/internal/storage"
)

var (
	// ErrNoIdentity rejects cart operations from logged-out callers.
	ErrNoIdentity = errors.New("no active identity")

	// ErrEmptyCart rejects a checkout with nothing in it.
	ErrEmptyCart = errors.New("cart is empty")
)

// Store is the per-user cart. Mutations update memory synchronously;
// persistence is fire-and-forget, a failed write is only logged.
type Store struct {
	mu     sync.Mutex
	kv     storage.Store
	logger *zap.Logger

	userID int
	items  []domain.CartItem
}

// New builds a cart bound to the session: it loads the current user's cart
// immediately and reloads on every identity change.
func New(kv storage.Store, sessions *session.Store, logger *zap.Logger) *Store {
	c := &Store{kv: kv, logger: logger}

	if id, ok := sessions.CurrentID(); ok {
		c.setUser(id)
	}
	sessions.Subscribe(func(identity *domain.Identity) {
		if identity == nil {
			c.setUser(0)
			return
		}
		c.setUser(identity.ID)
	})

	return c
}

// setUser swaps the active cart. A zero id clears the in-memory list but
// leaves storage alone, so the cart is there again after the next login.
func (c *Store) setUser(userID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID == userID {
		return
	}
	c.userID = userID
	c.items = nil

	if userID == 0 {
		return
	}
	raw, ok := c.kv.Get(keyspace.Cart(userID))
	if !ok {
		return
	}
	if err := json.Unmarshal(raw, &c.items); err != nil {
		c.logger.Warn("Discarding unreadable cart", zap.Int("user_id", userID), zap.Error(err))
		c.items = nil
	}
}

// Add puts a product in the cart with quantity 1. Adding a product that is
// already present is a no-op, not an increment.
func (c *Store) Add(product domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID == 0 {
		return ErrNoIdentity
	}
	for _, item := range c.items {
		if item.ID == product.ID {
			return nil
		}
	}

	c.items = append(c.items, domain.CartItem{Product: product, Quantity: 1})
	c.persistLocked()
	return nil
}

// Remove drops the item with the given product id.
func (c *Store) Remove(productID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	filtered := c.items[:0]
	for _, item := range c.items {
		if item.ID != productID {
			filtered = append(filtered, item)
		}
	}
	c.items = filtered
	c.persistLocked()
}

// UpdateQuantity replaces the quantity for the matching item. Callers are
// expected to clamp to >= 1 before calling; the store does not enforce it.
func (c *Store) UpdateQuantity(productID, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == productID {
			c.items[i].Quantity = quantity
		}
	}
	c.persistLocked()
}

// Clear empties the cart and removes its persisted key.
func (c *Store) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Store) clearLocked() {
	c.items = nil
	if c.userID != 0 {
		c.kv.Remove(keyspace.Cart(c.userID))
	}
}

// IsInCart reports whether the product is present.
func (c *Store) IsInCart(productID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range c.items {
		if item.ID == productID {
			return true
		}
	}
	return false
}

// Count is the sum of quantities.
func (c *Store) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, item := range c.items {
		count += item.Quantity
	}
	return count
}

// Items returns a copy of the cart contents.
func (c *Store) Items() []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]domain.CartItem, len(c.items))
	copy(items, c.items)
	return items
}

// Checkout snapshots the cart into an immutable purchase, appends it to the
// user's history and clears the cart. A failed append leaves the cart
// untouched.
func (c *Store) Checkout(paymentMethod string) (*domain.Purchase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID == 0 {
		return nil, ErrNoIdentity
	}
	if len(c.items) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]domain.CartItem, len(c.items))
	copy(items, c.items)

	total := 0.0
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}

	purchase := domain.Purchase{
		ID:            uuid.New().String(),
		Items:         items,
		Total:         total,
		PaymentMethod: paymentMethod,
		Date:          time.Now().UTC(),
	}

	history := c.purchasesLocked()
	history = append(history, purchase)

	raw, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to encode purchase history: %w", err)
	}
	if err := c.kv.Set(keyspace.Purchases(c.userID), raw); err != nil {
		return nil, fmt.Errorf("failed to persist purchase: %w", err)
	}

	c.clearLocked()
	return &purchase, nil
}

// Purchases lists the user's purchase history.
func (c *Store) Purchases() ([]domain.Purchase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID == 0 {
		return nil, ErrNoIdentity
	}
	return c.purchasesLocked(), nil
}

func (c *Store) purchasesLocked() []domain.Purchase {
	raw, ok := c.kv.Get(keyspace.Purchases(c.userID))
	if !ok {
		return nil
	}
	var history []domain.Purchase
	if err := json.Unmarshal(raw, &history); err != nil {
		c.logger.Warn("Discarding unreadable purchase history",
			zap.Int("user_id", c.userID),
			zap.Error(err),
		)
		return nil
	}
	return history
}

func (c *Store) persistLocked() {
	if c.userID == 0 {
		return
	}

	raw, err := json.Marshal(c.items)
	if err != nil {
		c.logger.Warn("Failed to encode cart", zap.Error(err))
		return
	}
	if err := c.kv.Set(keyspace.Cart(c.userID), raw); err != nil {
		c.logger.Warn("Cart kept in memory only", zap.Int("user_id", c.userID), zap.Error(err))
	}
}
