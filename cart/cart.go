/*
cart.go - Cart manager and storage contract

PURPOSE:
  Carts accumulate a customer's in-progress selection of commodities.
  They are advisory until checkout: setting quantities never touches the
  ledger, so cart mutations never block on the shop's one shared resource.

LIFECYCLE:
  created (empty) -> mutated per SKU -> consumed exactly once by checkout.
  A checked-out cart is terminal: further mutation or re-checkout is
  rejected, never silently re-applied.

SEMANTICS:
  SetItemQuantity is last-write-wins per SKU. Setting RED_POTION_0 to 3
  and then to 2 leaves 2 in the cart, not 5.

SEE ALSO:
  - checkout/transactor.go: The only consumer of MarkCheckedOut/Reopen
  - store/memory, store/sqlite: Store implementations
*/
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cauldron/shop-engine/ledger"
)

// ID uniquely identifies a cart.
type ID string

// Customer is the shopper a cart belongs to.
type Customer struct {
	Name           string
	CharacterClass string
	Level          int
}

// Cart is a customer's uncommitted selection. Items maps SKU to the
// quantity most recently set for it.
type Cart struct {
	ID         ID
	Customer   Customer
	Items      map[ledger.SKU]int64
	CheckedOut bool
	CreatedAt  time.Time
}

// Clone returns a deep copy, so store internals stay private.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make(map[ledger.SKU]int64, len(c.Items))
	for sku, qty := range c.Items {
		out.Items[sku] = qty
	}
	return out
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store persists carts. Carts are keyed by ID and independent of each
// other: implementations need no cross-cart coordination and must not
// involve the ledger.
type Store interface {
	// CreateCart persists a new cart. The ID must be unused.
	CreateCart(ctx context.Context, c Cart) error

	// GetCart returns the cart, or ErrCartNotFound.
	GetCart(ctx context.Context, id ID) (Cart, error)

	// SetCartItem replaces the stored quantity for one SKU.
	// Fails with ErrCartNotFound or ErrAlreadyCheckedOut.
	SetCartItem(ctx context.Context, id ID, sku ledger.SKU, quantity int64) error

	// MarkCheckedOut atomically flips the terminal flag. It fails with
	// ErrAlreadyCheckedOut if the flag was already set, so of two racing
	// checkouts exactly one wins the cart.
	MarkCheckedOut(ctx context.Context, id ID) error

	// ReopenCart clears the terminal flag. Used only to roll back a
	// checkout whose ledger apply was rejected.
	ReopenCart(ctx context.Context, id ID) error
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager validates cart operations before they reach the store.
type Manager struct {
	Store Store
}

func NewManager(store Store) *Manager {
	return &Manager{Store: store}
}

// Create opens an empty cart for the customer and returns its id.
func (m *Manager) Create(ctx context.Context, customer Customer) (ID, error) {
	c := Cart{
		ID:        ID(uuid.NewString()),
		Customer:  customer,
		Items:     make(map[ledger.SKU]int64),
		CreatedAt: time.Now().UTC(),
	}
	if err := m.Store.CreateCart(ctx, c); err != nil {
		return "", fmt.Errorf("create cart: %w", err)
	}
	return c.ID, nil
}

// Get returns the cart, or ErrCartNotFound.
func (m *Manager) Get(ctx context.Context, id ID) (Cart, error) {
	return m.Store.GetCart(ctx, id)
}

// SetItemQuantity replaces the quantity for one SKU. No stock check
// happens here - reservation is checkout's job.
func (m *Manager) SetItemQuantity(ctx context.Context, id ID, sku ledger.SKU, quantity int64) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity %d for %s", ledger.ErrInvalidQuantity, quantity, sku)
	}
	return m.Store.SetCartItem(ctx, id, sku, quantity)
}
