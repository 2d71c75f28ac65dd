/*
Package memory provides the in-memory store (for testing/dev).

PURPOSE:
  Implements every storage contract (ledger.Store, cart.Store,
  history.Sink/Searcher/VisitLog) behind one mutex-guarded struct.
  Same semantics as store/sqlite, no disk.

CONCURRENCY:
  A single sync.RWMutex serializes all writes. Apply validates the delta
  against the current snapshot and swaps in the replacement while holding
  the write lock, so the non-negative invariant holds under any
  interleaving and readers only ever see committed snapshots.

SEE ALSO:
  - ledger/ledger.go: The contract this implements
  - store/sqlite: The durable equivalent
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cauldron/shop-engine/cart"
	"github.com/cauldron/shop-engine/history"
	"github.com/cauldron/shop-engine/ledger"
)

// Store holds the whole shop in memory.
type Store struct {
	mu       sync.RWMutex
	snapshot ledger.Snapshot
	carts    map[cart.ID]cart.Cart
	sales    []history.Sale
	visits   []history.Visit
}

// New returns a store seeded with the opening ledger state.
func New() *Store {
	return &Store{
		snapshot: ledger.NewSnapshot(),
		carts:    make(map[cart.ID]cart.Cart),
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func (s *Store) Read(_ context.Context) (ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone(), nil
}

// Apply validates and commits the delta in one critical section.
// A rejected delta leaves the snapshot untouched.
func (s *Store) Apply(_ context.Context, delta ledger.Delta) (ledger.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.snapshot.Apply(delta)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	s.snapshot = next
	return next.Clone(), nil
}

// =============================================================================
// CARTS
// =============================================================================

func (s *Store) CreateCart(_ context.Context, c cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.carts[c.ID]; exists {
		return fmt.Errorf("cart %s already exists", c.ID)
	}
	s.carts[c.ID] = c.Clone()
	return nil
}

func (s *Store) GetCart(_ context.Context, id cart.ID) (cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[id]
	if !ok {
		return cart.Cart{}, fmt.Errorf("%w: %s", ledger.ErrCartNotFound, id)
	}
	return c.Clone(), nil
}

func (s *Store) SetCartItem(_ context.Context, id cart.ID, sku ledger.SKU, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrCartNotFound, id)
	}
	if c.CheckedOut {
		return fmt.Errorf("%w: cart %s", ledger.ErrAlreadyCheckedOut, id)
	}
	c.Items[sku] = quantity
	return nil
}

func (s *Store) MarkCheckedOut(_ context.Context, id cart.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrCartNotFound, id)
	}
	if c.CheckedOut {
		return fmt.Errorf("%w: cart %s", ledger.ErrAlreadyCheckedOut, id)
	}
	c.CheckedOut = true
	s.carts[id] = c
	return nil
}

func (s *Store) ReopenCart(_ context.Context, id cart.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrCartNotFound, id)
	}
	c.CheckedOut = false
	s.carts[id] = c
	return nil
}

// =============================================================================
// SALES AND VISITS
// =============================================================================

// AppendSales adds sale records. Append-only: nothing here or anywhere
// else in this store updates or deletes a sale.
func (s *Store) AppendSales(_ context.Context, sales []history.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = append(s.sales, sales...)
	return nil
}

func (s *Store) RecordVisits(_ context.Context, visits []history.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = append(s.visits, visits...)
	return nil
}

// SearchSales filters, sorts, and paginates in memory. Mirrors the SQL
// implementation so tests against either store agree.
func (s *Store) SearchSales(_ context.Context, q history.Query) (history.Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return history.Page{}, err
	}
	offset, err := history.DecodeCursor(q.Page)
	if err != nil {
		return history.Page{}, err
	}

	s.mu.RLock()
	nameFilter := strings.ToLower(q.CustomerName)
	skuFilter := strings.ToLower(q.SKU)
	var matched []history.Sale
	for _, sale := range s.sales {
		if nameFilter != "" && !strings.Contains(strings.ToLower(sale.CustomerName), nameFilter) {
			continue
		}
		if skuFilter != "" && !strings.Contains(strings.ToLower(string(sale.SKU)), skuFilter) {
			continue
		}
		matched = append(matched, sale)
	}
	s.mu.RUnlock()

	sortSales(matched, q.SortCol, q.SortOrder)

	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + history.PageSize
	if end > len(matched) {
		end = len(matched)
	}

	previous, next := history.PageCursors(offset, len(matched))
	return history.Page{
		Previous: previous,
		Next:     next,
		Results:  matched[offset:end],
	}, nil
}

func sortSales(sales []history.Sale, col history.SortColumn, order history.SortOrder) {
	less := func(a, b history.Sale) bool {
		switch col {
		case history.SortByCustomerName:
			return a.CustomerName < b.CustomerName
		case history.SortByItemSKU:
			return a.SKU < b.SKU
		case history.SortByLineItemTotal:
			return a.Total < b.Total
		default:
			return a.Timestamp.Before(b.Timestamp)
		}
	}
	sort.SliceStable(sales, func(i, j int) bool {
		if order == history.SortDesc {
			return less(sales[j], sales[i])
		}
		return less(sales[i], sales[j])
	})
}

// Visits returns the recorded visit log, newest last. Test helper.
func (s *Store) Visits() []history.Visit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]history.Visit, len(s.visits))
	copy(out, s.visits)
	return out
}
