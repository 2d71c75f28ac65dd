/*
ledger.go - Ledger store contract and delta application rules

PURPOSE:
  The Ledger is the single shared mutable record of the shop's economy:
  gold, per-commodity stock, and purchased capacity. Every mutation goes
  through Apply as one atomic delta.

CRITICAL INVARIANTS:
  1. NON-NEGATIVE: gold and every stock count are >= 0 after any Apply.
  2. ATOMIC: a delta lands completely or not at all. A rejected delta
     leaves the ledger exactly as it was.
  3. SERIALIZED: concurrent Applies are totally ordered. Two checkouts
     that together exceed stock can never both commit.
  4. ISOLATED: readers see the pre-state or the post-state of an Apply,
     never an intermediate.

WHY ONE APPLY INSTEAD OF READ-THEN-WRITE?
  Checking stock in one call and debiting it in another is the classic
  oversell race. Keeping the check and the write behind a single Apply
  means callers cannot perform the steps separately.

SEE ALSO:
  - store/memory: Mutex-guarded in-memory implementation
  - store/sqlite: Durable implementation, one SQL transaction per Apply
*/
package ledger

import (
	"context"
	"fmt"
)

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store is the ledger's persistence contract.
//
// Apply must be atomic and serialized with respect to all other Applies:
// the validity check and the write happen inside one critical section or
// database transaction. On rejection the returned error unwraps to
// ErrInsufficientStock or ErrInsufficientGold and the ledger is unchanged.
type Store interface {
	// Read returns the current ledger state.
	Read(ctx context.Context) (Snapshot, error)

	// Apply atomically applies every adjustment in the delta and returns
	// the post-transaction snapshot.
	Apply(ctx context.Context, delta Delta) (Snapshot, error)
}

// =============================================================================
// DELTA APPLICATION
// =============================================================================

// Apply computes the snapshot that results from applying the delta, or
// the error that forces its rejection. It is a pure function: both store
// implementations call it inside their own critical section so the
// accept/reject decision is identical everywhere.
func (s Snapshot) Apply(delta Delta) (Snapshot, error) {
	next := s.Clone()

	next.Gold += delta.Gold
	if next.Gold < 0 {
		return Snapshot{}, &InsufficientGoldError{Available: s.Gold, Required: -delta.Gold}
	}

	for sku, adj := range delta.Stock {
		next.Stock[sku] += adj
		if next.Stock[sku] < 0 {
			return Snapshot{}, &InsufficientStockError{SKU: sku, Available: s.Stock[sku], Requested: -adj}
		}
	}

	for sku, adj := range delta.ML {
		next.ML[sku] += adj
		if next.ML[sku] < 0 {
			return Snapshot{}, &InsufficientStockError{SKU: sku, Available: s.ML[sku], Requested: -adj}
		}
	}

	// Capacity only grows. A shrinking delta is a caller bug, not a
	// business condition.
	if delta.AddCapacity.Potions < 0 || delta.AddCapacity.ML < 0 {
		return Snapshot{}, fmt.Errorf("%w: capacity cannot decrease", ErrInvalidQuantity)
	}
	next.Capacity.Potions += delta.AddCapacity.Potions
	next.Capacity.ML += delta.AddCapacity.ML

	return next, nil
}
