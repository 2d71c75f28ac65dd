/*
errors.go - Centralized error types for the shop engine

PURPOSE:
  All domain error types in one place for consistency and discoverability.
  Other packages wrap these with additional context rather than defining
  their own taxonomies.

ERROR CATEGORIES:
  1. Lookup errors - Unknown carts, orders, SKUs
  2. Validation errors - Malformed quantities
  3. Ledger errors - Deltas the store must reject to keep its invariants

USAGE:
  Callers match with errors.Is():

    if errors.Is(err, ledger.ErrInsufficientStock) {
        // tell the customer the shelf is empty
    }

  Structured variants carry the numbers behind the rejection and unwrap
  to the matching sentinel.

SEE ALSO:
  - ledger.go: Where the ledger errors are produced
  - api/handlers.go: HTTP status mapping via IsClientError/IsNotFound
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCartNotFound is returned when a referenced cart doesn't exist.
	ErrCartNotFound = errors.New("cart not found")

	// ErrOrderNotFound is returned when a referenced order doesn't exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidQuantity is returned for negative or malformed quantities.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrAlreadyCheckedOut is returned when mutating or re-checking-out a
	// cart that has already been consumed by a committed checkout.
	ErrAlreadyCheckedOut = errors.New("cart already checked out")

	// ErrInsufficientStock is returned when a delta would drive any
	// commodity's stock negative. The whole delta is rejected.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInsufficientGold is returned when a delta would drive gold negative.
	ErrInsufficientGold = errors.New("insufficient gold")

	// ErrUnknownSKU is returned when a SKU has no configured price.
	ErrUnknownSKU = errors.New("unknown sku")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports which commodity came up short.
type InsufficientStockError struct {
	SKU       SKU
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock of %s: available %d, requested %d",
		e.SKU, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// InsufficientGoldError reports a gold shortage on a debit.
type InsufficientGoldError struct {
	Available int64
	Required  int64
}

func (e *InsufficientGoldError) Error() string {
	return fmt.Sprintf("insufficient gold: available %d, required %d",
		e.Available, e.Required)
}

func (e *InsufficientGoldError) Unwrap() error {
	return ErrInsufficientGold
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a recoverable business-rule rejection.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrAlreadyCheckedOut) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInsufficientGold) ||
		errors.Is(err, ErrUnknownSKU)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCartNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}
