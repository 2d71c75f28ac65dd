/*
transactor.go - The checkout transaction

PURPOSE:
  Converts a cart's accumulated quantities into a priced sale: debits
  stock, credits gold, marks the cart terminal, and emits the sale
  records. All-or-nothing across every SKU in the cart - there is no
  partial fulfillment.

CONCURRENCY:
  Two hazards are closed here:

  1. Oversell: two checkouts racing for the same stock. The stock check
     and the debit are one ledger.Store.Apply, so the store's
     serialization decides a single winner. There is no window between
     "is there enough" and "take it".

  2. Double spend: two checkouts racing for the same cart. MarkCheckedOut
     is a compare-and-set on the terminal flag; the loser gets
     ErrAlreadyCheckedOut before any ledger traffic. If the winner's
     apply is then rejected (shelf went empty), the flag is rolled back
     so the customer can retry after a restock.

FAILURE SEMANTICS:
  A failed checkout leaves the ledger untouched and the cart open.
  Only a committed checkout is terminal.

SEE ALSO:
  - ledger/ledger.go: Why Apply is one atomic unit
  - history/history.go: Shape of the emitted sale records
*/
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cauldron/shop-engine/cart"
	"github.com/cauldron/shop-engine/history"
	"github.com/cauldron/shop-engine/ledger"
)

// SaleSummary is what the customer sees after a committed checkout.
type SaleSummary struct {
	TotalPotionsBought int64
	TotalGoldPaid      int64
}

// Transactor executes checkouts against the shared ledger.
type Transactor struct {
	Carts  cart.Store
	Ledger ledger.Store
	Prices PriceTable
	Sales  history.Sink

	// now is swappable for tests.
	now func() time.Time
}

func NewTransactor(carts cart.Store, led ledger.Store, prices PriceTable, sales history.Sink) *Transactor {
	return &Transactor{
		Carts:  carts,
		Ledger: led,
		Prices: prices,
		Sales:  sales,
		now:    time.Now,
	}
}

// Checkout consumes the cart exactly once, atomically moving its
// contents out of stock and the payment into gold.
func (t *Transactor) Checkout(ctx context.Context, cartID cart.ID, payment string) (SaleSummary, error) {
	c, err := t.Carts.GetCart(ctx, cartID)
	if err != nil {
		return SaleSummary{}, err
	}
	if c.CheckedOut {
		return SaleSummary{}, fmt.Errorf("%w: cart %s", ledger.ErrAlreadyCheckedOut, cartID)
	}

	// The payment method is accepted as-is; the shop takes anything.
	_ = payment

	lines, delta, summary, err := t.price(c)
	if err != nil {
		return SaleSummary{}, err
	}

	// Win the cart before touching the ledger. The CAS guarantees at
	// most one ledger delta ever commits for this cart.
	if err := t.Carts.MarkCheckedOut(ctx, cartID); err != nil {
		return SaleSummary{}, err
	}

	if _, err := t.Ledger.Apply(ctx, delta); err != nil {
		// The ledger rejected the sale; hand the cart back so the
		// customer can retry once stock returns.
		if reopenErr := t.Carts.ReopenCart(ctx, cartID); reopenErr != nil {
			return SaleSummary{}, errors.Join(err, reopenErr)
		}
		return SaleSummary{}, err
	}

	if len(lines) > 0 {
		if err := t.Sales.AppendSales(ctx, lines); err != nil {
			// The ledger mutation committed; only the reporting record
			// is missing. Surface it - the caller must not retry the
			// checkout itself.
			return summary, fmt.Errorf("checkout committed but sale record failed: %w", err)
		}
	}

	return summary, nil
}

// price turns the cart into sale lines, the ledger delta, and the
// summary, without mutating anything.
func (t *Transactor) price(c cart.Cart) ([]history.Sale, ledger.Delta, SaleSummary, error) {
	skus := make([]ledger.SKU, 0, len(c.Items))
	for sku, qty := range c.Items {
		if qty > 0 {
			skus = append(skus, sku)
		}
	}
	sort.Slice(skus, func(i, j int) bool { return skus[i] < skus[j] })

	var (
		lines    []history.Sale
		totalQty int64
		total    decimal.Decimal
		stamp    = t.now().UTC()
		delta    = ledger.Delta{Stock: make(map[ledger.SKU]int64)}
	)

	for _, sku := range skus {
		qty := c.Items[sku]
		price, err := t.Prices.UnitPrice(sku)
		if err != nil {
			return nil, ledger.Delta{}, SaleSummary{}, err
		}
		if !price.IsInteger() {
			return nil, ledger.Delta{}, SaleSummary{}, fmt.Errorf("unit price %s for %s is not whole gold", price, sku)
		}

		lineTotal := price.Mul(decimal.NewFromInt(qty))
		lines = append(lines, history.Sale{
			LineItemID:   uuid.NewString(),
			CartID:       c.ID,
			SKU:          sku,
			CustomerName: c.Customer.Name,
			UnitPrice:    price.IntPart(),
			Quantity:     qty,
			Total:        lineTotal.IntPart(),
			Timestamp:    stamp,
		})

		delta.Stock[sku] = -qty
		totalQty += qty
		total = total.Add(lineTotal)
	}

	delta.Gold = total.IntPart()
	return lines, delta, SaleSummary{TotalPotionsBought: totalQty, TotalGoldPaid: total.IntPart()}, nil
}
