/*
pricing.go - Static price table keyed by SKU

PURPOSE:
  Unit prices are injected configuration, not ledger state. The table is
  read-only after construction, so the transactor can consult it without
  any locking.

PRECISION:
  Prices are decimal.Decimal to keep money math exact. The ledger counts
  gold in whole units, so a cart's payment total must come out integral;
  the transactor enforces that before committing anything.
*/
package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cauldron/shop-engine/ledger"
)

// DefaultUnitPrice is the opening price for every known potion, in gold.
var DefaultUnitPrice = decimal.NewFromInt(50)

// PriceTable maps each sellable SKU to its unit price in gold.
type PriceTable map[ledger.SKU]decimal.Decimal

// DefaultPrices prices every known commodity at DefaultUnitPrice.
func DefaultPrices() PriceTable {
	return UniformPrices(DefaultUnitPrice)
}

// UniformPrices prices every known commodity at the given unit price.
func UniformPrices(unit decimal.Decimal) PriceTable {
	prices := make(PriceTable)
	for _, sku := range ledger.KnownSKUs() {
		prices[sku] = unit
	}
	return prices
}

// UnitPrice returns the price for one unit of the SKU, or ErrUnknownSKU.
func (p PriceTable) UnitPrice(sku ledger.SKU) (decimal.Decimal, error) {
	price, ok := p[sku]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no price for %q", ledger.ErrUnknownSKU, sku)
	}
	return price, nil
}
