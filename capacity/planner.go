/*
planner.go - Capacity planning over the shared ledger

PURPOSE:
  The shop may only hold as much stock as it has bought capacity for.
  Plan reports the spare room per dimension; Deliver converts gold into
  more room. Plan never mutates; Deliver goes through the same atomic
  Apply as checkout, so the two can never observe each other half-done.

PRICING:
  One capacity unit costs 1000 gold and buys room for 50 potions or
  10000 ml, depending on the dimension. The shop opens with one free
  unit of each.

NOTE:
  Spare capacity is configured capacity minus total stock, per
  dimension. An older report summed the dimensions with inverted signs;
  that was a defect, not a behavior to keep.
*/
package capacity

import (
	"context"
	"fmt"

	"github.com/cauldron/shop-engine/ledger"
)

const (
	// UnitCostGold is the price of one capacity unit, either dimension.
	UnitCostGold int64 = 1000

	// PotionsPerUnit is the bottled-potion room one unit buys.
	PotionsPerUnit int64 = 50

	// MLPerUnit is the barrel room one unit buys.
	MLPerUnit int64 = 10000
)

// Plan is the spare room left per dimension: configured capacity minus
// current total stock. Derived, never stored.
type Plan struct {
	PotionCapacity int64
	MLCapacity     int64
}

// Purchase is a request for additional capacity, in units.
type Purchase struct {
	PotionCapacity int64
	MLCapacity     int64
}

// Receipt confirms a delivered purchase.
type Receipt struct {
	OrderID     string
	GoldPaid    int64
	NewCapacity ledger.Capacity
}

// Planner computes and purchases capacity against the ledger.
type Planner struct {
	Ledger ledger.Store
}

func NewPlanner(led ledger.Store) *Planner {
	return &Planner{Ledger: led}
}

// Plan reports current spare capacity. Pure read: calling it twice with
// no intervening mutation returns identical results.
func (p *Planner) Plan(ctx context.Context) (Plan, error) {
	snap, err := p.Ledger.Read(ctx)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		PotionCapacity: snap.Capacity.Potions - snap.TotalPotions(),
		MLCapacity:     snap.Capacity.ML - snap.TotalML(),
	}, nil
}

// Deliver debits gold and credits capacity as one atomic delta. The
// gold check happens inside Apply, so an unaffordable purchase fails
// with ErrInsufficientGold and leaves the ledger untouched - the debit
// is never applied first and checked after.
func (p *Planner) Deliver(ctx context.Context, orderID string, purchase Purchase) (Receipt, error) {
	if purchase.PotionCapacity < 0 || purchase.MLCapacity < 0 {
		return Receipt{}, fmt.Errorf("%w: capacity units must be >= 0", ledger.ErrInvalidQuantity)
	}

	cost := UnitCostGold * (purchase.PotionCapacity + purchase.MLCapacity)
	snap, err := p.Ledger.Apply(ctx, ledger.Delta{
		Gold: -cost,
		AddCapacity: ledger.Capacity{
			Potions: purchase.PotionCapacity * PotionsPerUnit,
			ML:      purchase.MLCapacity * MLPerUnit,
		},
	})
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{OrderID: orderID, GoldPaid: cost, NewCapacity: snap.Capacity}, nil
}
