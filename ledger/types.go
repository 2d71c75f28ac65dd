/*
types.go - Core value types for the shop ledger

PURPOSE:
  Defines the data model the whole engine operates on: commodity SKUs,
  immutable ledger snapshots, and the deltas used to mutate them.

DESIGN NOTES:
  1. Snapshot is a value copy: readers can never observe an in-flight
     mutation, because they never share memory with the store's state.
  2. Delta is additive: positive values credit, negative values debit.
     The store decides whether a delta is legal, not the caller.
  3. The commodity set is open. The three potion SKUs are the known
     defaults, but nothing here branches per SKU - stock is a mapping,
     never three hardcoded fields.

SEE ALSO:
  - ledger.go: Store contract and delta application rules
  - errors.go: Error taxonomy for rejected deltas
*/
package ledger

// SKU identifies a commodity type carried in stock.
type SKU string

// The commodity set the shop opens with.
const (
	RedPotion   SKU = "RED_POTION_0"
	GreenPotion SKU = "GREEN_POTION_0"
	BluePotion  SKU = "BLUE_POTION_0"
)

// KnownSKUs returns the default commodity set, in stable order.
func KnownSKUs() []SKU {
	return []SKU{RedPotion, GreenPotion, BluePotion}
}

// Initial ledger state before any trading or capacity purchases.
const (
	DefaultGold           int64 = 100
	DefaultPotionCapacity int64 = 50
	DefaultMLCapacity     int64 = 10000
)

// Capacity is the upper bound on stock the shop may legally hold,
// per dimension. Monotonically non-decreasing once purchased.
type Capacity struct {
	Potions int64
	ML      int64
}

// Snapshot is a point-in-time copy of the entire ledger. Every field a
// transaction touches lives here - gold and stock are one consistency
// unit, never split across independently-locked pieces.
type Snapshot struct {
	Gold     int64
	Stock    map[SKU]int64 // bottled potions per commodity
	ML       map[SKU]int64 // raw potion ml in barrels per commodity
	Capacity Capacity
}

// Clone returns a deep copy. Stores hand out clones so callers can't
// reach back into shared state.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Gold: s.Gold, Capacity: s.Capacity}
	out.Stock = make(map[SKU]int64, len(s.Stock))
	for sku, n := range s.Stock {
		out.Stock[sku] = n
	}
	out.ML = make(map[SKU]int64, len(s.ML))
	for sku, n := range s.ML {
		out.ML[sku] = n
	}
	return out
}

// TotalPotions sums bottled stock across all commodities.
func (s Snapshot) TotalPotions() int64 {
	var total int64
	for _, n := range s.Stock {
		total += n
	}
	return total
}

// TotalML sums barrel contents across all commodities.
func (s Snapshot) TotalML() int64 {
	var total int64
	for _, n := range s.ML {
		total += n
	}
	return total
}

// Delta is a set of additive adjustments applied to the ledger as one
// atomic unit. Zero-valued fields are no-ops.
type Delta struct {
	Gold        int64
	Stock       map[SKU]int64
	ML          map[SKU]int64
	AddCapacity Capacity
}

// NewSnapshot returns the opening ledger state: default gold, default
// capacity, zero stock for every known commodity.
func NewSnapshot() Snapshot {
	s := Snapshot{
		Gold:     DefaultGold,
		Stock:    make(map[SKU]int64),
		ML:       make(map[SKU]int64),
		Capacity: Capacity{Potions: DefaultPotionCapacity, ML: DefaultMLCapacity},
	}
	for _, sku := range KnownSKUs() {
		s.Stock[sku] = 0
		s.ML[sku] = 0
	}
	return s
}
