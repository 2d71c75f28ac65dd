package ledger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cauldron/shop-engine/ledger"
)

// =============================================================================
// DELTA APPLICATION
// =============================================================================

func TestSnapshotApply_AllAdjustmentsLand(t *testing.T) {
	snap := ledger.NewSnapshot()

	next, err := snap.Apply(ledger.Delta{
		Gold:  150,
		Stock: map[ledger.SKU]int64{ledger.RedPotion: 10, ledger.BluePotion: 4},
		ML:    map[ledger.SKU]int64{ledger.RedPotion: 500},
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.DefaultGold+150, next.Gold)
	assert.Equal(t, int64(10), next.Stock[ledger.RedPotion])
	assert.Equal(t, int64(4), next.Stock[ledger.BluePotion])
	assert.Equal(t, int64(500), next.ML[ledger.RedPotion])
}

func TestSnapshotApply_RejectsNegativeStock(t *testing.T) {
	// GIVEN: 3 red potions on the shelf
	snap := ledger.NewSnapshot()
	snap.Stock[ledger.RedPotion] = 3

	// WHEN: A delta tries to take 5
	_, err := snap.Apply(ledger.Delta{
		Gold:  250,
		Stock: map[ledger.SKU]int64{ledger.RedPotion: -5},
	})

	// THEN: The whole delta is rejected with the shortage details
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)

	var stockErr *ledger.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, ledger.RedPotion, stockErr.SKU)
	assert.Equal(t, int64(3), stockErr.Available)
	assert.Equal(t, int64(5), stockErr.Requested)
}

func TestSnapshotApply_RejectsNegativeGold(t *testing.T) {
	snap := ledger.NewSnapshot()
	snap.Gold = 1500

	_, err := snap.Apply(ledger.Delta{Gold: -2000})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientGold)

	var goldErr *ledger.InsufficientGoldError
	require.True(t, errors.As(err, &goldErr))
	assert.Equal(t, int64(1500), goldErr.Available)
	assert.Equal(t, int64(2000), goldErr.Required)
}

func TestSnapshotApply_RejectionLeavesSourceUntouched(t *testing.T) {
	snap := ledger.NewSnapshot()
	snap.Stock[ledger.GreenPotion] = 2

	_, err := snap.Apply(ledger.Delta{
		Stock: map[ledger.SKU]int64{
			ledger.GreenPotion: -1,
			ledger.RedPotion:   -1, // this one is short
		},
	})
	require.Error(t, err)

	// Apply works on a clone: the input snapshot never changes.
	assert.Equal(t, int64(2), snap.Stock[ledger.GreenPotion])
	assert.Equal(t, int64(0), snap.Stock[ledger.RedPotion])
	assert.Equal(t, ledger.DefaultGold, snap.Gold)
}

func TestSnapshotApply_CapacityOnlyGrows(t *testing.T) {
	snap := ledger.NewSnapshot()

	next, err := snap.Apply(ledger.Delta{AddCapacity: ledger.Capacity{Potions: 50, ML: 10000}})
	require.NoError(t, err)
	assert.Equal(t, int64(100), next.Capacity.Potions)
	assert.Equal(t, int64(20000), next.Capacity.ML)

	_, err = snap.Apply(ledger.Delta{AddCapacity: ledger.Capacity{Potions: -50}})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
}

// =============================================================================
// TOTALS AND CLONING
// =============================================================================

func TestSnapshotTotals(t *testing.T) {
	snap := ledger.NewSnapshot()
	snap.Stock[ledger.RedPotion] = 7
	snap.Stock[ledger.GreenPotion] = 3
	snap.ML[ledger.BluePotion] = 1200

	assert.Equal(t, int64(10), snap.TotalPotions())
	assert.Equal(t, int64(1200), snap.TotalML())
}

func TestSnapshotClone_IsIndependent(t *testing.T) {
	snap := ledger.NewSnapshot()
	snap.Stock[ledger.RedPotion] = 5

	clone := snap.Clone()
	clone.Stock[ledger.RedPotion] = 99
	clone.Gold = 0

	assert.Equal(t, int64(5), snap.Stock[ledger.RedPotion])
	assert.Equal(t, ledger.DefaultGold, snap.Gold)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func TestErrorClassification(t *testing.T) {
	assert.True(t, ledger.IsNotFound(ledger.ErrCartNotFound))
	assert.True(t, ledger.IsNotFound(ledger.ErrOrderNotFound))
	assert.False(t, ledger.IsNotFound(ledger.ErrInsufficientStock))

	assert.True(t, ledger.IsClientError(ledger.ErrInvalidQuantity))
	assert.True(t, ledger.IsClientError(ledger.ErrAlreadyCheckedOut))
	assert.True(t, ledger.IsClientError(&ledger.InsufficientStockError{SKU: ledger.RedPotion}))
	assert.True(t, ledger.IsClientError(&ledger.InsufficientGoldError{}))
	assert.False(t, ledger.IsClientError(errors.New("disk on fire")))
}
