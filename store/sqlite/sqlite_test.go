package sqlite_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cauldron/shop-engine/cart"
	"github.com/cauldron/shop-engine/checkout"
	"github.com/cauldron/shop-engine/history"
	"github.com/cauldron/shop-engine/ledger"
	"github.com/cauldron/shop-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sale(id string, name string, sku ledger.SKU, total int64) history.Sale {
	return history.Sale{
		LineItemID:   id,
		CartID:       "cart-1",
		SKU:          sku,
		CustomerName: name,
		UnitPrice:    50,
		Quantity:     1,
		Total:        total,
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func TestMigrate_SeedsOpeningState(t *testing.T) {
	store := newTestStore(t)

	snap, err := store.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ledger.DefaultGold, snap.Gold)
	assert.Equal(t, ledger.DefaultPotionCapacity, snap.Capacity.Potions)
	assert.Equal(t, ledger.DefaultMLCapacity, snap.Capacity.ML)
	for _, sku := range ledger.KnownSKUs() {
		assert.Equal(t, int64(0), snap.Stock[sku])
	}
}

func TestApply_CommitsAllFieldsTogether(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	next, err := store.Apply(ctx, ledger.Delta{
		Gold:  150,
		Stock: map[ledger.SKU]int64{ledger.RedPotion: 3},
		ML:    map[ledger.SKU]int64{ledger.RedPotion: 250},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.DefaultGold+150, next.Gold)

	// Re-read through a fresh transaction: the write is durable.
	snap, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Stock[ledger.RedPotion])
	assert.Equal(t, int64(250), snap.ML[ledger.RedPotion])
}

func TestApply_RejectionRollsBackEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Apply(ctx, ledger.Delta{Stock: map[ledger.SKU]int64{ledger.GreenPotion: 1}})
	require.NoError(t, err)

	_, err = store.Apply(ctx, ledger.Delta{
		Gold: 500,
		Stock: map[ledger.SKU]int64{
			ledger.GreenPotion: -1,
			ledger.RedPotion:   -1,
		},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	snap, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.DefaultGold, snap.Gold)
	assert.Equal(t, int64(1), snap.Stock[ledger.GreenPotion])
}

func TestApply_ConcurrentDebitsSerialize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Apply(ctx, ledger.Delta{Stock: map[ledger.SKU]int64{ledger.BluePotion: 10}})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Apply(ctx, ledger.Delta{
				Gold:  50,
				Stock: map[ledger.SKU]int64{ledger.BluePotion: -1},
			}); err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, committed)
	snap, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Stock[ledger.BluePotion])
}

// =============================================================================
// CARTS
// =============================================================================

func TestCartRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	manager := cart.NewManager(store)

	id, err := manager.Create(ctx, cart.Customer{Name: "Scaramouche", CharacterClass: "wizard", Level: 12})
	require.NoError(t, err)
	require.NoError(t, manager.SetItemQuantity(ctx, id, ledger.RedPotion, 3))
	require.NoError(t, manager.SetItemQuantity(ctx, id, ledger.RedPotion, 2))

	c, err := manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Scaramouche", c.Customer.Name)
	assert.Equal(t, "wizard", c.Customer.CharacterClass)
	assert.Equal(t, int64(2), c.Items[ledger.RedPotion])
	assert.False(t, c.CheckedOut)

	_, err = manager.Get(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrCartNotFound)
}

func TestMarkCheckedOut_GuardedUpdateIsCAS(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	manager := cart.NewManager(store)

	id, err := manager.Create(ctx, cart.Customer{Name: "Paimon"})
	require.NoError(t, err)

	require.NoError(t, store.MarkCheckedOut(ctx, id))
	assert.ErrorIs(t, store.MarkCheckedOut(ctx, id), ledger.ErrAlreadyCheckedOut)
	assert.ErrorIs(t, store.MarkCheckedOut(ctx, "missing"), ledger.ErrCartNotFound)

	assert.ErrorIs(t, manager.SetItemQuantity(ctx, id, ledger.RedPotion, 1), ledger.ErrAlreadyCheckedOut)

	require.NoError(t, store.ReopenCart(ctx, id))
	assert.NoError(t, manager.SetItemQuantity(ctx, id, ledger.RedPotion, 1))
}

// =============================================================================
// END-TO-END CHECKOUT OVER SQLITE
// =============================================================================

func TestCheckout_OverSQLite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	manager := cart.NewManager(store)
	transactor := checkout.NewTransactor(store, store, checkout.DefaultPrices(), store)

	_, err := store.Apply(ctx, ledger.Delta{Stock: map[ledger.SKU]int64{ledger.RedPotion: 5}})
	require.NoError(t, err)

	id, err := manager.Create(ctx, cart.Customer{Name: "Scaramouche"})
	require.NoError(t, err)
	require.NoError(t, manager.SetItemQuantity(ctx, id, ledger.RedPotion, 3))

	summary, err := transactor.Checkout(ctx, id, "gold coins")
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalPotionsBought)
	assert.Equal(t, int64(150), summary.TotalGoldPaid)

	snap, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Stock[ledger.RedPotion])
	assert.Equal(t, ledger.DefaultGold+150, snap.Gold)

	// The sale landed in the history, searchable by customer.
	page, err := store.SearchSales(ctx, history.Query{CustomerName: "scara"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(150), page.Results[0].Total)
	assert.Equal(t, ledger.RedPotion, page.Results[0].SKU)
}

func TestCheckout_OverSQLite_ConcurrentCartsOneWinner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	manager := cart.NewManager(store)
	transactor := checkout.NewTransactor(store, store, checkout.DefaultPrices(), store)

	_, err := store.Apply(ctx, ledger.Delta{Stock: map[ledger.SKU]int64{ledger.RedPotion: 5}})
	require.NoError(t, err)

	var ids [2]cart.ID
	for i := range ids {
		id, err := manager.Create(ctx, cart.Customer{Name: "Racer"})
		require.NoError(t, err)
		require.NoError(t, manager.SetItemQuantity(ctx, id, ledger.RedPotion, 5))
		ids[i] = id
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id cart.ID) {
			defer wg.Done()
			_, errs[i] = transactor.Checkout(ctx, id, "gold coins")
		}(i, id)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ledger.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, successes)

	snap, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Stock[ledger.RedPotion])
}

// =============================================================================
// SEARCH AND VISITS
// =============================================================================

func TestSearchSales_FiltersSortsPaginates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var sales []history.Sale
	names := []string{"Scaramouche", "Paimon", "Scaramouche", "Venti", "Scaramouche", "Scaramouche", "Scaramouche", "Scaramouche"}
	for i, name := range names {
		sales = append(sales, sale(string(rune('a'+i)), name, ledger.RedPotion, int64(10*(i+1))))
	}
	require.NoError(t, store.AppendSales(ctx, sales))

	// Filter: six Scaramouche rows, five per page.
	page, err := store.SearchSales(ctx, history.Query{
		CustomerName: "SCARA",
		SortCol:      history.SortByLineItemTotal,
		SortOrder:    history.SortAsc,
	})
	require.NoError(t, err)
	require.Len(t, page.Results, history.PageSize)
	assert.Empty(t, page.Previous)
	require.NotEmpty(t, page.Next)
	for i := 1; i < len(page.Results); i++ {
		assert.LessOrEqual(t, page.Results[i-1].Total, page.Results[i].Total)
	}

	page2, err := store.SearchSales(ctx, history.Query{
		CustomerName: "SCARA",
		SortCol:      history.SortByLineItemTotal,
		SortOrder:    history.SortAsc,
		Page:         page.Next,
	})
	require.NoError(t, err)
	assert.Len(t, page2.Results, 1)
	assert.NotEmpty(t, page2.Previous)
	assert.Empty(t, page2.Next)
}

func TestSearchSales_SKUFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendSales(ctx, []history.Sale{
		sale("a", "Scaramouche", ledger.RedPotion, 50),
		sale("b", "Scaramouche", ledger.BluePotion, 50),
	}))

	page, err := store.SearchSales(ctx, history.Query{SKU: "blue"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, ledger.BluePotion, page.Results[0].SKU)
}

func TestSearchSales_MalformedCursor(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SearchSales(context.Background(), history.Query{Page: "not-a-cursor"})
	assert.Error(t, err)
}

func TestRecordVisits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.RecordVisits(ctx, []history.Visit{
		{VisitID: "42", Customer: cart.Customer{Name: "Scaramouche", CharacterClass: "wizard", Level: 12}},
		{VisitID: "42", Customer: cart.Customer{Name: "Paimon", CharacterClass: "guide", Level: 1}},
	})
	require.NoError(t, err)
}
