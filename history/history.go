/*
history.go - Append-only sale records, order search, and the visit log

PURPOSE:
  Completed checkouts are recorded as immutable sale line items, one per
  distinct SKU bought. The records back the order-search endpoint and the
  shop's reporting. The daily visit log lives here too.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: sale records are never updated or deleted.
  2. NO DOUBLE COUNTING: the transactor emits each cart's line items
     exactly once, after its ledger delta committed.

SEARCH:
  Filters are case-insensitive substring matches. Results are paginated
  with opaque cursor tokens, at most PageSize line items per page.

SEE ALSO:
  - checkout/transactor.go: The only producer of sale records
  - store/sqlite: Indexed search over the sales table
*/
package history

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/cauldron/shop-engine/cart"
	"github.com/cauldron/shop-engine/ledger"
)

// PageSize is the maximum number of line items per search page.
const PageSize = 5

// Sale is one immutable line item of a completed checkout.
type Sale struct {
	LineItemID   string
	CartID       cart.ID
	SKU          ledger.SKU
	CustomerName string
	UnitPrice    int64
	Quantity     int64
	Total        int64
	Timestamp    time.Time
}

// Visit is one customer's appearance in the daily who-visited log.
type Visit struct {
	VisitID   string
	Customer  cart.Customer
	VisitedAt time.Time
}

// =============================================================================
// SORTING AND QUERYING
// =============================================================================

type SortColumn string

const (
	SortByCustomerName  SortColumn = "customer_name"
	SortByItemSKU       SortColumn = "item_sku"
	SortByLineItemTotal SortColumn = "line_item_total"
	SortByTimestamp     SortColumn = "timestamp"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Query filters and orders a search over sale records. Empty filter
// strings match everything. Zero-valued sort fields default to
// timestamp descending, newest orders first.
type Query struct {
	CustomerName string
	SKU          string
	Page         string // opaque cursor from a previous Page
	SortCol      SortColumn
	SortOrder    SortOrder
}

// Normalize fills in the default sort and validates the sort column.
func (q Query) Normalize() (Query, error) {
	if q.SortCol == "" {
		q.SortCol = SortByTimestamp
	}
	if q.SortOrder == "" {
		q.SortOrder = SortDesc
	}
	switch q.SortCol {
	case SortByCustomerName, SortByItemSKU, SortByLineItemTotal, SortByTimestamp:
	default:
		return Query{}, fmt.Errorf("unknown sort column %q", q.SortCol)
	}
	switch q.SortOrder {
	case SortAsc, SortDesc:
	default:
		return Query{}, fmt.Errorf("unknown sort order %q", q.SortOrder)
	}
	return q, nil
}

// Page is one window of search results with cursors to its neighbors.
// Empty cursor strings mean no such page exists.
type Page struct {
	Previous string
	Next     string
	Results  []Sale
}

// =============================================================================
// STORE CONTRACTS
// =============================================================================

// Sink accepts completed sale records. Append-only.
type Sink interface {
	AppendSales(ctx context.Context, sales []Sale) error
}

// Searcher queries recorded sales.
type Searcher interface {
	SearchSales(ctx context.Context, q Query) (Page, error)
}

// VisitLog records which customers visited the shop.
type VisitLog interface {
	RecordVisits(ctx context.Context, visits []Visit) error
}

// =============================================================================
// CURSORS
// =============================================================================
// Cursors are opaque to clients: an encoded offset into the ordered
// result set. The encoding is not a contract and may change.

func EncodeCursor(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func DecodeCursor(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("malformed page cursor: %w", err)
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("malformed page cursor %q", token)
	}
	return offset, nil
}

// PageCursors computes the previous/next tokens for a window starting at
// offset over a result set of the given total size.
func PageCursors(offset, total int) (previous, next string) {
	if offset > 0 {
		prev := offset - PageSize
		if prev < 0 {
			prev = 0
		}
		previous = EncodeCursor(prev)
	}
	if offset+PageSize < total {
		next = EncodeCursor(offset + PageSize)
	}
	return previous, next
}
