/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store, cart.Store, and the history contracts
  (Sink/Searcher/VisitLog) on one SQLite database. The same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

THE LEDGER IS ONE ROW:
  Gold, stock, and capacity form a single consistency unit. Apply reads
  the unit, validates the delta, and writes the result inside one SQL
  transaction, so no reader or competing writer ever sees a half-applied
  checkout or capacity purchase. The schema additionally carries
  CHECK (>= 0) constraints, so even a buggy future writer cannot commit
  negative stock or gold.

CONCURRENCY:
  A sync.Mutex serializes writers in-process, and the pool is capped at
  one connection. The cap also keeps ":memory:" databases coherent:
  each pooled connection would otherwise get its own empty database.

KEY TABLES:
  ledger:          The singleton economy row (gold, capacity)
  commodity_stock: Per-SKU potion and ml counts
  carts:           One row per cart, with the terminal flag
  cart_items:      Last-write-wins quantity per (cart, sku)
  sales:           Immutable line items of committed checkouts
  visits:          The daily who-visited log

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE ever touches the sales or visits tables.

USAGE:
  store, err := sqlite.New("./data/shop.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/ledger.go: The Apply contract this must honor
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cauldron/shop-engine/cart"
	"github.com/cauldron/shop-engine/history"
	"github.com/cauldron/shop-engine/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer; also keeps ":memory:" to one real database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema and seeds the opening ledger state.
func (s *Store) migrate() error {
	schema := `
	-- The singleton economy row
	CREATE TABLE IF NOT EXISTS ledger (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		gold INTEGER NOT NULL CHECK (gold >= 0),
		potion_capacity INTEGER NOT NULL CHECK (potion_capacity >= 1),
		ml_capacity INTEGER NOT NULL CHECK (ml_capacity >= 1)
	);

	CREATE TABLE IF NOT EXISTS commodity_stock (
		sku TEXT PRIMARY KEY,
		potions INTEGER NOT NULL DEFAULT 0 CHECK (potions >= 0),
		ml INTEGER NOT NULL DEFAULT 0 CHECK (ml >= 0)
	);

	CREATE TABLE IF NOT EXISTS carts (
		id TEXT PRIMARY KEY,
		customer_name TEXT NOT NULL,
		character_class TEXT NOT NULL DEFAULT '',
		level INTEGER NOT NULL DEFAULT 0,
		checked_out INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cart_items (
		cart_id TEXT NOT NULL REFERENCES carts(id),
		sku TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		PRIMARY KEY (cart_id, sku)
	);

	-- Immutable line items (append-only)
	CREATE TABLE IF NOT EXISTS sales (
		line_item_id TEXT PRIMARY KEY,
		cart_id TEXT NOT NULL,
		sku TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		unit_price INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		total INTEGER NOT NULL,
		timestamp TEXT NOT NULL
	);

	-- Search hot paths: filter by name/sku, sort by timestamp
	CREATE INDEX IF NOT EXISTS idx_sales_customer_name ON sales(customer_name);
	CREATE INDEX IF NOT EXISTS idx_sales_sku ON sales(sku);
	CREATE INDEX IF NOT EXISTS idx_sales_timestamp ON sales(timestamp DESC);

	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		visit_id TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		character_class TEXT NOT NULL DEFAULT '',
		level INTEGER NOT NULL DEFAULT 0,
		visited_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_visits_visit_id ON visits(visit_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Seed the opening state. INSERT OR IGNORE keeps restarts idempotent.
	seed := ledger.NewSnapshot()
	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO ledger (id, gold, potion_capacity, ml_capacity) VALUES (1, ?, ?, ?)`,
		seed.Gold, seed.Capacity.Potions, seed.Capacity.ML,
	); err != nil {
		return err
	}
	for _, sku := range ledger.KnownSKUs() {
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO commodity_stock (sku, potions, ml) VALUES (?, 0, 0)`, string(sku),
		); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (s *Store) Read(ctx context.Context) (ledger.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	return s.readSnapshot(ctx, tx)
}

// Apply validates and commits the delta inside one SQL transaction.
// Read, check, and write share the transaction, so a competing Apply
// cannot interleave between the stock check and the debit.
func (s *Store) Apply(ctx context.Context, delta ledger.Delta) (ledger.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := s.readSnapshot(ctx, tx)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	next, err := current.Apply(delta)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE ledger SET gold = ?, potion_capacity = ?, ml_capacity = ? WHERE id = 1`,
		next.Gold, next.Capacity.Potions, next.Capacity.ML,
	); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("update ledger: %w", err)
	}

	touched := make(map[ledger.SKU]bool, len(delta.Stock)+len(delta.ML))
	for sku := range delta.Stock {
		touched[sku] = true
	}
	for sku := range delta.ML {
		touched[sku] = true
	}
	for sku := range touched {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO commodity_stock (sku, potions, ml) VALUES (?, ?, ?)
			ON CONFLICT(sku) DO UPDATE SET potions = excluded.potions, ml = excluded.ml`,
			string(sku), next.Stock[sku], next.ML[sku],
		); err != nil {
			return ledger.Snapshot{}, fmt.Errorf("update stock for %s: %w", sku, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (s *Store) readSnapshot(ctx context.Context, tx *sql.Tx) (ledger.Snapshot, error) {
	snap := ledger.Snapshot{
		Stock: make(map[ledger.SKU]int64),
		ML:    make(map[ledger.SKU]int64),
	}

	err := tx.QueryRowContext(ctx,
		`SELECT gold, potion_capacity, ml_capacity FROM ledger WHERE id = 1`,
	).Scan(&snap.Gold, &snap.Capacity.Potions, &snap.Capacity.ML)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("read ledger row: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT sku, potions, ml FROM commodity_stock`)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("read stock: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sku         string
			potions, ml int64
		)
		if err := rows.Scan(&sku, &potions, &ml); err != nil {
			return ledger.Snapshot{}, fmt.Errorf("scan stock: %w", err)
		}
		snap.Stock[ledger.SKU(sku)] = potions
		snap.ML[ledger.SKU(sku)] = ml
	}
	return snap, rows.Err()
}

// =============================================================================
// CARTS
// =============================================================================

func (s *Store) CreateCart(ctx context.Context, c cart.Cart) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO carts (id, customer_name, character_class, level, checked_out, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		string(c.ID), c.Customer.Name, c.Customer.CharacterClass, c.Customer.Level,
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

func (s *Store) GetCart(ctx context.Context, id cart.ID) (cart.Cart, error) {
	c := cart.Cart{ID: id, Items: make(map[ledger.SKU]int64)}

	var createdAt string
	var checkedOut int
	err := s.db.QueryRowContext(ctx, `
		SELECT customer_name, character_class, level, checked_out, created_at
		FROM carts WHERE id = ?`, string(id),
	).Scan(&c.Customer.Name, &c.Customer.CharacterClass, &c.Customer.Level, &checkedOut, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cart.Cart{}, fmt.Errorf("%w: %s", ledger.ErrCartNotFound, id)
	}
	if err != nil {
		return cart.Cart{}, fmt.Errorf("query cart: %w", err)
	}
	c.CheckedOut = checkedOut != 0
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		c.CreatedAt = t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sku, quantity FROM cart_items WHERE cart_id = ?`, string(id))
	if err != nil {
		return cart.Cart{}, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sku string
		var qty int64
		if err := rows.Scan(&sku, &qty); err != nil {
			return cart.Cart{}, fmt.Errorf("scan cart item: %w", err)
		}
		c.Items[ledger.SKU(sku)] = qty
	}
	return c, rows.Err()
}

func (s *Store) SetCartItem(ctx context.Context, id cart.ID, sku ledger.SKU, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var checkedOut int
	err = tx.QueryRowContext(ctx,
		`SELECT checked_out FROM carts WHERE id = ?`, string(id)).Scan(&checkedOut)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ledger.ErrCartNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("query cart: %w", err)
	}
	if checkedOut != 0 {
		return fmt.Errorf("%w: cart %s", ledger.ErrAlreadyCheckedOut, id)
	}

	// Last-write-wins: the new quantity replaces the old one.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, sku, quantity) VALUES (?, ?, ?)
		ON CONFLICT(cart_id, sku) DO UPDATE SET quantity = excluded.quantity`,
		string(id), string(sku), quantity,
	); err != nil {
		return fmt.Errorf("set cart item: %w", err)
	}

	return tx.Commit()
}

// MarkCheckedOut is a compare-and-set: the guarded UPDATE only matches an
// open cart, and RowsAffected tells us whether we won the race.
func (s *Store) MarkCheckedOut(ctx context.Context, id cart.ID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE carts SET checked_out = 1 WHERE id = ? AND checked_out = 0`, string(id))
	if err != nil {
		return fmt.Errorf("mark checked out: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	// Lost the race, or no such cart. Disambiguate.
	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM carts WHERE id = ?`, string(id)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ledger.ErrCartNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("query cart: %w", err)
	}
	return fmt.Errorf("%w: cart %s", ledger.ErrAlreadyCheckedOut, id)
}

func (s *Store) ReopenCart(ctx context.Context, id cart.ID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE carts SET checked_out = 0 WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("reopen cart: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrCartNotFound, id)
	}
	return nil
}

// =============================================================================
// SALES AND VISITS
// =============================================================================

// AppendSales inserts all line items atomically. Append-only: no code
// path updates or deletes from the sales table.
func (s *Store) AppendSales(ctx context.Context, sales []history.Sale) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, sale := range sales {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sales (line_item_id, cart_id, sku, customer_name, unit_price, quantity, total, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sale.LineItemID, string(sale.CartID), string(sale.SKU), sale.CustomerName,
			sale.UnitPrice, sale.Quantity, sale.Total,
			sale.Timestamp.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert sale %s: %w", sale.LineItemID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) RecordVisits(ctx context.Context, visits []history.Visit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, v := range visits {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO visits (visit_id, customer_name, character_class, level, visited_at)
			VALUES (?, ?, ?, ?, ?)`,
			v.VisitID, v.Customer.Name, v.Customer.CharacterClass, v.Customer.Level,
			v.VisitedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert visit: %w", err)
		}
	}
	return tx.Commit()
}

// sortColumns whitelists ORDER BY targets. Never interpolate the raw
// query value into SQL.
var sortColumns = map[history.SortColumn]string{
	history.SortByCustomerName:  "customer_name",
	history.SortByItemSKU:       "sku",
	history.SortByLineItemTotal: "total",
	history.SortByTimestamp:     "timestamp",
}

func (s *Store) SearchSales(ctx context.Context, q history.Query) (history.Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return history.Page{}, err
	}
	offset, err := history.DecodeCursor(q.Page)
	if err != nil {
		return history.Page{}, err
	}

	var (
		where []string
		args  []any
	)
	if q.CustomerName != "" {
		where = append(where, "LOWER(customer_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.CustomerName)+"%")
	}
	if q.SKU != "" {
		where = append(where, "LOWER(sku) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.SKU)+"%")
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sales"+whereClause, args...).Scan(&total); err != nil {
		return history.Page{}, fmt.Errorf("count sales: %w", err)
	}

	direction := "ASC"
	if q.SortOrder == history.SortDesc {
		direction = "DESC"
	}
	query := fmt.Sprintf(
		"SELECT line_item_id, cart_id, sku, customer_name, unit_price, quantity, total, timestamp FROM sales%s ORDER BY %s %s, line_item_id ASC LIMIT ? OFFSET ?",
		whereClause, sortColumns[q.SortCol], direction,
	)
	rows, err := s.db.QueryContext(ctx, query, append(args, history.PageSize, offset)...)
	if err != nil {
		return history.Page{}, fmt.Errorf("search sales: %w", err)
	}
	defer rows.Close()

	var results []history.Sale
	for rows.Next() {
		var (
			sale        history.Sale
			cartID, sku string
			stamp       string
		)
		if err := rows.Scan(&sale.LineItemID, &cartID, &sku, &sale.CustomerName,
			&sale.UnitPrice, &sale.Quantity, &sale.Total, &stamp); err != nil {
			return history.Page{}, fmt.Errorf("scan sale: %w", err)
		}
		sale.CartID = cart.ID(cartID)
		sale.SKU = ledger.SKU(sku)
		if t, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
			sale.Timestamp = t
		}
		results = append(results, sale)
	}
	if err := rows.Err(); err != nil {
		return history.Page{}, err
	}

	previous, next := history.PageCursors(offset, total)
	return history.Page{Previous: previous, Next: next, Results: results}, nil
}
