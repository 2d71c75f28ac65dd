/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the potion shop server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store (ledger, carts, sales, visits)
  3. Wire the cart manager, checkout transactor, and capacity planner
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: shop.db)
               Use ":memory:" for an in-memory database
  -api-key     Shared API key; empty disables authentication
  -unit-price  Gold per potion for every known SKU (default: 50)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and auth
  ./server -db="./data/shop.db" -api-key="hunter2"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cauldron/shop-engine/api"
	"github.com/cauldron/shop-engine/capacity"
	"github.com/cauldron/shop-engine/cart"
	"github.com/cauldron/shop-engine/checkout"
	"github.com/cauldron/shop-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "shop.db", "SQLite database path")
	apiKey := flag.String("api-key", "", "shared API key; empty disables auth")
	unitPrice := flag.String("unit-price", "50", "gold per potion")
	flag.Parse()

	price, err := decimal.NewFromString(*unitPrice)
	if err != nil {
		log.Fatalf("Invalid -unit-price %q: %v", *unitPrice, err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the engine
	carts := cart.NewManager(store)
	transactor := checkout.NewTransactor(store, store, checkout.UniformPrices(price), store)
	planner := capacity.NewPlanner(store)
	handler := api.NewHandler(carts, transactor, planner, store, store)

	// Create router
	router := api.NewRouter(handler, *apiKey)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Potion shop listening on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
