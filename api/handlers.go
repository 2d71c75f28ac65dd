/*
handlers.go - HTTP API handlers for the potion shop

PURPOSE:
  Exposes the shop engine via REST. Handles HTTP request/response and
  JSON serialization, and delegates everything else to domain logic.

ENDPOINTS:
  Carts:
    POST /carts/                              Create cart
    POST /carts/{cart_id}/items/{item_sku}    Set item quantity
    POST /carts/{cart_id}/checkout            Checkout
    GET  /carts/search/                       Search order history
    POST /carts/visits/{visit_id}             Record daily visits

  Inventory:
    GET  /inventory/audit                     Stock and gold totals
    POST /inventory/plan                      Capacity plan
    POST /inventory/deliver/{order_id}        Purchase capacity

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing/invalid API key (see auth.go)
  - 404: Cart or order not found
  - 409: Conflict (already checked out, insufficient stock/gold)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cauldron/shop-engine/capacity"
	"github.com/cauldron/shop-engine/cart"
	"github.com/cauldron/shop-engine/checkout"
	"github.com/cauldron/shop-engine/history"
	"github.com/cauldron/shop-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// HistoryStore is the reporting side of the store: search over committed
// sales plus the visit log.
type HistoryStore interface {
	history.Searcher
	history.VisitLog
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Carts    *cart.Manager
	Checkout *checkout.Transactor
	Capacity *capacity.Planner
	Ledger   ledger.Store
	History  HistoryStore
}

// NewHandler wires the handler with its collaborators.
func NewHandler(carts *cart.Manager, tr *checkout.Transactor, planner *capacity.Planner, led ledger.Store, hist HistoryStore) *Handler {
	return &Handler{
		Carts:    carts,
		Checkout: tr,
		Capacity: planner,
		Ledger:   led,
		History:  hist,
	}
}

// =============================================================================
// CART ENDPOINTS
// =============================================================================

// CreateCart opens an empty cart for a customer.
// POST /carts/
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var req CustomerDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.Carts.Create(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create cart", err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateCartResponse{CartID: string(id)})
}

// SetCartItem replaces the quantity of one SKU in the cart.
// POST /carts/{cart_id}/items/{item_sku}
func (h *Handler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	cartID := cart.ID(chi.URLParam(r, "cart_id"))
	sku := ledger.SKU(chi.URLParam(r, "item_sku"))

	var req CartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Carts.SetItemQuantity(r.Context(), cartID, sku, req.Quantity); err != nil {
		writeDomainError(w, "Failed to set cart item", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CheckoutCart converts the cart into a committed sale.
// POST /carts/{cart_id}/checkout
func (h *Handler) CheckoutCart(w http.ResponseWriter, r *http.Request) {
	cartID := cart.ID(chi.URLParam(r, "cart_id"))

	var req CartCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	summary, err := h.Checkout.Checkout(r.Context(), cartID, req.Payment)
	if err != nil {
		writeDomainError(w, "Checkout failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toCheckoutResponse(summary))
}

// SearchOrders pages through committed sale line items.
// GET /carts/search/
func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := history.Query{
		CustomerName: params.Get("customer_name"),
		SKU:          params.Get("potion_sku"),
		Page:         params.Get("search_page"),
		SortCol:      history.SortColumn(params.Get("sort_col")),
		SortOrder:    history.SortOrder(params.Get("sort_order")),
	}

	page, err := h.History.SearchSales(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Search failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toSearchResponse(page))
}

// RecordVisits logs which customers visited the shop today.
// POST /carts/visits/{visit_id}
func (h *Handler) RecordVisits(w http.ResponseWriter, r *http.Request) {
	visitID := chi.URLParam(r, "visit_id")

	var customers []CustomerDTO
	if err := json.NewDecoder(r.Body).Decode(&customers); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	now := time.Now().UTC()
	visits := make([]history.Visit, 0, len(customers))
	for _, c := range customers {
		visits = append(visits, history.Visit{
			VisitID:   visitID,
			Customer:  c.toDomain(),
			VisitedAt: now,
		})
	}

	if err := h.History.RecordVisits(r.Context(), visits); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record visits", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// INVENTORY ENDPOINTS
// =============================================================================

// GetInventoryAudit reports shop-wide stock and gold totals.
// GET /inventory/audit
func (h *Handler) GetInventoryAudit(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Ledger.Read(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, toAuditDTO(snap))
}

// GetCapacityPlan reports spare capacity per dimension.
// POST /inventory/plan
func (h *Handler) GetCapacityPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Capacity.Plan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute capacity plan", err)
		return
	}

	writeJSON(w, http.StatusOK, CapacityPlanDTO{
		PotionCapacity: plan.PotionCapacity,
		MLCapacity:     plan.MLCapacity,
	})
}

// DeliverCapacity purchases additional capacity with gold.
// POST /inventory/deliver/{order_id}
func (h *Handler) DeliverCapacity(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req CapacityPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	receipt, err := h.Capacity.Deliver(r.Context(), orderID, capacity.Purchase{
		PotionCapacity: req.PotionCapacity,
		MLCapacity:     req.MLCapacity,
	})
	if err != nil {
		writeDomainError(w, "Capacity delivery failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrInvalidQuantity) || errors.Is(err, ledger.ErrUnknownSKU):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsClientError(err):
		// Already checked out, insufficient stock or gold.
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
