/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing
  field renaming and version evolution without touching domain types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers and domain code, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/cauldron/shop-engine/capacity"
	"github.com/cauldron/shop-engine/cart"
	"github.com/cauldron/shop-engine/checkout"
	"github.com/cauldron/shop-engine/history"
	"github.com/cauldron/shop-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CustomerDTO identifies a shopper, on cart creation and visit logs.
type CustomerDTO struct {
	CustomerName   string `json:"customer_name"`
	CharacterClass string `json:"character_class"`
	Level          int    `json:"level"`
}

func (c CustomerDTO) toDomain() cart.Customer {
	return cart.Customer{
		Name:           c.CustomerName,
		CharacterClass: c.CharacterClass,
		Level:          c.Level,
	}
}

// CreateCartResponse returns the id of a freshly opened cart.
type CreateCartResponse struct {
	CartID string `json:"cart_id"`
}

// CartItemRequest sets the quantity for one SKU. Replaces, never adds.
type CartItemRequest struct {
	Quantity int64 `json:"quantity"`
}

// CartCheckoutRequest carries the customer's payment method.
type CartCheckoutRequest struct {
	Payment string `json:"payment"`
}

// CheckoutResponse summarizes a committed sale.
type CheckoutResponse struct {
	TotalPotionsBought int64 `json:"total_potions_bought"`
	TotalGoldPaid      int64 `json:"total_gold_paid"`
}

// InventoryAuditDTO is the shop-wide stock and gold report.
type InventoryAuditDTO struct {
	NumberOfPotions int64 `json:"number_of_potions"`
	MLInBarrels     int64 `json:"ml_in_barrels"`
	Gold            int64 `json:"gold"`
}

// CapacityPlanDTO reports spare capacity per dimension.
type CapacityPlanDTO struct {
	PotionCapacity int64 `json:"potion_capacity"`
	MLCapacity     int64 `json:"ml_capacity"`
}

// CapacityPurchaseRequest buys additional capacity, in units.
type CapacityPurchaseRequest struct {
	PotionCapacity int64 `json:"potion_capacity"`
	MLCapacity     int64 `json:"ml_capacity"`
}

// ReceiptDTO confirms a delivered capacity purchase.
type ReceiptDTO struct {
	OrderID        string `json:"order_id"`
	GoldPaid       int64  `json:"gold_paid"`
	PotionCapacity int64  `json:"potion_capacity"`
	MLCapacity     int64  `json:"ml_capacity"`
}

// LineItemDTO is one sale record in search results.
type LineItemDTO struct {
	LineItemID    string `json:"line_item_id"`
	ItemSKU       string `json:"item_sku"`
	CustomerName  string `json:"customer_name"`
	LineItemTotal int64  `json:"line_item_total"`
	Timestamp     string `json:"timestamp"`
}

// SearchResponse is one page of order-search results.
type SearchResponse struct {
	Previous string        `json:"previous"`
	Next     string        `json:"next"`
	Results  []LineItemDTO `json:"results"`
}

// ErrorResponse is the JSON shape of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toCheckoutResponse(s checkout.SaleSummary) CheckoutResponse {
	return CheckoutResponse{
		TotalPotionsBought: s.TotalPotionsBought,
		TotalGoldPaid:      s.TotalGoldPaid,
	}
}

func toAuditDTO(snap ledger.Snapshot) InventoryAuditDTO {
	return InventoryAuditDTO{
		NumberOfPotions: snap.TotalPotions(),
		MLInBarrels:     snap.TotalML(),
		Gold:            snap.Gold,
	}
}

func toReceiptDTO(r capacity.Receipt) ReceiptDTO {
	return ReceiptDTO{
		OrderID:        r.OrderID,
		GoldPaid:       r.GoldPaid,
		PotionCapacity: r.NewCapacity.Potions,
		MLCapacity:     r.NewCapacity.ML,
	}
}

func toSearchResponse(page history.Page) SearchResponse {
	resp := SearchResponse{
		Previous: page.Previous,
		Next:     page.Next,
		Results:  make([]LineItemDTO, 0, len(page.Results)),
	}
	for _, sale := range page.Results {
		resp.Results = append(resp.Results, LineItemDTO{
			LineItemID:    sale.LineItemID,
			ItemSKU:       string(sale.SKU),
			CustomerName:  sale.CustomerName,
			LineItemTotal: sale.Total,
			Timestamp:     sale.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return resp
}
