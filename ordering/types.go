// Package ordering is the weekly order engine: per-store product visibility,
// once-per-week order submission, the SUBMITTED to VIEWED lifecycle and
// availability updates.
package ordering

import (
	"time"

	"github.com/weekorder/weekorder/catalog"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusSubmitted Status = "SUBMITTED"
	StatusViewed    Status = "VIEWED"
)

// Order is a store's consolidated weekly order.
type Order struct {
	ID          uint           `json:"id"`
	StoreID     uint           `json:"storeId"`
	Status      Status         `json:"status"`
	SubmittedAt time.Time      `json:"submittedAt"`
	WeekKey     string         `json:"weekOf"`
	Store       *catalog.Store `json:"store,omitempty"`
	Items       []OrderItem    `json:"items"`
}

// OrderItem is one product line of an order. Quantity is always positive.
type OrderItem struct {
	ID        uint             `json:"id"`
	OrderID   uint             `json:"orderId"`
	ProductID uint             `json:"productId"`
	Quantity  int              `json:"quantity"`
	Product   *catalog.Product `json:"product,omitempty"`
}

// AvailabilityEntry toggles one product for a store.
type AvailabilityEntry struct {
	ProductID   uint `json:"productId"`
	IsAvailable bool `json:"isAvailable"`
}

// AvailabilityRow is a stored availability flag joined with its product and category.
type AvailabilityRow struct {
	StoreID     uint             `json:"storeId"`
	ProductID   uint             `json:"productId"`
	IsAvailable bool             `json:"isAvailable"`
	Product     *catalog.Product `json:"product,omitempty"`
}

// OrderFilter narrows ListOrders. A nil StoreID lists every store.
type OrderFilter struct {
	StoreID *uint
}
