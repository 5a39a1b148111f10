// Package catalog owns stores, categories and products and the owner-facing
// CRUD rules around them.
package catalog

import "time"

// Category groups products; its name is unique.
type Category struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Product belongs to exactly one category. (Name, SizeDescription) is unique;
// an absent size description counts as the empty string for that rule.
type Product struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	SizeDescription *string   `json:"sizeDescription"`
	ImageURL        *string   `json:"imageUrl"`
	CategoryID      uint      `json:"categoryId"`
	Category        *Category `json:"category,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Store is a retail location that submits weekly orders.
type Store struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Location  *string   `json:"location"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StoreCounts reports how many rows reference a store.
type StoreCounts struct {
	Users          int64 `json:"users"`
	Orders         int64 `json:"orders"`
	Availabilities int64 `json:"availabilities"`
}

// StoreSummary is a store listing entry with its reference counts.
type StoreSummary struct {
	Store
	Count StoreCounts `json:"_count"`
}

// StoreInput creates a store. Active defaults to true.
type StoreInput struct {
	Name     string  `json:"name"`
	Location *string `json:"location"`
	Active   *bool   `json:"active"`
}

// StorePatch updates a store; nil fields are left unchanged and an empty
// location clears it.
type StorePatch struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
	Active   *bool   `json:"active"`
}

// CategoryInput creates or renames a category.
type CategoryInput struct {
	Name string `json:"name"`
}

// ProductInput creates a product. Active defaults to true.
type ProductInput struct {
	Name            string  `json:"name"`
	SizeDescription *string `json:"sizeDescription"`
	ImageURL        *string `json:"imageUrl"`
	CategoryID      uint    `json:"categoryId"`
	Active          *bool   `json:"active"`
}

// ProductPatch updates a product; nil fields are left unchanged and empty
// optional strings clear them.
type ProductPatch struct {
	Name            *string `json:"name"`
	SizeDescription *string `json:"sizeDescription"`
	ImageURL        *string `json:"imageUrl"`
	CategoryID      *uint   `json:"categoryId"`
	Active          *bool   `json:"active"`
}
