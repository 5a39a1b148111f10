package storage

import (
	"time"

	"github.com/weekorder/weekorder/auth"
	"github.com/weekorder/weekorder/catalog"
	"github.com/weekorder/weekorder/core"
	"github.com/weekorder/weekorder/ordering"
)

// Row models. Booleans carry no gorm default so an explicit false is written.

type categoryRow struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:255;not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (categoryRow) TableName() string { return "categories" }

type productRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:255;not null;uniqueIndex:idx_products_name_size"`
	// SizeDescription is "" when absent so the unique index treats two
	// size-less products with the same name as equal.
	SizeDescription string       `gorm:"size:255;not null;default:'';uniqueIndex:idx_products_name_size"`
	ImageURL        *string      `gorm:"size:1024"`
	CategoryID      uint         `gorm:"not null;index"`
	Category        *categoryRow `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT"`
	Active          bool         `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (productRow) TableName() string { return "products" }

type storeRow struct {
	ID        uint    `gorm:"primaryKey"`
	Name      string  `gorm:"size:255;not null"`
	Location  *string `gorm:"size:255"`
	Active    bool    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (storeRow) TableName() string { return "stores" }

type availabilityRow struct {
	ID          uint        `gorm:"primaryKey"`
	StoreID     uint        `gorm:"not null;uniqueIndex:idx_availability_store_product"`
	ProductID   uint        `gorm:"not null;uniqueIndex:idx_availability_store_product;index"`
	Store       *storeRow   `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE"`
	Product     *productRow `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	IsAvailable bool        `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (availabilityRow) TableName() string { return "availabilities" }

type orderRow struct {
	ID          uint           `gorm:"primaryKey"`
	StoreID     uint           `gorm:"not null;uniqueIndex:idx_orders_store_week"`
	WeekKey     string         `gorm:"size:10;not null;uniqueIndex:idx_orders_store_week"`
	Store       *storeRow      `gorm:"foreignKey:StoreID;constraint:OnDelete:RESTRICT"`
	Status      string         `gorm:"size:16;not null;index"`
	SubmittedAt time.Time      `gorm:"not null;index"`
	Items       []orderItemRow `gorm:"foreignKey:OrderID"`
}

func (orderRow) TableName() string { return "orders" }

type orderItemRow struct {
	ID        uint        `gorm:"primaryKey"`
	OrderID   uint        `gorm:"not null;index"`
	ProductID uint        `gorm:"not null;index"`
	Product   *productRow `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Quantity  int         `gorm:"not null;check:chk_order_items_quantity,quantity > 0"`
}

func (orderItemRow) TableName() string { return "order_items" }

type userRow struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"size:320;not null;uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"size:16;not null"`
	StoreID      *uint     `gorm:"index"`
	Store        *storeRow `gorm:"foreignKey:StoreID;constraint:OnDelete:RESTRICT"`
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func allModels() []interface{} {
	return []interface{}{
		&categoryRow{},
		&storeRow{},
		&productRow{},
		&availabilityRow{},
		&orderRow{},
		&orderItemRow{},
		&userRow{},
	}
}

// Conversions

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *categoryRow) toDomain() *catalog.Category {
	if r == nil {
		return nil
	}
	return &catalog.Category{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func (r *productRow) toDomain() *catalog.Product {
	if r == nil {
		return nil
	}
	return &catalog.Product{
		ID:              r.ID,
		Name:            r.Name,
		SizeDescription: optional(r.SizeDescription),
		ImageURL:        r.ImageURL,
		CategoryID:      r.CategoryID,
		Category:        r.Category.toDomain(),
		Active:          r.Active,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func productFromDomain(p *catalog.Product) *productRow {
	return &productRow{
		ID:              p.ID,
		Name:            p.Name,
		SizeDescription: sizeKey(p.SizeDescription),
		ImageURL:        p.ImageURL,
		CategoryID:      p.CategoryID,
		Active:          p.Active,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (r *storeRow) toDomain() *catalog.Store {
	if r == nil {
		return nil
	}
	return &catalog.Store{
		ID:        r.ID,
		Name:      r.Name,
		Location:  r.Location,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func storeFromDomain(s *catalog.Store) *storeRow {
	return &storeRow{
		ID:        s.ID,
		Name:      s.Name,
		Location:  s.Location,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (r *orderRow) toDomain() ordering.Order {
	o := ordering.Order{
		ID:          r.ID,
		StoreID:     r.StoreID,
		Status:      ordering.Status(r.Status),
		SubmittedAt: r.SubmittedAt,
		WeekKey:     r.WeekKey,
		Store:       r.Store.toDomain(),
		Items:       make([]ordering.OrderItem, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		o.Items = append(o.Items, ordering.OrderItem{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Product:   item.Product.toDomain(),
		})
	}
	return o
}

func orderFromDomain(o *ordering.Order) *orderRow {
	row := &orderRow{
		StoreID:     o.StoreID,
		WeekKey:     o.WeekKey,
		Status:      string(o.Status),
		SubmittedAt: o.SubmittedAt,
		Items:       make([]orderItemRow, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		row.Items = append(row.Items, orderItemRow{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return row
}

func (r *userRow) toDomain() *auth.User {
	return &auth.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         core.Role(r.Role),
		StoreID:      r.StoreID,
		CreatedAt:    r.CreatedAt,
	}
}
