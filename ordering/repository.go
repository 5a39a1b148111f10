package ordering

import (
	"context"

	"github.com/weekorder/weekorder/catalog"
)

// Repository persists orders and availability.
//
// FindOrder and MarkViewed-then-FindOrder report core.ErrNotFound for unknown
// ids. UpsertAvailability reports core.ErrNotFound for an unknown store or
// product and writes nothing in that case.
type Repository interface {
	// VisibleProducts returns active products with an available flag for the
	// store, each with its Category populated.
	VisibleProducts(ctx context.Context, storeID uint) ([]catalog.Product, error)

	// Transact runs fn atomically. Writes made through tx are discarded when
	// fn returns an error.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	// ListOrders returns orders with store, items and item products populated.
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	FindOrder(ctx context.Context, id uint) (*Order, error)

	// MarkViewed moves a SUBMITTED order to VIEWED with a single conditional
	// update and reports whether this call made the transition.
	MarkViewed(ctx context.Context, id uint) (bool, error)

	UpsertAvailability(ctx context.Context, storeID uint, entries []AvailabilityEntry) error
	// ListAvailability returns the store's rows with Product and its Category populated.
	ListAvailability(ctx context.Context, storeID uint) ([]AvailabilityRow, error)
}

// Tx is the view of the repository inside Transact.
type Tx interface {
	// LockStore serialises submissions for one store until the transaction ends.
	LockStore(ctx context.Context, storeID uint) error

	// FindOrderInWindow returns the store's order submitted inside w, or nil.
	FindOrderInWindow(ctx context.Context, storeID uint, w Window) (*Order, error)

	// CountOrderable counts how many of productIDs are active and available for the store.
	CountOrderable(ctx context.Context, storeID uint, productIDs []uint) (int, error)

	// CreateOrder inserts the order and its items, assigning ids.
	// A second order for the same store and week key fails with
	// core.ErrDuplicateWeeklyOrder.
	CreateOrder(ctx context.Context, order *Order) error
}

// Locker provides cross-process mutual exclusion around a submission.
// Acquire must not block waiting for a holder: it fails with
// core.ErrSubmissionInProgress instead.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
