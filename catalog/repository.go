package catalog

import "context"

// Repository persists catalog rows.
//
// Implementations report core.ErrNotFound for missing rows,
// core.ErrConflictingUniqueValue when a unique name is taken and
// core.ErrForeignKeyInUse when a delete would orphan dependent rows.
// Listings are returned in storage order; the service sorts them.
type Repository interface {
	ListStores(ctx context.Context) ([]StoreSummary, error)
	FindStore(ctx context.Context, id uint) (*Store, error)
	CreateStore(ctx context.Context, store *Store) error
	SaveStore(ctx context.Context, store *Store) error
	// DeleteStore fails while users or orders reference the store.
	// Availability rows are removed with it.
	DeleteStore(ctx context.Context, id uint) error

	ListCategories(ctx context.Context) ([]Category, error)
	FindCategory(ctx context.Context, id uint) (*Category, error)
	CreateCategory(ctx context.Context, category *Category) error
	SaveCategory(ctx context.Context, category *Category) error
	// DeleteCategory fails while products reference the category.
	DeleteCategory(ctx context.Context, id uint) error

	// ListProducts returns every product with its Category populated.
	ListProducts(ctx context.Context) ([]Product, error)
	FindProduct(ctx context.Context, id uint) (*Product, error)
	CreateProduct(ctx context.Context, product *Product) error
	SaveProduct(ctx context.Context, product *Product) error
	// DeleteProduct fails while order items reference the product.
	// Availability rows are removed with it.
	DeleteProduct(ctx context.Context, id uint) error
}
