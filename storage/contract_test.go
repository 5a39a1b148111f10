package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weekorder/weekorder/auth"
	"github.com/weekorder/weekorder/catalog"
	"github.com/weekorder/weekorder/core"
	"github.com/weekorder/weekorder/ordering"
)

// runBackendContract exercises behaviour every Backend must share.
// newBackend returns an empty backend.
func runBackendContract(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Run("category names are unique", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		require.NoError(t, b.CreateCategory(ctx, &catalog.Category{Name: "Dairy"}))
		err := b.CreateCategory(ctx, &catalog.Category{Name: "Dairy"})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConflictingUniqueValue)
		assert.Equal(t, "Category already exists.", core.PublicMessage(err))
	})

	t.Run("product name and size are unique together", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		cat := mustCategory(t, b, "Dairy")

		require.NoError(t, b.CreateProduct(ctx, &catalog.Product{Name: "Milk", CategoryID: cat.ID, Active: true}))
		err := b.CreateProduct(ctx, &catalog.Product{Name: "Milk", CategoryID: cat.ID, Active: true})
		assert.ErrorIs(t, err, core.ErrConflictingUniqueValue)

		size := "1L"
		require.NoError(t, b.CreateProduct(ctx, &catalog.Product{Name: "Milk", SizeDescription: &size, CategoryID: cat.ID}))
	})

	t.Run("product requires an existing category", func(t *testing.T) {
		b := newBackend(t)
		err := b.CreateProduct(context.Background(), &catalog.Product{Name: "Milk", CategoryID: 999})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("inactive flag is persisted", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		cat := mustCategory(t, b, "Dairy")

		p := &catalog.Product{Name: "Cream", CategoryID: cat.ID, Active: false}
		require.NoError(t, b.CreateProduct(ctx, p))
		got, err := b.FindProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, got.Active)
		require.NotNil(t, got.Category)
		assert.Equal(t, "Dairy", got.Category.Name)
	})

	t.Run("delete guards", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		store := mustStore(t, b, "North")
		cat := mustCategory(t, b, "Dairy")
		milk := mustProduct(t, b, "Milk", cat.ID)

		assert.ErrorIs(t, b.DeleteCategory(ctx, cat.ID), core.ErrForeignKeyInUse)

		require.NoError(t, b.UpsertAvailability(ctx, store.ID, []ordering.AvailabilityEntry{{ProductID: milk.ID, IsAvailable: true}}))
		placeOrder(t, b, store.ID, "2024-03-04", time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC), milk.ID)

		err := b.DeleteStore(ctx, store.ID)
		assert.ErrorIs(t, err, core.ErrForeignKeyInUse)
		assert.Equal(t, "Cannot delete store with users or orders.", core.PublicMessage(err))
		assert.ErrorIs(t, b.DeleteProduct(ctx, milk.ID), core.ErrForeignKeyInUse)

		assert.ErrorIs(t, b.DeleteStore(ctx, 4242), core.ErrNotFound)
	})

	t.Run("store with only availability can be deleted", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		store := mustStore(t, b, "North")
		cat := mustCategory(t, b, "Dairy")
		milk := mustProduct(t, b, "Milk", cat.ID)
		require.NoError(t, b.UpsertAvailability(ctx, store.ID, []ordering.AvailabilityEntry{{ProductID: milk.ID, IsAvailable: true}}))

		require.NoError(t, b.DeleteStore(ctx, store.ID))
		_, err := b.FindStore(ctx, store.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("store listing counts references", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		store := mustStore(t, b, "North")
		mustStore(t, b, "South")
		cat := mustCategory(t, b, "Dairy")
		milk := mustProduct(t, b, "Milk", cat.ID)
		require.NoError(t, b.UpsertAvailability(ctx, store.ID, []ordering.AvailabilityEntry{{ProductID: milk.ID, IsAvailable: false}}))
		require.NoError(t, b.CreateUser(ctx, &auth.User{Email: "north@example.com", PasswordHash: "x", Role: core.RoleStore, StoreID: &store.ID}))

		summaries, err := b.ListStores(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		for _, s := range summaries {
			if s.ID == store.ID {
				assert.Equal(t, catalog.StoreCounts{Users: 1, Orders: 0, Availabilities: 1}, s.Count)
			} else {
				assert.Equal(t, catalog.StoreCounts{}, s.Count)
			}
		}
	})

	t.Run("availability upsert and visibility", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		store := mustStore(t, b, "North")
		cat := mustCategory(t, b, "Dairy")
		milk := mustProduct(t, b, "Milk", cat.ID)
		cheese := mustProduct(t, b, "Cheese", cat.ID)

		require.NoError(t, b.UpsertAvailability(ctx, store.ID, []ordering.AvailabilityEntry{
			{ProductID: milk.ID, IsAvailable: true},
			{ProductID: cheese.ID, IsAvailable: true},
		}))
		require.NoError(t, b.UpsertAvailability(ctx, store.ID, []ordering.AvailabilityEntry{
			{ProductID: cheese.ID, IsAvailable: false},
		}))

		visible, err := b.VisibleProducts(ctx, store.ID)
		require.NoError(t, err)
		require.Len(t, visible, 1)
		assert.Equal(t, milk.ID, visible[0].ID)
		require.NotNil(t, visible[0].Category)

		rows, err := b.ListAvailability(ctx, store.ID)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("availability with unknown product writes nothing", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		store := mustStore(t, b, "North")
		cat := mustCategory(t, b, "Dairy")
		milk := mustProduct(t, b, "Milk", cat.ID)

		err := b.UpsertAvailability(ctx, store.ID, []ordering.AvailabilityEntry{
			{ProductID: milk.ID, IsAvailable: true},
			{ProductID: 9999, IsAvailable: true},
		})
		assert.ErrorIs(t, err, core.ErrNotFound)

		rows, err := b.ListAvailability(ctx, store.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)

		_, err = b.ListAvailability(ctx, 9999)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("one order per store and week", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		store := mustStore(t, b, "North")
		cat := mustCategory(t, b, "Dairy")
		milk := mustProduct(t, b, "Milk", cat.ID)
		require.NoError(t, b.UpsertAvailability(ctx, store.ID, []ordering.AvailabilityEntry{{ProductID: milk.ID, IsAvailable: true}}))

		placeOrder(t, b, store.ID, "2024-03-04", time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), milk.ID)

		err := b.Transact(ctx, func(tx ordering.Tx) error {
			return tx.CreateOrder(ctx, &ordering.Order{
				StoreID:     store.ID,
				Status:      ordering.StatusSubmitted,
				SubmittedAt: time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC),
				WeekKey:     "2024-03-04",
				Items:       []ordering.OrderItem{{ProductID: milk.ID, Quantity: 1}},
			})
		})
		assert.ErrorIs(t, err, core.ErrDuplicateWeeklyOrder)

		placeOrder(t, b, store.ID, "2024-03-11", time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), milk.ID)

		orders, err := b.ListOrders(ctx, ordering.OrderFilter{StoreID: &store.ID})
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})

	t.Run("window lookup and orderable count inside a transaction", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		store := mustStore(t, b, "North")
		cat := mustCategory(t, b, "Dairy")
		milk := mustProduct(t, b, "Milk", cat.ID)
		cheese := mustProduct(t, b, "Cheese", cat.ID)
		require.NoError(t, b.UpsertAvailability(ctx, store.ID, []ordering.AvailabilityEntry{{ProductID: milk.ID, IsAvailable: true}}))
		placeOrder(t, b, store.ID, "2024-03-04", time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), milk.ID)

		week := ordering.WeekOf(time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), time.UTC)
		next := ordering.WeekOf(time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), time.UTC)
		err := b.Transact(ctx, func(tx ordering.Tx) error {
			require.NoError(t, tx.LockStore(ctx, store.ID))

			found, err := tx.FindOrderInWindow(ctx, store.ID, week)
			require.NoError(t, err)
			assert.NotNil(t, found)

			found, err = tx.FindOrderInWindow(ctx, store.ID, next)
			require.NoError(t, err)
			assert.Nil(t, found)

			n, err := tx.CountOrderable(ctx, store.ID, []uint{milk.ID, cheese.ID})
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed transaction leaves no order", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		store := mustStore(t, b, "North")
		cat := mustCategory(t, b, "Dairy")
		milk := mustProduct(t, b, "Milk", cat.ID)

		boom := errors.New("boom")
		err := b.Transact(ctx, func(tx ordering.Tx) error {
			require.NoError(t, tx.CreateOrder(ctx, &ordering.Order{
				StoreID:     store.ID,
				Status:      ordering.StatusSubmitted,
				SubmittedAt: time.Now(),
				WeekKey:     "2024-03-04",
				Items:       []ordering.OrderItem{{ProductID: milk.ID, Quantity: 2}},
			}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		orders, err := b.ListOrders(ctx, ordering.OrderFilter{})
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("mark viewed transitions once", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		store := mustStore(t, b, "North")
		cat := mustCategory(t, b, "Dairy")
		milk := mustProduct(t, b, "Milk", cat.ID)
		order := placeOrder(t, b, store.ID, "2024-03-04", time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), milk.ID)

		changed, err := b.MarkViewed(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = b.MarkViewed(ctx, order.ID)
		require.NoError(t, err)
		assert.False(t, changed)

		got, err := b.FindOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, ordering.StatusViewed, got.Status)
		require.NotNil(t, got.Store)
		assert.Equal(t, "North", got.Store.Name)
		require.Len(t, got.Items, 1)
		require.NotNil(t, got.Items[0].Product)
		require.NotNil(t, got.Items[0].Product.Category)
		assert.Equal(t, "Dairy", got.Items[0].Product.Category.Name)

		changed, err = b.MarkViewed(ctx, 9999)
		require.NoError(t, err)
		assert.False(t, changed)
		_, err = b.FindOrder(ctx, 9999)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("users", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		store := mustStore(t, b, "North")

		owner := &auth.User{Email: "owner@example.com", PasswordHash: "hash", Role: core.RoleOwner}
		require.NoError(t, b.CreateUser(ctx, owner))
		assert.NotZero(t, owner.ID)

		err := b.CreateUser(ctx, &auth.User{Email: "owner@example.com", PasswordHash: "hash", Role: core.RoleStore, StoreID: &store.ID})
		assert.ErrorIs(t, err, core.ErrConflictingUniqueValue)

		n, err := b.CountUsersByRole(ctx, core.RoleOwner)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err := b.FindUserByEmail(ctx, "owner@example.com")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, got.ID)

		_, err = b.FindUserByID(ctx, 9999)
		assert.ErrorIs(t, err, core.ErrNotFound)

		ok, err := b.StoreExists(ctx, store.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = b.StoreExists(ctx, 9999)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func mustStore(t *testing.T, b Backend, name string) *catalog.Store {
	t.Helper()
	s := &catalog.Store{Name: name, Active: true}
	require.NoError(t, b.CreateStore(context.Background(), s))
	return s
}

func mustCategory(t *testing.T, b Backend, name string) *catalog.Category {
	t.Helper()
	c := &catalog.Category{Name: name}
	require.NoError(t, b.CreateCategory(context.Background(), c))
	return c
}

func mustProduct(t *testing.T, b Backend, name string, categoryID uint) *catalog.Product {
	t.Helper()
	p := &catalog.Product{Name: name, CategoryID: categoryID, Active: true}
	require.NoError(t, b.CreateProduct(context.Background(), p))
	return p
}

func placeOrder(t *testing.T, b Backend, storeID uint, week string, at time.Time, productID uint) *ordering.Order {
	t.Helper()
	ctx := context.Background()
	order := &ordering.Order{
		StoreID:     storeID,
		Status:      ordering.StatusSubmitted,
		SubmittedAt: at,
		WeekKey:     week,
		Items:       []ordering.OrderItem{{ProductID: productID, Quantity: 3}},
	}
	require.NoError(t, b.Transact(ctx, func(tx ordering.Tx) error {
		return tx.CreateOrder(ctx, order)
	}))
	require.NotZero(t, order.ID)
	require.NotZero(t, order.Items[0].ID)
	return order
}
