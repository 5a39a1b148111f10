package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weekorder/weekorder/auth"
	"github.com/weekorder/weekorder/catalog"
	"github.com/weekorder/weekorder/core"
	"github.com/weekorder/weekorder/ordering"
)

// submitLockClass is the first key of the two-key advisory lock taken per store.
const submitLockClass int32 = 0x574f

// GormStore implements the repositories over a gorm database, normally PostgreSQL.
// The *gorm.DB must be opened with TranslateError so unique and foreign key
// violations surface as gorm.ErrDuplicatedKey and gorm.ErrForeignKeyViolated.
type GormStore struct {
	db     *gorm.DB
	logger core.Logger
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB, logger core.Logger) *GormStore {
	return &GormStore{db: db, logger: core.WithComponent(logger, "storage")}
}

// Migrate creates or updates the schema.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return core.NewError("storage.Migrate", "storage", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Stores

type storeSummaryRow struct {
	ID             uint
	Name           string
	Location       *string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Users          int64
	Orders         int64
	Availabilities int64
}

func (s *GormStore) ListStores(ctx context.Context) ([]catalog.StoreSummary, error) {
	var rows []storeSummaryRow
	err := s.conn(ctx).Table("stores").
		Select(`stores.*,
			(SELECT COUNT(*) FROM users WHERE users.store_id = stores.id) AS users,
			(SELECT COUNT(*) FROM orders WHERE orders.store_id = stores.id) AS orders,
			(SELECT COUNT(*) FROM availabilities WHERE availabilities.store_id = stores.id) AS availabilities`).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]catalog.StoreSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, catalog.StoreSummary{
			Store: catalog.Store{
				ID:        r.ID,
				Name:      r.Name,
				Location:  r.Location,
				Active:    r.Active,
				CreatedAt: r.CreatedAt,
				UpdatedAt: r.UpdatedAt,
			},
			Count: catalog.StoreCounts{Users: r.Users, Orders: r.Orders, Availabilities: r.Availabilities},
		})
	}
	return out, nil
}

func (s *GormStore) FindStore(ctx context.Context, id uint) (*catalog.Store, error) {
	var row storeRow
	if err := s.conn(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Store", id)
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *GormStore) CreateStore(ctx context.Context, store *catalog.Store) error {
	row := storeFromDomain(store)
	row.ID = 0
	if err := s.conn(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		return err
	}
	*store = *row.toDomain()
	return nil
}

func (s *GormStore) SaveStore(ctx context.Context, store *catalog.Store) error {
	now := time.Now()
	res := s.conn(ctx).Model(&storeRow{}).Where("id = ?", store.ID).Updates(map[string]interface{}{
		"name":       store.Name,
		"location":   store.Location,
		"active":     store.Active,
		"updated_at": now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("Store", store.ID)
	}
	store.UpdatedAt = now
	return nil
}

func (s *GormStore) DeleteStore(ctx context.Context, id uint) error {
	const op = "storage.DeleteStore"

	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var users, orders int64
		if err := tx.Model(&userRow{}).Where("store_id = ?", id).Count(&users).Error; err != nil {
			return err
		}
		if err := tx.Model(&orderRow{}).Where("store_id = ?", id).Count(&orders).Error; err != nil {
			return err
		}
		if users > 0 || orders > 0 {
			return inUse(op, id, msgStoreInUse)
		}

		if err := tx.Where("store_id = ?", id).Delete(&availabilityRow{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&storeRow{}, id)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
				return inUse(op, id, msgStoreInUse)
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("Store", id)
		}
		return nil
	})
}

// Categories

func (s *GormStore) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	var rows []categoryRow
	if err := s.conn(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]catalog.Category, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func (s *GormStore) FindCategory(ctx context.Context, id uint) (*catalog.Category, error) {
	var row categoryRow
	if err := s.conn(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Category", id)
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *GormStore) CreateCategory(ctx context.Context, category *catalog.Category) error {
	row := &categoryRow{Name: category.Name}
	if err := s.conn(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return conflict("storage.CreateCategory", msgCategoryExists)
		}
		return err
	}
	*category = *row.toDomain()
	return nil
}

func (s *GormStore) SaveCategory(ctx context.Context, category *catalog.Category) error {
	now := time.Now()
	res := s.conn(ctx).Model(&categoryRow{}).Where("id = ?", category.ID).Updates(map[string]interface{}{
		"name":       category.Name,
		"updated_at": now,
	})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return conflict("storage.SaveCategory", msgCategoryExists)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("Category", category.ID)
	}
	category.UpdatedAt = now
	return nil
}

func (s *GormStore) DeleteCategory(ctx context.Context, id uint) error {
	const op = "storage.DeleteCategory"

	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var products int64
		if err := tx.Model(&productRow{}).Where("category_id = ?", id).Count(&products).Error; err != nil {
			return err
		}
		if products > 0 {
			return inUse(op, id, msgCategoryInUse)
		}

		res := tx.Delete(&categoryRow{}, id)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
				return inUse(op, id, msgCategoryInUse)
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("Category", id)
		}
		return nil
	})
}

// Products

func (s *GormStore) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var rows []productRow
	if err := s.conn(ctx).Preload("Category").Find(&rows).Error; err != nil {
		return nil, err
	}
	return productsToDomain(rows), nil
}

func productsToDomain(rows []productRow) []catalog.Product {
	out := make([]catalog.Product, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out
}

func (s *GormStore) FindProduct(ctx context.Context, id uint) (*catalog.Product, error) {
	var row productRow
	if err := s.conn(ctx).Preload("Category").First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Product", id)
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *GormStore) productWriteError(op string, product *catalog.Product, err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return conflict(op, msgProductExists)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return notFound("Category", product.CategoryID)
	default:
		return err
	}
}

func (s *GormStore) CreateProduct(ctx context.Context, product *catalog.Product) error {
	row := productFromDomain(product)
	row.ID = 0
	if err := s.conn(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		return s.productWriteError("storage.CreateProduct", product, err)
	}
	product.ID = row.ID
	product.CreatedAt, product.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func (s *GormStore) SaveProduct(ctx context.Context, product *catalog.Product) error {
	now := time.Now()
	res := s.conn(ctx).Model(&productRow{}).Where("id = ?", product.ID).Updates(map[string]interface{}{
		"name":             product.Name,
		"size_description": sizeKey(product.SizeDescription),
		"image_url":        product.ImageURL,
		"category_id":      product.CategoryID,
		"active":           product.Active,
		"updated_at":       now,
	})
	if res.Error != nil {
		return s.productWriteError("storage.SaveProduct", product, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("Product", product.ID)
	}
	product.UpdatedAt = now
	return nil
}

func (s *GormStore) DeleteProduct(ctx context.Context, id uint) error {
	const op = "storage.DeleteProduct"

	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var items int64
		if err := tx.Model(&orderItemRow{}).Where("product_id = ?", id).Count(&items).Error; err != nil {
			return err
		}
		if items > 0 {
			return inUse(op, id, msgProductInUse)
		}

		if err := tx.Where("product_id = ?", id).Delete(&availabilityRow{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&productRow{}, id)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
				return inUse(op, id, msgProductInUse)
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("Product", id)
		}
		return nil
	})
}

// Availability

func orderableProducts(db *gorm.DB, storeID uint) *gorm.DB {
	return db.Model(&productRow{}).
		Joins("JOIN availabilities ON availabilities.product_id = products.id").
		Where("availabilities.store_id = ? AND availabilities.is_available = ? AND products.active = ?", storeID, true, true)
}

func (s *GormStore) VisibleProducts(ctx context.Context, storeID uint) ([]catalog.Product, error) {
	var rows []productRow
	err := orderableProducts(s.conn(ctx), storeID).
		Select("products.*").
		Preload("Category").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return productsToDomain(rows), nil
}

func (s *GormStore) UpsertAvailability(ctx context.Context, storeID uint, entries []ordering.AvailabilityEntry) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var stores int64
		if err := tx.Model(&storeRow{}).Where("id = ?", storeID).Count(&stores).Error; err != nil {
			return err
		}
		if stores == 0 {
			return notFound("Store", storeID)
		}
		if len(entries) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ProductID)
		}
		var known []uint
		if err := tx.Model(&productRow{}).Where("id IN ?", ids).Pluck("id", &known).Error; err != nil {
			return err
		}
		if missing, ok := firstMissing(ids, known); ok {
			return notFound("Product", missing)
		}

		now := time.Now()
		rows := make([]availabilityRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, availabilityRow{
				StoreID:     storeID,
				ProductID:   e.ProductID,
				IsAvailable: e.IsAvailable,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_available", "updated_at"}),
		}).Create(&rows).Error
	})
}

func firstMissing(wanted, known []uint) (uint, bool) {
	seen := make(map[uint]struct{}, len(known))
	for _, id := range known {
		seen[id] = struct{}{}
	}
	for _, id := range wanted {
		if _, ok := seen[id]; !ok {
			return id, true
		}
	}
	return 0, false
}

func (s *GormStore) ListAvailability(ctx context.Context, storeID uint) ([]ordering.AvailabilityRow, error) {
	if _, err := s.FindStore(ctx, storeID); err != nil {
		return nil, err
	}

	var rows []availabilityRow
	if err := s.conn(ctx).Preload("Product.Category").Where("store_id = ?", storeID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ordering.AvailabilityRow, 0, len(rows))
	for i := range rows {
		out = append(out, ordering.AvailabilityRow{
			StoreID:     rows[i].StoreID,
			ProductID:   rows[i].ProductID,
			IsAvailable: rows[i].IsAvailable,
			Product:     rows[i].Product.toDomain(),
		})
	}
	return out, nil
}

// Orders

func withOrderGraph(db *gorm.DB) *gorm.DB {
	return db.Preload("Store").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id") }).
		Preload("Items.Product.Category")
}

func (s *GormStore) ListOrders(ctx context.Context, filter ordering.OrderFilter) ([]ordering.Order, error) {
	q := withOrderGraph(s.conn(ctx))
	if filter.StoreID != nil {
		q = q.Where("store_id = ?", *filter.StoreID)
	}
	var rows []orderRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ordering.Order, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *GormStore) FindOrder(ctx context.Context, id uint) (*ordering.Order, error) {
	var row orderRow
	if err := withOrderGraph(s.conn(ctx)).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Order", id)
		}
		return nil, err
	}
	order := row.toDomain()
	return &order, nil
}

func (s *GormStore) MarkViewed(ctx context.Context, id uint) (bool, error) {
	res := s.conn(ctx).Model(&orderRow{}).
		Where("id = ? AND status = ?", id, string(ordering.StatusSubmitted)).
		Update("status", string(ordering.StatusViewed))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Transact runs fn inside a database transaction.
func (s *GormStore) Transact(ctx context.Context, fn func(tx ordering.Tx) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

// LockStore takes a transaction-scoped advisory lock on PostgreSQL. Other
// dialects rely on the unique (store_id, week_key) index alone.
func (t *gormTx) LockStore(ctx context.Context, storeID uint) error {
	if t.db.Dialector.Name() != "postgres" {
		return nil
	}
	return t.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?, ?)", submitLockClass, int32(storeID)).Error
}

func (t *gormTx) FindOrderInWindow(ctx context.Context, storeID uint, w ordering.Window) (*ordering.Order, error) {
	var rows []orderRow
	err := t.db.WithContext(ctx).
		Where("store_id = ? AND submitted_at >= ? AND submitted_at < ?", storeID, w.Start, w.End).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	order := rows[0].toDomain()
	return &order, nil
}

func (t *gormTx) CountOrderable(ctx context.Context, storeID uint, productIDs []uint) (int, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	var n int64
	err := orderableProducts(t.db.WithContext(ctx), storeID).
		Where("products.id IN ?", productIDs).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (t *gormTx) CreateOrder(ctx context.Context, order *ordering.Order) error {
	row := orderFromDomain(order)
	if err := t.db.WithContext(ctx).Create(row).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return duplicateWeek(order.StoreID, order.WeekKey)
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return &core.Error{Op: "storage.CreateOrder", Kind: "order",
				Message: "Order references an unknown store or product.", Err: core.ErrNotFound}
		default:
			return err
		}
	}

	order.ID = row.ID
	for i := range order.Items {
		order.Items[i].ID = row.Items[i].ID
		order.Items[i].OrderID = row.ID
	}
	return nil
}

// Users

func (s *GormStore) CountUsersByRole(ctx context.Context, role core.Role) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&userRow{}).Where("role = ?", string(role)).Count(&n).Error
	return n, err
}

func (s *GormStore) CreateUser(ctx context.Context, user *auth.User) error {
	row := &userRow{
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		StoreID:      user.StoreID,
	}
	if err := s.conn(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return conflict("storage.CreateUser", msgEmailInUse)
		case errors.Is(err, gorm.ErrForeignKeyViolated) && user.StoreID != nil:
			return notFound("Store", *user.StoreID)
		default:
			return err
		}
	}
	user.ID = row.ID
	user.CreatedAt = row.CreatedAt
	return nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	var row userRow
	if err := s.conn(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("User", email)
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *GormStore) FindUserByID(ctx context.Context, id uint) (*auth.User, error) {
	var row userRow
	if err := s.conn(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("User", id)
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *GormStore) StoreExists(ctx context.Context, storeID uint) (bool, error) {
	var n int64
	if err := s.conn(ctx).Model(&storeRow{}).Where("id = ?", storeID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

var (
	_ catalog.Repository  = (*GormStore)(nil)
	_ ordering.Repository = (*GormStore)(nil)
	_ auth.UserRepository = (*GormStore)(nil)
)
