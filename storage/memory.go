package storage

import (
	"context"
	"sync"
	"time"

	"github.com/weekorder/weekorder/auth"
	"github.com/weekorder/weekorder/catalog"
	"github.com/weekorder/weekorder/core"
	"github.com/weekorder/weekorder/ordering"
)

type availabilityKey struct {
	storeID   uint
	productID uint
}

type weekKey struct {
	storeID uint
	week    string
}

// MemoryStore is an in-process implementation of catalog.Repository,
// ordering.Repository and auth.UserRepository.
//
// Reads and single-row writes use an RWMutex. Transact additionally holds a
// transaction mutex for its whole duration and removes the orders it created
// when the callback fails.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	lastID       uint
	stores       map[uint]catalog.Store
	categories   map[uint]catalog.Category
	products     map[uint]catalog.Product
	availability map[availabilityKey]bool
	orders       map[uint]ordering.Order
	weeklyOrders map[weekKey]uint
	users        map[uint]auth.User

	now    func() time.Time
	logger core.Logger
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stores:       make(map[uint]catalog.Store),
		categories:   make(map[uint]catalog.Category),
		products:     make(map[uint]catalog.Product),
		availability: make(map[availabilityKey]bool),
		orders:       make(map[uint]ordering.Order),
		weeklyOrders: make(map[weekKey]uint),
		users:        make(map[uint]auth.User),
		now:          time.Now,
		logger:       &core.NoOpLogger{},
	}
}

// SetLogger configures the logger for this store
func (m *MemoryStore) SetLogger(logger core.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) nextID() uint {
	m.lastID++
	return m.lastID
}

// Stores

func (m *MemoryStore) ListStores(ctx context.Context) ([]catalog.StoreSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[uint]*catalog.StoreCounts, len(m.stores))
	for id := range m.stores {
		counts[id] = &catalog.StoreCounts{}
	}
	for _, u := range m.users {
		if u.StoreID != nil && counts[*u.StoreID] != nil {
			counts[*u.StoreID].Users++
		}
	}
	for _, o := range m.orders {
		if c := counts[o.StoreID]; c != nil {
			c.Orders++
		}
	}
	for key := range m.availability {
		if c := counts[key.storeID]; c != nil {
			c.Availabilities++
		}
	}

	out := make([]catalog.StoreSummary, 0, len(m.stores))
	for id, s := range m.stores {
		out = append(out, catalog.StoreSummary{Store: s, Count: *counts[id]})
	}
	return out, nil
}

func (m *MemoryStore) FindStore(ctx context.Context, id uint) (*catalog.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stores[id]
	if !ok {
		return nil, notFound("Store", id)
	}
	return &s, nil
}

func (m *MemoryStore) CreateStore(ctx context.Context, store *catalog.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	store.ID = m.nextID()
	store.CreatedAt, store.UpdatedAt = now, now
	m.stores[store.ID] = *store
	return nil
}

func (m *MemoryStore) SaveStore(ctx context.Context, store *catalog.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stores[store.ID]; !ok {
		return notFound("Store", store.ID)
	}
	store.UpdatedAt = m.now()
	m.stores[store.ID] = *store
	return nil
}

func (m *MemoryStore) DeleteStore(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stores[id]; !ok {
		return notFound("Store", id)
	}
	for _, u := range m.users {
		if u.StoreID != nil && *u.StoreID == id {
			return inUse("storage.DeleteStore", id, msgStoreInUse)
		}
	}
	for _, o := range m.orders {
		if o.StoreID == id {
			return inUse("storage.DeleteStore", id, msgStoreInUse)
		}
	}

	for key := range m.availability {
		if key.storeID == id {
			delete(m.availability, key)
		}
	}
	delete(m.stores, id)
	return nil
}

// Categories

func (m *MemoryStore) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]catalog.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryStore) FindCategory(ctx context.Context, id uint) (*catalog.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, notFound("Category", id)
	}
	return &c, nil
}

func (m *MemoryStore) categoryNameTaken(name string, except uint) bool {
	for id, c := range m.categories {
		if id != except && c.Name == name {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateCategory(ctx context.Context, category *catalog.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.categoryNameTaken(category.Name, 0) {
		return conflict("storage.CreateCategory", msgCategoryExists)
	}
	now := m.now()
	category.ID = m.nextID()
	category.CreatedAt, category.UpdatedAt = now, now
	m.categories[category.ID] = *category
	return nil
}

func (m *MemoryStore) SaveCategory(ctx context.Context, category *catalog.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[category.ID]; !ok {
		return notFound("Category", category.ID)
	}
	if m.categoryNameTaken(category.Name, category.ID) {
		return conflict("storage.SaveCategory", msgCategoryExists)
	}
	category.UpdatedAt = m.now()
	m.categories[category.ID] = *category
	return nil
}

func (m *MemoryStore) DeleteCategory(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[id]; !ok {
		return notFound("Category", id)
	}
	for _, p := range m.products {
		if p.CategoryID == id {
			return inUse("storage.DeleteCategory", id, msgCategoryInUse)
		}
	}
	delete(m.categories, id)
	return nil
}

// Products

// withCategory returns a copy of p carrying a copy of its category. Callers hold mu.
func (m *MemoryStore) withCategory(p catalog.Product) *catalog.Product {
	if c, ok := m.categories[p.CategoryID]; ok {
		p.Category = &c
	} else {
		p.Category = nil
	}
	return &p
}

func (m *MemoryStore) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]catalog.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *m.withCategory(p))
	}
	return out, nil
}

func (m *MemoryStore) FindProduct(ctx context.Context, id uint) (*catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, notFound("Product", id)
	}
	return m.withCategory(p), nil
}

func (m *MemoryStore) checkProduct(op string, product *catalog.Product) error {
	if _, ok := m.categories[product.CategoryID]; !ok {
		return notFound("Category", product.CategoryID)
	}
	for id, p := range m.products {
		if id != product.ID && p.Name == product.Name && sizeKey(p.SizeDescription) == sizeKey(product.SizeDescription) {
			return conflict(op, msgProductExists)
		}
	}
	return nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, product *catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	product.ID = 0
	if err := m.checkProduct("storage.CreateProduct", product); err != nil {
		return err
	}
	now := m.now()
	product.ID = m.nextID()
	product.CreatedAt, product.UpdatedAt = now, now

	stored := *product
	stored.Category = nil
	m.products[product.ID] = stored
	return nil
}

func (m *MemoryStore) SaveProduct(ctx context.Context, product *catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[product.ID]; !ok {
		return notFound("Product", product.ID)
	}
	if err := m.checkProduct("storage.SaveProduct", product); err != nil {
		return err
	}
	product.UpdatedAt = m.now()

	stored := *product
	stored.Category = nil
	m.products[product.ID] = stored
	return nil
}

func (m *MemoryStore) DeleteProduct(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return notFound("Product", id)
	}
	for _, o := range m.orders {
		for _, item := range o.Items {
			if item.ProductID == id {
				return inUse("storage.DeleteProduct", id, msgProductInUse)
			}
		}
	}
	for key := range m.availability {
		if key.productID == id {
			delete(m.availability, key)
		}
	}
	delete(m.products, id)
	return nil
}

// Availability

func (m *MemoryStore) VisibleProducts(ctx context.Context, storeID uint) ([]catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []catalog.Product
	for key, available := range m.availability {
		if key.storeID != storeID || !available {
			continue
		}
		p, ok := m.products[key.productID]
		if !ok || !p.Active {
			continue
		}
		out = append(out, *m.withCategory(p))
	}
	return out, nil
}

func (m *MemoryStore) UpsertAvailability(ctx context.Context, storeID uint, entries []ordering.AvailabilityEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stores[storeID]; !ok {
		return notFound("Store", storeID)
	}
	for _, e := range entries {
		if _, ok := m.products[e.ProductID]; !ok {
			return notFound("Product", e.ProductID)
		}
	}
	for _, e := range entries {
		m.availability[availabilityKey{storeID: storeID, productID: e.ProductID}] = e.IsAvailable
	}
	return nil
}

func (m *MemoryStore) ListAvailability(ctx context.Context, storeID uint) ([]ordering.AvailabilityRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.stores[storeID]; !ok {
		return nil, notFound("Store", storeID)
	}

	out := make([]ordering.AvailabilityRow, 0)
	for key, available := range m.availability {
		if key.storeID != storeID {
			continue
		}
		row := ordering.AvailabilityRow{StoreID: storeID, ProductID: key.productID, IsAvailable: available}
		if p, ok := m.products[key.productID]; ok {
			row.Product = m.withCategory(p)
		}
		out = append(out, row)
	}
	return out, nil
}

// Orders

// hydrate returns a deep copy of o with store and item products attached. Callers hold mu.
func (m *MemoryStore) hydrate(o ordering.Order) ordering.Order {
	if s, ok := m.stores[o.StoreID]; ok {
		o.Store = &s
	}
	items := make([]ordering.OrderItem, len(o.Items))
	for i, item := range o.Items {
		if p, ok := m.products[item.ProductID]; ok {
			item.Product = m.withCategory(p)
		}
		items[i] = item
	}
	o.Items = items
	return o
}

func (m *MemoryStore) ListOrders(ctx context.Context, filter ordering.OrderFilter) ([]ordering.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ordering.Order, 0)
	for _, o := range m.orders {
		if filter.StoreID != nil && o.StoreID != *filter.StoreID {
			continue
		}
		out = append(out, m.hydrate(o))
	}
	return out, nil
}

func (m *MemoryStore) FindOrder(ctx context.Context, id uint) (*ordering.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, notFound("Order", id)
	}
	hydrated := m.hydrate(o)
	return &hydrated, nil
}

func (m *MemoryStore) MarkViewed(ctx context.Context, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok || o.Status != ordering.StatusSubmitted {
		return false, nil
	}
	o.Status = ordering.StatusViewed
	m.orders[id] = o
	return true, nil
}

// Transact runs fn with exclusive access to the transactional operations.
func (m *MemoryStore) Transact(ctx context.Context, fn func(tx ordering.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: m}
	if err := fn(tx); err != nil {
		tx.rollback()
		m.logger.DebugWithContext(ctx, "Transaction rolled back", map[string]interface{}{
			"orders_discarded": len(tx.created),
			"error":            err.Error(),
		})
		return err
	}
	return nil
}

type memoryTx struct {
	store   *MemoryStore
	created []uint
}

// LockStore is a no-op: Transact already serialises transactions.
func (t *memoryTx) LockStore(ctx context.Context, storeID uint) error {
	return ctx.Err()
}

func (t *memoryTx) FindOrderInWindow(ctx context.Context, storeID uint, w ordering.Window) (*ordering.Order, error) {
	m := t.store
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, o := range m.orders {
		if o.StoreID == storeID && w.Contains(o.SubmittedAt) {
			found := m.hydrate(o)
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) CountOrderable(ctx context.Context, storeID uint, productIDs []uint) (int, error) {
	m := t.store
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, id := range productIDs {
		p, ok := m.products[id]
		if ok && p.Active && m.availability[availabilityKey{storeID: storeID, productID: id}] {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) CreateOrder(ctx context.Context, order *ordering.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stores[order.StoreID]; !ok {
		return notFound("Store", order.StoreID)
	}
	key := weekKey{storeID: order.StoreID, week: order.WeekKey}
	if _, taken := m.weeklyOrders[key]; taken {
		return duplicateWeek(order.StoreID, order.WeekKey)
	}
	for _, item := range order.Items {
		if _, ok := m.products[item.ProductID]; !ok {
			return notFound("Product", item.ProductID)
		}
	}

	order.ID = m.nextID()
	items := make([]ordering.OrderItem, len(order.Items))
	for i := range order.Items {
		order.Items[i].ID = m.nextID()
		order.Items[i].OrderID = order.ID
		items[i] = order.Items[i]
		items[i].Product = nil
	}

	stored := *order
	stored.Store = nil
	stored.Items = items
	m.orders[order.ID] = stored
	m.weeklyOrders[key] = order.ID
	t.created = append(t.created, order.ID)
	return nil
}

func (t *memoryTx) rollback() {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range t.created {
		if o, ok := m.orders[id]; ok {
			delete(m.weeklyOrders, weekKey{storeID: o.StoreID, week: o.WeekKey})
			delete(m.orders, id)
		}
	}
}

// Users

func (m *MemoryStore) CountUsersByRole(ctx context.Context, role core.Role) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return conflict("storage.CreateUser", msgEmailInUse)
		}
	}
	if user.StoreID != nil {
		if _, ok := m.stores[*user.StoreID]; !ok {
			return notFound("Store", *user.StoreID)
		}
	}
	user.ID = m.nextID()
	user.CreatedAt = m.now()
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, notFound("User", email)
}

func (m *MemoryStore) FindUserByID(ctx context.Context, id uint) (*auth.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, notFound("User", id)
	}
	return &u, nil
}

func (m *MemoryStore) StoreExists(ctx context.Context, storeID uint) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.stores[storeID]
	return ok, nil
}

var (
	_ catalog.Repository  = (*MemoryStore)(nil)
	_ ordering.Repository = (*MemoryStore)(nil)
	_ auth.UserRepository = (*MemoryStore)(nil)
)
