package ordering

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/weekorder/weekorder/catalog"
	"github.com/weekorder/weekorder/core"
)

// Metric names
const (
	MetricOrdersSubmitted     = "weekorder.orders.submitted"
	MetricOrdersRejected      = "weekorder.orders.rejected"
	MetricOrdersViewed        = "weekorder.orders.viewed"
	MetricAvailabilityUpdated = "weekorder.availability.updated"
	MetricSubmitDuration      = "weekorder.order.submit.duration_ms"
)

// Service is the order engine.
type Service struct {
	repo      Repository
	clock     core.Clock
	location  *time.Location
	locker    Locker
	logger    core.Logger
	telemetry core.Telemetry
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock core.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLocation sets the zone whose Mondays start order weeks. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithLocker adds a cross-instance lock around each submission.
func WithLocker(locker Locker) Option {
	return func(s *Service) { s.locker = locker }
}

func WithLogger(logger core.Logger) Option {
	return func(s *Service) { s.logger = core.WithComponent(logger, "ordering") }
}

func WithTelemetry(t core.Telemetry) Option {
	return func(s *Service) { s.telemetry = t }
}

// NewService creates an order engine over repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		clock:     core.SystemClock{},
		location:  time.UTC,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.location == nil {
		s.location = time.UTC
	}
	return s
}

// CurrentWeek returns the order window containing the service clock's now.
func (s *Service) CurrentWeek() Window {
	return WeekOf(s.clock.Now(), s.location)
}

// VisibleProducts returns the principal's orderable products grouped by
// category name. Each group is sorted by product name; categories without
// visible products are absent.
func (s *Service) VisibleProducts(ctx context.Context, p core.Principal) (map[string][]catalog.Product, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "ordering.VisibleProducts")
	defer span.End()

	storeID, err := p.BoundStore()
	if err != nil {
		return nil, err
	}
	span.SetAttribute("store_id", storeID)

	products, err := s.repo.VisibleProducts(ctx, storeID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	catalog.SortByCategoryAndName(products)

	grouped := make(map[string][]catalog.Product)
	for _, product := range products {
		name := ""
		if product.Category != nil {
			name = product.Category.Name
		}
		grouped[name] = append(grouped[name], product)
	}
	return grouped, nil
}

// SubmitOrder validates and records the principal's order for the current week.
//
// Invalid entries are dropped. The duplicate-week check, the availability
// check and the insert run in one repository transaction, so a rejected
// submission leaves no trace.
func (s *Service) SubmitOrder(ctx context.Context, p core.Principal, requested []RequestedItem) (*Order, error) {
	const op = "ordering.SubmitOrder"

	started := time.Now()
	ctx, span := s.telemetry.StartSpan(ctx, op)
	defer span.End()

	order, err := s.submit(ctx, p, requested)
	s.telemetry.RecordMetric(MetricSubmitDuration, float64(time.Since(started).Microseconds())/1000, nil)
	if err != nil {
		span.RecordError(err)
		s.telemetry.RecordMetric(MetricOrdersRejected, 1, map[string]string{"reason": rejectReason(err)})
		s.logger.WarnWithContext(ctx, "Order rejected", map[string]interface{}{
			"user_id": p.UserID,
			"reason":  rejectReason(err),
			"error":   err,
		})
		return nil, err
	}

	span.SetAttribute("order_id", order.ID)
	span.SetAttribute("items", len(order.Items))
	s.telemetry.RecordMetric(MetricOrdersSubmitted, 1, nil)
	s.logger.InfoWithContext(ctx, "Order submitted", map[string]interface{}{
		"order_id": order.ID,
		"store_id": order.StoreID,
		"week":     order.WeekKey,
		"items":    len(order.Items),
	})
	return order, nil
}

func (s *Service) submit(ctx context.Context, p core.Principal, requested []RequestedItem) (*Order, error) {
	const op = "ordering.SubmitOrder"

	storeID, err := p.BoundStore()
	if err != nil {
		return nil, err
	}

	if len(requested) == 0 {
		return nil, &core.Error{Op: op, Kind: "order", ID: fmt.Sprint(storeID),
			Message: "Order must include at least one item.", Err: core.ErrNoValidItems}
	}
	items := ParseRequestedItems(requested)
	if len(items) == 0 {
		return nil, &core.Error{Op: op, Kind: "order", ID: fmt.Sprint(storeID),
			Message: "No valid order items found.", Err: core.ErrNoValidItems}
	}

	now := s.clock.Now()
	week := WeekOf(now, s.location)

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, fmt.Sprintf("submit:%d:%s", storeID, week.Key()))
		if err != nil {
			return nil, err
		}
		defer release()
	}

	order := &Order{
		StoreID:     storeID,
		Status:      StatusSubmitted,
		SubmittedAt: now,
		WeekKey:     week.Key(),
		Items:       make([]OrderItem, 0, len(items)),
	}
	for _, item := range items {
		order.Items = append(order.Items, OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	productIDs := distinctProductIDs(items)

	err = s.repo.Transact(ctx, func(tx Tx) error {
		if err := tx.LockStore(ctx, storeID); err != nil {
			return err
		}

		existing, err := tx.FindOrderInWindow(ctx, storeID, week)
		if err != nil {
			return err
		}
		if existing != nil {
			return duplicateWeekError(storeID)
		}

		orderable, err := tx.CountOrderable(ctx, storeID, productIDs)
		if err != nil {
			return err
		}
		if orderable != len(productIDs) {
			return &core.Error{Op: op, Kind: "order", ID: fmt.Sprint(storeID),
				Message: "Order contains unavailable products.", Err: core.ErrUnavailableProduct}
		}

		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateWeeklyOrder) {
			return nil, duplicateWeekError(storeID)
		}
		return nil, err
	}

	return s.repo.FindOrder(ctx, order.ID)
}

func duplicateWeekError(storeID uint) error {
	return &core.Error{
		Op:      "ordering.SubmitOrder",
		Kind:    "order",
		ID:      fmt.Sprint(storeID),
		Message: "This store has already submitted an order this week.",
		Err:     core.ErrDuplicateWeeklyOrder,
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, core.ErrUnlinkedStore):
		return "unlinked_store"
	case errors.Is(err, core.ErrNoValidItems):
		return "no_valid_items"
	case errors.Is(err, core.ErrDuplicateWeeklyOrder):
		return "duplicate_week"
	case errors.Is(err, core.ErrUnavailableProduct):
		return "unavailable_product"
	case errors.Is(err, core.ErrSubmissionInProgress):
		return "in_progress"
	default:
		return "error"
	}
}

// ListOrders returns every order for an owner and the principal's own orders
// for a store, newest first.
func (s *Service) ListOrders(ctx context.Context, p core.Principal) ([]Order, error) {
	var filter OrderFilter
	switch p.Role {
	case core.RoleOwner:
	case core.RoleStore:
		storeID, err := p.BoundStore()
		if err != nil {
			return nil, err
		}
		filter.StoreID = &storeID
	default:
		return nil, core.ErrForbidden
	}

	orders, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].SubmittedAt.Equal(orders[j].SubmittedAt) {
			return orders[i].SubmittedAt.After(orders[j].SubmittedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders, nil
}

// GetOrder returns one order. An owner's read marks a SUBMITTED order VIEWED;
// repeated reads leave it VIEWED. A store reads only its own orders and never
// changes their status; other stores' orders are reported as not found.
func (s *Service) GetOrder(ctx context.Context, p core.Principal, id uint) (*Order, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "ordering.GetOrder")
	defer span.End()
	span.SetAttribute("order_id", id)

	switch p.Role {
	case core.RoleOwner:
		transitioned, err := s.repo.MarkViewed(ctx, id)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		order, err := s.repo.FindOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if transitioned {
			s.telemetry.RecordMetric(MetricOrdersViewed, 1, nil)
			s.logger.InfoWithContext(ctx, "Order viewed", map[string]interface{}{
				"order_id": id,
				"store_id": order.StoreID,
			})
		}
		return order, nil

	case core.RoleStore:
		storeID, err := p.BoundStore()
		if err != nil {
			return nil, err
		}
		order, err := s.repo.FindOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if order.StoreID != storeID {
			return nil, &core.Error{Op: "ordering.GetOrder", Kind: "order", ID: fmt.Sprint(id),
				Message: "Order not found.", Err: core.ErrNotFound}
		}
		return order, nil

	default:
		return nil, core.ErrForbidden
	}
}

// SetAvailability upserts availability flags for a store in one batch and
// returns the store's full availability listing. A non-positive product id,
// an unknown product or an unknown store rejects the whole batch.
// Repeated product ids keep the last flag. An empty batch only validates the store.
func (s *Service) SetAvailability(ctx context.Context, storeID uint, entries []AvailabilityEntry) ([]AvailabilityRow, error) {
	const op = "ordering.SetAvailability"

	ctx, span := s.telemetry.StartSpan(ctx, op)
	defer span.End()
	span.SetAttribute("store_id", storeID)

	if storeID == 0 {
		return nil, &core.Error{Op: op, Kind: "availability", Message: "Store not found.", Err: core.ErrNotFound}
	}
	for _, entry := range entries {
		if entry.ProductID == 0 {
			return nil, &core.Error{Op: op, Kind: "availability",
				Message: "Every item needs a positive productId.", Err: core.ErrInvalidInput}
		}
	}

	deduped := lastWins(entries)
	if err := s.repo.UpsertAvailability(ctx, storeID, deduped); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.telemetry.RecordMetric(MetricAvailabilityUpdated, float64(len(deduped)), nil)
	s.logger.InfoWithContext(ctx, "Availability updated", map[string]interface{}{
		"store_id": storeID,
		"entries":  len(deduped),
	})

	return s.ListAvailability(ctx, storeID)
}

// ListAvailability returns the store's availability rows ordered by category
// name, then product name.
func (s *Service) ListAvailability(ctx context.Context, storeID uint) ([]AvailabilityRow, error) {
	rows, err := s.repo.ListAvailability(ctx, storeID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ci, cj := rowCategory(rows[i]), rowCategory(rows[j])
		if ci != cj {
			return ci < cj
		}
		ni, nj := rowProduct(rows[i]), rowProduct(rows[j])
		if ni != nj {
			return ni < nj
		}
		return rows[i].ProductID < rows[j].ProductID
	})
	return rows, nil
}

func lastWins(entries []AvailabilityEntry) []AvailabilityEntry {
	index := make(map[uint]int, len(entries))
	out := make([]AvailabilityEntry, 0, len(entries))
	for _, entry := range entries {
		if i, ok := index[entry.ProductID]; ok {
			out[i] = entry
			continue
		}
		index[entry.ProductID] = len(out)
		out = append(out, entry)
	}
	return out
}

func rowCategory(r AvailabilityRow) string {
	if r.Product == nil || r.Product.Category == nil {
		return ""
	}
	return r.Product.Category.Name
}

func rowProduct(r AvailabilityRow) string {
	if r.Product == nil {
		return ""
	}
	return r.Product.Name
}
