package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weekorder/weekorder/auth"
	"github.com/weekorder/weekorder/catalog"
	"github.com/weekorder/weekorder/core"
	"github.com/weekorder/weekorder/ordering"
	"github.com/weekorder/weekorder/storage"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	now     time.Time
}

func newTestServer(t *testing.T, health ...Pinger) *testServer {
	t.Helper()

	repo := storage.NewMemoryStore()
	ts := &testServer{t: t, now: time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)}

	cfg := core.DefaultConfig()
	cfg.HTTP.CORS.Enabled = true
	cfg.HTTP.CORS.AllowedOrigins = []string{"http://localhost:5173"}

	logger := &core.NoOpLogger{}
	if len(health) == 0 {
		health = []Pinger{repo}
	}
	ts.handler = NewRouter(Dependencies{
		Config:  cfg,
		Auth:    auth.NewService(repo, auth.NewTokenService("test-secret", time.Hour), logger),
		Catalog: catalog.NewService(repo, logger),
		Ordering: ordering.NewService(repo,
			ordering.WithClock(core.ClockFunc(func() time.Time { return ts.now })),
			ordering.WithLogger(logger),
		),
		Logger: logger,
		Health: health,
	})
	return ts
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), "body: %s", r.body)
}

func (r response) message(t *testing.T) string {
	t.Helper()
	var body errorBody
	r.decode(t, &body)
	return body.Message
}

func (ts *testServer) do(method, path, token string, body interface{}) response {
	ts.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return response{status: rec.Code, header: rec.Header(), body: rec.Body.Bytes()}
}

// seeded is an owner, one store with a storekeeper, and two available products.
type seeded struct {
	ownerToken string
	storeToken string
	storeID    uint
	milkID     uint
	breadID    uint
}

func (ts *testServer) seed() seeded {
	t := ts.t
	t.Helper()
	var s seeded

	res := ts.do(http.MethodPost, "/api/auth/bootstrap-owner", "", map[string]string{
		"email": "owner@example.com", "password": "supersecret",
	})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	var session struct {
		Token string `json:"token"`
	}
	res.decode(t, &session)
	s.ownerToken = session.Token

	res = ts.do(http.MethodPost, "/api/owner/stores", s.ownerToken, map[string]string{"name": "North"})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	var store catalog.Store
	res.decode(t, &store)
	s.storeID = store.ID

	createCategory := func(name string) uint {
		res := ts.do(http.MethodPost, "/api/owner/categories", s.ownerToken, map[string]string{"name": name})
		require.Equal(t, http.StatusCreated, res.status, string(res.body))
		var c catalog.Category
		res.decode(t, &c)
		return c.ID
	}
	createProduct := func(name string, categoryID uint) uint {
		res := ts.do(http.MethodPost, "/api/owner/products", s.ownerToken, map[string]interface{}{
			"name": name, "categoryId": categoryID,
		})
		require.Equal(t, http.StatusCreated, res.status, string(res.body))
		var p catalog.Product
		res.decode(t, &p)
		return p.ID
	}
	dairy := createCategory("Dairy")
	bakery := createCategory("Bakery")
	s.milkID = createProduct("Milk", dairy)
	s.breadID = createProduct("Bread", bakery)

	res = ts.do(http.MethodPut, fmt.Sprintf("/api/owner/stores/%d/availability", s.storeID), s.ownerToken, map[string]interface{}{
		"items": []map[string]interface{}{
			{"productId": s.milkID, "isAvailable": true},
			{"productId": s.breadID, "isAvailable": true},
		},
	})
	require.Equal(t, http.StatusOK, res.status, string(res.body))

	res = ts.do(http.MethodPost, "/api/owner/users/storekeepers", s.ownerToken, map[string]interface{}{
		"email": "north@example.com", "password": "supersecret", "storeId": s.storeID,
	})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))

	res = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "north@example.com", "password": "supersecret",
	})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	res.decode(t, &session)
	s.storeToken = session.Token

	return s
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.JSONEq(t, `{"ok":true}`, string(res.body))
	assert.NotEmpty(t, res.header.Get(core.HeaderRequestID))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthReportsUnreachableDependency(t *testing.T) {
	ts := newTestServer(t, failingPinger{})

	res := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
	assert.JSONEq(t, `{"ok":false}`, string(res.body))
}

func TestRouteNotFound(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, "Route not found", res.message(t))
}

func TestAuthenticationAndRoles(t *testing.T) {
	ts := newTestServer(t)
	s := ts.seed()

	res := ts.do(http.MethodGet, "/api/store/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "Authentication required.", res.message(t))

	res = ts.do(http.MethodGet, "/api/store/products", "garbage.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	forged, err := auth.NewTokenService("other-secret", time.Hour).Issue(&auth.User{ID: 1, Role: core.RoleOwner})
	require.NoError(t, err)
	res = ts.do(http.MethodGet, "/api/owner/stores", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "Invalid or expired token.", res.message(t))

	res = ts.do(http.MethodGet, "/api/owner/stores", s.storeToken, nil)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "Access denied.", res.message(t))

	res = ts.do(http.MethodPost, "/api/store/orders", s.ownerToken, map[string]interface{}{"items": []interface{}{}})
	assert.Equal(t, http.StatusForbidden, res.status)

	res = ts.do(http.MethodGet, "/api/auth/me", s.storeToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	var me struct {
		User core.Principal `json:"user"`
	}
	res.decode(t, &me)
	assert.Equal(t, core.RoleStore, me.User.Role)
	require.NotNil(t, me.User.StoreID)
	assert.Equal(t, s.storeID, *me.User.StoreID)

	res = ts.do(http.MethodPost, "/api/auth/bootstrap-owner", "", map[string]string{
		"email": "another@example.com", "password": "supersecret",
	})
	assert.Equal(t, http.StatusForbidden, res.status)
}

func TestWeeklyOrderFlow(t *testing.T) {
	ts := newTestServer(t)
	s := ts.seed()

	res := ts.do(http.MethodGet, "/api/store/products", s.storeToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	var grouped map[string][]catalog.Product
	res.decode(t, &grouped)
	require.Len(t, grouped, 2)
	assert.Equal(t, "Milk", grouped["Dairy"][0].Name)
	assert.Equal(t, "Bread", grouped["Bakery"][0].Name)

	res = ts.do(http.MethodPost, "/api/store/orders", s.storeToken, fmt.Sprintf(
		`{"items":[{"productId":%d,"quantity":"2"},{"productId":%d,"quantity":0},{"productId":%d,"quantity":5}]}`,
		s.milkID, s.breadID, s.breadID))
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	var order ordering.Order
	res.decode(t, &order)
	assert.Equal(t, ordering.StatusSubmitted, order.Status)
	assert.Equal(t, "2024-03-04", order.WeekKey)
	require.Len(t, order.Items, 2)

	res = ts.do(http.MethodPost, "/api/store/orders", s.storeToken, map[string]interface{}{
		"items": []map[string]interface{}{{"productId": s.milkID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "This store has already submitted an order this week.", res.message(t))

	res = ts.do(http.MethodGet, fmt.Sprintf("/api/store/orders/%d", order.ID), s.storeToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	res.decode(t, &order)
	assert.Equal(t, ordering.StatusSubmitted, order.Status)

	res = ts.do(http.MethodGet, fmt.Sprintf("/api/owner/orders/%d", order.ID), s.ownerToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	res.decode(t, &order)
	assert.Equal(t, ordering.StatusViewed, order.Status)
	require.NotNil(t, order.Store)
	assert.Equal(t, "North", order.Store.Name)

	res = ts.do(http.MethodGet, "/api/store/orders", s.storeToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	var orders []ordering.Order
	res.decode(t, &orders)
	require.Len(t, orders, 1)
	assert.Equal(t, ordering.StatusViewed, orders[0].Status)

	ts.now = ts.now.AddDate(0, 0, 5) // Monday 2024-03-11
	res = ts.do(http.MethodPost, "/api/store/orders", s.storeToken, map[string]interface{}{
		"items": []map[string]interface{}{{"productId": s.milkID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))

	res = ts.do(http.MethodGet, "/api/owner/orders", s.ownerToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	res.decode(t, &orders)
	require.Len(t, orders, 2)
	assert.Equal(t, "2024-03-11", orders[0].WeekKey)

	res = ts.do(http.MethodGet, "/api/owner/orders/9999", s.ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, "Order not found.", res.message(t))
}

func TestOrderValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	s := ts.seed()

	tests := []struct {
		name    string
		body    interface{}
		status  int
		message string
	}{
		{"items not an array", `{"items":"milk"}`, http.StatusBadRequest, "Order must include at least one item."},
		{"items missing", `{}`, http.StatusBadRequest, "Order must include at least one item."},
		{"nothing valid", `{"items":[{"productId":"x","quantity":1},5]}`, http.StatusBadRequest, "No valid order items found."},
		{"unavailable", `{"items":[{"productId":9999,"quantity":1}]}`, http.StatusBadRequest, "Order contains unavailable products."},
		{"malformed json", `{"items":`, http.StatusBadRequest, "Invalid JSON body."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ts.do(http.MethodPost, "/api/store/orders", s.storeToken, tt.body)
			assert.Equal(t, tt.status, res.status)
			assert.Equal(t, tt.message, res.message(t))
		})
	}

	// None of the rejections used up the week.
	res := ts.do(http.MethodPost, "/api/store/orders", s.storeToken, map[string]interface{}{
		"items": []map[string]interface{}{{"productId": s.milkID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusCreated, res.status)
}

func TestAvailabilityEndpoint(t *testing.T) {
	ts := newTestServer(t)
	s := ts.seed()
	path := fmt.Sprintf("/api/owner/stores/%d/availability", s.storeID)

	res := ts.do(http.MethodPut, path, s.ownerToken, `{"items":{"productId":1}}`)
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "items[] is required.", res.message(t))

	res = ts.do(http.MethodPut, path, s.ownerToken, fmt.Sprintf(`{"items":[{"productId":"%d","isAvailable":0}]}`, s.milkID))
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	var rows []ordering.AvailabilityRow
	res.decode(t, &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, s.breadID, rows[0].ProductID)
	assert.Equal(t, s.milkID, rows[1].ProductID)
	assert.False(t, rows[1].IsAvailable)

	res = ts.do(http.MethodGet, "/api/store/products", s.storeToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	var grouped map[string][]catalog.Product
	res.decode(t, &grouped)
	assert.NotContains(t, grouped, "Dairy")

	res = ts.do(http.MethodPut, path, s.ownerToken, `{"items":[{"productId":9999,"isAvailable":true}]}`)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = ts.do(http.MethodGet, "/api/owner/stores/9999/availability", s.ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, "Store not found.", res.message(t))
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t)
	s := ts.seed()

	res := ts.do(http.MethodPost, "/api/owner/categories", s.ownerToken, map[string]string{"name": "Dairy"})
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "Category already exists.", res.message(t))

	res = ts.do(http.MethodGet, "/api/owner/stores", s.ownerToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	var stores []catalog.StoreSummary
	res.decode(t, &stores)
	require.Len(t, stores, 1)
	assert.Equal(t, int64(1), stores[0].Count.Users)
	assert.Equal(t, int64(2), stores[0].Count.Availabilities)

	res = ts.do(http.MethodDelete, fmt.Sprintf("/api/owner/stores/%d", s.storeID), s.ownerToken, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Cannot delete store with users or orders.", res.message(t))

	res = ts.do(http.MethodPut, fmt.Sprintf("/api/owner/products/%d", s.milkID), s.ownerToken, map[string]interface{}{
		"active": false, "sizeDescription": "1L",
	})
	require.Equal(t, http.StatusOK, res.status)
	var product catalog.Product
	res.decode(t, &product)
	assert.False(t, product.Active)
	require.NotNil(t, product.SizeDescription)
	assert.Equal(t, "1L", *product.SizeDescription)

	res = ts.do(http.MethodPut, "/api/owner/products/abc", s.ownerToken, map[string]interface{}{"active": true})
	assert.Equal(t, http.StatusNotFound, res.status)

	res = ts.do(http.MethodDelete, fmt.Sprintf("/api/owner/products/%d", s.breadID), s.ownerToken, nil)
	assert.Equal(t, http.StatusNoContent, res.status)

	res = ts.do(http.MethodGet, "/api/owner/products", s.ownerToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	var products []catalog.Product
	res.decode(t, &products)
	require.Len(t, products, 1)
	assert.Equal(t, "Milk", products[0].Name)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/store/orders", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{core.ErrUnlinkedStore, http.StatusBadRequest},
		{core.ErrNoValidItems, http.StatusBadRequest},
		{core.ErrDuplicateWeeklyOrder, http.StatusConflict},
		{core.ErrSubmissionInProgress, http.StatusConflict},
		{core.ErrUnavailableProduct, http.StatusBadRequest},
		{core.ErrNotFound, http.StatusNotFound},
		{core.ErrConflictingUniqueValue, http.StatusConflict},
		{core.ErrForeignKeyInUse, http.StatusBadRequest},
		{core.ErrInvalidInput, http.StatusBadRequest},
		{core.ErrUnauthenticated, http.StatusUnauthorized},
		{core.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", core.ErrNotFound), http.StatusNotFound},
		{errors.New("database exploded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	a := &API{logger: &core.NoOpLogger{}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	a.writeError(rec, req, errors.New("pq: relation \"orders\" does not exist"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
}
