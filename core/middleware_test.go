package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingLogger records log calls for assertions
type capturingLogger struct {
	NoOpLogger
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

func (c *capturingLogger) record(level, msg string, fields map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (c *capturingLogger) InfoWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	c.record("info", msg, fields)
}

func (c *capturingLogger) WarnWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	c.record("warn", msg, fields)
}

func (c *capturingLogger) ErrorWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	c.record("error", msg, fields)
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		devMode   bool
		status    int
		wantLevel string
	}{
		{"dev logs success", true, http.StatusOK, "info"},
		{"prod skips success", false, http.StatusOK, ""},
		{"prod logs client error", false, http.StatusConflict, "warn"},
		{"prod logs server error", false, http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &capturingLogger{}
			handler := LoggingMiddleware(logger, tt.devMode)(statusHandler(tt.status))

			req := httptest.NewRequest(http.MethodPost, "/api/store/orders?x=1", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.wantLevel == "" {
				assert.Empty(t, logger.entries)
				return
			}
			require.Len(t, logger.entries, 1)
			entry := logger.entries[0]
			assert.Equal(t, tt.wantLevel, entry.level)
			assert.Equal(t, "/api/store/orders", entry.fields["path"])
			assert.Equal(t, "x=1", entry.fields["query"])
			assert.Equal(t, tt.status, entry.fields["status"])
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFromContext(r.Context())
	}))

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	})

	t.Run("propagates incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
	})
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	storeID := uint(3)
	ctx := WithPrincipal(context.Background(), Principal{UserID: 1, Role: RoleStore, StoreID: &storeID})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)

	id, err := p.BoundStore()
	require.NoError(t, err)
	assert.Equal(t, uint(3), id)
	assert.False(t, p.IsOwner())

	_, err = Principal{Role: RoleStore}.BoundStore()
	assert.ErrorIs(t, err, ErrUnlinkedStore)
	assert.True(t, RoleOwner.Valid())
	assert.False(t, Role("ADMIN").Valid())
}
