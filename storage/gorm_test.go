package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weekorder/weekorder/core"
)

// requirePostgres returns a migrated, emptied GormStore or skips the test
// when WEEKORDER_TEST_POSTGRES_DSN is unset.
func requirePostgres(t *testing.T) *GormStore {
	t.Helper()

	dsn := os.Getenv("WEEKORDER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WEEKORDER_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}

	ctx := context.Background()
	backend, err := Open(ctx, core.DatabaseConfig{
		Driver:      core.DriverPostgres,
		DSN:         dsn,
		AutoMigrate: true,
	}, &core.NoOpLogger{})
	require.NoError(t, err)

	store := backend.(*GormStore)
	t.Cleanup(func() { _ = store.Close() })

	err = store.db.Exec(`TRUNCATE order_items, orders, availabilities, users, products, categories, stores RESTART IDENTITY CASCADE`).Error
	require.NoError(t, err)
	return store
}

func TestGormStoreContract(t *testing.T) {
	requirePostgres(t)
	runBackendContract(t, func(t *testing.T) Backend {
		return requirePostgres(t)
	})
}
