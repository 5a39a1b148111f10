// Package storage provides the in-memory and gorm/PostgreSQL repositories
// behind the catalog, ordering and auth services.
package storage

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/weekorder/weekorder/auth"
	"github.com/weekorder/weekorder/catalog"
	"github.com/weekorder/weekorder/core"
	"github.com/weekorder/weekorder/ordering"
)

// Backend is a repository implementation selected by configuration.
type Backend interface {
	catalog.Repository
	ordering.Repository
	auth.UserRepository

	Ping(ctx context.Context) error
	Close() error
}

// Open builds the backend named by cfg.Database.Driver. The postgres backend
// is migrated when AutoMigrate is set.
func Open(ctx context.Context, cfg core.DatabaseConfig, logger core.Logger) (Backend, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	switch cfg.Driver {
	case "", core.DriverMemory:
		store := NewMemoryStore()
		store.SetLogger(core.WithComponent(logger, "storage"))
		logger.Info("Using in-memory storage", nil)
		return store, nil

	case core.DriverPostgres:
		return openPostgres(ctx, cfg, logger)

	default:
		return nil, &core.Error{
			Op:      "storage.Open",
			Kind:    "config",
			Message: fmt.Sprintf("unknown database driver %q", cfg.Driver),
			Err:     core.ErrInvalidConfiguration,
		}
	}
}

func openPostgres(ctx context.Context, cfg core.DatabaseConfig, logger core.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         newQueryLogger(logger, cfg.LogQueries),
	})
	if err != nil {
		return nil, core.NewError("storage.Open", "database", fmt.Errorf("%w: %v", core.ErrConnectionFailed, err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := NewGormStore(db, logger)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, core.NewError("storage.Open", "database", fmt.Errorf("%w: %v", core.ErrConnectionFailed, err))
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	logger.Info("Connected to PostgreSQL", map[string]interface{}{
		"max_open_conns": cfg.MaxOpenConns,
		"auto_migrate":   cfg.AutoMigrate,
	})
	return store, nil
}
