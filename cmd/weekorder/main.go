// Command weekorder serves the weekly ordering API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/weekorder/weekorder"
	"github.com/weekorder/weekorder/api"
	"github.com/weekorder/weekorder/auth"
	"github.com/weekorder/weekorder/catalog"
	"github.com/weekorder/weekorder/core"
	"github.com/weekorder/weekorder/ordering"
	"github.com/weekorder/weekorder/storage"
	"github.com/weekorder/weekorder/telemetry"
)

func main() {
	configFile := flag.String("config", os.Getenv("WEEKORDER_CONFIG_FILE"), "path to a YAML or JSON config file")
	flag.Parse()

	var opts []core.Option
	if *configFile != "" {
		opts = append(opts, core.WithConfigFile(*configFile))
	}
	cfg, err := core.NewConfig(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "weekorder: %v\n", err)
		os.Exit(1)
	}

	logger := core.NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Service stopped with error", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *core.Config, logger core.Logger) error {
	location, err := cfg.Ordering.Location()
	if err != nil {
		return err
	}

	var tel core.Telemetry = &core.NoOpTelemetry{}
	if cfg.Telemetry.Enabled {
		provider, err := telemetry.NewProvider(ctx, cfg.Telemetry, weekorder.Version, logger)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Telemetry shutdown failed", map[string]interface{}{"error": err.Error()})
			}
		}()
		tel = provider
	}

	backend, err := storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer backend.Close()

	health := []api.Pinger{backend}
	orderingOpts := []ordering.Option{
		ordering.WithLocation(location),
		ordering.WithLogger(logger),
		ordering.WithTelemetry(tel),
	}

	if cfg.Redis.Enabled {
		client, err := core.NewRedisClient(core.RedisClientOptions{
			RedisURL:  cfg.Redis.URL,
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()
		health = append(health, client)
		orderingOpts = append(orderingOpts, ordering.WithLocker(core.NewRedisLocker(client, cfg.Redis.LockTTL, logger)))
	}

	tokens := auth.NewTokenService(cfg.EffectiveJWTSecret(), cfg.Auth.TokenTTL)
	router := api.NewRouter(api.Dependencies{
		Config:   cfg,
		Auth:     auth.NewService(backend, tokens, logger),
		Catalog:  catalog.NewService(backend, logger),
		Ordering: ordering.NewService(backend, orderingOpts...),
		Logger:   logger,
		Health:   health,
	})

	server := &http.Server{
		Addr:           cfg.ListenAddress(),
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", map[string]interface{}{
			"address":  server.Addr,
			"version":  weekorder.Version,
			"timezone": location.String(),
			"database": cfg.Database.Driver,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("Shutting down HTTP server", nil)
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
