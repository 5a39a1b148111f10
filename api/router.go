// Package api exposes the ordering, catalog and auth services over HTTP/JSON.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/weekorder/weekorder/auth"
	"github.com/weekorder/weekorder/catalog"
	"github.com/weekorder/weekorder/core"
	"github.com/weekorder/weekorder/ordering"
	"github.com/weekorder/weekorder/telemetry"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies wires the services into the router.
type Dependencies struct {
	Config   *core.Config
	Auth     *auth.Service
	Catalog  *catalog.Service
	Ordering *ordering.Service
	Logger   core.Logger
	// Health dependencies are pinged by the health endpoint; nil entries are skipped.
	Health []Pinger
}

// API holds the HTTP handlers.
type API struct {
	cfg      *core.Config
	auth     *auth.Service
	catalog  *catalog.Service
	ordering *ordering.Service
	health   []Pinger
	logger   core.Logger
}

// NewRouter builds the HTTP handler with the full middleware stack.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	a := &API{
		cfg:      cfg,
		auth:     deps.Auth,
		catalog:  deps.Catalog,
		ordering: deps.Ordering,
		health:   deps.Health,
		logger:   core.WithComponent(logger, "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(core.RequestIDMiddleware)
	if cfg.Telemetry.Enabled && cfg.Telemetry.TracingEnabled {
		r.Use(telemetry.TracingMiddleware(cfg.Telemetry.ServiceName, cfg.HTTP.HealthCheckPath))
	}
	r.Use(core.LoggingMiddleware(a.logger, cfg.Development.Enabled))
	if cfg.HTTP.CORS.Enabled {
		r.Use(core.CORSMiddleware(cfg.HTTP.CORS))
	}

	healthPath := cfg.HTTP.HealthCheckPath
	if healthPath == "" {
		healthPath = "/health"
	}
	r.Get(healthPath, a.handle(a.healthCheck))

	r.Route("/api", func(r chi.Router) {
		if cfg.HTTP.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/bootstrap-owner", a.handle(a.bootstrapOwner))
			r.Post("/login", a.handle(a.login))
			r.With(a.authenticate).Get("/me", a.handle(a.me))
		})

		r.Route("/store", func(r chi.Router) {
			r.Use(a.authenticate, a.requireRole(core.RoleStore))
			r.Get("/products", a.handle(a.storeProducts))
			r.Post("/orders", a.handle(a.submitOrder))
			r.Get("/orders", a.handle(a.listOrders))
			r.Get("/orders/{id}", a.handle(a.getOrder))
		})

		r.Route("/owner", func(r chi.Router) {
			r.Use(a.authenticate, a.requireRole(core.RoleOwner))

			r.Get("/stores", a.handle(a.listStores))
			r.Post("/stores", a.handle(a.createStore))
			r.Put("/stores/{id}", a.handle(a.updateStore))
			r.Delete("/stores/{id}", a.handle(a.deleteStore))
			r.Get("/stores/{id}/availability", a.handle(a.listAvailability))
			r.Put("/stores/{id}/availability", a.handle(a.setAvailability))

			r.Get("/categories", a.handle(a.listCategories))
			r.Post("/categories", a.handle(a.createCategory))
			r.Put("/categories/{id}", a.handle(a.updateCategory))
			r.Delete("/categories/{id}", a.handle(a.deleteCategory))

			r.Get("/products", a.handle(a.listProducts))
			r.Post("/products", a.handle(a.createProduct))
			r.Put("/products/{id}", a.handle(a.updateProduct))
			r.Delete("/products/{id}", a.handle(a.deleteProduct))

			r.Post("/users/storekeepers", a.handle(a.createStorekeeper))

			r.Get("/orders", a.handle(a.listOrders))
			r.Get("/orders/{id}", a.handle(a.getOrder))
		})
	})

	routeNotFound := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "Route not found"})
	}
	r.NotFound(routeNotFound)
	r.MethodNotAllowed(routeNotFound)

	return r
}

func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) error {
	for _, dep := range a.health {
		if dep == nil {
			continue
		}
		if err := dep.Ping(r.Context()); err != nil {
			a.logger.WarnWithContext(r.Context(), "Health check failed", map[string]interface{}{
				"error": err.Error(),
			})
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
			return nil
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	return nil
}
