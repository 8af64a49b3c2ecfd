package dualstore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Handler builds the HTTP routes.
//
// Health and metrics:
//
//	GET  /health
//	GET  /metrics
//
// Administration:
//
//	POST /admin/sync/bidirectional          - copy missing records both ways
//	POST /admin/sync/{entity}               - one entity, ?direction=to_secondary|to_primary
//	GET  /admin/sync/status                 - last bidirectional sync
//	GET  /admin/consistency                 - count check for every entity
//	GET  /admin/consistency/{entity}
//	GET  /admin/feature-flags               - flags for the X-User-ID caller
//	PUT  /admin/feature-flags/{key}         - set a flag (static backend only)
//	GET  /admin/read-only
//	POST /admin/read-only                   - {"readOnly": true}
//
// API (callers identify themselves with X-User-ID; cart and order routes use
// the path user id):
//
//	POST   /api/users
//	GET    /api/users/{userId}
//	GET    /api/products                    - ?category=
//	POST   /api/products
//	GET    /api/products/{id}
//	PUT    /api/products/{id}
//	DELETE /api/products/{id}
//	GET    /api/users/{userId}/cart
//	POST   /api/users/{userId}/cart         - {"productId": "...", "quantity": 1}
//	DELETE /api/users/{userId}/cart
//	PUT    /api/users/{userId}/cart/{itemId} - {"quantity": 2}
//	DELETE /api/users/{userId}/cart/{itemId}
//	GET    /api/users/{userId}/orders
//	POST   /api/users/{userId}/orders       - {"shippingAddress": "..."}
//	GET    /api/users/{userId}/orders/{orderId}
//	PUT    /api/users/{userId}/orders/{orderId}/status - {"status": "SHIPPED"}
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", a.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})).Methods("GET")

	admin := router.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/sync/bidirectional", a.handleBidirectionalSync).Methods("POST")
	admin.HandleFunc("/sync/status", a.handleSyncStatus).Methods("GET")
	admin.HandleFunc("/sync/{entity}", a.handleEntitySync).Methods("POST")
	admin.HandleFunc("/consistency", a.handleConsistency).Methods("GET")
	admin.HandleFunc("/consistency/{entity}", a.handleEntityConsistency).Methods("GET")
	admin.HandleFunc("/feature-flags", a.handleFeatureFlags).Methods("GET")
	admin.HandleFunc("/feature-flags/{key}", a.handleSetFeatureFlag).Methods("PUT")
	admin.HandleFunc("/read-only", a.handleGetReadOnly).Methods("GET")
	admin.HandleFunc("/read-only", a.handleSetReadOnly).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/users", a.handleRegisterUser).Methods("POST")
	api.HandleFunc("/users/{userId}", a.handleGetUser).Methods("GET")

	api.HandleFunc("/products", a.handleListProducts).Methods("GET")
	api.HandleFunc("/products", a.handleCreateProduct).Methods("POST")
	api.HandleFunc("/products/premium", a.handlePremiumProducts).Methods("GET")
	api.HandleFunc("/products/{id}", a.handleGetProduct).Methods("GET")
	api.HandleFunc("/products/{id}", a.handleUpdateProduct).Methods("PUT")
	api.HandleFunc("/products/{id}", a.handleDeleteProduct).Methods("DELETE")

	api.HandleFunc("/users/{userId}/cart", a.handleGetCart).Methods("GET")
	api.HandleFunc("/users/{userId}/cart", a.handleAddToCart).Methods("POST")
	api.HandleFunc("/users/{userId}/cart", a.handleClearCart).Methods("DELETE")
	api.HandleFunc("/users/{userId}/cart/{itemId}", a.handleUpdateCartItem).Methods("PUT")
	api.HandleFunc("/users/{userId}/cart/{itemId}", a.handleRemoveCartItem).Methods("DELETE")

	api.HandleFunc("/users/{userId}/orders", a.handleListOrders).Methods("GET")
	api.HandleFunc("/users/{userId}/orders", a.handleCheckout).Methods("POST")
	api.HandleFunc("/users/{userId}/orders/{orderId}", a.handleGetOrder).Methods("GET")
	api.HandleFunc("/users/{userId}/orders/{orderId}/status", a.handleUpdateOrderStatus).Methods("PUT")

	return router
}

// Run serves the HTTP API until ctx is cancelled, then shuts down with a
// five second grace period. When a sync interval is configured, a
// background reconciliation loop runs for the lifetime of the server.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	if cmd.Migrate {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
	}

	if interval := a.config.Sync.Interval; interval > 0 && a.IsSecondaryEnabled() {
		a.reconciler.StartContinuousSync(ctx, interval, a.IsReadOnly)
		a.log.Info("continuous sync started", "interval", interval.String())
	}

	addr := fmt.Sprintf(":%d", a.config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.log.Info("starting dualstore server", "addr", addr, "secondaryEnabled", a.IsSecondaryEnabled())

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
