package dualstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/surrealdb/dualstore/pkg/config"
	"github.com/surrealdb/dualstore/pkg/constants"
	"github.com/surrealdb/dualstore/pkg/flags"
	"github.com/surrealdb/dualstore/pkg/logger"
	"github.com/surrealdb/dualstore/pkg/metrics"
	"github.com/surrealdb/dualstore/pkg/models"
	"github.com/surrealdb/dualstore/pkg/reconcile"
	"github.com/surrealdb/dualstore/pkg/router"
	"github.com/surrealdb/dualstore/pkg/service"
	"github.com/surrealdb/dualstore/pkg/store"
	"github.com/surrealdb/dualstore/pkg/store/gormstore"
	"github.com/surrealdb/dualstore/pkg/store/memstore"
)

// App holds the wired application: both stores, one router per entity type,
// the services on top of them, the reconciler and the flag service.
//
// Every adapter is wrapped in a read-only guard, so SetReadOnly(true) stops
// all writes, including reconciliation copies, without rebuilding anything.
type App struct {
	config   *config.Config
	logData  *logger.LogData
	log      logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Recorder

	primaryDB   *gorm.DB
	secondaryDB *gorm.DB
	redis       *redis.Client

	provider flags.Provider
	flags    *flags.Service
	readOnly atomic.Bool

	secondaryConfigured bool
	routers             []secondarySwitch
	migrations          []migration

	repos      service.Repositories
	services   *service.Services
	reconciler *reconcile.Reconciler
}

type secondarySwitch interface {
	Entity() string
	IsSecondaryEnabled() bool
}

type migration struct {
	entity string
	side   constants.StoreSide
	m      store.Migrator
}

// New connects to the configured stores and wires the application. The
// caller must Close the returned App.
func New(cfg *config.Config) (*App, error) {
	logData, err := logger.New().FromPath(cfg.Log.Path).WithLevel(cfg.Log.Level).Make()
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	a := &App{
		config:   cfg,
		logData:  logData,
		log:      logData.Adapter(),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)
	a.readOnly.Store(cfg.ReadOnly)

	if err := a.openStores(); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.openFlags()

	products := wire[models.Product](a, "products")
	cartItems := wire[models.CartItem](a, "cart_items")
	users := wire[models.User](a, "users")
	orders := wire[models.Order](a, "orders")
	orderItems := wire[models.OrderItem](a, "order_items")

	a.repos = service.Repositories{
		Users:      router.NewRepository(users),
		Products:   router.NewRepository(products),
		CartItems:  router.NewRepository(cartItems),
		Orders:     router.NewRepository(orders),
		OrderItems: router.NewRepository(orderItems),
	}
	a.services = service.New(a.repos, service.WithFlags(a.flags), service.WithLogger(a.log))

	// Parents before the rows that reference them.
	a.reconciler = reconcile.New(a.IsSecondaryEnabled, a.log)
	a.reconciler.Register(
		newEngine(a, products, "Products"),
		newEngine(a, cartItems, "Cart Items"),
		newEngine(a, users, "Users"),
		newEngine(a, orders, "Orders"),
		newEngine(a, orderItems, "Order Items"),
	)

	a.log.Info("application initialised",
		"primary", cfg.Primary.Datasource.Driver,
		"secondary", a.secondaryDescription(),
		"flags", cfg.Flags.Backend)
	return a, nil
}

func (a *App) secondaryDescription() string {
	if !a.secondaryConfigured {
		return "disabled"
	}
	return a.config.Secondary.Datasource.Driver
}

func openDatasource(ds config.Datasource) (*gorm.DB, error) {
	pool := gormstore.PoolConfig{
		MaxOpenConns:    ds.MaxOpenConns,
		MaxIdleConns:    ds.MaxIdleConns,
		ConnMaxLifetime: ds.ConnMaxLifetime,
	}
	switch ds.Driver {
	case config.DriverSQLite:
		db, err := gormstore.OpenSQLite(ds.Path)
		if err != nil {
			return nil, err
		}
		if pool.MaxOpenConns > 0 {
			if err := gormstore.ConfigurePool(db, pool); err != nil {
				return nil, err
			}
		}
		return db, nil
	case config.DriverPostgres:
		return gormstore.OpenPostgres(ds.DSN, pool)
	case config.DriverMemory:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", ds.Driver)
	}
}

func (a *App) openStores() error {
	var err error
	a.primaryDB, err = openDatasource(a.config.Primary.Datasource)
	if err != nil {
		return fmt.Errorf("failed to open primary store: %w", err)
	}
	a.log.Info("connected to primary store", "driver", a.config.Primary.Datasource.Driver)

	if !a.config.Secondary.Datasource.Enabled {
		a.log.Warn("secondary store disabled, running on the primary only")
		return nil
	}
	a.secondaryDB, err = openDatasource(a.config.Secondary.Datasource)
	if err != nil {
		return fmt.Errorf("failed to open secondary store: %w", err)
	}
	a.secondaryConfigured = true
	a.log.Info("connected to secondary store", "driver", a.config.Secondary.Datasource.Driver)
	return nil
}

func (a *App) openFlags() {
	var provider flags.Provider
	switch a.config.Flags.Backend {
	case config.FlagsRedis:
		rc := a.config.Flags.Redis
		a.redis = flags.NewRedisClient(rc.Addr, rc.Password, rc.DB)
		provider = flags.NewRedisSource(a.redis, rc.Prefix)
	default:
		values := flags.Defaults()
		for k, v := range a.config.Flags.Values {
			values[k] = v
		}
		provider = flags.NewStatic(values)
	}
	a.provider = provider
	a.flags = flags.NewService(provider,
		flags.WithLogger(a.log),
		flags.WithMetrics(a.metrics),
		flags.WithProviderName(a.config.Flags.Backend))
}

func adapterFor[T store.Entity[string]](db *gorm.DB) store.Adapter[T, string] {
	if db == nil {
		return memstore.New[T, string]()
	}
	return gormstore.New[T](db)
}

// wire builds the guarded adapters and the router for one entity type.
func wire[T store.Entity[string]](a *App, entity string) *router.Router[T, string] {
	primary := store.NewReadOnly(adapterFor[T](a.primaryDB), a.IsReadOnly)
	a.migrations = append(a.migrations, migration{entity: entity, side: constants.Primary, m: primary})

	var secondary store.Adapter[T, string]
	if a.secondaryConfigured {
		guarded := store.NewReadOnly(adapterFor[T](a.secondaryDB), a.IsReadOnly)
		a.migrations = append(a.migrations, migration{entity: entity, side: constants.Secondary, m: guarded})
		secondary = guarded
	}

	r := router.New[T, string](entity, primary, secondary, a.provider,
		router.WithEnabled(a.config.Secondary.Datasource.Enabled),
		router.WithTimeout(a.config.Router.AdapterTimeout),
		router.WithConcurrentWrites(a.config.Router.ConcurrentWrites),
		router.WithLogger(a.log),
		router.WithMetrics(a.metrics))
	a.routers = append(a.routers, r)
	return r
}

func newEngine[T store.Entity[string]](a *App, r *router.Router[T, string], label string) reconcile.Syncer {
	return reconcile.NewEngine(r,
		reconcile.WithLabel(label),
		reconcile.WithLogger(a.log),
		reconcile.WithMetrics(a.metrics))
}

// Close releases database connections, the Redis client and the log file.
func (a *App) Close() error {
	var errs []error
	for _, db := range []*gorm.DB{a.primaryDB, a.secondaryDB} {
		if db != nil {
			errs = append(errs, gormstore.Close(db))
		}
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.logData != nil {
		errs = append(errs, a.logData.Close())
	}
	return errors.Join(errs...)
}

// IsSecondaryEnabled reports whether reads and writes reach the secondary.
func (a *App) IsSecondaryEnabled() bool {
	for _, r := range a.routers {
		if !r.IsSecondaryEnabled() {
			return false
		}
	}
	return len(a.routers) > 0
}

// SetReadOnly puts the application in or out of maintenance mode. While
// read-only, every write fails with constants.ErrReadOnly.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.log.Info("read-only mode changed", "readOnly", readOnly)
}

func (a *App) IsReadOnly() bool {
	return a.readOnly.Load()
}

func (a *App) Services() *service.Services { return a.services }

func (a *App) Reconciler() *reconcile.Reconciler { return a.reconciler }

func (a *App) Flags() *flags.Service { return a.flags }

func (a *App) Registry() *prometheus.Registry { return a.registry }

// Ping checks both database connections.
func (a *App) Ping(ctx context.Context) map[constants.StoreSide]error {
	out := map[constants.StoreSide]error{constants.Primary: nil}
	if a.primaryDB != nil {
		out[constants.Primary] = gormstore.Ping(ctx, a.primaryDB)
	}
	if a.secondaryConfigured {
		out[constants.Secondary] = nil
		if a.secondaryDB != nil {
			out[constants.Secondary] = gormstore.Ping(ctx, a.secondaryDB)
		}
	}
	return out
}
