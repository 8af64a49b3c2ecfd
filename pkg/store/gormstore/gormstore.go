// Package gormstore implements store.Adapter on top of GORM. The same generic
// adapter serves the SQLite primary and the PostgreSQL secondary; only the
// dialector differs.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/surrealdb/dualstore/pkg/store"
)

// PoolConfig tunes the database/sql pool behind a GORM handle.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func defaultConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}
}

// OpenSQLite opens the SQLite primary. In-memory databases are pinned to a
// single connection so every query sees the same data.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), defaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %q: %w", path, err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		if err := ConfigurePool(db, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// OpenPostgres opens the PostgreSQL secondary.
func OpenPostgres(dsn string, pool PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), defaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := ConfigurePool(db, pool); err != nil {
		return nil, err
	}
	return db, nil
}

// ConfigurePool applies the non-zero fields of pool.
func ConfigurePool(db *gorm.DB, pool PoolConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	return nil
}

// Ping checks that the database answers.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Adapter is a store.Adapter for one model type. T is the model value type
// (models.Product, not *models.Product) and must have an "id" column.
type Adapter[T store.Entity[string]] struct {
	db *gorm.DB
}

// New creates an adapter for T over db.
func New[T store.Entity[string]](db *gorm.DB) *Adapter[T] {
	return &Adapter[T]{db: db}
}

func (a *Adapter[T]) Migrate(ctx context.Context) error {
	var model T
	return a.db.WithContext(ctx).AutoMigrate(&model)
}

func (a *Adapter[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var entity T
	err := a.db.WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		var zero T
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, false, nil
		}
		return zero, false, err
	}
	return entity, true, nil
}

func (a *Adapter[T]) FindAll(ctx context.Context) ([]T, error) {
	var entities []T
	if err := a.db.WithContext(ctx).Order("created_at, id").Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

// Save inserts entities without an id (the model hook assigns one) and
// upserts everything else, so a copy keeps its id and timestamps.
func (a *Adapter[T]) Save(ctx context.Context, entity T) (T, error) {
	tx := a.db.WithContext(ctx)
	if entity.EntityID() != "" {
		tx = tx.Clauses(clause.OnConflict{UpdateAll: true})
	}
	if err := tx.Create(&entity).Error; err != nil {
		var zero T
		return zero, err
	}
	return entity, nil
}

func (a *Adapter[T]) DeleteByID(ctx context.Context, id string) error {
	var model T
	return a.db.WithContext(ctx).Where("id = ?", id).Delete(&model).Error
}

func (a *Adapter[T]) DeleteAll(ctx context.Context) error {
	var model T
	return a.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model).Error
}

func (a *Adapter[T]) Count(ctx context.Context) (int64, error) {
	var model T
	var n int64
	if err := a.db.WithContext(ctx).Model(&model).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (a *Adapter[T]) ExistsByID(ctx context.Context, id string) (bool, error) {
	var model T
	var n int64
	if err := a.db.WithContext(ctx).Model(&model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
