// Package store defines the per-entity storage contract that both the primary
// and the secondary database implement.
//
// An [Adapter] covers exactly one entity type in exactly one database. The
// router in [github.com/surrealdb/dualstore/pkg/router] holds two of them per
// entity type and decides which one serves a call.
//
// Adapters return errors for every failure. FindByID reports a missing record
// as found=false with a nil error rather than as an error, mirroring how the
// GORM implementation maps gorm.ErrRecordNotFound.
package store

import (
	"context"
)

// Entity is anything with a stable id. Reconciliation uses the id for
// existence checks and never looks at other fields.
type Entity[ID comparable] interface {
	EntityID() ID
}

// Adapter is uniform CRUD over one entity type in one database.
type Adapter[T any, ID comparable] interface {
	// FindByID returns the entity and true, or the zero value and false when
	// no record has that id.
	FindByID(ctx context.Context, id ID) (T, bool, error)

	FindAll(ctx context.Context) ([]T, error)

	// Save inserts or replaces the entity and returns the stored value. An
	// entity that already carries an id keeps it.
	Save(ctx context.Context, entity T) (T, error)

	DeleteByID(ctx context.Context, id ID) error
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	ExistsByID(ctx context.Context, id ID) (bool, error)
}

// Migrator is implemented by adapters that can create their own schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}
