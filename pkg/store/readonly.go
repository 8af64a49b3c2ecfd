package store

import (
	"context"

	"github.com/surrealdb/dualstore/pkg/constants"
)

// ReadOnlyAdapter wraps an Adapter and rejects writes while isReadOnly
// reports true. Reads always pass through.
//
// The check runs on every call, so the application can enter and leave
// maintenance mode without rebuilding its adapters.
type ReadOnlyAdapter[T any, ID comparable] struct {
	Adapter[T, ID]
	isReadOnly func() bool
}

// NewReadOnly creates a read-only guard around adapter.
func NewReadOnly[T any, ID comparable](adapter Adapter[T, ID], isReadOnly func() bool) *ReadOnlyAdapter[T, ID] {
	return &ReadOnlyAdapter[T, ID]{
		Adapter:    adapter,
		isReadOnly: isReadOnly,
	}
}

// Unwrap returns the underlying adapter
func (r *ReadOnlyAdapter[T, ID]) Unwrap() Adapter[T, ID] {
	return r.Adapter
}

func (r *ReadOnlyAdapter[T, ID]) checkReadOnly() error {
	if r.isReadOnly != nil && r.isReadOnly() {
		return constants.ErrReadOnly
	}
	return nil
}

func (r *ReadOnlyAdapter[T, ID]) Save(ctx context.Context, entity T) (T, error) {
	if err := r.checkReadOnly(); err != nil {
		var zero T
		return zero, err
	}
	return r.Adapter.Save(ctx, entity)
}

func (r *ReadOnlyAdapter[T, ID]) DeleteByID(ctx context.Context, id ID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Adapter.DeleteByID(ctx, id)
}

func (r *ReadOnlyAdapter[T, ID]) DeleteAll(ctx context.Context) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Adapter.DeleteAll(ctx)
}

// Migrate forwards to the wrapped adapter when it supports migrations.
func (r *ReadOnlyAdapter[T, ID]) Migrate(ctx context.Context) error {
	if m, ok := r.Adapter.(Migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}
