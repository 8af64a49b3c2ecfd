package router

import (
	"context"

	"github.com/surrealdb/dualstore/pkg/constants"
	"github.com/surrealdb/dualstore/pkg/store"
)

func sides[R any, T any, ID comparable](r *Router[T, ID], fn func(context.Context, store.Adapter[T, ID]) (R, error)) (primaryOp, secondaryOp func(context.Context) (R, error)) {
	primaryOp = func(ctx context.Context) (R, error) { return fn(ctx, r.primary) }
	secondaryOp = func(ctx context.Context) (R, error) { return fn(ctx, r.secondary) }
	return primaryOp, secondaryOp
}

// ReadEach is Read with one operation, written against the adapter
// contract, run on whichever side the router picks.
func ReadEach[R any, T any, ID comparable](ctx context.Context, r *Router[T, ID], callerID string, fn func(context.Context, store.Adapter[T, ID]) (R, error)) (R, error) {
	p, s := sides(r, fn)
	return Read(ctx, r, callerID, p, s)
}

// WriteEach is Write with the same operation for both sides.
func WriteEach[R any, T any, ID comparable](ctx context.Context, r *Router[T, ID], callerID string, fn func(context.Context, store.Adapter[T, ID]) (R, error)) (R, error) {
	p, s := sides(r, fn)
	return Write(ctx, r, callerID, p, s)
}

// Repository exposes the adapter operations through a Router so services
// hold one value per entity type. Every method takes the caller identity used
// for routing, except Count which always runs as the system caller.
type Repository[T any, ID comparable] struct {
	router *Router[T, ID]
}

func NewRepository[T any, ID comparable](r *Router[T, ID]) *Repository[T, ID] {
	return &Repository[T, ID]{router: r}
}

func (repo *Repository[T, ID]) Router() *Router[T, ID] {
	return repo.router
}

type lookup[T any] struct {
	val   T
	found bool
}

func (repo *Repository[T, ID]) FindByID(ctx context.Context, callerID string, id ID) (T, bool, error) {
	res, err := ReadEach(ctx, repo.router, callerID, func(ctx context.Context, a store.Adapter[T, ID]) (lookup[T], error) {
		v, found, err := a.FindByID(ctx, id)
		return lookup[T]{val: v, found: found}, err
	})
	return res.val, res.found, err
}

func (repo *Repository[T, ID]) FindAll(ctx context.Context, callerID string) ([]T, error) {
	return ReadEach(ctx, repo.router, callerID, func(ctx context.Context, a store.Adapter[T, ID]) ([]T, error) {
		return a.FindAll(ctx)
	})
}

func (repo *Repository[T, ID]) Save(ctx context.Context, callerID string, entity T) (T, error) {
	return WriteEach(ctx, repo.router, callerID, func(ctx context.Context, a store.Adapter[T, ID]) (T, error) {
		return a.Save(ctx, entity)
	})
}

func (repo *Repository[T, ID]) DeleteByID(ctx context.Context, callerID string, id ID) error {
	_, err := WriteEach(ctx, repo.router, callerID, func(ctx context.Context, a store.Adapter[T, ID]) (struct{}, error) {
		return struct{}{}, a.DeleteByID(ctx, id)
	})
	return err
}

func (repo *Repository[T, ID]) DeleteAll(ctx context.Context, callerID string) error {
	_, err := WriteEach(ctx, repo.router, callerID, func(ctx context.Context, a store.Adapter[T, ID]) (struct{}, error) {
		return struct{}{}, a.DeleteAll(ctx)
	})
	return err
}

func (repo *Repository[T, ID]) Count(ctx context.Context) (int64, error) {
	return ReadEach(ctx, repo.router, constants.SystemCaller, func(ctx context.Context, a store.Adapter[T, ID]) (int64, error) {
		return a.Count(ctx)
	})
}

func (repo *Repository[T, ID]) ExistsByID(ctx context.Context, callerID string, id ID) (bool, error) {
	return ReadEach(ctx, repo.router, callerID, func(ctx context.Context, a store.Adapter[T, ID]) (bool, error) {
		return a.ExistsByID(ctx, id)
	})
}
