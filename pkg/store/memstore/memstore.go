// Package memstore is an in-memory store.Adapter. It backs the "memory"
// secondary driver and lets tests inject failures per operation.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/surrealdb/dualstore/pkg/store"
)

var ErrMissingID = errors.New("memstore: entity has no id")

// Op names an adapter operation for failure injection and call counting.
type Op string

const (
	OpFindByID   Op = "FindByID"
	OpFindAll    Op = "FindAll"
	OpSave       Op = "Save"
	OpDeleteByID Op = "DeleteByID"
	OpDeleteAll  Op = "DeleteAll"
	OpCount      Op = "Count"
	OpExistsByID Op = "ExistsByID"
)

type Adapter[T store.Entity[ID], ID comparable] struct {
	mu     sync.RWMutex
	items  map[ID]T
	order  []ID
	errs   map[Op]error
	failOn map[ID]error
	calls  map[Op]int
}

func New[T store.Entity[ID], ID comparable]() *Adapter[T, ID] {
	return &Adapter[T, ID]{
		items:  make(map[ID]T),
		errs:   make(map[Op]error),
		failOn: make(map[ID]error),
		calls:  make(map[Op]int),
	}
}

// FailWith makes every call to op return err. A nil err clears it.
func (a *Adapter[T, ID]) FailWith(op Op, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		delete(a.errs, op)
		return
	}
	a.errs[op] = err
}

// FailSaveOf makes Save fail for one id only.
func (a *Adapter[T, ID]) FailSaveOf(id ID, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failOn[id] = err
}

// Calls returns how many times op was invoked, failed calls included.
func (a *Adapter[T, ID]) Calls(op Op) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.calls[op]
}

func (a *Adapter[T, ID]) begin(op Op) error {
	a.calls[op]++
	return a.errs[op]
}

func (a *Adapter[T, ID]) FindByID(_ context.Context, id ID) (T, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var zero T
	if err := a.begin(OpFindByID); err != nil {
		return zero, false, err
	}
	v, ok := a.items[id]
	return v, ok, nil
}

func (a *Adapter[T, ID]) FindAll(_ context.Context) ([]T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(OpFindAll); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.items[id])
	}
	return out, nil
}

func (a *Adapter[T, ID]) Save(_ context.Context, entity T) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var zero T
	if err := a.begin(OpSave); err != nil {
		return zero, err
	}
	id := entity.EntityID()
	if id == zero.EntityID() {
		return zero, ErrMissingID
	}
	if err, ok := a.failOn[id]; ok {
		return zero, err
	}
	if _, exists := a.items[id]; !exists {
		a.order = append(a.order, id)
	}
	a.items[id] = entity
	return entity, nil
}

func (a *Adapter[T, ID]) DeleteByID(_ context.Context, id ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(OpDeleteByID); err != nil {
		return err
	}
	if _, ok := a.items[id]; !ok {
		return nil
	}
	delete(a.items, id)
	for i, existing := range a.order {
		if existing == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return nil
}

func (a *Adapter[T, ID]) DeleteAll(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(OpDeleteAll); err != nil {
		return err
	}
	a.items = make(map[ID]T)
	a.order = nil
	return nil
}

func (a *Adapter[T, ID]) Count(_ context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(OpCount); err != nil {
		return 0, err
	}
	return int64(len(a.items)), nil
}

func (a *Adapter[T, ID]) ExistsByID(_ context.Context, id ID) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(OpExistsByID); err != nil {
		return false, err
	}
	_, ok := a.items[id]
	return ok, nil
}
