package gormstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/dualstore/pkg/models"
	"github.com/surrealdb/dualstore/pkg/store"
	"github.com/surrealdb/dualstore/pkg/store/gormstore"
	"github.com/surrealdb/dualstore/pkg/testenv"
)

var _ store.Adapter[models.Product, string] = (*gormstore.Adapter[models.Product])(nil)

func newProducts(t *testing.T) *gormstore.Adapter[models.Product] {
	db := testenv.NewSQLite(t)
	a := gormstore.New[models.Product](db)
	require.NoError(t, a.Migrate(context.Background()))
	return a
}

func TestSaveAssignsIDWhenMissing(t *testing.T) {
	ctx := context.Background()
	a := newProducts(t)

	saved, err := a.Save(ctx, models.Product{Name: "Lamp", Price: 12.5, StockQuantity: 3})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.False(t, saved.CreatedAt.IsZero())

	got, found, err := a.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Lamp", got.Name)
	assert.Equal(t, 3, got.StockQuantity)
}

func TestSaveKeepsProvidedIDAndTimestamps(t *testing.T) {
	ctx := context.Background()
	a := newProducts(t)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p := models.Product{ID: models.NewID(), Name: "Desk", Price: 99, CreatedAt: created, UpdatedAt: created}

	saved, err := a.Save(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, saved.ID)

	got, found, err := a.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, created.Equal(got.UpdatedAt))
}

func TestSaveUpsertsExisting(t *testing.T) {
	ctx := context.Background()
	a := newProducts(t)

	p, err := a.Save(ctx, models.Product{ID: models.NewID(), Name: "Chair", Price: 40, StockQuantity: 5})
	require.NoError(t, err)

	p.StockQuantity = 0
	p.Name = "Chair v2"
	_, err = a.Save(ctx, p)
	require.NoError(t, err)

	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, _, err := a.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chair v2", got.Name)
	assert.Equal(t, 0, got.StockQuantity)
}

func TestFindByIDMissing(t *testing.T) {
	a := newProducts(t)

	got, found, err := a.FindByID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, got.ID)
}

func TestDeleteAndExists(t *testing.T) {
	ctx := context.Background()
	a := newProducts(t)

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		p, err := a.Save(ctx, models.Product{Name: name, Price: 1})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	exists, err := a.ExistsByID(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, a.DeleteByID(ctx, ids[0]))
	exists, err = a.ExistsByID(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, exists)

	all, err := a.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, a.DeleteAll(ctx))
	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReadOnlyWrapper(t *testing.T) {
	ctx := context.Background()
	readOnly := false
	a := store.NewReadOnly[models.Product, string](newProducts(t), func() bool { return readOnly })

	p, err := a.Save(ctx, models.Product{Name: "ok", Price: 1})
	require.NoError(t, err)

	readOnly = true
	_, err = a.Save(ctx, models.Product{Name: "blocked", Price: 1})
	require.Error(t, err)
	require.Error(t, a.DeleteByID(ctx, p.ID))
	require.Error(t, a.DeleteAll(ctx))

	// reads keep working
	_, found, err := a.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, found)

	readOnly = false
	require.NoError(t, a.DeleteByID(ctx, p.ID))
}
