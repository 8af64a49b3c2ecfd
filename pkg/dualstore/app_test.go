package dualstore

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/dualstore/pkg/config"
	"github.com/surrealdb/dualstore/pkg/models"
	"github.com/surrealdb/dualstore/pkg/reconcile"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Primary.Datasource.Driver = config.DriverMemory
	cfg.Secondary.Datasource.Driver = config.DriverMemory
	cfg.Router.AdapterTimeout = time.Second
	cfg.Log.Level = "error"
	return cfg
}

func newTestApp(t *testing.T, mutate ...func(*config.Config)) *App {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}
	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

type client struct {
	t       *testing.T
	handler http.Handler
}

func (c client) do(method, path, caller string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(callerHeader, caller)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestParse(t *testing.T) {
	cmd, cfg, err := Parse([]string{"-port", "9000", "-read-only", "run", "-migrate"})
	require.NoError(t, err)
	assert.Equal(t, &RunCommand{Migrate: true}, cmd)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.ReadOnly)

	cmd, _, err = Parse([]string{"sync", "-direction", "reverse", "-entity", "products"})
	require.NoError(t, err)
	sync, ok := cmd.(*SyncCommand)
	require.True(t, ok)
	assert.Equal(t, DirectionReverse, sync.Direction)
	assert.Equal(t, "products", sync.Entity)

	cmd, cfg, err = Parse([]string{"-primary-only", "verify"})
	require.NoError(t, err)
	assert.Equal(t, "verify", cmd.Name())
	assert.False(t, cfg.Secondary.Datasource.Enabled)

	cmd, _, err = Parse([]string{"migrate"})
	require.NoError(t, err)
	assert.Equal(t, "migrate", cmd.Name())

	for name, args := range map[string][]string{
		"no subcommand":        {},
		"unknown subcommand":   {"serve"},
		"bad direction":        {"sync", "-direction", "sideways"},
		"entity with both":     {"sync", "-entity", "products"},
		"port out of range":    {"-port", "70000", "run"},
		"unknown global flag":  {"-verbose", "run"},
		"unknown command flag": {"migrate", "-force"},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := Parse(args)
			assert.Error(t, err)
		})
	}
}

func TestProductEndpoints(t *testing.T) {
	app := newTestApp(t)
	c := client{t: t, handler: app.Handler()}

	rec := c.do("POST", "/api/products", "admin", map[string]any{"name": "Kettle", "price": 30, "stock_quantity": 3, "category": "kitchen"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Product](t, rec)
	require.NotEmpty(t, created.ID)

	rec = c.do("GET", "/api/products/"+created.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kettle", decode[models.Product](t, rec).Name)

	rec = c.do("GET", "/api/products?category=garden", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.Product](t, rec))

	rec = c.do("PUT", "/api/products/"+created.ID, "admin", map[string]any{"name": "Kettle XL", "price": 35, "stock_quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[models.Product](t, rec).StockQuantity)

	rec = c.do("POST", "/api/products", "admin", map[string]any{"price": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do("POST", "/api/products", "admin", map[string]any{"name": "x", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request payload", decode[map[string]string](t, rec)["error"])

	rec = c.do("DELETE", "/api/products/"+created.ID, "admin", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = c.do("GET", "/api/products/"+created.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartAndCheckoutEndpoints(t *testing.T) {
	app := newTestApp(t)
	c := client{t: t, handler: app.Handler()}

	rec := c.do("POST", "/api/users", "", map[string]any{"email": "ada@example.com", "name": "Ada"})
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode[models.User](t, rec)
	rec = c.do("POST", "/api/users", "", map[string]any{"email": "ada@example.com", "name": "Ada"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = c.do("GET", "/api/users/"+user.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do("POST", "/api/products", "admin", map[string]any{"name": "Mug", "price": 4.5, "stock_quantity": 10})
	require.Equal(t, http.StatusCreated, rec.Code)
	mug := decode[models.Product](t, rec)

	cartPath := "/api/users/" + user.ID + "/cart"
	rec = c.do("POST", cartPath, "", map[string]any{"productId": mug.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	item := decode[models.CartItem](t, rec)

	rec = c.do("PUT", cartPath+"/"+item.ID, "", map[string]any{"quantity": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[models.CartItem](t, rec).Quantity)

	rec = c.do("PUT", "/api/users/someone-else/cart/"+item.ID, "", map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do("GET", cartPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.CartItem](t, rec), 1)

	ordersPath := "/api/users/" + user.ID + "/orders"
	rec = c.do("POST", ordersPath, "", map[string]any{"shippingAddress": "1 Main St"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[struct {
		models.Order
		Items []models.OrderItem `json:"items"`
	}](t, rec)
	assert.InDelta(t, 18.0, order.TotalAmount, 0.001)
	assert.Len(t, order.Items, 1)

	rec = c.do("POST", ordersPath, "", map[string]any{"shippingAddress": "1 Main St"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.do("GET", ordersPath+"/"+order.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = c.do("GET", ordersPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = c.do("PUT", ordersPath+"/"+order.ID+"/status", "", map[string]any{"status": "shipped"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.OrderShipped, decode[models.Order](t, rec).Status)
	rec = c.do("PUT", ordersPath+"/"+order.ID+"/status", "", map[string]any{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do("DELETE", cartPath, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestReadOnlyMode(t *testing.T) {
	app := newTestApp(t)
	c := client{t: t, handler: app.Handler()}

	rec := c.do("POST", "/admin/read-only", "", map[string]any{"readOnly": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, app.IsReadOnly())

	rec = c.do("POST", "/api/products", "admin", map[string]any{"name": "Kettle", "price": 30})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Application is in read-only mode", decode[map[string]string](t, rec)["error"])

	rec = c.do("POST", "/admin/sync/bidirectional", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do("GET", "/api/products", "u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do("POST", "/admin/read-only", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do("POST", "/admin/read-only", "", map[string]any{"readOnly": false})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do("GET", "/admin/read-only", "", nil)
	assert.Equal(t, map[string]bool{"readOnly": false}, decode[map[string]bool](t, rec))
}

func TestAdminSyncAndConsistency(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)
	c := client{t: t, handler: app.Handler()}

	primary := app.repos.Products.Router().Primary()
	_, err := primary.Save(ctx, models.Product{ID: models.NewID(), Name: "Primary only"})
	require.NoError(t, err)

	rec := c.do("GET", "/admin/consistency/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[reconcile.ConsistencyReport](t, rec)
	assert.False(t, report.InSync)
	assert.Equal(t, "Inconsistency detected: Primary has 1 items, Secondary has 0 items", report.Message)

	rec = c.do("POST", "/admin/sync/bidirectional", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[reconcile.SyncResult](t, rec)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.PrimaryToSecondary)
	assert.Equal(t, "Sync completed successfully. Products: 1->0, Cart Items: 0->0, Users: 0->0, Orders: 0->0, Order Items: 0->0", result.Message)

	rec = c.do("GET", "/admin/consistency", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["consistent"])

	rec = c.do("GET", "/admin/sync/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["syncCount"])

	secondary := app.repos.Products.Router().Secondary()
	_, err = secondary.Save(ctx, models.Product{ID: models.NewID(), Name: "Secondary only"})
	require.NoError(t, err)
	rec = c.do("POST", "/admin/sync/products?direction=to_primary", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["syncedCount"])

	rec = c.do("POST", "/admin/sync/products?direction=upwards", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = c.do("POST", "/admin/sync/invoices", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = c.do("GET", "/admin/consistency/invoices", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecondaryDisabled(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) { cfg.Secondary.Datasource.Enabled = false })
	c := client{t: t, handler: app.Handler()}
	assert.False(t, app.IsSecondaryEnabled())

	rec := c.do("POST", "/admin/sync/bidirectional", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	result := decode[reconcile.SyncResult](t, rec)
	assert.False(t, result.Success)
	assert.Zero(t, result.PrimaryToSecondary+result.SecondaryToPrimary)
	assert.Equal(t, "Secondary database not available", result.Message)

	rec = c.do("GET", "/admin/consistency/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Secondary database not available", decode[reconcile.ConsistencyReport](t, rec).Message)

	rec = c.do("POST", "/api/products", "admin", map[string]any{"name": "Kettle", "price": 30})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = c.do("GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, false, health["secondaryEnabled"])
}

func TestFeatureFlagRouting(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)
	c := client{t: t, handler: app.Handler()}

	shadow := models.Product{ID: models.NewID(), Name: "Shadow"}
	_, err := app.repos.Products.Router().Secondary().Save(ctx, shadow)
	require.NoError(t, err)

	rec := c.do("GET", "/api/products/"+shadow.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do("PUT", "/admin/feature-flags/use-secondary", "", map[string]any{"value": true, "caller": "u2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do("GET", "/api/products/"+shadow.ID, "u2", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = c.do("GET", "/api/products/"+shadow.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do("GET", "/admin/feature-flags", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	features := decode[map[string]any](t, rec)["features"].(map[string]any)
	assert.Equal(t, true, features["use-secondary"])
	assert.Equal(t, true, features["premium-features"])

	rec = c.do("PUT", "/admin/feature-flags/beta-features", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPremiumProductsEndpoint(t *testing.T) {
	app := newTestApp(t)
	c := client{t: t, handler: app.Handler()}

	for _, stock := range []int{3, 0} {
		rec := c.do("POST", "/api/products", "admin", map[string]any{"name": "Kettle", "price": 30, "stock_quantity": stock})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := c.do("GET", "/api/products/premium", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Products  []models.Product `json:"products"`
		IsPremium bool             `json:"isPremium"`
	}](t, rec)
	assert.True(t, body.IsPremium)
	require.Len(t, body.Products, 1)
	assert.Equal(t, 3, body.Products[0].StockQuantity)

	rec = c.do("PUT", "/admin/feature-flags/premium-features", "", map[string]any{"value": false, "caller": "u2"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do("GET", "/api/products/premium", "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.do("PUT", "/admin/feature-flags/new-flow", "", map[string]any{"value": true, "caller": "u2"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do("GET", "/api/products", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Product](t, rec), 1)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	c := client{t: t, handler: app.Handler()}

	rec := c.do("POST", "/api/products", "admin", map[string]any{"name": "Kettle", "price": 30})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = c.do("GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dualstore_store_operations_total{entity="products",kind="write",result="success",side="secondary"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMainWithSQLite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DUALSTORE_PRIMARY_DATASOURCE_PATH", filepath.Join(dir, "primary.sqlite"))
	t.Setenv("DUALSTORE_SECONDARY_DATASOURCE_DRIVER", config.DriverSQLite)
	t.Setenv("DUALSTORE_SECONDARY_DATASOURCE_PATH", filepath.Join(dir, "secondary.sqlite"))
	t.Setenv("DUALSTORE_LOG_LEVEL", "error")
	ctx := context.Background()

	require.NoError(t, Main(ctx, []string{"migrate"}))

	cfg, err := config.Load("")
	require.NoError(t, err)
	app, err := New(cfg)
	require.NoError(t, err)
	_, err = app.repos.Products.Router().Primary().Save(ctx, models.Product{ID: models.NewID(), Name: "Kettle", Price: 30})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	var out bytes.Buffer
	err = verifyFromEnv(ctx, &out)
	assert.ErrorIs(t, err, ErrInconsistent)
	assert.Contains(t, out.String(), "Primary has 1 items")

	require.NoError(t, Main(ctx, []string{"sync"}))
	require.NoError(t, Main(ctx, []string{"verify"}))
	require.NoError(t, Main(ctx, []string{"sync", "-direction", "reverse", "-entity", "products"}))

	runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	require.NoError(t, Main(runCtx, []string{"-port", "0", "run"}))
}

// verifyFromEnv runs verify against the environment configuration.
func verifyFromEnv(ctx context.Context, out *bytes.Buffer) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	app, err := New(cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Verify(ctx, &VerifyCommand{Out: out})
}

func TestRespondServiceErrorHidesStoreErrors(t *testing.T) {
	app := newTestApp(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/products", nil)

	app.respondServiceError(rec, req, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), assert.AnError.Error()))
}
