package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pedidos-api/internal/application/cart"
	"github.com/jhoicas/pedidos-api/internal/application/inventory"
	"github.com/jhoicas/pedidos-api/internal/application/order"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/infrastructure/memory"
	httpRouter "github.com/jhoicas/pedidos-api/internal/interfaces/http"
	"github.com/jhoicas/pedidos-api/pkg/locks"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tests del API HTTP: mapeo de errores de dominio a códigos de estado y flujo
// feliz crear → aceptar → completar.
// ──────────────────────────────────────────────────────────────────────────────

func newApp(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	log := logger.NewNop()

	engine := inventory.NewEngine(store.Products(), store.Movements(), store.AdminAudit(),
		locks.NewRegistry(), log)
	orderUC := order.NewUseCase(store.Orders(), store.Merchants(), store.AdminAudit(), engine,
		locks.NewRegistry(), nil, nil, nil, log, 24*time.Hour)
	cartUC := cart.NewUseCase(store.Carts(), engine, log, 24*time.Hour)

	app := fiber.New()
	httpRouter.Router(app, httpRouter.RouterDeps{
		OrderUC: orderUC,
		CartUC:  cartUC,
		Engine:  engine,
		Alerts:  store.Alerts(),
	})

	require.NoError(t, store.Merchants().Create(context.Background(), &entity.Merchant{
		MerchantID: "m1", Name: "Tienda Central",
	}))
	require.NoError(t, store.Products().Create(context.Background(), &entity.Product{
		MerchantID: "m1", ProductID: "p1", Name: "tomate",
		Price: decimal.NewFromInt(25), StockQty: decimal.NewFromInt(10), Unit: "kg",
	}))
	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func createOrderHTTP(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/orders", fiber.Map{
		"merchant_id":    "m1",
		"customer_phone": "+5215559999999",
		"items": []fiber.Map{{
			"product_id": "p1", "product_name": "tomate",
			"quantity": "4", "unit_price": "25", "unit": "kg",
		}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out struct {
		OrderID string `json:"order_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.OrderID)
	return out.OrderID
}

func TestAPI_FlujoFeliz(t *testing.T) {
	app, _ := newApp(t)
	orderID := createOrderHTTP(t, app)

	resp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/orders/%s/accept", orderID),
		fiber.Map{"merchant_id": "m1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/orders/%s/complete", orderID),
		fiber.Map{"merchant_id": "m1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var o entity.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&o))
	assert.Equal(t, entity.StatusCompleted, o.Status)
}

func TestAPI_PedidoInexistenteEs404(t *testing.T) {
	app, _ := newApp(t)
	resp := doJSON(t, app, http.MethodGet, "/api/orders/ORD-NOEXISTE", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CrearSinItemsEs400(t *testing.T) {
	app, _ := newApp(t)
	resp := doJSON(t, app, http.MethodPost, "/api/orders", fiber.Map{
		"merchant_id":    "m1",
		"customer_phone": "+5215559999999",
		"items":          []fiber.Map{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_TransicionIlegalEs409(t *testing.T) {
	app, _ := newApp(t)
	orderID := createOrderHTTP(t, app)

	// Completar sin aceptar: transición ilegal.
	resp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/orders/%s/complete", orderID),
		fiber.Map{"merchant_id": "m1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_OtroComercioEs403(t *testing.T) {
	app, _ := newApp(t)
	orderID := createOrderHTTP(t, app)

	resp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/orders/%s/accept", orderID),
		fiber.Map{"merchant_id": "m2"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_StockInsuficienteEs409(t *testing.T) {
	app, store := newApp(t)
	orderID := createOrderHTTP(t, app)

	// Vaciar el stock antes de aceptar.
	require.NoError(t, store.Products().UpdateStock(context.Background(), "m1", "p1", decimal.NewFromInt(1)))

	resp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/orders/%s/accept", orderID),
		fiber.Map{"merchant_id": "m1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_CarritoAgregarYConsultar(t *testing.T) {
	app, _ := newApp(t)

	resp := doJSON(t, app, http.MethodPost, "/api/carts/conv-1/items", fiber.Map{
		"item": fiber.Map{
			"product_id": "p1", "product_name": "tomate",
			"quantity": "3", "unit_price": "25", "unit": "kg",
		},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/carts/conv-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap struct {
		Total       decimal.Decimal `json:"total"`
		UniqueItems int             `json:"unique_items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, 1, snap.UniqueItems)
	assert.True(t, snap.Total.Equal(decimal.NewFromInt(75)))
}

func TestAPI_AjusteAdminDeStock(t *testing.T) {
	app, _ := newApp(t)

	resp := doJSON(t, app, http.MethodPut, "/api/admin/merchants/m1/products/p1/stock", fiber.Map{
		"new_stock": "42", "admin_user": "admin@local", "reason": "conteo",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/merchants/m1/products/p1/stock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		StockQty decimal.Decimal `json:"stock_qty"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.StockQty.Equal(decimal.NewFromInt(42)))
}
