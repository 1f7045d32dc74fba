package rules_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pedidos-api/internal/application/rules"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/infrastructure/memory"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tests del evaluador de reglas: alerta de pedido grande, alerta de stock
// bajo post-aceptación y cooldown por producto.
// ──────────────────────────────────────────────────────────────────────────────

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *fakeNotifier) SendText(_ context.Context, _, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func newEngine(t *testing.T) (*rules.Engine, *memory.Store, *fakeNotifier) {
	t.Helper()
	store := memory.NewStore()
	notifier := &fakeNotifier{}
	engine := rules.NewEngine(store.Products(), store.Merchants(), store.Alerts(),
		notifier, logger.NewNop(), 10000)

	require.NoError(t, store.Merchants().Create(context.Background(), &entity.Merchant{
		MerchantID: "m1", Name: "Tienda Central", Phone: "+5215550000001",
		LowStockThreshold: decimal.NewFromInt(5),
	}))
	return engine, store, notifier
}

func seedProduct(t *testing.T, store *memory.Store, stock int64) {
	t.Helper()
	require.NoError(t, store.Products().Create(context.Background(), &entity.Product{
		MerchantID: "m1", ProductID: "p1", Name: "tomate",
		Price: decimal.NewFromInt(25), StockQty: decimal.NewFromInt(stock), Unit: "kg",
	}))
}

func orderWith(total int64) *entity.Order {
	return &entity.Order{
		OrderID:    "ORD-TEST",
		MerchantID: "m1",
		Items: []entity.LineItem{{
			ProductID: "p1", Name: "tomate",
			Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(total),
		}},
		TotalAmount: decimal.NewFromInt(total),
	}
}

func TestEvaluateOrder_PedidoGrandeAlerta(t *testing.T) {
	engine, store, notifier := newEngine(t)
	seedProduct(t, store, 100)

	require.NoError(t, engine.EvaluateOrder(context.Background(), orderWith(15000)))

	assert.Equal(t, 1, notifier.count())
	alerts, err := store.Alerts().ListActive(context.Background(), "m1", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "large_order", alerts[0].Kind)
}

func TestEvaluateOrder_PedidoNormalSinAlerta(t *testing.T) {
	engine, store, notifier := newEngine(t)
	seedProduct(t, store, 100)

	require.NoError(t, engine.EvaluateOrder(context.Background(), orderWith(500)))

	assert.Zero(t, notifier.count())
}

func TestEvaluateOrder_StockBajoAlerta(t *testing.T) {
	engine, store, notifier := newEngine(t)
	seedProduct(t, store, 3) // bajo el umbral de 5 del comercio

	require.NoError(t, engine.EvaluateOrder(context.Background(), orderWith(500)))

	assert.Equal(t, 1, notifier.count())
	alerts, err := store.Alerts().ListActive(context.Background(), "m1", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "low_stock", alerts[0].Kind)
	assert.Equal(t, "p1", alerts[0].ProductID)
	assert.True(t, alerts[0].CurrentStock.Equal(decimal.NewFromInt(3)))
}

func TestEvaluateOrder_CooldownPorProducto(t *testing.T) {
	engine, store, notifier := newEngine(t)
	seedProduct(t, store, 3)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := base
	var mu sync.Mutex
	engine.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})

	require.NoError(t, engine.EvaluateOrder(context.Background(), orderWith(500)))
	require.NoError(t, engine.EvaluateOrder(context.Background(), orderWith(500)))
	assert.Equal(t, 1, notifier.count(), "dentro del cooldown no se repite la alerta")

	mu.Lock()
	now = base.Add(7 * time.Hour)
	mu.Unlock()

	require.NoError(t, engine.EvaluateOrder(context.Background(), orderWith(500)))
	assert.Equal(t, 2, notifier.count(), "pasado el cooldown vuelve a alertar")
}
