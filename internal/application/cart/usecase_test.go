package cart_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pedidos-api/internal/application/cart"
	"github.com/jhoicas/pedidos-api/internal/application/inventory"
	"github.com/jhoicas/pedidos-api/internal/domain"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/infrastructure/memory"
	"github.com/jhoicas/pedidos-api/pkg/locks"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tests del agregador de carritos: reemplazo de cantidad en duplicados,
// vencimiento por TTL y validación contra inventario.
// ──────────────────────────────────────────────────────────────────────────────

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newFixture(t *testing.T) (*cart.UseCase, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()
	engine := inventory.NewEngine(store.Products(), store.Movements(), store.AdminAudit(),
		locks.NewRegistry(), logger.NewNop())
	uc := cart.NewUseCase(store.Carts(), engine, logger.NewNop(), 24*time.Hour).
		WithClock(clock.Now)

	require.NoError(t, store.Products().Create(context.Background(), &entity.Product{
		MerchantID: "m1", ProductID: "p1", Name: "tomate",
		Price: decimal.NewFromInt(25), StockQty: decimal.NewFromInt(10), Unit: "kg",
	}))
	return uc, store, clock
}

func tomatoes(qty int64) entity.LineItem {
	return entity.LineItem{
		ProductID: "p1", Name: "tomate",
		Quantity: decimal.NewFromInt(qty), UnitPrice: decimal.NewFromInt(25), Unit: "kg",
	}
}

func TestAddItem_DuplicadoReemplazaCantidad(t *testing.T) {
	uc, _, _ := newFixture(t)

	_, err := uc.AddItem(context.Background(), "conv-1", tomatoes(3))
	require.NoError(t, err)

	// "agrega 3 tomates" otra vez: queda 3, no 6.
	c, err := uc.AddItem(context.Background(), "conv-1", tomatoes(3))
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.True(t, c.Items[0].Quantity.Equal(decimal.NewFromInt(3)),
		"agregar un producto ya presente reemplaza la cantidad, no la acumula")
}

func TestAddItem_ProductosDistintosSeAcumulan(t *testing.T) {
	uc, _, _ := newFixture(t)

	_, err := uc.AddItem(context.Background(), "conv-1", tomatoes(3))
	require.NoError(t, err)
	c, err := uc.AddItem(context.Background(), "conv-1", entity.LineItem{
		ProductID: "p2", Name: "cebolla",
		Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(10), Unit: "kg",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, c.UniqueItems())
	assert.True(t, c.Total().Equal(decimal.NewFromInt(95)), "3*25 + 2*10")
}

func TestUpdateQuantity_CeroElimina(t *testing.T) {
	uc, _, _ := newFixture(t)

	_, err := uc.AddItem(context.Background(), "conv-1", tomatoes(3))
	require.NoError(t, err)

	c, err := uc.UpdateQuantity(context.Background(), "conv-1", "p1", decimal.Zero)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestUpdateQuantity_AusenteEsNotFound(t *testing.T) {
	uc, _, _ := newFixture(t)

	_, err := uc.UpdateQuantity(context.Background(), "conv-1", "p9", decimal.NewFromInt(2))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetOrCreate_VencidoSeRecreaVacio(t *testing.T) {
	uc, _, clock := newFixture(t)

	_, err := uc.AddItem(context.Background(), "conv-1", tomatoes(3))
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)

	c, err := uc.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Empty(t, c.Items, "un carrito vencido se descarta y se recrea vacío")
}

func TestClear_EliminaElCarrito(t *testing.T) {
	uc, _, _ := newFixture(t)

	_, err := uc.AddItem(context.Background(), "conv-1", tomatoes(3))
	require.NoError(t, err)
	require.NoError(t, uc.Clear(context.Background(), "conv-1"))

	snap, err := uc.Snapshot(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.True(t, snap.Total.IsZero())
}

func TestValidateWithInventory_ReportaFaltantes(t *testing.T) {
	uc, _, _ := newFixture(t)

	_, err := uc.AddItem(context.Background(), "conv-1", tomatoes(15))
	require.NoError(t, err)

	ok, issues, err := uc.ValidateWithInventory(context.Background(), "conv-1", "m1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "tomate")
}

func TestValidateWithInventory_CarritoVacio(t *testing.T) {
	uc, _, _ := newFixture(t)

	ok, issues, err := uc.ValidateWithInventory(context.Background(), "conv-1", "m1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, issues, "el carrito está vacío")
}

func TestSnapshot_Totales(t *testing.T) {
	uc, _, _ := newFixture(t)

	_, err := uc.AddItem(context.Background(), "conv-1", tomatoes(3))
	require.NoError(t, err)

	snap, err := uc.Snapshot(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", snap.ConversationID)
	assert.Equal(t, 3, snap.ItemCount)
	assert.Equal(t, 1, snap.UniqueItems)
	assert.True(t, snap.Total.Equal(decimal.NewFromInt(75)))
}
