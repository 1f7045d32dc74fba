package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pedidos-api/internal/application/inventory"
	"github.com/jhoicas/pedidos-api/internal/domain"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
	"github.com/jhoicas/pedidos-api/internal/infrastructure/memory"
	"github.com/jhoicas/pedidos-api/pkg/locks"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tests del motor de inventario: atomicidad bajo concurrencia, stock nunca
// negativo, rollback exacto de lotes y auditoría de ajustes administrativos.
// ──────────────────────────────────────────────────────────────────────────────

func newEngine(t *testing.T) (*inventory.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	engine := inventory.NewEngine(store.Products(), store.Movements(), store.AdminAudit(),
		locks.NewRegistry(), logger.NewNop())
	return engine, store
}

func seedProduct(t *testing.T, store *memory.Store, productID string, stock int64) {
	t.Helper()
	err := store.Products().Create(context.Background(), &entity.Product{
		MerchantID: "m1",
		ProductID:  productID,
		Name:       "producto " + productID,
		Price:      decimal.NewFromInt(100),
		StockQty:   decimal.NewFromInt(stock),
		Unit:       "piece",
	})
	require.NoError(t, err)
}

func stockOf(t *testing.T, engine *inventory.Engine, productID string) decimal.Decimal {
	t.Helper()
	qty, exists, err := engine.GetStock(context.Background(), "m1", productID)
	require.NoError(t, err)
	require.True(t, exists, "el producto sembrado debe existir")
	return qty
}

func TestUpdateQuantity_ConcurrenteNuncaNegativo(t *testing.T) {
	engine, store := newEngine(t)
	seedProduct(t, store, "p1", 10)

	// 20 deducciones concurrentes de 1 sobre stock 10: exactamente 10 deben
	// tener éxito y el stock final debe ser 0, jamás negativo.
	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := engine.DeductStock(context.Background(), "m1", "p1", decimal.NewFromInt(1), entity.RoleMerchant)
			require.NoError(t, err)
			if ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, successes, "solo deben tener éxito tantas deducciones como stock había")
	assert.True(t, stockOf(t, engine, "p1").IsZero(), "el stock final debe ser exactamente cero")
}

func TestUpdateQuantity_InsuficienteNoEscribe(t *testing.T) {
	engine, store := newEngine(t)
	seedProduct(t, store, "p1", 3)

	ok, err := engine.DeductStock(context.Background(), "m1", "p1", decimal.NewFromInt(4), entity.RoleMerchant)

	require.NoError(t, err, "stock insuficiente no es un error, es un fallo estructurado")
	assert.False(t, ok)
	assert.True(t, stockOf(t, engine, "p1").Equal(decimal.NewFromInt(3)),
		"el stock no debe cambiar tras un intento insuficiente")
}

func TestUpdateQuantity_RegistraMovimiento(t *testing.T) {
	engine, store := newEngine(t)
	seedProduct(t, store, "p1", 10)

	ok, err := engine.DeductStock(context.Background(), "m1", "p1", decimal.NewFromInt(4), entity.RoleMerchant)
	require.NoError(t, err)
	require.True(t, ok)

	movs, err := store.Movements().ListByProduct(context.Background(), "m1", "p1", 10)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementDeduction, movs[0].Kind)
	assert.True(t, movs[0].Delta.Equal(decimal.NewFromInt(-4)), "el delta se registra con signo")
	assert.True(t, movs[0].OldQty.Equal(decimal.NewFromInt(10)))
	assert.True(t, movs[0].NewQty.Equal(decimal.NewFromInt(6)))
}

func TestBatchDeduct_TodoONada(t *testing.T) {
	engine, store := newEngine(t)
	seedProduct(t, store, "p1", 10)
	seedProduct(t, store, "p2", 2)
	seedProduct(t, store, "p3", 50)

	items := []entity.LineItem{
		{ProductID: "p1", Name: "producto p1", Quantity: decimal.NewFromInt(5)},
		{ProductID: "p2", Name: "producto p2", Quantity: decimal.NewFromInt(3)}, // insuficiente
		{ProductID: "p3", Name: "producto p3", Quantity: decimal.NewFromInt(1)},
	}
	ok, results := engine.BatchDeduct(context.Background(), "m1", items, entity.RoleMerchant)

	assert.False(t, ok, "el lote debe fallar si un ítem no alcanza")
	// Todos los productos deben quedar exactamente en su valor previo.
	assert.True(t, stockOf(t, engine, "p1").Equal(decimal.NewFromInt(10)), "p1 debe restaurarse al valor previo")
	assert.True(t, stockOf(t, engine, "p2").Equal(decimal.NewFromInt(2)))
	assert.True(t, stockOf(t, engine, "p3").Equal(decimal.NewFromInt(50)), "p3 nunca se intentó y no debe cambiar")

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Reason, "stock insuficiente")
	assert.False(t, results[2].Success)
	assert.Equal(t, "lote detenido", results[2].Reason)
}

func TestBatchDeduct_DuplicadoSinIntentarSeReporta(t *testing.T) {
	engine, store := newEngine(t)
	seedProduct(t, store, "p1", 10)
	seedProduct(t, store, "p2", 2)

	// p1 aparece dos veces y el corte ocurre entre ambas apariciones: la
	// segunda jamás se intentó y debe reportarse así, no como intentada.
	items := []entity.LineItem{
		{ProductID: "p1", Name: "producto p1", Quantity: decimal.NewFromInt(5)},
		{ProductID: "p2", Name: "producto p2", Quantity: decimal.NewFromInt(3)}, // insuficiente
		{ProductID: "p1", Name: "producto p1", Quantity: decimal.NewFromInt(2)},
	}
	ok, results := engine.BatchDeduct(context.Background(), "m1", items, entity.RoleMerchant)

	assert.False(t, ok)
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.False(t, results[2].Success)
	assert.Equal(t, "lote detenido", results[2].Reason,
		"la aparición repetida de p1 tras el corte cuenta como no intentada")
	assert.True(t, stockOf(t, engine, "p1").Equal(decimal.NewFromInt(10)),
		"se compensa exactamente la primera aparición, una sola vez")
}

func TestBatchDeduct_ExitosoDeduceTodo(t *testing.T) {
	engine, store := newEngine(t)
	seedProduct(t, store, "p1", 10)
	seedProduct(t, store, "p2", 5)

	items := []entity.LineItem{
		{ProductID: "p1", Name: "producto p1", Quantity: decimal.NewFromInt(4)},
		{ProductID: "p2", Name: "producto p2", Quantity: decimal.NewFromInt(5)},
	}
	ok, results := engine.BatchDeduct(context.Background(), "m1", items, entity.RoleMerchant)

	assert.True(t, ok)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.True(t, stockOf(t, engine, "p1").Equal(decimal.NewFromInt(6)))
	assert.True(t, stockOf(t, engine, "p2").IsZero())
}

func TestAdjustStockAdmin_FijaValorYAudita(t *testing.T) {
	engine, store := newEngine(t)
	seedProduct(t, store, "p1", 7)

	ok, err := engine.AdjustStockAdmin(context.Background(), "m1", "p1",
		decimal.NewFromInt(42), "admin@local", "conteo físico")
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, stockOf(t, engine, "p1").Equal(decimal.NewFromInt(42)))

	actions := store.AdminActions()
	require.Len(t, actions, 1)
	assert.Equal(t, "admin@local", actions[0].AdminUser)
	assert.Equal(t, "adjust_stock", actions[0].Action)
	assert.Equal(t, "7", actions[0].Details["old_stock"])
	assert.Equal(t, "42", actions[0].Details["new_stock"])

	movs, err := store.Movements().ListByProduct(context.Background(), "m1", "p1", 10)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementAdminAdjustment, movs[0].Kind)
}

func TestAdjustStockAdmin_SinUsuarioFalla(t *testing.T) {
	engine, store := newEngine(t)
	seedProduct(t, store, "p1", 7)

	_, err := engine.AdjustStockAdmin(context.Background(), "m1", "p1", decimal.NewFromInt(1), "", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// lostWriteRepo simula un store que acepta la escritura pero no la persiste.
type lostWriteRepo struct {
	repository.ProductRepository
}

func (r *lostWriteRepo) UpdateStock(context.Context, string, string, decimal.Decimal) error {
	return nil // la escritura se pierde en silencio
}

// stallingRepo bloquea UpdateStock hasta que se libere el canal.
type stallingRepo struct {
	repository.ProductRepository
	release chan struct{}
}

func (r *stallingRepo) UpdateStock(ctx context.Context, merchantID, productID string, qty decimal.Decimal) error {
	<-r.release
	return r.ProductRepository.UpdateStock(ctx, merchantID, productID, qty)
}

func TestUpdateQuantity_StoreColgadoRetieneElLock(t *testing.T) {
	store := memory.NewStore()
	stalled := &stallingRepo{ProductRepository: store.Products(), release: make(chan struct{})}
	engine := inventory.NewEngine(stalled, store.Movements(), store.AdminAudit(),
		locks.NewRegistry(), logger.NewNop())

	require.NoError(t, stalled.Create(context.Background(), &entity.Product{
		MerchantID: "m1", ProductID: "p1", Name: "producto p1",
		StockQty: decimal.NewFromInt(10), Unit: "piece",
	}))

	first := make(chan struct{})
	go func() {
		_, _ = engine.DeductStock(context.Background(), "m1", "p1", decimal.NewFromInt(1), entity.RoleMerchant)
		close(first)
	}()

	second := make(chan struct{})
	go func() {
		// Debe esperar: el lock del producto lo retiene la operación colgada.
		_, _ = engine.DeductStock(context.Background(), "m1", "p1", decimal.NewFromInt(1), entity.RoleMerchant)
		close(second)
	}()

	select {
	case <-second:
		t.Fatal("la segunda operación no debe completar mientras el store está colgado")
	case <-time.After(100 * time.Millisecond):
	}

	close(stalled.release)
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("la primera operación no completó tras liberar el store")
	}
	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("la segunda operación no completó tras liberar el store")
	}
}

func TestUpdateQuantity_VerificacionDetectaEscrituraPerdida(t *testing.T) {
	store := memory.NewStore()
	broken := &lostWriteRepo{ProductRepository: store.Products()}
	engine := inventory.NewEngine(broken, store.Movements(), store.AdminAudit(),
		locks.NewRegistry(), logger.NewNop())

	require.NoError(t, broken.Create(context.Background(), &entity.Product{
		MerchantID: "m1", ProductID: "p1", Name: "producto p1",
		StockQty: decimal.NewFromInt(10), Unit: "piece",
	}))

	ok, err := engine.DeductStock(context.Background(), "m1", "p1", decimal.NewFromInt(2), entity.RoleMerchant)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrStockVerification,
		"una escritura que no aterriza debe detectarse al releer, sin reintento")

	// Sin movimiento en la bitácora: la verificación falló antes de registrar.
	movs, merr := store.Movements().ListByProduct(context.Background(), "m1", "p1", 10)
	require.NoError(t, merr)
	assert.Empty(t, movs)
}
