package scheduler_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pedidos-api/internal/application/inventory"
	"github.com/jhoicas/pedidos-api/internal/application/order"
	"github.com/jhoicas/pedidos-api/internal/application/scheduler"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/infrastructure/memory"
	"github.com/jhoicas/pedidos-api/pkg/locks"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tests del scheduler: expiración automática tras el TTL y recordatorios al
// comercio en los offsets configurados, nunca enviados dos veces.
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

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[string][]string // phone -> textos
}

func (n *fakeNotifier) SendText(_ context.Context, phone, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = make(map[string][]string)
	}
	n.sent[phone] = append(n.sent[phone], text)
	return nil
}

func (n *fakeNotifier) to(phone string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent[phone]...)
}

const (
	merchantPhone = "+5215550000001"
	customerPhone = "+5215559999999"
)

type fixture struct {
	sched    *scheduler.Scheduler
	uc       *order.UseCase
	store    *memory.Store
	notifier *fakeNotifier
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()
	notifier := &fakeNotifier{}

	engine := inventory.NewEngine(store.Products(), store.Movements(), store.AdminAudit(),
		locks.NewRegistry(), logger.NewNop())
	uc := order.NewUseCase(store.Orders(), store.Merchants(), store.AdminAudit(), engine,
		locks.NewRegistry(), notifier, nil, nil, logger.NewNop(), 24*time.Hour).
		WithClock(clock.Now)
	sched := scheduler.New(uc, store.Orders(), store.Merchants(), notifier, logger.NewNop(),
		5*time.Minute, []int{2, 6, 24}).
		WithClock(clock.Now)

	require.NoError(t, store.Merchants().Create(context.Background(), &entity.Merchant{
		MerchantID: "m1", Name: "Tienda Central", Phone: merchantPhone,
	}))
	require.NoError(t, store.Products().Create(context.Background(), &entity.Product{
		MerchantID: "m1", ProductID: "p1", Name: "tomate",
		Price: decimal.NewFromInt(25), StockQty: decimal.NewFromInt(10), Unit: "kg",
	}))

	return &fixture{sched: sched, uc: uc, store: store, notifier: notifier, clock: clock}
}

func (f *fixture) createOrder(t *testing.T) *entity.Order {
	t.Helper()
	o, err := f.uc.Create(context.Background(), order.CreateInput{
		MerchantID:    "m1",
		CustomerPhone: customerPhone,
		Items: []entity.LineItem{{
			ProductID: "p1", Name: "tomate",
			Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(25), Unit: "kg",
		}},
	})
	require.NoError(t, err)
	return o
}

func TestRunCycle_ExpiraTrasTTL(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)

	// 25 horas después: el pedido superó su TTL de 24h.
	f.clock.Advance(25 * time.Hour)
	f.sched.RunCycle(context.Background())

	fresh, err := f.uc.Get(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusExpired, fresh.Status)

	assert.Len(t, f.notifier.to(customerPhone), 1, "el cliente recibe exactamente un aviso")
	assert.Len(t, f.notifier.to(merchantPhone), 1, "el comercio recibe exactamente un aviso")

	// Un segundo ciclo no duplica nada: el pedido ya no está pendiente.
	f.sched.RunCycle(context.Background())
	assert.Len(t, f.notifier.to(customerPhone), 1)
	assert.Len(t, f.notifier.to(merchantPhone), 1)
}

func TestRunCycle_NoExpiraAntesDelTTL(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)

	f.clock.Advance(23 * time.Hour)
	f.sched.RunCycle(context.Background())

	fresh, err := f.uc.Get(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, fresh.Status)
}

func TestRunCycle_RecordatorioUnaSolaVez(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)

	// 3 horas: el offset de 2h ya venció, el de 6h no.
	f.clock.Advance(3 * time.Hour)
	f.sched.RunCycle(context.Background())

	msgs := f.notifier.to(merchantPhone)
	require.Len(t, msgs, 1, "un solo recordatorio para el offset de 2h")
	assert.Contains(t, msgs[0], o.OrderID)
	assert.Contains(t, msgs[0], "2h")

	// Ciclos repetidos a la misma hora: nada nuevo, el offset ya está marcado.
	f.sched.RunCycle(context.Background())
	f.sched.RunCycle(context.Background())
	assert.Len(t, f.notifier.to(merchantPhone), 1, "jamás se envía dos veces el mismo offset")

	fresh, err := f.uc.Get(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, fresh.SentReminders)
}

func TestRunCycle_OffsetsProgresivos(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t)

	f.clock.Advance(3 * time.Hour)
	f.sched.RunCycle(context.Background())
	require.Len(t, f.notifier.to(merchantPhone), 1)

	// 7 horas: toca el offset de 6h. Un recordatorio por ciclo como máximo.
	f.clock.Advance(4 * time.Hour)
	f.sched.RunCycle(context.Background())
	msgs := f.notifier.to(merchantPhone)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "6h")
}

func TestRunCycle_SaltoDirectoEnviaUnoPorCiclo(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t)

	// 7 horas de golpe: los offsets 2h y 6h están vencidos, pero cada ciclo
	// envía a lo sumo uno (el menor pendiente).
	f.clock.Advance(7 * time.Hour)
	f.sched.RunCycle(context.Background())
	msgs := f.notifier.to(merchantPhone)
	require.Len(t, msgs, 1)
	assert.True(t, strings.Contains(msgs[0], "2h"), "primero el offset menor")

	f.sched.RunCycle(context.Background())
	msgs = f.notifier.to(merchantPhone)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "6h")
}

func TestMarkReminderSent_SemanticaDeConjunto(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)

	added, err := f.store.Orders().MarkReminderSent(context.Background(), o.OrderID, 2)
	require.NoError(t, err)
	assert.True(t, added, "la primera marca agrega el offset")

	added, err = f.store.Orders().MarkReminderSent(context.Background(), o.OrderID, 2)
	require.NoError(t, err)
	assert.False(t, added, "la segunda marca del mismo offset no agrega nada")
}

func TestStartStop_CicloInmediatoYParadaLimpia(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	f.clock.Advance(25 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sched.Start(ctx)
	// Start corre un ciclo inmediato; darle un instante antes de parar.
	deadline := time.After(2 * time.Second)
	for {
		fresh, err := f.uc.Get(context.Background(), o.OrderID)
		require.NoError(t, err)
		if fresh.Status == entity.StatusExpired {
			break
		}
		select {
		case <-deadline:
			t.Fatal("el ciclo inmediato no expiró el pedido a tiempo")
		case <-time.After(10 * time.Millisecond):
		}
	}
	f.sched.Stop()
}
