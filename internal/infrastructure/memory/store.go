// Package memory implementa todos los puertos de persistencia sobre mapas en
// proceso. Es el backend por defecto en desarrollo y la base de los tests.
//
// Todas las lecturas devuelven copias profundas: ningún caller puede mutar el
// estado interno sin pasar por una escritura, que es lo que el patrón
// releer-y-verificar del motor de inventario presupone.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pedidos-api/internal/domain"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
)

// Store estado compartido de todos los repositorios en memoria.
type Store struct {
	mu        sync.RWMutex
	products  map[string]*entity.Product // merchantID:productID
	movements []*entity.StockMovement
	merchants map[string]*entity.Merchant
	orders    map[string]*entity.Order
	actions   []*entity.AdminAction
	alerts    []*entity.Alert
	carts     map[string]cartEntry
}

type cartEntry struct {
	cart      *entity.Cart
	expiresAt time.Time
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		products:  make(map[string]*entity.Product),
		merchants: make(map[string]*entity.Merchant),
		orders:    make(map[string]*entity.Order),
		carts:     make(map[string]cartEntry),
	}
}

func productKey(merchantID, productID string) string {
	return merchantID + ":" + productID
}

// ── Productos ────────────────────────────────────────────────────────────────

type productRepo struct{ s *Store }

// Products repositorio de productos.
func (s *Store) Products() repository.ProductRepository { return &productRepo{s} }

func (r *productRepo) Create(_ context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	r.s.products[productKey(p.MerchantID, p.ProductID)] = &cp
	return nil
}

func (r *productRepo) Get(_ context.Context, merchantID, productID string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[productKey(merchantID, productID)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *productRepo) GetByName(_ context.Context, merchantID, name string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.products {
		if p.MerchantID == merchantID && p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *productRepo) UpdateStock(_ context.Context, merchantID, productID string, qty decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productKey(merchantID, productID)]
	if !ok {
		return nil
	}
	p.StockQty = qty
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *productRepo) ListByMerchant(_ context.Context, merchantID string) ([]*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Product
	for _, p := range r.s.products {
		if p.MerchantID == merchantID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *productRepo) ListLowStock(_ context.Context, merchantID string, threshold decimal.Decimal) ([]*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Product
	for _, p := range r.s.products {
		if p.MerchantID != merchantID {
			continue
		}
		limit := threshold
		if limit.IsZero() && !p.ReorderLevel.IsZero() {
			limit = p.ReorderLevel
		}
		if p.StockQty.LessThanOrEqual(limit) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockQty.LessThan(out[j].StockQty) })
	return out, nil
}

// ── Movimientos ──────────────────────────────────────────────────────────────

type movementRepo struct{ s *Store }

// Movements bitácora de movimientos de stock.
func (s *Store) Movements() repository.MovementRepository { return &movementRepo{s} }

func (r *movementRepo) Append(_ context.Context, mov *entity.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *mov
	r.s.movements = append(r.s.movements, &cp)
	return nil
}

func (r *movementRepo) ListByProduct(_ context.Context, merchantID, productID string, limit int) ([]*entity.StockMovement, error) {
	return r.list(func(m *entity.StockMovement) bool {
		return m.MerchantID == merchantID && m.ProductID == productID
	}, limit)
}

func (r *movementRepo) ListByMerchant(_ context.Context, merchantID string, limit int) ([]*entity.StockMovement, error) {
	return r.list(func(m *entity.StockMovement) bool { return m.MerchantID == merchantID }, limit)
}

func (r *movementRepo) list(match func(*entity.StockMovement) bool, limit int) ([]*entity.StockMovement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.StockMovement
	// Más reciente primero.
	for i := len(r.s.movements) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if match(r.s.movements[i]) {
			cp := *r.s.movements[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ── Comercios ────────────────────────────────────────────────────────────────

type merchantRepo struct{ s *Store }

// Merchants repositorio de comercios.
func (s *Store) Merchants() repository.MerchantRepository { return &merchantRepo{s} }

func (r *merchantRepo) Create(_ context.Context, m *entity.Merchant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *m
	r.s.merchants[m.MerchantID] = &cp
	return nil
}

func (r *merchantRepo) Get(_ context.Context, merchantID string) (*entity.Merchant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.merchants[merchantID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *merchantRepo) List(_ context.Context) ([]*entity.Merchant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Merchant, 0, len(r.s.merchants))
	for _, m := range r.s.merchants {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MerchantID < out[j].MerchantID })
	return out, nil
}

// ── Pedidos ──────────────────────────────────────────────────────────────────

type orderRepo struct{ s *Store }

// Orders repositorio de pedidos.
func (s *Store) Orders() repository.OrderRepository { return &orderRepo{s} }

func copyOrder(o *entity.Order) *entity.Order {
	cp := *o
	cp.Items = append([]entity.LineItem(nil), o.Items...)
	cp.Timeline = append([]entity.TimelineEntry(nil), o.Timeline...)
	cp.SentReminders = append([]int(nil), o.SentReminders...)
	if o.ConfirmedAt != nil {
		t := *o.ConfirmedAt
		cp.ConfirmedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func (r *orderRepo) Create(_ context.Context, o *entity.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orders[o.OrderID] = copyOrder(o)
	return nil
}

func (r *orderRepo) GetByID(_ context.Context, orderID string) (*entity.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (r *orderRepo) ApplyTransition(_ context.Context, orderID string, patch entity.OrderPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: pedido %s", domain.ErrNotFound, orderID)
	}
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.InventoryDeducted != nil {
		o.InventoryDeducted = *patch.InventoryDeducted
	}
	if patch.ConfirmedAt != nil {
		t := *patch.ConfirmedAt
		o.ConfirmedAt = &t
	}
	if patch.CompletedAt != nil {
		t := *patch.CompletedAt
		o.CompletedAt = &t
	}
	if patch.DeclineReason != nil {
		o.DeclineReason = *patch.DeclineReason
	}
	if patch.CancelReason != nil {
		o.CancelReason = *patch.CancelReason
	}
	if patch.CancelledBy != nil {
		o.CancelledBy = *patch.CancelledBy
	}
	if patch.ApprovedByAdmin != nil {
		o.ApprovedByAdmin = *patch.ApprovedByAdmin
	}
	if patch.Timeline != nil {
		o.Timeline = append(o.Timeline, *patch.Timeline)
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *orderRepo) ListByMerchant(_ context.Context, merchantID string, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error) {
	return r.list(func(o *entity.Order) bool { return o.MerchantID == merchantID }, statuses, limit)
}

func (r *orderRepo) ListByCustomer(_ context.Context, customerPhone string, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error) {
	return r.list(func(o *entity.Order) bool { return o.CustomerPhone == customerPhone }, statuses, limit)
}

func (r *orderRepo) ListByStatuses(_ context.Context, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error) {
	return r.list(func(*entity.Order) bool { return true }, statuses, limit)
}

func (r *orderRepo) list(match func(*entity.Order) bool, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Order
	for _, o := range r.s.orders {
		if !match(o) {
			continue
		}
		if len(statuses) > 0 {
			ok := false
			for _, st := range statuses {
				if o.Status == st {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *orderRepo) MarkReminderSent(_ context.Context, orderID string, offsetHours int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return false, nil
	}
	for _, h := range o.SentReminders {
		if h == offsetHours {
			return false, nil
		}
	}
	o.SentReminders = append(o.SentReminders, offsetHours)
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

// ── Auditoría y alertas ──────────────────────────────────────────────────────

type auditRepo struct{ s *Store }

// AdminAudit registro de acciones administrativas.
func (s *Store) AdminAudit() repository.AdminAuditRepository { return &auditRepo{s} }

func (r *auditRepo) Record(_ context.Context, a *entity.AdminAction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *a
	if a.Details != nil {
		cp.Details = make(map[string]string, len(a.Details))
		for k, v := range a.Details {
			cp.Details[k] = v
		}
	}
	r.s.actions = append(r.s.actions, &cp)
	return nil
}

// AdminActions acciones registradas (para tests y endpoints admin).
func (s *Store) AdminActions() []*entity.AdminAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*entity.AdminAction(nil), s.actions...)
}

type alertRepo struct{ s *Store }

// Alerts repositorio de alertas.
func (s *Store) Alerts() repository.AlertRepository { return &alertRepo{s} }

func (r *alertRepo) Insert(_ context.Context, a *entity.Alert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *a
	r.s.alerts = append(r.s.alerts, &cp)
	return nil
}

func (r *alertRepo) ListActive(_ context.Context, merchantID string, limit int) ([]*entity.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Alert
	for i := len(r.s.alerts) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		a := r.s.alerts[i]
		if a.MerchantID == merchantID && !a.Acknowledged {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ── Carritos ─────────────────────────────────────────────────────────────────

type cartRepo struct{ s *Store }

// Carts repositorio de carritos con TTL emulado por timestamps.
func (s *Store) Carts() repository.CartRepository { return &cartRepo{s} }

func (r *cartRepo) Get(_ context.Context, conversationID string) (*entity.Cart, error) {
	r.s.mu.RLock()
	entry, ok := r.s.carts[conversationID]
	r.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if time.Now().UTC().After(entry.expiresAt) {
		r.s.mu.Lock()
		delete(r.s.carts, conversationID)
		r.s.mu.Unlock()
		return nil, nil
	}
	cp := *entry.cart
	cp.Items = append([]entity.LineItem(nil), entry.cart.Items...)
	return &cp, nil
}

func (r *cartRepo) Upsert(_ context.Context, c *entity.Cart, ttl time.Duration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	cp.Items = append([]entity.LineItem(nil), c.Items...)
	r.s.carts[c.ConversationID] = cartEntry{cart: &cp, expiresAt: time.Now().UTC().Add(ttl)}
	return nil
}

func (r *cartRepo) Delete(_ context.Context, conversationID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.carts, conversationID)
	return nil
}
