package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pedidos-api/internal/application/inventory"
	"github.com/jhoicas/pedidos-api/internal/application/ports"
	"github.com/jhoicas/pedidos-api/internal/domain"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
	"github.com/jhoicas/pedidos-api/pkg/locks"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

// UseCase máquina de estados de pedidos.
//
// Serializa las transiciones de cada pedido con un lock por clave
// "order:<id>" en un registro PROPIO, separado del registro de stock: el
// protocolo de aceptación emite devoluciones de stock mientras retiene el
// lock del pedido, y compartir tabla de shards podría colisionar ambas claves
// en el mismo mutex.
type UseCase struct {
	orders    repository.OrderRepository
	merchants repository.MerchantRepository
	audit     repository.AdminAuditRepository
	inv       *inventory.Engine
	locks     *locks.Registry
	notifier  ports.Notifier
	rules     ports.RuleEvaluator
	knowledge ports.KnowledgeIndexer
	log       *logger.Logger
	ttl       time.Duration
	now       func() time.Time
}

// NewUseCase construye la máquina de estados. orderLocks debe ser un registro
// distinto del que usa el motor de inventario.
func NewUseCase(
	orders repository.OrderRepository,
	merchants repository.MerchantRepository,
	audit repository.AdminAuditRepository,
	inv *inventory.Engine,
	orderLocks *locks.Registry,
	notifier ports.Notifier,
	rules ports.RuleEvaluator,
	knowledge ports.KnowledgeIndexer,
	log *logger.Logger,
	ttl time.Duration,
) *UseCase {
	return &UseCase{
		orders:    orders,
		merchants: merchants,
		audit:     audit,
		inv:       inv,
		locks:     orderLocks,
		notifier:  notifier,
		rules:     rules,
		knowledge: knowledge,
		log:       log,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock reemplaza el reloj (tests de expiración y recordatorios).
func (uc *UseCase) WithClock(now func() time.Time) *UseCase {
	uc.now = now
	return uc
}

func orderLockKey(orderID string) string {
	return "order:" + orderID
}

// newOrderID identificador legible con marca temporal y sufijo aleatorio.
func newOrderID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:12]
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102150405"), suffix)
}

// CreateInput datos para crear un pedido.
// DeclaredTotal es opcional; si difiere del total calculado a partir de los
// ítems, se loguea la discrepancia y se almacena el total calculado.
type CreateInput struct {
	ConversationID  string
	MerchantID      string
	CustomerPhone   string
	CustomerName    string
	DeliveryAddress string
	Items           []entity.LineItem
	DeclaredTotal   *decimal.Decimal
	Notes           string
}

// Create registra un pedido en estado PENDING con vencimiento now+TTL.
// No toca inventario: el stock se descuenta recién en la aceptación.
func (uc *UseCase) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	if in.MerchantID == "" || in.CustomerPhone == "" {
		return nil, fmt.Errorf("%w: merchant_id y customer_phone son obligatorios", domain.ErrInvalidInput)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: el pedido no tiene ítems", domain.ErrInvalidInput)
	}
	for _, it := range in.Items {
		if it.ProductID == "" || !it.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: ítem inválido (%s, cantidad %s)", domain.ErrInvalidInput, it.Name, it.Quantity)
		}
	}

	now := uc.now()
	order := &entity.Order{
		OrderID:         newOrderID(now),
		ConversationID:  in.ConversationID,
		MerchantID:      in.MerchantID,
		CustomerPhone:   in.CustomerPhone,
		CustomerName:    in.CustomerName,
		DeliveryAddress: in.DeliveryAddress,
		Items:           in.Items,
		ItemCount:       len(in.Items),
		Status:          entity.StatusPending,
		Notes:           in.Notes,
		ExpiresAt:       now.Add(uc.ttl),
		SentReminders:   []int{},
		Timeline: []entity.TimelineEntry{{
			Status:    entity.StatusPending,
			Timestamp: now,
			Note:      "pedido creado",
			Actor:     string(entity.RoleSystem),
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	computed := order.ComputedTotal()
	order.TotalAmount = computed
	if in.DeclaredTotal != nil && !in.DeclaredTotal.Equal(computed) {
		uc.log.Warn().Str("order_id", order.OrderID).
			Str("declared", in.DeclaredTotal.String()).Str("computed", computed.String()).
			Msg("total declarado difiere del calculado, se almacena el calculado")
	}

	if err := uc.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("%w: crear pedido: %v", domain.ErrStoreFailure, err)
	}
	uc.log.Info().Str("order_id", order.OrderID).Str("merchant_id", order.MerchantID).
		Str("total", order.TotalAmount.String()).Int("items", order.ItemCount).
		Msg("pedido creado")
	return order, nil
}

// Get devuelve un pedido por ID.
func (uc *UseCase) Get(ctx context.Context, orderID string) (*entity.Order, error) {
	order, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: leer pedido %s: %v", domain.ErrStoreFailure, orderID, err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: pedido %s", domain.ErrNotFound, orderID)
	}
	return order, nil
}

// Decline rechaza un pedido PENDING. No toca inventario (nunca se dedujo).
func (uc *UseCase) Decline(ctx context.Context, orderID, merchantID, reason string) (*entity.Order, error) {
	key := orderLockKey(orderID)
	uc.locks.Lock(key)
	defer uc.locks.Unlock(key)

	order, err := uc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if merchantID != "" && order.MerchantID != merchantID {
		return nil, fmt.Errorf("%w: el pedido pertenece a otro comercio", domain.ErrUnauthorized)
	}
	if !entity.CanTransition(order.Status, entity.StatusDeclined) {
		return nil, fmt.Errorf("%w: %s -> declined", domain.ErrInvalidTransition, order.Status)
	}

	now := uc.now()
	status := entity.StatusDeclined
	patch := entity.OrderPatch{
		Status:        &status,
		DeclineReason: &reason,
		Timeline: &entity.TimelineEntry{
			Status: status, Timestamp: now,
			Note: "rechazado: " + reason, Actor: string(entity.RoleMerchant),
		},
	}
	if err := uc.orders.ApplyTransition(ctx, orderID, patch); err != nil {
		return nil, fmt.Errorf("%w: rechazar pedido %s: %v", domain.ErrStoreFailure, orderID, err)
	}
	uc.log.Info().Str("order_id", orderID).Str("reason", reason).Msg("pedido rechazado")

	uc.notifyCustomer(ctx, order, fmt.Sprintf(
		"Lo sentimos, tu pedido %s fue rechazado. Motivo: %s", order.OrderID, reason))
	return uc.Get(ctx, orderID)
}

// Complete marca un pedido ACCEPTED como entregado. El stock ya se dedujo en
// la aceptación, aquí no hay movimiento de inventario.
func (uc *UseCase) Complete(ctx context.Context, orderID, merchantID string) (*entity.Order, error) {
	key := orderLockKey(orderID)
	uc.locks.Lock(key)
	defer uc.locks.Unlock(key)

	order, err := uc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if merchantID != "" && order.MerchantID != merchantID {
		return nil, fmt.Errorf("%w: el pedido pertenece a otro comercio", domain.ErrUnauthorized)
	}
	if !entity.CanTransition(order.Status, entity.StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> completed", domain.ErrInvalidTransition, order.Status)
	}

	now := uc.now()
	status := entity.StatusCompleted
	patch := entity.OrderPatch{
		Status:      &status,
		CompletedAt: &now,
		Timeline: &entity.TimelineEntry{
			Status: status, Timestamp: now,
			Note: "pedido entregado", Actor: string(entity.RoleMerchant),
		},
	}
	if err := uc.orders.ApplyTransition(ctx, orderID, patch); err != nil {
		return nil, fmt.Errorf("%w: completar pedido %s: %v", domain.ErrStoreFailure, orderID, err)
	}
	uc.log.Info().Str("order_id", orderID).Msg("pedido completado")

	uc.notifyCustomer(ctx, order, fmt.Sprintf(
		"¡Tu pedido %s fue entregado! Gracias por tu compra.", order.OrderID))
	return uc.Get(ctx, orderID)
}

// Cancel cancela un pedido. Si el inventario ya fue deducido (pedido
// aceptado), devuelve el stock de cada ítem antes de confirmar la transición.
// La verificación de propiedad aplica solo cuando cancela el comercio.
func (uc *UseCase) Cancel(ctx context.Context, orderID, merchantID, reason string, cancelledBy entity.Role) (*entity.Order, error) {
	if !cancelledBy.Valid() {
		return nil, fmt.Errorf("%w: rol %q desconocido", domain.ErrInvalidInput, cancelledBy)
	}

	key := orderLockKey(orderID)
	uc.locks.Lock(key)
	defer uc.locks.Unlock(key)

	order, err := uc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if cancelledBy == entity.RoleMerchant && merchantID != "" && order.MerchantID != merchantID {
		return nil, fmt.Errorf("%w: el pedido pertenece a otro comercio", domain.ErrUnauthorized)
	}
	if !entity.CanTransition(order.Status, entity.StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> cancelled", domain.ErrInvalidTransition, order.Status)
	}

	if order.InventoryDeducted {
		if err := uc.returnItems(ctx, order, entity.MovementCancelReturn, cancelledBy); err != nil {
			return nil, err
		}
	}

	now := uc.now()
	status := entity.StatusCancelled
	deducted := false
	by := string(cancelledBy)
	patch := entity.OrderPatch{
		Status:            &status,
		InventoryDeducted: &deducted,
		CancelReason:      &reason,
		CancelledBy:       &by,
		Timeline: &entity.TimelineEntry{
			Status: status, Timestamp: now,
			Note: "cancelado: " + reason, Actor: by,
		},
	}
	if err := uc.orders.ApplyTransition(ctx, orderID, patch); err != nil {
		return nil, fmt.Errorf("%w: cancelar pedido %s: %v", domain.ErrStoreFailure, orderID, err)
	}
	uc.log.Info().Str("order_id", orderID).Str("cancelled_by", by).Str("reason", reason).
		Msg("pedido cancelado")

	if cancelledBy != entity.RoleCustomer {
		uc.notifyCustomer(ctx, order, fmt.Sprintf(
			"Tu pedido %s fue cancelado. Motivo: %s", order.OrderID, reason))
	}
	return uc.Get(ctx, orderID)
}

// ForceCancelAdmin cancelación administrativa. Sobre un pedido ya cancelado o
// completado es un no-op con warning, no un error.
func (uc *UseCase) ForceCancelAdmin(ctx context.Context, orderID, adminUser, reason string) (*entity.Order, error) {
	if adminUser == "" {
		return nil, fmt.Errorf("%w: admin_user es obligatorio", domain.ErrInvalidInput)
	}

	order, err := uc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == entity.StatusCancelled || order.Status == entity.StatusCompleted {
		uc.log.Warn().Str("order_id", orderID).Str("status", string(order.Status)).
			Str("admin_user", adminUser).Msg("cancelación forzada ignorada, estado final")
		return order, nil
	}
	cancelled, err := uc.Cancel(ctx, orderID, "", fmt.Sprintf("forzado por admin %s: %s", adminUser, reason), entity.RoleAdmin)
	if err != nil {
		return nil, err
	}
	uc.recordAdminAction(ctx, adminUser, "force_cancel_order", map[string]string{
		"order_id": orderID,
		"reason":   reason,
	})
	return cancelled, nil
}

// Expire marca un pedido PENDING vencido como EXPIRED y notifica a ambas
// partes. Idempotente: sobre un pedido que ya no está pendiente devuelve el
// pedido sin error y sin nueva entrada de timeline.
func (uc *UseCase) Expire(ctx context.Context, orderID string) (*entity.Order, error) {
	key := orderLockKey(orderID)
	uc.locks.Lock(key)
	defer uc.locks.Unlock(key)

	order, err := uc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.StatusPending {
		uc.log.Warn().Str("order_id", orderID).Str("status", string(order.Status)).
			Msg("expiración ignorada, el pedido ya no está pendiente")
		return order, nil
	}

	now := uc.now()
	status := entity.StatusExpired
	patch := entity.OrderPatch{
		Status: &status,
		Timeline: &entity.TimelineEntry{
			Status: status, Timestamp: now,
			Note: "expirado automáticamente por falta de respuesta", Actor: string(entity.RoleSystem),
		},
	}
	if err := uc.orders.ApplyTransition(ctx, orderID, patch); err != nil {
		return nil, fmt.Errorf("%w: expirar pedido %s: %v", domain.ErrStoreFailure, orderID, err)
	}
	uc.log.Info().Str("order_id", orderID).Msg("pedido expirado")

	uc.notifyCustomer(ctx, order, fmt.Sprintf(
		"Tu pedido %s expiró porque el comercio no respondió a tiempo. Puedes intentar de nuevo.", order.OrderID))
	uc.notifyMerchant(ctx, order.MerchantID, fmt.Sprintf(
		"El pedido %s expiró sin respuesta y fue cerrado automáticamente.", order.OrderID))
	return uc.Get(ctx, orderID)
}

// ListByMerchant pedidos de un comercio, opcionalmente filtrados por estado.
func (uc *UseCase) ListByMerchant(ctx context.Context, merchantID string, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return uc.orders.ListByMerchant(ctx, merchantID, statuses, limit)
}

// ListByCustomer pedidos de un cliente por teléfono.
func (uc *UseCase) ListByCustomer(ctx context.Context, customerPhone string, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return uc.orders.ListByCustomer(ctx, customerPhone, statuses, limit)
}

// PendingForExpiry pedidos pendientes para el barrido del scheduler.
func (uc *UseCase) PendingForExpiry(ctx context.Context, limit int) ([]*entity.Order, error) {
	if limit <= 0 {
		limit = 500
	}
	return uc.orders.ListByStatuses(ctx, []entity.OrderStatus{entity.StatusPending}, limit)
}

// Stats resumen de pedidos de un comercio.
type Stats struct {
	Total        int                        `json:"total"`
	ByStatus     map[entity.OrderStatus]int `json:"by_status"`
	TotalRevenue decimal.Decimal            `json:"total_revenue"`
}

// MerchantOrderStats conteo por estado y revenue de pedidos completados.
func (uc *UseCase) MerchantOrderStats(ctx context.Context, merchantID string) (*Stats, error) {
	orders, err := uc.orders.ListByMerchant(ctx, merchantID, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: listar pedidos: %v", domain.ErrStoreFailure, err)
	}
	stats := &Stats{ByStatus: make(map[entity.OrderStatus]int), TotalRevenue: decimal.Zero}
	for _, o := range orders {
		stats.Total++
		stats.ByStatus[o.Status]++
		if o.Status == entity.StatusCompleted {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
		}
	}
	return stats, nil
}

// returnItems devuelve el stock de todos los ítems del pedido. Una devolución
// fallida se escala como crítica y aborta con ErrRollbackFailed.
func (uc *UseCase) returnItems(ctx context.Context, order *entity.Order, kind string, role entity.Role) error {
	for _, item := range order.Items {
		ok, err := uc.inv.UpdateQuantity(ctx, order.MerchantID, item.ProductID, item.Quantity, kind, role)
		if err != nil || !ok {
			uc.log.Critical().Err(err).Str("order_id", order.OrderID).
				Str("product_id", item.ProductID).Str("quantity", item.Quantity.String()).
				Msg("devolución de stock fallida, se requiere reconciliación manual")
			return fmt.Errorf("%w: pedido %s, producto %s", domain.ErrRollbackFailed, order.OrderID, item.ProductID)
		}
	}
	return nil
}

// recordAdminAction registro mejor-esfuerzo de auditoría administrativa.
func (uc *UseCase) recordAdminAction(ctx context.Context, adminUser, action string, details map[string]string) {
	if uc.audit == nil {
		return
	}
	if err := uc.audit.Record(ctx, &entity.AdminAction{
		ID:        uuid.New().String(),
		AdminUser: adminUser,
		Action:    action,
		Details:   details,
		CreatedAt: uc.now(),
	}); err != nil {
		uc.log.Error().Err(err).Str("admin_user", adminUser).Str("action", action).
			Msg("registrar acción admin")
	}
}

// notifyCustomer envío mejor-esfuerzo al cliente.
func (uc *UseCase) notifyCustomer(ctx context.Context, order *entity.Order, text string) {
	if uc.notifier == nil || order.CustomerPhone == "" {
		return
	}
	if err := uc.notifier.SendText(ctx, order.CustomerPhone, text); err != nil {
		uc.log.Error().Err(err).Str("order_id", order.OrderID).Msg("notificar al cliente")
	}
}

// notifyMerchant envío mejor-esfuerzo al comercio (si tiene teléfono).
func (uc *UseCase) notifyMerchant(ctx context.Context, merchantID, text string) {
	if uc.notifier == nil {
		return
	}
	merchant, err := uc.merchants.Get(ctx, merchantID)
	if err != nil || merchant == nil || merchant.Phone == "" {
		return
	}
	if err := uc.notifier.SendText(ctx, merchant.Phone, text); err != nil {
		uc.log.Error().Err(err).Str("merchant_id", merchantID).Msg("notificar al comercio")
	}
}
