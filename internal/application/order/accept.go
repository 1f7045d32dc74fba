package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/pedidos-api/internal/domain"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
)

// acceptParams parametriza la aceptación: el comercio acepta desde PENDING,
// el admin aprueba desde PENDING o REVIEW. El protocolo es el mismo.
type acceptParams struct {
	allowedFrom []entity.OrderStatus
	role        entity.Role
	actor       string
	note        string
	adminUser   string
	merchantID  string
}

// Accept aceptación por el comercio: valida, deduce stock y confirma.
func (uc *UseCase) Accept(ctx context.Context, orderID, merchantID string) (*entity.Order, error) {
	return uc.acceptInternal(ctx, orderID, acceptParams{
		allowedFrom: []entity.OrderStatus{entity.StatusPending},
		role:        entity.RoleMerchant,
		actor:       string(entity.RoleMerchant),
		note:        "aceptado por el comercio",
		merchantID:  merchantID,
	})
}

// ApproveAdmin aprobación administrativa, también desde REVIEW.
func (uc *UseCase) ApproveAdmin(ctx context.Context, orderID, adminUser string) (*entity.Order, error) {
	if adminUser == "" {
		return nil, fmt.Errorf("%w: admin_user es obligatorio", domain.ErrInvalidInput)
	}
	return uc.acceptInternal(ctx, orderID, acceptParams{
		allowedFrom: []entity.OrderStatus{entity.StatusPending, entity.StatusReview},
		role:        entity.RoleAdmin,
		actor:       adminUser,
		note:        "aprobado por admin " + adminUser,
		adminUser:   adminUser,
	})
}

// acceptInternal protocolo de aceptación en cinco fases.
//
//  1. Sin lock: leer y validar (estado permitido, vencimiento, propiedad).
//  2. Deducción por lote FUERA del lock del pedido; el motor de inventario
//     serializa por producto y compensa sus propios fallos parciales.
//  3. Tomar el lock del pedido y RELEER: si otro actor movió el estado o la
//     bandera de deducción entre las fases 1 y 3, devolver lo deducido y
//     fallar con conflicto. De N aceptaciones concurrentes gana exactamente
//     una.
//  4. Confirmar estado, bandera y timeline en UNA escritura del store; si la
//     escritura falla, devolver el stock y escalar.
//  5. Soltar el lock y recién entonces los colaboradores mejor-esfuerzo
//     (notificación, reglas, indexación): sus fallos jamás revierten la
//     aceptación.
func (uc *UseCase) acceptInternal(ctx context.Context, orderID string, p acceptParams) (*entity.Order, error) {
	// Fase 1: validación sin lock.
	order, err := uc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.merchantID != "" && order.MerchantID != p.merchantID {
		return nil, fmt.Errorf("%w: el pedido pertenece a otro comercio", domain.ErrUnauthorized)
	}
	if !statusIn(order.Status, p.allowedFrom) {
		return nil, fmt.Errorf("%w: %s -> accepted", domain.ErrInvalidTransition, order.Status)
	}
	if order.Status == entity.StatusPending && !uc.now().Before(order.ExpiresAt) {
		// El pedido venció sin que el scheduler lo barriera todavía: cerrarlo
		// aquí mismo antes de rechazar la aceptación.
		if _, eerr := uc.Expire(ctx, orderID); eerr != nil {
			uc.log.Error().Err(eerr).Str("order_id", orderID).Msg("expirar pedido vencido en aceptación")
		}
		return nil, fmt.Errorf("%w: pedido %s venció el %s", domain.ErrOrderExpired,
			orderID, order.ExpiresAt.Format("2006-01-02 15:04"))
	}
	if order.InventoryDeducted {
		return nil, fmt.Errorf("%w: el inventario del pedido %s ya fue deducido", domain.ErrInvalidTransition, orderID)
	}

	// Fase 2: deducción de stock, sin retener el lock del pedido.
	ok, results := uc.inv.BatchDeduct(ctx, order.MerchantID, order.Items, p.role)
	if !ok {
		var reasons []string
		for _, r := range results {
			if !r.Success && r.Reason != "" {
				reasons = append(reasons, r.Reason)
			}
		}
		uc.log.Warn().Str("order_id", orderID).Strs("issues", reasons).
			Msg("aceptación abortada por stock")
		return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientStock, strings.Join(reasons, "; "))
	}

	// Fases 3 y 4: dentro del lock del pedido; el helper lo suelta al retornar.
	if err := uc.commitAcceptance(ctx, orderID, order, p); err != nil {
		return nil, err
	}

	accepted, err := uc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Fase 5: colaboradores mejor-esfuerzo, ya sin el lock del pedido
	// (commitAcceptance lo soltó al retornar; un notificador lento no debe
	// bloquear otras transiciones sobre este pedido ni sobre su shard).
	if p.adminUser != "" {
		uc.recordAdminAction(ctx, p.adminUser, "approve_order", map[string]string{
			"order_id":    orderID,
			"merchant_id": accepted.MerchantID,
		})
	}
	uc.notifyCustomer(ctx, accepted, fmt.Sprintf(
		"¡Tu pedido %s fue aceptado! Total: %s. El comercio lo está preparando.",
		accepted.OrderID, accepted.TotalAmount))
	if uc.rules != nil {
		if rerr := uc.rules.EvaluateOrder(ctx, accepted); rerr != nil {
			uc.log.Error().Err(rerr).Str("order_id", orderID).Msg("evaluar reglas de negocio")
		}
	}
	if uc.knowledge != nil {
		if kerr := uc.knowledge.IndexOrder(ctx, accepted); kerr != nil {
			uc.log.Error().Err(kerr).Str("order_id", orderID).Msg("indexar pedido")
		}
	}
	return accepted, nil
}

// commitAcceptance fases 3 y 4 del protocolo: toma el lock del pedido, relee
// para detectar carreras y confirma estado, bandera y timeline en una sola
// escritura. El lock se libera al retornar, ANTES de cualquier colaborador
// externo.
func (uc *UseCase) commitAcceptance(ctx context.Context, orderID string, order *entity.Order, p acceptParams) error {
	key := orderLockKey(orderID)
	uc.locks.Lock(key)
	defer uc.locks.Unlock(key)

	fresh, err := uc.orders.GetByID(ctx, orderID)
	if err != nil || fresh == nil {
		uc.rollbackDeduction(ctx, order, entity.MovementRaceRollback, p.role)
		if err == nil {
			err = domain.ErrNotFound
		}
		return fmt.Errorf("releer pedido %s dentro del lock: %w", orderID, err)
	}
	if !statusIn(fresh.Status, p.allowedFrom) || fresh.InventoryDeducted {
		uc.log.Warn().Str("order_id", orderID).Str("status", string(fresh.Status)).
			Bool("inventory_deducted", fresh.InventoryDeducted).
			Msg("carrera detectada en aceptación, revirtiendo deducción")
		uc.rollbackDeduction(ctx, order, entity.MovementRaceRollback, p.role)
		return fmt.Errorf("%w: el pedido %s fue modificado concurrentemente", domain.ErrInvalidTransition, orderID)
	}

	now := uc.now()
	status := entity.StatusAccepted
	deducted := true
	patch := entity.OrderPatch{
		Status:            &status,
		InventoryDeducted: &deducted,
		ConfirmedAt:       &now,
		Timeline: &entity.TimelineEntry{
			Status: status, Timestamp: now, Note: p.note, Actor: p.actor,
		},
	}
	if p.adminUser != "" {
		patch.ApprovedByAdmin = &p.adminUser
	}
	if err := uc.orders.ApplyTransition(ctx, orderID, patch); err != nil {
		uc.log.Critical().Err(err).Str("order_id", orderID).
			Msg("confirmación de aceptación fallida, revirtiendo deducción")
		uc.rollbackDeduction(ctx, fresh, entity.MovementCommitRollback, p.role)
		return fmt.Errorf("%w: confirmar aceptación de %s: %v", domain.ErrStoreFailure, orderID, err)
	}
	uc.log.Info().Str("order_id", orderID).Str("actor", p.actor).Msg("pedido aceptado")
	return nil
}

// rollbackDeduction compensa una deducción de lote ya aplicada.
func (uc *UseCase) rollbackDeduction(ctx context.Context, order *entity.Order, kind string, role entity.Role) {
	if err := uc.returnItems(ctx, order, kind, role); err != nil {
		uc.log.Critical().Err(err).Str("order_id", order.OrderID).
			Msg("compensación de aceptación fallida")
	}
}

func statusIn(s entity.OrderStatus, set []entity.OrderStatus) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}
