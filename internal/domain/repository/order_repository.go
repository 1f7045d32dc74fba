package repository

import (
	"context"

	"github.com/jhoicas/pedidos-api/internal/domain/entity"
)

// OrderRepository puerto del store de pedidos.
//
// Las lecturas deben reflejar la última escritura confirmada (el motor de
// inventario y el patrón releer-dentro-del-lock dependen de ello).
// ApplyTransition fija varios campos y anexa al timeline en UNA escritura
// lógica. GetByID devuelve (nil, nil) si el pedido no existe.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, orderID string) (*entity.Order, error)
	ApplyTransition(ctx context.Context, orderID string, patch entity.OrderPatch) error
	ListByMerchant(ctx context.Context, merchantID string, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error)
	ListByCustomer(ctx context.Context, customerPhone string, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error)
	ListByStatuses(ctx context.Context, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error)

	// MarkReminderSent registra el offset con semántica de conjunto y devuelve
	// si fue agregado por esta llamada (exactamente-una-vez para el caller).
	MarkReminderSent(ctx context.Context, orderID string, offsetHours int) (bool, error)
}
