package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pedidos-api/internal/domain"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

// OrderRepo implementación del puerto OrderRepository sobre PostgreSQL.
// Items y timeline viven como JSONB; el append de timeline y el marcado de
// recordatorios son statements únicos para que la escritura lógica sea una.
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador de persistencia para pedidos.
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

const orderColumns = `order_id, conversation_id, merchant_id, customer_phone, customer_name,
	delivery_address, items, total_amount, item_count, status, inventory_deducted, notes,
	decline_reason, cancellation_reason, cancelled_by, approved_by_admin,
	confirmed_at, completed_at, expires_at, sent_reminders, timeline, created_at, updated_at`

// Create persiste un pedido nuevo.
func (r *OrderRepo) Create(ctx context.Context, o *entity.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`
	_, err := r.q.Exec(ctx, query,
		o.OrderID, o.ConversationID, o.MerchantID, o.CustomerPhone, o.CustomerName,
		o.DeliveryAddress, o.Items, o.TotalAmount, o.ItemCount, o.Status, o.InventoryDeducted, o.Notes,
		o.DeclineReason, o.CancelReason, o.CancelledBy, o.ApprovedByAdmin,
		o.ConfirmedAt, o.CompletedAt, o.ExpiresAt, o.SentReminders, o.Timeline, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: pedido %s ya existe", domain.ErrInvalidInput, o.OrderID)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID obtiene un pedido por ID. Devuelve (nil, nil) si no existe.
func (r *OrderRepo) GetByID(ctx context.Context, orderID string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	o, err := scanOrder(r.q.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ApplyTransition fija los campos del patch y anexa la entrada de timeline en
// UN solo UPDATE. El SET se arma dinámicamente solo con los campos presentes.
func (r *OrderRepo) ApplyTransition(ctx context.Context, orderID string, patch entity.OrderPatch) error {
	sets := []string{"updated_at = now()"}
	args := []any{orderID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Status != nil {
		sets = append(sets, "status = "+arg(*patch.Status))
	}
	if patch.InventoryDeducted != nil {
		sets = append(sets, "inventory_deducted = "+arg(*patch.InventoryDeducted))
	}
	if patch.ConfirmedAt != nil {
		sets = append(sets, "confirmed_at = "+arg(*patch.ConfirmedAt))
	}
	if patch.CompletedAt != nil {
		sets = append(sets, "completed_at = "+arg(*patch.CompletedAt))
	}
	if patch.DeclineReason != nil {
		sets = append(sets, "decline_reason = "+arg(*patch.DeclineReason))
	}
	if patch.CancelReason != nil {
		sets = append(sets, "cancellation_reason = "+arg(*patch.CancelReason))
	}
	if patch.CancelledBy != nil {
		sets = append(sets, "cancelled_by = "+arg(*patch.CancelledBy))
	}
	if patch.ApprovedByAdmin != nil {
		sets = append(sets, "approved_by_admin = "+arg(*patch.ApprovedByAdmin))
	}
	if patch.Timeline != nil {
		sets = append(sets, "timeline = timeline || "+arg(*patch.Timeline)+"::jsonb")
	}

	query := "UPDATE orders SET " + strings.Join(sets, ", ") + " WHERE order_id = $1"
	cmd, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: pedido %s", domain.ErrNotFound, orderID)
	}
	return nil
}

// MarkReminderSent agrega el offset con semántica de conjunto. El WHERE
// excluye offsets ya presentes, así dos ciclos concurrentes no duplican:
// gana exactamente uno (RowsAffected == 1).
func (r *OrderRepo) MarkReminderSent(ctx context.Context, orderID string, offsetHours int) (bool, error) {
	cmd, err := r.q.Exec(ctx, `
		UPDATE orders
		SET sent_reminders = array_append(sent_reminders, $2), updated_at = now()
		WHERE order_id = $1 AND NOT ($2 = ANY(sent_reminders))`,
		orderID, offsetHours,
	)
	if err != nil {
		return false, fmt.Errorf("mark reminder: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

// ListByMerchant lista pedidos de un comercio, opcionalmente por estado.
func (r *OrderRepo) ListByMerchant(ctx context.Context, merchantID string, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error) {
	return r.list(ctx, "merchant_id = $1", merchantID, statuses, limit)
}

// ListByCustomer lista pedidos de un cliente por teléfono.
func (r *OrderRepo) ListByCustomer(ctx context.Context, customerPhone string, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error) {
	return r.list(ctx, "customer_phone = $1", customerPhone, statuses, limit)
}

// ListByStatuses lista pedidos por estado sin filtrar por comercio (scheduler).
func (r *OrderRepo) ListByStatuses(ctx context.Context, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = ANY($1) ORDER BY created_at ASC LIMIT $2`
	rows, err := r.q.Query(ctx, query, statusStrings(statuses), limit)
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *OrderRepo) list(ctx context.Context, where string, key string, statuses []entity.OrderStatus, limit int) ([]*entity.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	args := []any{key}
	if len(statuses) > 0 {
		args = append(args, statusStrings(statuses))
		where += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		orderColumns, where, len(args))
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func statusStrings(statuses []entity.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanOrder(row pgx.Row) (*entity.Order, error) {
	var o entity.Order
	err := row.Scan(
		&o.OrderID, &o.ConversationID, &o.MerchantID, &o.CustomerPhone, &o.CustomerName,
		&o.DeliveryAddress, &o.Items, &o.TotalAmount, &o.ItemCount, &o.Status, &o.InventoryDeducted, &o.Notes,
		&o.DeclineReason, &o.CancelReason, &o.CancelledBy, &o.ApprovedByAdmin,
		&o.ConfirmedAt, &o.CompletedAt, &o.ExpiresAt, &o.SentReminders, &o.Timeline, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanOrders(rows pgx.Rows) ([]*entity.Order, error) {
	var list []*entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}
