package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
)

var (
	_ repository.AdminAuditRepository = (*AdminAuditRepo)(nil)
	_ repository.AlertRepository      = (*AlertRepo)(nil)
)

// AdminAuditRepo registro append-only de acciones administrativas.
type AdminAuditRepo struct {
	q Querier
}

// NewAdminAuditRepository construye el adaptador de auditoría admin.
func NewAdminAuditRepository(q Querier) *AdminAuditRepo {
	return &AdminAuditRepo{q: q}
}

// Record inserta una acción administrativa. Details viaja como JSONB.
func (r *AdminAuditRepo) Record(ctx context.Context, a *entity.AdminAction) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO admin_actions (id, admin_user, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.AdminUser, a.Action, a.Details, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert admin action: %w", err)
	}
	return nil
}

// AlertRepo alertas de negocio sobre PostgreSQL.
type AlertRepo struct {
	q Querier
}

// NewAlertRepository construye el adaptador de alertas.
func NewAlertRepository(q Querier) *AlertRepo {
	return &AlertRepo{q: q}
}

// Insert persiste una alerta nueva.
func (r *AlertRepo) Insert(ctx context.Context, a *entity.Alert) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO alerts (id, merchant_id, product_id, product_name, kind, current_stock, threshold, acknowledged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.MerchantID, a.ProductID, a.ProductName, a.Kind, a.CurrentStock, a.Threshold, a.Acknowledged, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ListActive alertas no reconocidas del comercio, más reciente primero.
func (r *AlertRepo) ListActive(ctx context.Context, merchantID string, limit int) ([]*entity.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, merchant_id, product_id, product_name, kind, current_stock, threshold, acknowledged, created_at
		FROM alerts WHERE merchant_id = $1 AND NOT acknowledged
		ORDER BY created_at DESC LIMIT $2`, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	var list []*entity.Alert
	for rows.Next() {
		var a entity.Alert
		if err := rows.Scan(&a.ID, &a.MerchantID, &a.ProductID, &a.ProductName, &a.Kind,
			&a.CurrentStock, &a.Threshold, &a.Acknowledged, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}
