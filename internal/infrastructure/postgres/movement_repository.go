package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo bitácora append-only de movimientos de stock sobre PostgreSQL.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador de la bitácora de movimientos.
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

const movementColumns = `id, merchant_id, product_id, product_name, kind, delta, old_qty, new_qty, role, created_at`

// Append inserta un movimiento. Nunca hay UPDATE ni DELETE sobre esta tabla.
func (r *MovementRepo) Append(ctx context.Context, m *entity.StockMovement) error {
	query := `
		INSERT INTO stock_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.MerchantID, m.ProductID, m.ProductName, m.Kind, m.Delta, m.OldQty, m.NewQty, m.Role, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// ListByProduct movimientos de un producto, más reciente primero.
func (r *MovementRepo) ListByProduct(ctx context.Context, merchantID, productID string, limit int) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements
		WHERE merchant_id = $1 AND product_id = $2 ORDER BY created_at DESC LIMIT $3`
	rows, err := r.q.Query(ctx, query, merchantID, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	return scanMovements(rows)
}

// ListByMerchant movimientos de todo el comercio, más reciente primero.
func (r *MovementRepo) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements
		WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.q.Query(ctx, query, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list merchant movements: %w", err)
	}
	defer rows.Close()
	return scanMovements(rows)
}

func scanMovements(rows pgx.Rows) ([]*entity.StockMovement, error) {
	var list []*entity.StockMovement
	for rows.Next() {
		var m entity.StockMovement
		if err := rows.Scan(&m.ID, &m.MerchantID, &m.ProductID, &m.ProductName, &m.Kind,
			&m.Delta, &m.OldQty, &m.NewQty, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
