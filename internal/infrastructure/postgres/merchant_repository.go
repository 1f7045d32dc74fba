package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pedidos-api/internal/domain"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
)

var _ repository.MerchantRepository = (*MerchantRepo)(nil)

// MerchantRepo implementación del puerto MerchantRepository sobre PostgreSQL.
type MerchantRepo struct {
	q Querier
}

// NewMerchantRepository construye el adaptador de comercios.
func NewMerchantRepository(q Querier) *MerchantRepo {
	return &MerchantRepo{q: q}
}

// Create persiste un comercio nuevo.
func (r *MerchantRepo) Create(ctx context.Context, m *entity.Merchant) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO merchants (merchant_id, name, phone, low_stock_threshold, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.MerchantID, m.Name, m.Phone, m.LowStockThreshold, m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: comercio %s ya existe", domain.ErrInvalidInput, m.MerchantID)
		}
		return fmt.Errorf("insert merchant: %w", err)
	}
	return nil
}

// Get obtiene un comercio. Devuelve (nil, nil) si no existe.
func (r *MerchantRepo) Get(ctx context.Context, merchantID string) (*entity.Merchant, error) {
	var m entity.Merchant
	err := r.q.QueryRow(ctx, `
		SELECT merchant_id, name, phone, low_stock_threshold, created_at
		FROM merchants WHERE merchant_id = $1`, merchantID).
		Scan(&m.MerchantID, &m.Name, &m.Phone, &m.LowStockThreshold, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	return &m, nil
}

// List todos los comercios registrados.
func (r *MerchantRepo) List(ctx context.Context) ([]*entity.Merchant, error) {
	rows, err := r.q.Query(ctx, `
		SELECT merchant_id, name, phone, low_stock_threshold, created_at
		FROM merchants ORDER BY merchant_id`)
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	defer rows.Close()
	var list []*entity.Merchant
	for rows.Next() {
		var m entity.Merchant
		if err := rows.Scan(&m.MerchantID, &m.Name, &m.Phone, &m.LowStockThreshold, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan merchant: %w", err)
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
