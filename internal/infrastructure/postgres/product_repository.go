package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pedidos-api/internal/domain"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos.
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `merchant_id, product_id, sku, name, price, stock_qty, unit,
	category, description, reorder_level, created_at, updated_at`

// Create persiste un producto nuevo.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		p.MerchantID, p.ProductID, p.SKU, p.Name, p.Price, p.StockQty, p.Unit,
		p.Category, p.Description, p.ReorderLevel, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: producto %s ya existe", domain.ErrInvalidInput, p.ProductID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Get obtiene un producto. Devuelve (nil, nil) si no existe.
func (r *ProductRepo) Get(ctx context.Context, merchantID, productID string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE merchant_id = $1 AND product_id = $2`
	p, err := scanProduct(r.q.QueryRow(ctx, query, merchantID, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetByName busca un producto por nombre exacto dentro del comercio.
func (r *ProductRepo) GetByName(ctx context.Context, merchantID, name string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE merchant_id = $1 AND name = $2`
	p, err := scanProduct(r.q.QueryRow(ctx, query, merchantID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product by name: %w", err)
	}
	return p, nil
}

// UpdateStock escribe la cantidad absoluta. La validación y la verificación
// post-escritura son del motor de inventario, no de este adaptador.
func (r *ProductRepo) UpdateStock(ctx context.Context, merchantID, productID string, qty decimal.Decimal) error {
	_, err := r.q.Exec(ctx,
		`UPDATE products SET stock_qty = $3, updated_at = now() WHERE merchant_id = $1 AND product_id = $2`,
		merchantID, productID, qty,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	return nil
}

// ListByMerchant lista el inventario completo del comercio.
func (r *ProductRepo) ListByMerchant(ctx context.Context, merchantID string) ([]*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE merchant_id = $1 ORDER BY name`
	rows, err := r.q.Query(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// ListLowStock productos con stock en o bajo el umbral. Umbral cero usa el
// nivel de reorden propio de cada producto.
func (r *ProductRepo) ListLowStock(ctx context.Context, merchantID string, threshold decimal.Decimal) ([]*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE merchant_id = $1 AND stock_qty <= CASE WHEN $2::numeric > 0 THEN $2::numeric ELSE reorder_level END
		ORDER BY stock_qty ASC`
	rows, err := r.q.Query(ctx, query, merchantID, threshold)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(
		&p.MerchantID, &p.ProductID, &p.SKU, &p.Name, &p.Price, &p.StockQty, &p.Unit,
		&p.Category, &p.Description, &p.ReorderLevel, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProducts(rows pgx.Rows) ([]*entity.Product, error) {
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
