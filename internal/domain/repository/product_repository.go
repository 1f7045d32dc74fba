package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pedidos-api/internal/domain/entity"
)

// ProductRepository puerto del store de productos/stock por comercio.
// Get devuelve (nil, nil) si el producto no existe. UpdateStock escribe la
// cantidad absoluta; la validación (no-negativo, verificación post-escritura)
// es responsabilidad exclusiva del motor de inventario.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	Get(ctx context.Context, merchantID, productID string) (*entity.Product, error)
	GetByName(ctx context.Context, merchantID, name string) (*entity.Product, error)
	UpdateStock(ctx context.Context, merchantID, productID string, qty decimal.Decimal) error
	ListByMerchant(ctx context.Context, merchantID string) ([]*entity.Product, error)
	ListLowStock(ctx context.Context, merchantID string, threshold decimal.Decimal) ([]*entity.Product, error)
}

// MovementRepository bitácora append-only de movimientos de stock.
type MovementRepository interface {
	Append(ctx context.Context, mov *entity.StockMovement) error
	ListByProduct(ctx context.Context, merchantID, productID string, limit int) ([]*entity.StockMovement, error)
	ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*entity.StockMovement, error)
}

// MerchantRepository datos del comercio (teléfono, umbral de stock bajo).
type MerchantRepository interface {
	Create(ctx context.Context, merchant *entity.Merchant) error
	Get(ctx context.Context, merchantID string) (*entity.Merchant, error)
	List(ctx context.Context) ([]*entity.Merchant, error)
}

// AdminAuditRepository registro append-only de acciones administrativas.
type AdminAuditRepository interface {
	Record(ctx context.Context, action *entity.AdminAction) error
}

// AlertRepository alertas de negocio para el comercio.
type AlertRepository interface {
	Insert(ctx context.Context, alert *entity.Alert) error
	ListActive(ctx context.Context, merchantID string, limit int) ([]*entity.Alert, error)
}
