package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product registro de stock de un producto por comercio.
// Invariante: StockQty nunca es negativo y solo se muta a través del motor de
// inventario (UpdateQuantity / AdjustStockAdmin); ningún otro código escribe stock.
type Product struct {
	MerchantID   string          `json:"merchant_id"`
	ProductID    string          `json:"product_id"`
	SKU          string          `json:"sku,omitempty"`
	Name         string          `json:"product_name"`
	Price        decimal.Decimal `json:"price"`
	StockQty     decimal.Decimal `json:"stock_qty"`
	Unit         string          `json:"unit"`
	Category     string          `json:"category,omitempty"`
	Description  string          `json:"description,omitempty"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Merchant datos mínimos del comercio que necesitan el scheduler y las reglas
// (teléfono para notificar, umbral de stock bajo).
type Merchant struct {
	MerchantID        string          `json:"merchant_id"`
	Name              string          `json:"name"`
	Phone             string          `json:"phone"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold"`
	CreatedAt         time.Time       `json:"created_at"`
}
