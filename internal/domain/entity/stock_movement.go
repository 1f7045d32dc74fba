package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Clases de movimiento de stock. La bitácora es append-only: un movimiento
// jamás se actualiza ni se borra.
const (
	MovementDeduction       = "deduction"               // venta / aceptación de pedido
	MovementReturn          = "return"                  // devolución simple
	MovementBatchDeduction  = "batch_deduction"         // ítem de una deducción por lote
	MovementBatchRollback   = "batch_deduction_rollback" // compensación tras lote parcial
	MovementCancelReturn    = "order_cancellation_rollback"
	MovementRaceRollback    = "order_accept_race_condition_rollback"
	MovementCommitRollback  = "order_commit_failed_rollback"
	MovementAdminAdjustment = "manual_adjustment"
	MovementOrderUpdate     = "order_update"
)

// StockMovement entrada inmutable de la bitácora de stock.
type StockMovement struct {
	ID          string          `json:"id"`
	MerchantID  string          `json:"merchant_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Kind        string          `json:"movement_type"`
	Delta       decimal.Decimal `json:"quantity_change"` // con signo
	OldQty      decimal.Decimal `json:"old_stock"`
	NewQty      decimal.Decimal `json:"new_stock"`
	Role        Role            `json:"role"`
	CreatedAt   time.Time       `json:"timestamp"`
}

// AdminAction registro de auditoría de acciones administrativas
// (ajustes absolutos de stock, aprobaciones y cancelaciones forzadas).
type AdminAction struct {
	ID        string            `json:"id"`
	AdminUser string            `json:"admin_user"`
	Action    string            `json:"action"`
	Details   map[string]string `json:"details"`
	CreatedAt time.Time         `json:"created_at"`
}

// Alert alerta de negocio para el comercio (stock bajo, pedido grande).
type Alert struct {
	ID           string          `json:"id"`
	MerchantID   string          `json:"merchant_id"`
	ProductID    string          `json:"product_id,omitempty"`
	ProductName  string          `json:"product_name,omitempty"`
	Kind         string          `json:"alert_type"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	Threshold    decimal.Decimal `json:"threshold"`
	Acknowledged bool            `json:"acknowledged"`
	CreatedAt    time.Time       `json:"created_at"`
}
