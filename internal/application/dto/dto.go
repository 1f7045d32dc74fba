// Package dto requests y responses del API HTTP.
package dto

import (
	"github.com/shopspring/decimal"
)

// ErrorResponse respuesta de error uniforme del API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LineItemRequest ítem de un carrito o pedido.
type LineItemRequest struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"product_name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Unit      string          `json:"unit"`
}

// CreateOrderRequest creación de pedido.
type CreateOrderRequest struct {
	ConversationID  string            `json:"conversation_id"`
	MerchantID      string            `json:"merchant_id"`
	CustomerPhone   string            `json:"customer_phone"`
	CustomerName    string            `json:"customer_name"`
	DeliveryAddress string            `json:"delivery_address"`
	Items           []LineItemRequest `json:"items"`
	TotalAmount     *decimal.Decimal  `json:"total_amount"`
	Notes           string            `json:"notes"`
}

// AcceptOrderRequest aceptación por el comercio.
type AcceptOrderRequest struct {
	MerchantID string `json:"merchant_id"`
}

// DeclineOrderRequest rechazo por el comercio.
type DeclineOrderRequest struct {
	MerchantID string `json:"merchant_id"`
	Reason     string `json:"reason"`
}

// CancelOrderRequest cancelación por comercio o cliente.
type CancelOrderRequest struct {
	MerchantID  string `json:"merchant_id"`
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"` // customer | merchant
}

// CompleteOrderRequest entrega del pedido.
type CompleteOrderRequest struct {
	MerchantID string `json:"merchant_id"`
}

// AdminApproveRequest aprobación administrativa.
type AdminApproveRequest struct {
	AdminUser string `json:"admin_user"`
}

// AdminCancelRequest cancelación forzada administrativa.
type AdminCancelRequest struct {
	AdminUser string `json:"admin_user"`
	Reason    string `json:"reason"`
}

// AdjustStockRequest corrección manual de stock.
type AdjustStockRequest struct {
	NewStock  decimal.Decimal `json:"new_stock"`
	AdminUser string          `json:"admin_user"`
	Reason    string          `json:"reason"`
}

// AddProductRequest alta de producto.
type AddProductRequest struct {
	ProductID    string          `json:"product_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"product_name"`
	Price        decimal.Decimal `json:"price"`
	StockQty     decimal.Decimal `json:"stock_qty"`
	Unit         string          `json:"unit"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
}

// AddCartItemRequest agregar ítem al carrito (reemplaza cantidad si ya está).
type AddCartItemRequest struct {
	Item LineItemRequest `json:"item"`
}

// UpdateCartItemRequest fijar cantidad de un ítem del carrito.
type UpdateCartItemRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}
