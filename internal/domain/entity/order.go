package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus estado del ciclo de vida de un pedido.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusDeclined  OrderStatus = "declined"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
	StatusExpired   OrderStatus = "expired"
	StatusReview    OrderStatus = "review"
)

// legalTransitions tabla de transiciones válidas. EXPIRED solo lo produce el
// scheduler (automático); REVIEW solo sale hacia ACCEPTED vía aprobación admin.
var legalTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:  {StatusAccepted, StatusDeclined, StatusCancelled, StatusExpired},
	StatusReview:   {StatusAccepted, StatusCancelled},
	StatusAccepted: {StatusCompleted, StatusCancelled},
}

// CanTransition reporta si from -> to es legal según la tabla.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reporta si el estado es final. Los pedidos terminales se conservan
// para auditoría, nunca se borran.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusDeclined, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// LineItem ítem de un pedido (o de un carrito).
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"product_name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Unit      string          `json:"unit"`
}

// Subtotal cantidad por precio unitario.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// TimelineEntry entrada append-only del historial de estados de un pedido.
type TimelineEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note"`
	Actor     string      `json:"actor"`
}

// Order pedido de un cliente a un comercio.
//
// Invariantes: las transiciones de Status obedecen la tabla de CanTransition;
// InventoryDeducted es true si y solo si existe en la bitácora un débito neto
// no compensado por una devolución equivalente; el timeline es append-only y
// monótono. El documento solo se muta a través de los métodos de transición
// del caso de uso de pedidos.
type Order struct {
	OrderID           string          `json:"order_id"`
	ConversationID    string          `json:"conversation_id"`
	MerchantID        string          `json:"merchant_id"`
	CustomerPhone     string          `json:"customer_phone"`
	CustomerName      string          `json:"customer_name,omitempty"`
	DeliveryAddress   string          `json:"delivery_address,omitempty"`
	Items             []LineItem      `json:"items"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	ItemCount         int             `json:"item_count"`
	Status            OrderStatus     `json:"status"`
	InventoryDeducted bool            `json:"inventory_deducted"`
	Notes             string          `json:"notes,omitempty"`
	DeclineReason     string          `json:"decline_reason,omitempty"`
	CancelReason      string          `json:"cancellation_reason,omitempty"`
	CancelledBy       string          `json:"cancelled_by,omitempty"`
	ApprovedByAdmin   string          `json:"approved_by_admin,omitempty"`
	ConfirmedAt       *time.Time      `json:"confirmed_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	ExpiresAt         time.Time       `json:"expiry_time"`
	SentReminders     []int           `json:"sent_reminders"` // offsets en horas, semántica de conjunto
	Timeline          []TimelineEntry `json:"timeline"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ComputedTotal suma de subtotales de los ítems. Puede diferir de TotalAmount
// si el caller declaró otro monto; la discrepancia se loguea, no se rechaza.
func (o *Order) ComputedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// ReminderSent reporta si el offset (horas) ya fue registrado como enviado.
func (o *Order) ReminderSent(offsetHours int) bool {
	for _, h := range o.SentReminders {
		if h == offsetHours {
			return true
		}
	}
	return false
}

// OrderPatch conjunto de campos a fijar más una entrada de timeline a anexar,
// aplicados por el store en una sola escritura lógica.
type OrderPatch struct {
	Status            *OrderStatus
	InventoryDeducted *bool
	ConfirmedAt       *time.Time
	CompletedAt       *time.Time
	DeclineReason     *string
	CancelReason      *string
	CancelledBy       *string
	ApprovedByAdmin   *string
	Timeline          *TimelineEntry
}
