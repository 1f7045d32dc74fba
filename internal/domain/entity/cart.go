package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart carrito efímero de una conversación, acotado por TTL.
//
// Decisión de diseño con carga: agregar un producto que ya está en el carrito
// REEMPLAZA su cantidad en lugar de sumarla; la creación de pedidos depende de
// esa semántica.
type Cart struct {
	ConversationID string     `json:"conversation_id"`
	Items          []LineItem `json:"items"`
	TTLHours       int        `json:"ttl_hours"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Total valor total del carrito.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// ItemCount total de unidades (suma de cantidades).
func (c *Cart) ItemCount() int {
	count := decimal.Zero
	for _, it := range c.Items {
		count = count.Add(it.Quantity)
	}
	return int(count.IntPart())
}

// UniqueItems número de productos distintos.
func (c *Cart) UniqueItems() int {
	return len(c.Items)
}

// ExpiredAt reporta si el carrito ya superó su TTL en el instante dado.
func (c *Cart) ExpiredAt(now time.Time) bool {
	return now.After(c.CreatedAt.Add(time.Duration(c.TTLHours) * time.Hour))
}
