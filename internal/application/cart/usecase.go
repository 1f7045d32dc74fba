package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pedidos-api/internal/application/inventory"
	"github.com/jhoicas/pedidos-api/internal/domain"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

// UseCase carritos de conversación con TTL.
//
// Un carrito vencido se descarta y se recrea vacío en el siguiente acceso;
// con backend Redis el TTL es nativo y el vencido simplemente no aparece.
type UseCase struct {
	carts repository.CartRepository
	inv   *inventory.Engine
	log   *logger.Logger
	ttl   time.Duration
	now   func() time.Time
}

// NewUseCase construye el agregador de carritos.
func NewUseCase(carts repository.CartRepository, inv *inventory.Engine, log *logger.Logger, ttl time.Duration) *UseCase {
	return &UseCase{
		carts: carts,
		inv:   inv,
		log:   log,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock reemplaza el reloj (tests de vencimiento).
func (uc *UseCase) WithClock(now func() time.Time) *UseCase {
	uc.now = now
	return uc
}

// GetOrCreate devuelve el carrito vigente de la conversación o uno vacío
// nuevo si no existe o ya venció.
func (uc *UseCase) GetOrCreate(ctx context.Context, conversationID string) (*entity.Cart, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation_id es obligatorio", domain.ErrInvalidInput)
	}
	c, err := uc.carts.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: leer carrito %s: %v", domain.ErrStoreFailure, conversationID, err)
	}
	now := uc.now()
	if c != nil && c.ExpiredAt(now) {
		uc.log.Debug().Str("conversation_id", conversationID).Msg("carrito vencido, se descarta")
		_ = uc.carts.Delete(ctx, conversationID)
		c = nil
	}
	if c == nil {
		c = &entity.Cart{
			ConversationID: conversationID,
			Items:          []entity.LineItem{},
			TTLHours:       int(uc.ttl.Hours()),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := uc.carts.Upsert(ctx, c, uc.ttl); err != nil {
			return nil, fmt.Errorf("%w: crear carrito %s: %v", domain.ErrStoreFailure, conversationID, err)
		}
	}
	return c, nil
}

// AddItem agrega un ítem al carrito. Si el producto ya está, la cantidad se
// REEMPLAZA (no se acumula): "agrega 3 tomates" dos veces deja 3, no 6.
func (uc *UseCase) AddItem(ctx context.Context, conversationID string, item entity.LineItem) (*entity.Cart, error) {
	if item.ProductID == "" || !item.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: ítem inválido (%s, cantidad %s)", domain.ErrInvalidInput, item.Name, item.Quantity)
	}
	c, err := uc.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	replaced := false
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		c.Items = append(c.Items, item)
	}
	c.UpdatedAt = uc.now()

	if err := uc.carts.Upsert(ctx, c, uc.ttl); err != nil {
		return nil, fmt.Errorf("%w: guardar carrito %s: %v", domain.ErrStoreFailure, conversationID, err)
	}
	uc.log.Debug().Str("conversation_id", conversationID).Str("product_id", item.ProductID).
		Str("quantity", item.Quantity.String()).Bool("replaced", replaced).Msg("ítem agregado al carrito")
	return c, nil
}

// UpdateQuantity fija la cantidad de un ítem ya presente; cero lo elimina.
func (uc *UseCase) UpdateQuantity(ctx context.Context, conversationID, productID string, qty decimal.Decimal) (*entity.Cart, error) {
	if qty.IsNegative() {
		return nil, fmt.Errorf("%w: la cantidad no puede ser negativa", domain.ErrInvalidInput)
	}
	if qty.IsZero() {
		return uc.RemoveItem(ctx, conversationID, productID)
	}

	c, err := uc.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = qty
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: producto %s no está en el carrito", domain.ErrNotFound, productID)
	}
	c.UpdatedAt = uc.now()
	if err := uc.carts.Upsert(ctx, c, uc.ttl); err != nil {
		return nil, fmt.Errorf("%w: guardar carrito %s: %v", domain.ErrStoreFailure, conversationID, err)
	}
	return c, nil
}

// RemoveItem quita un producto del carrito. Quitar uno ausente no es error.
func (uc *UseCase) RemoveItem(ctx context.Context, conversationID, productID string) (*entity.Cart, error) {
	c, err := uc.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	c.UpdatedAt = uc.now()
	if err := uc.carts.Upsert(ctx, c, uc.ttl); err != nil {
		return nil, fmt.Errorf("%w: guardar carrito %s: %v", domain.ErrStoreFailure, conversationID, err)
	}
	return c, nil
}

// Clear vacía y elimina el carrito (típicamente tras crear el pedido).
func (uc *UseCase) Clear(ctx context.Context, conversationID string) error {
	if err := uc.carts.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("%w: eliminar carrito %s: %v", domain.ErrStoreFailure, conversationID, err)
	}
	uc.log.Debug().Str("conversation_id", conversationID).Msg("carrito vaciado")
	return nil
}

// Snapshot vista de solo lectura del carrito con totales.
type Snapshot struct {
	ConversationID string            `json:"conversation_id"`
	Items          []entity.LineItem `json:"items"`
	Total          decimal.Decimal   `json:"total"`
	ItemCount      int               `json:"item_count"`
	UniqueItems    int               `json:"unique_items"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Snapshot resumen del carrito vigente.
func (uc *UseCase) Snapshot(ctx context.Context, conversationID string) (*Snapshot, error) {
	c, err := uc.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ConversationID: c.ConversationID,
		Items:          c.Items,
		Total:          c.Total(),
		ItemCount:      c.ItemCount(),
		UniqueItems:    c.UniqueItems(),
		UpdatedAt:      c.UpdatedAt,
	}, nil
}

// ValidateWithInventory chequeo de disponibilidad previo a crear el pedido
// (solo lectura, sin reservar nada).
func (uc *UseCase) ValidateWithInventory(ctx context.Context, conversationID, merchantID string) (bool, []string, error) {
	c, err := uc.GetOrCreate(ctx, conversationID)
	if err != nil {
		return false, nil, err
	}
	if len(c.Items) == 0 {
		return false, []string{"el carrito está vacío"}, nil
	}
	ok, issues := uc.inv.ValidateOrderStock(ctx, merchantID, c.Items)
	return ok, issues, nil
}
