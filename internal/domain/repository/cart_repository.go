package repository

import (
	"context"
	"time"

	"github.com/jhoicas/pedidos-api/internal/domain/entity"
)

// CartRepository store de carritos de conversación con TTL.
// Get devuelve (nil, nil) si no hay carrito (o ya venció en backends con TTL
// nativo, como Redis). Upsert renueva la entrada con el TTL indicado.
type CartRepository interface {
	Get(ctx context.Context, conversationID string) (*entity.Cart, error)
	Upsert(ctx context.Context, cart *entity.Cart, ttl time.Duration) error
	Delete(ctx context.Context, conversationID string) error
}
