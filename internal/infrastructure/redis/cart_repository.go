// Package redis implementa el store de carritos sobre Redis: el TTL es
// nativo, un carrito vencido simplemente desaparece.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
	"github.com/jhoicas/pedidos-api/pkg/config"
)

var _ repository.CartRepository = (*CartRepo)(nil)

// CartRepo carritos serializados como JSON bajo la clave cart:<conversation>.
type CartRepo struct {
	client *goredis.Client
}

// NewClient crea y verifica el cliente Redis.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewCartRepository construye el adaptador de carritos.
func NewCartRepository(client *goredis.Client) *CartRepo {
	return &CartRepo{client: client}
}

func cartKey(conversationID string) string {
	return "cart:" + conversationID
}

// Get devuelve (nil, nil) si la clave no existe o ya venció.
func (r *CartRepo) Get(ctx context.Context, conversationID string) (*entity.Cart, error) {
	raw, err := r.client.Get(ctx, cartKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	var c entity.Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &c, nil
}

// Upsert guarda el carrito renovando el TTL.
func (r *CartRepo) Upsert(ctx context.Context, c *entity.Cart, ttl time.Duration) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := r.client.Set(ctx, cartKey(c.ConversationID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("set cart: %w", err)
	}
	return nil
}

// Delete elimina el carrito. Eliminar uno ausente no es error.
func (r *CartRepo) Delete(ctx context.Context, conversationID string) error {
	if err := r.client.Del(ctx, cartKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
