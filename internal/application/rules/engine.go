package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pedidos-api/internal/application/ports"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

// cooldown mínimo entre alertas de stock bajo del mismo producto.
const lowStockCooldown = 6 * time.Hour

// Engine reglas de negocio evaluadas tras aceptar un pedido: alerta de pedido
// grande y alertas de stock bajo post-deducción. Todo mejor-esfuerzo, un
// fallo aquí nunca afecta al pedido.
type Engine struct {
	products  repository.ProductRepository
	merchants repository.MerchantRepository
	alerts    repository.AlertRepository
	notifier  ports.Notifier
	log       *logger.Logger
	threshold decimal.Decimal

	mu       sync.Mutex
	lastSent map[string]time.Time // merchantID:productID -> última alerta de stock bajo
	now      func() time.Time
}

var _ ports.RuleEvaluator = (*Engine)(nil)

// NewEngine construye el evaluador de reglas.
func NewEngine(
	products repository.ProductRepository,
	merchants repository.MerchantRepository,
	alerts repository.AlertRepository,
	notifier ports.Notifier,
	log *logger.Logger,
	largeOrderThreshold int,
) *Engine {
	return &Engine{
		products:  products,
		merchants: merchants,
		alerts:    alerts,
		notifier:  notifier,
		log:       log,
		threshold: decimal.NewFromInt(int64(largeOrderThreshold)),
		lastSent:  make(map[string]time.Time),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock reemplaza el reloj (tests de cooldown).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// EvaluateOrder corre todas las reglas sobre un pedido recién aceptado.
func (e *Engine) EvaluateOrder(ctx context.Context, order *entity.Order) error {
	merchant, err := e.merchants.Get(ctx, order.MerchantID)
	if err != nil {
		return fmt.Errorf("leer comercio %s: %w", order.MerchantID, err)
	}

	e.checkLargeOrder(ctx, order, merchant)
	e.checkLowStock(ctx, order, merchant)
	return nil
}

// checkLargeOrder alerta si el total supera el umbral configurado.
func (e *Engine) checkLargeOrder(ctx context.Context, order *entity.Order, merchant *entity.Merchant) {
	if e.threshold.IsZero() || order.TotalAmount.LessThan(e.threshold) {
		return
	}
	e.persistAlert(ctx, &entity.Alert{
		ID:         uuid.New().String(),
		MerchantID: order.MerchantID,
		Kind:       "large_order",
		CreatedAt:  e.now(),
	})
	e.notify(ctx, merchant, fmt.Sprintf(
		"Pedido grande: %s por %s supera tu umbral de %s. Verifica disponibilidad antes de preparar.",
		order.OrderID, order.TotalAmount, e.threshold))
	e.log.Info().Str("order_id", order.OrderID).Str("total", order.TotalAmount.String()).
		Msg("alerta de pedido grande")
}

// checkLowStock revisa el stock post-deducción de cada producto del pedido.
// Por producto se respeta un cooldown para no saturar al comercio.
func (e *Engine) checkLowStock(ctx context.Context, order *entity.Order, merchant *entity.Merchant) {
	threshold := decimal.NewFromInt(5)
	if merchant != nil && !merchant.LowStockThreshold.IsZero() {
		threshold = merchant.LowStockThreshold
	}

	for _, item := range order.Items {
		product, err := e.products.Get(ctx, order.MerchantID, item.ProductID)
		if err != nil || product == nil {
			continue
		}
		limit := threshold
		if !product.ReorderLevel.IsZero() {
			limit = product.ReorderLevel
		}
		if product.StockQty.GreaterThan(limit) {
			continue
		}
		if !e.shouldAlert(order.MerchantID, product.ProductID) {
			continue
		}

		e.persistAlert(ctx, &entity.Alert{
			ID:           uuid.New().String(),
			MerchantID:   order.MerchantID,
			ProductID:    product.ProductID,
			ProductName:  product.Name,
			Kind:         "low_stock",
			CurrentStock: product.StockQty,
			Threshold:    limit,
			CreatedAt:    e.now(),
		})
		e.notify(ctx, merchant, fmt.Sprintf(
			"Stock bajo: %s quedó en %s %s (umbral %s). Considera reabastecer.",
			product.Name, product.StockQty, product.Unit, limit))
		e.log.Info().Str("product_id", product.ProductID).Str("stock", product.StockQty.String()).
			Msg("alerta de stock bajo")
	}
}

// shouldAlert aplica el cooldown por producto. Registra el envío si procede.
func (e *Engine) shouldAlert(merchantID, productID string) bool {
	key := merchantID + ":" + productID
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastSent[key]; ok && now.Sub(last) < lowStockCooldown {
		return false
	}
	e.lastSent[key] = now
	return true
}

func (e *Engine) persistAlert(ctx context.Context, alert *entity.Alert) {
	if e.alerts == nil {
		return
	}
	if err := e.alerts.Insert(ctx, alert); err != nil {
		e.log.Error().Err(err).Str("kind", alert.Kind).Msg("guardar alerta")
	}
}

func (e *Engine) notify(ctx context.Context, merchant *entity.Merchant, text string) {
	if e.notifier == nil || merchant == nil || merchant.Phone == "" {
		return
	}
	if err := e.notifier.SendText(ctx, merchant.Phone, text); err != nil {
		e.log.Error().Err(err).Str("merchant_id", merchant.MerchantID).Msg("notificar alerta")
	}
}
