package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pedidos-api/internal/domain"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
	"github.com/jhoicas/pedidos-api/pkg/locks"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

// Engine motor de inventario: mutación atómica y auditada de stock por
// (comercio, producto), con deducción por lote y rollback compensatorio.
//
// Contrato de concurrencia: un lock por par (comercio, producto), tomado del
// registro compartido. Toda escritura de stock pasa por UpdateQuantity o
// AdjustStockAdmin; ningún otro código escribe cantidades.
type Engine struct {
	products  repository.ProductRepository
	movements repository.MovementRepository
	audit     repository.AdminAuditRepository
	locks     *locks.Registry
	log       *logger.Logger
}

// NewEngine construye el motor.
func NewEngine(
	products repository.ProductRepository,
	movements repository.MovementRepository,
	audit repository.AdminAuditRepository,
	lockRegistry *locks.Registry,
	log *logger.Logger,
) *Engine {
	return &Engine{
		products:  products,
		movements: movements,
		audit:     audit,
		locks:     lockRegistry,
		log:       log,
	}
}

func stockLockKey(merchantID, productID string) string {
	return merchantID + ":" + productID
}

// GetStock lee el stock actual de un producto. El bool indica si el producto existe.
func (e *Engine) GetStock(ctx context.Context, merchantID, productID string) (decimal.Decimal, bool, error) {
	product, err := e.products.Get(ctx, merchantID, productID)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("leer stock de %s: %w", productID, err)
	}
	if product == nil {
		return decimal.Zero, false, nil
	}
	return product.StockQty, true, nil
}

// UpdateQuantity aplica un cambio relativo de stock de forma atómica.
// Es la ÚNICA primitiva de escritura relativa; encapsula el patrón
// escribir-y-verificar-releyendo para que ningún call site pueda saltárselo.
//
// Secuencia bajo el lock del par (comercio, producto):
//  1. leer cantidad actual;
//  2. si delta<0 y current+delta<0, fallar sin escribir (stock insuficiente:
//     (false, nil), no es un error);
//  3. escribir max(current+delta, 0);
//  4. releer inmediatamente para verificar que la escritura aterrizó
//     (defensa contra fallos silenciosos de persistencia); un mismatch se
//     loguea crítico y devuelve ErrStockVerification, sin reintento;
//  5. anexar el movimiento a la bitácora.
//
// Las operaciones no llevan timeout propio: un store colgado retiene el lock
// de ese recurso indefinidamente (propiedad documentada y testeada).
func (e *Engine) UpdateQuantity(ctx context.Context, merchantID, productID string, delta decimal.Decimal, reason string, role entity.Role) (bool, error) {
	if delta.IsZero() {
		e.log.Debug().Str("role", string(role)).Str("product_id", productID).
			Msg("cambio de cantidad cero, nada que actualizar")
		return true, nil
	}

	key := stockLockKey(merchantID, productID)
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	product, err := e.products.Get(ctx, merchantID, productID)
	if err != nil {
		e.log.Error().Err(err).Str("product_id", productID).Msg("leer producto dentro del lock")
		return false, fmt.Errorf("%w: leer producto %s: %v", domain.ErrStoreFailure, productID, err)
	}
	if product == nil {
		e.log.Error().Str("role", string(role)).Str("product_id", productID).
			Msg("producto no encontrado para actualizar stock")
		return false, nil
	}

	current := product.StockQty
	newQty := current.Add(delta)
	if delta.IsNegative() && newQty.IsNegative() {
		e.log.Warn().Str("role", string(role)).Str("product_id", productID).
			Str("requested", delta.String()).Str("available", current.String()).
			Msg("stock insuficiente, actualización abortada")
		return false, nil
	}
	final := decimal.Max(newQty, decimal.Zero)

	if err := e.products.UpdateStock(ctx, merchantID, productID, final); err != nil {
		e.log.Error().Err(err).Str("product_id", productID).Msg("escribir stock")
		return false, fmt.Errorf("%w: escribir stock de %s: %v", domain.ErrStoreFailure, productID, err)
	}

	// Verificación post-escritura, todavía dentro del lock.
	verified, err := e.products.Get(ctx, merchantID, productID)
	if err != nil || verified == nil {
		e.log.Critical().Err(err).Str("product_id", productID).
			Msg("no se pudo releer el stock para verificar la escritura")
		return false, fmt.Errorf("%w: releer %s", domain.ErrStockVerification, productID)
	}
	if !verified.StockQty.Equal(final) {
		e.log.Critical().Str("product_id", productID).
			Str("expected", final.String()).Str("found", verified.StockQty.String()).
			Msg("la escritura de stock no aterrizó, se requiere reconciliación manual")
		return false, fmt.Errorf("%w: producto %s, esperado %s, encontrado %s",
			domain.ErrStockVerification, productID, final, verified.StockQty)
	}

	e.logMovement(ctx, product, reason, delta, current, final, role)
	e.log.Info().Str("role", string(role)).Str("product_id", productID).Str("reason", reason).
		Str("delta", delta.String()).Str("old", current.String()).Str("new", final.String()).
		Msg("stock actualizado")
	return true, nil
}

// DeductStock descuenta stock (cantidad en valor absoluto). Wrapper de signo
// sobre UpdateQuantity para conservar locking y bitácora uniformes.
func (e *Engine) DeductStock(ctx context.Context, merchantID, productID string, qty decimal.Decimal, role entity.Role) (bool, error) {
	if qty.IsZero() {
		return true, nil
	}
	return e.UpdateQuantity(ctx, merchantID, productID, qty.Abs().Neg(), entity.MovementDeduction, role)
}

// ReturnStock devuelve stock (cantidad en valor absoluto).
func (e *Engine) ReturnStock(ctx context.Context, merchantID, productID string, qty decimal.Decimal, role entity.Role) (bool, error) {
	if qty.IsZero() {
		return true, nil
	}
	return e.UpdateQuantity(ctx, merchantID, productID, qty.Abs(), entity.MovementReturn, role)
}

// ItemResult resultado por ítem de una deducción por lote.
type ItemResult struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Success     bool   `json:"success"`
	Reason      string `json:"reason,omitempty"`
}

// BatchDeduct descuenta stock para todos los ítems de un pedido, todo-o-nada.
//
// Intenta los ítems en secuencia; al primer fallo se detiene y emite
// devoluciones compensatorias por cada ítem ya debitado en este lote, dejando
// cada producto exactamente en su valor previo. Una compensación fallida se
// escala como crítica y nunca se reintenta en silencio.
func (e *Engine) BatchDeduct(ctx context.Context, merchantID string, items []entity.LineItem, role entity.Role) (bool, []ItemResult) {
	if len(items) == 0 {
		return true, nil
	}

	results := make([]ItemResult, 0, len(items))
	deducted := make([]entity.LineItem, 0, len(items))
	failed := false

	for _, item := range items {
		if item.ProductID == "" || item.Quantity.IsNegative() {
			results = append(results, ItemResult{
				ProductID: item.ProductID, ProductName: item.Name,
				Reason: "datos de ítem inválidos",
			})
			failed = true
			break
		}
		if item.Quantity.IsZero() {
			results = append(results, ItemResult{ProductID: item.ProductID, ProductName: item.Name, Success: true, Reason: "cantidad cero"})
			continue
		}

		ok, err := e.UpdateQuantity(ctx, merchantID, item.ProductID, item.Quantity.Neg(), entity.MovementBatchDeduction, role)
		if err != nil {
			results = append(results, ItemResult{
				ProductID: item.ProductID, ProductName: item.Name,
				Reason: fmt.Sprintf("error inesperado: %v", err),
			})
			failed = true
			break
		}
		if !ok {
			reason := fmt.Sprintf("stock insuficiente para %s", item.Name)
			if current, exists, serr := e.GetStock(ctx, merchantID, item.ProductID); serr == nil && exists {
				reason = fmt.Sprintf("stock insuficiente para %s: pedido %s, disponible %s",
					item.Name, item.Quantity, current)
			}
			results = append(results, ItemResult{ProductID: item.ProductID, ProductName: item.Name, Reason: reason})
			failed = true
			break
		}

		results = append(results, ItemResult{ProductID: item.ProductID, ProductName: item.Name, Success: true})
		deducted = append(deducted, item)
	}

	if !failed {
		e.log.Info().Str("role", string(role)).Str("merchant_id", merchantID).
			Int("items", len(deducted)).Msg("deducción por lote exitosa")
		return true, results
	}

	// Compensación: devolver exactamente lo ya debitado en este lote.
	e.log.Warn().Str("role", string(role)).Str("merchant_id", merchantID).
		Int("rollback_items", len(deducted)).Msg("deducción por lote fallida, revirtiendo")
	for _, item := range deducted {
		ok, err := e.UpdateQuantity(ctx, merchantID, item.ProductID, item.Quantity, entity.MovementBatchRollback, role)
		if err != nil || !ok {
			e.log.Critical().Err(err).Str("product_id", item.ProductID).
				Str("quantity", item.Quantity.String()).
				Msg("rollback de lote fallido, se requiere intervención manual")
		}
	}

	// Ítems que el lote nunca llegó a intentar: cada iteración del recorrido
	// anota exactamente un resultado, así que el sufijo sin resultado es el
	// sufijo sin intentar (aun si un producto se repite en el lote).
	for _, item := range items[len(results):] {
		results = append(results, ItemResult{ProductID: item.ProductID, ProductName: item.Name, Reason: "lote detenido"})
	}
	return false, results
}

// AdjustStockAdmin fija un valor absoluto de stock (corrección manual).
// Usa el mismo lock y la misma verificación post-escritura que la ruta
// relativa, y además deja un registro de auditoría administrativa aparte.
func (e *Engine) AdjustStockAdmin(ctx context.Context, merchantID, productID string, newStock decimal.Decimal, adminUser, reason string) (bool, error) {
	if adminUser == "" {
		return false, fmt.Errorf("%w: admin_user es obligatorio", domain.ErrInvalidInput)
	}

	key := stockLockKey(merchantID, productID)
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	product, err := e.products.Get(ctx, merchantID, productID)
	if err != nil {
		return false, fmt.Errorf("%w: leer producto %s: %v", domain.ErrStoreFailure, productID, err)
	}
	if product == nil {
		e.log.Warn().Str("admin_user", adminUser).Str("product_id", productID).
			Msg("producto no encontrado para ajuste admin")
		return false, nil
	}

	old := product.StockQty
	final := decimal.Max(newStock, decimal.Zero)

	if err := e.products.UpdateStock(ctx, merchantID, productID, final); err != nil {
		return false, fmt.Errorf("%w: escribir stock de %s: %v", domain.ErrStoreFailure, productID, err)
	}
	verified, err := e.products.Get(ctx, merchantID, productID)
	if err != nil || verified == nil || !verified.StockQty.Equal(final) {
		e.log.Critical().Str("admin_user", adminUser).Str("product_id", productID).
			Str("expected", final.String()).
			Msg("la escritura de ajuste admin no aterrizó")
		return false, fmt.Errorf("%w: ajuste admin de %s", domain.ErrStockVerification, productID)
	}

	e.logMovement(ctx, product, entity.MovementAdminAdjustment, final.Sub(old), old, final, entity.RoleAdmin)
	if err := e.audit.Record(ctx, &entity.AdminAction{
		ID:        uuid.New().String(),
		AdminUser: adminUser,
		Action:    "adjust_stock",
		Details: map[string]string{
			"merchant_id": merchantID,
			"product_id":  productID,
			"old_stock":   old.String(),
			"new_stock":   final.String(),
			"reason":      reason,
		},
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		e.log.Error().Err(err).Str("admin_user", adminUser).Msg("registrar acción admin")
	}

	e.log.Info().Str("admin_user", adminUser).Str("product_id", productID).
		Str("old", old.String()).Str("new", final.String()).Msg("stock ajustado por admin")
	return true, nil
}

// ValidateOrderStock verifica disponibilidad para todos los ítems (solo
// lectura, sin locks). Devuelve la lista de problemas encontrados.
func (e *Engine) ValidateOrderStock(ctx context.Context, merchantID string, items []entity.LineItem) (bool, []string) {
	var issues []string
	for _, item := range items {
		if item.ProductID == "" || !item.Quantity.IsPositive() {
			issues = append(issues, fmt.Sprintf("ítem inválido: %s (cantidad %s)", item.Name, item.Quantity))
			continue
		}
		product, err := e.products.Get(ctx, merchantID, item.ProductID)
		if err != nil {
			issues = append(issues, fmt.Sprintf("no se pudo consultar %s", item.Name))
			continue
		}
		if product == nil {
			issues = append(issues, fmt.Sprintf("producto %q no encontrado", item.Name))
			continue
		}
		if product.StockQty.LessThan(item.Quantity) {
			issues = append(issues, fmt.Sprintf("%s: solo %s %s disponibles (pedido %s)",
				product.Name, product.StockQty, product.Unit, item.Quantity))
		}
	}
	return len(issues) == 0, issues
}

// AddProduct da de alta un producto validando los campos mínimos.
// El nivel de reorden por defecto es el 20% del stock inicial (mínimo 1).
func (e *Engine) AddProduct(ctx context.Context, product *entity.Product) (string, error) {
	if product == nil || product.MerchantID == "" || product.Name == "" {
		return "", fmt.Errorf("%w: merchant_id y product_name son obligatorios", domain.ErrInvalidInput)
	}
	if product.Price.IsNegative() || product.StockQty.IsNegative() {
		return "", fmt.Errorf("%w: precio y stock deben ser no negativos", domain.ErrInvalidInput)
	}
	if product.ProductID == "" {
		product.ProductID = "prod_" + uuid.New().String()
	}
	if product.Unit == "" {
		product.Unit = "piece"
	}
	if product.ReorderLevel.IsZero() {
		product.ReorderLevel = decimal.Max(product.StockQty.Mul(decimal.NewFromFloat(0.2)), decimal.NewFromInt(1))
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := e.products.Create(ctx, product); err != nil {
		return "", fmt.Errorf("%w: crear producto: %v", domain.ErrStoreFailure, err)
	}
	e.log.Info().Str("merchant_id", product.MerchantID).Str("product_id", product.ProductID).
		Str("name", product.Name).Msg("producto agregado")
	return product.ProductID, nil
}

// MovementHistory historial de movimientos de un producto (o del comercio si
// productID es vacío), más reciente primero.
func (e *Engine) MovementHistory(ctx context.Context, merchantID, productID string, limit int) ([]*entity.StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	if productID == "" {
		return e.movements.ListByMerchant(ctx, merchantID, limit)
	}
	return e.movements.ListByProduct(ctx, merchantID, productID, limit)
}

// LowStockProducts productos por debajo del umbral indicado.
func (e *Engine) LowStockProducts(ctx context.Context, merchantID string, threshold decimal.Decimal) ([]*entity.Product, error) {
	return e.products.ListLowStock(ctx, merchantID, threshold)
}

// Inventory todos los productos de un comercio.
func (e *Engine) Inventory(ctx context.Context, merchantID string) ([]*entity.Product, error) {
	return e.products.ListByMerchant(ctx, merchantID)
}

// logMovement anexa la entrada de bitácora tras una escritura verificada.
// Un fallo aquí no revierte el stock: se loguea y se sigue.
func (e *Engine) logMovement(ctx context.Context, product *entity.Product, kind string, delta, old, final decimal.Decimal, role entity.Role) {
	mov := &entity.StockMovement{
		ID:          uuid.New().String(),
		MerchantID:  product.MerchantID,
		ProductID:   product.ProductID,
		ProductName: product.Name,
		Kind:        kind,
		Delta:       delta,
		OldQty:      old,
		NewQty:      final,
		Role:        role,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.movements.Append(ctx, mov); err != nil {
		e.log.Error().Err(err).Str("product_id", product.ProductID).Msg("anexar movimiento de stock")
	}
}
