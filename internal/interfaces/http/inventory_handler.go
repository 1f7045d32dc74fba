package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pedidos-api/internal/application/dto"
	"github.com/jhoicas/pedidos-api/internal/application/inventory"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
)

// InventoryHandler maneja las peticiones HTTP de inventario y stock.
type InventoryHandler struct {
	engine *inventory.Engine
	alerts repository.AlertRepository
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(engine *inventory.Engine, alerts repository.AlertRepository) *InventoryHandler {
	return &InventoryHandler{engine: engine, alerts: alerts}
}

// AddProduct godoc
// @Summary      Dar de alta un producto
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        merchant_id  path  string  true  "ID del comercio"
// @Param        body  body  dto.AddProductRequest  true  "product_name, price, stock_qty"
// @Success      201   {object}  map[string]string
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/merchants/{merchant_id}/products [post]
func (h *InventoryHandler) AddProduct(c *fiber.Ctx) error {
	var in dto.AddProductRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	id, err := h.engine.AddProduct(c.Context(), &entity.Product{
		MerchantID:   c.Params("merchant_id"),
		ProductID:    in.ProductID,
		SKU:          in.SKU,
		Name:         in.Name,
		Price:        in.Price,
		StockQty:     in.StockQty,
		Unit:         in.Unit,
		Category:     in.Category,
		Description:  in.Description,
		ReorderLevel: in.ReorderLevel,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"product_id": id})
}

// List godoc
// @Summary      Inventario completo del comercio
// @Tags         inventory
// @Produce      json
// @Param        merchant_id  path  string  true  "ID del comercio"
// @Success      200  {array}  entity.Product
// @Router       /api/merchants/{merchant_id}/products [get]
func (h *InventoryHandler) List(c *fiber.Ctx) error {
	list, err := h.engine.Inventory(c.Context(), c.Params("merchant_id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "products": list})
}

// GetStock godoc
// @Summary      Stock actual de un producto
// @Tags         inventory
// @Produce      json
// @Param        merchant_id  path  string  true  "ID del comercio"
// @Param        product_id   path  string  true  "ID del producto"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/merchants/{merchant_id}/products/{product_id}/stock [get]
func (h *InventoryHandler) GetStock(c *fiber.Ctx) error {
	qty, exists, err := h.engine.GetStock(c.Context(), c.Params("merchant_id"), c.Params("product_id"))
	if err != nil {
		return mapError(c, err)
	}
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "producto no encontrado"})
	}
	return c.JSON(fiber.Map{"product_id": c.Params("product_id"), "stock_qty": qty})
}

// Movements godoc
// @Summary      Historial de movimientos de stock
// @Tags         inventory
// @Produce      json
// @Param        merchant_id  path   string  true   "ID del comercio"
// @Param        product_id   query  string  false  "Filtrar por producto"
// @Param        limit        query  int     false  "Máximo de resultados"
// @Success      200  {array}  entity.StockMovement
// @Router       /api/merchants/{merchant_id}/movements [get]
func (h *InventoryHandler) Movements(c *fiber.Ctx) error {
	list, err := h.engine.MovementHistory(c.Context(), c.Params("merchant_id"),
		c.Query("product_id"), c.QueryInt("limit"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "movements": list})
}

// LowStock godoc
// @Summary      Productos con stock bajo
// @Tags         inventory
// @Produce      json
// @Param        merchant_id  path   string  true   "ID del comercio"
// @Param        threshold    query  number  false  "Umbral (vacío = nivel de reorden de cada producto)"
// @Success      200  {array}  entity.Product
// @Router       /api/merchants/{merchant_id}/products/low-stock [get]
func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	threshold := decimal.Zero
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "threshold inválido"})
		}
		threshold = parsed
	}
	list, err := h.engine.LowStockProducts(c.Context(), c.Params("merchant_id"), threshold)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "products": list})
}

// Alerts godoc
// @Summary      Alertas activas del comercio
// @Tags         inventory
// @Produce      json
// @Param        merchant_id  path   string  true   "ID del comercio"
// @Param        limit        query  int     false  "Máximo de resultados"
// @Success      200  {array}  entity.Alert
// @Router       /api/merchants/{merchant_id}/alerts [get]
func (h *InventoryHandler) Alerts(c *fiber.Ctx) error {
	list, err := h.alerts.ListActive(c.Context(), c.Params("merchant_id"), c.QueryInt("limit"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "alerts": list})
}

// AdminAdjustStock godoc
// @Summary      Fijar stock absoluto (admin, queda auditado)
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        merchant_id  path  string  true  "ID del comercio"
// @Param        product_id   path  string  true  "ID del producto"
// @Param        body  body  dto.AdjustStockRequest  true  "new_stock, admin_user, reason"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/admin/merchants/{merchant_id}/products/{product_id}/stock [put]
func (h *InventoryHandler) AdminAdjustStock(c *fiber.Ctx) error {
	var in dto.AdjustStockRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	ok, err := h.engine.AdjustStockAdmin(c.Context(), c.Params("merchant_id"), c.Params("product_id"),
		in.NewStock, in.AdminUser, in.Reason)
	if err != nil {
		return mapError(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "producto no encontrado"})
	}
	return c.JSON(fiber.Map{"message": "stock ajustado"})
}
