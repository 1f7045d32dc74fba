package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pedidos-api/internal/application/cart"
	"github.com/jhoicas/pedidos-api/internal/application/dto"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
)

// CartHandler maneja las peticiones HTTP de carritos de conversación.
type CartHandler struct {
	uc *cart.UseCase
}

// NewCartHandler construye el handler.
func NewCartHandler(uc *cart.UseCase) *CartHandler {
	return &CartHandler{uc: uc}
}

// Get godoc
// @Summary      Resumen del carrito (lo crea vacío si no existe)
// @Tags         carts
// @Produce      json
// @Param        conversation_id  path  string  true  "ID de conversación"
// @Success      200  {object}  cart.Snapshot
// @Router       /api/carts/{conversation_id} [get]
func (h *CartHandler) Get(c *fiber.Ctx) error {
	snap, err := h.uc.Snapshot(c.Context(), c.Params("conversation_id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(snap)
}

// AddItem godoc
// @Summary      Agregar ítem (si el producto ya está, la cantidad se reemplaza)
// @Tags         carts
// @Accept       json
// @Produce      json
// @Param        conversation_id  path  string  true  "ID de conversación"
// @Param        body  body  dto.AddCartItemRequest  true  "ítem con product_id y quantity"
// @Success      200   {object}  entity.Cart
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/carts/{conversation_id}/items [post]
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var in dto.AddCartItemRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	updated, err := h.uc.AddItem(c.Context(), c.Params("conversation_id"), entity.LineItem{
		ProductID: in.Item.ProductID,
		Name:      in.Item.Name,
		Quantity:  in.Item.Quantity,
		UnitPrice: in.Item.UnitPrice,
		Unit:      in.Item.Unit,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(updated)
}

// UpdateItem godoc
// @Summary      Fijar cantidad de un ítem (cero lo elimina)
// @Tags         carts
// @Accept       json
// @Produce      json
// @Param        conversation_id  path  string  true  "ID de conversación"
// @Param        product_id       path  string  true  "ID del producto"
// @Param        body  body  dto.UpdateCartItemRequest  true  "quantity"
// @Success      200   {object}  entity.Cart
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/carts/{conversation_id}/items/{product_id} [put]
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	var in dto.UpdateCartItemRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	updated, err := h.uc.UpdateQuantity(c.Context(), c.Params("conversation_id"), c.Params("product_id"), in.Quantity)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(updated)
}

// RemoveItem godoc
// @Summary      Quitar un producto del carrito
// @Tags         carts
// @Produce      json
// @Param        conversation_id  path  string  true  "ID de conversación"
// @Param        product_id       path  string  true  "ID del producto"
// @Success      200  {object}  entity.Cart
// @Router       /api/carts/{conversation_id}/items/{product_id} [delete]
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	updated, err := h.uc.RemoveItem(c.Context(), c.Params("conversation_id"), c.Params("product_id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(updated)
}

// Clear godoc
// @Summary      Vaciar el carrito
// @Tags         carts
// @Produce      json
// @Param        conversation_id  path  string  true  "ID de conversación"
// @Success      204  "sin contenido"
// @Router       /api/carts/{conversation_id} [delete]
func (h *CartHandler) Clear(c *fiber.Ctx) error {
	if err := h.uc.Clear(c.Context(), c.Params("conversation_id")); err != nil {
		return mapError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Validate godoc
// @Summary      Validar disponibilidad del carrito contra inventario
// @Tags         carts
// @Produce      json
// @Param        conversation_id  path   string  true  "ID de conversación"
// @Param        merchant_id      query  string  true  "ID del comercio"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/carts/{conversation_id}/validate [get]
func (h *CartHandler) Validate(c *fiber.Ctx) error {
	ok, issues, err := h.uc.ValidateWithInventory(c.Context(), c.Params("conversation_id"), c.Query("merchant_id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"valid": ok, "issues": issues})
}
