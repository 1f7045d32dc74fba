package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pedidos-api/internal/application/dto"
	"github.com/jhoicas/pedidos-api/internal/application/order"
	"github.com/jhoicas/pedidos-api/internal/domain/entity"
)

// OrderHandler maneja las peticiones HTTP del ciclo de vida de pedidos.
// La expiración NO se expone: solo la produce el scheduler.
type OrderHandler struct {
	uc *order.UseCase
}

// NewOrderHandler construye el handler.
func NewOrderHandler(uc *order.UseCase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

// Create godoc
// @Summary      Crear pedido
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateOrderRequest  true  "merchant_id, customer_phone, items"
// @Success      201   {object}  entity.Order
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/orders [post]
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	o, err := h.uc.Create(c.Context(), order.CreateInput{
		ConversationID:  in.ConversationID,
		MerchantID:      in.MerchantID,
		CustomerPhone:   in.CustomerPhone,
		CustomerName:    in.CustomerName,
		DeliveryAddress: in.DeliveryAddress,
		Items:           toLineItems(in.Items),
		DeclaredTotal:   in.TotalAmount,
		Notes:           in.Notes,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(o)
}

// Get godoc
// @Summary      Consultar pedido
// @Tags         orders
// @Produce      json
// @Param        id  path  string  true  "ID del pedido"
// @Success      200  {object}  entity.Order
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	o, err := h.uc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(o)
}

// Accept godoc
// @Summary      Aceptar pedido (deduce inventario)
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del pedido"
// @Param        body  body  dto.AcceptOrderRequest  true  "merchant_id"
// @Success      200   {object}  entity.Order
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/accept [post]
func (h *OrderHandler) Accept(c *fiber.Ctx) error {
	var in dto.AcceptOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	o, err := h.uc.Accept(c.Context(), c.Params("id"), in.MerchantID)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(o)
}

// Decline godoc
// @Summary      Rechazar pedido
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del pedido"
// @Param        body  body  dto.DeclineOrderRequest  true  "merchant_id, reason"
// @Success      200   {object}  entity.Order
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/decline [post]
func (h *OrderHandler) Decline(c *fiber.Ctx) error {
	var in dto.DeclineOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	o, err := h.uc.Decline(c.Context(), c.Params("id"), in.MerchantID, in.Reason)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(o)
}

// Complete godoc
// @Summary      Marcar pedido como entregado
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del pedido"
// @Param        body  body  dto.CompleteOrderRequest  true  "merchant_id"
// @Success      200   {object}  entity.Order
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/complete [post]
func (h *OrderHandler) Complete(c *fiber.Ctx) error {
	var in dto.CompleteOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	o, err := h.uc.Complete(c.Context(), c.Params("id"), in.MerchantID)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(o)
}

// Cancel godoc
// @Summary      Cancelar pedido (devuelve stock si fue aceptado)
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del pedido"
// @Param        body  body  dto.CancelOrderRequest  true  "reason, cancelled_by (customer|merchant)"
// @Success      200   {object}  entity.Order
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	by := entity.Role(in.CancelledBy)
	if in.CancelledBy == "" {
		by = entity.RoleCustomer
	}
	o, err := h.uc.Cancel(c.Context(), c.Params("id"), in.MerchantID, in.Reason, by)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(o)
}

// ListByMerchant godoc
// @Summary      Pedidos de un comercio
// @Tags         orders
// @Produce      json
// @Param        merchant_id  path   string  true   "ID del comercio"
// @Param        status       query  string  false  "Filtro: pending,accepted,..."
// @Param        limit        query  int     false  "Máximo de resultados"
// @Success      200  {array}  entity.Order
// @Router       /api/merchants/{merchant_id}/orders [get]
func (h *OrderHandler) ListByMerchant(c *fiber.Ctx) error {
	list, err := h.uc.ListByMerchant(c.Context(), c.Params("merchant_id"),
		parseStatuses(c.Query("status")), c.QueryInt("limit"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "orders": list})
}

// ListByCustomer godoc
// @Summary      Pedidos de un cliente
// @Tags         orders
// @Produce      json
// @Param        phone   path   string  true   "Teléfono del cliente"
// @Param        status  query  string  false  "Filtro de estados"
// @Param        limit   query  int     false  "Máximo de resultados"
// @Success      200  {array}  entity.Order
// @Router       /api/customers/{phone}/orders [get]
func (h *OrderHandler) ListByCustomer(c *fiber.Ctx) error {
	list, err := h.uc.ListByCustomer(c.Context(), c.Params("phone"),
		parseStatuses(c.Query("status")), c.QueryInt("limit"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "orders": list})
}

// Stats godoc
// @Summary      Resumen de pedidos de un comercio
// @Tags         orders
// @Produce      json
// @Param        merchant_id  path  string  true  "ID del comercio"
// @Success      200  {object}  order.Stats
// @Router       /api/merchants/{merchant_id}/orders/stats [get]
func (h *OrderHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.uc.MerchantOrderStats(c.Context(), c.Params("merchant_id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(stats)
}

// AdminApprove godoc
// @Summary      Aprobar pedido (admin, también desde review)
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del pedido"
// @Param        body  body  dto.AdminApproveRequest  true  "admin_user"
// @Success      200   {object}  entity.Order
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/admin/orders/{id}/approve [post]
func (h *OrderHandler) AdminApprove(c *fiber.Ctx) error {
	var in dto.AdminApproveRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	o, err := h.uc.ApproveAdmin(c.Context(), c.Params("id"), in.AdminUser)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(o)
}

// AdminCancel godoc
// @Summary      Cancelación forzada (admin). No-op sobre cancelado/completado.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del pedido"
// @Param        body  body  dto.AdminCancelRequest  true  "admin_user, reason"
// @Success      200   {object}  entity.Order
// @Router       /api/admin/orders/{id}/cancel [post]
func (h *OrderHandler) AdminCancel(c *fiber.Ctx) error {
	var in dto.AdminCancelRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	o, err := h.uc.ForceCancelAdmin(c.Context(), c.Params("id"), in.AdminUser, in.Reason)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(o)
}
