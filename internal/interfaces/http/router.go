package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pedidos-api/internal/application/cart"
	"github.com/jhoicas/pedidos-api/internal/application/inventory"
	"github.com/jhoicas/pedidos-api/internal/application/order"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	OrderUC *order.UseCase
	CartUC  *cart.UseCase
	Engine  *inventory.Engine
	Alerts  repository.AlertRepository
}

// Router registra las rutas de la API. No hay ruta de expiración: expirar es
// exclusivo del scheduler.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Pedidos
	orders := api.Group("/orders")
	orderHandler := NewOrderHandler(deps.OrderUC)
	orders.Post("/", orderHandler.Create)
	orders.Get("/:id", orderHandler.Get)
	orders.Post("/:id/accept", orderHandler.Accept)
	orders.Post("/:id/decline", orderHandler.Decline)
	orders.Post("/:id/complete", orderHandler.Complete)
	orders.Post("/:id/cancel", orderHandler.Cancel)

	// Vistas por comercio y cliente
	api.Get("/merchants/:merchant_id/orders", orderHandler.ListByMerchant)
	api.Get("/merchants/:merchant_id/orders/stats", orderHandler.Stats)
	api.Get("/customers/:phone/orders", orderHandler.ListByCustomer)

	// Inventario
	inventoryHandler := NewInventoryHandler(deps.Engine, deps.Alerts)
	api.Post("/merchants/:merchant_id/products", inventoryHandler.AddProduct)
	api.Get("/merchants/:merchant_id/products", inventoryHandler.List)
	api.Get("/merchants/:merchant_id/products/low-stock", inventoryHandler.LowStock)
	api.Get("/merchants/:merchant_id/products/:product_id/stock", inventoryHandler.GetStock)
	api.Get("/merchants/:merchant_id/movements", inventoryHandler.Movements)
	api.Get("/merchants/:merchant_id/alerts", inventoryHandler.Alerts)

	// Carritos
	carts := api.Group("/carts")
	cartHandler := NewCartHandler(deps.CartUC)
	carts.Get("/:conversation_id", cartHandler.Get)
	carts.Delete("/:conversation_id", cartHandler.Clear)
	carts.Get("/:conversation_id/validate", cartHandler.Validate)
	carts.Post("/:conversation_id/items", cartHandler.AddItem)
	carts.Put("/:conversation_id/items/:product_id", cartHandler.UpdateItem)
	carts.Delete("/:conversation_id/items/:product_id", cartHandler.RemoveItem)

	// Admin
	admin := api.Group("/admin")
	admin.Post("/orders/:id/approve", orderHandler.AdminApprove)
	admin.Post("/orders/:id/cancel", orderHandler.AdminCancel)
	admin.Put("/merchants/:merchant_id/products/:product_id/stock", inventoryHandler.AdminAdjustStock)
}
