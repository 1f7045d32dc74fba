package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/pedidos-api/internal/application/cart"
	"github.com/jhoicas/pedidos-api/internal/application/inventory"
	"github.com/jhoicas/pedidos-api/internal/application/order"
	"github.com/jhoicas/pedidos-api/internal/application/ports"
	"github.com/jhoicas/pedidos-api/internal/application/rules"
	"github.com/jhoicas/pedidos-api/internal/application/scheduler"
	"github.com/jhoicas/pedidos-api/internal/domain/repository"
	"github.com/jhoicas/pedidos-api/internal/infrastructure/knowledge"
	"github.com/jhoicas/pedidos-api/internal/infrastructure/memory"
	"github.com/jhoicas/pedidos-api/internal/infrastructure/notify"
	"github.com/jhoicas/pedidos-api/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/pedidos-api/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/pedidos-api/internal/interfaces/http"
	"github.com/jhoicas/pedidos-api/pkg/config"
	"github.com/jhoicas/pedidos-api/pkg/locks"
	"github.com/jhoicas/pedidos-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()

	// Persistencia: postgres en producción, memoria en desarrollo/tests.
	var (
		products  repository.ProductRepository
		movements repository.MovementRepository
		merchants repository.MerchantRepository
		orders    repository.OrderRepository
		audit     repository.AdminAuditRepository
		alerts    repository.AlertRepository
		carts     repository.CartRepository
	)
	switch cfg.Store.Driver {
	case "postgres":
		pool, perr := postgres.NewPool(ctx, cfg.DB)
		if perr != nil {
			log.Fatal().Err(perr).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		products = postgres.NewProductRepository(pool)
		movements = postgres.NewMovementRepository(pool)
		merchants = postgres.NewMerchantRepository(pool)
		orders = postgres.NewOrderRepository(pool)
		audit = postgres.NewAdminAuditRepository(pool)
		alerts = postgres.NewAlertRepository(pool)
	default:
		store := memory.NewStore()
		products = store.Products()
		movements = store.Movements()
		merchants = store.Merchants()
		orders = store.Orders()
		audit = store.AdminAudit()
		alerts = store.Alerts()
		carts = store.Carts()
	}

	// Carritos: Redis si hay addr configurado, memoria si no.
	if cfg.Redis.Addr != "" {
		client, rerr := infraredis.NewClient(ctx, cfg.Redis)
		if rerr != nil {
			log.Fatal().Err(rerr).Msg("conexión a Redis")
		}
		defer client.Close()
		carts = infraredis.NewCartRepository(client)
	} else if carts == nil {
		carts = memory.NewStore().Carts()
	}

	// Notificador: gateway real si hay URL, solo log si no.
	var notifier ports.Notifier
	if cfg.Notify.APIURL != "" {
		notifier = notify.NewWhatsAppGateway(cfg.Notify.APIURL, cfg.Notify.Token, log)
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	// Registros de locks SEPARADOS: el flujo de pedidos emite devoluciones de
	// stock reteniendo su lock; compartir tabla podría colisionar claves de
	// pedido y de producto en el mismo shard.
	stockLocks := locks.NewRegistry()
	orderLocks := locks.NewRegistry()

	engine := inventory.NewEngine(products, movements, audit, stockLocks, log)
	ruleEngine := rules.NewEngine(products, merchants, alerts, notifier, log, cfg.Orders.LargeOrderThreshold)
	indexer := knowledge.NewLoggingIndexer(log)

	orderUC := order.NewUseCase(
		orders, merchants, audit, engine, orderLocks,
		notifier, ruleEngine, indexer, log,
		time.Duration(cfg.Orders.TTLHours)*time.Hour,
	)
	cartUC := cart.NewUseCase(carts, engine, log, time.Duration(cfg.Orders.CartTTLHours)*time.Hour)

	sched := scheduler.New(
		orderUC, orders, merchants, notifier, log,
		time.Duration(cfg.Orders.SchedulerIntervalSecs)*time.Second,
		cfg.Orders.ReminderOffsetsHours,
	)
	schedCtx, schedCancel := context.WithCancel(ctx)
	sched.Start(schedCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Pedidos API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		OrderUC: orderUC,
		CartUC:  cartUC,
		Engine:  engine,
		Alerts:  alerts,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	schedCancel()
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
