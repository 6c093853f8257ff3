package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"frozen-pos/internal/config"
	"frozen-pos/internal/events"
	"frozen-pos/internal/handler"
	"frozen-pos/internal/middleware"
	"frozen-pos/internal/model"
	"frozen-pos/internal/repository"
	"frozen-pos/internal/seed"
	"frozen-pos/internal/service"
	"frozen-pos/internal/ws"
	"frozen-pos/pkg/database"
	"frozen-pos/pkg/jwt"
	"frozen-pos/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Env
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// 2. Telemetry and logger
	otelShutdown, err := observability.Setup(ctx, observability.Settings{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Endpoint:       cfg.OtelEndpoint,
		AuthHeader:     cfg.OtelAuthHeader,
	})
	if err != nil {
		panic(err)
	}
	log := observability.NewLogger(config.ServiceName, cfg.LogLevel, cfg.TracingEnabled())
	defer func() { _ = log.Sync() }()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := otelShutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown", zap.Error(err))
	}
	log.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// 3. Setup Database
	db, err := database.ConnectDB(database.Options{DSN: cfg.DSN(), Debug: cfg.LogLevel == "debug"}, log)
	if err != nil {
		return err
	}
	if cfg.DBAutoMigrate {
		// Production deployments run `posctl migrate up` instead.
		if err := db.AutoMigrate(model.All()...); err != nil {
			return err
		}
	}

	// 4. Seed default privileges, roles, and admin user
	if err := seed.Defaults(ctx, db, seed.Admin{Email: cfg.AdminEmail, Password: cfg.AdminPassword}, log.Named("seed")); err != nil {
		log.Warn("seeding failed", zap.Error(err))
	}

	// 5. Event fan-out: websocket hub, plus Kafka when configured
	wsHub := ws.NewHub(log.Named("ws"))
	go wsHub.Run(ctx)

	publishers := events.Multi{wsHub}
	if cfg.KafkaEnabled() {
		writer, err := events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic, config.ServiceName, otel.GetTracerProvider())
		if err != nil {
			return err
		}
		kafkaPub := events.NewKafkaPublisher(writer)
		defer func() { _ = kafkaPub.Close() }()
		publishers = append(publishers, kafkaPub)
		log.Info("kafka publishing enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	// 6. Dependency Injection (Wiring Layers)
	txRunner := database.NewTxRunner(db, log.Named("tx"),
		database.WithMaxRetries(cfg.DBTxMaxRetries),
		database.WithSerializable(cfg.DBSerializable),
	)
	tokens := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	productRepo := repository.NewProductRepo(db)
	stockLogRepo := repository.NewStockLogRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	categoryRepo := repository.NewCategoryRepo(db)
	reportRepo := repository.NewReportRepo(db)
	userRepo := repository.NewUserRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	svcLog := log.Named("service")
	productService := service.NewProductService(txRunner, productRepo, stockLogRepo, categoryRepo, publishers, svcLog)
	stockService := service.NewStockService(txRunner, productRepo, stockLogRepo, publishers, svcLog)
	orderService := service.NewOrderService(txRunner, orderRepo, productRepo, stockLogRepo, publishers, svcLog)
	categoryService := service.NewCategoryService(txRunner, categoryRepo, publishers, svcLog)
	reportService := service.NewReportService(reportRepo, service.ReportOptions{
		Location:          cfg.Location(),
		LowStockThreshold: cfg.LowStockThreshold,
		ExpiryWarningDays: cfg.ExpiryWarningDays,
	})
	authService := service.NewAuthService(userRepo, tokens, cfg.SessionIdleTimeout, publishers, svcLog)
	userService := service.NewUserService(userRepo, privilegeRepo, roleRepo)

	hLog := log.Named("http")
	productHandler := handler.NewProductHandler(productService, hLog)
	stockHandler := handler.NewStockHandler(stockService, hLog)
	orderHandler := handler.NewOrderHandler(orderService, hLog)
	categoryHandler := handler.NewCategoryHandler(categoryService, hLog)
	reportHandler := handler.NewReportHandler(reportService, cfg.Location(), hLog)
	authHandler := handler.NewAuthHandler(authService, hLog)
	userHandler := handler.NewUserHandler(userService, hLog)
	roleHandler := handler.NewRoleHandler(roleRepo, privilegeRepo, hLog)

	// 7. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Frozen POS v" + config.ServiceVersion,
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS

	// 8. Routes
	api := app.Group("/api/v1")
	requireAuth := middleware.RequireAuth(authService)
	can := middleware.RequirePrivilege

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Post("/validate-token", authHandler.ValidateToken)
	auth.Post("/heartbeat", requireAuth, authHandler.Heartbeat)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)

	// Catalogue
	protected.Get("/products", can(model.PrivProductView), productHandler.GetProducts)
	protected.Get("/products/:id", can(model.PrivProductView), productHandler.GetProduct)
	protected.Post("/products", can(model.PrivProductCreate), productHandler.CreateProduct)
	protected.Put("/products/:id", can(model.PrivProductUpdate), productHandler.UpdateProduct)
	protected.Delete("/products/:id", can(model.PrivProductDelete), productHandler.DeleteProduct)

	protected.Get("/categories", can(model.PrivCategoryView), categoryHandler.GetCategories)
	protected.Post("/categories", can(model.PrivCategoryManage), categoryHandler.CreateCategory)
	protected.Delete("/categories/:id", can(model.PrivCategoryManage), categoryHandler.DeleteCategory)

	// Stock movement log
	protected.Get("/stock-logs", can(model.PrivStockView), stockHandler.GetLogs)
	protected.Get("/stock-logs/:id", can(model.PrivStockView), stockHandler.GetLog)
	protected.Post("/stock-logs", can(model.PrivStockRecord), stockHandler.RecordMovement)
	protected.Patch("/stock-logs/:id/notes", can(model.PrivStockRecord), stockHandler.UpdateNotes)
	protected.Delete("/stock-logs/:id", can(model.PrivStockReverse), stockHandler.ReverseMovement)

	// Orders
	protected.Get("/orders", can(model.PrivOrderView), orderHandler.GetOrders)
	protected.Get("/orders/:id", can(model.PrivOrderView), orderHandler.GetOrder)
	protected.Post("/orders", can(model.PrivOrderCreate), orderHandler.CreateOrder)
	protected.Put("/orders/:id", can(model.PrivOrderUpdate), orderHandler.UpdateOrder)
	protected.Delete("/orders/:id", can(model.PrivOrderDelete), orderHandler.DeleteOrder)
	protected.Post("/orders/:id/items", can(model.PrivOrderUpdate), orderHandler.AddItem)
	protected.Put("/order-items/:id", can(model.PrivOrderUpdate), orderHandler.UpdateItem)
	protected.Delete("/order-items/:id", can(model.PrivOrderUpdate), orderHandler.DeleteItem)

	// Reports
	reports := protected.Group("/reports", can(model.PrivReportView))
	reports.Get("/summary", reportHandler.GetSummary)
	reports.Get("/sales-trend", reportHandler.GetSalesTrend)
	reports.Get("/top-products", reportHandler.GetTopProducts)
	reports.Get("/stock-movement", reportHandler.GetStockMovement)
	reports.Get("/dashboard", reportHandler.GetDashboard)
	reports.Get("/reconciliation", reportHandler.GetReconciliation)

	// User Management Routes (with privilege checks)
	protected.Get("/users", can(model.PrivUserView), userHandler.GetUsers)
	protected.Get("/users/:id", can(model.PrivUserView), userHandler.GetUser)
	protected.Post("/users", can(model.PrivUserCreate), userHandler.CreateUser)
	protected.Put("/users/:id", can(model.PrivUserUpdate), userHandler.UpdateUser)
	protected.Delete("/users/:id", can(model.PrivUserDelete), userHandler.DeleteUser)
	protected.Put("/users/:id/privileges", can(model.PrivUserUpdatePrivilege), userHandler.UpdateUserPrivileges)

	protected.Get("/roles", roleHandler.GetRoles)
	protected.Get("/privileges", roleHandler.GetPrivileges)

	// WebSocket Route
	app.Use("/ws", ws.Upgrade)
	app.Get("/ws", wsHub.Handler())

	// 9. Graceful Shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("port", cfg.Port))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}
