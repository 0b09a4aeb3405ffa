package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/estoque-backend/database"
	"github.com/Ananth-NQI/estoque-backend/internal/config"
	"github.com/Ananth-NQI/estoque-backend/internal/jobs"
	"github.com/Ananth-NQI/estoque-backend/internal/logging"
	"github.com/Ananth-NQI/estoque-backend/internal/routes"
	"github.com/Ananth-NQI/estoque-backend/internal/services"
	"github.com/Ananth-NQI/estoque-backend/internal/storage"
)

func main() {
	cfg, envFiles := config.Load()

	log, err := logging.New(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if len(envFiles) > 0 {
		log.Info("loaded env files", zap.Strings("files", envFiles))
	}

	// Initialize storage
	var store storage.Store
	if cfg.UseMemoryStore {
		log.Warn("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		db, err := database.Connect(cfg, log)
		if err != nil {
			log.Fatal("database unavailable", zap.Error(err))
		}
		store = storage.NewDatabaseStore(db)
	}

	dispatcher, err := services.NewDispatcher(cfg, log)
	if err != nil {
		log.Fatal("could not configure WhatsApp provider", zap.Error(err))
	}

	engine := services.NewEngine(store, dispatcher, log, services.WithSessionTTL(cfg.SessionTTL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	maintenance := jobs.NewMaintenance(engine, engine.Sessions(), jobs.Options{
		SweepInterval:    cfg.SweepInterval,
		SweepMinAge:      cfg.SweepMinAge,
		SweepConcurrency: cfg.SweepConcurrency,
	}, log)
	maintenance.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:               "Estoque Backend v" + routes.Version,
		DisableStartupMessage: !cfg.IsDevelopment(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	routes.SetupRoutes(app, routes.Dependencies{
		Config:     cfg,
		Store:      store,
		Engine:     engine,
		Dispatcher: dispatcher,
		Logger:     log,
	})

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info("🛑 Gracefully shutting down...")
		maintenance.Stop()
		if err := app.Shutdown(); err != nil {
			log.Error("server shutdown", zap.Error(err))
		}
	}()

	log.Info("🚀 Estoque Backend starting",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.Bool("memory_store", cfg.UseMemoryStore),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("whatsapp", cfg.WhatsAppProvider),
		zap.Bool("webhook_validation", cfg.ValidateWebhooks()))

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
