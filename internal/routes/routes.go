package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/estoque-backend/internal/config"
	"github.com/Ananth-NQI/estoque-backend/internal/handlers"
	"github.com/Ananth-NQI/estoque-backend/internal/middleware"
	"github.com/Ananth-NQI/estoque-backend/internal/services"
	"github.com/Ananth-NQI/estoque-backend/internal/storage"
)

// Version is reported by the root and health endpoints
const Version = "1.0.0"

// Dependencies are the components the HTTP layer talks to
type Dependencies struct {
	Config     *config.Config
	Store      storage.Store
	Engine     *services.Engine
	Dispatcher services.Dispatcher
	Logger     *zap.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Estoque Backend",
			"version": Version,
			"endpoints": fiber.Map{
				"health":        "/health",
				"stock":         "/api/users/:userId/stock",
				"webhook":       "/webhook/whatsapp",
				"test_whatsapp": "/test/whatsapp",
			},
		})
	})

	health := handlers.NewHealthHandler(Version, cfg.WhatsAppProvider, deps.Store)
	app.Get("/health", health.Check)

	api := app.Group("/api")
	stock := handlers.NewStockHandler(deps.Store, logger)
	api.Get("/users/:userId/stock", stock.ListStock)

	whatsapp := handlers.NewWhatsAppHandler(deps.Store, deps.Engine, deps.Dispatcher, cfg.DefaultUserID, logger)
	webhooks := app.Group("/webhook")

	// WhatsApp webhook - ENVIRONMENT-AWARE VALIDATION
	if cfg.ValidateWebhooks() {
		validate := middleware.ValidateTwilioSignature(cfg.TwilioAuthToken, cfg.PublicBaseURL, logger)
		webhooks.Post("/whatsapp", validate, whatsapp.HandleWebhook)
		webhooks.Post("/whatsapp/:userId", validate, whatsapp.HandleWebhook)
	} else {
		logger.Warn("WhatsApp webhook validation DISABLED")
		webhooks.Post("/whatsapp", whatsapp.HandleWebhook)
		webhooks.Post("/whatsapp/:userId", whatsapp.HandleWebhook)
	}

	// unauthenticated, so only exposed when signatures are not enforced
	if !cfg.ValidateWebhooks() {
		app.Post("/test/whatsapp", whatsapp.HandleTestWebhook)
	}
}
