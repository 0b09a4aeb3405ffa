package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/estoque-backend/internal/storage"
)

const healthTimeout = 2 * time.Second

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	Provider string
	store    storage.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, provider string, store storage.Store) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		Provider: provider,
		store:    store,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	storageStatus := "ok"
	status := fiber.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		storageStatus = err.Error()
		status = fiber.StatusServiceUnavailable
	}

	state := "healthy"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   state,
		"service":  "Estoque Backend",
		"version":  h.Version,
		"storage":  storageStatus,
		"whatsapp": h.Provider,
	})
}
