package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"slidehub/internal/database"
	"slidehub/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	connManager *services.ConnectionManager
	mongodb     *database.MongoDB
	redis       *services.RedisService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(connManager *services.ConnectionManager, mongodb *database.MongoDB, redis *services.RedisService) *HealthHandler {
	return &HealthHandler{connManager: connManager, mongodb: mongodb, redis: redis}
}

// Handle responds with server health status. The server stays "healthy"
// when Redis is down: editing works offline, only live presence degrades.
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	mongoOK := h.mongodb != nil && h.mongodb.Ping(ctx) == nil
	redisOK := h.redis != nil && h.redis.Ping(ctx) == nil

	status := "healthy"
	code := fiber.StatusOK
	if !mongoOK {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":         status,
		"mongodb":        mongoOK,
		"redis":          redisOK,
		"connections":    h.connManager.Count(),
		"open_documents": h.connManager.OpenDocuments(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}
