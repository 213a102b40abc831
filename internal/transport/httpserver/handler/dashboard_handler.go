package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"feed-engine-service/internal/app/session"
	"feed-engine-service/internal/domain"
)

// DashboardHandler handles dashboard-related HTTP requests.
type DashboardHandler struct {
	sessions *session.Service
	storage  domain.CacheStorage
	logger   *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(svc *session.Service, storage domain.CacheStorage, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		sessions: svc,
		storage:  storage,
		logger:   logger,
	}
}

// Render handles GET /dashboard
// Renders the dashboard HTML page using Fiber's template engine.
func (h *DashboardHandler) Render(c *fiber.Ctx) error {
	cacheEntries := 0
	if keys, err := h.storage.GetAllKeys(c.Context()); err == nil {
		cacheEntries = len(keys)
	} else {
		h.logger.Warn("cache key listing failed", zap.Error(err))
	}

	return c.Render("pages/dashboard", fiber.Map{
		"Title":        "Feed Engine Dashboard",
		"SessionCount": h.sessions.Count(),
		"CacheEntries": cacheEntries,
	}, "layouts/base")
}
