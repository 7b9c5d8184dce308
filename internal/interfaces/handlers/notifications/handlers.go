package notifications

import (
	"farmdirect-backend/internal/infrastructure/events"
	"farmdirect-backend/internal/interfaces/handlers/request"
	"farmdirect-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Inbox *events.Inbox
}

// List GET /api/v1/notifications?limit
func (h *Handlers) List(c *fiber.Ctx) error {
	user, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	items, err := h.Inbox.List(c.UserContext(), user.String(), request.QueryInt(c, "limit", 20))
	if err != nil {
		return response.Error(c, "Failed to load notifications", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Notifications fetched", items, fiber.Map{"total": len(items)})
}
