package middleware

import (
	"farmdirect-backend/internal/pkg/apperr"
	"farmdirect-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the global error handler. Service errors keep their kind; everything else is 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return response.Error(c, e.Message, e.Code, nil)
	}
	if apperr.KindOf(err) != apperr.Internal {
		return response.FromError(c, err)
	}
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}
