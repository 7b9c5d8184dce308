package middleware

import (
	"strings"
	"time"

	"farmdirect-backend/internal/pkg/apperr"
	"farmdirect-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RouteLogger logs one line per finished request with status, duration, trace
// ID and the session user. Health and metrics polling logs at debug level.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		traceID := GetTraceID(c)
		if traceID == "" {
			traceID = "no-trace-id"
		}
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = response.StatusFor(apperr.KindOf(err))
			}
		}

		path := c.Path()
		var ev *zerolog.Event
		switch {
		case strings.HasPrefix(path, "/health") || path == "/metrics":
			ev = log.Debug()
		case status >= fiber.StatusInternalServerError:
			ev = log.Error()
		case status >= fiber.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		ev = ev.Str("trace_id", traceID).Str("method", c.Method()).Str("path", path).
			Int("status", status).Int64("ms", time.Since(start).Milliseconds())
		if uid, ok := CurrentUserID(c); ok {
			ev = ev.Str("user_id", uid.String())
		}
		ev.Msg("request done")
		return err
	}
}
