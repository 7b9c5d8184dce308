// Package request holds the parsing helpers shared by the marketplace handlers.
package request

import (
	"math"
	"strconv"
	"strings"

	"farmdirect-backend/internal/middleware"
	"farmdirect-backend/internal/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// ErrNoActor is returned when the session carries no usable user id.
var ErrNoActor = apperr.New(apperr.Unauthorized, "Unauthorized")

// Actor returns the session user's id.
func Actor(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		return uuid.Nil, ErrNoActor
	}
	return id, nil
}

// UUIDParam parses a route parameter as a UUID.
func UUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.Newf(apperr.ValidationError, "Invalid %s", name)
	}
	return id, nil
}

// OptionalUUIDQuery parses a query value; empty means nil.
func OptionalUUIDQuery(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Newf(apperr.ValidationError, "Invalid %s", name)
	}
	return &id, nil
}

// QueryInt reads an integer query value, falling back to def when absent or malformed.
func QueryInt(c *fiber.Ctx, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return def
	}
	return n
}

// Body decodes a JSON object body into a loose map so numeric fields may arrive
// as numbers or strings. An empty body decodes to an empty map.
func Body(c *fiber.Ctx) (map[string]interface{}, error) {
	body := map[string]interface{}{}
	if len(c.Body()) == 0 {
		return body, nil
	}
	if err := c.BodyParser(&body); err != nil {
		return nil, apperr.New(apperr.ValidationError, "Invalid request body")
	}
	return body, nil
}

// Int coerces body[key] to an int. Strings are read in base 10 and
// fractional numbers are refused rather than truncated.
func Int(body map[string]interface{}, key string) (int, error) {
	v, ok := body[key]
	if !ok || v == nil {
		return 0, apperr.Newf(apperr.ValidationError, "%s is required", key)
	}
	if s, isString := v.(string); isString {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, apperr.Newf(apperr.ValidationError, "%s must be an integer", key)
		}
		return n, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, apperr.Newf(apperr.ValidationError, "%s must be an integer", key)
	}
	return int(f), nil
}

// Float coerces body[key] to a float64.
func Float(body map[string]interface{}, key string) (float64, error) {
	v, ok := body[key]
	if !ok || v == nil {
		return 0, apperr.Newf(apperr.ValidationError, "%s is required", key)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, apperr.Newf(apperr.ValidationError, "%s must be a number", key)
	}
	return f, nil
}

// OptionalFloat is Float for fields that may be omitted.
func OptionalFloat(body map[string]interface{}, key string) (*float64, error) {
	if v, ok := body[key]; !ok || v == nil {
		return nil, nil
	}
	f, err := Float(body, key)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// UUID reads body[key] as a UUID string.
func UUID(body map[string]interface{}, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(cast.ToString(body[key]))
	if err != nil {
		return uuid.Nil, apperr.Newf(apperr.ValidationError, "%s must be a valid id", key)
	}
	return id, nil
}

func String(body map[string]interface{}, key string) string {
	return strings.TrimSpace(cast.ToString(body[key]))
}

func Bool(body map[string]interface{}, key string) bool {
	return cast.ToBool(body[key])
}
