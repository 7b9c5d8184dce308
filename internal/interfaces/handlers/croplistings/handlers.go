package croplistings

import (
	"strings"
	"time"

	cropsvc "farmdirect-backend/internal/application/croplistings"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/interfaces/handlers/request"
	"farmdirect-backend/internal/pkg/apperr"
	"farmdirect-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
)

type Handlers struct {
	Service *cropsvc.Service
}

// optionalTime accepts RFC 3339 timestamps or plain dates.
func optionalTime(body map[string]interface{}, key string) (*time.Time, error) {
	raw := request.String(body, key)
	if raw == "" {
		return nil, nil
	}
	t, err := cast.ToTimeE(raw)
	if err != nil {
		return nil, apperr.Newf(apperr.ValidationError, "%s must be a date", key)
	}
	return &t, nil
}

// Create POST /api/v1/crop-listings
func (h *Handlers) Create(c *fiber.Ctx) error {
	farmer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	body, err := request.Body(c)
	if err != nil {
		return response.FromError(c, err)
	}
	available, err := request.Int(body, "available")
	if err != nil {
		return response.FromError(c, err)
	}
	base, err := request.Float(body, "base_price")
	if err != nil {
		return response.FromError(c, err)
	}
	minPrice, err := request.OptionalFloat(body, "min_price")
	if err != nil {
		return response.FromError(c, err)
	}
	until, err := optionalTime(body, "available_until")
	if err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.Create(c.UserContext(), farmer, cropsvc.CreateInput{
		CropName:       request.String(body, "crop_name"),
		Variety:        request.String(body, "variety"),
		Unit:           request.String(body, "unit"),
		Location:       request.String(body, "location"),
		Available:      available,
		BasePrice:      base,
		Negotiable:     request.Bool(body, "negotiable"),
		MinPrice:       minPrice,
		AvailableUntil: until,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Crop listing created", fiber.Map{"listing": listing}, nil)
}

// List GET /api/v1/crop-listings?status&farmer_id
func (h *Handlers) List(c *fiber.Ctx) error {
	farmerID, err := request.OptionalUUIDQuery(c, "farmer_id")
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.List(c.UserContext(), cropsvc.ListFilter{
		Status:   strings.TrimSpace(c.Query("status")),
		FarmerID: farmerID,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Crop listings fetched", list, fiber.Map{"total": len(list)})
}

// Get GET /api/v1/crop-listings/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Crop listing fetched", fiber.Map{"listing": listing}, nil)
}

// Close POST /api/v1/crop-listings/:id/close
func (h *Handlers) Close(c *fiber.Ctx) error {
	farmer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.Close(c.UserContext(), farmer, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Crop listing closed", fiber.Map{"listing": listing}, nil)
}

// AddOrder POST /api/v1/crop-listings/:id/orders {quantity, price, notes}
func (h *Handlers) AddOrder(c *fiber.Ctx) error {
	buyer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	body, err := request.Body(c)
	if err != nil {
		return response.FromError(c, err)
	}
	qty, err := request.Int(body, "quantity")
	if err != nil {
		return response.FromError(c, err)
	}
	price, err := request.Float(body, "price")
	if err != nil {
		return response.FromError(c, err)
	}
	order, err := h.Service.AddOrder(c.UserContext(), id, buyer, cropsvc.OrderInput{
		Quantity: qty,
		Price:    price,
		Notes:    request.String(body, "notes"),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Crop order placed", fiber.Map{"order": order}, nil)
}

// UpdateOrderStatus PATCH /api/v1/crop-listings/:id/orders/:order_id {status, delivery_date?}
func (h *Handlers) UpdateOrderStatus(c *fiber.Ctx) error {
	farmer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	listingID, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	orderID, err := request.UUIDParam(c, "order_id")
	if err != nil {
		return response.FromError(c, err)
	}
	body, err := request.Body(c)
	if err != nil {
		return response.FromError(c, err)
	}
	status := strings.ToLower(request.String(body, "status"))
	if status == "" {
		return response.FromError(c, apperr.New(apperr.ValidationError, "status is required"))
	}
	delivery, err := optionalTime(body, "delivery_date")
	if err != nil {
		return response.FromError(c, err)
	}
	order, err := h.Service.UpdateOrderStatus(c.UserContext(), farmer, listingID, orderID, domain.CropOrderStatus(status), delivery)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Crop order updated", fiber.Map{"order": order}, nil)
}
