package products

import (
	productsvc "farmdirect-backend/internal/application/products"
	"farmdirect-backend/internal/interfaces/handlers/request"
	"farmdirect-backend/internal/middleware"
	"farmdirect-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *productsvc.Service
}

// Create POST /api/v1/products
func (h *Handlers) Create(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	body, err := request.Body(c)
	if err != nil {
		return response.FromError(c, err)
	}
	selling, err := request.Float(body, "selling")
	if err != nil {
		return response.FromError(c, err)
	}
	floor, err := request.OptionalFloat(body, "min_negotiable")
	if err != nil {
		return response.FromError(c, err)
	}
	stock, err := request.Int(body, "stock")
	if err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Create(c.UserContext(), actor, productsvc.CreateInput{
		Name:          request.String(body, "name"),
		Description:   request.String(body, "description"),
		Category:      request.String(body, "category"),
		Unit:          request.String(body, "unit"),
		Selling:       selling,
		MinNegotiable: floor,
		Negotiable:    request.Bool(body, "negotiable"),
		Stock:         stock,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Product created", fiber.Map{"product": p}, nil)
}

// List GET /api/v1/products?seller_id&category&page&limit
func (h *Handlers) List(c *fiber.Ctx) error {
	seller, err := request.OptionalUUIDQuery(c, "seller_id")
	if err != nil {
		return response.FromError(c, err)
	}
	page, err := h.Service.List(c.UserContext(), productsvc.ListFilter{
		SellerID: seller,
		Category: c.Query("category"),
		Page:     request.QueryInt(c, "page", 1),
		Limit:    request.QueryInt(c, "limit", 0),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Products fetched", page.Products, fiber.Map{
		"total": page.Total, "page": page.Page, "limit": page.Limit,
	})
}

// Get GET /api/v1/products/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Product fetched", fiber.Map{"product": p}, nil)
}

// Update PATCH /api/v1/products/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var in productsvc.UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	p, err := h.Service.Update(c.UserContext(), actor, middleware.CurrentRole(c), id, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Product updated", fiber.Map{"product": p}, nil)
}

// Restock POST /api/v1/products/:id/restock {quantity}
func (h *Handlers) Restock(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
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
	p, err := h.Service.Restock(c.UserContext(), actor, middleware.CurrentRole(c), id, qty)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Product restocked", fiber.Map{"product": p}, nil)
}

// Deactivate DELETE /api/v1/products/:id
func (h *Handlers) Deactivate(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.Deactivate(c.UserContext(), actor, middleware.CurrentRole(c), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Product deactivated", nil, nil)
}
