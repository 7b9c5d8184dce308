package cart

import (
	cartsvc "farmdirect-backend/internal/application/cart"
	"farmdirect-backend/internal/interfaces/handlers/request"
	"farmdirect-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *cartsvc.Service
}

// Get GET /api/v1/cart
func (h *Handlers) Get(c *fiber.Ctx) error {
	buyer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	cart, err := h.Service.Get(c.UserContext(), buyer)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Cart fetched", fiber.Map{"cart": cart}, nil)
}

// AddItem POST /api/v1/cart/items {product_id, quantity}
func (h *Handlers) AddItem(c *fiber.Ctx) error {
	buyer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	body, err := request.Body(c)
	if err != nil {
		return response.FromError(c, err)
	}
	productID, err := request.UUID(body, "product_id")
	if err != nil {
		return response.FromError(c, err)
	}
	qty, err := request.Int(body, "quantity")
	if err != nil {
		return response.FromError(c, err)
	}
	cart, err := h.Service.AddItem(c.UserContext(), buyer, productID, qty)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Item added to cart", fiber.Map{"cart": cart}, nil)
}

// SetQuantity PUT /api/v1/cart/items/:product_id {quantity}; zero or less removes the line.
func (h *Handlers) SetQuantity(c *fiber.Ctx) error {
	buyer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	productID, err := request.UUIDParam(c, "product_id")
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
	cart, err := h.Service.SetQuantity(c.UserContext(), buyer, productID, qty)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Cart updated", fiber.Map{"cart": cart}, nil)
}

// RemoveItem DELETE /api/v1/cart/items/:product_id
func (h *Handlers) RemoveItem(c *fiber.Ctx) error {
	buyer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	productID, err := request.UUIDParam(c, "product_id")
	if err != nil {
		return response.FromError(c, err)
	}
	cart, err := h.Service.RemoveItem(c.UserContext(), buyer, productID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Item removed from cart", fiber.Map{"cart": cart}, nil)
}

// Clear DELETE /api/v1/cart
func (h *Handlers) Clear(c *fiber.Ctx) error {
	buyer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	cart, err := h.Service.Clear(c.UserContext(), buyer)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Cart cleared", fiber.Map{"cart": cart}, nil)
}
