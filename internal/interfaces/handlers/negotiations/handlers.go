package negotiations

import (
	negsvc "farmdirect-backend/internal/application/negotiations"
	"farmdirect-backend/internal/interfaces/handlers/request"
	"farmdirect-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *negsvc.Service
}

// Create POST /api/v1/negotiations {product_id, proposed_price, quantity, message}
func (h *Handlers) Create(c *fiber.Ctx) error {
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
	price, err := request.Float(body, "proposed_price")
	if err != nil {
		return response.FromError(c, err)
	}
	qty, err := request.Int(body, "quantity")
	if err != nil {
		return response.FromError(c, err)
	}
	n, err := h.Service.Create(c.UserContext(), buyer, negsvc.CreateInput{
		ProductID:     productID,
		ProposedPrice: price,
		Quantity:      qty,
		Message:       request.String(body, "message"),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Negotiation created", fiber.Map{"negotiation": n}, nil)
}

// List GET /api/v1/negotiations?product_id&role
func (h *Handlers) List(c *fiber.Ctx) error {
	user, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	productID, err := request.OptionalUUIDQuery(c, "product_id")
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.List(c.UserContext(), user, negsvc.ListFilter{ProductID: productID, Role: c.Query("role")})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Negotiations fetched", list, fiber.Map{"total": len(list)})
}

// Get GET /api/v1/negotiations/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	user, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	n, err := h.Service.Get(c.UserContext(), user, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Negotiation fetched", fiber.Map{"negotiation": n}, nil)
}

// Accept POST /api/v1/negotiations/:id/accept
func (h *Handlers) Accept(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	n, err := h.Service.Accept(c.UserContext(), actor, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Negotiation accepted", fiber.Map{"negotiation": n}, nil)
}

// Reject POST /api/v1/negotiations/:id/reject {reason?}
func (h *Handlers) Reject(c *fiber.Ctx) error {
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
	n, err := h.Service.Reject(c.UserContext(), actor, id, request.String(body, "reason"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Negotiation rejected", fiber.Map{"negotiation": n}, nil)
}

// Counter POST /api/v1/negotiations/:id/counter {price, message}
func (h *Handlers) Counter(c *fiber.Ctx) error {
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
	price, err := request.Float(body, "price")
	if err != nil {
		return response.FromError(c, err)
	}
	n, err := h.Service.Counter(c.UserContext(), actor, id, price, request.String(body, "message"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Counter offer sent", fiber.Map{"negotiation": n}, nil)
}

// Message POST /api/v1/negotiations/:id/messages {message}
func (h *Handlers) Message(c *fiber.Ctx) error {
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
	n, err := h.Service.Message(c.UserContext(), actor, id, request.String(body, "message"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Message sent", fiber.Map{"negotiation": n}, nil)
}
