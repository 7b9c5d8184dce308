package orders

import (
	"strings"

	ordersvc "farmdirect-backend/internal/application/orders"
	"farmdirect-backend/internal/application/stock"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/interfaces/handlers/request"
	"farmdirect-backend/internal/pkg/apperr"
	"farmdirect-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// IdempotencyHeader lets a client retry checkout without creating a second order.
const IdempotencyHeader = "Idempotency-Key"

type Handlers struct {
	Service *ordersvc.Service
}

type checkoutItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type checkoutBody struct {
	Items           []checkoutItem `json:"items"`
	ShippingAddress domain.Address `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
	NegotiationID   string         `json:"negotiation_id"`
}

func parseCheckout(c *fiber.Ctx) (*checkoutBody, error) {
	var body checkoutBody
	if err := c.BodyParser(&body); err != nil {
		return nil, apperr.New(apperr.ValidationError, "Invalid request body")
	}
	body.PaymentMethod = strings.TrimSpace(body.PaymentMethod)
	return &body, nil
}

// Checkout POST /api/v1/orders {items?, shipping_address, payment_method}
func (h *Handlers) Checkout(c *fiber.Ctx) error {
	buyer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	body, err := parseCheckout(c)
	if err != nil {
		return response.FromError(c, err)
	}
	lines := make([]stock.Line, 0, len(body.Items))
	for _, it := range body.Items {
		lines = append(lines, stock.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	order, err := h.Service.Checkout(c.UserContext(), buyer, ordersvc.CheckoutInput{
		Items:           lines,
		ShippingAddress: body.ShippingAddress,
		PaymentMethod:   body.PaymentMethod,
		IdempotencyKey:  strings.TrimSpace(c.Get(IdempotencyHeader)),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Order placed", fiber.Map{"order": order}, nil)
}

// FromNegotiation POST /api/v1/orders/from-negotiation {negotiation_id, shipping_address, payment_method}
func (h *Handlers) FromNegotiation(c *fiber.Ctx) error {
	buyer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	body, err := parseCheckout(c)
	if err != nil {
		return response.FromError(c, err)
	}
	negotiationID, err := uuid.Parse(strings.TrimSpace(body.NegotiationID))
	if err != nil {
		return response.FromError(c, apperr.New(apperr.ValidationError, "negotiation_id must be a valid id"))
	}
	order, err := h.Service.CreateFromNegotiation(c.UserContext(), buyer, ordersvc.FromNegotiationInput{
		NegotiationID:   negotiationID,
		ShippingAddress: body.ShippingAddress,
		PaymentMethod:   body.PaymentMethod,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Order placed", fiber.Map{"order": order}, nil)
}

func listQuery(c *fiber.Ctx) ordersvc.ListQuery {
	return ordersvc.ListQuery{
		Status: strings.TrimSpace(c.Query("status")),
		Page:   request.QueryInt(c, "page", 1),
		Limit:  request.QueryInt(c, "limit", 0),
	}
}

func pageMeta(p *ordersvc.Page) fiber.Map {
	return fiber.Map{"total": p.Total, "page": p.Page, "limit": p.Limit, "pages": p.Pages}
}

// List GET /api/v1/orders?status&page&limit
func (h *Handlers) List(c *fiber.Ctx) error {
	buyer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	page, err := h.Service.List(c.UserContext(), buyer, listQuery(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Orders fetched", page.Orders, pageMeta(page))
}

// ListForSeller GET /api/v1/orders/seller?status&page&limit
func (h *Handlers) ListForSeller(c *fiber.Ctx) error {
	seller, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	page, err := h.Service.ListForSeller(c.UserContext(), seller, listQuery(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Orders fetched", page.Orders, pageMeta(page))
}

// Get GET /api/v1/orders/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	user, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	order, err := h.Service.Get(c.UserContext(), user, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Order fetched", fiber.Map{"order": order}, nil)
}

// Cancel POST /api/v1/orders/:id/cancel
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	buyer, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	order, err := h.Service.Cancel(c.UserContext(), buyer, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Order cancelled", fiber.Map{"order": order}, nil)
}

// UpdateItemStatus PATCH /api/v1/orders/:id/items/:item_id {status}
func (h *Handlers) UpdateItemStatus(c *fiber.Ctx) error {
	seller, err := request.Actor(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	orderID, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	itemID, err := request.UUIDParam(c, "item_id")
	if err != nil {
		return response.FromError(c, err)
	}
	body, err := request.Body(c)
	if err != nil {
		return response.FromError(c, err)
	}
	status := request.String(body, "status")
	if status == "" {
		return response.FromError(c, apperr.New(apperr.ValidationError, "status is required"))
	}
	order, err := h.Service.UpdateItemStatus(c.UserContext(), seller, orderID, itemID, domain.ItemStatus(strings.ToLower(status)))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Order item updated", fiber.Map{"order": order}, nil)
}
