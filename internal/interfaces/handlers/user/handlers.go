package user

import (
	usersvc "farmdirect-backend/internal/application/user"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/middleware"
	"farmdirect-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers holds the user service and session config for create-user (session + cookie).
type Handlers struct {
	Service *usersvc.Service
	Config  middleware.SessionConfig
}

// CreateUser POST /api/v1/users/create-user registers, starts a session and returns 201 with data.user.
func (h *Handlers) CreateUser(c *fiber.Ctx) error {
	var req usersvc.CreateUserInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	if req.Email == "" || req.Password == "" || req.Fullname == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}

	u, err := h.Service.CreateUser(c.UserContext(), req)
	if err != nil {
		return response.FromError(c, err)
	}

	sid := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID:   u.UserID.String(),
		Fullname: u.Fullname,
		Email:    u.Email,
		Role:     u.Role,
		Verified: u.Verified,
	})
	if h.Service.Rdb != nil {
		_ = h.Service.Rdb.SAdd(c.UserContext(), middleware.UserSessionsPrefix+u.UserID.String(), sid).Err()
	}
	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sid
	c.Cookie(&cookie)

	return response.SuccessCreated(c, "User created successfully", fiber.Map{"user": safeUser(u)}, nil)
}

// UpdateUser PUT /api/v1/users/update-user updates the session user.
func (h *Handlers) UpdateUser(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil || len(body) == 0 {
		return response.Error(c, "Missing update fields", 400, nil)
	}
	u, err := h.Service.UpdateUser(c.UserContext(), userID, body)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User updated successfully", fiber.Map{"user": safeUser(u)}, nil)
}

// ViewUser GET /api/v1/users/view-user returns the session user.
func (h *Handlers) ViewUser(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	u, err := h.Service.ViewUser(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User found", fiber.Map{"user": safeUser(u)}, nil)
}

type UpdateRoleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// UpdateRole PATCH /api/v1/users/update-role; AssignRole is checked on the route.
func (h *Handlers) UpdateRole(c *fiber.Ctx) error {
	var req UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == "" || req.Role == "" {
		return response.Error(c, "user_id and role are required", 400, nil)
	}
	actorID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	u, err := h.Service.UpdateUserRole(c.UserContext(), usersvc.UpdateUserRoleInput{
		ActorUserID:  actorID.String(),
		ActorRole:    middleware.CurrentRole(c),
		TargetUserID: req.UserID,
		TargetRole:   req.Role,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User role updated successfully", fiber.Map{"user": safeUser(u)}, nil)
}

func safeUser(u *domain.User) fiber.Map {
	return fiber.Map{
		"user_id":   u.UserID.String(),
		"fullname":  u.Fullname,
		"email":     u.Email,
		"phone":     u.Phone,
		"role":      u.Role,
		"verified":  u.Verified,
		"createdAt": u.CreatedAt,
		"updatedAt": u.UpdatedAt,
	}
}
