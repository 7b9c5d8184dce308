package auth

import (
	"context"

	authsvc "farmdirect-backend/internal/application/auth"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/middleware"
	"farmdirect-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	UserFinder authsvc.UserFinder
	OTP        *authsvc.OTPService
	Rdb        *redis.Client
	Config     middleware.SessionConfig
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Login POST /api/v1/auth/login authenticates and starts a session.
func (h *Handlers) Login(c *fiber.Ctx) error {
	if h.UserFinder == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Email and password are required", fiber.StatusBadRequest, nil)
	}
	if req.Email == "" || req.Password == "" {
		return response.Error(c, "Email and password are required", fiber.StatusBadRequest, nil)
	}

	user, err := h.UserFinder.FindByEmailAndPassword(req.Email, req.Password)
	if err != nil {
		switch err {
		case authsvc.ErrEmailPasswordRequired:
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case authsvc.ErrInvalidEmail, authsvc.ErrIncorrectPassword:
			return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
		default:
			return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
		}
	}
	if err := h.startSession(c, user); err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Login successful", fiber.Map{"user": sessionView(user)}, nil)
}

// RequestOTP POST /api/v1/auth/request-otp emails a one-time code.
// The response does not reveal whether the email is registered.
func (h *Handlers) RequestOTP(c *fiber.Ctx) error {
	if h.OTP == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	var req OTPRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return response.Error(c, "Email is required", fiber.StatusBadRequest, nil)
	}
	if err := h.OTP.Request(c.UserContext(), req.Email); err != nil {
		if err == authsvc.ErrInvalidEmail {
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		}
		log.Error().Err(err).Msg("otp request failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "If the email is registered, a code has been sent", nil, nil)
}

// VerifyOTP POST /api/v1/auth/verify-otp consumes the code, marks the account verified and logs in.
func (h *Handlers) VerifyOTP(c *fiber.Ctx) error {
	if h.OTP == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	var req OTPRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Code == "" {
		return response.Error(c, "Email and code are required", fiber.StatusBadRequest, nil)
	}
	user, err := h.OTP.Verify(c.UserContext(), req.Email, req.Code)
	if err != nil {
		if err == authsvc.ErrInvalidOTP {
			return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
		}
		log.Error().Err(err).Msg("otp verify failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	if err := h.startSession(c, user); err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Verified", fiber.Map{"user": sessionView(user)}, nil)
}

// startSession rotates the session id, stores the user, indexes the session and sets the cookie.
func (h *Handlers) startSession(c *fiber.Ctx, user *domain.User) error {
	sessionID := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID:   user.UserID.String(),
		Fullname: user.Fullname,
		Email:    user.Email,
		Role:     user.Role,
		Verified: user.Verified,
	})
	if err := h.Rdb.SAdd(context.Background(), middleware.UserSessionsPrefix+user.UserID.String(), sessionID).Err(); err != nil {
		return err
	}
	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sessionID
	c.Cookie(&cookie)
	return nil
}

func sessionView(user *domain.User) fiber.Map {
	return fiber.Map{
		"user_id":  user.UserID.String(),
		"fullname": user.Fullname,
		"email":    user.Email,
		"role":     user.Role,
		"verified": user.Verified,
	}
}

// Me GET /api/v1/auth/me returns the current session user.
func (h *Handlers) Me(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	sessionUser := middleware.GetUser(c)

	if sessionID == "" {
		cookieVal := c.Cookies(middleware.SessionCookieName)
		log.Debug().Str("path", "/auth/me").
			Bool("cookie_present", cookieVal != "").
			Msg("auth/me: no session id")
	} else if sessionUser == nil {
		log.Debug().Str("path", "/auth/me").Str("session_id_prefix", truncate(sessionID, 8)).
			Msg("auth/me: session id present but no user in session data")
	}

	user, err := authsvc.VerifyUser(sessionUser)
	if err != nil {
		return response.Error(c, "Not authenticated", fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": user}, nil)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Logout DELETE /api/v1/auth/logout removes the session and clears the cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	ctx := context.Background()

	if userID, ok := middleware.CurrentUserID(c); ok && sessionID != "" {
		_ = h.Rdb.SRem(ctx, middleware.UserSessionsPrefix+userID.String(), sessionID).Err()
	}
	if sessionID != "" {
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)
	return response.Success(c, "Logged out successfully", nil, nil)
}
