package user

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	usersvc "farmdirect-backend/internal/application/user"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/middleware"
	"farmdirect-backend/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupUserTest(t *testing.T) (*Handlers, *redis.Client, *gorm.DB) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}))
	svc := &usersvc.Service{DB: db, Rdb: rdb}
	return &Handlers{Service: svc}, rdb, db
}

func asUser(id uuid.UUID, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{"user_id": id.String(), "role": role})
		return c.Next()
	}
}

func sendJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestCreateUser_StartsSession(t *testing.T) {
	h, rdb, _ := setupUserTest(t)
	app := fiber.New()
	app.Use(middleware.SessionWithClient(rdb))
	app.Post("/create-user", h.CreateUser)

	resp := sendJSON(t, app, "POST", "/create-user", map[string]string{
		"fullname": "asha rao", "email": "asha@example.com", "password": "secret12!", "role": constants.Seller,
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "fd.sid=s:")

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	user := out["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "Asha Rao", user["fullname"])
	assert.Equal(t, constants.Seller, user["role"])
	assert.NotContains(t, user, "password_hash")
}

func TestCreateUser_Errors(t *testing.T) {
	h, _, _ := setupUserTest(t)
	app := fiber.New()
	app.Post("/create-user", h.CreateUser)

	resp := sendJSON(t, app, "POST", "/create-user", map[string]string{"email": "a@example.com"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = sendJSON(t, app, "POST", "/create-user", map[string]string{
		"fullname": "Asha", "email": "a@example.com", "password": "secret12!", "role": constants.Admin,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestViewAndUpdateUser(t *testing.T) {
	h, _, db := setupUserTest(t)
	u := domain.User{Fullname: "Asha", Email: "asha@example.com", PasswordHash: "x", Role: constants.Buyer}
	require.NoError(t, db.Create(&u).Error)

	app := fiber.New()
	app.Get("/view-user", asUser(u.UserID, constants.Buyer), h.ViewUser)
	app.Put("/update-user", asUser(u.UserID, constants.Buyer), h.UpdateUser)
	app.Get("/anon", h.ViewUser)

	resp, err := app.Test(httptest.NewRequest("GET", "/view-user", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = sendJSON(t, app, "PUT", "/update-user", map[string]string{"phone": "9876543210"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var stored domain.User
	require.NoError(t, db.First(&stored, "user_id = ?", u.UserID).Error)
	require.NotNil(t, stored.Phone)
	assert.Equal(t, "9876543210", *stored.Phone)

	resp, err = app.Test(httptest.NewRequest("GET", "/anon", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateRole_ForbiddenForBuyer(t *testing.T) {
	h, _, db := setupUserTest(t)
	actor := domain.User{Fullname: "B", Email: "b@example.com", PasswordHash: "x", Role: constants.Buyer}
	target := domain.User{Fullname: "T", Email: "t@example.com", PasswordHash: "x", Role: constants.Buyer}
	require.NoError(t, db.Create(&actor).Error)
	require.NoError(t, db.Create(&target).Error)

	app := fiber.New()
	app.Patch("/update-role", asUser(actor.UserID, constants.Buyer), middleware.AuthorizePermission(constants.AssignRole), h.UpdateRole)

	resp := sendJSON(t, app, "PATCH", "/update-role", map[string]string{"user_id": target.UserID.String(), "role": constants.Seller})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestUpdateRole_AdminAndSelfChange(t *testing.T) {
	h, _, db := setupUserTest(t)
	admin := domain.User{Fullname: "A", Email: "a@example.com", PasswordHash: "x", Role: constants.Admin}
	target := domain.User{Fullname: "T", Email: "t@example.com", PasswordHash: "x", Role: constants.Buyer}
	require.NoError(t, db.Create(&admin).Error)
	require.NoError(t, db.Create(&target).Error)

	app := fiber.New()
	app.Patch("/update-role", asUser(admin.UserID, constants.Admin), middleware.AuthorizePermission(constants.AssignRole), h.UpdateRole)

	resp := sendJSON(t, app, "PATCH", "/update-role", map[string]string{"user_id": target.UserID.String(), "role": constants.Farmer})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var stored domain.User
	require.NoError(t, db.First(&stored, "user_id = ?", target.UserID).Error)
	assert.Equal(t, constants.Farmer, stored.Role)

	resp = sendJSON(t, app, "PATCH", "/update-role", map[string]string{"user_id": admin.UserID.String(), "role": constants.Buyer})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = sendJSON(t, app, "PATCH", "/update-role", map[string]string{"user_id": target.UserID.String(), "role": "overlord"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
