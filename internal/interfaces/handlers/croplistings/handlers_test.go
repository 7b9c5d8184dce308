package croplistings

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	cropsvc "farmdirect-backend/internal/application/croplistings"
	"farmdirect-backend/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCropApp(t *testing.T) *fiber.App {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	h := &Handlers{Service: &cropsvc.Service{DB: db}}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-Test-User"); id != "" {
			c.Locals("user", map[string]interface{}{"user_id": id})
		}
		return c.Next()
	})
	app.Post("/crop-listings", h.Create)
	app.Get("/crop-listings", h.List)
	app.Get("/crop-listings/:id", h.Get)
	app.Post("/crop-listings/:id/close", h.Close)
	app.Post("/crop-listings/:id/orders", h.AddOrder)
	app.Patch("/crop-listings/:id/orders/:order_id", h.UpdateOrderStatus)
	return app
}

func call(t *testing.T, app *fiber.App, method, path string, user uuid.UUID, body interface{}) (int, map[string]interface{}) {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("X-Test-User", user.String())
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func field(out map[string]interface{}, key string) map[string]interface{} {
	return out["data"].(map[string]interface{})[key].(map[string]interface{})
}

func createListing(t *testing.T, app *fiber.App, farmer uuid.UUID) string {
	code, out := call(t, app, http.MethodPost, "/crop-listings", farmer, map[string]interface{}{
		"crop_name": "Wheat", "variety": "Sharbati", "unit": "quintal", "location": "Sehore",
		"available": 10, "base_price": "2400", "negotiable": true, "min_price": 2200,
	})
	require.Equal(t, fiber.StatusCreated, code)
	return field(out, "listing")["listing_id"].(string)
}

func TestCropOrders_AcceptCommitsQuantity(t *testing.T) {
	app := setupCropApp(t)
	farmer, buyerA, buyerB := uuid.New(), uuid.New(), uuid.New()
	id := createListing(t, app, farmer)

	code, out := call(t, app, http.MethodPost, "/crop-listings/"+id+"/orders", buyerA, map[string]interface{}{"quantity": 6, "price": 2300})
	require.Equal(t, fiber.StatusCreated, code)
	first := field(out, "order")["order_id"].(string)

	code, out = call(t, app, http.MethodPost, "/crop-listings/"+id+"/orders", buyerB, map[string]interface{}{"quantity": 6, "price": 2400})
	require.Equal(t, fiber.StatusCreated, code, "pending orders do not reserve quantity")
	second := field(out, "order")["order_id"].(string)

	code, _ = call(t, app, http.MethodPatch, "/crop-listings/"+id+"/orders/"+first, buyerA, map[string]interface{}{"status": "accepted"})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, out = call(t, app, http.MethodPatch, "/crop-listings/"+id+"/orders/"+first, farmer, map[string]interface{}{"status": "accepted"})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "accepted", field(out, "order")["status"])

	code, _ = call(t, app, http.MethodPatch, "/crop-listings/"+id+"/orders/"+second, farmer, map[string]interface{}{"status": "accepted"})
	assert.Equal(t, fiber.StatusConflict, code)

	code, out = call(t, app, http.MethodPatch, "/crop-listings/"+id+"/orders/"+first, farmer, map[string]interface{}{
		"status": "completed", "delivery_date": "2026-11-02T09:00:00Z",
	})
	require.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, field(out, "order")["delivery_date"], "2026-11-02")

	code, out = call(t, app, http.MethodGet, "/crop-listings/"+id, uuid.Nil, nil)
	require.Equal(t, fiber.StatusOK, code)
	qty := field(out, "listing")["quantity"].(map[string]interface{})
	assert.EqualValues(t, 6, qty["sold"])
	assert.Len(t, field(out, "listing")["orders"].([]interface{}), 2)
}

func TestCropOrders_PriceAndClose(t *testing.T) {
	app := setupCropApp(t)
	farmer, buyer := uuid.New(), uuid.New()
	id := createListing(t, app, farmer)

	code, _ := call(t, app, http.MethodPost, "/crop-listings/"+id+"/orders", buyer, map[string]interface{}{"quantity": 1, "price": 1000})
	assert.Equal(t, fiber.StatusBadRequest, code, "below the minimum price")

	code, _ = call(t, app, http.MethodPost, "/crop-listings/"+id+"/orders", buyer, map[string]interface{}{"quantity": 11, "price": 2400})
	assert.Equal(t, fiber.StatusConflict, code)

	code, _ = call(t, app, http.MethodPost, "/crop-listings/"+id+"/close", buyer, nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, out := call(t, app, http.MethodPost, "/crop-listings/"+id+"/close", farmer, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "closed", field(out, "listing")["status"])

	code, _ = call(t, app, http.MethodPost, "/crop-listings/"+id+"/orders", buyer, map[string]interface{}{"quantity": 1, "price": 2400})
	assert.Equal(t, fiber.StatusConflict, code)

	code, out = call(t, app, http.MethodGet, "/crop-listings?status=closed&farmer_id="+farmer.String(), uuid.Nil, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, out["data"].([]interface{}), 1)

	code, _ = call(t, app, http.MethodGet, "/crop-listings?status=bogus", uuid.Nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestCreate_RejectsBadDate(t *testing.T) {
	app := setupCropApp(t)
	code, _ := call(t, app, http.MethodPost, "/crop-listings", uuid.New(), map[string]interface{}{
		"crop_name": "Rice", "unit": "kg", "available": 5, "base_price": 40, "available_until": "next week",
	})
	assert.Equal(t, fiber.StatusBadRequest, code)
}
