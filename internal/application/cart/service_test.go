package cart

import (
	"context"
	"testing"

	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/infrastructure/database"
	"farmdirect-backend/internal/pkg/apperr"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCartTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return &Service{DB: db}, db
}

func seedProduct(t *testing.T, db *gorm.DB, price float64, stock int) domain.Product {
	p := domain.Product{SellerID: uuid.New(), Name: "Item", Unit: "kg", Price: domain.Price{Selling: price}, Stock: stock, Active: true}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestGet_CreatesEmptyCartOnce(t *testing.T) {
	svc, db := setupCartTest(t)
	buyer := uuid.New()

	c1, err := svc.Get(context.Background(), buyer)
	require.NoError(t, err)
	c2, err := svc.Get(context.Background(), buyer)
	require.NoError(t, err)

	assert.Equal(t, c1.CartID, c2.CartID)
	assert.Empty(t, c2.Items)
	var count int64
	db.Model(&domain.Cart{}).Where("buyer_id = ?", buyer).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAddItem_TotalsScenario(t *testing.T) {
	svc, db := setupCartTest(t)
	ctx := context.Background()
	buyer := uuid.New()
	a := seedProduct(t, db, 100, 10)
	b := seedProduct(t, db, 50, 10)

	_, err := svc.AddItem(ctx, buyer, a.ProductID, 2)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, buyer, b.ProductID, 1)
	require.NoError(t, err)
	assert.Equal(t, 250.0, cart.TotalAmount)
	assert.Equal(t, 3, cart.TotalItems)

	reloaded, err := svc.Get(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 2)
	assert.Equal(t, a.ProductID, reloaded.Items[0].ProductID)
	assert.Equal(t, 250.0, reloaded.TotalAmount)
	assert.Equal(t, 3, reloaded.TotalItems)
}

func TestAddItem_StockIsCheckedAgainstCombinedQuantity(t *testing.T) {
	svc, db := setupCartTest(t)
	ctx := context.Background()
	buyer := uuid.New()
	p := seedProduct(t, db, 40, 3)

	_, err := svc.AddItem(ctx, buyer, p.ProductID, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, buyer, p.ProductID, 2)
	assert.Equal(t, apperr.InsufficientStock, apperr.KindOf(err))

	cart, err := svc.Get(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.TotalItems)

	var stored domain.Product
	require.NoError(t, db.Where("product_id = ?", p.ProductID).First(&stored).Error)
	assert.Equal(t, 3, stored.Stock, "cart never reserves stock")
}

func TestAddItem_Errors(t *testing.T) {
	svc, _ := setupCartTest(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, uuid.New(), uuid.New(), 1)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = svc.AddItem(ctx, uuid.New(), uuid.New(), 0)
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))
}

func TestSetQuantity_KeepsSnapshotAndRemovesOnZero(t *testing.T) {
	svc, db := setupCartTest(t)
	ctx := context.Background()
	buyer := uuid.New()
	p := seedProduct(t, db, 30, 10)

	_, err := svc.AddItem(ctx, buyer, p.ProductID, 1)
	require.NoError(t, err)
	require.NoError(t, db.Model(&domain.Product{}).Where("product_id = ?", p.ProductID).Update("price_selling", 45).Error)

	cart, err := svc.SetQuantity(ctx, buyer, p.ProductID, 4)
	require.NoError(t, err)
	assert.Equal(t, 30.0, cart.Items[0].Price)
	assert.Equal(t, 120.0, cart.TotalAmount)

	_, err = svc.SetQuantity(ctx, buyer, p.ProductID, 11)
	assert.Equal(t, apperr.InsufficientStock, apperr.KindOf(err))

	cart, err = svc.SetQuantity(ctx, buyer, p.ProductID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0.0, cart.TotalAmount)

	_, err = svc.SetQuantity(ctx, buyer, p.ProductID, 2)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestRemoveItemAndClear(t *testing.T) {
	svc, db := setupCartTest(t)
	ctx := context.Background()
	buyer := uuid.New()
	a := seedProduct(t, db, 10, 5)
	b := seedProduct(t, db, 20, 5)

	_, err := svc.AddItem(ctx, buyer, a.ProductID, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, buyer, b.ProductID, 2)
	require.NoError(t, err)

	cart, err := svc.RemoveItem(ctx, buyer, a.ProductID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, cart.TotalAmount)
	_, err = svc.RemoveItem(ctx, buyer, a.ProductID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	cart, err = svc.Clear(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.TotalItems)

	var lines int64
	db.Model(&domain.CartItem{}).Where("cart_id = ?", cart.CartID).Count(&lines)
	assert.Equal(t, int64(0), lines)
}
