package cart

import (
	"context"
	"errors"
	"time"

	"farmdirect-backend/internal/application/stock"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Get returns the buyer's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, buyerID uuid.UUID) (*domain.Cart, error) {
	var cart *domain.Cart
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cart, err = LoadForUpdate(tx, buyerID)
		return err
	})
	return cart, err
}

// AddItem adds qty of a product, merging with an existing line. The combined
// quantity must be in stock; the price is snapshotted only for a new line.
func (s *Service) AddItem(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*domain.Cart, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.ValidationError, "Quantity must be at least 1")
	}
	return s.mutate(ctx, buyerID, func(tx *gorm.DB, cart *domain.Cart) error {
		product, err := stock.Check(tx, productID, cart.QuantityOf(productID)+qty)
		if err != nil {
			return err
		}
		cart.AddItem(productID, qty, product.Price.Selling, s.now())
		return nil
	})
}

// SetQuantity overwrites a line's quantity; qty <= 0 removes it.
func (s *Service) SetQuantity(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*domain.Cart, error) {
	return s.mutate(ctx, buyerID, func(tx *gorm.DB, cart *domain.Cart) error {
		if cart.Line(productID) < 0 {
			return apperr.New(apperr.NotFound, "Product is not in the cart")
		}
		if qty > 0 {
			if _, err := stock.Check(tx, productID, qty); err != nil {
				return err
			}
		}
		cart.SetQuantity(productID, qty)
		return nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, buyerID, productID uuid.UUID) (*domain.Cart, error) {
	return s.mutate(ctx, buyerID, func(tx *gorm.DB, cart *domain.Cart) error {
		if !cart.RemoveItem(productID) {
			return apperr.New(apperr.NotFound, "Product is not in the cart")
		}
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, buyerID uuid.UUID) (*domain.Cart, error) {
	return s.mutate(ctx, buyerID, func(tx *gorm.DB, cart *domain.Cart) error {
		cart.Clear()
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, buyerID uuid.UUID, fn func(tx *gorm.DB, cart *domain.Cart) error) (*domain.Cart, error) {
	var cart *domain.Cart
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cart, err = LoadForUpdate(tx, buyerID)
		if err != nil {
			return err
		}
		if err := fn(tx, cart); err != nil {
			return err
		}
		return Save(tx, cart)
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// LoadForUpdate loads the buyer's cart with lines in position order, creating
// it if missing. The row is locked on databases that support FOR UPDATE.
func LoadForUpdate(tx *gorm.DB, buyerID uuid.UUID) (*domain.Cart, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Cart{BuyerID: buyerID}).Error; err != nil {
		return nil, apperr.Wrap(err, "cart create failed")
	}
	var cart domain.Cart
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("buyer_id = ?", buyerID).First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "Cart not found")
		}
		return nil, apperr.Wrap(err, "cart lookup failed")
	}
	return &cart, nil
}

// Save replaces the stored lines with cart.Items and writes the totals.
func Save(tx *gorm.DB, cart *domain.Cart) error {
	cart.Recalculate()
	if err := tx.Where("cart_id = ?", cart.CartID).Delete(&domain.CartItem{}).Error; err != nil {
		return apperr.Wrap(err, "cart save failed")
	}
	for i := range cart.Items {
		cart.Items[i].CartID = cart.CartID
	}
	if len(cart.Items) > 0 {
		if err := tx.Create(&cart.Items).Error; err != nil {
			return apperr.Wrap(err, "cart save failed")
		}
	}
	if err := tx.Model(&domain.Cart{}).Where("cart_id = ?", cart.CartID).Updates(map[string]interface{}{
		"total_amount": cart.TotalAmount,
		"total_items":  cart.TotalItems,
	}).Error; err != nil {
		return apperr.Wrap(err, "cart save failed")
	}
	return nil
}
