package products

import (
	"context"
	"errors"
	"strings"

	"farmdirect-backend/internal/application/stock"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/pkg/apperr"
	"farmdirect-backend/internal/pkg/constants"
	"farmdirect-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	Unit          string   `json:"unit"`
	Selling       float64  `json:"selling"`
	MinNegotiable *float64 `json:"min_negotiable"`
	Negotiable    bool     `json:"negotiable"`
	Stock         int      `json:"stock"`
}

// UpdateInput carries the optional price fields a seller may change.
type UpdateInput struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Selling       *float64 `json:"selling"`
	MinNegotiable *float64 `json:"min_negotiable"`
	Negotiable    *bool    `json:"negotiable"`
}

type ListFilter struct {
	SellerID *uuid.UUID
	Category string
	Page     int
	Limit    int
}

type Page struct {
	Products []domain.Product `json:"products"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

func validatePrice(p domain.Price) error {
	if p.Selling <= 0 {
		return apperr.New(apperr.ValidationError, "Selling price must be greater than 0")
	}
	if p.MinNegotiable != nil {
		if *p.MinNegotiable <= 0 {
			return apperr.New(apperr.ValidationError, "Minimum negotiable price must be greater than 0")
		}
		if *p.MinNegotiable > p.Selling {
			return apperr.New(apperr.ValidationError, "Minimum negotiable price cannot exceed the selling price")
		}
	}
	return nil
}

// Create lists a new active product for the seller.
func (s *Service) Create(ctx context.Context, sellerID uuid.UUID, in CreateInput) (*domain.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.New(apperr.ValidationError, "Name is required")
	}
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		return nil, apperr.New(apperr.ValidationError, "Unit is required")
	}
	if in.Stock < 0 {
		return nil, apperr.New(apperr.ValidationError, "Stock cannot be negative")
	}
	price := domain.Price{Selling: validation.RoundMoney(in.Selling), Negotiable: in.Negotiable}
	if in.Negotiable && in.MinNegotiable != nil {
		floor := validation.RoundMoney(*in.MinNegotiable)
		price.MinNegotiable = &floor
	}
	if err := validatePrice(price); err != nil {
		return nil, err
	}
	p := &domain.Product{
		SellerID:    sellerID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		Unit:        unit,
		Price:       price,
		Stock:       in.Stock,
		Active:      true,
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return nil, apperr.Wrap(err, "Failed to create product")
	}
	log.Info().Str("product_id", p.ProductID.String()).Str("seller_id", sellerID.String()).Msg("product created")
	return p, nil
}

func (s *Service) Get(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	if err := s.DB.WithContext(ctx).Where("product_id = ?", productID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "Product not found")
		}
		return nil, apperr.Wrap(err, "Failed to load product")
	}
	return &p, nil
}

// List returns active products, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
	q := s.DB.WithContext(ctx).Model(&domain.Product{}).Where("active = ?", true)
	if f.SellerID != nil {
		q = q.Where("seller_id = ?", *f.SellerID)
	}
	if c := strings.ToLower(strings.TrimSpace(f.Category)); c != "" {
		q = q.Where("category = ?", c)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.Wrap(err, "Failed to count products")
	}
	var out []domain.Product
	if err := q.Session(&gorm.Session{}).
		Order(`"createdAt" DESC`).
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&out).Error; err != nil {
		return nil, apperr.Wrap(err, "Failed to list products")
	}
	return &Page{Products: out, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// owned loads the product and checks the actor is its seller (or an admin).
func owned(db *gorm.DB, actorID uuid.UUID, role string, productID uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	if err := db.Where("product_id = ?", productID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "Product not found")
		}
		return nil, apperr.Wrap(err, "Failed to load product")
	}
	if p.SellerID != actorID && role != constants.Admin {
		return nil, apperr.New(apperr.Unauthorized, "Only the seller can modify this product")
	}
	return &p, nil
}

// Update changes descriptive and price fields; stock is never writable here.
func (s *Service) Update(ctx context.Context, actorID uuid.UUID, role string, productID uuid.UUID, in UpdateInput) (*domain.Product, error) {
	var out *domain.Product
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := owned(tx, actorID, role, productID)
		if err != nil {
			return err
		}
		upd := map[string]interface{}{}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apperr.New(apperr.ValidationError, "Name cannot be empty")
			}
			upd["name"] = name
			p.Name = name
		}
		if in.Description != nil {
			upd["description"] = strings.TrimSpace(*in.Description)
			p.Description = upd["description"].(string)
		}
		price := p.Price
		if in.Selling != nil {
			price.Selling = validation.RoundMoney(*in.Selling)
		}
		if in.Negotiable != nil {
			price.Negotiable = *in.Negotiable
		}
		if in.MinNegotiable != nil {
			floor := validation.RoundMoney(*in.MinNegotiable)
			price.MinNegotiable = &floor
		}
		if !price.Negotiable {
			price.MinNegotiable = nil
		}
		if err := validatePrice(price); err != nil {
			return err
		}
		upd["price_selling"] = price.Selling
		upd["price_negotiable"] = price.Negotiable
		upd["price_min_negotiable"] = price.MinNegotiable
		p.Price = price
		if err := tx.Model(&domain.Product{}).Where("product_id = ?", productID).Updates(upd).Error; err != nil {
			return apperr.Wrap(err, "Failed to update product")
		}
		out = p
		return nil
	})
	return out, err
}

// Restock adds units through the stock ledger.
func (s *Service) Restock(ctx context.Context, actorID uuid.UUID, role string, productID uuid.UUID, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.ValidationError, "Quantity must be at least 1")
	}
	var out *domain.Product
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := owned(tx, actorID, role, productID); err != nil {
			return err
		}
		if err := stock.Release(tx, productID, qty); err != nil {
			return err
		}
		var p domain.Product
		if err := tx.Where("product_id = ?", productID).First(&p).Error; err != nil {
			return apperr.Wrap(err, "Failed to reload product")
		}
		out = &p
		return nil
	})
	if err == nil {
		log.Info().Str("product_id", productID.String()).Int("qty", qty).Int("stock", out.Stock).Msg("product restocked")
	}
	return out, err
}

// Deactivate hides the product from the catalog. Rows are kept so orders keep their references.
func (s *Service) Deactivate(ctx context.Context, actorID uuid.UUID, role string, productID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := owned(tx, actorID, role, productID)
		if err != nil {
			return err
		}
		if !p.Active {
			return nil
		}
		if err := tx.Model(&domain.Product{}).Where("product_id = ?", productID).Update("active", false).Error; err != nil {
			return apperr.Wrap(err, "Failed to deactivate product")
		}
		log.Info().Str("product_id", productID.String()).Msg("product deactivated")
		return nil
	})
}
