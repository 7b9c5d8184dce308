package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Price is the catalog price of a product; MinNegotiable is the floor a buyer may propose.
type Price struct {
	Selling       float64  `gorm:"column:selling;type:decimal(18,2);not null" json:"selling"`
	MinNegotiable *float64 `gorm:"column:min_negotiable;type:decimal(18,2)" json:"min_negotiable"`
	Negotiable    bool     `gorm:"column:negotiable;not null" json:"negotiable"`
}

// Product is a catalog item. Stock is only mutated through the stock ledger.
type Product struct {
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey" json:"product_id"`
	SellerID    uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description string    `gorm:"column:description" json:"description"`
	Category    string    `gorm:"column:category" json:"category"`
	Unit        string    `gorm:"column:unit;not null" json:"unit"`
	Price       Price     `gorm:"embedded;embeddedPrefix:price_" json:"price"`
	Stock       int       `gorm:"column:stock;not null" json:"stock"`
	Active      bool      `gorm:"column:active;not null" json:"active"`
	CreatedAt   time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Product) TableName() string {
	return "Products"
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ProductID == uuid.Nil {
		p.ProductID = uuid.New()
	}
	return nil
}

// IsInStock reports whether qty units can currently be sold.
func (p *Product) IsInStock(qty int) bool {
	return p.Active && qty > 0 && p.Stock >= qty
}

// CanNegotiate reports whether buyers may open a price negotiation.
func (p *Product) CanNegotiate() bool {
	return p.Active && p.Price.Negotiable
}

// AcceptsProposal reports whether a buyer's proposed price respects the negotiable floor.
func (p *Product) AcceptsProposal(price float64) bool {
	if price <= 0 {
		return false
	}
	if p.Price.MinNegotiable != nil && price < *p.Price.MinNegotiable {
		return false
	}
	return true
}
