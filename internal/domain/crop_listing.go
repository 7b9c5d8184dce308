package domain

import (
	"time"

	"farmdirect-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ListingStatus string

const (
	ListingActive  ListingStatus = "active"
	ListingSoldOut ListingStatus = "sold_out"
	ListingExpired ListingStatus = "expired"
	ListingClosed  ListingStatus = "closed"
)

// CropQuantity tracks a lot: Available is the total offered, Sold the part committed by accepted orders.
type CropQuantity struct {
	Available int `gorm:"column:available;not null" json:"available"`
	Sold      int `gorm:"column:sold;not null" json:"sold"`
}

type CropPricing struct {
	BasePrice  float64  `gorm:"column:base_price;type:decimal(18,2);not null" json:"basePrice"`
	Negotiable bool     `gorm:"column:negotiable;not null" json:"negotiable"`
	MinPrice   *float64 `gorm:"column:min_price;type:decimal(18,2)" json:"minPrice"`
}

// CropListing is a farmer's raw crop lot with its direct buyer orders.
type CropListing struct {
	ListingID      uuid.UUID     `gorm:"column:listing_id;type:uuid;primaryKey" json:"listing_id"`
	FarmerID       uuid.UUID     `gorm:"column:farmer_id;type:uuid;not null;index" json:"farmer_id"`
	CropName       string        `gorm:"column:crop_name;not null" json:"crop_name"`
	Variety        string        `gorm:"column:variety" json:"variety"`
	Unit           string        `gorm:"column:unit;not null" json:"unit"`
	Location       string        `gorm:"column:location" json:"location"`
	Quantity       CropQuantity  `gorm:"embedded;embeddedPrefix:quantity_" json:"quantity"`
	Pricing        CropPricing   `gorm:"embedded;embeddedPrefix:pricing_" json:"pricing"`
	Status         ListingStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	AvailableUntil *time.Time    `gorm:"column:available_until" json:"available_until"`
	Orders         []CropOrder   `gorm:"foreignKey:ListingID;references:ListingID" json:"orders"`
	CreatedAt      time.Time     `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt      time.Time     `gorm:"column:updatedAt" json:"updatedAt"`
}

func (CropListing) TableName() string {
	return "CropListings"
}

func (l *CropListing) BeforeCreate(tx *gorm.DB) error {
	if l.ListingID == uuid.Nil {
		l.ListingID = uuid.New()
	}
	return nil
}

// Remaining is the effective stock of the lot.
func (l *CropListing) Remaining() int {
	return l.Quantity.Available - l.Quantity.Sold
}

// IsExpired reports whether an active listing has passed AvailableUntil.
func (l *CropListing) IsExpired(now time.Time) bool {
	return l.Status == ListingActive && l.AvailableUntil != nil && now.After(*l.AvailableUntil)
}

// AcceptsPrice checks an offered unit price against the listing's pricing.
func (l *CropListing) AcceptsPrice(price float64) error {
	if price <= 0 {
		return apperr.New(apperr.ValidationError, "Price must be greater than 0")
	}
	if !l.Pricing.Negotiable && price != l.Pricing.BasePrice {
		return apperr.Newf(apperr.ValidationError, "Listing is not negotiable; price must be %.2f", l.Pricing.BasePrice)
	}
	if l.Pricing.Negotiable && l.Pricing.MinPrice != nil && price < *l.Pricing.MinPrice {
		return apperr.Newf(apperr.ValidationError, "Price is below the minimum of %.2f", *l.Pricing.MinPrice)
	}
	return nil
}

type CropOrderStatus string

const (
	CropOrderPending   CropOrderStatus = "pending"
	CropOrderAccepted  CropOrderStatus = "accepted"
	CropOrderRejected  CropOrderStatus = "rejected"
	CropOrderCompleted CropOrderStatus = "completed"
)

// CropOrder is a direct buyer order against one listing.
type CropOrder struct {
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;primaryKey" json:"order_id"`
	ListingID    uuid.UUID       `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	BuyerID      uuid.UUID       `gorm:"column:buyer_id;type:uuid;not null;index" json:"buyer_id"`
	Quantity     int             `gorm:"column:quantity;not null" json:"quantity"`
	Price        float64         `gorm:"column:price;type:decimal(18,2);not null" json:"price"`
	Notes        string          `gorm:"column:notes" json:"notes"`
	Status       CropOrderStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	DeliveryDate *time.Time      `gorm:"column:delivery_date" json:"delivery_date"`
	CreatedAt    time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (CropOrder) TableName() string {
	return "CropOrders"
}

func (o *CropOrder) BeforeCreate(tx *gorm.DB) error {
	if o.OrderID == uuid.Nil {
		o.OrderID = uuid.New()
	}
	return nil
}

// CheckCropOrderTransition validates pending->accepted, pending->rejected and accepted->completed.
func CheckCropOrderTransition(from, to CropOrderStatus) error {
	switch {
	case from == CropOrderPending && (to == CropOrderAccepted || to == CropOrderRejected):
		return nil
	case from == CropOrderAccepted && to == CropOrderCompleted:
		return nil
	}
	return apperr.Newf(apperr.InvalidTransition, "Cannot move order from %s to %s", from, to)
}

func IsValidCropOrderStatus(s CropOrderStatus) bool {
	switch s {
	case CropOrderPending, CropOrderAccepted, CropOrderRejected, CropOrderCompleted:
		return true
	}
	return false
}
