package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart is the single per-buyer cart. Totals are derived and recomputed on every mutation.
type Cart struct {
	CartID      uuid.UUID  `gorm:"column:cart_id;type:uuid;primaryKey" json:"cart_id"`
	BuyerID     uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex" json:"buyer_id"`
	Items       []CartItem `gorm:"foreignKey:CartID;references:CartID" json:"items"`
	TotalAmount float64    `gorm:"column:total_amount;type:decimal(18,2);not null" json:"totalAmount"`
	TotalItems  int        `gorm:"column:total_items;not null" json:"totalItems"`
	CreatedAt   time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Cart) TableName() string {
	return "Carts"
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.CartID == uuid.Nil {
		c.CartID = uuid.New()
	}
	return nil
}

// CartItem is one line; Price is the selling price snapshotted when the line was first added.
type CartItem struct {
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;primaryKey" json:"item_id"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index" json:"-"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Quantity  int       `gorm:"column:quantity;not null" json:"quantity"`
	Price     float64   `gorm:"column:price;type:decimal(18,2);not null" json:"price"`
	Position  int       `gorm:"column:position;not null" json:"-"`
	AddedAt   time.Time `gorm:"column:added_at" json:"added_at"`
}

func (CartItem) TableName() string {
	return "CartItems"
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ItemID == uuid.Nil {
		i.ItemID = uuid.New()
	}
	return nil
}

// Line returns the index of the line for productID, or -1.
func (c *Cart) Line(productID uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// QuantityOf returns the quantity already in the cart for productID.
func (c *Cart) QuantityOf(productID uuid.UUID) int {
	if i := c.Line(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// AddItem merges qty into an existing line or appends a new one priced at price.
// An existing line keeps its original price snapshot.
func (c *Cart) AddItem(productID uuid.UUID, qty int, price float64, now time.Time) {
	if i := c.Line(productID); i >= 0 {
		c.Items[i].Quantity += qty
	} else {
		c.Items = append(c.Items, CartItem{
			ProductID: productID,
			Quantity:  qty,
			Price:     price,
			AddedAt:   now,
		})
	}
	c.Recalculate()
}

// SetQuantity overwrites a line's quantity; qty <= 0 removes the line.
// Returns false when the product has no line.
func (c *Cart) SetQuantity(productID uuid.UUID, qty int) bool {
	i := c.Line(productID)
	if i < 0 {
		return false
	}
	if qty <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		c.Items[i].Quantity = qty
	}
	c.Recalculate()
	return true
}

// RemoveItem drops the line for productID. Returns false when absent.
func (c *Cart) RemoveItem(productID uuid.UUID) bool {
	return c.SetQuantity(productID, 0)
}

func (c *Cart) Clear() {
	c.Items = nil
	c.Recalculate()
}

// Recalculate recomputes TotalAmount and TotalItems from the lines and renumbers positions.
func (c *Cart) Recalculate() {
	var amount float64
	var count int
	for i := range c.Items {
		c.Items[i].Position = i
		amount += c.Items[i].Price * float64(c.Items[i].Quantity)
		count += c.Items[i].Quantity
	}
	c.TotalAmount = math.Round(amount*100) / 100
	c.TotalItems = count
}
