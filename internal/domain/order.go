package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemConfirmed ItemStatus = "confirmed"
	ItemCancelled ItemStatus = "cancelled"
	ItemFulfilled ItemStatus = "fulfilled"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
	OrderFulfilled OrderStatus = "fulfilled"
)

const (
	OrderSourceCart        = "cart"
	OrderSourceNegotiation = "negotiation"
)

const (
	PaymentCOD  = "cod"
	PaymentUPI  = "upi"
	PaymentCard = "card"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending:   {ItemConfirmed, ItemCancelled},
	ItemConfirmed: {ItemFulfilled, ItemCancelled},
}

// CanTransitionItem reports whether an order line may move from one status to another.
func CanTransitionItem(from, to ItemStatus) bool {
	for _, s := range itemTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemPending, ItemConfirmed, ItemCancelled, ItemFulfilled:
		return true
	}
	return false
}

// DeriveOrderStatus computes the overall order status from its lines:
// all cancelled -> cancelled; any pending -> pending; any confirmed -> confirmed;
// otherwise (only fulfilled and cancelled left) -> fulfilled.
func DeriveOrderStatus(items []OrderItem) OrderStatus {
	if len(items) == 0 {
		return OrderPending
	}
	var pending, confirmed, cancelled int
	for _, it := range items {
		switch it.Status {
		case ItemPending:
			pending++
		case ItemConfirmed:
			confirmed++
		case ItemCancelled:
			cancelled++
		}
	}
	switch {
	case cancelled == len(items):
		return OrderCancelled
	case pending > 0:
		return OrderPending
	case confirmed > 0:
		return OrderConfirmed
	default:
		return OrderFulfilled
	}
}

// Address is the shipping destination, stored as a JSON column.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
}

// Complete reports whether the fields needed for delivery are present.
func (a Address) Complete() bool {
	return a.Name != "" && a.Line1 != "" && a.City != "" && a.State != "" && a.PostalCode != ""
}

type Payment struct {
	Method    string  `gorm:"column:method;type:varchar(10);not null" json:"method"`
	Amount    float64 `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Status    string  `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Reference string  `gorm:"column:reference" json:"reference,omitempty"`
}

func IsValidPaymentMethod(m string) bool {
	return m == PaymentCOD || m == PaymentUPI || m == PaymentCard
}

// Pricing is computed once at order creation and never recomputed.
type Pricing struct {
	Subtotal float64 `gorm:"column:subtotal;type:decimal(18,2);not null" json:"subtotal"`
	Shipping float64 `gorm:"column:shipping;type:decimal(18,2);not null" json:"shipping"`
	Total    float64 `gorm:"column:total;type:decimal(18,2);not null" json:"total"`
}

// NewPricing applies free shipping when subtotal is strictly above threshold.
func NewPricing(subtotal, freeShippingThreshold, shippingFee float64) Pricing {
	subtotal = math.Round(subtotal*100) / 100
	shipping := shippingFee
	if subtotal > freeShippingThreshold {
		shipping = 0
	}
	return Pricing{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    math.Round((subtotal+shipping)*100) / 100,
	}
}

type Order struct {
	OrderID         uuid.UUID                   `gorm:"column:order_id;type:uuid;primaryKey" json:"order_id"`
	OrderNumber     string                      `gorm:"column:order_number;not null;uniqueIndex" json:"order_number"`
	BuyerID         uuid.UUID                   `gorm:"column:buyer_id;type:uuid;not null;index" json:"buyer_id"`
	Items           []OrderItem                 `gorm:"foreignKey:OrderID;references:OrderID" json:"items"`
	ShippingAddress datatypes.JSONType[Address] `gorm:"column:shipping_address" json:"shipping_address"`
	Payment         Payment                     `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	Pricing         Pricing                     `gorm:"embedded;embeddedPrefix:pricing_" json:"pricing"`
	Status          OrderStatus                 `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	Source          string                      `gorm:"column:source;type:varchar(20);not null" json:"source"`
	NegotiationID   *uuid.UUID                  `gorm:"column:negotiation_id;type:uuid" json:"negotiation_id,omitempty"`
	IdempotencyKey  *string                     `gorm:"column:idempotency_key" json:"-"`
	CreatedAt       time.Time                   `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time                   `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Order) TableName() string {
	return "Orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderID == uuid.Nil {
		o.OrderID = uuid.New()
	}
	return nil
}

// HasSeller reports whether sellerID owns at least one line of the order.
func (o *Order) HasSeller(sellerID uuid.UUID) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// OrderItem price is locked at order time.
type OrderItem struct {
	ItemID      uuid.UUID  `gorm:"column:item_id;type:uuid;primaryKey" json:"item_id"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID   uuid.UUID  `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	SellerID    uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	ProductName string     `gorm:"column:product_name;not null" json:"product_name"`
	Quantity    int        `gorm:"column:quantity;not null" json:"quantity"`
	Price       float64    `gorm:"column:price;type:decimal(18,2);not null" json:"price"`
	Status      ItemStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	UpdatedAt   time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (OrderItem) TableName() string {
	return "OrderItems"
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ItemID == uuid.Nil {
		i.ItemID = uuid.New()
	}
	return nil
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() float64 {
	return i.Price * float64(i.Quantity)
}
