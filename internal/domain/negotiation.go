package domain

import (
	"time"

	"farmdirect-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NegotiationStatus string

const (
	NegotiationPending  NegotiationStatus = "pending"
	NegotiationCounter  NegotiationStatus = "counter"
	NegotiationAccepted NegotiationStatus = "accepted"
	NegotiationRejected NegotiationStatus = "rejected"
	NegotiationExpired  NegotiationStatus = "expired"
)

// IsTerminal reports whether no further price action is possible.
func (s NegotiationStatus) IsTerminal() bool {
	return s == NegotiationAccepted || s == NegotiationRejected || s == NegotiationExpired
}

// Party is the side of a negotiation a user acts for.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
)

// Negotiation is a price-proposal exchange between one buyer and a product's seller.
// OpenKey is set only while the negotiation is pending/counter; its unique index
// enforces a single open negotiation per (product, buyer).
type Negotiation struct {
	NegotiationID uuid.UUID            `gorm:"column:negotiation_id;type:uuid;primaryKey" json:"negotiation_id"`
	ProductID     uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	BuyerID       uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index" json:"buyer_id"`
	SellerID      uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	OriginalPrice float64              `gorm:"column:original_price;type:decimal(18,2);not null" json:"original_price"`
	ProposedPrice float64              `gorm:"column:proposed_price;type:decimal(18,2);not null" json:"proposed_price"`
	AgreedPrice   *float64             `gorm:"column:agreed_price;type:decimal(18,2)" json:"agreed_price"`
	Quantity      int                  `gorm:"column:quantity;not null" json:"quantity"`
	Status        NegotiationStatus    `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	LastOfferBy   Party                `gorm:"column:last_offer_by;type:varchar(10);not null" json:"last_offer_by"`
	ExpiresAt     time.Time            `gorm:"column:expires_at;not null" json:"expires_at"`
	OpenKey       *string              `gorm:"column:open_key;uniqueIndex" json:"-"`
	OrderID       *uuid.UUID           `gorm:"column:order_id;type:uuid" json:"order_id"`
	Messages      []NegotiationMessage `gorm:"foreignKey:NegotiationID;references:NegotiationID" json:"messages"`
	CreatedAt     time.Time            `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Negotiation) TableName() string {
	return "Negotiations"
}

func (n *Negotiation) BeforeCreate(tx *gorm.DB) error {
	if n.NegotiationID == uuid.Nil {
		n.NegotiationID = uuid.New()
	}
	return nil
}

// NegotiationMessage is one entry of the exchange. Price is set for offers only.
type NegotiationMessage struct {
	MessageID     uuid.UUID `gorm:"column:message_id;type:uuid;primaryKey" json:"message_id"`
	NegotiationID uuid.UUID `gorm:"column:negotiation_id;type:uuid;not null;index" json:"-"`
	Seq           int       `gorm:"column:seq;not null" json:"seq"`
	Sender        Party     `gorm:"column:sender;type:varchar(10);not null" json:"sender"`
	SenderID      uuid.UUID `gorm:"column:sender_id;type:uuid;not null" json:"sender_id"`
	Message       string    `gorm:"column:message" json:"message"`
	Price         *float64  `gorm:"column:price;type:decimal(18,2)" json:"price,omitempty"`
	SentAt        time.Time `gorm:"column:sent_at;not null" json:"timestamp"`
}

func (NegotiationMessage) TableName() string {
	return "NegotiationMessages"
}

func (m *NegotiationMessage) BeforeCreate(tx *gorm.DB) error {
	if m.MessageID == uuid.Nil {
		m.MessageID = uuid.New()
	}
	return nil
}

// OpenNegotiationKey is the value stored in OpenKey while a negotiation is open.
func OpenNegotiationKey(productID, buyerID uuid.UUID) string {
	return productID.String() + ":" + buyerID.String()
}

// NewNegotiation opens a pending negotiation with the buyer's first offer.
func NewNegotiation(product *Product, buyerID uuid.UUID, proposedPrice float64, qty int, message string, now time.Time, ttl time.Duration) *Negotiation {
	key := OpenNegotiationKey(product.ProductID, buyerID)
	price := proposedPrice
	n := &Negotiation{
		NegotiationID: uuid.New(),
		ProductID:     product.ProductID,
		BuyerID:       buyerID,
		SellerID:      product.SellerID,
		OriginalPrice: product.Price.Selling,
		ProposedPrice: proposedPrice,
		Quantity:      qty,
		Status:        NegotiationPending,
		LastOfferBy:   PartyBuyer,
		ExpiresAt:     now.Add(ttl),
		OpenKey:       &key,
	}
	n.appendMessage(PartyBuyer, buyerID, message, &price, now)
	return n
}

// PartyOf returns the side userID acts for, or an Unauthorized error.
func (n *Negotiation) PartyOf(userID uuid.UUID) (Party, error) {
	switch userID {
	case n.BuyerID:
		return PartyBuyer, nil
	case n.SellerID:
		return PartySeller, nil
	}
	return "", apperr.New(apperr.Unauthorized, "Not a party to this negotiation")
}

// ActorID returns the user id behind a party.
func (n *Negotiation) ActorID(p Party) uuid.UUID {
	if p == PartySeller {
		return n.SellerID
	}
	return n.BuyerID
}

// Counterparty returns the other side.
func (p Party) Counterparty() Party {
	if p == PartyBuyer {
		return PartySeller
	}
	return PartyBuyer
}

// IsExpired reports whether an open negotiation has passed its deadline.
func (n *Negotiation) IsExpired(now time.Time) bool {
	return !n.Status.IsTerminal() && now.After(n.ExpiresAt)
}

// Expire moves an open, overdue negotiation to expired. Returns true on transition.
func (n *Negotiation) Expire(now time.Time) bool {
	if !n.IsExpired(now) {
		return false
	}
	n.close(NegotiationExpired)
	return true
}

// Accept freezes the current offer as the agreed price. Only the party that
// did not make the standing offer may accept it.
func (n *Negotiation) Accept(p Party, now time.Time) error {
	if err := n.respondable(p, "accept"); err != nil {
		return err
	}
	agreed := n.ProposedPrice
	n.AgreedPrice = &agreed
	n.close(NegotiationAccepted)
	n.appendMessage(p, n.ActorID(p), "Offer accepted", nil, now)
	return nil
}

// Reject ends the negotiation without agreement.
func (n *Negotiation) Reject(p Party, reason string, now time.Time) error {
	if err := n.respondable(p, "reject"); err != nil {
		return err
	}
	if reason == "" {
		reason = "Offer rejected"
	}
	n.close(NegotiationRejected)
	n.appendMessage(p, n.ActorID(p), reason, nil, now)
	return nil
}

// Counter replaces the standing offer with price and records message alongside it.
func (n *Negotiation) Counter(p Party, price float64, message string, now time.Time) error {
	if price <= 0 {
		return apperr.New(apperr.ValidationError, "Counter price must be greater than 0")
	}
	if err := n.respondable(p, "counter"); err != nil {
		return err
	}
	n.Status = NegotiationCounter
	n.ProposedPrice = price
	n.LastOfferBy = p
	n.appendMessage(p, n.ActorID(p), message, &price, now)
	return nil
}

// AddMessage appends a plain message without changing state.
func (n *Negotiation) AddMessage(p Party, text string, now time.Time) error {
	if text == "" {
		return apperr.New(apperr.ValidationError, "Message text is required")
	}
	n.appendMessage(p, n.ActorID(p), text, nil, now)
	return nil
}

// LastMessage returns the newest message, or nil.
func (n *Negotiation) LastMessage() *NegotiationMessage {
	if len(n.Messages) == 0 {
		return nil
	}
	return &n.Messages[len(n.Messages)-1]
}

func (n *Negotiation) respondable(p Party, action string) error {
	if n.Status.IsTerminal() {
		return apperr.Newf(apperr.InvalidState, "Cannot %s a negotiation that is %s", action, n.Status)
	}
	if p == n.LastOfferBy {
		return apperr.Newf(apperr.InvalidTransition, "It is the %s's turn to respond", p.Counterparty())
	}
	return nil
}

func (n *Negotiation) close(status NegotiationStatus) {
	n.Status = status
	n.OpenKey = nil
}

func (n *Negotiation) appendMessage(p Party, senderID uuid.UUID, text string, price *float64, now time.Time) {
	n.Messages = append(n.Messages, NegotiationMessage{
		MessageID:     uuid.New(),
		NegotiationID: n.NegotiationID,
		Seq:           len(n.Messages) + 1,
		Sender:        p,
		SenderID:      senderID,
		Message:       text,
		Price:         price,
		SentAt:        now,
	})
}
